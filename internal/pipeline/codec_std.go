package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/pixelgate/pixelgate/internal/domain"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

type stdCodec struct{}

type stdRaster struct {
	img image.Image
}

func (r stdRaster) Width() int {
	return r.img.Bounds().Dx()
}

func (r stdRaster) Height() int {
	return r.img.Bounds().Dy()
}

func (stdCodec) Decode(data []byte) (Raster, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, errors.New("source image has invalid dimensions")
	}
	return stdRaster{img: img}, nil
}

func (stdCodec) Resize(r Raster, width, height int) (Raster, error) {
	src, err := unwrapStdRaster(r)
	if err != nil {
		return nil, err
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("resize requires positive dimensions, got %dx%d", width, height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return stdRaster{img: dst}, nil
}

func (stdCodec) Crop(r Raster, x, y, width, height int) (Raster, error) {
	src, err := unwrapStdRaster(r)
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	if x < 0 || y < 0 || x+width > bounds.Dx() || y+height > bounds.Dy() {
		return nil, fmt.Errorf("crop window %dx%d+%d+%d exceeds raster %dx%d",
			width, height, x, y, bounds.Dx(), bounds.Dy())
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min.Add(image.Pt(x, y)), draw.Src)
	return stdRaster{img: dst}, nil
}

func (stdCodec) CompositeOver(r Raster, width, height int, background domain.RGB) (Raster, error) {
	src, err := unwrapStdRaster(r)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := image.NewUniform(color.NRGBA{R: background.R, G: background.G, B: background.B, A: 255})
	draw.Draw(canvas, canvas.Bounds(), fill, image.Point{}, draw.Src)

	srcBounds := src.Bounds()
	offsetX := (width - srcBounds.Dx()) / 2
	offsetY := (height - srcBounds.Dy()) / 2
	if offsetX < 0 {
		offsetX = 0
	}
	if offsetY < 0 {
		offsetY = 0
	}
	window := image.Rect(offsetX, offsetY, offsetX+srcBounds.Dx(), offsetY+srcBounds.Dy())
	draw.Draw(canvas, window, src, srcBounds.Min, draw.Over)

	return stdRaster{img: canvas}, nil
}

func (stdCodec) Encode(r Raster, format domain.Format, quality int) ([]byte, error) {
	src, err := unwrapStdRaster(r)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch format {
	case domain.FormatJPEG:
		if quality < 1 || quality > 100 {
			quality = jpeg.DefaultQuality
		}
		if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case domain.FormatPNG:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, src); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	return buf.Bytes(), nil
}

func unwrapStdRaster(r Raster) (image.Image, error) {
	wrapped, ok := r.(stdRaster)
	if !ok {
		return nil, fmt.Errorf("raster %T was not produced by this codec", r)
	}
	return wrapped.img, nil
}
