//go:build govips && cgo

package pipeline

import (
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/pixelgate/pixelgate/internal/domain"
)

type govipsCodec struct{}

// govipsRaster wraps a libvips image. Operations mutate the
// underlying ref in place, which is safe because every request owns
// its own decoded raster. Refs are released by the finalizer govips
// installs at decode time.
type govipsRaster struct {
	ref *vips.ImageRef
}

func (r govipsRaster) Width() int {
	return r.ref.Width()
}

func (r govipsRaster) Height() int {
	return r.ref.Height()
}

func (govipsCodec) Decode(data []byte) (Raster, error) {
	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}
	return govipsRaster{ref: ref}, nil
}

func (govipsCodec) Resize(r Raster, width, height int) (Raster, error) {
	raster, err := unwrapGovipsRaster(r)
	if err != nil {
		return nil, err
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("resize requires positive dimensions, got %dx%d", width, height)
	}

	hscale := float64(width) / float64(raster.ref.Width())
	vscale := float64(height) / float64(raster.ref.Height())
	if err := raster.ref.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
		return nil, fmt.Errorf("resize image: %w", err)
	}
	return raster, nil
}

func (govipsCodec) Crop(r Raster, x, y, width, height int) (Raster, error) {
	raster, err := unwrapGovipsRaster(r)
	if err != nil {
		return nil, err
	}
	if err := raster.ref.ExtractArea(x, y, width, height); err != nil {
		return nil, fmt.Errorf("crop image: %w", err)
	}
	return raster, nil
}

func (govipsCodec) CompositeOver(r Raster, width, height int, background domain.RGB) (Raster, error) {
	raster, err := unwrapGovipsRaster(r)
	if err != nil {
		return nil, err
	}

	bg := &vips.Color{R: background.R, G: background.G, B: background.B}
	if err := raster.ref.Flatten(bg); err != nil {
		return nil, fmt.Errorf("flatten image: %w", err)
	}

	if raster.ref.Width() < width || raster.ref.Height() < height {
		left := (width - raster.ref.Width()) / 2
		top := (height - raster.ref.Height()) / 2
		if err := raster.ref.EmbedBackground(left, top, width, height, bg); err != nil {
			return nil, fmt.Errorf("extend canvas: %w", err)
		}
	}
	return raster, nil
}

func (govipsCodec) Encode(r Raster, format domain.Format, quality int) ([]byte, error) {
	raster, err := unwrapGovipsRaster(r)
	if err != nil {
		return nil, err
	}

	switch format {
	case domain.FormatJPEG:
		params := vips.NewJpegExportParams()
		if quality >= 1 && quality <= 100 {
			params.Quality = quality
		}
		data, _, err := raster.ref.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case domain.FormatPNG:
		data, _, err := raster.ref.ExportPng(vips.NewPngExportParams())
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

func unwrapGovipsRaster(r Raster) (govipsRaster, error) {
	raster, ok := r.(govipsRaster)
	if !ok {
		return govipsRaster{}, fmt.Errorf("raster %T was not produced by this codec", r)
	}
	return raster, nil
}
