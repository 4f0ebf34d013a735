package pipeline

import (
	"context"

	"github.com/pixelgate/pixelgate/internal/domain"
)

// Transformer turns source bytes into transformed output bytes for a
// validated config.
type Transformer interface {
	Transform(ctx context.Context, source []byte, cfg domain.TransformConfig) (TransformResult, error)
}

type TransformResult struct {
	Data   []byte
	Format domain.Format
	Width  int
	Height int
}

// Engine runs the decode, resize, crop, composite, encode sequence on
// top of an injected Codec.
type Engine struct {
	codec Codec
}

// NewEngine builds an engine. A nil codec selects the build's default
// (standard library, or libvips under the govips tag).
func NewEngine(codec Codec) *Engine {
	if codec == nil {
		codec = newCodec()
	}
	return &Engine{codec: codec}
}

func (e *Engine) Transform(ctx context.Context, source []byte, cfg domain.TransformConfig) (TransformResult, error) {
	select {
	case <-ctx.Done():
		return TransformResult{}, ctx.Err()
	default:
	}

	raster, err := e.codec.Decode(source)
	if err != nil {
		return TransformResult{}, &TransformError{Stage: "decode", Err: err}
	}

	naturalW, naturalH := raster.Width(), raster.Height()
	geo := ResolveGeometry(naturalW, naturalH, cfg.Width, cfg.Height, cfg.Fit)

	if geo.Width != naturalW || geo.Height != naturalH {
		raster, err = e.codec.Resize(raster, geo.Width, geo.Height)
		if err != nil {
			return TransformResult{}, &TransformError{Stage: "resize", Err: err}
		}
	}

	if geo.ShouldCrop && cfg.Width > 0 && cfg.Height > 0 {
		x, y := cropOffsets(raster.Width(), raster.Height(), cfg.Width, cfg.Height, cfg.Crop)
		raster, err = e.codec.Crop(raster, x, y, cfg.Width, cfg.Height)
		if err != nil {
			return TransformResult{}, &TransformError{Stage: "crop", Err: err}
		}
	}

	if cfg.Background != nil && (cfg.Fit == domain.FitContain || cfg.Fit == domain.FitFill) {
		canvasW, canvasH := raster.Width(), raster.Height()
		if cfg.Width > 0 && cfg.Height > 0 {
			canvasW, canvasH = cfg.Width, cfg.Height
		}
		raster, err = e.codec.CompositeOver(raster, canvasW, canvasH, *cfg.Background)
		if err != nil {
			return TransformResult{}, &TransformError{Stage: "composite", Err: err}
		}
	}

	format := cfg.OutputFormat()
	data, err := e.codec.Encode(raster, format, cfg.Quality)
	if err != nil {
		return TransformResult{}, &TransformError{Stage: "encode", Err: err}
	}

	return TransformResult{
		Data:   data,
		Format: format,
		Width:  raster.Width(),
		Height: raster.Height(),
	}, nil
}
