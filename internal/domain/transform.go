package domain

import (
	"encoding/hex"
	"fmt"
	"path"
	"strings"
)

// Fit selects how a requested bounding box interacts with the source
// aspect ratio.
type Fit string

const (
	FitCover   Fit = "cover"
	FitContain Fit = "contain"
	FitFill    Fit = "fill"
)

func ParseFit(raw string) (Fit, error) {
	switch raw {
	case "":
		return FitCover, nil
	case string(FitCover), string(FitContain), string(FitFill):
		return Fit(raw), nil
	default:
		return "", fmt.Errorf("unsupported fit: %q", raw)
	}
}

// Format is an output image format. The empty value means "preserve
// the source format".
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

func ParseFormat(raw string) (Format, error) {
	switch raw {
	case "":
		return "", nil
	case string(FormatJPEG), string(FormatPNG):
		return Format(raw), nil
	default:
		return "", fmt.Errorf("unsupported format: %q", raw)
	}
}

// FormatFromPath infers a format from the lowercased trailing
// extension. Unrecognized extensions resolve to JPEG.
func FormatFromPath(p string) Format {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")) {
	case "png":
		return FormatPNG
	default:
		return FormatJPEG
	}
}

func (f Format) Extension() string {
	if f == FormatPNG {
		return "png"
	}
	return "jpg"
}

func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Lossy reports whether encoding this format consumes the quality
// setting.
func (f Format) Lossy() bool {
	return f == FormatJPEG
}

// CropAnchor is the reference point used when trimming excess pixels
// under cover fit.
type CropAnchor string

const (
	CropCenter CropAnchor = "center"
	CropTop    CropAnchor = "top"
	CropBottom CropAnchor = "bottom"
	CropLeft   CropAnchor = "left"
	CropRight  CropAnchor = "right"
)

func ParseCrop(raw string) (CropAnchor, error) {
	switch raw {
	case "":
		return CropCenter, nil
	case string(CropCenter), string(CropTop), string(CropBottom), string(CropLeft), string(CropRight):
		return CropAnchor(raw), nil
	default:
		return "", fmt.Errorf("unsupported crop anchor: %q", raw)
	}
}

// RGB is an opaque background color.
type RGB struct {
	R, G, B uint8
}

func (c RGB) Hex() string {
	return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHexColor accepts exactly six hex digits, no prefix.
func ParseHexColor(raw string) (RGB, error) {
	if len(raw) != 6 {
		return RGB{}, fmt.Errorf("invalid background color: %q (expected 6 hex digits)", raw)
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid background color: %q", raw)
	}
	return RGB{R: decoded[0], G: decoded[1], B: decoded[2]}, nil
}

// TransformConfig is the validated, normalized form of one transform
// request. It is built once by the validator and never mutated
// afterwards. A zero Width or Height means the dimension was not
// requested.
type TransformConfig struct {
	Bucket     string
	Path       string
	Width      int
	Height     int
	Fit        Fit
	Format     Format
	Quality    int
	Background *RGB
	Crop       CropAnchor
	NoCache    bool
}

// OutputFormat resolves the encode format: the explicit request if
// present, otherwise the format inferred from the source path.
func (c TransformConfig) OutputFormat() Format {
	if c.Format != "" {
		return c.Format
	}
	return FormatFromPath(c.Path)
}
