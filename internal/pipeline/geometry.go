package pipeline

import (
	"math"

	"github.com/pixelgate/pixelgate/internal/domain"
)

// Geometry is the resolved pixel plan for one transform: the
// dimensions to resize to and whether a crop pass follows.
type Geometry struct {
	Width      int
	Height     int
	ShouldCrop bool
}

// ResolveGeometry computes target dimensions from the requested
// width/height/fit against the source's natural dimensions. A zero
// target dimension means it was not requested.
//
// All derived dimensions use scaleDim, so resize and crop agree on
// rounding.
func ResolveGeometry(naturalW, naturalH, targetW, targetH int, fit domain.Fit) Geometry {
	switch {
	case targetW == 0 && targetH == 0:
		return Geometry{Width: naturalW, Height: naturalH}
	case targetH == 0:
		return Geometry{Width: targetW, Height: scaleDim(targetW, naturalH, naturalW)}
	case targetW == 0:
		return Geometry{Width: scaleDim(targetH, naturalW, naturalH), Height: targetH}
	}

	// naturalW/naturalH > targetW/targetH, compared without division.
	wider := naturalW*targetH > naturalH*targetW

	switch fit {
	case domain.FitFill:
		return Geometry{Width: targetW, Height: targetH}
	case domain.FitContain:
		if wider {
			return Geometry{Width: targetW, Height: scaleDim(targetW, naturalH, naturalW)}
		}
		return Geometry{Width: scaleDim(targetH, naturalW, naturalH), Height: targetH}
	default: // cover
		if wider {
			return Geometry{Width: scaleDim(targetH, naturalW, naturalH), Height: targetH, ShouldCrop: true}
		}
		return Geometry{Width: targetW, Height: scaleDim(targetW, naturalH, naturalW), ShouldCrop: true}
	}
}

// scaleDim rounds value*num/den to the nearest integer (halves away
// from zero) with a floor of one pixel.
func scaleDim(value, num, den int) int {
	if den == 0 {
		return 1
	}
	scaled := int(math.Round(float64(value) * float64(num) / float64(den)))
	if scaled < 1 {
		return 1
	}
	return scaled
}

// cropOffsets positions a targetW x targetH window inside a
// currentW x currentH raster. Geometry guarantees current >= target
// on the cropped axis; offsets are clamped to zero regardless.
func cropOffsets(currentW, currentH, targetW, targetH int, anchor domain.CropAnchor) (x, y int) {
	x = (currentW - targetW) / 2
	y = (currentH - targetH) / 2

	switch anchor {
	case domain.CropTop:
		y = 0
	case domain.CropBottom:
		y = currentH - targetH
	case domain.CropLeft:
		x = 0
	case domain.CropRight:
		x = currentW - targetW
	}

	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return x, y
}
