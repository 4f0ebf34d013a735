package pipeline

import "github.com/pixelgate/pixelgate/internal/domain"

// Raster is a decoded in-memory image. Each request decodes its own
// raster; implementations never share pixel data between requests.
type Raster interface {
	Width() int
	Height() int
}

// Codec is the injected raster capability the engine orchestrates.
// The default build uses the standard library decoder with the
// golang.org/x/image scaler; the govips build tag swaps in libvips.
type Codec interface {
	Decode(data []byte) (Raster, error)
	Resize(r Raster, width, height int) (Raster, error)
	Crop(r Raster, x, y, width, height int) (Raster, error)
	CompositeOver(r Raster, width, height int, background domain.RGB) (Raster, error)
	Encode(r Raster, format domain.Format, quality int) ([]byte, error)
}
