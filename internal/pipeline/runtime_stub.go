//go:build !govips || !cgo

package pipeline

// Startup and Shutdown are no-ops without the govips build tag.
func Startup() error {
	return nil
}

func Shutdown() {}

func newCodec() Codec {
	return stdCodec{}
}
