//go:build !sdl2

package hostglue

import "fmt"

// SDL2Backend stub for builds without the sdl2 tag, grounded on
// go-jeebie's backend/sdl2_stub.go: the default build has no cgo
// dependency, and choosing this backend just reports why.
type SDL2Backend struct{}

// NewSDL2Backend constructs the stub. sampleFn is accepted for interface
// parity with the real backend and ignored.
func NewSDL2Backend(sampleFn func(n int) []int16) *SDL2Backend {
	return &SDL2Backend{}
}

func (s *SDL2Backend) Init(config Config) error {
	return fmt.Errorf("hostglue: SDL2 backend not available - build with -tags sdl2 and install SDL2 development libraries")
}

func (s *SDL2Backend) Update(frame *Frame) ([]InputEvent, error) {
	return nil, fmt.Errorf("hostglue: SDL2 backend not available")
}

func (s *SDL2Backend) Cleanup() error { return nil }
