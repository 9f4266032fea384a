// Package hostglue is the §6 "host embedding layer": the contract a host
// application implements to drive the core and present its output, plus
// the concrete tcell terminal and (build-tag gated) SDL2 adapters.
// Grounded on go-jeebie's jeebie/backend package: a small Backend interface
// (Init/Update/Cleanup) backed by interchangeable terminal/SDL2/headless
// implementations, generalized from a single Game Boy framebuffer to a
// PS1 VRAM snapshot plus draw-list/CD-audio introspection.
package hostglue

import (
	"github.com/kestrel-systems/psxcore/psx/debug"
)

// Frame is what a Backend renders each Update: the GPU's VRAM snapshot
// (spec §4.5/§5's "VRAM snapshot... 1024x512 16-bit pixels and a
// monotonically increasing write_seq"), plus optional debug data.
type Frame struct {
	VRAM     []uint16 // 1024x512, row-major, 15-bit BGR + mask bit
	WriteSeq uint64
	Debug    *debug.Snapshot // nil unless ShowDebug is set
}

// Backend represents a complete host presentation surface: rendering,
// input capture, and backend-specific features (debug overlay, snapshots).
type Backend interface {
	// Init configures the backend. Required before the first Update.
	Init(config Config) error

	// Update renders frame and returns any host input events collected
	// since the previous call.
	Update(frame *Frame) ([]InputEvent, error)

	// Cleanup releases backend resources.
	Cleanup() error
}

// InputAction is a host-level action a Backend can report, independent of
// how any particular backend captures it.
type InputAction int

const (
	ActionNone InputAction = iota
	ActionQuit
	ActionPauseToggle
	ActionStepInstruction
	ActionStepFrame
	ActionDebugToggle
)

// InputEvent is one action reported by a backend's Update call.
type InputEvent struct {
	Action InputAction
}

// Config holds configuration shared by every Backend implementation,
// mirroring go-jeebie's backend.BackendConfig.
type Config struct {
	Title     string
	ShowDebug bool
}
