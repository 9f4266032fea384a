// Package timing provides host frame-pacing helpers: the PlayStation's
// CPU/video clock constants and a family of Limiter implementations that
// throttle emulation to real time, grounded on go-jeebie/jeebie/timing's
// Limiter interface and its ticker/adaptive implementations.
package timing

import "time"

// Limiter paces emulation to real time, one call per video frame.
type Limiter interface {
	// WaitForNextFrame blocks until it's time for the next frame. Returns
	// immediately if timing is behind schedule.
	WaitForNextFrame()

	// Reset resets the timing state, useful after a pause or seek.
	Reset()
}

// NewNoOpLimiter returns a limiter that never blocks, for headless runs.
func NewNoOpLimiter() Limiter { return noOpLimiter{} }

type noOpLimiter struct{}

func (noOpLimiter) WaitForNextFrame() {}
func (noOpLimiter) Reset()            {}

// PlayStation system clock, spec §4.1: the 33.8688 MHz CPU clock and the
// NTSC/PAL video refresh rates it's derived from.
const (
	CPUFrequencyNTSC = 33_868_800
	CPUFrequencyPAL  = 33_868_800 // same base clock; PAL differs in line/field count, not CPU rate

	// CyclesPerFrame is a nominal budget: the CPU clock divided by a 60 Hz
	// (NTSC) or 50 Hz (PAL) refresh (33,868,800 / 60 and 33,868,800 / 50).
	CyclesPerFrameNTSC = 564480
	CyclesPerFramePAL  = 677376

	FPSNTSC = 59.94
	FPSPAL  = 50.0
)

// FrameDuration returns the target wall-clock duration of one video frame
// for the given refresh rate.
func FrameDuration(fps float64) time.Duration {
	return time.Duration(float64(time.Second) / fps)
}
