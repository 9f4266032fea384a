package timing

import (
	"log/slog"
	"time"

	"github.com/kestrel-systems/psxcore/psx/psxlog"
)

// AdaptiveLimiter combines sleep (for efficiency) with short busy-waits
// (for accuracy) and periodically corrects for drift, grounded on
// go-jeebie/jeebie/timing.AdaptiveLimiter.
type AdaptiveLimiter struct {
	logger *slog.Logger

	targetFrameTime time.Duration
	nextFrameTime   time.Time
	frameCounter    int64
}

// NewAdaptiveLimiter creates an adaptive limiter paced at fps frames per
// second.
func NewAdaptiveLimiter(logger *slog.Logger, fps float64) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		logger:          psxlog.Tagged(logger, "TIMING"),
		targetFrameTime: FrameDuration(fps),
		nextFrameTime:   time.Now(),
	}
}

func (a *AdaptiveLimiter) WaitForNextFrame() {
	now := time.Now()
	sleepTime := a.nextFrameTime.Sub(now)

	switch {
	case sleepTime > 0 && sleepTime < 2*time.Millisecond:
		for time.Now().Before(a.nextFrameTime) {
		}
	case sleepTime > 0:
		time.Sleep(sleepTime - time.Millisecond)
		for time.Now().Before(a.nextFrameTime) {
		}
	case sleepTime < -5*time.Millisecond:
		a.nextFrameTime = now
	}

	a.nextFrameTime = a.nextFrameTime.Add(a.targetFrameTime)
	a.frameCounter++

	if a.frameCounter%60 == 0 {
		drift := time.Now().Sub(a.nextFrameTime)
		if drift.Abs() > 10*time.Millisecond {
			a.nextFrameTime = a.nextFrameTime.Add(drift / 10)
			a.logger.Debug("frame timing drift correction", "drift_ms", drift.Milliseconds())
		}
	}
}

func (a *AdaptiveLimiter) Reset() {
	a.nextFrameTime = time.Now()
	a.frameCounter = 0
}
