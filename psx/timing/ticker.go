package timing

import "time"

// TickerLimiter uses time.Ticker for simple, consistent frame pacing.
// Less accurate than AdaptiveLimiter but simpler and good enough for most
// runs, grounded on go-jeebie/jeebie/timing.TickerLimiter.
type TickerLimiter struct {
	ticker *time.Ticker
	ch     <-chan time.Time
	fps    float64
}

// NewTickerLimiter creates a limiter paced at fps frames per second.
func NewTickerLimiter(fps float64) *TickerLimiter {
	ticker := time.NewTicker(FrameDuration(fps))
	return &TickerLimiter{ticker: ticker, ch: ticker.C, fps: fps}
}

func (t *TickerLimiter) WaitForNextFrame() {
	<-t.ch
}

func (t *TickerLimiter) Reset() {
	t.ticker.Reset(FrameDuration(t.fps))
}

// Stop releases the underlying ticker. Call when done with the limiter.
func (t *TickerLimiter) Stop() {
	t.ticker.Stop()
}
