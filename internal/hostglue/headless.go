package hostglue

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// SnapshotConfig configures periodic frame dumps in headless mode,
// grounded on go-jeebie's jeebie/backend/headless.SnapshotConfig.
type SnapshotConfig struct {
	Enabled   bool
	Interval  int
	Directory string
}

// HeadlessBackend implements Backend with no presentation surface at all,
// for batch/CI runs and `--frames N` smoke tests, grounded on go-jeebie's
// jeebie/backend/headless.Backend.
type HeadlessBackend struct {
	maxFrames  int
	frameCount int
	snapshot   SnapshotConfig
}

// NewHeadlessBackend constructs a headless backend that quits after
// maxFrames Update calls (0 = unbounded).
func NewHeadlessBackend(maxFrames int, snapshot SnapshotConfig) *HeadlessBackend {
	return &HeadlessBackend{maxFrames: maxFrames, snapshot: snapshot}
}

// Init implements Backend.
func (h *HeadlessBackend) Init(config Config) error {
	if h.snapshot.Enabled {
		if err := os.MkdirAll(h.snapshot.Directory, 0o755); err != nil {
			return fmt.Errorf("hostglue: headless: snapshot dir: %w", err)
		}
	}
	slog.Info("running headless", "max_frames", h.maxFrames)
	return nil
}

// Update implements Backend.
func (h *HeadlessBackend) Update(frame *Frame) ([]InputEvent, error) {
	h.frameCount++

	if h.snapshot.Enabled && h.snapshot.Interval > 0 && h.frameCount%h.snapshot.Interval == 0 {
		if err := h.saveSnapshot(frame); err != nil {
			slog.Warn("snapshot failed", "err", err)
		}
	}

	if h.maxFrames > 0 && h.frameCount >= h.maxFrames {
		return []InputEvent{{Action: ActionQuit}}, nil
	}
	return nil, nil
}

func (h *HeadlessBackend) saveSnapshot(frame *Frame) error {
	path := filepath.Join(h.snapshot.Directory, fmt.Sprintf("frame_%06d.raw", h.frameCount))
	buf := make([]byte, len(frame.VRAM)*2)
	for i, px := range frame.VRAM {
		buf[i*2] = byte(px)
		buf[i*2+1] = byte(px >> 8)
	}
	return os.WriteFile(path, buf, 0o644)
}

// Cleanup implements Backend.
func (h *HeadlessBackend) Cleanup() error { return nil }
