package hostglue

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBufferEvictsOldestOnOverflow(t *testing.T) {
	buf := NewLogBuffer(2)
	buf.Add(LogEntry{Message: "a"})
	buf.Add(LogEntry{Message: "b"})
	buf.Add(LogEntry{Message: "c"})

	recent := buf.GetRecent(10)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].Message)
	assert.Equal(t, "c", recent[1].Message)
}

func TestLogBufferHandlerFormatsAttrs(t *testing.T) {
	buf := NewLogBuffer(4)
	handler := NewLogBufferHandler(buf, slog.LevelInfo)
	logger := slog.New(handler)
	logger.Info("boot", "pc", "0x80010000")

	recent := buf.GetRecent(1)
	require.Len(t, recent, 1)
	assert.Contains(t, recent[0].Message, "boot")
	assert.Contains(t, recent[0].Message, "pc=0x80010000")
}

func TestLogBufferHandlerFiltersBelowLevel(t *testing.T) {
	buf := NewLogBuffer(4)
	handler := NewLogBufferHandler(buf, slog.LevelWarn)
	assert.False(t, handler.Enabled(nil, slog.LevelDebug))
	assert.True(t, handler.Enabled(nil, slog.LevelError))
}

func TestPixelToColorQuantizesShade(t *testing.T) {
	_, blackShade := PixelToColor(0x0000)
	_, whiteShade := PixelToColor(0x7FFF)
	assert.Equal(t, 0, blackShade)
	assert.Equal(t, 3, whiteShade)
}

func TestShadeCharPicksBlockGlyph(t *testing.T) {
	assert.Equal(t, '█', ShadeChar(1, 1))
	assert.Equal(t, '▄', ShadeChar(3, 0))
	assert.Equal(t, '▀', ShadeChar(0, 3))
}

func TestHeadlessBackendQuitsAfterMaxFrames(t *testing.T) {
	h := NewHeadlessBackend(2, SnapshotConfig{})
	require.NoError(t, h.Init(Config{}))

	events, err := h.Update(&Frame{})
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = h.Update(&Frame{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ActionQuit, events[0].Action)
}

func TestHeadlessBackendWritesSnapshots(t *testing.T) {
	dir := t.TempDir()
	h := NewHeadlessBackend(0, SnapshotConfig{Enabled: true, Interval: 1, Directory: dir})
	require.NoError(t, h.Init(Config{}))

	_, err := h.Update(&Frame{VRAM: make([]uint16, 4)})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "frame_000001.raw", filepath.Base(entries[0].Name()))
}
