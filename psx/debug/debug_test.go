package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kestrel-systems/psxcore/psx/gpu"
)

func TestCreateDisassemblyCentersOnPC(t *testing.T) {
	// 16 NOP words (SLL $0,$0,0 == 0x00000000), PC at the 9th.
	bytes := make([]byte, 16*4)
	snap := &MemorySnapshot{StartAddr: 0x1000, Bytes: bytes}

	lines := CreateDisassembly(snap, 0x1000+8*4, 6)
	assert.NotEmpty(t, lines)

	foundCurrent := false
	for _, l := range lines {
		if l.IsCurrent {
			foundCurrent = true
			assert.Equal(t, uint32(0x1000+8*4), l.Address)
		}
	}
	assert.True(t, foundCurrent)
	assert.LessOrEqual(t, len(lines), 6)
}

func TestCreateDisassemblyOutsideSnapshotReportsPlaceholder(t *testing.T) {
	snap := &MemorySnapshot{StartAddr: 0x1000, Bytes: make([]byte, 16)}
	lines := CreateDisassembly(snap, 0x9000, 6)
	require := assert.New(t)
	require.Len(lines, 1)
	require.True(lines[0].IsCurrent)
}

func TestSummarizeDrawListCountsFlags(t *testing.T) {
	stats := SummarizeDrawList(nil)
	assert.Equal(t, DrawListStats{}, stats)

	dl := &gpu.DrawList{Triangles: []gpu.Triangle{
		{Textured: true},
		{SemiTransparent: true},
		{Textured: true, SemiTransparent: true},
	}}
	assert.Equal(t, DrawListStats{TriangleCount: 3, TexturedCount: 2, SemiTransCount: 2}, SummarizeDrawList(dl))
}

func TestCaptureMemoryWindowClampsToBounds(t *testing.T) {
	ram := make([]byte, 16)
	for i := range ram {
		ram[i] = byte(i)
	}
	snap := CaptureMemoryWindow(ram, 10, 100)
	assert.Equal(t, uint32(10), snap.StartAddr)
	assert.Len(t, snap.Bytes, 6)
	assert.Equal(t, byte(10), snap.Bytes[0])
}

func TestCaptureCDROMStateHandlesNil(t *testing.T) {
	assert.Equal(t, CDROMState{}, CaptureCDROMState(nil))
}
