package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatQuadWithOffsetProducesTwoTriangles(t *testing.T) {
	g := New(nil)

	words := []uint32{
		0x28_00_FF_00,
		0x0000_0000,
		0x0000_0040,
		0x0040_0000,
		0x0040_0040,
	}
	for _, w := range words {
		g.WriteGP0(w)
	}

	require.True(t, g.TickVBlank(kVblankPeriodCycles))

	dl := g.DrawList()
	require.Len(t, dl.Triangles, 2)

	tri1 := dl.Triangles[0]
	assert.Equal(t, [3]Vertex{
		{X: 0, Y: 0, R: 0, G: 255, B: 0},
		{X: 64, Y: 0, R: 0, G: 255, B: 0},
		{X: 0, Y: 64, R: 0, G: 255, B: 0},
	}, tri1.V)
	assert.False(t, tri1.Textured)
	assert.False(t, tri1.SemiTransparent)
	assert.False(t, tri1.RawTexture)

	tri2 := dl.Triangles[1]
	assert.Equal(t, [3]Vertex{
		{X: 64, Y: 0, R: 0, G: 255, B: 0},
		{X: 64, Y: 64, R: 0, G: 255, B: 0},
		{X: 0, Y: 64, R: 0, G: 255, B: 0},
	}, tri2.V)
}

func TestGP0ConsumesExactParameterCount(t *testing.T) {
	g := New(nil)
	// Gouraud-shaded textured triangle: 3 + 2 + 3 = 8 params.
	g.WriteGP0(0x34_00_00_00)
	assert.Equal(t, gp0CollectingParams, g.state)
	for i := 0; i < 7; i++ {
		g.WriteGP0(uint32(i))
		assert.Equal(t, gp0CollectingParams, g.state, "word %d should not yet complete the command", i)
	}
	g.WriteGP0(7)
	assert.Equal(t, gp0Idle, g.state, "the 8th word must return the FSM to idle")
}

func TestCPUToVRAMThenVRAMToCPURoundTrips(t *testing.T) {
	g := New(nil)

	g.WriteGP0(0xA0_00_00_00)
	g.WriteGP0(0x0000_0000)
	g.WriteGP0(0x0001_0002) // w=2, h=1
	assert.Equal(t, gp0ReceivingVRAMData, g.state)

	g.WriteGP0(0x2222_1111) // two pixels: 0x1111, 0x2222
	assert.Equal(t, gp0Idle, g.state)

	g.WriteGP0(0xC0_00_00_00)
	g.WriteGP0(0x0000_0000)
	g.WriteGP0(0x0001_0002)

	word := g.ReadGPUREAD()
	assert.Equal(t, uint32(0x2222_1111), word)
}

func TestFillRectWritesClampedColor(t *testing.T) {
	g := New(nil)
	g.WriteGP0(0x02_80_40_20) // fill rect, color (0x20,0x40,0x80)
	g.WriteGP0(0x0000_0000)   // dest x=0,y=0
	g.WriteGP0(0x0001_0010)   // w=16,h=1

	assert.Equal(t, packColor15(0x20, 0x40, 0x80, false), g.vram.get(0, 0))
}

func TestPolylineTerminatorEndsFSM(t *testing.T) {
	g := New(nil)
	g.WriteGP0(0x48_00_00_00) // flat polyline
	assert.Equal(t, gp0Polyline, g.state)

	g.WriteGP0(0x0000_0000)
	g.WriteGP0(0x0010_0010)
	g.WriteGP0(0x5000_5000) // terminator
	assert.Equal(t, gp0Idle, g.state)
	assert.Len(t, g.active.Triangles, 2)
}

func TestGP1ResetClearsStateAndSetsPALDefault(t *testing.T) {
	g := New(nil)
	g.WriteGP0(0x28_00_00_00) // begin a command, leaving FSM non-idle
	require.Equal(t, gp0CollectingParams, g.state)

	g.WriteGP1(0x0000_0000)
	assert.Equal(t, gp0Idle, g.state)
	assert.NotZero(t, g.ReadGPUSTAT()&(1<<statVideoModeBit))
}

func TestGP1AckIRQClearsStatusBit(t *testing.T) {
	g := New(nil)
	g.gpustat |= 1 << statIRQ1Bit
	g.WriteGP1(0x0200_0000)
	assert.Zero(t, g.ReadGPUSTAT()&(1<<statIRQ1Bit))
}
