package gte

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ctrl(lo, hi int32) uint32 {
	return uint32(uint16(lo)) | uint32(uint16(hi))<<16
}

func TestRTPSIdentityProjection(t *testing.T) {
	g := New(nil)

	// Identity rotation matrix, zero translation.
	g.WriteControl(0, ctrl(0x1000, 0))
	g.WriteControl(1, ctrl(0, 0))
	g.WriteControl(2, ctrl(0x1000, 0))
	g.WriteControl(3, ctrl(0, 0))
	g.WriteControl(4, uint32(int32(0x1000)))
	g.WriteControl(24, 0) // OFX
	g.WriteControl(25, 0) // OFY
	g.WriteControl(26, 1) // H

	// Vertex placed directly ahead on Z so SZ3 is nonzero.
	g.WriteData(0, ctrl(64, 32))
	g.WriteData(1, uint32(int32(100)))

	g.Command(0x01) // RTPS, sf=0, lm=0

	assert.NotZero(t, g.sz[3])
	assert.Equal(t, int32(64), g.v[0][0])
	assert.Equal(t, int32(32), g.v[0][1])
}

func TestRTPSZeroDepthUsesClampCeiling(t *testing.T) {
	g := New(nil)
	g.WriteControl(26, 0x1000) // H
	// Rotation = identity, translation = 0, vertex z = 0 -> SZ3 = 0
	g.WriteControl(0, ctrl(0x1000, 0))
	g.WriteControl(2, ctrl(0x1000, 0))
	g.WriteControl(4, uint32(int32(0x1000)))

	g.Command(0x01)

	assert.Equal(t, uint16(0), g.sz[3])
}

func TestRTPTPlacesVerticesDirectly(t *testing.T) {
	g := New(nil)
	g.WriteControl(0, ctrl(0x1000, 0))
	g.WriteControl(2, ctrl(0x1000, 0))
	g.WriteControl(4, uint32(int32(0x1000)))
	g.WriteControl(26, 1)

	g.WriteData(0, ctrl(0, 0))
	g.WriteData(1, uint32(int32(1)))
	g.WriteData(2, ctrl(1, 1))
	g.WriteData(3, uint32(int32(2)))
	g.WriteData(4, ctrl(2, 2))
	g.WriteData(5, uint32(int32(3)))

	g.Command(0x30) // RTPT

	sz1, sz2, sz3 := g.sz[1], g.sz[2], g.sz[3]
	assert.NotEqual(t, sz1, sz2)
	assert.NotEqual(t, sz2, sz3)
}

func TestNCLIPWindingSign(t *testing.T) {
	g := New(nil)
	g.WriteData(12, ctrl(0, 0))
	g.WriteData(13, ctrl(10, 0))
	g.WriteData(14, ctrl(0, 10))

	g.Command(0x06) // NCLIP

	assert.True(t, g.mac[0] > 0, "counter-clockwise triangle yields positive MAC0")
}

func TestAVSZ3Averages(t *testing.T) {
	g := New(nil)
	g.sz[1], g.sz[2], g.sz[3] = 100, 200, 300
	g.WriteControl(29, uint32(int32(0x1000))) // ZSF3 = 1.0 in 4.12

	g.Command(0x2D) // AVSZ3

	assert.Equal(t, uint16(600), g.otz)
}

func TestSQRSaturatesAndSquares(t *testing.T) {
	g := New(nil)
	g.WriteData(9, uint32(0xFFFF_FED4)) // IR1 = -300
	g.WriteData(10, uint32(int32(50)))  // IR2
	g.WriteData(11, uint32(int32(10)))  // IR3

	g.Command(0x28) // SQR, sf=0

	assert.Equal(t, int32(90000), g.mac[1])
	assert.Equal(t, int32(32767), g.ir[1], "squares overflowing 16 bits saturate")
}

func TestMFC2RoundTripsMTC2(t *testing.T) {
	g := New(nil)
	g.WriteData(9, 0xFFFF_FFFB) // -5
	assert.Equal(t, uint32(0xFFFF_FFFB), g.ReadData(9))
}
