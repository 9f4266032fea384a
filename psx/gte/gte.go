// Package gte implements the COP2 geometry transformation engine: the
// fixed-point matrix/vector pipeline driving 3D rotate-translate-project
// and lighting math, bridged to the CPU via the cpu.COP2 interface. Grounded
// on go-jeebie's jeebie/video/gpu.go for the "hardware unit with a register
// file plus a command dispatch switch" shape, generalized from 8-bit PPU
// registers to the GTE's 32 data + 32 control fixed-point registers.
package gte

import (
	"log/slog"

	"github.com/kestrel-systems/psxcore/psx/psxlog"
)

// GTE holds the full data and control register file plus the transient MAC
// accumulators and shift registers described in spec §4.3.
type GTE struct {
	// Data registers (COP2 register numbers 0..31).
	v       [3][3]int32 // V0,V1,V2 as {x,y,z}, sign-extended from int16
	rgbc    [4]uint8    // R,G,B,CODE
	otz     uint16
	ir      [4]int32 // IR0..IR3
	sxy     [3][2]int32
	sz      [4]uint16
	rgbFifo [3][4]uint8 // RGB0..RGB2, each {r,g,b,code}
	mac     [4]int32    // MAC0..MAC3
	lzcs    int32
	lzcr    int32

	// Control registers (COP2 control register numbers 0..31).
	rt        [3][3]int32 // rotation matrix, 1.3.12 fixed point
	tr        [3]int32
	light     [3][3]int32
	bk        [3]int32
	color     [3][3]int32
	fc        [3]int32
	ofx, ofy  int32
	h         uint16
	dqa       int32
	dqb       int32
	zsf3, zsf4 int32
	flag      uint32

	logger *slog.Logger
}

// New creates a GTE with all registers zeroed, matching hardware reset state.
func New(logger *slog.Logger) *GTE {
	return &GTE{logger: psxlog.Tagged(logger, "GTE")}
}

func p16(lo, hi int32) uint32 { return uint32(uint16(lo)) | uint32(uint16(hi))<<16 }
func unp16(v uint32) (lo, hi int32) {
	return int32(int16(uint16(v))), int32(int16(uint16(v >> 16)))
}

// ReadData implements cpu.COP2 for MFC2, spec §4.3.
func (g *GTE) ReadData(reg uint32) uint32 {
	switch reg {
	case 0:
		return p16(g.v[0][0], g.v[0][1])
	case 1:
		return uint32(g.v[0][2])
	case 2:
		return p16(g.v[1][0], g.v[1][1])
	case 3:
		return uint32(g.v[1][2])
	case 4:
		return p16(g.v[2][0], g.v[2][1])
	case 5:
		return uint32(g.v[2][2])
	case 6:
		return uint32(g.rgbc[0]) | uint32(g.rgbc[1])<<8 | uint32(g.rgbc[2])<<16 | uint32(g.rgbc[3])<<24
	case 7:
		return uint32(g.otz)
	case 8:
		return uint32(g.ir[0])
	case 9:
		return uint32(g.ir[1])
	case 10:
		return uint32(g.ir[2])
	case 11:
		return uint32(g.ir[3])
	case 12:
		return p16(g.sxy[0][0], g.sxy[0][1])
	case 13:
		return p16(g.sxy[1][0], g.sxy[1][1])
	case 14, 15:
		return p16(g.sxy[2][0], g.sxy[2][1])
	case 16:
		return uint32(g.sz[0])
	case 17:
		return uint32(g.sz[1])
	case 18:
		return uint32(g.sz[2])
	case 19:
		return uint32(g.sz[3])
	case 20:
		return rgbWord(g.rgbFifo[0])
	case 21:
		return rgbWord(g.rgbFifo[1])
	case 22:
		return rgbWord(g.rgbFifo[2])
	case 23:
		return 0
	case 24:
		return uint32(g.mac[0])
	case 25:
		return uint32(g.mac[1])
	case 26:
		return uint32(g.mac[2])
	case 27:
		return uint32(g.mac[3])
	case 28, 29:
		return g.irgb()
	case 30:
		return uint32(g.lzcs)
	case 31:
		return uint32(g.lzcr)
	default:
		return 0
	}
}

func rgbWord(c [4]uint8) uint32 {
	return uint32(c[0]) | uint32(c[1])<<8 | uint32(c[2])<<16 | uint32(c[3])<<24
}

// irgb packs IR1..3 (each clamped to 0..31, taken from the top 5 bits of the
// 8-bit-equivalent range) into a 15-bit 5:5:5 color, per hardware register 28.
func (g *GTE) irgb() uint32 {
	r := clampU5(g.ir[1] >> 7)
	gr := clampU5(g.ir[2] >> 7)
	b := clampU5(g.ir[3] >> 7)
	return uint32(r) | uint32(gr)<<5 | uint32(b)<<10
}

func clampU5(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > 31 {
		return 31
	}
	return v
}

// WriteData implements cpu.COP2 for MTC2.
func (g *GTE) WriteData(reg uint32, value uint32) {
	switch reg {
	case 0:
		g.v[0][0], g.v[0][1] = unp16(value)
	case 1:
		g.v[0][2] = int32(int16(value))
	case 2:
		g.v[1][0], g.v[1][1] = unp16(value)
	case 3:
		g.v[1][2] = int32(int16(value))
	case 4:
		g.v[2][0], g.v[2][1] = unp16(value)
	case 5:
		g.v[2][2] = int32(int16(value))
	case 6:
		g.rgbc = [4]uint8{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}
	case 7:
		g.otz = uint16(value)
	case 8:
		g.ir[0] = int32(int16(value))
	case 9:
		g.ir[1] = int32(int16(value))
	case 10:
		g.ir[2] = int32(int16(value))
	case 11:
		g.ir[3] = int32(int16(value))
	case 12:
		g.sxy[0][0], g.sxy[0][1] = unp16(value)
	case 13:
		g.sxy[1][0], g.sxy[1][1] = unp16(value)
	case 14:
		g.sxy[2][0], g.sxy[2][1] = unp16(value)
	case 15: // SXYP: write pushes through the shift register like a command result
		g.sxy[0] = g.sxy[1]
		g.sxy[1] = g.sxy[2]
		g.sxy[2][0], g.sxy[2][1] = unp16(value)
	case 16:
		g.sz[0] = uint16(value)
	case 17:
		g.sz[1] = uint16(value)
	case 18:
		g.sz[2] = uint16(value)
	case 19:
		g.sz[3] = uint16(value)
	case 20:
		g.rgbFifo[0] = [4]uint8{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}
	case 21:
		g.rgbFifo[1] = [4]uint8{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}
	case 22:
		g.rgbFifo[2] = [4]uint8{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}
	case 24:
		g.mac[0] = int32(value)
	case 25:
		g.mac[1] = int32(value)
	case 26:
		g.mac[2] = int32(value)
	case 27:
		g.mac[3] = int32(value)
	case 30:
		g.lzcs = int32(value)
		g.lzcr = int32(countLeadingZeroBits(value))
	}
}

// countLeadingZeroBits implements LZCR: count of leading bits matching the
// sign bit of the 32-bit value written to LZCS.
func countLeadingZeroBits(v uint32) int32 {
	if v&0x8000_0000 == 0 {
		n := 0
		for i := 31; i >= 0; i-- {
			if v&(1<<uint(i)) != 0 {
				break
			}
			n++
		}
		return int32(n)
	}
	n := 0
	for i := 31; i >= 0; i-- {
		if v&(1<<uint(i)) == 0 {
			break
		}
		n++
	}
	return int32(n)
}

// ReadControl implements cpu.COP2 for CFC2.
func (g *GTE) ReadControl(reg uint32) uint32 {
	switch reg {
	case 0:
		return p16(g.rt[0][0], g.rt[0][1])
	case 1:
		return p16(g.rt[0][2], g.rt[1][0])
	case 2:
		return p16(g.rt[1][1], g.rt[1][2])
	case 3:
		return p16(g.rt[2][0], g.rt[2][1])
	case 4:
		return uint32(g.rt[2][2])
	case 5:
		return uint32(g.tr[0])
	case 6:
		return uint32(g.tr[1])
	case 7:
		return uint32(g.tr[2])
	case 8:
		return p16(g.light[0][0], g.light[0][1])
	case 9:
		return p16(g.light[0][2], g.light[1][0])
	case 10:
		return p16(g.light[1][1], g.light[1][2])
	case 11:
		return p16(g.light[2][0], g.light[2][1])
	case 12:
		return uint32(g.light[2][2])
	case 13:
		return uint32(g.bk[0])
	case 14:
		return uint32(g.bk[1])
	case 15:
		return uint32(g.bk[2])
	case 16:
		return p16(g.color[0][0], g.color[0][1])
	case 17:
		return p16(g.color[0][2], g.color[1][0])
	case 18:
		return p16(g.color[1][1], g.color[1][2])
	case 19:
		return p16(g.color[2][0], g.color[2][1])
	case 20:
		return uint32(g.color[2][2])
	case 21:
		return uint32(g.fc[0])
	case 22:
		return uint32(g.fc[1])
	case 23:
		return uint32(g.fc[2])
	case 24:
		return uint32(g.ofx)
	case 25:
		return uint32(g.ofy)
	case 26:
		return uint32(int32(int16(g.h))) // sign-extended per real hardware quirk
	case 27:
		return uint32(g.dqa)
	case 28:
		return uint32(g.dqb)
	case 29:
		return uint32(g.zsf3)
	case 30:
		return uint32(g.zsf4)
	case 31:
		return g.flag
	default:
		return 0
	}
}

// WriteControl implements cpu.COP2 for CTC2.
func (g *GTE) WriteControl(reg uint32, value uint32) {
	switch reg {
	case 0:
		g.rt[0][0], g.rt[0][1] = unp16(value)
	case 1:
		g.rt[0][2], g.rt[1][0] = unp16(value)
	case 2:
		g.rt[1][1], g.rt[1][2] = unp16(value)
	case 3:
		g.rt[2][0], g.rt[2][1] = unp16(value)
	case 4:
		g.rt[2][2] = int32(int16(value))
	case 5:
		g.tr[0] = int32(value)
	case 6:
		g.tr[1] = int32(value)
	case 7:
		g.tr[2] = int32(value)
	case 8:
		g.light[0][0], g.light[0][1] = unp16(value)
	case 9:
		g.light[0][2], g.light[1][0] = unp16(value)
	case 10:
		g.light[1][1], g.light[1][2] = unp16(value)
	case 11:
		g.light[2][0], g.light[2][1] = unp16(value)
	case 12:
		g.light[2][2] = int32(int16(value))
	case 13:
		g.bk[0] = int32(value)
	case 14:
		g.bk[1] = int32(value)
	case 15:
		g.bk[2] = int32(value)
	case 16:
		g.color[0][0], g.color[0][1] = unp16(value)
	case 17:
		g.color[0][2], g.color[1][0] = unp16(value)
	case 18:
		g.color[1][1], g.color[1][2] = unp16(value)
	case 19:
		g.color[2][0], g.color[2][1] = unp16(value)
	case 20:
		g.color[2][2] = int32(int16(value))
	case 21:
		g.fc[0] = int32(value)
	case 22:
		g.fc[1] = int32(value)
	case 23:
		g.fc[2] = int32(value)
	case 24:
		g.ofx = int32(value)
	case 25:
		g.ofy = int32(value)
	case 26:
		g.h = uint16(value)
	case 27:
		g.dqa = int32(int16(value))
	case 28:
		g.dqb = int32(value)
	case 29:
		g.zsf3 = int32(int16(value))
	case 30:
		g.zsf4 = int32(int16(value))
	case 31:
		g.flag = value
	}
}
