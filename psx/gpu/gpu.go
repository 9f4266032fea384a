// Package gpu implements the GP0/GP1 command processor, VRAM storage, and
// draw-list export described in spec §4.5. Grounded on go-jeebie's
// jeebie/video.GPU: a hardware unit owning its own pixel storage, a
// register-driven state machine advanced by Tick, and a frame-boundary
// publish step, generalized from the Game Boy PPU's per-scanline pixel
// pipeline to the PS1 GPU's command-word FIFO and VRAM blitter.
package gpu

import (
	"log/slog"

	"github.com/kestrel-systems/psxcore/psx/psxlog"
)

// GPUSTAT bit positions, spec §4.5.
const (
	statTexPageXShift    = 0
	statTexPageYBit      = 4
	statSemiTransShift   = 5
	statTexDepthShift    = 7
	statDitherBit        = 9
	statDrawToDisplayBit = 10
	statMaskSetBit       = 11
	statMaskCheckBit     = 12
	statInterlaceFieldBit = 13
	statReverseBit       = 14
	statTexDisableBit    = 15
	statHResShift        = 17
	statVideoModeBit     = 20
	statColorDepthBit    = 21
	statVerticalInterlaceBit = 22
	statDisplayDisableBit = 23
	statIRQ1Bit          = 24
	statDMAReadyBit      = 25
	statGP0ReadyBit      = 26
	statVRAMReadyBit     = 27
	statDMABlockReadyBit = 28
	statDMADirShift      = 29
	statOddLineBit       = 31
)

// kVblankPeriodCycles approximates one NTSC frame's worth of CPU cycles
// (33.8688 MHz / 60 Hz); spec.md's non-goals exclude cycle-accurate video
// timing, matching go-jeebie's own fixed scanlineCycles approximation.
const kVblankPeriodCycles = 564480

type gp0State int

const (
	gp0Idle gp0State = iota
	gp0CollectingParams
	gp0ReceivingVRAMData
	gp0Polyline
)

// GPU is the GP0/GP1 command processor.
type GPU struct {
	vram vram

	gpustat uint32
	gpuread uint32

	state        gp0State
	cmdWord      uint32
	paramsNeeded int
	paramBuf     []uint32

	texPageX, texPageY       uint16
	semiTransMode            uint8
	texDepth                 TexDepth
	texWindowMaskX, texWindowMaskY     uint8
	texWindowOffX, texWindowOffY       uint8
	clipX1, clipY1, clipX2, clipY2     int32
	drawOffsetX, drawOffsetY int32
	maskSetOnDraw, maskCheckOnDraw bool

	vramXfer vramTransfer
	readXfer vramTransfer

	polylineGouraud bool
	polylinePhase   int // 0 = expect color (gouraud only) or XY, 1 = expect XY after color
	polylineHave    bool
	polylinePrev    Vertex
	polylinePending Vertex

	displayStartX, displayStartY     uint16
	displayRangeX1, displayRangeX2   uint16
	displayRangeY1, displayRangeY2   uint16

	vblankAccum  int
	interlaceOdd bool
	frameCount   uint64
	writeSeq     uint64

	active   DrawList
	complete DrawList

	logger *slog.Logger
}

// vramTransfer tracks an in-progress CPU<->VRAM blit cursor, spec §4.5
// "VRAM transfers".
type vramTransfer struct {
	active    bool
	destX, destY int
	width, height int
	curX, curY   int
	remaining    int // pixels remaining
}

// New constructs a GPU with GPUSTAT reset to its power-on defaults.
func New(logger *slog.Logger) *GPU {
	g := &GPU{logger: psxlog.Tagged(logger, "GPU")}
	g.reset()
	return g
}

func (g *GPU) reset() {
	g.state = gp0Idle
	g.paramBuf = g.paramBuf[:0]
	g.vramXfer = vramTransfer{}
	g.readXfer = vramTransfer{}
	g.texPageX, g.texPageY = 0, 0
	g.semiTransMode = 0
	g.texDepth = TexDepthNone
	g.clipX1, g.clipY1, g.clipX2, g.clipY2 = 0, 0, 0, 0
	g.drawOffsetX, g.drawOffsetY = 0, 0
	g.maskSetOnDraw, g.maskCheckOnDraw = false, false
	g.displayStartX, g.displayStartY = 0, 0
	g.displayRangeX1, g.displayRangeX2 = 0x200, 0x200+256*10
	g.displayRangeY1, g.displayRangeY2 = 0x10, 0x10+240
	g.active.reset()
	g.complete.reset()
	// PAL default per spec §4.5 "Reset (0x00)... sets GPUSTAT to a PAL default".
	g.gpustat = 1 << statVideoModeBit
	g.gpustat |= 1 << statDisplayDisableBit
}

// ReadGPUSTAT implements bus.GPU.
func (g *GPU) ReadGPUSTAT() uint32 {
	stat := g.gpustat
	stat |= 1 << statGP0ReadyBit
	stat |= 1 << statDMABlockReadyBit
	if g.readXfer.active {
		stat |= 1 << statVRAMReadyBit
	}
	stat |= 1 << statDMAReadyBit
	return stat
}

// ReadGPUREAD implements bus.GPU, returning the next word of an active
// VRAM-to-CPU transfer, or the last latched GP0 value otherwise.
func (g *GPU) ReadGPUREAD() uint32 {
	if g.readXfer.active {
		return g.readTransferWord()
	}
	return g.gpuread
}

// TickVBlank implements bus.GPU: advance the VBlank divider and report
// whether a frame boundary was crossed, spec §4.5 "VBlank".
func (g *GPU) TickVBlank(cycles int) bool {
	g.vblankAccum += cycles
	if g.vblankAccum < kVblankPeriodCycles {
		return false
	}
	g.vblankAccum -= kVblankPeriodCycles

	if g.gpustat&(1<<statVerticalInterlaceBit) != 0 {
		g.interlaceOdd = !g.interlaceOdd
		if g.interlaceOdd {
			g.gpustat |= 1 << statInterlaceFieldBit
		} else {
			g.gpustat &^= 1 << statInterlaceFieldBit
		}
	}

	g.complete, g.active = g.active, g.complete
	g.active.reset()
	g.frameCount++
	g.writeSeq++
	return true
}

// DMAReadWord implements bus.GPU: DMA2 device->RAM reads pull the same word
// stream GPUREAD exposes.
func (g *GPU) DMAReadWord() uint32 { return g.ReadGPUREAD() }

// DMAWriteWord implements bus.GPU: DMA2 RAM->device writes feed the same
// FIFO as a CPU GP0 MMIO write.
func (g *GPU) DMAWriteWord(word uint32) { g.WriteGP0(word) }

// DrawList returns the most recently completed frame's primitive list,
// spec §4.5 "ready_draw_list() → const ref".
func (g *GPU) DrawList() *DrawList { return &g.complete }
