package debug

import (
	"github.com/kestrel-systems/psxcore/psx/addr"
	"github.com/kestrel-systems/psxcore/psx/cdrom"
	"github.com/kestrel-systems/psxcore/psx/cpu"
	"github.com/kestrel-systems/psxcore/psx/gpu"
)

// CaptureCPUState snapshots c's register file.
func CaptureCPUState(c *cpu.CPU, cycles uint64) CPUState {
	return CPUState{
		GPR:    c.GPR,
		HI:     c.HI,
		LO:     c.LO,
		PC:     c.GetPC(),
		Status: c.COP0Reg(addr.COP0Status),
		Cause:  c.COP0Reg(addr.COP0Cause),
		EPC:    c.COP0Reg(addr.COP0EPC),
		Cycles: cycles,
	}
}

// CaptureMemoryWindow builds a MemorySnapshot of length n bytes of ram
// starting at start, clamped to ram's bounds.
func CaptureMemoryWindow(ram []byte, start uint32, n int) MemorySnapshot {
	if int(start) >= len(ram) {
		return MemorySnapshot{StartAddr: start}
	}
	end := int(start) + n
	if end > len(ram) {
		end = len(ram)
	}
	buf := make([]byte, end-int(start))
	copy(buf, ram[start:end])
	return MemorySnapshot{StartAddr: start, Bytes: buf}
}

// SummarizeDrawList reduces a GPU draw list to counts, for a debug view
// that doesn't need the full triangle data.
func SummarizeDrawList(dl *gpu.DrawList) DrawListStats {
	if dl == nil {
		return DrawListStats{}
	}
	var stats DrawListStats
	stats.TriangleCount = len(dl.Triangles)
	for _, t := range dl.Triangles {
		if t.Textured {
			stats.TexturedCount++
		}
		if t.SemiTransparent {
			stats.SemiTransCount++
		}
	}
	return stats
}

// CaptureCDROMState reads c's FIFO depths and latched registers.
func CaptureCDROMState(c *cdrom.Cdrom) CDROMState {
	if c == nil {
		return CDROMState{}
	}
	status, irqFlags, irqEnable, paramLen, respLen, dataLen, lba := c.DebugState()
	return CDROMState{
		Status:       status,
		IRQFlags:     irqFlags,
		IRQEnable:    irqEnable,
		ParamFIFOLen: paramLen,
		RespFIFOLen:  respLen,
		DataFIFOLen:  dataLen,
		CurrentLBA:   lba,
	}
}
