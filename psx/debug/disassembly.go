package debug

import (
	"encoding/binary"
	"fmt"

	"github.com/kestrel-systems/psxcore/psx/cpu"
)

// CreateDisassembly renders up to maxLines instructions from snapshot
// centered on pc, grounded on go-jeebie/jeebie/debug.CreateDisassembly's
// PC-centering approach (a window of instructions before/after PC, with
// the current one flagged), adapted to fixed 4-byte MIPS instruction
// words instead of the Game Boy's variable-length opcodes.
func CreateDisassembly(snapshot *MemorySnapshot, pc uint32, maxLines int) []DisasmLine {
	if snapshot == nil || len(snapshot.Bytes) < 4 {
		return nil
	}

	pcOffset := -1
	if pc >= snapshot.StartAddr && pc < snapshot.StartAddr+uint32(len(snapshot.Bytes)) {
		pcOffset = int(pc - snapshot.StartAddr)
		pcOffset -= pcOffset % 4
	}

	if pcOffset < 0 {
		return []DisasmLine{{
			Address:     pc,
			Instruction: fmt.Sprintf("[PC: 0x%08X - outside snapshot]", pc),
			IsCurrent:   true,
		}}
	}

	const backward = 8 * 4
	start := pcOffset - backward
	if start < 0 {
		start = 0
	}
	start -= start % 4

	var lines []DisasmLine
	for off := start; off+4 <= len(snapshot.Bytes) && len(lines) < maxLines*2; off += 4 {
		addr := snapshot.StartAddr + uint32(off)
		word := binary.LittleEndian.Uint32(snapshot.Bytes[off : off+4])
		lines = append(lines, DisasmLine{
			Address:     addr,
			Instruction: cpu.Disassemble(addr, word),
			IsCurrent:   addr == pc,
		})
	}

	pcIndex := -1
	for i, l := range lines {
		if l.IsCurrent {
			pcIndex = i
			break
		}
	}
	if pcIndex < 0 || len(lines) <= maxLines {
		if len(lines) > maxLines {
			lines = lines[:maxLines]
		}
		return lines
	}

	half := maxLines / 2
	lo := pcIndex - half
	if lo < 0 {
		lo = 0
	}
	hi := lo + maxLines
	if hi > len(lines) {
		hi = len(lines)
		lo = hi - maxLines
		if lo < 0 {
			lo = 0
		}
	}
	return lines[lo:hi]
}
