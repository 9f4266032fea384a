// Package loader parses PS-X EXE and ELF32 MIPS executables and copies
// their segments into physical RAM, spec §4.8. Grounded on
// go-jeebie/jeebie/memory.Cartridge: a header-parsing constructor that
// validates a fixed magic/field layout and copies payload bytes into a
// backing buffer, generalized from the Game Boy cartridge header to the
// PS-X EXE's 0x800-byte header and to ELF32's program-header table.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Errors returned by Load, spec §4.8 "LoaderError variants".
var (
	ErrNotRecognized = errors.New("loader: file is neither a PS-X EXE nor an ELF32 MIPS executable")
	ErrHeaderInvalid = errors.New("loader: header failed validation")
	ErrOutOfRAM      = errors.New("loader: segment extends past the end of RAM")
)

// psxExeMagic is the 8-byte signature at offset 0x00 of a PS-X EXE header.
var psxExeMagic = [8]byte{'P', 'S', '-', 'X', ' ', 'E', 'X', 'E'}

const psxExeHeaderSize = 0x800

// Result describes where execution should begin after a successful Load,
// spec §4.8 "seeds PC0/GP0/initial SP from the header".
type Result struct {
	PC uint32
	GP uint32
	SP uint32
}

// Load recognizes data as a PS-X EXE or an ELF32 MIPS executable and copies
// its segments into ram (indexed by physical address, e.g. bus.Bus.RAM()).
// BSS is zeroed. Returns the entry point and initial register values to
// seed the CPU and stack pointer with.
func Load(ram []byte, data []byte) (Result, error) {
	if len(data) >= 8 && string(data[:8]) == string(psxExeMagic[:]) {
		return loadPSXEXE(ram, data)
	}
	if len(data) >= 4 && data[0] == 0x7F && data[1] == 'E' && data[2] == 'L' && data[3] == 'F' {
		return loadELF(ram, data)
	}
	return Result{}, ErrNotRecognized
}

// loadPSXEXE implements the PS-X EXE header layout, spec §4.8: magic at
// 0x00, PC0 at 0x10, GP0 at 0x14, t_addr/t_size at 0x18/0x1C, b_addr/b_size
// at 0x28/0x2C (BSS, zeroed not copied), s_addr/s_size at 0x30/0x34 (initial
// stack: s_addr+s_size when s_size != 0, else s_addr, else the
// 0x801F_FF00 default).
func loadPSXEXE(ram []byte, data []byte) (Result, error) {
	if len(data) < psxExeHeaderSize {
		return Result{}, fmt.Errorf("%w: file shorter than %d-byte header", ErrHeaderInvalid, psxExeHeaderSize)
	}

	hdr := data[:psxExeHeaderSize]
	pc0 := binary.LittleEndian.Uint32(hdr[0x10:])
	gp0 := binary.LittleEndian.Uint32(hdr[0x14:])
	tAddr := binary.LittleEndian.Uint32(hdr[0x18:])
	tSize := binary.LittleEndian.Uint32(hdr[0x1C:])
	bAddr := binary.LittleEndian.Uint32(hdr[0x28:])
	bSize := binary.LittleEndian.Uint32(hdr[0x2C:])
	sAddr := binary.LittleEndian.Uint32(hdr[0x30:])
	sSize := binary.LittleEndian.Uint32(hdr[0x34:])

	text := data[psxExeHeaderSize:]
	if uint32(len(text)) < tSize {
		return Result{}, fmt.Errorf("%w: text segment truncated (want %d, have %d)", ErrHeaderInvalid, tSize, len(text))
	}

	if err := copyPhysical(ram, tAddr, text[:tSize]); err != nil {
		return Result{}, err
	}
	if err := zeroPhysical(ram, bAddr, bSize); err != nil {
		return Result{}, err
	}

	sp := uint32(0x801F_FF00)
	if sSize != 0 {
		sp = sAddr + sSize
	} else if sAddr != 0 {
		sp = sAddr
	}

	return Result{PC: pc0, GP: gp0, SP: sp}, nil
}

// copyPhysical writes src into ram starting at the physical address folded
// from vaddr (KSEG0/KSEG1 and KUSEG all alias the same 2MiB of RAM, spec
// §4.1), bounds-checked against RAM's size.
func copyPhysical(ram []byte, vaddr uint32, src []byte) error {
	phys := vaddr & 0x1FFF_FFFF
	if uint64(phys)+uint64(len(src)) > uint64(len(ram)) {
		return fmt.Errorf("%w: 0x%08X + %d bytes", ErrOutOfRAM, vaddr, len(src))
	}
	copy(ram[phys:], src)
	return nil
}

func zeroPhysical(ram []byte, vaddr uint32, size uint32) error {
	if size == 0 {
		return nil
	}
	phys := vaddr & 0x1FFF_FFFF
	if uint64(phys)+uint64(size) > uint64(len(ram)) {
		return fmt.Errorf("%w: 0x%08X + %d bytes", ErrOutOfRAM, vaddr, size)
	}
	clear(ram[phys : phys+size])
	return nil
}
