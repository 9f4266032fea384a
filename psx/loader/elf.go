package loader

import (
	"encoding/binary"
	"fmt"
)

const (
	elfPTLoad = 1
	elfEMMIPS = 8
)

// loadELF implements the minimal ELF32-LE EM_MIPS subset spec §4.8 asks
// for: walk the program-header table, copy each PT_LOAD segment's file
// bytes to its physical address and zero the rest of its memory size
// (p_memsz - p_filesz, i.e. BSS folded into the segment).
func loadELF(ram []byte, data []byte) (Result, error) {
	if len(data) < 52 {
		return Result{}, fmt.Errorf("%w: file shorter than ELF32 header", ErrHeaderInvalid)
	}
	if data[4] != 1 { // EI_CLASS: ELFCLASS32
		return Result{}, fmt.Errorf("%w: not a 32-bit ELF", ErrHeaderInvalid)
	}
	if data[5] != 1 { // EI_DATA: ELFDATA2LSB
		return Result{}, fmt.Errorf("%w: not little-endian", ErrHeaderInvalid)
	}

	machine := binary.LittleEndian.Uint16(data[18:])
	if machine != elfEMMIPS {
		return Result{}, fmt.Errorf("%w: e_machine %d is not EM_MIPS", ErrHeaderInvalid, machine)
	}

	entry := binary.LittleEndian.Uint32(data[24:])
	phoff := binary.LittleEndian.Uint32(data[28:])
	phentsize := binary.LittleEndian.Uint16(data[42:])
	phnum := binary.LittleEndian.Uint16(data[44:])

	if phentsize < 32 {
		return Result{}, fmt.Errorf("%w: implausible program header entry size %d", ErrHeaderInvalid, phentsize)
	}

	for i := uint16(0); i < phnum; i++ {
		off := phoff + uint32(i)*uint32(phentsize)
		if uint64(off)+32 > uint64(len(data)) {
			return Result{}, fmt.Errorf("%w: program header %d out of range", ErrHeaderInvalid, i)
		}
		ph := data[off:]
		pType := binary.LittleEndian.Uint32(ph[0:])
		if pType != elfPTLoad {
			continue
		}
		pOffset := binary.LittleEndian.Uint32(ph[4:])
		pVaddr := binary.LittleEndian.Uint32(ph[8:])
		pFilesz := binary.LittleEndian.Uint32(ph[16:])
		pMemsz := binary.LittleEndian.Uint32(ph[20:])

		if uint64(pOffset)+uint64(pFilesz) > uint64(len(data)) {
			return Result{}, fmt.Errorf("%w: segment %d file range out of bounds", ErrHeaderInvalid, i)
		}

		if err := copyPhysical(ram, pVaddr, data[pOffset:pOffset+pFilesz]); err != nil {
			return Result{}, err
		}
		if pMemsz > pFilesz {
			if err := zeroPhysical(ram, pVaddr+pFilesz, pMemsz-pFilesz); err != nil {
				return Result{}, err
			}
		}
	}

	return Result{PC: entry, GP: 0, SP: 0x801F_FF00}, nil
}
