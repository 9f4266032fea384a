package bus

import "github.com/kestrel-systems/psxcore/psx/addr"

// ramReadWord/ramWriteWord are little-endian word accessors used internally
// by the DMA engine, which always moves whole 32-bit words. They do no
// alignment checking: madr is masked to 24 bits, not to a word boundary,
// and is used as given.
func (b *Bus) ramReadWord(physAddr uint32) uint32 {
	i := physAddr % addr.RAMSize
	return uint32(b.ram[i]) | uint32(b.ram[i+1])<<8 | uint32(b.ram[i+2])<<16 | uint32(b.ram[i+3])<<24
}

func (b *Bus) ramWriteWord(physAddr uint32, value uint32) {
	i := physAddr % addr.RAMSize
	b.ram[i] = byte(value)
	b.ram[i+1] = byte(value >> 8)
	b.ram[i+2] = byte(value >> 16)
	b.ram[i+3] = byte(value >> 24)
}

// ReadU8 implements cpu.Bus.
func (b *Bus) ReadU8(vaddr uint32) uint8 {
	p := translate(vaddr)
	switch {
	case p < addr.RAMWindowSize:
		return b.ram[p%addr.RAMSize]
	case p >= addr.ScratchpadBase && p < addr.ScratchpadBase+addr.ScratchpadSize:
		return b.scratchpad[p-addr.ScratchpadBase]
	case p >= addr.BIOSBase && p < addr.BIOSBase+addr.BIOSSize:
		return b.bios[p-addr.BIOSBase]
	case p >= addr.Expansion1Base && p < addr.Expansion1Base+addr.Expansion1Size:
		return 0xFF
	case p >= addr.CDROMBase && p < addr.CDROMBase+addr.CDROMSize:
		if b.cdrom != nil {
			v := b.cdrom.MMIOReadByte(p - addr.CDROMBase)
			b.observeCDROMIRQEdge()
			return v
		}
		return 0xFF
	default:
		v, _ := b.readMMIO32(p &^ 3)
		shift := (p & 3) * 8
		return uint8(v >> shift)
	}
}

// ReadU16 implements cpu.Bus.
func (b *Bus) ReadU16(vaddr uint32) (uint16, bool) {
	if vaddr%2 != 0 {
		return 0, false
	}
	p := translate(vaddr)
	if p < addr.RAMWindowSize {
		i := p % addr.RAMSize
		return uint16(b.ram[i]) | uint16(b.ram[i+1])<<8, true
	}
	if p >= addr.SPUBase && p < addr.SPUBase+addr.SPUSize {
		if b.spu != nil {
			return b.spu.ReadReg(p - addr.SPUBase), true
		}
		return 0, true
	}
	if p >= addr.TimerBase && p < addr.TimerBase+addr.TimerSize {
		return b.readTimer(p), true
	}
	v := uint32(b.ReadU8(vaddr)) | uint32(b.ReadU8(vaddr+1))<<8
	return uint16(v), true
}

// ReadU32 implements cpu.Bus.
func (b *Bus) ReadU32(vaddr uint32) (uint32, bool) {
	if vaddr%4 != 0 {
		return 0, false
	}
	p := translate(vaddr)
	if p < addr.RAMWindowSize {
		return b.ramReadWord(p), true
	}
	return b.readMMIO32(p)
}

func (b *Bus) readMMIO32(p uint32) (uint32, bool) {
	switch {
	case p == addr.IStat:
		return b.irq.ReadStat(), true
	case p == addr.IMask:
		return b.irq.ReadMask(), true
	case p >= addr.DMABase && p < addr.DMABase+addr.DMASize:
		return b.dma.readReg(p - addr.DMABase), true
	case p >= addr.TimerBase && p < addr.TimerBase+addr.TimerSize:
		return uint32(b.readTimer(p)), true
	case p == addr.GP0:
		if b.gpu != nil {
			return b.gpu.ReadGPUREAD(), true
		}
		return 0, true
	case p == addr.GP1:
		if b.gpu != nil {
			return b.gpu.ReadGPUSTAT(), true
		}
		return 0x1C00_0000, true
	case p == addr.CacheControl:
		return 0, true
	default:
		return 0, true
	}
}

func (b *Bus) readTimer(p uint32) uint16 {
	idx := (p - addr.TimerBase) / 0x10
	off := (p - addr.TimerBase) % 0x10
	switch idx {
	case 0:
		return b.tim0.ReadReg(off)
	case 1:
		return b.tim1.ReadReg(off)
	case 2:
		return b.tim2.ReadReg(off)
	default:
		return 0
	}
}

func (b *Bus) writeTimer(p uint32, value uint16) {
	idx := (p - addr.TimerBase) / 0x10
	off := (p - addr.TimerBase) % 0x10
	switch idx {
	case 0:
		b.tim0.WriteReg(off, value)
	case 1:
		b.tim1.WriteReg(off, value)
	case 2:
		b.tim2.WriteReg(off, value)
	}
}

// WriteU8 implements cpu.Bus.
func (b *Bus) WriteU8(vaddr uint32, value uint8) {
	p := translate(vaddr)
	switch {
	case p < addr.RAMWindowSize:
		b.ram[p%addr.RAMSize] = value
	case p >= addr.ScratchpadBase && p < addr.ScratchpadBase+addr.ScratchpadSize:
		b.scratchpad[p-addr.ScratchpadBase] = value
	case p >= addr.CDROMBase && p < addr.CDROMBase+addr.CDROMSize:
		if b.cdrom != nil {
			b.cdrom.MMIOWriteByte(p-addr.CDROMBase, value)
			b.observeCDROMIRQEdge()
		}
	default:
		// Byte writes to 32-bit MMIO registers are rare in PS1 software;
		// widen to a read-modify-write word access.
		word, _ := b.readMMIO32(p &^ 3)
		shift := (p & 3) * 8
		word = (word &^ (0xFF << shift)) | uint32(value)<<shift
		b.writeMMIO32(p&^3, word)
	}
}

// WriteU16 implements cpu.Bus.
func (b *Bus) WriteU16(vaddr uint32, value uint16) bool {
	if vaddr%2 != 0 {
		return false
	}
	p := translate(vaddr)
	if p < addr.RAMWindowSize {
		i := p % addr.RAMSize
		b.ram[i] = byte(value)
		b.ram[i+1] = byte(value >> 8)
		return true
	}
	if p >= addr.SPUBase && p < addr.SPUBase+addr.SPUSize {
		if b.spu != nil {
			b.spu.WriteReg(p-addr.SPUBase, value)
		}
		return true
	}
	if p >= addr.TimerBase && p < addr.TimerBase+addr.TimerSize {
		b.writeTimer(p, value)
		return true
	}
	b.WriteU8(vaddr, uint8(value))
	b.WriteU8(vaddr+1, uint8(value>>8))
	return true
}

// WriteU32 implements cpu.Bus.
func (b *Bus) WriteU32(vaddr uint32, value uint32) bool {
	if vaddr%4 != 0 {
		return false
	}
	p := translate(vaddr)
	if p < addr.RAMWindowSize {
		b.ramWriteWord(p, value)
		return true
	}
	return b.writeMMIO32(p, value)
}

func (b *Bus) writeMMIO32(p uint32, value uint32) bool {
	switch {
	case p == addr.IStat:
		b.irq.WriteStat(value)
	case p == addr.IMask:
		b.irq.WriteMask(value)
	case p >= addr.DMABase && p < addr.DMABase+addr.DMASize:
		b.dma.writeReg(p-addr.DMABase, value)
	case p >= addr.TimerBase && p < addr.TimerBase+addr.TimerSize:
		b.writeTimer(p, uint16(value))
	case p == addr.GP0:
		if b.gpu != nil {
			b.gpu.WriteGP0(value)
		}
	case p == addr.GP1:
		if b.gpu != nil {
			b.gpu.WriteGP1(value)
		}
	case p == addr.CacheControl:
		// Cache control register: no software-visible effect in this core.
	}
	return true
}
