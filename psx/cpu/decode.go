package cpu

import "github.com/kestrel-systems/psxcore/psx/addr"

type instr struct {
	word  uint32
	op    uint32
	rs    uint32
	rt    uint32
	rd    uint32
	shamt uint32
	funct uint32
	imm   uint32 // zero-extended 16-bit immediate
	simm  int32  // sign-extended 16-bit immediate
	jidx  uint32
}

func decode(word uint32) instr {
	imm16 := word & 0xFFFF
	return instr{
		word:  word,
		op:    (word >> 26) & 0x3F,
		rs:    (word >> 21) & 0x1F,
		rt:    (word >> 16) & 0x1F,
		rd:    (word >> 11) & 0x1F,
		shamt: (word >> 6) & 0x1F,
		funct: word & 0x3F,
		imm:   imm16,
		simm:  int32(int16(imm16)),
		jidx:  word & 0x03FF_FFFF,
	}
}

// execute dispatches and runs one already-fetched instruction. faultPC is
// the address the instruction was fetched from (for exceptions); delaySlot
// reports whether this instruction occupies a branch delay slot.
func (c *CPU) execute(word uint32, faultPC uint32, delaySlot bool) StepResult {
	in := decode(word)

	switch in.op {
	case 0x00: // SPECIAL
		return c.execSpecial(in, faultPC, delaySlot)
	case 0x01: // BcondZ: BLTZ/BGEZ/BLTZAL/BGEZAL
		return c.execBcondZ(in, faultPC, delaySlot)
	case 0x02: // J
		c.scheduleBranch((c.PC & 0xF000_0000) | (in.jidx << 2))
		return StepOK
	case 0x03: // JAL
		c.setReg(31, c.PC+4)
		c.scheduleBranch((c.PC & 0xF000_0000) | (in.jidx << 2))
		return StepOK
	case 0x04: // BEQ
		if c.reg(in.rs) == c.reg(in.rt) {
			c.scheduleBranch(c.branchTarget(in))
		}
		return StepOK
	case 0x05: // BNE
		if c.reg(in.rs) != c.reg(in.rt) {
			c.scheduleBranch(c.branchTarget(in))
		}
		return StepOK
	case 0x06: // BLEZ
		if int32(c.reg(in.rs)) <= 0 {
			c.scheduleBranch(c.branchTarget(in))
		}
		return StepOK
	case 0x07: // BGTZ
		if int32(c.reg(in.rs)) > 0 {
			c.scheduleBranch(c.branchTarget(in))
		}
		return StepOK
	case 0x08: // ADDI
		return c.execAddImm(in, faultPC, delaySlot, true)
	case 0x09: // ADDIU
		return c.execAddImm(in, faultPC, delaySlot, false)
	case 0x0A: // SLTI
		v := int32(0)
		if int32(c.reg(in.rs)) < in.simm {
			v = 1
		}
		c.setReg(in.rt, uint32(v))
		return StepOK
	case 0x0B: // SLTIU
		v := uint32(0)
		if c.reg(in.rs) < uint32(in.simm) {
			v = 1
		}
		c.setReg(in.rt, v)
		return StepOK
	case 0x0C: // ANDI
		c.setReg(in.rt, c.reg(in.rs)&in.imm)
		return StepOK
	case 0x0D: // ORI
		c.setReg(in.rt, c.reg(in.rs)|in.imm)
		return StepOK
	case 0x0E: // XORI
		c.setReg(in.rt, c.reg(in.rs)^in.imm)
		return StepOK
	case 0x0F: // LUI
		c.setReg(in.rt, in.imm<<16)
		return StepOK
	case 0x10: // COP0
		return c.execCop0(in, faultPC, delaySlot)
	case 0x12: // COP2 (GTE)
		return c.execCop2(in, faultPC, delaySlot)
	case 0x20: // LB
		return c.execLoad(in, faultPC, delaySlot, loadByteSigned)
	case 0x21: // LH
		return c.execLoad(in, faultPC, delaySlot, loadHalfSigned)
	case 0x22: // LWL
		return c.execLWL(in)
	case 0x23: // LW
		return c.execLoad(in, faultPC, delaySlot, loadWord)
	case 0x24: // LBU
		return c.execLoad(in, faultPC, delaySlot, loadByteUnsigned)
	case 0x25: // LHU
		return c.execLoad(in, faultPC, delaySlot, loadHalfUnsigned)
	case 0x26: // LWR
		return c.execLWR(in)
	case 0x28: // SB
		c.storeU8(c.reg(in.rs)+uint32(in.simm), uint8(c.reg(in.rt)))
		return StepOK
	case 0x29: // SH
		return c.execStoreHalf(in, faultPC, delaySlot)
	case 0x2A: // SWL
		c.execSWL(in)
		return StepOK
	case 0x2B: // SW
		return c.execStoreWord(in, faultPC, delaySlot)
	case 0x2E: // SWR
		c.execSWR(in)
		return StepOK
	case 0x32: // LWC2
		addrv := c.reg(in.rs) + uint32(in.simm)
		v, aligned := c.bus.ReadU32(addrv)
		if !aligned {
			bad := addrv
			c.raiseException(addr.ExcADEL, faultPC, delaySlot, &bad)
			return StepMemFault
		}
		c.gte.WriteData(in.rt, v)
		return StepOK
	case 0x3A: // SWC2
		addrv := c.reg(in.rs) + uint32(in.simm)
		if !c.bus.WriteU32(addrv, c.gte.ReadData(in.rt)) {
			bad := addrv
			c.raiseException(addr.ExcADES, faultPC, delaySlot, &bad)
			return StepMemFault
		}
		return StepOK
	default:
		c.raiseException(addr.ExcRI, faultPC, delaySlot, nil)
		return StepIllegal
	}
}

func (c *CPU) branchTarget(in instr) uint32 {
	return c.PC + uint32(in.simm<<2)
}

func (c *CPU) execBcondZ(in instr, faultPC uint32, delaySlot bool) StepResult {
	rsVal := int32(c.reg(in.rs))
	link := in.rt&0x1E == 0x10 // BLTZAL/BGEZAL (rt = 0x10 or 0x11)
	takeLess := in.rt&1 == 0   // BLTZ/BLTZAL when bit0==0, BGEZ/BGEZAL when bit0==1
	var taken bool
	if takeLess {
		taken = rsVal < 0
	} else {
		taken = rsVal >= 0
	}
	if link {
		c.setReg(31, c.PC+4)
	}
	if taken {
		c.scheduleBranch(c.branchTarget(in))
	}
	return StepOK
}

func (c *CPU) execAddImm(in instr, faultPC uint32, delaySlot bool, checkOverflow bool) StepResult {
	a := int32(c.reg(in.rs))
	b := in.simm
	sum := a + b
	if checkOverflow {
		if (a >= 0) == (b >= 0) && (sum >= 0) != (a >= 0) {
			c.raiseException(addr.ExcOV, faultPC, delaySlot, nil)
			return StepOK
		}
	}
	c.setReg(in.rt, uint32(sum))
	return StepOK
}

func (c *CPU) execStoreHalf(in instr, faultPC uint32, delaySlot bool) StepResult {
	addrv := c.reg(in.rs) + uint32(in.simm)
	if c.statusIsc() && addrv < 0xA000_0000 {
		c.icacheStore16(addrv, uint16(c.reg(in.rt)))
		return StepOK
	}
	if !c.bus.WriteU16(addrv, uint16(c.reg(in.rt))) {
		bad := addrv
		c.raiseException(addr.ExcADES, faultPC, delaySlot, &bad)
		return StepMemFault
	}
	return StepOK
}

func (c *CPU) execStoreWord(in instr, faultPC uint32, delaySlot bool) StepResult {
	addrv := c.reg(in.rs) + uint32(in.simm)
	if c.statusIsc() && addrv < 0xA000_0000 {
		c.icacheStore32(addrv, c.reg(in.rt))
		return StepOK
	}
	if !c.bus.WriteU32(addrv, c.reg(in.rt)) {
		bad := addrv
		c.raiseException(addr.ExcADES, faultPC, delaySlot, &bad)
		return StepMemFault
	}
	return StepOK
}

func (c *CPU) storeU8(addrv uint32, v uint8) {
	if c.statusIsc() && addrv < 0xA000_0000 {
		c.icacheScratch[addrv&0x3FF] = v
		return
	}
	c.bus.WriteU8(addrv, v)
}

func (c *CPU) icacheStore16(addrv uint32, v uint16) {
	i := addrv & 0x3FF
	c.icacheScratch[i] = uint8(v)
	c.icacheScratch[(i+1)&0x3FF] = uint8(v >> 8)
}

func (c *CPU) icacheStore32(addrv uint32, v uint32) {
	i := addrv & 0x3FF
	for k := uint32(0); k < 4; k++ {
		c.icacheScratch[(i+k)&0x3FF] = uint8(v >> (8 * k))
	}
}

type loadKind int

const (
	loadByteSigned loadKind = iota
	loadByteUnsigned
	loadHalfSigned
	loadHalfUnsigned
	loadWord
)

func (c *CPU) execLoad(in instr, faultPC uint32, delaySlot bool, kind loadKind) StepResult {
	addrv := c.reg(in.rs) + uint32(in.simm)

	if c.statusIsc() && addrv < 0xA000_0000 {
		// Cache-isolated mode: reads return scratch contents (junk is fine
		// per spec; we return whatever was last written there).
		switch kind {
		case loadByteSigned:
			c.scheduleLoad(in.rt, uint32(int32(int8(c.icacheScratch[addrv&0x3FF]))))
		case loadByteUnsigned:
			c.scheduleLoad(in.rt, uint32(c.icacheScratch[addrv&0x3FF]))
		case loadHalfSigned, loadHalfUnsigned:
			i := addrv & 0x3FF
			v := uint16(c.icacheScratch[i]) | uint16(c.icacheScratch[(i+1)&0x3FF])<<8
			if kind == loadHalfSigned {
				c.scheduleLoad(in.rt, uint32(int32(int16(v))))
			} else {
				c.scheduleLoad(in.rt, uint32(v))
			}
		case loadWord:
			i := addrv & 0x3FF
			var v uint32
			for k := uint32(0); k < 4; k++ {
				v |= uint32(c.icacheScratch[(i+k)&0x3FF]) << (8 * k)
			}
			c.scheduleLoad(in.rt, v)
		}
		return StepOK
	}

	switch kind {
	case loadByteSigned:
		c.scheduleLoad(in.rt, uint32(int32(int8(c.bus.ReadU8(addrv)))))
	case loadByteUnsigned:
		c.scheduleLoad(in.rt, uint32(c.bus.ReadU8(addrv)))
	case loadHalfSigned:
		v, aligned := c.bus.ReadU16(addrv)
		if !aligned {
			bad := addrv
			c.raiseException(addr.ExcADEL, faultPC, delaySlot, &bad)
			return StepMemFault
		}
		c.scheduleLoad(in.rt, uint32(int32(int16(v))))
	case loadHalfUnsigned:
		v, aligned := c.bus.ReadU16(addrv)
		if !aligned {
			bad := addrv
			c.raiseException(addr.ExcADEL, faultPC, delaySlot, &bad)
			return StepMemFault
		}
		c.scheduleLoad(in.rt, uint32(v))
	case loadWord:
		v, aligned := c.bus.ReadU32(addrv)
		if !aligned {
			bad := addrv
			c.raiseException(addr.ExcADEL, faultPC, delaySlot, &bad)
			return StepMemFault
		}
		c.scheduleLoad(in.rt, v)
	}
	return StepOK
}

// execLWL/execLWR/execSWL/execSWR implement the unaligned word merge
// instructions per spec §4.2 ("merge into/from an aligned word using
// byte-offset-derived masks (little-endian)"). Mask/shift tables indexed by
// addr&3 are the standard little-endian formulation used by PS1 interpreters.
var lwlMask = [4]uint32{0x00FF_FFFF, 0x0000_FFFF, 0x0000_00FF, 0x0000_0000}
var lwlShift = [4]uint32{24, 16, 8, 0}
var lwrMask = [4]uint32{0x0000_0000, 0xFF00_0000, 0xFFFF_0000, 0xFFFF_FF00}
var lwrShift = [4]uint32{0, 8, 16, 24}
var swlMask = [4]uint32{0xFFFF_FF00, 0xFFFF_0000, 0xFF00_0000, 0x0000_0000}
var swlShift = [4]uint32{24, 16, 8, 0}
var swrMask = [4]uint32{0x0000_0000, 0x0000_00FF, 0x0000_FFFF, 0x00FF_FFFF}
var swrShift = [4]uint32{0, 8, 16, 24}

func (c *CPU) execLWL(in instr) StepResult {
	addrv := c.reg(in.rs) + uint32(in.simm)
	aligned := addrv &^ 3
	base, _ := c.bus.ReadU32(aligned)
	sel := addrv & 3
	rt := c.currentRT(in.rt)
	merged := (rt & lwlMask[sel]) | (base << lwlShift[sel])
	c.scheduleLoad(in.rt, merged)
	return StepOK
}

func (c *CPU) execLWR(in instr) StepResult {
	addrv := c.reg(in.rs) + uint32(in.simm)
	aligned := addrv &^ 3
	base, _ := c.bus.ReadU32(aligned)
	sel := addrv & 3
	rt := c.currentRT(in.rt)
	merged := (rt & lwrMask[sel]) | (base >> lwrShift[sel])
	c.scheduleLoad(in.rt, merged)
	return StepOK
}

// currentRT returns the value rt would currently observe, honoring an
// in-flight load-delay slot targeting the same register (LWL/LWR read-modify
// the register's current contents, which may itself be a pending load).
func (c *CPU) currentRT(reg uint32) uint32 {
	if c.activeLoad.valid && c.activeLoad.reg == reg {
		return c.activeLoad.value
	}
	return c.reg(reg)
}

func (c *CPU) execSWL(in instr) {
	addrv := c.reg(in.rs) + uint32(in.simm)
	aligned := addrv &^ 3
	base, _ := c.bus.ReadU32(aligned)
	sel := addrv & 3
	rt := c.reg(in.rt)
	merged := (base & swlMask[sel]) | (rt >> swlShift[sel])
	c.bus.WriteU32(aligned, merged)
}

func (c *CPU) execSWR(in instr) {
	addrv := c.reg(in.rs) + uint32(in.simm)
	aligned := addrv &^ 3
	base, _ := c.bus.ReadU32(aligned)
	sel := addrv & 3
	rt := c.reg(in.rt)
	merged := (base & swrMask[sel]) | (rt << swrShift[sel])
	c.bus.WriteU32(aligned, merged)
}
