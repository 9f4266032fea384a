package cpu

import "github.com/kestrel-systems/psxcore/psx/addr"

// execSpecial dispatches SPECIAL-opcode (0x00) instructions by funct field.
func (c *CPU) execSpecial(in instr, faultPC uint32, delaySlot bool) StepResult {
	switch in.funct {
	case 0x00: // SLL
		c.setReg(in.rd, c.reg(in.rt)<<in.shamt)
		return StepOK
	case 0x02: // SRL
		c.setReg(in.rd, c.reg(in.rt)>>in.shamt)
		return StepOK
	case 0x03: // SRA
		c.setReg(in.rd, uint32(int32(c.reg(in.rt))>>in.shamt))
		return StepOK
	case 0x04: // SLLV
		c.setReg(in.rd, c.reg(in.rt)<<(c.reg(in.rs)&0x1F))
		return StepOK
	case 0x06: // SRLV
		c.setReg(in.rd, c.reg(in.rt)>>(c.reg(in.rs)&0x1F))
		return StepOK
	case 0x07: // SRAV
		c.setReg(in.rd, uint32(int32(c.reg(in.rt))>>(c.reg(in.rs)&0x1F)))
		return StepOK
	case 0x08: // JR
		c.scheduleBranch(c.reg(in.rs))
		return StepOK
	case 0x09: // JALR
		target := c.reg(in.rs)
		c.setReg(in.rd, c.PC+4)
		c.scheduleBranch(target)
		return StepOK
	case 0x0C: // SYSCALL
		c.raiseException(addr.ExcSYS, faultPC, delaySlot, nil)
		return StepOK
	case 0x0D: // BREAK
		c.raiseException(addr.ExcBP, faultPC, delaySlot, nil)
		return StepHalted
	case 0x10: // MFHI
		c.setReg(in.rd, c.HI)
		return StepOK
	case 0x11: // MTHI
		c.HI = c.reg(in.rs)
		return StepOK
	case 0x12: // MFLO
		c.setReg(in.rd, c.LO)
		return StepOK
	case 0x13: // MTLO
		c.LO = c.reg(in.rs)
		return StepOK
	case 0x18: // MULT
		r := int64(int32(c.reg(in.rs))) * int64(int32(c.reg(in.rt)))
		c.LO = uint32(r)
		c.HI = uint32(r >> 32)
		return StepOK
	case 0x19: // MULTU
		r := uint64(c.reg(in.rs)) * uint64(c.reg(in.rt))
		c.LO = uint32(r)
		c.HI = uint32(r >> 32)
		return StepOK
	case 0x1A: // DIV
		n := int32(c.reg(in.rs))
		d := int32(c.reg(in.rt))
		if d == 0 {
			c.HI = uint32(n)
			if n >= 0 {
				c.LO = 0xFFFFFFFF
			} else {
				c.LO = 1
			}
			return StepOK
		}
		if n == -0x80000000 && d == -1 {
			c.LO = uint32(n)
			c.HI = 0
			return StepOK
		}
		c.LO = uint32(n / d)
		c.HI = uint32(n % d)
		return StepOK
	case 0x1B: // DIVU
		n := c.reg(in.rs)
		d := c.reg(in.rt)
		if d == 0 {
			c.LO = 0xFFFFFFFF
			c.HI = n
			return StepOK
		}
		c.LO = n / d
		c.HI = n % d
		return StepOK
	case 0x20: // ADD
		a := int32(c.reg(in.rs))
		b := int32(c.reg(in.rt))
		sum := a + b
		if (a >= 0) == (b >= 0) && (sum >= 0) != (a >= 0) {
			c.raiseException(addr.ExcOV, faultPC, delaySlot, nil)
			return StepOK
		}
		c.setReg(in.rd, uint32(sum))
		return StepOK
	case 0x21: // ADDU
		c.setReg(in.rd, c.reg(in.rs)+c.reg(in.rt))
		return StepOK
	case 0x22: // SUB
		a := int32(c.reg(in.rs))
		b := int32(c.reg(in.rt))
		diff := a - b
		if (a >= 0) != (b >= 0) && (diff >= 0) != (a >= 0) {
			c.raiseException(addr.ExcOV, faultPC, delaySlot, nil)
			return StepOK
		}
		c.setReg(in.rd, uint32(diff))
		return StepOK
	case 0x23: // SUBU
		c.setReg(in.rd, c.reg(in.rs)-c.reg(in.rt))
		return StepOK
	case 0x24: // AND
		c.setReg(in.rd, c.reg(in.rs)&c.reg(in.rt))
		return StepOK
	case 0x25: // OR
		c.setReg(in.rd, c.reg(in.rs)|c.reg(in.rt))
		return StepOK
	case 0x26: // XOR
		c.setReg(in.rd, c.reg(in.rs)^c.reg(in.rt))
		return StepOK
	case 0x27: // NOR
		c.setReg(in.rd, ^(c.reg(in.rs) | c.reg(in.rt)))
		return StepOK
	case 0x2A: // SLT
		v := uint32(0)
		if int32(c.reg(in.rs)) < int32(c.reg(in.rt)) {
			v = 1
		}
		c.setReg(in.rd, v)
		return StepOK
	case 0x2B: // SLTU
		v := uint32(0)
		if c.reg(in.rs) < c.reg(in.rt) {
			v = 1
		}
		c.setReg(in.rd, v)
		return StepOK
	default:
		c.raiseException(addr.ExcRI, faultPC, delaySlot, nil)
		return StepIllegal
	}
}
