package cpu

import "github.com/kestrel-systems/psxcore/psx/addr"

// execCop0 dispatches coprocessor-0 instructions: MFC0/MTC0 (rs field) and
// RFE (a CO-format instruction with funct 0x10), spec §4.2.
func (c *CPU) execCop0(in instr, faultPC uint32, delaySlot bool) StepResult {
	if in.rs>>4 == 1 { // CO bit set: rs in [0x10, 0x1F]
		if in.funct == 0x10 { // RFE
			c.execRFE()
			return StepOK
		}
		c.raiseException(addr.ExcRI, faultPC, delaySlot, nil)
		return StepIllegal
	}

	switch in.rs {
	case 0x00: // MFC0
		c.scheduleLoad(in.rt, c.cop0[in.rd])
		return StepOK
	case 0x04: // MTC0
		c.cop0[in.rd] = c.reg(in.rt)
		return StepOK
	default:
		c.raiseException(addr.ExcRI, faultPC, delaySlot, nil)
		return StepIllegal
	}
}

// execRFE rotates the low 6 bits of Status right by 2, restoring the
// previous interrupt-enable/kernel-user mode pair, spec §4.2.
func (c *CPU) execRFE() {
	status := c.cop0[addr.COP0Status]
	low6 := status & 0x3F
	rotated := ((low6 >> 2) | (low6 << 4)) & 0x3F
	c.cop0[addr.COP0Status] = (status &^ 0x3F) | rotated
}
