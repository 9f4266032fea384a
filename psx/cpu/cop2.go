package cpu

import "github.com/kestrel-systems/psxcore/psx/addr"

// execCop2 dispatches coprocessor-2 (GTE) instructions: MFC2/CFC2/MTC2/CTC2
// (rs field) or a GTE command (CO-format, low 25 bits passed verbatim to the
// GTE), spec §4.2/§4.3.
func (c *CPU) execCop2(in instr, faultPC uint32, delaySlot bool) StepResult {
	if in.rs>>4 == 1 { // CO bit: GTE command
		c.gte.Command(in.word & 0x01FF_FFFF)
		return StepOK
	}

	switch in.rs {
	case 0x00: // MFC2
		c.scheduleLoad(in.rt, c.gte.ReadData(in.rd))
		return StepOK
	case 0x02: // CFC2
		c.scheduleLoad(in.rt, c.gte.ReadControl(in.rd))
		return StepOK
	case 0x04: // MTC2
		c.gte.WriteData(in.rd, c.reg(in.rt))
		return StepOK
	case 0x06: // CTC2
		c.gte.WriteControl(in.rd, c.reg(in.rt))
		return StepOK
	default:
		c.raiseException(addr.ExcRI, faultPC, delaySlot, nil)
		return StepIllegal
	}
}
