package cdrom

import "github.com/kestrel-systems/psxcore/psx/disc"

// Command opcodes, spec §4.4's command table, grounded on
// original_source/src/cdrom/cdrom.cpp's exec_command switch.
const (
	cmdGetstat     = 0x01
	cmdSetloc      = 0x02
	cmdPlay        = 0x03
	cmdForward     = 0x04
	cmdBackward    = 0x05
	cmdReadN       = 0x06
	cmdMotorOn     = 0x07
	cmdStop        = 0x08
	cmdPause       = 0x09
	cmdInit        = 0x0A
	cmdMute        = 0x0B
	cmdDemute      = 0x0C
	cmdSetfilter   = 0x0D
	cmdSetmode     = 0x0E
	cmdGetparam    = 0x0F
	cmdGetlocL     = 0x10
	cmdGetlocP     = 0x11
	cmdSetSession  = 0x12
	cmdGetTN       = 0x13
	cmdGetTD       = 0x14
	cmdSeekL       = 0x15
	cmdSeekP       = 0x16
	cmdTest        = 0x19
	cmdGetID       = 0x1A
	cmdReadS       = 0x1B
	cmdReset       = 0x1C
	cmdGetQ        = 0x1D
	cmdReadTOC     = 0x1E

	// leadoutTrack is the synthetic track number GetTD/GetTN queries use to
	// ask for the disc's end position, spec §3's "exactly one leadout at
	// 0xAA for queries".
	leadoutTrack = 0xAA
)

// motorIdleSpindownDelay is how long (in CPU cycles) the motor keeps
// spinning after a Pause before calcSeekTime must pay the spin-up cost
// again on the next seek.
const motorIdleSpindownDelay = 33_868_800 / 2 // ~0.5s at the 33.8688 MHz CPU clock

// execCommand dispatches one command byte, spec §4.4's exec_command.
// Parameters were already pushed into c.paramFIFO by prior port-1 writes;
// it is drained here.
func (c *Cdrom) execCommand(cmd uint8) {
	c.lastCmd = cmd
	params := append([]uint8(nil), c.paramFIFO...)
	c.clearParams()
	c.clearResp()

	switch cmd {
	case cmdGetstat:
		c.pushResp(c.status)
		c.scheduleINT3()

	case cmdSetloc:
		if len(params) >= 3 {
			c.locMSF = [3]uint8{params[0], params[1], params[2]}
			c.locLBA = msfToLBA(bcdToU8(params[0]), bcdToU8(params[1]), bcdToU8(params[2]))
		}
		c.pushResp(c.status)
		c.scheduleINT3()

	case cmdPlay:
		if len(params) >= 1 && params[0] != 0 {
			c.locLBA = c.trackStartLBA(params[0])
		}
		c.beginCDDA()
		c.pushResp(c.status)
		c.scheduleINT3()

	case cmdForward, cmdBackward:
		c.pushResp(c.status)
		c.scheduleINT3()

	case cmdReadN, cmdReadS:
		c.readingActive = true
		c.cdda.playing = false
		c.status |= statReadingBit
		c.status |= statMotorOnBit
		c.headLBA = c.locLBA
		c.pushResp(c.status)
		c.scheduleINT3()
		c.scheduleDataReadyAfterAck()

	case cmdMotorOn:
		c.motorSpinning = true
		c.status |= statMotorOnBit
		c.pushResp(c.status)
		c.scheduleINT3()
		c.scheduleSecondaryComplete()

	case cmdStop:
		c.readingActive = false
		c.cdda.playing = false
		c.motorSpinning = false
		c.status &^= statMotorOnBit | statReadingBit
		c.pushResp(c.status)
		c.scheduleINT3()
		c.scheduleSecondaryComplete()

	case cmdPause:
		c.readingActive = false
		c.cdda.playing = false
		c.status &^= statReadingBit
		// The drive keeps the motor spinning briefly after a pause so a
		// following ReadN/Play doesn't pay the full spin-up seek cost,
		// spec §4.4's seek-time model.
		c.motorIdleCountdown = motorIdleSpindownDelay
		c.pushResp(c.status)
		c.scheduleINT3()
		c.scheduleSecondaryComplete()

	case cmdInit:
		c.irqEnable = 0x1F
		c.mode = 0
		c.readingActive = false
		c.cdda.playing = false
		c.motorSpinning = true
		c.status = statMotorOnBit
		c.pushResp(c.status)
		c.scheduleINT3()
		c.scheduleSecondaryComplete()

	case cmdMute:
		c.cdda.muted = true
		c.pushResp(c.status)
		c.scheduleINT3()

	case cmdDemute:
		c.cdda.muted = false
		c.pushResp(c.status)
		c.scheduleINT3()

	case cmdSetfilter:
		if len(params) >= 2 {
			c.filterFile = params[0]
			c.filterChan = params[1]
		}
		c.pushResp(c.status)
		c.scheduleINT3()

	case cmdSetmode:
		if len(params) >= 1 {
			c.mode = params[0]
		}
		c.pushResp(c.status)
		c.scheduleINT3()

	case cmdGetparam:
		c.pushResp(c.status)
		c.pushResp(c.mode)
		c.pushResp(0)
		c.pushResp(c.filterFile)
		c.pushResp(c.filterChan)
		c.scheduleINT3()

	case cmdGetlocL:
		var buf [2352]byte
		if c.image != nil {
			c.image.ReadRawAudio(c.locLBA, &buf)
		}
		mm, ss, ff := lbaToMSF(c.locLBA)
		c.pushResp(u8ToBCD(mm))
		c.pushResp(u8ToBCD(ss))
		c.pushResp(u8ToBCD(ff))
		c.pushResp(buf[15])
		c.pushResp(buf[16])
		c.pushResp(buf[17])
		c.pushResp(buf[18])
		c.pushResp(buf[19])
		c.scheduleINT3()

	case cmdGetlocP:
		tr, _ := c.trackForCurrentLBA()
		mm, ss, ff := lbaToMSF(c.locLBA)
		relMM, relSS, relFF := lbaToMSF(c.locLBA - tr.StartLBA)
		c.pushResp(u8ToBCD(tr.Number))
		c.pushResp(1)
		c.pushResp(u8ToBCD(relMM))
		c.pushResp(u8ToBCD(relSS))
		c.pushResp(u8ToBCD(relFF))
		c.pushResp(u8ToBCD(mm))
		c.pushResp(u8ToBCD(ss))
		c.pushResp(u8ToBCD(ff))
		c.scheduleINT3()

	case cmdGetTN:
		first, last := c.trackRange()
		c.pushResp(c.status)
		c.pushResp(u8ToBCD(first))
		c.pushResp(u8ToBCD(last))
		c.scheduleINT3()

	case cmdGetTD:
		track := uint8(0)
		if len(params) >= 1 {
			if params[0] == leadoutTrack {
				track = leadoutTrack
			} else {
				track = bcdToU8(params[0])
			}
		}
		mm, ss, _ := c.trackStartMSF(track)
		c.pushResp(c.status)
		c.pushResp(u8ToBCD(mm))
		c.pushResp(u8ToBCD(ss))
		c.scheduleINT3()

	case cmdSeekL, cmdSeekP:
		c.pushResp(c.status)
		c.scheduleINT3()
		c.scheduleSecondaryComplete()

	case cmdTest:
		c.execTest(params)

	case cmdGetID:
		c.execGetID()

	case cmdReset:
		c.irqEnable = 0x1F
		c.mode = 0
		c.readingActive = false
		c.cdda.playing = false
		c.status = 0
		c.pushResp(c.status)
		c.scheduleINT3()

	case cmdGetQ:
		c.pushResp(c.status)
		c.scheduleINT3()

	case cmdReadTOC:
		c.pushResp(c.status)
		c.scheduleINT3()
		c.scheduleSecondaryComplete()

	default:
		c.pushResp(c.status | statErrorBit)
		c.pushResp(0x40) // unknown command
		c.scheduleINT5()
	}
}

// execTest implements the 0x19 sub-command family, spec §4.4.
func (c *Cdrom) execTest(params []uint8) {
	if len(params) == 0 {
		c.pushResp(c.status)
		c.scheduleINT3()
		return
	}
	switch params[0] {
	case 0x20: // get BIOS date/version, stable placeholder
		c.pushResp(0x94)
		c.pushResp(0x09)
		c.pushResp(0x19)
		c.pushResp(0xC0)
		c.scheduleINT3()
	case 0x22: // get region string
		c.pushResp(c.region.SCEx[0])
		c.pushResp(c.region.SCEx[1])
		c.pushResp(c.region.SCEx[2])
		c.pushResp(c.region.SCEx[3])
		c.scheduleINT3()
	default:
		c.pushResp(c.status)
		c.scheduleINT3()
	}
}

// execGetID implements command 0x1A, spec §4.4: INT3 with a stat byte
// followed by a deferred INT2 (disc present) or INT5 (no disc) carrying
// the license/region bytes.
func (c *Cdrom) execGetID() {
	c.pushResp(c.status)
	c.scheduleINT3()

	if c.image == nil {
		c.pendingIRQType = int5Error
		c.pendingIRQResp = 0x08
		c.pendingIRQReasn = 0x40
		c.pendingIRQDelay = 15000
		c.pendingIRQExtra = []uint8{0, 0, 0, 0, 0, 0}
		return
	}
	c.pendingIRQType = int2Complete
	c.pendingIRQResp = c.status
	c.pendingIRQReasn = 0
	c.pendingIRQDelay = 15000
	c.pendingIRQExtra = []uint8{
		0x00, 0x20, 0x00,
		c.region.SCEx[0], c.region.SCEx[1], c.region.SCEx[2], c.region.SCEx[3],
	}
}

// scheduleINT3 arms the command's immediate INT3 accept IRQ (delayed by
// cmd_irq_delay, spec §4.4).
func (c *Cdrom) scheduleINT3() {
	c.cmdIRQPending = int3Accepted
	if c.image == nil {
		c.cmdIRQDelay = 25000
	} else if c.lastCmd == cmdInit {
		c.cmdIRQDelay = 80000
	} else {
		c.cmdIRQDelay = 25000
	}
}

// scheduleINT5 arms an immediate INT5 error IRQ.
func (c *Cdrom) scheduleINT5() {
	c.cmdIRQPending = int5Error
	c.cmdIRQDelay = 25000
}

// scheduleSecondaryComplete arms a deferred INT2 "complete" response that
// follows the command's INT3, spec §4.4's two-phase response model.
func (c *Cdrom) scheduleSecondaryComplete() {
	c.asyncStatPending = true
}

// scheduleDataReadyAfterAck arms the first INT1 of a ReadN/ReadS session,
// which fires only once the BIOS has acknowledged the command's INT3,
// spec §4.4 step 3 of the continuous read protocol.
func (c *Cdrom) scheduleDataReadyAfterAck() {
	c.readPendingIRQ1 = true
}

func (c *Cdrom) trackRange() (first, last uint8) {
	if c.image == nil {
		return 0, 0
	}
	tracks := c.image.Tracks()
	if len(tracks) == 0 {
		return 0, 0
	}
	first, last = tracks[0].Number, tracks[0].Number
	for _, t := range tracks {
		if t.Number < first {
			first = t.Number
		}
		if t.Number > last {
			last = t.Number
		}
	}
	return first, last
}

func (c *Cdrom) trackStartLBA(trackNum uint8) uint32 {
	if c.image == nil {
		return 0
	}
	if trackNum == leadoutTrack {
		return c.image.SectorCount()
	}
	for _, t := range c.image.Tracks() {
		if t.Number == trackNum {
			return t.StartLBA
		}
	}
	return 0
}

func (c *Cdrom) trackStartMSF(trackNum uint8) (mm, ss, ff uint8) {
	return lbaToMSF(c.trackStartLBA(trackNum))
}

func (c *Cdrom) trackForCurrentLBA() (disc.Track, bool) {
	if c.image == nil {
		return disc.Track{Number: 1}, false
	}
	return c.image.TrackForLBA(c.locLBA)
}

func lbaToMSF(lba uint32) (mm, ss, ff uint8) {
	ff = uint8(lba % 75)
	rem := lba / 75
	ss = uint8(rem % 60)
	mm = uint8(rem / 60)
	return
}

// msfToLBA is the inverse of lbaToMSF.
func msfToLBA(mm, ss, ff uint8) uint32 {
	return (uint32(mm)*60+uint32(ss))*75 + uint32(ff)
}
