// Package cdrom implements the CDROM controller: an index-banked MMIO
// register set, the command/response/data FIFO state machine, delayed
// asynchronous IRQ delivery, ISO9660 lookup, and CDDA/XA audio playback,
// spec §4.4. Grounded on original_source/src/cdrom/cdrom.cpp's register
// and timing model (itself documented against PSX-SPX/no$psx), expressed
// in go-jeebie's device-unit idiom: a struct owning its own FIFOs and
// timing counters, driven by Tick and exposing small MMIO accessor
// methods to the bus.
package cdrom

import (
	"log/slog"

	"github.com/kestrel-systems/psxcore/psx/disc"
	"github.com/kestrel-systems/psxcore/psx/psxlog"
)

// IRQ types (INT1..INT5), spec §4.4.
const (
	int1DataReady = 0x01
	int2Complete  = 0x02
	int3Accepted  = 0x03
	int5Error     = 0x05
)

// kMinInterruptDelay is the minimum cycle gap between IRQ acknowledge and
// the next latched IRQ, spec §4.4 "Minimum inter-IRQ gap".
const kMinInterruptDelay = 1000

// status register bits, 1F801800h read.
const (
	statErrorBit    = 1 << 0
	statMotorOnBit  = 1 << 1
	statShellOpenBit = 1 << 4
	statReadingBit  = 1 << 5
)

// Region identifies the inferred disc region for GetID/Test(0x22).
type Region struct {
	Letter byte   // 'A'/'E'/'I', 0 = unknown
	SCEx   [4]byte
}

// Cdrom is the CD-ROM controller device.
type Cdrom struct {
	logger *slog.Logger

	image  *disc.Image
	region Region

	index      uint8
	status     uint8
	irqEnable  uint8
	irqFlags   uint8
	request    uint8
	busy       bool
	lastCmd    uint8

	paramFIFO  []uint8
	respFIFO   []uint8
	dataFIFO   []uint8
	dataPos    int

	queuedCmd      uint8
	queuedValid    bool
	queuedParams   []uint8

	locMSF   [3]uint8
	locLBA   uint32
	wantData bool

	readPendingIRQ1  bool
	dataReadyPending bool
	asyncStatPending bool
	readingActive    bool

	mode       uint8
	filterFile uint8
	filterChan uint8

	motorSpinning      bool
	headLBA            uint32
	motorIdleCountdown uint32

	volLL, volLR, volRL, volRR uint8

	pendingIRQType  uint8
	pendingIRQDelay uint32
	pendingIRQResp  uint8
	pendingIRQReasn uint8
	pendingIRQExtra []uint8

	cmdIRQPending uint8
	cmdIRQDelay   uint32

	cyclesSinceIRQAck uint32

	cdda cddaState
	xa   xaDecoder
}

// New constructs a CD-ROM controller with no disc inserted.
func New(logger *slog.Logger) *Cdrom {
	c := &Cdrom{
		logger:            psxlog.Tagged(logger, "CDROM"),
		irqEnable:         0x1F,
		cyclesSinceIRQAck: kMinInterruptDelay,
		status:            statShellOpenBit,
	}
	return c
}

// InsertDisc implements spec §4.4's `insert_disc`.
func (c *Cdrom) InsertDisc(path string) error {
	c.EjectDisc()
	img, err := disc.Open(path)
	if err != nil {
		return err
	}
	c.image = img
	c.region = c.inferDiscRegion()
	c.status = statMotorOnBit
	c.motorSpinning = true
	return nil
}

// EjectDisc releases the current disc image, if any.
func (c *Cdrom) EjectDisc() {
	if c.image != nil {
		c.image.Close()
		c.image = nil
	}
	c.readingActive = false
	c.cdda.playing = false
	c.status = statShellOpenBit
}

// MMIOReadByte implements bus.CDROM, spec §4.4's index-banked port table.
func (c *Cdrom) MMIOReadByte(offset uint32) uint8 {
	switch offset & 3 {
	case 0:
		return c.statusReg()
	case 1:
		return c.popResp()
	case 2:
		return c.popData()
	default: // 3
		if c.index&1 == 0 {
			return c.irqEnable | 0xE0
		}
		cmdReady := uint8(0)
		if !c.busy && !c.queuedValid {
			cmdReady = 1 << 4
		}
		return (c.irqFlags & 0x1F) | cmdReady | 0xE0
	}
}

// MMIOWriteByte implements bus.CDROM.
func (c *Cdrom) MMIOWriteByte(offset uint32, value uint8) {
	switch offset & 3 {
	case 0:
		c.index = value & 3
	case 1:
		c.writePort1(value)
	case 2:
		c.writePort2(value)
	default:
		c.writePort3(value)
	}
}

func (c *Cdrom) writePort1(v uint8) {
	switch c.index {
	case 0:
		c.writeCommand(v)
	case 3:
		c.volRR = v
	}
}

func (c *Cdrom) writeCommand(v uint8) {
	if (c.irqFlags&0x1F) != 0 || c.busy {
		c.queuedCmd = v
		c.queuedValid = true
		c.queuedParams = append([]uint8(nil), c.paramFIFO...)
		c.busy = true
		return
	}
	c.busy = true
	c.execCommand(v)
	c.busy = false
}

func (c *Cdrom) writePort2(v uint8) {
	switch c.index {
	case 0: // parameter FIFO push
		if len(c.paramFIFO) < 16 {
			c.paramFIFO = append(c.paramFIFO, v)
		}
	case 1: // IRQ enable
		c.irqEnable = v & 0x1F
	case 2:
		c.volLL = v
	case 3:
		c.volRL = v
	}
}

func (c *Cdrom) writePort3(v uint8) {
	switch c.index {
	case 0: // 1F801803h.0 - Request Register
		c.request = v
		c.wantData = v&0x80 != 0
		if !c.wantData {
			c.clearData()
		} else {
			c.tryFillDataFIFO()
		}
	case 1: // 1F801803h.1 - Interrupt Flag Register
		c.ackIRQ(v)
	case 2: // 1F801803h.2 - Left-CD-to-Right-SPU-Volume
		c.volLR = v
	case 3: // 1F801803h.3 - Audio Volume Apply Changes; volumes take effect
		// immediately on write, so there is nothing further to latch here.
		_ = v
	}
}

// ackIRQ implements the write-1-to-clear IRQ flags register plus the
// cascading continuation logic spec §4.4 describes for ReadN/ReadS and
// queued commands.
func (c *Cdrom) ackIRQ(v uint8) {
	old := c.irqFlags & 0x1F
	c.irqFlags &^= v & 0x1F
	newFlags := c.irqFlags & 0x1F

	if old != 0 && newFlags == 0 {
		c.cyclesSinceIRQAck = 0
	}
	if v&0x40 != 0 {
		c.paramFIFO = c.paramFIFO[:0]
	}

	switch {
	case c.readPendingIRQ1 && old != 0 && newFlags == 0:
		c.readPendingIRQ1 = false
		c.dataReadyPending = true
		c.pendingIRQType = int1DataReady
		c.pendingIRQResp = c.status
		c.pendingIRQReasn = 0
		c.pendingIRQDelay = c.calcSeekTime(c.headLBA, c.locLBA, true)
		c.motorSpinning = true
		c.tryFillDataFIFO()
	case c.readingActive && !c.queuedValid && old&0x07 == 0x01 && newFlags&0x07 == 0:
		c.pendingIRQType = int1DataReady
		c.pendingIRQResp = c.status
		c.pendingIRQReasn = 0xFF // marker: advance sector on delivery
		if c.mode&0x80 != 0 {
			c.pendingIRQDelay = 11000
		} else {
			c.pendingIRQDelay = 22000
		}
	}

	if c.asyncStatPending && old != 0 && newFlags == 0 {
		c.asyncStatPending = false
		c.pendingIRQType = int2Complete
		c.pendingIRQResp = c.status
		c.pendingIRQReasn = 0
		c.pendingIRQDelay = 5000
	}

	if c.queuedValid && newFlags == 0 && c.pendingIRQType == 0 {
		c.paramFIFO = append([]uint8(nil), c.queuedParams...)
		c.queuedValid = false
		c.busy = true
		c.execCommand(c.queuedCmd)
		c.busy = false
	} else if !c.queuedValid {
		c.busy = false
	}
}

func (c *Cdrom) statusReg() uint8 {
	prmEmpty := uint8(0)
	if len(c.paramFIFO) == 0 {
		prmEmpty = 1 << 3
	}
	prmWrdy := uint8(0)
	if len(c.paramFIFO) < 16 {
		prmWrdy = 1 << 4
	}
	respReady := uint8(0)
	if len(c.respFIFO) > 0 {
		respReady = 1 << 5
	}
	dataReady := uint8(0)
	if c.dataPos < len(c.dataFIFO) {
		dataReady = 1 << 6
	}
	busy := uint8(0)
	if c.busy || c.queuedValid {
		busy = 1 << 7
	}
	return c.index | prmEmpty | prmWrdy | respReady | dataReady | busy
}

func (c *Cdrom) pushResp(v uint8)   { c.respFIFO = append(c.respFIFO, v) }
func (c *Cdrom) clearResp()         { c.respFIFO = c.respFIFO[:0] }
func (c *Cdrom) popResp() uint8 {
	if len(c.respFIFO) == 0 {
		return 0
	}
	v := c.respFIFO[0]
	c.respFIFO = c.respFIFO[1:]
	return v
}

func (c *Cdrom) clearData() {
	c.dataFIFO = c.dataFIFO[:0]
	c.dataPos = 0
}
func (c *Cdrom) popData() uint8 {
	if c.dataPos >= len(c.dataFIFO) {
		return 0
	}
	v := c.dataFIFO[c.dataPos]
	c.dataPos++
	return v
}

func (c *Cdrom) clearParams() { c.paramFIFO = c.paramFIFO[:0] }

// setIRQ latches the given IRQ type into bits 0-2 of the flags register,
// spec §4.4 "push the pending stat... and latch the pending IRQ".
func (c *Cdrom) setIRQ(flags uint8) {
	c.irqFlags = (c.irqFlags &^ 0x07) | (flags & 0x07)
}

// IRQLine implements bus.CDROM: the /IRQ line is high only when the
// latched IRQ type is individually enabled, spec §4.9.
func (c *Cdrom) IRQLine() bool {
	irqType := c.irqFlags & 0x07
	if irqType == 0 || irqType > 5 {
		return false
	}
	return c.irqEnable&(1<<(irqType-1)) != 0
}

// tryFillDataFIFO loads the requested sector's 2048-byte payload once the
// game has both acknowledged INT1 and set the want-data bit, spec §4.4
// step 4 of the continuous read protocol.
func (c *Cdrom) tryFillDataFIFO() {
	if c.image == nil || !c.dataReadyPending || !c.wantData || c.dataPos < len(c.dataFIFO) {
		return
	}
	var buf [2048]byte
	if err := c.image.ReadSector2048(c.locLBA, &buf); err != nil {
		c.logger.Warn("data FIFO fill failed", "lba", c.locLBA, "err", err)
		return
	}
	c.dataFIFO = append(c.dataFIFO[:0], buf[:]...)
	c.dataPos = 0

	if c.mode&modeXAADPCM != 0 {
		c.maybeDecodeXASector()
	}
}

// xa mode register bits, spec §4.4 Setmode.
const (
	modeXAFilter = 1 << 3
	modeXAADPCM  = 1 << 6
)

// submode bits within an XA sector's sub-header, PSX-SPX Mode 2 Form 2.
const (
	submodeForm2 = 1 << 2
	submodeAudio = 1 << 5
)

// maybeDecodeXASector inspects the current sector's raw sub-header and,
// if it carries Mode 2 Form 2 XA audio matching the active file/channel
// filter, decodes it and feeds the resulting stereo samples into the
// CD-audio mix FIFO shared with CDDA playback.
func (c *Cdrom) maybeDecodeXASector() {
	var raw [2352]byte
	if err := c.image.ReadRawAudio(c.locLBA, &raw); err != nil {
		return
	}
	file, channel, submode := raw[16], raw[17], raw[18]
	if submode&submodeForm2 == 0 || submode&submodeAudio == 0 {
		return
	}
	if c.mode&modeXAFilter != 0 && (file != c.filterFile || channel != c.filterChan) {
		return
	}

	var left, right [4032]int16
	n := c.xa.decodeSector(raw[16:16+2336], left[:], right[:])
	for i := 0; i < n; i++ {
		c.pushCDDAFrame(left[i], right[i])
	}
}

// DMAReadWord implements bus.CDROM's DMA3 word stream: four bytes pulled
// straight from the data FIFO.
func (c *Cdrom) DMAReadWord() uint32 {
	var b [4]uint8
	for i := range b {
		b[i] = c.popData()
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Tick implements bus.CDROM: advances async/command IRQ delivery timers
// and the motor/CDDA state machines, spec §4.4 "Asynchronous INT delivery".
func (c *Cdrom) Tick(cycles int) {
	cy := uint32(cycles)
	if c.cyclesSinceIRQAck < kMinInterruptDelay {
		c.cyclesSinceIRQAck += cy
	}

	if c.cmdIRQPending != 0 {
		if c.cmdIRQDelay > cy {
			c.cmdIRQDelay -= cy
		} else {
			c.cmdIRQDelay = 0
		}
		if c.cmdIRQDelay == 0 && c.irqFlags&0x1F == 0 {
			c.setIRQ(c.cmdIRQPending)
			c.cmdIRQPending = 0
		}
	}

	if c.pendingIRQType != 0 {
		if c.cmdIRQPending == 0 && c.pendingIRQDelay > 0 {
			if c.pendingIRQDelay > cy {
				c.pendingIRQDelay -= cy
			} else {
				c.pendingIRQDelay = 0
			}
		}
		if c.pendingIRQDelay == 0 && c.irqFlags&0x1F == 0 && c.cyclesSinceIRQAck >= kMinInterruptDelay {
			c.deliverPendingIRQ()
		}
	}

	if c.motorIdleCountdown > 0 {
		if c.motorIdleCountdown > cy {
			c.motorIdleCountdown -= cy
		} else {
			c.motorIdleCountdown = 0
			c.motorSpinning = false
		}
	}

	if c.cdda.playing {
		c.tickCDDA(cycles)
	}
}

func (c *Cdrom) deliverPendingIRQ() {
	if c.pendingIRQReasn == 0xFF {
		discEnd := uint32(0)
		if c.image != nil {
			discEnd = c.image.SectorCount()
		}
		if discEnd > 0 && c.locLBA+1 >= discEnd {
			c.stopReadingWithError(0x80)
			return
		}
		c.locLBA++
		c.clearData()
		c.wantData = false
		c.dataReadyPending = true
		c.pendingIRQReasn = 0
	}

	if c.pendingIRQType == int1DataReady {
		c.headLBA = c.locLBA
	}

	c.clearResp()
	c.pushResp(c.pendingIRQResp)
	if c.pendingIRQReasn != 0 {
		c.pushResp(c.pendingIRQReasn)
	}
	c.respFIFO = append(c.respFIFO, c.pendingIRQExtra...)
	c.pendingIRQExtra = nil

	c.setIRQ(c.pendingIRQType)
	c.pendingIRQType = 0
	c.pendingIRQReasn = 0
}

// stopReadingWithError implements spec §4.4 step 6 of the continuous read
// protocol.
func (c *Cdrom) stopReadingWithError(reason uint8) {
	c.pendingIRQType = 0
	c.pendingIRQDelay = 0
	c.pendingIRQReasn = 0
	c.pendingIRQExtra = nil

	c.readingActive = false
	c.dataReadyPending = false
	c.wantData = false

	c.clearResp()
	c.pushResp(c.status | statErrorBit)
	c.pushResp(reason)
	c.setIRQ(int5Error)
}

// calcSeekTime implements a logarithmic distance model capped at
// maxSeekTicks (≈6 ms), grounded on original_source/src/cdrom/cdrom.cpp's
// calc_seek_time. There is a single timing mode; no slower, realistic
// seek-time mode exists.
func (c *Cdrom) calcSeekTime(from, to uint32, includeSpinup bool) uint32 {
	const spinUpDelay = 2_032_128
	const minSeekTicks = 40_000
	const maxSeekTicks = 200_000

	var total uint32
	if includeSpinup && !c.motorSpinning {
		total += spinUpDelay
	}

	dist := from - to
	if to > from {
		dist = to - from
	}

	switch {
	case dist == 0:
		if c.mode&0x80 != 0 {
			total += 11000
		} else {
			total += 22000
		}
	case dist <= 2:
		total += minSeekTicks
	default:
		log2Dist := uint32(0)
		for temp := dist; temp > 1; temp >>= 1 {
			log2Dist++
		}
		seekTicks := minSeekTicks + log2Dist*13500
		if seekTicks > maxSeekTicks {
			seekTicks = maxSeekTicks
		}
		total += seekTicks
	}
	return total
}

func bcdToU8(bcd uint8) uint8 { return (bcd>>4)*10 + bcd&0xF }
func u8ToBCD(v uint8) uint8   { return (v/10)<<4 | v%10 }

// DebugState exposes the controller's FIFO depths and latched register
// bytes for the debug terminal, without leaking internal field types.
func (c *Cdrom) DebugState() (status, irqFlags, irqEnable uint8, paramLen, respLen, dataLen int, lba uint32) {
	return c.status, c.irqFlags & 0x1F, c.irqEnable, len(c.paramFIFO), len(c.respFIFO), len(c.dataFIFO) - c.dataPos, c.locLBA
}
