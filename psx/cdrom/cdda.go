package cdrom

import "github.com/kestrel-systems/psxcore/psx/disc"

// cddaState holds Red Book audio playback state, spec §4.4's CDDA
// playback description. original_source declares start_cdda_playback /
// process_cdda_sector / tick_cdda in cdrom.h but never defines their
// bodies in the provided source, so this state machine is designed
// directly from the spec's prose rather than ported line-for-line.
type cddaState struct {
	playing bool
	muted   bool

	cyclesPerSector uint32 // host CPU cycles per 2352-byte sector at 75 sectors/sec
	cycleAccum      uint32

	fifo    [4096][2]int16 // stereo sample ring buffer
	fifoLen int
	fifoPos int
}

// cddaCyclesPerSector is derived from the 33.8688 MHz CPU clock and the
// CD-DA sector rate of 75 Hz: 33_868_800 / 75.
const cddaCyclesPerSector = 451584

// beginCDDA starts audio playback from the controller's current LBA,
// spec §4.4 "Play command".
func (c *Cdrom) beginCDDA() {
	c.cdda.playing = true
	c.cdda.cyclesPerSector = cddaCyclesPerSector
	c.cdda.cycleAccum = 0
	c.readingActive = false
	c.status |= statReadingBit
}

// tickCDDA advances audio playback by cycles host CPU cycles, decoding
// one raw sector into the sample FIFO every time the sector-rate
// accumulator rolls over.
func (c *Cdrom) tickCDDA(cycles int) {
	c.cdda.cycleAccum += uint32(cycles)
	for c.cdda.cycleAccum >= c.cdda.cyclesPerSector {
		c.cdda.cycleAccum -= c.cdda.cyclesPerSector
		c.decodeCDDASector()
	}
}

// decodeCDDASector reads one raw 2352-byte CDDA sector and appends its
// 588 stereo frames (16-bit signed little-endian, spec §4.4) to the
// sample FIFO, dropping the oldest frames on overflow rather than
// blocking emulation.
func (c *Cdrom) decodeCDDASector() {
	if c.image == nil {
		c.cdda.playing = false
		return
	}
	var raw [2352]byte
	if err := c.image.ReadRawAudio(c.locLBA, &raw); err != nil {
		c.logger.Warn("cdda sector read failed", "lba", c.locLBA, "err", err)
		c.cdda.playing = false
		return
	}

	for i := 0; i+3 < len(raw); i += 4 {
		l := int16(uint16(raw[i]) | uint16(raw[i+1])<<8)
		r := int16(uint16(raw[i+2]) | uint16(raw[i+3])<<8)
		c.pushCDDAFrame(l, r)
	}

	tr, _ := c.trackForCurrentLBA()
	discEnd := c.image.SectorCount()
	if tr.Number != 0 {
		if next, ok := nextTrackStart(c.image.Tracks(), tr.Number); ok {
			discEnd = next
		}
	}
	c.locLBA++
	if c.locLBA >= discEnd {
		c.cdda.playing = false
		c.status &^= statReadingBit
	}
}

func (c *Cdrom) pushCDDAFrame(l, r int16) {
	if c.cdda.muted {
		l, r = 0, 0
	}
	if c.cdda.fifoLen >= len(c.cdda.fifo) {
		c.cdda.fifoPos = (c.cdda.fifoPos + 1) % len(c.cdda.fifo)
		c.cdda.fifoLen--
	}
	writeIdx := (c.cdda.fifoPos + c.cdda.fifoLen) % len(c.cdda.fifo)
	c.cdda.fifo[writeIdx] = [2]int16{l, r}
	c.cdda.fifoLen++
}

// GetAudioFrame drains one stereo CDDA sample frame for mixing into the
// SPU's CD-audio input, spec §4.4. Returns ok=false when the FIFO is
// empty.
func (c *Cdrom) GetAudioFrame() (left, right int16, ok bool) {
	if c.cdda.fifoLen == 0 {
		return 0, 0, false
	}
	frame := c.cdda.fifo[c.cdda.fifoPos]
	c.cdda.fifoPos = (c.cdda.fifoPos + 1) % len(c.cdda.fifo)
	c.cdda.fifoLen--
	return frame[0], frame[1], true
}

func nextTrackStart(tracks []disc.Track, afterNum uint8) (uint32, bool) {
	found := false
	var best uint32
	for _, t := range tracks {
		if t.Number > afterNum && (!found || t.StartLBA < best) {
			best = t.StartLBA
			found = true
		}
	}
	return best, found
}
