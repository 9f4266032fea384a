package bus

import "github.com/kestrel-systems/psxcore/psx/addr"

// CHCR bit layout (the bits this engine interprets).
const (
	chcrToDevice  = 0       // direction bit: 0 = RAM->device, 1 = device->RAM
	chcrStepBack  = 1       // address step: 0 = +4, 1 = -4
	chcrSyncShift = 9       // sync mode, bits 9:10
	chcrSyncMask  = 0x3 << chcrSyncShift
	chcrEnable    = 1 << 24 // "start/busy"
	chcrTrigger   = 1 << 28 // manual start trigger, sync mode 0 only
)

const (
	syncModeBurst = iota
	syncModeBlock
	syncModeLinkedList
)

// dmaChannel holds one channel's three registers, spec §4.1.
type dmaChannel struct {
	madr uint32
	bcr  uint32
	chcr uint32
}

// dmaEngine implements the seven DMA channels plus DPCR/DICR, spec §4.1.
// Grounded on go-jeebie's jeebie/memory.MMU dispatch style (a device struct
// referencing its owning bus to reach shared RAM and sibling devices),
// generalized from single-byte OAM DMA to PS1's seven independently
// configured channels.
type dmaEngine struct {
	bus  *Bus
	ch   [addr.DMAChanCount]dmaChannel
	dpcr uint32
	dicr uint32
}

func (d *dmaEngine) readReg(offset uint32) uint32 {
	if offset >= 0x70 {
		switch offset {
		case 0x70:
			return d.dpcr
		case 0x74:
			return d.dicr
		default:
			return 0
		}
	}
	ch := offset / 0x10
	if ch >= addr.DMAChanCount {
		return 0
	}
	switch offset % 0x10 {
	case 0x0:
		return d.ch[ch].madr
	case 0x4:
		return d.ch[ch].bcr
	case 0x8:
		return d.ch[ch].chcr
	default:
		return 0
	}
}

func (d *dmaEngine) writeReg(offset uint32, value uint32) {
	if offset >= 0x70 {
		switch offset {
		case 0x70:
			d.dpcr = value
		case 0x74:
			// Bits 0..23 (force/enables/master-enable) are written directly;
			// bits 24..30 (per-channel flags) are write-1-to-clear; bit 31
			// is read-only and recomputed below.
			d.dicr = (d.dicr &^ 0x00FF_FFFF) | (value & 0x00FF_FFFF)
			d.dicr &^= value & 0x7F00_0000
			d.recomputeMasterFlag()
		}
		return
	}
	ch := offset / 0x10
	if ch >= addr.DMAChanCount {
		return
	}
	switch offset % 0x10 {
	case 0x0:
		d.ch[ch].madr = value & 0x00FF_FFFF
	case 0x4:
		d.ch[ch].bcr = value
	case 0x8:
		d.ch[ch].chcr = value
		if value&chcrEnable != 0 {
			sync := (value & chcrSyncMask) >> chcrSyncShift
			if sync != syncModeBurst || value&chcrTrigger != 0 {
				d.run(int(ch))
			}
		}
	}
}

// run executes channel ch synchronously to completion, spec §4.1.
func (d *dmaEngine) run(ch int) {
	c := &d.ch[ch]
	dir := c.chcr & (1 << chcrToDevice)
	step := int32(4)
	if c.chcr&(1<<chcrStepBack) != 0 {
		step = -4
	}
	sync := (c.chcr & chcrSyncMask) >> chcrSyncShift

	switch ch {
	case addr.DMAChanGPU:
		d.runGPU(c, dir, step, sync)
	case addr.DMAChanCDROM:
		d.runCDROM(c, step)
	case addr.DMAChanSPU:
		d.runSPU(c, dir, step)
	case addr.DMAChanOTC:
		d.runOTC(c)
	default:
		// MDEC/PIO channels: no device model behind them yet; drain the
		// transfer against RAM so guests that probe these channels don't
		// hang waiting for completion.
		words := blockWords(c.bcr, sync)
		d.advance(c, step, words)
	}

	c.chcr &^= chcrEnable | chcrTrigger
	d.dicr |= 1 << (uint(ch) + 24)
	d.recomputeMasterFlag()
}

func blockWords(bcr uint32, sync uint32) int {
	if sync == syncModeBlock {
		bs := bcr & 0xFFFF
		bc := bcr >> 16
		if bc == 0 {
			bc = 0x10000
		}
		return int(bs) * int(bc)
	}
	bs := bcr & 0xFFFF
	if bs == 0 {
		bs = 0x10000
	}
	return int(bs)
}

func (d *dmaEngine) advance(c *dmaChannel, step int32, words int) {
	addrv := c.madr
	for i := 0; i < words; i++ {
		addrv = uint32(int64(addrv) + int64(step))
	}
	c.madr = addrv & 0x00FF_FFFF
}

func (d *dmaEngine) runGPU(c *dmaChannel, dir uint32, step int32, sync uint32) {
	gpu := d.bus.gpu
	if gpu == nil {
		return
	}
	if sync == syncModeLinkedList {
		addrv := c.madr & 0x00FF_FFFF
		for {
			header := d.bus.ramReadWord(addrv)
			count := header >> 24
			for i := uint32(0); i < count; i++ {
				wordAddr := (addrv + 4 + i*4) & 0x00FF_FFFF
				gpu.DMAWriteWord(d.bus.ramReadWord(wordAddr))
			}
			if header&0x00FF_FFFF == 0x00FF_FFFF {
				break
			}
			addrv = header & 0x00FF_FFFF
		}
		c.madr = addrv
		return
	}

	words := blockWords(c.bcr, sync)
	addrv := c.madr
	for i := 0; i < words; i++ {
		if dir != 0 { // device -> RAM
			d.bus.ramWriteWord(addrv&0x00FF_FFFF, gpu.DMAReadWord())
		} else {
			gpu.DMAWriteWord(d.bus.ramReadWord(addrv & 0x00FF_FFFF))
		}
		addrv = uint32(int64(addrv) + int64(step))
	}
	c.madr = addrv & 0x00FF_FFFF
}

func (d *dmaEngine) runCDROM(c *dmaChannel, step int32) {
	cd := d.bus.cdrom
	if cd == nil {
		return
	}
	bs := c.bcr & 0xFFFF
	bc := c.bcr >> 16
	if bc == 0 {
		bc = 1
	}
	words := int(bs) * int(bc)
	addrv := c.madr
	for i := 0; i < words; i++ {
		d.bus.ramWriteWord(addrv&0x00FF_FFFF, cd.DMAReadWord())
		addrv = uint32(int64(addrv) + int64(step))
	}
	c.madr = addrv & 0x00FF_FFFF
}

func (d *dmaEngine) runSPU(c *dmaChannel, dir uint32, step int32) {
	spu := d.bus.spu
	if spu == nil {
		return
	}
	words := blockWords(c.bcr, syncModeBlock)
	addrv := c.madr
	for i := 0; i < words; i++ {
		if dir != 0 {
			d.bus.ramWriteWord(addrv&0x00FF_FFFF, spu.DMAReadWord())
		} else {
			spu.DMAWriteWord(d.bus.ramReadWord(addrv & 0x00FF_FFFF))
		}
		addrv = uint32(int64(addrv) + int64(step))
	}
	c.madr = addrv & 0x00FF_FFFF
}

// runOTC writes a descending linked list of "previous entry" pointers,
// terminated by 0x00FF_FFFF, used to pre-seed the GPU's ordering table.
func (d *dmaEngine) runOTC(c *dmaChannel) {
	count := c.bcr & 0xFFFF
	if count == 0 {
		return
	}
	addrv := c.madr & 0x00FF_FFFF
	for i := uint32(0); i < count-1; i++ {
		prev := (addrv - 4) & 0x00FF_FFFF
		d.bus.ramWriteWord(addrv, prev)
		addrv = prev
	}
	d.bus.ramWriteWord(addrv, 0x00FF_FFFF)
	c.madr = addrv
}

// recomputeMasterFlag derives DICR's master IRQ flag (bit 31) from the
// force bit (15), per-channel flags (24..30) AND enables (16..22), and the
// master enable (23), then latches the DMA interrupt on the bus, spec §4.1.
func (d *dmaEngine) recomputeMasterFlag() {
	force := d.dicr&(1<<15) != 0
	masterEnable := d.dicr&(1<<23) != 0
	flags := (d.dicr >> 24) & 0x7F
	enables := (d.dicr >> 16) & 0x7F
	master := force || (masterEnable && (flags&enables) != 0)
	if master {
		d.dicr |= 1 << 31
		d.bus.irq.Request(addr.IRQDMA)
	} else {
		d.dicr &^= 1 << 31
	}
}
