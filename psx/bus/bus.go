// Package bus implements the PlayStation system bus: physical address
// decode, RAM/BIOS/scratchpad storage, the DMA engine, the three system
// timers, and the interrupt controller, wired together behind the cpu.Bus
// interface. Grounded on go-jeebie's jeebie/memory.MMU: a struct owning the
// flat backing buffers plus small device dependencies injected at
// construction, with per-region dispatch tables instead of one giant switch.
package bus

import (
	"log/slog"

	"github.com/kestrel-systems/psxcore/psx/addr"
	"github.com/kestrel-systems/psxcore/psx/psxlog"
)

// GPU is the subset of the GPU command processor the bus drives directly
// (MMIO ports GP0/GP1/GPUSTAT/GPUREAD, plus the DMA word stream).
type GPU interface {
	ReadGPUSTAT() uint32
	ReadGPUREAD() uint32
	WriteGP0(word uint32)
	WriteGP1(word uint32)
	TickVBlank(cycles int) bool
	DMAReadWord() uint32
	DMAWriteWord(word uint32)
}

// SPU is the subset of the SPU the bus drives: the 2-byte register window
// and the DMA4 word stream that bypasses it.
type SPU interface {
	ReadReg(offset uint32) uint16
	WriteReg(offset uint32, value uint16)
	Tick(cycles int)
	DMAReadWord() uint32
	DMAWriteWord(word uint32)
}

// CDROM is the subset of the CDROM controller the bus drives: the
// index-banked byte ports, ticking, the IRQ line, and the DMA3 word stream.
type CDROM interface {
	MMIOReadByte(offset uint32) uint8
	MMIOWriteByte(offset uint32, value uint8)
	Tick(cycles int)
	IRQLine() bool
	DMAReadWord() uint32
}

// Options configures Bus construction.
type Options struct {
	Logger          *slog.Logger
	AutoEnableIMask bool // spec §4.1 bring-up heuristic, must be explicitly opted in
}

// Bus is the PlayStation system bus.
type Bus struct {
	ram        [addr.RAMSize]byte
	bios       [addr.BIOSSize]byte
	scratchpad [addr.ScratchpadSize]byte

	gpu   GPU
	spu   SPU
	cdrom CDROM

	irq   IntCtrl
	dma   dmaEngine
	tim0  Timer
	tim1  Timer
	tim2  Timer

	lastCDROMIRQ bool

	autoEnableIMask  bool
	vblanksSinceMask int
	cyclesSinceMask  int

	logger *slog.Logger
}

// New creates a Bus with RAM/BIOS/scratchpad zeroed and no devices attached.
// Attach devices with SetGPU/SetSPU/SetCDROM before use.
func New(opts Options) *Bus {
	b := &Bus{
		autoEnableIMask: opts.AutoEnableIMask,
		logger:          psxlog.Tagged(opts.Logger, "BUS"),
	}
	b.dma.bus = b
	b.tim0 = newTimer(timerSourceSysclock, timerSourceDotclock)
	b.tim1 = newTimer(timerSourceSysclock, timerSourceHblank)
	b.tim2 = newTimer(timerSourceSysclock, timerSourceSysclockDiv8)
	return b
}

func (b *Bus) SetGPU(g GPU)     { b.gpu = g }
func (b *Bus) SetSPU(s SPU)     { b.spu = s }
func (b *Bus) SetCDROM(c CDROM) { b.cdrom = c }

// LoadBIOS copies a 512 KiB BIOS image into the BIOS ROM window.
func (b *Bus) LoadBIOS(data []byte) {
	n := copy(b.bios[:], data)
	_ = n
}

// RAM exposes the raw RAM buffer for the loader and fast-boot kernel seeding.
func (b *Bus) RAM() []byte { return b.ram[:] }

// translate folds a virtual address through KSEG0/KSEG1 into a physical
// address, spec §4.1.
func translate(vaddr uint32) uint32 {
	if vaddr >= 0x8000_0000 && vaddr < 0xC000_0000 {
		return vaddr & 0x1FFF_FFFF
	}
	return vaddr
}

// Tick advances timers, the CDROM controller, the SPU sample accumulator,
// and the GPU VBlank counter, latching edge-triggered interrupts, spec §4.1.
func (b *Bus) Tick(cycles int) {
	if b.tim0.Tick(cycles) {
		b.irq.Request(addr.IRQTimer0)
	}
	if b.tim1.Tick(cycles) {
		b.irq.Request(addr.IRQTimer1)
	}
	if b.tim2.Tick(cycles) {
		b.irq.Request(addr.IRQTimer2)
	}

	if b.cdrom != nil {
		b.cdrom.Tick(cycles)
		b.observeCDROMIRQEdge()
	}
	if b.spu != nil {
		b.spu.Tick(cycles)
	}
	if b.gpu != nil && b.gpu.TickVBlank(cycles) {
		b.irq.Request(addr.IRQVBlank)
	}

	b.tickAutoEnableMask(cycles)
}

func (b *Bus) observeCDROMIRQEdge() {
	line := b.cdrom.IRQLine()
	if line && !b.lastCDROMIRQ {
		b.irq.Request(addr.IRQCDROM)
	}
	b.lastCDROMIRQ = line
}

// tickAutoEnableMask implements the bring-up heuristic described in spec
// §4.1: force-enable a baseline interrupt mask if the guest never sets one.
func (b *Bus) tickAutoEnableMask(cycles int) {
	if !b.autoEnableIMask || b.irq.mask != 0 {
		b.vblanksSinceMask = 0
		b.cyclesSinceMask = 0
		return
	}
	b.cyclesSinceMask += cycles
	const maxCycles = 2_000_000
	if b.cyclesSinceMask >= maxCycles {
		b.irq.mask = (1 << addr.IRQVBlank) | (1 << addr.IRQCDROM) |
			(1 << addr.IRQTimer0) | (1 << addr.IRQTimer1) | (1 << addr.IRQTimer2)
		b.logger.Warn("auto-enabling interrupt mask", "mask", b.irq.mask)
	}
}

// InterruptPending implements cpu.Bus.
func (b *Bus) InterruptPending() bool {
	return b.irq.Pending()
}
