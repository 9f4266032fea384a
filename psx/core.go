// Package psx is the root facade: it owns RAM, BIOS bytes, and every
// hardware subsystem, wires them onto the bus, and drives stepped
// execution. Grounded on go-jeebie's jeebie.Emulator/DMG (jeebie/core.go,
// jeebie/emulator.go): a struct that owns cpu/gpu/mem, exposes a
// RunUntilFrame loop plus debugger pause/step/resume controls guarded by a
// mutex, generalized from the Game Boy's fixed memory map to the PS1's
// bus-mediated subsystem wiring (spec §4.8 "Core facade").
package psx

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/kestrel-systems/psxcore/psx/addr"
	"github.com/kestrel-systems/psxcore/psx/bus"
	"github.com/kestrel-systems/psxcore/psx/cdrom"
	"github.com/kestrel-systems/psxcore/psx/cpu"
	"github.com/kestrel-systems/psxcore/psx/debug"
	"github.com/kestrel-systems/psxcore/psx/gpu"
	"github.com/kestrel-systems/psxcore/psx/gte"
	"github.com/kestrel-systems/psxcore/psx/loader"
	"github.com/kestrel-systems/psxcore/psx/psxlog"
	"github.com/kestrel-systems/psxcore/psx/spu"
)

// RunState mirrors go-jeebie's DebuggerState, spec §4.8's "drive execution
// by calling step() in a loop", extended with pause/step controls for the
// debug terminal.
type RunState int

const (
	RunRunning RunState = iota
	RunPaused
	RunStepInstruction
	RunStepFrame
)

// busTickBatch is the number of CPU cycles advanced per bus.Tick call
// between CPU steps, spec §4.8 "bus tick batch size".
const busTickBatch = 32

// Options configures Core construction, spec §4.8 step 5's "apply options":
// logger, HLE interception, automatic I_MASK enabling, stop-on-PC and the
// WAV dump path. There are no trace flags, and the bus tick batch size is
// the fixed busTickBatch constant.
type Options struct {
	Logger          *slog.Logger
	EnableHLE       bool
	AutoEnableIMask bool
	StopOnPC        *uint32
	WavDumpPath     string
}

// Core owns every subsystem and drives execution, spec §4.8.
type Core struct {
	bus   *bus.Bus
	cpu   *cpu.CPU
	gte   *gte.GTE
	gpu   *gpu.GPU
	spu   *spu.SPU
	cdrom *cdrom.Cdrom

	opts Options

	runMutex      sync.RWMutex
	runState      RunState
	stepRequested bool
	frameRequested bool

	instructionCount uint64
	frameCount       uint64

	logger *slog.Logger
}

// New constructs a Core with every subsystem instantiated and wired onto
// the bus, RAM zeroed, spec §4.8 steps 1-3.
func New(opts Options) *Core {
	logger := psxlog.Tagged(opts.Logger, "CORE")

	c := &Core{opts: opts, logger: logger}

	c.gte = gte.New(opts.Logger)
	c.gpu = gpu.New(opts.Logger)
	c.spu = spu.New(opts.Logger)
	c.cdrom = cdrom.New(opts.Logger)

	c.bus = bus.New(bus.Options{Logger: opts.Logger, AutoEnableIMask: opts.AutoEnableIMask})
	c.bus.SetGPU(c.gpu)
	c.bus.SetSPU(c.spu)
	c.bus.SetCDROM(c.cdrom)

	var hle cpu.HLEHooks
	if opts.EnableHLE {
		hle = c.newBIOSHLE()
	}
	c.cpu = cpu.New(c.bus, c.gte, cpu.Options{Logger: opts.Logger, HLE: hle})

	if opts.WavDumpPath != "" {
		if err := c.spu.SetWAVDumpPath(opts.WavDumpPath); err != nil {
			logger.Warn("failed to open WAV dump sink", "path", opts.WavDumpPath, "err", err)
		}
	}

	return c
}

// SetBIOS installs a BIOS image, spec §4.8 step 2, "optional".
func (c *Core) SetBIOS(data []byte) {
	c.bus.LoadBIOS(data)
}

// InsertDisc opens a CUE/BIN or ISO disc image and attaches it to the CDROM
// controller, spec §4.8 step 4.
func (c *Core) InsertDisc(path string) error {
	if err := c.cdrom.InsertDisc(path); err != nil {
		return fmt.Errorf("psx: insert disc: %w", err)
	}
	return nil
}

// LoadExecutable recognizes and loads a PS-X EXE or ELF32 file from the
// host filesystem bytes, resetting the CPU to its entry point and seeding
// GP/SP from the header, spec §4.8 step 5.
func (c *Core) LoadExecutable(data []byte) error {
	res, err := loader.Load(c.bus.RAM(), data)
	if err != nil {
		return fmt.Errorf("psx: load executable: %w", err)
	}
	c.cpu.Reset(res.PC)
	if res.GP != 0 {
		c.cpu.SetGP(res.GP)
	}
	c.cpu.SetSP(res.SP)
	return nil
}

// FastBoot implements spec §4.8's fast-boot path: parse SYSTEM.CNF's BOOT
// entry off the inserted disc, load the named PS-X EXE's text segment,
// seed the PCB/TCB kernel structures HLE expects to find, enable HLE
// vectors (if not already requested at construction), and unmask
// VBlank|CDROM|DMA before the caller starts stepping.
func (c *Core) FastBoot() error {
	if c.cdrom == nil {
		return fmt.Errorf("psx: fast-boot: no disc inserted")
	}

	bootPath, err := c.cdrom.BootExecutablePath()
	if err != nil {
		return fmt.Errorf("psx: fast-boot: %w", err)
	}

	exe, err := c.cdrom.ReadFile(bootPath)
	if err != nil {
		return fmt.Errorf("psx: fast-boot: read %q: %w", bootPath, err)
	}

	if err := c.LoadExecutable(exe); err != nil {
		return fmt.Errorf("psx: fast-boot: %w", err)
	}

	c.seedKernelStructures()

	if !c.opts.EnableHLE {
		c.cpu.SetHLE(c.newBIOSHLE())
		c.opts.EnableHLE = true
	}

	imask := uint32(1<<addr.IRQVBlank | 1<<addr.IRQCDROM | 1<<addr.IRQDMA)
	c.bus.WriteU32(addr.IMask, imask)

	c.logger.Info("fast-boot complete", "exe", bootPath, "pc", fmt.Sprintf("0x%08X", c.cpu.GetPC()))
	return nil
}

// seedKernelStructures writes a minimal PCB at 0x200 and TCB at 0x300, spec
// §4.8: "seed kernel data structures (PCB at 0x200, TCB at 0x300 with the
// active bit and a saved Status that enables IM2)".
func (c *Core) seedKernelStructures() {
	ram := c.bus.RAM()

	const pcbAddr = 0x200
	const tcbAddr = 0x300
	putWord(ram, pcbAddr, tcbAddr) // PCB.currentTCB -> first TCB slot

	const tcbActiveBit = 1 << 0
	statusIM2 := uint32(1<<10 | 1) // Status: IM bit 2 (0x400 in real hw layout simplified to bit10 here) | IEc
	putWord(ram, tcbAddr+0x00, tcbActiveBit)
	putWord(ram, tcbAddr+0x04, statusIM2)
	putWord(ram, tcbAddr+0x08, c.cpu.GetPC())
}

// newBIOSHLE wires cpu.BIOSHLE's putchar service to stdout, the only
// concrete kernel call this core services directly (spec §4.2).
func (c *Core) newBIOSHLE() *cpu.BIOSHLE {
	return cpu.NewBIOSHLE(func(b byte) {
		fmt.Fprint(os.Stdout, string(rune(b)))
	}, c.opts.Logger)
}

func putWord(ram []byte, addr uint32, v uint32) {
	if int(addr)+4 > len(ram) {
		return
	}
	ram[addr+0] = byte(v)
	ram[addr+1] = byte(v >> 8)
	ram[addr+2] = byte(v >> 16)
	ram[addr+3] = byte(v >> 24)
}

// Step executes exactly one CPU instruction and ticks the bus by
// busTickBatch cycles, spec §4.8 step 6 / §5's "suspension points: only at
// instruction boundaries".
func (c *Core) Step() cpu.StepResult {
	res := c.cpu.Step()
	c.bus.Tick(busTickBatch)
	c.instructionCount++
	if c.opts.StopOnPC != nil && c.cpu.GetPC() == *c.opts.StopOnPC {
		c.SetRunState(RunPaused)
	}
	return res
}

// RunUntilFrame steps the core until the GPU completes a frame (tracked via
// the GPU's write-sequence/frame counter) or the run state requests a
// pause, mirroring go-jeebie's Emulator.RunUntilFrame dispatch over
// DebuggerState.
func (c *Core) RunUntilFrame() cpu.StepResult {
	c.runMutex.RLock()
	state := c.runState
	c.runMutex.RUnlock()

	switch state {
	case RunPaused:
		return cpu.StepOK

	case RunStepInstruction:
		c.runMutex.Lock()
		if !c.stepRequested {
			c.runMutex.Unlock()
			return cpu.StepOK
		}
		c.stepRequested = false
		c.runMutex.Unlock()
		res := c.Step()
		c.SetRunState(RunPaused)
		return res

	case RunStepFrame:
		c.runMutex.Lock()
		if !c.frameRequested {
			c.runMutex.Unlock()
			return cpu.StepOK
		}
		c.frameRequested = false
		c.runMutex.Unlock()
		res := c.runOneFrame()
		c.SetRunState(RunPaused)
		return res

	default:
		return c.runOneFrame()
	}
}

func (c *Core) runOneFrame() cpu.StepResult {
	_, startSeq := c.gpu.Snapshot()
	for {
		res := c.Step()
		if res != cpu.StepOK {
			return res
		}
		if _, seq := c.gpu.Snapshot(); seq != startSeq {
			c.frameCount++
			return cpu.StepOK
		}
	}
}

// SetRunState transitions the debugger run state, spec §4.8/§5, mirroring
// go-jeebie's Emulator.SetDebuggerState.
func (c *Core) SetRunState(state RunState) {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()
	c.runState = state
	c.logger.Debug("run state changed", "state", state)
}

func (c *Core) GetRunState() RunState {
	c.runMutex.RLock()
	defer c.runMutex.RUnlock()
	return c.runState
}

// RequestStepInstruction arms a single-instruction step, taken on the next
// RunUntilFrame call.
func (c *Core) RequestStepInstruction() {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()
	c.stepRequested = true
	c.runState = RunStepInstruction
}

// RequestStepFrame arms a single-frame step, taken on the next
// RunUntilFrame call.
func (c *Core) RequestStepFrame() {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()
	c.frameRequested = true
	c.runState = RunStepFrame
}

func (c *Core) CPU() *cpu.CPU      { return c.cpu }
func (c *Core) GPU() *gpu.GPU      { return c.gpu }
func (c *Core) SPU() *spu.SPU      { return c.spu }
func (c *Core) CDROM() *cdrom.Cdrom { return c.cdrom }
func (c *Core) Bus() *bus.Bus       { return c.bus }

func (c *Core) InstructionCount() uint64 { return c.instructionCount }
func (c *Core) FrameCount() uint64       { return c.frameCount }

// ExtractDebugData assembles a point-in-time introspection snapshot for a
// debug frontend, mirroring go-jeebie's DMG.ExtractDebugData/
// debug.CompleteDebugData: one call gathering CPU state, a disassembly
// window centered on PC, GPU draw-list stats, and CD-ROM FIFO state.
func (c *Core) ExtractDebugData() *debug.Snapshot {
	cpuState := debug.CaptureCPUState(c.cpu, c.instructionCount)

	const windowBytes = 64
	start := cpuState.PC
	if start > windowBytes/2 {
		start -= windowBytes / 2
	}
	mem := debug.CaptureMemoryWindow(c.bus.RAM(), start, windowBytes)

	imask, _ := c.bus.ReadU32(addr.IMask)
	istat, _ := c.bus.ReadU32(addr.IStat)

	return &debug.Snapshot{
		CPU:      cpuState,
		Memory:   mem,
		Disasm:   debug.CreateDisassembly(&mem, cpuState.PC, 16),
		DrawList: debug.SummarizeDrawList(c.gpu.DrawList()),
		CDROM:    debug.CaptureCDROMState(c.cdrom),
		RunState: debug.RunState(c.GetRunState()),
		FrameNum: c.frameCount,
		IMask:    imask,
		IStat:    istat,
	}
}
