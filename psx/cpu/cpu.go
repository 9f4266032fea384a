// Package cpu implements the R3000A MIPS I interpreter core: the stepped
// instruction interpreter, COP0 exception unit, delay-slot and load-delay
// bookkeeping, and the bridge to COP2 (the GTE). Grounded on go-jeebie's
// jeebie/cpu package structure (registers.go/opcodes.go/mapping.go split,
// a Bus-style dependency injected at construction) generalized from an
// 8-bit Z80-like CPU to a 32-bit MIPS I pipeline per spec.
package cpu

import (
	"log/slog"

	"github.com/kestrel-systems/psxcore/psx/addr"
	"github.com/kestrel-systems/psxcore/psx/psxlog"
)

// Bus is the memory/MMIO surface the CPU drives. Implementations perform
// address decode, alignment checking and MMIO dispatch; the CPU only deals
// in virtual addresses and alignment outcomes.
type Bus interface {
	ReadU8(vaddr uint32) uint8
	ReadU16(vaddr uint32) (value uint16, aligned bool)
	ReadU32(vaddr uint32) (value uint32, aligned bool)
	WriteU8(vaddr uint32, value uint8)
	WriteU16(vaddr uint32, value uint16) (aligned bool)
	WriteU32(vaddr uint32, value uint32) (aligned bool)

	// InterruptPending reports whether I_STAT & I_MASK != 0 (the hardware
	// interrupt pin the CPU samples once per step, per spec §4.9).
	InterruptPending() bool
}

// COP2 is the GTE bridge the CPU's coprocessor-2 instructions drive.
type COP2 interface {
	ReadData(reg uint32) uint32
	WriteData(reg uint32, value uint32)
	ReadControl(reg uint32) uint32
	WriteControl(reg uint32, value uint32)
	Command(word uint32)
}

// StepResult tags the outcome of a single Step call, see spec §4.2.
type StepResult int

const (
	StepOK StepResult = iota
	StepHalted
	StepIllegal
	StepMemFault
)

func (r StepResult) String() string {
	switch r {
	case StepOK:
		return "ok"
	case StepHalted:
		return "halted"
	case StepIllegal:
		return "illegal_instr"
	case StepMemFault:
		return "mem_fault"
	default:
		return "unknown"
	}
}

// branchState models the pending-branch shift register described in spec §3.
type branchState struct {
	pending       bool
	target        uint32
	remaining     int
	justScheduled bool
}

// loadDelay models a single pending load-delay slot write, spec §3.
type loadDelay struct {
	reg   uint32
	value uint32
	valid bool
}

// HLEHooks lets a host install minimal kernel trampolines, spec §4.2
// "Optional HLE". Disabled (nil) by default; when installed, CPU.Step
// consults it before fetch to intercept the exception vector and the
// A0/B0/C0 BIOS jump tables before falling through to real execution.
type HLEHooks interface {
	// Intercept is called with the current PC before fetch; returning true
	// means the HLE layer fully handled this step (e.g. serviced a kernel
	// call and set PC to a return address) and the CPU should not execute
	// a real instruction this step.
	Intercept(c *CPU) (handled bool)
}

// CPU is the R3000A interpreter state.
type CPU struct {
	GPR [32]uint32
	HI  uint32
	LO  uint32
	PC  uint32

	cop0 [32]uint32

	branch      branchState
	pendingLoad loadDelay // produced by the instruction just executed
	activeLoad  loadDelay // produced by the previous instruction, committed now

	bus Bus
	gte COP2

	icacheScratch [1024]byte // backs Status.Isc cache-isolated stores, §4.2

	hle HLEHooks

	logger *slog.Logger
}

// Options configures CPU construction.
type Options struct {
	Logger *slog.Logger
	HLE    HLEHooks
}

// New creates a CPU wired to bus and gte.
func New(bus Bus, gte COP2, opts Options) *CPU {
	return &CPU{
		bus:    bus,
		gte:    gte,
		hle:    opts.HLE,
		logger: psxlog.Tagged(opts.Logger, "CPU"),
	}
}

// Reset clears registers and pipeline state and sets PC; gp/sp are left
// zero for the caller to install.
func (c *CPU) Reset(pc uint32) {
	*c = CPU{bus: c.bus, gte: c.gte, hle: c.hle, logger: c.logger}
	c.PC = pc
	// COP0 Status: boot in kernel mode with interrupts disabled (IEc=0, KUc=0).
	c.cop0[addr.COP0Status] = 0
}

// SetGP sets r28 (gp).
func (c *CPU) SetGP(v uint32) { c.setReg(28, v) }

// SetSP sets r29 (sp).
func (c *CPU) SetSP(v uint32) { c.setReg(29, v) }

// SetHLE installs or clears the HLE hook set.
func (c *CPU) SetHLE(h HLEHooks) { c.hle = h }

func (c *CPU) reg(i uint32) uint32 {
	return c.GPR[i&0x1F]
}

func (c *CPU) setReg(i uint32, v uint32) {
	if i == 0 {
		return
	}
	c.GPR[i&0x1F] = v
}

func (c *CPU) statusIEc() bool { return c.cop0[addr.COP0Status]&1 != 0 }
func (c *CPU) statusIsc() bool { return c.cop0[addr.COP0Status]&(1<<16) != 0 }

// inDelaySlot reports whether the instruction about to execute is sitting
// in the delay slot of a not-yet-taken branch.
func (c *CPU) inDelaySlot() bool {
	return c.branch.pending && !c.branch.justScheduled
}

// Step executes exactly one instruction (or services a pending interrupt),
// per the pipeline model in spec §4.2.
func (c *CPU) Step() StepResult {
	delaySlot := c.inDelaySlot()

	if c.bus.InterruptPending() && c.statusIEc() {
		c.raiseException(addr.ExcINT, c.PC, delaySlot, nil)
		return StepOK
	}

	if c.hle != nil && c.hle.Intercept(c) {
		c.commitLoads()
		c.advanceBranch()
		return StepOK
	}

	faultPC := c.PC
	word, aligned := c.bus.ReadU32(c.PC)
	if !aligned {
		bad := c.PC
		c.raiseException(addr.ExcADEL, faultPC, delaySlot, &bad)
		return StepMemFault
	}
	c.PC += 4

	res := c.execute(word, faultPC, delaySlot)

	c.commitLoads()
	c.advanceBranch()

	return res
}

// commitLoads implements step 5 of the pipeline: commit the load scheduled
// by the previous instruction, then install the load scheduled this step.
func (c *CPU) commitLoads() {
	if c.activeLoad.valid {
		c.setReg(c.activeLoad.reg, c.activeLoad.value)
	}
	c.activeLoad = c.pendingLoad
	c.pendingLoad = loadDelay{}
}

// advanceBranch implements step 6: tick the branch-delay counter.
func (c *CPU) advanceBranch() {
	if !c.branch.pending {
		return
	}
	if c.branch.justScheduled {
		c.branch.justScheduled = false
		return
	}
	c.branch.remaining--
	if c.branch.remaining <= 0 {
		c.PC = c.branch.target
		c.branch = branchState{}
	}
}

// scheduleBranch arms the one-delay-slot branch mechanism.
func (c *CPU) scheduleBranch(target uint32) {
	c.branch = branchState{pending: true, target: target, remaining: 1, justScheduled: true}
}

// scheduleLoad arms a load-delay write, dropped for r0.
func (c *CPU) scheduleLoad(reg uint32, value uint32) {
	if reg == 0 {
		return
	}
	c.pendingLoad = loadDelay{reg: reg, value: value, valid: true}
}

// raiseException implements the common exception entry sequence, spec §4.2.
func (c *CPU) raiseException(exc uint32, faultPC uint32, delaySlot bool, badVAddr *uint32) {
	epc := faultPC
	bd := uint32(0)
	if delaySlot {
		epc = faultPC - 4
		bd = 1
	}

	c.cop0[addr.COP0EPC] = epc

	cause := c.cop0[addr.COP0Cause]
	cause &^= 0x7C
	cause |= (exc << 2) & 0x7C
	cause &^= 1 << 31
	cause |= bd << 31
	c.cop0[addr.COP0Cause] = cause

	if badVAddr != nil {
		c.cop0[addr.COP0BadVAddr] = *badVAddr
	}

	status := c.cop0[addr.COP0Status]
	low6 := status & 0x3F
	newLow6 := (low6 << 2) & 0x3F
	c.cop0[addr.COP0Status] = (status &^ 0x3F) | newLow6

	c.branch = branchState{}
	c.PC = addr.ExceptionVector

	c.logger.Debug("exception", "exc", exc, "epc", epc, "bd", bd == 1)
}

// GetPC returns the next instruction's address (matches go-jeebie's
// cpu.GetPC debug accessor pattern).
func (c *CPU) GetPC() uint32 { return c.PC }

// GPRs returns a copy of the general register file for debug snapshots.
func (c *CPU) GPRs() [32]uint32 { return c.GPR }

// COP0Reg reads a COP0 register for debug snapshots.
func (c *CPU) COP0Reg(i uint32) uint32 { return c.cop0[i&0x1F] }
