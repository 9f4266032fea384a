package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus is a flat byte-addressed memory used only by cpu package tests;
// it performs no region decoding, just alignment checks, matching the
// Bus interface contract the real psx/bus package fulfills.
type fakeBus struct {
	mem     map[uint32]byte
	irq     bool
	writes  []uint32
}

func newFakeBus() *fakeBus {
	return &fakeBus{mem: make(map[uint32]byte)}
}

func (b *fakeBus) ReadU8(a uint32) uint8 { return b.mem[a] }

func (b *fakeBus) ReadU16(a uint32) (uint16, bool) {
	if a%2 != 0 {
		return 0, false
	}
	return uint16(b.mem[a]) | uint16(b.mem[a+1])<<8, true
}

func (b *fakeBus) ReadU32(a uint32) (uint32, bool) {
	if a%4 != 0 {
		return 0, false
	}
	return uint32(b.mem[a]) | uint32(b.mem[a+1])<<8 | uint32(b.mem[a+2])<<16 | uint32(b.mem[a+3])<<24, true
}

func (b *fakeBus) WriteU8(a uint32, v uint8) { b.mem[a] = v; b.writes = append(b.writes, a) }

func (b *fakeBus) WriteU16(a uint32, v uint16) bool {
	if a%2 != 0 {
		return false
	}
	b.mem[a] = byte(v)
	b.mem[a+1] = byte(v >> 8)
	return true
}

func (b *fakeBus) WriteU32(a uint32, v uint32) bool {
	if a%4 != 0 {
		return false
	}
	b.mem[a] = byte(v)
	b.mem[a+1] = byte(v >> 8)
	b.mem[a+2] = byte(v >> 16)
	b.mem[a+3] = byte(v >> 24)
	return true
}

func (b *fakeBus) InterruptPending() bool { return b.irq }

func (b *fakeBus) putWord(a, v uint32) { b.WriteU32(a, v) }

type fakeGTE struct{}

func (fakeGTE) ReadData(uint32) uint32       { return 0 }
func (fakeGTE) WriteData(uint32, uint32)     {}
func (fakeGTE) ReadControl(uint32) uint32    { return 0 }
func (fakeGTE) WriteControl(uint32, uint32)  {}
func (fakeGTE) Command(uint32)               {}

func newTestCPU() (*CPU, *fakeBus) {
	bus := newFakeBus()
	c := New(bus, fakeGTE{}, Options{})
	c.Reset(0)
	return c, bus
}

// encodeI builds an I-type instruction word.
func encodeI(op, rs, rt uint32, imm uint16) uint32 {
	return (op << 26) | (rs << 21) | (rt << 16) | uint32(imm)
}

func encodeR(rs, rt, rd, shamt, funct uint32) uint32 {
	return (rs << 21) | (rt << 16) | (rd << 11) | (shamt << 6) | funct
}

func encodeJ(op, target uint32) uint32 {
	return (op << 26) | ((target >> 2) & 0x03FF_FFFF)
}

func TestR0AlwaysZero(t *testing.T) {
	c, bus := newTestCPU()
	// addiu r0, r0, 5
	bus.putWord(0, encodeI(0x09, 0, 0, 5))
	res := c.Step()
	assert.Equal(t, StepOK, res)
	assert.Equal(t, uint32(0), c.GPR[0])
}

func TestLoadDelaySlot(t *testing.T) {
	c, bus := newTestCPU()
	bus.putWord(0x100, 42)
	// lw t0, 0x100(zero)
	bus.putWord(0, encodeI(0x23, 0, 8, 0x100))
	// addiu t1, t0, 0   -- must observe OLD t0 (0), not 42
	bus.putWord(4, encodeI(0x09, 8, 9, 0))
	// addiu t2, t0, 0   -- must observe NEW t0 (42)
	bus.putWord(8, encodeI(0x09, 8, 10, 0))

	require.Equal(t, StepOK, c.Step()) // lw
	assert.Equal(t, uint32(0), c.GPR[8], "load not yet visible")
	require.Equal(t, StepOK, c.Step()) // addiu t1, t0, 0 (sees old t0)
	assert.Equal(t, uint32(0), c.GPR[9])
	assert.Equal(t, uint32(42), c.GPR[8], "load visible after one more step")
	require.Equal(t, StepOK, c.Step()) // addiu t2, t0, 0 (sees new t0)
	assert.Equal(t, uint32(42), c.GPR[10])
}

func TestBranchDelaySlotExecutesBeforeTarget(t *testing.T) {
	c, bus := newTestCPU()
	// beq zero, zero, 2   (branch to PC+4+2*4 = 12)
	bus.putWord(0, encodeI(0x04, 0, 0, 2))
	// addiu t0, zero, 1   (delay slot, must execute)
	bus.putWord(4, encodeI(0x09, 0, 8, 1))
	// addiu t1, zero, 2   (should be skipped)
	bus.putWord(8, encodeI(0x09, 0, 9, 2))
	// addiu t2, zero, 3   (branch target)
	bus.putWord(12, encodeI(0x09, 0, 10, 3))

	require.Equal(t, StepOK, c.Step()) // beq
	assert.Equal(t, uint32(4), c.PC, "PC advances to delay slot, not target, immediately")
	require.Equal(t, StepOK, c.Step()) // delay slot
	assert.Equal(t, uint32(1), c.GPR[8])
	assert.Equal(t, uint32(12), c.PC, "branch fires after delay slot")
	require.Equal(t, StepOK, c.Step()) // target instruction
	assert.Equal(t, uint32(3), c.GPR[10])
	assert.Equal(t, uint32(0), c.GPR[9], "instruction between delay slot and target never ran")
}

func TestUnalignedLoadRaisesADEL(t *testing.T) {
	c, bus := newTestCPU()
	// lw t0, 1(zero)  -- unaligned
	bus.putWord(0, encodeI(0x23, 0, 8, 1))

	res := c.Step()
	assert.Equal(t, StepMemFault, res)
	assert.Equal(t, uint32(0x8000_0080), c.PC)
	assert.Equal(t, uint32(0), c.COP0Reg(14), "EPC is the faulting instruction")
	assert.Equal(t, uint32(1), c.COP0Reg(8), "BadVAddr holds the unaligned address")
	cause := c.COP0Reg(13)
	assert.Equal(t, uint32(0x04), (cause>>2)&0x1F, "ExcCode is ADEL")
}

func TestAddOverflow(t *testing.T) {
	c, bus := newTestCPU()
	c.GPR[8] = 0x7FFFFFFF
	c.GPR[9] = 1
	// add t2, t0, t1
	bus.putWord(0, encodeR(8, 9, 10, 0, 0x20))

	res := c.Step()
	assert.Equal(t, StepOK, res)
	assert.Equal(t, uint32(0x8000_0080), c.PC)
	assert.Equal(t, uint32(0), c.GPR[10], "destination untouched on overflow")
}

func TestBreakHalts(t *testing.T) {
	c, bus := newTestCPU()
	bus.putWord(0, encodeR(0, 0, 0, 0, 0x0D)) // break
	assert.Equal(t, StepHalted, c.Step())
}

func TestRFERestoresPreviousMode(t *testing.T) {
	c, _ := newTestCPU()
	c.cop0[12] = 0b01_01_11 // KUo=0,IEo=1, KUp=0,IEp=1, KUc=1,IEc=1 (arbitrary pattern)
	before := c.cop0[12]
	c.execRFE()
	// rotate right by 2 on low 6 bits
	low6 := before & 0x3F
	want := ((low6 >> 2) | (low6 << 4)) & 0x3F
	assert.Equal(t, want, c.cop0[12]&0x3F)
}

func TestJumpTargetUsesUpperBitsOfDelaySlotPC(t *testing.T) {
	c, bus := newTestCPU()
	bus.putWord(0, encodeJ(0x02, 0x1000))
	bus.putWord(4, encodeI(0x09, 0, 0, 0)) // delay slot nop-ish
	require.Equal(t, StepOK, c.Step())
	require.Equal(t, StepOK, c.Step())
	assert.Equal(t, uint32(0x1000), c.PC)
}
