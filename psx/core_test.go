package psx

import (
	"encoding/binary"
	"testing"

	"github.com/kestrel-systems/psxcore/psx/cpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPSXEXE(pc0 uint32, text []byte) []byte {
	hdr := make([]byte, 0x800)
	copy(hdr[0:8], "PS-X EXE")
	binary.LittleEndian.PutUint32(hdr[0x10:], pc0)
	binary.LittleEndian.PutUint32(hdr[0x18:], pc0)
	binary.LittleEndian.PutUint32(hdr[0x1C:], uint32(len(text)))
	return append(hdr, text...)
}

func TestNewWiresAllSubsystems(t *testing.T) {
	c := New(Options{})
	assert.NotNil(t, c.CPU())
	assert.NotNil(t, c.GPU())
	assert.NotNil(t, c.SPU())
	assert.NotNil(t, c.CDROM())
	assert.NotNil(t, c.Bus())
}

func TestLoadExecutableSetsPC(t *testing.T) {
	c := New(Options{})
	// SLL $0,$0,0 (NOP) x2
	text := []byte{0, 0, 0, 0, 0, 0, 0, 0}
	file := buildPSXEXE(0x8001_0000, text)

	require.NoError(t, c.LoadExecutable(file))
	assert.Equal(t, uint32(0x8001_0000), c.CPU().GetPC())
}

func TestStepAdvancesInstructionCount(t *testing.T) {
	c := New(Options{})
	file := buildPSXEXE(0x8001_0000, make([]byte, 16))
	require.NoError(t, c.LoadExecutable(file))

	before := c.InstructionCount()
	res := c.Step()
	assert.Equal(t, cpu.StepOK, res)
	assert.Equal(t, before+1, c.InstructionCount())
}

func TestRunStateControlsStepping(t *testing.T) {
	c := New(Options{})
	file := buildPSXEXE(0x8001_0000, make([]byte, 16))
	require.NoError(t, c.LoadExecutable(file))

	c.SetRunState(RunPaused)
	before := c.InstructionCount()
	c.RunUntilFrame()
	assert.Equal(t, before, c.InstructionCount(), "paused core should not step")

	c.RequestStepInstruction()
	c.RunUntilFrame()
	assert.Equal(t, before+1, c.InstructionCount())
	assert.Equal(t, RunPaused, c.GetRunState(), "single step should re-pause")
}

func TestStopOnPCPausesExecution(t *testing.T) {
	stopPC := uint32(0x8001_0004)
	c := New(Options{StopOnPC: &stopPC})
	file := buildPSXEXE(0x8001_0000, make([]byte, 16))
	require.NoError(t, c.LoadExecutable(file))

	c.Step() // executes the instruction at 0x8001_0000, landing PC on stopPC
	assert.Equal(t, RunPaused, c.GetRunState())
}
