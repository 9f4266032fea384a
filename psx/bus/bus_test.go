package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-systems/psxcore/psx/addr"
)

func newTestBus() *Bus {
	return New(Options{})
}

func TestRAMMirroring(t *testing.T) {
	b := newTestBus()
	b.WriteU32(0x0000_1000, 0xDEADBEEF)

	for _, mirror := range []uint32{0x0000_1000, 0x0020_1000, 0x0040_1000, 0x0060_1000} {
		v, ok := b.ReadU32(mirror)
		require.True(t, ok)
		assert.Equal(t, uint32(0xDEADBEEF), v, "mirror at %#x", mirror)
	}
}

func TestKSEG0AndKSEG1FoldToSamePhysical(t *testing.T) {
	b := newTestBus()
	b.WriteU32(0x0010_0000, 0x1234_5678)

	v0, ok0 := b.ReadU32(0x8010_0000)
	v1, ok1 := b.ReadU32(0xA010_0000)
	require.True(t, ok0)
	require.True(t, ok1)
	assert.Equal(t, uint32(0x1234_5678), v0)
	assert.Equal(t, uint32(0x1234_5678), v1)
}

func TestUnalignedAccessReportsUnaligned(t *testing.T) {
	b := newTestBus()
	_, ok := b.ReadU32(0x0000_0001)
	assert.False(t, ok)

	ok = b.WriteU16(0x0000_0003, 0x1234)
	assert.False(t, ok)
}

func TestExpansion1ReadsAllOnes(t *testing.T) {
	b := newTestBus()
	assert.Equal(t, uint8(0xFF), b.ReadU8(addr.Expansion1Base))
}

func TestIStatWriteIsAndToClear(t *testing.T) {
	b := newTestBus()
	b.irq.Request(addr.IRQVBlank)
	b.irq.Request(addr.IRQTimer0)

	stat, ok := b.ReadU32(addr.IStat)
	require.True(t, ok)
	assert.Equal(t, uint32(1<<addr.IRQVBlank|1<<addr.IRQTimer0), stat)

	b.WriteU32(addr.IStat, ^uint32(1<<addr.IRQVBlank))
	stat, _ = b.ReadU32(addr.IStat)
	assert.Equal(t, uint32(1<<addr.IRQTimer0), stat, "clearing VBlank bit must leave Timer0 bit set")
}

func TestInterruptPendingRespectsMask(t *testing.T) {
	b := newTestBus()
	b.irq.Request(addr.IRQVBlank)
	assert.False(t, b.InterruptPending(), "unmasked request must not be pending")

	b.WriteU32(addr.IMask, 1<<addr.IRQVBlank)
	assert.True(t, b.InterruptPending())
}

func TestTimerTargetIRQAndReset(t *testing.T) {
	b := newTestBus()
	b.WriteU16(addr.TimerBase+0x8, 10) // target
	b.WriteU16(addr.TimerBase+0x4, modeIRQOnTarget|modeResetOnTarget)

	b.Tick(10)

	stat, _ := b.ReadU32(addr.IStat)
	assert.NotZero(t, stat&(1<<addr.IRQTimer0))

	count, _ := b.ReadU16(addr.TimerBase)
	assert.Equal(t, uint16(0), count, "reset-on-target must zero the counter")
}

func TestDMAOTCBuildsDescendingLinkedList(t *testing.T) {
	b := newTestBus()
	const base = 0x1000
	const count = 4

	b.WriteU32(addr.DMABase+addr.DMAChanOTC*0x10+0x0, base+(count-1)*4)
	b.WriteU32(addr.DMABase+addr.DMAChanOTC*0x10+0x4, count)
	b.WriteU32(addr.DMABase+addr.DMAChanOTC*0x10+0x8, chcrEnable|(2<<chcrSyncShift))

	addrv := uint32(base + (count-1)*4)
	for i := 0; i < count-1; i++ {
		v, ok := b.ReadU32(addrv)
		require.True(t, ok)
		assert.Equal(t, addrv-4, v&0x00FF_FFFF)
		addrv -= 4
	}
	last, _ := b.ReadU32(addrv)
	assert.Equal(t, uint32(0x00FF_FFFF), last)

	dicr, _ := b.ReadU32(addr.DICR)
	assert.NotZero(t, dicr&(1<<(addr.DMAChanOTC+24)), "channel completion flag must latch")
}

func TestDICRForceBitSetsMasterFlagAndRequestsDMAIRQ(t *testing.T) {
	b := newTestBus()
	b.WriteU32(addr.DICR, 1<<15)

	dicr, _ := b.ReadU32(addr.DICR)
	assert.NotZero(t, dicr&(1<<31))

	stat, _ := b.ReadU32(addr.IStat)
	assert.NotZero(t, stat&(1<<addr.IRQDMA))
}

func TestLoadBIOSCopiesIntoROMWindow(t *testing.T) {
	b := newTestBus()
	data := make([]byte, addr.BIOSSize)
	data[0] = 0xAB
	b.LoadBIOS(data)

	assert.Equal(t, uint8(0xAB), b.ReadU8(addr.BIOSBase))
}

func TestScratchpadIsIndependentOfRAM(t *testing.T) {
	b := newTestBus()
	b.WriteU8(addr.ScratchpadBase, 0x42)
	assert.Equal(t, uint8(0x42), b.ReadU8(addr.ScratchpadBase))
	assert.Equal(t, uint8(0), b.ram[0])
}
