package cdrom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestImage(t *testing.T, numSectors int) string {
	t.Helper()
	dir := t.TempDir()
	data := make([]byte, 2352*numSectors)
	for s := 0; s < numSectors; s++ {
		off := s * 2352
		data[off+15] = 1 // Mode 1
		for i := 0; i < 2048; i++ {
			data[off+16+i] = byte(s)
		}
	}
	path := filepath.Join(dir, "game.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestCdrom(t *testing.T, numSectors int) *Cdrom {
	t.Helper()
	c := New(nil)
	require.NoError(t, c.InsertDisc(writeTestImage(t, numSectors)))
	return c
}

func runUntilIRQ(c *Cdrom, maxTicks int) bool {
	for i := 0; i < maxTicks; i++ {
		c.Tick(1000)
		if c.irqFlags&0x1F != 0 {
			return true
		}
	}
	return false
}

func TestStatusRegisterReflectsIndexAndFIFOState(t *testing.T) {
	c := New(nil)
	c.MMIOWriteByte(0, 1)
	got := c.MMIOReadByte(0)
	assert.Equal(t, uint8(1), got&0x03)
	assert.NotZero(t, got&(1<<3)) // param FIFO empty
}

func TestGetstatReturnsStatusAndAccepts(t *testing.T) {
	c := newTestCdrom(t, 4)
	c.MMIOWriteByte(0, 0) // index 0
	c.MMIOWriteByte(1, cmdGetstat)

	require.True(t, runUntilIRQ(c, 200))
	assert.Equal(t, uint8(int3Accepted), c.irqFlags&0x07)
	resp := c.MMIOReadByte(1)
	assert.NotZero(t, resp&statMotorOnBit)
}

func TestSetlocUpdatesLocLBA(t *testing.T) {
	c := newTestCdrom(t, 100)
	c.MMIOWriteByte(0, 0)
	c.MMIOWriteByte(2, 0x00) // mm bcd 0
	c.MMIOWriteByte(2, 0x02) // ss bcd 2
	c.MMIOWriteByte(2, 0x00) // ff bcd 0
	c.MMIOWriteByte(1, cmdSetloc)

	require.True(t, runUntilIRQ(c, 200))
	assert.Equal(t, uint32(150), c.locLBA) // 2 seconds * 75 sectors/sec
}

func TestReadNSchedulesFirstInt1AfterInt3Ack(t *testing.T) {
	c := newTestCdrom(t, 20)
	c.MMIOWriteByte(0, 0)
	c.MMIOWriteByte(1, cmdReadN)

	require.True(t, runUntilIRQ(c, 200))
	require.Equal(t, uint8(int3Accepted), c.irqFlags&0x07)

	// acknowledge INT3
	c.MMIOWriteByte(0, 1)
	c.MMIOWriteByte(3, 0x1F)

	require.True(t, runUntilIRQ(c, 500))
	assert.Equal(t, uint8(int1DataReady), c.irqFlags&0x07)
}

func TestReadNAutoAdvancesAndFillsDataFIFO(t *testing.T) {
	c := newTestCdrom(t, 20)
	c.MMIOWriteByte(0, 0)
	c.MMIOWriteByte(1, cmdReadN)
	require.True(t, runUntilIRQ(c, 200))

	c.MMIOWriteByte(0, 1)
	c.MMIOWriteByte(3, 0x1F)
	require.True(t, runUntilIRQ(c, 500))
	assert.Equal(t, uint8(int1DataReady), c.irqFlags&0x07)

	// request data, then drain it
	c.MMIOWriteByte(0, 0)
	c.MMIOWriteByte(3, 0x80)
	first := c.MMIOReadByte(2)
	assert.Equal(t, byte(0), first) // sector 0's payload byte pattern

	// ack and let it advance to sector 1
	c.MMIOWriteByte(0, 1)
	c.MMIOWriteByte(3, 0x1F)
	require.True(t, runUntilIRQ(c, 2000))
	assert.Equal(t, uint32(1), c.locLBA)
}

func TestReadNStopsWithErrorAtDiscEnd(t *testing.T) {
	c := newTestCdrom(t, 2)
	c.locLBA = 1
	c.MMIOWriteByte(0, 0)
	c.MMIOWriteByte(1, cmdReadN)
	require.True(t, runUntilIRQ(c, 200))

	c.MMIOWriteByte(0, 1)
	c.MMIOWriteByte(3, 0x1F)
	require.True(t, runUntilIRQ(c, 2000))
	assert.Equal(t, uint8(int1DataReady), c.irqFlags&0x07)

	c.MMIOWriteByte(0, 1)
	c.MMIOWriteByte(3, 0x1F)
	require.True(t, runUntilIRQ(c, 2000))
	assert.Equal(t, uint8(int5Error), c.irqFlags&0x07)
}

func TestIRQLineRespectsEnableMask(t *testing.T) {
	c := newTestCdrom(t, 4)
	c.irqEnable = 0
	c.setIRQ(int3Accepted)
	assert.False(t, c.IRQLine())

	c.irqEnable = 1 << (int3Accepted - 1)
	assert.True(t, c.IRQLine())
}

func TestQueuedCommandDeferredUntilIRQAck(t *testing.T) {
	c := newTestCdrom(t, 4)
	c.MMIOWriteByte(0, 0)
	c.MMIOWriteByte(1, cmdGetstat)
	require.True(t, runUntilIRQ(c, 200))

	// second command arrives while IRQ still pending: must queue, not execute.
	c.MMIOWriteByte(1, cmdGetstat)
	assert.True(t, c.queuedValid)

	c.MMIOWriteByte(0, 1)
	c.MMIOWriteByte(3, 0x1F)
	assert.False(t, c.queuedValid)
}

func TestIsoFindFileLocatesSystemCNF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.bin")
	buildIsoImage(t, path)

	c := New(nil)
	require.NoError(t, c.InsertDisc(path))

	lba, size, err := c.isoFindFile("cdrom:\\SYSTEM.CNF;1")
	require.NoError(t, err)
	assert.NotZero(t, size)
	assert.NotZero(t, lba)
}

func TestInferDiscRegionFromSystemCNF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.bin")
	buildIsoImage(t, path)

	c := New(nil)
	require.NoError(t, c.InsertDisc(path))
	assert.Equal(t, byte('A'), c.region.Letter)
}

func TestXADecoderFirstSampleZeroInput(t *testing.T) {
	var xa xaDecoder
	xa.reset()

	group := make([]byte, 2336)
	group[3] = 0x01 // stereo

	var left, right [4032]int16
	n := xa.decodeSector(group, left[:], right[:])
	assert.Equal(t, 112*18, n)
	assert.Equal(t, int16(0), left[0])
	assert.Equal(t, int16(0), right[0])
}

func TestGetIDReturnsEightByteRegionPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.bin")
	buildIsoImage(t, path)

	c := New(nil)
	require.NoError(t, c.InsertDisc(path))
	require.Equal(t, byte('A'), c.region.Letter)

	c.MMIOWriteByte(0, 0)
	c.MMIOWriteByte(1, cmdGetID)
	require.True(t, runUntilIRQ(c, 200))
	require.Equal(t, uint8(int3Accepted), c.irqFlags&0x07)
	c.MMIOReadByte(1) // drain the GetID INT3 stat byte

	c.MMIOWriteByte(0, 1)
	c.MMIOWriteByte(3, 0x1F)
	require.True(t, runUntilIRQ(c, 2000))
	assert.Equal(t, uint8(int2Complete), c.irqFlags&0x07)

	got := make([]uint8, 8)
	for i := range got {
		got[i] = c.MMIOReadByte(1)
	}
	assert.Equal(t, []uint8{c.status, 0x00, 0x20, 0x00, 'S', 'C', 'E', 'A'}, got)
}

func TestGetTDLeadoutReturnsDiscEnd(t *testing.T) {
	c := newTestCdrom(t, 100)
	c.MMIOWriteByte(0, 0)
	c.MMIOWriteByte(2, leadoutTrack) // 0xAA, the raw leadout sentinel, not BCD
	c.MMIOWriteByte(1, cmdGetTD)

	require.True(t, runUntilIRQ(c, 200))
	c.MMIOReadByte(1) // stat byte
	mm := c.MMIOReadByte(1)
	ss := c.MMIOReadByte(1)

	wantMM, wantSS, _ := lbaToMSF(100)
	assert.Equal(t, u8ToBCD(wantMM), mm)
	assert.Equal(t, u8ToBCD(wantSS), ss)
}

func TestCalcSeekTimeGrowsWithDistance(t *testing.T) {
	c := newTestCdrom(t, 10000)
	near := c.calcSeekTime(0, 1, false)
	far := c.calcSeekTime(0, 9000, false)
	assert.Less(t, near, far)
}

// buildIsoImage writes a minimal single-sector-PVD ISO image containing
// one file, SYSTEM.CNF, whose BOOT= line names an America-region title,
// for iso9660/region-inference tests.
func buildIsoImage(t *testing.T, path string) {
	t.Helper()
	const numSectors = 20
	data := make([]byte, 2352*numSectors)

	writeSector := func(lba int, payload []byte) {
		off := lba * 2352
		data[off+15] = 1
		copy(data[off+16:off+16+2048], payload)
	}

	cnfContent := []byte("BOOT=cdrom:\\SLUS_000.01;1\r\nTCB=4\r\n")
	fileLBA := 18
	filePayload := make([]byte, 2048)
	copy(filePayload, cnfContent)
	writeSector(fileLBA, filePayload)

	// root directory at LBA 17 with one entry: SYSTEM.CNF;1
	rootLBA := 17
	dirPayload := make([]byte, 2048)
	rec := buildDirRecord("SYSTEM.CNF;1", uint32(fileLBA), uint32(len(cnfContent)), false)
	copy(dirPayload[0:], rec)
	writeSector(rootLBA, dirPayload)

	// PVD at LBA 16
	pvd := make([]byte, 2048)
	pvd[0] = 1
	copy(pvd[1:6], "CD001")
	pvd[6] = 1
	putLE32(pvd[156+2:], uint32(rootLBA))
	putLE32(pvd[156+10:], uint32(len(dirPayload)))
	writeSector(16, pvd)

	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func buildDirRecord(name string, extentLBA, size uint32, isDir bool) []byte {
	nameLen := len(name)
	recLen := 33 + nameLen
	if recLen%2 != 0 {
		recLen++
	}
	rec := make([]byte, recLen)
	rec[0] = byte(recLen)
	putLE32(rec[2:], extentLBA)
	putLE32(rec[10:], size)
	if isDir {
		rec[25] = 0x02
	}
	rec[32] = byte(nameLen)
	copy(rec[33:], name)
	return rec
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
