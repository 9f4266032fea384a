package disc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestOpenSingleBinDetectsMode1SectorSize(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, 2048*4)
	path := writeFile(t, dir, "game.bin", data)

	img, err := Open(path)
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, uint32(4), img.SectorCount())
	require.Len(t, img.Tracks(), 1)
	assert.False(t, img.Tracks()[0].IsAudio)
}

func TestOpenSingleRawDetects2352SectorSize(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, 2352*3)
	path := writeFile(t, dir, "game.bin", data)

	img, err := Open(path)
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, uint32(3), img.SectorCount())
}

func TestOpenRejectsUnalignedFileSize(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "game.bin", make([]byte, 1000))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestReadSector2048ExtractsMode1Payload(t *testing.T) {
	dir := t.TempDir()
	raw := make([]byte, 2352*2)
	// sector 0: mode byte at offset 15 = 1 (Mode 1), payload follows at 16.
	raw[15] = 1
	for i := 0; i < 2048; i++ {
		raw[16+i] = byte(i)
	}
	path := writeFile(t, dir, "game.bin", raw)

	img, err := Open(path)
	require.NoError(t, err)
	defer img.Close()

	var out [2048]byte
	require.NoError(t, img.ReadSector2048(0, &out))
	for i := 0; i < 2048; i++ {
		require.Equal(t, byte(i), out[i])
	}
}

func TestReadSector2048ExtractsMode2Form1Payload(t *testing.T) {
	dir := t.TempDir()
	raw := make([]byte, 2352)
	raw[15] = 2 // Mode 2
	for i := 0; i < 2048; i++ {
		raw[24+i] = byte(i + 1)
	}
	path := writeFile(t, dir, "game.bin", raw)

	img, err := Open(path)
	require.NoError(t, err)
	defer img.Close()

	var out [2048]byte
	require.NoError(t, img.ReadSector2048(0, &out))
	assert.Equal(t, byte(1), out[0])
	assert.Equal(t, byte(2), out[1])
}

func TestReadSectorOutOfRangeErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "game.bin", make([]byte, 2048*2))

	img, err := Open(path)
	require.NoError(t, err)
	defer img.Close()

	var out [2048]byte
	err = img.ReadSector2048(5, &out)
	assert.Error(t, err)
}

func TestOpenCueMultiTrackComputesAbsoluteLBAs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data.bin", make([]byte, 2352*10))
	writeFile(t, dir, "audio.bin", make([]byte, 2352*5))

	cue := "FILE \"data.bin\" BINARY\n" +
		"  TRACK 01 MODE2/2352\n" +
		"    INDEX 01 00:00:00\n" +
		"FILE \"audio.bin\" BINARY\n" +
		"  TRACK 02 AUDIO\n" +
		"    INDEX 01 00:00:00\n"
	cuePath := writeFile(t, dir, "game.cue", []byte(cue))

	img, err := Open(cuePath)
	require.NoError(t, err)
	defer img.Close()

	tracks := img.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, uint8(1), tracks[0].Number)
	assert.False(t, tracks[0].IsAudio)
	assert.Equal(t, uint32(0), tracks[0].StartLBA)

	assert.Equal(t, uint8(2), tracks[1].Number)
	assert.True(t, tracks[1].IsAudio)
	assert.Equal(t, uint32(10), tracks[1].StartLBA) // offset by data.bin's 10 sectors
}

func TestTrackForLBAPicksLatestStartingTrack(t *testing.T) {
	img := &Image{tracks: []Track{
		{Number: 1, StartLBA: 0},
		{Number: 2, StartLBA: 100},
	}}

	tr, ok := img.TrackForLBA(50)
	require.True(t, ok)
	assert.Equal(t, uint8(1), tr.Number)

	tr, ok = img.TrackForLBA(150)
	require.True(t, ok)
	assert.Equal(t, uint8(2), tr.Number)
}
