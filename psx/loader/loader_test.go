package loader

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPSXEXE(pc0, gp0, tAddr, tSize, bAddr, bSize, sAddr, sSize uint32, text []byte) []byte {
	hdr := make([]byte, psxExeHeaderSize)
	copy(hdr[0:8], psxExeMagic[:])
	binary.LittleEndian.PutUint32(hdr[0x10:], pc0)
	binary.LittleEndian.PutUint32(hdr[0x14:], gp0)
	binary.LittleEndian.PutUint32(hdr[0x18:], tAddr)
	binary.LittleEndian.PutUint32(hdr[0x1C:], tSize)
	binary.LittleEndian.PutUint32(hdr[0x28:], bAddr)
	binary.LittleEndian.PutUint32(hdr[0x2C:], bSize)
	binary.LittleEndian.PutUint32(hdr[0x30:], sAddr)
	binary.LittleEndian.PutUint32(hdr[0x34:], sSize)
	return append(hdr, text...)
}

func TestLoadPSXEXECopiesTextAndZeroesBSS(t *testing.T) {
	text := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	ram := make([]byte, 2*1024*1024)
	for i := range ram {
		ram[i] = 0xFF
	}
	file := buildPSXEXE(0x8001_0000, 0x0, 0x8001_0000, uint32(len(text)), 0x8002_0000, 16, 0, 0, text)

	res, err := Load(ram, file)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x8001_0000), res.PC)
	assert.Equal(t, uint32(0x801F_FF00), res.SP)
	assert.Equal(t, text, ram[0x1_0000:0x1_0000+4])
	assert.Equal(t, make([]byte, 16), ram[0x2_0000:0x2_0000+16])
}

func TestLoadPSXEXEUsesHeaderStackWhenPresent(t *testing.T) {
	ram := make([]byte, 2*1024*1024)
	file := buildPSXEXE(0x8001_0000, 0, 0x8001_0000, 0, 0, 0, 0x801F_0000, 0x1000, nil)

	res, err := Load(ram, file)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x801F_0000+0x1000), res.SP)
}

func TestLoadPSXEXEUsesHeaderStackSizeWhenAddrZero(t *testing.T) {
	ram := make([]byte, 2*1024*1024)
	file := buildPSXEXE(0x8001_0000, 0, 0x8001_0000, 0, 0, 0, 0, 0x1000, nil)

	res, err := Load(ram, file)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1000), res.SP)
}

func TestLoadPSXEXERejectsTruncatedHeader(t *testing.T) {
	ram := make([]byte, 2*1024*1024)
	_, err := Load(ram, append(psxExeMagic[:], 0, 0, 0))
	assert.ErrorIs(t, err, ErrHeaderInvalid)
}

func TestLoadRejectsUnrecognizedFile(t *testing.T) {
	ram := make([]byte, 2*1024*1024)
	_, err := Load(ram, []byte("not an executable"))
	assert.ErrorIs(t, err, ErrNotRecognized)
}

func TestLoadPSXEXEOutOfRAMSegment(t *testing.T) {
	ram := make([]byte, 1024)
	text := []byte{1, 2, 3, 4}
	file := buildPSXEXE(0x8001_0000, 0, 0x8001_0000, uint32(len(text)), 0, 0, 0, 0, text)

	_, err := Load(ram, file)
	assert.ErrorIs(t, err, ErrOutOfRAM)
}

func buildELF32MIPS(entry, phoff uint32, segs [][5]uint32, payload []byte) []byte {
	const ehSize = 52
	buf := make([]byte, ehSize)
	buf[0], buf[1], buf[2], buf[3] = 0x7F, 'E', 'L', 'F'
	buf[4] = 1 // ELFCLASS32
	buf[5] = 1 // ELFDATA2LSB
	binary.LittleEndian.PutUint16(buf[18:], elfEMMIPS)
	binary.LittleEndian.PutUint32(buf[24:], entry)
	binary.LittleEndian.PutUint32(buf[28:], phoff)
	binary.LittleEndian.PutUint16(buf[42:], 32) // e_phentsize
	binary.LittleEndian.PutUint16(buf[44:], uint16(len(segs)))

	out := make([]byte, phoff)
	copy(out, buf)
	for _, s := range segs {
		ph := make([]byte, 32)
		binary.LittleEndian.PutUint32(ph[0:], elfPTLoad)
		binary.LittleEndian.PutUint32(ph[4:], s[0])  // p_offset
		binary.LittleEndian.PutUint32(ph[8:], s[1])  // p_vaddr
		binary.LittleEndian.PutUint32(ph[16:], s[2]) // p_filesz
		binary.LittleEndian.PutUint32(ph[20:], s[3]) // p_memsz
		out = append(out, ph...)
	}
	out = append(out, payload...)
	return out
}

func TestLoadELFCopiesSegmentsAndZeroesBSSTail(t *testing.T) {
	payload := []byte{0x11, 0x22, 0x33, 0x44}
	phoff := uint32(52)
	fileOffset := phoff + 32
	file := buildELF32MIPS(0x8001_2000, phoff, [][5]uint32{
		{fileOffset, 0x8001_0000, uint32(len(payload)), 8},
	}, payload)

	ram := make([]byte, 2*1024*1024)
	for i := range ram {
		ram[i] = 0xCC
	}

	res, err := Load(ram, file)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x8001_2000), res.PC)
	assert.Equal(t, payload, ram[0x1_0000:0x1_0000+4])
	assert.Equal(t, make([]byte, 4), ram[0x1_0004:0x1_0008])
}
