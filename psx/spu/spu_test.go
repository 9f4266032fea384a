package spu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestADPCMFirstSampleMatchesReferenceBlock is spec §8 testable property 8
// and end-to-end scenario 6: a shift=0/filter=0 block of all-0x4 nibbles
// decodes its first sample to exactly 0x4000.
func TestADPCMFirstSampleMatchesReferenceBlock(t *testing.T) {
	s := New(nil)
	block := []byte{
		0x00, 0x00,
		0x44, 0x44, 0x44, 0x44, 0x44, 0x44, 0x44,
		0x44, 0x44, 0x44, 0x44, 0x44, 0x44, 0x44,
	}
	copy(s.ram[0x1000:], block)

	v := &s.voices[0]
	v.startAddr = 0x1000 / 8
	v.volL, v.volR = 0x7FFF, 0x7FFF
	v.env.adsr1 = 0x0000 | 0xF // fast linear attack, sustain level 15
	v.env.adsr2 = 0

	v.keyOn()
	v.decodeBlock(s.ram[:], RAMSize-1)

	require.Equal(t, int16(0x4000), v.decoded[0])
	for _, sample := range v.decoded {
		assert.Equal(t, int16(0x4000), sample)
	}
}

// TestVoiceOutputRampsThenStabilizes exercises the full tick path
// (decode + pitch + ADSR) against scenario 6's setup. The attack ramp
// means early samples trail the decoded value; later samples should
// approach it closely (spec §8 scenario 6's own "minus ADSR attack ramp"
// caveat, so exact equality isn't asserted).
func TestVoiceOutputRampsThenStabilizes(t *testing.T) {
	s := New(nil)
	block := make([]byte, 16)
	block[0], block[1] = 0x00, 0x00
	for i := 2; i < 16; i++ {
		block[i] = 0x44
	}
	copy(s.ram[0x1000:], block)

	v := &s.voices[0]
	v.startAddr = 0x1000 / 8
	v.pitch = 0x1000
	v.volL, v.volR = 0x7FFF, 0x7FFF
	v.env.adsr1 = 0x0000 | 0xF // attack rate 0: the fastest linear attack
	v.env.adsr2 = 0
	v.keyOn()

	var samples []int16
	for i := 0; i < 28; i++ {
		samples = append(samples, v.tick(s.ram[:], RAMSize-1))
	}

	assert.Less(t, int(samples[0]), int(samples[len(samples)-1]), "envelope must ramp up from silence")
	assert.InDelta(t, 0x4000, samples[len(samples)-1], 64, "steady-state output should approach the decoded sample")
}

func TestPitchZeroVoiceProducesSilenceButTicksEnvelope(t *testing.T) {
	s := New(nil)
	v := &s.voices[0]
	v.pitch = 0
	v.env.adsr1 = 0x0000 // attack rate 0: the level rises on the first tick
	v.keyOn()

	out := v.tick(s.ram[:], RAMSize-1)
	assert.Equal(t, int16(0), out)
	assert.NotZero(t, v.env.level, "envelope must still advance on a pitch=0 voice")
}

func TestKeyOnClearsENDXAndKeyOffEntersRelease(t *testing.T) {
	s := New(nil)
	s.endx = 0x1
	s.triggerKeyOn(0x1)
	assert.Zero(t, s.endx&0x1)
	assert.True(t, s.voices[0].isActive())

	s.triggerKeyOff(0x1)
	assert.Equal(t, adsrRelease, s.voices[0].env.phase)
}

func TestSPURegisterRoundTrip(t *testing.T) {
	s := New(nil)
	s.WriteReg(voiceRegVolL, 0x1234)
	assert.Equal(t, uint16(0x1234), s.ReadReg(voiceRegVolL))

	s.WriteReg(regMainVolL, 0x7FFF)
	assert.Equal(t, uint16(0x7FFF), s.ReadReg(regMainVolL))
}

func TestTransferWindowAutoIncrements(t *testing.T) {
	s := New(nil)
	s.WriteReg(regTransferAddr, 0x100) // units of 8 bytes -> byte addr 0x800
	s.WriteReg(regTransferData, 0xBEEF)
	s.WriteReg(regTransferData, 0xCAFE)

	assert.Equal(t, byte(0xEF), s.ram[0x800])
	assert.Equal(t, byte(0xBE), s.ram[0x801])
	assert.Equal(t, byte(0xFE), s.ram[0x802])
	assert.Equal(t, byte(0xCA), s.ram[0x803])
}

func TestDMAWriteBypassesTransferWindow(t *testing.T) {
	s := New(nil)
	s.transferAddr = 0x2000
	s.DMAWriteWord(0xDEADBEEF)
	assert.Equal(t, uint32(0x2004), s.transferAddr)

	s.transferAddr = 0x2000
	word := s.DMAReadWord()
	assert.Equal(t, uint32(0xDEADBEEF), word)
}
