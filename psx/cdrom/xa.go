package cdrom

// XA ADPCM decode for Mode 2 Form 2 sectors, spec's SUPPLEMENTED
// FEATURES, grounded line-for-line on
// original_source/src/audio/xa_decoder.cpp's decode_sector /
// decode_sound_group. The filter coefficient tables are identical to the
// SPU voice ADPCM tables in psx/spu/voice.go; XA keeps its own local
// copy, mirroring the two independent decoders in the reference source.
type xaDecoder struct {
	prevLeft   [2]int16
	prevRight  [2]int16
	sampleRate int
	stereo     bool
}

var xaFilterPos = [5]int32{0, 60, 115, 98, 122}
var xaFilterNeg = [5]int32{0, 0, -52, -55, -60}

func (d *xaDecoder) reset() {
	*d = xaDecoder{sampleRate: 37800, stereo: true}
}

// decodeSector decodes one Mode 2 Form 2 sector's 2336-byte user-data
// area (sub-header at offset 0, 18 sound groups of 128 bytes each
// starting at offset 8) into interleaved left/right sample slices. It
// returns the number of samples written per channel.
func (d *xaDecoder) decodeSector(sectorData []byte, outLeft, outRight []int16) int {
	coding := sectorData[3]
	d.stereo = coding&0x01 != 0
	halfRate := coding&0x04 != 0
	if halfRate {
		d.sampleRate = 18900
	} else {
		d.sampleRate = 37800
	}

	total := 0
	group := sectorData[8:]
	for g := 0; g < 18; g++ {
		n := d.decodeSoundGroup(group[:128], outLeft[total:], outRight[total:])
		total += n
		group = group[128:]
	}
	return total
}

// decodeSoundGroup decodes one 128-byte sound group: 8 ADPCM sound
// units of 28 samples each, interleaved across the group's 112 data
// bytes, grounded on decode_sound_group's byte-index formula.
func (d *xaDecoder) decodeSoundGroup(group []byte, outLeft, outRight []int16) int {
	var shifts, filters [8]int
	for u := 0; u < 8; u++ {
		param := group[u%4+(u/4)*4]
		shifts[u] = int(param & 0x0F)
		filters[u] = int((param >> 4) & 0x03)
	}

	var unitSamples [8][28]int16

	for u := 0; u < 8; u++ {
		var s1, s2 int16
		if u&1 != 0 {
			s1, s2 = d.prevRight[0], d.prevRight[1]
		} else {
			s1, s2 = d.prevLeft[0], d.prevLeft[1]
		}

		filter := filters[u]
		shift := shifts[u]

		for n := 0; n < 28; n++ {
			byteIdx := 16 + (n/2)*8 + (u / 2)
			if n&1 != 0 {
				byteIdx += 4
			}
			if byteIdx >= 128 {
				byteIdx = 127
			}

			dataByte := group[byteIdx]
			var nibble int
			if u&1 == 0 {
				nibble = int(dataByte & 0x0F)
			} else {
				nibble = int((dataByte >> 4) & 0x0F)
			}
			if nibble >= 8 {
				nibble -= 16
			}

			sample := int32(nibble) << (12 - shift)
			if filter < 5 {
				sample += (int32(s1)*xaFilterPos[filter] + int32(s2)*xaFilterNeg[filter] + 32) >> 6
			}
			if sample > 32767 {
				sample = 32767
			}
			if sample < -32768 {
				sample = -32768
			}

			s2 = s1
			s1 = int16(sample)
			unitSamples[u][n] = int16(sample)
		}

		if u&1 != 0 {
			d.prevRight[0], d.prevRight[1] = s1, s2
		} else {
			d.prevLeft[0], d.prevLeft[1] = s1, s2
		}
	}

	if d.stereo {
		for u := 0; u < 4; u++ {
			for s := 0; s < 28; s++ {
				outLeft[u*28+s] = unitSamples[u*2][s]
				outRight[u*28+s] = unitSamples[u*2+1][s]
			}
		}
		return 112
	}

	for u := 0; u < 8; u++ {
		for s := 0; s < 28; s++ {
			outLeft[u*28+s] = unitSamples[u][s]
			outRight[u*28+s] = unitSamples[u][s]
		}
	}
	return 224
}
