package spu

import (
	"encoding/binary"
	"fmt"
	"os"
)

// wavWriter streams the final mixed SPU output to a 16-bit PCM WAV file,
// the SUPPLEMENTED-FEATURES WAV dump sink grounded on
// original_source/src/audio/wav_writer.cpp: write a placeholder header,
// append interleaved samples, then seek back and patch the RIFF/data sizes
// on close. No WAV-writing library appears anywhere in the pack, so this
// uses encoding/binary directly (stdlib-justification recorded in
// DESIGN.md).
type wavWriter struct {
	file           *os.File
	sampleRate     int
	channels       int
	samplesWritten uint32
}

func newWAVWriter(path string, sampleRate, channels int) (*wavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("spu: open wav dump: %w", err)
	}

	w := &wavWriter{file: f, sampleRate: sampleRate, channels: channels}
	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *wavWriter) writeHeader() error {
	byteRate := uint32(w.sampleRate * w.channels * 2)
	blockAlign := uint16(w.channels * 2)

	buf := make([]byte, 0, 44)
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, 0) // placeholder RIFF size
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, uint16(w.channels))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(w.sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, byteRate)
	buf = binary.LittleEndian.AppendUint16(buf, blockAlign)
	buf = binary.LittleEndian.AppendUint16(buf, 16) // bits per sample
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, 0) // placeholder data size

	_, err := w.file.Write(buf)
	return err
}

// WriteSample appends one stereo frame.
func (w *wavWriter) WriteSample(left, right int16) error {
	var buf [4]byte
	binary.LittleEndian.PutUint16(buf[0:2], uint16(left))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(right))
	if _, err := w.file.Write(buf[:]); err != nil {
		return err
	}
	w.samplesWritten++
	return nil
}

// Close patches the RIFF/data chunk sizes and closes the file.
func (w *wavWriter) Close() error {
	dataSize := w.samplesWritten * uint32(w.channels) * 2
	riffSize := dataSize + 36

	if _, err := w.file.Seek(4, 0); err != nil {
		return err
	}
	var sz [4]byte
	binary.LittleEndian.PutUint32(sz[:], riffSize)
	if _, err := w.file.Write(sz[:]); err != nil {
		return err
	}

	if _, err := w.file.Seek(40, 0); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(sz[:], dataSize)
	if _, err := w.file.Write(sz[:]); err != nil {
		return err
	}

	return w.file.Close()
}
