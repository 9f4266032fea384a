// Package disc implements the boundary component of spec §1: reading a
// PlayStation disc image (a raw BIN dump, optionally described by a CUE
// sheet) off the host filesystem and exposing it as a flat LBA-addressed
// sector source. Grounded on go-jeebie's jeebie/memory.Cartridge (a small
// struct that loads a ROM image into memory and offers byte-addressed
// reads), generalized from a single in-memory ROM blob to a multi-file,
// multi-track disc image read on demand via *os.File seeks — mirroring
// original_source/src/cdrom/cdrom.cpp's Disc::read_sector_raw, which keeps
// each track file open and seeks rather than loading the whole image.
package disc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Track describes one entry in the disc's table of contents.
type Track struct {
	Number    uint8  // 1..99
	IsAudio   bool   // CDDA track vs data track
	StartLBA  uint32 // absolute disc LBA where this track's INDEX 01 begins
	FileIndex int    // index into Image.files
}

// trackFile is one backing file contributed by a CUE sheet's FILE line (or
// the sole file for a bare .bin image).
type trackFile struct {
	f          *os.File
	path       string
	sectorSize uint32 // 2048 or 2352, detected from file length
	numSectors uint32
	startLBA   uint32 // first disc LBA this file covers
}

// Image is an open disc image: one or more backing files plus a track
// list, addressed as a single contiguous LBA space.
type Image struct {
	files    []trackFile
	tracks   []Track
	totalLBA uint32
}

// Open loads a disc image, dispatching on extension: ".cue" parses a CUE
// sheet (possibly multi-file, multi-track); anything else is treated as a
// single-file, single-data-track raw image, spec §4.4 "insert_disc".
func Open(path string) (*Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return openCue(path)
	}
	return openSingle(path)
}

func openSingle(path string) (*Image, error) {
	img := &Image{}
	if _, err := img.addFile(path); err != nil {
		return nil, err
	}
	img.tracks = append(img.tracks, Track{Number: 1, IsAudio: false, StartLBA: 0, FileIndex: 0})
	return img, nil
}

// addFile opens path, detects its sector size from its length (a multiple
// of 2352 is a raw/XA dump, a multiple of 2048 is an ISO-style dump), and
// appends it to the image's file list.
func (img *Image) addFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("disc: open track file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("disc: stat track file: %w", err)
	}

	size := info.Size()
	var sectorSize uint32
	switch {
	case size > 0 && size%2352 == 0:
		sectorSize = 2352
	case size > 0 && size%2048 == 0:
		sectorSize = 2048
	default:
		f.Close()
		return 0, fmt.Errorf("disc: %s is not a multiple of 2048 or 2352 bytes", path)
	}

	tf := trackFile{
		f:          f,
		path:       path,
		sectorSize: sectorSize,
		numSectors: uint32(size) / sectorSize,
		startLBA:   img.totalLBA,
	}
	img.files = append(img.files, tf)
	img.totalLBA += tf.numSectors
	return len(img.files) - 1, nil
}

// Close releases all backing file handles.
func (img *Image) Close() error {
	var firstErr error
	for i := range img.files {
		if img.files[i].f == nil {
			continue
		}
		if err := img.files[i].f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		img.files[i].f = nil
	}
	return firstErr
}

// SectorCount returns the disc's total LBA span across all backing files.
func (img *Image) SectorCount() uint32 { return img.totalLBA }

// Tracks returns the disc's parsed table of contents.
func (img *Image) Tracks() []Track { return img.tracks }

// TrackForLBA finds the track whose range contains lba, or false if lba
// precedes the first track (e.g. before any INDEX 01 in a malformed CUE).
func (img *Image) TrackForLBA(lba uint32) (Track, bool) {
	var best Track
	found := false
	for _, t := range img.tracks {
		if t.StartLBA <= lba && (!found || t.StartLBA > best.StartLBA) {
			best = t
			found = true
		}
	}
	return best, found
}

// ReadSectorRaw reads the raw sector at lba (either 2048 or 2352 bytes,
// whichever the backing file uses) into out, grounded on
// original_source/src/cdrom/cdrom.cpp's Disc::read_sector_raw.
func (img *Image) ReadSectorRaw(lba uint32, out []byte) (sectorSize int, err error) {
	for i := range img.files {
		tf := &img.files[i]
		if lba < tf.startLBA {
			continue
		}
		rel := lba - tf.startLBA
		if rel >= tf.numSectors {
			continue
		}
		if uint32(len(out)) < tf.sectorSize {
			return 0, fmt.Errorf("disc: read buffer too small for %d-byte sector", tf.sectorSize)
		}
		off := int64(rel) * int64(tf.sectorSize)
		n, err := tf.f.ReadAt(out[:tf.sectorSize], off)
		if err != nil {
			return 0, fmt.Errorf("disc: read LBA %d: %w", lba, err)
		}
		if uint32(n) != tf.sectorSize {
			return 0, fmt.Errorf("disc: short read at LBA %d: got %d of %d bytes", lba, n, tf.sectorSize)
		}
		return int(tf.sectorSize), nil
	}
	return 0, fmt.Errorf("disc: LBA %d out of range (disc has %d sectors)", lba, img.totalLBA)
}

// Sector mode byte values (offset 15 of a raw 2352-byte sector), spec §4.4
// CDDA / SUPPLEMENTED FEATURES XA ADPCM decode.
const (
	sectorModeCDDA          = 0 // no header at all; not dispatched through here
	sectorModeMode1         = 1
	sectorModeMode2Form1Hdr = 2
)

// ReadSector2048 extracts the 2048-byte user-data payload at lba, spec
// §4.4's `read_sector_2048`. Raw 2352-byte sectors carry a 12-byte sync
// pattern, 3-byte MSF, and 1-byte mode at offset 15; Mode 1 data starts at
// offset 16, Mode 2 Form 1 data (behind its 8-byte subheader) at offset 24.
func (img *Image) ReadSector2048(lba uint32, out *[2048]byte) error {
	var buf [2352]byte
	n, err := img.ReadSectorRaw(lba, buf[:])
	if err != nil {
		return err
	}
	if n == 2048 {
		copy(out[:], buf[:2048])
		return nil
	}

	mode := buf[15]
	switch mode {
	case sectorModeMode1:
		copy(out[:], buf[16:16+2048])
	case sectorModeMode2Form1Hdr:
		copy(out[:], buf[24:24+2048])
	default:
		return fmt.Errorf("disc: LBA %d has unrecognized sector mode %d", lba, mode)
	}
	return nil
}

// ReadRawAudio reads a full 2352-byte CDDA/XA sector for the audio path,
// spec §4.4 "drawing sectors from the disc as raw 2352-byte blocks".
func (img *Image) ReadRawAudio(lba uint32, out *[2352]byte) error {
	n, err := img.ReadSectorRaw(lba, out[:])
	if err != nil {
		return err
	}
	if n != 2352 {
		return fmt.Errorf("disc: LBA %d is not a 2352-byte sector (got %d)", lba, n)
	}
	return nil
}
