package disc

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// openCue parses a CUE sheet into an Image, grounded line-for-line on
// original_source/src/cdrom/cdrom.cpp's Disc::open_cue: FILE lines open a
// new backing track file (relative to the CUE's own directory), TRACK
// lines set the current track number/type, and INDEX 01 lines fix that
// track's starting LBA by converting its MM:SS:FF timestamp and adding the
// owning file's base LBA.
func openCue(cuePath string) (*Image, error) {
	f, err := os.Open(cuePath)
	if err != nil {
		return nil, fmt.Errorf("disc: open cue: %w", err)
	}
	defer f.Close()

	dir := filepath.Dir(cuePath)
	img := &Image{}

	currentFile := -1
	var currentTrack uint8
	var currentIsAudio bool

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "FILE"):
			rel, ok := parseCueToken(line[4:])
			if !ok {
				continue
			}
			full := rel
			if !filepath.IsAbs(rel) {
				full = filepath.Join(dir, rel)
			}
			idx, err := img.addFile(full)
			if err != nil {
				img.Close()
				return nil, err
			}
			currentFile = idx
			currentTrack = 0
			currentIsAudio = false

		case strings.HasPrefix(upper, "TRACK"):
			if currentFile < 0 {
				continue
			}
			fields := strings.Fields(line[5:])
			if len(fields) < 2 {
				continue
			}
			n, err := strconv.Atoi(fields[0])
			if err != nil || n < 1 || n > 99 {
				continue
			}
			currentTrack = uint8(n)
			currentIsAudio = strings.EqualFold(fields[1], "AUDIO")

		case strings.HasPrefix(upper, "INDEX"):
			if currentFile < 0 || currentTrack == 0 {
				continue
			}
			fields := strings.Fields(line[5:])
			if len(fields) < 2 {
				continue
			}
			if fields[0] != "01" && fields[0] != "1" {
				continue // only INDEX 01 contributes to the TOC
			}
			mm, ss, ff, ok := parseMSF(fields[1])
			if !ok {
				continue
			}
			fileBase := img.files[currentFile].startLBA
			startLBA := fileBase + msfToLBA(mm, ss, ff)
			img.tracks = append(img.tracks, Track{
				Number:    currentTrack,
				IsAudio:   currentIsAudio,
				StartLBA:  startLBA,
				FileIndex: currentFile,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		img.Close()
		return nil, fmt.Errorf("disc: read cue: %w", err)
	}

	if len(img.tracks) == 0 && len(img.files) > 0 {
		img.tracks = append(img.tracks, Track{Number: 1, IsAudio: false, StartLBA: 0, FileIndex: 0})
	}
	return img, nil
}

// parseCueToken reads a CUE sheet field: a "quoted string" or a bare token
// up to the next whitespace.
func parseCueToken(rest string) (string, bool) {
	rest = strings.TrimLeft(rest, " \t")
	if rest == "" {
		return "", false
	}
	if rest[0] == '"' {
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			return "", false
		}
		return rest[1 : 1+end], true
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

func parseMSF(s string) (mm, ss, ff uint8, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	vals := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, 0, 0, false
		}
		vals[i] = n
	}
	return uint8(vals[0]), uint8(vals[1]), uint8(vals[2]), true
}

// msfToLBA converts a decimal MM:SS:FF timestamp to a sector offset
// relative to the start of its file (no -150 pregap bias, matching
// original_source's msf_dec_to_lba0: "00:00:00 => 0").
func msfToLBA(mm, ss, ff uint8) uint32 {
	return (uint32(mm)*60+uint32(ss))*75 + uint32(ff)
}
