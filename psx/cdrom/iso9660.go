package cdrom

import (
	"bytes"
	"fmt"
	"strings"
)

// pvdLBA is the fixed logical sector of the Primary Volume Descriptor,
// spec §4.4's ISO9660 traversal, grounded on
// original_source/src/cdrom/cdrom.cpp's iso9660_find_file.
const pvdLBA = 16

// isoFindFile resolves a "cdrom:\PATH\TO\FILE;1"-style path to its extent
// LBA and byte size by walking the root directory record from the
// Primary Volume Descriptor down through each path component.
func (c *Cdrom) isoFindFile(path string) (lba, size uint32, err error) {
	if c.image == nil {
		return 0, 0, fmt.Errorf("cdrom: no disc inserted")
	}

	var pvd [2048]byte
	if err := c.image.ReadSector2048(pvdLBA, &pvd); err != nil {
		return 0, 0, fmt.Errorf("cdrom: read PVD: %w", err)
	}
	if pvd[0] != 1 || !bytes.Equal(pvd[1:6], []byte("CD001")) || pvd[6] != 1 {
		return 0, 0, fmt.Errorf("cdrom: not an ISO9660 volume")
	}

	rootLBA := readLE32(pvd[156+2:])
	rootSize := readLE32(pvd[156+10:])

	comps := splitPath(path)
	curLBA, curSize := rootLBA, rootSize

	for i, comp := range comps {
		entryLBA, entrySize, isDir, ok, err := findDirEntry(c.image, curLBA, curSize, comp)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			return 0, 0, fmt.Errorf("cdrom: %q not found", path)
		}
		if i == len(comps)-1 {
			return entryLBA, entrySize, nil
		}
		if !isDir {
			return 0, 0, fmt.Errorf("cdrom: %q is not a directory", comp)
		}
		curLBA, curSize = entryLBA, entrySize
	}
	return 0, 0, fmt.Errorf("cdrom: empty path")
}

// ReadFile resolves path via isoFindFile and returns its full contents, for
// the fast-boot path's PS-X EXE load (spec §4.8).
func (c *Cdrom) ReadFile(path string) ([]byte, error) {
	lba, size, err := c.isoFindFile(path)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, size)
	sectors := (size + 2047) / 2048
	for s := uint32(0); s < sectors; s++ {
		var buf [2048]byte
		if err := c.image.ReadSector2048(lba+s, &buf); err != nil {
			return nil, fmt.Errorf("cdrom: read file sector: %w", err)
		}
		remaining := int(size) - len(out)
		if remaining > 2048 {
			remaining = 2048
		}
		out = append(out, buf[:remaining]...)
	}
	return out, nil
}

// BootExecutablePath reads SYSTEM.CNF and returns its BOOT= entry's path
// (e.g. "cdrom:\SLUS_000.01;1"), for the fast-boot path spec §4.8 describes
// as "parse SYSTEM.CNF's BOOT entry, locate the PS-X EXE on the disc".
func (c *Cdrom) BootExecutablePath() (string, error) {
	data, err := c.ReadFile("SYSTEM.CNF")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "BOOT") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		return strings.TrimSpace(line[eq+1:]), nil
	}
	return "", fmt.Errorf("cdrom: SYSTEM.CNF has no BOOT= entry")
}

// findDirEntry scans the directory extent [dirLBA, dirLBA+ceil(dirSize/2048))
// for a record matching name (case-insensitive, ";version" stripped).
func findDirEntry(img interface {
	ReadSector2048(lba uint32, out *[2048]byte) error
}, dirLBA, dirSize uint32, name string) (lba, size uint32, isDir bool, ok bool, err error) {
	sectors := (dirSize + 2047) / 2048
	for s := uint32(0); s < sectors; s++ {
		var buf [2048]byte
		if err := img.ReadSector2048(dirLBA+s, &buf); err != nil {
			return 0, 0, false, false, fmt.Errorf("cdrom: read directory sector: %w", err)
		}
		pos := 0
		for pos < 2048 {
			recLen := int(buf[pos])
			if recLen == 0 {
				break
			}
			if pos+recLen > 2048 {
				break
			}
			rec := buf[pos : pos+recLen]
			nameLen := int(rec[32])
			if 33+nameLen <= len(rec) {
				rawName := string(rec[33 : 33+nameLen])
				flags := rec[25]
				dir := flags&0x02 != 0
				entryName := stripVersion(rawName)
				if !dir && (entryName == "\x00" || entryName == "\x01") {
					pos += recLen
					continue
				}
				if strings.EqualFold(entryName, stripVersion(name)) {
					extentLBA := readLE32(rec[2:])
					extentSize := readLE32(rec[10:])
					return extentLBA, extentSize, dir, true, nil
				}
			}
			pos += recLen
		}
	}
	return 0, 0, false, false, nil
}

// splitPath normalizes a "cdrom:\SYSTEM.CNF;1" style path into plain
// directory components, stripping the device prefix and accepting either
// slash direction.
func splitPath(path string) []string {
	p := path
	if idx := strings.Index(p, ":"); idx >= 0 {
		p = p[idx+1:]
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// stripVersion removes a trailing ";N" version suffix from an ISO9660
// directory record name.
func stripVersion(name string) string {
	if idx := strings.IndexByte(name, ';'); idx >= 0 {
		return name[:idx]
	}
	return name
}

func readLE32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// inferDiscRegion implements spec §4.4's two-tier SCEx inference: first
// SYSTEM.CNF's BOOT= game-ID prefix, falling back to a license-string
// substring search in logical sector 4, grounded on
// original_source/src/cdrom/cdrom.cpp's infer_disc_region.
func (c *Cdrom) inferDiscRegion() Region {
	if lba, _, err := c.isoFindFile("SYSTEM.CNF"); err == nil {
		var buf [2048]byte
		if c.image.ReadSector2048(lba, &buf) == nil {
			if r, ok := regionFromSystemCNF(buf[:]); ok {
				return r
			}
		}
	}

	var buf [2048]byte
	if c.image != nil && c.image.ReadSector2048(4, &buf) == nil {
		text := string(buf[:])
		switch {
		case strings.Contains(text, "of America"):
			return Region{Letter: 'A', SCEx: [4]byte{'S', 'C', 'E', 'A'}}
		case strings.Contains(text, "Europe"):
			return Region{Letter: 'E', SCEx: [4]byte{'S', 'C', 'E', 'E'}}
		case strings.Contains(text, "Japan"):
			return Region{Letter: 'I', SCEx: [4]byte{'S', 'C', 'E', 'I'}}
		}
	}
	return Region{}
}

func regionFromSystemCNF(data []byte) (Region, bool) {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "BOOT") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		val := strings.TrimSpace(line[eq+1:])
		idx := strings.LastIndexByte(val, '\\')
		if idx >= 0 {
			val = val[idx+1:]
		}
		idx = strings.LastIndexByte(val, '/')
		if idx >= 0 {
			val = val[idx+1:]
		}
		prefix := val
		if len(prefix) > 4 {
			prefix = prefix[:4]
		}
		switch strings.ToUpper(prefix) {
		case "SCUS", "SLUS":
			return Region{Letter: 'A', SCEx: [4]byte{'S', 'C', 'E', 'A'}}, true
		case "SCES", "SLES":
			return Region{Letter: 'E', SCEx: [4]byte{'S', 'C', 'E', 'E'}}, true
		case "SCPS", "SLPS", "SCPM":
			return Region{Letter: 'I', SCEx: [4]byte{'S', 'C', 'E', 'I'}}, true
		}
	}
	return Region{}, false
}
