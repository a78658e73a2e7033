// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package archive reads and writes the BURIKO ARC container: a fixed
// directory of (name, offset, size) entries followed by their
// concatenated payloads.
package archive

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// Version identifies the archive directory layout.
type Version int

const (
	V1 Version = 1
	V2 Version = 2
)

const (
	magicV1  = "PackFile    "
	magicV2  = "BURIKO ARC20"
	magicLen = 12

	entrySizeV1  = 32
	entrySizeV2  = 112
	nameFieldLen = 16
)

// FormatError reports an unrecognized archive magic. Short reads while
// parsing the directory surface as the underlying io error.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "archive: " + e.Reason }

// IndexError reports an out-of-range entry index.
type IndexError struct {
	Index, Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("archive: index %d out of bounds (count %d)", e.Index, e.Count)
}

// NameError reports an entry name that is not valid UTF-8 once
// scrubbed.
type NameError struct {
	Index int
}

func (e *NameError) Error() string {
	return fmt.Sprintf("archive: entry %d has an invalid name", e.Index)
}

// entry is a parsed directory record; Name is already scrubbed and
// NUL-trimmed at load time.
type entry struct {
	Name   string
	Offset uint32
	Size   uint32
}

// Directory is an opened ARC archive. Each read duplicates the
// underlying file descriptor via a fresh os.Open of the same path and
// seeks privately, so concurrent readers never contend on a shared
// cursor.
type Directory struct {
	path     string
	version  Version
	dataBase int64
	entries  []entry
}

// Open parses path's directory and returns a handle for random-access
// reads of its entries. The directory itself is read once and cached.
func Open(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, magicLen)
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, err
	}
	var version Version
	switch string(magic) {
	case magicV1:
		version = V1
	case magicV2:
		version = V2
	default:
		return nil, &FormatError{Reason: "unrecognized archive magic"}
	}

	var countBuf [4]byte
	if _, err := io.ReadFull(f, countBuf[:]); err != nil {
		return nil, err
	}
	count := binary.LittleEndian.Uint32(countBuf[:])

	entries := make([]entry, count)
	for i := range entries {
		var e entry
		var err error
		if version == V1 {
			e, err = readEntryV1(f, i)
		} else {
			e, err = readEntryV2(f, i)
		}
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}

	dataBase, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	return &Directory{path: path, version: version, dataBase: dataBase, entries: entries}, nil
}

// Version reports the archive's directory layout version.
func (d *Directory) Version() Version { return d.version }

// Count reports the number of entries.
func (d *Directory) Count() int { return len(d.entries) }

// Name returns entry i's scrubbed, NUL-trimmed name.
func (d *Directory) Name(i int) (string, error) {
	if i < 0 || i >= len(d.entries) {
		return "", &IndexError{Index: i, Count: len(d.entries)}
	}
	return d.entries[i].Name, nil
}

// Size returns entry i's payload size in bytes.
func (d *Directory) Size(i int) (uint32, error) {
	if i < 0 || i >= len(d.entries) {
		return 0, &IndexError{Index: i, Count: len(d.entries)}
	}
	return d.entries[i].Size, nil
}

// ReadAt reads entry i's payload in full, via a private duplicated
// file descriptor.
func (d *Directory) ReadAt(i int) ([]byte, error) {
	if i < 0 || i >= len(d.entries) {
		return nil, &IndexError{Index: i, Count: len(d.entries)}
	}
	e := d.entries[i]

	f, err := os.Open(d.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(d.dataBase+int64(e.Offset), io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, e.Size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readName(f *os.File, index int) (string, error) {
	var raw [nameFieldLen]byte
	if _, err := io.ReadFull(f, raw[:]); err != nil {
		return "", err
	}
	scrubName(&raw)
	n := nameFieldLen
	for i, b := range raw {
		if b == 0 {
			n = i
			break
		}
	}
	if !utf8.Valid(raw[:n]) {
		return "", &NameError{Index: index}
	}
	return string(raw[:n]), nil
}

// scrubName replaces any byte outside the printable ASCII range
// 0x20..0x7E (the NUL terminator excepted) with '_', matching the
// loader's one-time sanitization of raw directory bytes.
func scrubName(raw *[nameFieldLen]byte) {
	for i, b := range raw {
		if b != 0 && (b < 0x20 || b > 0x7E) {
			raw[i] = '_'
		}
	}
}

func readU32(f *os.File) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readEntryV1(f *os.File, index int) (entry, error) {
	name, err := readName(f, index)
	if err != nil {
		return entry{}, err
	}
	offset, err := readU32(f)
	if err != nil {
		return entry{}, err
	}
	size, err := readU32(f)
	if err != nil {
		return entry{}, err
	}
	if _, err := f.Seek(8, io.SeekCurrent); err != nil { // pad[8]
		return entry{}, err
	}
	return entry{Name: name, Offset: offset, Size: size}, nil
}

func readEntryV2(f *os.File, index int) (entry, error) {
	name, err := readName(f, index)
	if err != nil {
		return entry{}, err
	}
	if _, err := f.Seek(80, io.SeekCurrent); err != nil { // pad[80]
		return entry{}, err
	}
	offset, err := readU32(f)
	if err != nil {
		return entry{}, err
	}
	size, err := readU32(f)
	if err != nil {
		return entry{}, err
	}
	if _, err := f.Seek(24, io.SeekCurrent); err != nil { // pad[24]
		return entry{}, err
	}
	return entry{Name: name, Offset: offset, Size: size}, nil
}
