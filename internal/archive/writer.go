// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package archive

import (
	"encoding/binary"
	"io"
)

// WriteEntry is a single file bound for a packed archive.
type WriteEntry struct {
	Name string
	Data []byte
}

// Write emits a complete ARC archive to w: magic, entry count, the
// per-entry directory (version-dependent layout), and finally every
// entry's payload concatenated in the order given. Offsets are
// computed as the running sum of prior payload sizes, relative to the
// first byte after the directory.
func Write(w io.Writer, entries []WriteEntry, version Version) error {
	magic := magicV1
	if version == V2 {
		magic = magicV2
	}
	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(entries)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}

	var offset uint32
	for _, e := range entries {
		if err := writeEntryMeta(w, e.Name, offset, uint32(len(e.Data)), version); err != nil {
			return err
		}
		offset += uint32(len(e.Data))
	}

	for _, e := range entries {
		if _, err := w.Write(e.Data); err != nil {
			return err
		}
	}
	return nil
}

func writeEntryMeta(w io.Writer, name string, offset, size uint32, version Version) error {
	var nameBuf [nameFieldLen]byte
	copy(nameBuf[:], name)

	if _, err := w.Write(nameBuf[:]); err != nil {
		return err
	}

	var padBefore, padAfter int
	if version == V2 {
		padBefore = 80
	}
	if version == V1 {
		padAfter = 8
	} else {
		padAfter = 24
	}

	if padBefore > 0 {
		if _, err := w.Write(make([]byte, padBefore)); err != nil {
			return err
		}
	}

	var meta [8]byte
	binary.LittleEndian.PutUint32(meta[0:4], offset)
	binary.LittleEndian.PutUint32(meta[4:8], size)
	if _, err := w.Write(meta[:]); err != nil {
		return err
	}

	if padAfter > 0 {
		if _, err := w.Write(make([]byte, padAfter)); err != nil {
			return err
		}
	}
	return nil
}
