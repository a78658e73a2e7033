// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package ogg strips and resynthesizes the 64-byte BURIKO prelude that
// precedes an embedded OGG Vorbis stream, and estimates a stream's
// total PCM sample count from its page granule positions.
package ogg

import (
	"encoding/binary"
	"fmt"

	"github.com/buriko-arc/buriko/internal/bitio"
)

const (
	preludeLen  = 64
	pageCapture = "OggS"
)

// FormatError reports a malformed OGG page while scanning for a
// granule position.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "ogg: " + e.Reason }

// IsHeadered reports whether buf begins with the 64-byte BURIKO
// prelude followed by an OGG page capture pattern.
func IsHeadered(buf []byte) bool {
	return len(buf) >= preludeLen+4 && string(buf[preludeLen:preludeLen+4]) == pageCapture
}

// IsRaw reports whether buf is a bare OGG stream with no prelude.
func IsRaw(buf []byte) bool {
	return len(buf) >= 4 && string(buf[:4]) == pageCapture
}

// RemoveHeader strips the 64-byte prelude from buf.
func RemoveHeader(buf []byte) ([]byte, error) {
	if !IsHeadered(buf) {
		return nil, &FormatError{Reason: "missing 64-byte BURIKO prelude"}
	}
	return buf[preludeLen:], nil
}

var headerTemplate = [preludeLen]byte{
	0x40, 0x00, 0x00, 0x00, 0x62, 0x77, 0x20, 0x20,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0x44, 0xAC, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// AddHeader prepends the 64-byte BURIKO prelude to an OGG stream,
// stamping in the data length and an estimated total sample count.
func AddHeader(data []byte) ([]byte, error) {
	sampleCount, err := SampleCount(data)
	if err != nil {
		return nil, err
	}
	header := headerTemplate
	bitio.PutUint32(header[8:12], uint32(len(data)))
	bitio.PutUint32(header[12:16], sampleCount)

	out := make([]byte, 0, preludeLen+len(data))
	out = append(out, header[:]...)
	out = append(out, data...)
	return out, nil
}

// SampleCount estimates the total PCM sample count of an OGG Vorbis
// stream by walking its page headers and returning the granule
// position of the last complete page: for a normally encoded Vorbis
// stream the granule position is the cumulative decoded sample count,
// so the final page's value is the total without full packet decode.
func SampleCount(data []byte) (uint32, error) {
	var last uint64
	pos := 0
	found := false
	for pos+27 <= len(data) {
		if string(data[pos:pos+4]) != pageCapture {
			return 0, &FormatError{Reason: fmt.Sprintf("bad page capture pattern at offset %d", pos)}
		}
		granule := binary.LittleEndian.Uint64(data[pos+6 : pos+14])
		segCount := int(data[pos+26])
		if pos+27+segCount > len(data) {
			return 0, &FormatError{Reason: "truncated segment table"}
		}
		segTable := data[pos+27 : pos+27+segCount]
		pageBodyLen := 0
		for _, s := range segTable {
			pageBodyLen += int(s)
		}
		if pos+27+segCount+pageBodyLen > len(data) {
			break // truncated page body: not a complete page
		}
		last = granule
		found = true
		pos += 27 + segCount + pageBodyLen
	}
	if !found {
		return 0, &FormatError{Reason: "no OGG pages found"}
	}
	return uint32(last), nil
}
