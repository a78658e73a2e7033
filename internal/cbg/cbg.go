// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package cbg decodes CompressedBG images, BURIKO's native bitmap
// format, in both its weighted-Huffman/RLE v1 encoding and its
// DCT-based v2 encoding. Both share a header and a first decryption
// stage; see v1.go and v2.go for the stage-specific pipelines.
package cbg

import (
	"fmt"

	"github.com/buriko-arc/buriko/internal/bitio"
	"github.com/buriko-arc/buriko/internal/keystream"
)

// Magic is the 15-byte header that identifies a CBG blob; the header
// field occupies 16 bytes.
const Magic = "CompressedBG___"

const magicLen = 16

// Header is the common CBG header shared by v1 and v2.
type Header struct {
	Width, Height   uint16
	BPP             uint32
	IntermediateLen uint32
	Key             uint32
	EncLen          uint32
	SumCheck        byte
	XorCheck        byte
	Version         uint16
}

// DecryptError reports a checksum mismatch or structural problem in a
// CBG payload.
type DecryptError struct {
	Reason string
}

func (e *DecryptError) Error() string { return "cbg: " + e.Reason }

// IsCBG reports whether buf begins with the CBG magic and is at least
// long enough to hold a header.
func IsCBG(buf []byte) bool {
	return len(buf) >= 48 && string(buf[:len(Magic)]) == Magic
}

// Pixels holds a decoded image as interleaved 8-bit RGBA.
type Pixels struct {
	Width, Height uint16
	RGBA          []byte
}

// parseHeader reads the common header starting right after the
// 16-byte magic and returns it along with the remainder of buf (the
// encrypted weight/quantization block followed by the payload).
func parseHeader(buf []byte) (Header, []byte, error) {
	if len(buf) < 48 {
		return Header{}, nil, &bitio.ErrShortBuffer{Want: 48, Have: len(buf)}
	}
	c := bitio.NewCursor(buf[magicLen:])
	var h Header
	var err error
	if h.Width, err = c.Read16(); err != nil {
		return Header{}, nil, err
	}
	if h.Height, err = c.Read16(); err != nil {
		return Header{}, nil, err
	}
	if h.BPP, err = c.Read32(); err != nil {
		return Header{}, nil, err
	}
	if err = c.Skip(4); err != nil { // ignored
		return Header{}, nil, err
	}
	if err = c.Skip(4); err != nil { // ignored
		return Header{}, nil, err
	}
	if h.IntermediateLen, err = c.Read32(); err != nil {
		return Header{}, nil, err
	}
	if h.Key, err = c.Read32(); err != nil {
		return Header{}, nil, err
	}
	if h.EncLen, err = c.Read32(); err != nil {
		return Header{}, nil, err
	}
	if h.SumCheck, err = c.Read8(); err != nil {
		return Header{}, nil, err
	}
	if h.XorCheck, err = c.Read8(); err != nil {
		return Header{}, nil, err
	}
	if h.Version, err = c.Read16(); err != nil {
		return Header{}, nil, err
	}
	rest, err := c.Bytes(c.Len())
	if err != nil {
		return Header{}, nil, err
	}
	return h, rest, nil
}

// decryptBlock reverses the keystream XOR-by-subtraction applied to
// the first h.EncLen bytes of rest, verifying the declared sum/xor
// checks, and returns the decrypted block plus whatever follows it.
func decryptBlock(h Header, rest []byte) (block, tail []byte, err error) {
	if len(rest) < int(h.EncLen) {
		return nil, nil, &bitio.ErrShortBuffer{Want: int(h.EncLen), Have: len(rest)}
	}
	hash := keystream.NewHash(h.Key)
	block = make([]byte, h.EncLen)
	var sum, xor byte
	for n := range block {
		block[n] = rest[n] - hash.Next()
		sum += block[n]
		xor ^= block[n]
	}
	if sum != h.SumCheck || xor != h.XorCheck {
		return nil, nil, &DecryptError{Reason: fmt.Sprintf(
			"stage 1 checksum mismatch: sum want %#x got %#x, xor want %#x got %#x",
			h.SumCheck, sum, h.XorCheck, xor)}
	}
	return block, rest[h.EncLen:], nil
}

// Decrypt dispatches to the v1 or v2 decoder based on the header's
// version field, returning the decoded image as interleaved RGBA.
func Decrypt(buf []byte) (*Pixels, error) {
	h, rest, err := parseHeader(buf)
	if err != nil {
		return nil, err
	}
	if h.Version >= 2 {
		return decryptV2(h, rest)
	}
	return decryptV1(h, rest)
}
