// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package bse descrambles the 64-byte BSE header block that precedes
// some ETHORNELL entries (typically script files), reversing a
// position/rotate/subtract permutation keyed by a 32-bit seed.
package bse

import (
	"fmt"

	"github.com/buriko-arc/buriko/internal/bitio"
	"github.com/buriko-arc/buriko/internal/keystream"
)

// Magic is the 8-byte header that identifies a BSE-scrambled blob.
const Magic = "BSE 1.0\x00"

const (
	headerLen  = 16 // magic + flag + sum_check + xor_check + seed
	blockLen   = 64
	blockStart = headerLen
)

// DecryptError reports a BSE validation failure: the descrambled
// block's checksum or parity did not match the header's declared
// values.
type DecryptError struct {
	Want, GotSum byte
	WantX, GotX  byte
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("bse: checksum mismatch: sum want %#x got %#x, xor want %#x got %#x",
		e.Want, e.GotSum, e.WantX, e.GotX)
}

// IsBSE reports whether buf begins with the BSE magic.
func IsBSE(buf []byte) bool {
	return len(buf) >= headerLen && string(buf[:8]) == Magic
}

// Descramble reverses the BSE permutation in place over buf[16:80] and
// returns buf[16:] (the scrambled block followed by whatever trailed
// it), with the checksum prelude consumed. buf must be at least
// headerLen+blockLen bytes long.
func Descramble(buf []byte) ([]byte, error) {
	if len(buf) < headerLen+blockLen {
		return nil, &bitio.ErrShortBuffer{Want: headerLen + blockLen, Have: len(buf)}
	}
	// flag (u16, discarded) at offset 8.
	sumCheck := buf[10]
	xorCheck := buf[11]
	seed, err := bitio.Read32(buf[12:16])
	if err != nil {
		return nil, err
	}

	block := buf[blockStart : blockStart+blockLen]
	rng := keystream.NewBSE(seed)
	var visited [blockLen]bool

	for iter := 0; iter < blockLen; iter++ {
		i := int(rng.Next() & 0x3F)
		for visited[i] {
			i = (i + 1) & 0x3F
		}
		shift := uint(rng.Next() & 7)
		k := rng.Next()
		r := rng.Next()

		b := block[i] - byte(r)
		if k&1 != 0 {
			block[i] = rotateLeft8(b, shift)
		} else {
			block[i] = rotateRight8(b, shift)
		}
		visited[i] = true
	}

	var sum, xor byte
	for _, b := range block {
		sum += b
		xor ^= b
	}
	if sum != sumCheck || xor != xorCheck {
		return nil, &DecryptError{Want: sumCheck, GotSum: sum, WantX: xorCheck, GotX: xor}
	}
	return buf[headerLen:], nil
}

func rotateLeft8(b byte, shift uint) byte {
	shift &= 7
	return (b << shift) | (b >> (8 - shift))
}

func rotateRight8(b byte, shift uint) byte {
	shift &= 7
	return (b >> shift) | (b << (8 - shift))
}
