// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package dsc decodes the DSC container: a keystream-obscured
// canonical Huffman table followed by an LZSS-style compressed
// payload.
package dsc

import (
	"sort"

	"github.com/buriko-arc/buriko/internal/bitio"
	"github.com/buriko-arc/buriko/internal/keystream"
)

// Magic is the 15-byte header that identifies a DSC blob; the header
// occupies a 16-byte field, the 16th byte unused.
const Magic = "DSC FORMAT 1.00"

const (
	magicLen  = 16
	headerLen = 16 // seed, decoded_size, two ignored u32s
	tableLen  = 512
	dataStart = magicLen + headerLen + tableLen
)

// DecryptError reports a structural problem in a DSC payload: input
// that runs out in the middle of a tree walk or a match descriptor, or
// a match whose back-offset points before the start of the output.
type DecryptError struct {
	Reason string
}

func (e *DecryptError) Error() string { return "dsc: " + e.Reason }

// IsDSC reports whether buf begins with the DSC magic.
func IsDSC(buf []byte) bool {
	return len(buf) >= magicLen && string(buf[:len(Magic)]) == Magic
}

// node is one slot of the 1024-entry bank-toggled tree. Leaf nodes
// (hasChildren == false) carry a 9-bit symbol in leaf: bit 8 marks a
// match token, the low byte is either a literal byte or a match
// length.
type node struct {
	hasChildren bool
	leaf        uint32
	childs      [2]uint32
}

type record struct {
	length, symbol uint32
}

// Decrypt decodes crypted (including its 16-byte magic) and returns
// the decompressed payload.
func Decrypt(crypted []byte) ([]byte, error) {
	if len(crypted) < dataStart {
		return nil, &bitio.ErrShortBuffer{Want: dataStart, Have: len(crypted)}
	}
	seed, err := bitio.Read32(crypted[magicLen:])
	if err != nil {
		return nil, err
	}
	decodedSize, err := bitio.Read32(crypted[magicLen+4:])
	if err != nil {
		return nil, err
	}

	records := decryptCodeLengths(crypted[magicLen+headerLen:magicLen+headerLen+tableLen], seed)
	nodes := buildTree(records)

	if decodedSize == 0 {
		return nil, nil
	}
	return decodeStream(crypted[dataStart:], nodes, decodedSize)
}

// decryptCodeLengths reverses stage 1: the 512-byte table is the
// keystream-subtracted, non-zero code length for each of the 512
// possible symbols.
func decryptCodeLengths(table []byte, seed uint32) []record {
	hash := keystream.NewHash(seed)
	var records []record
	for n, b := range table {
		v := b - hash.Next()
		if v != 0 {
			records = append(records, record{length: uint32(v), symbol: uint32(n)})
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].length != records[j].length {
			return records[i].length < records[j].length
		}
		return records[i].symbol < records[j].symbol
	})
	return records
}

// buildTree constructs the canonical Huffman tree from records (sorted
// by ascending length, then symbol) using the level-order bank-toggle
// scheme: at each level, live internal node slots are allocated two
// children apiece in the opposite 512-slot bank, and the bank toggles
// every level via XOR with 0x200.
func buildTree(records []record) []node {
	nodes := make([]node, 1024)
	vector0 := make([]uint32, 1024)

	nn := uint32(0)
	toggle := uint32(0x200)
	dec0 := uint32(1)
	valueSet := uint32(1)
	v13 := uint32(0)

	cur := 0
	for cur < len(records) {
		vecIdx := toggle
		vecInit := vecIdx
		groupCount := uint32(0)

		for cur < len(records) && nn == records[cur].length {
			idx := vector0[v13]
			nodes[idx].hasChildren = false
			nodes[idx].leaf = records[cur].symbol
			cur++
			v13++
			groupCount++
		}

		v18 := 2 * (dec0 - groupCount)
		if groupCount < dec0 {
			dec0 -= groupCount
			for i := uint32(0); i < dec0; i++ {
				idx := vector0[v13]
				nodes[idx].hasChildren = true
				for m := 0; m < 2; m++ {
					vector0[vecIdx] = valueSet
					nodes[idx].childs[m] = valueSet
					valueSet++
					vecIdx++
				}
				v13++
			}
		}
		dec0 = v18
		v13 = vecInit
		toggle ^= 0x200
		nn++
	}
	return nodes
}

// decodeStream walks nodes for each symbol, MSB-first within a byte,
// until decodedSize bytes are produced or the input is exhausted. The
// match-descriptor bit accounting reuses whatever partial byte is
// already buffered from the tree walk (nbits bits), tops up with whole
// bytes until at least 12 bits are available, then splits the result
// back into the 12-bit descriptor and the leftover bits that re-seed
// the cursor for the next walk.
func decodeStream(payload []byte, nodes []node, decodedSize uint32) ([]byte, error) {
	data := make([]byte, decodedSize)
	srcEnd := uint32(len(payload))
	dstEnd := decodedSize

	var srcPtr, dstPtr uint32
	var bits, nbits uint32

	for (srcPtr < srcEnd || nbits > 0) && dstPtr < dstEnd {
		var nentry uint32
		for nodes[nentry].hasChildren {
			if nbits == 0 {
				if srcPtr >= srcEnd {
					return nil, &DecryptError{Reason: "input exhausted mid tree walk"}
				}
				nbits = 8
				bits = uint32(payload[srcPtr])
				srcPtr++
			}
			bit := (bits >> 7) & 1
			nentry = nodes[nentry].childs[bit]
			bits = (bits << 1) & 0xFF
			nbits--
		}

		info := nodes[nentry].leaf

		if (info>>8)&0xFF == 1 {
			cvalue := bits >> (8 - nbits)
			nbits2 := nbits

			if nbits < 12 {
				need := ((11 - nbits) >> 3) + 1
				for ; need > 0; need-- {
					if srcPtr >= srcEnd {
						return nil, &DecryptError{Reason: "input exhausted reading match descriptor"}
					}
					next := uint32(payload[srcPtr])
					cvalue = next + (cvalue << 8)
					srcPtr++
					nbits2 += 8
				}
			}

			nbits = nbits2 - 12
			bits = (cvalue << (8 - (nbits2 - 12))) & 0xFF
			offset := (cvalue >> (nbits2 - 12)) + 2
			count := (info & 0xFF) + 2

			if offset > dstPtr {
				return nil, &DecryptError{Reason: "match offset precedes start of output"}
			}
			if dstPtr+count > dstEnd {
				count = dstEnd - dstPtr
			}
			ringPtr := dstPtr - offset
			for ; count > 0; count-- {
				data[dstPtr] = data[ringPtr]
				dstPtr++
				ringPtr++
			}
		} else {
			data[dstPtr] = byte(info & 0xFF)
			dstPtr++
		}
	}
	return data, nil
}
