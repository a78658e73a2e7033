// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cbg

import "github.com/buriko-arc/buriko/internal/bitio"

// decryptV1 runs the weighted-Huffman/RLE/2D-predictor pipeline: a
// 256-entry varint weight table builds a pairing tree, which decodes
// intermediate_len symbols from the bitstream following the encrypted
// block; those symbols feed a run-length expansion into a raw
// per-pixel buffer, which is de-predicted in place and finally
// repacked to RGBA according to bpp.
func decryptV1(h Header, rest []byte) (*Pixels, error) {
	block, payload, err := decryptBlock(h, rest)
	if err != nil {
		return nil, err
	}

	weights, err := readWeightTable(block)
	if err != nil {
		return nil, err
	}
	nodes, root := buildWeightedTree(weights[:])

	intermediate, err := decodeIntermediate(nodes, root, payload, int(h.IntermediateLen))
	if err != nil {
		return nil, err
	}

	pixelSize := int(h.BPP / 8)
	stride := int(h.Width) * pixelSize
	raw := make([]byte, stride*int(h.Height))
	expandRLE(intermediate, raw)
	unpredict2D(raw, int(h.Width), int(h.Height), pixelSize, stride)

	return &Pixels{
		Width:  h.Width,
		Height: h.Height,
		RGBA:   packRGBA(raw, int(h.Width), int(h.Height), h.BPP),
	}, nil
}

// readWeightTable reads 256 varints from block into a weight table.
func readWeightTable(block []byte) ([256]uint32, error) {
	var weights [256]uint32
	pos := 0
	for i := range weights {
		v, n, err := readVariableLenient(block[pos:])
		if err != nil {
			return weights, err
		}
		weights[i] = v
		pos += n
	}
	return weights, nil
}

// readVariableLenient decodes a little-endian base-128 varint the way
// the original weight-table reader does: it stops at end of input or
// after 32 bits of shift without treating either as an error, instead
// of bitio.ReadVarint's strict rejection.
func readVariableLenient(buf []byte) (value uint32, n int, err error) {
	var shift uint
	for n = 0; n < len(buf); n++ {
		b := buf[n]
		if shift >= 32 {
			return value, n, nil
		}
		value |= uint32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			return value, n + 1, nil
		}
	}
	return value, n, nil
}

// decodeIntermediate Huffman-decodes up to count symbols from payload,
// stopping early (leaving the remainder of dst zeroed) if the input is
// exhausted mid-stream, matching the original's lenient behavior.
func decodeIntermediate(nodes []huffNode, root uint32, payload []byte, count int) ([]byte, error) {
	dst := make([]byte, count)
	br := bitio.NewMSBReader(payload)
	for i := 0; i < count; i++ {
		sym, err := decodeSymbol(nodes, root, br)
		if err != nil {
			break
		}
		dst[i] = byte(sym)
	}
	return dst, nil
}

// expandRLE alternates copying bytes from src and emitting zeros into
// dst, toggling on every varint-prefixed run, starting with a copy
// run.
func expandRLE(src, dst []byte) {
	isZero := false
	dstIdx := 0
	pos := 0
	for pos < len(src) && dstIdx < len(dst) {
		count, n, err := readVariableLenient(src[pos:])
		if err != nil {
			break
		}
		pos += n
		end := dstIdx + int(count)
		if end > len(dst) {
			end = len(dst)
		}
		if !isZero {
			toCopy := end - dstIdx
			avail := len(src) - pos
			if toCopy > avail {
				toCopy = avail
			}
			if toCopy > 0 {
				copy(dst[dstIdx:dstIdx+toCopy], src[pos:pos+toCopy])
				pos += toCopy
			}
		}
		dstIdx = end
		isZero = !isZero
	}
}

// unpredict2D reverses the row/column averaging predictor: each
// component is the sum of its left and above neighbors (halved when
// both exist), added back modulo 256.
func unpredict2D(raw []byte, width, height, pixelSize, stride int) {
	for y := 0; y < height; y++ {
		line := y * stride
		for x := 0; x < width; x++ {
			off := line + x*pixelSize
			for p := 0; p < pixelSize; p++ {
				var avg uint32
				if x > 0 {
					avg += uint32(raw[off+p-pixelSize])
				}
				if y > 0 {
					avg += uint32(raw[off+p-stride])
				}
				if x > 0 && y > 0 {
					avg /= 2
				}
				if avg != 0 {
					raw[off+p] += byte(avg)
				}
			}
		}
	}
}

// packRGBA converts the raw per-pixel buffer to interleaved RGBA
// according to bpp: 32 is BGRA, 24 is BGR with A=255, 8 is grayscale,
// 16 is BGR565 expanded with bit replication.
func packRGBA(raw []byte, width, height int, bpp uint32) []byte {
	pixelSize := int(bpp / 8)
	out := make([]byte, width*height*4)
	for px := 0; px < width*height; px++ {
		off := px * pixelSize
		o := px * 4
		switch bpp {
		case 32:
			out[o], out[o+1], out[o+2], out[o+3] = raw[off+2], raw[off+1], raw[off], raw[off+3]
		case 24:
			out[o], out[o+1], out[o+2], out[o+3] = raw[off+2], raw[off+1], raw[off], 255
		case 8:
			v := raw[off]
			out[o], out[o+1], out[o+2], out[o+3] = v, v, v, 255
		case 16:
			val := uint16(raw[off]) | uint16(raw[off+1])<<8
			b := uint8((val >> 11) & 0x1F)
			g := uint8((val >> 5) & 0x3F)
			r := uint8(val & 0x1F)
			out[o] = (r << 3) | (r >> 2)
			out[o+1] = (g << 2) | (g >> 4)
			out[o+2] = (b << 3) | (b >> 2)
			out[o+3] = 255
		default:
			out[o], out[o+1], out[o+2], out[o+3] = 0, 0, 0, 255
		}
	}
	return out
}
