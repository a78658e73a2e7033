// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cbg

import (
	"math"

	"github.com/buriko-arc/buriko/internal/bitio"
)

// zigzag maps a zig-zag scan index to its position in a natural
// row-major 8x8 block.
var zigzag = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10, 17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34, 27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36, 29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46, 53, 60, 61, 54, 47, 55, 62, 63,
}

// aanScale is the AAN normalization table: s_i,j = cos(i*pi/16) *
// cos(j*pi/16) * 2, row-major over an 8x8 block. The decrypted
// quantization bytes are scaled by this table before being used as
// dequantization multipliers ahead of the fast IDCT below.
var aanScale [64]float64

func init() {
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			aanScale[i*8+j] = math.Cos(float64(i)*math.Pi/16) * math.Cos(float64(j)*math.Pi/16) * 2
		}
	}
}

const (
	dcTreeSymbols = 0x10
	acTreeSymbols = 0xB0
)

// decryptV2 runs the DCT-based pipeline: a 128-byte quantization block
// scaled by the AAN table, two Huffman tables (DC category lengths and
// AC run/size pairs), and a block-row offset table locate each 8x8
// block's coefficients; each block is entropy-decoded, dequantized,
// inverse-transformed and packed to RGBA, with an optional trailing
// alpha-channel RLE pass.
func decryptV2(h Header, rest []byte) (*Pixels, error) {
	if h.EncLen < 0x80 {
		return nil, &DecryptError{Reason: "cbg v2 requires enc_len >= 128"}
	}
	block, tail, err := decryptBlock(h, rest)
	if err != nil {
		return nil, err
	}

	var dct [2][64]float64
	for plane := 0; plane < 2; plane++ {
		for k := 0; k < 64; k++ {
			dct[plane][k] = float64(block[plane*64+k]) * aanScale[k]
		}
	}

	dcWeights := make([]uint32, dcTreeSymbols)
	pos := 0
	for i := range dcWeights {
		v, n, _ := readVariableLenient(tail[pos:])
		dcWeights[i] = v
		pos += n
	}
	acWeights := make([]uint32, acTreeSymbols)
	for i := range acWeights {
		v, n, _ := readVariableLenient(tail[pos:])
		acWeights[i] = v
		pos += n
	}
	dcNodes, dcRoot := buildWeightedTree(dcWeights)
	acNodes, acRoot := buildWeightedTree(acWeights)

	// v2 output dimensions round up to whole 8x8 blocks.
	paddedW := (int(h.Width) + 7) &^ 7
	paddedH := (int(h.Height) + 7) &^ 7
	numRows := paddedH / 8
	numOffsets := numRows + 1
	offsetTable := tail[pos:]
	if len(offsetTable) < numOffsets*4 {
		return nil, &bitio.ErrShortBuffer{Want: numOffsets * 4, Have: len(offsetTable)}
	}
	offsets := make([]uint32, numOffsets)
	for i := range offsets {
		offsets[i], _ = bitio.Read32(offsetTable[i*4:])
	}
	base := uint32(numOffsets * 4)
	for i := range offsets {
		offsets[i] -= base
	}
	payload := offsetTable[base:]

	blocksPerRow := paddedW / 8
	padSkip := (blocksPerRow + 7) / 8
	planesPerBlock := 3
	if h.BPP == 8 {
		planesPerBlock = 1
	}

	planes := make([][][64]float64, numRows)
	for row := 0; row < numRows; row++ {
		start, end := offsets[row]+uint32(padSkip), offsets[row+1]
		if end > uint32(len(payload)) || start > end {
			return nil, &DecryptError{Reason: "block row offsets out of range"}
		}
		rowPixels, err := decodeBlockRow(payload[start:end], dcNodes, dcRoot, acNodes, acRoot,
			blocksPerRow, planesPerBlock, dct)
		if err != nil {
			return nil, err
		}
		planes[row] = rowPixels
	}

	rgba := assembleRGBA(planes, paddedW, paddedH, h.BPP, blocksPerRow, planesPerBlock)

	if h.BPP == 32 {
		alphaStart := offsets[numRows]
		if alphaStart+4 <= uint32(len(payload)) {
			applyAlpha(payload[alphaStart:], rgba, paddedW, paddedH)
		}
	}

	return &Pixels{Width: uint16(paddedW), Height: uint16(paddedH), RGBA: rgba}, nil
}

// decodeBlockRow entropy-decodes and inverse-transforms every 8x8
// block in one block-row, returning each block's 64 spatial-domain
// samples in scan order (macroblock by macroblock, plane by plane
// within a macroblock).
func decodeBlockRow(row []byte, dcNodes []huffNode, dcRoot uint32, acNodes []huffNode, acRoot uint32,
	blocksPerRow, planesPerBlock int, dct [2][64]float64) ([][64]float64, error) {

	blockSize, n, _ := readVariableLenient(row)
	if blockSize == 0xFFFFFFFF {
		return make([][64]float64, blocksPerRow*planesPerBlock), nil
	}
	numBlocks := int(blockSize / 64)
	if numBlocks > blocksPerRow*planesPerBlock {
		return nil, &DecryptError{Reason: "block row declares more blocks than the image holds"}
	}

	br := bitio.NewMSBReader(row[n:])
	coefs := make([][64]int32, numBlocks)

	var acc int32
	for b := 0; b < numBlocks; b++ {
		count, err := decodeSymbol(dcNodes, dcRoot, br)
		if err != nil {
			break
		}
		if count != 0 {
			v, err := br.GetBits(uint(count))
			if err != nil {
				break
			}
			acc += extendSigned(v, uint(count))
		}
		coefs[b][0] = acc
	}
	br.Align()

	for b := 0; b < numBlocks; b++ {
		index := 1
		for index < 64 {
			code, err := decodeSymbol(acNodes, acRoot, br)
			if err != nil {
				break
			}
			if code == 0 {
				break
			}
			if code == 0xF {
				index += 16
				continue
			}
			index += int(code & 0xF)
			bits := uint(code >> 4)
			if index >= 64 {
				break
			}
			v, err := br.GetBits(bits)
			if err != nil {
				break
			}
			coefs[b][zigzag[index]] = extendSigned(v, bits)
			index++
		}
	}

	out := make([][64]float64, numBlocks)
	for b := 0; b < numBlocks; b++ {
		plane := 0
		if planesPerBlock == 3 && b%3 != 0 {
			plane = 1
		}
		var block [64]float64
		for k := 0; k < 64; k++ {
			block[k] = float64(coefs[b][k]) * dct[plane][k]
		}
		idct8x8(&block)
		out[b] = block
	}
	return out, nil
}

// extendSigned widens a `bits`-wide raw value to its signed magnitude
// using the classic JPEG category extension: values whose top bit is
// clear fall in the negative half of the category's range.
func extendSigned(v uint32, bits uint) int32 {
	if bits == 0 {
		return 0
	}
	half := uint32(1) << (bits - 1)
	if v < half {
		neg := (^uint32(0) << bits) | v
		return int32(neg) + 1
	}
	return int32(v)
}

// idct8x8 runs the AAN fast inverse DCT: a column pass followed by a
// row pass, each a 1-D 8-point butterfly over dequantized
// coefficients.
func idct8x8(block *[64]float64) {
	for c := 0; c < 8; c++ {
		idct1D(block, c, 8)
	}
	for r := 0; r < 8; r++ {
		idct1D(block, r*8, 1)
	}
}

// idct1D performs the 8-point AAN butterfly over 8 samples of block
// starting at off, spaced stride apart (stride 8 for a column, 1 for a
// row).
func idct1D(block *[64]float64, off, stride int) {
	at := func(i int) float64 { return block[off+i*stride] }
	set := func(i int, v float64) { block[off+i*stride] = v }

	tmp0, tmp1, tmp2, tmp3 := at(0), at(2), at(4), at(6)

	tmp10 := tmp0 + tmp2
	tmp11 := tmp0 - tmp2
	tmp13 := tmp1 + tmp3
	tmp12 := (tmp1-tmp3)*1.414213562 - tmp13

	e0 := tmp10 + tmp13
	e3 := tmp10 - tmp13
	e1 := tmp11 + tmp12
	e2 := tmp11 - tmp12

	tmp4, tmp5, tmp6, tmp7 := at(1), at(3), at(5), at(7)

	z13 := tmp6 + tmp5
	z10 := tmp6 - tmp5
	z11 := tmp4 + tmp7
	z12 := tmp4 - tmp7

	o7 := z11 + z13
	o11 := (z11 - z13) * 1.414213562

	z5 := (z10 + z12) * 1.847759065
	o10 := 1.082392200*z12 - z5
	o12 := -2.613125930*z10 + z5

	o6 := o12 - o7
	o5 := o11 - o6
	o4 := o10 + o5

	set(0, e0+o7)
	set(7, e0-o7)
	set(1, e1+o6)
	set(6, e1-o6)
	set(2, e2+o5)
	set(5, e2-o5)
	set(4, e3+o4)
	set(3, e3-o4)
}

// assembleRGBA packs the decoded block-row planes into an interleaved
// RGBA image.
func assembleRGBA(rows [][][64]float64, width, height int, bpp uint32, blocksPerRow, planesPerBlock int) []byte {
	out := make([]byte, width*height*4)
	for row, blocks := range rows {
		for mb := 0; mb < blocksPerRow; mb++ {
			var y, cb, cr [64]float64
			if planesPerBlock == 1 {
				if mb < len(blocks) {
					y = blocks[mb]
				}
			} else {
				base := mb * 3
				if base+2 < len(blocks) {
					y, cb, cr = blocks[base], blocks[base+1], blocks[base+2]
				}
			}
			for by := 0; by < 8; by++ {
				for bx := 0; bx < 8; bx++ {
					px := mb*8 + bx
					py := row*8 + by
					if px >= width || py >= height {
						continue
					}
					o := (py*width + px) * 4
					yv := levelShift(y[by*8+bx])
					if planesPerBlock == 1 {
						out[o], out[o+1], out[o+2], out[o+3] = byte(yv), byte(yv), byte(yv), 255
						continue
					}
					cbv := levelShift(cb[by*8+bx])
					crv := levelShift(cr[by*8+bx])
					r := clamp255(float64(yv) + 1.402*float64(crv) - 178.956)
					g := clamp255(float64(yv) - 0.34414*float64(cbv) - 0.71414*float64(crv) + 135.95984)
					b := clamp255(float64(yv) + 1.772*float64(cbv) - 226.316)
					out[o], out[o+1], out[o+2], out[o+3] = r, g, b, 255
				}
			}
		}
	}
	return out
}

// levelShift maps an IDCT output sample to an unsigned 8-bit value:
// round, divide by 8, shift up by 128, and clamp.
func levelShift(f float64) byte {
	a := 128 + (int32(math.Round(f)) >> 3)
	return clampInt(a)
}

func clampInt(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func clamp255(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// applyAlpha decodes the trailing alpha RLE stream (present when
// buf begins with a u32 marker equal to 1) into the 4th byte of every
// RGBA pixel.
func applyAlpha(buf []byte, rgba []byte, width, height int) {
	if len(buf) < 4 {
		return
	}
	marker, _ := bitio.Read32(buf)
	if marker != 1 {
		return
	}
	buf = buf[4:]

	pos := 0
	ctrl := uint32(1)
	nextBit := func() (uint32, bool) {
		if ctrl == 1 {
			if pos >= len(buf) {
				return 0, false
			}
			ctrl = uint32(buf[pos]) | 0x100
			pos++
		}
		bit := ctrl & 1
		ctrl >>= 1
		return bit, true
	}

	total := width * height
	cur := 0
	for cur < total {
		bit, ok := nextBit()
		if !ok {
			break
		}
		if bit == 0 {
			if pos >= len(buf) {
				break
			}
			rgba[cur*4+3] = buf[pos]
			pos++
			cur++
			continue
		}
		if pos+2 > len(buf) {
			break
		}
		v := uint32(buf[pos]) | uint32(buf[pos+1])<<8
		pos += 2
		dx := int(bitio.SignExtend(v&0x3F, 6))
		dy := int((v >> 6) & 7)
		if dy != 0 {
			dy -= 8
		}
		count := int((v>>9)&0x7F) + 3

		delta := dx + dy*width
		src := cur + delta
		if src < 0 || src >= cur {
			break
		}
		for i := 0; i < count && cur < total; i++ {
			rgba[cur*4+3] = rgba[src*4+3]
			cur++
			src++
		}
	}
}
