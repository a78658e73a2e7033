// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cbg

import (
	"math"
	"testing"

	"github.com/buriko-arc/buriko/internal/bitio"
	"github.com/buriko-arc/buriko/internal/keystream"
)

func TestIsCBG(t *testing.T) {
	buf := make([]byte, 48)
	copy(buf, Magic)
	if !IsCBG(buf) {
		t.Fatalf("expected magic match")
	}
	if IsCBG([]byte("not a cbg file")) {
		t.Fatalf("expected no match")
	}
}

func TestBuildWeightedTreeLeavesReachable(t *testing.T) {
	weights := make([]uint32, 8)
	for i := range weights {
		weights[i] = uint32(i + 1)
	}
	nodes, root := buildWeightedTree(weights)

	var walk func(idx uint32, depth int)
	reached := map[uint32]bool{}
	walk = func(idx uint32, depth int) {
		if depth > 64 {
			t.Fatalf("tree walk did not terminate")
		}
		if !nodes[idx].hasChildren {
			reached[idx] = true
			return
		}
		walk(nodes[idx].left, depth+1)
		walk(nodes[idx].right, depth+1)
	}
	walk(root, 0)
	for i := range weights {
		if !reached[uint32(i)] {
			t.Errorf("symbol %d unreachable from root", i)
		}
	}
}

func TestExpandRLE(t *testing.T) {
	// A 2-byte literal run ("AB"), a 3-byte zero run, toggled.
	src := []byte{2, 'A', 'B', 3}
	dst := make([]byte, 5)
	expandRLE(src, dst)
	want := []byte{'A', 'B', 0, 0, 0}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("byte %d: got %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestUnpredict2D(t *testing.T) {
	// 2x2 single-component image: [[10,0],[0,0]] becomes predictable
	// once the top-left seed propagates right/down/diagonal.
	raw := []byte{10, 0, 0, 0}
	unpredict2D(raw, 2, 2, 1, 2)
	// (0,0): no neighbors, stays 10.
	// (1,0): left=10, avg=10 -> 0+10=10.
	// (0,1): above=10, avg=10 -> 0+10=10.
	// (1,1): left=10 (from (0,1) now 10), above=10 (from (1,0) now 10), avg=(10+10)/2=10 -> 0+10=10.
	for i, want := range []byte{10, 10, 10, 10} {
		if raw[i] != want {
			t.Errorf("pixel %d: got %d, want %d", i, raw[i], want)
		}
	}
}

func TestPackRGBAGray(t *testing.T) {
	out := packRGBA([]byte{42}, 1, 1, 8)
	want := []byte{42, 42, 42, 255}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("byte %d: got %d, want %d", i, out[i], want[i])
		}
	}
}

func TestExtendSigned(t *testing.T) {
	if got := extendSigned(0, 0); got != 0 {
		t.Errorf("extendSigned(0,0) = %d, want 0", got)
	}
	if got := extendSigned(0, 3); got != -7 {
		t.Errorf("extendSigned(0,3) = %d, want -7", got)
	}
	if got := extendSigned(7, 3); got != 7 {
		t.Errorf("extendSigned(7,3) = %d, want 7", got)
	}
	if got := extendSigned(3, 3); got != -4 {
		t.Errorf("extendSigned(3,3) = %d, want -4", got)
	}
	if got := extendSigned(4, 3); got != 4 {
		t.Errorf("extendSigned(4,3) = %d, want 4", got)
	}
}

func TestIDCTFlatDC(t *testing.T) {
	var block [64]float64
	block[0] = 5
	idct8x8(&block)
	for i, v := range block {
		if math.Abs(v-5) > 1e-9 {
			t.Errorf("sample %d: got %v, want 5", i, v)
		}
	}
}

// buildV2Fixture constructs a minimal CBG v2 blob: a single 8x8
// grayscale block whose only coefficient is a flat DC value, no AC
// terms and no alpha stream. The DC tree gives symbols 0 and 4 one-bit
// codes; the AC tree gives symbols 0 and 1 one-bit codes so that a
// zero bit ends each block.
func buildV2Fixture(t *testing.T, key uint32) []byte {
	t.Helper()
	buf := make([]byte, 48)
	copy(buf, Magic)
	buf[16], buf[18] = 8, 8 // width, height
	buf[20] = 8             // bpp
	bitio.PutUint32(buf[36:], key)
	bitio.PutUint32(buf[40:], 0x80)
	buf[46] = 2 // version

	quant := make([]byte, 0x80)
	quant[0] = 4 // luma DC quantizer; aanScale[0] doubles it to 8
	var sum, xor byte
	for _, b := range quant {
		sum += b
		xor ^= b
	}
	buf[44], buf[45] = sum, xor
	hash := keystream.NewHash(key)
	for _, b := range quant {
		buf = append(buf, b+hash.Next())
	}

	var dcWeights [dcTreeSymbols]byte
	dcWeights[0], dcWeights[4] = 1, 1
	buf = append(buf, dcWeights[:]...)
	var acWeights [acTreeSymbols]byte
	acWeights[0], acWeights[1] = 1, 1
	buf = append(buf, acWeights[:]...)

	// Two block-row offsets, rebased by the decoder to be relative to
	// the first payload byte.
	buf = append(buf, 8, 0, 0, 0, 12, 0, 0, 0)
	// Payload: one pad byte, a 64-coefficient block size varint, the DC
	// bits (symbol 4, then the raw value 12), and an AC end-of-block.
	return append(buf, 0x00, 0x40, 0xE0, 0x00)
}

func TestDecryptV2FlatGray(t *testing.T) {
	px, err := Decrypt(buildV2Fixture(t, 0xBEEF))
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if px.Width != 8 || px.Height != 8 {
		t.Fatalf("dimensions = %dx%d, want 8x8", px.Width, px.Height)
	}
	// A DC accumulator of 12 against a dequantizer of 8 is a flat
	// spatial value of 96, level-shifted to 128 + 96/8 = 140.
	for i := 0; i < 64; i++ {
		r, g, b, a := px.RGBA[i*4], px.RGBA[i*4+1], px.RGBA[i*4+2], px.RGBA[i*4+3]
		if r != 140 || g != 140 || b != 140 || a != 255 {
			t.Fatalf("pixel %d = (%d,%d,%d,%d), want (140,140,140,255)", i, r, g, b, a)
		}
	}
}

func TestDecryptV2RejectsBadChecksum(t *testing.T) {
	buf := buildV2Fixture(t, 0xBEEF)
	buf[44] ^= 0xFF // corrupt the declared sum check
	if _, err := Decrypt(buf); err == nil {
		t.Fatalf("expected stage 1 checksum error")
	}
}

func TestApplyAlphaLiteralsAndBackreference(t *testing.T) {
	const width, height = 8, 1
	rgba := make([]byte, width*height*4)
	stream := []byte{
		1, 0, 0, 0, // marker
		0x08,             // control bits: three literals, a copy, two literals
		0x10, 0x20, 0x30, // literal alphas
		0x3D, 0x00, // dx=-3, dy=0, count=3
		0x40, 0x50, // trailing literals
	}
	applyAlpha(stream, rgba, width, height)
	want := []byte{0x10, 0x20, 0x30, 0x10, 0x20, 0x30, 0x40, 0x50}
	for i, w := range want {
		if got := rgba[i*4+3]; got != w {
			t.Fatalf("alpha %d = %#x, want %#x", i, got, w)
		}
	}
}

func TestApplyAlphaAbsentMarkerLeavesBufferAlone(t *testing.T) {
	rgba := make([]byte, 4*4)
	for i := 0; i < 4; i++ {
		rgba[i*4+3] = 0xFF
	}
	applyAlpha([]byte{2, 0, 0, 0, 0x00, 0x11}, rgba, 4, 1)
	for i := 0; i < 4; i++ {
		if rgba[i*4+3] != 0xFF {
			t.Fatalf("alpha %d overwritten despite absent marker", i)
		}
	}
}

func TestZigzagIsPermutation(t *testing.T) {
	var seen [64]bool
	for _, idx := range zigzag {
		if idx < 0 || idx >= 64 || seen[idx] {
			t.Fatalf("zigzag table is not a permutation of 0..63")
		}
		seen[idx] = true
	}
}
