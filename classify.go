// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package buriko

import (
	"github.com/buriko-arc/buriko/internal/bse"
	"github.com/buriko-arc/buriko/internal/cbg"
	"github.com/buriko-arc/buriko/internal/dsc"
	"github.com/buriko-arc/buriko/internal/ogg"
)

// outputKind identifies how a decoded blob should be written to disk.
type outputKind int

const (
	kindRaw outputKind = iota
	kindPNG
	kindOGG
)

// decoded is the result of running a single archive entry's payload
// through the classify/decode pipeline.
type decoded struct {
	kind   outputKind
	raw    []byte
	pixels *cbg.Pixels
	bitmap *rawBitmap
}

// rawBitmap is a DSC output reclassified as an uncompressed bitmap,
// per the prelude heuristic in classify.
type rawBitmap struct {
	width, height int
	bpp           int
	pixels        []byte
}

const maxBitmapDim = 8096

// classify runs a single entry's raw blob through descrambling and
// format detection, in the fixed order BSE -> (DSC, CBG, OGG) -> raw.
func classify(raw []byte) (*decoded, error) {
	payload := raw
	if bse.IsBSE(raw) {
		descrambled, err := bse.Descramble(raw)
		if err != nil {
			return nil, err
		}
		payload = descrambled
	}

	switch {
	case dsc.IsDSC(payload):
		out, err := dsc.Decrypt(payload)
		if err != nil {
			return nil, err
		}
		return classifyDSCOutput(out), nil

	case cbg.IsCBG(payload):
		pixels, err := cbg.Decrypt(payload)
		if err != nil {
			return nil, err
		}
		return &decoded{kind: kindPNG, pixels: pixels}, nil

	case ogg.IsHeadered(payload):
		stream, err := ogg.RemoveHeader(payload)
		if err != nil {
			return nil, err
		}
		return &decoded{kind: kindOGG, raw: stream}, nil

	default:
		return &decoded{kind: kindRaw, raw: payload}, nil
	}
}

// classifyDSCOutput inspects a DSC decompression result for the raw
// bitmap prelude described by the pipeline driver: a 16-byte header
// whose first 5 bytes hold a plausible width/height/bpp and whose
// remaining 11 bytes are zero signals an uncompressed bitmap to be
// rendered as a PNG; anything else is written through verbatim.
func classifyDSCOutput(out []byte) *decoded {
	if len(out) < 16 {
		return &decoded{kind: kindRaw, raw: out}
	}
	width := int(out[0]) | int(out[1])<<8
	height := int(out[2]) | int(out[3])<<8
	bpp := int(out[4])
	if width == 0 || width > maxBitmapDim || height == 0 || height > maxBitmapDim {
		return &decoded{kind: kindRaw, raw: out}
	}
	switch bpp {
	case 8, 24, 32:
	default:
		return &decoded{kind: kindRaw, raw: out}
	}
	for _, b := range out[5:16] {
		if b != 0 {
			return &decoded{kind: kindRaw, raw: out}
		}
	}
	want := 16 + width*height*(bpp/8)
	if len(out) < want {
		return &decoded{kind: kindRaw, raw: out}
	}
	return &decoded{
		kind: kindPNG,
		bitmap: &rawBitmap{
			width:  width,
			height: height,
			bpp:    bpp,
			pixels: out[16:want],
		},
	}
}
