// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package buriko

import (
	"image"
	"image/png"
	"os"
)

// writePNG encodes row-major RGBA8 pixel data to path. Failures of any
// kind surface as a single PngProcessError.
func writePNG(path string, width, height int, rgba []byte) error {
	img := &image.NRGBA{
		Pix:    rgba,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	f, err := os.Create(path)
	if err != nil {
		return &PngProcessError{Entry: path, Err: err}
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return &PngProcessError{Entry: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &PngProcessError{Entry: path, Err: err}
	}
	return nil
}

// packRawBitmap expands an uncompressed DSC bitmap into interleaved
// RGBA8. Unlike the CBG path, these bitmaps already carry their
// channels in RGB order.
func packRawBitmap(b *rawBitmap) []byte {
	out := make([]byte, b.width*b.height*4)
	switch b.bpp {
	case 32:
		for i := 0; i*4+3 < len(b.pixels) && i < b.width*b.height; i++ {
			copy(out[i*4:i*4+4], b.pixels[i*4:i*4+4])
		}
	case 24:
		for i := 0; i*3+2 < len(b.pixels) && i < b.width*b.height; i++ {
			src := b.pixels[i*3 : i*3+3]
			out[i*4+0] = src[0]
			out[i*4+1] = src[1]
			out[i*4+2] = src[2]
			out[i*4+3] = 255
		}
	case 8:
		for i := 0; i < len(b.pixels) && i < b.width*b.height; i++ {
			v := b.pixels[i]
			out[i*4+0] = v
			out[i*4+1] = v
			out[i*4+2] = v
			out[i*4+3] = 255
		}
	}
	return out
}
