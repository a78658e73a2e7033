// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package ogg

import (
	"bytes"
	"testing"
)

// buildPage constructs a minimal, syntactically valid OGG page with
// no payload beyond what its segment table declares, carrying the
// given granule position.
func buildPage(granule uint64, segTable []byte) []byte {
	buf := make([]byte, 27+len(segTable))
	copy(buf[:4], pageCapture)
	buf[4] = 0 // version
	buf[5] = 0 // header type
	for i := 0; i < 8; i++ {
		buf[6+i] = byte(granule >> (8 * i))
	}
	// bytes 14..26: serial, page seq, checksum — unused by SampleCount.
	buf[26] = byte(len(segTable))
	copy(buf[27:], segTable)
	total := 0
	for _, s := range segTable {
		total += int(s)
	}
	buf = append(buf, make([]byte, total)...)
	return buf
}

func TestSampleCountLastPageGranule(t *testing.T) {
	var data []byte
	data = append(data, buildPage(0, []byte{10})...)
	data = append(data, buildPage(4096, []byte{20})...)
	data = append(data, buildPage(9000, []byte{5})...)

	got, err := SampleCount(data)
	if err != nil {
		t.Fatalf("SampleCount: %v", err)
	}
	if got != 9000 {
		t.Fatalf("got %d, want 9000", got)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	payload := buildPage(12345, []byte{3})
	withHeader, err := AddHeader(payload)
	if err != nil {
		t.Fatalf("AddHeader: %v", err)
	}
	if !IsHeadered(withHeader) {
		t.Fatalf("expected IsHeadered to recognize its own output")
	}
	got, err := RemoveHeader(withHeader)
	if err != nil {
		t.Fatalf("RemoveHeader: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch")
	}
}

func TestIsRaw(t *testing.T) {
	payload := buildPage(1, []byte{1})
	if !IsRaw(payload) {
		t.Fatalf("expected IsRaw to match bare OGG data")
	}
	if IsRaw([]byte("not ogg")) {
		t.Fatalf("expected no match")
	}
}
