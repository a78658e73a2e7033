// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeTempArchive(t *testing.T, entries []WriteEntry, version Version) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.arc")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := Write(f, entries, version); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return path
}

func testRoundTrip(t *testing.T, version Version) {
	entries := []WriteEntry{
		{Name: "foo.bin", Data: []byte("hello archive")},
		{Name: "bar.bin", Data: []byte("a second payload, longer than the first")},
		{Name: "empty.bin", Data: nil},
	}
	path := writeTempArchive(t, entries, version)

	dir, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if dir.Version() != version {
		t.Fatalf("Version() = %v, want %v", dir.Version(), version)
	}
	if dir.Count() != len(entries) {
		t.Fatalf("Count() = %d, want %d", dir.Count(), len(entries))
	}
	for i, want := range entries {
		name, err := dir.Name(i)
		if err != nil {
			t.Fatalf("Name(%d): %v", i, err)
		}
		if name != want.Name {
			t.Errorf("Name(%d) = %q, want %q", i, name, want.Name)
		}
		size, err := dir.Size(i)
		if err != nil {
			t.Fatalf("Size(%d): %v", i, err)
		}
		if size != uint32(len(want.Data)) {
			t.Errorf("Size(%d) = %d, want %d", i, size, len(want.Data))
		}
		data, err := dir.ReadAt(i)
		if err != nil {
			t.Fatalf("ReadAt(%d): %v", i, err)
		}
		if !bytes.Equal(data, want.Data) {
			t.Errorf("ReadAt(%d) = %q, want %q", i, data, want.Data)
		}
	}
}

func TestRoundTripV1(t *testing.T) { testRoundTrip(t, V1) }
func TestRoundTripV2(t *testing.T) { testRoundTrip(t, V2) }

func TestOpenRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.arc")
	if err := os.WriteFile(path, []byte("not an archive at all"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

func TestIndexOutOfBounds(t *testing.T) {
	path := writeTempArchive(t, []WriteEntry{{Name: "a", Data: []byte("x")}}, V1)
	dir, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := dir.Name(5); err == nil {
		t.Fatalf("expected IndexError")
	}
	if _, err := dir.ReadAt(-1); err == nil {
		t.Fatalf("expected IndexError")
	}
}

func TestNameScrubbing(t *testing.T) {
	// Write a V1 archive by hand with a control byte embedded in the name
	// field, then confirm Open scrubs it to '_' rather than rejecting it.
	dir := t.TempDir()
	path := filepath.Join(dir, "scrub.arc")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.WriteString(magicV1)
	f.Write([]byte{1, 0, 0, 0})
	name := [nameFieldLen]byte{'o', 'k', 0x01, 0xFF, 0}
	f.Write(name[:])
	f.Write([]byte{0, 0, 0, 0}) // offset
	f.Write([]byte{3, 0, 0, 0}) // size
	f.Write(make([]byte, 8))    // pad
	f.WriteString("xyz")
	f.Close()

	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := d.Name(0)
	if err != nil {
		t.Fatalf("Name: %v", err)
	}
	if got != "ok__" {
		t.Fatalf("Name() = %q, want %q", got, "ok__")
	}
}
