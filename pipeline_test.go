// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package buriko

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/buriko-arc/buriko/internal/archive"
)

func TestUnpackRawEntries(t *testing.T) {
	arcPath := filepath.Join(t.TempDir(), "test.arc")
	f, err := os.Create(arcPath)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	entries := []archive.WriteEntry{
		{Name: "a", Data: []byte("first payload")},
		{Name: "b", Data: []byte("second payload, unrelated to any known codec")},
	}
	if err := archive.Write(f, entries, archive.V1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f.Close()

	outDir := t.TempDir()
	if err := Unpack(context.Background(), arcPath, outDir); err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	for _, e := range entries {
		got, err := os.ReadFile(filepath.Join(outDir, e.Name))
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", e.Name, err)
		}
		if string(got) != string(e.Data) {
			t.Fatalf("entry %s: got %q, want %q", e.Name, got, e.Data)
		}
	}
}

func TestAssembleInOrderEmitsByIndex(t *testing.T) {
	ch := make(chan *entryResult, 3)
	ch <- &entryResult{index: 2, name: "c"}
	ch <- &entryResult{index: 0, name: "a"}
	ch <- &entryResult{index: 1, name: "b"}
	close(ch)

	var order []string
	n := assembleInOrder(ch, func(r *entryResult) {
		order = append(order, r.name)
	})
	if n != 3 {
		t.Fatalf("emitted %d, want 3", n)
	}
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("order[%d] = %q, want %q", i, order[i], w)
		}
	}
}

func TestDefaultOutputDir(t *testing.T) {
	if got := DefaultOutputDir("/tmp/foo.arc"); got != "/tmp/foo" {
		t.Fatalf("got %q", got)
	}
}

func TestDefaultPackOutput(t *testing.T) {
	if got := DefaultPackOutput("mydir"); got != "mydir.arc" {
		t.Fatalf("got %q", got)
	}
}
