// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package buriko

import (
	"container/heap"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"cloudeng.io/errors"

	"github.com/buriko-arc/buriko/internal/archive"
)

// Progress reports the outcome of unpacking a single entry, delivered
// strictly in directory order regardless of how many workers decoded
// entries out of order.
type Progress struct {
	Index int
	Name  string
	Path  string
	Err   error
}

type unpackOpts struct {
	concurrency int
	verbose     bool
	progressCh  chan<- Progress
}

// UnpackOption configures Unpack.
type UnpackOption func(*unpackOpts)

// Concurrency sets the number of entries decoded in parallel. It
// defaults to GOMAXPROCS.
func Concurrency(n int) UnpackOption {
	return func(o *unpackOpts) { o.concurrency = n }
}

// Verbose enables per-entry trace logging.
func Verbose(v bool) UnpackOption {
	return func(o *unpackOpts) { o.verbose = v }
}

// SendProgress requests a Progress report for every entry, sent to ch
// in directory order.
func SendProgress(ch chan<- Progress) UnpackOption {
	return func(o *unpackOpts) { o.progressCh = ch }
}

// Unpack decodes every entry of the archive at archivePath into
// outputDir, which is created if absent. Archive open failure is
// fatal and returned immediately; a decode or write failure on one
// entry is reported (via the optional progress channel, and always
// logged) and does not prevent the remaining entries from being
// processed. The returned error aggregates every entry failure, but a
// non-nil return does not mean no output was produced.
func Unpack(ctx context.Context, archivePath, outputDir string, opts ...UnpackOption) error {
	o := unpackOpts{concurrency: runtime.GOMAXPROCS(-1)}
	for _, fn := range opts {
		fn(&o)
	}

	dir, err := archive.Open(archivePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	n := dir.Count()
	workCh := make(chan int, o.concurrency)
	doneCh := make(chan *entryResult, o.concurrency)

	var workWg sync.WaitGroup
	workWg.Add(o.concurrency)
	for w := 0; w < o.concurrency; w++ {
		go func() {
			defer workWg.Done()
			for idx := range workCh {
				doneCh <- decodeEntry(dir, outputDir, idx, o.verbose)
			}
		}()
	}

	go func() {
		defer close(workCh)
		for i := 0; i < n; i++ {
			select {
			case workCh <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		workWg.Wait()
		close(doneCh)
	}()

	errs := &errors.M{}
	order := assembleInOrder(doneCh, func(r *entryResult) {
		if o.progressCh != nil {
			o.progressCh <- Progress{Index: r.index, Name: r.name, Path: r.path, Err: r.err}
		}
		if r.err != nil {
			errs.Append(&EntryError{Index: r.index, Name: r.name, Err: r.err})
			log.Printf("buriko: entry %d (%s): %v", r.index, r.name, r.err)
		}
	})
	_ = order

	return errs.Err()
}

// entryResult is one decoded (or failed) archive entry, keyed by its
// directory index for in-order reassembly.
type entryResult struct {
	index int
	name  string
	path  string
	err   error
}

// assembleInOrder drains ch, a stream of results that may complete out
// of order, and invokes emit on each in strictly increasing index
// order. It returns the count emitted.
func assembleInOrder(ch <-chan *entryResult, emit func(*entryResult)) int {
	h := &resultHeap{}
	heap.Init(h)
	expected := 0
	count := 0
	for r := range ch {
		heap.Push(h, r)
		for h.Len() > 0 && (*h)[0].index == expected {
			next := heap.Pop(h).(*entryResult)
			emit(next)
			expected++
			count++
		}
	}
	for h.Len() > 0 {
		emit(heap.Pop(h).(*entryResult))
		count++
	}
	return count
}

type resultHeap []*entryResult

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].index < h[j].index }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(*entryResult)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func decodeEntry(dir *archive.Directory, outputDir string, idx int, verbose bool) *entryResult {
	name, err := dir.Name(idx)
	if err != nil {
		return &entryResult{index: idx, err: err}
	}
	r := &entryResult{index: idx, name: name}
	if verbose {
		log.Printf("buriko: decoding entry %d (%s)", idx, name)
	}

	raw, err := dir.ReadAt(idx)
	if err != nil {
		r.err = err
		return r
	}

	out, err := classify(raw)
	if err != nil {
		r.err = err
		return r
	}

	base := filepath.Join(outputDir, name)
	switch out.kind {
	case kindOGG:
		r.path = base + ".ogg"
		r.err = os.WriteFile(r.path, out.raw, 0o644)
	case kindPNG:
		r.path = base + ".png"
		if out.pixels != nil {
			r.err = writePNG(r.path, int(out.pixels.Width), int(out.pixels.Height), out.pixels.RGBA)
		} else {
			rgba := packRawBitmap(out.bitmap)
			r.err = writePNG(r.path, out.bitmap.width, out.bitmap.height, rgba)
		}
	default:
		r.path = base
		r.err = os.WriteFile(r.path, out.raw, 0o644)
	}
	return r
}

// DefaultOutputDir computes unpack's default output directory from an
// archive path: the path with its extension stripped.
func DefaultOutputDir(archivePath string) string {
	ext := filepath.Ext(archivePath)
	return archivePath[:len(archivePath)-len(ext)]
}

// DefaultPackOutput computes pack's default output archive path from
// an input directory: the directory name with ".arc" appended.
func DefaultPackOutput(inputDir string) string {
	return fmt.Sprintf("%s.arc", filepath.Clean(inputDir))
}
