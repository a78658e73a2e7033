// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package buriko

import "fmt"

// PngProcessError wraps a failure from the PNG writer used to
// materialize decoded images (CBG output and raw DSC bitmaps) on
// unpack.
type PngProcessError struct {
	Entry string
	Err   error
}

func (e *PngProcessError) Error() string {
	return fmt.Sprintf("buriko: png encode failed for entry %q: %v", e.Entry, e.Err)
}

func (e *PngProcessError) Unwrap() error { return e.Err }

// UnsupportedFileTypeError reports a packer input blob that is not a
// recognized OGG stream and therefore cannot be packed.
type UnsupportedFileTypeError struct {
	Path string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("buriko: %q is not a packable file type", e.Path)
}

// EntryError wraps any error encountered while decoding a single
// archive entry with the entry's index and name, so that a failure on
// one entry can be logged and the pipeline can advance to the next.
type EntryError struct {
	Index int
	Name  string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("buriko: entry %d (%q): %v", e.Index, e.Name, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }
