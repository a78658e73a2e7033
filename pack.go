// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package buriko

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/buriko-arc/buriko/internal/archive"
	"github.com/buriko-arc/buriko/internal/ogg"
)

// Pack archives every regular file directly inside inputDir into a
// single ARC file at outputPath, at the given directory version. Only
// OGG-detectable files are packable; any other input type makes Pack
// fail immediately with UnsupportedFileTypeError, before anything is
// written.
func Pack(inputDir, outputPath string, version archive.Version) error {
	dirEntries, err := os.ReadDir(inputDir)
	if err != nil {
		return err
	}

	var names []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)

	entries := make([]archive.WriteEntry, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(inputDir, name))
		if err != nil {
			return err
		}

		var packed []byte
		switch {
		case ogg.IsRaw(data):
			packed, err = ogg.AddHeader(data)
			if err != nil {
				return err
			}
		case ogg.IsHeadered(data):
			packed = data
		default:
			return &UnsupportedFileTypeError{Path: filepath.Join(inputDir, name)}
		}

		entries = append(entries, archive.WriteEntry{
			Name: strings.TrimSuffix(name, filepath.Ext(name)),
			Data: packed,
		})
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := archive.Write(f, entries, version); err != nil {
		return err
	}
	return f.Close()
}
