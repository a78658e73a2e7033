// Copyright 2024 The buriko-arc authors. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command buriko unpacks and packs BURIKO/ETHORNELL ARC archives.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"

	"cloudeng.io/cmdutil"
	"cloudeng.io/cmdutil/subcmd"
	"github.com/schollz/progressbar/v2"
	"golang.org/x/term"

	"github.com/buriko-arc/buriko"
	"github.com/buriko-arc/buriko/internal/archive"
)

type unpackFlags struct {
	Concurrency int  `subcmd:"concurrency,4,'concurrency for entry decoding'"`
	Verbose     bool `subcmd:"verbose,false,verbose per-entry trace information"`
	ProgressBar bool `subcmd:"progress,true,display a progress bar"`
}

type packFlags struct {
	Version int `subcmd:"version,2,'archive directory version to write, 1 or 2'"`
}

var cmdSet *subcmd.CommandSet

func init() {
	defaultConcurrency := map[string]interface{}{
		"concurrency": runtime.GOMAXPROCS(-1),
	}

	unpackCmd := subcmd.NewCommand("unpack",
		subcmd.MustRegisterFlagStruct(&unpackFlags{}, defaultConcurrency, nil),
		unpack, subcmd.AtLeastNArguments(1))
	unpackCmd.Document(`unpack <arc_file> [output_path]: decode every entry of an ARC archive to output_path, which defaults to arc_file with its extension stripped.`)

	packCmd := subcmd.NewCommand("pack",
		subcmd.MustRegisterFlagStruct(&packFlags{}, nil, nil),
		pack, subcmd.AtLeastNArguments(1))
	packCmd.Document(`pack <input_dir> [output_file]: archive every OGG file directly inside input_dir, writing output_file which defaults to input_dir.arc.`)

	cmdSet = subcmd.NewCommandSet(unpackCmd, packCmd)
	cmdSet.Document(`unpack and pack BURIKO/ETHORNELL ARC archives.`)
}

func main() {
	cmdSet.MustDispatch(context.Background())
}

func unpack(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*unpackFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	archivePath := args[0]
	outputDir := buriko.DefaultOutputDir(archivePath)
	if len(args) > 1 {
		outputDir = args[1]
	}

	opts := []buriko.UnpackOption{
		buriko.Concurrency(cl.Concurrency),
		buriko.Verbose(cl.Verbose),
	}

	dir, err := archive.Open(archivePath)
	if err != nil {
		return err
	}
	total := dir.Count()

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	var progressCh chan buriko.Progress
	if cl.ProgressBar && isTTY {
		progressCh = make(chan buriko.Progress, cl.Concurrency)
		opts = append(opts, buriko.SendProgress(progressCh))
		done := make(chan struct{})
		go func() {
			defer close(done)
			bar := progressbar.NewOptions(total, progressbar.OptionSetPredictTime(true))
			for range progressCh {
				bar.Add(1)
			}
			fmt.Println()
		}()
		defer func() {
			close(progressCh)
			<-done
		}()
	}

	return buriko.Unpack(ctx, archivePath, outputDir, opts...)
}

func pack(ctx context.Context, values interface{}, args []string) error {
	cl := values.(*packFlags)
	inputDir := args[0]
	outputFile := buriko.DefaultPackOutput(inputDir)
	if len(args) > 1 {
		outputFile = args[1]
	}

	version := archive.V2
	if cl.Version == 1 {
		version = archive.V1
	} else if cl.Version != 2 {
		return fmt.Errorf("buriko: unsupported archive version %d, want 1 or 2", cl.Version)
	}

	if err := buriko.Pack(inputDir, outputFile, version); err != nil {
		return err
	}
	log.Printf("buriko: wrote %s", outputFile)
	return nil
}
