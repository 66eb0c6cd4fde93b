// Copyright 2025 The Extremadiff Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// extremadiff rewrites a batch of images as per-channel distances to the
// batch's minimum and maximum images, and back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/extremadiff/extremadiff/lib/batch"
	"github.com/extremadiff/extremadiff/lib/imageio"
)

const usageStr = `extremadiff encodes and decodes a batch of images against the batch's
per-pixel minimum and maximum images.

Usage: choose one of

    extremadiff -encode [flags] paths...
    extremadiff -decode [flags] paths...
    extremadiff e|encode|d|decode [flags] paths...

Each path is an image file or a directory, which is searched recursively.

Encoding first computes min.png and max.png over all inputs, unless both
-min and -max name existing extrema images to use instead. Decoding reads
the extrema images, which must be the ones used when encoding.

Flags (before the paths, and after the e|encode|d|decode word if used):

    -min=path, -max=path    extrema images (default min.png, max.png)
    -o=dir                  output directory (default encoded or decoded)
    -format=f               png (default), tiff, nie or nie.zst
    -j=n                    images processed at once (default GOMAXPROCS)
    -strict                 reject images whose size differs from the extrema
    -keep-going             report failed images and carry on
    -v=n                    log verbosity, up to 3

Every output format is lossless. Transformed images must not be re-saved
in a lossy format or they can no longer be decoded.
`

var (
	ErrBadExtremaPair = errors.New("main: -min and -max must be given together")
	ErrMissingMode    = errors.New("main: must specify exactly one of -decode, -encode or -help")
	ErrNoPaths        = errors.New("main: no input paths given")
)

type options struct {
	decode    bool
	encode    bool
	minPath   string
	maxPath   string
	outputDir string
	format    string
	jobs      int
	strict    bool
	keepGoing bool
}

func (o *options) register(fs *flag.FlagSet) {
	fs.BoolVar(&o.decode, "decode", false, "whether to decode the input")
	fs.BoolVar(&o.encode, "encode", false, "whether to encode the input")
	fs.StringVar(&o.minPath, "min", "", "min extrema image")
	fs.StringVar(&o.maxPath, "max", "", "max extrema image")
	fs.StringVar(&o.outputDir, "o", "", "output directory")
	fs.StringVar(&o.format, "format", "", "output format")
	fs.IntVar(&o.jobs, "j", 0, "images processed at once")
	fs.BoolVar(&o.strict, "strict", false, "reject images whose size differs from the extrema")
	fs.BoolVar(&o.keepGoing, "keep-going", false, "report failed images and carry on")
}

// config turns the flags and arguments already parsed by fs into a run
// configuration. Flags after a positional mode word are parsed too.
// Directories among the remaining arguments are expanded.
func (o *options) config(fs *flag.FlagSet) (batch.Mode, batch.Config, error) {
	args := fs.Args()
	mode := batch.Mode(0)
	switch {
	case o.decode && !o.encode:
		mode = batch.ModeDecode
	case !o.decode && o.encode:
		mode = batch.ModeEncode
	case !o.decode && !o.encode && (len(args) > 0):
		m, err := batch.ParseMode(args[0])
		if err != nil {
			return 0, batch.Config{}, fmt.Errorf("main: unrecognized mode %q; use e, encode, d or decode", args[0])
		}
		if err := fs.Parse(args[1:]); err != nil {
			return 0, batch.Config{}, err
		}
		mode, args = m, fs.Args()
		if o.decode || o.encode {
			return 0, batch.Config{}, ErrMissingMode
		}
	default:
		return 0, batch.Config{}, ErrMissingMode
	}

	if len(args) == 0 {
		return 0, batch.Config{}, ErrNoPaths
	}

	cfg := batch.DefaultConfig(mode)
	if (o.minPath != "") != (o.maxPath != "") {
		return 0, batch.Config{}, ErrBadExtremaPair
	} else if o.minPath != "" {
		cfg.MinPath, cfg.MaxPath = o.minPath, o.maxPath
		cfg.LoadExtrema = true
	}
	if o.outputDir != "" {
		cfg.OutputDir = o.outputDir
	}
	f, err := imageio.ParseFormat(o.format)
	if err != nil {
		return 0, batch.Config{}, fmt.Errorf("main: bad -format flag %q", o.format)
	}
	cfg.Format = f
	cfg.Jobs = o.jobs
	cfg.Strict = o.strict
	cfg.KeepGoing = o.keepGoing

	cfg.Inputs, err = batch.ExpandInputs(args)
	if err != nil {
		return 0, batch.Config{}, err
	}
	return mode, cfg, nil
}

func main() {
	if err := main1(); err != nil {
		glog.Flush()
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	glog.Flush()
}

func main1() error {
	// glog registers its own flags (-v, -log_dir, ...) on flag.CommandLine.
	flag.Set("logtostderr", "true")
	o := &options{}
	o.register(flag.CommandLine)
	flag.Usage = func() { os.Stderr.WriteString(usageStr) }
	flag.Parse()

	mode, cfg, err := o.config(flag.CommandLine)
	if err != nil {
		return err
	}
	glog.V(1).Infof("%v: %d files", mode, len(cfg.Inputs))

	report := (*batch.Report)(nil)
	if mode == batch.ModeEncode {
		report, err = batch.Encode(context.Background(), cfg)
	} else {
		report, err = batch.Decode(context.Background(), cfg)
	}
	if report != nil {
		printReport(os.Stdout, report)
	}
	return err
}

func printReport(w io.Writer, r *batch.Report) {
	for _, res := range r.Results {
		switch {
		case res.Err != nil:
			fmt.Fprintf(w, "%s: FAILED: %v\n", res.Source, res.Err)
		case res.Output == "":
			// Never started.
		case res.Clamped > 0:
			fmt.Fprintf(w, "%s -> %s (%d values saturated)\n", res.Source, res.Output, res.Clamped)
		default:
			fmt.Fprintf(w, "%s -> %s\n", res.Source, res.Output)
		}
	}
}
