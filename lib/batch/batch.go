// Copyright 2025 The Extremadiff Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package batch runs the extrema accumulation and the differential encode or
// decode over a batch of image files.
//
// Images are processed concurrently, each with its own toggle state, all
// sharing the same read-only extrema buffers.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/extremadiff/extremadiff/lib/differential"
	"github.com/extremadiff/extremadiff/lib/extrema"
	"github.com/extremadiff/extremadiff/lib/imageio"
)

var (
	ErrNoInputs          = errors.New("batch: no input images")
	ErrBadMode           = errors.New("batch: bad mode")
	ErrDimensionMismatch = errors.New("batch: image dimensions differ from the extrema")
	ErrSomeFailed        = errors.New("batch: some images failed")
	ErrDuplicateOutput   = errors.New("batch: two inputs map to the same output file")
)

// Mode selects between encoding and decoding.
type Mode uint8

const (
	ModeEncode = Mode(1)
	ModeDecode = Mode(2)
)

// ParseMode accepts "e", "encode", "d" and "decode".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "e", "encode":
		return ModeEncode, nil
	case "d", "decode":
		return ModeDecode, nil
	}
	return 0, ErrBadMode
}

func (m Mode) String() string {
	switch m {
	case ModeEncode:
		return "encode"
	case ModeDecode:
		return "decode"
	}
	return "invalid"
}

const (
	DefaultMinPath         = "min.png"
	DefaultMaxPath         = "max.png"
	DefaultEncodeOutputDir = "encoded"
	DefaultDecodeOutputDir = "decoded"
)

// Config configures an Encode or Decode run.
type Config struct {
	// Inputs are image file paths, typically from ExpandInputs.
	Inputs []string

	// MinPath and MaxPath locate the extrema images. Encode writes them
	// unless LoadExtrema is set. Decode always reads them.
	MinPath string
	MaxPath string

	// LoadExtrema makes Encode use the existing images at MinPath and
	// MaxPath instead of accumulating them from Inputs.
	LoadExtrema bool

	// OutputDir receives one transformed image per input. It is created if
	// missing.
	OutputDir string

	// Format is the file format of transformed images.
	Format imageio.Format

	// Jobs bounds how many images are processed at once. Zero or negative
	// means GOMAXPROCS.
	Jobs int

	// Strict rejects images whose width and height differ from the extrema,
	// instead of addressing them by linear pixel index.
	Strict bool

	// KeepGoing records per-image failures in the Report and carries on,
	// instead of stopping the run at the first failure.
	KeepGoing bool
}

// DefaultConfig returns the Config defaults for mode m.
func DefaultConfig(m Mode) Config {
	c := Config{
		MinPath: DefaultMinPath,
		MaxPath: DefaultMaxPath,
		Format:  imageio.FormatPNG,
	}
	if m == ModeDecode {
		c.OutputDir = DefaultDecodeOutputDir
	} else {
		c.OutputDir = DefaultEncodeOutputDir
	}
	return c
}

func (c *Config) jobs() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

// Result is the outcome for one input image.
type Result struct {
	Source string
	Output string
	// Clamped counts decoded channel values that saturated at 0 or 255.
	Clamped int
	Err     error
}

// Report lists one Result per input, in input order.
type Report struct {
	Results []Result
}

// Failed returns the Results whose Err is non-nil.
func (r *Report) Failed() []Result {
	ret := []Result(nil)
	for _, res := range r.Results {
		if res.Err != nil {
			ret = append(ret, res)
		}
	}
	return ret
}

// ExpandInputs replaces every directory in paths with the regular files
// beneath it, recursively, in lexical order. Other paths are kept as is.
func ExpandInputs(paths []string) ([]string, error) {
	ret := []string(nil)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		} else if !info.IsDir() {
			ret = append(ret, p)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			} else if d.Type().IsRegular() {
				ret = append(ret, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// extremaSet is the min and max buffers of a batch with their dimensions.
type extremaSet struct {
	min    extrema.Buffer
	max    extrema.Buffer
	width  int
	height int
}

// fits checks that an image of the given dimensions can be transformed
// against e.
func (e *extremaSet) fits(strict bool, width int, height int) error {
	if strict {
		if (width != e.width) || (height != e.height) {
			return fmt.Errorf("%w: %d×%d versus %d×%d",
				ErrDimensionMismatch, width, height, e.width, e.height)
		}
	} else if width*height > len(e.min) {
		return differential.ErrOutOfBounds
	}
	return nil
}

// accumulate computes the extrema of cfg.Inputs and saves them to
// cfg.MinPath and cfg.MaxPath.
func accumulate(ctx context.Context, cfg *Config) (*extremaSet, error) {
	acc := extrema.NewAccumulator()

	// Fix the target dimensions from the headers first, in input order, so
	// that the concurrent pass below cannot change which of several equally
	// large images wins.
	first := image.Config{}
	for i, path := range cfg.Inputs {
		c, err := imageio.OpenConfig(path)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			first = c
		} else if cfg.Strict && ((c.Width != first.Width) || (c.Height != first.Height)) {
			return nil, fmt.Errorf("%s: %w: %d×%d versus %d×%d", path,
				ErrDimensionMismatch, c.Width, c.Height, first.Width, first.Height)
		}
		acc.Reserve(c.Width, c.Height)
	}

	mu := sync.Mutex{}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.jobs())
	for _, path := range cfg.Inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := imageio.Open(path)
			if err != nil {
				return err
			}
			b := m.Bounds()
			pix := extrema.Flatten(m)

			mu.Lock()
			defer mu.Unlock()
			acc.Add(pix, b.Dx(), b.Dy())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lo, hi, width, height := acc.Extrema()
	glog.V(2).Infof("extrema dimensions: %d×%d", width, height)
	e := &extremaSet{min: lo, max: hi, width: width, height: height}
	if err := e.save(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *extremaSet) save(cfg *Config) error {
	for _, x := range [2]struct {
		path string
		buf  extrema.Buffer
	}{
		{cfg.MinPath, e.min},
		{cfg.MaxPath, e.max},
	} {
		m, err := x.buf.Image(e.width, e.height)
		if err != nil {
			return fmt.Errorf("%s: %w", x.path, err)
		}
		if dir := filepath.Dir(x.path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
		if err := imageio.Save(x.path, m, imageio.FormatFromName(x.path)); err != nil {
			return err
		}
		glog.Infof("saved %s", x.path)
	}
	return nil
}

// loadExtrema reads the extrema images at cfg.MinPath and cfg.MaxPath.
func loadExtrema(cfg *Config) (*extremaSet, error) {
	minImage, err := imageio.Open(cfg.MinPath)
	if err != nil {
		return nil, err
	}
	maxImage, err := imageio.Open(cfg.MaxPath)
	if err != nil {
		return nil, err
	}

	b := minImage.Bounds()
	if b.Size() != maxImage.Bounds().Size() {
		return nil, fmt.Errorf("%s, %s: %w", cfg.MinPath, cfg.MaxPath, extrema.ErrLengthMismatch)
	}
	e := &extremaSet{
		min:    extrema.FromImage(minImage),
		max:    extrema.FromImage(maxImage),
		width:  b.Dx(),
		height: b.Dy(),
	}
	if err := extrema.Validate(e.min, e.max); err != nil {
		return nil, fmt.Errorf("%s, %s: %w", cfg.MinPath, cfg.MaxPath, err)
	}
	glog.V(2).Infof("loaded extrema: %d×%d", e.width, e.height)
	return e, nil
}

// Encode transforms every image in cfg.Inputs into cfg.OutputDir.
//
// Unless cfg.LoadExtrema is set, the extrema are first accumulated over
// cfg.Inputs and saved.
func Encode(ctx context.Context, cfg Config) (*Report, error) {
	if err := checkInputs(&cfg); err != nil {
		return nil, err
	}

	e := (*extremaSet)(nil)
	err := error(nil)
	if cfg.LoadExtrema {
		e, err = loadExtrema(&cfg)
	} else {
		e, err = accumulate(ctx, &cfg)
	}
	if err != nil {
		return nil, err
	}

	glog.Infof("encoding %d images into %s", len(cfg.Inputs), cfg.OutputDir)
	return run(ctx, &cfg, e, ModeEncode)
}

// Decode reverses Encode for every image in cfg.Inputs, writing into
// cfg.OutputDir.
func Decode(ctx context.Context, cfg Config) (*Report, error) {
	if err := checkInputs(&cfg); err != nil {
		return nil, err
	}

	e, err := loadExtrema(&cfg)
	if err != nil {
		return nil, err
	}

	glog.Infof("decoding %d images into %s", len(cfg.Inputs), cfg.OutputDir)
	return run(ctx, &cfg, e, ModeDecode)
}

// checkInputs rejects an empty batch and inputs that would overwrite each
// other's output file.
func checkInputs(cfg *Config) error {
	if len(cfg.Inputs) == 0 {
		return ErrNoInputs
	}
	seen := map[string]string{}
	for _, path := range cfg.Inputs {
		name := imageio.OutputName(path, cfg.Format)
		if other, ok := seen[name]; ok {
			return fmt.Errorf("%s, %s: %w", other, path, ErrDuplicateOutput)
		}
		seen[name] = path
	}
	return nil
}

func run(ctx context.Context, cfg *Config, e *extremaSet, mode Mode) (*Report, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, err
	}

	report := &Report{Results: make([]Result, len(cfg.Inputs))}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.jobs())
	for i, path := range cfg.Inputs {
		res := &report.Results[i]
		res.Source = path
		g.Go(func() error {
			if ctx.Err() != nil {
				// An earlier image failed. This one never starts.
				return nil
			}
			res.Err = transform(cfg, e, mode, res)
			if res.Err != nil {
				res.Err = fmt.Errorf("%s: %w", path, res.Err)
				if cfg.KeepGoing {
					glog.Errorf("%v", res.Err)
					return nil
				}
			}
			return res.Err
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if len(report.Failed()) > 0 {
		return report, ErrSomeFailed
	}
	return report, nil
}

// transform encodes or decodes the single image res.Source.
func transform(cfg *Config, e *extremaSet, mode Mode, res *Result) error {
	glog.V(1).Infof("%s: %v", res.Source, mode)

	m, err := imageio.Open(res.Source)
	if err != nil {
		return err
	}
	b := m.Bounds()
	if err := e.fits(cfg.Strict, b.Dx(), b.Dy()); err != nil {
		return err
	}

	src := extrema.Flatten(m)
	dst := []extrema.Pixel(nil)
	if mode == ModeEncode {
		dst, err = differential.Encode(e.min, e.max, src)
	} else {
		stats := differential.Stats{}
		dst, stats, err = differential.Decode(e.min, e.max, src)
		res.Clamped = stats.Clamped
		if stats.Clamped > 0 {
			glog.V(1).Infof("%s: %d values saturated; the extrema may not match this image",
				res.Source, stats.Clamped)
		}
	}
	if err != nil {
		return err
	}

	out, err := extrema.Buffer(dst).Image(b.Dx(), b.Dy())
	if err != nil {
		return err
	}
	res.Output = filepath.Join(cfg.OutputDir, imageio.OutputName(res.Source, cfg.Format))
	if err := imageio.Save(res.Output, out, cfg.Format); err != nil {
		res.Output = ""
		return err
	}
	glog.V(1).Infof("saved %s", res.Output)
	return nil
}
