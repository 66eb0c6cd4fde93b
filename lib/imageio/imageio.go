// Copyright 2025 The Extremadiff Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package imageio opens and saves the image files of a batch.
//
// Every output Format is lossless. Extrema images and transformed images
// must survive a save and reload byte for byte, or every later decode is
// silently wrong.
package imageio

import (
	"bufio"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/image/tiff"

	"github.com/extremadiff/extremadiff/internal/nie"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	ErrBadFormat = errors.New("imageio: bad format")
)

// Format is a lossless output file format.
type Format uint8

const (
	FormatPNG     = Format(0)
	FormatTIFF    = Format(1)
	FormatNIE     = Format(2)
	FormatNIEZstd = Format(3)
)

var formatNames = [...]string{
	FormatPNG:     "png",
	FormatTIFF:    "tiff",
	FormatNIE:     "nie",
	FormatNIEZstd: "nie.zst",
}

// ParseFormat returns the Format named s. The empty string means FormatPNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "png":
		return FormatPNG, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "nie", "nie-bn4":
		return FormatNIE, nil
	case "nie.zst", "nie-zstd", "zst":
		return FormatNIEZstd, nil
	}
	return 0, ErrBadFormat
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "invalid"
}

// Ext returns the file name extension, including the leading dot.
func (f Format) Ext() string {
	return "." + f.String()
}

// FormatFromName returns the Format matching the extension of path,
// defaulting to FormatPNG.
func FormatFromName(path string) Format {
	switch lower := strings.ToLower(path); {
	case strings.HasSuffix(lower, ".nie.zst"):
		return FormatNIEZstd
	case strings.HasSuffix(lower, ".nie"):
		return FormatNIE
	case strings.HasSuffix(lower, ".tif"), strings.HasSuffix(lower, ".tiff"):
		return FormatTIFF
	}
	return FormatPNG
}

// withReader calls fn with a buffered reader for the file at path. Files
// whose name ends in ".zst" are decompressed on the fly.
func withReader(path string, fn func(r io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := io.Reader(bufio.NewReader(f))
	if strings.HasSuffix(strings.ToLower(path), ".zst") {
		d, err := zstd.NewReader(r)
		if err != nil {
			return err
		}
		defer d.Close()
		r = d
	}

	if err := fn(r); err != nil {
		return &os.PathError{Op: "decode", Path: path, Err: err}
	}
	return nil
}

// Open decodes the image file at path.
func Open(path string) (m image.Image, retErr error) {
	retErr = withReader(path, func(r io.Reader) (err error) {
		m, _, err = image.Decode(r)
		return err
	})
	return m, retErr
}

// OpenConfig decodes only the header of the image file at path.
func OpenConfig(path string) (c image.Config, retErr error) {
	retErr = withReader(path, func(r io.Reader) (err error) {
		c, _, err = image.DecodeConfig(r)
		return err
	})
	return c, retErr
}

// Encode writes m to w in the format f.
func Encode(w io.Writer, m image.Image, f Format) error {
	switch f {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, m)

	case FormatTIFF:
		return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate, Predictor: true})

	case FormatNIE:
		b, err := nie.EncodeBN4(m)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err

	case FormatNIEZstd:
		b, err := nie.EncodeBN4(m)
		if err != nil {
			return err
		}
		z, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return err
		}
		if _, err := z.Write(b); err != nil {
			z.Close()
			return err
		}
		return z.Close()
	}
	return ErrBadFormat
}

// Save writes m to path in the format f.
//
// The data is written to a temporary file in the same directory, which is
// then renamed to path. A failed Save leaves no file behind and does not
// touch an existing file at path.
func Save(path string, m image.Image, f Format) (retErr error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := Encode(w, m, f); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// OutputName returns the file name, without a directory, that the
// transformed version of src is saved under: src's base name stripped of
// its extension (including a trailing ".zst"), plus f's extension.
func OutputName(src string, f Format) string {
	base := filepath.Base(src)
	if strings.HasSuffix(strings.ToLower(base), ".zst") {
		base = base[:len(base)-len(".zst")]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + f.Ext()
}
