// Copyright 2025 The Extremadiff Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package imageio

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func makeTestImage(w int, h int) *image.RGBA {
	m := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetRGBA(x, y, color.RGBA{
				R: uint8((x * 17) ^ (y * 31)),
				G: uint8((x * 43) + (y * 13)),
				B: uint8((x * 7) ^ (y * 11)),
				A: 0xFF,
			})
		}
	}
	return m
}

func TestSaveOpenLossless(tt *testing.T) {
	dir := tt.TempDir()
	src := makeTestImage(33, 17)

	for _, f := range []Format{FormatPNG, FormatTIFF, FormatNIE, FormatNIEZstd} {
		path := filepath.Join(dir, OutputName("src.jpeg", f))
		if err := Save(path, src, f); err != nil {
			tt.Errorf("format=%v: Save: %v", f, err)
			continue
		}
		dst, err := Open(path)
		if err != nil {
			tt.Errorf("format=%v: Open: %v", f, err)
			continue
		}
		if got, want := dst.Bounds(), src.Bounds(); got != want {
			tt.Errorf("format=%v: bounds: got %v, want %v", f, got, want)
			continue
		}
	loop:
		for y := 0; y < 17; y++ {
			for x := 0; x < 33; x++ {
				if got, want := color.RGBAModel.Convert(dst.At(x, y)), src.RGBAAt(x, y); got != want {
					tt.Errorf("format=%v: At(%d, %d): got %v, want %v", f, x, y, got, want)
					break loop
				}
			}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		tt.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 4 {
		names := []string{}
		for _, e := range entries {
			names = append(names, e.Name())
		}
		tt.Errorf("directory entries: got %q, want 4 files and no temporaries", names)
	}
}

func TestSaveFailureLeavesNothing(tt *testing.T) {
	dir := tt.TempDir()
	path := filepath.Join(dir, "out.png")
	if err := Save(path, makeTestImage(2, 2), Format(99)); err != ErrBadFormat {
		tt.Fatalf("Save: got %v, want ErrBadFormat", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		tt.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		tt.Errorf("got %d directory entries, want 0", len(entries))
	}
}

func TestOpenMissing(tt *testing.T) {
	if _, err := Open(filepath.Join(tt.TempDir(), "missing.png")); !os.IsNotExist(err) {
		tt.Errorf("got %v, want a not-exist error", err)
	}
}

func TestParseFormat(tt *testing.T) {
	testCases := []struct {
		s    string
		want Format
	}{
		{"", FormatPNG},
		{"PNG", FormatPNG},
		{"tif", FormatTIFF},
		{"nie", FormatNIE},
		{"nie.zst", FormatNIEZstd},
	}
	for _, tc := range testCases {
		if got, err := ParseFormat(tc.s); err != nil || got != tc.want {
			tt.Errorf("tc=%q: got %v, %v, want %v", tc.s, got, err, tc.want)
		}
	}
	if _, err := ParseFormat("jpeg"); err != ErrBadFormat {
		tt.Errorf("jpeg: got %v, want ErrBadFormat", err)
	}
}

func TestOutputName(tt *testing.T) {
	testCases := []struct {
		src  string
		f    Format
		want string
	}{
		{"a/b/photo.jpg", FormatPNG, "photo.png"},
		{"photo.png", FormatPNG, "photo.png"},
		{"x/photo.nie.zst", FormatPNG, "photo.png"},
		{"x/PHOTO.NIE.ZST", FormatPNG, "PHOTO.png"},
		{"x/photo.png", FormatNIEZstd, "photo.nie.zst"},
		{"noext", FormatTIFF, "noext.tiff"},
	}
	for _, tc := range testCases {
		if got := OutputName(tc.src, tc.f); got != tc.want {
			tt.Errorf("tc=%q: got %q, want %q", tc.src, got, tc.want)
		}
	}
}

func TestFormatFromName(tt *testing.T) {
	testCases := []struct {
		path string
		want Format
	}{
		{"min.png", FormatPNG},
		{"out/max.TIF", FormatTIFF},
		{"max.tiff", FormatTIFF},
		{"min.nie", FormatNIE},
		{"min.nie.zst", FormatNIEZstd},
		{"min", FormatPNG},
	}
	for _, tc := range testCases {
		if got := FormatFromName(tc.path); got != tc.want {
			tt.Errorf("tc=%q: got %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestOpenConfig(tt *testing.T) {
	path := filepath.Join(tt.TempDir(), "a.nie.zst")
	if err := Save(path, makeTestImage(5, 3), FormatNIEZstd); err != nil {
		tt.Fatalf("Save: %v", err)
	}
	c, err := OpenConfig(path)
	if err != nil {
		tt.Fatalf("OpenConfig: %v", err)
	}
	if (c.Width != 5) || (c.Height != 3) {
		tt.Errorf("got %d×%d, want 5×3", c.Width, c.Height)
	}
}

func TestUpperCaseZstdName(tt *testing.T) {
	path := filepath.Join(tt.TempDir(), "X.NIE.ZST")
	f := FormatFromName(path)
	if f != FormatNIEZstd {
		tt.Fatalf("FormatFromName: got %v, want nie.zst", f)
	}
	src := makeTestImage(4, 3)
	if err := Save(path, src, f); err != nil {
		tt.Fatalf("Save: %v", err)
	}
	m, err := Open(path)
	if err != nil {
		tt.Fatalf("Open: %v", err)
	}
	if got := m.Bounds(); got != src.Bounds() {
		tt.Errorf("Bounds: got %v, want %v", got, src.Bounds())
	}
	if _, err := OpenConfig(path); err != nil {
		tt.Errorf("OpenConfig: %v", err)
	}
}
