// Copyright 2025 The Extremadiff Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package extrema accumulates the per-position, per-channel minimum and
// maximum pixel values across a batch of images.
//
// Images in a batch are addressed by a shared linear (raster order) pixel
// index, i = y*width + x. An image with fewer pixels than the largest one
// only touches a prefix of the buffers. No geometric resampling happens.
package extrema

import (
	"errors"
	"fmt"
	"image"
)

var (
	ErrDimensionFit   = errors.New("extrema: width and height do not fit the pixel count")
	ErrLengthMismatch = errors.New("extrema: min and max buffers differ in length")
	ErrInconsistent   = errors.New("extrema: max is below min")
)

// Pixel is an 8-bit RGB triplet.
type Pixel [3]uint8

// Buffer is a flat, raster order sequence of pixels.
type Buffer []Pixel

// NewBuffer returns a Buffer of n pixels, every channel set to fill.
func NewBuffer(n int, fill uint8) Buffer {
	b := make(Buffer, n)
	for i := range b {
		b[i] = Pixel{fill, fill, fill}
	}
	return b
}

// InconsistentError reports a position and channel where max < min.
type InconsistentError struct {
	Index   int
	Channel int
	Min     uint8
	Max     uint8
}

func (e *InconsistentError) Error() string {
	return fmt.Sprintf("extrema: max %d is below min %d at pixel %d channel %d",
		e.Max, e.Min, e.Index, e.Channel)
}

func (e *InconsistentError) Unwrap() error { return ErrInconsistent }

// Validate checks that min and max can serve as a pair of extrema: equal
// lengths and min <= max everywhere. Self-accumulated extrema always pass.
func Validate(min Buffer, max Buffer) error {
	if len(min) != len(max) {
		return ErrLengthMismatch
	}
	for i := range min {
		for c := range 3 {
			if max[i][c] < min[i][c] {
				return &InconsistentError{Index: i, Channel: c, Min: min[i][c], Max: max[i][c]}
			}
		}
	}
	return nil
}

// Accumulator computes the min and max extrema of a batch of images.
//
// The zero value is not usable. Use NewAccumulator.
type Accumulator struct {
	width  int
	height int
	min    Buffer
	max    Buffer
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Reserve records an image of the given dimensions, as Add would, without
// folding in any pixels. Calling Reserve for every image, in batch order,
// before any Add fixes the target dimensions regardless of the order in
// which the pixels are later added.
func (a *Accumulator) Reserve(width int, height int) {
	a.Add(nil, width, height)
}

// Add folds one image, given as flat pixels with its dimensions, into the
// extrema.
//
// The first image with the strictly largest width*height sets the target
// dimensions. The buffers grow as needed, with new positions starting at 255
// (min) and 0 (max), so the order of Add calls does not change the result.
func (a *Accumulator) Add(pix []Pixel, width int, height int) {
	if n := width * height; n > a.width*a.height {
		a.width, a.height = width, height
		if n > len(a.min) {
			a.min = append(a.min, NewBuffer(n-len(a.min), 0xFF)...)
			a.max = append(a.max, NewBuffer(n-len(a.max), 0x00)...)
		}
	}
	if len(pix) > len(a.min) {
		// Only reachable if len(pix) disagrees with width*height.
		a.min = append(a.min, NewBuffer(len(pix)-len(a.min), 0xFF)...)
		a.max = append(a.max, NewBuffer(len(pix)-len(a.max), 0x00)...)
	}

	for i, p := range pix {
		lo, hi := &a.min[i], &a.max[i]
		for c := range 3 {
			lo[c] = min(lo[c], p[c])
			hi[c] = max(hi[c], p[c])
		}
	}
}

// Extrema returns the accumulated buffers and the target dimensions. The
// buffers are shared with the Accumulator and must not be modified.
func (a *Accumulator) Extrema() (min Buffer, max Buffer, width int, height int) {
	return a.min, a.max, a.width, a.height
}

// Image returns b as an opaque width×height image.
//
// It returns ErrDimensionFit if width*height is not len(b).
func (b Buffer) Image(width int, height int) (*image.RGBA, error) {
	if (width < 0) || (height < 0) || (width*height != len(b)) {
		return nil, ErrDimensionFit
	}
	m := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, p := range b {
		j := 4 * i
		m.Pix[j+0] = p[0]
		m.Pix[j+1] = p[1]
		m.Pix[j+2] = p[2]
		m.Pix[j+3] = 0xFF
	}
	return m, nil
}

// FromImage returns the pixels of m, in raster order, as a Buffer.
func FromImage(m image.Image) Buffer {
	return Buffer(Flatten(m))
}
