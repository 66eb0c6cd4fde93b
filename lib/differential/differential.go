// Copyright 2025 The Extremadiff Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package differential implements a reversible per-channel transform that
// replaces each pixel channel by its distance to either the per-position
// minimum or maximum of a batch.
//
// Which extremum is the reference is tracked by a ToggleState, one Reference
// per channel, that starts at UseMin for every image. After each channel
// value is emitted, the reference flips if that emitted distance exceeds the
// middle of the [min, max] range. Both sides make that decision from the
// emitted value alone, so the decoder replays the encoder's choices without
// any side channel, provided pixels are visited in the same raster order.
package differential

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/extremadiff/extremadiff/lib/extrema"
)

var (
	ErrInvertedRange = errors.New("differential: max is below min")
	ErrOutOfBounds   = errors.New("differential: image has more pixels than the extrema")
)

// Reference selects which extremum a channel is measured against.
type Reference uint8

const (
	UseMin = Reference(0)
	UseMax = Reference(1)
)

func (r Reference) String() string {
	if r == UseMax {
		return "use-max"
	}
	return "use-min"
}

// ToggleState is the per-channel Reference of one image's encode or decode
// pass. The zero value has every channel at UseMin.
type ToggleState [3]Reference

// RangeError reports a position and channel whose max is below its min.
type RangeError struct {
	Index   int
	Channel int
	Min     uint8
	Max     uint8
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("differential: max %d is below min %d at pixel %d channel %d",
		e.Max, e.Min, e.Index, e.Channel)
}

func (e *RangeError) Unwrap() error { return ErrInvertedRange }

// Middle returns (hi - lo) / 2, rounded down. It returns ErrInvertedRange if
// hi < lo.
func Middle(lo uint8, hi uint8) (uint8, error) {
	if hi < lo {
		return 0, ErrInvertedRange
	}
	return (hi - lo) / 2, nil
}

func absDiff(a uint8, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// Encode returns the transformed value of v for channel c, given that
// channel's lo and hi extrema, and advances the channel's Reference.
func (s *ToggleState) Encode(c int, lo uint8, hi uint8, v uint8) (uint8, error) {
	middle, err := Middle(lo, hi)
	if err != nil {
		return 0, err
	}

	ref := lo
	if s[c] == UseMax {
		ref = hi
	}
	d := absDiff(v, ref)
	if d > middle {
		s[c] ^= 1
	}
	return d, nil
}

// Decode returns the original value for the transformed value d of channel
// c, given that channel's lo and hi extrema, and advances the channel's
// Reference.
//
// When lo and hi do not bound the original data, the reconstruction can
// fall outside [0, 255]. It is then clamped and clamped is true.
func (s *ToggleState) Decode(c int, lo uint8, hi uint8, d uint8) (v uint8, clamped bool, err error) {
	middle, err := Middle(lo, hi)
	if err != nil {
		return 0, false, err
	}

	if s[c] == UseMax {
		if d > hi {
			v, clamped = 0x00, true
		} else {
			v = hi - d
		}
	} else {
		if d > 0xFF-lo {
			v, clamped = 0xFF, true
		} else {
			v = lo + d
		}
	}

	if d > middle {
		s[c] ^= 1
	}
	return v, clamped, nil
}

// Stats summarizes a Decode pass.
type Stats struct {
	// Clamped is the number of channel values that saturated at 0 or 255.
	Clamped int
}

// Encode transforms src, pixel by pixel in raster order, against the min
// and max extrema. src may be shorter than the extrema but not longer.
func Encode(min extrema.Buffer, max extrema.Buffer, src []extrema.Pixel) ([]extrema.Pixel, error) {
	if (len(src) > len(min)) || (len(src) > len(max)) {
		return nil, ErrOutOfBounds
	}

	dst := make([]extrema.Pixel, len(src))
	state := ToggleState{}
	for i, p := range src {
		for c := range 3 {
			d, err := state.Encode(c, min[i][c], max[i][c], p[c])
			if err != nil {
				return nil, &RangeError{Index: i, Channel: c, Min: min[i][c], Max: max[i][c]}
			}
			dst[i][c] = d
		}
	}
	return dst, nil
}

// Decode reverses Encode. Saturated values are logged (at verbosity 3),
// counted in the returned Stats and otherwise tolerated.
func Decode(min extrema.Buffer, max extrema.Buffer, src []extrema.Pixel) ([]extrema.Pixel, Stats, error) {
	if (len(src) > len(min)) || (len(src) > len(max)) {
		return nil, Stats{}, ErrOutOfBounds
	}

	dst := make([]extrema.Pixel, len(src))
	stats := Stats{}
	state := ToggleState{}
	for i, p := range src {
		for c := range 3 {
			ref := state[c]
			v, clamped, err := state.Decode(c, min[i][c], max[i][c], p[c])
			if err != nil {
				return nil, Stats{}, &RangeError{Index: i, Channel: c, Min: min[i][c], Max: max[i][c]}
			}
			if clamped {
				stats.Clamped++
				if glog.V(3) {
					glog.Infof("differential: pixel %d channel %d: %v with min %d max %d difference %d saturates to %d",
						i, c, ref, min[i][c], max[i][c], p[c], v)
				}
			}
			dst[i][c] = v
		}
	}
	return dst, stats, nil
}
