// Copyright 2025 The Extremadiff Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package nie

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func makeNRGBA() *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := range 2 {
		for x := range 3 {
			m.SetNRGBA(x, y, color.NRGBA{
				R: uint8(40 * x),
				G: uint8(90 * y),
				B: uint8(7*x + 11*y),
				A: uint8(0xFF - 30*x),
			})
		}
	}
	return m
}

// encodeBN8 is EncodeBN4's 16 bits per channel counterpart, for *image.NRGBA
// sources only. The module never writes bn8 files but can read them.
func encodeBN8(m image.Image) ([]byte, error) {
	n, ok := m.(*image.NRGBA)
	if !ok {
		return nil, ErrUnsupportedImageType
	}
	b := n.Bounds()
	ret := appendHeader(nil, '8', b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			at := n.NRGBAAt(x, y)
			ret = append(ret,
				at.B, at.B,
				at.G, at.G,
				at.R, at.R,
				at.A, at.A,
			)
		}
	}
	return ret, nil
}

func TestEncodeBN4Header(tt *testing.T) {
	got, err := EncodeBN4(makeNRGBA())
	if err != nil {
		tt.Fatalf("EncodeBN4: %v", err)
	}
	want := []byte{
		0x6E, 0xC3, 0xAF, 0x45, 0xFF, 'b', 'n', '4',
		0x03, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00,
	}
	if (len(got) != 16+(4*6)) || !bytes.Equal(got[:16], want) {
		tt.Errorf("got % 02X", got[:min(len(got), 16)])
	}
	// The first pixel is {R: 0, G: 0, B: 0, A: 0xFF}, stored as BGRA.
	if !bytes.Equal(got[16:20], []byte{0x00, 0x00, 0x00, 0xFF}) {
		tt.Errorf("first pixel: got % 02X", got[16:20])
	}
}

func TestRoundTrip(tt *testing.T) {
	src := makeNRGBA()

	testCases := []struct {
		name   string
		encode func(image.Image) ([]byte, error)
	}{
		{"bn4", EncodeBN4},
		{"bn8", encodeBN8},
	}

	for _, tc := range testCases {
		enc, err := tc.encode(src)
		if err != nil {
			tt.Errorf("tc=%q: encode: %v", tc.name, err)
			continue
		}

		dst, format, err := image.Decode(bytes.NewReader(enc))
		if err != nil {
			tt.Errorf("tc=%q: image.Decode: %v", tc.name, err)
			continue
		} else if format != "nie" {
			tt.Errorf("tc=%q: format: got %q, want \"nie\"", tc.name, format)
		}

		if got, want := dst.Bounds(), src.Bounds(); got != want {
			tt.Errorf("tc=%q: bounds: got %v, want %v", tc.name, got, want)
			continue
		}
		for y := range 2 {
			for x := range 3 {
				want := src.NRGBAAt(x, y)
				switch dst := dst.(type) {
				case *image.NRGBA:
					if got := dst.NRGBAAt(x, y); got != want {
						tt.Errorf("tc=%q: At(%d, %d): got %v, want %v", tc.name, x, y, got, want)
					}
				case *image.NRGBA64:
					want64 := color.NRGBA64{
						R: uint16(want.R) * 0x101,
						G: uint16(want.G) * 0x101,
						B: uint16(want.B) * 0x101,
						A: uint16(want.A) * 0x101,
					}
					if got := dst.NRGBA64At(x, y); got != want64 {
						tt.Errorf("tc=%q: At(%d, %d): got %v, want %v", tc.name, x, y, got, want64)
					}
				default:
					tt.Errorf("tc=%q: unexpected image type %T", tc.name, dst)
				}
			}
		}
	}
}

func TestDecodeRejectsGarbage(tt *testing.T) {
	testCases := [][]byte{
		[]byte("PKM 20\x00\x01\x00\x04\x00\x04\x00\x04\x00\x04"),
		[]byte("n\xC3\xAFE\xFFbn5\x01\x00\x00\x00\x01\x00\x00\x00"),
		[]byte("n\xC3\xAFE\xFFbp4\x01\x00\x00\x00\x01\x00\x00\x00"),
	}
	for i, tc := range testCases {
		if _, err := Decode(bytes.NewReader(tc)); err != ErrNotANIEFile {
			tt.Errorf("i=%d: got %v, want ErrNotANIEFile", i, err)
		}
	}
}
