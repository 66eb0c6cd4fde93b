// Copyright 2025 The Extremadiff Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

// ----------------

// Package nie implements the NIE (Naive) image file format.
//
// It is an incomplete implementation (and hence an internal package), only
// providing what's needed by the github.com/extremadiff/extremadiff module:
// encoding non-premultiplied BGRA at 4 bytes per pixel ("bn4"), and
// decoding that or its 8 bytes per pixel variant ("bn8").
//
// NIE is specified at
// https://github.com/google/wuffs/blob/main/doc/spec/nie-spec.md
package nie

import (
	"errors"
	"image"
	"image/color"
	"io"
)

// Magic is the byte string prefix of every NIE image file.
const Magic = "n\xC3\xAFE\xFF"

func init() {
	image.RegisterFormat("nie", Magic, Decode, DecodeConfig)
}

var (
	ErrNotANIEFile          = errors.New("nie: not a NIE file")
	ErrUnsupportedImageType = errors.New("nie: unsupported image type")
	ErrImageIsTooLarge      = errors.New("nie: image is too large")
)

const headerSize = 16

// maxPixels bounds the allocation made for a decoded image.
const maxPixels = 1 << 28

// EncodeBN4 encodes m as a NIE file in BGRA order, non-premultiplied alpha, 4
// bytes per pixel (8 bits per channel).
func EncodeBN4(m image.Image) ([]byte, error) {
	b := m.Bounds()
	if b.Dx()*b.Dy() > maxPixels {
		return nil, ErrImageIsTooLarge
	}
	ret := make([]byte, 0, headerSize+(4*b.Dx()*b.Dy()))
	ret = appendHeader(ret, '4', b)

	switch m := m.(type) {
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				at := m.NRGBAAt(x, y)
				ret = append(ret, at.B, at.G, at.R, at.A)
			}
		}
		return ret, nil

	case *image.RGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				at := m.RGBAAt(x, y)
				if (at.A != 0x00) && (at.A != 0xFF) {
					return nil, ErrUnsupportedImageType
				}
				ret = append(ret, at.B, at.G, at.R, at.A)
			}
		}
		return ret, nil
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			at := color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
			ret = append(ret, at.B, at.G, at.R, at.A)
		}
	}
	return ret, nil
}

func appendHeader(b []byte, depth byte, r image.Rectangle) []byte {
	b = append(b, Magic...)
	b = append(b, 'b', 'n', depth)
	b = appendU32LE(b, uint32(r.Dx()))
	b = appendU32LE(b, uint32(r.Dy()))
	return b
}

func decodeConfig(r io.Reader) (bytesPerPixel int, retConfig image.Config, retErr error) {
	buf := [headerSize]byte{}
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, image.Config{}, err
	} else if (string(buf[:5]) != Magic) || (buf[5] != 'b') || (buf[6] != 'n') {
		return 0, image.Config{}, ErrNotANIEFile
	}

	config := image.Config{}
	switch buf[7] {
	case '4':
		bytesPerPixel, config.ColorModel = 4, color.NRGBAModel
	case '8':
		bytesPerPixel, config.ColorModel = 8, color.NRGBA64Model
	default:
		return 0, image.Config{}, ErrNotANIEFile
	}

	width := readU32LE(buf[8:])
	height := readU32LE(buf[12:])
	if (width > 0x7FFFFFFF) || (height > 0x7FFFFFFF) {
		return 0, image.Config{}, ErrNotANIEFile
	} else if uint64(width)*uint64(height) > maxPixels {
		return 0, image.Config{}, ErrImageIsTooLarge
	}
	config.Width, config.Height = int(width), int(height)
	return bytesPerPixel, config, nil
}

// DecodeConfig reads a NIE image configuration from r.
func DecodeConfig(r io.Reader) (image.Config, error) {
	_, config, err := decodeConfig(r)
	return config, err
}

// Decode reads a "bn4" or "bn8" NIE image from r. The result is an
// *image.NRGBA or an *image.NRGBA64 respectively.
func Decode(r io.Reader) (image.Image, error) {
	bytesPerPixel, config, err := decodeConfig(r)
	if err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, config.Width, config.Height)

	if bytesPerPixel == 4 {
		m := image.NewNRGBA(rect)
		if _, err := io.ReadFull(r, m.Pix); err != nil {
			return nil, err
		}
		for i := 0; i < len(m.Pix); i += 4 {
			m.Pix[i+0], m.Pix[i+2] = m.Pix[i+2], m.Pix[i+0]
		}
		return m, nil
	}

	m := image.NewNRGBA64(rect)
	if _, err := io.ReadFull(r, m.Pix); err != nil {
		return nil, err
	}
	// NIE is little-endian BGRA. Go's NRGBA64 is big-endian RGBA.
	for i := 0; i < len(m.Pix); i += 8 {
		b0, b1 := m.Pix[i+0], m.Pix[i+1]
		g0, g1 := m.Pix[i+2], m.Pix[i+3]
		r0, r1 := m.Pix[i+4], m.Pix[i+5]
		a0, a1 := m.Pix[i+6], m.Pix[i+7]
		m.Pix[i+0], m.Pix[i+1] = r1, r0
		m.Pix[i+2], m.Pix[i+3] = g1, g0
		m.Pix[i+4], m.Pix[i+5] = b1, b0
		m.Pix[i+6], m.Pix[i+7] = a1, a0
	}
	return m, nil
}

func appendU32LE(b []byte, u uint32) []byte {
	return append(b,
		uint8(u>>0),
		uint8(u>>8),
		uint8(u>>16),
		uint8(u>>24),
	)
}

func readU32LE(b []byte) uint32 {
	return (uint32(b[0]) << 0) |
		(uint32(b[1]) << 8) |
		(uint32(b[2]) << 16) |
		(uint32(b[3]) << 24)
}
