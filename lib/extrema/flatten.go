// Copyright 2025 The Extremadiff Authors.
//
// Licensed under the Apache License, Version 2.0 <LICENSE-APACHE or
// https://www.apache.org/licenses/LICENSE-2.0>. This file may not be copied,
// modified, or distributed except according to those terms.
//
// SPDX-License-Identifier: Apache-2.0

package extrema

import (
	"image"
)

// Flatten returns the RGB channels of every pixel of src, in raster order.
// Alpha is dropped. Color values are non-premultiplied first, so that a
// translucent source pixel keeps its stored color rather than being darkened.
func Flatten(src image.Image) []Pixel {
	b := src.Bounds()
	ret := make([]Pixel, 0, b.Dx()*b.Dy())

	switch src := src.(type) {
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := src.NRGBAAt(x, y)
				ret = append(ret, Pixel{c.R, c.G, c.B})
			}
		}
		return ret

	case *image.RGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := src.RGBAAt(x, y)
				if (c.A != 0x00) && (c.A != 0xFF) {
					c.R = uint8((uint32(c.R) * 0xFF) / uint32(c.A))
					c.G = uint8((uint32(c.G) * 0xFF) / uint32(c.A))
					c.B = uint8((uint32(c.B) * 0xFF) / uint32(c.A))
				}
				ret = append(ret, Pixel{c.R, c.G, c.B})
			}
		}
		return ret

	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := src.GrayAt(x, y)
				ret = append(ret, Pixel{c.Y, c.Y, c.Y})
			}
		}
		return ret
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bb, a := src.At(x, y).RGBA()
			if (a != 0x0000) && (a != 0xFFFF) {
				r = (r * 0xFFFF) / a
				g = (g * 0xFFFF) / a
				bb = (bb * 0xFFFF) / a
			}
			ret = append(ret, Pixel{uint8(r >> 8), uint8(g >> 8), uint8(bb >> 8)})
		}
	}
	return ret
}
