// Copyright 2025 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import "github.com/unixdj/apng/internal/dsp"

// Adam7: seven passes over an 8×8 tile.  xmask/ymask select columns
// and rows by bit position, xmin/xshift give each pass's column origin
// and spacing.
var (
	passXMask  = [7]byte{0x80, 0x08, 0x88, 0x22, 0xaa, 0x55, 0xff}
	passYMask  = [7]byte{0x80, 0x80, 0x08, 0x88, 0x22, 0xaa, 0x55}
	passXMin   = [7]int{0, 4, 0, 2, 0, 1, 0}
	passXShift = [7]int{3, 3, 2, 2, 1, 1, 0}
)

// passRowSize returns the packed byte length of one row of the given
// pass, or 0 if the pass has no columns at this width.
func passRowSize(pass, bitsPerPixel, width int) int {
	w := (width - passXMin[pass] + 1<<passXShift[pass] - 1) >> passXShift[pass]
	return (w*bitsPerPixel + 7) >> 3
}

// interlacedRow gathers the pass's pixels from a full source row into
// dst.  Formats of whole bytes are copied bpp bytes at a time; 1-bit
// data is repacked bit by bit.
func interlacedRow(dst []byte, rowSize, bitsPerPixel, pass int, src []byte, width int) {
	mask := passXMask[pass]
	if bitsPerPixel == 1 {
		dsp.ZeroFill(dst[:rowSize])
		dx := 0
		for x := 0; x < width; x++ {
			j := x & 7
			if mask<<j&0x80 != 0 {
				b := src[x>>3] >> (7 - j) & 1
				dst[dx>>3] |= b << (7 - dx&7)
				dx++
			}
		}
		return
	}
	bpp := bitsPerPixel >> 3
	d := 0
	for x := 0; x < width; x++ {
		if mask<<(x&7)&0x80 != 0 {
			copy(dst[d:d+bpp], src[x*bpp:])
			d += bpp
		}
	}
}
