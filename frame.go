// Copyright 2025 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import "github.com/unixdj/apng/internal/dsp"

// A Frame is one decoded raster image handed to the encoder.  Pix holds
// Height rows of Stride bytes each; a row's first rowBytes bytes are
// pixel data in the Format's layout.  The encoder never modifies Pix.
type Frame struct {
	Format PixelFormat
	Width  int
	Height int
	Stride int    // bytes between vertically adjacent pixels
	Pix    []byte // pixel data, Height*Stride bytes

	// Palette holds 256 0xAARRGGBB entries.  Required for PAL8,
	// ignored otherwise.
	Palette []uint32

	// Colour description, used for the sRGB, cHRM and gAMA chunks.
	Primaries Primaries
	Transfer  Transfer

	// Stereo is optional stereoscopic side data for the sTER chunk.
	Stereo *Stereo3D

	// PTS is an opaque timestamp carried through to the Packet.
	PTS int64
}

// rowBytes returns the length in bytes of one pixel row of width w.
func rowBytes(f PixelFormat, w int) int {
	return (w*f.BitsPerPixel() + 7) >> 3
}

// NewFrame allocates a zeroed frame with a tight stride.
func NewFrame(format PixelFormat, w, h int) *Frame {
	stride := rowBytes(format, w)
	return &Frame{
		Format: format,
		Width:  w,
		Height: h,
		Stride: stride,
		Pix:    make([]byte, h*stride),
	}
}

// copyPix copies src's pixel rows into f.  Both frames must have the
// same format and dimensions; strides may differ.
func (f *Frame) copyPix(src *Frame) {
	n := rowBytes(src.Format, src.Width)
	for y := 0; y < src.Height; y++ {
		copy(f.Pix[y*f.Stride:y*f.Stride+n], src.Pix[y*src.Stride:])
	}
}

// zeroRect clears the w×h pixel rectangle at (x, y), given bpp bytes
// per pixel (1 for sub-byte formats, where the span is clamped to the
// packed row length).
func (f *Frame) zeroRect(x, y, w, h uint32, bpp int) {
	rb := rowBytes(f.Format, f.Width)
	for yy := y; yy < y+h; yy++ {
		s := bpp * int(x)
		e := s + bpp*int(w)
		if e > rb {
			e = rb
		}
		off := int(yy) * f.Stride
		dsp.ZeroFill(f.Pix[off+s : off+e])
	}
}
