// Copyright 2025 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"bytes"

	"github.com/unixdj/apng/internal/dsp"
)

// inverseBlend computes the smallest sub-image that reconstructs pict
// when composited over the background canvas held in out.  On entry out
// holds the disposed previous canvas at pict's full size; on success it
// holds the sub-image at its top-left, its Width/Height are the crop
// size, and fctl carries the crop geometry.  It reports false when the
// requested blend mode cannot produce the required pixels.
func inverseBlend(out, pict *Frame, fctl *FrameControl, bpp int) bool {
	w, h := pict.Width, pict.Height
	x0, y0 := w, h
	x1, y1 := 0, 0

	// Tight bounding box of changed pixels, compared bpp bytes at a
	// time.
	for y := 0; y < h; y++ {
		in := pict.Pix[y*pict.Stride:]
		bg := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			if bytes.Equal(in[x*bpp:x*bpp+bpp], bg[x*bpp:x*bpp+bpp]) {
				continue
			}
			if x < x0 {
				x0 = x
			}
			if x >= x1 {
				x1 = x + 1
			}
			if y < y0 {
				y0 = y
			}
			if y >= y1 {
				y1 = y + 1
			}
		}
	}
	if x0 == w && x1 == 0 {
		// Identical frames.  APNG forbids empty frames, so emit
		// a single pixel.
		x0, y0, x1, y1 = 0, 0, 1, 1
	}

	if fctl.BlendOp == BlendSource {
		for y := y0; y < y1; y++ {
			copy(out.Pix[(y-y0)*out.Stride:],
				pict.Pix[y*pict.Stride+x0*bpp:y*pict.Stride+x1*bpp])
		}
	} else {
		// Blending over is only invertible with an alpha channel,
		// and then only in the trivial cases: unchanged pixels
		// become fully transparent, changed ones must either be
		// fully opaque or replace a fully transparent background.
		// Full alpha-on-alpha inversion is rarely possible and
		// compresses no better than source blending.
		transIdx := -1
		switch pict.Format {
		case RGBA, RGBA64BE, GRAY8A, YA16BE:
		case PAL8:
			transIdx = 256
			for i, v := range pict.Palette[:256] {
				if v>>24 == 0 {
					transIdx = i
					break
				}
			}
		default:
			return false
		}
		for y := y0; y < y1; y++ {
			fg := pict.Pix[y*pict.Stride+x0*bpp:]
			bg := out.Pix[y*out.Stride+x0*bpp:]
			od := out.Pix[(y-y0)*out.Stride:]
			for x := 0; x < x1-x0; x++ {
				f := fg[x*bpp : x*bpp+bpp]
				b := bg[x*bpp : x*bpp+bpp]
				o := od[x*bpp : x*bpp+bpp]
				if bytes.Equal(f, b) {
					if pict.Format == PAL8 {
						if transIdx == 256 {
							// No fully transparent
							// palette entry.
							return false
						}
						o[0] = byte(transIdx)
					} else {
						dsp.ZeroFill(o)
					}
					continue
				}
				if !opaqueOrClear(pict.Format, pict.Palette, f, b) {
					return false
				}
				copy(o, f)
			}
		}
	}

	out.Width = x1 - x0
	out.Height = y1 - y0
	fctl.Width = uint32(out.Width)
	fctl.Height = uint32(out.Height)
	fctl.XOffset = uint32(x0)
	fctl.YOffset = uint32(y0)
	return true
}

// opaqueOrClear reports whether compositing fg over bg trivially yields
// fg: the foreground is fully opaque or the background fully
// transparent.
func opaqueOrClear(format PixelFormat, pal []uint32, fg, bg []byte) bool {
	switch format {
	case RGBA:
		return fg[3] == 0xff || bg[3] == 0
	case RGBA64BE:
		return fg[6] == 0xff && fg[7] == 0xff || bg[6] == 0 && bg[7] == 0
	case GRAY8A:
		return fg[1] == 0xff || bg[1] == 0
	case YA16BE:
		return fg[2] == 0xff && fg[3] == 0xff || bg[2] == 0 && bg[3] == 0
	case PAL8:
		return pal[fg[0]]>>24 == 0xff || pal[bg[0]]>>24 == 0
	}
	return false
}

// encodeAnimFrame encodes pict's image data at the current cursor and
// fills fctl with the chosen geometry and blend.  The first frame is
// always emitted whole with source blending.  Later frames try every
// previous-frame dispose against both blend modes, encode each feasible
// inverse blend, and keep the smallest; the winning dispose is written
// back into the previous frame's pending fcTL.
func (a *AnimEncoder) encodeAnimFrame(pict *Frame, fctl *FrameControl) error {
	if a.frameNum == 0 {
		fctl.Width = uint32(pict.Width)
		fctl.Height = uint32(pict.Height)
		fctl.XOffset = 0
		fctl.YOffset = 0
		fctl.BlendOp = BlendSource
		return a.encodeImage(pict)
	}

	bpp := (a.bpp + 7) >> 3
	diff := NewFrame(pict.Format, pict.Width, pict.Height)
	diff.Palette = pict.Palette

	// Trials alternate between the packet buffer and a same-sized
	// scratch buffer, so the best candidate is never overwritten and
	// ends up in the packet with at most one copy.
	origBuf := a.bs.buf
	origOff := a.bs.off
	tempBuf := make([]byte, len(origBuf)-origOff)

	curIsOrig := true
	bestSize := -1
	bestInOrig := false
	var bestSeq uint32
	var bestFctl, bestLast FrameControl

	trial := *fctl
	last := a.lastFCTL
	for dispose := DisposeNone; dispose <= DisposePrevious; dispose++ {
		last.DisposeOp = dispose
		for blend := BlendSource; blend <= BlendOver; blend++ {
			trial.BlendOp = blend

			// Rebuild the canvas a decoder would hold after
			// disposing the previous frame.
			diff.Width, diff.Height = pict.Width, pict.Height
			if dispose == DisposePrevious {
				if a.prevFrame == nil {
					// No frame before the previous one.
					continue
				}
				diff.copyPix(a.prevFrame)
			} else {
				diff.copyPix(a.lastFrame)
				if dispose == DisposeBackground {
					diff.zeroRect(a.lastFCTL.XOffset,
						a.lastFCTL.YOffset,
						a.lastFCTL.Width,
						a.lastFCTL.Height, bpp)
				}
			}

			if !inverseBlend(diff, pict, &trial, bpp) {
				continue
			}

			origSeq := a.seq
			start := a.bs.off
			err := a.encodeImage(diff)
			seq := a.seq
			a.seq = origSeq
			size := a.bs.off - start
			a.bs.off = start
			if err != nil {
				return err
			}

			if bestSize < 0 || size < bestSize {
				bestFctl = trial
				bestLast = last
				bestSeq = seq
				bestSize = size
				bestInOrig = curIsOrig
				if curIsOrig {
					a.bs = cursor{buf: tempBuf}
				} else {
					a.bs = cursor{buf: origBuf, off: origOff}
				}
				curIsOrig = !curIsOrig
			}
		}
	}

	a.seq = bestSeq
	if !bestInOrig {
		copy(origBuf[origOff:], tempBuf[:bestSize])
	}
	a.bs = cursor{buf: origBuf, off: origOff + bestSize}
	*fctl = bestFctl
	a.lastFCTL = bestLast
	return nil
}
