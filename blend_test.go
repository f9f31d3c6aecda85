// Copyright 2025 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"bytes"
	"testing"
)

// composite renders sub over canvas at the fcTL geometry, as an APNG
// decoder would, and returns the result.
func composite(canvas, sub *Frame, fctl *FrameControl, bpp int) *Frame {
	out := NewFrame(canvas.Format, canvas.Width, canvas.Height)
	out.copyPix(canvas)
	for y := 0; y < sub.Height; y++ {
		sy := int(fctl.YOffset) + y
		for x := 0; x < sub.Width; x++ {
			sx := int(fctl.XOffset) + x
			src := sub.Pix[y*sub.Stride+x*bpp:][:bpp]
			dst := out.Pix[sy*out.Stride+sx*bpp:][:bpp]
			if fctl.BlendOp == BlendSource {
				copy(dst, src)
				continue
			}
			// Over: the encoder only emits fully transparent
			// or trivially composable pixels.
			switch canvas.Format {
			case RGBA:
				if src[3] == 0 {
					continue
				}
			case PAL8:
				if canvas.Palette[src[0]]>>24 == 0 {
					continue
				}
			}
			copy(dst, src)
		}
	}
	return out
}

func TestInverseBlendSource(t *testing.T) {
	const w, h, bpp = 9, 7, 3
	bg := testFrame(RGB24, w, h, 1)
	fg := NewFrame(RGB24, w, h)
	fg.copyPix(bg)
	// Change a 4x3 region at (2,3).
	for y := 3; y < 6; y++ {
		for x := 2; x < 6; x++ {
			fg.Pix[y*fg.Stride+x*bpp] ^= 0x80
		}
	}
	out := NewFrame(RGB24, w, h)
	out.copyPix(bg)
	fctl := FrameControl{BlendOp: BlendSource}
	if !inverseBlend(out, fg, &fctl, bpp) {
		t.Fatal("source blend reported infeasible")
	}
	if fctl.Width != 4 || fctl.Height != 3 ||
		fctl.XOffset != 2 || fctl.YOffset != 3 {
		t.Fatalf("crop %dx%d at (%d,%d), want 4x3 at (2,3)",
			fctl.Width, fctl.Height, fctl.XOffset, fctl.YOffset)
	}
	got := composite(bg, out, &fctl, bpp)
	if !bytes.Equal(got.Pix, fg.Pix) {
		t.Fatal("composited image differs from foreground")
	}
}

func TestInverseBlendIdentical(t *testing.T) {
	const w, h, bpp = 5, 5, 4
	bg := testFrame(RGBA, w, h, 2)
	out := NewFrame(RGBA, w, h)
	out.copyPix(bg)
	fctl := FrameControl{BlendOp: BlendSource}
	if !inverseBlend(out, bg, &fctl, bpp) {
		t.Fatal("infeasible")
	}
	// APNG forbids empty frames: identical input degenerates to 1x1.
	if fctl.Width != 1 || fctl.Height != 1 ||
		fctl.XOffset != 0 || fctl.YOffset != 0 {
		t.Fatalf("degenerate crop %dx%d at (%d,%d)",
			fctl.Width, fctl.Height, fctl.XOffset, fctl.YOffset)
	}
}

func TestInverseBlendOver(t *testing.T) {
	const w, h, bpp = 6, 4, 4
	bg := NewFrame(RGBA, w, h)
	for i := 0; i < len(bg.Pix); i += 4 {
		bg.Pix[i], bg.Pix[i+3] = 0x33, 0xff
	}
	fg := NewFrame(RGBA, w, h)
	fg.copyPix(bg)
	// Opaque changes at (1,1) and (3,2); unchanged pixels inside the
	// bounding box must come out fully transparent.
	for _, p := range [][2]int{{1, 1}, {3, 2}} {
		px := fg.Pix[p[1]*fg.Stride+p[0]*4:]
		px[0], px[1], px[2], px[3] = 0xff, 0, 0, 0xff
	}
	out := NewFrame(RGBA, w, h)
	out.copyPix(bg)
	fctl := FrameControl{BlendOp: BlendOver}
	if !inverseBlend(out, fg, &fctl, bpp) {
		t.Fatal("over blend reported infeasible")
	}
	if fctl.Width != 3 || fctl.Height != 2 ||
		fctl.XOffset != 1 || fctl.YOffset != 1 {
		t.Fatalf("crop %dx%d at (%d,%d)",
			fctl.Width, fctl.Height, fctl.XOffset, fctl.YOffset)
	}
	if a := out.Pix[0*out.Stride+1*4+3]; a != 0 {
		t.Fatalf("unchanged pixel alpha %d, want transparent", a)
	}
	got := composite(bg, out, &fctl, bpp)
	if !bytes.Equal(got.Pix, fg.Pix) {
		t.Fatal("composited image differs from foreground")
	}
}

func TestInverseBlendOverInfeasible(t *testing.T) {
	const w, h = 3, 3
	// No alpha channel: over-blending cannot be inverted.
	bg := testFrame(RGB24, w, h, 3)
	fg := NewFrame(RGB24, w, h)
	fg.copyPix(bg)
	fg.Pix[0] ^= 1
	out := NewFrame(RGB24, w, h)
	out.copyPix(bg)
	fctl := FrameControl{BlendOp: BlendOver}
	if inverseBlend(out, fg, &fctl, 3) {
		t.Fatal("over blend feasible without alpha")
	}

	// Semi-transparent foreground over a visible background pixel.
	bga := NewFrame(RGBA, w, h)
	for i := 3; i < len(bga.Pix); i += 4 {
		bga.Pix[i] = 0xff
	}
	fga := NewFrame(RGBA, w, h)
	fga.copyPix(bga)
	fga.Pix[3] = 0x7f // neither opaque nor over a clear background
	out = NewFrame(RGBA, w, h)
	out.copyPix(bga)
	fctl = FrameControl{BlendOp: BlendOver}
	if inverseBlend(out, fga, &fctl, 4) {
		t.Fatal("non-trivial alpha blend reported feasible")
	}
}

func TestInverseBlendPal8(t *testing.T) {
	const w, h = 4, 4
	pal := opaquePalette()
	pal[7] = 0 // fully transparent entry
	bg := NewFrame(PAL8, w, h)
	bg.Palette = pal
	for i := range bg.Pix {
		bg.Pix[i] = 1
	}
	fg := NewFrame(PAL8, w, h)
	fg.Palette = pal
	fg.copyPix(bg)
	fg.Pix[1*fg.Stride+1] = 2 // opaque entry change
	out := NewFrame(PAL8, w, h)
	out.Palette = pal
	out.copyPix(bg)
	fctl := FrameControl{BlendOp: BlendOver}
	if !inverseBlend(out, fg, &fctl, 1) {
		t.Fatal("palette over blend infeasible")
	}
	if fctl.Width != 1 || fctl.Height != 1 ||
		fctl.XOffset != 1 || fctl.YOffset != 1 {
		t.Fatalf("crop %dx%d at (%d,%d)",
			fctl.Width, fctl.Height, fctl.XOffset, fctl.YOffset)
	}
	got := composite(bg, out, &fctl, 1)
	if !bytes.Equal(got.Pix, fg.Pix) {
		t.Fatal("composited image differs from foreground")
	}

	// Without a transparent entry the unchanged pixels inside the
	// box cannot be represented.
	pal2 := opaquePalette()
	bg.Palette, fg.Palette, out.Palette = pal2, pal2, pal2
	fg.Pix[0] = 3 // widen the box to include unchanged pixels
	out.copyPix(bg)
	fctl = FrameControl{BlendOp: BlendOver}
	if inverseBlend(out, fg, &fctl, 1) {
		t.Fatal("feasible without a transparent palette entry")
	}
}
