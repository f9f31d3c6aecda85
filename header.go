// Copyright 2025 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"encoding/binary"
	"math"
)

// putFixed stores round(v*100000) big-endian, the PNG fixed-point
// encoding used by cHRM and gAMA.
func putFixed(b []byte, v float64) {
	binary.BigEndian.PutUint32(b, uint32(math.Round(v*100000)))
}

// chrm fills the 32-byte cHRM payload (white, red, green, blue x/y
// pairs) for the given primaries.  The white point defaults to D65;
// BT.470M overrides it.
func chrm(prim Primaries, b []byte) bool {
	var rx, ry, gx, gy, bx, by float64
	wx, wy := 0.3127, 0.3290
	switch prim {
	case PrimariesBT709:
		rx, ry = 0.640, 0.330
		gx, gy = 0.300, 0.600
		bx, by = 0.150, 0.060
	case PrimariesBT470M:
		rx, ry = 0.670, 0.330
		gx, gy = 0.210, 0.710
		bx, by = 0.140, 0.080
		wx, wy = 0.310, 0.316
	case PrimariesBT470BG:
		rx, ry = 0.640, 0.330
		gx, gy = 0.290, 0.600
		bx, by = 0.150, 0.060
	case PrimariesSMPTE170M, PrimariesSMPTE240M:
		rx, ry = 0.630, 0.340
		gx, gy = 0.310, 0.595
		bx, by = 0.155, 0.070
	case PrimariesBT2020:
		rx, ry = 0.708, 0.292
		gx, gy = 0.170, 0.797
		bx, by = 0.131, 0.046
	default:
		return false
	}
	putFixed(b[0:], wx)
	putFixed(b[4:], wy)
	putFixed(b[8:], rx)
	putFixed(b[12:], ry)
	putFixed(b[16:], gx)
	putFixed(b[20:], gy)
	putFixed(b[24:], bx)
	putFixed(b[28:], by)
	return true
}

// gama fills the 4-byte gAMA payload, or reports that the transfer
// characteristic has no usable gamma.
func gama(trc Transfer, b []byte) bool {
	g := trc.gamma()
	if g <= 1e-6 {
		return false
	}
	putFixed(b, 1.0/g)
	return true
}

// writeHeaders emits all chunks between the signature and the image
// data: IHDR, pHYs, then the optional sTER, sRGB, cHRM and gAMA, and
// for palette images PLTE plus tRNS when any entry is translucent.
func (e *encoder) writeHeaders(c *cursor, pict *Frame) error {
	buf := e.tmp[:]

	binary.BigEndian.PutUint32(buf, uint32(e.width))
	binary.BigEndian.PutUint32(buf[4:], uint32(e.height))
	buf[8] = byte(e.bitDepth)
	buf[9] = byte(e.colorType)
	buf[10] = 0 // compression method
	buf[11] = 0 // filter method
	if e.interlace {
		buf[12] = 1
	} else {
		buf[12] = 0
	}
	if err := c.writeChunk("IHDR", buf[:13]); err != nil {
		return err
	}

	if e.dpm != 0 {
		binary.BigEndian.PutUint32(buf, uint32(e.dpm))
		binary.BigEndian.PutUint32(buf[4:], uint32(e.dpm))
		buf[8] = 1 // unit is the metre
	} else {
		binary.BigEndian.PutUint32(buf, e.aspect.Num)
		binary.BigEndian.PutUint32(buf[4:], e.aspect.Den)
		buf[8] = 0 // unit unknown, fields carry the aspect ratio
	}
	if err := c.writeChunk("pHYs", buf[:9]); err != nil {
		return err
	}

	if s := pict.Stereo; s != nil && s.Mode == StereoSideBySide {
		if s.Invert {
			buf[0] = 0
		} else {
			buf[0] = 1
		}
		if err := c.writeChunk("sTER", buf[:1]); err != nil {
			return err
		}
	}

	if pict.Primaries == PrimariesBT709 && pict.Transfer == TransferSRGB {
		buf[0] = 1 // relative colorimetric intent
		if err := c.writeChunk("sRGB", buf[:1]); err != nil {
			return err
		}
	}
	if chrm(pict.Primaries, buf) {
		if err := c.writeChunk("cHRM", buf[:32]); err != nil {
			return err
		}
	}
	if gama(pict.Transfer, buf) {
		if err := c.writeChunk("gAMA", buf[:4]); err != nil {
			return err
		}
	}

	if e.colorType == ctPalette {
		alpha := buf[256*3:]
		hasAlpha := false
		for i, v := range pict.Palette[:256] {
			a := byte(v >> 24)
			if a != 0xff {
				hasAlpha = true
			}
			alpha[i] = a
			buf[i*3] = byte(v >> 16)
			buf[i*3+1] = byte(v >> 8)
			buf[i*3+2] = byte(v)
		}
		if err := c.writeChunk("PLTE", buf[:256*3]); err != nil {
			return err
		}
		if hasAlpha {
			if err := c.writeChunk("tRNS", alpha[:256]); err != nil {
				return err
			}
		}
	}
	return nil
}
