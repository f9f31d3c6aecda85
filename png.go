// Copyright 2025 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package apng encodes still PNG and animated APNG images from decoded
raster frames.

An Encoder turns one Frame into one self-contained PNG packet.  An
AnimEncoder consumes a stream of Frames and emits one packet per frame,
each an fcTL chunk followed by that frame's image data (IDAT for the
first frame, sequence-numbered fdAT afterwards); between frames it
searches the dispose/blend space for the smallest encoding.  The mux
subpackage assembles AnimEncoder output into a complete APNG file.
*/
package apng

import (
	"errors"
	"math"

	"github.com/klauspost/compress/zlib"
)

var (
	ErrFormat      = errors.New("apng: unsupported pixel format")
	ErrSize        = errors.New("apng: invalid image dimensions")
	ErrDensity     = errors.New("apng: dpi and dpm are mutually exclusive")
	ErrLevel       = errors.New("apng: invalid compression level")
	ErrFilter      = errors.New("apng: invalid filter type")
	ErrTooLarge    = errors.New("apng: worst-case packet size overflow")
	ErrPalette     = errors.New("apng: animation palette changed after first frame")
	ErrFrame       = errors.New("apng: frame does not match encoder configuration")
	ErrClosed      = errors.New("apng: encoder is closed")
	ErrFlushed     = errors.New("apng: stream already flushed")
	ErrShortBuffer = errors.New("apng: packet buffer overrun")
)

const pngHeader = "\x89PNG\r\n\x1a\n"

// headerRoom is the packet headroom reserved for the signature and all
// pre-image chunks (worst case: palette plus transparency, about 1 KiB).
const headerRoom = 16384

// A Ratio is a sample aspect ratio, emitted in pHYs when no physical
// density is configured.
type Ratio struct {
	Num, Den uint32
}

// A Config describes one encoder instance.  Width, Height and Format
// apply to every frame passed to Encode.
type Config struct {
	Format    PixelFormat
	Width     int
	Height    int
	Interlace bool             // Adam7 interlacing
	Filter    Filter           // row filter strategy
	Level     CompressionLevel // deflate level
	DPI       int              // dots per inch, 0..65536
	DPM       int              // dots per metre, 0..65536
	Aspect    Ratio            // sample aspect ratio
}

// encoder is the state shared by the still and animated drivers.
type encoder struct {
	width, height int
	interlace     bool
	filter        Filter
	bitDepth      int
	colorType     int
	bpp           int // bits per pixel
	dpm           int
	aspect        Ratio
	format        PixelFormat

	zw   *zlib.Writer
	pipe zpipe
	bs   cursor

	apng     bool
	frameNum int
	seq      uint32 // fcTL/fdAT sequence counter

	tmp    [1024]byte
	closed bool
}

func (e *encoder) init(cfg *Config, apng bool) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ErrSize
	}
	if !cfg.Format.valid() {
		return ErrFormat
	}
	if cfg.Filter < FilterNone || cfg.Filter > FilterMixed {
		return ErrFilter
	}
	if cfg.DPI != 0 && cfg.DPM != 0 {
		return ErrDensity
	}
	if cfg.DPI < 0 || cfg.DPI > 0x10000 || cfg.DPM < 0 || cfg.DPM > 0x10000 {
		return ErrDensity
	}
	d := pixdesc[cfg.Format]
	e.width = cfg.Width
	e.height = cfg.Height
	e.interlace = cfg.Interlace
	e.format = cfg.Format
	e.bitDepth = d.depth
	e.colorType = d.ctype
	e.bpp = cfg.Format.BitsPerPixel()
	e.filter = cfg.Filter
	if cfg.Format == MonoBlack {
		// 1-bit rows have no byte-wise left neighbour.
		e.filter = FilterNone
	}
	e.dpm = cfg.DPM
	if cfg.DPI != 0 {
		e.dpm = cfg.DPI * 10000 / 254
	}
	e.aspect = cfg.Aspect
	e.apng = apng
	e.pipe.emit = e.writeImageData
	zw, err := newDeflater(&e.pipe, cfg.Level)
	if err != nil {
		return err
	}
	e.zw = zw
	return nil
}

func (e *encoder) close() error {
	if e.closed {
		return ErrClosed
	}
	e.closed = true
	e.zw = nil
	return nil
}

// checkFrame verifies that a frame matches the encoder configuration.
func (e *encoder) checkFrame(pict *Frame) error {
	if pict == nil {
		return ErrFrame
	}
	if pict.Format != e.format || pict.Width != e.width ||
		pict.Height != e.height {
		return ErrFrame
	}
	if rb := rowBytes(pict.Format, pict.Width); pict.Stride < rb ||
		len(pict.Pix) < (pict.Height-1)*pict.Stride+rb {
		return ErrFrame
	}
	if e.colorType == ctPalette && len(pict.Palette) < 256 {
		return ErrFrame
	}
	return nil
}

// encodeImage compresses pict's rows into image data chunks at the
// current cursor: filter each row (via the interlacer when configured),
// stream it through deflate, and flush the stream at the end.  The
// deflate state is reset, not destroyed, so the next frame reuses it.
func (e *encoder) encodeImage(pict *Frame) error {
	rowSize := (pict.Width*e.bpp + 7) >> 3
	n := rowSize + 32
	if e.filter == FilterMixed {
		n <<= 1
	}
	crowBase := make([]byte, n)
	// Pixel data is kept aligned; the filter byte sits just before it.
	crowBuf := crowBase[15:]

	e.pipe.n = 0
	e.zw.Reset(&e.pipe)

	bpp := e.bpp >> 3
	if e.interlace {
		cur := make([]byte, rowSize+1)
		prev := make([]byte, rowSize+1)
		for pass := 0; pass < 7; pass++ {
			// A pass producing no pixels is omitted entirely.
			prs := passRowSize(pass, e.bpp, pict.Width)
			if prs <= 0 {
				continue
			}
			var top []byte
			for y := 0; y < pict.Height; y++ {
				if passYMask[pass]<<(y&7)&0x80 == 0 {
					continue
				}
				cur, prev = prev, cur
				interlacedRow(cur, prs, e.bpp, pass,
					pict.Pix[y*pict.Stride:], pict.Width)
				crow := e.chooseFilter(crowBuf, cur, top, prs, bpp)
				if _, err := e.zw.Write(crow); err != nil {
					return err
				}
				top = cur
			}
		}
	} else {
		var top []byte
		for y := 0; y < pict.Height; y++ {
			src := pict.Pix[y*pict.Stride : y*pict.Stride+rowSize]
			crow := e.chooseFilter(crowBuf, src, top, rowSize, bpp)
			if _, err := e.zw.Write(crow); err != nil {
				return err
			}
			top = src
		}
	}
	if err := e.zw.Close(); err != nil {
		return err
	}
	return e.pipe.flush()
}

// maxPacketSize bounds one frame's packet: headroom for the signature
// and header chunks, plus per row the deflate bound and the chunk
// framing of each buffer flush.
func (e *encoder) maxPacketSize() (int, error) {
	bound := int64(deflateBound(rowBytes(e.format, e.width)))
	framing := int64(12)
	if e.apng {
		framing += 4 // fdAT sequence number
	}
	n := int64(headerRoom) +
		int64(e.height)*(bound+framing*((bound+ioBufSize-1)/ioBufSize))
	if n > math.MaxInt32 {
		return 0, ErrTooLarge
	}
	return int(n), nil
}

// An Encoder emits one self-contained PNG packet per frame.
type Encoder struct {
	encoder
}

// NewEncoder creates a still-image encoder.
func NewEncoder(cfg *Config) (*Encoder, error) {
	var e Encoder
	if err := e.init(cfg, false); err != nil {
		return nil, err
	}
	return &e, nil
}

// Encode encodes one frame as a complete PNG file: signature, header
// chunks, image data and IEND.
func (e *Encoder) Encode(pict *Frame) ([]byte, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if err := e.checkFrame(pict); err != nil {
		return nil, err
	}
	max, err := e.maxPacketSize()
	if err != nil {
		return nil, err
	}
	e.bs = cursor{buf: make([]byte, max)}
	e.bs.putString(pngHeader)
	if err := e.writeHeaders(&e.bs, pict); err != nil {
		return nil, err
	}
	if err := e.encodeImage(pict); err != nil {
		return nil, err
	}
	if err := e.bs.writeChunk("IEND", nil); err != nil {
		return nil, err
	}
	return e.bs.bytes(), nil
}

// Close releases the encoder.  Packets already returned stay valid.
func (e *Encoder) Close() error { return e.close() }
