// Copyright 2025 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"encoding/binary"
	"hash/crc32"
)

// APNG frame disposal and blend operations, as carried in fcTL.
const (
	DisposeNone byte = iota
	DisposeBackground
	DisposePrevious
)

const (
	BlendSource byte = iota
	BlendOver
)

// A FrameControl holds the fcTL parameters of one animation frame.
type FrameControl struct {
	SequenceNumber uint32
	Width, Height  uint32
	XOffset        uint32
	YOffset        uint32
	DelayNum       uint16
	DelayDen       uint16
	DisposeOp      byte
	BlendOp        byte
}

const fctlLength = 26

func (f *FrameControl) payload(b []byte) {
	binary.BigEndian.PutUint32(b, f.SequenceNumber)
	binary.BigEndian.PutUint32(b[4:], f.Width)
	binary.BigEndian.PutUint32(b[8:], f.Height)
	binary.BigEndian.PutUint32(b[12:], f.XOffset)
	binary.BigEndian.PutUint32(b[16:], f.YOffset)
	binary.BigEndian.PutUint16(b[20:], f.DelayNum)
	binary.BigEndian.PutUint16(b[22:], f.DelayDen)
	b[24] = f.DisposeOp
	b[25] = f.BlendOp
}

// A Packet is one emitted animation frame: an fcTL chunk followed by
// the frame's image data chunks.  ExtraData is set on the first packet
// only and holds the global header block, signature through the last
// chunk before the image data.
type Packet struct {
	Data      []byte
	PTS       int64
	ExtraData []byte
}

// An AnimEncoder emits APNG frame packets with one frame of delay: a
// frame's packet is published only when the next Encode call reveals
// which disposal the inter-frame search chose for it.
type AnimEncoder struct {
	encoder

	paletteSum  uint32
	lastFrame   *Frame // most recent source frame, pending emission
	prevFrame   *Frame // dispose-to-previous target canvas
	lastFCTL    FrameControl
	lastPkt     []byte // lastFrame's encoded image data
	lastPktSize int
	extra       []byte
	extraSent   bool
}

// NewAnimEncoder creates an animation encoder.
func NewAnimEncoder(cfg *Config) (*AnimEncoder, error) {
	var a AnimEncoder
	if err := a.init(cfg, true); err != nil {
		return nil, err
	}
	return &a, nil
}

// paletteCRC checksums a 256-entry palette block.
func paletteCRC(pal []uint32) uint32 {
	var b [1024]byte
	for i, v := range pal[:256] {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return crc32.ChecksumIEEE(b[:])
}

// Encode consumes one frame, or flushes with a nil frame, and returns
// the packet of the previously consumed frame, if any.  The frame's
// pixel data must stay unmodified until the next Encode call.  Delay
// fields in the emitted fcTL are zero; the muxer fills them in.
func (a *AnimEncoder) Encode(pict *Frame) (*Packet, error) {
	if a.closed {
		return nil, ErrClosed
	}
	if pict != nil && a.frameNum > 0 && a.lastFrame == nil {
		return nil, ErrFlushed
	}
	if pict != nil {
		if err := a.checkFrame(pict); err != nil {
			return nil, err
		}
		if a.colorType == ctPalette {
			// APNG has one PLTE for the whole animation.
			sum := paletteCRC(pict.Palette)
			if a.frameNum == 0 {
				a.paletteSum = sum
			} else if sum != a.paletteSum {
				return nil, ErrPalette
			}
		}
	}

	max, err := a.maxPacketSize()
	if err != nil {
		return nil, err
	}

	var pkt *Packet
	if a.frameNum == 0 {
		if pict == nil {
			return nil, nil
		}
		hdr := cursor{buf: make([]byte, headerRoom)}
		hdr.putString(pngHeader)
		if err := a.writeHeaders(&hdr, pict); err != nil {
			return nil, err
		}
		a.extra = hdr.bytes()
		a.lastPkt = make([]byte, max)
	} else if a.lastFrame != nil {
		pkt = &Packet{
			Data: make([]byte, max),
			PTS:  a.lastFrame.PTS,
		}
		copy(pkt.Data, a.lastPkt[:a.lastPktSize])
		pkt.Data = pkt.Data[:a.lastPktSize]
	}

	var fctl FrameControl
	if pict != nil {
		// Encode the new frame into the holding buffer, leaving
		// room at the front for the fcTL written on emission.
		fctl.SequenceNumber = a.seq
		a.seq++
		a.bs = cursor{buf: a.lastPkt, off: fctlLength + 12}
		if err := a.encodeAnimFrame(pict, &fctl); err != nil {
			return nil, err
		}
	} else {
		// Nothing follows the pending frame, so its disposal is
		// irrelevant; normalise it.
		a.lastFCTL.DisposeOp = DisposeNone
	}

	if pkt != nil {
		front := cursor{buf: pkt.Data}
		a.lastFCTL.payload(a.tmp[:fctlLength])
		if err := front.writeChunk("fcTL", a.tmp[:fctlLength]); err != nil {
			return nil, err
		}
		if !a.extraSent {
			pkt.ExtraData = a.extra
			a.extraSent = true
		}
	}

	if pict != nil {
		// Update the dispose-to-previous canvas with the frame
		// being replaced, disposed as chosen by the search.
		if a.lastFrame != nil && a.lastFCTL.DisposeOp != DisposePrevious {
			if a.prevFrame == nil {
				a.prevFrame = NewFrame(a.format, a.width, a.height)
			}
			a.prevFrame.copyPix(a.lastFrame)
			if a.lastFCTL.DisposeOp == DisposeBackground {
				a.prevFrame.zeroRect(a.lastFCTL.XOffset,
					a.lastFCTL.YOffset, a.lastFCTL.Width,
					a.lastFCTL.Height, (a.bpp+7)>>3)
			}
		}
		a.lastFrame = pict
		a.lastFCTL = fctl
		a.lastPktSize = a.bs.off
		a.frameNum++
	} else {
		a.lastFrame = nil
	}
	return pkt, nil
}

// Close releases the encoder and any buffered frame without emitting
// it.  Packets already returned stay valid.
func (a *AnimEncoder) Close() error {
	if err := a.close(); err != nil {
		return err
	}
	a.lastFrame = nil
	a.prevFrame = nil
	a.lastPkt = nil
	return nil
}
