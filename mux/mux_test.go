// Copyright 2025 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mux_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/png"
	"testing"

	"github.com/unixdj/apng"
	"github.com/unixdj/apng/mux"
)

func testFrame(w, h int, seed byte) *apng.Frame {
	f := apng.NewFrame(apng.RGBA, w, h)
	for i := range f.Pix {
		f.Pix[i] = byte(i*13) ^ seed
	}
	return f
}

type chunk struct {
	typ  string
	data []byte
}

func parseFile(t *testing.T, b []byte) []chunk {
	t.Helper()
	const sig = "\x89PNG\r\n\x1a\n"
	if len(b) < 8 || string(b[:8]) != sig {
		t.Fatal("bad signature")
	}
	b = b[8:]
	var cc []chunk
	for len(b) > 0 {
		if len(b) < 12 {
			t.Fatal("trailing garbage")
		}
		n := binary.BigEndian.Uint32(b)
		typ := string(b[4:8])
		if uint32(len(b)) < n+12 {
			t.Fatalf("%s: truncated", typ)
		}
		if crc := binary.BigEndian.Uint32(b[8+n:]); crc !=
			crc32.ChecksumIEEE(b[4:8+n]) {
			t.Fatalf("%s: bad crc", typ)
		}
		cc = append(cc, chunk{typ, b[8 : 8+n]})
		b = b[n+12:]
	}
	return cc
}

func assemble(t *testing.T, frames ...*apng.Frame) []byte {
	t.Helper()
	f0 := frames[0]
	enc, err := apng.NewAnimEncoder(&apng.Config{
		Format: f0.Format, Width: f0.Width, Height: f0.Height,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()
	var buf bytes.Buffer
	m := mux.NewWriter(&buf)
	m.SetLoopCount(3)
	emit := func(pkt *apng.Packet) {
		if pkt == nil {
			return
		}
		if pkt.ExtraData != nil {
			m.SetExtradata(pkt.ExtraData)
		}
		if err := m.WriteFrame(pkt.Data, 5, 100); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range frames {
		pkt, err := enc.Encode(f)
		if err != nil {
			t.Fatal(err)
		}
		emit(pkt)
	}
	pkt, err := enc.Encode(nil)
	if err != nil {
		t.Fatal(err)
	}
	emit(pkt)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAssembleAnimation(t *testing.T) {
	b := assemble(t, testFrame(8, 8, 1), testFrame(8, 8, 2),
		testFrame(8, 8, 3))
	cc := parseFile(t, b)

	if cc[0].typ != "IHDR" {
		t.Fatalf("first chunk %q", cc[0].typ)
	}
	if last := cc[len(cc)-1]; last.typ != "IEND" {
		t.Fatalf("last chunk %q", last.typ)
	}

	var actl, fctl, idat, fdat int
	var seqs []uint32
	for _, c := range cc {
		switch c.typ {
		case "acTL":
			actl++
			if n := binary.BigEndian.Uint32(c.data); n != 3 {
				t.Fatalf("acTL frame count %d", n)
			}
			if binary.BigEndian.Uint32(c.data[4:]) != 3 {
				t.Fatal("acTL loop count not set")
			}
		case "fcTL":
			fctl++
			seqs = append(seqs, binary.BigEndian.Uint32(c.data))
			if n := binary.BigEndian.Uint16(c.data[20:]); n != 5 {
				t.Fatalf("delay_num %d, want 5", n)
			}
			if d := binary.BigEndian.Uint16(c.data[22:]); d != 100 {
				t.Fatalf("delay_den %d, want 100", d)
			}
		case "IDAT":
			idat++
		case "fdAT":
			fdat++
			seqs = append(seqs, binary.BigEndian.Uint32(c.data))
		}
	}
	if actl != 1 || fctl != 3 || idat == 0 || fdat == 0 {
		t.Fatalf("chunk counts acTL=%d fcTL=%d IDAT=%d fdAT=%d",
			actl, fctl, idat, fdat)
	}
	for i, s := range seqs {
		if s != uint32(i) {
			t.Fatalf("sequence %v", seqs)
		}
	}
	// acTL must precede the image data.
	var seenActl bool
	for _, c := range cc {
		switch c.typ {
		case "acTL":
			seenActl = true
		case "IDAT", "fdAT":
			if !seenActl {
				t.Fatal("acTL after image data")
			}
		}
	}
}

func TestAssembleSingleFrame(t *testing.T) {
	f := testFrame(8, 8, 9)
	b := assemble(t, f)
	cc := parseFile(t, b)
	for _, c := range cc {
		switch c.typ {
		case "acTL", "fcTL", "fdAT":
			t.Fatalf("animation chunk %q in single-frame output", c.typ)
		}
	}
	// The degenerate file is a plain PNG of the only frame.
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	n, ok := img.(*image.NRGBA)
	if !ok {
		t.Fatalf("decoded %T", img)
	}
	for y := 0; y < 8; y++ {
		if !bytes.Equal(n.Pix[y*n.Stride:][:8*4], f.Pix[y*f.Stride:][:8*4]) {
			t.Fatalf("row %d differs", y)
		}
	}
}

func TestWriterErrors(t *testing.T) {
	var buf bytes.Buffer
	m := mux.NewWriter(&buf)
	if err := m.WriteFrame([]byte("short"), 1, 100); err != mux.ErrPacket {
		t.Fatalf("short packet: %v", err)
	}
	if err := m.Close(); err != mux.ErrNoFrames {
		t.Fatalf("close without frames: %v", err)
	}
	if err := m.Close(); err != mux.ErrClosed {
		t.Fatalf("double close: %v", err)
	}
}
