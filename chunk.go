// Copyright 2025 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"encoding/binary"
	"hash/crc32"
)

// A cursor writes into a caller-sized packet buffer.  Chunk writes
// verify room up front; running out means the worst-case packet bound
// was wrong, which is reported rather than silently truncated.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) room() int { return len(c.buf) - c.off }

func (c *cursor) bytes() []byte { return c.buf[:c.off] }

func (c *cursor) put(b []byte) {
	c.off += copy(c.buf[c.off:], b)
}

func (c *cursor) putString(s string) {
	c.off += copy(c.buf[c.off:], s)
}

func (c *cursor) putBE32(v uint32) {
	binary.BigEndian.PutUint32(c.buf[c.off:], v)
	c.off += 4
}

// writeChunk emits one {length, type, data, CRC} record.  The CRC
// covers the type and data, per the PNG spec.
func (c *cursor) writeChunk(name string, data []byte) error {
	if c.room() < len(data)+12 {
		return ErrShortBuffer
	}
	c.putBE32(uint32(len(data)))
	start := c.off
	c.putString(name)
	c.put(data)
	c.putBE32(crc32.ChecksumIEEE(c.buf[start:c.off]))
	return nil
}

// writeImageData emits deflate output as an image data chunk: IDAT for
// still images and the first animation frame, fdAT with the running
// sequence number afterwards.
func (e *encoder) writeImageData(data []byte) error {
	c := &e.bs
	if !e.apng || e.frameNum == 0 {
		return c.writeChunk("IDAT", data)
	}
	if c.room() < len(data)+16 {
		return ErrShortBuffer
	}
	c.putBE32(uint32(len(data) + 4))
	start := c.off
	c.putString("fdAT")
	c.putBE32(e.seq)
	c.put(data)
	c.putBE32(crc32.ChecksumIEEE(c.buf[start:c.off]))
	e.seq++
	return nil
}
