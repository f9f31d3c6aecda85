// Copyright 2025 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import (
	"github.com/klauspost/compress/zlib"
)

// ioBufSize is the deflate output granularity: full buffers become one
// IDAT or fdAT chunk each.
const ioBufSize = 4096

// A CompressionLevel trades compression speed for output size.
// Positive values 1 through 9 select the numeric deflate level.
type CompressionLevel int

const (
	DefaultCompression CompressionLevel = 0
	NoCompression      CompressionLevel = -1
	BestSpeed          CompressionLevel = -2
	BestCompression    CompressionLevel = -3
)

func (l CompressionLevel) zlib() (int, bool) {
	switch {
	case l == DefaultCompression:
		return zlib.DefaultCompression, true
	case l == NoCompression:
		return zlib.NoCompression, true
	case l == BestSpeed:
		return zlib.BestSpeed, true
	case l == BestCompression:
		return zlib.BestCompression, true
	case l >= 1 && l <= 9:
		return int(l), true
	}
	return 0, false
}

// A zpipe is the deflate output sink.  It buffers compressed bytes and
// hands each full ioBufSize block, and the final partial one, to emit.
type zpipe struct {
	emit func([]byte) error
	n    int
	buf  [ioBufSize]byte
}

func (p *zpipe) Write(b []byte) (int, error) {
	n := len(b)
	for len(b) > 0 {
		m := copy(p.buf[p.n:], b)
		p.n += m
		b = b[m:]
		if p.n == ioBufSize {
			p.n = 0
			if err := p.emit(p.buf[:]); err != nil {
				return n - len(b), err
			}
		}
	}
	return n, nil
}

// flush emits any buffered tail after the deflate stream has ended.
func (p *zpipe) flush() error {
	if p.n == 0 {
		return nil
	}
	n := p.n
	p.n = 0
	return p.emit(p.buf[:n])
}

// deflateBound returns a worst-case zlib stream size for n input bytes:
// the deflate bound for 15-bit windows plus the zlib header and
// checksum.
func deflateBound(n int) int {
	return n + (n+7)>>3 + (n+63)>>6 + 5 + 6
}

// newDeflater creates the per-encoder deflate stream.  The stream is
// reused across frames via Reset rather than reallocated.
func newDeflater(p *zpipe, level CompressionLevel) (*zlib.Writer, error) {
	zl, ok := level.zlib()
	if !ok {
		return nil, ErrLevel
	}
	return zlib.NewWriterLevel(p, zl)
}
