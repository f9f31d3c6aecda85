// Copyright 2025 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

import "github.com/unixdj/apng/internal/dsp"

// A Filter selects the per-row prediction filter.  The first five
// values are the PNG filter ids; FilterMixed scores all five per row
// and keeps the cheapest.
type Filter int

const (
	FilterNone Filter = iota
	FilterSub
	FilterUp
	FilterAverage
	FilterPaeth
	FilterMixed
)

var filterNames = []string{"none", "sub", "up", "avg", "paeth", "mixed"}

func (f Filter) String() string {
	if f < FilterNone || f > FilterMixed {
		return "invalid"
	}
	return filterNames[f]
}

// subLeft applies the Sub filter: dst[i] = src[i] - src[i-bpp].  A
// scalar head runs until the offset is 32-byte aligned, then the bulk
// is delegated to the dsp kernel.
func subLeft(dst, src []byte, bpp, size int) {
	copy(dst[:bpp], src[:bpp])
	i := bpp
	for n := min(32, size); i < n; i++ {
		dst[i] = src[i] - src[i-bpp]
	}
	dsp.DiffBytes(dst[i:size], src[i:size], src[i-bpp:])
}

// paethRow applies the Paeth filter.  The first bpp bytes have no left
// neighbour, so the predictor collapses to top.
func paethRow(dst, src, top []byte, size, bpp int) {
	for i := 0; i < bpp; i++ {
		dst[i] = src[i] - top[i]
	}
	for i := bpp; i < size; i++ {
		a := int(src[i-bpp])
		b := int(top[i])
		c := int(top[i-bpp])

		p := b - c
		pc := a - c

		pa := abs(p)
		pb := abs(pc)
		pc = abs(p + pc)

		if pa <= pb && pa <= pc {
			p = a
		} else if pb <= pc {
			p = b
		} else {
			p = c
		}
		dst[i] = src[i] - byte(p)
	}
}

// filterRow writes the filtered row into dst.  top is the previous
// row's raw pixels; it may be nil only for None and Sub.
func filterRow(dst []byte, filter Filter, src, top []byte, size, bpp int) {
	switch filter {
	case FilterNone:
		copy(dst[:size], src)
	case FilterSub:
		subLeft(dst, src, bpp, size)
	case FilterUp:
		dsp.DiffBytes(dst[:size], src, top)
	case FilterAverage:
		for i := 0; i < bpp; i++ {
			dst[i] = src[i] - top[i]>>1
		}
		for i := bpp; i < size; i++ {
			dst[i] = src[i] - byte((int(src[i-bpp])+int(top[i]))>>1)
		}
	case FilterPaeth:
		paethRow(dst, src, top, size, bpp)
	}
}

// chooseFilter filters one row into dst and returns the filter byte
// followed by size filtered bytes.  With no previous row every filter
// other than None downgrades to Sub.  In mixed mode all five candidates are scored by
// the sum of absolute signed bytes (the filter byte included); a
// strictly lower cost wins, so ties keep the earliest candidate.  For
// mixed mode dst must hold two size+16 slots.
func (e *encoder) chooseFilter(dst, src, top []byte, size, bpp int) []byte {
	pred := e.filter
	if top == nil && pred != FilterNone {
		pred = FilterSub
	}
	if pred != FilterMixed {
		filterRow(dst[1:], pred, src, top, size, bpp)
		dst[0] = byte(pred)
		return dst[:size+1]
	}
	buf1, buf2 := dst, dst[size+16:]
	bcost := int(^uint(0) >> 1)
	for f := FilterNone; f <= FilterPaeth; f++ {
		filterRow(buf1[1:], f, src, top, size, bpp)
		buf1[0] = byte(f)
		cost := 0
		for _, v := range buf1[:size+1] {
			cost += abs(int(int8(v)))
		}
		if cost < bcost {
			bcost = cost
			buf1, buf2 = buf2, buf1
		}
	}
	return buf2[:size+1]
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
