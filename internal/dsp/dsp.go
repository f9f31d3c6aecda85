// Copyright 2025 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dsp provides byte-wise kernels for the encoder's row filters
// and frame disposal.  The loops are written so the compiler can
// vectorise them.
package dsp

// DiffBytes writes the byte-wise difference a-b into dst.
// All three slices must be at least len(dst) bytes long.
func DiffBytes(dst, a, b []byte) {
	a = a[:len(dst)]
	b = b[:len(dst)]
	for i := range dst {
		dst[i] = a[i] - b[i]
	}
}

// ZeroFill sets every byte of b to zero.
func ZeroFill(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
