// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package slabpool

import "unsafe"

// Ref is an opaque handle to a single acquired allocation, returned by
// Acquire and consumed by Release. It carries just enough information for
// Release to route back to the right slab (or the oversize path) without
// the allocator needing to store size metadata alongside every slot - the
// caller is always expected to supply the original size again, exactly as
// the dispatch facade's contract describes.
//
// The zero Ref is the null reference: Acquire returns it for a size of 0
// or less, and Release treats it as a no-op. Allocation failures never
// return it; a failed block mmap panics instead.
type Ref struct {
	addr     uintptr
	class    int
	oversize bool
}

// IsNil reports whether r is the null reference.
func (r Ref) IsNil() bool {
	return r.addr == 0
}

// Bytes returns a []byte view of the size bytes starting at r. size must
// not exceed the size originally passed to Acquire. The caller must not
// retain the returned slice past the matching Release call.
func (r Ref) Bytes(size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(r.addr)), size)
}
