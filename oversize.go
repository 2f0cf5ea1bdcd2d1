// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package slabpool

import "unsafe"

// addrOf returns the address of a []byte's backing array. Oversize
// allocations live on the ordinary Go heap rather than in an mmap'd block,
// so unlike a slab slot this address is only ever exposed to the garbage
// collector once - the Allocator keeps buf itself alive in the oversize
// map for as long as the caller holds the Ref, which is what actually
// protects it from collection. The uintptr alone, stashed in a Ref, would
// not.
func addrOf(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(&buf[0]))
}
