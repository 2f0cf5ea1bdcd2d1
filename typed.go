// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package slabpool

import (
	"fmt"
	"unsafe"
)

// RefObject is a typed reference to a single object acquired via
// AcquireObject. It carries no conventional Go pointer, so it is safe to
// embed in a type that is itself stored off-heap.
type RefObject[T any] struct {
	ref Ref
}

// AcquireObject allocates room for one T and returns a typed reference to
// it. T must contain no pointers anywhere in its type - this is checked via
// reflection and panics if violated, since a pointer embedded in off-heap
// memory would never be visited by the garbage collector. The object's
// contents are uninitialised, exactly like a raw Acquire.
func AcquireObject[T any](a *Allocator) RefObject[T] {
	if err := containsNoPointers[T](); err != nil {
		panic(fmt.Errorf("slabpool: cannot acquire type containing pointers: %w", err))
	}

	var zero T
	size := int(unsafe.Sizeof(zero))
	ref := a.Acquire(size)
	return RefObject[T]{ref: ref}
}

// ReleaseObject returns the memory referenced by r to the allocator. After
// this call r must never be used again.
func ReleaseObject[T any](a *Allocator, r RefObject[T]) {
	var zero T
	a.Release(r.ref, int(unsafe.Sizeof(zero)))
}

// Value returns a *T over the acquired memory. Using it after the matching
// ReleaseObject call has unpredictable results.
func (r RefObject[T]) Value() *T {
	return (*T)(unsafe.Pointer(r.ref.addr))
}

// IsNil reports whether r is the null reference.
func (r RefObject[T]) IsNil() bool {
	return r.ref.IsNil()
}
