// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// Package slabpool is a size-classed slab allocator for small, short-lived
// fixed-size objects in a multi-threaded (multi-goroutine) process.
//
// It exists to take churn of objects at or below 512 bytes off the Go heap's
// hot path: 26 size classes, each backed by mmap'd blocks carved into
// equal-sized slots, served first from a per-owner thread magazine, then
// from a lock-free global free stack, and finally from a bump pointer into
// the current block. Allocations above 512 bytes are not this allocator's
// concern; Acquire delegates them straight to the Go runtime.
//
// # Usage
//
//	a := slabpool.New()
//	ref := a.Acquire(24)
//	defer a.Release(ref, 24)
//
// High-throughput callers that want the full benefit of the thread
// magazine - goroutines or worker-pool slots that repeatedly acquire and
// release objects of the same few sizes - should pin a Cache and reuse it.
// A Cache works in size-class indices and raw slot addresses rather than in
// byte sizes and Refs:
//
//	c := a.Pin()
//	defer c.Unpin()
//	slot := c.Acquire(class)
//	c.Release(class, slot)
//
// Go has no OS-thread-local storage and no thread-exit hook available to
// user code, so the Cache returned by Pin plays the role the data model's
// thread magazine plays in a systems language: it is an explicit handle the
// caller owns for as long as it wants the fast path, and a finalizer flushes
// it back to the global free stacks if the caller forgets to Unpin. See
// Allocator.Pin and the cache package for the full reasoning.
//
// Typed helpers (AcquireObject/ReleaseObject) build on Acquire/Release to
// hand back a RefObject[T], whose Value is a live *T, instead of a raw Ref,
// mirroring the convenience
// typedAcquire<T>/typedRelease<T> pair from the allocator's original
// interface.
package slabpool

import (
	"fmt"
	"sync"

	"github.com/fmstephe/slabpool/internal/cache"
	"github.com/fmstephe/slabpool/internal/sizeclass"
	"github.com/fmstephe/slabpool/internal/slab"
)

// Allocator is the dispatch facade: the single value a process constructs
// once and shares across every goroutine that wants to Acquire/Release
// small objects. Construction is the only unsafe-for-concurrency step;
// once New returns, every method on Allocator is safe to call
// from any number of goroutines concurrently.
type Allocator struct {
	slabs []*slab.Slab

	// pool hands out *cache.Cache values for the convenience Acquire /
	// Release path below, approximating per-thread magazine affinity via
	// sync.Pool's own per-P private slot: a goroutine that repeatedly
	// calls Acquire/Release tends to Get back the same Cache it last Put,
	// preserving that Cache's magazines across calls. Callers who want a
	// guaranteed stable handle instead of this best-effort affinity
	// should use Pin.
	pool sync.Pool

	oversizeMu sync.Mutex
	oversize   map[uintptr][]byte
}

// New creates an Allocator using the default block size for every size
// class (see the per-class block size schedule in package slab).
func New() *Allocator {
	return newAllocator()
}

func newAllocator() *Allocator {
	a := &Allocator{
		slabs:    make([]*slab.Slab, sizeclass.ClassCount),
		oversize: make(map[uintptr][]byte),
	}
	for i := range a.slabs {
		a.slabs[i] = slab.New(slab.NewConfig(i))
	}
	a.pool.New = func() any {
		return cache.New(a.slabs)
	}
	return a
}

// Acquire returns a Ref to size bytes of uninitialised memory. It returns
// the null Ref if size is 0. Allocations above MaxSlot bytes are delegated
// to the Go runtime rather than served from any slab.
func (a *Allocator) Acquire(size int) Ref {
	if size <= 0 {
		return Ref{}
	}
	if size > sizeclass.MaxSlot {
		return a.acquireOversize(size)
	}

	class, _ := sizeclass.Of(size)
	c := a.pool.Get().(*cache.Cache)
	slot := c.Acquire(class)
	a.pool.Put(c)

	return Ref{addr: slot, class: class}
}

// Release returns a previously acquired Ref to the allocator. size must be
// the same size passed to the Acquire call that produced ref - the
// allocator does not store per-slot size metadata, so a mismatched size is
// a programmer error the allocator cannot detect. Releasing the null Ref is
// a no-op.
func (a *Allocator) Release(ref Ref, size int) {
	if ref.IsNil() {
		return
	}
	if ref.oversize || size > sizeclass.MaxSlot {
		a.releaseOversize(ref)
		return
	}

	c := a.pool.Get().(*cache.Cache)
	c.Release(ref.class, ref.addr)
	a.pool.Put(c)
}

// Pin returns a Cache the caller owns until it calls Unpin. Use Pin for any
// goroutine or worker that will repeatedly Acquire/Release objects and
// wants a guaranteed-stable thread magazine rather than the best-effort
// affinity the plain Acquire/Release methods get from sync.Pool.
func (a *Allocator) Pin() *cache.Cache {
	return cache.New(a.slabs)
}

// Destroy releases every block owned by every slab back to the operating
// system. After Destroy returns the Allocator is unusable. Any slots still
// parked in a pinned Cache or in the sync.Pool-backed default cache are
// abandoned along with the blocks that contain them.
func (a *Allocator) Destroy() error {
	for _, s := range a.slabs {
		if err := s.Destroy(); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns the per-class lifetime counters across every slab.
func (a *Allocator) Stats() []slab.Stats {
	stats := make([]slab.Stats, len(a.slabs))
	for i, s := range a.slabs {
		stats[i] = s.Stats()
	}
	return stats
}

func (a *Allocator) acquireOversize(size int) Ref {
	buf := make([]byte, size)
	addr := addrOf(buf)

	a.oversizeMu.Lock()
	a.oversize[addr] = buf
	a.oversizeMu.Unlock()

	return Ref{addr: addr, oversize: true}
}

func (a *Allocator) releaseOversize(ref Ref) {
	a.oversizeMu.Lock()
	defer a.oversizeMu.Unlock()

	if _, ok := a.oversize[ref.addr]; !ok {
		panic(fmt.Errorf("slabpool: release of unknown oversize allocation %#x", ref.addr))
	}
	delete(a.oversize, ref.addr)
}
