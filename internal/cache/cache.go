// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// Package cache implements the thread magazine: a bounded, per-owner cache
// of freed slots that turns most acquire/release pairs into plain pointer
// swings instead of atomic operations on a slab's global free stack.
//
// Go gives user code no access to real OS-thread-local storage and no
// thread-exit hook, so the "thread" in thread magazine is replaced here with
// an explicit Cache handle: a value a goroutine, worker, or connection pins
// for as long as it wants the fast path, and unpins when it is done. A
// runtime finalizer acts as the thread-exit hook the data model calls for,
// flushing any slots a caller forgot to release explicitly back to their
// slabs' global free stacks so they are never stranded.
package cache

import (
	"runtime"

	"github.com/fmstephe/slabpool/internal/slab"
)

// MagazineCap is the default bound on how many freed slots a single
// magazine will hold before it flushes its entire chain to the global free
// stack.
const MagazineCap = 100

// magazine is a thread-owned singly linked LIFO of freed slots for one size
// class. It is never touched by any goroutine other than the one holding
// the enclosing Cache, so it needs no atomics at all.
type magazine struct {
	head uintptr
	len  int
}

func (m *magazine) push(slot uintptr) {
	slab.SetNext(slot, m.head)
	m.head = slot
	m.len++
}

func (m *magazine) pop() (uintptr, bool) {
	if m.head == 0 {
		return 0, false
	}
	slot := m.head
	m.head = slab.GetNext(slot)
	m.len--
	return slot, true
}

// drain detaches the whole chain from the magazine, returning its head,
// tail and length, and resets the magazine to empty.
func (m *magazine) drain() (head, tail uintptr, n int) {
	if m.head == 0 {
		return 0, 0, 0
	}
	head = m.head
	tail = slab.ChainTail(head)
	n = m.len
	m.head = 0
	m.len = 0
	return head, tail, n
}

// Cache is a single owner's view onto every slab: one magazine per size
// class. Cache is not safe for concurrent use - it is meant to be pinned by
// exactly one goroutine (or handed to exactly one worker) at a time.
type Cache struct {
	slabs []*slab.Slab
	mags  []magazine
	cap   int
}

// New creates a Cache over the given slabs (one per size class, in class
// order) and registers a finalizer that flushes any still-cached slots back
// to the global free stacks if the Cache is garbage collected without ever
// being explicitly unpinned.
func New(slabs []*slab.Slab) *Cache {
	return NewWithCap(slabs, MagazineCap)
}

// NewWithCap is New with an explicit magazine cap, primarily for tests that
// need to exercise the overflow-flush path without allocating thousands of
// slots.
func NewWithCap(slabs []*slab.Slab, cap int) *Cache {
	c := &Cache{
		slabs: slabs,
		mags:  make([]magazine, len(slabs)),
		cap:   cap,
	}
	runtime.SetFinalizer(c, func(c *Cache) {
		c.Flush()
	})
	return c
}

// Acquire returns a slot for size class idx: a magazine hit if one is
// available, otherwise whatever the slab itself can produce (a global free
// stack pop, or a bump allocation).
func (c *Cache) Acquire(idx int) uintptr {
	if slot, ok := c.mags[idx].pop(); ok {
		return slot
	}
	return c.slabs[idx].Allocate()
}

// Release pushes slot onto this Cache's magazine for class idx. If the
// magazine has grown past its cap, the entire chain is spliced onto the
// slab's global free stack in one atomic push and the magazine resets to
// empty.
func (c *Cache) Release(idx int, slot uintptr) {
	m := &c.mags[idx]
	m.push(slot)
	if m.len > c.cap {
		head, tail, n := m.drain()
		c.slabs[idx].FreeChain(head, tail, n)
	}
}

// Flush empties every magazine in this Cache back to the global free
// stacks. Safe to call multiple times; a drained magazine is a no-op.
func (c *Cache) Flush() {
	for idx := range c.mags {
		m := &c.mags[idx]
		if m.len == 0 {
			continue
		}
		head, tail, n := m.drain()
		c.slabs[idx].FreeChain(head, tail, n)
	}
}

// Unpin flushes the Cache and detaches its finalizer. Callers that pin a
// Cache explicitly should defer Unpin; the finalizer set up in New remains
// only as a safety net for callers who forget.
func (c *Cache) Unpin() {
	c.Flush()
	runtime.SetFinalizer(c, nil)
}

// Len reports how many slots are currently cached for class idx. Exposed
// for tests exercising the magazine-flush scenario.
func (c *Cache) Len(idx int) int {
	return c.mags[idx].len
}
