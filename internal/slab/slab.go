// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// Package slab implements the per-size-class slab manager: an append-only
// chain of mmap'd blocks, a bump-pointer cursor into the current block, and
// a lock-free global free stack of reclaimed slots.
package slab

import (
	"sync"
	"sync/atomic"
)

// Stats reports the lifetime counters for a single slab. Allocs/Frees count
// calls that reached this slab (i.e. missed any thread magazine); Reused
// counts how many of those allocs were served by the free stack rather than
// the bump cursor.
type Stats struct {
	Allocs int
	Frees  int
	Reused int
	Blocks int
}

// Slab owns every block backing one size class, and the two structures used
// to hand out slots from those blocks: the bump cursor for never-used slots,
// and the free stack for reclaimed ones.
type Slab struct {
	conf Config

	// blockMu guards firstBlock, curSlot, lastSlot and blocks - every
	// mutation of the block chain or the bump cursor happens with this
	// held. This is the single blocking point on the slab path; every
	// other path here is lock-free.
	blockMu    sync.Mutex
	firstBlock uintptr
	curSlot    uintptr
	lastSlot   uintptr
	blocks     int

	free freeStack

	allocs atomic.Int64
	frees  atomic.Int64
	reused atomic.Int64
}

// New creates a Slab for the given Config. No blocks are mapped until the
// first allocation.
func New(conf Config) *Slab {
	return &Slab{conf: conf}
}

// Config returns the slab's immutable configuration.
func (s *Slab) Config() Config {
	return s.conf
}

// Allocate returns a fresh or reclaimed slot, in the priority order the data
// model specifies: the global free stack first, then the bump cursor,
// mapping a new block if the current one is exhausted. The thread-magazine
// hit that precedes both of these lives one layer up, in package cache,
// since it is the one part of the allocate path with no shared state at all.
func (s *Slab) Allocate() uintptr {
	s.allocs.Add(1)

	if slot, ok := s.free.pop(); ok {
		s.reused.Add(1)
		return slot
	}

	s.blockMu.Lock()
	defer s.blockMu.Unlock()

	if s.curSlot >= s.lastSlot {
		s.allocateNewBlockLocked()
	}

	slot := s.curSlot
	s.curSlot += uintptr(s.conf.Stride)
	return slot
}

// allocateNewBlockLocked maps a new block and resets the bump cursor into
// it. Must be called with blockMu held. If the underlying mmap panics, the
// slab's state has not yet been touched, so it is left consistent - there is
// no partially linked block and no advanced cursor.
func (s *Slab) allocateNewBlockLocked() {
	hdrAddr, curSlot, lastSlot := newBlock(s.conf, s.firstBlock)
	s.firstBlock = hdrAddr
	s.curSlot = curSlot
	s.lastSlot = lastSlot
	s.blocks++
}

// Free pushes a single slot directly onto the global free stack, for callers
// who bypass the magazine layer entirely. The thread magazine cache does not
// use it; it always returns slots through FreeChain.
func (s *Slab) Free(slot uintptr) {
	s.frees.Add(1)
	s.free.push(slot)
}

// FreeChain splices an entire magazine chain onto the global free stack in a
// single CAS. head and tail must be the first and last elements of a chain
// already linked via SetNext, with n the number of slots in it.
func (s *Slab) FreeChain(head, tail uintptr, n int) {
	s.frees.Add(int64(n))
	s.free.pushChain(head, tail)
}

// Destroy walks the block chain and returns every block to the operating
// system. After Destroy returns the slab is unusable; any slots still
// cached in a thread magazine or sitting on the free stack are abandoned -
// their memory is released along with the block that contains them.
func (s *Slab) Destroy() error {
	s.blockMu.Lock()
	defer s.blockMu.Unlock()

	addr := s.firstBlock
	for addr != 0 {
		next := blockNext(addr)
		if err := munmapBlock(addr, s.conf.BlockSize); err != nil {
			return err
		}
		addr = next
	}

	s.firstBlock = 0
	s.curSlot = 0
	s.lastSlot = 0
	s.blocks = 0
	return nil
}

// Stats reports this slab's lifetime counters.
func (s *Slab) Stats() Stats {
	s.blockMu.Lock()
	blocks := s.blocks
	s.blockMu.Unlock()

	return Stats{
		Allocs: int(s.allocs.Load()),
		Frees:  int(s.frees.Load()),
		Reused: int(s.reused.Load()),
		Blocks: blocks,
	}
}
