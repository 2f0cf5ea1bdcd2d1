// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package slab

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// blockHeader sits at the very start of every block. next links to the
// previously allocated block, forming the slab's append-only LIFO block
// chain. Blocks are obtained directly from the operating system via mmap,
// rather than from the Go heap, so that the slots carved out of them hold no
// conventional Go pointers and are never visited by the garbage collector -
// the same reasoning the teacher lineage's pointerstore.MmapSlab relies on.
type blockHeader struct {
	next uintptr
}

var headerSize = uintptr(unsafe.Sizeof(blockHeader{}))

// newBlock mmaps a fresh block of conf.BlockSize bytes, links it onto the
// chain headed by prevBlock, and returns the new block's header address
// along with the padded first-slot address and the one-past-last address a
// bump cursor must stay below.
//
// The first slot offset is computed from the full header size, then padded
// up to conf.Stride, never the bare sizeof(Slot*) the source material used -
// that shortcut only happens to work while the header holds a single
// pointer, and stops working the moment a second field is added.
func newBlock(conf Config, prevBlock uintptr) (hdrAddr, curSlot, lastSlot uintptr) {
	data, err := unix.Mmap(-1, 0, conf.BlockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(fmt.Errorf("slab: cannot mmap block of %d bytes: %w", conf.BlockSize, err))
	}

	start := uintptr(unsafe.Pointer(&data[0]))
	hdr := (*blockHeader)(unsafe.Pointer(start))
	hdr.next = prevBlock

	body := start + headerSize
	stride := uintptr(conf.Stride)
	padded := body
	if rem := body % stride; rem != 0 {
		padded += stride - rem
	}

	blockEnd := start + uintptr(conf.BlockSize)
	last := blockEnd - uintptr(conf.SlotSize) + 1

	return start, padded, last
}

// munmapBlock returns a single block's memory to the operating system.
func munmapBlock(addr uintptr, size int) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return unix.Munmap(b)
}

func blockNext(addr uintptr) uintptr {
	return (*blockHeader)(unsafe.Pointer(addr)).next
}
