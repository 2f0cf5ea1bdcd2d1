// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

package slab

import "github.com/fmstephe/slabpool/internal/sizeclass"

// Config is the immutable configuration of a single size-classed slab. It
// mirrors the role of pointerstore.AllocConfig in the allocator's teacher
// lineage, but is driven by a fixed slot size rather than a requested one -
// our slot sizes always come from the sizeclass table.
type Config struct {
	SlotSize int
	// Stride is the distance, in bytes, between the start of one slot and
	// the start of the next inside a block. It is at least SlotSize and
	// at least sizeclass.CacheLine, so that every slot handed out by this
	// slab - not just the first in a block - lands on a cache-line
	// boundary. Small classes therefore waste some space to buy false
	// sharing protection, which is exactly the trade the data model asks
	// for ("Alignment of the first slot... is at least max(slotSize,
	// 64)... to avoid false sharing between slots of the smallest
	// classes").
	Stride int
	// BlockSize is the size of each contiguous block obtained from the
	// system allocator, chosen from the slot size per the block-size
	// schedule: <=64B -> 4KiB, <=192B -> 8KiB, else 16KiB. All three are
	// powers of two; the source material's 8092-byte branch is a typo
	// this allocator does not reproduce.
	BlockSize int
}

// NewConfig builds the Config for a slab serving classIdx.
func NewConfig(classIdx int) Config {
	slotSize := sizeclass.SlotSize(classIdx)

	stride := slotSize
	if stride < sizeclass.CacheLine {
		stride = sizeclass.CacheLine
	}

	var blockSize int
	switch {
	case slotSize <= 64:
		blockSize = 4096
	case slotSize <= 192:
		blockSize = 8192
	default:
		blockSize = 16384
	}

	return Config{
		SlotSize:  slotSize,
		Stride:    stride,
		BlockSize: blockSize,
	}
}
