// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.

// Package bench builds synthetic acquire/release workloads and drives them
// against an Allocator, reporting how many acquires and releases it made. It
// exists to exercise the allocator the way cmd/slabpoolbench does, outside
// of the test suite.
package bench

import (
	"math/rand"

	"github.com/fmstephe/flib/fmath"

	"github.com/fmstephe/slabpool"
)

// Sizes returns a spread of n synthetic request sizes covering the slab
// path and a few oversize requests. Each size is rounded up to the next
// power of two, the same rounding the teacher lineage applies when sizing a
// single store from a requested object size - here it turns an arbitrary
// seed size into one that lands cleanly on (or just under) a size-class
// boundary, which makes the resulting workload exercise class edges rather
// than only their midpoints.
func Sizes(n int, seed int64) []int {
	r := rand.New(rand.NewSource(seed))
	sizes := make([]int, n)
	for i := range sizes {
		// Seed sizes span 1..600, deliberately reaching past MaxSlot
		// so a fraction of the workload takes the oversize path.
		seedSize := r.Intn(600) + 1
		rounded := fmath.NxtPowerOfTwo(int64(seedSize))
		sizes[i] = int(rounded)
	}
	return sizes
}

// Result reports what a Run observed.
type Result struct {
	Acquires int
	Releases int
}

// Run drives rounds sequential acquire/release passes over sizes through
// the allocator's sync.Pool-backed convenience path, simulating one
// long-lived worker goroutine reusing the same allocator handle.
func Run(a *slabpool.Allocator, sizes []int, rounds int) Result {
	result := Result{}
	for round := 0; round < rounds; round++ {
		refs := make([]slabpool.Ref, len(sizes))
		for i, size := range sizes {
			refs[i] = a.Acquire(size)
			result.Acquires++
		}
		for i, size := range sizes {
			a.Release(refs[i], size)
			result.Releases++
		}
	}
	return result
}
