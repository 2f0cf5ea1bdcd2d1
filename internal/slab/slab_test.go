package slab

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/fmstephe/slabpool/internal/sizeclass"
)

func newTestSlab(t *testing.T, classIdx int) *Slab {
	t.Helper()
	s := New(NewConfig(classIdx))
	t.Cleanup(func() {
		require.NoError(t, s.Destroy())
	})
	return s
}

func TestSingleThreadChurnNoExtraBlocks(t *testing.T) {
	classIdx, _ := sizeclass.Of(8)
	s := newTestSlab(t, classIdx)

	// Each slot is released straight after it is acquired, so the churn
	// keeps reusing freed slots instead of holding all n live at once.
	const n = 10000
	for i := 0; i < n; i++ {
		slot := s.Allocate()
		require.Zerof(t, slot%sizeclass.CacheLine, "slot %#x not %d-byte aligned", slot, sizeclass.CacheLine)
		s.Free(slot)
	}

	require.Equal(t, 1, s.Stats().Blocks, "expected churn to fit in a single block")

	// A second churn pass over the freed slots must not grow the block
	// count either.
	for i := 0; i < n; i++ {
		slot := s.Allocate()
		require.Zerof(t, slot%sizeclass.CacheLine, "slot %#x not %d-byte aligned on reuse", slot, sizeclass.CacheLine)
		s.Free(slot)
	}
	require.Equal(t, 1, s.Stats().Blocks, "reuse pass grew block count")
}

func TestAlignmentAcrossClasses(t *testing.T) {
	for classIdx := 0; classIdx < sizeclass.ClassCount; classIdx++ {
		s := New(NewConfig(classIdx))
		want := sizeclass.SlotSize(classIdx)
		if want < sizeclass.CacheLine {
			want = sizeclass.CacheLine
		}
		for i := 0; i < 50; i++ {
			slot := s.Allocate()
			require.Zerof(t, slot%uintptr(want), "class %d: slot %#x not aligned to %d", classIdx, slot, want)
		}
		require.NoError(t, s.Destroy())
	}
}

func TestStrideFitsInBlock(t *testing.T) {
	// A slab whose stride is not smaller than its block size would hand
	// out slots running past the end of their block; this is a basic
	// sanity check that config never produces that combination for any
	// class.
	for classIdx := 0; classIdx < sizeclass.ClassCount; classIdx++ {
		conf := NewConfig(classIdx)
		require.Lessf(t, conf.Stride, conf.BlockSize, "class %d", classIdx)
	}
}

// TestMultithreadedStress exercises concurrent Allocate/Free directly against
// the global free stack and bump cursor (bypassing any thread magazine),
// checking disjointness via a per-slot "owned" flag the way the spec's
// multithreaded stress scenario describes.
func TestMultithreadedStress(t *testing.T) {
	classIdx, _ := sizeclass.Of(104)
	s := newTestSlab(t, classIdx)

	const goroutines = 20
	const perRound = 500
	const rounds = 10

	owned := make(map[uintptr]*int32)
	var ownedMu sync.Mutex
	var failures []string
	var failuresMu sync.Mutex

	markOwned := func(slot uintptr) {
		ownedMu.Lock()
		defer ownedMu.Unlock()
		if f, ok := owned[slot]; ok && *f != 0 {
			failuresMu.Lock()
			failures = append(failures, "slot handed out twice while still live")
			failuresMu.Unlock()
			return
		}
		v := int32(1)
		owned[slot] = &v
	}
	markFreed := func(slot uintptr) {
		ownedMu.Lock()
		defer ownedMu.Unlock()
		*owned[slot] = 0
	}

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				held := make([]uintptr, 0, perRound)
				for i := 0; i < perRound; i++ {
					slot := s.Allocate()
					markOwned(slot)
					held = append(held, slot)
				}
				for _, slot := range held {
					markFreed(slot)
					s.Free(slot)
				}
			}
		}()
	}
	wg.Wait()

	require.Empty(t, failures)
}

func TestBlockHeaderSizeIsUsed(t *testing.T) {
	// Regression guard for the "first slot offset computed from
	// sizeof(Slot*) instead of sizeof(BlockHeader)" bug called out in the
	// design notes: the first slot must start at or after the full
	// header, never inside it.
	require.GreaterOrEqual(t, headerSize, unsafe.Sizeof(uintptr(0)))

	classIdx, _ := sizeclass.Of(8)
	conf := NewConfig(classIdx)
	hdrAddr, curSlot, _ := newBlock(conf, 0)
	defer func() {
		require.NoError(t, munmapBlock(hdrAddr, conf.BlockSize))
	}()
	require.GreaterOrEqual(t, curSlot, hdrAddr+headerSize)
}
