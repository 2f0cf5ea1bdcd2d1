package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmstephe/slabpool/internal/sizeclass"
	"github.com/fmstephe/slabpool/internal/slab"
)

func newTestSlabs(t *testing.T) []*slab.Slab {
	t.Helper()
	slabs := make([]*slab.Slab, sizeclass.ClassCount)
	for i := range slabs {
		slabs[i] = slab.New(slab.NewConfig(i))
	}
	t.Cleanup(func() {
		for _, s := range slabs {
			require.NoError(t, s.Destroy())
		}
	})
	return slabs
}

func TestCacheHitAvoidsSlab(t *testing.T) {
	slabs := newTestSlabs(t)
	c := NewWithCap(slabs, MagazineCap)

	class, _ := sizeclass.Of(8)
	slot := c.Acquire(class)
	c.Release(class, slot)

	before := slabs[class].Stats()
	again := c.Acquire(class)
	after := slabs[class].Stats()

	require.Equal(t, slot, again, "expected magazine hit to return the same slot")
	require.Equal(t, before, after, "magazine hit should not touch the slab at all")
}

func TestMagazineFlushOnOverflow(t *testing.T) {
	slabs := newTestSlabs(t)
	const cap = 4
	c := NewWithCap(slabs, cap)

	class, _ := sizeclass.Of(8)
	slots := make([]uintptr, 5)
	for i := range slots {
		slots[i] = c.Acquire(class)
	}

	for _, slot := range slots {
		c.Release(class, slot)
	}

	require.Equal(t, 0, c.Len(class), "expected magazine length 0 after full flush")

	// All five flushed slots must be sitting on the slab's global free
	// stack, reachable without growing a new block.
	for i := 0; i < 4; i++ {
		slabs[class].Allocate()
	}
	stats := slabs[class].Stats()
	require.GreaterOrEqual(t, stats.Reused, 4, "expected at least 4 reused slots from the flushed chain")
}

func TestUnpinFlushesMagazine(t *testing.T) {
	slabs := newTestSlabs(t)
	c := NewWithCap(slabs, MagazineCap)

	class, _ := sizeclass.Of(24)
	slot := c.Acquire(class)
	c.Release(class, slot)

	require.Equal(t, 1, c.Len(class), "expected one cached slot before Unpin")

	c.Unpin()

	require.Equal(t, 0, c.Len(class), "expected Unpin to drain the magazine")
	stats := slabs[class].Stats()
	require.True(t, stats.Reused > 0 || stats.Frees > 0, "expected Unpin's flush to reach the global free stack")
}
