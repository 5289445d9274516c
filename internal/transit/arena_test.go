package transit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArenaGrowPreservesFilledSlots(t *testing.T) {
	alloc := NewAllocator(false, 0)

	ar, err := newArena(alloc, 4, 3)
	require.NoError(t, err)

	// Two short values, then one that forces a regrow. The rows staged
	// before the regrow must come back byte for byte.
	require.NoError(t, ar.set([]byte("abc")))
	ar.setNull()
	require.NoError(t, ar.set([]byte("xyz")))

	require.NoError(t, ar.grow(50))
	require.Equal(t, 50, ar.width)
	require.NoError(t, ar.set(make([]byte, 50)))

	v, ok := ar.get(0)
	require.True(t, ok)
	require.Equal(t, []byte("abc"), v)

	_, ok = ar.get(1)
	require.False(t, ok)

	v, ok = ar.get(2)
	require.True(t, ok)
	require.Equal(t, []byte("xyz"), v)

	v, ok = ar.get(3)
	require.True(t, ok)
	require.Len(t, v, 50)
}

func TestArenaWidthNeverShrinks(t *testing.T) {
	alloc := NewAllocator(false, 0)

	ar, err := newArena(alloc, 2, 16)
	require.NoError(t, err)

	require.NoError(t, ar.grow(8))
	require.Equal(t, 16, ar.width)

	require.NoError(t, ar.grow(32))
	require.Equal(t, 32, ar.width)

	require.NoError(t, ar.grow(32))
	require.Equal(t, 32, ar.width)
}

func TestArenaResetKeepsWidth(t *testing.T) {
	alloc := NewAllocator(false, 0)

	ar, err := newArena(alloc, 2, 4)
	require.NoError(t, err)

	require.NoError(t, ar.grow(64))
	ar.reset()

	require.Equal(t, 64, ar.width)
	require.Equal(t, 0, ar.filled)
}

func TestArenaReleaseReturnsStorage(t *testing.T) {
	alloc := NewAllocator(false, 0)

	ar, err := newArena(alloc, 8, 32)
	require.NoError(t, err)
	require.Equal(t, uint64(8*32), alloc.InUse())

	require.NoError(t, ar.grow(64))
	require.Equal(t, uint64(8*64), alloc.InUse())

	ar.release()
	require.Equal(t, uint64(0), alloc.InUse())
}

func TestAllocatorFallibleLimit(t *testing.T) {
	alloc := NewAllocator(true, 100)

	buf, err := alloc.Grab(80)
	require.NoError(t, err)
	require.Len(t, buf, 80)

	_, err = alloc.Grab(40)
	require.ErrorIs(t, err, ErrAllocation)

	alloc.Return(80)

	_, err = alloc.Grab(40)
	require.NoError(t, err)
}

func TestAllocatorFallibleRecoversAbsurdSize(t *testing.T) {
	alloc := NewAllocator(true, 0)

	// A bogus driver descriptor can produce a slot footprint no machine
	// can serve. Fallible mode reports it instead of aborting.
	_, err := alloc.Grab(1 << 62)
	require.ErrorIs(t, err, ErrAllocation)
}
