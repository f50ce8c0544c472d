package bitmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yiny1/simplefs/bitmap"
	"github.com/yiny1/simplefs/ferr"
)

func TestAllocFirstFit(t *testing.T) {
	a := bitmap.New(8, ferr.OutOfInodes, nil)

	id, err := a.Alloc()
	assert.NoError(t, err)
	assert.EqualValues(t, 0, id)

	id, err = a.Alloc()
	assert.NoError(t, err)
	assert.EqualValues(t, 1, id)

	assert.NoError(t, a.Free(0))

	id, err = a.Alloc()
	assert.NoError(t, err)
	assert.EqualValues(t, 0, id, "first-fit must reuse the lowest freed id")
}

func TestAllocExhaustion(t *testing.T) {
	a := bitmap.New(2, ferr.OutOfInodes, nil)
	_, err := a.Alloc()
	assert.NoError(t, err)
	_, err = a.Alloc()
	assert.NoError(t, err)

	_, err = a.Alloc()
	assert.ErrorIs(t, err, ferr.OutOfInodes)
}

func TestFreeIsIdempotent(t *testing.T) {
	a := bitmap.New(4, ferr.OutOfSpace, nil)
	assert.NoError(t, a.Free(1), "freeing an already-free bit must not error")
	assert.False(t, a.IsSet(1))
}

func TestBytesRoundTrip(t *testing.T) {
	a := bitmap.New(16, ferr.OutOfSpace, nil)
	_, _ = a.Alloc()
	_, _ = a.Alloc()
	raw := a.Bytes()

	b := bitmap.FromBytes(raw, 16, ferr.OutOfSpace, nil)
	assert.True(t, b.IsSet(0))
	assert.True(t, b.IsSet(1))
	assert.False(t, b.IsSet(2))
	assert.EqualValues(t, 2, b.Used())
}
