package inode_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yiny1/simplefs/bitmap"
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/image"
	"github.com/yiny1/simplefs/inode"
)

func newTestDevice(t *testing.T) image.Device {
	t.Helper()
	return image.NewMemDevice()
}

func TestResolveBlockDirectThenIndirect(t *testing.T) {
	dev := newTestDevice(t)
	dataAlloc := bitmap.New(image.DataAreaBlocks, ferr.OutOfSpace, logrus.NewEntry(logrus.New()))

	in := &inode.Inode{ID: 1}

	// Fill all 8 direct slots plus one indirect block's first slot, the S4
	// scenario: 8 KiB + 1 byte of content needs 9 direct-region blocks plus
	// one single-indirect pointer block.
	for i := uint64(0); i < 9; i++ {
		blockNum, err := inode.ResolveBlock(dev, dataAlloc, in, i, true)
		require.NoError(t, err)
		assert.NotZero(t, blockNum)
	}

	assert.NotZero(t, in.Addr[inode.IndirectSlot], "9th block must trigger the single-indirect pointer block")
	// 8 direct blocks + 1 indirect pointer block + 1 data block it points to.
	assert.EqualValues(t, 10, dataAlloc.Used())
}

func TestResolveBlockDoubleIndirect(t *testing.T) {
	dev := newTestDevice(t)
	dataAlloc := bitmap.New(image.DataAreaBlocks, ferr.OutOfSpace, logrus.NewEntry(logrus.New()))
	in := &inode.Inode{ID: 2}

	index := uint64(inode.DirectSlots + inode.PointersPerBlk + 5)
	blockNum, err := inode.ResolveBlock(dev, dataAlloc, in, index, true)
	require.NoError(t, err)
	assert.NotZero(t, blockNum)
	assert.NotZero(t, in.Addr[inode.DoubleSlot])
}

func TestResolveBlockOutOfRange(t *testing.T) {
	dev := newTestDevice(t)
	dataAlloc := bitmap.New(image.DataAreaBlocks, ferr.OutOfSpace, logrus.NewEntry(logrus.New()))
	in := &inode.Inode{ID: 3}

	_, err := inode.ResolveBlock(dev, dataAlloc, in, inode.MaxLogicalBlocks, true)
	assert.ErrorIs(t, err, ferr.FileTooLarge)
}

func TestTruncateFreesBlocksAndIndirect(t *testing.T) {
	dev := newTestDevice(t)
	dataAlloc := bitmap.New(image.DataAreaBlocks, ferr.OutOfSpace, logrus.NewEntry(logrus.New()))
	in := &inode.Inode{ID: 4}

	for i := uint64(0); i < 9; i++ {
		_, err := inode.ResolveBlock(dev, dataAlloc, in, i, true)
		require.NoError(t, err)
	}
	in.Size = 9*image.BlockSize + 1
	require.EqualValues(t, 10, dataAlloc.Used())

	require.NoError(t, inode.Truncate(dev, dataAlloc, in, 0))
	assert.EqualValues(t, 0, dataAlloc.Used(), "truncating to zero must free all direct and indirect blocks")
	assert.Zero(t, in.Addr[inode.IndirectSlot])
	for _, a := range in.Addr[:inode.DirectSlots] {
		assert.Zero(t, a)
	}
}
