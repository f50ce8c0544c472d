package dirent_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yiny1/simplefs/bitmap"
	"github.com/yiny1/simplefs/content"
	"github.com/yiny1/simplefs/dirent"
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/image"
	"github.com/yiny1/simplefs/inode"
)

func setup(t *testing.T) *content.IO {
	t.Helper()
	dev := image.NewMemDevice()
	dataAlloc := bitmap.New(image.DataAreaBlocks, ferr.OutOfSpace, logrus.NewEntry(logrus.New()))
	return content.New(dev, dataAlloc)
}

func TestDirInsertLookupRemoveCompacts(t *testing.T) {
	io := setup(t)
	d := dirent.New(io)
	root := &inode.Inode{ID: 0, Kind: inode.KindDir}

	require.NoError(t, d.InitEmpty(root, 0, 0))
	assert.EqualValues(t, 2*image.RawDirEntrySize, root.Size)

	require.NoError(t, d.Insert(root, dirent.Entry{Name: "a", InodeID: 1}))
	require.NoError(t, d.Insert(root, dirent.Entry{Name: "b", InodeID: 2}))
	require.NoError(t, d.Insert(root, dirent.Entry{Name: "c", InodeID: 3}))

	err := d.Insert(root, dirent.Entry{Name: "a", InodeID: 99})
	assert.ErrorIs(t, err, ferr.AlreadyExists)

	// Remove the middle entry; the last entry ("c") should take its slot.
	require.NoError(t, d.Remove(root, "b", ""))
	entries, err := d.Enumerate(root)
	require.NoError(t, err)

	names := map[string]uint16{}
	for _, e := range entries {
		names[e.FullName()] = e.InodeID
	}
	assert.Equal(t, uint16(1), names["a"])
	assert.Equal(t, uint16(3), names["c"])
	_, hasB := names["b"]
	assert.False(t, hasB)
	assert.EqualValues(t, 4, dirent.EntryCount(root), ". .. a c")
}

func TestDirLookupMissing(t *testing.T) {
	io := setup(t)
	d := dirent.New(io)
	root := &inode.Inode{ID: 0, Kind: inode.KindDir}
	require.NoError(t, d.InitEmpty(root, 0, 0))

	_, err := d.Lookup(root, "nope", "")
	assert.ErrorIs(t, err, ferr.NotFound)
}

func TestSplitName(t *testing.T) {
	name, ext, err := dirent.SplitName("readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "readme", name)
	assert.Equal(t, "txt", ext)

	_, _, err = dirent.SplitName("waytoolongname.txt")
	assert.ErrorIs(t, err, ferr.InvalidName)

	_, _, err = dirent.SplitName("has/slash")
	assert.ErrorIs(t, err, ferr.InvalidName)
}
