package fsck_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yiny1/simplefs/bitmap"
	"github.com/yiny1/simplefs/content"
	"github.com/yiny1/simplefs/dirent"
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/fsck"
	"github.com/yiny1/simplefs/image"
	"github.com/yiny1/simplefs/inode"
)

func freshImage(t *testing.T) (image.Device, *bitmap.Allocator, *bitmap.Allocator) {
	t.Helper()
	dev := image.NewMemDevice()
	log := logrus.NewEntry(logrus.New())
	inodeAlloc := bitmap.New(image.TotalInodes, ferr.OutOfInodes, log)
	dataAlloc := bitmap.New(image.DataAreaBlocks, ferr.OutOfSpace, log)

	store := inode.NewStore(dev, inodeAlloc, log)
	io := content.New(dev, dataAlloc)
	dirs := dirent.New(io)

	root, err := store.Alloc()
	require.NoError(t, err)
	root.Kind = inode.KindDir
	root.Mode = inode.DefaultDirMode
	root.Nlink = 2
	require.NoError(t, dirs.InitEmpty(&root, root.ID, root.ID))
	require.NoError(t, store.Write(root))

	return dev, inodeAlloc, dataAlloc
}

func TestCheckCleanImageReportsNothing(t *testing.T) {
	dev, inodeAlloc, dataAlloc := freshImage(t)
	checker := fsck.New(dev, inodeAlloc, dataAlloc, nil)

	report, err := checker.Check(false)
	require.NoError(t, err)
	assert.Empty(t, report.StaleBitsCleared)
	assert.Empty(t, report.MissingBitsSet)
}

func TestCheckDetectsOrphanedInodeBit(t *testing.T) {
	dev, inodeAlloc, dataAlloc := freshImage(t)
	inodeAlloc.SetBit(5, true) // allocated on paper, never linked from root

	checker := fsck.New(dev, inodeAlloc, dataAlloc, nil)
	report, err := checker.Check(false)
	assert.Error(t, err)
	assert.Contains(t, report.StaleBitsCleared, uint16(5))

	repaired, err := checker.Check(true)
	require.Error(t, err) // Check still reports what it found even while repairing
	assert.Contains(t, repaired.StaleBitsCleared, uint16(5))
	assert.False(t, inodeAlloc.IsSet(5))
}
