package content_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yiny1/simplefs/bitmap"
	"github.com/yiny1/simplefs/content"
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/image"
	"github.com/yiny1/simplefs/inode"
)

func newIO(t *testing.T) *content.IO {
	t.Helper()
	dev := image.NewMemDevice()
	dataAlloc := bitmap.New(image.DataAreaBlocks, ferr.OutOfSpace, logrus.NewEntry(logrus.New()))
	return content.New(dev, dataAlloc)
}

func TestWriteAtThenReadAtRoundTrip(t *testing.T) {
	io := newIO(t)
	in := &inode.Inode{ID: 1}

	n, err := io.WriteAt(in, []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.EqualValues(t, 5, in.Size)

	buf := make([]byte, 5)
	n, err = io.ReadAt(in, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestWriteAtSpanningMultipleBlocks(t *testing.T) {
	io := newIO(t)
	in := &inode.Inode{ID: 2}

	data := make([]byte, image.BlockSize*3+17)
	for i := range data {
		data[i] = byte(i % 251)
	}

	_, err := io.WriteAt(in, data, 0)
	require.NoError(t, err)
	assert.EqualValues(t, len(data), in.Size)

	got, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWriteAtOffsetPastCurrentSizeExtendsFile(t *testing.T) {
	io := newIO(t)
	in := &inode.Inode{ID: 3}

	_, err := io.WriteAt(in, []byte("abc"), 0)
	require.NoError(t, err)

	_, err = io.WriteAt(in, []byte("xyz"), int64(image.BlockSize))
	require.NoError(t, err)
	assert.EqualValues(t, image.BlockSize+3, in.Size)

	buf := make([]byte, 3)
	_, err = io.ReadAt(in, buf, int64(image.BlockSize)-3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0}, buf, "unwritten hole must read as zero")
}

func TestReadAtPastEndIsShortRead(t *testing.T) {
	io := newIO(t)
	in := &inode.Inode{ID: 4}
	_, err := io.WriteAt(in, []byte("hi"), 0)
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := io.ReadAt(in, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTruncateShrinkFreesBlocks(t *testing.T) {
	dataAlloc := bitmap.New(image.DataAreaBlocks, ferr.OutOfSpace, logrus.NewEntry(logrus.New()))
	io := content.New(image.NewMemDevice(), dataAlloc)
	in := &inode.Inode{ID: 5}

	data := make([]byte, image.BlockSize*2)
	_, err := io.WriteAt(in, data, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, dataAlloc.Used())

	require.NoError(t, io.Truncate(in, image.BlockSize))
	assert.EqualValues(t, image.BlockSize, in.Size)
	assert.EqualValues(t, 1, dataAlloc.Used(), "the second block must be freed")

	buf := make([]byte, image.BlockSize)
	n, err := io.ReadAt(in, buf, 0)
	require.NoError(t, err)
	assert.EqualValues(t, image.BlockSize, n)
}

func TestWriteAtRejectsNegativeOffset(t *testing.T) {
	io := newIO(t)
	in := &inode.Inode{ID: 6}
	_, err := io.WriteAt(in, []byte("x"), -1)
	assert.ErrorIs(t, err, ferr.InvalidPath)
}

func TestWriteAtRejectsOverMaxFileSize(t *testing.T) {
	io := newIO(t)
	in := &inode.Inode{ID: 7}
	_, err := io.WriteAt(in, []byte("x"), int64(inode.MaxFileSize))
	assert.ErrorIs(t, err, ferr.FileTooLarge)
}
