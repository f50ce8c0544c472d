// Package content implements byte-range read/write over an inode's
// addressing tree: the shared primitive both regular file I/O (cat,
// newfile, copy) and the directory layer (which stores its entries as the
// byte content of a directory inode) are built on.
package content

import (
	"github.com/yiny1/simplefs/bitmap"
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/image"
	"github.com/yiny1/simplefs/inode"
)

// IO reads and writes inode content through the direct/indirect addressing
// algorithm, allocating and freeing data blocks as needed.
type IO struct {
	dev       image.Device
	dataAlloc *bitmap.Allocator
}

func New(dev image.Device, dataAlloc *bitmap.Allocator) *IO {
	return &IO{dev: dev, dataAlloc: dataAlloc}
}

// ReadAt fills buf with in's content starting at byte offset off. Reads
// past in.Size are truncated, matching io.ReaderAt's short-read contract
// at EOF. Holes (allocated-but-never-written logical blocks can't occur
// since allocation always zero-fills, but an unallocated slot within the
// file's declared size reads as zeros) never surface stale data.
func (io *IO) ReadAt(in *inode.Inode, buf []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ferr.InvalidPath.WithMessage("negative offset")
	}
	if off >= int64(in.Size) {
		return 0, nil
	}
	end := off + int64(len(buf))
	if end > int64(in.Size) {
		end = int64(in.Size)
	}

	total := 0
	for pos := off; pos < end; {
		logicalIndex := uint64(pos) / image.BlockSize
		blockOffset := uint32(uint64(pos) % image.BlockSize)
		chunk := image.BlockSize - blockOffset
		if remaining := uint32(end - pos); chunk > remaining {
			chunk = remaining
		}

		blockNum, err := inode.ResolveBlock(io.dev, io.dataAlloc, in, logicalIndex, false)
		if err != nil {
			return total, err
		}
		if blockNum == 0 {
			for i := uint32(0); i < chunk; i++ {
				buf[total+int(i)] = 0
			}
		} else {
			block, err := io.dev.ReadBlock(blockNum)
			if err != nil {
				return total, ferr.Io.Wrap(err)
			}
			copy(buf[total:total+int(chunk)], block[blockOffset:blockOffset+chunk])
		}

		total += int(chunk)
		pos += int64(chunk)
	}
	return total, nil
}

// ReadAll reads the entirety of in's content. Directories and small files
// both go through this; the caller is responsible for any size limits.
func (io *IO) ReadAll(in *inode.Inode) ([]byte, error) {
	buf := make([]byte, in.Size)
	if _, err := io.ReadAt(in, buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteAt writes data into in's content starting at byte offset off,
// allocating data blocks (and indirection blocks) as needed and growing
// in.Size if the write extends past the current end. It does not zero any
// gap between the old size and off: bytes in that gap read as zero only
// where they fall in unallocated slots or in freshly allocated (zero-filled)
// blocks.
func (io *IO) WriteAt(in *inode.Inode, data []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ferr.InvalidPath.WithMessage("negative offset")
	}
	if uint64(off)+uint64(len(data)) > inode.MaxFileSize {
		return 0, ferr.FileTooLarge
	}

	total := 0
	for pos := off; pos < off+int64(len(data)); {
		logicalIndex := uint64(pos) / image.BlockSize
		blockOffset := uint32(uint64(pos) % image.BlockSize)
		chunk := image.BlockSize - blockOffset
		if remaining := uint32(off + int64(len(data)) - pos); chunk > remaining {
			chunk = remaining
		}

		blockNum, err := inode.ResolveBlock(io.dev, io.dataAlloc, in, logicalIndex, true)
		if err != nil {
			return total, err
		}

		block, err := io.dev.ReadBlock(blockNum)
		if err != nil {
			return total, ferr.Io.Wrap(err)
		}
		copy(block[blockOffset:blockOffset+chunk], data[total:total+int(chunk)])
		if err := io.dev.WriteBlock(blockNum, block); err != nil {
			return total, ferr.Io.Wrap(err)
		}

		total += int(chunk)
		pos += int64(chunk)
	}

	if newEnd := uint32(off) + uint32(total); newEnd > in.Size {
		in.Size = newEnd
	}
	return total, nil
}

// Truncate resizes in's content to newSize bytes, freeing blocks beyond
// the new end (shrink) or simply recording the larger size (grow; the gap
// reads as zero because ResolveBlock treats unset slots as holes).
func (io *IO) Truncate(in *inode.Inode, newSize uint32) error {
	return inode.Truncate(io.dev, io.dataAlloc, in, newSize)
}
