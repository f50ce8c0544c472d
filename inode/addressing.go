package inode

import (
	"github.com/yiny1/simplefs/bitmap"
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/image"
)

// Direct, single-indirect, and double-indirect slot counts, per the data
// model: addr[0..7] direct, addr[8] single indirect (256 pointers),
// addr[9] double indirect (256 pointers to single-indirect blocks).
const (
	DirectSlots    = 8
	IndirectSlot   = 8
	DoubleSlot     = 9
	PointersPerBlk = image.PointersPerBlock // 256

	singleIndirectCount = PointersPerBlk
	doubleIndirectCount = PointersPerBlk * PointersPerBlk

	// MaxLogicalBlocks is the number of logical block slots an inode can
	// address: 8 direct + 256 single-indirect + 65536 double-indirect.
	MaxLogicalBlocks = DirectSlots + singleIndirectCount + doubleIndirectCount

	// MaxFileSize is MaxLogicalBlocks blocks' worth of bytes, ~64.25 MiB.
	MaxFileSize = uint64(MaxLogicalBlocks) * image.BlockSize
)

func zeroBlock() []byte {
	return make([]byte, image.BlockSize)
}

func readPointerBlock(dev image.Device, blockNum uint32) ([PointersPerBlk]uint32, error) {
	raw, err := dev.ReadBlock(blockNum)
	if err != nil {
		return [PointersPerBlk]uint32{}, ferr.Io.Wrap(err)
	}
	pointers, err := image.DecodePointerBlock(raw)
	if err != nil {
		return [PointersPerBlk]uint32{}, ferr.ImageCorrupt.Wrap(err)
	}
	return pointers, nil
}

func writePointerBlock(dev image.Device, blockNum uint32, pointers [PointersPerBlk]uint32) error {
	if err := dev.WriteBlock(blockNum, image.EncodePointerBlock(pointers)); err != nil {
		return ferr.Io.Wrap(err)
	}
	return nil
}

// allocDataBlock reserves a data block and zero-fills it on disk, so a
// freshly allocated (but not yet written) block reads back as all zeros.
func allocDataBlock(dev image.Device, dataAlloc *bitmap.Allocator) (uint32, error) {
	id, err := dataAlloc.Alloc()
	if err != nil {
		return 0, err
	}
	blockNum := uint32(image.DataAreaStart) + uint32(id)
	if err := dev.WriteBlock(blockNum, zeroBlock()); err != nil {
		_ = dataAlloc.Free(id)
		return 0, ferr.Io.Wrap(err)
	}
	return blockNum, nil
}

func freeDataBlock(dataAlloc *bitmap.Allocator, blockNum uint32) error {
	id := uint(blockNum) - image.DataAreaStart
	return dataAlloc.Free(id)
}

// ResolveBlock maps a logical block index within inode's content to a
// physical block number, allocating indirection structures (and the block
// itself) on demand when allocate is true. It mutates inode.Addr in place;
// callers must persist the inode afterward (Store.Write) for the change to
// survive. Returns ferr.FileTooLarge if logicalIndex is beyond what the
// addressing scheme can represent.
func ResolveBlock(dev image.Device, dataAlloc *bitmap.Allocator, in *Inode, logicalIndex uint64, allocate bool) (uint32, error) {
	switch {
	case logicalIndex < DirectSlots:
		return resolveDirect(dev, dataAlloc, in, uint32(logicalIndex), allocate)
	case logicalIndex < DirectSlots+singleIndirectCount:
		return resolveSingleIndirect(dev, dataAlloc, in, uint32(logicalIndex-DirectSlots), allocate)
	case logicalIndex < MaxLogicalBlocks:
		return resolveDoubleIndirect(dev, dataAlloc, in, logicalIndex-DirectSlots-singleIndirectCount, allocate)
	default:
		return 0, ferr.FileTooLarge
	}
}

func resolveDirect(dev image.Device, dataAlloc *bitmap.Allocator, in *Inode, index uint32, allocate bool) (uint32, error) {
	if in.Addr[index] != 0 {
		return in.Addr[index], nil
	}
	if !allocate {
		return 0, nil
	}
	blockNum, err := allocDataBlock(dev, dataAlloc)
	if err != nil {
		return 0, err
	}
	in.Addr[index] = blockNum
	return blockNum, nil
}

func resolveSingleIndirect(dev image.Device, dataAlloc *bitmap.Allocator, in *Inode, index uint32, allocate bool) (uint32, error) {
	indirectBlock, err := ensureIndirectBlock(dev, dataAlloc, &in.Addr[IndirectSlot], allocate)
	if err != nil || indirectBlock == 0 {
		return 0, err
	}
	return resolvePointerSlot(dev, dataAlloc, indirectBlock, index, allocate)
}

func resolveDoubleIndirect(dev image.Device, dataAlloc *bitmap.Allocator, in *Inode, index uint64, allocate bool) (uint32, error) {
	firstLevelIndex := uint32(index / PointersPerBlk)
	secondLevelIndex := uint32(index % PointersPerBlk)

	doubleBlock, err := ensureIndirectBlock(dev, dataAlloc, &in.Addr[DoubleSlot], allocate)
	if err != nil || doubleBlock == 0 {
		return 0, err
	}

	pointers, err := readPointerBlock(dev, doubleBlock)
	if err != nil {
		return 0, err
	}

	singleBlock := pointers[firstLevelIndex]
	if singleBlock == 0 {
		if !allocate {
			return 0, nil
		}
		singleBlock, err = allocDataBlock(dev, dataAlloc)
		if err != nil {
			return 0, err
		}
		pointers[firstLevelIndex] = singleBlock
		if err := writePointerBlock(dev, doubleBlock, pointers); err != nil {
			return 0, err
		}
	}

	return resolvePointerSlot(dev, dataAlloc, singleBlock, secondLevelIndex, allocate)
}

// ensureIndirectBlock returns the block number stored in *slot, allocating
// and zeroing it first if it's unset and allocate is true.
func ensureIndirectBlock(dev image.Device, dataAlloc *bitmap.Allocator, slot *uint32, allocate bool) (uint32, error) {
	if *slot != 0 {
		return *slot, nil
	}
	if !allocate {
		return 0, nil
	}
	blockNum, err := allocDataBlock(dev, dataAlloc)
	if err != nil {
		return 0, err
	}
	*slot = blockNum
	return blockNum, nil
}

func resolvePointerSlot(dev image.Device, dataAlloc *bitmap.Allocator, pointerBlock uint32, index uint32, allocate bool) (uint32, error) {
	pointers, err := readPointerBlock(dev, pointerBlock)
	if err != nil {
		return 0, err
	}
	if pointers[index] != 0 {
		return pointers[index], nil
	}
	if !allocate {
		return 0, nil
	}
	blockNum, err := allocDataBlock(dev, dataAlloc)
	if err != nil {
		return 0, err
	}
	pointers[index] = blockNum
	if err := writePointerBlock(dev, pointerBlock, pointers); err != nil {
		return 0, err
	}
	return blockNum, nil
}

// Truncate shrinks or records growth of an inode to newSize bytes. Growing
// only updates in.Size (blocks are allocated lazily by ResolveBlock on
// first write); shrinking frees every block strictly beyond the new
// logical block count, then frees any indirect blocks left pointing at
// nothing.
func Truncate(dev image.Device, dataAlloc *bitmap.Allocator, in *Inode, newSize uint32) error {
	if uint64(newSize) >= uint64(in.Size) {
		in.Size = newSize
		return nil
	}

	keepBlocks := uint64(0)
	if newSize > 0 {
		keepBlocks = (uint64(newSize) + image.BlockSize - 1) / image.BlockSize
	}
	oldBlocks := (uint64(in.Size) + image.BlockSize - 1) / image.BlockSize

	for i := keepBlocks; i < oldBlocks; i++ {
		if err := freeLogicalBlock(dev, dataAlloc, in, i); err != nil {
			return err
		}
	}

	if keepBlocks <= DirectSlots {
		if err := freeIndirectIfEmpty(dev, dataAlloc, &in.Addr[IndirectSlot]); err != nil {
			return err
		}
	}
	if keepBlocks <= DirectSlots+singleIndirectCount {
		if err := freeDoubleIndirectIfEmpty(dev, dataAlloc, in); err != nil {
			return err
		}
	}

	in.Size = newSize
	return nil
}

func freeLogicalBlock(dev image.Device, dataAlloc *bitmap.Allocator, in *Inode, index uint64) error {
	blockNum, err := ResolveBlock(dev, dataAlloc, in, index, false)
	if err != nil || blockNum == 0 {
		return err
	}
	if err := freeDataBlock(dataAlloc, blockNum); err != nil {
		return err
	}
	return clearPointer(dev, in, index)
}

// clearPointer zeroes the pointer slot that held a now-freed block, so a
// later ResolveBlock(..., allocate=false) correctly reports the hole.
func clearPointer(dev image.Device, in *Inode, index uint64) error {
	switch {
	case index < DirectSlots:
		in.Addr[index] = 0
		return nil
	case index < DirectSlots+singleIndirectCount:
		if in.Addr[IndirectSlot] == 0 {
			return nil
		}
		return clearPointerSlot(dev, in.Addr[IndirectSlot], uint32(index-DirectSlots))
	default:
		if in.Addr[DoubleSlot] == 0 {
			return nil
		}
		rest := index - DirectSlots - singleIndirectCount
		pointers, err := readPointerBlock(dev, in.Addr[DoubleSlot])
		if err != nil {
			return err
		}
		singleBlock := pointers[rest/PointersPerBlk]
		if singleBlock == 0 {
			return nil
		}
		return clearPointerSlot(dev, singleBlock, uint32(rest%PointersPerBlk))
	}
}

func clearPointerSlot(dev image.Device, pointerBlock uint32, index uint32) error {
	pointers, err := readPointerBlock(dev, pointerBlock)
	if err != nil {
		return err
	}
	pointers[index] = 0
	return writePointerBlock(dev, pointerBlock, pointers)
}

func freeIndirectIfEmpty(dev image.Device, dataAlloc *bitmap.Allocator, slot *uint32) error {
	if *slot == 0 {
		return nil
	}
	pointers, err := readPointerBlock(dev, *slot)
	if err != nil {
		return err
	}
	for _, p := range pointers {
		if p != 0 {
			return nil
		}
	}
	if err := freeDataBlock(dataAlloc, *slot); err != nil {
		return err
	}
	*slot = 0
	return nil
}

func freeDoubleIndirectIfEmpty(dev image.Device, dataAlloc *bitmap.Allocator, in *Inode) error {
	if in.Addr[DoubleSlot] == 0 {
		return nil
	}
	pointers, err := readPointerBlock(dev, in.Addr[DoubleSlot])
	if err != nil {
		return err
	}
	changed := false
	for i, singleBlock := range pointers {
		if singleBlock == 0 {
			continue
		}
		if err := freeIndirectIfEmpty(dev, dataAlloc, &pointers[i]); err != nil {
			return err
		}
		if pointers[i] == 0 {
			changed = true
		}
	}
	if changed {
		if err := writePointerBlock(dev, in.Addr[DoubleSlot], pointers); err != nil {
			return err
		}
	}
	for _, p := range pointers {
		if p != 0 {
			return nil
		}
	}
	if err := freeDataBlock(dataAlloc, in.Addr[DoubleSlot]); err != nil {
		return err
	}
	in.Addr[DoubleSlot] = 0
	return nil
}

// ReachableBlocks returns every physical data block number referenced by
// inode's addressing tree, including the indirect/double-indirect blocks
// themselves. Used by fsck to reconstruct the expected data bitmap.
func ReachableBlocks(dev image.Device, in Inode) ([]uint32, error) {
	var blocks []uint32
	for i := 0; i < DirectSlots; i++ {
		if in.Addr[i] != 0 {
			blocks = append(blocks, in.Addr[i])
		}
	}
	if in.Addr[IndirectSlot] != 0 {
		blocks = append(blocks, in.Addr[IndirectSlot])
		pointers, err := readPointerBlock(dev, in.Addr[IndirectSlot])
		if err != nil {
			return nil, err
		}
		for _, p := range pointers {
			if p != 0 {
				blocks = append(blocks, p)
			}
		}
	}
	if in.Addr[DoubleSlot] != 0 {
		blocks = append(blocks, in.Addr[DoubleSlot])
		pointers, err := readPointerBlock(dev, in.Addr[DoubleSlot])
		if err != nil {
			return nil, err
		}
		for _, singleBlock := range pointers {
			if singleBlock == 0 {
				continue
			}
			blocks = append(blocks, singleBlock)
			secondLevel, err := readPointerBlock(dev, singleBlock)
			if err != nil {
				return nil, err
			}
			for _, p := range secondLevel {
				if p != 0 {
					blocks = append(blocks, p)
				}
			}
		}
	}
	return blocks, nil
}
