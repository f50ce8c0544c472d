package inode

import (
	"github.com/sirupsen/logrus"
	"github.com/yiny1/simplefs/bitmap"
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/image"
)

// Store provides indexed access to inodes by id, backed by a Device and an
// id allocator. It knows nothing about file content or directories; that's
// the addressing algorithm (addressing.go) and the dirent package's job.
type Store struct {
	dev   image.Device
	alloc *bitmap.Allocator
	log   *logrus.Entry
}

func NewStore(dev image.Device, alloc *bitmap.Allocator, log *logrus.Entry) *Store {
	return &Store{dev: dev, alloc: alloc, log: log}
}

func blockAndOffset(id uint16) (uint32, uint32) {
	block := image.InodeAreaStart + uint32(id)/image.InodesPerBlock
	offset := (uint32(id) % image.InodesPerBlock) * image.InodeSize
	return block, offset
}

// Read loads the inode record for id. It does not check the allocation
// bitmap; callers that need to distinguish "allocated but empty" from
// "free slot" should consult Allocator.IsSet or Inode.IsAllocated.
func (s *Store) Read(id uint16) (Inode, error) {
	if uint(id) >= image.TotalInodes {
		return Inode{}, ferr.InvalidPath.WithMessage("inode id out of range")
	}
	blockNum, offset := blockAndOffset(id)
	block, err := s.dev.ReadBlock(blockNum)
	if err != nil {
		return Inode{}, ferr.Io.Wrap(err)
	}
	raw, err := image.DecodeInode(block[offset : offset+image.InodeSize])
	if err != nil {
		return Inode{}, ferr.ImageCorrupt.Wrap(err)
	}
	return fromRaw(raw), nil
}

// Write persists inode back to its slot.
func (s *Store) Write(in Inode) error {
	if uint(in.ID) >= image.TotalInodes {
		return ferr.InvalidPath.WithMessage("inode id out of range")
	}
	blockNum, offset := blockAndOffset(in.ID)
	block, err := s.dev.ReadBlock(blockNum)
	if err != nil {
		return ferr.Io.Wrap(err)
	}
	copy(block[offset:offset+image.InodeSize], image.EncodeInode(toRaw(in)))
	if err := s.dev.WriteBlock(blockNum, block); err != nil {
		return ferr.Io.Wrap(err)
	}
	return nil
}

// Alloc reserves the first free inode id, writes a zeroed record for it
// (Nlink left at the caller's chosen value via the returned Inode), and
// returns it without persisting — the caller fills in Kind/Mode/Uid/Gid
// and calls Write.
func (s *Store) Alloc() (Inode, error) {
	id, err := s.alloc.Alloc()
	if err != nil {
		return Inode{}, err
	}
	in := Inode{ID: uint16(id)}
	if err := s.Write(in); err != nil {
		_ = s.alloc.Free(id)
		return Inode{}, err
	}
	return in, nil
}

// Free clears id's bitmap bit and zeroes its on-disk record. It does not
// free the data blocks the inode addressed; callers must Truncate to 0
// first (see addressing.go) if they want that.
func (s *Store) Free(id uint16) error {
	if err := s.Write(Inode{ID: id}); err != nil {
		return err
	}
	return s.alloc.Free(uint(id))
}

// IsAllocated reports whether id's bitmap bit is set.
func (s *Store) IsAllocated(id uint16) bool {
	return s.alloc.IsSet(uint(id))
}

// Allocator exposes the underlying bitmap allocator, used by fsck to
// reconstruct and compare the canonical bitmap.
func (s *Store) Allocator() *bitmap.Allocator {
	return s.alloc
}
