package image

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/noxer/bytewriter"
)

// Superblock is the fixed superblock record, one per image, at block 0.
type Superblock struct {
	Magic             uint32
	TotalBlocks       uint32
	InodeBitmapStart  uint32
	InodeBitmapBlocks uint32
	InodeAreaStart    uint32
	InodeAreaBlocks   uint32
	DataBitmapStart   uint32
	DataBitmapBlocks  uint32
	DataAreaStart     uint32
	DataAreaBlocks    uint32
}

// Canonical returns the superblock format always writes and fsck always
// restores; there is exactly one valid layout for this image size.
func Canonical() Superblock {
	return Superblock{
		Magic:             SuperblockMagic,
		TotalBlocks:       TotalBlocks,
		InodeBitmapStart:  InodeBitmapBlock,
		InodeBitmapBlocks: InodeBitmapBlocks,
		InodeAreaStart:    InodeAreaStart,
		InodeAreaBlocks:   InodeAreaBlocks,
		DataBitmapStart:   DataBitmapStart,
		DataBitmapBlocks:  DataBitmapBlocks,
		DataAreaStart:     DataAreaStart,
		DataAreaBlocks:    DataAreaBlocks,
	}
}

// EncodeSuperblock serializes sb into a full 1 KiB block, little-endian,
// zero-padded after the fixed fields.
func EncodeSuperblock(sb Superblock) []byte {
	buf := make([]byte, BlockSize)
	w := bytewriter.New(buf)
	// A failure here means the Superblock struct no longer fits in one
	// block; that's a programming bug, not a runtime error, so it panics
	// rather than threading an error return through every caller.
	if err := binary.Write(w, binary.LittleEndian, sb); err != nil {
		panic(fmt.Sprintf("superblock encode: %s", err))
	}
	return buf
}

// DecodeSuperblock reads a Superblock out of a raw 1 KiB block.
func DecodeSuperblock(block []byte) (Superblock, error) {
	if len(block) != BlockSize {
		return Superblock{}, fmt.Errorf("superblock block must be %d bytes, got %d", BlockSize, len(block))
	}
	var sb Superblock
	if err := binary.Read(bytes.NewReader(block), binary.LittleEndian, &sb); err != nil {
		return Superblock{}, err
	}
	return sb, nil
}

// RawInode is the exact 64-byte on-disk inode record. Field order and
// widths are part of the wire format; Reserved exists purely to pad the
// record out to 64 bytes, matching spec's "explicit padding" requirement.
type RawInode struct {
	InodeID  uint16
	Kind     uint8
	Mode     uint16
	Nlink    uint8
	Gid      uint16
	Uid      uint16
	Size     uint32
	Time     uint64
	Addr     [10]uint32
	Reserved uint16
}

const RawInodeSize = 64

// EncodeInode serializes a RawInode into its fixed 64-byte layout.
func EncodeInode(raw RawInode) []byte {
	buf := make([]byte, RawInodeSize)
	w := bytewriter.New(buf)
	if err := binary.Write(w, binary.LittleEndian, raw); err != nil {
		panic(fmt.Sprintf("inode encode: %s", err))
	}
	return buf
}

// DecodeInode parses a 64-byte buffer into a RawInode.
func DecodeInode(buf []byte) (RawInode, error) {
	if len(buf) != RawInodeSize {
		return RawInode{}, fmt.Errorf("inode record must be %d bytes, got %d", RawInodeSize, len(buf))
	}
	var raw RawInode
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &raw); err != nil {
		return RawInode{}, err
	}
	return raw, nil
}

// RawDirEntry is the exact 16-byte on-disk directory entry record.
type RawDirEntry struct {
	Filename  [10]byte
	Extension [3]byte
	IsDir     uint8
	InodeID   uint16
}

const RawDirEntrySize = 16

func EncodeDirEntry(raw RawDirEntry) []byte {
	buf := make([]byte, RawDirEntrySize)
	w := bytewriter.New(buf)
	if err := binary.Write(w, binary.LittleEndian, raw); err != nil {
		panic(fmt.Sprintf("dirent encode: %s", err))
	}
	return buf
}

func DecodeDirEntry(buf []byte) (RawDirEntry, error) {
	if len(buf) != RawDirEntrySize {
		return RawDirEntry{}, fmt.Errorf("dirent record must be %d bytes, got %d", RawDirEntrySize, len(buf))
	}
	var raw RawDirEntry
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &raw); err != nil {
		return RawDirEntry{}, err
	}
	return raw, nil
}

// PointersPerBlock is the number of uint32 block pointers that fit in a
// single indirect block (1024 / 4).
const PointersPerBlock = BlockSize / 4

// EncodePointerBlock serializes 256 block numbers into one block.
func EncodePointerBlock(pointers [PointersPerBlock]uint32) []byte {
	buf := make([]byte, BlockSize)
	w := bytewriter.New(buf)
	if err := binary.Write(w, binary.LittleEndian, pointers); err != nil {
		panic(fmt.Sprintf("pointer block encode: %s", err))
	}
	return buf
}

func DecodePointerBlock(block []byte) ([PointersPerBlock]uint32, error) {
	var pointers [PointersPerBlock]uint32
	if len(block) != BlockSize {
		return pointers, fmt.Errorf("pointer block must be %d bytes, got %d", BlockSize, len(block))
	}
	if err := binary.Read(bytes.NewReader(block), binary.LittleEndian, &pointers); err != nil {
		return pointers, err
	}
	return pointers, nil
}
