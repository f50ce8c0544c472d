// Package inode implements the inode store and the direct/indirect block
// addressing algorithm: mapping an inode plus a logical byte offset to a
// physical block number, allocating indirection blocks on demand.
package inode

import (
	"github.com/yiny1/simplefs/image"
)

// Kind distinguishes a regular file from a directory. It is the in-memory
// counterpart of RawInode.Kind.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
)

// Permission bit layout within Mode's low 9 bits, owner/group/other x rwx,
// the conventional Unix mode-bit ordering.
const (
	ModeOwnerRead = 1 << (8 - iota)
	ModeOwnerWrite
	ModeOwnerExec
	ModeGroupRead
	ModeGroupWrite
	ModeGroupExec
	ModeOtherRead
	ModeOtherWrite
	ModeOtherExec
)

// DefaultFileMode and DefaultDirMode are applied by newfile/md when the
// caller doesn't specify permissions explicitly.
const DefaultFileMode = ModeOwnerRead | ModeOwnerWrite | ModeGroupRead | ModeOtherRead
const DefaultDirMode = DefaultFileMode | ModeOwnerExec | ModeGroupExec | ModeOtherExec

// Inode is the in-memory, friendlier counterpart of image.RawInode.
type Inode struct {
	ID    uint16
	Kind  Kind
	Mode  uint16
	Nlink uint8
	Uid   uint16
	Gid   uint16
	Size  uint32
	Time  uint64
	Addr  [10]uint32
}

// IsDir reports whether the inode describes a directory.
func (in *Inode) IsDir() bool {
	return in.Kind == KindDir
}

// IsFile reports whether the inode describes a regular file.
func (in *Inode) IsFile() bool {
	return in.Kind == KindFile
}

// IsAllocated reports whether the inode record holds a live object. An
// Inode read from a clear bitmap bit is the zero value; Nlink being 0 is
// the on-disk tell.
func (in *Inode) IsAllocated() bool {
	return in.Nlink > 0
}

func toRaw(in Inode) image.RawInode {
	return image.RawInode{
		InodeID: in.ID,
		Kind:    uint8(in.Kind),
		Mode:    in.Mode,
		Nlink:   in.Nlink,
		Gid:     in.Gid,
		Uid:     in.Uid,
		Size:    in.Size,
		Time:    in.Time,
		Addr:    in.Addr,
	}
}

func fromRaw(raw image.RawInode) Inode {
	return Inode{
		ID:    raw.InodeID,
		Kind:  Kind(raw.Kind),
		Mode:  raw.Mode,
		Nlink: raw.Nlink,
		Gid:   raw.Gid,
		Uid:   raw.Uid,
		Size:  raw.Size,
		Time:  raw.Time,
		Addr:  raw.Addr,
	}
}
