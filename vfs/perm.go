package vfs

import (
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/inode"
)

// canRead/canWrite/canExec implement the owner/group/other permission check
// against an inode's mode bits. Root always passes.
func canRead(in *inode.Inode, id Identity) bool {
	return checkBits(in, id, inode.ModeOwnerRead, inode.ModeGroupRead, inode.ModeOtherRead)
}

func canWrite(in *inode.Inode, id Identity) bool {
	return checkBits(in, id, inode.ModeOwnerWrite, inode.ModeGroupWrite, inode.ModeOtherWrite)
}

func canExec(in *inode.Inode, id Identity) bool {
	return checkBits(in, id, inode.ModeOwnerExec, inode.ModeGroupExec, inode.ModeOtherExec)
}

func checkBits(in *inode.Inode, id Identity, ownerBit, groupBit, otherBit uint16) bool {
	if id.IsRoot() {
		return true
	}
	switch {
	case in.Uid == id.Uid:
		return in.Mode&ownerBit != 0
	case in.Gid == id.Gid:
		return in.Mode&groupBit != 0
	default:
		return in.Mode&otherBit != 0
	}
}

// requireTraverse checks execute permission on a directory an intermediate
// path component passes through.
func requireTraverse(in *inode.Inode, id Identity) error {
	if !canExec(in, id) {
		return ferr.PermissionDenied.WithMessage("cannot traverse directory")
	}
	return nil
}

func requireRead(in *inode.Inode, id Identity) error {
	if !canRead(in, id) {
		return ferr.PermissionDenied.WithMessage("read access denied")
	}
	return nil
}

func requireWrite(in *inode.Inode, id Identity) error {
	if !canWrite(in, id) {
		return ferr.PermissionDenied.WithMessage("write access denied")
	}
	return nil
}

// requireDirWriteExec checks the write+execute pair md/newfile/del need on
// the containing directory before mutating its entries.
func requireDirWriteExec(in *inode.Inode, id Identity) error {
	if err := requireTraverse(in, id); err != nil {
		return err
	}
	return requireWrite(in, id)
}
