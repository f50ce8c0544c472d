package vfs

import (
	"github.com/yiny1/simplefs/bitmap"
	"github.com/yiny1/simplefs/content"
	"github.com/yiny1/simplefs/dirent"
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/image"
	"github.com/yiny1/simplefs/inode"
	"github.com/yiny1/simplefs/users"
)

// Format wipes the image and rebuilds it from scratch: a fresh superblock,
// an empty root directory, and a seeded /etc/passwd holding just the root
// account. It's destructive and is only ever called on a brand-new image or
// as the recovery path when loading an existing one fails.
func (e *Engine) Format() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.inodeAlloc = bitmap.New(image.TotalInodes, ferr.OutOfInodes, e.log)
	e.dataAlloc = bitmap.New(image.DataAreaBlocks, ferr.OutOfSpace, e.log)
	e.inodes = inode.NewStore(e.dev, e.inodeAlloc, e.log)
	e.content = content.New(e.dev, e.dataAlloc)
	e.dirs = dirent.New(e.content)

	if err := e.dev.WriteBlock(image.SuperblockNumber, image.EncodeSuperblock(image.Canonical())); err != nil {
		return ferr.Io.Wrap(err)
	}

	root, err := e.inodes.Alloc()
	if err != nil {
		return err
	}
	root.Kind = inode.KindDir
	// The root directory is writable by every account, so any user can
	// create entries at the top level.
	root.Mode = inode.DefaultDirMode | inode.ModeGroupWrite | inode.ModeOtherWrite
	root.Nlink = 2
	root.Uid, root.Gid = users.RootUID, users.RootUID
	if err := e.dirs.InitEmpty(&root, root.ID, root.ID); err != nil {
		return err
	}
	if err := e.inodes.Write(root); err != nil {
		return err
	}

	etc, err := e.mkdirRaw(&root, "etc", "")
	if err != nil {
		return err
	}

	records, err := users.DefaultRecords()
	if err != nil {
		return err
	}
	e.users = users.NewTable(records)
	raw, err := users.Marshal(records)
	if err != nil {
		return err
	}
	if _, err := e.mkfileRaw(&etc, "passwd", "", raw); err != nil {
		return err
	}

	if err := e.flushBitmaps(); err != nil {
		return err
	}
	return e.dev.Sync()
}

// mkdirRaw allocates a directory, wires its "."/"..", inserts it into
// parent, and returns the new inode. Used only during format, where the
// usual permission checks don't apply.
func (e *Engine) mkdirRaw(parent *inode.Inode, name, ext string) (inode.Inode, error) {
	child, err := e.inodes.Alloc()
	if err != nil {
		return inode.Inode{}, err
	}
	child.Kind = inode.KindDir
	child.Mode = inode.DefaultDirMode
	child.Nlink = 2
	child.Uid, child.Gid = users.RootUID, users.RootUID
	if err := e.dirs.InitEmpty(&child, child.ID, parent.ID); err != nil {
		return inode.Inode{}, err
	}
	if err := e.inodes.Write(child); err != nil {
		return inode.Inode{}, err
	}
	if err := e.dirs.Insert(parent, dirent.Entry{Name: name, Ext: ext, IsDir: true, InodeID: child.ID}); err != nil {
		return inode.Inode{}, err
	}
	parent.Nlink++
	if err := e.inodes.Write(*parent); err != nil {
		return inode.Inode{}, err
	}
	return child, nil
}

// mkfileRaw allocates a regular file, writes its initial content, and
// inserts it into parent.
func (e *Engine) mkfileRaw(parent *inode.Inode, name, ext string, data []byte) (inode.Inode, error) {
	child, err := e.inodes.Alloc()
	if err != nil {
		return inode.Inode{}, err
	}
	child.Kind = inode.KindFile
	child.Mode = inode.DefaultFileMode
	child.Nlink = 1
	child.Uid, child.Gid = users.RootUID, users.RootUID
	if len(data) > 0 {
		if _, err := e.content.WriteAt(&child, data, 0); err != nil {
			return inode.Inode{}, err
		}
	}
	if err := e.inodes.Write(child); err != nil {
		return inode.Inode{}, err
	}
	if err := e.dirs.Insert(parent, dirent.Entry{Name: name, Ext: ext, InodeID: child.ID}); err != nil {
		return inode.Inode{}, err
	}
	if err := e.inodes.Write(*parent); err != nil {
		return inode.Inode{}, err
	}
	return child, nil
}
