package vfs

import (
	"strings"

	"github.com/yiny1/simplefs/dirent"
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/image"
	"github.com/yiny1/simplefs/inode"
)

// splitComponents breaks a path into its non-empty segments, reporting
// whether it was rooted ("/..." vs relative to a session's cwd).
func splitComponents(path string) (components []string, absolute bool) {
	absolute = strings.HasPrefix(path, "/")
	for _, c := range strings.Split(path, "/") {
		if c != "" {
			components = append(components, c)
		}
	}
	return components, absolute
}

// walk resolves every component of path starting from start, checking
// traverse (execute) permission on each intermediate directory. It returns
// the id and loaded inode of the final component, along with its
// containing directory's id and inode.
func (e *Engine) walk(start uint16, path string, id Identity) (resolvedID, parentID uint16, resolved, parent inode.Inode, err error) {
	components, absolute := splitComponents(path)

	cur := start
	if absolute {
		cur = image.RootInodeID
	}
	curInode, err := e.inodes.Read(cur)
	if err != nil {
		return 0, 0, inode.Inode{}, inode.Inode{}, err
	}

	if len(components) == 0 {
		return cur, cur, curInode, curInode, nil
	}

	parentOfCur := curInode
	for _, comp := range components {
		if !curInode.IsDir() {
			return 0, 0, inode.Inode{}, inode.Inode{}, ferr.NotADirectory
		}
		if err := requireTraverse(&curInode, id); err != nil {
			return 0, 0, inode.Inode{}, inode.Inode{}, err
		}
		name, ext, err := dirent.SplitName(comp)
		if err != nil {
			return 0, 0, inode.Inode{}, inode.Inode{}, err
		}
		entry, err := e.dirs.Lookup(&curInode, name, ext)
		if err != nil {
			return 0, 0, inode.Inode{}, inode.Inode{}, err
		}
		next, err := e.inodes.Read(entry.InodeID)
		if err != nil {
			return 0, 0, inode.Inode{}, inode.Inode{}, err
		}
		parentOfCur = curInode
		cur = entry.InodeID
		curInode = next
	}

	return cur, parentOfCur.ID, curInode, parentOfCur, nil
}

// resolve is the general-purpose entry point every read-only or whole-path
// operation (cd, cat, dir, del) uses: path must already exist in full.
func (e *Engine) resolve(start uint16, path string, id Identity) (targetID, parentID uint16, target, parent inode.Inode, err error) {
	return e.walk(start, path, id)
}

// resolveParent walks every component of path except the last, which is
// allowed not to exist yet (md/newfile create it). It returns the
// containing directory's id/inode and the leaf's split name/extension.
func (e *Engine) resolveParent(start uint16, path string, id Identity) (parentID uint16, parent inode.Inode, leafName, leafExt string, err error) {
	components, absolute := splitComponents(path)
	if len(components) == 0 {
		return 0, inode.Inode{}, "", "", ferr.InvalidPath.WithMessage("empty path")
	}

	dirPath := "/"
	if !absolute {
		dirPath = ""
	}
	if len(components) > 1 {
		joined := strings.Join(components[:len(components)-1], "/")
		if absolute {
			dirPath = "/" + joined
		} else {
			dirPath = joined
		}
	}

	pid, _, pinode, _, err := e.walk(start, dirPath, id)
	if err != nil {
		return 0, inode.Inode{}, "", "", err
	}
	if !pinode.IsDir() {
		return 0, inode.Inode{}, "", "", ferr.NotADirectory
	}
	name, ext, err := dirent.SplitName(components[len(components)-1])
	if err != nil {
		return 0, inode.Inode{}, "", "", err
	}
	return pid, pinode, name, ext, nil
}
