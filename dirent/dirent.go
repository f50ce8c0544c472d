// Package dirent implements the directory layer: directories are arrays of
// fixed-size 16-byte entries stored as the file content of a directory
// inode. dir_lookup/insert/remove/enumerate are all linear scans, per spec
// ("directories are small").
package dirent

import (
	"strings"

	"github.com/yiny1/simplefs/content"
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/image"
	"github.com/yiny1/simplefs/inode"
	"golang.org/x/exp/slices"
)

// Entry is the in-memory counterpart of image.RawDirEntry.
type Entry struct {
	Name    string // up to 10 bytes, without extension
	Ext     string // up to 3 bytes
	IsDir   bool
	InodeID uint16
}

// FullName renders "name.ext" (or bare "name" if Ext is empty), the form
// the path resolver and CLI output use.
func (e Entry) FullName() string {
	if e.Ext == "" {
		return e.Name
	}
	return e.Name + "." + e.Ext
}

// SplitName splits a path component into (name, ext) per the 8.3-style
// on-disk encoding: at most 10 bytes of name, 3 of extension, ASCII only.
func SplitName(component string) (name, ext string, err error) {
	if component == "" || component == "." || component == ".." {
		return component, "", nil
	}
	if strings.ContainsRune(component, '/') {
		return "", "", ferr.InvalidName.WithMessage("name contains '/'")
	}
	name = component
	if dot := strings.LastIndexByte(component, '.'); dot > 0 {
		name, ext = component[:dot], component[dot+1:]
	}
	if len(name) > 10 || len(ext) > 3 {
		return "", "", ferr.InvalidName.WithMessage("name or extension too long")
	}
	for _, r := range component {
		if r > 127 {
			return "", "", ferr.InvalidName.WithMessage("non-ASCII byte in name")
		}
	}
	return name, ext, nil
}

func toRaw(e Entry) (image.RawDirEntry, error) {
	var raw image.RawDirEntry
	if len(e.Name) > 10 || len(e.Ext) > 3 {
		return raw, ferr.InvalidName
	}
	copy(raw.Filename[:], e.Name)
	copy(raw.Extension[:], e.Ext)
	if e.IsDir {
		raw.IsDir = 1
	}
	raw.InodeID = e.InodeID
	return raw, nil
}

func fromRaw(raw image.RawDirEntry) Entry {
	return Entry{
		Name:    trimZero(raw.Filename[:]),
		Ext:     trimZero(raw.Extension[:]),
		IsDir:   raw.IsDir != 0,
		InodeID: raw.InodeID,
	}
}

func trimZero(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Dir provides lookup/insert/remove/enumerate over the directory content
// addressed by dirInode, through the shared content.IO primitive.
type Dir struct {
	io *content.IO
}

func New(io *content.IO) *Dir {
	return &Dir{io: io}
}

// EntryCount returns the number of 16-byte records currently stored.
func EntryCount(dirInode *inode.Inode) uint32 {
	return dirInode.Size / image.RawDirEntrySize
}

// Enumerate returns every entry in stored order, including "." and "..".
func (d *Dir) Enumerate(dirInode *inode.Inode) ([]Entry, error) {
	raw, err := d.io.ReadAll(dirInode)
	if err != nil {
		return nil, err
	}
	count := len(raw) / image.RawDirEntrySize
	entries := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		rec, err := image.DecodeDirEntry(raw[i*image.RawDirEntrySize : (i+1)*image.RawDirEntrySize])
		if err != nil {
			return nil, ferr.ImageCorrupt.Wrap(err)
		}
		entries = append(entries, fromRaw(rec))
	}
	return entries, nil
}

// Lookup scans dirInode's content for an entry with the given name/ext.
func (d *Dir) Lookup(dirInode *inode.Inode, name, ext string) (Entry, error) {
	entries, err := d.Enumerate(dirInode)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.Name == name && e.Ext == ext {
			return e, nil
		}
	}
	return Entry{}, ferr.NotFound
}

// Insert appends a new entry, growing dirInode's content by 16 bytes. It
// fails with ferr.AlreadyExists if name/ext is already present.
func (d *Dir) Insert(dirInode *inode.Inode, e Entry) error {
	if _, err := d.Lookup(dirInode, e.Name, e.Ext); err == nil {
		return ferr.AlreadyExists
	}
	raw, err := toRaw(e)
	if err != nil {
		return err
	}
	encoded := image.EncodeDirEntry(raw)
	if _, err := d.io.WriteAt(dirInode, encoded, int64(dirInode.Size)); err != nil {
		return err
	}
	return nil
}

// Remove deletes the entry matching name/ext, compacting by copying the
// last entry into the removed slot and shrinking the content by 16 bytes,
// per spec (no gap is ever left in the middle of the array).
func (d *Dir) Remove(dirInode *inode.Inode, name, ext string) error {
	entries, err := d.Enumerate(dirInode)
	if err != nil {
		return err
	}

	victim := slices.IndexFunc(entries, func(e Entry) bool {
		return e.Name == name && e.Ext == ext
	})
	if victim == -1 {
		return ferr.NotFound
	}

	last := len(entries) - 1
	if victim != last {
		entries[victim] = entries[last]
		raw, err := toRaw(entries[victim])
		if err != nil {
			return err
		}
		if _, err := d.io.WriteAt(dirInode, image.EncodeDirEntry(raw), int64(victim*image.RawDirEntrySize)); err != nil {
			return err
		}
	}

	return d.io.Truncate(dirInode, uint32(last*image.RawDirEntrySize))
}

// InitEmpty writes the mandatory "." and ".." entries that every directory
// begins life with, pointing at selfID and parentID respectively (equal
// for the root directory).
func (d *Dir) InitEmpty(dirInode *inode.Inode, selfID, parentID uint16) error {
	if err := d.Insert(dirInode, Entry{Name: ".", IsDir: true, InodeID: selfID}); err != nil {
		return err
	}
	return d.Insert(dirInode, Entry{Name: "..", IsDir: true, InodeID: parentID})
}

// IsEmpty reports whether dirInode contains only "." and "..".
func (d *Dir) IsEmpty(dirInode *inode.Inode) (bool, error) {
	return EntryCount(dirInode) <= 2, nil
}
