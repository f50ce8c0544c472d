// Package vfs ties together the image, bitmap, inode, content, dirent, and
// users packages into the operations the command dispatcher drives: format,
// info, dir, cd, md, rd, newfile, cat, copy, del, and check. It owns the
// single whole-image lock every mutating operation takes, mirroring the
// teacher's coarse-grained "lock the device for the duration of the call"
// discipline.
package vfs

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yiny1/simplefs/bitmap"
	"github.com/yiny1/simplefs/content"
	"github.com/yiny1/simplefs/dirent"
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/image"
	"github.com/yiny1/simplefs/inode"
	"github.com/yiny1/simplefs/users"
)

// Engine is the live, opened filesystem: one per image, shared by every
// session a daemon process serves. All exported operations are safe for
// concurrent use.
type Engine struct {
	dev        image.Device
	inodeAlloc *bitmap.Allocator
	dataAlloc  *bitmap.Allocator
	inodes     *inode.Store
	content    *content.IO
	dirs       *dirent.Dir
	users      *users.Table

	mu  sync.RWMutex
	log *logrus.Entry
}

func newEngine(dev image.Device, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	inodeAlloc := bitmap.New(image.TotalInodes, ferr.OutOfInodes, log)
	dataAlloc := bitmap.New(image.DataAreaBlocks, ferr.OutOfSpace, log)
	io := content.New(dev, dataAlloc)
	return &Engine{
		dev:        dev,
		inodeAlloc: inodeAlloc,
		dataAlloc:  dataAlloc,
		inodes:     inode.NewStore(dev, inodeAlloc, log),
		content:    io,
		dirs:       dirent.New(io),
		users:      users.NewTable(nil),
		log:        log,
	}
}

// OpenDevice wraps an already-constructed Device (typically an
// image.MemDevice in tests, where touching the host filesystem would be
// wasteful) and formats it fresh.
func OpenDevice(dev image.Device, log *logrus.Entry) (*Engine, error) {
	e := newEngine(dev, log)
	if err := e.Format(); err != nil {
		return nil, err
	}
	return e, nil
}

// Open loads the image at path, creating and formatting it fresh if it
// doesn't exist or doesn't parse as one of ours, per spec: a missing or
// corrupt superblock is not a fatal condition, it's a trigger to format.
func Open(path string, log *logrus.Entry) (*Engine, error) {
	dev, err := image.OpenFileDevice(path)
	if err != nil {
		dev, err = image.CreateFileDevice(path)
		if err != nil {
			return nil, ferr.Io.Wrap(err)
		}
		e := newEngine(dev, log)
		if err := e.Format(); err != nil {
			return nil, err
		}
		return e, nil
	}

	e := newEngine(dev, log)
	if err := e.load(); err != nil {
		if _, ok := ferr.Of(err); ok {
			e.log.WithError(err).Warn("image failed to load cleanly, reformatting")
			if ferr := e.Format(); ferr != nil {
				return nil, ferr
			}
			return e, nil
		}
		return nil, err
	}
	return e, nil
}

// load reads the superblock, both bitmaps, and the /etc/passwd table from
// an existing image into memory.
func (e *Engine) load() error {
	block, err := e.dev.ReadBlock(image.SuperblockNumber)
	if err != nil {
		return ferr.Io.Wrap(err)
	}
	sb, err := image.DecodeSuperblock(block)
	if err != nil {
		return ferr.ImageCorrupt.Wrap(err)
	}
	if sb.Magic != image.SuperblockMagic {
		return ferr.ImageCorrupt.WithMessage("bad superblock magic")
	}

	if err := e.loadBitmaps(); err != nil {
		return err
	}
	return e.loadUsers()
}

func (e *Engine) loadBitmaps() error {
	inodeBlock, err := e.dev.ReadBlock(image.InodeBitmapBlock)
	if err != nil {
		return ferr.Io.Wrap(err)
	}
	e.inodeAlloc = bitmap.FromBytes(inodeBlock, image.TotalInodes, ferr.OutOfInodes, e.log)
	e.inodes = inode.NewStore(e.dev, e.inodeAlloc, e.log)

	raw := make([]byte, 0, image.DataBitmapBlocks*image.BlockSize)
	for i := uint32(0); i < image.DataBitmapBlocks; i++ {
		block, err := e.dev.ReadBlock(image.DataBitmapStart + i)
		if err != nil {
			return ferr.Io.Wrap(err)
		}
		raw = append(raw, block...)
	}
	e.dataAlloc = bitmap.FromBytes(raw, image.DataAreaBlocks, ferr.OutOfSpace, e.log)
	e.content = content.New(e.dev, e.dataAlloc)
	e.dirs = dirent.New(e.content)
	return nil
}

func (e *Engine) loadUsers() error {
	_, _, passwdInode, _, err := e.walk(image.RootInodeID, "/etc/passwd", Root)
	if err != nil {
		return err
	}
	raw, err := e.content.ReadAll(&passwdInode)
	if err != nil {
		return err
	}
	records, err := users.Unmarshal(raw)
	if err != nil {
		return err
	}
	e.users = users.NewTable(records)
	return nil
}

// flushBitmaps writes the in-memory bitmaps back to their fixed on-disk
// blocks. Every mutating operation calls this before releasing its lock.
func (e *Engine) flushBitmaps() error {
	if err := e.dev.WriteBlock(image.InodeBitmapBlock, e.inodeAlloc.Bytes()); err != nil {
		return ferr.Io.Wrap(err)
	}
	data := e.dataAlloc.Bytes()
	for i := uint32(0); i < image.DataBitmapBlocks; i++ {
		chunk := data[i*image.BlockSize : (i+1)*image.BlockSize]
		if err := e.dev.WriteBlock(image.DataBitmapStart+i, chunk); err != nil {
			return ferr.Io.Wrap(err)
		}
	}
	return nil
}

// flushUsers rewrites /etc/passwd's content from the in-memory table.
func (e *Engine) flushUsers() error {
	_, _, passwdInode, _, err := e.walk(image.RootInodeID, "/etc/passwd", Root)
	if err != nil {
		return err
	}
	raw, err := users.Marshal(e.users.Records())
	if err != nil {
		return err
	}
	if err := e.content.Truncate(&passwdInode, 0); err != nil {
		return err
	}
	if _, err := e.content.WriteAt(&passwdInode, raw, 0); err != nil {
		return err
	}
	return e.inodes.Write(passwdInode)
}

// Sync flushes the backing device.
func (e *Engine) Sync() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dev.Sync()
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dev.Close()
}

// Authenticate checks username/password against the loaded user table.
func (e *Engine) Authenticate(username, password string) (Identity, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, err := e.users.Authenticate(username, password)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Uid: rec.Uid, Gid: rec.Gid}, nil
}

// AddUser creates a new account and persists the updated table.
func (e *Engine) AddUser(rec users.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.users.Add(rec); err != nil {
		return err
	}
	if err := e.flushUsers(); err != nil {
		return err
	}
	return e.commit()
}

// ListUsers returns a snapshot of every account's uid/gid/username, never
// the password hash.
func (e *Engine) ListUsers() []users.Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := append([]users.Record(nil), e.users.Records()...)
	for i := range out {
		out[i].PasswordHash = ""
	}
	return out
}

// SetPassword updates an existing account's password and persists the
// table.
func (e *Engine) SetPassword(username, newPlaintext string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.users.SetPassword(username, newPlaintext); err != nil {
		return err
	}
	if err := e.flushUsers(); err != nil {
		return err
	}
	return e.commit()
}
