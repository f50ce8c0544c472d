// Package fsck implements offline consistency checking and repair: walking
// every reachable inode from the root, rebuilding what the inode and data
// bitmaps should look like, and reconciling that against what's actually on
// disk.
package fsck

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/yiny1/simplefs/bitmap"
	"github.com/yiny1/simplefs/content"
	"github.com/yiny1/simplefs/dirent"
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/image"
	"github.com/yiny1/simplefs/inode"
)

// Report summarizes one check pass.
type Report struct {
	InodesVisited     int
	StaleBitsCleared  []uint16
	MissingBitsSet    []uint16
	DataStaleCleared  []uint32
	DataMissingSet    []uint32
	SuperblockRewrote bool
}

// Checker walks an already-open device and reconstructs canonical bitmaps
// from inode reachability, independent of whatever the on-disk bitmaps
// currently claim.
type Checker struct {
	dev        image.Device
	inodeAlloc *bitmap.Allocator
	dataAlloc  *bitmap.Allocator
	inodes     *inode.Store
	dirs       *dirent.Dir
	log        *logrus.Entry
}

func New(dev image.Device, inodeAlloc, dataAlloc *bitmap.Allocator, log *logrus.Entry) *Checker {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Checker{
		dev:        dev,
		inodeAlloc: inodeAlloc,
		dataAlloc:  dataAlloc,
		inodes:     inode.NewStore(dev, inodeAlloc, log),
		dirs:       dirent.New(content.New(dev, dataAlloc)),
		log:        log,
	}
}

// Check walks the directory tree from root, reports every inconsistency it
// finds between reachability and the on-disk bitmaps, and — when repair is
// true — rewrites the bitmaps and superblock to match reality.
func (c *Checker) Check(repair bool) (*Report, error) {
	report := &Report{}
	var errs *multierror.Error

	expectedInodes := make(map[uint16]bool)
	expectedData := make(map[uint32]bool)

	if err := c.walk(image.RootInodeID, image.RootInodeID, expectedInodes, expectedData, report); err != nil {
		errs = multierror.Append(errs, err)
	}

	for id := uint16(0); uint(id) < image.TotalInodes; id++ {
		onDisk := c.inodeAlloc.IsSet(uint(id))
		want := expectedInodes[id]
		switch {
		case onDisk && !want:
			report.StaleBitsCleared = append(report.StaleBitsCleared, id)
			errs = multierror.Append(errs, fmt.Errorf("inode %d marked used but unreachable", id))
			if repair {
				c.inodeAlloc.SetBit(uint(id), false)
			}
		case !onDisk && want:
			report.MissingBitsSet = append(report.MissingBitsSet, id)
			errs = multierror.Append(errs, fmt.Errorf("inode %d reachable but marked free", id))
			if repair {
				c.inodeAlloc.SetBit(uint(id), true)
			}
		}
	}

	for id := uint(0); id < image.DataAreaBlocks; id++ {
		blockNum := uint32(image.DataAreaStart) + uint32(id)
		onDisk := c.dataAlloc.IsSet(id)
		want := expectedData[blockNum]
		switch {
		case onDisk && !want:
			report.DataStaleCleared = append(report.DataStaleCleared, blockNum)
			errs = multierror.Append(errs, fmt.Errorf("data block %d marked used but unreachable", blockNum))
			if repair {
				c.dataAlloc.SetBit(id, false)
			}
		case !onDisk && want:
			report.DataMissingSet = append(report.DataMissingSet, blockNum)
			errs = multierror.Append(errs, fmt.Errorf("data block %d reachable but marked free", blockNum))
			if repair {
				c.dataAlloc.SetBit(id, true)
			}
		}
	}

	if repair {
		if err := c.rewrite(); err != nil {
			return report, err
		}
		report.SuperblockRewrote = true
	}

	return report, errs.ErrorOrNil()
}

// walk recurses through the directory tree, marking every inode id and
// data block it finds reachable.
func (c *Checker) walk(id, parentID uint16, expectedInodes map[uint16]bool, expectedData map[uint32]bool, report *Report) error {
	if expectedInodes[id] {
		return nil // already visited; a cycle would otherwise loop forever
	}
	expectedInodes[id] = true
	report.InodesVisited++

	in, err := c.inodes.Read(id)
	if err != nil {
		return err
	}
	if !in.IsAllocated() {
		return ferr.ImageCorrupt.WithMessage(fmt.Sprintf("inode %d reachable but has no links", id))
	}

	blocks, err := inode.ReachableBlocks(c.dev, in)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		expectedData[b] = true
	}

	if !in.IsDir() {
		return nil
	}

	entries, err := c.dirs.Enumerate(&in)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		if err := c.walk(entry.InodeID, id, expectedInodes, expectedData, report); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) rewrite() error {
	if err := c.dev.WriteBlock(image.InodeBitmapBlock, c.inodeAlloc.Bytes()); err != nil {
		return ferr.Io.Wrap(err)
	}
	data := c.dataAlloc.Bytes()
	for i := uint32(0); i < image.DataBitmapBlocks; i++ {
		chunk := data[i*image.BlockSize : (i+1)*image.BlockSize]
		if err := c.dev.WriteBlock(image.DataBitmapStart+i, chunk); err != nil {
			return ferr.Io.Wrap(err)
		}
	}
	if err := c.dev.WriteBlock(image.SuperblockNumber, image.EncodeSuperblock(image.Canonical())); err != nil {
		return ferr.Io.Wrap(err)
	}
	return c.dev.Sync()
}
