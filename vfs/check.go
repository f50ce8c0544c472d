package vfs

import "github.com/yiny1/simplefs/fsck"

// Check runs the reachability-based consistency checker against the live
// image, optionally rewriting the bitmaps and superblock to match what it
// found (repair=true). It takes the same exclusive lock every mutating
// operation does, since a repair pass writes the device.
func (e *Engine) Check(repair bool) (*fsck.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// checker shares the engine's live allocators, so a repair pass's
	// in-place bitmap rewrite is visible to the engine with no reload.
	checker := fsck.New(e.dev, e.inodeAlloc, e.dataAlloc, e.log)
	return checker.Check(repair)
}
