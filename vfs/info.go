package vfs

import "github.com/yiny1/simplefs/image"

// Info summarizes the image's overall allocation state, the data behind
// the "info" command.
type Info struct {
	TotalBlocks     uint32
	TotalInodes     uint32
	FreeInodes      uint32
	UsedInodes      uint32
	TotalDataBlocks uint32
	FreeDataBlocks  uint32
	UsedDataBlocks  uint32
}

func (e *Engine) Info() Info {
	e.mu.RLock()
	defer e.mu.RUnlock()

	usedInodes := uint32(e.inodeAlloc.Used())
	usedBlocks := uint32(e.dataAlloc.Used())
	return Info{
		TotalBlocks:     image.TotalBlocks,
		TotalInodes:     image.TotalInodes,
		UsedInodes:      usedInodes,
		FreeInodes:      image.TotalInodes - usedInodes,
		TotalDataBlocks: image.DataAreaBlocks,
		UsedDataBlocks:  usedBlocks,
		FreeDataBlocks:  image.DataAreaBlocks - usedBlocks,
	}
}
