package image

// Package-wide layout constants for the 100 MiB image, per the fixed data
// model: 1 KiB blocks, 8192 inodes, first-fit bitmap allocation over both
// inode and data space.
const (
	BlockSize = 1024

	// TotalBlocks is FS_SIZE_BLOCKS: the whole image is exactly
	// TotalBlocks * BlockSize bytes.
	TotalBlocks = 102400

	SuperblockNumber = 0

	InodeBitmapBlock  = 1
	InodeBitmapBlocks = 1

	InodeSize       = 64
	InodesPerBlock  = BlockSize / InodeSize // 16
	InodeAreaStart  = InodeBitmapBlock + InodeBitmapBlocks
	InodeAreaBlocks = 512
	TotalInodes     = InodeAreaBlocks * InodesPerBlock // 8192

	DataBitmapStart  = InodeAreaStart + InodeAreaBlocks
	DataBitmapBlocks = 12

	DataAreaStart = DataBitmapStart + DataBitmapBlocks

	// DataAreaBlocks is bounded by what DataBitmapBlocks can address: twelve
	// 1 KiB bitmap blocks track 12*1024*8 = 98304 data blocks. The remaining
	// tail of the 102400-block image (101874 blocks would otherwise be
	// available) is left unaddressed padding; see DESIGN.md for why the
	// larger inode-bitmap variant of the layout was chosen without also
	// growing the data bitmap.
	DataAreaBlocks = DataBitmapBlocks * BlockSize * 8 // 98304

	RootInodeID = 0

	SuperblockMagic = uint32(0x53465331) // "SFS1"
)
