package image

import (
	"fmt"
	"io"
	"os"

	"github.com/xaionaro-go/bytesextra"
)

// Device is the narrow contract the rest of the engine needs from a backing
// store: read or write exactly one 1 KiB block at a time. Both FileDevice
// and MemDevice implement it.
type Device interface {
	ReadBlock(n uint32) ([]byte, error)
	WriteBlock(n uint32, data []byte) error
	Sync() error
	Close() error
}

func checkBlockNumber(n uint32) error {
	if n >= TotalBlocks {
		return fmt.Errorf("block %d out of range [0, %d)", n, TotalBlocks)
	}
	return nil
}

// FileDevice backs an image with a real host file of exactly
// TotalBlocks*BlockSize bytes.
type FileDevice struct {
	f *os.File
}

// CreateFileDevice creates (or truncates) path to the canonical image size
// and returns a device over it. Used by format.
func CreateFileDevice(path string) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(TotalBlocks) * BlockSize); err != nil {
		f.Close()
		return nil, err
	}
	return &FileDevice{f: f}, nil
}

// OpenFileDevice opens an existing image file in place.
func OpenFileDevice(path string) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() != int64(TotalBlocks)*BlockSize {
		f.Close()
		return nil, fmt.Errorf("image %s has size %d, expected %d", path, info.Size(), int64(TotalBlocks)*BlockSize)
	}
	return &FileDevice{f: f}, nil
}

func (d *FileDevice) ReadBlock(n uint32) ([]byte, error) {
	if err := checkBlockNumber(n); err != nil {
		return nil, err
	}
	buf := make([]byte, BlockSize)
	if _, err := d.f.ReadAt(buf, int64(n)*BlockSize); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

func (d *FileDevice) WriteBlock(n uint32, data []byte) error {
	if err := checkBlockNumber(n); err != nil {
		return err
	}
	if len(data) != BlockSize {
		return fmt.Errorf("block write must be exactly %d bytes, got %d", BlockSize, len(data))
	}
	_, err := d.f.WriteAt(data, int64(n)*BlockSize)
	return err
}

func (d *FileDevice) Sync() error {
	return d.f.Sync()
}

func (d *FileDevice) Close() error {
	return d.f.Close()
}

// MemDevice is a RAM-backed device for tests, where touching the host file
// would be wasteful.
type MemDevice struct {
	rws io.ReadWriteSeeker
}

func NewMemDevice() *MemDevice {
	buf := make([]byte, int(TotalBlocks)*BlockSize)
	return &MemDevice{rws: bytesextra.NewReadWriteSeeker(buf)}
}

func (d *MemDevice) ReadBlock(n uint32) ([]byte, error) {
	if err := checkBlockNumber(n); err != nil {
		return nil, err
	}
	if _, err := d.rws.Seek(int64(n)*BlockSize, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, BlockSize)
	if _, err := io.ReadFull(d.rws, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *MemDevice) WriteBlock(n uint32, data []byte) error {
	if err := checkBlockNumber(n); err != nil {
		return err
	}
	if len(data) != BlockSize {
		return fmt.Errorf("block write must be exactly %d bytes, got %d", BlockSize, len(data))
	}
	if _, err := d.rws.Seek(int64(n)*BlockSize, io.SeekStart); err != nil {
		return err
	}
	_, err := d.rws.Write(data)
	return err
}

func (d *MemDevice) Sync() error  { return nil }
func (d *MemDevice) Close() error { return nil }
