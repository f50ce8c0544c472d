// Package bitmap implements the first-fit inode/data-block allocator
// described by the engine's data model: a bit set means the corresponding
// id is in use, scanning for a free id always starts at index 0, and
// freeing an already-free bit is a non-fatal warning rather than an error.
package bitmap

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/sirupsen/logrus"
	"github.com/yiny1/simplefs/ferr"
)

// Allocator tracks which of a fixed number of ids are in use. It holds no
// reference to the backing image; callers are responsible for loading its
// bytes from disk and persisting Bytes() back at a commit point.
type Allocator struct {
	bits       bitmap.Bitmap
	totalUnits uint
	outOfSpace ferr.Kind
	log        *logrus.Entry
}

// New creates an allocator with every bit clear, backed by exactly
// ceil(totalUnits/8) bytes so Bytes() matches the on-disk bitmap size.
func New(totalUnits uint, outOfSpace ferr.Kind, log *logrus.Entry) *Allocator {
	return &Allocator{
		bits:       make(bitmap.Bitmap, (totalUnits+7)/8),
		totalUnits: totalUnits,
		outOfSpace: outOfSpace,
		log:        log,
	}
}

// FromBytes loads an allocator from a previously persisted bitmap. raw is
// taken as the bitmap's backing storage directly (bitmap.Bitmap is a []byte
// under the hood), so an on-disk bitmap block is wrapped without copying it.
func FromBytes(raw []byte, totalUnits uint, outOfSpace ferr.Kind, log *logrus.Entry) *Allocator {
	return &Allocator{
		bits:       bitmap.Bitmap(raw),
		totalUnits: totalUnits,
		outOfSpace: outOfSpace,
		log:        log,
	}
}

// Bytes returns the raw bitmap storage, ready to be written back to disk.
func (a *Allocator) Bytes() []byte {
	return []byte(a.bits)
}

// TotalUnits returns the number of ids this allocator tracks.
func (a *Allocator) TotalUnits() uint {
	return a.totalUnits
}

// IsSet reports whether id is currently allocated.
func (a *Allocator) IsSet(id uint) bool {
	return a.bits.Get(int(id))
}

// Alloc scans from index 0 for the first free id, marks it allocated, and
// returns it. Deterministic first-fit, per spec.
func (a *Allocator) Alloc() (uint, error) {
	for i := uint(0); i < a.totalUnits; i++ {
		if !a.bits.Get(int(i)) {
			a.bits.Set(int(i), true)
			return i, nil
		}
	}
	return 0, a.outOfSpace
}

// Free clears id. Freeing an id that is already free logs a warning and
// returns nil rather than an error, per spec's idempotent-free rule.
func (a *Allocator) Free(id uint) error {
	if id >= a.totalUnits {
		return ferr.InvalidPath.WithMessage(fmt.Sprintf("id %d out of range [0, %d)", id, a.totalUnits))
	}
	if !a.bits.Get(int(id)) {
		if a.log != nil {
			a.log.WithField("id", id).Warn("freeing an already-free bitmap entry")
		}
		return nil
	}
	a.bits.Set(int(id), false)
	return nil
}

// Used counts the number of set bits.
func (a *Allocator) Used() uint {
	n := uint(0)
	for i := uint(0); i < a.totalUnits; i++ {
		if a.bits.Get(int(i)) {
			n++
		}
	}
	return n
}

// Reset clears every bit, used by fsck when rewriting the canonical bitmap
// from a reachability scan.
func (a *Allocator) Reset() {
	for i := uint(0); i < a.totalUnits; i++ {
		a.bits.Set(int(i), false)
	}
}

// SetBit force-sets or clears id without going through Alloc/Free's
// bookkeeping. Used only by fsck reconstruction, where the desired state
// is computed externally and ordinary alloc semantics (first-fit, warn on
// double free) don't apply.
func (a *Allocator) SetBit(id uint, value bool) {
	a.bits.Set(int(id), value)
}
