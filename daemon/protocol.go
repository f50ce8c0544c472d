// Package daemon implements the network front end: a length-prefixed
// framing protocol over TCP, a line-command dispatcher, and the connection
// server that multiplexes many shell clients against one vfs.Engine.
package daemon

import (
	"encoding/binary"
	"io"

	"github.com/yiny1/simplefs/ferr"
)

// MaxFrameSize bounds a single frame's payload, rejecting anything absurd
// before allocating a buffer for it.
const MaxFrameSize = 4 << 20

// WriteFrame writes a uint32 little-endian length prefix followed by
// payload, the wire format every request and response uses.
func WriteFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return ferr.Io.Wrap(err)
	}
	if _, err := w.Write(payload); err != nil {
		return ferr.Io.Wrap(err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, ferr.InvalidPath.WithMessage("frame too large")
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, ferr.Io.Wrap(err)
	}
	return payload, nil
}
