// Package wire implements the big-endian, NUL-terminated-string primitives
// that every PostgreSQL frontend/backend message is built out of.
package wire

import (
	"bytes"

	"github.com/pgwire/pgwire/pgerr"
)

// Cursor reads big-endian integers and NUL-terminated strings out of a byte
// slice, advancing in place. It never allocates and never panics; running
// off the end of the slice returns an error instead.
type Cursor struct {
	b []byte
}

// NewCursor wraps b for reading. b is not copied — the cursor borrows it.
func NewCursor(b []byte) Cursor {
	return Cursor{b: b}
}

// Len returns the number of unread bytes.
func (c *Cursor) Len() int {
	return len(c.b)
}

// Remaining returns the unread tail of the underlying slice without
// consuming it.
func (c *Cursor) Remaining() []byte {
	return c.b
}

// ReadUint8 consumes one byte.
func (c *Cursor) ReadUint8() (uint8, error) {
	b, err := c.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt16 consumes two bytes, big-endian, signed.
func (c *Cursor) ReadInt16() (int16, error) {
	v, err := c.ReadUint16()
	return int16(v), err
}

// ReadUint16 consumes two bytes, big-endian.
func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// ReadUint32 consumes four bytes, big-endian.
func (c *Cursor) ReadUint32() (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// ReadCString scans for the first NUL byte and returns the bytes before it,
// advancing the cursor past the NUL. The returned slice aliases the
// underlying buffer and must not be retained past the buffer's lifetime.
func (c *Cursor) ReadCString() ([]byte, error) {
	idx := bytes.IndexByte(c.b, 0)
	if idx < 0 {
		return nil, pgerr.Malformed()
	}
	s := c.b[:idx]
	c.b = c.b[idx+1:]
	return s, nil
}

// ReadBytes consumes exactly n bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if len(c.b) < n {
		return nil, pgerr.Malformed()
	}
	out := c.b[:n]
	c.b = c.b[n:]
	return out, nil
}
