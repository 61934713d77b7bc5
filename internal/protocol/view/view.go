// Package view provides bounds-checked, read-only windows over wire buffers.
package view

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrOutOfRange = errors.New("view: out of range")

// View is a read-only window over a byte buffer. The zero View is empty.
type View struct {
	b    []byte
	base int
}

// New returns a View covering all of b. The View borrows b; callers must not
// mutate b while the View or anything sliced from it is in use.
func New(b []byte) View {
	return View{b: b[:len(b):len(b)]}
}

// Len returns the number of bytes in the view.
func (v View) Len() int {
	return len(v.b)
}

// Offset returns the position of the view's first byte inside the buffer the
// root view was created from.
func (v View) Offset() int {
	return v.base
}

// Bytes returns the viewed bytes without copying. The returned slice has its
// capacity clipped so appends never reach beyond the view.
func (v View) Bytes() []byte {
	return v.b
}

// Copy returns a detached copy of the viewed bytes.
func (v View) Copy() []byte {
	out := make([]byte, len(v.b))
	copy(out, v.b)
	return out
}

// Slice returns the n bytes starting at off, relative to the view.
func (v View) Slice(off, n int) (View, error) {
	if off < 0 || n < 0 || off > len(v.b) || n > len(v.b)-off {
		return View{}, fmt.Errorf("%w: slice [%d:+%d] of %d bytes", ErrOutOfRange, off, n, len(v.b))
	}
	end := off + n
	return View{b: v.b[off:end:end], base: v.base + off}, nil
}

// Uint reads a big-endian unsigned integer of width 1, 2 or 4 bytes at off.
func (v View) Uint(off, width int) (uint32, error) {
	s, err := v.Slice(off, width)
	if err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return uint32(s.b[0]), nil
	case 2:
		return uint32(binary.BigEndian.Uint16(s.b)), nil
	case 4:
		return binary.BigEndian.Uint32(s.b), nil
	default:
		return 0, fmt.Errorf("view: unsupported integer width %d", width)
	}
}

// Equal reports whether both views hold the same bytes.
func (v View) Equal(o View) bool {
	return string(v.b) == string(o.b)
}

// Cursor reads a View front to back.
type Cursor struct {
	v   View
	off int
}

func NewCursor(v View) *Cursor {
	return &Cursor{v: v}
}

// Offset returns the cursor position relative to the start of its view.
func (c *Cursor) Offset() int {
	return c.off
}

func (c *Cursor) Remaining() int {
	return c.v.Len() - c.off
}

func (c *Cursor) Done() bool {
	return c.off >= c.v.Len()
}

// ReadUint reads a big-endian integer of the given width and advances past it.
// The cursor does not move on error.
func (c *Cursor) ReadUint(width int) (uint32, error) {
	n, err := c.v.Uint(c.off, width)
	if err != nil {
		return 0, err
	}
	c.off += width
	return n, nil
}

// Next returns the next n bytes and advances past them.
// The cursor does not move on error.
func (c *Cursor) Next(n int) (View, error) {
	s, err := c.v.Slice(c.off, n)
	if err != nil {
		return View{}, err
	}
	c.off += n
	return s, nil
}
