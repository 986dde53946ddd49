// Package strbuf builds strings directly in arena memory.
package strbuf

import (
	"io"
	"unicode/utf8"
	"unsafe"

	"github.com/jstoolkit/arena"
	"github.com/jstoolkit/arena/vec"
)

// defaultMinCapacity is the smallest region a Builder grows into, so short
// identifiers do not regrow byte by byte.
const defaultMinCapacity = 8

// Builder accumulates a string in an arena. Call Finish to obtain the
// result as an immutable arena string.
//
// A Builder is meant for short-lived use while one string is produced; the
// string returned by String is a view that later writes may invalidate.
type Builder struct {
	buf vec.Vec[byte, *arena.Arena]
}

var (
	_ io.Writer       = (*Builder)(nil)
	_ io.ByteWriter   = (*Builder)(nil)
	_ io.StringWriter = (*Builder)(nil)
)

// New returns an empty Builder. Nothing is allocated until the first write.
func New(a *arena.Arena) Builder {
	return Builder{buf: vec.New[byte](a)}
}

// WithCapacity returns an empty Builder with room for capacity bytes.
func WithCapacity(a *arena.Arena, capacity int) Builder {
	return Builder{buf: vec.WithCapacity[byte](capacity, a)}
}

// FromString returns a Builder holding a copy of s.
func FromString(a *arena.Arena, s string) Builder {
	b := WithCapacity(a, len(s))
	b.WriteString(s)
	return b
}

// Len returns the number of bytes written.
func (b *Builder) Len() int { return b.buf.Len() }

// Cap returns the number of bytes the builder can hold without growing.
func (b *Builder) Cap() int { return b.buf.Cap() }

// IsEmpty reports whether nothing has been written.
func (b *Builder) IsEmpty() bool { return b.buf.IsEmpty() }

// Reserve makes room for at least additional more bytes.
func (b *Builder) Reserve(additional int) {
	if additional <= b.buf.Cap()-b.buf.Len() {
		return
	}
	if b.buf.Cap() == 0 {
		b.buf.ReserveExact(max(additional, defaultMinCapacity))
		return
	}
	b.buf.Reserve(additional)
}

// WriteByte appends c. It never fails.
func (b *Builder) WriteByte(c byte) error {
	b.Reserve(1)
	b.buf.Push(c)
	return nil
}

// WriteRune appends the UTF-8 encoding of r.
func (b *Builder) WriteRune(r rune) (int, error) {
	if r < utf8.RuneSelf {
		_ = b.WriteByte(byte(r))
		return 1, nil
	}
	var tmp [utf8.UTFMax]byte
	n := utf8.EncodeRune(tmp[:], r)
	b.write(tmp[:n])
	return n, nil
}

// WriteString appends s.
func (b *Builder) WriteString(s string) (int, error) {
	b.write(unsafe.Slice(unsafe.StringData(s), len(s)))
	return len(s), nil
}

// Write appends p. It implements io.Writer and never fails.
func (b *Builder) Write(p []byte) (int, error) {
	b.write(p)
	return len(p), nil
}

// WriteByteRepeat appends n copies of c.
func (b *Builder) WriteByteRepeat(c byte, n int) {
	if n <= 0 {
		return
	}
	b.Reserve(n)
	b.buf.Resize(b.buf.Len()+n, c)
}

// String returns the bytes written so far. The result shares memory with
// the builder and must not be used after further writes.
func (b *Builder) String() string {
	s := b.buf.Slice()
	if len(s) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(s), len(s))
}

// Finish returns the built string and resets the builder. The string lives
// in the arena: it stays valid until the arena is reset or released.
func (b *Builder) Finish() string {
	s := b.buf.IntoSlice()
	if len(s) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(s), len(s))
}

func (b *Builder) write(p []byte) {
	if len(p) == 0 {
		return
	}
	b.Reserve(len(p))
	b.buf.ExtendFromSlice(p)
}

// Concat joins parts into a single arena string, allocating exactly once.
func Concat(a *arena.Arena, parts ...string) string {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	if total == 0 {
		return ""
	}
	dst := a.AllocBytes(total)
	n := 0
	for _, p := range parts {
		n += copy(dst[n:], p)
	}
	return unsafe.String(unsafe.SliceData(dst), total)
}
