// Package chunk implements the offset addressed partial reads and writes used
// by every characteristic value that may not fit into a single packet.
package chunk

import (
	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifiprovd/att"
)

// Buffer is a characteristic value with a capacity. A fixed buffer always
// holds exactly capacity bytes, a variable buffer holds up to capacity
// bytes and is emptied by writes at offset zero.
// Buffer is not safe for concurrent use, its owner serializes access.
type Buffer struct {
	data     []byte
	capacity int
	variable bool
}

// NewFixed returns a zero filled buffer of size bytes that never resizes.
func NewFixed(size int) *Buffer {
	return &Buffer{
		data:     make([]byte, size),
		capacity: size,
	}
}

// NewVariable returns an empty buffer that can grow up to capacity bytes.
func NewVariable(capacity int) *Buffer {
	return &Buffer{
		data:     make([]byte, 0, capacity),
		capacity: capacity,
		variable: true,
	}
}

// Read returns up to maxLen bytes starting at offset. A maxLen of zero or
// less reads to the end.
func (b *Buffer) Read(offset int, maxLen int) ([]byte, error) {
	return Slice(b.data, offset, maxLen)
}

// Write splices value into the buffer at offset.
func (b *Buffer) Write(offset int, value []byte) error {
	if offset < 0 || offset+len(value) > b.capacity {
		return errors.Errorf("write of %d bytes at %d exceeds %d: %w", len(value), offset, b.capacity, att.ErrInvalidLength)
	}

	if b.variable {
		// a shorter value must not keep the tail of a longer one
		if offset == 0 {
			b.data = b.data[:0]
		}

		if end := offset + len(value); end > len(b.data) {
			grown := make([]byte, end)
			copy(grown, b.data)
			b.data = grown
		}
	}

	copy(b.data[offset:], value)

	return nil
}

// Bytes returns a copy of the whole value.
func (b *Buffer) Bytes() []byte {
	value := make([]byte, len(b.data))
	copy(value, b.data)

	return value
}

// Len returns the current length of the value.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cap returns the capacity of the buffer.
func (b *Buffer) Cap() int {
	return b.capacity
}

// Reset zeroes a fixed buffer and empties a variable one.
func (b *Buffer) Reset() {
	if b.variable {
		b.data = b.data[:0]
		return
	}

	for i := range b.data {
		b.data[i] = 0
	}
}

// Set replaces the whole value. It fails when value exceeds the capacity,
// and for fixed buffers when value has a different length.
func (b *Buffer) Set(value []byte) error {
	if len(value) > b.capacity || (!b.variable && len(value) != b.capacity) {
		return errors.Errorf("set of %d bytes into %d: %w", len(value), b.capacity, att.ErrInvalidLength)
	}

	if b.variable {
		b.data = append(b.data[:0], value...)
	} else {
		copy(b.data, value)
	}

	return nil
}

// Slice returns a copy of up to maxLen bytes of value starting at offset,
// following the same rules as Buffer.Read.
func Slice(value []byte, offset int, maxLen int) ([]byte, error) {
	if offset < 0 || offset > len(value) {
		return nil, errors.Errorf("read at %d of %d bytes: %w", offset, len(value), att.ErrInvalidOffset)
	}

	size := len(value) - offset
	if maxLen > 0 && size > maxLen {
		size = maxLen
	}

	part := make([]byte, size)
	copy(part, value[offset:offset+size])

	return part, nil
}
