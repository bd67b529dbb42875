package chunk

import (
	"bytes"
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-lightning-land/wifiprovd/att"
)

func TestFixedWriteThenRead(t *testing.T) {
	for offset := 0; offset <= 32; offset++ {
		for size := 0; offset+size <= 32; size++ {
			b := NewFixed(32)
			require.NoError(t, b.Write(0, bytes.Repeat([]byte{0xAA}, 32)))

			value := bytes.Repeat([]byte{0x55}, size)
			require.NoError(t, b.Write(offset, value))

			got, err := b.Read(0, 32)
			require.NoError(t, err)
			require.Len(t, got, 32)

			for i, c := range got {
				if i >= offset && i < offset+size {
					require.Equalf(t, byte(0x55), c, "offset %d size %d byte %d", offset, size, i)
				} else {
					require.Equalf(t, byte(0xAA), c, "offset %d size %d byte %d", offset, size, i)
				}
			}
		}
	}
}

func TestFixedWriteTooLong(t *testing.T) {
	b := NewFixed(32)
	require.NoError(t, b.Write(0, bytes.Repeat([]byte{1}, 32)))

	err := b.Write(20, make([]byte, 13))
	require.Error(t, err)
	assert.True(t, errors.Is(err, att.ErrInvalidLength))
	assert.Equal(t, bytes.Repeat([]byte{1}, 32), b.Bytes())
	assert.Equal(t, 32, b.Len())
}

func TestReadOffsetAndMaxLen(t *testing.T) {
	b := NewVariable(32)
	require.NoError(t, b.Write(0, []byte("0123456789")))

	tests := []struct {
		name    string
		offset  int
		maxLen  int
		want    string
		wantErr error
	}{
		{"Whole", 0, 0, "0123456789", nil},
		{"Limited", 0, 4, "0123", nil},
		{"Middle", 3, 4, "3456", nil},
		{"Tail", 8, 20, "89", nil},
		{"AtEnd", 10, 20, "", nil},
		{"PastEnd", 11, 20, "", att.ErrInvalidOffset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Read(tt.offset, tt.maxLen)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestVariableClearsOnOffsetZero(t *testing.T) {
	b := NewVariable(32)
	require.NoError(t, b.Write(0, []byte("a-rather-long-ssid")))
	require.NoError(t, b.Write(0, []byte("short")))

	assert.Equal(t, "short", string(b.Bytes()))
}

func TestVariableChunkedWrite(t *testing.T) {
	b := NewVariable(32)
	require.NoError(t, b.Write(0, []byte("home-")))
	require.NoError(t, b.Write(5, []byte("network")))

	assert.Equal(t, "home-network", string(b.Bytes()))

	err := b.Write(12, make([]byte, 21))
	assert.True(t, errors.Is(err, att.ErrInvalidLength))
	assert.Equal(t, "home-network", string(b.Bytes()))
}

func TestVariableGapIsZeroFilled(t *testing.T) {
	b := NewVariable(8)
	require.NoError(t, b.Write(0, []byte("ab")))
	require.NoError(t, b.Write(4, []byte("cd")))

	assert.Equal(t, []byte{'a', 'b', 0, 0, 'c', 'd'}, b.Bytes())
}

func TestReset(t *testing.T) {
	fixed := NewFixed(4)
	require.NoError(t, fixed.Write(0, []byte{1, 2, 3, 4}))
	fixed.Reset()
	assert.Equal(t, []byte{0, 0, 0, 0}, fixed.Bytes())

	variable := NewVariable(4)
	require.NoError(t, variable.Write(0, []byte{1, 2}))
	variable.Reset()
	assert.Equal(t, 0, variable.Len())
}

func TestSet(t *testing.T) {
	fixed := NewFixed(2)
	assert.True(t, errors.Is(fixed.Set([]byte{1}), att.ErrInvalidLength))
	require.NoError(t, fixed.Set([]byte{1, 2}))
	assert.Equal(t, []byte{1, 2}, fixed.Bytes())

	variable := NewVariable(3)
	require.NoError(t, variable.Set([]byte{9}))
	assert.Equal(t, []byte{9}, variable.Bytes())
	assert.True(t, errors.Is(variable.Set([]byte{1, 2, 3, 4}), att.ErrInvalidLength))
}

func TestReadReturnsCopy(t *testing.T) {
	b := NewFixed(2)
	got, err := b.Read(0, 0)
	require.NoError(t, err)

	got[0] = 7
	assert.Equal(t, []byte{0, 0}, b.Bytes())
}

func TestSlice(t *testing.T) {
	got, err := Slice([]byte{2}, 0, 23)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, got)

	got, err = Slice([]byte{2}, 1, 23)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Slice([]byte{2}, 2, 23)
	assert.True(t, errors.Is(err, att.ErrInvalidOffset))
}
