package cram

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestITF8RoundTrip(t *testing.T) {
	values := []int32{
		0, 1, 127, 128, 16383, 16384, 2097151, 2097152,
		268435455, 268435456, 2147483647,
		-1, -128, -2147483648,
	}
	for _, v := range values {
		buf := appendITF8(nil, v)
		got, err := readITF8(bytes.NewReader(buf))
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, v, got)
	}
}

func TestITF8EncodedLengths(t *testing.T) {
	cases := []struct {
		v   int32
		len int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{2097151, 3},
		{2097152, 4},
		{268435455, 4},
		{268435456, 5},
		{2147483647, 5},
		{-1, 5}, // negative values use the full width
	}
	for _, c := range cases {
		assert.Len(t, appendITF8(nil, c.v), c.len, "value %d", c.v)
	}
}

func TestLTF8RoundTrip(t *testing.T) {
	values := []int64{
		0, 1, 127, 128, 1 << 14, 1 << 21, 1 << 28, 1 << 35,
		1 << 42, 1 << 49, 1 << 56, 1<<62 - 1,
		-1, -1 << 40, -9223372036854775808,
	}
	for _, v := range values {
		buf := appendLTF8(nil, v)
		got, err := readLTF8(bytes.NewReader(buf))
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, v, got)
	}
}

func TestVarintTruncated(t *testing.T) {
	// A lead byte promising four continuation bytes, then nothing.
	_, err := readITF8(bytes.NewReader([]byte{0xf0}))
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = readITF8(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = readLTF8(bytes.NewReader([]byte{0xff, 0x01, 0x02}))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestITF8FiveByteLowNibble(t *testing.T) {
	// The fifth byte of a five byte value carries only its low four bits.
	buf := appendITF8(nil, -1)
	require.Len(t, buf, 5)

	mutated := append([]byte{}, buf...)
	mutated[4] |= 0xf0 // high nibble is ignored on read
	got, err := readITF8(bytes.NewReader(mutated))
	require.NoError(t, err)
	assert.Equal(t, int32(-1), got)
}

func TestReadByteOrTruncatedWrapsEOF(t *testing.T) {
	_, err := readByteOrTruncated(bytes.NewReader(nil))
	assert.True(t, errors.Is(err, ErrTruncated))
}
