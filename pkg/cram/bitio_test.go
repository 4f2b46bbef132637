package cram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitRoundTrip(t *testing.T) {
	w := &bitWriter{}
	w.writeBit(1)
	w.writeBits(0b1011, 4)
	w.writeUnary(3)
	w.writeBits(0x1234, 16)
	data := w.finish()

	r := newBitReader(data)

	b, err := r.readBit()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), b)

	v, err := r.readBits(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b1011), v)

	u, err := r.readUnary()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), u)

	v, err = r.readBits(16)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1234), v)
}

func TestBitWriterPadsFinalByte(t *testing.T) {
	w := &bitWriter{}
	w.writeBits(0b101, 3)
	data := w.finish()
	require.Len(t, data, 1)
	assert.Equal(t, byte(0b10100000), data[0])
}

func TestBitReaderExhausted(t *testing.T) {
	r := newBitReader([]byte{0xff})
	_, err := r.readBits(8)
	require.NoError(t, err)
	_, err = r.readBit()
	assert.Error(t, err)
}

func TestBitsMSBFirst(t *testing.T) {
	r := newBitReader([]byte{0b11000101})
	v, err := r.readBits(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b110), v)
	v, err = r.readBits(5)
	require.NoError(t, err)
	assert.Equal(t, uint32(0b00101), v)
}
