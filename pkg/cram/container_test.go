package cram

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerHeaderRoundTrip(t *testing.T) {
	in := &ContainerHeader{
		Length:        1234,
		ReferenceID:   2,
		Start:         1000,
		Span:          5000,
		RecordCount:   100,
		RecordCounter: 1 << 40,
		BaseCount:     15000,
		BlockCount:    7,
		Landmarks:     []int32{0, 600},
	}

	out, err := readContainerHeader(bytes.NewReader(in.marshal()))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestContainerHeaderChecksumMismatch(t *testing.T) {
	raw := (&ContainerHeader{Length: 10, ReferenceID: 1}).marshal()
	raw[5] ^= 0xff
	_, err := readContainerHeader(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrInvalidBlockCRC)
}

func TestContainerHeaderTruncated(t *testing.T) {
	raw := (&ContainerHeader{Length: 10, ReferenceID: 1, Landmarks: []int32{0}}).marshal()
	for _, cut := range []int{0, 2, 5, len(raw) - 1} {
		_, err := readContainerHeader(bytes.NewReader(raw[:cut]))
		assert.ErrorIs(t, err, ErrTruncated, "cut at %d", cut)
	}
}

func TestEOFSentinel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEOFContainer(&buf))

	h, err := readContainerHeader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.True(t, h.IsEOF())

	full := &ContainerHeader{Length: 10, BlockCount: 2}
	assert.False(t, full.IsEOF())
}

func TestStreamEndsWithoutSentinel(t *testing.T) {
	f := bytes.NewReader(nil)
	_, err := readContainerHeader(f)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.NotErrorIs(t, err, io.EOF)
}
