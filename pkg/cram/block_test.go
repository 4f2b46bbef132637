package cram

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockRoundTripAllMethods(t *testing.T) {
	payload := bytes.Repeat([]byte("reference compressed alignment data "), 50)

	for _, method := range []CompressionMethod{MethodNone, MethodGzip, MethodBzip2, MethodLzma} {
		t.Run(method.String(), func(t *testing.T) {
			in := &Block{
				ContentType: ContentExternalData,
				Method:      method,
				ContentID:   7,
				Data:        payload,
			}
			encoded, err := in.encode(nil)
			require.NoError(t, err)

			out, err := readBlock(bytes.NewReader(encoded))
			require.NoError(t, err)
			assert.Equal(t, in.ContentType, out.ContentType)
			assert.Equal(t, in.Method, out.Method)
			assert.Equal(t, in.ContentID, out.ContentID)
			assert.Equal(t, payload, out.Data)
		})
	}
}

func TestBlockEmptyPayload(t *testing.T) {
	in := &Block{ContentType: ContentCoreData, Method: MethodNone}
	encoded, err := in.encode(nil)
	require.NoError(t, err)

	out, err := readBlock(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Empty(t, out.Data)
}

func TestBlockChecksumMismatch(t *testing.T) {
	in := &Block{ContentType: ContentExternalData, Method: MethodNone, Data: []byte("payload")}
	encoded, err := in.encode(nil)
	require.NoError(t, err)

	// Flip a payload byte; the stored checksum no longer matches.
	encoded[len(encoded)-6] ^= 0xff
	_, err = readBlock(bytes.NewReader(encoded))
	assert.ErrorIs(t, err, ErrInvalidBlockCRC)
}

func TestBlockUnsupportedMethod(t *testing.T) {
	in := &Block{ContentType: ContentExternalData, Method: MethodNone, Data: []byte("payload")}
	encoded, err := in.encode(nil)
	require.NoError(t, err)

	encoded[1] = 4 // rank coder slot, reserved
	_, err = readBlock(bytes.NewReader(encoded))
	assert.ErrorIs(t, err, ErrUnsupportedCompressionMethod)

	_, err = compress(nil, CompressionMethod(9))
	assert.ErrorIs(t, err, ErrUnsupportedCompressionMethod)
}

func TestBlockTruncated(t *testing.T) {
	in := &Block{ContentType: ContentExternalData, Method: MethodGzip, Data: []byte("payload payload payload")}
	encoded, err := in.encode(nil)
	require.NoError(t, err)

	for _, cut := range []int{1, 3, len(encoded) / 2, len(encoded) - 1} {
		_, err := readBlock(bytes.NewReader(encoded[:cut]))
		assert.ErrorIs(t, err, ErrTruncated, "cut at %d", cut)
	}
}
