package cram

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTripEncoding(t *testing.T, e *Encoding) *Encoding {
	t.Helper()
	raw, err := appendEncoding(nil, e)
	require.NoError(t, err)
	out, err := readEncoding(bytes.NewReader(raw))
	require.NoError(t, err)
	return out
}

func TestEncodingSerializationRoundTrip(t *testing.T) {
	cases := map[string]*Encoding{
		"external":      externalEncoding(12),
		"huffman":       {ID: EncodingHuffman, Alphabet: []int32{66, 88, 73}, BitLengths: []int32{1, 2, 2}},
		"beta":          {ID: EncodingBeta, Offset: -10, Length: 6},
		"gamma":         {ID: EncodingGamma, Offset: 1},
		"golomb":        {ID: EncodingGolomb, Offset: 0, M: 10},
		"golombRice":    {ID: EncodingGolombRice, Offset: 0, Log2M: 3},
		"subexp":        {ID: EncodingSubexp, Offset: 0, K: 2},
		"byteArrayStop": byteArrayStopEncoding('\t', 5),
		"byteArrayLen":  byteArrayLenEncoding(&Encoding{ID: EncodingGamma, Offset: 1}, externalEncoding(9)),
		"null":          {ID: EncodingNull},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			out := roundTripEncoding(t, in)
			assert.Equal(t, in.ID, out.ID)
			switch in.ID {
			case EncodingExternal:
				assert.Equal(t, in.ContentID, out.ContentID)
			case EncodingHuffman:
				assert.Equal(t, in.Alphabet, out.Alphabet)
				assert.Equal(t, in.BitLengths, out.BitLengths)
			case EncodingBeta:
				assert.Equal(t, in.Offset, out.Offset)
				assert.Equal(t, in.Length, out.Length)
			case EncodingByteArrayStop:
				assert.Equal(t, in.StopByte, out.StopByte)
				assert.Equal(t, in.ContentID, out.ContentID)
			case EncodingByteArrayLen:
				assert.Equal(t, in.LenEncoding.ID, out.LenEncoding.ID)
				assert.Equal(t, in.ValEncoding.ID, out.ValEncoding.ID)
			}
		})
	}
}

// intCodecRoundTrip encodes values with e, then decodes them back through
// fresh block readers.
func intCodecRoundTrip(t *testing.T, e *Encoding, values []int32) {
	t.Helper()

	w := newBlockWriters()
	for _, v := range values {
		require.NoError(t, e.encodeInt(w, v), "encode %d", v)
	}

	r := &blockReaders{core: newBitReader(w.core.finish()), external: make(map[int32]*bytes.Reader)}
	for id, buf := range w.external {
		r.external[id] = bytes.NewReader(buf.Bytes())
	}

	for _, want := range values {
		got, err := e.decodeInt(r)
		require.NoError(t, err, "decode %d", want)
		assert.Equal(t, want, got)
	}
}

func TestIntEncodings(t *testing.T) {
	cases := map[string]struct {
		e      *Encoding
		values []int32
	}{
		"external":   {externalEncoding(1), []int32{0, 1, -1, 300, 1 << 20, -1 << 20}},
		"huffman":    {&Encoding{ID: EncodingHuffman, Alphabet: []int32{3, 7, 12, 99}, BitLengths: []int32{1, 2, 3, 3}}, []int32{3, 99, 7, 3, 12, 12, 3}},
		"beta":       {&Encoding{ID: EncodingBeta, Offset: 0, Length: 8}, []int32{0, 1, 60, 255}},
		"betaOffset": {&Encoding{ID: EncodingBeta, Offset: 100, Length: 4}, []int32{-100, -95, -85}},
		"gamma":      {&Encoding{ID: EncodingGamma, Offset: 1}, []int32{0, 1, 2, 17, 100, 1000}},
		"golomb":     {&Encoding{ID: EncodingGolomb, M: 10}, []int32{0, 1, 9, 10, 11, 99, 100}},
		"golombRice": {&Encoding{ID: EncodingGolombRice, Log2M: 3}, []int32{0, 7, 8, 9, 63}},
		"subexp":     {&Encoding{ID: EncodingSubexp, K: 2}, []int32{0, 1, 3, 4, 7, 8, 127, 1 << 16}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			intCodecRoundTrip(t, c.e, c.values)
		})
	}
}

func TestHuffmanDegenerateSingleSymbol(t *testing.T) {
	// One symbol with a zero length code consumes no bits at all.
	e := &Encoding{ID: EncodingHuffman, Alphabet: []int32{42}, BitLengths: []int32{0}}

	w := newBlockWriters()
	for i := 0; i < 5; i++ {
		require.NoError(t, e.encodeInt(w, 42))
	}
	assert.Empty(t, w.core.finish())

	r := &blockReaders{core: newBitReader(nil)}
	for i := 0; i < 5; i++ {
		v, err := e.decodeInt(r)
		require.NoError(t, err)
		assert.Equal(t, int32(42), v)
	}
}

func TestHuffmanUnknownSymbol(t *testing.T) {
	e := &Encoding{ID: EncodingHuffman, Alphabet: []int32{1, 2}, BitLengths: []int32{1, 1}}
	w := newBlockWriters()
	assert.Error(t, e.encodeInt(w, 3))
}

func TestByteArrayStop(t *testing.T) {
	e := byteArrayStopEncoding('\t', 40)
	w := newBlockWriters()
	require.NoError(t, e.encodeByteArray(w, []byte("first")))
	require.NoError(t, e.encodeByteArray(w, nil))
	require.NoError(t, e.encodeByteArray(w, []byte("second")))

	r := &blockReaders{external: map[int32]*bytes.Reader{40: bytes.NewReader(w.external[40].Bytes())}}
	for _, want := range []string{"first", "", "second"} {
		got, err := e.decodeByteArray(r)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestByteArrayLen(t *testing.T) {
	e := byteArrayLenEncoding(&Encoding{ID: EncodingGamma, Offset: 1}, externalEncoding(41))
	w := newBlockWriters()
	require.NoError(t, e.encodeByteArray(w, []byte("values")))
	require.NoError(t, e.encodeByteArray(w, []byte("x")))

	r := &blockReaders{
		core:     newBitReader(w.core.finish()),
		external: map[int32]*bytes.Reader{41: bytes.NewReader(w.external[41].Bytes())},
	}
	for _, want := range []string{"values", "x"} {
		got, err := e.decodeByteArray(r)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
}

func TestExternalByteArrayNeedsLength(t *testing.T) {
	e := externalEncoding(3)
	w := newBlockWriters()
	require.NoError(t, e.encodeByteArrayN(w, []byte("abcd")))

	r := &blockReaders{external: map[int32]*bytes.Reader{3: bytes.NewReader(w.external[3].Bytes())}}
	got, err := e.decodeByteArrayN(r, 4)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(got))

	// A plain external stream is not self delimiting.
	_, err = e.decodeByteArray(r)
	assert.Error(t, err)
}

func TestMissingExternalBlock(t *testing.T) {
	e := externalEncoding(77)
	r := &blockReaders{external: map[int32]*bytes.Reader{}}
	_, err := e.decodeInt(r)
	assert.Error(t, err)
}

func TestNullEncodingDecodesNothing(t *testing.T) {
	h := &CompressionHeader{
		DataSeriesEncodings: map[DataSeries]*Encoding{SeriesBases: {ID: EncodingNull}},
	}
	_, err := h.encoding(SeriesBases)
	assert.ErrorIs(t, err, ErrMissingEncoding)
	_, err = h.encoding(SeriesQualityScores)
	assert.ErrorIs(t, err, ErrMissingEncoding)
}
