package cram

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRefs serves reference windows from in-memory sequences.
type memRefs struct {
	seqs map[int][]byte
}

func (m *memRefs) ReferenceSequence(id, start, end int) ([]byte, error) {
	seq, ok := m.seqs[id]
	if !ok {
		return nil, fmt.Errorf("no sequence for reference %d", id)
	}
	if start < 1 || end < start || end > len(seq) {
		return nil, fmt.Errorf("range %d-%d outside reference %d", start, end, id)
	}
	return seq[start-1 : end], nil
}

func testProvider() *memRefs {
	return &memRefs{seqs: map[int][]byte{0: testRef}}
}

func testHeader(t *testing.T) *sam.Header {
	t.Helper()
	ref, err := sam.NewReference("ref1", "", "", len(testRef), nil, nil)
	require.NoError(t, err)
	header, err := sam.NewHeader(nil, []*sam.Reference{ref})
	require.NoError(t, err)
	return header
}

func writeRecords(t *testing.T, records []*Record, opts ...WriterOption) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, testHeader(t), opts...)
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readAll(t *testing.T, data []byte, refs ReferenceProvider) []*Record {
	t.Helper()
	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	if refs != nil {
		r.SetReferenceProvider(refs)
	}
	var out []*Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func mappedRecord(name string, pos, readLength int) *Record {
	return &Record{
		Name:            name,
		ReferenceID:     0,
		Position:        pos,
		MappingQuality:  30,
		ReadLength:      readLength,
		MateReferenceID: -1,
		ReadGroupID:     -1,
		Sequence:        append([]byte{}, testRef[pos-1:pos-1+readLength]...),
	}
}

func TestRoundTripMappedAndUnmapped(t *testing.T) {
	mapped := &Record{
		Name:            "read1",
		ReferenceID:     0,
		Position:        6,
		MappingQuality:  42,
		ReadLength:      10,
		MateReferenceID: -1,
		ReadGroupID:     -1,
		Features: []ReadFeature{
			{Code: FeatureSubstitution, Position: 3, Base: 'G'},
			{Code: FeatureInsertion, Position: 5, Bases: []byte("TT")},
			{Code: FeatureDeletion, Position: 7, Length: 2},
		},
		Sequence: []byte("CCGCTTGGGG"),
		Quality:  []byte{20, 21, 22, 23, 24, 25, 26, 27, 28, 29},
	}
	unmapped := &Record{
		Name:            "read2",
		Flags:           FlagUnmapped,
		ReferenceID:     -1,
		ReadLength:      5,
		MateReferenceID: -1,
		ReadGroupID:     -1,
		Sequence:        []byte("ACGTN"),
		Quality:         []byte{1, 2, 3, 4, 5},
	}

	data := writeRecords(t, []*Record{mapped, unmapped},
		WithReferenceProvider(testProvider()))
	out := readAll(t, data, testProvider())

	require.Len(t, out, 2)
	assert.Equal(t, mapped, out[0])
	assert.Equal(t, unmapped, out[1])
}

func TestRoundTripAllCompressionMethods(t *testing.T) {
	records := []*Record{mappedRecord("r1", 6, 10), mappedRecord("r2", 11, 5)}
	for _, method := range []CompressionMethod{MethodNone, MethodGzip, MethodBzip2, MethodLzma} {
		t.Run(method.String(), func(t *testing.T) {
			data := writeRecords(t, records, WithCompressionMethod(method))
			out := readAll(t, data, testProvider())
			require.Len(t, out, 2)
			assert.Equal(t, records[0], out[0])
			assert.Equal(t, records[1], out[1])
		})
	}
}

func TestRoundTripQualityOmitted(t *testing.T) {
	rec := mappedRecord("r1", 6, 10)
	rec.Quality = nil

	out := readAll(t, writeRecords(t, []*Record{rec}), testProvider())
	require.Len(t, out, 1)
	assert.Nil(t, out[0].Quality)
	assert.Equal(t, rec, out[0])
}

func TestRoundTripUnknownBases(t *testing.T) {
	rec := &Record{
		Name:            "r1",
		Flags:           FlagUnmapped,
		ReferenceID:     -1,
		ReadLength:      8,
		MateReferenceID: -1,
		ReadGroupID:     -1,
	}

	out := readAll(t, writeRecords(t, []*Record{rec}), nil)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].Sequence)
	assert.Equal(t, rec, out[0])
}

func TestRoundTripTags(t *testing.T) {
	rec := mappedRecord("r1", 6, 10)
	rec.Tags = []Tag{
		{Name: [2]byte{'N', 'M'}, Type: 'i', Value: []byte{2, 0, 0, 0}},
		{Name: [2]byte{'M', 'D'}, Type: 'Z', Value: []byte("10\x00")},
	}
	plain := mappedRecord("r2", 16, 5)

	out := readAll(t, writeRecords(t, []*Record{rec, plain}), testProvider())
	require.Len(t, out, 2)
	assert.Equal(t, rec, out[0])
	assert.Equal(t, plain, out[1])
}

func TestRoundTripZeroLengthRead(t *testing.T) {
	rec := &Record{
		Name:            "empty",
		Flags:           FlagUnmapped,
		ReferenceID:     -1,
		MateReferenceID: -1,
		ReadGroupID:     -1,
		Sequence:        []byte{},
	}

	out := readAll(t, writeRecords(t, []*Record{rec}), nil)
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].ReadLength)
}

func pairedRecords() []*Record {
	r1 := mappedRecord("pair1", 6, 10)
	r1.Flags = FlagSegmented | FlagMateReverse
	r1.MateReferenceID = 0
	r1.MatePosition = 20
	r1.TemplateLength = 24

	r2 := mappedRecord("pair1", 20, 10)
	r2.Flags = FlagSegmented | FlagReverse
	r2.MateReferenceID = 0
	r2.MatePosition = 6
	r2.TemplateLength = -24

	return []*Record{r1, r2}
}

func TestRoundTripLinkedMates(t *testing.T) {
	records := pairedRecords()
	want0 := *records[0]
	want1 := *records[1]

	// The pair is internally consistent, so the writer links it and the
	// reader reconstructs the mate fields.
	dists := linkMates(records)
	require.Equal(t, []int32{0, -1}, dists)

	out := readAll(t, writeRecords(t, records), testProvider())
	require.Len(t, out, 2)
	assert.Equal(t, &want0, out[0])
	assert.Equal(t, &want1, out[1])
}

func TestRoundTripDetachedMates(t *testing.T) {
	records := pairedRecords()
	// Break the template length convention; the writer must fall back to
	// detached storage to preserve the values.
	records[0].TemplateLength = 99
	records[1].TemplateLength = -99

	require.Equal(t, []int32{-1, -1}, linkMates(records))

	want0 := *records[0]
	want1 := *records[1]
	out := readAll(t, writeRecords(t, records), testProvider())
	require.Len(t, out, 2)
	assert.Equal(t, &want0, out[0])
	assert.Equal(t, &want1, out[1])
}

func TestRoundTripMateAcrossSlices(t *testing.T) {
	// Forcing one record per slice splits the pair; both fragments must
	// come back detached but intact.
	records := pairedRecords()
	want0 := *records[0]
	want1 := *records[1]

	data := writeRecords(t, records, WithRecordsPerSlice(1), WithSlicesPerContainer(2))
	out := readAll(t, data, testProvider())
	require.Len(t, out, 2)
	assert.Equal(t, &want0, out[0])
	assert.Equal(t, &want1, out[1])
}

func TestRoundTripEmbeddedReference(t *testing.T) {
	records := []*Record{mappedRecord("r1", 6, 10), mappedRecord("r2", 11, 5)}

	data := writeRecords(t, records,
		WithReferenceProvider(testProvider()), WithEmbeddedReference(true))

	// No provider on the read side: the slices carry their own windows.
	out := readAll(t, data, nil)
	require.Len(t, out, 2)
	assert.Equal(t, records[0], out[0])
	assert.Equal(t, records[1], out[1])
}

func TestRoundTripMissingReference(t *testing.T) {
	records := []*Record{mappedRecord("r1", 6, 10)}
	data := writeRecords(t, records)

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	_, err = r.Read()
	assert.ErrorIs(t, err, ErrMissingReferenceSequence)
}

func TestHeaderSurvivesRoundTrip(t *testing.T) {
	data := writeRecords(t, []*Record{mappedRecord("r1", 6, 10)})

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)

	refs := r.Header().Refs()
	require.Len(t, refs, 1)
	assert.Equal(t, "ref1", refs[0].Name())
	assert.Equal(t, len(testRef), refs[0].Len())
}

func TestReaderRejectsBadMagic(t *testing.T) {
	data := writeRecords(t, []*Record{mappedRecord("r1", 6, 10)})

	bad := append([]byte{}, data...)
	bad[0] = 'X'
	_, err := NewReader(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrInvalidMagicOrVersion)

	bad = append([]byte{}, data...)
	bad[4] = 9 // unsupported major version
	_, err = NewReader(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrInvalidMagicOrVersion)
}

func TestReaderTruncatedStream(t *testing.T) {
	data := writeRecords(t, []*Record{mappedRecord("r1", 6, 10)})

	// Drop the sentinel (and a little more): reading must fail with
	// ErrTruncated rather than a clean EOF.
	r, err := NewReader(bytes.NewReader(data[:len(data)-40]))
	require.NoError(t, err)
	r.SetReferenceProvider(testProvider())

	for {
		_, err = r.Read()
		if err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestSeekToLandmark(t *testing.T) {
	var records []*Record
	for i := 0; i < 6; i++ {
		records = append(records, mappedRecord(fmt.Sprintf("r%d", i), 1+i*3, 3))
	}
	data := writeRecords(t, records, WithRecordsPerSlice(2), WithSlicesPerContainer(3))

	scan, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	c, offset, err := scan.NextContainer()
	require.NoError(t, err)
	require.Equal(t, 3, c.SliceCount())

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	r.SetReferenceProvider(testProvider())

	require.NoError(t, r.Seek(offset, 2))
	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, records[4], rec)

	rec, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, records[5], rec)

	// Seeking back to the first slice rewinds the cursor completely.
	require.NoError(t, r.Seek(offset, 0))
	rec, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, records[0], rec)
}

func TestMultipleContainers(t *testing.T) {
	var records []*Record
	for i := 0; i < 6; i++ {
		records = append(records, mappedRecord(fmt.Sprintf("r%d", i), 1+i*3, 3))
	}
	data := writeRecords(t, records, WithRecordsPerSlice(2))

	out := readAll(t, data, testProvider())
	require.Len(t, out, 6)
	for i, rec := range out {
		assert.Equal(t, records[i], rec, "record %d", i)
	}

	// Three containers, one slice each.
	scan, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	var counters []int64
	for {
		c, _, err := scan.NextContainer()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		counters = append(counters, c.Header.RecordCounter)
	}
	assert.Equal(t, []int64{0, 2, 4}, counters)
}
