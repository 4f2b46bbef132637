package bam

import (
	"testing"
	"time"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/cram-go/pkg/cram"
)

type sliceRefs map[int][]byte

func (m sliceRefs) ReferenceSequence(id, start, end int) ([]byte, error) {
	seq, ok := m[id]
	if !ok || start < 1 || end > len(seq) || start > end {
		return nil, cram.ErrMissingReferenceSequence
	}
	return seq[start-1 : end], nil
}

func testHeader(t *testing.T) *sam.Header {
	t.Helper()
	ref, err := sam.NewReference("chr1", "", "", 30, nil, nil)
	require.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{ref})
	require.NoError(t, err)
	return h
}

func TestFromSAMRecordPerfectMatch(t *testing.T) {
	refs := sliceRefs{0: []byte("AAAAACCCCCGGGGGTTTTTACGTACGTAC")}
	h := testHeader(t)

	cigar, err := sam.ParseCigar([]byte("10M"))
	require.NoError(t, err)
	record := &sam.Record{
		Name:    "read1",
		Ref:     h.Refs()[0],
		Pos:     4, // zero-based
		MapQ:    60,
		Cigar:   cigar,
		Seq:     sam.NewSeq([]byte("ACCCCCGGGG")),
		Qual:    []byte{30, 30, 30, 30, 30, 30, 30, 30, 30, 30},
		MatePos: -1,
		TempLen: 0,
	}

	rec, err := FromSAMRecord(h, record, refs)
	require.NoError(t, err)
	assert.Equal(t, "read1", rec.Name)
	assert.Equal(t, 0, rec.ReferenceID)
	assert.Equal(t, 5, rec.Position)
	assert.Equal(t, uint8(60), rec.MappingQuality)
	assert.Equal(t, 10, rec.ReadLength)
	assert.Empty(t, rec.Features)
	assert.Equal(t, []byte("ACCCCCGGGG"), rec.Sequence)
	assert.Equal(t, -1, rec.MateReferenceID)
	assert.Equal(t, -1, rec.ReadGroupID)
}

func TestFromSAMRecordFeatures(t *testing.T) {
	refs := sliceRefs{0: []byte("AAAAACCCCCGGGGGTTTTTACGTACGTAC")}
	h := testHeader(t)

	// 2S3M1I2M2D2M against reference position 5 (1-based).
	cigar, err := sam.ParseCigar([]byte("2S3M1I2M2D2M"))
	require.NoError(t, err)
	record := &sam.Record{
		Name:  "read2",
		Ref:   h.Refs()[0],
		Pos:   4,
		Cigar: cigar,
		// SS ACT(ref ACC, mismatch at read 5) G CC(ref CC) GG(ref GG after 2D)
		Seq:     sam.NewSeq([]byte("TTACTGCCGG")),
		Qual:    []byte{20, 20, 20, 20, 20, 20, 20, 20, 20, 20},
		MatePos: -1,
	}

	rec, err := FromSAMRecord(h, record, refs)
	require.NoError(t, err)
	require.Len(t, rec.Features, 4)

	assert.Equal(t, cram.ReadFeature{Code: cram.FeatureSoftClip, Position: 1, Bases: []byte("TT")}, rec.Features[0])
	assert.Equal(t, cram.ReadFeature{Code: cram.FeatureSubstitution, Position: 5, Base: 'T'}, rec.Features[1])
	assert.Equal(t, cram.ReadFeature{Code: cram.FeatureInsertion, Position: 6, Bases: []byte("G")}, rec.Features[2])
	assert.Equal(t, cram.ReadFeature{Code: cram.FeatureDeletion, Position: 9, Length: 2}, rec.Features[3])

	assert.Equal(t, "2S3M1I2M2D2M", rec.CIGAR())
}

func TestFromSAMRecordMissingReference(t *testing.T) {
	h := testHeader(t)
	cigar, err := sam.ParseCigar([]byte("4M"))
	require.NoError(t, err)
	record := &sam.Record{
		Name:    "read3",
		Ref:     h.Refs()[0],
		Pos:     0,
		Cigar:   cigar,
		Seq:     sam.NewSeq([]byte("AAAA")),
		MatePos: -1,
	}

	_, err = FromSAMRecord(h, record, nil)
	assert.ErrorIs(t, err, cram.ErrMissingReferenceSequence)
}

func TestFromSAMRecordReadGroup(t *testing.T) {
	h := testHeader(t)
	rg, err := sam.NewReadGroup("grp1", "", "", "", "", "", "", "", "", "", time.Time{}, 0)
	require.NoError(t, err)
	require.NoError(t, h.AddReadGroup(rg))

	record := &sam.Record{
		Name:    "read4",
		Flags:   sam.Unmapped,
		Seq:     sam.NewSeq([]byte("ACGT")),
		Pos:     -1,
		MatePos: -1,
		AuxFields: []sam.Aux{
			sam.Aux([]byte("RGZgrp1")),
			sam.Aux([]byte{'N', 'M', 'c', 3}),
		},
	}

	rec, err := FromSAMRecord(h, record, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.ReadGroupID)
	require.Len(t, rec.Tags, 1)
	assert.Equal(t, cram.Tag{Name: [2]byte{'N', 'M'}, Type: 'c', Value: []byte{3}}, rec.Tags[0])
}

func TestToSAMRecordRoundTrip(t *testing.T) {
	refs := sliceRefs{0: []byte("AAAAACCCCCGGGGGTTTTTACGTACGTAC")}
	h := testHeader(t)

	cigar, err := sam.ParseCigar([]byte("2S3M1I2M2D2M"))
	require.NoError(t, err)
	record := &sam.Record{
		Name:    "pair",
		Ref:     h.Refs()[0],
		Pos:     4,
		MapQ:    37,
		Cigar:   cigar,
		Seq:     sam.NewSeq([]byte("TTACTGCCGG")),
		Qual:    []byte{20, 21, 22, 23, 24, 25, 26, 27, 28, 29},
		MatePos: -1,
		TempLen: 0,
		AuxFields: []sam.Aux{
			sam.Aux([]byte{'N', 'M', 'c', 1}),
		},
	}

	rec, err := FromSAMRecord(h, record, refs)
	require.NoError(t, err)

	back, err := ToSAMRecord(h, rec)
	require.NoError(t, err)
	assert.Equal(t, record.Name, back.Name)
	assert.Equal(t, record.Flags, back.Flags)
	assert.Equal(t, record.Pos, back.Pos)
	assert.Equal(t, record.MapQ, back.MapQ)
	assert.Equal(t, record.Cigar.String(), back.Cigar.String())
	assert.Equal(t, record.Seq.Expand(), back.Seq.Expand())
	assert.Equal(t, record.Qual, back.Qual)
	assert.Equal(t, record.AuxFields, back.AuxFields)
	assert.Nil(t, back.MateRef)
	assert.Equal(t, -1, back.MatePos)
}

func TestToSAMRecordMissingQuality(t *testing.T) {
	h := testHeader(t)
	rec := &cram.Record{
		Name:        "noqual",
		Flags:       int(sam.Unmapped),
		ReadLength:  4,
		Sequence:    []byte("ACGT"),
		Position:    0,
		ReferenceID: -1,
		ReadGroupID: -1,
	}

	back, err := ToSAMRecord(h, rec)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, back.Qual)
	assert.Nil(t, back.Ref)
	assert.Equal(t, -1, back.Pos)
}
