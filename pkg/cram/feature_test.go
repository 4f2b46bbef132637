package cram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRef is thirty bases: positions 1-5 A, 6-10 C, 11-15 G, 16-20 T, then
// ACGTACGTAC.
var testRef = []byte("AAAAACCCCCGGGGGTTTTTACGTACGTAC")

func TestMaterializeNoFeatures(t *testing.T) {
	rec := &Record{ReferenceID: 0, Position: 6, ReadLength: 10}
	require.NoError(t, materializeSequence(rec, testRef, 1, NewSubstitutionMatrix()))
	assert.Equal(t, "CCCCCGGGGG", string(rec.Sequence))
}

func TestMaterializeFeatureMix(t *testing.T) {
	m := NewSubstitutionMatrix()
	rec := &Record{
		ReferenceID: 0,
		Position:    6,
		ReadLength:  10,
		Features: []ReadFeature{
			{Code: FeatureSubstitution, Position: 3, Base: m.Code('C', 'G')},
			{Code: FeatureInsertion, Position: 5, Bases: []byte("TT")},
			{Code: FeatureDeletion, Position: 7, Length: 2},
		},
	}
	require.NoError(t, materializeSequence(rec, testRef, 1, m))

	assert.Equal(t, "CCGCTTGGGG", string(rec.Sequence))
	// Materialization resolves the substitution code to the read base.
	assert.Equal(t, byte('G'), rec.Features[0].Base)
	assert.Equal(t, 10, rec.AlignmentSpan())
	assert.Equal(t, "4M2I2D4M", rec.CIGAR())
}

func TestMaterializeSoftClip(t *testing.T) {
	rec := &Record{
		ReferenceID: 0,
		Position:    11,
		ReadLength:  8,
		Features: []ReadFeature{
			{Code: FeatureSoftClip, Position: 1, Bases: []byte("NNN")},
		},
	}
	require.NoError(t, materializeSequence(rec, testRef, 1, NewSubstitutionMatrix()))
	assert.Equal(t, "NNNGGGGG", string(rec.Sequence))
	assert.Equal(t, 5, rec.AlignmentSpan())
	assert.Equal(t, "3S5M", rec.CIGAR())
}

func TestMaterializeQualityFeatures(t *testing.T) {
	rec := &Record{
		ReferenceID: 0,
		Position:    1,
		ReadLength:  4,
		Quality:     []byte{10, 10, 10, 10},
		Features: []ReadFeature{
			{Code: FeatureReadBase, Position: 2, Base: 'T', Score: 30},
			{Code: FeatureQualityScore, Position: 4, Score: 5},
		},
	}
	require.NoError(t, materializeSequence(rec, testRef, 1, NewSubstitutionMatrix()))
	assert.Equal(t, "ATAA", string(rec.Sequence))
	assert.Equal(t, []byte{10, 30, 10, 5}, rec.Quality)
}

func TestMaterializeOutsideWindow(t *testing.T) {
	rec := &Record{ReferenceID: 0, Position: 28, ReadLength: 10}
	err := materializeSequence(rec, testRef, 1, NewSubstitutionMatrix())
	assert.ErrorIs(t, err, ErrMissingReferenceSequence)
}

func TestMaterializeWindowedReference(t *testing.T) {
	// The same record decodes identically from a window that starts at its
	// own position.
	rec := &Record{ReferenceID: 0, Position: 16, ReadLength: 5}
	require.NoError(t, materializeSequence(rec, testRef[15:20], 16, NewSubstitutionMatrix()))
	assert.Equal(t, "TTTTT", string(rec.Sequence))
}

func TestMalformedFeaturePositions(t *testing.T) {
	rec := &Record{
		ReferenceID: 0,
		Position:    1,
		ReadLength:  4,
		Features: []ReadFeature{
			{Code: FeatureSubstitution, Position: 3, Base: 0},
			{Code: FeatureSubstitution, Position: 2, Base: 0}, // goes backwards
		},
	}
	err := materializeSequence(rec, testRef, 1, NewSubstitutionMatrix())
	assert.ErrorIs(t, err, ErrMalformedReadFeature)
}

func TestAlignmentSpanUnmappedUsesReadLength(t *testing.T) {
	rec := &Record{Flags: FlagUnmapped, ReferenceID: -1, ReadLength: 7}
	assert.Equal(t, 7, rec.AlignmentSpan())
	assert.Equal(t, "*", rec.CIGAR())
}

func TestCIGARInsertBaseAndSkips(t *testing.T) {
	rec := &Record{
		ReferenceID: 0,
		Position:    1,
		ReadLength:  6,
		Features: []ReadFeature{
			{Code: FeatureInsertBase, Position: 2, Base: 'A'},
			{Code: FeatureReferenceSkip, Position: 3, Length: 100},
			{Code: FeatureHardClip, Position: 6, Length: 4},
		},
	}
	assert.Equal(t, "1M1I100N3M4H1M", rec.CIGAR())
}
