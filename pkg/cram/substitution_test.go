package cram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitutionMatrixRoundTrip(t *testing.T) {
	m := NewSubstitutionMatrix()

	for _, ref := range []byte("ACGTN") {
		for _, read := range []byte("ACGTN") {
			if ref == read {
				continue
			}
			code := m.Code(ref, read)
			assert.Less(t, code, byte(4))
			assert.Equal(t, read, m.Base(ref, code), "ref %c read %c", ref, read)
		}
	}
}

func TestSubstitutionMatrixMarshal(t *testing.T) {
	m := NewSubstitutionMatrix()
	raw := m.marshal()
	out := unmarshalSubstitutionMatrix(raw)
	assert.Equal(t, m, out)
}

func TestSubstitutionMatrixNonIdentityRanks(t *testing.T) {
	// A permuted ranking must survive serialization and keep code/base
	// inverse to each other.
	m := NewSubstitutionMatrix()
	m[0] = [4]byte{'N', 'T', 'G', 'C'} // ref A: most frequent substitution first

	out := unmarshalSubstitutionMatrix(m.marshal())
	require.Equal(t, m, out)
	assert.Equal(t, byte('N'), out.Base('A', 0))
	assert.Equal(t, byte(3), out.Code('A', 'C'))
}

func TestSubstitutionUnknownBase(t *testing.T) {
	m := NewSubstitutionMatrix()
	// Bases outside ACGTN rank as N.
	assert.Equal(t, m.Code('N', 'A'), m.Code('x', 'A'))
}
