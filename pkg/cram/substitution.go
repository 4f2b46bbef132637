package cram

// substitutionBases is the base ordering the substitution matrix is defined
// over.
var substitutionBases = [5]byte{'A', 'C', 'G', 'T', 'N'}

// SubstitutionMatrix maps (reference base, 2-bit substitution code) to the
// substituted read base. On the wire it is five bytes, one per reference
// base in ACGTN order; each byte packs the rank of the four candidate bases
// (ACGTN minus the reference base), most frequent first.
type SubstitutionMatrix [5][4]byte

// NewSubstitutionMatrix returns the identity-ranked matrix: substitution
// codes enumerate the candidate bases in ACGTN order.
func NewSubstitutionMatrix() SubstitutionMatrix {
	var m SubstitutionMatrix
	for i, ref := range substitutionBases {
		k := 0
		for _, alt := range substitutionBases {
			if alt == ref {
				continue
			}
			m[i][k] = alt
			k++
		}
	}
	return m
}

func baseIndex(base byte) int {
	switch base {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't':
		return 3
	default:
		return 4
	}
}

// Base returns the read base substituted for the given reference base and
// code.
func (m SubstitutionMatrix) Base(refBase byte, code byte) byte {
	return m[baseIndex(refBase)][code&0x03]
}

// Code returns the substitution code turning refBase into readBase. The
// matrix always contains every non-reference base, so a lookup only fails
// when readBase equals refBase; 0 is returned in that degenerate case.
func (m SubstitutionMatrix) Code(refBase, readBase byte) byte {
	row := m[baseIndex(refBase)]
	want := substitutionBases[baseIndex(readBase)]
	for code, alt := range row {
		if alt == want {
			return byte(code)
		}
	}
	return 0
}

// marshal packs the matrix into its five-byte wire form.
func (m SubstitutionMatrix) marshal() [5]byte {
	var out [5]byte
	for i, ref := range substitutionBases {
		var packed byte
		for rank, alt := range m[i] {
			// Candidate position within ACGTN minus the reference base.
			pos := 0
			for _, c := range substitutionBases {
				if c == ref {
					continue
				}
				if c == alt {
					break
				}
				pos++
			}
			packed |= byte(rank) << uint(6-2*pos)
		}
		out[i] = packed
	}
	return out
}

// unmarshalSubstitutionMatrix unpacks the five-byte wire form.
func unmarshalSubstitutionMatrix(raw [5]byte) SubstitutionMatrix {
	var m SubstitutionMatrix
	for i, ref := range substitutionBases {
		pos := 0
		for _, alt := range substitutionBases {
			if alt == ref {
				continue
			}
			rank := raw[i] >> uint(6-2*pos) & 0x03
			m[i][rank] = alt
			pos++
		}
	}
	return m
}
