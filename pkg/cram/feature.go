package cram

import "fmt"

// FeatureCode discriminates the read feature variants. The codes are the
// single ASCII bytes stored in the FC data series.
type FeatureCode byte

const (
	FeatureReadBase      FeatureCode = 'B' // one base plus its quality score
	FeatureSubstitution  FeatureCode = 'X' // reference base replaced per the substitution matrix
	FeatureInsertion     FeatureCode = 'I' // bases inserted relative to the reference
	FeatureDeletion      FeatureCode = 'D' // reference bases absent from the read
	FeatureInsertBase    FeatureCode = 'i' // single inserted base
	FeatureQualityScore  FeatureCode = 'Q' // quality score override at one position
	FeatureReferenceSkip FeatureCode = 'N' // spliced-out reference span
	FeatureSoftClip      FeatureCode = 'S' // soft-clipped bases kept in the read
	FeaturePadding       FeatureCode = 'P' // silent deletion from padded reference
	FeatureHardClip      FeatureCode = 'H' // hard-clipped length, bases absent
	FeatureBases         FeatureCode = 'b' // literal stretch of bases
	FeatureScores        FeatureCode = 'q' // literal stretch of quality scores
)

func (c FeatureCode) String() string {
	switch c {
	case FeatureReadBase:
		return "read base"
	case FeatureSubstitution:
		return "substitution"
	case FeatureInsertion:
		return "insertion"
	case FeatureDeletion:
		return "deletion"
	case FeatureInsertBase:
		return "insert base"
	case FeatureQualityScore:
		return "quality score"
	case FeatureReferenceSkip:
		return "reference skip"
	case FeatureSoftClip:
		return "soft clip"
	case FeaturePadding:
		return "padding"
	case FeatureHardClip:
		return "hard clip"
	case FeatureBases:
		return "bases"
	case FeatureScores:
		return "scores"
	default:
		return fmt.Sprintf("feature(%c)", byte(c))
	}
}

// ReadFeature is one reference-relative edit. Position is 1-based within
// the read; the fields beyond it are populated per Code: Base and Score for
// ReadBase, Base for InsertBase and Substitution (the read base, resolved
// through the substitution matrix), Bases for Insertion, SoftClip and
// Bases, Scores for Scores, Length for Deletion, ReferenceSkip, Padding and
// HardClip, Score for QualityScore.
type ReadFeature struct {
	Code     FeatureCode
	Position int

	Base   byte
	Score  byte
	Length int
	Bases  []byte
	Scores []byte
}

// materializeSequence rebuilds a mapped record's bases and, where features
// override them, quality scores. ref is the reference window and refStart
// its 1-based position; features must be in ascending read position order.
func materializeSequence(rec *Record, ref []byte, refStart int, matrix SubstitutionMatrix) error {
	seq := make([]byte, rec.ReadLength)
	readPos := 1           // 1-based position in the read
	refPos := rec.Position // 1-based position on the reference

	copyRef := func(n int) error {
		if n < 0 || readPos+n-1 > rec.ReadLength {
			return fmt.Errorf("%w: read position %d past read length %d", ErrMalformedReadFeature, readPos+n-1, rec.ReadLength)
		}
		for i := 0; i < n; i++ {
			b, err := refBase(ref, refStart, refPos)
			if err != nil {
				return err
			}
			seq[readPos-1] = b
			readPos++
			refPos++
		}
		return nil
	}

	for i := range rec.Features {
		f := &rec.Features[i]
		if f.Position < readPos || f.Position > rec.ReadLength+1 {
			return fmt.Errorf("%w: %s at read position %d (cursor %d, read length %d)",
				ErrMalformedReadFeature, f.Code, f.Position, readPos, rec.ReadLength)
		}
		if err := copyRef(f.Position - readPos); err != nil {
			return err
		}

		switch f.Code {
		case FeatureReadBase:
			if err := place(seq, readPos, f.Base, rec.ReadLength); err != nil {
				return err
			}
			if rec.Quality != nil && readPos <= len(rec.Quality) {
				rec.Quality[readPos-1] = f.Score
			}
			readPos++
			refPos++
		case FeatureSubstitution:
			b, err := refBase(ref, refStart, refPos)
			if err != nil {
				return err
			}
			// The decoder stores the wire code in Base; resolve it to the
			// actual read base.
			f.Base = matrix.Base(b, f.Base)
			if err := place(seq, readPos, f.Base, rec.ReadLength); err != nil {
				return err
			}
			readPos++
			refPos++
		case FeatureInsertion:
			for _, b := range f.Bases {
				if err := place(seq, readPos, b, rec.ReadLength); err != nil {
					return err
				}
				readPos++
			}
		case FeatureSoftClip:
			for _, b := range f.Bases {
				if err := place(seq, readPos, b, rec.ReadLength); err != nil {
					return err
				}
				readPos++
			}
		case FeatureBases:
			for _, b := range f.Bases {
				if err := place(seq, readPos, b, rec.ReadLength); err != nil {
					return err
				}
				readPos++
				refPos++
			}
		case FeatureInsertBase:
			if err := place(seq, readPos, f.Base, rec.ReadLength); err != nil {
				return err
			}
			readPos++
		case FeatureDeletion, FeatureReferenceSkip:
			refPos += f.Length
		case FeaturePadding, FeatureHardClip:
			// No read or reference bases consumed.
		case FeatureQualityScore:
			if rec.Quality != nil {
				if f.Position > len(rec.Quality) {
					return fmt.Errorf("%w: quality score at %d past read length", ErrMalformedReadFeature, f.Position)
				}
				rec.Quality[f.Position-1] = f.Score
			}
		case FeatureScores:
			if rec.Quality != nil {
				for i, s := range f.Scores {
					if f.Position+i > len(rec.Quality) {
						return fmt.Errorf("%w: scores past read length", ErrMalformedReadFeature)
					}
					rec.Quality[f.Position-1+i] = s
				}
			}
		default:
			return fmt.Errorf("%w: unknown feature code %q", ErrMalformedReadFeature, byte(f.Code))
		}
	}

	if err := copyRef(rec.ReadLength - readPos + 1); err != nil {
		return err
	}

	rec.Sequence = seq
	return nil
}

func place(seq []byte, pos int, base byte, readLength int) error {
	if pos > readLength {
		return fmt.Errorf("%w: base at read position %d past read length %d", ErrMalformedReadFeature, pos, readLength)
	}
	seq[pos-1] = base
	return nil
}

func refBase(ref []byte, refStart, pos int) (byte, error) {
	i := pos - refStart
	if i < 0 || i >= len(ref) {
		return 0, fmt.Errorf("%w: reference position %d outside window [%d, %d)",
			ErrMissingReferenceSequence, pos, refStart, refStart+len(ref))
	}
	return ref[i], nil
}
