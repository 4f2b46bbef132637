// Package bam converts between BAM files and reference-compressed
// containers, in both directions.
package bam

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"

	"github.com/scttfrdmn/cram-go/pkg/cram"
)

// ConvertBAM converts a BAM file to a container stream, deriving read
// features by comparing each aligned read against the reference.
func ConvertBAM(bamPath, outputPath string, refs cram.ReferenceProvider, opts ...cram.WriterOption) error {
	f, err := os.Open(bamPath)
	if err != nil {
		return fmt.Errorf("failed to open BAM file: %w", err)
	}
	defer f.Close()

	bamFile, err := bam.NewReader(f, 1)
	if err != nil {
		return fmt.Errorf("failed to create BAM reader: %w", err)
	}
	defer bamFile.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	opts = append(opts, cram.WithReferenceProvider(refs))
	writer, err := cram.NewWriter(out, bamFile.Header(), opts...)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}

	for {
		record, err := bamFile.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read BAM record: %w", err)
		}

		rec, err := FromSAMRecord(bamFile.Header(), record, refs)
		if err != nil {
			return fmt.Errorf("record %s: %w", record.Name, err)
		}
		if err := writer.Write(rec); err != nil {
			return fmt.Errorf("record %s: %w", record.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return err
	}
	return out.Close()
}

// FromSAMRecord converts one aligned record. Mapped reads need the
// reference to turn mismatching bases into substitution features.
func FromSAMRecord(header *sam.Header, record *sam.Record, refs cram.ReferenceProvider) (*cram.Record, error) {
	rec := &cram.Record{
		Name:            record.Name,
		Flags:           int(record.Flags),
		ReferenceID:     refID(record.Ref),
		Position:        record.Pos + 1,
		MappingQuality:  record.MapQ,
		ReadLength:      record.Seq.Length,
		MateReferenceID: refID(record.MateRef),
		MatePosition:    record.MatePos + 1,
		TemplateLength:  record.TempLen,
		ReadGroupID:     -1,
	}

	seq := record.Seq.Expand()
	rec.Sequence = seq

	if qual := record.Qual; len(qual) > 0 && !allMissing(qual) {
		rec.Quality = append([]byte{}, qual...)
	}

	for _, aux := range record.AuxFields {
		raw := []byte(aux)
		if len(raw) < 3 {
			return nil, fmt.Errorf("malformed aux field %q", raw)
		}
		if raw[0] == 'R' && raw[1] == 'G' && raw[2] == 'Z' {
			rec.ReadGroupID = readGroupID(header, string(raw[3:]))
			continue
		}
		rec.Tags = append(rec.Tags, cram.Tag{
			Name:  [2]byte{raw[0], raw[1]},
			Type:  raw[2],
			Value: append([]byte{}, raw[3:]...),
		})
	}

	if rec.IsMapped() {
		features, err := featuresFromCigar(record.Cigar, seq, rec.Position, rec.ReferenceID, refs)
		if err != nil {
			return nil, err
		}
		rec.Features = features
	}
	return rec, nil
}

// featuresFromCigar walks the alignment and emits the reference-relative
// edits: mismatching bases within match ops, plus the indel and clip ops
// themselves.
func featuresFromCigar(cigar sam.Cigar, seq []byte, pos, refID int, refs cram.ReferenceProvider) ([]cram.ReadFeature, error) {
	var features []cram.ReadFeature
	readPos, refPos := 1, pos

	for _, op := range cigar {
		n := op.Len()
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if refs == nil {
				return nil, fmt.Errorf("%w: matching against the reference needs reference bases", cram.ErrMissingReferenceSequence)
			}
			window, err := refs.ReferenceSequence(refID, refPos, refPos+n-1)
			if err != nil {
				return nil, fmt.Errorf("%w: reference %d: %v", cram.ErrMissingReferenceSequence, refID, err)
			}
			for i := 0; i < n; i++ {
				read := seq[readPos-1+i]
				if upper(read) != upper(window[i]) {
					features = append(features, cram.ReadFeature{
						Code:     cram.FeatureSubstitution,
						Position: readPos + i,
						Base:     read,
					})
				}
			}
			readPos += n
			refPos += n
		case sam.CigarInsertion:
			features = append(features, cram.ReadFeature{
				Code:     cram.FeatureInsertion,
				Position: readPos,
				Bases:    append([]byte{}, seq[readPos-1:readPos-1+n]...),
			})
			readPos += n
		case sam.CigarDeletion:
			features = append(features, cram.ReadFeature{
				Code: cram.FeatureDeletion, Position: readPos, Length: n,
			})
			refPos += n
		case sam.CigarSkipped:
			features = append(features, cram.ReadFeature{
				Code: cram.FeatureReferenceSkip, Position: readPos, Length: n,
			})
			refPos += n
		case sam.CigarSoftClipped:
			features = append(features, cram.ReadFeature{
				Code:     cram.FeatureSoftClip,
				Position: readPos,
				Bases:    append([]byte{}, seq[readPos-1:readPos-1+n]...),
			})
			readPos += n
		case sam.CigarHardClipped:
			features = append(features, cram.ReadFeature{
				Code: cram.FeatureHardClip, Position: readPos, Length: n,
			})
		case sam.CigarPadded:
			features = append(features, cram.ReadFeature{
				Code: cram.FeaturePadding, Position: readPos, Length: n,
			})
		default:
			return nil, fmt.Errorf("unsupported CIGAR op %v", op.Type())
		}
	}
	return features, nil
}

func refID(ref *sam.Reference) int {
	if ref == nil {
		return -1
	}
	return ref.ID()
}

func readGroupID(header *sam.Header, name string) int {
	for i, rg := range header.RGs() {
		if rg.Name() == name {
			return i
		}
	}
	return -1
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// allMissing reports whether every score is the BAM missing-quality fill.
func allMissing(qual []byte) bool {
	return bytes.Count(qual, []byte{0xff}) == len(qual)
}
