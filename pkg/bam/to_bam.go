package bam

import (
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"

	"github.com/scttfrdmn/cram-go/pkg/cram"
)

// ConvertToBAM decodes a container stream back into a BAM file. Output of
// "-" streams the BAM to stdout.
func ConvertToBAM(inputPath, outputBAM string, refs cram.ReferenceProvider) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	reader, err := cram.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to create reader: %w", err)
	}
	if refs != nil {
		reader.SetReferenceProvider(refs)
	}

	var outWriter io.Writer
	if outputBAM == "-" {
		outWriter = os.Stdout
	} else {
		outFile, err := os.Create(outputBAM)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer outFile.Close()
		outWriter = outFile
	}

	bamWriter, err := bam.NewWriter(outWriter, reader.Header(), 1)
	if err != nil {
		return fmt.Errorf("failed to create BAM writer: %w", err)
	}

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}

		samRecord, err := ToSAMRecord(reader.Header(), rec)
		if err != nil {
			return fmt.Errorf("failed to convert record %s: %w", rec.Name, err)
		}
		if err := bamWriter.Write(samRecord); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	if err := bamWriter.Close(); err != nil {
		return fmt.Errorf("failed to close BAM writer: %w", err)
	}
	return nil
}

// ToSAMRecord rebuilds a sam.Record, deriving the CIGAR from the record's
// read features.
func ToSAMRecord(header *sam.Header, rec *cram.Record) (*sam.Record, error) {
	record := &sam.Record{
		Name:    rec.Name,
		Flags:   sam.Flags(rec.Flags),
		MapQ:    rec.MappingQuality,
		TempLen: rec.TemplateLength,
	}

	record.Ref = reference(header, rec.ReferenceID)
	record.Pos = rec.Position - 1
	record.MateRef = reference(header, rec.MateReferenceID)
	record.MatePos = rec.MatePosition - 1

	if cigar := rec.CIGAR(); cigar != "*" {
		parsed, err := sam.ParseCigar([]byte(cigar))
		if err != nil {
			return nil, fmt.Errorf("failed to parse CIGAR %q: %w", cigar, err)
		}
		record.Cigar = parsed
	}

	if len(rec.Sequence) > 0 {
		record.Seq = sam.NewSeq(rec.Sequence)
	}

	if rec.Quality != nil {
		record.Qual = append([]byte{}, rec.Quality...)
	} else {
		// BAM marks absent quality with a 0xff fill of sequence length.
		record.Qual = make([]byte, rec.ReadLength)
		for i := range record.Qual {
			record.Qual[i] = 0xff
		}
	}

	if rec.ReadGroupID >= 0 {
		rgs := header.RGs()
		if rec.ReadGroupID >= len(rgs) {
			return nil, fmt.Errorf("read group %d not in header", rec.ReadGroupID)
		}
		aux := append([]byte{'R', 'G', 'Z'}, rgs[rec.ReadGroupID].Name()...)
		record.AuxFields = append(record.AuxFields, sam.Aux(aux))
	}
	for _, tag := range rec.Tags {
		aux := make([]byte, 0, 3+len(tag.Value))
		aux = append(aux, tag.Name[0], tag.Name[1], tag.Type)
		aux = append(aux, tag.Value...)
		record.AuxFields = append(record.AuxFields, sam.Aux(aux))
	}

	return record, nil
}

func reference(header *sam.Header, id int) *sam.Reference {
	if id < 0 || id >= len(header.Refs()) {
		return nil
	}
	return header.Refs()[id]
}
