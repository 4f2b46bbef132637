package cram

import "fmt"

// recordWriter encodes records into a slice's in-progress blocks, emitting
// each data series with the encoding the compression header assigns to it.
type recordWriter struct {
	h *CompressionHeader
	s *blockWriters

	sliceRefID   int32
	prevPosition int32
	refs         ReferenceProvider
}

func newRecordWriter(h *CompressionHeader, s *blockWriters, sliceRefID, sliceStart int32, refs ReferenceProvider) *recordWriter {
	return &recordWriter{h: h, s: s, sliceRefID: sliceRefID, prevPosition: sliceStart, refs: refs}
}

func (w *recordWriter) writeInt(series DataSeries, v int32) error {
	e, err := w.h.encoding(series)
	if err != nil {
		return err
	}
	if err := e.encodeInt(w.s, v); err != nil {
		return fmt.Errorf("series %s: %w", series, err)
	}
	return nil
}

func (w *recordWriter) writeByte(series DataSeries, b byte) error {
	e, err := w.h.encoding(series)
	if err != nil {
		return err
	}
	if err := e.encodeByte(w.s, b); err != nil {
		return fmt.Errorf("series %s: %w", series, err)
	}
	return nil
}

func (w *recordWriter) writeByteArray(series DataSeries, data []byte) error {
	e, err := w.h.encoding(series)
	if err != nil {
		return err
	}
	if err := e.encodeByteArray(w.s, data); err != nil {
		return fmt.Errorf("series %s: %w", series, err)
	}
	return nil
}

func (w *recordWriter) writeByteArrayN(series DataSeries, data []byte) error {
	e, err := w.h.encoding(series)
	if err != nil {
		return err
	}
	if err := e.encodeByteArrayN(w.s, data); err != nil {
		return fmt.Errorf("series %s: %w", series, err)
	}
	return nil
}

// recordFlags computes the container flag bits for a record. mateDistance
// is the number of records between this one and its next fragment in the
// same slice, or -1 to store the mate detached.
func recordFlags(rec *Record, mateDistance int32) int32 {
	var cf int32
	if rec.Quality != nil {
		cf |= recordFlagQualityStored
	}
	if !rec.IsMapped() && rec.Sequence == nil {
		cf |= recordFlagUnknownBases
	}
	if rec.Flags&FlagSegmented != 0 {
		if mateDistance >= 0 {
			cf |= recordFlagMateDownstream
		} else {
			cf |= recordFlagDetached
		}
	} else if rec.MateReferenceID >= 0 || rec.MatePosition > 0 {
		cf |= recordFlagDetached
	}
	return cf
}

func (w *recordWriter) writeRecord(rec *Record, cf, mateDistance int32) error {
	if err := w.writeInt(SeriesBAMFlags, int32(rec.Flags)); err != nil {
		return err
	}
	if err := w.writeInt(SeriesCRAMFlags, cf); err != nil {
		return err
	}

	if w.sliceRefID == -2 {
		if err := w.writeInt(SeriesReferenceID, int32(rec.ReferenceID)); err != nil {
			return err
		}
	}

	if err := w.writeInt(SeriesReadLength, int32(rec.ReadLength)); err != nil {
		return err
	}

	ap := int32(rec.Position)
	if w.h.APDelta {
		ap -= w.prevPosition
		w.prevPosition = int32(rec.Position)
	}
	if err := w.writeInt(SeriesAlignmentStart, ap); err != nil {
		return err
	}

	if err := w.writeInt(SeriesReadGroup, int32(rec.ReadGroupID)); err != nil {
		return err
	}

	if w.h.ReadNamesIncluded {
		if err := w.writeByteArray(SeriesReadName, []byte(rec.Name)); err != nil {
			return err
		}
	}

	switch {
	case cf&recordFlagDetached != 0:
		var mf int32
		if rec.Flags&FlagMateReverse != 0 {
			mf |= 0x1
		}
		if rec.Flags&FlagMateUnmapped != 0 {
			mf |= 0x2
		}
		if err := w.writeInt(SeriesMateFlags, mf); err != nil {
			return err
		}
		if !w.h.ReadNamesIncluded {
			if err := w.writeByteArray(SeriesReadName, []byte(rec.Name)); err != nil {
				return err
			}
		}
		if err := w.writeInt(SeriesMateRefID, int32(rec.MateReferenceID)); err != nil {
			return err
		}
		if err := w.writeInt(SeriesMatePosition, int32(rec.MatePosition)); err != nil {
			return err
		}
		if err := w.writeInt(SeriesTemplateSize, int32(rec.TemplateLength)); err != nil {
			return err
		}
	case cf&recordFlagMateDownstream != 0:
		if err := w.writeInt(SeriesMateDistance, mateDistance); err != nil {
			return err
		}
	}

	if err := w.writeTags(rec); err != nil {
		return err
	}

	if rec.IsMapped() {
		return w.writeMappedFields(rec, cf)
	}
	return w.writeUnmappedFields(rec, cf)
}

func (w *recordWriter) writeTags(rec *Record) error {
	tl, err := w.h.tagLineIndex(rec.Tags)
	if err != nil {
		return err
	}
	if err := w.writeInt(SeriesTagList, tl); err != nil {
		return err
	}
	for _, tag := range rec.Tags {
		e, err := w.h.tagEncoding(tag.key())
		if err != nil {
			return err
		}
		if err := e.encodeByteArray(w.s, tag.Value); err != nil {
			return fmt.Errorf("tag %s: %w", tag.key(), err)
		}
	}
	return nil
}

// tagLineIndex finds the dictionary line matching the record's tags in
// order.
func (h *CompressionHeader) tagLineIndex(tags []Tag) (int32, error) {
	if len(h.TagDictionary) == 0 && len(tags) == 0 {
		return 0, nil
	}
line:
	for i, keys := range h.TagDictionary {
		if len(keys) != len(tags) {
			continue
		}
		for j, k := range keys {
			if tags[j].key() != k {
				continue line
			}
		}
		return int32(i), nil
	}
	return 0, fmt.Errorf("record tag set not present in tag dictionary")
}

func (w *recordWriter) writeMappedFields(rec *Record, cf int32) error {
	if err := w.writeInt(SeriesFeatureCount, int32(len(rec.Features))); err != nil {
		return err
	}

	// The reference window is fetched on the first substitution feature;
	// most records never need it.
	var (
		ref      []byte
		refStart int
	)

	prevPos := 0 // previous feature position, for delta encoding
	readPos := 1
	refPos := rec.Position
	for _, f := range rec.Features {
		if f.Position < readPos {
			return fmt.Errorf("%w: %s at read position %d before cursor %d",
				ErrMalformedReadFeature, f.Code, f.Position, readPos)
		}
		refPos += f.Position - readPos
		readPos = f.Position

		if err := w.writeByte(SeriesFeatureCode, byte(f.Code)); err != nil {
			return err
		}
		if err := w.writeInt(SeriesFeaturePosition, int32(f.Position-prevPos)); err != nil {
			return err
		}
		prevPos = f.Position

		switch f.Code {
		case FeatureReadBase:
			if err := w.writeByte(SeriesBases, f.Base); err != nil {
				return err
			}
			if err := w.writeByte(SeriesQualityScores, f.Score); err != nil {
				return err
			}
			readPos++
			refPos++
		case FeatureSubstitution:
			if ref == nil {
				if w.refs == nil {
					return fmt.Errorf("%w: substitution features need reference bases", ErrMissingReferenceSequence)
				}
				span := rec.AlignmentSpan()
				window, err := w.refs.ReferenceSequence(rec.ReferenceID, rec.Position, rec.Position+span-1)
				if err != nil {
					return fmt.Errorf("%w: reference %d: %v", ErrMissingReferenceSequence, rec.ReferenceID, err)
				}
				ref, refStart = window, rec.Position
			}
			b, err := refBase(ref, refStart, refPos)
			if err != nil {
				return err
			}
			code := w.h.SubstitutionMatrix.Code(b, f.Base)
			if err := w.writeByte(SeriesBaseSubstCode, code); err != nil {
				return err
			}
			readPos++
			refPos++
		case FeatureInsertion:
			if err := w.writeByteArray(SeriesInsertion, f.Bases); err != nil {
				return err
			}
			readPos += len(f.Bases)
		case FeatureDeletion:
			if err := w.writeInt(SeriesDeletionLength, int32(f.Length)); err != nil {
				return err
			}
			refPos += f.Length
		case FeatureInsertBase:
			if err := w.writeByte(SeriesBases, f.Base); err != nil {
				return err
			}
			readPos++
		case FeatureQualityScore:
			if err := w.writeByte(SeriesQualityScores, f.Score); err != nil {
				return err
			}
		case FeatureReferenceSkip:
			if err := w.writeInt(SeriesRefSkipLength, int32(f.Length)); err != nil {
				return err
			}
			refPos += f.Length
		case FeatureSoftClip:
			if err := w.writeByteArray(SeriesSoftClipBases, f.Bases); err != nil {
				return err
			}
			readPos += len(f.Bases)
		case FeaturePadding:
			if err := w.writeInt(SeriesPaddingLength, int32(f.Length)); err != nil {
				return err
			}
		case FeatureHardClip:
			if err := w.writeInt(SeriesHardClipLength, int32(f.Length)); err != nil {
				return err
			}
		case FeatureBases:
			if err := w.writeByteArray(SeriesStretchBases, f.Bases); err != nil {
				return err
			}
			readPos += len(f.Bases)
			refPos += len(f.Bases)
		case FeatureScores:
			if err := w.writeByteArray(SeriesStretchScores, f.Scores); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown feature code %q", ErrMalformedReadFeature, byte(f.Code))
		}
	}

	if err := w.writeInt(SeriesMappingQuality, int32(rec.MappingQuality)); err != nil {
		return err
	}

	if cf&recordFlagQualityStored != 0 {
		if len(rec.Quality) != rec.ReadLength {
			return fmt.Errorf("quality length %d does not match read length %d", len(rec.Quality), rec.ReadLength)
		}
		if err := w.writeByteArrayN(SeriesQualityScores, rec.Quality); err != nil {
			return err
		}
	}
	return nil
}

func (w *recordWriter) writeUnmappedFields(rec *Record, cf int32) error {
	if cf&recordFlagUnknownBases == 0 {
		if len(rec.Sequence) != rec.ReadLength {
			return fmt.Errorf("sequence length %d does not match read length %d", len(rec.Sequence), rec.ReadLength)
		}
		if err := w.writeByteArrayN(SeriesBases, rec.Sequence); err != nil {
			return err
		}
	}

	if cf&recordFlagQualityStored != 0 {
		if len(rec.Quality) != rec.ReadLength {
			return fmt.Errorf("quality length %d does not match read length %d", len(rec.Quality), rec.ReadLength)
		}
		return w.writeByteArrayN(SeriesQualityScores, rec.Quality)
	}
	return nil
}
