package cram

import "fmt"

// recordReader decodes records from a slice's blocks, one call per record,
// reading each data series in the fixed protocol order with the encoding
// the compression header assigns to it.
type recordReader struct {
	h *CompressionHeader
	s *blockReaders

	sliceRefID   int32 // -2 marks a multi-reference slice
	prevPosition int32 // running position for AP delta decoding
}

func newRecordReader(h *CompressionHeader, s *blockReaders, sliceRefID, sliceStart int32) *recordReader {
	return &recordReader{h: h, s: s, sliceRefID: sliceRefID, prevPosition: sliceStart}
}

func (r *recordReader) readInt(series DataSeries) (int32, error) {
	e, err := r.h.encoding(series)
	if err != nil {
		return 0, err
	}
	v, err := e.decodeInt(r.s)
	if err != nil {
		return 0, fmt.Errorf("series %s: %w", series, err)
	}
	return v, nil
}

func (r *recordReader) readByte(series DataSeries) (byte, error) {
	e, err := r.h.encoding(series)
	if err != nil {
		return 0, err
	}
	b, err := e.decodeByte(r.s)
	if err != nil {
		return 0, fmt.Errorf("series %s: %w", series, err)
	}
	return b, nil
}

func (r *recordReader) readByteArray(series DataSeries) ([]byte, error) {
	e, err := r.h.encoding(series)
	if err != nil {
		return nil, err
	}
	b, err := e.decodeByteArray(r.s)
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", series, err)
	}
	return b, nil
}

func (r *recordReader) readByteArrayN(series DataSeries, n int) ([]byte, error) {
	e, err := r.h.encoding(series)
	if err != nil {
		return nil, err
	}
	b, err := e.decodeByteArrayN(r.s, n)
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", series, err)
	}
	return b, nil
}

// decodedRecord carries the wire-level facts the slice needs to finish a
// record: the container flags and, for mate-downstream records, the
// distance to the next fragment.
type decodedRecord struct {
	rec          *Record
	flags        int32
	mateDistance int32 // -1 unless the mate-downstream flag is set
}

func (r *recordReader) readRecord() (*decodedRecord, error) {
	rec := &Record{MateReferenceID: -1, ReadGroupID: -1}

	bf, err := r.readInt(SeriesBAMFlags)
	if err != nil {
		return nil, err
	}
	rec.Flags = int(bf)

	cf, err := r.readInt(SeriesCRAMFlags)
	if err != nil {
		return nil, err
	}

	refID := r.sliceRefID
	if r.sliceRefID == -2 {
		if refID, err = r.readInt(SeriesReferenceID); err != nil {
			return nil, err
		}
	}
	rec.ReferenceID = int(refID)

	rl, err := r.readInt(SeriesReadLength)
	if err != nil {
		return nil, err
	}
	rec.ReadLength = int(rl)

	ap, err := r.readInt(SeriesAlignmentStart)
	if err != nil {
		return nil, err
	}
	if r.h.APDelta {
		r.prevPosition += ap
		rec.Position = int(r.prevPosition)
	} else {
		rec.Position = int(ap)
	}

	rg, err := r.readInt(SeriesReadGroup)
	if err != nil {
		return nil, err
	}
	rec.ReadGroupID = int(rg)

	if r.h.ReadNamesIncluded {
		name, err := r.readByteArray(SeriesReadName)
		if err != nil {
			return nil, err
		}
		rec.Name = string(name)
	}

	out := &decodedRecord{rec: rec, flags: cf, mateDistance: -1}

	switch {
	case cf&recordFlagDetached != 0:
		mf, err := r.readInt(SeriesMateFlags)
		if err != nil {
			return nil, err
		}
		if mf&0x1 != 0 {
			rec.Flags |= FlagMateReverse
		}
		if mf&0x2 != 0 {
			rec.Flags |= FlagMateUnmapped
		}
		if !r.h.ReadNamesIncluded {
			name, err := r.readByteArray(SeriesReadName)
			if err != nil {
				return nil, err
			}
			rec.Name = string(name)
		}
		ns, err := r.readInt(SeriesMateRefID)
		if err != nil {
			return nil, err
		}
		rec.MateReferenceID = int(ns)
		np, err := r.readInt(SeriesMatePosition)
		if err != nil {
			return nil, err
		}
		rec.MatePosition = int(np)
		ts, err := r.readInt(SeriesTemplateSize)
		if err != nil {
			return nil, err
		}
		rec.TemplateLength = int(ts)
	case cf&recordFlagMateDownstream != 0:
		nf, err := r.readInt(SeriesMateDistance)
		if err != nil {
			return nil, err
		}
		out.mateDistance = nf
	}

	if err := r.readTags(rec); err != nil {
		return nil, err
	}

	if rec.IsMapped() {
		if err := r.readMappedFields(rec, cf); err != nil {
			return nil, err
		}
	} else {
		if err := r.readUnmappedFields(rec, cf); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (r *recordReader) readTags(rec *Record) error {
	tl, err := r.readInt(SeriesTagList)
	if err != nil {
		return err
	}
	if int(tl) < 0 || int(tl) >= len(r.h.TagDictionary) {
		if tl == 0 && len(r.h.TagDictionary) == 0 {
			return nil
		}
		return fmt.Errorf("tag list index %d outside dictionary of %d lines", tl, len(r.h.TagDictionary))
	}

	for _, key := range r.h.TagDictionary[tl] {
		e, err := r.h.tagEncoding(key)
		if err != nil {
			return err
		}
		value, err := e.decodeByteArray(r.s)
		if err != nil {
			return fmt.Errorf("tag %s: %w", key, err)
		}
		rec.Tags = append(rec.Tags, Tag{Name: key.Name(), Type: key.Type(), Value: value})
	}
	return nil
}

func (r *recordReader) readMappedFields(rec *Record, cf int32) error {
	fn, err := r.readInt(SeriesFeatureCount)
	if err != nil {
		return err
	}

	prevPos := int32(0)
	for i := int32(0); i < fn; i++ {
		code, err := r.readByte(SeriesFeatureCode)
		if err != nil {
			return err
		}
		delta, err := r.readInt(SeriesFeaturePosition)
		if err != nil {
			return err
		}
		prevPos += delta

		f := ReadFeature{Code: FeatureCode(code), Position: int(prevPos)}
		switch f.Code {
		case FeatureReadBase:
			if f.Base, err = r.readByte(SeriesBases); err != nil {
				return err
			}
			if f.Score, err = r.readByte(SeriesQualityScores); err != nil {
				return err
			}
		case FeatureSubstitution:
			// Base temporarily holds the wire code; materialization
			// resolves it against the reference window.
			if f.Base, err = r.readByte(SeriesBaseSubstCode); err != nil {
				return err
			}
		case FeatureInsertion:
			if f.Bases, err = r.readByteArray(SeriesInsertion); err != nil {
				return err
			}
		case FeatureDeletion:
			v, err := r.readInt(SeriesDeletionLength)
			if err != nil {
				return err
			}
			f.Length = int(v)
		case FeatureInsertBase:
			if f.Base, err = r.readByte(SeriesBases); err != nil {
				return err
			}
		case FeatureQualityScore:
			if f.Score, err = r.readByte(SeriesQualityScores); err != nil {
				return err
			}
		case FeatureReferenceSkip:
			v, err := r.readInt(SeriesRefSkipLength)
			if err != nil {
				return err
			}
			f.Length = int(v)
		case FeatureSoftClip:
			if f.Bases, err = r.readByteArray(SeriesSoftClipBases); err != nil {
				return err
			}
		case FeaturePadding:
			v, err := r.readInt(SeriesPaddingLength)
			if err != nil {
				return err
			}
			f.Length = int(v)
		case FeatureHardClip:
			v, err := r.readInt(SeriesHardClipLength)
			if err != nil {
				return err
			}
			f.Length = int(v)
		case FeatureBases:
			if f.Bases, err = r.readByteArray(SeriesStretchBases); err != nil {
				return err
			}
		case FeatureScores:
			if f.Scores, err = r.readByteArray(SeriesStretchScores); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown feature code %q", ErrMalformedReadFeature, code)
		}
		rec.Features = append(rec.Features, f)
	}

	mq, err := r.readInt(SeriesMappingQuality)
	if err != nil {
		return err
	}
	rec.MappingQuality = uint8(mq)

	if cf&recordFlagQualityStored != 0 {
		if rec.Quality, err = r.readByteArrayN(SeriesQualityScores, rec.ReadLength); err != nil {
			return err
		}
	}
	return nil
}

func (r *recordReader) readUnmappedFields(rec *Record, cf int32) error {
	if cf&recordFlagUnknownBases == 0 {
		bases, err := r.readByteArrayN(SeriesBases, rec.ReadLength)
		if err != nil {
			return err
		}
		rec.Sequence = bases
	}

	if cf&recordFlagQualityStored != 0 {
		var err error
		if rec.Quality, err = r.readByteArrayN(SeriesQualityScores, rec.ReadLength); err != nil {
			return err
		}
	}
	return nil
}
