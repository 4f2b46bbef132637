package cram

import "sort"

// Content id layout for the default write profile: the core block is id 0,
// each data series stored externally gets 1 + its position in wire order,
// tag blocks use the packed tag key, and an embedded reference block (when
// requested) uses embeddedRefID.
const (
	coreContentID = 0
	embeddedRefID = 999
)

func seriesContentID(s DataSeries) int32 {
	for i, ds := range allDataSeries {
		if ds == s {
			return int32(i) + 1
		}
	}
	return -1
}

// buildCompressionHeader derives a container's compression header from the
// records it will hold. Most integer series are stored as ITF-8 values in
// per-series external blocks; read names and insertions use stop-byte
// arrays; a handful of small-domain series (feature counts, feature codes,
// substitution codes, mapping qualities, mate distances) go through the
// core block with bit-level encodings fitted to the observed values.
func buildCompressionHeader(records []*Record) *CompressionHeader {
	h := &CompressionHeader{
		ReadNamesIncluded:   true,
		APDelta:             true,
		SubstitutionMatrix:  NewSubstitutionMatrix(),
		DataSeriesEncodings: make(map[DataSeries]*Encoding),
		TagEncodings:        make(map[TagKey]*Encoding),
	}

	codes := make(map[int32]bool)
	for _, rec := range records {
		if rec.IsMapped() {
			h.ReferenceRequired = true
		}
		for _, f := range rec.Features {
			codes[int32(f.Code)] = true
		}
	}

	ext := func(s DataSeries) *Encoding { return externalEncoding(seriesContentID(s)) }

	for _, s := range []DataSeries{
		SeriesBAMFlags, SeriesCRAMFlags, SeriesReferenceID, SeriesReadLength,
		SeriesAlignmentStart, SeriesReadGroup, SeriesMateFlags, SeriesMateRefID,
		SeriesMatePosition, SeriesTemplateSize, SeriesTagList,
		SeriesFeaturePosition, SeriesDeletionLength, SeriesRefSkipLength,
		SeriesPaddingLength, SeriesHardClipLength, SeriesBases, SeriesQualityScores,
	} {
		h.DataSeriesEncodings[s] = ext(s)
	}

	h.DataSeriesEncodings[SeriesReadName] = byteArrayStopEncoding('\t', seriesContentID(SeriesReadName))
	h.DataSeriesEncodings[SeriesInsertion] = byteArrayStopEncoding(0, seriesContentID(SeriesInsertion))
	h.DataSeriesEncodings[SeriesSoftClipBases] = byteArrayStopEncoding(0, seriesContentID(SeriesSoftClipBases))

	h.DataSeriesEncodings[SeriesStretchBases] = byteArrayLenEncoding(
		externalEncoding(seriesContentID(SeriesStretchBases)),
		externalEncoding(seriesContentID(SeriesStretchBases)))
	h.DataSeriesEncodings[SeriesStretchScores] = byteArrayLenEncoding(
		externalEncoding(seriesContentID(SeriesStretchScores)),
		externalEncoding(seriesContentID(SeriesStretchScores)))

	// Core bit-stream series.
	h.DataSeriesEncodings[SeriesMateDistance] = &Encoding{ID: EncodingGamma, Offset: 1}
	h.DataSeriesEncodings[SeriesFeatureCount] = &Encoding{ID: EncodingGamma, Offset: 1}
	h.DataSeriesEncodings[SeriesBaseSubstCode] = &Encoding{ID: EncodingBeta, Length: 2}
	h.DataSeriesEncodings[SeriesMappingQuality] = &Encoding{ID: EncodingBeta, Length: 8}
	h.DataSeriesEncodings[SeriesFeatureCode] = huffmanEncodingFor(codes)

	h.TagDictionary = buildTagDictionary(records)
	for _, line := range h.TagDictionary {
		for _, key := range line {
			if _, ok := h.TagEncodings[key]; !ok {
				h.TagEncodings[key] = byteArrayLenEncoding(
					externalEncoding(int32(key)), externalEncoding(int32(key)))
			}
		}
	}

	return h
}

// huffmanEncodingFor builds a flat canonical code over the observed feature
// codes: a single symbol gets the degenerate zero-length code, n symbols
// get equal ceil(log2 n)-bit codewords.
func huffmanEncodingFor(observed map[int32]bool) *Encoding {
	symbols := make([]int32, 0, len(observed))
	for s := range observed {
		symbols = append(symbols, s)
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i] < symbols[j] })

	if len(symbols) == 0 {
		symbols = []int32{int32(FeatureSubstitution)}
	}

	lengths := make([]int32, len(symbols))
	if len(symbols) > 1 {
		width := int32(1)
		for 1<<uint(width) < len(symbols) {
			width++
		}
		for i := range lengths {
			lengths[i] = width
		}
	}

	return &Encoding{ID: EncodingHuffman, Alphabet: symbols, BitLengths: lengths}
}

// buildTagDictionary collects the distinct ordered tag key sets of the
// records, in first-seen order. A record's TL value indexes this dictionary.
func buildTagDictionary(records []*Record) [][]TagKey {
	var dict [][]TagKey
	seen := make(map[string]bool)
	for _, rec := range records {
		sig := make([]byte, 0, len(rec.Tags)*3)
		keys := make([]TagKey, 0, len(rec.Tags))
		for _, t := range rec.Tags {
			k := t.key()
			keys = append(keys, k)
			n := k.Name()
			sig = append(sig, n[0], n[1], k.Type())
		}
		if seen[string(sig)] {
			continue
		}
		seen[string(sig)] = true
		dict = append(dict, keys)
	}

	// An all-tagless container still needs line 0 for TL 0.
	if len(dict) == 0 {
		dict = [][]TagKey{{}}
	}
	return dict
}
