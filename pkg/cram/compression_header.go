package cram

import (
	"bytes"
	"fmt"
	"io"
	"sort"
)

// TagKey packs a two-character tag name and its value type into the int32
// key used by the tag encoding map.
type TagKey int32

func MakeTagKey(name [2]byte, typ byte) TagKey {
	return TagKey(int32(name[0])<<16 | int32(name[1])<<8 | int32(typ))
}

func (k TagKey) Name() [2]byte {
	return [2]byte{byte(k >> 16), byte(k >> 8)}
}

func (k TagKey) Type() byte {
	return byte(k)
}

func (k TagKey) String() string {
	n := k.Name()
	return fmt.Sprintf("%c%c:%c", n[0], n[1], k.Type())
}

// Preservation map keys.
var (
	keyReadNames   = [2]byte{'R', 'N'}
	keyAPDelta     = [2]byte{'A', 'P'}
	keyRefRequired = [2]byte{'R', 'R'}
	keySubstMatrix = [2]byte{'S', 'M'}
	keyTagIDDict   = [2]byte{'T', 'D'}
)

// CompressionHeader is the per-container metadata every slice in the
// container decodes against: structural preservation flags, the data
// series encoding map, the tag encoding map, the substitution matrix, and
// the tag id dictionary. It is built once per container and never mutated
// afterwards, so slices may share it concurrently.
type CompressionHeader struct {
	// Preservation flags.
	ReadNamesIncluded bool // RN: read names are stored per record
	APDelta           bool // AP: alignment positions are delta encoded
	ReferenceRequired bool // RR: decoding needs external reference bases

	SubstitutionMatrix SubstitutionMatrix

	// TagDictionary maps a record's TL value to the ordered tag keys that
	// record carries.
	TagDictionary [][]TagKey

	DataSeriesEncodings map[DataSeries]*Encoding
	TagEncodings        map[TagKey]*Encoding
}

// encoding resolves the encoding for a data series; a miss is a hard
// ErrMissingEncoding, never a default.
func (h *CompressionHeader) encoding(s DataSeries) (*Encoding, error) {
	e, ok := h.DataSeriesEncodings[s]
	if !ok || e.ID == EncodingNull {
		return nil, fmt.Errorf("%w: data series %s", ErrMissingEncoding, s)
	}
	return e, nil
}

func (h *CompressionHeader) tagEncoding(k TagKey) (*Encoding, error) {
	e, ok := h.TagEncodings[k]
	if !ok || e.ID == EncodingNull {
		return nil, fmt.Errorf("%w: tag %s", ErrMissingEncoding, k)
	}
	return e, nil
}

// marshal serializes the header as its three submaps, each prefixed with
// its byte size and entry count.
func (h *CompressionHeader) marshal() ([]byte, error) {
	preservation := h.marshalPreservation()

	var series []byte
	seriesKeys := make([]string, 0, len(h.DataSeriesEncodings))
	for k := range h.DataSeriesEncodings {
		seriesKeys = append(seriesKeys, string(k))
	}
	sort.Strings(seriesKeys)
	for _, k := range seriesKeys {
		series = append(series, k[0], k[1])
		var err error
		if series, err = appendEncoding(series, h.DataSeriesEncodings[DataSeries(k)]); err != nil {
			return nil, err
		}
	}

	var tags []byte
	tagKeys := make([]TagKey, 0, len(h.TagEncodings))
	for k := range h.TagEncodings {
		tagKeys = append(tagKeys, k)
	}
	sort.Slice(tagKeys, func(i, j int) bool { return tagKeys[i] < tagKeys[j] })
	for _, k := range tagKeys {
		tags = appendITF8(tags, int32(k))
		var err error
		if tags, err = appendEncoding(tags, h.TagEncodings[k]); err != nil {
			return nil, err
		}
	}

	var out []byte
	out = appendMap(out, preservation, 5)
	out = appendMap(out, series, int32(len(seriesKeys)))
	out = appendMap(out, tags, int32(len(tagKeys)))
	return out, nil
}

func appendMap(dst, body []byte, count int32) []byte {
	var inner []byte
	inner = appendITF8(inner, count)
	inner = append(inner, body...)
	dst = appendITF8(dst, int32(len(inner)))
	return append(dst, inner...)
}

func (h *CompressionHeader) marshalPreservation() []byte {
	var out []byte
	boolByte := func(b bool) byte {
		if b {
			return 1
		}
		return 0
	}
	out = append(out, keyAPDelta[:]...)
	out = append(out, boolByte(h.APDelta))
	out = append(out, keyReadNames[:]...)
	out = append(out, boolByte(h.ReadNamesIncluded))
	out = append(out, keyRefRequired[:]...)
	out = append(out, boolByte(h.ReferenceRequired))
	sm := h.SubstitutionMatrix.marshal()
	out = append(out, keySubstMatrix[:]...)
	out = append(out, sm[:]...)

	var td []byte
	for _, line := range h.TagDictionary {
		for _, k := range line {
			n := k.Name()
			td = append(td, n[0], n[1], k.Type())
		}
		td = append(td, 0)
	}
	out = append(out, keyTagIDDict[:]...)
	out = appendITF8(out, int32(len(td)))
	return append(out, td...)
}

// parseCompressionHeader parses the payload of a compression header block.
func parseCompressionHeader(data []byte) (*CompressionHeader, error) {
	h := &CompressionHeader{
		SubstitutionMatrix:  NewSubstitutionMatrix(),
		DataSeriesEncodings: make(map[DataSeries]*Encoding),
		TagEncodings:        make(map[TagKey]*Encoding),
	}
	r := bytes.NewReader(data)

	if err := h.parsePreservation(r); err != nil {
		return nil, fmt.Errorf("preservation map: %w", err)
	}

	count, err := openMap(r)
	if err != nil {
		return nil, fmt.Errorf("data series encoding map: %w", err)
	}
	for i := int32(0); i < count; i++ {
		var key [2]byte
		if _, err := io.ReadFull(r, key[:]); err != nil {
			return nil, fmt.Errorf("%w: data series key: %v", ErrTruncated, err)
		}
		e, err := readEncoding(r)
		if err != nil {
			return nil, fmt.Errorf("data series %s: %w", key[:], err)
		}
		h.DataSeriesEncodings[DataSeries(key[:])] = e
	}

	count, err = openMap(r)
	if err != nil {
		return nil, fmt.Errorf("tag encoding map: %w", err)
	}
	for i := int32(0); i < count; i++ {
		key, err := readITF8(r)
		if err != nil {
			return nil, err
		}
		e, err := readEncoding(r)
		if err != nil {
			return nil, fmt.Errorf("tag %s: %w", TagKey(key), err)
		}
		h.TagEncodings[TagKey(key)] = e
	}

	return h, nil
}

// openMap reads a submap's byte size and entry count. The size is implied
// by the entries, so only the count is returned.
func openMap(r *bytes.Reader) (int32, error) {
	if _, err := readITF8(r); err != nil {
		return 0, err
	}
	return readITF8(r)
}

func (h *CompressionHeader) parsePreservation(r *bytes.Reader) error {
	count, err := openMap(r)
	if err != nil {
		return err
	}
	for i := int32(0); i < count; i++ {
		var key [2]byte
		if _, err := io.ReadFull(r, key[:]); err != nil {
			return fmt.Errorf("%w: preservation key: %v", ErrTruncated, err)
		}
		switch key {
		case keyReadNames, keyAPDelta, keyRefRequired:
			b, err := readByteOrTruncated(r)
			if err != nil {
				return err
			}
			switch key {
			case keyReadNames:
				h.ReadNamesIncluded = b != 0
			case keyAPDelta:
				h.APDelta = b != 0
			case keyRefRequired:
				h.ReferenceRequired = b != 0
			}
		case keySubstMatrix:
			var raw [5]byte
			if _, err := io.ReadFull(r, raw[:]); err != nil {
				return fmt.Errorf("%w: substitution matrix: %v", ErrTruncated, err)
			}
			h.SubstitutionMatrix = unmarshalSubstitutionMatrix(raw)
		case keyTagIDDict:
			n, err := readITF8(r)
			if err != nil {
				return err
			}
			raw := make([]byte, n)
			if _, err := io.ReadFull(r, raw); err != nil {
				return fmt.Errorf("%w: tag dictionary: %v", ErrTruncated, err)
			}
			if h.TagDictionary, err = parseTagDictionary(raw); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown preservation key %q", key[:])
		}
	}
	return nil
}

// parseTagDictionary splits NUL-terminated lines of three-byte tag entries.
func parseTagDictionary(raw []byte) ([][]TagKey, error) {
	var dict [][]TagKey
	for len(raw) > 0 {
		end := bytes.IndexByte(raw, 0)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated tag dictionary line", ErrTruncated)
		}
		line := raw[:end]
		if len(line)%3 != 0 {
			return nil, fmt.Errorf("tag dictionary line length %d not a multiple of 3", len(line))
		}
		keys := make([]TagKey, 0, len(line)/3)
		for i := 0; i < len(line); i += 3 {
			keys = append(keys, MakeTagKey([2]byte{line[i], line[i+1]}, line[i+2]))
		}
		dict = append(dict, keys)
		raw = raw[end+1:]
	}
	return dict, nil
}
