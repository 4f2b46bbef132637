package cram

import (
	"crypto/md5"
	"fmt"
	"sort"
)

// slicePlacement summarizes where a batch of records sits on the reference:
// the shared reference id (-1 all unmapped, -2 mixed), the leftmost
// alignment start, and the span covered.
type slicePlacement struct {
	refID int32
	start int32
	span  int32
}

func placeRecords(records []*Record) slicePlacement {
	p := slicePlacement{refID: -1}

	first := true
	for _, rec := range records {
		id := int32(rec.ReferenceID)
		if first {
			p.refID = id
			first = false
		} else if p.refID != id {
			p.refID = -2
		}
	}
	if p.refID < 0 {
		return p
	}

	var end int
	for _, rec := range records {
		if p.start == 0 || int32(rec.Position) < p.start {
			p.start = int32(rec.Position)
		}
		if e := rec.Position + rec.AlignmentSpan() - 1; e > end {
			end = e
		}
	}
	p.span = int32(end) - p.start + 1
	return p
}

// encodedSlice is a slice serialized down to its block stream, ready to be
// framed into a container.
type encodedSlice struct {
	header SliceHeader
	data   []byte // slice header block followed by data blocks
	blocks int32  // block count including the slice header block
	bases  int64
}

// encodeSlice runs the records through the compression header's encodings
// and serializes the resulting blocks. mateDistances carries, per record,
// the gap to its downstream mate or -1 for detached storage.
func encodeSlice(h *CompressionHeader, records []*Record, mateDistances []int32,
	recordCounter int64, refs ReferenceProvider, method CompressionMethod, embedRef bool) (*encodedSlice, error) {

	p := placeRecords(records)

	writers := newBlockWriters()
	rw := newRecordWriter(h, writers, p.refID, p.start, refs)
	var bases int64
	for i, rec := range records {
		cf := recordFlags(rec, mateDistances[i])
		if err := rw.writeRecord(rec, cf, mateDistances[i]); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		bases += int64(rec.ReadLength)
	}

	hdr := SliceHeader{
		ReferenceID:          p.refID,
		Start:                p.start,
		Span:                 p.span,
		RecordCount:          int32(len(records)),
		RecordCounter:        recordCounter,
		EmbeddedRefContentID: -1,
	}

	var refWindow []byte
	if p.refID >= 0 && refs != nil {
		window, err := refs.ReferenceSequence(int(p.refID), int(p.start), int(p.start+p.span-1))
		if err == nil {
			hdr.ReferenceMD5 = md5.Sum(window)
			if embedRef {
				refWindow = window
				hdr.EmbeddedRefContentID = embeddedRefID
			}
		} else if embedRef {
			return nil, fmt.Errorf("embedded reference %d: %w", p.refID, err)
		}
	}

	ids := make([]int32, 0, len(writers.external))
	for id := range writers.external {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	hdr.ContentIDs = ids
	hdr.BlockCount = int32(len(ids)) + 1 // core block
	if refWindow != nil {
		hdr.ContentIDs = append(hdr.ContentIDs, embeddedRefID)
		hdr.BlockCount++
	}

	headerBlock := &Block{
		ContentType: ContentSliceHeader,
		Method:      MethodNone,
		Data:        hdr.marshal(),
	}
	out, err := headerBlock.encode(nil)
	if err != nil {
		return nil, err
	}

	coreBlock := &Block{
		ContentType: ContentCoreData,
		Method:      MethodNone, // bit stream, already dense
		ContentID:   coreContentID,
		Data:        writers.core.finish(),
	}
	if out, err = coreBlock.encode(out); err != nil {
		return nil, err
	}

	for _, id := range ids {
		b := &Block{
			ContentType: ContentExternalData,
			Method:      method,
			ContentID:   id,
			Data:        writers.external[id].Bytes(),
		}
		if out, err = b.encode(out); err != nil {
			return nil, fmt.Errorf("external block %d: %w", id, err)
		}
	}

	if refWindow != nil {
		b := &Block{
			ContentType: ContentExternalData,
			Method:      method,
			ContentID:   embeddedRefID,
			Data:        refWindow,
		}
		if out, err = b.encode(out); err != nil {
			return nil, fmt.Errorf("embedded reference block: %w", err)
		}
	}

	return &encodedSlice{
		header: hdr,
		data:   out,
		blocks: hdr.BlockCount + 1, // plus the slice header block itself
		bases:  bases,
	}, nil
}

// linkMates picks, for each record, between downstream-mate linkage and
// detached storage. Only clean same-slice pairs are linked: both fragments
// flagged segmented, mate fields on each side describing the other, and
// template lengths following the leftmost-positive, rightmost-negative
// convention, so that resolution on read reproduces the records exactly.
func linkMates(records []*Record) []int32 {
	dists := make([]int32, len(records))
	byName := make(map[string][]int, len(records))
	for i, rec := range records {
		dists[i] = -1
		if rec.Flags&FlagSegmented == 0 || rec.Flags&FlagSecondary != 0 || rec.Name == "" {
			continue
		}
		byName[rec.Name] = append(byName[rec.Name], i)
	}

	for _, idx := range byName {
		if len(idx) != 2 {
			continue
		}
		a, b := records[idx[0]], records[idx[1]]
		if mateFieldsMatch(a, b) && mateFieldsMatch(b, a) && templateLengthsMatch(a, b) {
			dists[idx[0]] = int32(idx[1]-idx[0]) - 1
		}
	}
	return dists
}

// mateFieldsMatch reports whether rec's stored mate fields describe other.
func mateFieldsMatch(rec, other *Record) bool {
	if rec.MateReferenceID != other.ReferenceID || rec.MatePosition != other.Position {
		return false
	}
	if (rec.Flags&FlagMateReverse != 0) != (other.Flags&FlagReverse != 0) {
		return false
	}
	return (rec.Flags&FlagMateUnmapped != 0) == (other.Flags&FlagUnmapped != 0)
}

// templateLengthsMatch reports whether the pair's template lengths are the
// ones mate resolution would recompute. Linked fragments store no template
// size, so resolution must land exactly on the original values.
func templateLengthsMatch(a, b *Record) bool {
	pair := [2]*Record{a, b}

	left, right := -1, -1
	var leftPos, rightEnd int
	for i, rec := range pair {
		if rec.Position == 0 {
			continue
		}
		end := rec.Position + rec.AlignmentSpan() - 1
		if left < 0 || rec.Position < leftPos {
			left, leftPos = i, rec.Position
		}
		if right < 0 || end > rightEnd {
			right, rightEnd = i, end
		}
	}

	var want [2]int
	if left >= 0 && left != right {
		size := rightEnd - leftPos + 1
		want[left], want[right] = size, -size
	}
	return a.TemplateLength == want[0] && b.TemplateLength == want[1]
}
