package cram

import (
	"bytes"
	"fmt"
	"io"
)

// SliceHeader is the decoded payload of a slice header block.
type SliceHeader struct {
	ReferenceID   int32 // -1 unmapped, -2 multi-reference
	Start         int32
	Span          int32
	RecordCount   int32
	RecordCounter int64
	BlockCount    int32
	ContentIDs    []int32

	// EmbeddedRefContentID names the external block carrying the reference
	// window for this slice, or -1 when the reference is external.
	EmbeddedRefContentID int32

	ReferenceMD5 [16]byte
}

// Slice groups records sharing one core block and a set of external blocks.
// It owns its blocks until every record has been produced.
type Slice struct {
	Header   SliceHeader
	Core     *Block
	External map[int32]*Block
}

func (h *SliceHeader) marshal() []byte {
	var out []byte
	out = appendITF8(out, h.ReferenceID)
	out = appendITF8(out, h.Start)
	out = appendITF8(out, h.Span)
	out = appendITF8(out, h.RecordCount)
	out = appendLTF8(out, h.RecordCounter)
	out = appendITF8(out, h.BlockCount)
	out = appendITF8(out, int32(len(h.ContentIDs)))
	for _, id := range h.ContentIDs {
		out = appendITF8(out, id)
	}
	out = appendITF8(out, h.EmbeddedRefContentID)
	return append(out, h.ReferenceMD5[:]...)
}

func parseSliceHeader(data []byte) (*SliceHeader, error) {
	r := bytes.NewReader(data)
	h := &SliceHeader{}
	var err error
	if h.ReferenceID, err = readITF8(r); err != nil {
		return nil, err
	}
	if h.Start, err = readITF8(r); err != nil {
		return nil, err
	}
	if h.Span, err = readITF8(r); err != nil {
		return nil, err
	}
	if h.RecordCount, err = readITF8(r); err != nil {
		return nil, err
	}
	if h.RecordCounter, err = readLTF8(r); err != nil {
		return nil, err
	}
	if h.BlockCount, err = readITF8(r); err != nil {
		return nil, err
	}
	if h.ContentIDs, err = readITF8Array(r); err != nil {
		return nil, err
	}
	if h.EmbeddedRefContentID, err = readITF8(r); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, h.ReferenceMD5[:]); err != nil {
		return nil, fmt.Errorf("%w: reference md5: %v", ErrTruncated, err)
	}
	return h, nil
}

// readSlice reads a slice header block and its data blocks.
func readSlice(r *bytes.Reader) (*Slice, error) {
	headerBlock, err := readBlock(r)
	if err != nil {
		return nil, err
	}
	if headerBlock.ContentType != ContentSliceHeader {
		return nil, fmt.Errorf("expected slice header block, found %s", headerBlock.ContentType)
	}
	header, err := parseSliceHeader(headerBlock.Data)
	if err != nil {
		return nil, fmt.Errorf("slice header: %w", err)
	}

	s := &Slice{Header: *header, External: make(map[int32]*Block)}
	for i := int32(0); i < header.BlockCount; i++ {
		b, err := readBlock(r)
		if err != nil {
			return nil, err
		}
		switch b.ContentType {
		case ContentCoreData:
			s.Core = b
		case ContentExternalData:
			s.External[b.ContentID] = b
		default:
			return nil, fmt.Errorf("unexpected %s block inside slice", b.ContentType)
		}
	}
	if s.Core == nil {
		return nil, fmt.Errorf("slice has no core data block")
	}
	return s, nil
}

// sliceIter is the pull cursor over a slice's records. Each Next call
// yields exactly one record; records linked by downstream-mate distances
// are decoded ahead as a group so mate fields can be resolved before any of
// them is surfaced. Dropping the iterator at any point leaks nothing: the
// blocks are plain buffers.
type sliceIter struct {
	h     *CompressionHeader
	slice *Slice
	rr    *recordReader
	refs  ReferenceProvider

	refWindow      []byte // single-reference slices share one window
	refWindowStart int

	buffered []*decodedRecord
	decoded  int // records decoded so far
	err      error
}

func newSliceIter(h *CompressionHeader, s *Slice, refs ReferenceProvider) *sliceIter {
	readers := &blockReaders{
		core:     newBitReader(s.Core.Data),
		external: make(map[int32]*bytes.Reader, len(s.External)),
	}
	for id, b := range s.External {
		readers.external[id] = bytes.NewReader(b.Data)
	}
	return &sliceIter{
		h:     h,
		slice: s,
		rr:    newRecordReader(h, readers, s.Header.ReferenceID, s.Header.Start),
		refs:  refs,
	}
}

// Next returns the next record, io.EOF once the slice is exhausted, or the
// error that ended iteration. After an error the iterator stays failed.
func (it *sliceIter) Next() (*Record, error) {
	if it.err != nil {
		return nil, it.err
	}

	if len(it.buffered) == 0 {
		if it.decoded >= int(it.slice.Header.RecordCount) {
			return nil, io.EOF
		}
		if err := it.decodeGroup(); err != nil {
			it.err = err
			return nil, err
		}
	}

	head := it.buffered[0]
	it.buffered = it.buffered[1:]
	return head.rec, nil
}

// decodeGroup decodes one record, extending through any downstream-mate
// chain it starts, then resolves the chain's mate fields.
func (it *sliceIter) decodeGroup() error {
	start := it.decoded
	target := -1

	for {
		d, err := it.decodeOne()
		if err != nil {
			return err
		}
		i := it.decoded - 1
		if d.mateDistance >= 0 {
			t := i + int(d.mateDistance) + 1
			if t >= int(it.slice.Header.RecordCount) {
				return fmt.Errorf("record %d: mate distance %d points past slice end", i, d.mateDistance)
			}
			if t > target {
				target = t
			}
		}
		if i >= target {
			break
		}
	}

	if target >= start {
		// decodeGroup starts with an empty buffer, so the buffer is exactly
		// this group.
		resolveMates(it.buffered)
	}
	return nil
}

func (it *sliceIter) decodeOne() (*decodedRecord, error) {
	i := it.decoded
	d, err := it.rr.readRecord()
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", i, err)
	}
	it.decoded++

	if err := it.finishRecord(d); err != nil {
		return nil, fmt.Errorf("record %d: %w", i, err)
	}

	it.buffered = append(it.buffered, d)
	return d, nil
}

// finishRecord materializes the sequence of a mapped record against its
// reference window.
func (it *sliceIter) finishRecord(d *decodedRecord) error {
	rec := d.rec
	if !rec.IsMapped() || d.flags&recordFlagUnknownBases != 0 {
		return nil
	}

	ref, start, err := it.referenceWindow(rec)
	if err != nil {
		return err
	}
	return materializeSequence(rec, ref, start, it.h.SubstitutionMatrix)
}

func (it *sliceIter) referenceWindow(rec *Record) ([]byte, int, error) {
	h := it.slice.Header

	if h.EmbeddedRefContentID >= 0 {
		b, ok := it.slice.External[h.EmbeddedRefContentID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: embedded reference block %d absent", ErrMissingReferenceSequence, h.EmbeddedRefContentID)
		}
		return b.Data, int(h.Start), nil
	}

	if it.refs == nil {
		return nil, 0, fmt.Errorf("%w: no reference provider configured", ErrMissingReferenceSequence)
	}

	// Multi-reference slices fetch per record; single-reference slices
	// fetch the whole slice span once.
	if h.ReferenceID == -2 {
		span := rec.AlignmentSpan()
		window, err := it.refs.ReferenceSequence(rec.ReferenceID, rec.Position, rec.Position+span-1)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: reference %d: %v", ErrMissingReferenceSequence, rec.ReferenceID, err)
		}
		return window, rec.Position, nil
	}

	if it.refWindow == nil {
		window, err := it.refs.ReferenceSequence(int(h.ReferenceID), int(h.Start), int(h.Start+h.Span-1))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: reference %d: %v", ErrMissingReferenceSequence, h.ReferenceID, err)
		}
		it.refWindow, it.refWindowStart = window, int(h.Start)
	}
	return it.refWindow, it.refWindowStart, nil
}

// resolveMates rebuilds the mate fields of records linked by downstream
// distances. The last fragment of a chain points back at the chain head.
func resolveMates(group []*decodedRecord) {
	for i, d := range group {
		if d.mateDistance < 0 {
			continue
		}
		j := i + int(d.mateDistance) + 1
		if j >= len(group) {
			continue
		}
		mate := group[j].rec
		d.rec.MateReferenceID = mate.ReferenceID
		d.rec.MatePosition = mate.Position
		if mate.Flags&FlagReverse != 0 {
			d.rec.Flags |= FlagMateReverse
		}
		if mate.Flags&FlagUnmapped != 0 {
			d.rec.Flags |= FlagMateUnmapped
		}
		if mate.Name == "" {
			mate.Name = d.rec.Name
		}
	}

	// Close each chain: the final fragment's mate is the chain head, and
	// the whole chain shares one template span.
	for i, d := range group {
		if d.mateDistance < 0 || !isChainHead(group, i) {
			continue
		}

		chain := []int{i}
		for group[chain[len(chain)-1]].mateDistance >= 0 {
			next := chain[len(chain)-1] + int(group[chain[len(chain)-1]].mateDistance) + 1
			if next >= len(group) {
				break
			}
			chain = append(chain, next)
		}

		head := group[chain[0]].rec
		last := group[chain[len(chain)-1]].rec
		last.MateReferenceID = head.ReferenceID
		last.MatePosition = head.Position
		if head.Flags&FlagReverse != 0 {
			last.Flags |= FlagMateReverse
		}
		if head.Flags&FlagUnmapped != 0 {
			last.Flags |= FlagMateUnmapped
		}

		setTemplateLengths(group, chain)
	}
}

func isChainHead(group []*decodedRecord, i int) bool {
	for k, d := range group {
		if d.mateDistance >= 0 && k+int(d.mateDistance)+1 == i {
			return false
		}
	}
	return true
}

// setTemplateLengths assigns the signed template span: the leftmost
// fragment carries the positive span, the rightmost the negative one.
func setTemplateLengths(group []*decodedRecord, chain []int) {
	left, right := -1, -1
	var leftPos, rightEnd int
	for _, idx := range chain {
		rec := group[idx].rec
		if rec.Position == 0 {
			continue
		}
		end := rec.Position + rec.AlignmentSpan() - 1
		if left < 0 || rec.Position < leftPos {
			left, leftPos = idx, rec.Position
		}
		if right < 0 || end > rightEnd {
			right, rightEnd = idx, end
		}
	}
	if left < 0 || right < 0 || left == right {
		return
	}
	size := rightEnd - leftPos + 1
	for _, idx := range chain {
		switch idx {
		case left:
			group[idx].rec.TemplateLength = size
		case right:
			group[idx].rec.TemplateLength = -size
		default:
			group[idx].rec.TemplateLength = 0
		}
	}
}
