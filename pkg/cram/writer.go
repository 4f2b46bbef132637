package cram

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/biogo/hts/sam"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultRecordsPerSlice is how many records a slice holds before the
	// writer seals it.
	DefaultRecordsPerSlice = 10000

	// DefaultSlicesPerContainer is how many slices share one container and
	// its compression header.
	DefaultSlicesPerContainer = 1
)

type writerOptions struct {
	recordsPerSlice    int
	slicesPerContainer int
	method             CompressionMethod
	refs               ReferenceProvider
	embedReference     bool
	sliceWritten       func(SliceInfo)
}

// SliceInfo describes one slice the writer has emitted: the records it
// places and the offsets a reader needs to seek back to it.
type SliceInfo struct {
	ReferenceID     int32
	Start           int32
	Span            int32
	RecordCount     int32
	ContainerOffset int64
	Landmark        int
}

// WriterOption adjusts how a Writer batches and compresses records.
type WriterOption func(*writerOptions)

// WithRecordsPerSlice sets the number of records per slice.
func WithRecordsPerSlice(n int) WriterOption {
	return func(o *writerOptions) { o.recordsPerSlice = n }
}

// WithSlicesPerContainer sets the number of slices per container.
func WithSlicesPerContainer(n int) WriterOption {
	return func(o *writerOptions) { o.slicesPerContainer = n }
}

// WithCompressionMethod selects the method applied to external data blocks.
func WithCompressionMethod(m CompressionMethod) WriterOption {
	return func(o *writerOptions) { o.method = m }
}

// WithReferenceProvider supplies the reference bases the writer needs to
// turn substitution features into compact codes.
func WithReferenceProvider(refs ReferenceProvider) WriterOption {
	return func(o *writerOptions) { o.refs = refs }
}

// WithEmbeddedReference stores each single-reference slice's reference
// window as an in-slice block, so readers need no provider of their own.
func WithEmbeddedReference(embed bool) WriterOption {
	return func(o *writerOptions) { o.embedReference = embed }
}

// WithSliceWritten registers a callback invoked once per emitted slice,
// after its container has been written. Index builders hook in here to
// collect entries during the write instead of rescanning the stream.
func WithSliceWritten(fn func(SliceInfo)) WriterOption {
	return func(o *writerOptions) { o.sliceWritten = fn }
}

// Writer encodes records into a reference-compressed container stream.
// Records are buffered until a container fills, encoded slice by slice, and
// framed with landmarks so readers can seek straight to any slice. Close
// flushes the tail and writes the end-of-stream sentinel.
type Writer struct {
	w    *countingWriter
	opts writerOptions

	header *sam.Header

	pending       []*Record
	recordCounter int64
	closed        bool
}

// countingWriter tracks the stream offset so emitted slices can be
// reported with seekable positions.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// NewWriter writes the file definition and the header container, then
// returns a Writer ready for records.
func NewWriter(w io.Writer, header *sam.Header, opts ...WriterOption) (*Writer, error) {
	o := writerOptions{
		recordsPerSlice:    DefaultRecordsPerSlice,
		slicesPerContainer: DefaultSlicesPerContainer,
		method:             MethodGzip,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.recordsPerSlice < 1 || o.slicesPerContainer < 1 {
		return nil, fmt.Errorf("batch sizes must be positive")
	}

	cw := &Writer{w: &countingWriter{w: w}, opts: o, header: header}
	if err := cw.writeFileDefinition(); err != nil {
		return nil, err
	}
	if err := cw.writeHeaderContainer(); err != nil {
		return nil, err
	}
	return cw, nil
}

func (w *Writer) writeFileDefinition() error {
	text, err := w.header.MarshalText()
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	def := FileDefinition{Major: VersionMajor, Minor: VersionMinor}
	sum := md5.Sum(text)
	copy(def.FileID[:], sum[:])

	out := append([]byte{}, Magic[:]...)
	out = append(out, def.Major, def.Minor)
	out = append(out, def.FileID[:]...)
	_, err = w.w.Write(out)
	return err
}

// writeHeaderContainer frames the SAM header text, length-prefixed, as the
// single block of the first container.
func (w *Writer) writeHeaderContainer() error {
	text, err := w.header.MarshalText()
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	payload := binary.LittleEndian.AppendUint32(nil, uint32(len(text)))
	payload = append(payload, text...)

	block := &Block{ContentType: ContentFileHeader, Method: w.opts.method, Data: payload}
	body, err := block.encode(nil)
	if err != nil {
		return err
	}

	h := ContainerHeader{
		Length:      int32(len(body)),
		ReferenceID: -1,
		BlockCount:  1,
	}
	if _, err := w.w.Write(h.marshal()); err != nil {
		return err
	}
	_, err = w.w.Write(body)
	return err
}

// Write buffers one record, flushing a full container when the batch
// reaches capacity.
func (w *Writer) Write(rec *Record) error {
	if w.closed {
		return fmt.Errorf("write on closed writer")
	}
	w.pending = append(w.pending, rec)
	if len(w.pending) >= w.opts.recordsPerSlice*w.opts.slicesPerContainer {
		return w.Flush()
	}
	return nil
}

// Flush encodes and writes all buffered records as one container. A
// partially filled buffer produces a short final slice.
func (w *Writer) Flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	records := w.pending
	w.pending = nil

	if err := w.writeContainer(records); err != nil {
		return err
	}
	w.recordCounter += int64(len(records))
	return nil
}

// Close flushes buffered records and writes the end-of-stream sentinel.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.closed = true
	return writeEOFContainer(w.w)
}

func (w *Writer) writeContainer(records []*Record) error {
	h := buildCompressionHeader(records)

	chunks := make([][]*Record, 0, w.opts.slicesPerContainer)
	for off := 0; off < len(records); off += w.opts.recordsPerSlice {
		end := off + w.opts.recordsPerSlice
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[off:end])
	}

	// Slices are independent once the compression header is fixed, so they
	// encode in parallel and serialize in submission order, which keeps the
	// landmarks deterministic.
	slices := make([]*encodedSlice, len(chunks))
	var g errgroup.Group
	counter := w.recordCounter
	for i, chunk := range chunks {
		i, chunk := i, chunk
		base := counter
		g.Go(func() error {
			dists := linkMates(chunk)
			es, err := encodeSlice(h, chunk, dists, base, w.opts.refs, w.opts.method, w.opts.embedReference)
			if err != nil {
				return fmt.Errorf("slice %d: %w", i, err)
			}
			slices[i] = es
			return nil
		})
		counter += int64(len(chunk))
	}
	if err := g.Wait(); err != nil {
		return err
	}

	chData, err := h.marshal()
	if err != nil {
		return fmt.Errorf("compression header: %w", err)
	}
	chBlock := &Block{ContentType: ContentCompressionHeader, Method: w.opts.method, Data: chData}
	body, err := chBlock.encode(nil)
	if err != nil {
		return err
	}

	hdr := ContainerHeader{
		RecordCount:   int32(len(records)),
		RecordCounter: w.recordCounter,
		BlockCount:    1,
		Landmarks:     make([]int32, len(slices)),
	}

	landmark := int32(0)
	for i, es := range slices {
		hdr.Landmarks[i] = landmark
		landmark += int32(len(es.data))
		hdr.BlockCount += es.blocks
		hdr.BaseCount += es.bases
	}
	hdr.Length = int32(len(body)) + landmark
	hdr.ReferenceID, hdr.Start, hdr.Span = containerPlacement(slices)

	containerOffset := w.w.n
	if _, err := w.w.Write(hdr.marshal()); err != nil {
		return err
	}
	if _, err := w.w.Write(body); err != nil {
		return err
	}
	for _, es := range slices {
		if _, err := w.w.Write(es.data); err != nil {
			return err
		}
	}

	if w.opts.sliceWritten != nil {
		for i, es := range slices {
			h := es.header
			w.opts.sliceWritten(SliceInfo{
				ReferenceID:     h.ReferenceID,
				Start:           h.Start,
				Span:            h.Span,
				RecordCount:     h.RecordCount,
				ContainerOffset: containerOffset,
				Landmark:        i,
			})
		}
	}
	return nil
}

// containerPlacement folds the slices' placements into the container's:
// a shared reference id keeps its covering interval, anything mixed
// becomes multi-reference.
func containerPlacement(slices []*encodedSlice) (refID, start, span int32) {
	refID = -1
	for i, es := range slices {
		h := es.header
		if i == 0 {
			refID = h.ReferenceID
		} else if refID != h.ReferenceID {
			refID = -2
		}
	}
	if refID < 0 {
		return refID, 0, 0
	}

	var end int32
	for i, es := range slices {
		h := es.header
		if i == 0 || h.Start < start {
			start = h.Start
		}
		if e := h.Start + h.Span - 1; e > end {
			end = e
		}
	}
	return refID, start, end - start + 1
}
