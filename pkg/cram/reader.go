package cram

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/biogo/hts/sam"
)

// countingReader tracks how many bytes have been consumed, giving each
// container a stable stream offset for indexing and seeking.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Reader decodes a reference-compressed container stream. Records come back
// one per Read call; containers and slices are decoded lazily, so seeking
// to a landmark never touches the slices before it.
type Reader struct {
	cr *countingReader
	rs io.ReadSeeker // nil when the source cannot seek

	header *sam.Header
	fileID [20]byte
	refs   ReferenceProvider

	container       *Container
	containerOffset int64
	containerIndex  int
	sliceIndex      int
	iter            *sliceIter
	eof             bool
}

// NewReader checks the file definition and reads the header container.
func NewReader(r io.Reader) (*Reader, error) {
	cr := &countingReader{r: r}
	rd := &Reader{cr: cr, containerIndex: -1}
	if rs, ok := r.(io.ReadSeeker); ok {
		rd.rs = rs
	}

	var def [26]byte
	if _, err := io.ReadFull(cr, def[:]); err != nil {
		return nil, fmt.Errorf("%w: file definition: %v", ErrTruncated, err)
	}
	if [4]byte(def[:4]) != Magic || def[4] != VersionMajor {
		return nil, fmt.Errorf("%w: %q version %d.%d",
			ErrInvalidMagicOrVersion, def[:4], def[4], def[5])
	}
	copy(rd.fileID[:], def[6:])

	if err := rd.readHeaderContainer(); err != nil {
		return nil, err
	}
	return rd, nil
}

// SetReferenceProvider supplies reference bases for slices that do not
// embed their own. It must be set before the first Read of a slice that
// needs it.
func (r *Reader) SetReferenceProvider(refs ReferenceProvider) {
	r.refs = refs
}

// Header returns the decoded SAM header.
func (r *Reader) Header() *sam.Header { return r.header }

// FileID returns the stream's 20-byte file id.
func (r *Reader) FileID() [20]byte { return r.fileID }

func (r *Reader) readHeaderContainer() error {
	h, err := readContainerHeader(r.cr)
	if err != nil {
		return fmt.Errorf("header container: %w", err)
	}
	if h.IsEOF() {
		return fmt.Errorf("%w: stream holds no header container", ErrTruncated)
	}

	body := make([]byte, h.Length)
	if _, err := io.ReadFull(r.cr, body); err != nil {
		return fmt.Errorf("%w: header container: %v", ErrTruncated, err)
	}
	block, err := readBlock(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("header container: %w", err)
	}
	if block.ContentType != ContentFileHeader {
		return fmt.Errorf("expected file header block, found %s", block.ContentType)
	}
	if len(block.Data) < 4 {
		return fmt.Errorf("%w: file header payload", ErrTruncated)
	}
	n := binary.LittleEndian.Uint32(block.Data)
	if int(n) > len(block.Data)-4 {
		return fmt.Errorf("%w: file header text", ErrTruncated)
	}

	header, err := sam.NewHeader(block.Data[4:4+n], nil)
	if err != nil {
		return fmt.Errorf("parse header: %w", err)
	}
	r.header = header
	return nil
}

// Read returns the next record, or io.EOF once the end-of-stream sentinel
// has been seen.
func (r *Reader) Read() (*Record, error) {
	for {
		if r.iter != nil {
			rec, err := r.iter.Next()
			if err == nil {
				return rec, nil
			}
			if err != io.EOF {
				return nil, fmt.Errorf("container %d slice %d: %w", r.containerIndex, r.sliceIndex, err)
			}
			r.iter = nil
		}

		if r.container != nil && r.sliceIndex+1 < r.container.SliceCount() {
			r.sliceIndex++
			if err := r.openSlice(); err != nil {
				return nil, err
			}
			continue
		}
		r.container = nil

		if err := r.nextContainer(); err != nil {
			return nil, err
		}
	}
}

func (r *Reader) nextContainer() error {
	if r.eof {
		return io.EOF
	}

	off := r.cr.n
	h, err := readContainerHeader(r.cr)
	if err != nil {
		return fmt.Errorf("container %d: %w", r.containerIndex+1, err)
	}
	if h.IsEOF() {
		r.eof = true
		return io.EOF
	}

	c, err := readContainer(r.cr, h)
	if err != nil {
		return fmt.Errorf("container %d: %w", r.containerIndex+1, err)
	}

	r.container = c
	r.containerOffset = off
	r.containerIndex++
	r.sliceIndex = 0
	if c.SliceCount() == 0 {
		r.container = nil
		return nil
	}
	return r.openSlice()
}

func (r *Reader) openSlice() error {
	s, err := r.container.Slice(r.sliceIndex)
	if err != nil {
		return fmt.Errorf("container %d: %w", r.containerIndex, err)
	}
	r.iter = newSliceIter(r.container.CompressionHeader, s, r.refs)
	return nil
}

// NextContainer abandons the current record cursor and returns the next
// container together with its stream offset, io.EOF at the sentinel. It
// shares the stream with Read; interleave the two only through Seek.
func (r *Reader) NextContainer() (*Container, int64, error) {
	r.iter = nil
	r.container = nil
	if err := r.nextContainer(); err != nil {
		return nil, 0, err
	}
	// nextContainer opened slice 0; drop that cursor too.
	r.iter = nil
	return r.container, r.containerOffset, nil
}

// Seek repositions the stream at the container starting at offset and
// resumes at the slice with the given landmark index. The source must be an
// io.ReadSeeker.
func (r *Reader) Seek(offset int64, landmark int) error {
	if r.rs == nil {
		return fmt.Errorf("stream does not support seeking")
	}
	if _, err := r.rs.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	r.cr.n = offset
	r.iter = nil
	r.container = nil
	r.eof = false

	h, err := readContainerHeader(r.cr)
	if err != nil {
		return fmt.Errorf("container at %d: %w", offset, err)
	}
	if h.IsEOF() {
		r.eof = true
		return io.EOF
	}
	c, err := readContainer(r.cr, h)
	if err != nil {
		return fmt.Errorf("container at %d: %w", offset, err)
	}
	if landmark < 0 || landmark >= c.SliceCount() {
		return fmt.Errorf("landmark %d out of range (%d slices)", landmark, c.SliceCount())
	}

	r.container = c
	r.containerOffset = offset
	r.sliceIndex = landmark
	return r.openSlice()
}
