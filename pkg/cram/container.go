package cram

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// ContainerHeader is the envelope around one compression header and the
// slices that share it.
type ContainerHeader struct {
	Length        int32 // byte length of all blocks in the container
	ReferenceID   int32 // -1 unmapped, -2 multi-reference
	Start         int32
	Span          int32
	RecordCount   int32
	RecordCounter int64
	BaseCount     int64
	BlockCount    int32

	// Landmarks holds, per slice, the byte offset of its header block
	// relative to the first byte after the compression header block.
	Landmarks []int32
}

// IsEOF reports whether this header is the terminal end-of-stream sentinel.
func (h *ContainerHeader) IsEOF() bool {
	return h.Length == 0 && h.BlockCount == 0
}

func (h *ContainerHeader) marshal() []byte {
	var body []byte
	body = appendITF8(body, h.ReferenceID)
	body = appendITF8(body, h.Start)
	body = appendITF8(body, h.Span)
	body = appendITF8(body, h.RecordCount)
	body = appendLTF8(body, h.RecordCounter)
	body = appendLTF8(body, h.BaseCount)
	body = appendITF8(body, h.BlockCount)
	body = appendITF8(body, int32(len(h.Landmarks)))
	for _, l := range h.Landmarks {
		body = appendITF8(body, l)
	}

	out := binary.LittleEndian.AppendUint32(nil, uint32(h.Length))
	out = append(out, body...)
	return binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(out))
}

// crcByteReader feeds every byte it reads into a running CRC32.
type crcByteReader struct {
	r   io.Reader
	crc uint32
}

func (c *crcByteReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(c.r, b[:]); err != nil {
		return 0, err
	}
	c.crc = crc32.Update(c.crc, crc32.IEEETable, b[:])
	return b[0], nil
}

// readContainerHeader reads and checksums one container header. Any end of
// stream here, even at the first byte, is truncation: a well-formed stream
// ends with the terminal sentinel, not silence.
func readContainerHeader(r io.Reader) (*ContainerHeader, error) {
	cr := &crcByteReader{r: r}

	var lenBuf [4]byte
	for i := range lenBuf {
		b, err := cr.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: container length: %v", ErrTruncated, err)
		}
		lenBuf[i] = b
	}

	h := &ContainerHeader{Length: int32(binary.LittleEndian.Uint32(lenBuf[:]))}
	var err error
	if h.ReferenceID, err = readITF8(cr); err != nil {
		return nil, err
	}
	if h.Start, err = readITF8(cr); err != nil {
		return nil, err
	}
	if h.Span, err = readITF8(cr); err != nil {
		return nil, err
	}
	if h.RecordCount, err = readITF8(cr); err != nil {
		return nil, err
	}
	if h.RecordCounter, err = readLTF8(cr); err != nil {
		return nil, err
	}
	if h.BaseCount, err = readLTF8(cr); err != nil {
		return nil, err
	}
	if h.BlockCount, err = readITF8(cr); err != nil {
		return nil, err
	}
	landmarkCount, err := readITF8(cr)
	if err != nil {
		return nil, err
	}
	if landmarkCount < 0 {
		return nil, fmt.Errorf("%w: negative landmark count", ErrTruncated)
	}
	h.Landmarks = make([]int32, landmarkCount)
	for i := range h.Landmarks {
		if h.Landmarks[i], err = readITF8(cr); err != nil {
			return nil, err
		}
	}

	want := cr.crc
	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: container checksum: %v", ErrTruncated, err)
	}
	if got := binary.LittleEndian.Uint32(crcBuf[:]); got != want {
		return nil, fmt.Errorf("%w: container header: got %08x, want %08x", ErrInvalidBlockCRC, got, want)
	}

	return h, nil
}

// Container is one framing unit: its header, the shared compression header,
// and the raw bytes of its slices, parsed lazily per landmark so a slice
// can be decoded without touching its predecessors.
type Container struct {
	Header            ContainerHeader
	CompressionHeader *CompressionHeader

	sliceData []byte // all bytes after the compression header block
}

// readContainer reads a full container. The caller has already consumed the
// header. Returns the parsed compression header and the slice region.
func readContainer(r io.Reader, h *ContainerHeader) (*Container, error) {
	data := make([]byte, h.Length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: container payload: %v", ErrTruncated, err)
	}

	br := bytes.NewReader(data)
	chBlock, err := readBlock(br)
	if err != nil {
		return nil, fmt.Errorf("compression header block: %w", err)
	}
	if chBlock.ContentType != ContentCompressionHeader {
		return nil, fmt.Errorf("expected compression header block, found %s", chBlock.ContentType)
	}
	ch, err := parseCompressionHeader(chBlock.Data)
	if err != nil {
		return nil, fmt.Errorf("compression header: %w", err)
	}

	consumed := int(int64(len(data)) - int64(br.Len()))
	return &Container{
		Header:            *h,
		CompressionHeader: ch,
		sliceData:         data[consumed:],
	}, nil
}

// SliceCount returns the number of slices in the container.
func (c *Container) SliceCount() int {
	return len(c.Header.Landmarks)
}

// Slice parses slice i at its landmark offset.
func (c *Container) Slice(i int) (*Slice, error) {
	if i < 0 || i >= len(c.Header.Landmarks) {
		return nil, fmt.Errorf("slice %d out of range (%d slices)", i, len(c.Header.Landmarks))
	}
	off := int(c.Header.Landmarks[i])
	if off < 0 || off > len(c.sliceData) {
		return nil, fmt.Errorf("%w: landmark %d outside container payload", ErrTruncated, off)
	}
	s, err := readSlice(bytes.NewReader(c.sliceData[off:]))
	if err != nil {
		return nil, fmt.Errorf("slice %d: %w", i, err)
	}
	return s, nil
}

// writeEOFContainer emits the terminal empty container marking end of
// stream.
func writeEOFContainer(w io.Writer) error {
	h := ContainerHeader{ReferenceID: -1}
	_, err := w.Write(h.marshal())
	return err
}
