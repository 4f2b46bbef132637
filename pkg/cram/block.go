package cram

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// ContentType tags what a block payload holds.
type ContentType byte

const (
	ContentFileHeader        ContentType = 0
	ContentCompressionHeader ContentType = 1
	ContentSliceHeader       ContentType = 2
	ContentExternalData      ContentType = 4
	ContentCoreData          ContentType = 5
)

func (t ContentType) String() string {
	switch t {
	case ContentFileHeader:
		return "file header"
	case ContentCompressionHeader:
		return "compression header"
	case ContentSliceHeader:
		return "slice header"
	case ContentExternalData:
		return "external data"
	case ContentCoreData:
		return "core data"
	default:
		return fmt.Sprintf("content(%d)", byte(t))
	}
}

// Block is the atomic compressed unit of a container: a small header, a
// payload compressed with an interchangeable method, and a CRC32 over the
// raw (decompressed) payload.
type Block struct {
	ContentType ContentType
	Method      CompressionMethod
	ContentID   int32
	Data        []byte // decompressed payload
}

// encode compresses the payload and appends the serialized block to dst.
func (b *Block) encode(dst []byte) ([]byte, error) {
	compressed, err := compress(b.Data, b.Method)
	if err != nil {
		return nil, err
	}

	dst = append(dst, byte(b.ContentType), byte(b.Method))
	dst = appendITF8(dst, b.ContentID)
	dst = appendITF8(dst, int32(len(compressed)))
	dst = appendITF8(dst, int32(len(b.Data)))
	dst = append(dst, compressed...)
	return binary.LittleEndian.AppendUint32(dst, crc32.ChecksumIEEE(b.Data)), nil
}

// readBlock decodes one block, decompressing its payload and verifying the
// stored checksum against the decompressed bytes.
func readBlock(r *bytes.Reader) (*Block, error) {
	contentType, err := readByteOrTruncated(r)
	if err != nil {
		return nil, fmt.Errorf("block header: %w", err)
	}
	method, err := readByteOrTruncated(r)
	if err != nil {
		return nil, fmt.Errorf("block header: %w", err)
	}
	contentID, err := readITF8(r)
	if err != nil {
		return nil, fmt.Errorf("block content id: %w", err)
	}
	compressedSize, err := readITF8(r)
	if err != nil {
		return nil, fmt.Errorf("block compressed size: %w", err)
	}
	rawSize, err := readITF8(r)
	if err != nil {
		return nil, fmt.Errorf("block raw size: %w", err)
	}
	if compressedSize < 0 || rawSize < 0 {
		return nil, fmt.Errorf("%w: negative block size", ErrTruncated)
	}

	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("%w: block payload: %v", ErrTruncated, err)
	}

	var storedCRC [4]byte
	if _, err := io.ReadFull(r, storedCRC[:]); err != nil {
		return nil, fmt.Errorf("%w: block checksum: %v", ErrTruncated, err)
	}

	raw, err := decompress(compressed, CompressionMethod(method), int(rawSize))
	if err != nil {
		return nil, err
	}

	if got, want := crc32.ChecksumIEEE(raw), binary.LittleEndian.Uint32(storedCRC[:]); got != want {
		return nil, fmt.Errorf("%w: content id %d: got %08x, want %08x",
			ErrInvalidBlockCRC, contentID, got, want)
	}

	return &Block{
		ContentType: ContentType(contentType),
		Method:      CompressionMethod(method),
		ContentID:   contentID,
		Data:        raw,
	}, nil
}
