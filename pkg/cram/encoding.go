package cram

import (
	"bytes"
	"fmt"
	"io"
)

// EncodingID discriminates the Encoding variants. The enumeration is closed:
// every switch over it handles all members and rejects anything else.
type EncodingID int32

const (
	EncodingNull          EncodingID = 0
	EncodingExternal      EncodingID = 1
	EncodingGolomb        EncodingID = 2
	EncodingHuffman       EncodingID = 3
	EncodingByteArrayLen  EncodingID = 4
	EncodingByteArrayStop EncodingID = 5
	EncodingBeta          EncodingID = 6
	EncodingSubexp        EncodingID = 7
	EncodingGolombRice    EncodingID = 8
	EncodingGamma         EncodingID = 9
)

// Encoding describes how one data series or tag is serialized: a variant id
// plus that variant's parameters. Numeric variants (Beta, Gamma, Golomb,
// GolombRice, Subexp) read bits from the core block; External and the byte
// array variants read whole bytes from an external block selected by content
// id; Huffman reads a canonical prefix code from the core block.
type Encoding struct {
	ID EncodingID

	ContentID int32 // External, ByteArrayStop
	Offset    int32 // Golomb, GolombRice, Beta, Subexp, Gamma
	M         int32 // Golomb
	Log2M     int32 // GolombRice
	Length    int32 // Beta: bit width
	K         int32 // Subexp
	StopByte  byte  // ByteArrayStop

	// Huffman alphabet and per-symbol codeword lengths.
	Alphabet   []int32
	BitLengths []int32

	// ByteArrayLen sub-encodings.
	LenEncoding *Encoding
	ValEncoding *Encoding

	huffman *huffmanCodec // built lazily from Alphabet/BitLengths
}

// externalEncoding returns the conventional encoding for an integer series
// stored as ITF-8 values in the external block contentID.
func externalEncoding(contentID int32) *Encoding {
	return &Encoding{ID: EncodingExternal, ContentID: contentID}
}

func byteArrayStopEncoding(stop byte, contentID int32) *Encoding {
	return &Encoding{ID: EncodingByteArrayStop, StopByte: stop, ContentID: contentID}
}

func byteArrayLenEncoding(lenEnc, valEnc *Encoding) *Encoding {
	return &Encoding{ID: EncodingByteArrayLen, LenEncoding: lenEnc, ValEncoding: valEnc}
}

// appendEncoding serializes e as codec id, parameter byte length, parameters.
func appendEncoding(dst []byte, e *Encoding) ([]byte, error) {
	params, err := e.appendParams(nil)
	if err != nil {
		return nil, err
	}
	dst = appendITF8(dst, int32(e.ID))
	dst = appendITF8(dst, int32(len(params)))
	return append(dst, params...), nil
}

func (e *Encoding) appendParams(dst []byte) ([]byte, error) {
	switch e.ID {
	case EncodingNull:
		return dst, nil
	case EncodingExternal:
		return appendITF8(dst, e.ContentID), nil
	case EncodingGolomb:
		dst = appendITF8(dst, e.Offset)
		return appendITF8(dst, e.M), nil
	case EncodingHuffman:
		dst = appendITF8(dst, int32(len(e.Alphabet)))
		for _, s := range e.Alphabet {
			dst = appendITF8(dst, s)
		}
		dst = appendITF8(dst, int32(len(e.BitLengths)))
		for _, l := range e.BitLengths {
			dst = appendITF8(dst, l)
		}
		return dst, nil
	case EncodingByteArrayLen:
		dst, err := appendEncoding(dst, e.LenEncoding)
		if err != nil {
			return nil, err
		}
		return appendEncoding(dst, e.ValEncoding)
	case EncodingByteArrayStop:
		dst = append(dst, e.StopByte)
		return appendITF8(dst, e.ContentID), nil
	case EncodingBeta:
		dst = appendITF8(dst, e.Offset)
		return appendITF8(dst, e.Length), nil
	case EncodingSubexp:
		dst = appendITF8(dst, e.Offset)
		return appendITF8(dst, e.K), nil
	case EncodingGolombRice:
		dst = appendITF8(dst, e.Offset)
		return appendITF8(dst, e.Log2M), nil
	case EncodingGamma:
		return appendITF8(dst, e.Offset), nil
	default:
		return nil, fmt.Errorf("unknown encoding id %d", e.ID)
	}
}

// readEncoding parses one serialized encoding.
func readEncoding(r *bytes.Reader) (*Encoding, error) {
	id, err := readITF8(r)
	if err != nil {
		return nil, err
	}
	n, err := readITF8(r)
	if err != nil {
		return nil, err
	}
	params := make([]byte, n)
	if _, err := io.ReadFull(r, params); err != nil {
		return nil, fmt.Errorf("%w: encoding parameters: %v", ErrTruncated, err)
	}

	pr := bytes.NewReader(params)
	e := &Encoding{ID: EncodingID(id)}
	switch e.ID {
	case EncodingNull:
	case EncodingExternal:
		if e.ContentID, err = readITF8(pr); err != nil {
			return nil, err
		}
	case EncodingGolomb:
		if e.Offset, err = readITF8(pr); err != nil {
			return nil, err
		}
		if e.M, err = readITF8(pr); err != nil {
			return nil, err
		}
	case EncodingHuffman:
		if e.Alphabet, err = readITF8Array(pr); err != nil {
			return nil, err
		}
		if e.BitLengths, err = readITF8Array(pr); err != nil {
			return nil, err
		}
		if len(e.Alphabet) != len(e.BitLengths) {
			return nil, fmt.Errorf("huffman encoding: %d symbols but %d code lengths",
				len(e.Alphabet), len(e.BitLengths))
		}
	case EncodingByteArrayLen:
		if e.LenEncoding, err = readEncoding(pr); err != nil {
			return nil, err
		}
		if e.ValEncoding, err = readEncoding(pr); err != nil {
			return nil, err
		}
	case EncodingByteArrayStop:
		if e.StopByte, err = readByteOrTruncated(pr); err != nil {
			return nil, err
		}
		if e.ContentID, err = readITF8(pr); err != nil {
			return nil, err
		}
	case EncodingBeta:
		if e.Offset, err = readITF8(pr); err != nil {
			return nil, err
		}
		if e.Length, err = readITF8(pr); err != nil {
			return nil, err
		}
	case EncodingSubexp:
		if e.Offset, err = readITF8(pr); err != nil {
			return nil, err
		}
		if e.K, err = readITF8(pr); err != nil {
			return nil, err
		}
	case EncodingGolombRice:
		if e.Offset, err = readITF8(pr); err != nil {
			return nil, err
		}
		if e.Log2M, err = readITF8(pr); err != nil {
			return nil, err
		}
	case EncodingGamma:
		if e.Offset, err = readITF8(pr); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown encoding id %d", id)
	}
	return e, nil
}

func readITF8Array(r *bytes.Reader) ([]int32, error) {
	n, err := readITF8(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative array length", ErrTruncated)
	}
	vs := make([]int32, n)
	for i := range vs {
		if vs[i], err = readITF8(r); err != nil {
			return nil, err
		}
	}
	return vs, nil
}
