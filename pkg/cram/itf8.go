package cram

import (
	"fmt"
	"io"
)

// ITF-8 and LTF-8 variable-length integers. The number of high bits set in
// the leading byte gives the number of continuation bytes; the remaining
// bits of the leading byte are the most significant value bits. Encoding is
// canonical: the shortest form is always emitted, so re-encoding a decoded
// value reproduces identical bytes.

// appendITF8 appends the canonical ITF-8 encoding of v to dst.
func appendITF8(dst []byte, v int32) []byte {
	u := uint32(v)
	switch {
	case u < 0x80:
		return append(dst, byte(u))
	case u < 0x4000:
		return append(dst, byte(u>>8)|0x80, byte(u))
	case u < 0x200000:
		return append(dst, byte(u>>16)|0xc0, byte(u>>8), byte(u))
	case u < 0x10000000:
		return append(dst, byte(u>>24)|0xe0, byte(u>>16), byte(u>>8), byte(u))
	default:
		// The final byte carries only the low four bits.
		return append(dst, byte(u>>28)|0xf0, byte(u>>20), byte(u>>12), byte(u>>4), byte(u&0x0f))
	}
}

// appendLTF8 appends the canonical LTF-8 encoding of v to dst.
func appendLTF8(dst []byte, v int64) []byte {
	u := uint64(v)
	switch {
	case u < 1<<7:
		return append(dst, byte(u))
	case u < 1<<14:
		return append(dst, byte(u>>8)|0x80, byte(u))
	case u < 1<<21:
		return append(dst, byte(u>>16)|0xc0, byte(u>>8), byte(u))
	case u < 1<<28:
		return append(dst, byte(u>>24)|0xe0, byte(u>>16), byte(u>>8), byte(u))
	case u < 1<<35:
		return append(dst, byte(u>>32)|0xf0, byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	case u < 1<<42:
		return append(dst, byte(u>>40)|0xf8, byte(u>>32), byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	case u < 1<<49:
		return append(dst, byte(u>>48)|0xfc, byte(u>>40), byte(u>>32), byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	case u < 1<<56:
		return append(dst, 0xfe, byte(u>>48), byte(u>>40), byte(u>>32), byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	default:
		return append(dst, 0xff,
			byte(u>>56), byte(u>>48), byte(u>>40), byte(u>>32),
			byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
	}
}

func readByteOrTruncated(r io.ByteReader) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return b, nil
}

// readITF8 decodes one ITF-8 value. A stream ending mid-sequence (including
// before the first byte) is reported as ErrTruncated.
func readITF8(r io.ByteReader) (int32, error) {
	b0, err := readByteOrTruncated(r)
	if err != nil {
		return 0, err
	}

	var n int
	switch {
	case b0 < 0x80:
		return int32(b0), nil
	case b0 < 0xc0:
		n = 1
	case b0 < 0xe0:
		n = 2
	case b0 < 0xf0:
		n = 3
	default:
		n = 4
	}

	var rest [4]byte
	for i := 0; i < n; i++ {
		b, err := readByteOrTruncated(r)
		if err != nil {
			return 0, err
		}
		rest[i] = b
	}

	var u uint32
	switch n {
	case 1:
		u = uint32(b0&0x3f)<<8 | uint32(rest[0])
	case 2:
		u = uint32(b0&0x1f)<<16 | uint32(rest[0])<<8 | uint32(rest[1])
	case 3:
		u = uint32(b0&0x0f)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2])
	case 4:
		// The trailing byte carries only the low four bits.
		u = uint32(b0&0x0f)<<28 | uint32(rest[0])<<20 | uint32(rest[1])<<12 |
			uint32(rest[2])<<4 | uint32(rest[3]&0x0f)
	}

	return int32(u), nil
}

// readLTF8 decodes one LTF-8 value, failing with ErrTruncated if the stream
// ends mid-sequence.
func readLTF8(r io.ByteReader) (int64, error) {
	b0, err := readByteOrTruncated(r)
	if err != nil {
		return 0, err
	}

	var n int
	switch {
	case b0 < 0x80:
		return int64(b0), nil
	case b0 < 0xc0:
		n = 1
	case b0 < 0xe0:
		n = 2
	case b0 < 0xf0:
		n = 3
	case b0 < 0xf8:
		n = 4
	case b0 < 0xfc:
		n = 5
	case b0 < 0xfe:
		n = 6
	case b0 < 0xff:
		n = 7
	default:
		n = 8
	}

	u := uint64(b0)
	if n == 8 {
		u = 0
	}
	for i := 0; i < n; i++ {
		b, err := readByteOrTruncated(r)
		if err != nil {
			return 0, err
		}
		u = u<<8 | uint64(b)
	}

	if n < 8 {
		// Mask off the length prefix bits of the leading byte.
		u &= 1<<(7*uint(n)+7) - 1
	}

	return int64(u), nil
}
