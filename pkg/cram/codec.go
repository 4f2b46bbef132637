package cram

import (
	"bytes"
	"fmt"
	"io"
)

// blockReaders bundles the cursors an encoding reads from: the core bit
// stream and the external byte blocks keyed by content id.
type blockReaders struct {
	core     *bitReader
	external map[int32]*bytes.Reader
}

func (s *blockReaders) externalReader(id int32) (*bytes.Reader, error) {
	r, ok := s.external[id]
	if !ok {
		return nil, fmt.Errorf("external block %d not present in slice", id)
	}
	return r, nil
}

// blockWriters is the write-side counterpart; external buffers are created
// on first use so only referenced blocks are emitted.
type blockWriters struct {
	core     *bitWriter
	external map[int32]*bytes.Buffer
}

func newBlockWriters() *blockWriters {
	return &blockWriters{core: &bitWriter{}, external: make(map[int32]*bytes.Buffer)}
}

func (s *blockWriters) externalBuffer(id int32) *bytes.Buffer {
	b, ok := s.external[id]
	if !ok {
		b = &bytes.Buffer{}
		s.external[id] = b
	}
	return b
}

func (e *Encoding) codec() (*huffmanCodec, error) {
	if e.huffman == nil {
		c, err := newHuffmanCodec(e.Alphabet, e.BitLengths)
		if err != nil {
			return nil, err
		}
		e.huffman = c
	}
	return e.huffman, nil
}

// decodeInt reads one integer value.
func (e *Encoding) decodeInt(s *blockReaders) (int32, error) {
	switch e.ID {
	case EncodingExternal:
		r, err := s.externalReader(e.ContentID)
		if err != nil {
			return 0, err
		}
		return readITF8(r)
	case EncodingHuffman:
		c, err := e.codec()
		if err != nil {
			return 0, err
		}
		return c.decode(s.core)
	case EncodingBeta:
		v, err := s.core.readBits(int(e.Length))
		if err != nil {
			return 0, err
		}
		return int32(v) - e.Offset, nil
	case EncodingGamma:
		n := 1
		for {
			b, err := s.core.readBit()
			if err != nil {
				return 0, err
			}
			if b == 1 {
				break
			}
			n++
		}
		v := uint32(1)
		for i := 1; i < n; i++ {
			b, err := s.core.readBit()
			if err != nil {
				return 0, err
			}
			v = v<<1 | b
		}
		return int32(v) - e.Offset, nil
	case EncodingGolomb:
		return e.decodeGolomb(s, e.M)
	case EncodingGolombRice:
		return e.decodeGolomb(s, 1<<uint(e.Log2M))
	case EncodingSubexp:
		u, err := s.core.readUnary()
		if err != nil {
			return 0, err
		}
		var n uint32
		if u == 0 {
			if n, err = s.core.readBits(int(e.K)); err != nil {
				return 0, err
			}
		} else {
			b := int(u) + int(e.K) - 1
			low, err := s.core.readBits(b)
			if err != nil {
				return 0, err
			}
			n = 1<<uint(b) | low
		}
		return int32(n) - e.Offset, nil
	default:
		return 0, fmt.Errorf("encoding %d cannot produce an integer", e.ID)
	}
}

func (e *Encoding) decodeGolomb(s *blockReaders, m int32) (int32, error) {
	if m <= 0 {
		return 0, fmt.Errorf("golomb: invalid modulus %d", m)
	}
	q, err := s.core.readUnary()
	if err != nil {
		return 0, err
	}

	b := 0
	for int32(1)<<uint(b) < m {
		b++
	}
	threshold := int32(1)<<uint(b) - m

	var r int32
	if b > 0 {
		low, err := s.core.readBits(b - 1)
		if err != nil {
			return 0, err
		}
		r = int32(low)
		if r >= threshold {
			bit, err := s.core.readBit()
			if err != nil {
				return 0, err
			}
			r = r<<1 | int32(bit)
			r -= threshold
		}
	}

	return int32(q)*m + r - e.Offset, nil
}

// encodeInt writes one integer value.
func (e *Encoding) encodeInt(s *blockWriters, v int32) error {
	switch e.ID {
	case EncodingExternal:
		buf := s.externalBuffer(e.ContentID)
		buf.Write(appendITF8(nil, v))
		return nil
	case EncodingHuffman:
		c, err := e.codec()
		if err != nil {
			return err
		}
		return c.encode(s.core, v)
	case EncodingBeta:
		n := v + e.Offset
		if n < 0 || (e.Length < 32 && n >= 1<<uint(e.Length)) {
			return fmt.Errorf("beta: value %d out of range for %d bits", v, e.Length)
		}
		s.core.writeBits(uint32(n), int(e.Length))
		return nil
	case EncodingGamma:
		n := v + e.Offset
		if n < 1 {
			return fmt.Errorf("gamma: value %d not positive after offset", v)
		}
		width := 0
		for int64(1)<<uint(width+1) <= int64(n) {
			width++
		}
		for i := 0; i < width; i++ {
			s.core.writeBit(0)
		}
		s.core.writeBits(uint32(n), width+1)
		return nil
	case EncodingGolomb:
		return e.encodeGolomb(s, e.M, v)
	case EncodingGolombRice:
		return e.encodeGolomb(s, 1<<uint(e.Log2M), v)
	case EncodingSubexp:
		n := v + e.Offset
		if n < 0 {
			return fmt.Errorf("subexp: value %d negative after offset", v)
		}
		u, b := 0, int(e.K)
		for n>>uint(b) != 0 {
			b++
		}
		if b > int(e.K) {
			b--
			u = b - int(e.K) + 1
		}
		s.core.writeUnary(uint32(u))
		if u == 0 {
			s.core.writeBits(uint32(n), int(e.K))
		} else {
			s.core.writeBits(uint32(n)&(1<<uint(b)-1), b)
		}
		return nil
	default:
		return fmt.Errorf("encoding %d cannot store an integer", e.ID)
	}
}

func (e *Encoding) encodeGolomb(s *blockWriters, m, v int32) error {
	if m <= 0 {
		return fmt.Errorf("golomb: invalid modulus %d", m)
	}
	n := v + e.Offset
	if n < 0 {
		return fmt.Errorf("golomb: value %d negative after offset", v)
	}
	q, r := n/m, n%m

	b := 0
	for int32(1)<<uint(b) < m {
		b++
	}
	threshold := int32(1)<<uint(b) - m

	s.core.writeUnary(uint32(q))
	if b == 0 {
		return nil
	}
	if r < threshold {
		s.core.writeBits(uint32(r), b-1)
	} else {
		s.core.writeBits(uint32(r+threshold), b)
	}
	return nil
}

// decodeByte reads one byte-valued symbol.
func (e *Encoding) decodeByte(s *blockReaders) (byte, error) {
	switch e.ID {
	case EncodingExternal:
		r, err := s.externalReader(e.ContentID)
		if err != nil {
			return 0, err
		}
		return readByteOrTruncated(r)
	default:
		v, err := e.decodeInt(s)
		if err != nil {
			return 0, err
		}
		return byte(v), nil
	}
}

func (e *Encoding) encodeByte(s *blockWriters, b byte) error {
	switch e.ID {
	case EncodingExternal:
		s.externalBuffer(e.ContentID).WriteByte(b)
		return nil
	default:
		return e.encodeInt(s, int32(b))
	}
}

// decodeByteArray reads a self-delimiting byte array (ByteArrayLen carries
// its own length; ByteArrayStop reads to the stop byte, excluded from the
// result).
func (e *Encoding) decodeByteArray(s *blockReaders) ([]byte, error) {
	switch e.ID {
	case EncodingByteArrayLen:
		n, err := e.LenEncoding.decodeInt(s)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("byte array: negative length %d", n)
		}
		return e.ValEncoding.decodeByteArrayN(s, int(n))
	case EncodingByteArrayStop:
		r, err := s.externalReader(e.ContentID)
		if err != nil {
			return nil, err
		}
		var out []byte
		for {
			b, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("%w: unterminated byte array in block %d", ErrTruncated, e.ContentID)
			}
			if b == e.StopByte {
				return out, nil
			}
			out = append(out, b)
		}
	default:
		return nil, fmt.Errorf("encoding %d is not self-delimiting", e.ID)
	}
}

// decodeByteArrayN reads exactly n bytes through this encoding.
func (e *Encoding) decodeByteArrayN(s *blockReaders, n int) ([]byte, error) {
	switch e.ID {
	case EncodingExternal:
		r, err := s.externalReader(e.ContentID)
		if err != nil {
			return nil, err
		}
		out := make([]byte, n)
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, fmt.Errorf("%w: external block %d exhausted: %v", ErrTruncated, e.ContentID, err)
		}
		return out, nil
	case EncodingByteArrayLen, EncodingByteArrayStop:
		return e.decodeByteArray(s)
	default:
		out := make([]byte, n)
		for i := range out {
			b, err := e.decodeByte(s)
			if err != nil {
				return nil, err
			}
			out[i] = b
		}
		return out, nil
	}
}

// encodeByteArray writes a self-delimiting byte array.
func (e *Encoding) encodeByteArray(s *blockWriters, data []byte) error {
	switch e.ID {
	case EncodingByteArrayLen:
		if err := e.LenEncoding.encodeInt(s, int32(len(data))); err != nil {
			return err
		}
		return e.ValEncoding.encodeByteArrayN(s, data)
	case EncodingByteArrayStop:
		buf := s.externalBuffer(e.ContentID)
		buf.Write(data)
		buf.WriteByte(e.StopByte)
		return nil
	default:
		return fmt.Errorf("encoding %d is not self-delimiting", e.ID)
	}
}

// encodeByteArrayN writes bytes whose count the decoder knows from context.
func (e *Encoding) encodeByteArrayN(s *blockWriters, data []byte) error {
	switch e.ID {
	case EncodingExternal:
		s.externalBuffer(e.ContentID).Write(data)
		return nil
	case EncodingByteArrayLen, EncodingByteArrayStop:
		return e.encodeByteArray(s, data)
	default:
		for _, b := range data {
			if err := e.encodeByte(s, b); err != nil {
				return err
			}
		}
		return nil
	}
}
