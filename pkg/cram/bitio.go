package cram

import "fmt"

// bitReader reads MSB-first bits from a decompressed core block.
type bitReader struct {
	data []byte
	pos  int // next byte
	cur  byte
	rem  uint // bits remaining in cur
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (r *bitReader) readBit() (uint32, error) {
	if r.rem == 0 {
		if r.pos >= len(r.data) {
			return 0, fmt.Errorf("%w: core block exhausted", ErrTruncated)
		}
		r.cur = r.data[r.pos]
		r.pos++
		r.rem = 8
	}
	r.rem--
	return uint32(r.cur>>r.rem) & 1, nil
}

// readBits reads n bits (0 <= n <= 32) as a big-endian unsigned value.
func (r *bitReader) readBits(n int) (uint32, error) {
	var v uint32
	for i := 0; i < n; i++ {
		b, err := r.readBit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | b
	}
	return v, nil
}

// readUnary counts set bits up to the terminating zero bit.
func (r *bitReader) readUnary() (uint32, error) {
	var n uint32
	for {
		b, err := r.readBit()
		if err != nil {
			return 0, err
		}
		if b == 0 {
			return n, nil
		}
		n++
	}
}

// bitWriter accumulates MSB-first bits into a byte buffer.
type bitWriter struct {
	buf []byte
	cur byte
	n   uint // bits pending in cur
}

func (w *bitWriter) writeBit(b uint32) {
	w.cur = w.cur<<1 | byte(b&1)
	w.n++
	if w.n == 8 {
		w.buf = append(w.buf, w.cur)
		w.cur, w.n = 0, 0
	}
}

// writeBits writes the low n bits of v, most significant first.
func (w *bitWriter) writeBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.writeBit(v >> uint(i))
	}
}

func (w *bitWriter) writeUnary(n uint32) {
	for i := uint32(0); i < n; i++ {
		w.writeBit(1)
	}
	w.writeBit(0)
}

// finish pads the final partial byte with zero bits and returns the buffer.
func (w *bitWriter) finish() []byte {
	if w.n > 0 {
		w.buf = append(w.buf, w.cur<<(8-w.n))
		w.cur, w.n = 0, 0
	}
	return w.buf
}
