package cram

import (
	"fmt"
	"sort"
)

// huffmanCodec holds a canonical prefix code built from (symbol, codeword
// length) pairs. Codes are assigned in (length, symbol) order, so the table
// itself fully determines the codewords.
type huffmanCodec struct {
	symbols []int32
	lengths []int32
	codes   []uint32
	index   map[int32]int // symbol -> table position
}

func newHuffmanCodec(alphabet, bitLengths []int32) (*huffmanCodec, error) {
	if len(alphabet) == 0 {
		return nil, fmt.Errorf("huffman: empty alphabet")
	}
	if len(alphabet) != len(bitLengths) {
		return nil, fmt.Errorf("huffman: %d symbols but %d code lengths", len(alphabet), len(bitLengths))
	}

	c := &huffmanCodec{
		symbols: make([]int32, len(alphabet)),
		lengths: make([]int32, len(alphabet)),
		codes:   make([]uint32, len(alphabet)),
		index:   make(map[int32]int, len(alphabet)),
	}
	copy(c.symbols, alphabet)
	copy(c.lengths, bitLengths)

	sort.Sort(byLengthThenSymbol{c})

	// A single zero-length codeword is the degenerate "constant series"
	// case: decoding consumes no bits.
	if len(c.symbols) == 1 && c.lengths[0] == 0 {
		c.index[c.symbols[0]] = 0
		return c, nil
	}

	var code uint32
	for i := range c.symbols {
		if c.lengths[i] <= 0 || c.lengths[i] > 31 {
			return nil, fmt.Errorf("huffman: invalid code length %d for symbol %d", c.lengths[i], c.symbols[i])
		}
		if i > 0 {
			code = (code + 1) << uint(c.lengths[i]-c.lengths[i-1])
		}
		c.codes[i] = code
		c.index[c.symbols[i]] = i
	}
	return c, nil
}

type byLengthThenSymbol struct{ c *huffmanCodec }

func (s byLengthThenSymbol) Len() int { return len(s.c.symbols) }
func (s byLengthThenSymbol) Less(i, j int) bool {
	if s.c.lengths[i] != s.c.lengths[j] {
		return s.c.lengths[i] < s.c.lengths[j]
	}
	return s.c.symbols[i] < s.c.symbols[j]
}
func (s byLengthThenSymbol) Swap(i, j int) {
	s.c.symbols[i], s.c.symbols[j] = s.c.symbols[j], s.c.symbols[i]
	s.c.lengths[i], s.c.lengths[j] = s.c.lengths[j], s.c.lengths[i]
	s.c.codes[i], s.c.codes[j] = s.c.codes[j], s.c.codes[i]
}

func (c *huffmanCodec) decode(br *bitReader) (int32, error) {
	if len(c.symbols) == 1 && c.lengths[0] == 0 {
		return c.symbols[0], nil
	}

	var (
		code uint32
		n    int32
	)
	for i := 0; i < len(c.symbols); i++ {
		for n < c.lengths[i] {
			b, err := br.readBit()
			if err != nil {
				return 0, err
			}
			code = code<<1 | b
			n++
		}
		if code == c.codes[i] {
			return c.symbols[i], nil
		}
	}
	return 0, fmt.Errorf("huffman: no symbol for code %b (%d bits)", code, n)
}

func (c *huffmanCodec) encode(bw *bitWriter, v int32) error {
	i, ok := c.index[v]
	if !ok {
		return fmt.Errorf("huffman: symbol %d not in alphabet", v)
	}
	if c.lengths[i] > 0 {
		bw.writeBits(c.codes[i], int(c.lengths[i]))
	}
	return nil
}
