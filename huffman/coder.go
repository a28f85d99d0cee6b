package huffman

import (
	"errors"
	"fmt"
	"io"

	"github.com/egonelbre/femtozip/bitio"
)

// Encoder writes Huffman coded symbols.
type Encoder struct {
	output *bitio.Writer
}

// NewEncoder creates a new Huffman encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{output: bitio.NewWriter(w)}
}

// Encode writes a symbol using the given model.
func (e *Encoder) Encode(symbol int, m *Model) error {
	code, length := m.Code(symbol)
	if length == 0 {
		return fmt.Errorf("%w: %d", ErrNoCode, symbol)
	}
	return e.output.WriteBits(uint64(code), length)
}

// Close pads the output to a byte boundary and flushes it.
func (e *Encoder) Close() error {
	return e.output.Flush()
}

// Decoder reads Huffman coded symbols.
type Decoder struct {
	input *bitio.Reader
}

// NewDecoder creates a new Huffman decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{input: bitio.NewReader(r)}
}

// Decode reads the next symbol using the given model.
// It returns EOF when the model's end-of-stream symbol is decoded.
func (d *Decoder) Decode(m *Model) (int, error) {
	t := m.root
	for {
		index, available, err := d.input.PeekBits(t.bits)
		if err != nil {
			return 0, err
		}
		e := t.entries[index]

		var consumed uint
		switch {
		case e.sub != nil:
			consumed = t.bits
		case e.length > 0:
			consumed = uint(e.length)
		default:
			return 0, ErrCorruptStream
		}
		if available < consumed {
			return 0, ErrCorruptStream
		}
		if err := d.input.Skip(consumed); err != nil {
			if errors.Is(err, bitio.ErrEndOfData) {
				return 0, ErrCorruptStream
			}
			return 0, err
		}

		if e.sub != nil {
			t = e.sub
			continue
		}
		if int(e.symbol) == m.eof {
			return EOF, nil
		}
		return int(e.symbol), nil
	}
}
