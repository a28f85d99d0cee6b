package model

import (
	"bytes"
	"fmt"
	"io"

	"github.com/egonelbre/femtozip/substring"
)

// TripleNibble is the triple-nibble EncodingModel. Literals are coded in
// stream A; a copy is coded as its low length nibble in stream A followed by
// the high length nibble and the four offset nibbles in streams B to F.
type TripleNibble struct {
	strategy Strategy
	state    State

	builder *modelBuilder // only while constructing the model
	tables  codeTables    // set once the model is trained or loaded
	writer  symbolWriter  // only while encoding
}

var _ EncodingModel = (*TripleNibble)(nil)

// Strategy returns the entropy coder used by the model.
func (t *TripleNibble) Strategy() Strategy { return t.strategy }

// State returns the lifecycle state.
func (t *TripleNibble) State() State { return t.state }

// Clone returns a Ready model sharing the trained tables, so encoding can
// run on several goroutines with one instance each.
func (t *TripleNibble) Clone() (*TripleNibble, error) {
	if t.tables == nil {
		return nil, t.stateError("clone")
	}
	return &TripleNibble{strategy: t.strategy, state: Ready, tables: t.tables}, nil
}

func (t *TripleNibble) stateError(op string) error {
	return fmt.Errorf("%w: %s while %v", ErrModelState, op, t.state)
}

// BeginModelConstruction starts training against dictionary. Any previous
// training result is discarded once EndModelConstruction is called.
func (t *TripleNibble) BeginModelConstruction(dictionary []byte) error {
	if t.state != Idle && t.state != Ready {
		return t.stateError("begin model construction")
	}
	t.builder = newModelBuilder(dictionary)
	t.state = ConstructingModel
	return nil
}

// AddDocumentToModel packs document against the dictionary and counts its
// instructions.
func (t *TripleNibble) AddDocumentToModel(document []byte) error {
	if t.state != ConstructingModel {
		return t.stateError("add document")
	}
	return t.builder.addDocument(document)
}

// EndModelConstruction freezes the histograms into code tables.
func (t *TripleNibble) EndModelConstruction() error {
	if t.state != ConstructingModel {
		return t.stateError("end model construction")
	}
	builder := t.builder
	t.builder = nil

	switch t.strategy {
	case Frequency:
		t.tables = builder.frequencyTables()
	case Huffman:
		t.tables = builder.huffmanTables()
	}
	t.state = Ready
	return nil
}

// BeginEncoding starts writing compressed output to w.
func (t *TripleNibble) BeginEncoding(w io.Writer) error {
	if t.state != Ready {
		return t.stateError("begin encoding")
	}
	t.writer = t.tables.newWriter(w)
	t.state = Encoding
	return nil
}

// EncodeLiteral writes a literal byte.
func (t *TripleNibble) EncodeLiteral(b byte) error {
	if t.state != Encoding {
		return t.stateError("encode literal")
	}
	return t.writer.write(streamLiteralLength, int(b))
}

// EncodeSubstring writes a copy of length bytes from offset bytes back.
// Nothing is written when the copy is out of range.
func (t *TripleNibble) EncodeSubstring(offset, length int) error {
	if t.state != Encoding {
		return t.stateError("encode substring")
	}
	if err := validateSubstring(offset, length); err != nil {
		return err
	}
	for stream, symbol := range substringSymbols(offset, length) {
		if err := t.writer.write(stream, symbol); err != nil {
			return err
		}
	}
	return nil
}

// EndEncoding writes the end-of-stream symbol and flushes the output.
func (t *TripleNibble) EndEncoding() error {
	if t.state != Encoding {
		return t.stateError("end encoding")
	}
	writer := t.writer
	t.writer = nil
	t.state = Ready

	if err := writer.write(streamLiteralLength, endOfStreamSymbol); err != nil {
		return err
	}
	return writer.close()
}

// Decode reads the instructions in compressed and sends them to consumer.
// It does not modify the model and may run concurrently with other Decode
// calls. It fails while the model is being retrained.
func (t *TripleNibble) Decode(compressed []byte, consumer substring.Consumer) error {
	tables := t.tables
	if tables == nil || t.state == ConstructingModel {
		return t.stateError("decode")
	}

	r, err := tables.newReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptStream, err)
	}

	for {
		symbol, err := r.read(streamLiteralLength)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptStream, err)
		}

		switch {
		case symbol == endOfStream:
			return consumer.EndEncoding()

		case symbol < literalSymbols:
			if err := consumer.EncodeLiteral(byte(symbol)); err != nil {
				return err
			}

		case symbol < endOfStreamSymbol:
			var symbols [streamCount]int
			symbols[streamLiteralLength] = symbol
			for stream := streamLengthHigh; stream < streamCount; stream++ {
				if symbols[stream], err = r.read(stream); err != nil {
					return fmt.Errorf("%w: %w", ErrCorruptStream, err)
				}
			}
			offset, length := joinSubstring(symbols)
			if err := validateSubstring(offset, length); err != nil {
				return fmt.Errorf("%w: %w", ErrCorruptStream, err)
			}
			if err := consumer.EncodeSubstring(offset, length); err != nil {
				return err
			}

		default:
			return fmt.Errorf("%w: symbol %d", ErrCorruptStream, symbol)
		}
	}
}
