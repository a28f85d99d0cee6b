package huffman

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldSymbolCount protowire.Number = 1
	fieldLengths     protowire.Number = 2
	fieldEOF         protowire.Number = 3
)

// MarshalBinary encodes the code as a protobuf message holding the symbol
// count, the code lengths and the end-of-stream symbol plus one. Canonical
// codes are fully determined by their lengths.
func (m *Model) MarshalBinary() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, fieldSymbolCount, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(len(m.lengths)))
	b = protowire.AppendTag(b, fieldLengths, protowire.BytesType)
	b = protowire.AppendBytes(b, m.lengths)
	b = protowire.AppendTag(b, fieldEOF, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.eof+1))
	return b, nil
}

// UnmarshalModel decodes a code written by MarshalBinary.
func UnmarshalModel(b []byte) (*Model, error) {
	var (
		symbolCount uint64
		lengths     []byte
		eof         uint64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("huffman: model: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldSymbolCount && typ == protowire.VarintType:
			symbolCount, n = protowire.ConsumeVarint(b)
		case num == fieldEOF && typ == protowire.VarintType:
			eof, n = protowire.ConsumeVarint(b)
		case num == fieldLengths && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			lengths = append([]byte(nil), v...)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("huffman: model: %w", protowire.ParseError(n))
		}
		b = b[n:]
	}

	if uint64(len(lengths)) != symbolCount {
		return nil, fmt.Errorf("huffman: model has %d lengths, header says %d", len(lengths), symbolCount)
	}
	if eof > symbolCount {
		return nil, fmt.Errorf("huffman: eof symbol %d out of range", int64(eof)-1)
	}
	return ModelFromLengths(lengths, int(eof)-1)
}
