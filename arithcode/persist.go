package arithcode

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the persisted frequency table message.
const (
	fieldSymbolCount protowire.Number = 1
	fieldCounts      protowire.Number = 2
	fieldEOF         protowire.Number = 3
)

// MarshalBinary encodes the table as a protobuf message holding the symbol
// count, the packed final counts and the end-of-stream symbol plus one.
func (ft *FrequencyTable) MarshalBinary() ([]byte, error) {
	var packed []byte
	for _, c := range ft.counts {
		packed = protowire.AppendVarint(packed, c)
	}

	var b []byte
	b = protowire.AppendTag(b, fieldSymbolCount, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(len(ft.counts)))
	b = protowire.AppendTag(b, fieldCounts, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	b = protowire.AppendTag(b, fieldEOF, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ft.eof+1))
	return b, nil
}

// UnmarshalFrequencyTable decodes a table written by MarshalBinary.
func UnmarshalFrequencyTable(b []byte) (*FrequencyTable, error) {
	var (
		symbolCount uint64
		counts      []uint64
		eof         uint64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("arithcode: frequency table: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldSymbolCount && typ == protowire.VarintType:
			symbolCount, n = protowire.ConsumeVarint(b)
		case num == fieldEOF && typ == protowire.VarintType:
			eof, n = protowire.ConsumeVarint(b)
		case num == fieldCounts && typ == protowire.BytesType:
			var packed []byte
			packed, n = protowire.ConsumeBytes(b)
			for n >= 0 && len(packed) > 0 {
				c, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, fmt.Errorf("arithcode: frequency table counts: %w", protowire.ParseError(m))
				}
				counts = append(counts, c)
				packed = packed[m:]
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("arithcode: frequency table: %w", protowire.ParseError(n))
		}
		b = b[n:]
	}

	if uint64(len(counts)) != symbolCount {
		return nil, fmt.Errorf("arithcode: frequency table has %d counts, header says %d", len(counts), symbolCount)
	}
	if eof > symbolCount {
		return nil, fmt.Errorf("arithcode: eof symbol %d out of range", int64(eof)-1)
	}
	return FrequencyTableFromCounts(counts, int(eof)-1)
}
