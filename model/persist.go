package model

import (
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// formatVersion is the version of the persisted model message.
const formatVersion = 1

const (
	fieldVersion  protowire.Number = 1
	fieldStrategy protowire.Number = 2
	fieldTables   protowire.Number = 3 // streams A to F use fields 3 to 8
)

// Save writes the trained code tables to w.
func (t *TripleNibble) Save(w io.Writer) error {
	if t.state != Ready {
		return t.stateError("save")
	}
	tables, err := t.tables.marshal()
	if err != nil {
		return err
	}

	var b []byte
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, formatVersion)
	b = protowire.AppendTag(b, fieldStrategy, protowire.BytesType)
	b = protowire.AppendString(b, t.strategy.String())
	for i, table := range tables {
		b = protowire.AppendTag(b, fieldTables+protowire.Number(i), protowire.BytesType)
		b = protowire.AppendBytes(b, table)
	}

	_, err = w.Write(b)
	return err
}

// Load reads code tables written by Save, replacing any trained tables.
// The persisted strategy must match the model's strategy.
func (t *TripleNibble) Load(r io.Reader) error {
	if t.state != Idle && t.state != Ready {
		return t.stateError("load")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	strategy, raw, err := parseModel(data)
	if err != nil {
		return err
	}
	if strategy != t.strategy {
		return fmt.Errorf("%w: model uses %v, expected %v", ErrCorruptStream, strategy, t.strategy)
	}

	tables, err := unmarshalTables(strategy, raw)
	if err != nil {
		return err
	}
	t.tables = tables
	t.state = Ready
	return nil
}

// LoadModel reads a model written by Save, using whichever strategy it was
// trained with.
func LoadModel(r io.Reader) (*TripleNibble, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	strategy, raw, err := parseModel(data)
	if err != nil {
		return nil, err
	}
	tables, err := unmarshalTables(strategy, raw)
	if err != nil {
		return nil, err
	}
	return &TripleNibble{strategy: strategy, state: Ready, tables: tables}, nil
}

func parseModel(b []byte) (Strategy, [streamCount][]byte, error) {
	var (
		version  uint64
		name     string
		tables   [streamCount][]byte
		seen     [streamCount]bool
		strategy Strategy
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, tables, fmt.Errorf("%w: %w", ErrCorruptStream, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			version, n = protowire.ConsumeVarint(b)
		case num == fieldStrategy && typ == protowire.BytesType:
			name, n = protowire.ConsumeString(b)
		case num >= fieldTables && num < fieldTables+streamCount && typ == protowire.BytesType:
			stream := int(num - fieldTables)
			tables[stream], n = protowire.ConsumeBytes(b)
			seen[stream] = true
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return 0, tables, fmt.Errorf("%w: %w", ErrCorruptStream, protowire.ParseError(n))
		}
		b = b[n:]
	}

	if version != formatVersion {
		return 0, tables, fmt.Errorf("%w: unsupported model version %d", ErrCorruptStream, version)
	}
	strategy, err := ParseStrategy(name)
	if err != nil {
		return 0, tables, fmt.Errorf("%w: %w", ErrCorruptStream, err)
	}
	for stream, ok := range seen {
		if !ok {
			return 0, tables, fmt.Errorf("%w: missing table for stream %d", ErrCorruptStream, stream)
		}
	}
	return strategy, tables, nil
}

func unmarshalTables(strategy Strategy, raw [streamCount][]byte) (codeTables, error) {
	var (
		tables codeTables
		err    error
	)
	switch strategy {
	case Frequency:
		tables, err = unmarshalFrequencyTables(raw)
	case Huffman:
		tables, err = unmarshalHuffmanTables(raw)
	default:
		err = fmt.Errorf("unknown strategy %v", strategy)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptStream, err)
	}
	return tables, nil
}

// checkTable verifies a loaded table has the shape of its stream and codes
// every symbol a valid instruction can produce.
func checkTable(stream, symbolCount, eof int, coded func(symbol int) bool) error {
	if symbolCount != streamSizes[stream] {
		return fmt.Errorf("stream %d has %d symbols, expected %d", stream, symbolCount, streamSizes[stream])
	}
	want := -1
	if stream == streamLiteralLength {
		want = endOfStreamSymbol
	}
	if eof != want {
		return fmt.Errorf("stream %d has end symbol %d, expected %d", stream, eof, want)
	}
	for symbol := 0; symbol < symbolCount; symbol++ {
		if !coded(symbol) {
			return fmt.Errorf("stream %d has no code for symbol %d", stream, symbol)
		}
	}
	return nil
}
