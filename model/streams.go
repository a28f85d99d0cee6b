package model

import (
	"io"

	"github.com/egonelbre/femtozip/arithcode"
	"github.com/egonelbre/femtozip/huffman"
)

// codeTables holds the six frozen stream models of one strategy.
type codeTables interface {
	newWriter(w io.Writer) symbolWriter
	newReader(r io.Reader) (symbolReader, error)
	marshal() ([streamCount][]byte, error)
}

type symbolWriter interface {
	write(stream, symbol int) error
	close() error
}

// symbolReader returns endOfStream once stream A's end symbol is read.
type symbolReader interface {
	read(stream int) (int, error)
}

type frequencyTables [streamCount]*arithcode.FrequencyTable

func (t *frequencyTables) newWriter(w io.Writer) symbolWriter {
	return &arithWriter{tables: t, enc: arithcode.NewEncoder(w)}
}

func (t *frequencyTables) newReader(r io.Reader) (symbolReader, error) {
	dec, err := arithcode.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	return &arithReader{tables: t, dec: dec}, nil
}

func (t *frequencyTables) marshal() ([streamCount][]byte, error) {
	var out [streamCount][]byte
	for i, table := range t {
		b, err := table.MarshalBinary()
		if err != nil {
			return out, err
		}
		out[i] = b
	}
	return out, nil
}

func unmarshalFrequencyTables(data [streamCount][]byte) (*frequencyTables, error) {
	var t frequencyTables
	for i, b := range data {
		table, err := arithcode.UnmarshalFrequencyTable(b)
		if err != nil {
			return nil, err
		}
		if err := checkTable(i, table.SymbolCount(), table.EOFSymbol(), func(symbol int) bool {
			low, high := table.Freq(symbol)
			return low < high
		}); err != nil {
			return nil, err
		}
		t[i] = table
	}
	return &t, nil
}

type arithWriter struct {
	tables *frequencyTables
	enc    *arithcode.Encoder
}

func (w *arithWriter) write(stream, symbol int) error {
	return w.enc.Encode(symbol, w.tables[stream])
}

func (w *arithWriter) close() error { return w.enc.Close() }

type arithReader struct {
	tables *frequencyTables
	dec    *arithcode.Decoder
}

func (r *arithReader) read(stream int) (int, error) {
	symbol, err := r.dec.Decode(r.tables[stream])
	if symbol == arithcode.EOF {
		return endOfStream, err
	}
	return symbol, err
}

type huffmanTables [streamCount]*huffman.Model

func (t *huffmanTables) newWriter(w io.Writer) symbolWriter {
	return &huffmanWriter{tables: t, enc: huffman.NewEncoder(w)}
}

func (t *huffmanTables) newReader(r io.Reader) (symbolReader, error) {
	return &huffmanReader{tables: t, dec: huffman.NewDecoder(r)}, nil
}

func (t *huffmanTables) marshal() ([streamCount][]byte, error) {
	var out [streamCount][]byte
	for i, m := range t {
		b, err := m.MarshalBinary()
		if err != nil {
			return out, err
		}
		out[i] = b
	}
	return out, nil
}

func unmarshalHuffmanTables(data [streamCount][]byte) (*huffmanTables, error) {
	var t huffmanTables
	for i, b := range data {
		m, err := huffman.UnmarshalModel(b)
		if err != nil {
			return nil, err
		}
		if err := checkTable(i, m.SymbolCount(), m.EOFSymbol(), func(symbol int) bool {
			_, length := m.Code(symbol)
			return length > 0
		}); err != nil {
			return nil, err
		}
		t[i] = m
	}
	return &t, nil
}

type huffmanWriter struct {
	tables *huffmanTables
	enc    *huffman.Encoder
}

func (w *huffmanWriter) write(stream, symbol int) error {
	return w.enc.Encode(symbol, w.tables[stream])
}

func (w *huffmanWriter) close() error { return w.enc.Close() }

type huffmanReader struct {
	tables *huffmanTables
	dec    *huffman.Decoder
}

func (r *huffmanReader) read(stream int) (int, error) {
	symbol, err := r.dec.Decode(r.tables[stream])
	if symbol == huffman.EOF {
		return endOfStream, err
	}
	return symbol, err
}
