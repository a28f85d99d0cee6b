// Package fz compresses small documents against a model trained on a sample
// of similar documents.
//
// A Model couples a dictionary of common substrings with a trained encoding
// model. Compress and Decompress are safe for concurrent use.
package fz

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/egonelbre/femtozip/model"
	"github.com/egonelbre/femtozip/substring"
)

// ErrShortBuffer is matched by ShortBufferError.
var ErrShortBuffer = errors.New("fz: short buffer")

// ShortBufferError is returned by CompressTo and DecompressTo when the
// output does not fit the destination.
type ShortBufferError struct {
	Need int // bytes needed to hold the output
}

func (e *ShortBufferError) Error() string {
	return fmt.Sprintf("fz: short buffer, need %d bytes", e.Need)
}

func (e *ShortBufferError) Unwrap() error { return ErrShortBuffer }

// Model is a trained compression model.
type Model struct {
	packer   *substring.Packer
	encoding *model.TripleNibble
}

func newModel(dictionary []byte, encoding *model.TripleNibble) *Model {
	return &Model{
		packer:   substring.NewPacker(dictionary),
		encoding: encoding,
	}
}

// Strategy returns the entropy coder the model uses.
func (m *Model) Strategy() model.Strategy { return m.encoding.Strategy() }

// Dictionary returns the part of the dictionary copies can refer to.
func (m *Model) Dictionary() []byte { return m.packer.Dictionary() }

// Compress returns the compressed form of doc.
func (m *Model) Compress(doc []byte) ([]byte, error) {
	enc, err := m.encoding.Clone()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := enc.BeginEncoding(&buf); err != nil {
		return nil, err
	}
	if err := m.packer.Pack(doc, enc); err != nil {
		return nil, fmt.Errorf("fz: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress returns the document compressed into data.
func (m *Model) Decompress(data []byte) ([]byte, error) {
	u := substring.NewUnpacker(m.packer.Dictionary())
	if err := m.encoding.Decode(data, u); err != nil {
		if errors.Is(err, substring.ErrInvalidReference) {
			err = fmt.Errorf("%w: %w", model.ErrCorruptStream, err)
		}
		return nil, fmt.Errorf("fz: decompress: %w", err)
	}
	return bytes.Clone(u.Bytes()), nil
}

// CompressTo compresses doc into dst and returns the number of bytes
// written. When dst is too small nothing is written and the error is a
// *ShortBufferError.
func (m *Model) CompressTo(dst, doc []byte) (int, error) {
	out, err := m.Compress(doc)
	if err != nil {
		return 0, err
	}
	return copyTo(dst, out)
}

// DecompressTo decompresses data into dst, like CompressTo.
func (m *Model) DecompressTo(dst, data []byte) (int, error) {
	out, err := m.Decompress(data)
	if err != nil {
		return 0, err
	}
	return copyTo(dst, out)
}

func copyTo(dst, src []byte) (int, error) {
	if len(src) > len(dst) {
		return 0, &ShortBufferError{Need: len(src)}
	}
	return copy(dst, src), nil
}
