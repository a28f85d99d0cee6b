// Package model implements the encoding models that turn substring packer
// instructions into a compact bitstream and back.
//
// A model is trained from a corpus, after which it can be saved, loaded,
// and used to encode and decode instruction streams. Trained code tables
// are immutable, so one trained model may decode on many goroutines at once;
// encoding uses per-instance state and needs an instance per goroutine (see
// TripleNibble.Clone).
package model

import (
	"errors"
	"fmt"
	"io"

	"github.com/egonelbre/femtozip/substring"
)

var (
	// ErrInvalidInstruction is returned for a copy whose length or offset
	// is outside the encodable range.
	ErrInvalidInstruction = errors.New("model: invalid instruction")

	// ErrCorruptStream is returned when compressed data or a persisted
	// model does not decode.
	ErrCorruptStream = errors.New("model: corrupt stream")

	// ErrModelState is returned when an operation is invoked in the wrong
	// lifecycle state.
	ErrModelState = errors.New("model: invalid state")
)

// EncodingModel is the capability shared by every encoding strategy.
//
// Training runs BeginModelConstruction, AddDocumentToModel for each
// document, then EndModelConstruction. Encoding runs BeginEncoding, the
// instruction calls, then EndEncoding. Load replaces training.
type EncodingModel interface {
	substring.Consumer

	Strategy() Strategy

	Load(r io.Reader) error
	Save(w io.Writer) error

	BeginModelConstruction(dictionary []byte) error
	AddDocumentToModel(document []byte) error
	EndModelConstruction() error

	BeginEncoding(w io.Writer) error

	// Decode sends the instructions stored in compressed to consumer,
	// followed by exactly one EndEncoding call.
	Decode(compressed []byte, consumer substring.Consumer) error
}

// Strategy selects the entropy coder of a model.
type Strategy uint8

const (
	// Frequency codes every stream with arithmetic coding.
	Frequency Strategy = iota
	// Huffman codes every stream with a canonical Huffman code.
	Huffman
)

func (s Strategy) String() string {
	switch s {
	case Frequency:
		return "frequency"
	case Huffman:
		return "huffman"
	}
	return fmt.Sprintf("Strategy(%d)", uint8(s))
}

// ParseStrategy returns the strategy with the given name.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "frequency":
		return Frequency, nil
	case "huffman":
		return Huffman, nil
	}
	return 0, fmt.Errorf("model: unknown strategy %q", name)
}

// State is the lifecycle state of a model.
type State uint8

const (
	Idle State = iota
	ConstructingModel
	Ready
	Encoding
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ConstructingModel:
		return "constructing"
	case Ready:
		return "ready"
	case Encoding:
		return "encoding"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// New creates an untrained model using the given strategy.
func New(strategy Strategy) (*TripleNibble, error) {
	switch strategy {
	case Frequency, Huffman:
		return &TripleNibble{strategy: strategy}, nil
	}
	return nil, fmt.Errorf("model: unknown strategy %v", strategy)
}

// NewTripleNibbleFrequency creates an untrained arithmetic coded model.
func NewTripleNibbleFrequency() *TripleNibble {
	return &TripleNibble{strategy: Frequency}
}

// NewTripleNibbleHuffman creates an untrained Huffman coded model.
func NewTripleNibbleHuffman() *TripleNibble {
	return &TripleNibble{strategy: Huffman}
}
