// Package substring turns documents into literal and substring copy
// instructions against a shared dictionary, and back.
package substring

import (
	"errors"
	"fmt"
)

const (
	// MinLength is the shortest copy the packer emits.
	MinLength = 4
	// MaxLength is the longest copy an instruction can describe.
	MaxLength = 255
	// MaxOffset is the longest distance a copy can reach back.
	MaxOffset = 1<<16 - 1
)

// ErrInvalidReference is returned when a copy reaches outside the data
// produced so far.
var ErrInvalidReference = errors.New("substring: invalid reference")

// Consumer receives instructions in document order. EndEncoding is called
// exactly once, after the last instruction.
type Consumer interface {
	EncodeLiteral(b byte) error
	EncodeSubstring(offset, length int) error
	EndEncoding() error
}

// Kind distinguishes instruction types.
type Kind uint8

const (
	Literal Kind = iota
	Copy
)

func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Copy:
		return "copy"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Instruction is a single literal byte or substring copy.
type Instruction struct {
	Kind   Kind
	Byte   byte // Literal value
	Offset int  // Copy distance back from the current position
	Length int  // Copy length
}

func (in Instruction) String() string {
	if in.Kind == Literal {
		return fmt.Sprintf("lit(%q)", in.Byte)
	}
	return fmt.Sprintf("copy(%d,%d)", in.Offset, in.Length)
}

// Replay sends instructions to c, followed by EndEncoding.
func Replay(instructions []Instruction, c Consumer) error {
	for _, in := range instructions {
		var err error
		if in.Kind == Literal {
			err = c.EncodeLiteral(in.Byte)
		} else {
			err = c.EncodeSubstring(in.Offset, in.Length)
		}
		if err != nil {
			return err
		}
	}
	return c.EndEncoding()
}

// Recorder is a Consumer that keeps every instruction it receives.
type Recorder struct {
	Instructions []Instruction
	Ended        int // Number of EndEncoding calls
}

func (r *Recorder) EncodeLiteral(b byte) error {
	r.Instructions = append(r.Instructions, Instruction{Kind: Literal, Byte: b})
	return nil
}

func (r *Recorder) EncodeSubstring(offset, length int) error {
	r.Instructions = append(r.Instructions, Instruction{Kind: Copy, Offset: offset, Length: length})
	return nil
}

func (r *Recorder) EndEncoding() error {
	r.Ended++
	return nil
}

// Unpacker is a Consumer that rebuilds a document from its instructions.
type Unpacker struct {
	buf    []byte
	prefix int
	ended  bool
}

// NewUnpacker creates an Unpacker whose copies may reach into dictionary.
func NewUnpacker(dictionary []byte) *Unpacker {
	buf := make([]byte, len(dictionary), len(dictionary)*2+64)
	copy(buf, dictionary)
	return &Unpacker{buf: buf, prefix: len(dictionary)}
}

func (u *Unpacker) EncodeLiteral(b byte) error {
	u.buf = append(u.buf, b)
	return nil
}

// EncodeSubstring appends length bytes starting offset bytes back. The
// source may overlap the bytes being written.
func (u *Unpacker) EncodeSubstring(offset, length int) error {
	if offset < 1 || offset > len(u.buf) || length < 1 {
		return fmt.Errorf("%w: copy(%d,%d) at %d", ErrInvalidReference, offset, length, len(u.buf)-u.prefix)
	}
	start := len(u.buf) - offset
	for i := 0; i < length; i++ {
		u.buf = append(u.buf, u.buf[start+i])
	}
	return nil
}

func (u *Unpacker) EndEncoding() error {
	u.ended = true
	return nil
}

// Ended reports whether EndEncoding was called.
func (u *Unpacker) Ended() bool { return u.ended }

// Bytes returns the document rebuilt so far, without the dictionary.
func (u *Unpacker) Bytes() []byte {
	return u.buf[u.prefix:]
}
