package model

import (
	"fmt"

	"github.com/egonelbre/femtozip/substring"
)

// The triple-nibble alphabet splits every instruction over six
// independently modeled streams. Stream A carries literals, the low nibble
// of a copy length (which also marks the instruction as a copy) and the
// end-of-stream symbol. Stream B carries the high nibble of the length and
// streams C to F the four nibbles of the offset, least significant first.
const (
	streamLiteralLength = iota
	streamLengthHigh
	streamOffset0
	streamOffset1
	streamOffset2
	streamOffset3
	streamCount
)

const (
	literalSymbols      = 256
	lengthNibbleBase    = literalSymbols
	endOfStreamSymbol   = lengthNibbleBase + 16
	literalLengthSymbol = endOfStreamSymbol + 1
	nibbleSymbols       = 16
)

// endOfStream is what a stream reader returns once the end-of-stream
// symbol is decoded.
const endOfStream = -1

// streamSizes is the alphabet size of each stream.
var streamSizes = [streamCount]int{
	literalLengthSymbol,
	nibbleSymbols,
	nibbleSymbols,
	nibbleSymbols,
	nibbleSymbols,
	nibbleSymbols,
}

// validateSubstring checks the copy can be described by the alphabet.
func validateSubstring(offset, length int) error {
	if length < 1 || length > substring.MaxLength {
		return fmt.Errorf("%w: length %d out of range [1,%d]", ErrInvalidInstruction, length, substring.MaxLength)
	}
	if offset < 1 || offset > substring.MaxOffset {
		return fmt.Errorf("%w: offset %d out of range [1,%d]", ErrInvalidInstruction, offset, substring.MaxOffset)
	}
	return nil
}

// substringSymbols returns the symbol of a valid copy in each stream.
func substringSymbols(offset, length int) [streamCount]int {
	return [streamCount]int{
		lengthNibbleBase + length&0xf,
		(length >> 4) & 0xf,
		offset & 0xf,
		(offset >> 4) & 0xf,
		(offset >> 8) & 0xf,
		(offset >> 12) & 0xf,
	}
}

// joinSubstring reverses substringSymbols.
func joinSubstring(symbols [streamCount]int) (offset, length int) {
	length = (symbols[streamLiteralLength] - lengthNibbleBase) | symbols[streamLengthHigh]<<4
	offset = symbols[streamOffset0] |
		symbols[streamOffset1]<<4 |
		symbols[streamOffset2]<<8 |
		symbols[streamOffset3]<<12
	return offset, length
}
