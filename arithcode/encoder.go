package arithcode

import (
	"errors"
	"fmt"
	"io"

	"github.com/egonelbre/femtozip/bitio"
)

const (
	// stateBits defines the precision of the arithmetic coding state.
	// We use 32 bits to balance precision and performance.
	stateBits = 32
	// stateMax is the maximum value of the state (2^32 - 1).
	stateMax uint64 = (1 << stateBits) - 1
	// half is the midpoint of the state range.
	half uint64 = 1 << (stateBits - 1)
	// quarter is one quarter of the state range.
	quarter uint64 = 1 << (stateBits - 2)
)

// ErrZeroFrequency is returned when encoding a symbol the model gives no
// probability mass.
var ErrZeroFrequency = errors.New("arithcode: symbol has zero frequency")

// Encoder compresses data using arithmetic coding.
type Encoder struct {
	output      *bitio.Writer
	low         uint64 // Lower bound of the current interval
	high        uint64 // Upper bound of the current interval
	pendingBits int    // Number of pending underflow bits
}

// NewEncoder creates a new arithmetic encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		output: bitio.NewWriter(w),
		low:    0,
		high:   stateMax,
	}
}

// Encode writes a symbol using the given model.
func (e *Encoder) Encode(symbol int, model Model) error {
	// Get the symbol's frequency range
	symLow, symHigh := model.Freq(symbol)
	if symLow == symHigh {
		return fmt.Errorf("%w: %d", ErrZeroFrequency, symbol)
	}
	total := model.TotalFreq()

	// Calculate the new interval
	rangeSize := e.high - e.low + 1
	e.high = e.low + (rangeSize*symHigh)/total - 1
	e.low = e.low + (rangeSize*symLow)/total
	if e.high < e.low {
		panic("arithcode: interval collapsed, model total too large")
	}

	// Normalize the interval
	for {
		if e.high < half {
			// High is in lower half, output 0
			if err := e.emit(0); err != nil {
				return err
			}
		} else if e.low >= half {
			// Low is in upper half, output 1
			if err := e.emit(1); err != nil {
				return err
			}
			e.low -= half
			e.high -= half
		} else if e.low >= quarter && e.high < 3*quarter {
			// Underflow: interval straddles the middle
			e.pendingBits++
			e.low -= quarter
			e.high -= quarter
		} else {
			break
		}

		// Scale up the interval
		e.low = (e.low << 1) & stateMax
		e.high = ((e.high << 1) & stateMax) | 1
	}

	return nil
}

// emit writes bit followed by the pending opposite bits.
func (e *Encoder) emit(bit uint) error {
	if err := e.output.WriteBit(bit); err != nil {
		return err
	}
	for e.pendingBits > 0 {
		if err := e.output.WriteBit(bit ^ 1); err != nil {
			return err
		}
		e.pendingBits--
	}
	return nil
}

// Close finalizes the encoding and flushes any remaining bits.
func (e *Encoder) Close() error {
	// Output enough bits to disambiguate the final interval
	e.pendingBits++

	var err error
	if e.low < quarter {
		err = e.emit(0)
	} else {
		err = e.emit(1)
	}
	if err != nil {
		return err
	}

	return e.output.Flush()
}
