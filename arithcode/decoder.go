package arithcode

import (
	"errors"
	"io"

	"github.com/egonelbre/femtozip/bitio"
)

// ErrCorruptStream is returned when the input does not decode against the
// model: it is empty, truncated, or was produced with another model.
var ErrCorruptStream = errors.New("arithcode: corrupt stream")

// Decoder decompresses data using arithmetic coding.
type Decoder struct {
	input   *bitio.Reader
	low     uint64 // Lower bound of the current interval
	high    uint64 // Upper bound of the current interval
	value   uint64 // Current value being decoded
	padding int    // Number of zero bits read past the end of input
}

// NewDecoder creates a new arithmetic decoder that reads from r.
func NewDecoder(r io.Reader) (*Decoder, error) {
	d := &Decoder{
		input: bitio.NewReader(r),
		low:   0,
		high:  stateMax,
	}

	// Read initial value (stateBits bits)
	for i := 0; i < stateBits; i++ {
		bit, err := d.readBit()
		if err != nil {
			return nil, err
		}
		d.value = (d.value << 1) | uint64(bit)
	}
	if d.padding == stateBits {
		return nil, ErrCorruptStream
	}

	return d, nil
}

// readBit reads the next input bit. The encoder stops writing up to
// stateBits bits before the decoder stops reading, so a bounded number of
// missing bits read as zero; more than that means the input was truncated.
func (d *Decoder) readBit() (uint, error) {
	bit, err := d.input.ReadBit()
	if err != nil {
		if !errors.Is(err, bitio.ErrEndOfData) {
			return 0, err
		}
		d.padding++
		if d.padding > stateBits {
			return 0, ErrCorruptStream
		}
		return 0, nil
	}
	return bit, nil
}

// Decode reads and returns the next symbol using the given model.
// It returns EOF when the model's end-of-stream symbol is decoded.
func (d *Decoder) Decode(model Model) (int, error) {
	// Calculate the position within the current interval
	total := model.TotalFreq()
	rangeSize := d.high - d.low + 1
	if d.value < d.low || d.value > d.high {
		return 0, ErrCorruptStream
	}
	cumFreq := ((d.value-d.low+1)*total - 1) / rangeSize
	if cumFreq >= total {
		return 0, ErrCorruptStream
	}

	// Find the symbol corresponding to this cumulative frequency
	symbol := model.Find(cumFreq)
	symLow, symHigh := model.Freq(symbol)
	if symLow == symHigh {
		return 0, ErrCorruptStream
	}

	// Update the interval
	d.high = d.low + (rangeSize*symHigh)/total - 1
	d.low = d.low + (rangeSize*symLow)/total

	// Normalize the interval
	for {
		if d.high < half {
			// Do nothing
		} else if d.low >= half {
			d.low -= half
			d.high -= half
			d.value -= half
		} else if d.low >= quarter && d.high < 3*quarter {
			d.low -= quarter
			d.high -= quarter
			d.value -= quarter
		} else {
			break
		}

		// Scale up the interval
		d.low = (d.low << 1) & stateMax
		d.high = ((d.high << 1) & stateMax) | 1

		// Read next bit into value
		bit, err := d.readBit()
		if err != nil {
			return 0, err
		}
		d.value = ((d.value << 1) & stateMax) | uint64(bit)
	}

	if t, ok := model.(Terminated); ok && symbol == t.EOFSymbol() {
		return EOF, nil
	}
	return symbol, nil
}
