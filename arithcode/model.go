// Package arithcode implements arithmetic coding for data compression.
// Arithmetic coding is an entropy encoding technique that represents
// messages as fractional values, achieving compression rates close to
// the theoretical Shannon limit.
//
// Models are static: a FrequencyTable is built once from a histogram and is
// read only afterwards, so a single table may be shared by any number of
// encoders and decoders.
package arithcode

import (
	"errors"
	"fmt"
)

// EOF is returned by Decoder.Decode when the model's end-of-stream symbol
// is decoded.
const EOF = -1

// MaxTotal is the largest total frequency a FrequencyTable may have. It
// keeps every symbol with a non-zero count at least one unit wide after the
// coder narrows its range (the range is always wider than a quarter of the
// state space).
const MaxTotal uint64 = 1 << 28

// Model defines the interface for probability models used in arithmetic coding.
// A model provides the probability distribution for symbols in the data stream.
type Model interface {
	// SymbolCount returns the total number of possible symbols in this model.
	SymbolCount() int

	// Freq returns the cumulative frequency range [low, high) for the given symbol.
	// The range is relative to the total frequency returned by TotalFreq().
	// Returns (low, high) where 0 <= low <= high <= TotalFreq(). A symbol
	// with low == high cannot be encoded.
	Freq(symbol int) (low, high uint64)

	// TotalFreq returns the sum of all symbol frequencies.
	TotalFreq() uint64

	// Find returns the symbol corresponding to the given cumulative frequency.
	// The cumFreq must be in range [0, TotalFreq()).
	Find(cumFreq uint64) int
}

// Terminated is implemented by models that reserve an end-of-stream symbol.
type Terminated interface {
	// EOFSymbol returns the end-of-stream symbol or -1 when there is none.
	EOFSymbol() int
}

// FrequencyTable implements a model with custom symbol frequencies.
type FrequencyTable struct {
	counts   []uint64 // Final per-symbol counts, as persisted
	cumFreqs []uint64 // Cumulative frequencies: cumFreqs[i] = sum of counts[0..i-1]
	total    uint64   // Total of all frequencies
	eof      int      // End-of-stream symbol, -1 if none
}

// NewFrequencyTable creates a model from the given symbol frequencies.
// The frequencies slice defines the frequency (probability weight) of each symbol.
// Every frequency must be positive.
func NewFrequencyTable(frequencies []uint64) *FrequencyTable {
	if len(frequencies) == 0 {
		panic("frequencies must not be empty")
	}
	for _, freq := range frequencies {
		if freq == 0 {
			panic("frequency must be positive")
		}
	}
	ft, err := FrequencyTableFromCounts(frequencies, -1)
	if err != nil {
		panic(err)
	}
	return ft
}

// NewFrequencyCodeModel creates a model from a training histogram.
//
// When reserveEOF is set the last slot of the histogram is the end-of-stream
// symbol and always receives a count of at least one. When allSymbolsSampled
// is false every symbol with a zero count is raised to one, so symbols that
// never occurred during training can still be encoded. Totals above MaxTotal
// are rescaled by halving every count, keeping non-zero counts at least one.
func NewFrequencyCodeModel(histogram []uint64, allSymbolsSampled, reserveEOF bool) *FrequencyTable {
	if len(histogram) == 0 {
		panic("histogram must not be empty")
	}

	counts := make([]uint64, len(histogram))
	copy(counts, histogram)

	eof := -1
	if reserveEOF {
		eof = len(counts) - 1
		if counts[eof] == 0 {
			counts[eof] = 1
		}
	}
	if !allSymbolsSampled {
		for i, c := range counts {
			if c == 0 {
				counts[i] = 1
			}
		}
	}
	counts = Rescale(counts, MaxTotal)

	ft, err := FrequencyTableFromCounts(counts, eof)
	if err != nil {
		panic(err)
	}
	return ft
}

// FrequencyTableFromCounts rebuilds a table from final counts, as returned
// by Counts. Zero counts are allowed; such symbols are not encodable.
func FrequencyTableFromCounts(counts []uint64, eof int) (*FrequencyTable, error) {
	if len(counts) == 0 {
		return nil, errors.New("arithcode: empty frequency table")
	}
	if eof < -1 || eof >= len(counts) {
		return nil, fmt.Errorf("arithcode: eof symbol %d out of range", eof)
	}

	cumFreqs := make([]uint64, len(counts)+1)
	var total uint64
	for i, freq := range counts {
		// Both operands stay at most MaxTotal, so the sum cannot wrap.
		if freq > MaxTotal || total+freq > MaxTotal {
			return nil, fmt.Errorf("arithcode: total frequency exceeds %d at symbol %d", MaxTotal, i)
		}
		total += freq
		cumFreqs[i+1] = total
	}
	if total == 0 {
		return nil, errors.New("arithcode: frequency table has zero total")
	}
	if eof >= 0 && counts[eof] == 0 {
		return nil, errors.New("arithcode: eof symbol has zero frequency")
	}

	return &FrequencyTable{
		counts:   append([]uint64(nil), counts...),
		cumFreqs: cumFreqs,
		total:    total,
		eof:      eof,
	}, nil
}

// Rescale halves every count until the sum is at most limit. Non-zero
// counts never drop below one, so the relative order of frequent and rare
// symbols is preserved and no sampled symbol becomes unencodable.
func Rescale(counts []uint64, limit uint64) []uint64 {
	nonZero := uint64(0)
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	if nonZero > limit {
		panic("arithcode: too many symbols for limit")
	}
	for sum(counts) > limit {
		for i, c := range counts {
			if c > 1 {
				counts[i] = c / 2
			}
		}
	}
	return counts
}

func sum(counts []uint64) uint64 {
	var total uint64
	for _, c := range counts {
		total += c
	}
	return total
}

func (ft *FrequencyTable) SymbolCount() int {
	return len(ft.cumFreqs) - 1
}

func (ft *FrequencyTable) Freq(symbol int) (low, high uint64) {
	if symbol < 0 || symbol >= ft.SymbolCount() {
		panic("symbol out of range")
	}
	return ft.cumFreqs[symbol], ft.cumFreqs[symbol+1]
}

func (ft *FrequencyTable) TotalFreq() uint64 {
	return ft.total
}

// EOFSymbol returns the reserved end-of-stream symbol, or -1.
func (ft *FrequencyTable) EOFSymbol() int {
	return ft.eof
}

// Counts returns a copy of the final per-symbol counts.
func (ft *FrequencyTable) Counts() []uint64 {
	return append([]uint64(nil), ft.counts...)
}

func (ft *FrequencyTable) Find(cumFreq uint64) int {
	if cumFreq >= ft.total {
		panic("cumFreq out of range")
	}

	// Binary search for the last boundary <= cumFreq; symbols with a zero
	// count share their boundary with the next symbol and are skipped.
	left, right := 0, len(ft.cumFreqs)-1
	for left < right-1 {
		mid := (left + right) / 2
		if ft.cumFreqs[mid] <= cumFreq {
			left = mid
		} else {
			right = mid
		}
	}
	return left
}
