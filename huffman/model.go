// Package huffman implements static canonical Huffman codes built from a
// histogram.
//
// Decoding uses nested lookup tables: the root table is indexed by the first
// few bits of a code and resolves every short code in a single probe, longer
// codes continue in sub-tables indexed by the following bits. Decoding a
// symbol therefore costs a small bounded number of probes rather than one
// step per code bit, and the tables grow with the alphabet rather than with
// 2^maxLength.
package huffman

import (
	"errors"
	"fmt"

	"github.com/emirpasic/gods/trees/binaryheap"
	"golang.org/x/exp/slices"
)

// EOF is returned by Decoder.Decode when the model's end-of-stream symbol
// is decoded.
const EOF = -1

// MaxCodeLength is the longest code a Model assigns. Histograms that would
// need longer codes are flattened before the code is built.
const MaxCodeLength = 24

// tableBits is the widest index of a single decoding table.
const tableBits = 9

var (
	// ErrCorruptStream is returned when the input does not decode against
	// the model.
	ErrCorruptStream = errors.New("huffman: corrupt stream")

	// ErrNoCode is returned when encoding a symbol that has no code.
	ErrNoCode = errors.New("huffman: symbol has no code")
)

// Model is an immutable canonical prefix code.
type Model struct {
	lengths   []uint8  // Code length per symbol, 0 when the symbol has no code
	codes     []uint32 // Canonical code per symbol, right aligned
	eof       int      // End-of-stream symbol, -1 if none
	maxLength uint
	root      *table
}

// NewModel builds a code from a training histogram.
//
// When reserveEOF is set the last slot of the histogram is the end-of-stream
// symbol and always receives a code. When allSymbolsSampled is false every
// symbol with a zero count is given a count of one, so it receives a code
// too. Symbols are coded in order of increasing length and, within a
// length, increasing symbol value, so the result depends only on the
// histogram.
func NewModel(histogram []uint64, allSymbolsSampled, reserveEOF bool) *Model {
	if len(histogram) == 0 {
		panic("histogram must not be empty")
	}

	weights := make([]uint64, len(histogram))
	copy(weights, histogram)

	eof := -1
	if reserveEOF {
		eof = len(weights) - 1
		if weights[eof] == 0 {
			weights[eof] = 1
		}
	}
	if !allSymbolsSampled {
		for i, w := range weights {
			if w == 0 {
				weights[i] = 1
			}
		}
	}

	lengths := codeLengths(weights)
	for maxOf(lengths) > MaxCodeLength {
		for i, w := range weights {
			if w > 1 {
				weights[i] = w / 2
			}
		}
		lengths = codeLengths(weights)
	}

	m, err := ModelFromLengths(lengths, eof)
	if err != nil {
		panic(err)
	}
	return m
}

// ModelFromLengths rebuilds a model from per-symbol code lengths, as
// returned by Lengths.
func ModelFromLengths(lengths []uint8, eof int) (*Model, error) {
	if len(lengths) == 0 {
		return nil, errors.New("huffman: empty code")
	}
	if eof < -1 || eof >= len(lengths) {
		return nil, fmt.Errorf("huffman: eof symbol %d out of range", eof)
	}
	if eof >= 0 && lengths[eof] == 0 {
		return nil, errors.New("huffman: eof symbol has no code")
	}

	// Check the code is not over-subscribed (Kraft inequality).
	var kraft uint64
	coded := 0
	for _, l := range lengths {
		if l > MaxCodeLength {
			return nil, fmt.Errorf("huffman: code length %d exceeds %d", l, MaxCodeLength)
		}
		if l > 0 {
			kraft += 1 << (MaxCodeLength - uint(l))
			coded++
		}
	}
	if coded == 0 {
		return nil, errors.New("huffman: code has no symbols")
	}
	if kraft > 1<<MaxCodeLength {
		return nil, errors.New("huffman: code lengths are over-subscribed")
	}

	m := &Model{
		lengths:   append([]uint8(nil), lengths...),
		codes:     make([]uint32, len(lengths)),
		eof:       eof,
		maxLength: uint(maxOf(lengths)),
	}
	order := m.canonicalOrder()
	m.assignCodes(order)
	m.root = buildTable(m, order, 0)
	return m, nil
}

// canonicalOrder returns the coded symbols sorted by code length, then by
// symbol value.
func (m *Model) canonicalOrder() []int {
	var order []int
	for s, l := range m.lengths {
		if l > 0 {
			order = append(order, s)
		}
	}
	slices.SortFunc(order, func(a, b int) int {
		if m.lengths[a] != m.lengths[b] {
			return int(m.lengths[a]) - int(m.lengths[b])
		}
		return a - b
	})
	return order
}

func (m *Model) assignCodes(order []int) {
	var code uint32
	prev := uint8(0)
	for i, s := range order {
		l := m.lengths[s]
		if i > 0 {
			code++
		}
		code <<= l - prev
		prev = l
		m.codes[s] = code
	}
}

// SymbolCount returns the size of the alphabet.
func (m *Model) SymbolCount() int { return len(m.lengths) }

// EOFSymbol returns the reserved end-of-stream symbol, or -1.
func (m *Model) EOFSymbol() int { return m.eof }

// Code returns the code bits and length of symbol. A zero length means the
// symbol has no code.
func (m *Model) Code(symbol int) (code uint32, length uint) {
	if symbol < 0 || symbol >= len(m.lengths) {
		panic("symbol out of range")
	}
	return m.codes[symbol], uint(m.lengths[symbol])
}

// Lengths returns a copy of the per-symbol code lengths.
func (m *Model) Lengths() []uint8 {
	return append([]uint8(nil), m.lengths...)
}

// MaxLength returns the length of the longest code.
func (m *Model) MaxLength() uint { return m.maxLength }

// node is a leaf or an internal node of the merge tree.
type node struct {
	weight uint64
	order  int // Creation order, breaks weight ties deterministically
	symbol int
	left   *node
	right  *node
}

// codeLengths computes optimal prefix code lengths by repeatedly merging
// the two lightest nodes.
func codeLengths(weights []uint64) []uint8 {
	lengths := make([]uint8, len(weights))

	heap := binaryheap.NewWith(func(a, b interface{}) int {
		x, y := a.(*node), b.(*node)
		switch {
		case x.weight < y.weight:
			return -1
		case x.weight > y.weight:
			return 1
		}
		return x.order - y.order
	})

	order := 0
	for s, w := range weights {
		if w == 0 {
			continue
		}
		heap.Push(&node{weight: w, order: order, symbol: s})
		order++
	}

	switch heap.Size() {
	case 0:
		panic("histogram has no symbols")
	case 1:
		top, _ := heap.Pop()
		lengths[top.(*node).symbol] = 1
		return lengths
	}

	for heap.Size() > 1 {
		a, _ := heap.Pop()
		b, _ := heap.Pop()
		x, y := a.(*node), b.(*node)
		heap.Push(&node{weight: x.weight + y.weight, order: order, symbol: -1, left: x, right: y})
		order++
	}
	top, _ := heap.Pop()

	type item struct {
		n     *node
		depth int
	}
	stack := []item{{top.(*node), 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if it.n.left == nil {
			depth := it.depth
			if depth > 255 {
				depth = 255
			}
			lengths[it.n.symbol] = uint8(depth)
			continue
		}
		stack = append(stack, item{it.n.left, it.depth + 1}, item{it.n.right, it.depth + 1})
	}
	return lengths
}

func maxOf(lengths []uint8) uint8 {
	var max uint8
	for _, l := range lengths {
		if l > max {
			max = l
		}
	}
	return max
}
