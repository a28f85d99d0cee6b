package huffman

// table is one level of the nested decoding tables. It is indexed by the
// next bits of the input; an entry either resolves a symbol or links to a
// sub-table for the bits that follow.
type table struct {
	bits    uint
	entries []entry
}

type entry struct {
	symbol int32
	length uint8 // Bits of the code resolved by this table, 0 if unused
	sub    *table
}

// buildTable builds the table for the symbols whose codes share the first
// offset bits. Symbols are in canonical order.
func buildTable(m *Model, symbols []int, offset uint) *table {
	var longest uint
	for _, s := range symbols {
		if l := uint(m.lengths[s]) - offset; l > longest {
			longest = l
		}
	}
	bits := longest
	if bits > tableBits {
		bits = tableBits
	}

	t := &table{
		bits:    bits,
		entries: make([]entry, 1<<bits),
	}

	var groups map[uint32][]int
	for _, s := range symbols {
		code, length := m.codes[s], uint(m.lengths[s])
		remaining := length - offset
		rest := code & (1<<remaining - 1)

		if remaining <= bits {
			first := rest << (bits - remaining)
			last := (rest + 1) << (bits - remaining)
			for i := first; i < last; i++ {
				t.entries[i] = entry{symbol: int32(s), length: uint8(remaining)}
			}
			continue
		}

		index := rest >> (remaining - bits)
		if groups == nil {
			groups = make(map[uint32][]int)
		}
		groups[index] = append(groups[index], s)
	}

	for index, group := range groups {
		t.entries[index] = entry{
			symbol: -1,
			length: uint8(bits),
			sub:    buildTable(m, group, offset+bits),
		}
	}
	return t
}
