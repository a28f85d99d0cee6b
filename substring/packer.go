package substring

import (
	"encoding/binary"
)

const (
	hashBits = 15
	// maxChain bounds how many earlier positions are tried per match.
	maxChain = 256
)

// Packer finds repeated substrings of a document in a dictionary and in the
// part of the document already packed. It is read only after construction
// and safe for concurrent use.
type Packer struct {
	dictionary []byte
}

// NewPacker creates a packer for dictionary. Only the last MaxOffset bytes
// of the dictionary are reachable.
func NewPacker(dictionary []byte) *Packer {
	if len(dictionary) > MaxOffset {
		dictionary = dictionary[len(dictionary)-MaxOffset:]
	}
	return &Packer{dictionary: append([]byte(nil), dictionary...)}
}

// Dictionary returns the reachable part of the dictionary.
func (p *Packer) Dictionary() []byte { return p.dictionary }

// Pack sends the instructions for document to c, followed by EndEncoding.
// Copies are at least MinLength and at most MaxLength bytes long and reach at
// most MaxOffset bytes back. An error from c stops packing and is returned.
func (p *Packer) Pack(document []byte, c Consumer) error {
	buf := make([]byte, 0, len(p.dictionary)+len(document))
	buf = append(buf, p.dictionary...)
	buf = append(buf, document...)

	m := newMatcher(buf)
	for i := 0; i < len(p.dictionary); i++ {
		m.insert(i)
	}

	pos := len(p.dictionary)
	for pos < len(buf) {
		offset, length := m.longest(pos)
		if length >= MinLength {
			if err := c.EncodeSubstring(offset, length); err != nil {
				return err
			}
			for end := pos + length; pos < end; pos++ {
				m.insert(pos)
			}
			continue
		}

		if err := c.EncodeLiteral(buf[pos]); err != nil {
			return err
		}
		m.insert(pos)
		pos++
	}
	return c.EndEncoding()
}

// matcher is a hash chain over the 4 byte prefixes of buf.
type matcher struct {
	buf  []byte
	head []int32
	prev []int32
}

func newMatcher(buf []byte) *matcher {
	m := &matcher{
		buf:  buf,
		head: make([]int32, 1<<hashBits),
		prev: make([]int32, len(buf)),
	}
	for i := range m.head {
		m.head[i] = -1
	}
	return m
}

func (m *matcher) hash(pos int) uint32 {
	return binary.LittleEndian.Uint32(m.buf[pos:]) * 2654435761 >> (32 - hashBits)
}

func (m *matcher) insert(pos int) {
	if pos+MinLength > len(m.buf) {
		return
	}
	h := m.hash(pos)
	m.prev[pos] = m.head[h]
	m.head[h] = int32(pos)
}

// longest returns the longest earlier match for the bytes at pos, preferring
// the closest one among equal lengths.
func (m *matcher) longest(pos int) (offset, length int) {
	if pos+MinLength > len(m.buf) {
		return 0, 0
	}
	limit := len(m.buf) - pos
	if limit > MaxLength {
		limit = MaxLength
	}

	candidate := m.head[m.hash(pos)]
	for chain := 0; candidate >= 0 && chain < maxChain; chain++ {
		distance := pos - int(candidate)
		if distance > MaxOffset {
			break
		}
		n := matchLength(m.buf[candidate:], m.buf[pos:], limit)
		if n > length {
			offset, length = distance, n
			if n == limit {
				break
			}
		}
		candidate = m.prev[candidate]
	}
	return offset, length
}

func matchLength(a, b []byte, limit int) int {
	n := 0
	for n < limit && a[n] == b[n] {
		n++
	}
	return n
}
