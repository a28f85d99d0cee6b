// Package bitio implements the buffered, MSB-first bit sink and bit source
// shared by the arithmetic and Huffman coders.
package bitio

import (
	"bufio"
	"errors"
	"io"
)

// ErrEndOfData is returned when fewer bits remain than requested.
var ErrEndOfData = errors.New("bitio: end of data")

// flushSize is the number of buffered bytes that triggers a write.
const flushSize = 4096

// maxBits is the widest value accepted by a single call.
const maxBits = 32

// Writer writes bits to an io.Writer, most significant bit first.
//
// Writes are buffered; Flush must be called to pad the final partial byte
// with zero bits and push everything to the underlying writer.
type Writer struct {
	output      io.Writer
	buf         []byte
	accumulator uint64
	numBits     uint
	written     int64
	err         error
}

// NewWriter creates a new bit writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		output: w,
		buf:    make([]byte, 0, flushSize),
	}
}

// WriteBits appends the count low-order bits of value.
func (bw *Writer) WriteBits(value uint64, count uint) error {
	if count > maxBits {
		panic("bitio: count out of range")
	}
	if bw.err != nil {
		return bw.err
	}
	if count == 0 {
		return nil
	}
	bw.accumulator = (bw.accumulator << count) | (value & (1<<count - 1))
	bw.numBits += count
	for bw.numBits >= 8 {
		bw.numBits -= 8
		bw.buf = append(bw.buf, byte(bw.accumulator>>bw.numBits))
	}
	bw.accumulator &= 1<<bw.numBits - 1
	if len(bw.buf) >= flushSize {
		return bw.drain()
	}
	return nil
}

// WriteBit appends a single bit.
func (bw *Writer) WriteBit(bit uint) error {
	return bw.WriteBits(uint64(bit&1), 1)
}

// Flush pads the final partial byte with zeros and writes all buffered
// bytes to the underlying writer.
func (bw *Writer) Flush() error {
	if bw.err != nil {
		return bw.err
	}
	if bw.numBits > 0 {
		bw.buf = append(bw.buf, byte(bw.accumulator<<(8-bw.numBits)))
		bw.accumulator = 0
		bw.numBits = 0
	}
	return bw.drain()
}

// BytesWritten returns the number of bytes handed to the underlying writer.
func (bw *Writer) BytesWritten() int64 { return bw.written }

func (bw *Writer) drain() error {
	if len(bw.buf) == 0 {
		return nil
	}
	n, err := bw.output.Write(bw.buf)
	bw.written += int64(n)
	if err == nil && n < len(bw.buf) {
		err = io.ErrShortWrite
	}
	bw.buf = bw.buf[:0]
	if err != nil {
		bw.err = err
	}
	return err
}

// Reader reads bits from an io.Reader, most significant bit first.
type Reader struct {
	input       io.ByteReader
	accumulator uint64
	numBits     uint
	eof         bool
	err         error
}

// NewReader creates a new bit reader that reads from r.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{input: br}
}

// fill tries to buffer at least count bits.
func (br *Reader) fill(count uint) {
	for br.numBits < count && !br.eof {
		b, err := br.input.ReadByte()
		if err != nil {
			br.eof = true
			if err != io.EOF {
				br.err = err
			}
			return
		}
		br.accumulator = br.accumulator<<8 | uint64(b)
		br.numBits += 8
	}
}

// ReadBits reads count bits. It fails with ErrEndOfData when fewer than
// count bits remain; in that case no bits are consumed.
func (br *Reader) ReadBits(count uint) (uint64, error) {
	if count > maxBits {
		panic("bitio: count out of range")
	}
	br.fill(count)
	if br.err != nil {
		return 0, br.err
	}
	if br.numBits < count {
		return 0, ErrEndOfData
	}
	br.numBits -= count
	value := (br.accumulator >> br.numBits) & (1<<count - 1)
	br.accumulator &= 1<<br.numBits - 1
	return value, nil
}

// ReadBit reads a single bit.
func (br *Reader) ReadBit() (uint, error) {
	v, err := br.ReadBits(1)
	return uint(v), err
}

// PeekBits returns the next count bits without consuming them. Missing bits
// past the end of the data read as zero; available reports how many of the
// returned bits are real.
func (br *Reader) PeekBits(count uint) (value uint64, available uint, err error) {
	if count > maxBits {
		panic("bitio: count out of range")
	}
	br.fill(count)
	if br.err != nil {
		return 0, 0, br.err
	}
	if br.numBits >= count {
		return (br.accumulator >> (br.numBits - count)) & (1<<count - 1), count, nil
	}
	return (br.accumulator << (count - br.numBits)) & (1<<count - 1), br.numBits, nil
}

// Skip consumes count bits that were previously peeked.
func (br *Reader) Skip(count uint) error {
	_, err := br.ReadBits(count)
	return err
}
