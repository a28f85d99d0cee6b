package model

import (
	"github.com/egonelbre/femtozip/arithcode"
	"github.com/egonelbre/femtozip/huffman"
	"github.com/egonelbre/femtozip/substring"
)

// modelBuilder accumulates the stream histograms while a model is being
// trained. It exists only in the ConstructingModel state.
type modelBuilder struct {
	packer     *substring.Packer
	histograms [streamCount][]uint64
	documents  int
}

func newModelBuilder(dictionary []byte) *modelBuilder {
	b := &modelBuilder{packer: substring.NewPacker(dictionary)}
	for i, size := range streamSizes {
		b.histograms[i] = make([]uint64, size)
	}
	return b
}

func (b *modelBuilder) addDocument(document []byte) error {
	b.documents++
	return b.packer.Pack(document, b)
}

func (b *modelBuilder) EncodeLiteral(v byte) error {
	b.histograms[streamLiteralLength][v]++
	return nil
}

func (b *modelBuilder) EncodeSubstring(offset, length int) error {
	if err := validateSubstring(offset, length); err != nil {
		return err
	}
	for stream, symbol := range substringSymbols(offset, length) {
		b.histograms[stream][symbol]++
	}
	return nil
}

func (b *modelBuilder) EndEncoding() error { return nil }

// frequencyTables freezes the histograms into arithmetic coding tables.
// Unseen symbols keep a count of one; stream A reserves its last symbol for
// the end of stream.
func (b *modelBuilder) frequencyTables() *frequencyTables {
	var t frequencyTables
	for stream, histogram := range b.histograms {
		t[stream] = arithcode.NewFrequencyCodeModel(histogram, false, stream == streamLiteralLength)
	}
	return &t
}

// huffmanTables freezes the histograms into Huffman codes, with the same
// treatment of unseen symbols as frequencyTables.
func (b *modelBuilder) huffmanTables() *huffmanTables {
	var t huffmanTables
	for stream, histogram := range b.histograms {
		t[stream] = huffman.NewModel(histogram, false, stream == streamLiteralLength)
	}
	return &t
}
