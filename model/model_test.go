package model

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"pgregory.net/rapid"

	"github.com/egonelbre/femtozip/substring"
)

var strategies = []Strategy{Frequency, Huffman}

func corpus(n int, seed int64) [][]byte {
	rng := rand.New(rand.NewSource(seed))
	names := []string{"alice", "bob", "carol", "dave", "eve", "mallory"}
	docs := make([][]byte, n)
	for i := range docs {
		docs[i] = []byte(fmt.Sprintf(
			`{"id":%d,"name":%q,"email":"%s@example.com","active":%t,"score":%d}`,
			rng.Intn(100000), names[rng.Intn(len(names))], names[rng.Intn(len(names))],
			rng.Intn(2) == 0, rng.Intn(1000)))
	}
	return docs
}

var dictionary = []byte(`{"id":,"name":"","email":"@example.com","active":true,"score":false}`)

func train(t testing.TB, strategy Strategy, docs [][]byte) *TripleNibble {
	t.Helper()
	m, err := New(strategy)
	require.NoError(t, err)
	require.NoError(t, m.BeginModelConstruction(dictionary))
	for _, doc := range docs {
		require.NoError(t, m.AddDocumentToModel(doc))
	}
	require.NoError(t, m.EndModelConstruction())
	require.Equal(t, Ready, m.State())
	return m
}

func encode(t testing.TB, m *TripleNibble, instructions []substring.Instruction) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, m.BeginEncoding(&buf))
	require.NoError(t, substring.Replay(instructions, m))
	require.Equal(t, Ready, m.State())
	return buf.Bytes()
}

func decode(t testing.TB, m *TripleNibble, compressed []byte) []substring.Instruction {
	t.Helper()
	var rec substring.Recorder
	require.NoError(t, m.Decode(compressed, &rec))
	require.Equal(t, 1, rec.Ended)
	return rec.Instructions
}

func packed(t testing.TB, doc []byte) []substring.Instruction {
	t.Helper()
	var rec substring.Recorder
	require.NoError(t, substring.NewPacker(dictionary).Pack(doc, &rec))
	return rec.Instructions
}

func TestRoundtripDocuments(t *testing.T) {
	docs := corpus(200, 1)
	for _, strategy := range strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			m := train(t, strategy, docs)
			for _, doc := range corpus(50, 2) {
				compressed := encode(t, m, packed(t, doc))

				u := substring.NewUnpacker(dictionary)
				require.NoError(t, m.Decode(compressed, u))
				require.True(t, u.Ended())
				require.Equal(t, doc, u.Bytes())
			}
		})
	}
}

func TestRoundtripPanamaLiterals(t *testing.T) {
	text := []byte("a man a plan a canal panama")
	var instructions []substring.Instruction
	for _, b := range text {
		instructions = append(instructions, substring.Instruction{Kind: substring.Literal, Byte: b})
	}

	for _, strategy := range strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			m := train(t, strategy, [][]byte{text})
			require.Equal(t, instructions, decode(t, m, encode(t, m, instructions)))
		})
	}
}

func TestRoundtripEmptyDocument(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			m := train(t, strategy, corpus(10, 3))
			require.Empty(t, decode(t, m, encode(t, m, nil)))
		})
	}
}

func TestRoundtripUntrained(t *testing.T) {
	// Training on no documents still yields codes for every symbol.
	for _, strategy := range strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			m := train(t, strategy, nil)
			instructions := []substring.Instruction{
				{Kind: substring.Literal, Byte: 0},
				{Kind: substring.Copy, Offset: substring.MaxOffset, Length: substring.MaxLength},
				{Kind: substring.Literal, Byte: 255},
				{Kind: substring.Copy, Offset: 1, Length: 1},
			}
			require.Equal(t, instructions, decode(t, m, encode(t, m, instructions)))
		})
	}
}

func instructionGen() *rapid.Generator[substring.Instruction] {
	return rapid.Custom(func(t *rapid.T) substring.Instruction {
		if rapid.Bool().Draw(t, "literal") {
			return substring.Instruction{Kind: substring.Literal, Byte: rapid.Byte().Draw(t, "byte")}
		}
		return substring.Instruction{
			Kind:   substring.Copy,
			Offset: rapid.IntRange(1, substring.MaxOffset).Draw(t, "offset"),
			Length: rapid.IntRange(1, substring.MaxLength).Draw(t, "length"),
		}
	})
}

func TestRoundtripProperty(t *testing.T) {
	for _, strategy := range strategies {
		m := train(t, strategy, corpus(100, 4))
		t.Run(strategy.String(), func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				instructions := rapid.SliceOf(instructionGen()).Draw(t, "instructions")

				var buf bytes.Buffer
				if err := m.BeginEncoding(&buf); err != nil {
					t.Fatal(err)
				}
				if err := substring.Replay(instructions, m); err != nil {
					t.Fatal(err)
				}

				var rec substring.Recorder
				if err := m.Decode(buf.Bytes(), &rec); err != nil {
					t.Fatal(err)
				}
				if rec.Ended != 1 {
					t.Fatalf("EndEncoding called %d times", rec.Ended)
				}
				if len(rec.Instructions) != len(instructions) {
					t.Fatalf("decoded %d instructions, encoded %d", len(rec.Instructions), len(instructions))
				}
				for i := range instructions {
					if rec.Instructions[i] != instructions[i] {
						t.Fatalf("instruction %d: got %v, expected %v", i, rec.Instructions[i], instructions[i])
					}
				}
			})
		})
	}
}

func TestInvalidSubstring(t *testing.T) {
	valid := []substring.Instruction{
		{Kind: substring.Literal, Byte: 'x'},
		{Kind: substring.Copy, Offset: 1, Length: 4},
	}
	invalid := []struct{ offset, length int }{
		{offset: 1, length: 0},
		{offset: 1, length: 256},
		{offset: 0, length: 4},
		{offset: 65536, length: 4},
		{offset: -1, length: 4},
	}

	for _, strategy := range strategies {
		m := train(t, strategy, corpus(20, 5))
		expected := encode(t, m, valid)

		for _, tc := range invalid {
			t.Run(fmt.Sprintf("%v/copy(%d,%d)", strategy, tc.offset, tc.length), func(t *testing.T) {
				var buf bytes.Buffer
				require.NoError(t, m.BeginEncoding(&buf))
				require.NoError(t, m.EncodeLiteral('x'))
				err := m.EncodeSubstring(tc.offset, tc.length)
				require.ErrorIs(t, err, ErrInvalidInstruction)
				require.NoError(t, m.EncodeSubstring(1, 4))
				require.NoError(t, m.EndEncoding())

				require.Equal(t, expected, buf.Bytes())
			})
		}
	}
}

func TestBuilderHistograms(t *testing.T) {
	b := newModelBuilder(nil)
	require.ErrorIs(t, b.EncodeSubstring(0, 4), ErrInvalidInstruction)
	require.ErrorIs(t, b.EncodeSubstring(1, 256), ErrInvalidInstruction)
	for stream := range b.histograms {
		require.Zero(t, sumCounts(b.histograms[stream]), "stream %d", stream)
	}

	require.NoError(t, b.EncodeSubstring(0x1234, 0x5f))
	require.Equal(t, uint64(1), b.histograms[streamLiteralLength][lengthNibbleBase+0xf])
	require.Equal(t, uint64(1), b.histograms[streamLengthHigh][0x5])
	require.Equal(t, uint64(1), b.histograms[streamOffset0][0x4])
	require.Equal(t, uint64(1), b.histograms[streamOffset1][0x3])
	require.Equal(t, uint64(1), b.histograms[streamOffset2][0x2])
	require.Equal(t, uint64(1), b.histograms[streamOffset3][0x1])
}

func sumCounts(counts []uint64) (total uint64) {
	for _, c := range counts {
		total += c
	}
	return total
}

func TestStateErrors(t *testing.T) {
	m := NewTripleNibbleHuffman()
	require.Equal(t, Idle, m.State())

	require.ErrorIs(t, m.EncodeLiteral('a'), ErrModelState)
	require.ErrorIs(t, m.EncodeSubstring(1, 4), ErrModelState)
	require.ErrorIs(t, m.EndEncoding(), ErrModelState)
	require.ErrorIs(t, m.BeginEncoding(&bytes.Buffer{}), ErrModelState)
	require.ErrorIs(t, m.AddDocumentToModel([]byte("doc")), ErrModelState)
	require.ErrorIs(t, m.EndModelConstruction(), ErrModelState)
	require.ErrorIs(t, m.Save(&bytes.Buffer{}), ErrModelState)
	require.ErrorIs(t, m.Decode([]byte{0}, &substring.Recorder{}), ErrModelState)
	_, err := m.Clone()
	require.ErrorIs(t, err, ErrModelState)

	require.NoError(t, m.BeginModelConstruction(dictionary))
	require.ErrorIs(t, m.BeginModelConstruction(dictionary), ErrModelState)
	require.ErrorIs(t, m.BeginEncoding(&bytes.Buffer{}), ErrModelState)
	require.ErrorIs(t, m.Load(bytes.NewReader(nil)), ErrModelState)
	require.NoError(t, m.AddDocumentToModel([]byte("doc")))
	require.NoError(t, m.EndModelConstruction())

	require.NoError(t, m.BeginEncoding(&bytes.Buffer{}))
	require.Equal(t, Encoding, m.State())
	require.ErrorIs(t, m.BeginEncoding(&bytes.Buffer{}), ErrModelState)
	require.ErrorIs(t, m.BeginModelConstruction(dictionary), ErrModelState)
	require.ErrorIs(t, m.Save(&bytes.Buffer{}), ErrModelState)
	require.NoError(t, m.EndEncoding())
	require.Equal(t, Ready, m.State())

	var compressed bytes.Buffer
	require.NoError(t, m.BeginEncoding(&compressed))
	require.NoError(t, m.EndEncoding())

	// Retraining a ready model is allowed; decoding fails until it is done.
	require.NoError(t, m.BeginModelConstruction(dictionary))
	var rec substring.Recorder
	require.ErrorIs(t, m.Decode(compressed.Bytes(), &rec), ErrModelState)
	require.Zero(t, rec.Ended)
	require.NoError(t, m.EndModelConstruction())
	require.NoError(t, m.Decode(compressed.Bytes(), &rec))
	require.Equal(t, 1, rec.Ended)
}

func TestTrainingIsDeterministic(t *testing.T) {
	docs := corpus(150, 6)
	for _, strategy := range strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			var a, b bytes.Buffer
			require.NoError(t, train(t, strategy, docs).Save(&a))
			require.NoError(t, train(t, strategy, docs).Save(&b))
			require.Equal(t, a.Bytes(), b.Bytes())
		})
	}
}

func TestSaveLoadIdentity(t *testing.T) {
	docs := corpus(150, 7)
	for _, strategy := range strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			trained := train(t, strategy, docs)
			var saved bytes.Buffer
			require.NoError(t, trained.Save(&saved))

			loaded, err := New(strategy)
			require.NoError(t, err)
			require.NoError(t, loaded.Load(bytes.NewReader(saved.Bytes())))
			require.Equal(t, Ready, loaded.State())

			generic, err := LoadModel(bytes.NewReader(saved.Bytes()))
			require.NoError(t, err)
			require.Equal(t, strategy, generic.Strategy())

			var resaved bytes.Buffer
			require.NoError(t, loaded.Save(&resaved))
			require.Equal(t, saved.Bytes(), resaved.Bytes())

			for _, doc := range corpus(20, 8) {
				instructions := packed(t, doc)
				expected := encode(t, trained, instructions)
				require.Equal(t, expected, encode(t, loaded, instructions))
				require.Equal(t, expected, encode(t, generic, instructions))
				require.Equal(t, instructions, decode(t, loaded, expected))
			}
		})
	}
}

func TestLoadStrategyMismatch(t *testing.T) {
	var saved bytes.Buffer
	require.NoError(t, train(t, Frequency, corpus(10, 9)).Save(&saved))

	m := NewTripleNibbleHuffman()
	err := m.Load(bytes.NewReader(saved.Bytes()))
	require.ErrorIs(t, err, ErrCorruptStream)
	require.Equal(t, Idle, m.State())
}

func TestLoadCorrupt(t *testing.T) {
	var saved bytes.Buffer
	require.NoError(t, train(t, Huffman, corpus(10, 10)).Save(&saved))
	data := saved.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", data[:len(data)/2]},
		{"garbage", []byte{0xff, 0xff, 0xff}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadModel(bytes.NewReader(tc.data))
			require.ErrorIs(t, err, ErrCorruptStream)
		})
	}
}

// savedTables returns the persisted tables of a trained model.
func savedTables(t *testing.T, strategy Strategy) [streamCount][]byte {
	t.Helper()
	tables, err := train(t, strategy, corpus(10, 20)).tables.marshal()
	require.NoError(t, err)
	return tables
}

func modelMessage(strategy Strategy, tables [streamCount][]byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, formatVersion)
	b = protowire.AppendTag(b, fieldStrategy, protowire.BytesType)
	b = protowire.AppendString(b, strategy.String())
	for i, table := range tables {
		b = protowire.AppendTag(b, fieldTables+protowire.Number(i), protowire.BytesType)
		b = protowire.AppendBytes(b, table)
	}
	return b
}

// tableMessage encodes a frequency or Huffman table message with the
// given per-symbol values and no end symbol.
func tableMessage(values []uint64) []byte {
	var packed []byte
	for _, v := range values {
		packed = protowire.AppendVarint(packed, v)
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(len(values)))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, packed)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, 0)
	return b
}

func TestLoadRejectsMalformedTables(t *testing.T) {
	nibbles := func(value uint64) []uint64 {
		values := make([]uint64, nibbleSymbols)
		for i := range values {
			values[i] = value
		}
		return values
	}

	wrapping := nibbles(1)
	wrapping[0], wrapping[1] = 1<<63, 1<<63

	missingNibble := nibbles(5)
	missingNibble[3] = 0

	// Lengths of an incomplete but valid prefix code without symbol 0.
	uncodedNibble := nibbles(4)
	uncodedNibble[0] = 0

	tests := []struct {
		name     string
		strategy Strategy
		stream   int
		table    []byte
	}{
		{"frequency total wraps", Frequency, streamOffset0, tableMessage(wrapping)},
		{"frequency zero count", Frequency, streamOffset3, tableMessage(missingNibble)},
		{"huffman uncoded symbol", Huffman, streamLengthHigh, lengthsMessage(uncodedNibble)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tables := savedTables(t, tc.strategy)
			_, err := LoadModel(bytes.NewReader(modelMessage(tc.strategy, tables)))
			require.NoError(t, err)

			tables[tc.stream] = tc.table
			data := modelMessage(tc.strategy, tables)

			_, err = LoadModel(bytes.NewReader(data))
			require.ErrorIs(t, err, ErrCorruptStream)

			m, err := New(tc.strategy)
			require.NoError(t, err)
			require.ErrorIs(t, m.Load(bytes.NewReader(data)), ErrCorruptStream)
			require.Equal(t, Idle, m.State())
		})
	}
}

// lengthsMessage encodes a Huffman table message, whose lengths are stored
// as raw bytes.
func lengthsMessage(lengths []uint64) []byte {
	raw := make([]byte, len(lengths))
	for i, l := range lengths {
		raw[i] = byte(l)
	}
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(len(raw)))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, raw)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, 0)
	return b
}

func TestDecodeCorrupt(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(strategy.String(), func(t *testing.T) {
			m := train(t, strategy, corpus(20, 11))
			var rec substring.Recorder
			require.ErrorIs(t, m.Decode(nil, &rec), ErrCorruptStream)
			require.Zero(t, rec.Ended)
		})
	}

	t.Run("truncated", func(t *testing.T) {
		m := train(t, Huffman, corpus(20, 12))
		compressed := encode(t, m, packed(t, corpus(1, 13)[0]))

		var rec substring.Recorder
		err := m.Decode(compressed[:len(compressed)-1], &rec)
		require.ErrorIs(t, err, ErrCorruptStream)
		require.Zero(t, rec.Ended)
	})
}

func TestDecodeConsumerError(t *testing.T) {
	m := train(t, Frequency, corpus(20, 14))
	compressed := encode(t, m, packed(t, corpus(1, 15)[0]))

	failure := errors.New("consumer failed")
	err := m.Decode(compressed, failingConsumer{err: failure})
	require.ErrorIs(t, err, failure)
	require.NotErrorIs(t, err, ErrCorruptStream)
}

type failingConsumer struct{ err error }

func (c failingConsumer) EncodeLiteral(byte) error       { return c.err }
func (c failingConsumer) EncodeSubstring(int, int) error { return c.err }
func (c failingConsumer) EndEncoding() error             { return c.err }

func TestCloneEncodesConcurrently(t *testing.T) {
	m := train(t, Frequency, corpus(50, 16))
	docs := corpus(8, 17)

	expected := make([][]byte, len(docs))
	for i, doc := range docs {
		expected[i] = encode(t, m, packed(t, doc))
	}

	results := make([][]byte, len(docs))
	done := make(chan struct{})
	for i, doc := range docs {
		i := i
		clone, err := m.Clone()
		require.NoError(t, err)
		instructions := packed(t, doc)
		go func() {
			defer func() { done <- struct{}{} }()
			var buf bytes.Buffer
			if clone.BeginEncoding(&buf) != nil || substring.Replay(instructions, clone) != nil {
				return
			}
			results[i] = buf.Bytes()
		}()
	}
	for range docs {
		<-done
	}
	require.Equal(t, expected, results)
}

func TestParseStrategy(t *testing.T) {
	for _, strategy := range strategies {
		parsed, err := ParseStrategy(strategy.String())
		require.NoError(t, err)
		require.Equal(t, strategy, parsed)
	}
	_, err := ParseStrategy("lzma")
	require.Error(t, err)
	_, err = New(Strategy(7))
	require.Error(t, err)
}

func BenchmarkEncode(b *testing.B) {
	for _, strategy := range strategies {
		b.Run(strategy.String(), func(b *testing.B) {
			m := train(b, strategy, corpus(200, 18))
			instructions := packed(b, corpus(1, 19)[0])
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				var buf bytes.Buffer
				_ = m.BeginEncoding(&buf)
				_ = substring.Replay(instructions, m)
			}
		})
	}
}

func BenchmarkDecode(b *testing.B) {
	for _, strategy := range strategies {
		b.Run(strategy.String(), func(b *testing.B) {
			m := train(b, strategy, corpus(200, 18))
			compressed := encode(b, m, packed(b, corpus(1, 19)[0]))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				var rec substring.Recorder
				_ = m.Decode(compressed, &rec)
			}
		})
	}
}
