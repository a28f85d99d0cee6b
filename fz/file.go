package fz

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/egonelbre/femtozip/model"
)

const magic = "femtozip"

const (
	fieldMagic      protowire.Number = 1
	fieldDictionary protowire.Number = 2
	fieldEncoding   protowire.Number = 3
)

// ErrInvalidFile is returned by Load for data that is not a model file.
var ErrInvalidFile = errors.New("fz: invalid model file")

// Save writes the model to w.
func (m *Model) Save(w io.Writer) error {
	var encoding bytes.Buffer
	if err := m.encoding.Save(&encoding); err != nil {
		return err
	}

	var b []byte
	b = protowire.AppendTag(b, fieldMagic, protowire.BytesType)
	b = protowire.AppendString(b, magic)
	b = protowire.AppendTag(b, fieldDictionary, protowire.BytesType)
	b = protowire.AppendBytes(b, m.packer.Dictionary())
	b = protowire.AppendTag(b, fieldEncoding, protowire.BytesType)
	b = protowire.AppendBytes(b, encoding.Bytes())

	_, err := w.Write(b)
	return err
}

// Load reads a model written by Save.
func Load(r io.Reader) (*Model, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var (
		header     string
		dictionary []byte
		encoding   []byte
		found      bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFile, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldMagic && typ == protowire.BytesType:
			header, n = protowire.ConsumeString(b)
		case num == fieldDictionary && typ == protowire.BytesType:
			dictionary, n = protowire.ConsumeBytes(b)
		case num == fieldEncoding && typ == protowire.BytesType:
			encoding, n = protowire.ConsumeBytes(b)
			found = true
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFile, protowire.ParseError(n))
		}
		b = b[n:]
	}

	if header != magic {
		return nil, fmt.Errorf("%w: missing header", ErrInvalidFile)
	}
	if !found {
		return nil, fmt.Errorf("%w: missing encoding model", ErrInvalidFile)
	}

	m, err := model.LoadModel(bytes.NewReader(encoding))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	return newModel(dictionary, m), nil
}

// SaveFile writes the model to the file at path.
func (m *Model) SaveFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	w := bufio.NewWriter(f)
	if err := m.Save(w); err != nil {
		return err
	}
	return w.Flush()
}

// LoadFile reads a model from the file at path.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(bufio.NewReader(f))
}
