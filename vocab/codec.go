package vocab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
)

type file struct {
	Version int      `cbor:"1,keyasint"`
	Values  []string `cbor:"2,keyasint"`
}

const fileVersion = 1

func (v *Vocabulary) WriteTo(w io.Writer) (int64, error) {
	bts, err := cbor.Marshal(file{Version: fileVersion, Values: v.values})
	if err != nil {
		return 0, err
	}

	n, err := w.Write(bts)
	return int64(n), err
}

// Read decodes a vocabulary written by WriteTo.
func Read(r io.Reader) (*Vocabulary, error) {
	var f file
	if err := cbor.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVocabulary, err)
	}

	if f.Version != fileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidVocabulary, f.Version)
	}

	if len(f.Values) < len(specials) {
		return nil, fmt.Errorf("%w: missing special tokens", ErrInvalidVocabulary)
	}

	for i, s := range specials {
		if f.Values[i] != s {
			return nil, fmt.Errorf("%w: id %d is %q, want %q", ErrInvalidVocabulary, i, f.Values[i], s)
		}
	}

	return newVocabulary(f.Values, false)
}

func (v *Vocabulary) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	w := bufio.NewWriter(f)
	if _, err := v.WriteTo(w); err != nil {
		f.Close()
		return err
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(f.Name(), path)
}

func Load(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	v, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return v, nil
}
