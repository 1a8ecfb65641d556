package program

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"ember/internal/bound"
)

// Save writes the bound program to path. The write goes through a temp
// file in the same directory so a crash never leaves a torn program.
func Save(p *Program, path string) error {
	w, err := toWire(p)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(w)
	if err != nil {
		return fmt.Errorf("program: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		_ = os.Remove(tmp)
	}()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// EncodeBody serializes a single bound body. Object artifacts use it
// to store lowered trees without exposing the wire layout.
func EncodeBody(b *bound.Body) ([]byte, error) {
	data, err := msgpack.Marshal(bodyToWire(b))
	if err != nil {
		return nil, fmt.Errorf("program: encode body: %w", err)
	}
	return data, nil
}

// DecodeBody reverses EncodeBody.
func DecodeBody(data []byte) (*bound.Body, error) {
	var w wireBody
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("program: decode body: %w", err)
	}
	return bodyFromWire(&w), nil
}

// Load reads a bound program written by Save (or by the front-end).
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("program: %s: %w", path, err)
	}
	return p, nil
}

// Decode deserializes a bound program from its serialized form.
func Decode(data []byte) (*Program, error) {
	var w wireProgram
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return fromWire(&w)
}
