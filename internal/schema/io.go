package schema

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML (or JSON) schema document. Keys other than
// collections and edge_collections are ignored.
func Load(r io.Reader) (Description, error) {
	var d Description
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return Empty(), nil
		}
		return Description{}, fmt.Errorf("decode schema: %w", err)
	}
	return d.Normalize(), nil
}

// LoadFile reads the schema document at path.
func LoadFile(path string) (Description, error) {
	f, err := os.Open(path)
	if err != nil {
		return Description{}, fmt.Errorf("open schema: %w", err)
	}
	defer func() { _ = f.Close() }()
	d, err := Load(f)
	if err != nil {
		return Description{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Dump writes d as YAML.
func Dump(w io.Writer, d Description) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d.Normalize()); err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	return enc.Close()
}
