package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the layout of a models file.
type File struct {
	Models []EntityDef `yaml:"models"`
}

// LoadFile reads a YAML models file into a new registry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read models file: %w", err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes YAML model definitions. Unknown keys are rejected.
func Parse(data []byte) (*Registry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode models: %w", err)
	}

	reg := NewRegistry()
	for _, def := range f.Models {
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
