package privatefile

import (
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

var (
	loadPrivateYAML   = Guard(loadYAML)
	decodePrivateYAML = GuardDecoder(decodeYAML)
)

// LoadYAML parses a YAML document into generic values after checking that r
// is not a world-readable file. An empty document yields nil.
func LoadYAML(r io.Reader) (any, error) {
	return loadPrivateYAML(r)
}

// DecodeYAML parses a YAML document into v after checking that r is not a
// world-readable file.
func DecodeYAML(r io.Reader, v any) error {
	return decodePrivateYAML(r, v)
}

// LoadYAMLFile opens path and parses it with LoadYAML.
func LoadYAMLFile(path string) (any, error) {
	return LoadFile(path, loadYAML)
}

func loadYAML(r io.Reader) (any, error) {
	var v any
	if err := decodeYAML(r, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeYAML(r io.Reader, v any) error {
	if err := yaml.NewDecoder(r).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
