package stateful

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Codec determines how states are encoded.
type Codec interface {
	Encode(w io.Writer, data map[string]any) error
	Decode(r io.Reader) (map[string]any, error)
}

// JSONCodec encodes states as indented JSON.
type JSONCodec struct{}

// Encode writes the data map as JSON to the provided writer.
func (c JSONCodec) Encode(w io.Writer, data map[string]any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(data)
}

// Decode reads JSON data from the reader and returns it as a map.
func (c JSONCodec) Decode(r io.Reader) (map[string]any, error) {
	decoder := json.NewDecoder(r)

	var data map[string]any

	err := decoder.Decode(&data)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// YAMLCodec encodes states as YAML, the format scenarios are written in.
type YAMLCodec struct{}

// Encode writes the data map as YAML to the provided writer.
func (c YAMLCodec) Encode(w io.Writer, data map[string]any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	err := encoder.Encode(data)
	if err != nil {
		return err
	}

	return encoder.Close()
}

// Decode reads YAML data from the reader and returns it as a map.
func (c YAMLCodec) Decode(r io.Reader) (map[string]any, error) {
	var data map[string]any

	err := yaml.NewDecoder(r).Decode(&data)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// CodecFor picks the codec from the extension of a file name. Files that
// are not YAML are JSON.
func CodecFor(filename string) Codec {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return YAMLCodec{}
	default:
		return JSONCodec{}
	}
}
