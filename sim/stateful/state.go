// Package stateful writes the state of simulation entities to files.
package stateful

import (
	"fmt"
	"io"
)

// A State is an entity whose state can be serialized.
type State interface {
	Name() string
	Serialize() (map[string]any, error)
}

// Save writes the states, keyed by name, with the codec.
func Save(w io.Writer, codec Codec, states []State) error {
	data := make(map[string]any, len(states))

	for _, s := range states {
		if _, found := data[s.Name()]; found {
			return fmt.Errorf("state %q saved twice", s.Name())
		}

		serialized, err := s.Serialize()
		if err != nil {
			return fmt.Errorf("serializing %s: %w", s.Name(), err)
		}

		data[s.Name()] = serialized
	}

	return codec.Encode(w, data)
}

// Load reads back what Save wrote.
func Load(r io.Reader, codec Codec) (map[string]any, error) {
	return codec.Decode(r)
}
