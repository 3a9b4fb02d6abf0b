package curve

// serialize describes the keyframes without the default one, whose time
// cannot be encoded.
func serialize[T any](kind string, c *KeyframeContainer[T]) map[string]any {
	keyframes := make([]any, 0, c.Len()-1)
	for i := 1; i < c.Len(); i++ {
		f := c.At(i)
		keyframes = append(keyframes, map[string]any{
			"time":  float64(f.Time),
			"value": f.Value,
		})
	}

	return map[string]any{
		"kind":      kind,
		"initial":   c.At(0).Value,
		"keyframes": keyframes,
	}
}

// Serialize returns the keyframes of the curve.
func (c *Continuous) Serialize() (map[string]any, error) {
	return serialize("continuous", c.frames), nil
}

// Serialize returns the keyframes of the curve.
func (c *Discrete[T]) Serialize() (map[string]any, error) {
	return serialize("discrete", c.frames), nil
}
