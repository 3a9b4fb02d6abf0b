package event

import (
	"sort"

	"github.com/sarchlab/curvesim/sim/timing"
)

// ParamMap carries the handler-defined configuration of one event. The event
// system does not interpret it beyond hashing it into the event identity.
type ParamMap map[string]any

func (p ParamMap) clone() ParamMap {
	c := make(ParamMap, len(p))
	for k, v := range p {
		c[k] = v
	}

	return c
}

func (p ParamMap) sortedKeys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Has tells if the key is set.
func (p ParamMap) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Float returns the value under key as a float64, or def if the key is
// missing or not numeric.
func (p ParamMap) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case timing.VTimeInSec:
		return float64(v)
	default:
		return def
	}
}

// Time returns the value under key as a time.
func (p ParamMap) Time(key string, def timing.VTimeInSec) timing.VTimeInSec {
	if !p.Has(key) {
		return def
	}

	return timing.VTimeInSec(p.Float(key, float64(def)))
}

// Int returns the value under key as an int. Floats are truncated.
func (p ParamMap) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint:
		return int(v)
	case uint32:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	default:
		return def
	}
}

// String returns the value under key as a string.
func (p ParamMap) String(key string, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}

	return def
}

// Bool returns the value under key as a bool.
func (p ParamMap) Bool(key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}

	return def
}
