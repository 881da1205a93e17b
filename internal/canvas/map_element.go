package canvas

// MapElement is an Element backed by decoded JSON, as stored by the local
// canvas and as produced by tests.
type MapElement map[string]any

func (m MapElement) Type() string {
	t, _ := m["type"].(string)
	return t
}

func (m MapElement) Get(key string) (any, error) {
	return m[key], nil
}
