package element

import (
	"encoding/json"
	"reflect"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/canvas"
)

// DefaultDepth bounds how far Sanitize descends into nested host values.
// Known fills and shapes nest two levels.
const DefaultDepth = 3

// Sanitize returns a JSON-safe copy of v. Maps and slices are walked at most
// depth levels; anything deeper is dropped. Functions, channels, unsafe
// pointers and nested host elements are dropped, as are values that fail to
// marshal. The second result is false when v itself was dropped.
func Sanitize(v any, depth int) (any, bool) {
	if v == nil {
		return nil, true
	}
	if _, isElement := v.(canvas.Element); isElement {
		return nil, false
	}
	switch x := v.(type) {
	case string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return x, true
	case map[string]any:
		return sanitizeMap(x, depth)
	case []any:
		return sanitizeSlice(x, depth)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil, false
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, true
		}
		return Sanitize(rv.Elem().Interface(), depth)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || depth <= 0 {
			return nil, false
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return sanitizeMap(m, depth)
	case reflect.Slice, reflect.Array:
		if depth <= 0 {
			return nil, false
		}
		s := make([]any, rv.Len())
		for i := range s {
			s[i] = rv.Index(i).Interface()
		}
		return sanitizeSlice(s, depth)
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}

	// Structs and anything else go through encoding/json so that only
	// exported data survives.
	if depth <= 0 {
		return nil, false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false
	}
	return Sanitize(out, depth)
}

func sanitizeMap(m map[string]any, depth int) (any, bool) {
	if depth <= 0 {
		return nil, false
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if clean, ok := Sanitize(v, depth-1); ok {
			out[k] = clean
		}
	}
	return out, true
}

func sanitizeSlice(s []any, depth int) (any, bool) {
	if depth <= 0 {
		return nil, false
	}
	out := make([]any, 0, len(s))
	for _, v := range s {
		if clean, ok := Sanitize(v, depth-1); ok {
			out = append(out, clean)
		}
	}
	return out, true
}

// read fetches key from a host element and sanitizes it. A failing accessor
// reads as absent.
func read(el canvas.Element, key string) any {
	v, err := el.Get(key)
	if err != nil {
		return nil
	}
	clean, ok := Sanitize(v, DefaultDepth)
	if !ok {
		return nil
	}
	return clean
}
