package binding

import (
	"encoding/json"
	"fmt"
)

// RawCodec persists []byte arguments verbatim.
type RawCodec struct{}

func (RawCodec) Name() string { return "raw" }

func (RawCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("binding: raw codec wants []byte, got %T", v)
	}
	return b, nil
}

func (RawCodec) Unmarshal(data []byte) (any, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// StringCodec persists string arguments verbatim.
type StringCodec struct{}

func (StringCodec) Name() string { return "string" }

func (StringCodec) Marshal(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("binding: string codec wants string, got %T", v)
	}
	return []byte(s), nil
}

func (StringCodec) Unmarshal(data []byte) (any, error) {
	return string(data), nil
}

// JSONCodec persists arguments of type T as JSON. Decoded arguments are
// returned as T.
type JSONCodec[T any] struct {
	name string
}

// NewJSONCodec creates a JSON codec registered as "json:<name>".
func NewJSONCodec[T any](name string) *JSONCodec[T] {
	return &JSONCodec[T]{name: "json:" + name}
}

func (c *JSONCodec[T]) Name() string { return c.name }

func (c *JSONCodec[T]) Marshal(v any) ([]byte, error) {
	switch t := v.(type) {
	case T:
		return json.Marshal(t)
	case *T:
		return json.Marshal(t)
	default:
		return nil, fmt.Errorf("binding: %s wants %T, got %T", c.name, *new(T), v)
	}
}

func (c *JSONCodec[T]) Unmarshal(data []byte) (any, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("binding: %s: %w", c.name, err)
	}
	return out, nil
}
