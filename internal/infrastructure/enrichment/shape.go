// Package enrichment talks to person and company data vendors and reshapes
// their answers into the camelCase documents the frontend reads.
package enrichment

import (
	"fmt"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// Shape is a compiled JMESPath projection.
type Shape struct {
	src  string
	expr jmespath.JMESPath
}

func MustShape(expr string) Shape {
	compiled, err := jmespath.Compile(expr)
	if err != nil {
		panic(fmt.Sprintf("enrichment: bad shape %q: %v", expr, err))
	}
	return Shape{src: expr, expr: compiled}
}

// Object applies the shape and returns the resulting object, dropping null
// fields. A nil result means the input held nothing the shape selects.
func (s Shape) Object(data any) (map[string]any, error) {
	if data == nil {
		return nil, nil
	}
	v, err := s.expr.Search(data)
	if err != nil {
		return nil, fmt.Errorf("shape %q: %w", s.src, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		if val != nil {
			out[k] = val
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// List applies the shape to each element of items.
func (s Shape) List(items []any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		m, err := s.Object(it)
		if err != nil {
			return nil, err
		}
		if m != nil {
			out = append(out, m)
		}
	}
	return out, nil
}
