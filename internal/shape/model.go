// Package shape projects handler results onto a declared response model.
package shape

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind is the type a model field holds.
type Kind int

const (
	Any Kind = iota
	String
	Int
)

func (k Kind) String() string {
	switch k {
	case String:
		return "str"
	case Int:
		return "int"
	default:
		return "any"
	}
}

// Field declares one output field. A field with no default is required.
type Field struct {
	Name       string
	Kind       Kind
	Default    any
	HasDefault bool
}

// Model is an ordered set of output fields.
type Model struct {
	Name   string
	Fields []Field
}

// Options selects which fields are emitted.
type Options struct {
	Include      []string // when non-empty, only these fields
	Exclude      []string
	ExcludeUnset bool // omit fields the handler did not set instead of filling defaults
}

// Member is a key/value pair of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is a JSON object that keeps its member order.
type Object []Member

// Get returns the value for key.
func (o Object) Get(key string) (any, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(m.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", m.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FieldError reports a handler result that does not fit the model.
type FieldError struct {
	Model string
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("response model %s: field %s: %s", e.Model, e.Field, e.Msg)
}

// Project builds the response for data. Keys of data that the model does not
// declare are dropped; required fields must be present with the declared kind,
// whether or not they end up emitted.
func (m Model) Project(data map[string]any, opts Options) (Object, error) {
	include := set(opts.Include)
	exclude := set(opts.Exclude)

	out := make(Object, 0, len(m.Fields))
	for _, f := range m.Fields {
		v, ok := data[f.Name]
		if !ok {
			if !f.HasDefault {
				return nil, &FieldError{Model: m.Name, Field: f.Name, Msg: "field required"}
			}
			if opts.ExcludeUnset {
				continue
			}
			v = f.Default
		} else if err := f.check(v); err != nil {
			return nil, &FieldError{Model: m.Name, Field: f.Name, Msg: err.Error()}
		}

		if len(include) > 0 && !include[f.Name] {
			continue
		}
		if exclude[f.Name] {
			continue
		}
		out = append(out, Member{Key: f.Name, Value: v})
	}
	return out, nil
}

func (f Field) check(v any) error {
	switch f.Kind {
	case String:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected %s, got %T", f.Kind, v)
		}
	case Int:
		switch v.(type) {
		case int, int8, int16, int32, int64:
		default:
			return fmt.Errorf("expected %s, got %T", f.Kind, v)
		}
	}
	return nil
}

func set(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	s := make(map[string]bool, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}
