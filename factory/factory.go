// Package factory builds simulation objects from JSON creation specs of
// the form {"type": tag, "data": {...}}.
package factory

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	// ErrUnknownType is returned when no builder is registered for a tag.
	ErrUnknownType = errors.New("unknown type")
	// ErrInvalidData is returned when a spec or its data is malformed.
	ErrInvalidData = errors.New("invalid data")
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var envelopeSchema = mustSchema("envelope.schema.json")

// mustSchema compiles an embedded schema. The schemas ship with the
// binary, so a failure is a build defect.
func mustSchema(name string) *jsonschema.Schema {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("factory: reading schema %s: %v", name, err))
	}
	return jsonschema.MustCompileString(name, string(data))
}

// validate checks raw JSON against a schema.
func validate(s *jsonschema.Schema, raw json.RawMessage) error {
	v, err := decodeAny(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return nil
}

// decodeAny decodes a single JSON value, keeping numbers exact so the
// schema can tell integers from fractions.
func decodeAny(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

// Spec is a decoded creation spec.
type Spec struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Builder creates the T registered under one tag.
type Builder[T any] interface {
	Info() BuilderInfo
	Build(data json.RawMessage) (T, error)
}

// BuilderInfo describes a builder and the data fields it accepts.
type BuilderInfo struct {
	Type   string            `json:"type"`
	Desc   string            `json:"desc"`
	Fields map[string]string `json:"data"`
}

// Factory dispatches creation specs to builders by tag.
type Factory[T any] struct {
	builders map[string]Builder[T]
}

// New creates a factory over the given builders. A later builder with
// the same tag replaces an earlier one.
func New[T any](builders ...Builder[T]) *Factory[T] {
	f := &Factory[T]{builders: make(map[string]Builder[T], len(builders))}
	for _, b := range builders {
		f.builders[b.Info().Type] = b
	}
	return f
}

// Create builds a T from a raw creation spec. Missing or null data is
// treated as an empty object.
func (f *Factory[T]) Create(raw json.RawMessage) (T, error) {
	var zero T
	if err := validate(envelopeSchema, raw); err != nil {
		return zero, fmt.Errorf("creation spec: %w", err)
	}
	var spec Spec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return zero, fmt.Errorf("creation spec: %w: %v", ErrInvalidData, err)
	}
	return f.CreateSpec(spec)
}

// CreateSpec builds a T from a decoded spec.
func (f *Factory[T]) CreateSpec(spec Spec) (T, error) {
	var zero T
	b, ok := f.builders[spec.Type]
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrUnknownType, spec.Type)
	}
	data := spec.Data
	if len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = json.RawMessage("{}")
	}
	v, err := b.Build(data)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", spec.Type, err)
	}
	return v, nil
}

// Info lists the registered builders sorted by tag.
func (f *Factory[T]) Info() []BuilderInfo {
	out := make([]BuilderInfo, 0, len(f.builders))
	for _, b := range f.builders {
		out = append(out, b.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// schemaBuilder validates data against a schema before building.
type schemaBuilder[T any] struct {
	info   BuilderInfo
	schema *jsonschema.Schema
	build  func(data json.RawMessage) (T, error)
}

// newBuilder creates a builder whose data must satisfy the named
// embedded schema.
func newBuilder[T any](info BuilderInfo, schema string, build func(json.RawMessage) (T, error)) Builder[T] {
	return &schemaBuilder[T]{info: info, schema: mustSchema(schema), build: build}
}

func (b *schemaBuilder[T]) Info() BuilderInfo { return b.info }

func (b *schemaBuilder[T]) Build(data json.RawMessage) (T, error) {
	if err := validate(b.schema, data); err != nil {
		var zero T
		return zero, err
	}
	return b.build(data)
}
