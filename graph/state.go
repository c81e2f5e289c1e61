package graph

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// State is the mutable record threaded through a workflow run.
//
// Keys are field names declared in the graph's Schema; values are the
// current field values. Nodes never mutate State in place: they return a
// partial State and the Executor merges it through Schema.Apply, which is
// the only place mutation legally happens.
type State map[string]any

// Clone returns a shallow copy of the state. Field values are shared;
// reducers never mutate existing values, they replace or re-slice them.
func (s State) Clone() State {
	clone := make(State, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}

// Policy selects how a field's updates are merged into the current state.
type Policy int

const (
	// Overwrite replaces the existing value with the update (last write wins).
	Overwrite Policy = iota

	// Append concatenates the update, which must be a sequence, to the right
	// of the existing sequence. Append is deliberately not idempotent:
	// applying the same partial twice appends twice.
	Append
)

// Field declares one state field: its merge policy and a constructor for
// its initial value.
type Field struct {
	Policy  Policy
	Default func() any
}

// Schema declares the set of legal state fields for a graph.
//
// A partial update (or caller-supplied input) naming a field outside the
// schema is a *SchemaError; reads and writes of undeclared fields never
// succeed silently.
type Schema struct {
	fields map[string]Field
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{fields: make(map[string]Field)}
}

// AddField declares a field. A nil Default is normalized to one returning
// nil, which is a valid initial value for Overwrite fields.
func (s *Schema) AddField(name string, f Field) *Schema {
	if f.Default == nil {
		f.Default = func() any { return nil }
	}
	s.fields[name] = f
	return s
}

// Fields returns the declared field names in sorted order.
func (s *Schema) Fields() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is a declared field.
func (s *Schema) Has(name string) bool {
	_, ok := s.fields[name]
	return ok
}

// Init builds the run's initial state: every declared field starts at its
// default, then caller input is merged on top through the field reducers.
func (s *Schema) Init(input State) (State, error) {
	state := make(State, len(s.fields))
	for name, f := range s.fields {
		state[name] = f.Default()
	}
	if len(input) == 0 {
		return state, nil
	}
	return s.Apply(state, input)
}

// Apply merges a partial update into the current state and returns the new
// state. The current state is not modified.
//
// For each key in partial: Overwrite replaces the value, Append concatenates
// the update sequence after the existing one. A key not declared in the
// schema returns a *SchemaError and no partial application takes place.
func (s *Schema) Apply(current State, partial State) (State, error) {
	for key := range partial {
		if !s.Has(key) {
			return nil, &SchemaError{Field: key}
		}
	}
	result := current.Clone()
	for key, update := range partial {
		f := s.fields[key]
		switch f.Policy {
		case Append:
			merged, err := appendValues(result[key], update)
			if err != nil {
				return nil, &SchemaError{Field: key, Reason: err.Error()}
			}
			result[key] = merged
		default:
			result[key] = update
		}
	}
	return result, nil
}

// appendValues concatenates update after existing. Both must be sequences.
// When the two slices share a concrete element type the result keeps that
// type; otherwise both are flattened to []any (this happens after a
// checkpoint round-trip, where typed slices come back as []any).
func appendValues(existing, update any) (any, error) {
	if update == nil {
		return nil, fmt.Errorf("append update must be a sequence, got nil")
	}
	uv := reflect.ValueOf(update)
	if uv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("append update must be a sequence, got %T", update)
	}
	if existing == nil {
		return update, nil
	}
	ev := reflect.ValueOf(existing)
	if ev.Kind() != reflect.Slice {
		return nil, fmt.Errorf("append target is not a sequence, got %T", existing)
	}
	if ev.Type() == uv.Type() {
		merged := reflect.MakeSlice(ev.Type(), 0, ev.Len()+uv.Len())
		merged = reflect.AppendSlice(merged, ev)
		merged = reflect.AppendSlice(merged, uv)
		return merged.Interface(), nil
	}
	merged := make([]any, 0, ev.Len()+uv.Len())
	for i := 0; i < ev.Len(); i++ {
		merged = append(merged, ev.Index(i).Interface())
	}
	for i := 0; i < uv.Len(); i++ {
		merged = append(merged, uv.Index(i).Interface())
	}
	return merged, nil
}

// StringValue reads a string field, tolerating a nil value.
func StringValue(s State, key string) string {
	v, _ := s[key].(string)
	return v
}

// IntValue reads an integer field. JSON checkpoint round-trips decode
// numbers as float64, so both forms are accepted.
func IntValue(s State, key string) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Decode re-materializes a state field into a typed destination via a JSON
// round-trip. It is the supported way to read sequence fields that may have
// been restored from a checkpoint (where element types degrade to
// map[string]any).
func Decode(s State, key string, dest any) error {
	v, ok := s[key]
	if !ok || v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state field %q: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("state field %q: %w", key, err)
	}
	return nil
}
