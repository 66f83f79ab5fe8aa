// Package payload validates decoded API responses against a schema and fills
// in fallbacks for fields the backend left out.
//
// Validation is pure: the input map is never modified. Values are expected
// in the shape encoding/json produces (float64, string, bool, map[string]any,
// []any).
package payload

import (
	"fmt"
	"sort"
	"strings"
)

// FieldType is the JSON type a field must carry.
type FieldType string

// Field types.
const (
	TypeNumber FieldType = "number"
	TypeString FieldType = "string"
	TypeBool   FieldType = "boolean"
	TypeObject FieldType = "object"
	TypeArray  FieldType = "array"
)

// Field describes one expected property.
type Field struct {
	Type     FieldType
	Required bool
	// Fallback replaces a missing or null value.
	Fallback any
}

// Schema is a named set of expected properties.
type Schema struct {
	Name   string
	Fields map[string]Field
}

// ViolationKind classifies a schema violation.
type ViolationKind string

// Violation kinds.
const (
	MissingRequired ViolationKind = "missing_required"
	TypeMismatch    ViolationKind = "type_mismatch"
)

// Violation is one field that did not match its schema.
type Violation struct {
	Field    string        `json:"field"`
	Kind     ViolationKind `json:"kind"`
	Expected FieldType     `json:"expected,omitempty"`
	Actual   string        `json:"actual,omitempty"`
}

func (v Violation) String() string {
	if v.Kind == MissingRequired {
		return "Missing required property: " + v.Field
	}
	return fmt.Sprintf("Property %s expected %s, got %s", v.Field, v.Expected, v.Actual)
}

// Result is the outcome of Validate.
type Result struct {
	// Data is a copy of the input with fallbacks applied.
	Data       map[string]any `json:"data"`
	Violations []Violation    `json:"violations,omitempty"`
}

// Valid reports whether no violation was found.
func (r Result) Valid() bool {
	return len(r.Violations) == 0
}

// Summary joins the violations into one line, or "" when valid.
func (r Result) Summary() string {
	msgs := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		msgs[i] = v.String()
	}
	return strings.Join(msgs, ", ")
}

// Validate checks raw against schema.
//
// A required field that is absent is a violation. A present, non-null field
// of the wrong type is a violation and is kept as is. Absent and null fields
// receive the schema fallback whether or not they are required. Fields the
// schema does not mention are copied through. Violations are ordered by
// field name.
func Validate(raw map[string]any, schema Schema) Result {
	data := make(map[string]any, len(raw)+len(schema.Fields))
	for k, v := range raw {
		data[k] = v
	}

	var violations []Violation
	for _, name := range fieldNames(schema) {
		field := schema.Fields[name]
		v, present := raw[name]

		if !present && field.Required {
			violations = append(violations, Violation{Field: name, Kind: MissingRequired})
		}
		if present && v != nil {
			if actual := typeOf(v); actual != string(field.Type) {
				violations = append(violations, Violation{
					Field:    name,
					Kind:     TypeMismatch,
					Expected: field.Type,
					Actual:   actual,
				})
			}
		}
		if !present || v == nil {
			data[name] = clone(field.Fallback)
		}
	}

	return Result{Data: data, Violations: violations}
}

// Get walks a dotted path through nested maps. A broken path yields fallback
// and false.
func Get(obj map[string]any, path string, fallback any) (any, bool) {
	var cur any = obj
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return fallback, false
		}
		if cur, ok = m[key]; !ok {
			return fallback, false
		}
	}
	if cur == nil {
		return fallback, true
	}
	return cur, true
}

func fieldNames(s Schema) []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func typeOf(v any) string {
	switch v.(type) {
	case float64, float32, int, int64, int32, uint, uint64, uint32:
		return string(TypeNumber)
	case string:
		return string(TypeString)
	case bool:
		return string(TypeBool)
	case map[string]any:
		return string(TypeObject)
	case []any:
		return string(TypeArray)
	default:
		return fmt.Sprintf("%T", v)
	}
}

// clone deep-copies JSON-shaped fallbacks so callers cannot alter a schema.
func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = clone(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = clone(e)
		}
		return out
	default:
		return v
	}
}
