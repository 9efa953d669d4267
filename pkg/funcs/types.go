// Package funcs implements the side-function registry the model can
// call into. Functions are registered once at startup with a declared
// argument schema; the resolver validates model-issued arguments and
// invokes the handler, reporting expected failures as typed errors
// rather than panics.
package funcs

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler is the signature of a registered side function. Handlers are
// expected to be fast or to perform their own I/O with the given
// context; the result text is fed back into the next model turn.
type Handler func(ctx context.Context, args Args) (string, error)

// Function binds a name to a handler and its declared argument schema.
type Function struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Schema      Schema  `json:"parameters"`
	Handler     Handler `json:"-"`
}

// Schema declares the argument fields of a function.
type Schema map[string]SchemaField

// SchemaField describes a single argument.
type SchemaField struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Format      string `json:"format,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
}

// Args provides typed access to function arguments.
type Args map[string]any

// String returns a string argument, or "" when absent or mistyped.
func (a Args) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Int returns an integer argument, or 0 when absent or mistyped.
func (a Args) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	}
	return 0
}

// Float returns a numeric argument, or 0 when absent or mistyped.
func (a Args) Float(key string) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return 0
}

// Bool returns a boolean argument, or false when absent or mistyped.
func (a Args) Bool(key string) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return false
}

// ValidateArgs checks args against the declared schema: required
// fields must be present and every present field must match its
// declared type and enum.
func (s Schema) ValidateArgs(args Args) error {
	for fieldName, field := range s {
		val, exists := args[fieldName]

		if field.Required && !exists {
			return fmt.Errorf("missing required field: %s", fieldName)
		}
		if !exists {
			continue
		}
		if err := validateFieldType(fieldName, val, field); err != nil {
			return err
		}
	}
	return nil
}

func validateFieldType(fieldName string, val any, field SchemaField) error {
	switch field.Type {
	case "string":
		str, ok := val.(string)
		if !ok {
			return fmt.Errorf("field %s: expected string, got %T", fieldName, val)
		}
		if len(field.Enum) > 0 {
			for _, allowed := range field.Enum {
				if allowedStr, ok := allowed.(string); ok && allowedStr == str {
					return nil
				}
			}
			return fmt.Errorf("field %s: value not in allowed list", fieldName)
		}

	case "number", "integer":
		switch v := val.(type) {
		case float64, int, int64:
			_ = v
		case json.Number:
			if _, err := v.Float64(); err != nil {
				return fmt.Errorf("field %s: expected number, got %q", fieldName, v.String())
			}
		default:
			return fmt.Errorf("field %s: expected number, got %T", fieldName, val)
		}

	case "boolean":
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("field %s: expected boolean, got %T", fieldName, val)
		}

	case "object":
		if _, ok := val.(map[string]any); !ok {
			return fmt.Errorf("field %s: expected object, got %T", fieldName, val)
		}

	case "array":
		if _, ok := val.([]any); !ok {
			return fmt.Errorf("field %s: expected array, got %T", fieldName, val)
		}
	}
	return nil
}

// MarshalJSONSchema renders the schema as a JSON Schema object for the
// provider's function declaration.
func (s Schema) MarshalJSONSchema() json.RawMessage {
	properties := make(map[string]map[string]any, len(s))
	required := make([]string, 0)
	for name, field := range s {
		prop := map[string]any{"type": field.Type}
		if field.Description != "" {
			prop["description"] = field.Description
		}
		if field.Format != "" {
			prop["format"] = field.Format
		}
		if len(field.Enum) > 0 {
			prop["enum"] = field.Enum
		}
		properties[name] = prop
		if field.Required {
			required = append(required, name)
		}
	}

	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return raw
}
