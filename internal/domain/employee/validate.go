package employee

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// OptionValidator checks a value against a dropdown category.
type OptionValidator interface {
	ValidateOption(ctx context.Context, category, value string) error
}

// Validate checks field names and enum values, then dropdown values when
// options is not nil. Fields are checked in name order.
func Validate(ctx context.Context, fields map[string]string, options OptionValidator) error {
	for _, name := range sortedKeys(fields) {
		value := fields[name]
		f, ok := Lookup(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		switch f.Kind {
		case KindEnum:
			if value != "" && len(f.Values) > 0 && !slices.Contains(f.Values, value) {
				return fmt.Errorf("%s: %w", name, ErrInvalidValue)
			}
		case KindOption:
			if options == nil {
				continue
			}
			if err := options.ValidateOption(ctx, f.Category, value); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}

var (
	payloadSchemaOnce sync.Once
	payloadSchema     *jsonschema.Schema
	payloadSchemaErr  error
)

func schemaDocument() ([]byte, error) {
	properties := map[string]any{}
	for _, f := range Fields {
		prop := map[string]any{"type": "string", "maxLength": 1024}
		if f.Kind == KindEnum && len(f.Values) > 0 {
			prop["enum"] = append([]string{""}, f.Values...)
		}
		properties[f.Name] = prop
	}
	return json.Marshal(map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	})
}

// ValidatePayload checks a decoded JSON object against the field table:
// only known fields, string values. It does not consult settings.
func ValidatePayload(payload any) error {
	payloadSchemaOnce.Do(func() {
		doc, err := schemaDocument()
		if err != nil {
			payloadSchemaErr = err
			return
		}
		payloadSchema, payloadSchemaErr = jsonschema.CompileString("employee.json", string(doc))
	})
	if payloadSchemaErr != nil {
		return payloadSchemaErr
	}
	return payloadSchema.Validate(payload)
}
