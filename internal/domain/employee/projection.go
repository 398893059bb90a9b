package employee

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Project turns a stored document into an Employee. It never fails: values
// that are not strings or numbers become "".
func Project(raw map[string]any, key string) Employee {
	e := Employee{ID: key, OriginalData: raw}
	nested, _ := raw[scheduleKey].(map[string]any)
	for _, f := range Fields {
		value, ok := raw[f.Wire]
		if f.IsDay() {
			if v, found := nested[f.Wire]; found && v != nil {
				value, ok = v, true
			}
		}
		if !ok {
			continue
		}
		*f.ref(&e) = scalar(value)
	}
	e.CreatedAt = scalar(raw["createdAt"])
	e.DeletedAt = scalar(raw["deletedAt"])
	return e
}

func scalar(v any) string {
	switch typed := v.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case json.Number:
		return typed.String()
	default:
		return ""
	}
}

// ToWire builds a stored document from local field values.
func ToWire(fields map[string]string) (map[string]any, error) {
	doc := map[string]any{}
	for name, value := range fields {
		f, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		if f.IsDay() {
			schedule, _ := doc[scheduleKey].(map[string]any)
			if schedule == nil {
				schedule = map[string]any{}
				doc[scheduleKey] = schedule
			}
			schedule[f.Wire] = value
			continue
		}
		doc[f.Wire] = value
	}
	return doc, nil
}

// PatchPaths maps local field values to document-relative paths, ready to
// be prefixed with collection/key for a multi-path update.
func PatchPaths(patch map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(patch))
	for name, value := range patch {
		f, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		out[f.WirePath()] = value
	}
	return out, nil
}

// FieldNames returns the editable local field names in table order.
func FieldNames() []string {
	out := make([]string, len(Fields))
	for i, f := range Fields {
		out[i] = f.Name
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
