package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CreateSchema creates a JSON schema from a Go struct using reflection.
//
// Field names follow the json tag; fields tagged omitempty or declared as
// pointers are optional. The description tag becomes the property description
// and a comma separated enum tag restricts the accepted values.
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t == nil {
		return emptyObjectSchema()
	}

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return emptyObjectSchema()
	}

	properties := make(map[string]any)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				fieldName = parts[0]
			}
		}

		fieldSchema := map[string]any{
			"type": getJSONType(field.Type),
		}

		if items := itemsSchema(field.Type); items != nil {
			fieldSchema["items"] = items
		}

		if description := field.Tag.Get("description"); description != "" {
			fieldSchema["description"] = description
		}

		if enum := field.Tag.Get("enum"); enum != "" {
			values := make([]any, 0)
			for _, v := range strings.Split(enum, ",") {
				if v = strings.TrimSpace(v); v != "" {
					values = append(values, v)
				}
			}
			fieldSchema["enum"] = values
		}

		properties[fieldName] = fieldSchema

		if !hasOmitEmpty(jsonTag) && !isPointer(field.Type) {
			required = append(required, fieldName)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func emptyObjectSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// ValidateParameters validates parameters against a JSON schema without
// modifying them.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	if err := checkRequired(params, schema); err != nil {
		return err
	}

	properties, _ := schema["properties"].(map[string]any)
	for fieldName, value := range params {
		propMap, ok := properties[fieldName].(map[string]any)
		if !ok {
			continue // Allow extra fields
		}

		expectedType, _ := propMap["type"].(string)
		if !isValidType(value, expectedType) {
			return &ValidationError{
				Field:   fieldName,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expectedType, value),
			}
		}

		if err := checkEnum(fieldName, value, propMap); err != nil {
			return err
		}
	}

	return nil
}

// CoerceParameters validates params against schema and returns a copy where
// unambiguous mismatches are converted to the declared type: numeric strings
// and json.Number values become numbers, integral floats become integers and
// "true"/"false" strings become booleans. Anything else that does not match
// yields a ValidationError.
func CoerceParameters(params map[string]any, schema map[string]any) (map[string]any, error) {
	if err := checkRequired(params, schema); err != nil {
		return nil, err
	}

	properties, _ := schema["properties"].(map[string]any)
	out := make(map[string]any, len(params))

	for fieldName, value := range params {
		propMap, ok := properties[fieldName].(map[string]any)
		if !ok {
			out[fieldName] = normalizeNumber(value)
			continue
		}

		expectedType, _ := propMap["type"].(string)

		coerced, ok := coerce(value, expectedType)
		if !ok {
			return nil, &ValidationError{
				Field:   fieldName,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expectedType, value),
			}
		}

		if err := checkEnum(fieldName, coerced, propMap); err != nil {
			return nil, err
		}

		out[fieldName] = coerced
	}

	return out, nil
}

// checkRequired treats an explicit null like an absent field.
func checkRequired(params map[string]any, schema map[string]any) error {
	for _, fieldName := range requiredFields(schema) {
		if params[fieldName] == nil {
			return &ValidationError{
				Field:   fieldName,
				Message: "required field is missing",
			}
		}
	}

	return nil
}

// requiredFields accepts both []string (reflection built) and []any (JSON
// decoded) shapes.
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func checkEnum(fieldName string, value any, propMap map[string]any) error {
	var allowed []string

	switch enum := propMap["enum"].(type) {
	case []string:
		allowed = enum
	case []any:
		for _, v := range enum {
			allowed = append(allowed, fmt.Sprint(v))
		}
	default:
		return nil
	}

	if len(allowed) == 0 || value == nil {
		return nil
	}

	got := fmt.Sprint(value)
	for _, a := range allowed {
		if a == got {
			return nil
		}
	}

	return &ValidationError{
		Field:   fieldName,
		Value:   value,
		Message: fmt.Sprintf("value %q is not one of [%s]", got, strings.Join(allowed, ", ")),
	}
}

func coerce(value any, expectedType string) (any, bool) {
	if value == nil {
		return nil, true
	}

	value = normalizeNumber(value)

	switch expectedType {
	case "string":
		s, ok := value.(string)
		return s, ok
	case "integer":
		switch v := value.(type) {
		case int64:
			return v, true
		case int:
			return int64(v), true
		case float64:
			return floatToInt(v)
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err == nil {
				return i, true
			}
			if errors.Is(err, strconv.ErrRange) {
				return nil, false
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return floatToInt(f)
			}
			return nil, false
		}
		return nil, false
	case "number":
		switch v := value.(type) {
		case int64:
			return float64(v), true
		case int:
			return float64(v), true
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
			return nil, false
		}
		return nil, false
	case "boolean":
		switch v := value.(type) {
		case bool:
			return v, true
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
		return nil, false
	default:
		if isValidType(value, expectedType) {
			return value, true
		}
		return nil, false
	}
}

// floatToInt accepts integral values inside the int64 range only.
func floatToInt(f float64) (any, bool) {
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return nil, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, false
	}
	return int64(f), true
}

// normalizeNumber converts json.Number into int64 when integral, float64
// otherwise.
func normalizeNumber(value any) any {
	n, ok := value.(json.Number)
	if !ok {
		return value
	}

	if i, err := n.Int64(); err == nil {
		return i
	}

	if f, err := n.Float64(); err == nil {
		return f
	}

	return n.String()
}

// getJSONType returns the JSON schema type for a given Go type.
func getJSONType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct, reflect.Interface:
		return "object"
	case reflect.Ptr:
		return getJSONType(t.Elem())
	default:
		return "string"
	}
}

func itemsSchema(t reflect.Type) map[string]any {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return nil
	}

	return map[string]any{"type": getJSONType(t.Elem())}
}

// hasOmitEmpty checks if a JSON tag has the "omitempty" option.
func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}

// isPointer checks if a type is a pointer.
func isPointer(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr
}

// isValidType checks if a value is valid according to the expected JSON schema type.
func isValidType(value any, expectedType string) bool {
	if value == nil {
		return true // nil is valid for any type
	}

	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON unmarshaling often produces float64 for numbers
			return v == float64(int64(v))
		case json.Number:
			_, err := v.Int64()
			return err == nil
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64, json.Number:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true // Unknown types are assumed valid
	}
}
