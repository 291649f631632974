package util

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type calcArgs struct {
	Operation string   `json:"operation" description:"Operation" enum:"add,subtract"`
	A         float64  `json:"a"`
	B         float64  `json:"b"`
	Precision *int     `json:"precision"`
	Note      string   `json:"note,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(calcArgs{})
	props := schema["properties"].(map[string]any)

	op := props["operation"].(map[string]any)
	assert.Equal(t, "string", op["type"])
	assert.Equal(t, []any{"add", "subtract"}, op["enum"])
	assert.Equal(t, "number", props["a"].(map[string]any)["type"])
	assert.Equal(t, "integer", props["precision"].(map[string]any)["type"])
	assert.Equal(t, map[string]any{"type": "string"}, props["tags"].(map[string]any)["items"])
	assert.ElementsMatch(t, []string{"operation", "a", "b"}, schema["required"])
}

func TestCreateSchemaNonStruct(t *testing.T) {
	assert.Equal(t, emptyObjectSchema(), CreateSchema(42))
	assert.Equal(t, emptyObjectSchema(), CreateSchema(nil))
}

func TestCoerceParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"n":    map[string]any{"type": "integer"},
			"x":    map[string]any{"type": "number"},
			"flag": map[string]any{"type": "boolean"},
			"op":   map[string]any{"type": "string", "enum": []any{"add", "sub"}},
		},
		"required": []any{"n"},
	}

	tests := []struct {
		name    string
		in      map[string]any
		want    map[string]any
		wantErr string
	}{
		{"numeric string", map[string]any{"n": "7", "x": "1.5"}, map[string]any{"n": int64(7), "x": 1.5}, ""},
		{"integral float", map[string]any{"n": 12.0}, map[string]any{"n": int64(12)}, ""},
		{"json number", map[string]any{"n": json.Number("3"), "x": json.Number("2.25")}, map[string]any{"n": int64(3), "x": 2.25}, ""},
		{"bool string", map[string]any{"n": 1, "flag": "true"}, map[string]any{"n": int64(1), "flag": true}, ""},
		{"missing required", map[string]any{"x": 1.0}, nil, "required field is missing"},
		{"fractional integer", map[string]any{"n": 1.5}, nil, "expected type integer"},
		{"word for number", map[string]any{"n": "seven"}, nil, "expected type integer"},
		{"enum violation", map[string]any{"n": 1, "op": "mul"}, nil, "not one of"},
		{"null required", map[string]any{"n": nil, "x": 1.0}, nil, "required field is missing"},
		{"exponent string", map[string]any{"n": "1e3"}, map[string]any{"n": int64(1000)}, ""},
		{"huge exponent string", map[string]any{"n": "1e300"}, nil, "expected type integer"},
		{"infinity string", map[string]any{"n": "Inf"}, nil, "expected type integer"},
		{"huge float", map[string]any{"n": 1e300}, nil, "expected type integer"},
		{"int64 overflow string", map[string]any{"n": "9223372036854775808"}, nil, "expected type integer"},
		{"int64 overflow json number", map[string]any{"n": json.Number("9223372036854775808")}, nil, "expected type integer"},
		{"int64 max string", map[string]any{"n": "9223372036854775807"}, map[string]any{"n": int64(math.MaxInt64)}, ""},
		{"int64 min float", map[string]any{"n": float64(math.MinInt64)}, map[string]any{"n": int64(math.MinInt64)}, ""},
		{"extra field kept", map[string]any{"n": 1, "extra": json.Number("4")}, map[string]any{"n": int64(1), "extra": int64(4)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CoerceParameters(tt.in, schema)
			if tt.wantErr != "" {
				require.Error(t, err)
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Contains(t, vErr.Message, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"x": map[string]any{"type": "integer"}},
		"required":   []any{"x"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"x": 5}, schema))

	err := ValidateParameters(map[string]any{}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "x", vErr.Field)

	err = ValidateParameters(map[string]any{"x": nil}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "required field is missing", vErr.Message)

	err = ValidateParameters(map[string]any{"x": "not-int"}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "expected type integer")
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	out, err = RenderTemplate("Hello {{.name | upper}}, tier {{default \"free\" .tier}}", map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello ADA, tier free", out)

	_, err = RenderTemplate("{{.name", nil)
	assert.Error(t, err)
}
