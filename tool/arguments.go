package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ParseArguments decodes a raw JSON argument payload into a map. An empty
// payload yields an empty map. Numbers are kept as json.Number so coercion
// can distinguish integers from floats.
func ParseArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}

	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("arguments contain trailing data")
	}

	if args == nil {
		args = map[string]any{}
	}

	return args, nil
}

// EncodeArguments serializes arguments to the canonical compact JSON payload.
func EncodeArguments(args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(args); err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}

	return strings.TrimRight(buf.String(), "\n"), nil
}

// FormatResult converts a tool result to its textual form: strings verbatim,
// numbers in shortest form without trailing zeros, everything else as JSON.
func FormatResult(v any) (string, error) {
	switch r := v.(type) {
	case nil:
		return "", nil
	case string:
		return r, nil
	case []byte:
		return string(r), nil
	case fmt.Stringer:
		return r.String(), nil
	case bool:
		return strconv.FormatBool(r), nil
	case int:
		return strconv.Itoa(r), nil
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", r), nil
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", r), nil
	case float32:
		return formatFloat(float64(r)), nil
	case float64:
		return formatFloat(r), nil
	case json.Number:
		return r.String(), nil
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("serialize result: %w", err)
	}

	return strings.TrimRight(buf.String(), "\n"), nil
}

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
