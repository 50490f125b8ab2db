package tool

import (
	"fmt"

	"github.com/hupe1980/chatmesh/core"
)

// ValidateParams validates arguments against a minimal JSON-Schema-like map
// (type, properties, required). Extra fields are allowed; failures are
// reported as *core.ValidationError naming the offending field.
func ValidateParams(params map[string]any, schema map[string]any) error {
	for _, field := range requiredList(schema) {
		if _, exists := params[field]; !exists {
			return core.NewValidationError(field, "required field is missing")
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for field, value := range params {
		propSchema, exists := properties[field]
		if !exists {
			continue
		}
		propMap, ok := propSchema.(map[string]any)
		if !ok {
			continue
		}
		expectedType, _ := propMap["type"].(string)
		if !isValidType(value, expectedType) {
			return core.NewValidationError(field, fmt.Sprintf("expected type %s, got %T", expectedType, value))
		}
	}
	return nil
}

// coerceNumbers converts arguments declared as number or integer to float64,
// the representation JSON decoding produces, so tool functions see a single
// numeric type regardless of how they were called. Non-numeric fields pass
// through untouched; the input map is not modified.
func coerceNumbers(params map[string]any, schema map[string]any) map[string]any {
	properties, _ := schema["properties"].(map[string]any)
	if len(properties) == 0 {
		return params
	}

	out := make(map[string]any, len(params))
	for field, value := range params {
		if propMap, ok := properties[field].(map[string]any); ok {
			if t, _ := propMap["type"].(string); t == "number" || t == "integer" {
				if f, ok := toFloat64(value); ok {
					out[field] = f
					continue
				}
			}
		}
		out[field] = value
	}
	return out
}

// toFloat64 widens any numeric value to float64.
func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

// requiredList normalizes the schema's required entry, which may be []string
// (hand-written schemas) or []any (JSON-decoded schemas).
func requiredList(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// isValidType checks a value against the expected JSON schema type. JSON
// unmarshaling produces float64 for all numbers, so integer accepts whole
// float64 values.
func isValidType(value any, expectedType string) bool {
	if value == nil {
		return true
	}
	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		switch value.(type) {
		case []any, []string:
			return true
		}
		return false
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
