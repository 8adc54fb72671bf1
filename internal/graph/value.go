package graph

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ValueType is the scalar type of an attribute.
type ValueType string

const (
	TypeString ValueType = "string"
	TypeInt    ValueType = "int"
	TypeFloat  ValueType = "float"
	TypeBool   ValueType = "bool"
	TypeEnum   ValueType = "enum"
)

// Valid reports whether vt is one of the known value types.
func (vt ValueType) Valid() bool {
	switch vt {
	case TypeString, TypeInt, TypeFloat, TypeBool, TypeEnum:
		return true
	}
	return false
}

// Parse converts the textual form of a value. Parsing is strict: surrounding
// whitespace is significant for every type except string, where it is kept.
func (vt ValueType) Parse(text string, literals []string) (any, error) {
	switch vt {
	case TypeString:
		return text, nil
	case TypeInt:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", text)
		}
		return n, nil
	case TypeFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", text)
		}
		return f, nil
	case TypeBool:
		switch strings.ToLower(text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a boolean", text)
	case TypeEnum:
		if slices.Contains(literals, text) {
			return text, nil
		}
		return nil, fmt.Errorf("%q is not one of %s", text, strings.Join(literals, ", "))
	}
	return nil, fmt.Errorf("unknown value type %q", vt)
}

// Check verifies that v is a well-typed value for vt.
func (vt ValueType) Check(v any, literals []string) error {
	switch vt {
	case TypeString:
		if _, ok := v.(string); ok {
			return nil
		}
	case TypeInt:
		if _, ok := v.(int64); ok {
			return nil
		}
	case TypeFloat:
		if _, ok := v.(float64); ok {
			return nil
		}
	case TypeBool:
		if _, ok := v.(bool); ok {
			return nil
		}
	case TypeEnum:
		if s, ok := v.(string); ok {
			if slices.Contains(literals, s) {
				return nil
			}
			return fmt.Errorf("%q is not one of %s", s, strings.Join(literals, ", "))
		}
	}
	return fmt.Errorf("value %v (%T) is not a %s", v, v, vt)
}

// FormatValue renders a value as table text. Nil renders as the empty string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return strconv.FormatFloat(x, 'g', -1, 64)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// normalize coerces loosely typed inputs (int, float32) into the canonical
// representation stored in the graph.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}
