package domain

import (
	"encoding/json"
	"fmt"
)

// DataType is the declared type of a story variable.
type DataType string

const (
	DataTypeNumber  DataType = "number"
	DataTypeString  DataType = "string"
	DataTypeBoolean DataType = "boolean"
)

// StoryVariable is a variable defined once per story.
type StoryVariable struct {
	ID           string   `json:"id" yaml:"id" mapstructure:"id"`
	Name         string   `json:"name" yaml:"name" mapstructure:"name"`
	DataType     DataType `json:"dataType" yaml:"dataType" mapstructure:"dataType"`
	InitialValue any      `json:"initialValue" yaml:"initialValue" mapstructure:"initialValue"`
}

// CheckInitialValue verifies that the initial value matches the declared type.
// A nil initial value is accepted and stands for the type's zero value.
func (v StoryVariable) CheckInitialValue() error {
	if v.InitialValue == nil {
		return nil
	}
	ok := false
	switch v.DataType {
	case DataTypeNumber:
		_, ok = ToNumber(v.InitialValue)
	case DataTypeString:
		_, ok = v.InitialValue.(string)
	case DataTypeBoolean:
		_, ok = v.InitialValue.(bool)
	default:
		return fmt.Errorf("variable %s has unknown data type %q", v.Name, v.DataType)
	}
	if !ok {
		return fmt.Errorf("variable %s initial value %v is not a %s", v.Name, v.InitialValue, v.DataType)
	}
	return nil
}

// VariableStore is the mutable name to value state of one reading session.
// Numbers are normalised to float64, lists to []any.
type VariableStore map[string]any

// Clone returns a deep copy of the store.
func (s VariableStore) Clone() VariableStore {
	c := make(VariableStore, len(s))
	for k, v := range s {
		c[k] = CloneValue(v)
	}
	return c
}

// CloneValue deep-copies list and map shaped values.
func CloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		c := make([]any, len(t))
		for i, item := range t {
			c[i] = CloneValue(item)
		}
		return c
	case []string:
		c := make([]any, len(t))
		for i, item := range t {
			c[i] = item
		}
		return c
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, item := range t {
			c[k] = CloneValue(item)
		}
		return c
	default:
		if n, ok := ToNumber(v); ok {
			return n
		}
		return v
	}
}

// ToNumber converts any Go numeric value to float64.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Truthy reports the truthiness of a store value.
// false, 0, "", nil and empty lists are falsy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		if n, ok := ToNumber(v); ok {
			return n != 0
		}
		return true
	}
}
