// FILE: lixenwraith/confschema/format.go
package confschema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Validator rejects a leaf value by returning an error. Returning an *ErrorList
// reports several child failures at once.
type Validator func(value any, node *SchemaNode) error

// Coercer converts raw input, typically a string from the environment or argv,
// into the format's native type. Values it cannot convert are returned unchanged
// so the validator can report them.
type Coercer func(value any) any

// Format is a named validate/coerce pair.
type Format struct {
	Name     string
	Validate Validator
	Coerce   Coercer
}

// TypeMarker selects a built-in type check as a leaf format.
type TypeMarker string

// Built-in type markers. A schema may also name them as plain strings.
const (
	Object  TypeMarker = tagObject
	Array   TypeMarker = tagArray
	String  TypeMarker = tagString
	Number  TypeMarker = tagNumber
	Boolean TypeMarker = tagBoolean
	RegExp  TypeMarker = tagRegExp
)

var builtinMarkers = map[string]TypeMarker{
	tagObject:  Object,
	tagArray:   Array,
	tagString:  String,
	tagNumber:  Number,
	tagBoolean: Boolean,
	tagRegExp:  RegExp,
}

// typeCoercers convert string input for built-in and inferred types.
var typeCoercers = map[string]Coercer{
	tagNumber: func(v any) any {
		s, ok := v.(string)
		if !ok {
			return v
		}
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
		return v
	},
	tagBoolean: func(v any) any {
		if s, ok := v.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b
			}
		}
		return v
	},
	tagArray: func(v any) any {
		if s, ok := v.(string); ok {
			parts := strings.Split(s, ",")
			out := make([]any, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return out
		}
		return v
	},
	tagObject: func(v any) any {
		if s, ok := v.(string); ok {
			var obj map[string]any
			if err := json.Unmarshal([]byte(s), &obj); err == nil {
				return obj
			}
		}
		return v
	},
	tagRegExp: func(v any) any {
		if s, ok := v.(string); ok {
			if re, err := regexp.Compile(s); err == nil {
				return re
			}
		}
		return v
	},
	tagDate: func(v any) any {
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t
			}
		}
		return v
	},
}

// typeValidator asserts that a value carries the given type tag.
func typeValidator(tag string) Validator {
	return func(value any, _ *SchemaNode) error {
		if typeTag(value) != tag {
			return errors.New("must be of type " + tag)
		}
		return nil
	}
}

// whitelistValidator asserts membership in a finite set of values.
func whitelistValidator(whitelist []any) Validator {
	return func(value any, _ *SchemaNode) error {
		for _, allowed := range whitelist {
			if looseEqual(allowed, value) {
				return nil
			}
		}
		encoded, _ := json.Marshal(whitelist)
		return errors.New("must be one of the possible values: " + string(encoded))
	}
}

// looseEqual compares numbers by value regardless of their Go kind.
func looseEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return deepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// asInteger reports the integral value of v, accepting integral floats.
func asInteger(v any) (int64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

// toInt parses decimal strings and integral floats into int. Anything else is returned unchanged.
func toInt(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
		return v
	case bool:
		return v
	}
	if i, ok := asInteger(v); ok {
		return int(i)
	}
	return v
}

func isWindowsNamedPipe(v any) bool {
	return strings.Contains(fmt.Sprint(v), `\\.\pipe\`)
}

func validatePort(value any) bool {
	i, ok := asInteger(value)
	return ok && i >= 0 && i <= 65535
}

// standardFormats are registered by NewRegistry.
func standardFormats() []Format {
	validateInt := func(value any, _ *SchemaNode) error {
		if _, ok := asInteger(value); !ok {
			return errors.New("must be an integer")
		}
		return nil
	}

	return []Format{
		{Name: "*", Validate: func(any, *SchemaNode) error { return nil }},
		{Name: "int", Validate: validateInt, Coerce: toInt},
		{Name: "integer", Validate: validateInt, Coerce: toInt},
		{
			Name: "nat",
			Validate: func(value any, _ *SchemaNode) error {
				if i, ok := asInteger(value); !ok || i < 0 {
					return errors.New("must be a positive integer")
				}
				return nil
			},
			Coerce: toInt,
		},
		{
			Name: "port",
			Validate: func(value any, _ *SchemaNode) error {
				if !validatePort(value) {
					return errors.New("ports must be within range 0 - 65535")
				}
				return nil
			},
			Coerce: toInt,
		},
		{
			Name: "windows_named_pipe",
			Validate: func(value any, _ *SchemaNode) error {
				if !isWindowsNamedPipe(value) {
					return errors.New("must be a valid pipe")
				}
				return nil
			},
		},
		{
			Name: "port_or_windows_named_pipe",
			Validate: func(value any, _ *SchemaNode) error {
				if !isWindowsNamedPipe(value) && !validatePort(value) {
					return errors.New("must be a windows named pipe or a number within range 0 - 65535")
				}
				return nil
			},
			Coerce: func(v any) any {
				if isWindowsNamedPipe(v) {
					return v
				}
				return toInt(v)
			},
		},
	}
}
