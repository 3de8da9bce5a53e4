// FILE: lixenwraith/confschema/helper.go
package confschema

import (
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"time"
)

// Type tags reported by typeTag. They double as the names of the built-in format markers.
const (
	tagObject   = "Object"
	tagArray    = "Array"
	tagString   = "String"
	tagNumber   = "Number"
	tagBoolean  = "Boolean"
	tagRegExp   = "RegExp"
	tagDate     = "Date"
	tagFunction = "Function"
	tagNull     = "Null"
)

var (
	regexpType = reflect.TypeOf((*regexp.Regexp)(nil))
	timeType   = reflect.TypeOf(time.Time{})
)

// typeTag classifies a value into one of the coarse type tags used for
// built-in format markers and default-type inference.
func typeTag(v any) string {
	if v == nil {
		return tagNull
	}

	rt := reflect.TypeOf(v)
	switch rt {
	case regexpType:
		return tagRegExp
	case timeType:
		return tagDate
	}

	switch rt.Kind() {
	case reflect.String:
		return tagString
	case reflect.Bool:
		return tagBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return tagNumber
	case reflect.Slice, reflect.Array:
		return tagArray
	case reflect.Func:
		return tagFunction
	case reflect.Pointer:
		rv := reflect.ValueOf(v)
		if rv.IsNil() {
			return tagNull
		}
		if rt.Elem().Kind() == reflect.Struct {
			return tagObject
		}
		return typeTag(rv.Elem().Interface())
	}
	return tagObject
}

// jsTypeName is the lower-case type word used in path error messages.
func jsTypeName(v any) string {
	switch typeTag(v) {
	case tagString:
		return "string"
	case tagNumber:
		return "number"
	case tagBoolean:
		return "boolean"
	case tagFunction:
		return "function"
	}
	return "object"
}

// isContainer reports whether walk can descend into v.
func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// deepCopy returns an independent copy of a value tree. Typed maps and slices
// are normalized to map[string]any and []any on the way, so every tree held by
// a Config has a single shape.
func deepCopy(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = deepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = deepCopy(child)
		}
		return out
	case string, bool, int, int64, float64, *regexp.Regexp, time.Time:
		return val
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = deepCopy(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any(nil)
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = deepCopy(rv.Index(i).Interface())
		}
		return out
	}
	return v
}

// sortedKeys returns the keys of m in lexical order so tree walks are deterministic.
func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

// flattenMap converts a nested map into leaf paths. Empty maps are kept as leaves.
func flattenMap(nested map[string]any, prefix string) map[string]any {
	flat := make(map[string]any)

	for key, value := range nested {
		newPath := joinPath(prefix, key)

		if nestedMap, isMap := value.(map[string]any); isMap && len(nestedMap) > 0 {
			for subPath, subValue := range flattenMap(nestedMap, newPath) {
				flat[subPath] = subValue
			}
			continue
		}
		flat[newPath] = value
	}

	return flat
}

// deepEqual compares two value trees after normalization.
func deepEqual(a, b any) bool {
	return reflect.DeepEqual(deepCopy(a), deepCopy(b))
}
