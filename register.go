// FILE: lixenwraith/confschema/register.go
package confschema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Struct tags read by SchemaFromStruct in addition to the key tag.
const (
	TagEnv       = "env"
	TagArg       = "arg"
	TagDoc       = "doc"
	TagFormat    = "format"
	TagSensitive = "sensitive"
	TagRequired  = "required"
)

// SchemaFromStruct derives a schema definition from a struct holding defaults.
// Keys come from tagName ("json" when empty), nested structs become groups, and
// every other exported field becomes a leaf whose default is the field value.
// The env, arg, doc, format, sensitive and required tags fill the matching attributes.
// Leaves without a format tag infer their format from the default.
func SchemaFromStruct(structWithDefaults any, tagName string) (map[string]any, error) {
	if tagName == "" {
		tagName = "json"
	}

	v := reflect.ValueOf(structWithDefaults)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: SchemaFromStruct requires a non-nil struct pointer or value", ErrIncorrectUsage)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: SchemaFromStruct requires a struct or struct pointer, got %T", ErrIncorrectUsage, structWithDefaults)
	}

	var errs []string
	schema := schemaFields(v, tagName, "", &errs)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: failed to derive %d field(s): %s", ErrSchemaInvalid, len(errs), strings.Join(errs, "; "))
	}
	return schema, nil
}

// schemaFields handles the recursive field walk.
func schemaFields(v reflect.Value, tagName, fieldPath string, errs *[]string) map[string]any {
	t := v.Type()
	group := make(map[string]any, t.NumField())

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get(tagName)
		if tag == "-" {
			continue
		}
		key := field.Name
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			key = name
		}
		if _, taken := group[key]; taken {
			*errs = append(*errs, fmt.Sprintf("field %s%s: duplicate key %q", fieldPath, field.Name, key))
			continue
		}

		isStruct := fieldValue.Kind() == reflect.Struct && !isOpaqueStruct(fieldValue.Type())
		isPtrToStruct := fieldValue.Kind() == reflect.Pointer && fieldValue.Type().Elem().Kind() == reflect.Struct &&
			!isOpaqueStruct(fieldValue.Type().Elem())

		if isStruct || isPtrToStruct {
			nested := fieldValue
			if isPtrToStruct {
				if fieldValue.IsNil() {
					nested = reflect.New(fieldValue.Type().Elem()).Elem()
				} else {
					nested = fieldValue.Elem()
				}
			}
			group[key] = schemaFields(nested, tagName, fieldPath+field.Name+".", errs)
			continue
		}

		leaf := map[string]any{attrDefault: deepCopy(fieldValue.Interface())}
		for _, attr := range []string{TagEnv, TagArg, TagDoc, TagFormat} {
			if value, ok := field.Tag.Lookup(attr); ok && value != "" {
				leaf[attr] = value
			}
		}
		for _, attr := range []string{TagSensitive, TagRequired} {
			value, ok := field.Tag.Lookup(attr)
			if !ok {
				continue
			}
			flag, err := strconv.ParseBool(value)
			if err != nil {
				*errs = append(*errs, fmt.Sprintf("field %s%s: invalid %s tag %q", fieldPath, field.Name, attr, value))
				continue
			}
			leaf[attr] = flag
		}
		group[key] = leaf
	}

	return group
}

// isOpaqueStruct reports struct types stored as single values rather than groups.
func isOpaqueStruct(t reflect.Type) bool {
	return t == timeType || t == regexpType.Elem()
}

// WithStructSchema sets the schema derived from a struct of defaults.
// Keys use the builder's tag name.
func (b *Builder) WithStructSchema(structWithDefaults any) *Builder {
	schema, err := SchemaFromStruct(structWithDefaults, b.opts.TagName)
	if err != nil {
		b.err = err
		return b
	}
	b.schema = schema
	return b
}
