// FILE: lixenwraith/confschema/validate.go
package confschema

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Allowed modes for undeclared parameters.
const (
	AllowedWarn   = "warn"
	AllowedStrict = "strict"
)

// ValidateOptions controls Config.Validate.
type ValidateOptions struct {
	// Allowed is AllowedWarn (default) or AllowedStrict. In strict mode undeclared
	// parameters fail validation; otherwise they are only reported as a warning.
	Allowed string
	// Output receives the warning text. Nil routes it to the Config logger.
	Output func(string)
}

// validationResult buckets every failure found in one pass.
type validationResult struct {
	missing    []error
	invalid    []error
	undeclared []error
}

// Validate checks every leaf against its format and reports missing and undeclared
// parameters. All failures are collected before returning a *ValidateError.
func (c *Config) Validate(opts ValidateOptions) error {
	allowed := opts.Allowed
	if allowed == "" {
		allowed = AllowedWarn
	}
	if allowed != AllowedWarn && allowed != AllowedStrict {
		return &UsageError{Message: fmt.Sprintf("allowed must be %q or %q, got %q", AllowedWarn, AllowedStrict, allowed)}
	}

	c.mutex.RLock()
	instance := deepCopy(c.instance).(map[string]any)
	origins := maps.Clone(c.origins)
	c.mutex.RUnlock()

	// Validators run without the lock held.
	result := validateTree(c.schema, instance, origins)

	hidden := make(map[string]bool, len(c.sensitive))
	for _, p := range c.sensitive {
		hidden[unroot(p)] = true
	}

	invalidBuf := renderErrors(result.invalid, hidden)
	missingBuf := renderErrors(result.missing, hidden)
	undeclaredBuf := renderErrors(result.undeclared, hidden)

	parts := []string{invalidBuf, missingBuf}
	failures := slices.Concat(result.invalid, result.missing)

	switch {
	case allowed == AllowedStrict:
		parts = append(parts, undeclaredBuf)
		failures = append(failures, result.undeclared...)
	case undeclaredBuf != "":
		if opts.Output != nil {
			opts.Output("Warning:\n" + undeclaredBuf)
		} else {
			c.logger.Warn("configuration has undeclared parameters", "details", undeclaredBuf)
		}
	}

	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}

	return &ValidateError{Why: strings.Join(nonEmpty, "\n"), Errors: failures}
}

// validateTree compares the value tree with the schema. instance is the rooted tree.
func validateTree(schema *SchemaNode, instance map[string]any, origins map[string]string) validationResult {
	var result validationResult
	flat := flattenMap(instance, "")

	schema.leaves(func(leaf *SchemaNode) {
		value, found := flat[leaf.path]
		if !found {
			segments, _ := ParsePath(leaf.path)
			v, err := walk(instance, segments, false)
			if err != nil {
				message := fmt.Sprintf("config parameter %q missing from config, did you override its parent?", unroot(leaf.path))
				var pathErr *PathError
				if errors.As(err, &pathErr) {
					message += " Because " + pathErr.Why + "."
				}
				result.missing = append(result.missing, &ValueError{FullName: unroot(leaf.path), Message: message})
				return
			}
			value = v
		}

		// Leaves are opaque: keys nested under an object value are not undeclared.
		delete(flat, leaf.path)
		for key := range flat {
			if strings.HasPrefix(key, leaf.path+".") || strings.HasPrefix(key, leaf.path+"[") {
				delete(flat, key)
			}
		}

		if leaf.required || leaf.attrs[attrDefault] != nil || value != nil {
			if err := leaf.check(value, origins[leaf.path]); err != nil {
				result.invalid = append(result.invalid, err)
			}
		}
	})

	for _, key := range slices.Sorted(maps.Keys(flat)) {
		result.undeclared = append(result.undeclared, &ValueError{
			FullName: unroot(key),
			Message:  fmt.Sprintf("configuration param '%s' not declared in the schema", unroot(key)),
		})
	}

	return result
}

// renderErrors formats failures one per line, masking sensitive values.
func renderErrors(errs []error, hidden map[string]bool) string {
	lines := make([]string, 0, len(errs))
	for _, err := range errs {
		var b strings.Builder
		b.WriteString("  - ")

		var formatErr *FormatError
		if !errors.As(err, &formatErr) {
			b.WriteString(err.Error())
			lines = append(lines, b.String())
			continue
		}

		if formatErr.FullName != "" {
			b.WriteString(formatErr.FullName + ": ")
		}
		b.WriteString(formatErr.Message)

		if formatErr.Value != nil {
			masked := hidden[formatErr.FullName]
			value := SensitiveMask
			keyname := SensitiveMask
			if !masked {
				value = jsonText(formatErr.Value)
				keyname = jsonText(formatErr.Getter.Keyname)
			}
			b.WriteString(": value was " + value)

			if name := formatErr.Getter.Name; name != "" {
				b.WriteString(", getter was `" + name)
				if name != PriorityValue {
					b.WriteString("[" + keyname + "]")
				}
				b.WriteString("`")
			}
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func jsonText(v any) string {
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}
