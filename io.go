// FILE: lixenwraith/confschema/io.go
package confschema

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EnvBindings returns the env getter keyword of every leaf bound to it, mapped to
// the leaf path.
func (c *Config) EnvBindings() map[string]string {
	bindings := make(map[string]string)
	c.schema.leaves(func(leaf *SchemaNode) {
		if keyword, bound := leaf.attrs[PriorityEnv]; bound {
			bindings[fmt.Sprint(keyword)] = unroot(leaf.path)
		}
	})
	return bindings
}

// ExportEnv renders every env-bound leaf whose value differs from its default as
// an environment variable, for handing the effective configuration to a child
// process. Scalars use their plain text form, other values are JSON encoded.
// Sensitive leaves are exported unmasked.
func (c *Config) ExportEnv() map[string]string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	exports := make(map[string]string)
	c.schema.leaves(func(leaf *SchemaNode) {
		keyword, bound := leaf.attrs[PriorityEnv]
		if !bound {
			return
		}
		segments, err := ParsePath(leaf.path)
		if err != nil {
			return
		}
		value, err := walk(c.instance, segments, false)
		if err != nil || value == nil || deepEqual(value, leaf.Coerce(leaf.attrs[attrDefault])) {
			return
		}
		exports[fmt.Sprint(keyword)] = envText(value)
	})
	return exports
}

// envText formats a value the way the env getter coerces it back.
func envText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	}
	out, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(out)
}
