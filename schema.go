// FILE: lixenwraith/confschema/schema.go
package confschema

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ReservedKey is the property name the compiled schema uses for group children.
// It cannot be declared in a schema.
const ReservedKey = "__properties"

// DefaultSubstitute is the raw schema key that declares a property literally named "default".
const DefaultSubstitute = "$~default"

// SchemaNode is one compiled schema property: either a group of named children
// or a leaf carrying a default and a format. Nodes are immutable after compilation.
type SchemaNode struct {
	name     string
	path     string
	children map[string]*SchemaNode

	attrs      map[string]any
	formatName string
	required   bool
	sensitive  bool
	coerce     Coercer
	validate   Validator
}

// Name returns the property key under its parent.
func (n *SchemaNode) Name() string { return n.name }

// Path returns the dot/bracket path of the property, "" for the root.
func (n *SchemaNode) Path() string { return unroot(n.path) }

// IsLeaf reports whether the node holds a value rather than children.
func (n *SchemaNode) IsLeaf() bool { return n.children == nil }

// Children returns the child names of a group in lexical order.
func (n *SchemaNode) Children() []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Child returns the named child of a group, or nil.
func (n *SchemaNode) Child(name string) *SchemaNode {
	return n.children[name]
}

// Attribute returns a copy of a leaf attribute such as "doc" or "env".
func (n *SchemaNode) Attribute(name string) (any, bool) {
	v, ok := n.attrs[name]
	return deepCopy(v), ok
}

// Attributes returns a copy of every leaf attribute.
func (n *SchemaNode) Attributes() map[string]any {
	if n.attrs == nil {
		return nil
	}
	return deepCopy(n.attrs).(map[string]any)
}

// Default returns a copy of the declared default.
func (n *SchemaNode) Default() any { return deepCopy(n.attrs[attrDefault]) }

// Doc returns the doc attribute.
func (n *SchemaNode) Doc() string {
	doc, _ := n.attrs[attrDoc].(string)
	return doc
}

// Format returns the resolved format name.
func (n *SchemaNode) Format() string { return n.formatName }

// Required reports whether the leaf must be validated even when unset.
func (n *SchemaNode) Required() bool { return n.required }

// Sensitive reports whether the value is masked in String output.
func (n *SchemaNode) Sensitive() bool { return n.sensitive }

// Coerce converts raw input with the leaf's coercer.
func (n *SchemaNode) Coerce(value any) any {
	if n.coerce == nil {
		return value
	}
	return n.coerce(value)
}

// check runs the format validator. origin names the getter that supplied the value.
func (n *SchemaNode) check(value any, origin string) error {
	err := n.validate(value, n)
	if err == nil {
		return nil
	}

	var list *ErrorList
	if errors.As(err, &list) {
		list.render(n.path, n.formatName)
		return list
	}

	getter := GetterRef{Name: origin}
	if origin != "" {
		getter.Keyname = deepCopy(n.attrs[origin])
	}
	return &FormatError{
		FullName: unroot(n.path),
		Message:  err.Error(),
		Getter:   getter,
		Value:    value,
	}
}

// lookup descends through group children only.
func (n *SchemaNode) lookup(segments []string) *SchemaNode {
	node := n
	for _, segment := range segments {
		if node == nil || node.IsLeaf() {
			return nil
		}
		node = node.children[segment]
	}
	return node
}

// leaves visits every leaf in lexical order.
func (n *SchemaNode) leaves(fn func(leaf *SchemaNode)) {
	if n.IsLeaf() {
		fn(n)
		return
	}
	for _, name := range n.Children() {
		n.children[name].leaves(fn)
	}
}

// compiler turns a raw schema definition into a SchemaNode tree.
type compiler struct {
	registry   *Registry
	getters    getterStorage
	strict     bool
	substitute string

	usedKeywords map[string]map[string]bool
	sensitive    []string
}

func newCompiler(registry *Registry, getters getterStorage, strict bool, substitute string) *compiler {
	return &compiler{
		registry:     registry,
		getters:      getters,
		strict:       strict,
		substitute:   substitute,
		usedKeywords: make(map[string]map[string]bool),
	}
}

// compileRoot compiles the whole definition under the implicit root key.
func (c *compiler) compileRoot(raw any) (*SchemaNode, error) {
	return c.compile(rootKey, deepCopy(raw), rootKey)
}

func (c *compiler) compile(name string, raw any, fullName string) (*SchemaNode, error) {
	if name == ReservedKey {
		return nil, &SchemaError{
			FullName: unroot(fullName),
			Message:  fmt.Sprintf("'%s' is reserved word of confschema, it cannot be used as a property name", ReservedKey),
		}
	}

	m, isMap := raw.(map[string]any)
	_, hasDefault := m[attrDefault]
	format, hasFormat := m[attrFormat]
	hasFormat = hasFormat && truthy(format)
	_, isMapFormat := format.(map[string]any)

	if isMap && len(m) > 0 && !hasDefault && (!hasFormat || isMapFormat) {
		return c.compileGroup(name, m, fullName)
	}

	var attrs map[string]any
	switch {
	case c.strict && !(isMap && hasDefault):
		return nil, &SchemaError{FullName: unroot(fullName), Message: "default property is missing"}
	case !isMap || len(m) == 0:
		attrs = map[string]any{attrDefault: raw}
	default:
		attrs = m
		if !hasDefault {
			attrs[attrDefault] = nil
		}
	}

	return c.compileLeaf(name, attrs, fullName)
}

func (c *compiler) compileGroup(name string, raw map[string]any, fullName string) (*SchemaNode, error) {
	node := &SchemaNode{
		name:     name,
		path:     fullName,
		children: make(map[string]*SchemaNode, len(raw)),
	}

	for _, key := range sortedKeys(raw) {
		childName := key
		if key == c.substitute {
			childName = attrDefault
		}
		child, err := c.compile(key, raw[key], joinPath(fullName, childName))
		if err != nil {
			return nil, err
		}
		child.name = childName
		node.children[childName] = child
	}
	return node, nil
}

func (c *compiler) compileLeaf(name string, attrs map[string]any, fullName string) (*SchemaNode, error) {
	node := &SchemaNode{
		name:     name,
		path:     fullName,
		attrs:    attrs,
		required: truthy(attrs[attrRequired]),
	}

	if err := c.reserveKeywords(node); err != nil {
		return nil, err
	}

	if sensitive, ok := attrs[attrSensitive].(bool); ok && sensitive {
		node.sensitive = true
		c.sensitive = append(c.sensitive, fullName)
	}

	if err := c.resolveFormat(node); err != nil {
		return nil, err
	}
	return node, nil
}

// reserveKeywords enforces the used-once constraint of getters such as `arg`.
func (c *compiler) reserveKeywords(node *SchemaNode) error {
	for _, getterName := range sortedKeys(node.attrs) {
		entry, ok := c.getters.list[getterName]
		if !ok || !entry.usedOnlyOnce {
			continue
		}

		keyword := node.attrs[getterName]
		key := keywordKey(keyword)
		used := c.usedKeywords[getterName]
		if used == nil {
			used = make(map[string]bool)
			c.usedKeywords[getterName] = used
		}

		if used[key] {
			if entry.onConflict != nil {
				if err := entry.onConflict(deepCopy(keyword), node, getterName); err != nil {
					return err
				}
				continue
			}
			return &SchemaError{
				FullName: unroot(node.path),
				Message:  fmt.Sprintf("uses an already used getter keyname for %q, actual: `%s[%s]`", getterName, getterName, key),
			}
		}
		used[key] = true
	}
	return nil
}

func keywordKey(keyword any) string {
	if encoded, err := json.Marshal(keyword); err == nil {
		return string(encoded)
	}
	return fmt.Sprintf("%#v", keyword)
}

// resolveFormat binds the validator and coercer for a leaf. Precedence: built-in
// type marker, registered format name, whitelist, function, then the type of the
// default when parsing is not strict.
func (c *compiler) resolveFormat(node *SchemaNode) error {
	format := node.attrs[attrFormat]
	fail := func(msg string) error {
		return &SchemaError{FullName: unroot(node.path), Message: msg}
	}

	if !truthy(format) {
		def := node.attrs[attrDefault]
		if c.strict || def == nil {
			return fail("format property is missing")
		}
		tag := typeTag(def)
		node.bind(tag, typeValidator(tag), typeCoercers[tag])
		node.attrs[attrFormat] = tag
		return nil
	}

	switch f := format.(type) {
	case TypeMarker:
		if _, ok := builtinMarkers[string(f)]; !ok {
			return fail(fmt.Sprintf("uses an unknown format type (actual: %q)", string(f)))
		}
		node.bindMarker(string(f))
	case string:
		if _, ok := builtinMarkers[f]; ok {
			node.bindMarker(f)
			break
		}
		named, ok := c.registry.format(f)
		if !ok {
			return fail(fmt.Sprintf("uses an unknown format type (actual: %q)", f))
		}
		node.bind(f, named.Validate, named.Coerce)
	case []any:
		encoded, _ := json.Marshal(f)
		node.bind(string(encoded), whitelistValidator(f), nil)
	case Validator:
		node.bind("function", f, nil)
	case func(any, *SchemaNode) error:
		node.bind("function", f, nil)
	case func(any) error:
		node.bind("function", func(value any, _ *SchemaNode) error { return f(value) }, nil)
	case Format:
		if f.Validate == nil {
			return fail("uses a format without validation function")
		}
		name := f.Name
		if name == "" {
			name = "function"
		}
		node.bind(name, f.Validate, f.Coerce)
	default:
		return fail(fmt.Sprintf("uses an invalid format, it must be a format name, a function, an array or a known format type (actual: %q)", fmt.Sprint(format)))
	}
	return nil
}

func (n *SchemaNode) bindMarker(name string) {
	n.bind(name, typeValidator(name), typeCoercers[name])
	n.attrs[attrFormat] = name
}

func (n *SchemaNode) bind(name string, validate Validator, coerce Coercer) {
	n.formatName = name
	n.validate = validate
	n.coerce = coerce
}

// truthy mirrors the loose truth test used for optional schema attributes.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case TypeMarker:
		return val != ""
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}
