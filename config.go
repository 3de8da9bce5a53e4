// FILE: lixenwraith/confschema/config.go
package confschema

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
)

// SensitiveMask replaces sensitive values in String output and validation reports.
const SensitiveMask = "[Sensitive]"

// Options configures a Config.
type Options struct {
	// Env is the environment read by the env getter. Nil means os.Environ.
	Env map[string]string
	// Args is the argument vector read by the arg getter. Nil means os.Args[1:].
	Args []string
	// StrictParsing disables shorthand leaves and default-type inference.
	StrictParsing bool
	// DefaultSubstitute is the raw key declaring a property named "default". Defaults to "$~default".
	DefaultSubstitute string
	// Registry supplies formats, getters and parsers. Nil means NewRegistry().
	Registry *Registry
	// GettersOrder reorders the getter snapshot before the first resolution.
	GettersOrder []string
	// TagName is the struct tag used by Scan. Defaults to "json".
	TagName string
	// MaxFileSize limits schema and merged file sizes when positive.
	MaxFileSize int64
	// Logger receives warnings and watcher events. Nil means slog.Default().
	Logger *slog.Logger
}

// Config is a configuration instance bound to one compiled schema.
// It is safe for concurrent use.
type Config struct {
	mutex sync.RWMutex

	registry *Registry
	getters  getterStorage
	scope    *Scope

	schema  *SchemaNode
	wrapper *SchemaNode // synthetic group holding schema under rootKey

	instance map[string]any    // {rootKey: tree}
	origins  map[string]string // rooted leaf path -> getter name

	sensitive   []string
	substitute  string
	strict      bool
	tagName     string
	maxFileSize int64
	logger      *slog.Logger

	files   []string
	watcher *watcher
}

// New compiles schema with default options and resolves every leaf from its getters.
// schema is a nested map definition or the path of a schema file.
func New(schema any) (*Config, error) {
	return NewWithOptions(schema, Options{})
}

// NewWithOptions compiles schema and resolves every leaf from its getters.
func NewWithOptions(schema any, opts Options) (*Config, error) {
	c := &Config{
		registry:    opts.Registry,
		scope:       newScope(opts.Env, opts.Args),
		origins:     make(map[string]string),
		substitute:  opts.DefaultSubstitute,
		strict:      opts.StrictParsing,
		tagName:     opts.TagName,
		maxFileSize: opts.MaxFileSize,
		logger:      opts.Logger,
	}
	if c.registry == nil {
		c.registry = NewRegistry()
	}
	if c.substitute == "" {
		c.substitute = DefaultSubstitute
	}
	if c.tagName == "" {
		c.tagName = "json"
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	if path, isFile := schema.(string); isFile {
		raw, err := c.registry.parseFile(path, c.maxFileSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load schema: %w", err)
		}
		schema = raw
	}

	c.getters = c.registry.snapshot()
	if len(opts.GettersOrder) > 0 {
		order, err := sortGetters(c.getters, opts.GettersOrder)
		if err != nil {
			return nil, err
		}
		c.getters.order = order
	}

	comp := newCompiler(c.registry, c.getters, c.strict, c.substitute)
	root, err := comp.compileRoot(schema)
	if err != nil {
		return nil, err
	}
	c.schema = root
	c.wrapper = &SchemaNode{children: map[string]*SchemaNode{rootKey: root}}
	c.sensitive = comp.sensitive

	c.instance = make(map[string]any)
	c.applyGetters(c.wrapper, c.instance)

	return c, nil
}

// Get returns a copy of the value at path. An empty path returns the whole tree.
func (c *Config) Get(path string) (any, error) {
	segments, err := rooted(path)
	if err != nil {
		return nil, err
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	value, err := walk(c.instance, segments, false)
	if err != nil {
		return nil, err
	}
	return deepCopy(value), nil
}

// GetOrigin returns the name of the getter that last supplied the leaf at path,
// or "" when the leaf has no value source yet.
func (c *Config) GetOrigin(path string) (string, error) {
	node, err := c.lookup(path)
	if err != nil {
		return "", err
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.origins[node.path], nil
}

// Default returns a copy of the declared default of the leaf at path.
func (c *Config) Default(path string) (any, error) {
	node, err := c.lookup(path)
	if err != nil {
		return nil, err
	}
	if !node.IsLeaf() {
		return nil, &PathError{
			FullName:     unroot(node.path),
			LastPosition: unroot(joinPath(node.path, attrDefault)),
			Parent:       unroot(node.path),
			Why:          fmt.Sprintf("%q is a group of properties", unroot(node.path)),
		}
	}
	return node.Default(), nil
}

// Reset restores the declared default of the leaf at path.
func (c *Config) Reset(path string) error {
	def, err := c.Default(path)
	if err != nil {
		return err
	}
	return c.SetWithPriority(path, def, PriorityDefault, false)
}

// Has reports whether path holds a value or is declared required.
func (c *Config) Has(path string) bool {
	value, err := c.Get(path)
	if err != nil {
		return false
	}
	if node, err := c.lookup(path); err == nil && node.IsLeaf() && node.required {
		return true
	}
	return value != nil
}

// Set assigns value at path with the "value" priority. Missing parents are created.
func (c *Config) Set(path string, value any) error {
	return c.SetWithPriority(path, value, "", false)
}

// SetWithPriority assigns value at path and records priority as its origin.
// An empty priority means "value". With respectPriority, a write ranked below the
// current origin is silently ignored.
func (c *Config) SetWithPriority(path string, value any, priority string, respectPriority bool) error {
	segments, err := ParsePath(path)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	node := c.schema.lookup(segments)

	switch {
	case priority == "":
		priority = PriorityValue
	case !c.getters.known(priority):
		return &UsageError{Message: "unknown getter: " + priority}
	case node == nil:
		return &UsageError{Message: fmt.Sprintf("you cannot set priority because %q not declared in the schema", path)}
	}

	isLeaf := node != nil && node.IsLeaf()
	value = deepCopy(value)
	if isLeaf {
		value = node.Coerce(value)
	}

	if respectPriority && isLeaf {
		if origin := c.origins[node.path]; origin != "" && c.getters.rank(priority) < c.getters.rank(origin) {
			return nil
		}
	}

	full := append([]string{rootKey}, segments...)
	parent, err := walk(c.instance, full[:len(full)-1], true)
	if err != nil {
		return err
	}
	if err := assign(parent, full, value); err != nil {
		return err
	}

	if isLeaf {
		c.origins[node.path] = priority
	}
	return nil
}

// assign stores value under the last segment of full inside parent.
func assign(parent any, full []string, value any) error {
	key := full[len(full)-1]
	switch p := parent.(type) {
	case map[string]any:
		p[key] = value
		return nil
	case []any:
		if idx, err := strconv.Atoi(key); err == nil && idx >= 0 && idx < len(p) {
			p[idx] = value
			return nil
		}
	}
	return newPathError(StringifyPath(full), full, parent)
}

// Merge overlays one or more sources at the "value" priority. A source is a value
// tree, a file path, or a []string of file paths parsed by extension. Leaves whose
// origin outranks "value" keep their current value.
func (c *Config) Merge(sources ...any) error {
	for _, source := range sources {
		switch s := source.(type) {
		case string:
			tree, err := c.registry.parseFile(s, c.maxFileSize)
			if err != nil {
				return err
			}
			c.mutex.Lock()
			if !slices.Contains(c.files, s) {
				c.files = append(c.files, s)
			}
			if tree != nil {
				c.applyValues(map[string]any{rootKey: tree}, c.instance, c.wrapper)
			}
			c.mutex.Unlock()
		case []string:
			for _, path := range s {
				if err := c.Merge(path); err != nil {
					return err
				}
			}
		case nil:
		default:
			c.mutex.Lock()
			c.applyValues(map[string]any{rootKey: deepCopy(s)}, c.instance, c.wrapper)
			c.mutex.Unlock()
		}
	}
	return nil
}

// GetProperties returns a copy of the whole value tree.
func (c *Config) GetProperties() any {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return deepCopy(c.instance[rootKey])
}

// String renders the value tree as indented JSON with every sensitive leaf masked,
// whether or not it holds a value.
func (c *Config) String() string {
	tree := c.maskedTree()
	out, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", tree)
	}
	return string(out)
}

// GetMaskedProperties returns a copy of the value tree with sensitive leaves masked.
func (c *Config) GetMaskedProperties() any {
	return c.maskedTree()
}

// maskedTree returns a copy of the value tree with every sensitive leaf masked.
func (c *Config) maskedTree() any {
	c.mutex.RLock()
	clone := deepCopy(c.instance).(map[string]any)
	c.mutex.RUnlock()

	for _, path := range c.sensitive {
		segments, err := ParsePath(path)
		if err != nil {
			continue
		}
		parent, err := walk(clone, segments[:len(segments)-1], true)
		if err != nil {
			continue
		}
		_ = assign(parent, segments, SensitiveMask)
	}
	return clone[rootKey]
}

// Sensitive returns the paths of every sensitive leaf.
func (c *Config) Sensitive() []string {
	paths := make([]string, len(c.sensitive))
	for i, p := range c.sensitive {
		paths[i] = unroot(p)
	}
	return paths
}

// GetSchema exports the compiled schema as plain data. Without debug, group children
// named "default" are exported under the default substitute key. With debug, groups
// are wrapped in ReservedKey and leaves carry their current origin and path.
func (c *Config) GetSchema(debug bool) any {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.exportSchema(c.schema, debug)
}

func (c *Config) exportSchema(node *SchemaNode, debug bool) any {
	if !node.IsLeaf() {
		children := make(map[string]any, len(node.children))
		for name, child := range node.children {
			key := name
			if name == attrDefault && !debug {
				key = c.substitute
			}
			children[key] = c.exportSchema(child, debug)
		}
		if debug {
			return map[string]any{ReservedKey: children}
		}
		return children
	}

	attrs := make(map[string]any, len(node.attrs))
	for name, value := range node.attrs {
		if typeTag(value) == tagFunction || isFormatValue(value) {
			continue
		}
		attrs[name] = deepCopy(value)
	}
	if debug {
		attrs["__path"] = unroot(node.path)
		if origin := c.origins[node.path]; origin != "" {
			attrs["__origin"] = origin
		}
	}
	return attrs
}

func isFormatValue(v any) bool {
	_, ok := v.(Format)
	return ok
}

// GetSchemaString renders GetSchema as indented JSON.
func (c *Config) GetSchemaString(debug bool) (string, error) {
	out, err := json.MarshalIndent(c.GetSchema(debug), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode schema: %w", err)
	}
	return string(out), nil
}

// GettersOrder returns this instance's getter names in ascending priority.
func (c *Config) GettersOrder() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return slices.Clone(c.getters.order)
}

// SortGetters reorders this instance's getters. Call RefreshGetters to re-resolve values.
func (c *Config) SortGetters(order []string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	sorted, err := sortGetters(c.getters, order)
	if err != nil {
		return err
	}
	c.getters.order = sorted
	return nil
}

// RefreshGetters re-snapshots the registry getters, keeping this instance's relative
// order for getters that still exist, and re-runs resolution. Leaves only consider
// getters ranked at or above their current origin.
func (c *Config) RefreshGetters() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	fresh := c.registry.snapshot()
	kept := slices.DeleteFunc(slices.Clone(c.getters.order), func(name string) bool {
		return !fresh.known(name)
	})
	order, err := sortGetters(fresh, kept)
	if err != nil {
		return err
	}
	fresh.order = order

	c.getters = fresh
	c.applyGetters(c.wrapper, c.instance)
	return nil
}

// Env returns the environment mapping read by the env getter.
func (c *Config) Env() map[string]string { return c.scope.Env() }

// Args returns the argument vector read by the arg getter.
func (c *Config) Args() []string { return slices.Clone(c.scope.Args()) }

// Registry returns the registry the schema was compiled with.
func (c *Config) Registry() *Registry { return c.registry }

// Schema returns the compiled root node.
func (c *Config) Schema() *SchemaNode { return c.schema }

// Files returns the file paths merged so far, in merge order.
func (c *Config) Files() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return slices.Clone(c.files)
}

// lookup resolves a declared schema node or explains which segment is undeclared.
func (c *Config) lookup(path string) (*SchemaNode, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	node := c.schema
	historic := []string{rootKey}
	for _, segment := range segments {
		historic = append(historic, segment)
		var next *SchemaNode
		if !node.IsLeaf() {
			next = node.children[segment]
		}
		if next == nil {
			var parentValue any = map[string]any{}
			if node.IsLeaf() {
				parentValue = node.Default()
			}
			return nil, newPathError(StringifyPath(append([]string{rootKey}, segments...)), historic, parentValue)
		}
		node = next
	}
	return node, nil
}
