// FILE: lixenwraith/confschema/convenience.go
package confschema

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/davecgh/go-spew/spew"
)

// Quick compiles schema, merges configFiles in order and validates in warn mode.
// Missing files are not fatal: the Config is returned alongside ErrConfigNotFound.
func Quick(schema any, configFiles ...string) (*Config, error) {
	return NewBuilder().
		WithSchema(schema).
		WithFiles(configFiles...).
		WithValidation(AllowedWarn).
		Build()
}

// MustQuick is like Quick but panics on error
func MustQuick(schema any, configFiles ...string) *Config {
	cfg, err := Quick(schema, configFiles...)
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		panic(fmt.Sprintf("config initialization failed: %v", err))
	}
	return cfg
}

// GenerateFlags creates a flag.FlagSet entry for every leaf bound to the arg getter,
// named by its arg keyword. All flags are strings; BindFlags coerces them.
func (c *Config) GenerateFlags() *flag.FlagSet {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)

	c.schema.leaves(func(leaf *SchemaNode) {
		keyword, bound := leaf.attrs[PriorityArg]
		if !bound {
			return
		}
		name := fmt.Sprint(keyword)
		if fs.Lookup(name) != nil {
			return
		}

		usage := leaf.Doc()
		if usage == "" {
			usage = fmt.Sprintf("Config: %s", unroot(leaf.path))
		}
		def := ""
		if v := leaf.attrs[attrDefault]; v != nil && !leaf.sensitive {
			def = fmt.Sprint(v)
		}
		fs.String(name, def, usage)
	})

	return fs
}

// BindFlags applies every flag set on fs to the leaf declaring it as arg keyword,
// with the arg priority.
func (c *Config) BindFlags(fs *flag.FlagSet) error {
	byKeyword := make(map[string]*SchemaNode)
	c.schema.leaves(func(leaf *SchemaNode) {
		if keyword, bound := leaf.attrs[PriorityArg]; bound {
			byKeyword[fmt.Sprint(keyword)] = leaf
		}
	})

	var errs []error
	fs.Visit(func(f *flag.Flag) {
		leaf, ok := byKeyword[f.Name]
		if !ok {
			return
		}
		if err := c.SetWithPriority(leaf.Path(), f.Value.String(), PriorityArg, true); err != nil {
			errs = append(errs, fmt.Errorf("flag %s: %w", f.Name, err))
		}
	})

	if len(errs) > 0 {
		return fmt.Errorf("failed to bind %d flags: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// debugEntry is one leaf as shown by Debug
type debugEntry struct {
	Path    string
	Value   any
	Default any
	Origin  string
}

// Debug returns a dump of every leaf's current value, default and origin.
// Sensitive leaves are masked.
func (c *Config) Debug() string {
	c.mutex.RLock()
	entries := make([]debugEntry, 0)
	c.schema.leaves(func(leaf *SchemaNode) {
		entry := debugEntry{
			Path:    unroot(leaf.path),
			Default: leaf.Default(),
			Origin:  c.origins[leaf.path],
		}
		segments, err := ParsePath(leaf.path)
		if err == nil {
			if v, err := walk(c.instance, segments, false); err == nil {
				entry.Value = deepCopy(v)
			}
		}
		if leaf.sensitive {
			entry.Value = SensitiveMask
			entry.Default = SensitiveMask
		}
		entries = append(entries, entry)
	})
	order := slices.Clone(c.getters.order)
	c.mutex.RUnlock()

	slices.SortFunc(entries, func(a, b debugEntry) int { return strings.Compare(a.Path, b.Path) })

	dumper := spew.ConfigState{
		Indent:                  "  ",
		SortKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}

	var b strings.Builder
	b.WriteString("Configuration Debug Info:\n")
	fmt.Fprintf(&b, "Getters (lowest to highest): %v\n", order)
	b.WriteString("Leaves:\n")
	b.WriteString(dumper.Sdump(entries))
	return b.String()
}

// Dump writes the current values to w in TOML format. Sensitive leaves are masked
// and leaves without a value are omitted.
func (c *Config) Dump(w io.Writer) error {
	tree, ok := pruneNil(c.maskedTree()).(map[string]any)
	if !ok {
		tree = map[string]any{}
	}
	if err := toml.NewEncoder(w).Encode(tree); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// pruneNil removes nil entries from maps and slices, recursively.
func pruneNil(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if child == nil {
				continue
			}
			out[k] = pruneNil(child)
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, child := range val {
			if child != nil {
				out = append(out, pruneNil(child))
			}
		}
		return out
	}
	return v
}

// Clone creates a deep copy of the configuration. The compiled schema and registry
// are shared; values, origins and the merged file list are copied. The clone does
// not inherit a running watcher.
func (c *Config) Clone() *Config {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return &Config{
		registry:    c.registry,
		getters:     c.getters.clone(),
		scope:       c.scope,
		schema:      c.schema,
		wrapper:     c.wrapper,
		instance:    deepCopy(c.instance).(map[string]any),
		origins:     maps.Clone(c.origins),
		sensitive:   slices.Clone(c.sensitive),
		substitute:  c.substitute,
		strict:      c.strict,
		tagName:     c.tagName,
		maxFileSize: c.maxFileSize,
		logger:      c.logger,
		files:       slices.Clone(c.files),
	}
}
