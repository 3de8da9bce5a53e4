// FILE: lixenwraith/confschema/registry.go
package confschema

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Synthetic priorities. They are part of every getter order but have no getter function:
// PriorityValue ranks merged and explicitly set values, PriorityForce outranks everything.
const (
	PriorityDefault = "default"
	PriorityValue   = "value"
	PriorityEnv     = "env"
	PriorityArg     = "arg"
	PriorityForce   = "force"
)

// Leaf attribute names understood by the schema compiler.
const (
	attrDefault   = "default"
	attrFormat    = "format"
	attrDoc       = "doc"
	attrRequired  = "required"
	attrSensitive = "sensitive"
)

// GetterFunc resolves a leaf value from an external source. keyword is the value of
// the leaf attribute named after the getter (e.g. the variable name for `env`).
// Returning nil means "no value" unless stop was called first.
type GetterFunc func(keyword any, node *SchemaNode, scope *Scope, stop func()) any

// ConflictFunc is called when two leaves bind the same keyword to a used-once getter.
// Returning nil accepts the duplicate.
type ConflictFunc func(keyword any, node *SchemaNode, getter string) error

// GetterSpec describes a getter registration.
type GetterSpec struct {
	Name         string
	Getter       GetterFunc
	UsedOnlyOnce bool
	// OnConflict replaces the default SchemaInvalid failure for used-once collisions.
	OnConflict ConflictFunc
	Rewrite    bool
}

// ParseFunc turns file contents into a plain value tree.
type ParseFunc func(data []byte) (any, error)

type getterEntry struct {
	fn           GetterFunc
	usedOnlyOnce bool
	onConflict   ConflictFunc
}

// getterStorage is the part of the registry a Config snapshots at construction.
type getterStorage struct {
	order []string
	list  map[string]getterEntry
}

func (s getterStorage) clone() getterStorage {
	list := make(map[string]getterEntry, len(s.list))
	for name, entry := range s.list {
		list[name] = entry
	}
	return getterStorage{order: slices.Clone(s.order), list: list}
}

func (s getterStorage) known(name string) bool {
	if name == PriorityValue || name == PriorityForce {
		return true
	}
	_, ok := s.list[name]
	return ok
}

func (s getterStorage) rank(name string) int {
	return slices.Index(s.order, name)
}

// Registry holds the formats, getters and parsers used to compile schemas.
// It is safe for concurrent use; each Config takes its own getter snapshot.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]Format
	getters getterStorage
	parsers map[string]ParseFunc
}

// NewRegistry returns a registry loaded with the standard formats, the default/env/arg
// getters (order default < value < env < arg < force) and the json/yaml/toml/jsonc parsers.
func NewRegistry() *Registry {
	r := &Registry{
		formats: make(map[string]Format),
		getters: getterStorage{
			order: []string{PriorityValue, PriorityForce},
			list:  make(map[string]getterEntry),
		},
		parsers: make(map[string]ParseFunc),
	}

	for _, f := range standardFormats() {
		r.formats[f.Name] = f
	}
	for _, g := range standardGetters() {
		if err := r.AddGetterSpec(g); err != nil {
			panic(err)
		}
	}
	if err := r.SortGetters([]string{PriorityDefault, PriorityValue}); err != nil {
		panic(err)
	}
	for ext, fn := range standardParsers() {
		r.parsers[ext] = fn
	}

	return r
}

// AddFormat registers a named format. Registering an existing name requires rewrite.
func (r *Registry) AddFormat(f Format, rewrite bool) error {
	if f.Name == "" {
		return &CustomiseError{Message: "format name must be a non-empty string"}
	}
	if f.Validate == nil {
		return &CustomiseError{Message: fmt.Sprintf("validation function for %q must be a function", f.Name)}
	}
	if _, isMarker := builtinMarkers[f.Name]; isMarker {
		return &CustomiseError{Message: fmt.Sprintf("format name %q is a built-in type marker", f.Name)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formats[f.Name]; exists && !rewrite {
		return &CustomiseError{Message: fmt.Sprintf("format name %q is already registered. Set rewrite to true to replace it", f.Name)}
	}
	r.formats[f.Name] = f
	return nil
}

// AddFormats registers several formats, stopping at the first failure.
func (r *Registry) AddFormats(rewrite bool, formats ...Format) error {
	for _, f := range formats {
		if err := r.AddFormat(f, rewrite); err != nil {
			return err
		}
	}
	return nil
}

// HasFormat reports whether name is a registered format.
func (r *Registry) HasFormat(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.formats[name]
	return ok
}

func (r *Registry) format(name string) (Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formats[name]
	return f, ok
}

// AddGetter registers a getter just below force in the priority order.
func (r *Registry) AddGetter(name string, fn GetterFunc, usedOnlyOnce, rewrite bool) error {
	return r.AddGetterSpec(GetterSpec{Name: name, Getter: fn, UsedOnlyOnce: usedOnlyOnce, Rewrite: rewrite})
}

// AddGetterSpec registers a getter described by spec.
func (r *Registry) AddGetterSpec(spec GetterSpec) error {
	switch spec.Name {
	case "":
		return &CustomiseError{Message: "getter name must be a non-empty string"}
	case PriorityValue, PriorityForce:
		return &CustomiseError{Message: fmt.Sprintf("getter name %q is reserved", spec.Name)}
	case attrFormat, attrDoc, attrRequired, attrSensitive:
		return &CustomiseError{Message: fmt.Sprintf("getter name %q collides with a schema attribute", spec.Name)}
	}
	if spec.Getter == nil {
		return &CustomiseError{Message: fmt.Sprintf("getter function for %q must be a function", spec.Name)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.getters.list[spec.Name]; exists {
		if !spec.Rewrite {
			return &CustomiseError{Message: fmt.Sprintf("getter name %q is already registered. Set rewrite to true to replace it", spec.Name)}
		}
	} else {
		force := r.getters.rank(PriorityForce)
		r.getters.order = slices.Insert(r.getters.order, force, spec.Name)
	}

	r.getters.list[spec.Name] = getterEntry{
		fn:           spec.Getter,
		usedOnlyOnce: spec.UsedOnlyOnce,
		onConflict:   spec.OnConflict,
	}
	return nil
}

// AddGetters registers several getters, stopping at the first failure.
func (r *Registry) AddGetters(specs ...GetterSpec) error {
	for _, spec := range specs {
		if err := r.AddGetterSpec(spec); err != nil {
			return err
		}
	}
	return nil
}

// GettersOrder returns the getter names in ascending priority.
func (r *Registry) GettersOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.getters.order)
}

// SortGetters reorders the named getters. See sortGetters for the rules.
func (r *Registry) SortGetters(requested []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := sortGetters(r.getters, requested)
	if err != nil {
		return err
	}
	r.getters.order = order
	return nil
}

func (r *Registry) snapshot() getterStorage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getters.clone()
}

// AddParser registers fn for one or more file extensions (with or without the leading dot).
// The "*" extension is the fallback for unknown extensions.
func (r *Registry) AddParser(fn ParseFunc, extensions ...string) error {
	if fn == nil {
		return &CustomiseError{Message: "missing parser function"}
	}
	if len(extensions) == 0 {
		return &CustomiseError{Message: "missing parser extension"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range extensions {
		ext = normalizeExt(ext)
		if ext == "" {
			return &CustomiseError{Message: "parser extension must be a non-empty string"}
		}
		r.parsers[ext] = fn
	}
	return nil
}

// Parse decodes data with the parser registered for ext, falling back to "*".
func (r *Registry) Parse(ext string, data []byte) (any, error) {
	r.mu.RLock()
	fn, ok := r.parsers[normalizeExt(ext)]
	if !ok {
		fn = r.parsers["*"]
	}
	r.mu.RUnlock()

	if fn == nil {
		return nil, fmt.Errorf("no parser for extension %q", ext)
	}
	v, err := fn(data)
	if err != nil {
		return nil, err
	}
	return deepCopy(v), nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
