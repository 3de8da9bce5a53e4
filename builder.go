// FILE: lixenwraith/confschema/builder.go
package confschema

import (
	"errors"
	"fmt"
	"log/slog"
)

// ValidatorFunc defines the signature for a function that can validate a Config instance.
// It receives the fully loaded *Config object and should return an error if validation fails.
type ValidatorFunc func(c *Config) error

// Builder provides a fluent interface for building configurations
type Builder struct {
	schema     any
	opts       Options
	files      []string
	discovery  *FileDiscoveryOptions
	validate   *ValidateOptions
	validators []ValidatorFunc
	scanPath   string
	err        error
}

// NewBuilder creates a new configuration builder
func NewBuilder() *Builder {
	return &Builder{
		validators: make([]ValidatorFunc, 0),
	}
}

// WithSchema sets the schema definition, a nested map or a schema file path
func (b *Builder) WithSchema(schema any) *Builder {
	b.schema = schema
	return b
}

// WithRegistry sets the registry supplying formats, getters and parsers
func (b *Builder) WithRegistry(r *Registry) *Builder {
	b.opts.Registry = r
	return b
}

// WithEnv sets the environment read by the env getter
func (b *Builder) WithEnv(env map[string]string) *Builder {
	b.opts.Env = env
	return b
}

// WithArgs sets the command-line arguments read by the arg getter
func (b *Builder) WithArgs(args []string) *Builder {
	b.opts.Args = args
	return b
}

// WithFiles appends files merged in order after compilation
func (b *Builder) WithFiles(paths ...string) *Builder {
	b.files = append(b.files, paths...)
	return b
}

// WithStrictParsing rejects shorthand leaves and inferred formats
func (b *Builder) WithStrictParsing(strict bool) *Builder {
	b.opts.StrictParsing = strict
	return b
}

// WithDefaultSubstitute sets the raw key declaring a property named "default"
func (b *Builder) WithDefaultSubstitute(key string) *Builder {
	b.opts.DefaultSubstitute = key
	return b
}

// WithGettersOrder reorders getters before the first resolution
func (b *Builder) WithGettersOrder(order ...string) *Builder {
	b.opts.GettersOrder = order
	return b
}

// WithTagName sets the struct tag used by Scan and BuildAndScan
func (b *Builder) WithTagName(tag string) *Builder {
	b.opts.TagName = tag
	return b
}

// WithMaxFileSize limits schema and merged file sizes
func (b *Builder) WithMaxFileSize(size int64) *Builder {
	if size < 0 {
		b.err = fmt.Errorf("%w: negative max file size %d", ErrIncorrectUsage, size)
		return b
	}
	b.opts.MaxFileSize = size
	return b
}

// WithLogger sets the logger for warnings and watcher events
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.opts.Logger = logger
	return b
}

// WithValidation runs Validate with the given undeclared-parameter mode after loading
func (b *Builder) WithValidation(allowed string) *Builder {
	b.validate = &ValidateOptions{Allowed: allowed}
	return b
}

// WithScanPath sets the base path decoded by BuildAndScan
func (b *Builder) WithScanPath(path string) *Builder {
	b.scanPath = path
	return b
}

// WithValidator adds a validation function that runs at the end of the build process
// Multiple validators can be added and are executed in the order they are added
func (b *Builder) WithValidator(fn ValidatorFunc) *Builder {
	if fn != nil {
		b.validators = append(b.validators, fn)
	}
	return b
}

// Build compiles the schema, merges every file in order, then validates.
// Missing files are skipped and reported as ErrConfigNotFound alongside a usable Config.
func (b *Builder) Build() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.schema == nil {
		return nil, fmt.Errorf("%w: no schema configured", ErrIncorrectUsage)
	}

	cfg, err := NewWithOptions(b.schema, b.opts)
	if err != nil {
		return nil, err
	}

	files := b.files
	if b.discovery != nil {
		if path := b.discover(*b.discovery); path != "" {
			files = append(files, path)
		}
	}

	var loadErr error
	for _, path := range files {
		if err := cfg.Merge(path); err != nil {
			if !errors.Is(err, ErrConfigNotFound) {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
			// Not fatal: the application can proceed with defaults/env vars
			loadErr = errors.Join(loadErr, err)
		}
	}

	if b.validate != nil {
		if err := cfg.Validate(*b.validate); err != nil {
			return nil, err
		}
	}

	for _, validator := range b.validators {
		if err := validator(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	// ErrConfigNotFound or nil
	return cfg, loadErr
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild() *Config {
	cfg, err := b.Build()
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		panic(fmt.Sprintf("config build failed: %v", err))
	}
	return cfg
}

// BuildAndScan builds and decodes the subtree at the scan path into target
func (b *Builder) BuildAndScan(target any) error {
	cfg, err := b.Build()
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		return err
	}

	if err := cfg.Scan(b.scanPath, target); err != nil {
		return fmt.Errorf("failed to scan final config into target: %w", err)
	}

	// ErrConfigNotFound or nil
	return err
}
