// FILE: lixenwraith/confschema/doc.go

// Package confschema provides schema-driven configuration for Go applications.
// A schema declares every configuration leaf with its default, format, docs and the
// sources that may supply it. Values are resolved from a prioritized list of getters
// (default, value, env, arg, force), overlaid with files or data, and validated
// against the declared formats.
//
// Features:
//   - Nested schemas with shorthand leaves and default-type inference
//   - Named formats, whitelists, type markers and custom validators
//   - Pluggable getters with a monotonic priority protocol and per-leaf origin tracking
//   - JSON, JSONC, YAML and TOML parsers selected by file extension
//   - Validation that reports every invalid, missing and undeclared parameter at once
//   - Sensitive leaves masked in String, Dump and validation reports
//   - Typed accessors, struct decoding, builder, file discovery and file watching
//   - Thread-safe operations using sync.RWMutex
//
// Quick Start:
//
//	cfg, err := confschema.New(map[string]any{
//	    "env": map[string]any{
//	        "doc":     "The application environment.",
//	        "format":  []any{"production", "development", "test"},
//	        "default": "development",
//	        "env":     "NODE_ENV",
//	    },
//	    "port": map[string]any{
//	        "format":  "port",
//	        "default": 8080,
//	        "env":     "PORT",
//	        "arg":     "port",
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Merge("./config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(confschema.ValidateOptions{Allowed: confschema.AllowedStrict}); err != nil {
//	    log.Fatal(err)
//	}
//
//	port, _ := cfg.GetInt64("port")
//	origin, _ := cfg.GetOrigin("port") // "default", "value", "env", "arg" or "force"
//
// Getter priority (highest to lowest):
//  1. force
//  2. Command-line arguments (--port 9090)
//  3. Environment variables (PORT=9090)
//  4. Merged values and files
//  5. Default values
//
// Once a leaf's origin is at a given priority, getter resolution only considers
// getters at or above it, so RefreshGetters never undoes a merge.
//
// Thread Safety:
// All Config operations are safe for concurrent use. Registries are safe for
// concurrent registration; each Config snapshots the getters it was built with.
package confschema
