// FILE: lixenwraith/confschema/example/main.go
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/lixenwraith/confschema"
	"github.com/lixenwraith/confschema/format"
)

// AppConfig is the decoding target for the "server" subtree.
type AppConfig struct {
	Host     string        `json:"host"`
	Port     int           `json:"port"`
	Timeout  time.Duration `json:"timeout"`
	LogLevel string        `json:"log_level"`
}

var schema = map[string]any{
	"env": map[string]any{
		"doc":     "The application environment.",
		"format":  []any{"production", "development", "test"},
		"default": "development",
		"env":     "APP_ENV",
	},
	"server": map[string]any{
		"host": map[string]any{
			"doc":     "Bind address.",
			"format":  "ipaddress",
			"default": "127.0.0.1",
			"env":     "APP_HOST",
		},
		"port": map[string]any{
			"doc":     "Listen port.",
			"format":  "port",
			"default": 8080,
			"env":     "APP_PORT",
			"arg":     "port",
		},
		"timeout": map[string]any{
			"format":  "duration",
			"default": "30s",
		},
		"log_level": map[string]any{
			"format":  []any{"debug", "info", "warn", "error"},
			"default": "info",
			"arg":     "log-level",
		},
	},
	"db": map[string]any{
		"password": map[string]any{
			"doc":       "Database password.",
			"format":    confschema.String,
			"default":   "",
			"sensitive": true,
			"env":       "APP_DB_PASSWORD",
		},
	},
	"admins": map[string]any{
		"doc":    "Administrator accounts.",
		"format": "source_array",
		"default": []any{},
		"children": map[string]any{
			"name":  map[string]any{"format": confschema.String, "default": nil, "required": true},
			"email": map[string]any{"format": "email", "default": nil, "required": true},
		},
	},
}

const configYAML = `
env: production
server:
  host: 0.0.0.0
  log_level: warn
admins:
  - name: alice
    email: alice@example.com
  - name: bob
    email: not-an-email
`

func main() {
	// =========================================================================
	// PART 1: INITIAL SETUP
	// Write a YAML file and register the formats the schema names.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 1: Creating configuration file and registry...")

	dir, err := os.MkdirTemp("", "confschema-example")
	if err != nil {
		log.Fatalf("❌ Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	configPath := filepath.Join(dir, "app.yaml")
	if err := os.WriteFile(configPath, []byte(configYAML), 0o644); err != nil {
		log.Fatalf("❌ Failed to write config file: %v", err)
	}

	reg := confschema.NewRegistry()
	if err := format.Register(reg); err != nil {
		log.Fatalf("❌ Failed to register format pack: %v", err)
	}
	if err := reg.AddFormat(sourceArrayFormat(reg), false); err != nil {
		log.Fatalf("❌ Failed to register source_array: %v", err)
	}
	log.Printf("✅ Wrote %s and registered formats.", configPath)

	// =========================================================================
	// PART 2: BUILD
	// Defaults < file < env < args.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 2: Building configuration from defaults, file, env and args...")

	cfg, err := confschema.NewBuilder().
		WithSchema(schema).
		WithRegistry(reg).
		WithEnv(map[string]string{"APP_PORT": "9090", "APP_DB_PASSWORD": "hunter2"}).
		WithArgs([]string{"--log-level", "debug"}).
		WithFiles(configPath).
		Build()
	if err != nil && !errors.Is(err, confschema.ErrConfigNotFound) {
		log.Fatalf("❌ Build failed: %v", err)
	}

	for _, path := range []string{"env", "server.host", "server.port", "server.log_level", "db.password"} {
		origin, _ := cfg.GetOrigin(path)
		value, _ := cfg.GetString(path)
		if path == "db.password" {
			value = confschema.SensitiveMask
		}
		log.Printf("   %-18s = %-12s (origin: %s)", path, value, origin)
	}

	var server AppConfig
	if err := cfg.Scan("server", &server); err != nil {
		log.Fatalf("❌ Scan failed: %v", err)
	}
	log.Printf("✅ Decoded server config: %+v", server)

	// =========================================================================
	// PART 3: VALIDATION
	// bob's email is rejected by the nested sub-schema.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 3: Validating...")

	err = cfg.Validate(confschema.ValidateOptions{Allowed: confschema.AllowedStrict})
	var validateErr *confschema.ValidateError
	if errors.As(err, &validateErr) {
		log.Printf("✅ Validation reported the bad admin entry:\n%s", validateErr.Why)
	} else {
		log.Fatalf("❌ Expected a validation error, got: %v", err)
	}

	if err := cfg.Set("admins[1].email", "bob@example.com"); err != nil {
		log.Fatalf("❌ Set failed: %v", err)
	}
	if err := cfg.Validate(confschema.ValidateOptions{Allowed: confschema.AllowedStrict}); err != nil {
		log.Fatalf("❌ Validation still failing: %v", err)
	}
	log.Println("✅ Configuration is valid after the fix.")

	log.Println("---")
	log.Println("➡️  PART 4: Effective configuration (sensitive values masked):")
	fmt.Println(cfg.String())
}

// sourceArrayFormat validates every element of an array against the leaf's
// "children" sub-schema, reporting all failing elements at once.
func sourceArrayFormat(reg *confschema.Registry) confschema.Format {
	return confschema.Format{
		Name: "source_array",
		Validate: func(value any, node *confschema.SchemaNode) error {
			items, ok := value.([]any)
			if !ok {
				return errors.New("must be of type Array")
			}
			children, _ := node.Attribute("children")

			var list confschema.ErrorList
			for i, item := range items {
				child, err := confschema.NewWithOptions(children, confschema.Options{Registry: reg, Env: map[string]string{}, Args: []string{}})
				if err != nil {
					return err
				}
				if err := child.Merge(item); err != nil {
					return err
				}
				list.Add(fmt.Sprintf("%s[%d]", node.Path(), i), child.Validate(confschema.ValidateOptions{Allowed: confschema.AllowedStrict}))
			}
			return list.AsError()
		},
	}
}
