// FILE: lixenwraith/confschema/cmd/confschema/commands.go
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/confschema"
	"github.com/lixenwraith/confschema/format"
)

// Build information, set via ldflags.
var Version = "dev"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:      "confschema",
		Usage:     "Validate and inspect schema-driven configuration",
		Version:   Version,
		Flags:     globalFlags(),
		ArgsUsage: "[-- ARGS...]",
		Commands: []*cli.Command{
			validateCommand(),
			dumpCommand(),
			schemaCommand(),
			originCommand(),
			watchCommand(),
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				slog.SetDefault(slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: slog.LevelDebug})))
			}
			return nil
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "schema",
			Aliases:  []string{"s"},
			Usage:    "Schema file (json, jsonc, yaml or toml)",
			EnvVars:  []string{"CONFSCHEMA_SCHEMA"},
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file merged over the defaults, repeatable",
			EnvVars: []string{"CONFSCHEMA_CONFIG"},
		},
		&cli.BoolFlag{
			Name:  "strict-parsing",
			Usage: "Reject shorthand leaves and inferred formats in the schema",
		},
		&cli.BoolFlag{
			Name:  "formats",
			Usage: "Register the extended format pack (email, url, duration, ...)",
			Value: true,
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate the merged configuration against the schema",
		ArgsUsage: "[-- ARGS...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "allowed",
				Usage: "Undeclared parameters: warn or strict",
				Value: confschema.AllowedWarn,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := load(c, c.Args().Slice())
			if err != nil {
				return err
			}
			err = cfg.Validate(confschema.ValidateOptions{
				Allowed: c.String("allowed"),
				Output: func(msg string) {
					fmt.Fprintln(c.App.ErrWriter, msg)
				},
			})
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			fmt.Fprintln(c.App.Writer, "configuration is valid")
			return nil
		},
	}
}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "Print the effective configuration with sensitive values masked",
		ArgsUsage: "[-- ARGS...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format: json, yaml, toml",
				Value:   "json",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := load(c, c.Args().Slice())
			if err != nil {
				return err
			}
			return writeValues(c.App.Writer, cfg, c.String("output"))
		},
	}
}

func writeValues(w io.Writer, cfg *confschema.Config, output string) error {
	switch output {
	case "json":
		_, err := fmt.Fprintln(w, cfg.String())
		return err
	case "yaml", "yml":
		out, err := yaml.Marshal(cfg.GetMaskedProperties())
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	case "toml":
		return cfg.Dump(w)
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the compiled schema",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Include internal bookkeeping (paths, origins)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := load(c, nil)
			if err != nil {
				return err
			}
			out, err := cfg.GetSchemaString(c.Bool("debug"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, out)
			return nil
		},
	}
}

func originCommand() *cli.Command {
	return &cli.Command{
		Name:      "origin",
		Usage:     "Show the value of a parameter and the getter that supplied it",
		ArgsUsage: "PATH [-- ARGS...]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("missing PATH argument", 1)
			}
			path := c.Args().First()

			cfg, err := load(c, c.Args().Tail())
			if err != nil {
				return err
			}
			origin, err := cfg.GetOrigin(path)
			if err != nil {
				return err
			}
			value, err := cfg.Get(path)
			if err != nil {
				return err
			}

			rendered := confschema.SensitiveMask
			if !isSensitive(cfg, path) {
				out, err := json.Marshal(value)
				if err != nil {
					return fmt.Errorf("encode value: %w", err)
				}
				rendered = string(out)
			}
			if origin == "" {
				origin = "(none)"
			}
			fmt.Fprintf(c.App.Writer, "%s = %s (origin: %s)\n", path, rendered, origin)
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch the configuration files and print changed parameters",
		ArgsUsage: "[-- ARGS...]",
		Action: func(c *cli.Context) error {
			cfg, err := load(c, c.Args().Slice())
			if err != nil {
				return err
			}
			changes, err := cfg.Watch(confschema.DefaultWatchOptions())
			if err != nil {
				return err
			}
			defer cfg.StopWatch()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			for {
				select {
				case path, ok := <-changes:
					if !ok {
						return nil
					}
					fmt.Fprintln(c.App.Writer, path)
				case <-sigCh:
					return nil
				}
			}
		},
	}
}

// load compiles the schema with args as the arg getter input and merges every
// --config file. A missing config file is logged, not fatal.
func load(c *cli.Context, args []string) (*confschema.Config, error) {
	reg := confschema.NewRegistry()
	if c.Bool("formats") {
		if err := format.Register(reg); err != nil {
			return nil, err
		}
	}
	// flag parsing stops at the first positional, leaving "--" in place after PATH
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}
	if args == nil {
		args = []string{}
	}

	cfg, err := confschema.NewBuilder().
		WithSchema(c.String("schema")).
		WithRegistry(reg).
		WithArgs(args).
		WithStrictParsing(c.Bool("strict-parsing")).
		WithFiles(c.StringSlice("config")...).
		WithLogger(slog.Default()).
		Build()
	if errors.Is(err, confschema.ErrConfigNotFound) {
		slog.Warn("configuration file not found", "error", err)
		return cfg, nil
	}
	return cfg, err
}

func isSensitive(cfg *confschema.Config, path string) bool {
	node := cfg.Schema()
	segments, err := confschema.ParsePath(path)
	if err != nil {
		return false
	}
	for _, segment := range segments {
		if node = node.Child(segment); node == nil {
			return false
		}
	}
	return node.Sensitive()
}
