// FILE: lixenwraith/confschema/cmd/confschema/main.go

// Package main provides the confschema command-line tool.
//
// It compiles a schema file, merges configuration files and reports the
// result: validation errors, the effective values, the compiled schema or
// the origin of a single parameter.
package main

import (
	"fmt"
	"log/slog"
	"os"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
