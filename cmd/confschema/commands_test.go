// FILE: lixenwraith/confschema/cmd/confschema/commands_test.go
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const testSchema = `{
  "port": {"doc": "Listen port.", "format": "port", "default": 3000, "arg": "port"},
  "admin": {"format": "email", "default": "root@example.com"},
  "password": {"format": "String", "default": "changeme", "sensitive": true}
}`

func fixtures(t *testing.T, config string) (schemaPath, configPath string) {
	t.Helper()
	dir := t.TempDir()
	schemaPath = filepath.Join(dir, "schema.json")
	configPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0o644))
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))
	return schemaPath, configPath
}

// run executes the app and returns stdout, stderr and the exit code requested through cli.Exit.
func run(t *testing.T, args ...string) (string, string, int, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	exitCode := 0
	previousExiter, previousErrWriter := cli.OsExiter, cli.ErrWriter
	cli.OsExiter = func(code int) { exitCode = code }
	cli.ErrWriter = &stderr
	t.Cleanup(func() {
		cli.OsExiter = previousExiter
		cli.ErrWriter = previousErrWriter
	})

	app := App()
	app.Writer = &stdout
	app.ErrWriter = &stderr

	err := app.Run(append([]string{"confschema"}, args...))
	return stdout.String(), stderr.String(), exitCode, err
}

func TestAppCommands(t *testing.T) {
	app := App()
	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, name := range []string{"validate", "dump", "schema", "origin", "watch"} {
		assert.True(t, names[name], "missing command %s", name)
	}
}

func TestValidateCommand(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		schema, config := fixtures(t, "port: 4000\n")
		stdout, _, code, err := run(t, "-s", schema, "-c", config, "validate")
		require.NoError(t, err)
		assert.Equal(t, 0, code)
		assert.Contains(t, stdout, "configuration is valid")
	})

	t.Run("InvalidExitsWithTwo", func(t *testing.T) {
		schema, config := fixtures(t, "admin: nobody\n")
		_, stderr, code, err := run(t, "-s", schema, "-c", config, "validate")
		require.Error(t, err)
		assert.Equal(t, 2, code)
		assert.Contains(t, stderr, "admin: must be an email address")
	})

	t.Run("FormatsDisabled", func(t *testing.T) {
		schema, config := fixtures(t, "port: 4000\n")
		_, _, _, err := run(t, "-s", schema, "-c", config, "--formats=false", "validate")
		assert.ErrorContains(t, err, `uses an unknown format type (actual: "email")`)
	})

	t.Run("StrictUndeclared", func(t *testing.T) {
		schema, config := fixtures(t, "extra: 1\n")
		_, stderr, code, err := run(t, "-s", schema, "-c", config, "validate", "--allowed", "strict")
		require.Error(t, err)
		assert.Equal(t, 2, code)
		assert.Contains(t, stderr, "configuration param 'extra' not declared in the schema")
	})

	t.Run("ArgsAfterDoubleDash", func(t *testing.T) {
		schema, config := fixtures(t, "port: 4000\n")
		_, stderr, code, err := run(t, "-s", schema, "-c", config, "validate", "--", "--port", "70000")
		require.Error(t, err)
		assert.Equal(t, 2, code)
		assert.Contains(t, stderr, "getter was `arg[\"port\"]`")
	})

	t.Run("MissingSchemaFlag", func(t *testing.T) {
		_, _, _, err := run(t, "validate")
		assert.ErrorContains(t, err, "schema")
	})
}

func TestDumpCommand(t *testing.T) {
	schema, config := fixtures(t, "port: 4000\npassword: hunter2\n")

	tests := []struct {
		output   string
		contains string
	}{
		{"json", `"port": 4000`},
		{"yaml", "port: 4000"},
		{"toml", "port = 4000"},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			stdout, _, _, err := run(t, "-s", schema, "-c", config, "dump", "-o", tt.output)
			require.NoError(t, err)
			assert.Contains(t, stdout, tt.contains)
			assert.NotContains(t, stdout, "hunter2")
		})
	}

	_, _, _, err := run(t, "-s", schema, "-c", config, "dump", "-o", "xml")
	assert.ErrorContains(t, err, `unknown output format "xml"`)
}

func TestSchemaCommand(t *testing.T) {
	schema, _ := fixtures(t, "")

	stdout, _, _, err := run(t, "-s", schema, "schema")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"doc": "Listen port."`)
	assert.NotContains(t, stdout, "__path")

	stdout, _, _, err = run(t, "-s", schema, "schema", "--debug")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"__path": "port"`)
}

func TestOriginCommand(t *testing.T) {
	schema, config := fixtures(t, "port: 4000\n")

	stdout, _, _, err := run(t, "-s", schema, "-c", config, "origin", "port")
	require.NoError(t, err)
	assert.Equal(t, "port = 4000 (origin: value)\n", stdout)

	stdout, _, _, err = run(t, "-s", schema, "-c", config, "origin", "port", "--", "--port", "5000")
	require.NoError(t, err)
	assert.Equal(t, "port = 5000 (origin: arg)\n", stdout)

	stdout, _, _, err = run(t, "-s", schema, "origin", "password")
	require.NoError(t, err)
	assert.Equal(t, "password = [Sensitive] (origin: default)\n", stdout)

	_, _, code, err := run(t, "-s", schema, "origin")
	require.Error(t, err)
	assert.Equal(t, 1, code)
}

func TestMissingConfigIsNotFatal(t *testing.T) {
	schema, _ := fixtures(t, "")
	stdout, _, _, err := run(t, "-s", schema, "-c", filepath.Join(t.TempDir(), "absent.yaml"), "origin", "port")
	require.NoError(t, err)
	assert.Equal(t, "port = 3000 (origin: default)\n", stdout)
}
