// FILE: lixenwraith/confschema/convenience_test.go
package confschema

import (
	"bytes"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuick(t *testing.T) {
	schema := map[string]any{
		"name":    map[string]any{"format": String, "default": "app"},
		"workers": map[string]any{"format": "nat", "default": 4},
	}

	t.Run("WithFile", func(t *testing.T) {
		path := writeFile(t, "quick.json", `{"workers": 8}`)
		cfg, err := Quick(schema, path)
		require.NoError(t, err)

		workers, _ := cfg.Get("workers")
		assert.Equal(t, 8, workers)
	})

	t.Run("MissingFile", func(t *testing.T) {
		cfg, err := Quick(schema, "/nonexistent/quick.json")
		assert.ErrorIs(t, err, ErrConfigNotFound)
		require.NotNil(t, cfg)

		name, _ := cfg.Get("name")
		assert.Equal(t, "app", name)
	})

	t.Run("InvalidValue", func(t *testing.T) {
		path := writeFile(t, "quick.json", `{"workers": -2}`)
		_, err := Quick(schema, path)
		assert.ErrorIs(t, err, ErrValidateFailed)

		assert.Panics(t, func() { MustQuick(schema, path) })
	})

	t.Run("MustQuickToleratesMissing", func(t *testing.T) {
		assert.NotPanics(t, func() { MustQuick(schema, "/nonexistent/quick.json") })
	})
}

func TestGenerateAndBindFlags(t *testing.T) {
	schema := appSchema()
	schema["db"].(map[string]any)["password"].(map[string]any)["arg"] = "db-password"
	schema["db"].(map[string]any)["password"].(map[string]any)["default"] = "changeme"

	cfg, err := NewWithOptions(schema, Options{Env: map[string]string{"PORT": "8080"}, Args: []string{}})
	require.NoError(t, err)

	fs := cfg.GenerateFlags()

	port := fs.Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "3000", port.DefValue)
	assert.Equal(t, "The port to bind.", port.Usage)

	password := fs.Lookup("db-password")
	require.NotNil(t, password)
	assert.Equal(t, "", password.DefValue)
	assert.Equal(t, "Config: db.password", password.Usage)

	assert.Nil(t, fs.Lookup("env"))

	require.NoError(t, fs.Parse([]string{"--port", "9000"}))
	require.NoError(t, cfg.BindFlags(fs))

	value, _ := cfg.Get("port")
	assert.Equal(t, 9000, value)
	origin, _ := cfg.GetOrigin("port")
	assert.Equal(t, PriorityArg, origin)

	// unset flags leave their leaves alone
	value, _ = cfg.Get("db.password")
	assert.Equal(t, "changeme", value)
}

func TestBindFlagsRespectsForce(t *testing.T) {
	cfg := newTestConfig(t, nil)
	require.NoError(t, cfg.SetWithPriority("port", 1234, PriorityForce, false))

	fs := cfg.GenerateFlags()
	require.NoError(t, fs.Parse([]string{"--port=9000"}))
	require.NoError(t, cfg.BindFlags(fs))

	value, _ := cfg.Get("port")
	assert.Equal(t, 1234, value)
}

func TestDebug(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{"PORT": "8080", "DB_PASSWORD": "hunter2"})
	out := cfg.Debug()

	assert.Contains(t, out, "Configuration Debug Info:")
	assert.Contains(t, out, "Getters (lowest to highest): [default value env arg force]")
	assert.Contains(t, out, `Path: (string) (len=4) "port"`)
	assert.Contains(t, out, `Origin: (string) (len=3) "env"`)
	assert.Contains(t, out, SensitiveMask)
	assert.NotContains(t, out, "hunter2")
}

func TestDump(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{"DB_PASSWORD": "hunter2"})
	require.NoError(t, cfg.Set("extra.note", nil))

	var buf bytes.Buffer
	require.NoError(t, cfg.Dump(&buf))

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "note")

	var decoded map[string]any
	_, err := toml.Decode(out, &decoded)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), decoded["port"])
	assert.Equal(t, "development", decoded["env"])
	assert.Equal(t, SensitiveMask, decoded["db"].(map[string]any)["password"])
}

func TestClone(t *testing.T) {
	path := writeFile(t, "base.json", `{"db": {"host": "from-file"}}`)
	cfg := newTestConfig(t, nil)
	require.NoError(t, cfg.Merge(path))

	clone := cfg.Clone()
	require.NoError(t, clone.Set("db.host", "cloned"))
	require.NoError(t, clone.SortGetters([]string{PriorityArg, PriorityEnv}))

	host, _ := cfg.Get("db.host")
	assert.Equal(t, "from-file", host)
	host, _ = clone.Get("db.host")
	assert.Equal(t, "cloned", host)

	assert.Equal(t, []string{"default", "value", "env", "arg", "force"}, cfg.GettersOrder())
	assert.Equal(t, []string{path}, clone.Files())
	assert.Same(t, cfg.Schema(), clone.Schema())
	assert.False(t, clone.IsWatching())
}
