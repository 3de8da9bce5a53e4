// FILE: lixenwraith/confschema/config_test.go
package confschema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile creates a file under a fresh temp dir and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func appSchema() map[string]any {
	return map[string]any{
		"env": map[string]any{
			"doc":     "The application environment.",
			"format":  []any{"production", "development", "test"},
			"default": "development",
			"env":     "NODE_ENV",
		},
		"port": map[string]any{
			"doc":     "The port to bind.",
			"format":  "port",
			"default": 3000,
			"env":     "PORT",
			"arg":     "port",
		},
		"db": map[string]any{
			"host": map[string]any{
				"format":  String,
				"default": "localhost",
			},
			"password": map[string]any{
				"format":    String,
				"default":   nil,
				"sensitive": true,
				"env":       "DB_PASSWORD",
			},
		},
		"hosts": map[string]any{
			"format":  Array,
			"default": []any{"a", "b"},
		},
	}
}

func newTestConfig(t *testing.T, env map[string]string, args ...string) *Config {
	t.Helper()
	if env == nil {
		env = map[string]string{}
	}
	if args == nil {
		args = []string{}
	}
	cfg, err := NewWithOptions(appSchema(), Options{Env: env, Args: args})
	require.NoError(t, err)
	return cfg
}

func TestConfigCreation(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg := newTestConfig(t, nil)

		assert.Equal(t, map[string]any{
			"env":   "development",
			"port":  3000,
			"db":    map[string]any{"host": "localhost", "password": nil},
			"hosts": []any{"a", "b"},
		}, cfg.GetProperties())
		assert.Equal(t, []string{"default", "value", "env", "arg", "force"}, cfg.GettersOrder())
	})

	t.Run("EnvOverride", func(t *testing.T) {
		cfg := newTestConfig(t, map[string]string{"PORT": "8080"})

		port, err := cfg.Get("port")
		require.NoError(t, err)
		assert.Equal(t, 8080, port)

		origin, err := cfg.GetOrigin("port")
		require.NoError(t, err)
		assert.Equal(t, PriorityEnv, origin)
	})

	t.Run("GettersOrderOption", func(t *testing.T) {
		cfg, err := NewWithOptions(appSchema(), Options{
			Env:          map[string]string{"PORT": "8080"},
			Args:         []string{"--port", "9090"},
			GettersOrder: []string{"arg", "env"},
		})
		require.NoError(t, err)

		port, _ := cfg.Get("port")
		assert.Equal(t, 8080, port)
	})

	t.Run("InvalidGettersOrder", func(t *testing.T) {
		_, err := NewWithOptions(appSchema(), Options{GettersOrder: []string{"nope"}})
		assert.ErrorIs(t, err, ErrIncorrectUsage)
	})
}

func TestConfigGet(t *testing.T) {
	cfg := newTestConfig(t, nil)

	t.Run("Root", func(t *testing.T) {
		v, err := cfg.Get("")
		require.NoError(t, err)
		assert.Equal(t, cfg.GetProperties(), v)
	})

	t.Run("ArrayIndex", func(t *testing.T) {
		v, err := cfg.Get("hosts[1]")
		require.NoError(t, err)
		assert.Equal(t, "b", v)
	})

	t.Run("ReturnsCopy", func(t *testing.T) {
		v, err := cfg.Get("db")
		require.NoError(t, err)
		v.(map[string]any)["host"] = "mutated"

		host, _ := cfg.Get("db.host")
		assert.Equal(t, "localhost", host)
	})

	t.Run("Undeclared", func(t *testing.T) {
		_, err := cfg.Get("db.user")
		var pathErr *PathError
		require.ErrorAs(t, err, &pathErr)
		assert.Equal(t, "db.user", pathErr.FullName)
		assert.Equal(t, `db.user: cannot find "db.user" property because "db.user" is not defined.`, err.Error())
	})

	t.Run("ThroughScalar", func(t *testing.T) {
		_, err := cfg.Get("port.value")
		assert.ErrorContains(t, err, `"port" is a number`)
	})

	t.Run("BadPath", func(t *testing.T) {
		_, err := cfg.Get("db..host")
		assert.ErrorIs(t, err, ErrIncorrectUsage)
	})
}

func TestConfigOriginAndDefault(t *testing.T) {
	cfg := newTestConfig(t, nil)

	origin, err := cfg.GetOrigin("db.password")
	require.NoError(t, err)
	assert.Equal(t, "", origin)

	_, err = cfg.GetOrigin("nope")
	assert.ErrorIs(t, err, ErrPathInvalid)

	def, err := cfg.Default("port")
	require.NoError(t, err)
	assert.Equal(t, 3000, def)

	_, err = cfg.Default("db")
	assert.ErrorIs(t, err, ErrPathInvalid)
	assert.ErrorContains(t, err, `"db" is a group of properties`)

	_, err = cfg.Default("db.user")
	assert.ErrorIs(t, err, ErrPathInvalid)
}

func TestConfigSet(t *testing.T) {
	t.Run("DeclaredLeafCoerced", func(t *testing.T) {
		cfg := newTestConfig(t, nil)
		require.NoError(t, cfg.Set("port", "4000"))

		port, _ := cfg.Get("port")
		assert.Equal(t, 4000, port)
		origin, _ := cfg.GetOrigin("port")
		assert.Equal(t, PriorityValue, origin)
	})

	t.Run("UndeclaredCreatesParents", func(t *testing.T) {
		cfg := newTestConfig(t, nil)
		require.NoError(t, cfg.Set("extra.nested.key", 1))

		v, err := cfg.Get("extra.nested.key")
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})

	t.Run("ArrayElement", func(t *testing.T) {
		cfg := newTestConfig(t, nil)
		require.NoError(t, cfg.Set("hosts[0]", "z"))

		hosts, _ := cfg.Get("hosts")
		assert.Equal(t, []any{"z", "b"}, hosts)

		assert.ErrorIs(t, cfg.Set("hosts[5]", "z"), ErrPathInvalid)
	})

	t.Run("ThroughScalarFails", func(t *testing.T) {
		cfg := newTestConfig(t, nil)
		assert.ErrorIs(t, cfg.Set("port.sub", 1), ErrPathInvalid)
	})
}

func TestConfigSetWithPriority(t *testing.T) {
	t.Run("UnknownGetter", func(t *testing.T) {
		cfg := newTestConfig(t, nil)
		err := cfg.SetWithPriority("port", 1, "vault", false)
		assert.ErrorIs(t, err, ErrIncorrectUsage)
		assert.EqualError(t, err, "unknown getter: vault")
	})

	t.Run("UndeclaredPath", func(t *testing.T) {
		cfg := newTestConfig(t, nil)
		err := cfg.SetWithPriority("nope", 1, PriorityEnv, false)
		assert.EqualError(t, err, `you cannot set priority because "nope" not declared in the schema`)
	})

	t.Run("RespectPriority", func(t *testing.T) {
		cfg := newTestConfig(t, map[string]string{"PORT": "8080"})

		require.NoError(t, cfg.SetWithPriority("port", 1, PriorityValue, true))
		port, _ := cfg.Get("port")
		assert.Equal(t, 8080, port)

		require.NoError(t, cfg.SetWithPriority("port", 2, PriorityForce, true))
		port, _ = cfg.Get("port")
		assert.Equal(t, 2, port)

		require.NoError(t, cfg.SetWithPriority("port", 3, PriorityArg, true))
		port, _ = cfg.Get("port")
		assert.Equal(t, 2, port)
		origin, _ := cfg.GetOrigin("port")
		assert.Equal(t, PriorityForce, origin)
	})

	t.Run("IgnorePriority", func(t *testing.T) {
		cfg := newTestConfig(t, map[string]string{"PORT": "8080"})
		require.NoError(t, cfg.SetWithPriority("port", 1, PriorityDefault, false))

		port, _ := cfg.Get("port")
		assert.Equal(t, 1, port)
		origin, _ := cfg.GetOrigin("port")
		assert.Equal(t, PriorityDefault, origin)
	})
}

func TestConfigResetAndHas(t *testing.T) {
	cfg := newTestConfig(t, nil)
	require.NoError(t, cfg.Set("port", 5000))
	require.NoError(t, cfg.Reset("port"))

	port, _ := cfg.Get("port")
	assert.Equal(t, 3000, port)
	origin, _ := cfg.GetOrigin("port")
	assert.Equal(t, PriorityDefault, origin)

	assert.ErrorIs(t, cfg.Reset("db"), ErrPathInvalid)

	assert.True(t, cfg.Has("port"))
	assert.True(t, cfg.Has("db"))
	assert.False(t, cfg.Has("db.password"))
	assert.False(t, cfg.Has("nope"))
}

func TestConfigString(t *testing.T) {
	t.Run("MasksUnsetSensitive", func(t *testing.T) {
		cfg := newTestConfig(t, nil)
		out := cfg.String()
		assert.Contains(t, out, `"password": "[Sensitive]"`)
		assert.Contains(t, out, `"port": 3000`)
	})

	t.Run("MasksSetSensitive", func(t *testing.T) {
		cfg := newTestConfig(t, map[string]string{"DB_PASSWORD": "hunter2"})
		assert.NotContains(t, cfg.String(), "hunter2")

		password, _ := cfg.Get("db.password")
		assert.Equal(t, "hunter2", password)

		masked := cfg.GetMaskedProperties().(map[string]any)
		assert.Equal(t, SensitiveMask, masked["db"].(map[string]any)["password"])
	})
}

func TestConfigGetSchema(t *testing.T) {
	cfg := newTestConfig(t, map[string]string{"PORT": "1"})

	plain := cfg.GetSchema(false).(map[string]any)
	port := plain["port"].(map[string]any)
	assert.Equal(t, "port", port["format"])
	assert.Equal(t, 3000, port["default"])
	assert.NotContains(t, port, "__origin")

	debug := cfg.GetSchema(true).(map[string]any)
	children := debug[ReservedKey].(map[string]any)
	debugPort := children["port"].(map[string]any)
	assert.Equal(t, "port", debugPort["__path"])
	assert.Equal(t, PriorityEnv, debugPort["__origin"])

	db := children["db"].(map[string]any)
	assert.Contains(t, db, ReservedKey)

	out, err := cfg.GetSchemaString(false)
	require.NoError(t, err)
	assert.Contains(t, out, `"doc": "The port to bind."`)
}

func TestConfigGettersLifecycle(t *testing.T) {
	t.Run("SortGettersThenRefresh", func(t *testing.T) {
		cfg := newTestConfig(t, map[string]string{"PORT": "8080"}, "--port", "9090")
		port, _ := cfg.Get("port")
		assert.Equal(t, 9090, port)

		require.NoError(t, cfg.SortGetters([]string{"arg", "env"}))
		assert.Equal(t, []string{"default", "value", "arg", "env", "force"}, cfg.GettersOrder())
		require.NoError(t, cfg.RefreshGetters())

		// arg now ranks below env, so the leaf's current arg origin no longer blocks env
		port, _ = cfg.Get("port")
		assert.Equal(t, 8080, port)
		origin, _ := cfg.GetOrigin("port")
		assert.Equal(t, PriorityEnv, origin)
	})

	t.Run("SnapshotIsolation", func(t *testing.T) {
		reg := NewRegistry()
		schema := map[string]any{
			"token": map[string]any{"format": "*", "default": "none", "vault": "token"},
		}
		cfg, err := NewWithOptions(schema, Options{Registry: reg, Env: map[string]string{}, Args: []string{}})
		require.NoError(t, err)

		require.NoError(t, reg.AddGetter("vault", func(any, *SchemaNode, *Scope, func()) any {
			return "from-vault"
		}, false, false))

		token, _ := cfg.Get("token")
		assert.Equal(t, "none", token)

		require.NoError(t, cfg.RefreshGetters())
		token, _ = cfg.Get("token")
		assert.Equal(t, "from-vault", token)
		assert.Equal(t, []string{"default", "value", "env", "arg", "vault", "force"}, cfg.GettersOrder())
	})

	t.Run("RefreshKeepsMergedValue", func(t *testing.T) {
		cfg := newTestConfig(t, nil)
		require.NoError(t, cfg.Merge(map[string]any{"db": map[string]any{"host": "db.internal"}}))
		require.NoError(t, cfg.RefreshGetters())

		host, _ := cfg.Get("db.host")
		assert.Equal(t, "db.internal", host)
		origin, _ := cfg.GetOrigin("db.host")
		assert.Equal(t, PriorityValue, origin)
	})
}

func TestConfigConcurrentAccess(t *testing.T) {
	cfg := newTestConfig(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = cfg.Set("port", 1000+i)
				_ = cfg.Merge(map[string]any{"db": map[string]any{"host": fmt.Sprintf("h%d", j)}})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = cfg.Get("port")
				_ = cfg.String()
				_ = cfg.Validate(ValidateOptions{Output: func(string) {}})
			}
		}()
	}
	wg.Wait()

	port, err := cfg.Get("port")
	require.NoError(t, err)
	assert.True(t, port.(int) >= 1000 && port.(int) < 1010)
	host, _ := cfg.Get("db.host")
	assert.True(t, strings.HasPrefix(host.(string), "h"))
}
