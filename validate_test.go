// FILE: lixenwraith/confschema/validate_test.go
package confschema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	cfg := newTestConfig(t, nil)

	require.NoError(t, cfg.Validate(ValidateOptions{}))
	require.NoError(t, cfg.Validate(ValidateOptions{Allowed: AllowedStrict}))

	before := cfg.GetProperties()
	require.NoError(t, cfg.Validate(ValidateOptions{}))
	assert.Equal(t, before, cfg.GetProperties())
}

func TestValidateUnknownAllowed(t *testing.T) {
	cfg := newTestConfig(t, nil)
	err := cfg.Validate(ValidateOptions{Allowed: "loose"})
	assert.ErrorIs(t, err, ErrIncorrectUsage)
}

func TestValidateInvalidValue(t *testing.T) {
	t.Run("FromEnv", func(t *testing.T) {
		cfg := newTestConfig(t, map[string]string{"PORT": "70000"})

		err := cfg.Validate(ValidateOptions{})
		var ve *ValidateError
		require.ErrorAs(t, err, &ve)
		assert.ErrorIs(t, err, ErrValidateFailed)
		assert.Equal(t,
			"  - port: ports must be within range 0 - 65535: value was 70000, getter was `env[\"PORT\"]`",
			ve.Why)
		assert.Equal(t, "Validate failed because wrong value(s):\n"+ve.Why, err.Error())

		require.Len(t, ve.Errors, 1)
		var fe *FormatError
		require.ErrorAs(t, ve.Errors[0], &fe)
		assert.Equal(t, "port", fe.FullName)
		assert.Equal(t, PriorityEnv, fe.Getter.Name)
		assert.Equal(t, "PORT", fe.Getter.Keyname)
	})

	t.Run("FromValue", func(t *testing.T) {
		cfg := newTestConfig(t, nil)
		require.NoError(t, cfg.Set("env", "staging"))

		err := cfg.Validate(ValidateOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(),
			"  - env: must be one of the possible values: [\"production\",\"development\",\"test\"]: value was \"staging\", getter was `value`")
	})

	t.Run("SeveralCollected", func(t *testing.T) {
		cfg := newTestConfig(t, map[string]string{"PORT": "-1"})
		require.NoError(t, cfg.Set("env", "staging"))

		err := cfg.Validate(ValidateOptions{})
		var ve *ValidateError
		require.ErrorAs(t, err, &ve)
		assert.Len(t, ve.Errors, 2)
	})
}

func TestValidateSensitiveMasked(t *testing.T) {
	schema := map[string]any{
		"token": map[string]any{
			"format":    "port",
			"default":   0,
			"sensitive": true,
			"env":       "TOKEN",
		},
	}
	cfg, err := NewWithOptions(schema, Options{Env: map[string]string{"TOKEN": "99999"}, Args: []string{}})
	require.NoError(t, err)

	err = cfg.Validate(ValidateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value was [Sensitive], getter was `env[[Sensitive]]`")
	assert.NotContains(t, err.Error(), "99999")
	assert.NotContains(t, err.Error(), "TOKEN")
}

func TestValidateRequired(t *testing.T) {
	schema := map[string]any{
		"port":   map[string]any{"format": "port", "default": nil, "required": true},
		"option": map[string]any{"format": "port", "default": nil},
	}
	cfg, err := compileSchema(t, schema, false)
	require.NoError(t, err)

	err = cfg.Validate(ValidateOptions{})
	var ve *ValidateError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "  - port: ports must be within range 0 - 65535", ve.Why)
}

func TestValidateMissingParent(t *testing.T) {
	cfg := newTestConfig(t, nil)
	require.NoError(t, cfg.Merge(map[string]any{"db": "postgres://localhost"}))

	var warning string
	err := cfg.Validate(ValidateOptions{Output: func(s string) { warning = s }})
	require.Error(t, err)
	assert.Contains(t, err.Error(),
		`config parameter "db.host" missing from config, did you override its parent? Because "db" is a string.`)
	assert.Contains(t, err.Error(), `config parameter "db.password" missing from config`)
	assert.Equal(t, "Warning:\n  - configuration param 'db' not declared in the schema", warning)
}

func TestValidateUndeclared(t *testing.T) {
	newConfig := func(t *testing.T) *Config {
		cfg := newTestConfig(t, nil)
		require.NoError(t, cfg.Merge(map[string]any{
			"extra": map[string]any{"flag": true},
			"hosts": []any{"c"},
		}))
		return cfg
	}

	t.Run("WarnRoutesToOutput", func(t *testing.T) {
		cfg := newConfig(t)
		var outputs []string
		err := cfg.Validate(ValidateOptions{Output: func(s string) { outputs = append(outputs, s) }})
		require.NoError(t, err)
		assert.Equal(t, []string{"Warning:\n  - configuration param 'extra.flag' not declared in the schema"}, outputs)
	})

	t.Run("Strict", func(t *testing.T) {
		cfg := newConfig(t)
		err := cfg.Validate(ValidateOptions{Allowed: AllowedStrict})

		var ve *ValidateError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "  - configuration param 'extra.flag' not declared in the schema", ve.Why)
		require.Len(t, ve.Errors, 1)
		assert.ErrorIs(t, ve.Errors[0], ErrValueInvalid)
	})

	t.Run("ObjectLeafIsOpaque", func(t *testing.T) {
		cfg, err := compileSchema(t, map[string]any{
			"labels": map[string]any{"format": Object, "default": map[string]any{}},
		}, false)
		require.NoError(t, err)
		require.NoError(t, cfg.Merge(map[string]any{"labels": map[string]any{"team": "core"}}))

		assert.NoError(t, cfg.Validate(ValidateOptions{Allowed: AllowedStrict}))
	})
}

func TestValidateErrorList(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.AddFormat(Format{
		Name: "names",
		Validate: func(value any, _ *SchemaNode) error {
			items, ok := value.([]any)
			if !ok {
				return errors.New("must be an Array")
			}
			var list ErrorList
			for i, item := range items {
				if _, ok := item.(string); !ok {
					list.Add(fmt.Sprintf("root.names[%d]", i), errors.New("must be a string"))
				}
			}
			return list.AsError()
		},
	}, false))

	cfg, err := NewWithOptions(map[string]any{
		"names": map[string]any{"format": "names", "default": []any{}},
	}, Options{Registry: reg, Env: map[string]string{}, Args: []string{}})
	require.NoError(t, err)
	require.NoError(t, cfg.Set("names", []any{"a", 1, "b", false}))

	err = cfg.Validate(ValidateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidateFailed)

	msg := err.Error()
	assert.Contains(t, msg, `names: Custom format "names" tried to validate something and failed:`)
	assert.Contains(t, msg, "1) names[1]:\n    must be a string")
	assert.Contains(t, msg, "2) names[3]:\n    must be a string")

	var ve *ValidateError
	require.ErrorAs(t, err, &ve)
	var list *ErrorList
	require.ErrorAs(t, ve.Errors[0], &list)
	assert.Equal(t, 2, list.Len())
}

func TestValidateWhitelist(t *testing.T) {
	cfg, err := compileSchema(t, map[string]any{
		"mode": map[string]any{"format": []any{"a", "b"}, "default": "a"},
	}, false)
	require.NoError(t, err)

	require.NoError(t, cfg.Set("mode", "c"))
	err = cfg.Validate(ValidateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode: must be one of the possible values")

	require.NoError(t, cfg.Set("mode", "b"))
	assert.NoError(t, cfg.Validate(ValidateOptions{}))
}
