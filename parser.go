// FILE: lixenwraith/confschema/parser.go
package confschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// standardParsers are registered by NewRegistry. "*" handles unknown extensions.
func standardParsers() map[string]ParseFunc {
	return map[string]ParseFunc{
		"*":      parseJSON,
		"json":   parseJSON,
		"jsonc":  parseJSONC,
		"json5":  parseJSONC,
		"yaml":   parseYAML,
		"yml":    parseYAML,
		"toml":   parseTOML,
		"tml":    parseTOML,
		"conf":   parseDetected,
		"config": parseDetected,
	}
}

// parseJSON decodes JSON keeping integers as int and everything else as float64.
func parseJSON(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var out any
	if err := decoder.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("failed to parse JSON: trailing data after top-level value")
	}
	return convertJSONNumbers(out), nil
}

func convertJSONNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, child := range val {
			val[k] = convertJSONNumbers(child)
		}
	case []any:
		for i, child := range val {
			val[i] = convertJSONNumbers(child)
		}
	}
	return v
}

// parseJSONC accepts JSON with comments and trailing commas.
func parseJSONC(data []byte) (any, error) {
	return parseJSON(jsonc.ToJSON(data))
}

func parseYAML(data []byte) (any, error) {
	var out any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return out, nil
}

func parseTOML(data []byte) (any, error) {
	out := make(map[string]any)
	if err := toml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return out, nil
}

// parseDetected sniffs the content for files with a generic extension.
func parseDetected(data []byte) (any, error) {
	switch detectFormatFromContent(data) {
	case "json":
		return parseJSON(data)
	case "toml":
		return parseTOML(data)
	case "yaml":
		return parseYAML(data)
	}
	return nil, errors.New("unable to determine configuration format from content")
}

// detectFormatFromContent attempts to detect format by parsing.
// TOML goes before YAML: `key = 1` is also a valid YAML scalar document.
func detectFormatFromContent(data []byte) string {
	var jsonTest any
	if err := json.Unmarshal(data, &jsonTest); err == nil {
		return "json"
	}

	tomlTest := make(map[string]any)
	if err := toml.Unmarshal(data, &tomlTest); err == nil {
		return "toml"
	}

	var yamlTest any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		return "yaml"
	}

	return ""
}
