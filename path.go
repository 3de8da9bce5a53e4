// FILE: lixenwraith/confschema/path.go
package confschema

import (
	"fmt"
	"strconv"
	"strings"
)

// rootKey wraps every schema and instance tree so top-level paths compose
// exactly like nested ones.
const rootKey = "root"

// ParsePath splits a dot/bracket path into its segments.
//
//	server.port         -> [server port]
//	hosts[0].name       -> [hosts 0 name]
//	labels["app.kind"]  -> [labels app.kind]
//
// An empty path yields no segments and refers to the configuration root.
func ParsePath(path string) ([]string, error) {
	var segments []string
	i := 0
	expectKey := true

	for i < len(path) {
		switch c := path[i]; c {
		case '.':
			if expectKey {
				return nil, invalidPath(path, i, "unexpected '.'")
			}
			expectKey = true
			i++
		case '[':
			end, segment, err := parseBracket(path, i)
			if err != nil {
				return nil, err
			}
			segments = append(segments, segment)
			i = end
			expectKey = false
		case ']':
			return nil, invalidPath(path, i, "unexpected ']'")
		default:
			if !expectKey {
				return nil, invalidPath(path, i, "missing '.' before key")
			}
			start := i
			for i < len(path) && path[i] != '.' && path[i] != '[' && path[i] != ']' {
				i++
			}
			segments = append(segments, path[start:i])
			expectKey = false
		}
	}

	if expectKey && len(segments) > 0 {
		return nil, invalidPath(path, len(path), "trailing '.'")
	}
	return segments, nil
}

// parseBracket reads a `[n]`, `["key"]` or `['key']` segment starting at path[start].
func parseBracket(path string, start int) (int, string, error) {
	i := start + 1
	if i >= len(path) {
		return 0, "", invalidPath(path, i, "unterminated '['")
	}

	if q := path[i]; q == '"' || q == '\'' {
		j := i + 1
		for j < len(path) && path[j] != q {
			if path[j] == '\\' {
				j++
			}
			j++
		}
		if j >= len(path) || j+1 >= len(path) || path[j+1] != ']' {
			return 0, "", invalidPath(path, start, "unterminated quoted key")
		}
		raw := path[i+1 : j]
		if q == '\'' {
			raw = strings.ReplaceAll(raw, `\'`, `'`)
			raw = strings.ReplaceAll(raw, `"`, `\"`)
		}
		key, err := strconv.Unquote(`"` + raw + `"`)
		if err != nil {
			return 0, "", invalidPath(path, start, "bad escape in quoted key")
		}
		return j + 2, key, nil
	}

	end := strings.IndexByte(path[i:], ']')
	if end < 0 {
		return 0, "", invalidPath(path, start, "unterminated '['")
	}
	index := path[i : i+end]
	if _, err := strconv.Atoi(index); err != nil {
		return 0, "", invalidPath(path, start, "bracket index must be a number or a quoted key")
	}
	return i + end + 1, index, nil
}

func invalidPath(path string, pos int, reason string) error {
	return &UsageError{Message: fmt.Sprintf("invalid path %q at offset %d: %s", path, pos, reason)}
}

// StringifyPath is the inverse of ParsePath.
func StringifyPath(segments []string) string {
	var b strings.Builder
	for i, segment := range segments {
		switch {
		case isNumeric(segment):
			b.WriteString("[" + segment + "]")
		case isPlainKey(segment):
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(segment)
		default:
			b.WriteString("[" + strconv.Quote(segment) + "]")
		}
	}
	return b.String()
}

// joinPath appends one segment to an already stringified path.
func joinPath(parent, key string) string {
	if parent == "" {
		return StringifyPath([]string{key})
	}
	return parent + StringifyPath([]string{"_", key})[1:]
}

// unroot strips the implicit root segment from a stringified path.
func unroot(path string) string {
	switch {
	case path == rootKey:
		return ""
	case strings.HasPrefix(path, rootKey+"."):
		return path[len(rootKey)+1:]
	case strings.HasPrefix(path, rootKey+"["):
		return path[len(rootKey):]
	}
	return strings.TrimPrefix(path, ".")
}

// rooted parses a user path and prefixes the root segment.
func rooted(path string) ([]string, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return append([]string{rootKey}, segments...), nil
}

// walk descends obj along segments. With initializeMissing, absent or nil
// intermediate values are replaced with empty maps; scalars still stop the walk.
func walk(obj any, segments []string, initializeMissing bool) (any, error) {
	historic := make([]string, 0, len(segments))

	for _, key := range segments {
		historic = append(historic, key)

		switch node := obj.(type) {
		case map[string]any:
			value, exists := node[key]
			if initializeMissing && value == nil {
				child := make(map[string]any)
				node[key] = child
				obj = child
				continue
			}
			if exists {
				obj = value
				continue
			}
		case []any:
			if idx, err := strconv.Atoi(key); err == nil && idx >= 0 && idx < len(node) {
				if initializeMissing && node[idx] == nil {
					child := make(map[string]any)
					node[idx] = child
					obj = child
					continue
				}
				obj = node[idx]
				continue
			}
		}

		return nil, newPathError(StringifyPath(segments), historic, obj)
	}

	return obj, nil
}

// isPlainKey reports whether a segment can be written in dot notation.
func isPlainKey(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !(isLetter || isDigit || r == '_' || r == '-' || r == '$' || r == '~') {
			return false
		}
	}
	return true
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
