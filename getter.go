// FILE: lixenwraith/confschema/getter.go
package confschema

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
)

// Scope gives getters read access to the external sources a Config was built with.
type Scope struct {
	env  map[string]string
	args []string

	argvOnce sync.Once
	argv     map[string]string
}

func newScope(env map[string]string, args []string) *Scope {
	if env == nil {
		env = environ()
	}
	if args == nil {
		args = slices.Clone(os.Args[1:])
	}
	return &Scope{env: env, args: args}
}

// Env returns the environment mapping. Callers must not modify it.
func (s *Scope) Env() map[string]string { return s.env }

// Args returns the raw argument vector.
func (s *Scope) Args() []string { return s.args }

// Argv returns the argument vector tokenized into flag name -> value.
func (s *Scope) Argv() map[string]string {
	s.argvOnce.Do(func() {
		s.argv = parseArgs(s.args)
	})
	return s.argv
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			env[key] = value
		}
	}
	return env
}

// parseArgs tokenizes command-line flags. Supported forms:
//
//	--key value, --key=value, -k value, -k=value
//	--flag (followed by another flag or nothing) = "true"
//	--no-flag = "false"
//
// Dots are kept literally in flag names. A repeated flag keeps its last value.
// Everything after a bare "--" is ignored.
func parseArgs(args []string) map[string]string {
	result := make(map[string]string)
	i := 0
	for i < len(args) {
		arg := args[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" || isNegativeNumber(arg) {
			// Positional argument
			i++
			continue
		}

		content := strings.TrimLeft(arg, "-")
		if content == "" {
			i++
			continue
		}

		var key, value string
		if k, v, hasValue := strings.Cut(content, "="); hasValue {
			key, value = k, v
			i++
		} else {
			key = content
			if i+1 >= len(args) || isFlag(args[i+1]) {
				value = "true"
				if negated, ok := strings.CutPrefix(key, "no-"); ok && negated != "" {
					key, value = negated, "false"
				}
				i++
			} else {
				value = args[i+1]
				i += 2
			}
		}

		if key == "" {
			// --=value
			continue
		}
		result[key] = value
	}
	return result
}

func isFlag(arg string) bool {
	return strings.HasPrefix(arg, "-") && arg != "-" && !isNegativeNumber(arg)
}

func isNegativeNumber(arg string) bool {
	return len(arg) > 1 && arg[0] == '-' && (isNumeric(arg[1:]) || (arg[1] == '.' && isNumeric(arg[2:])))
}

// standardGetters are registered by NewRegistry.
func standardGetters() []GetterSpec {
	return []GetterSpec{
		{
			Name: PriorityDefault,
			Getter: func(keyword any, node *SchemaNode, _ *Scope, _ func()) any {
				return node.Coerce(deepCopy(keyword))
			},
		},
		{
			Name: PriorityEnv,
			Getter: func(keyword any, node *SchemaNode, scope *Scope, _ func()) any {
				value, ok := scope.Env()[fmt.Sprint(keyword)]
				if !ok {
					return nil
				}
				return node.Coerce(value)
			},
		},
		{
			Name: PriorityArg,
			Getter: func(keyword any, node *SchemaNode, scope *Scope, _ func()) any {
				value, ok := scope.Argv()[fmt.Sprint(keyword)]
				if !ok {
					return nil
				}
				return node.Coerce(value)
			},
			UsedOnlyOnce: true,
		},
	}
}

// sortGetters permutes the requested getters into the slots they currently occupy,
// in the requested order. Unnamed getters keep their slots, so force stays last.
func sortGetters(storage getterStorage, requested []string) ([]string, error) {
	seen := make(map[string]bool, len(requested))
	for i, name := range requested {
		if !storage.known(name) {
			return nil, &UsageError{Message: "unknown getter: " + name}
		}
		if seen[name] {
			return nil, &UsageError{Message: fmt.Sprintf("getter %q is listed more than once", name)}
		}
		if name == PriorityForce && i != len(requested)-1 {
			return nil, &UsageError{Message: "force must be the last getter"}
		}
		seen[name] = true
	}

	order := slices.Clone(storage.order)
	next := 0
	for slot, name := range order {
		if seen[name] {
			order[slot] = requested[next]
			next++
		}
	}
	return order, nil
}
