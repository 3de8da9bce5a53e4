// FILE: lixenwraith/confschema/errors.go
package confschema

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by the package matches exactly one of these
// through errors.Is, so callers branch on kind rather than on message text.
var (
	// ErrSchemaInvalid reports a malformed schema definition (compile time, fatal).
	ErrSchemaInvalid = errors.New("schema invalid")
	// ErrCustomiseFailed reports a bad format/getter/parser registration.
	ErrCustomiseFailed = errors.New("customise failed")
	// ErrIncorrectUsage reports a misuse of the runtime API.
	ErrIncorrectUsage = errors.New("incorrect usage")
	// ErrPathInvalid reports a path that cannot be walked.
	ErrPathInvalid = errors.New("path invalid")
	// ErrFormatInvalid reports a leaf value rejected by its format.
	ErrFormatInvalid = errors.New("format invalid")
	// ErrValueInvalid reports a missing or undeclared value found during validation.
	ErrValueInvalid = errors.New("value invalid")
	// ErrValidateFailed is the aggregate returned by Config.Validate.
	ErrValidateFailed = errors.New("validate failed")
	// ErrConfigNotFound is returned when a discovered or merged file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)

// SchemaError is returned when the schema itself is malformed.
type SchemaError struct {
	FullName string
	Message  string
}

func (e *SchemaError) Error() string { return e.FullName + ": " + e.Message }
func (e *SchemaError) Unwrap() error { return ErrSchemaInvalid }

// CustomiseError is returned by registry mutations.
type CustomiseError struct {
	Message string
}

func (e *CustomiseError) Error() string { return e.Message }
func (e *CustomiseError) Unwrap() error { return ErrCustomiseFailed }

// UsageError is returned when the Config API is called with invalid arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }
func (e *UsageError) Unwrap() error { return ErrIncorrectUsage }

// PathError describes why a traversal stopped.
type PathError struct {
	// FullName is the requested path.
	FullName string
	// LastPosition is the path up to and including the segment that could not be resolved.
	LastPosition string
	// Parent is the deepest resolvable ancestor.
	Parent string
	// Why is the human-readable reason, e.g. `"db" is a string`.
	Why string
}

func newPathError(fullName string, historic []string, parentValue any) *PathError {
	lastPosition := unroot(StringifyPath(historic))
	parent := unroot(StringifyPath(historic[:len(historic)-1]))

	var why string
	switch {
	case parentValue == nil:
		why = fmt.Sprintf("%q is null", parent)
	case !isContainer(parentValue):
		why = fmt.Sprintf("%q is a %s", parent, jsTypeName(parentValue))
	default:
		why = fmt.Sprintf("%q is not defined", lastPosition)
	}

	return &PathError{
		FullName:     unroot(fullName),
		LastPosition: lastPosition,
		Parent:       parent,
		Why:          why,
	}
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: cannot find %q property because %s.", e.FullName, e.LastPosition, e.Why)
}

func (e *PathError) Unwrap() error { return ErrPathInvalid }

// GetterRef names the getter that produced a value and the keyword it was bound to.
type GetterRef struct {
	Name    string
	Keyname any
}

// FormatError is produced when a leaf validator rejects a value.
type FormatError struct {
	FullName string
	Message  string
	Getter   GetterRef
	Value    any
}

func (e *FormatError) Error() string {
	if e.FullName == "" {
		return e.Message
	}
	return e.FullName + ": " + e.Message
}

func (e *FormatError) Unwrap() error { return ErrFormatInvalid }

// ValueError reports a missing or undeclared value.
type ValueError struct {
	FullName string
	Message  string
}

func (e *ValueError) Error() string { return e.Message }
func (e *ValueError) Unwrap() error { return ErrValueInvalid }

// ValidateError is the aggregate returned by Config.Validate.
type ValidateError struct {
	// Why is the rendered list of failures, one per line.
	Why string
	// Errors holds every collected failure.
	Errors []error
}

func (e *ValidateError) Error() string {
	return "Validate failed because wrong value(s):\n" + e.Why
}

func (e *ValidateError) Unwrap() error { return ErrValidateFailed }

// ErrorListEntry is one child failure inside an ErrorList.
type ErrorListEntry struct {
	// Parent is the path of the child that failed, relative to the configuration root.
	Parent string
	Err    error
}

// ErrorList lets a custom format report several child failures at once,
// typically when it validates a nested sub-schema per element.
// The compiled validator re-renders it with the property path and format name.
type ErrorList struct {
	Entries []ErrorListEntry
	message string
}

// Add appends a child failure. Nil errors are ignored.
func (l *ErrorList) Add(parent string, err error) {
	if err == nil {
		return
	}
	l.Entries = append(l.Entries, ErrorListEntry{Parent: parent, Err: err})
}

// Len returns the number of child failures.
func (l *ErrorList) Len() int { return len(l.Entries) }

// AsError returns nil when the list is empty.
func (l *ErrorList) AsError() error {
	if l == nil || len(l.Entries) == 0 {
		return nil
	}
	return l
}

func (l *ErrorList) Error() string {
	if l.message != "" {
		return l.message
	}
	return "List of several errors."
}

func (l *ErrorList) Unwrap() error { return ErrFormatInvalid }

// render builds the multi-line message listing every child failure under fullName.
func (l *ErrorList) render(fullName, format string) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: Custom format %q tried to validate something and failed:", unroot(fullName), format)
	for i, entry := range l.Entries {
		why := entry.Err.Error()
		var ve *ValidateError
		if errors.As(entry.Err, &ve) {
			why = ve.Why
		}
		fmt.Fprintf(&b, "\n    %d) %s:", i+1, unroot(entry.Parent))
		b.WriteString(strings.ReplaceAll("\n"+why, "\n", "\n    "))
	}
	l.message = b.String()
}
