// FILE: lixenwraith/confschema/format/format.go

// Package format provides additional named formats for confschema registries:
// email, ipaddress, url, hostname, uuid, duration and timestamp.
//
//	reg := confschema.NewRegistry()
//	if err := format.Register(reg); err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := confschema.NewWithOptions(schema, confschema.Options{Registry: reg})
package format

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lixenwraith/confschema"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// tagFormat wraps a validator tag applied to string values.
func tagFormat(name, tag, message string) confschema.Format {
	return confschema.Format{
		Name: name,
		Validate: func(value any, _ *confschema.SchemaNode) error {
			s, ok := value.(string)
			if !ok || engine().Var(s, tag) != nil {
				return errors.New(message)
			}
			return nil
		},
	}
}

// Formats returns every format in the pack.
func Formats() []confschema.Format {
	return []confschema.Format{
		tagFormat("email", "required,email", "must be an email address"),
		tagFormat("ipaddress", "required,ip", "must be an IP address"),
		tagFormat("url", "required,url", "must be a URI"),
		tagFormat("hostname", "required,hostname_rfc1123", "must be a hostname"),
		tagFormat("uuid", "required,uuid", "must be a UUID"),
		{Name: "duration", Validate: validateDuration, Coerce: coerceDuration},
		{Name: "timestamp", Validate: validateTimestamp, Coerce: coerceTimestamp},
	}
}

// Register adds the pack to reg. Formats already registered under the same name
// are an error unless rewrite is set.
func Register(reg *confschema.Registry, rewrite ...bool) error {
	return reg.AddFormats(len(rewrite) > 0 && rewrite[0], Formats()...)
}

func validateDuration(value any, _ *confschema.SchemaNode) error {
	if d, ok := value.(time.Duration); ok && d >= 0 {
		return nil
	}
	return errors.New("must be a positive integer or human readable string (e.g. 3000, \"5m\")")
}

// coerceDuration reads integers as milliseconds and strings with time.ParseDuration.
func coerceDuration(value any) any {
	switch v := value.(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	case float64:
		if v == float64(int64(v)) {
			return time.Duration(v) * time.Millisecond
		}
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Duration(n) * time.Millisecond
		}
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return value
}

func validateTimestamp(value any, _ *confschema.SchemaNode) error {
	if _, ok := value.(time.Time); ok {
		return nil
	}
	return errors.New("must be a valid timestamp (RFC 3339 or Unix milliseconds)")
}

// coerceTimestamp reads RFC 3339 strings and integers as Unix milliseconds.
func coerceTimestamp(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v
	case int:
		return time.UnixMilli(int64(v)).UTC()
	case int64:
		return time.UnixMilli(v).UTC()
	case string:
		s := strings.TrimSpace(v)
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			return t
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(n).UTC()
		}
	}
	return value
}
