// FILE: lixenwraith/confschema/type.go
package confschema

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// GetString returns the value at path as a string, converting numbers, booleans,
// byte slices and Stringers. A nil value yields "".
func (c *Config) GetString(path string) (string, error) {
	val, err := c.Get(path)
	if err != nil {
		return "", err
	}
	if val == nil {
		return "", nil
	}

	switch v := val.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case []byte:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case error:
		return v.Error(), nil
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	}
	return "", fmt.Errorf("cannot convert type %T to string for path %s", val, path)
}

// GetInt64 returns the value at path as an int64. Floats are truncated, strings
// are parsed with base detection, booleans map to 0/1.
func (c *Config) GetInt64(path string) (int64, error) {
	val, err := c.Get(path)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, fmt.Errorf("value for path %s is nil, cannot convert to int64", path)
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > uint64(1<<63-1) {
			return 0, fmt.Errorf("cannot convert unsigned integer %d to int64 for path %s: overflow", u, path)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return int64(rv.Float()), nil
	case reflect.String:
		s := rv.String()
		i, err := strconv.ParseInt(s, 0, 64)
		if err == nil {
			return i, nil
		}
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			return int64(f), nil
		}
		return 0, fmt.Errorf("cannot convert string %q to int64 for path %s: %w", s, path, err)
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot convert type %T to int64 for path %s", val, path)
}

// GetBool returns the value at path as a bool. Numbers are true when non-zero.
func (c *Config) GetBool(path string) (bool, error) {
	val, err := c.Get(path)
	if err != nil {
		return false, err
	}
	if val == nil {
		return false, fmt.Errorf("value for path %s is nil, cannot convert to bool", path)
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		b, err := strconv.ParseBool(rv.String())
		if err != nil {
			return false, fmt.Errorf("cannot convert string %q to bool for path %s: %w", rv.String(), path, err)
		}
		return b, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0, nil
	}
	return false, fmt.Errorf("cannot convert type %T to bool for path %s", val, path)
}

// GetFloat64 returns the value at path as a float64.
func (c *Config) GetFloat64(path string) (float64, error) {
	val, err := c.Get(path)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, fmt.Errorf("value for path %s is nil, cannot convert to float64", path)
	}

	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.String:
		f, err := strconv.ParseFloat(rv.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string %q to float64 for path %s: %w", rv.String(), path, err)
		}
		return f, nil
	case reflect.Bool:
		if rv.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot convert type %T to float64 for path %s", val, path)
}

// GetDuration returns the value at path as a time.Duration. Strings use
// time.ParseDuration, integers are nanoseconds.
func (c *Config) GetDuration(path string) (time.Duration, error) {
	val, err := c.Get(path)
	if err != nil {
		return 0, err
	}

	switch v := val.(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string %q to duration for path %s: %w", v, path, err)
		}
		return d, nil
	}

	n, err := c.GetInt64(path)
	if err != nil {
		return 0, err
	}
	return time.Duration(n), nil
}
