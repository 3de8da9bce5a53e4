// FILE: lixenwraith/confschema/loader.go
package confschema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// readFile reads a configuration file, enforcing maxSize when positive.
// A missing file is reported as ErrConfigNotFound.
func readFile(path string, maxSize int64) ([]byte, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat config file '%s': %w", path, err)
	}
	if fileInfo.IsDir() {
		return nil, fmt.Errorf("config path '%s' is a directory", path)
	}
	if maxSize > 0 && fileInfo.Size() > maxSize {
		return nil, fmt.Errorf("config file '%s' exceeds maximum size %d bytes", path, maxSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if maxSize > 0 {
		reader = io.LimitReader(file, maxSize)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return data, nil
}

// ParseFile reads path and decodes it with the parser registered for its extension.
// An empty file yields a nil tree.
func (r *Registry) ParseFile(path string) (any, error) {
	return r.parseFile(path, 0)
}

func (r *Registry) parseFile(path string, maxSize int64) (any, error) {
	data, err := readFile(path, maxSize)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	tree, err := r.Parse(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	return tree, nil
}
