package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/td/internal/conflict"
)

// Set writes key=value into the config file at path (DefaultPath if
// empty), creating it if needed. Other keys in the file are kept. The
// value is checked against the key's type before anything is written.
func Set(path, key, value string) error {
	if path == "" {
		path = DefaultPath()
	}
	if !IsKey(key) {
		return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(Keys(), ", "))
	}

	typed, err := parseValue(key, value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	doc := map[string]any{}
	// #nosec G304 - config path comes from the user
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	setNested(doc, strings.Split(key, "."), typed)

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// parseValue converts value to the type the key's default has.
func parseValue(key, value string) (any, error) {
	switch defaults()[key].(type) {
	case bool:
		return strconv.ParseBool(value)
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, errors.New("must be positive")
		}
		return n, nil
	case time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	}

	if key == KeyConflictStrategy {
		s, err := conflict.ParseStrategy(value)
		if err != nil {
			return nil, err
		}
		return string(s), nil
	}
	return value, nil
}

func setNested(doc map[string]any, path []string, value any) {
	if len(path) == 1 {
		doc[path[0]] = value
		return
	}
	child, ok := doc[path[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		doc[path[0]] = child
	}
	setNested(child, path[1:], value)
}
