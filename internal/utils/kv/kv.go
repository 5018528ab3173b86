package kv

import (
	"fmt"
	"regexp"
	"strings"
)

var keyRegexp = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.:/-]*$`)

// ParseSpecs parses KEY=VALUE specs into a map, later specs override earlier ones.
func ParseSpecs(specs []string) (map[string]string, error) {
	kvs := make(map[string]string, len(specs))

	for _, spec := range specs {
		if spec == "" {
			return nil, fmt.Errorf("spec cannot be empty")
		}

		key, value, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("spec %q is not in KEY=VALUE format", spec)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if !keyRegexp.MatchString(key) {
			return nil, fmt.Errorf("invalid key %q", key)
		}
		if value == "" {
			return nil, fmt.Errorf("missing value for key %q", key)
		}

		kvs[key] = value
	}

	return kvs, nil
}

// MergeMaps returns a new map with base values overridden by override values.
func MergeMaps(base map[string]string, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}

	return merged
}
