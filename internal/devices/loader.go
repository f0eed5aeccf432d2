package devices

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fweiler/OpenSupplyCore/internal/types"
	"gopkg.in/yaml.v3"
)

// ProfileLoader finds and parses module profiles. Profiles may be JSON or
// YAML; YAML is converted to JSON before schema validation so both formats
// go through the same checks.
type ProfileLoader struct {
	cache       sync.Map
	validator   *Validator
	searchPaths []string
}

func NewProfileLoader(searchPaths []string) (*ProfileLoader, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &ProfileLoader{
		validator:   validator,
		searchPaths: searchPaths,
	}, nil
}

func (l *ProfileLoader) Load(name string) (*types.ModuleProfile, error) {
	if cached, ok := l.cache.Load(name); ok {
		return cached.(*types.ModuleProfile), nil
	}

	data, err := l.find(name)
	if err != nil {
		return nil, err
	}

	if err := l.validator.ValidateProfile(data); err != nil {
		return nil, fmt.Errorf("validation failed for %s: %w", name, err)
	}

	var profile types.ModuleProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	l.cache.Store(name, &profile)

	return &profile, nil
}

// find locates the profile file and returns its content as JSON.
func (l *ProfileLoader) find(name string) ([]byte, error) {
	for _, searchPath := range l.searchPaths {
		if data, err := os.ReadFile(filepath.Join(searchPath, name+".json")); err == nil {
			return data, nil
		}
		if data, err := os.ReadFile(filepath.Join(searchPath, name+".yaml")); err == nil {
			return yamlToJSON(data)
		}
	}

	return nil, fmt.Errorf("profile not found: %s (searched in: %v)", name, l.searchPaths)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	out, err := json.Marshal(normalizeYAML(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML profile: %w", err)
	}

	return out, nil
}

// normalizeYAML rewrites map[interface{}]interface{} trees into
// map[string]interface{} so they survive json.Marshal.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, inner := range val {
			m[fmt.Sprint(k)] = normalizeYAML(inner)
		}
		return m
	case map[string]interface{}:
		for k, inner := range val {
			val[k] = normalizeYAML(inner)
		}
		return val
	case []interface{}:
		for i, inner := range val {
			val[i] = normalizeYAML(inner)
		}
		return val
	default:
		return v
	}
}

func (l *ProfileLoader) ClearCache() {
	l.cache.Range(func(key, value interface{}) bool {
		l.cache.Delete(key)
		return true
	})
}
