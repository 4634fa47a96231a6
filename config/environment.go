package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/meshcall/meshcall/extension"
	"github.com/meshcall/meshcall/model"
)

// loaderSource is satisfied by scope models that carry loader handles whose
// properties feed the environment.
type loaderSource interface {
	Loaders() []model.Loader
}

// Environment merges the property sources of one application into a single
// read view. Source precedence, highest first: explicitly set properties,
// loader properties, dotenv files, YAML property files.
//
// Refresh recomputes the merged view; the scope model triggers it whenever
// its loader set changes.
type Environment struct {
	host extension.Host

	mu          sync.RWMutex
	external    map[string]string
	dotenvPaths []string
	yamlPaths   []string
	merged      map[string]string
	version     int64
	destroyed   bool
}

// NewEnvironment creates an environment bound to an application model.
func NewEnvironment(host extension.Host) *Environment {
	return &Environment{
		host:     host,
		external: make(map[string]string),
		merged:   make(map[string]string),
	}
}

// SetProperty stores an explicit property, overriding every file source.
func (e *Environment) SetProperty(key, value string) error {
	if key == "" {
		return model.RequiredError("property key")
	}
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return model.NewIllegalStateError("set property", "environment is destroyed")
	}
	e.external[key] = value
	e.mu.Unlock()

	e.Refresh()
	return nil
}

// LoadDotenv registers a .env file as a property source and refreshes.
func (e *Environment) LoadDotenv(path string) error {
	if _, err := godotenv.Read(path); err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	e.mu.Lock()
	e.dotenvPaths = append(e.dotenvPaths, path)
	e.mu.Unlock()

	e.Refresh()
	return nil
}

// LoadPropertyFile registers a YAML property file as a source and refreshes.
// Nested mappings flatten to dot-separated keys.
func (e *Environment) LoadPropertyFile(path string) error {
	if _, err := readYAMLProperties(path); err != nil {
		return err
	}
	e.mu.Lock()
	e.yamlPaths = append(e.yamlPaths, path)
	e.mu.Unlock()

	e.Refresh()
	return nil
}

// Property returns the merged value for a key.
func (e *Environment) Property(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.merged[key]
	return v, ok
}

// PropertyOrDefault returns the merged value or a fallback.
func (e *Environment) PropertyOrDefault(key, def string) string {
	if v, ok := e.Property(key); ok {
		return v
	}
	return def
}

// Keys returns the sorted merged property keys.
func (e *Environment) Keys() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.merged))
	for k := range e.merged {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Version returns the merged-view generation; it advances on every Refresh.
func (e *Environment) Version() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}

// Refresh recomputes the merged view from all sources. File sources that
// fail to re-read are skipped; the last good values for other sources stay.
func (e *Environment) Refresh() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}

	merged := make(map[string]string)
	for _, path := range e.yamlPaths {
		props, err := readYAMLProperties(path)
		if err != nil {
			continue
		}
		for k, v := range props {
			merged[k] = v
		}
	}
	for _, path := range e.dotenvPaths {
		props, err := godotenv.Read(path)
		if err != nil {
			continue
		}
		for k, v := range props {
			merged[k] = v
		}
	}
	if src, ok := e.host.(loaderSource); ok {
		for _, l := range src.Loaders() {
			for k, v := range l.Properties {
				merged[k] = v
			}
		}
	}
	for k, v := range e.external {
		merged[k] = v
	}

	e.merged = merged
	e.version++
}

// Destroy releases the environment; further mutation fails.
func (e *Environment) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed = true
	e.merged = make(map[string]string)
	e.external = make(map[string]string)
	e.dotenvPaths = nil
	e.yamlPaths = nil
}

func readYAMLProperties(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read property file %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse property file %s: %w", path, err)
	}
	props := make(map[string]string)
	flattenProperties("", raw, props)
	return props, nil
}

func flattenProperties(prefix string, raw map[string]any, out map[string]string) {
	for k, v := range raw {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flattenProperties(key, val, out)
		case nil:
			out[key] = ""
		default:
			out[key] = strings.TrimSpace(fmt.Sprintf("%v", val))
		}
	}
}
