package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// registryLoader adapts Registry to jsonschema/v6's jsonschema.URLLoader
// interface (a single Load(url string) (any, error) method), so every
// schema/meta-schema fetch the compiler makes is routed through our
// ResourceMapping chain instead of the library's built-in
// filesystem/HTTP resolution (spec §4.E, "Resolution").
type registryLoader struct {
	registry *Registry
}

// Load implements jsonschema.URLLoader. Schema documents may be written
// as YAML or JSON (spec §4.E); yaml.v3 parses both, since JSON is a
// subset of YAML 1.1 flow syntax.
func (l *registryLoader) Load(url string) (any, error) {
	data, err := l.registry.Resolve(url)
	if err != nil {
		return nil, fmt.Errorf("schema: load %s: %w", url, err)
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("schema: parse %s: %w", url, err)
	}

	return v, nil
}
