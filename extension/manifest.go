package extension

import (
	"fmt"
	"reflect"

	"github.com/asdf-format/asdf-go/format"
	"gopkg.in/yaml.v3"
)

// manifestDoc is the on-disk shape of an extension manifest (spec §4.F,
// "Manifest"): a YAML document declaratively listing an extension's
// tags, schemas, and standard-version requirement.
type manifestDoc struct {
	ID           string `yaml:"id"`
	ExtensionURI string `yaml:"extension_uri"`
	Requirement  struct {
		GTE string `yaml:"gte"`
	} `yaml:"asdf_standard_requirement"`
	Tags []struct {
		TagURI    string `yaml:"tag_uri"`
		SchemaURI string `yaml:"schema_uri"`
	} `yaml:"tags"`
	// Legacy maps a legacy, pre-manifest class name to the tag it now
	// corresponds to (spec §4.F, "Manifest": "legacy class names"). It is
	// parsed but LoadManifest does not use it: the built Extension carries
	// no legacy names, so nothing resolves through them.
	Legacy map[string]string `yaml:"legacy_class_names"`
}

// LoadManifest parses a manifest document and builds the Extension it
// describes. converters supplies the actual Go Converter implementation
// for each tag URI the manifest lists — a manifest is declarative data,
// not code, so the registry can't synthesize converter behavior from it
// alone; this is the same split real ASDF manifests have between
// declaring tags/schemas and a package registering the code that
// handles them.
func LoadManifest(data []byte, converters map[string]Converter) (*Extension, error) {
	var doc manifestDoc

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("extension: parse manifest: %w", err)
	}

	std := format.StandardVersionEarliest

	if doc.Requirement.GTE != "" {
		v, err := format.ParseVersion(doc.Requirement.GTE)
		if err != nil {
			return nil, fmt.Errorf("extension: manifest %q: %w", doc.ID, err)
		}

		std = v
	}

	ext := &Extension{
		Name:                doc.ExtensionURI,
		StandardRequirement: std,
	}

	for _, t := range doc.Tags {
		ext.Tags = append(ext.Tags, TagDefinition{URI: t.TagURI, SchemaURIs: nonEmpty(t.SchemaURI)})

		if conv, ok := converters[t.TagURI]; ok && !containsConverter(ext.Converters, conv) {
			ext.Converters = append(ext.Converters, conv)
		}
	}

	return ext, nil
}

// containsConverter reports whether list already holds conv. It compares
// with reflect.DeepEqual, since a converter value may hold slices or maps
// and so cannot be a map key or be compared with ==.
func containsConverter(list []Converter, conv Converter) bool {
	for _, c := range list {
		if reflect.DeepEqual(c, conv) {
			return true
		}
	}

	return false
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}

	return []string{s}
}
