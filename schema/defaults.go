package schema

import (
	"github.com/asdf-format/asdf-go/yamltree"
	"gopkg.in/yaml.v3"
)

// FillDefaults applies schemaURI's property defaults to every mapping
// node tagged with tagURI that's missing one of those properties,
// matching standard <= 1.5's historical behavior (spec §4.E step 4, §9
// Open Question 1 — under >= 1.6 this function must not be called;
// defaults are left unset). It mutates root in place.
func (v *Validator) FillDefaults(root *yamltree.Node, tagURI, schemaURI string) error {
	var doc struct {
		Properties map[string]yaml.Node `yaml:"properties"`
	}

	data, err := v.registry.Resolve(schemaURI)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}

	defaults := make(map[string]*yaml.Node, len(doc.Properties))

	for name, propSchema := range doc.Properties {
		var prop struct {
			Default yaml.Node `yaml:"default"`
		}

		if err := propSchema.Decode(&prop); err != nil {
			continue
		}

		if prop.Default.Kind != 0 {
			propCopy := prop.Default
			defaults[name] = &propCopy
		}
	}

	if len(defaults) == 0 {
		return nil
	}

	fillDefaultsWalk(root, tagURI, defaults, make(map[*yaml.Node]bool))

	return nil
}

func fillDefaultsWalk(n *yamltree.Node, tagURI string, defaults map[string]*yaml.Node, visited map[*yaml.Node]bool) {
	if n == nil || n.Kind() == yamltree.AliasKind {
		return
	}

	raw := n.Raw()
	if visited[raw] {
		return
	}

	visited[raw] = true

	if n.IsMapping() && n.Tag() == tagURI {
		for name, dflt := range defaults {
			if _, ok := n.Get(name); !ok {
				n.Set(name, yamltree.FromRaw(dflt))
			}
		}
	}

	switch n.Kind() {
	case yamltree.MappingKind:
		for _, e := range n.Entries() {
			fillDefaultsWalk(e.Value, tagURI, defaults, visited)
		}
	case yamltree.SequenceKind:
		for _, e := range n.Elements() {
			fillDefaultsWalk(e, tagURI, defaults, visited)
		}
	}
}
