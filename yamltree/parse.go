package yamltree

import (
	"fmt"

	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/format"
	"github.com/asdf-format/asdf-go/internal/collision"
	"github.com/asdf-format/asdf-go/internal/hash"
	"gopkg.in/yaml.v3"
)

// Parse decodes the single YAML document in data into a Node tree,
// enforcing mapping-key uniqueness and, under standard >= 1.6,
// restricting mapping keys to string/int/bool scalars (spec §4.C,
// "Mapping keys must obey the active standard's restrictions; violations
// become validation errors, not parse errors" — callers that need those
// reported as validation errors rather than fatal-on-parse should call
// ParseLoose and run ValidateKeys explicitly).
func Parse(data []byte, std format.Version) (*Node, error) {
	root, err := ParseLoose(data)
	if err != nil {
		return nil, err
	}

	if err := ValidateKeys(root, std); err != nil {
		return nil, err
	}

	return root, nil
}

// ParseLoose decodes the single YAML document in data without enforcing
// mapping-key rules, for callers (schema package) that want to surface
// those violations as validation errors instead of a fatal parse error.
func ParseLoose(data []byte) (*Node, error) {
	var doc yaml.Node

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrYamlSyntax, err)
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one YAML document", errs.ErrYamlSyntax)
	}

	return wrap(doc.Content[0]), nil
}

// ValidateKeys walks root enforcing mapping key uniqueness at every
// scope, and — under standard >= 1.6 — that every key is a string, int,
// or bool scalar (spec §3 "Invariants", §4.C, §9). Cycles introduced by
// aliases are not re-descended into, since the first visit already
// validated that subtree.
func ValidateKeys(root *Node, std format.Version) error {
	visited := make(map[*yaml.Node]bool)
	return validateKeys(root, std, "", visited)
}

func validateKeys(n *Node, std format.Version, path string, visited map[*yaml.Node]bool) error {
	if n == nil || n.raw.Kind == yaml.AliasNode {
		return nil
	}

	if visited[n.raw] {
		return nil
	}

	visited[n.raw] = true

	switch n.raw.Kind {
	case yaml.MappingNode:
		tracker := collision.NewTracker[string]()

		for i := 0; i < len(n.raw.Content); i += 2 {
			keyNode := n.raw.Content[i]
			valNode := n.raw.Content[i+1]

			if std.AtLeast(format.StandardVersion1_6) && !isRestrictedKeyType(keyNode.Tag) {
				return errs.WithPath(path, fmt.Errorf("%w: key %q has tag %q",
					errs.ErrUnsupportedMappingKeyType, keyNode.Value, keyNode.Tag))
			}

			if _, dup, _ := tracker.Track(hash.ID(keyNode.Value), keyNode.Value); dup {
				return errs.WithPath(path, fmt.Errorf("%w: %q", errs.ErrDuplicateMappingKey, keyNode.Value))
			}

			if err := validateKeys(wrap(valNode), std, path+"/"+keyNode.Value, visited); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for i, c := range n.raw.Content {
			if err := validateKeys(wrap(c), std, fmt.Sprintf("%s/%d", path, i), visited); err != nil {
				return err
			}
		}
	}

	return nil
}

// isRestrictedKeyType reports whether tag is one of the scalar kinds
// standard >= 1.6 permits as a mapping key (spec §3, §9).
func isRestrictedKeyType(tag string) bool {
	switch tag {
	case "!!str", "!!int", "!!bool", "":
		return true
	default:
		return false
	}
}
