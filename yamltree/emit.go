package yamltree

import (
	"bytes"
	"fmt"

	"github.com/asdf-format/asdf-go/errs"
	"gopkg.in/yaml.v3"
)

// Indent is the block-style indentation emitted documents use, matching
// the two-space convention every YAML file in the retrieval pack's
// manifests uses.
const Indent = 2

// Marshal serializes root as the sole document body (spec §4.C,
// "Serialization is strict inverse"). Ordered mappings, tags,
// anchors/aliases, and flow/block style all round-trip because they're
// carried on the underlying yaml.Node this facade wraps.
func Marshal(root *Node) ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(Indent)

	if err := enc.Encode(root.raw); err != nil {
		enc.Close()
		return nil, fmt.Errorf("%w: %v", errs.ErrYamlSyntax, err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrYamlSyntax, err)
	}

	return buf.Bytes(), nil
}
