package extension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
id: asdf://example.com/manifests/widgets-1.0.0
extension_uri: asdf://example.com/extensions/widgets-1.0.0
asdf_standard_requirement:
  gte: 1.5.0
tags:
  - tag_uri: asdf://example.com/tags/widget-1.0.0
    schema_uri: asdf://example.com/schemas/widget-1.0.0
legacy_class_names:
  OldWidget: asdf://example.com/tags/widget-1.0.0
`

func TestLoadManifest_BuildsExtension(t *testing.T) {
	widgetConv := stubConverter{tags: []string{"asdf://example.com/tags/widget-1.0.0"}, types: []string{"string"}}

	ext, err := LoadManifest([]byte(sampleManifest), map[string]Converter{
		"asdf://example.com/tags/widget-1.0.0": widgetConv,
	})
	require.NoError(t, err)

	assert.Equal(t, "asdf://example.com/extensions/widgets-1.0.0", ext.Name)
	assert.Equal(t, 1, ext.StandardRequirement.Major)
	assert.Equal(t, 5, ext.StandardRequirement.Minor)
	require.Len(t, ext.Tags, 1)
	assert.Equal(t, "asdf://example.com/tags/widget-1.0.0", ext.Tags[0].URI)
	assert.Equal(t, []string{"asdf://example.com/schemas/widget-1.0.0"}, ext.Tags[0].SchemaURIs)
	require.Len(t, ext.Converters, 1)
}

func TestLoadManifest_TagWithoutConverterIsStillRecorded(t *testing.T) {
	ext, err := LoadManifest([]byte(sampleManifest), nil)
	require.NoError(t, err)

	assert.Len(t, ext.Tags, 1)
	assert.Empty(t, ext.Converters)
}
