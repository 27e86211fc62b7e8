package schema

import (
	"testing"

	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/format"
	"github.com/asdf-format/asdf-go/yamltree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pointSchemaURI = "asdf://example.com/schemas/point-1.0.0"

const pointSchema = `
type: object
properties:
  x:
    type: integer
  y:
    type: integer
required: [x, y]
`

func newTestValidator(t *testing.T) *Validator {
	t.Helper()

	reg := NewRegistry()
	reg.AddMapping(MemoryMapping{pointSchemaURI: []byte(pointSchema)})

	return NewValidator(reg)
}

func parseTree(t *testing.T, src string) *yamltree.Node {
	t.Helper()

	root, err := yamltree.ParseLoose([]byte(src))
	require.NoError(t, err)

	return root
}

func TestValidate_DocumentSchemaPasses(t *testing.T) {
	v := newTestValidator(t)
	root := parseTree(t, "x: 1\ny: 2\n")

	err := v.Validate(root, Options{
		StandardVersion:   format.StandardVersionLatest,
		DocumentSchemaURI: pointSchemaURI,
	})
	assert.NoError(t, err)
}

func TestValidate_DocumentSchemaViolation(t *testing.T) {
	v := newTestValidator(t)
	root := parseTree(t, "x: 1\n")

	err := v.Validate(root, Options{
		StandardVersion:   format.StandardVersionLatest,
		DocumentSchemaURI: pointSchemaURI,
	})
	assert.ErrorIs(t, err, errs.ErrSchemaValidation)
}

func TestValidate_TagScopedSchemaAppliesAtNode(t *testing.T) {
	v := newTestValidator(t)

	// The violating tagged node sits below the document root; tag-scoped
	// validation must still reach it.
	root := parseTree(t, "nested:\n  inner: !<asdf://example.com/tags/point-1.0.0>\n    x: 1\n")

	err := v.Validate(root, Options{
		StandardVersion: format.StandardVersionLatest,
		TagSchemas: func(tagURI string) []string {
			if tagURI == "asdf://example.com/tags/point-1.0.0" {
				return []string{pointSchemaURI}
			}

			return nil
		},
	})
	require.ErrorIs(t, err, errs.ErrSchemaValidation)

	var pe *errs.PointerError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "/nested/inner", pe.Path)
}

func TestValidate_DuplicateKeySurfacesAsValidation(t *testing.T) {
	v := newTestValidator(t)
	root := parseTree(t, "a: 1\na: 2\n")

	err := v.Validate(root, Options{StandardVersion: format.StandardVersionLatest})
	assert.ErrorIs(t, err, errs.ErrDuplicateMappingKey)
}

func TestValidate_LargeLiteralFailsUnder1_6(t *testing.T) {
	v := newTestValidator(t)
	root := parseTree(t, "big: 123456789012345678901234567890\n")

	err := v.Validate(root, Options{StandardVersion: format.StandardVersion1_6})
	assert.ErrorIs(t, err, errs.ErrIntegerLiteralTooLarge)
}

func TestValidate_LargeLiteralPermittedUnder1_5(t *testing.T) {
	v := newTestValidator(t)
	root := parseTree(t, "big: 123456789012345678901234567890\n")

	err := v.Validate(root, Options{StandardVersion: format.Version{Major: 1, Minor: 5, Patch: 0}})
	assert.NoError(t, err)

	warnings := LargeLiteralWarnings(root)
	require.Len(t, warnings, 1)
	assert.Equal(t, "/big", warnings[0].Path)
}

func TestValidate_Int64BoundaryIsNotLarge(t *testing.T) {
	v := newTestValidator(t)
	root := parseTree(t, "max: 9223372036854775807\nmin: -9223372036854775808\n")

	err := v.Validate(root, Options{StandardVersion: format.StandardVersion1_6})
	assert.NoError(t, err)
}

func TestFillDefaults_OnlyTouchesMissingProperties(t *testing.T) {
	const schemaURI = "asdf://example.com/schemas/widget-1.0.0"
	const widgetTag = "asdf://example.com/tags/widget-1.0.0"

	reg := NewRegistry()
	reg.AddMapping(MemoryMapping{schemaURI: []byte("properties:\n  color:\n    default: red\n  size:\n    default: 3\n")})

	v := NewValidator(reg)

	root := parseTree(t, "w: !<asdf://example.com/tags/widget-1.0.0>\n  color: blue\n")

	require.NoError(t, v.FillDefaults(root, widgetTag, schemaURI))

	w, _ := root.Get("w")

	color, ok := w.Get("color")
	require.True(t, ok)
	assert.Equal(t, "blue", color.Value(), "an explicit value must never be overwritten")

	size, ok := w.Get("size")
	require.True(t, ok)
	assert.Equal(t, "3", size.Value())
}

func TestToJSONValue_CutsAliasCycles(t *testing.T) {
	root := parseTree(t, "a: &x\n  self: *x\n  n: 1\n")

	v := ToJSONValue(root)

	m, ok := v.(map[string]any)
	require.True(t, ok)

	a, ok := m["a"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(1), a["n"])
	assert.Nil(t, a["self"])
}

func TestScalarValue_Decoding(t *testing.T) {
	assert.Equal(t, int64(42), ScalarValue(yamltree.NewScalar("!!int", "42")))
	assert.Equal(t, 2.5, ScalarValue(yamltree.NewScalar("!!float", "2.5")))
	assert.Equal(t, true, ScalarValue(yamltree.NewScalar("!!bool", "true")))
	assert.Nil(t, ScalarValue(yamltree.NewScalar("!!null", "null")))
	assert.Equal(t, "text", ScalarValue(yamltree.NewString("text")))
}
