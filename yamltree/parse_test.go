package yamltree

import (
	"testing"

	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTripOrderAndTags(t *testing.T) {
	src := []byte("foo: 42\nname: Monty\nnested: {a: 1, b: 2}\n")

	root, err := Parse(src, format.StandardVersionLatest)
	require.NoError(t, err)
	require.True(t, root.IsMapping())

	keys := root.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, []string{"foo", "name", "nested"}, []string{keys[0].Value(), keys[1].Value(), keys[2].Value()})

	out, err := Marshal(root)
	require.NoError(t, err)
	assert.Contains(t, string(out), "foo: 42")
}

func TestParse_DuplicateMappingKey(t *testing.T) {
	src := []byte("foo: 1\nfoo: 2\n")

	_, err := Parse(src, format.StandardVersionLatest)
	assert.ErrorIs(t, err, errs.ErrDuplicateMappingKey)
}

func TestParse_AnchorAliasRoundTrip(t *testing.T) {
	src := []byte("a: &x {v: 1}\nb: *x\n")

	root, err := Parse(src, format.StandardVersionLatest)
	require.NoError(t, err)

	a, _ := root.Get("a")
	b, _ := root.Get("b")
	require.True(t, b.IsAlias())
	assert.Equal(t, a.Raw(), b.ResolveAlias().Raw())
}

func TestParse_ExplicitDocumentStartMarker(t *testing.T) {
	_, err := Parse([]byte("---\na: 1\n"), format.StandardVersionLatest)
	require.NoError(t, err)
}

func TestParse_KeyTypeRestrictionUnderStandard1_6(t *testing.T) {
	src := []byte("? [1, 2]\n: value\n")

	_, err := Parse(src, format.StandardVersion1_6)
	assert.ErrorIs(t, err, errs.ErrUnsupportedMappingKeyType)

	// Under an older standard the same tree is permitted.
	root, err := Parse(src, format.StandardVersionEarliest)
	require.NoError(t, err)
	assert.True(t, root.IsMapping())
}
