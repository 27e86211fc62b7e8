package block

import (
	"testing"

	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/ioadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_BytesParseRoundTrip(t *testing.T) {
	idx := Index{420, 1337, 90210}

	raw := idx.Bytes()
	assert.Contains(t, string(raw), IndexMagic)

	got, err := ParseIndex(raw)
	require.NoError(t, err)
	assert.Equal(t, idx, got)
}

func TestParseIndex_Malformed(t *testing.T) {
	_, err := ParseIndex([]byte("no sequence here"))
	assert.ErrorIs(t, err, errs.ErrBlockIndexInvalid)

	_, err = ParseIndex([]byte("[1, banana, 3]"))
	assert.ErrorIs(t, err, errs.ErrBlockIndexInvalid)
}

func TestIndex_Validate(t *testing.T) {
	assert.NoError(t, Index{10, 20, 30}.Validate(100))

	err := Index{20, 10}.Validate(100)
	assert.ErrorIs(t, err, errs.ErrBlockIndexInvalid)

	err = Index{10, 200}.Validate(100)
	assert.ErrorIs(t, err, errs.ErrBlockIndexInvalid)
}

func TestFindTrailer_AfterBlocks(t *testing.T) {
	src, offsets := writeStore(t, Spec{Data: []byte("one")}, Spec{Data: []byte("two")})

	require.NoError(t, src.Seek(int64(len(src.Bytes()))))
	_, err := src.Write(Index(offsets).Bytes())
	require.NoError(t, err)

	idx, ok, err := FindTrailer(src, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Index(offsets), idx)
}

func TestFindTrailer_AbsentIsNotAnError(t *testing.T) {
	src, _ := writeStore(t, Spec{Data: []byte("one")})

	_, ok, err := FindTrailer(src, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindTrailer_UnseekableSourceDeclines(t *testing.T) {
	src := ioadapter.NewStreamReader(nil)

	_, ok, err := FindTrailer(src, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}
