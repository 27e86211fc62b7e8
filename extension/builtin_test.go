package extension

import (
	"math/big"
	"testing"

	"github.com/asdf-format/asdf-go/block"
	"github.com/asdf-format/asdf-go/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNDArrayConverter_InternalRoundTrip(t *testing.T) {
	store := block.NewStore()
	ctx := NewContext(format.StandardVersionLatest, store, "")

	desc := &NDArrayDescriptor{
		Storage:   format.StorageInternal,
		Datatype:  "int64",
		ByteOrder: "big",
		Shape:     []int{2},
		Data:      []byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 2},
	}

	node, err := NDArrayConverter{}.ToYAMLTree(desc, NDArrayTag, ctx)
	require.NoError(t, err)

	got, err := NDArrayConverter{}.FromYAMLTree(node, NDArrayTag, ctx)
	require.NoError(t, err)

	gotDesc := got.(*NDArrayDescriptor)
	assert.Nil(t, gotDesc.Data, "payload must stay unmaterialized until Bytes")

	data, err := gotDesc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, desc.Data, data)
	assert.Equal(t, desc.Shape, gotDesc.Shape)
	assert.Equal(t, format.StorageInternal, gotDesc.Storage)
}

func TestNDArrayConverter_InlineRoundTrip(t *testing.T) {
	store := block.NewStore()
	ctx := NewContext(format.StandardVersionLatest, store, "")

	desc := &NDArrayDescriptor{
		Storage:   format.StorageInline,
		Datatype:  "float64",
		ByteOrder: "big",
		Shape:     []int{3},
		Data:      []byte{0x3f, 0xf0, 0, 0, 0, 0, 0, 0, 0x40, 0, 0, 0, 0, 0, 0, 0, 0x40, 0x08, 0, 0, 0, 0, 0, 0},
	}

	node, err := NDArrayConverter{}.ToYAMLTree(desc, NDArrayTag, ctx)
	require.NoError(t, err)

	_, hasSource := node.Get("source")
	assert.False(t, hasSource)

	got, err := NDArrayConverter{}.FromYAMLTree(node, NDArrayTag, ctx)
	require.NoError(t, err)

	gotDesc := got.(*NDArrayDescriptor)
	assert.Equal(t, format.StorageInline, gotDesc.Storage)
	assert.Equal(t, desc.Data, gotDesc.Data)
}

func TestNDArrayConverter_ExternalStoresURI(t *testing.T) {
	store := block.NewStore()
	ctx := NewContext(format.StandardVersionLatest, store, "")

	desc := &NDArrayDescriptor{
		Storage:   format.StorageExternal,
		Datatype:  "int8",
		ByteOrder: "big",
		Shape:     []int{1},
		Source:    "doc0001.asdf",
	}

	node, err := NDArrayConverter{}.ToYAMLTree(desc, NDArrayTag, ctx)
	require.NoError(t, err)

	got, err := NDArrayConverter{}.FromYAMLTree(node, NDArrayTag, ctx)
	require.NoError(t, err)

	gotDesc := got.(*NDArrayDescriptor)
	assert.Equal(t, format.StorageExternal, gotDesc.Storage)
	assert.Equal(t, "doc0001.asdf", gotDesc.Source)
}

func TestIntegerConverter_RoundTripsBeyondInt64(t *testing.T) {
	big1, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	node, err := IntegerConverter{}.ToYAMLTree(big1, IntegerTag, nil)
	require.NoError(t, err)

	got, err := IntegerConverter{}.FromYAMLTree(node, IntegerTag, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, big1.Cmp(got.(*big.Int)))
}
