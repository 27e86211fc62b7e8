package block

import (
	"testing"

	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_BytesAndParse_RoundTrip(t *testing.T) {
	h := Header{
		Size:          HeaderSize - 4,
		Flags:         FlagStreamed,
		Compression:   format.CodeZlib,
		AllocatedSize: 4096,
		UsedSize:      2048,
		DataSize:      8192,
		Checksum:      Sum([]byte("compressed payload")),
	}

	got, err := Parse(h.Bytes())
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestHeader_Streamed(t *testing.T) {
	h := Header{Flags: FlagStreamed}
	assert.True(t, h.Streamed())

	h2 := Header{}
	assert.False(t, h2.Streamed())
}

func TestParse_TruncatedHeader(t *testing.T) {
	_, err := Parse(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, errs.ErrTruncatedHeader)
}

func TestParse_BadMagic(t *testing.T) {
	b := Header{}.Bytes()
	b[0] = 'X'

	_, err := Parse(b)
	assert.ErrorIs(t, err, errs.ErrBlockHeaderError)
}

func TestParse_InvalidHeaderSize(t *testing.T) {
	b := Header{}.Bytes()
	b[4] = 0xFF
	b[5] = 0xFF

	_, err := Parse(b)
	assert.ErrorIs(t, err, errs.ErrInvalidHeaderSize)
}

func TestSum_DeterministicAndSensitive(t *testing.T) {
	a := Sum([]byte("payload a"))
	b := Sum([]byte("payload a"))
	c := Sum([]byte("payload b"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
