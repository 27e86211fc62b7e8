package ioadapter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSource_Read(t *testing.T) {
	s := NewStreamReader(bytes.NewReader([]byte("hello world")))

	got, err := s.Read(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	pos, err := s.Tell()
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)
}

func TestStreamSource_ReadUntil(t *testing.T) {
	s := NewStreamReader(bytes.NewReader([]byte("line one\nline two\n")))

	line, err := s.ReadUntil('\n')
	require.NoError(t, err)
	assert.Equal(t, "line one\n", string(line))
}

func TestStreamSource_Write(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamWriter(&buf)

	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", buf.String())
}

func TestStreamSource_WriteOnReadOnly(t *testing.T) {
	s := NewStreamReader(bytes.NewReader(nil))

	_, err := s.Write([]byte("x"))
	assert.Error(t, err)
}

func TestStreamSource_ReadOnWriteOnly(t *testing.T) {
	var buf bytes.Buffer
	s := NewStreamWriter(&buf)

	_, err := s.Read(1)
	assert.Error(t, err)
}
