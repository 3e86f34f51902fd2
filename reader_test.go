package inflate

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReaderSkipDiscardsLeadingBytes(t *testing.T) {
	data := storedBlock(true, []byte("hello world"))
	r := NewReader(bytes.NewReader(data))

	n, err := r.Skip(6)
	require.NoError(t, err)
	require.Equal(t, int64(6), n)

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "world", string(out))
}

func TestReaderSkipPastEndReturnsShortCountNoError(t *testing.T) {
	data := storedBlock(true, []byte("hi"))
	r := NewReader(bytes.NewReader(data))

	n, err := r.Skip(100)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	_, err = r.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
}

func TestReaderSkipZeroIsNoOp(t *testing.T) {
	data := storedBlock(true, []byte("abc"))
	r := NewReader(bytes.NewReader(data))

	n, err := r.Skip(0)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "abc", string(out))
}

func TestGzipReaderSkipDiscardsBytes(t *testing.T) {
	data := gzipStream(t, 0, nil, "", "", []byte("hello"))
	g, err := NewGzipReader(bytes.NewReader(data))
	require.NoError(t, err)

	n, err := g.Skip(3)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	out, err := io.ReadAll(g)
	require.NoError(t, err)
	require.Equal(t, "lo", string(out))
}

func TestZlibReaderSkipDiscardsBytes(t *testing.T) {
	data := zlibStream(0x78, 0x01, 0, []byte("hello"))
	z, err := NewZlibReader(bytes.NewReader(data))
	require.NoError(t, err)

	n, err := z.Skip(3)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	out, err := io.ReadAll(z)
	require.NoError(t, err)
	require.Equal(t, "lo", string(out))
}
