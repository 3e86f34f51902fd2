package inflate

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func storedBlock(final bool, data []byte) []byte {
	header := byte(0)
	if final {
		header = 1
	}
	length := uint16(len(data))
	complement := ^length
	buf := []byte{
		header,
		byte(length), byte(length >> 8),
		byte(complement), byte(complement >> 8),
	}
	return append(buf, data...)
}

func TestReaderDecodesSingleStoredBlock(t *testing.T) {
	data := storedBlock(true, []byte("hello"))
	r := NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "hello", string(out))
}

func TestReaderDecodesMultipleStoredBlocks(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(storedBlock(false, []byte("foo")))
	buf.Write(storedBlock(true, []byte("go")))

	r := NewReader(&buf)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "foogo", string(out))
}

func TestReaderRejectsInvalidBlockType(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x07}))
	_, err := io.ReadAll(r)
	require.Error(t, err)
	var ce *CorruptInputError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, KindInvalidBlockType, ce.Kind)
}

func TestReaderRejectsStoredLengthComplementMismatch(t *testing.T) {
	data := []byte{0x01, 0x05, 0x00, 0x00, 0x00, 'h', 'e', 'l', 'l', 'o'}
	r := NewReader(bytes.NewReader(data))
	_, err := io.ReadAll(r)
	require.Error(t, err)
	var ce *CorruptInputError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, KindInvalidStoredLength, ce.Kind)
}

func TestReaderChunkedOutputMatchesSinglePass(t *testing.T) {
	data := storedBlock(true, bytes.Repeat([]byte("xy"), 100))

	whole, err := io.ReadAll(NewReader(bytes.NewReader(data)))
	require.NoError(t, err)

	r := NewReader(bytes.NewReader(data))
	var chunked bytes.Buffer
	buf := make([]byte, 7)
	for {
		n, err := r.Read(buf)
		chunked.Write(buf[:n])
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	require.Equal(t, whole, chunked.Bytes())
}

func TestReaderTruncatedStoredBlockIsUnexpectedEOF(t *testing.T) {
	data := []byte{0x01, 0x05, 0x00, 0xFA, 0xFF, 'h', 'e'}
	r := NewReader(bytes.NewReader(data))
	_, err := io.ReadAll(r)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReaderByteOffsetAdvances(t *testing.T) {
	data := storedBlock(true, []byte("abc"))
	r := NewReader(bytes.NewReader(data))
	require.Equal(t, int64(0), r.ByteOffset())
	_, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), r.ByteOffset())
}

func TestReaderWithPresetDictionaryPrimesWindow(t *testing.T) {
	// A dynamic/fixed-block back-reference into a preset dictionary is the
	// realistic use case; here we exercise the same mechanism through a
	// stored block (no back-references possible) plus a direct window
	// check, since hand-assembling a compressed back-reference stream is
	// unnecessary to prove SetDictionary primes the window correctly.
	r := NewReader(bytes.NewReader(storedBlock(true, nil)), WithDictionary([]byte("preset")))
	require.Equal(t, 6, r.engine.window.available())
}
