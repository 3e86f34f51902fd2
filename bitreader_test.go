package inflate

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitReaderTakeLSBFirst(t *testing.T) {
	// 0b10110010 read LSB-first should yield nibbles 0x2 then 0xB.
	br := NewBitReader(bytes.NewReader([]byte{0xB2}))
	v, err := br.take(4)
	require.NoError(t, err)
	require.Equal(t, uint32(0x2), v)
	v, err = br.take(4)
	require.NoError(t, err)
	require.Equal(t, uint32(0xB), v)
}

func TestBitReaderAlignToByte(t *testing.T) {
	br := NewBitReader(bytes.NewReader([]byte{0xFF, 0xAB}))
	_, err := br.take(3)
	require.NoError(t, err)
	br.alignToByte()
	v, err := br.take(8)
	require.NoError(t, err)
	require.Equal(t, uint32(0xAB), v)
}

func TestBitReaderTake32NoShiftOverflow(t *testing.T) {
	br := NewBitReader(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF}))
	v, err := br.take(32)
	require.NoError(t, err)
	require.Equal(t, uint32(0xFFFFFFFF), v)
}

func TestBitReaderReadRawAfterAlign(t *testing.T) {
	br := NewBitReader(bytes.NewReader([]byte{0x01, 'h', 'i'}))
	_, err := br.take(8)
	require.NoError(t, err)
	buf := make([]byte, 2)
	n, err := br.readRaw(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "hi", string(buf))
}

func TestBitReaderPropagatesEOF(t *testing.T) {
	br := NewBitReader(bytes.NewReader(nil))
	_, err := br.take(8)
	require.ErrorIs(t, err, io.EOF)
}
