package inflate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildHuffmanTableRejectsOverSubscribed(t *testing.T) {
	_, err := buildHuffmanTable([]int{1, 1, 1})
	require.Error(t, err)
	var ce *CorruptInputError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, KindInvalidCodeSet, ce.Kind)
}

func TestBuildHuffmanTableRejectsIncompleteCode(t *testing.T) {
	_, err := buildHuffmanTable([]int{1, 0, 2})
	require.Error(t, err)
}

func TestBuildHuffmanTableAcceptsSingleSymbolException(t *testing.T) {
	table, err := buildHuffmanTable([]int{0, 5})
	require.NoError(t, err)
	// Any bit pattern must resolve to symbol 1, per RFC 1951 3.2.7.
	br := NewBitReader(bytes.NewReader([]byte{0xFF}))
	sym, err := table.decodeOne(br)
	require.NoError(t, err)
	require.Equal(t, 1, sym)
}

func TestHuffmanTableRoundTripsFixedLiteralCodes(t *testing.T) {
	lens := make([]int, 288)
	for i := 0; i < 144; i++ {
		lens[i] = 8
	}
	for i := 144; i < 256; i++ {
		lens[i] = 9
	}
	for i := 256; i < 280; i++ {
		lens[i] = 7
	}
	for i := 280; i < 288; i++ {
		lens[i] = 8
	}
	table, err := buildHuffmanTable(lens)
	require.NoError(t, err)

	// Symbol 0 has the first 8-bit code in lexicographic/canonical order:
	// 0b00110000, transmitted MSB-first, so LSB-first on the wire it is
	// 0b00001100 = 0x0C.
	br := NewBitReader(bytes.NewReader([]byte{0x0C}))
	sym, err := table.decodeOne(br)
	require.NoError(t, err)
	require.Equal(t, 0, sym)
}

func TestReverseBits(t *testing.T) {
	require.Equal(t, uint32(0b1), reverseBits(0b1, 1))
	require.Equal(t, uint32(0b01), reverseBits(0b10, 2))
	require.Equal(t, uint32(0b001), reverseBits(0b100, 3))
}
