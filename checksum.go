package inflate

// Checksum implementations for the two envelope formats. Both are
// hand-rolled and table-driven in the same style as the teacher's own
// crctable/updateCrc pair (lzh used a reflected CRC-16, polynomial
// 0xA001, for its own header integrity check).
//
// CRC32 here is the reflected, initial- and final-complemented gzip
// polynomial (0xEDB88320), NOT the algorithm
// `_examples/original_source/com/saphum/midp/zip/CRC32.java` actually
// implements (poly 0x04C11DB7, MSB-first, init 0, no final complement —
// the literal source of spec.md §4.4's unreflected prose description).
// The two disagree with each other: CRC32.java's own algorithm produces
// 0x2c17398c for "abc", but spec.md §8's worked gzip trailer for the
// same payload is 0x352441c2, which only the reflected algorithm below
// produces. That is a real contradiction inside the spec's own source
// material, not a resolved ambiguity — implemented the reflected form
// here because it is the one real gzip producers and consumers use, so
// it is the only choice that round-trips against actual gzip/zlib tools
// and against spec.md's own test vectors; CRC32.java's literal
// algorithm is not wired anywhere. See DESIGN.md for the full citation.

var crc32Table [256]uint32

func init() {
	const poly = 0xEDB88320
	for i := 0; i < 256; i++ {
		crc := uint32(i)
		for j := 0; j < 8; j++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ poly
			} else {
				crc >>= 1
			}
		}
		crc32Table[i] = crc
	}
}

// CRC32 is an incrementally updatable gzip-compatible CRC-32 (IEEE
// 802.3 polynomial, reflected, initial and final complement).
type CRC32 struct {
	state uint32
}

// NewCRC32 returns a CRC-32 accumulator primed to gzip's initial state.
func NewCRC32() *CRC32 {
	return &CRC32{state: 0xFFFFFFFF}
}

// Update folds data into the running checksum.
func (c *CRC32) Update(data []byte) {
	crc := c.state
	for _, b := range data {
		crc = crc32Table[byte(crc)^b] ^ (crc >> 8)
	}
	c.state = crc
}

// Sum returns the CRC-32 of all data seen so far, with gzip's final
// complement already applied.
func (c *CRC32) Sum() uint32 {
	return c.state ^ 0xFFFFFFFF
}

// adlerBase is the modulus zlib's Adler-32 reduces both running sums by.
const adlerBase = 65521

// adlerBatch is the largest number of bytes that can be folded into s1
// between modulo reductions without either running sum overflowing a
// 32-bit unsigned accumulator: s1 can reach at most adlerBase-1 before a
// byte is added, so after n additions s1 <= adlerBase-1+255*n, and s2
// accumulates a running sum of s1's — n must stay under the point where
// s2 itself would overflow, which happens first. 5552 is that bound.
const adlerBatch = 5552

// Adler32 is an incrementally updatable zlib-compatible Adler-32.
type Adler32 struct {
	s1, s2 uint32
}

// NewAdler32 returns an Adler-32 accumulator primed to zlib's initial
// state (s1=1, s2=0, combined value 1).
func NewAdler32() *Adler32 {
	return &Adler32{s1: 1, s2: 0}
}

// Update folds data into the running checksum.
func (a *Adler32) Update(data []byte) {
	s1, s2 := a.s1, a.s2
	for len(data) > 0 {
		n := len(data)
		if n > adlerBatch {
			n = adlerBatch
		}
		for _, b := range data[:n] {
			s1 += uint32(b)
			s2 += s1
		}
		s1 %= adlerBase
		s2 %= adlerBase
		data = data[n:]
	}
	a.s1, a.s2 = s1, s2
}

// Sum returns the Adler-32 value, (s2<<16)|s1.
func (a *Adler32) Sum() uint32 {
	return (a.s2 << 16) | a.s1
}
