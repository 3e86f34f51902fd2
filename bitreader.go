package inflate

import (
	"io"

	"github.com/pkg/errors"
)

// spanSize is the size of the internal InputSpan buffer the BitReader
// refills from the caller-supplied source. It is unrelated to the
// sliding window size; it only bounds how many bytes are pulled from
// the source io.Reader per refill.
const spanSize = 4096

// inputSpan is a byte slice with head and tail cursors: bytes at
// [head, tail) are valid unread input. Refilling replaces the entire
// span contents and resets both cursors, per the data model's InputSpan.
type inputSpan struct {
	buf  [spanSize]byte
	head int
	tail int
}

func (s *inputSpan) available() bool { return s.head < s.tail }

func (s *inputSpan) nextByte() byte {
	b := s.buf[s.head]
	s.head++
	return b
}

// BitReader pulls whole bytes from an input source into a right-aligned
// bit accumulator and exposes peek/consume/align at bit granularity. The
// accumulator is widened to 64 bits (rather than the 32 the data model
// describes) specifically so that ensure(32) and peek(32) never hit the
// undefined "(1<<32)-1" shift the design notes call out; count never
// exceeds 31 valid bits plus one pending byte at any call boundary.
type BitReader struct {
	src        io.Reader
	in         inputSpan
	acc        uint64
	nb         uint // number of valid bits held in acc, low-order aligned
	bytesRead  int64
	sourceErr  error // sticky error from the source, once observed
}

// NewBitReader constructs a BitReader pulling from src.
func NewBitReader(src io.Reader) *BitReader {
	return &BitReader{src: src}
}

// refill pulls more bytes from the source into the span. It blocks on
// the underlying io.Reader exactly once per call, the same suspension
// point an io.Reader-based caller expects: a constrained, non-blocking
// caller would instead drive InputSpan.Refill itself between calls, but
// the exposed Reader contract in this module is a standard io.Reader.
func (r *BitReader) refill() error {
	if r.sourceErr != nil {
		return r.sourceErr
	}
	n, err := r.src.Read(r.in.buf[:])
	if n > 0 {
		r.in.head = 0
		r.in.tail = n
		r.bytesRead += int64(n)
	}
	if err != nil {
		r.sourceErr = err
	}
	if n == 0 && err != nil {
		return err
	}
	return nil
}

// ensure reports whether at least n bits (1 <= n <= 32) are available in
// the accumulator, pulling whole bytes from the input span (refilling it
// from the source as needed) until that holds or the source is
// exhausted/erroring.
func (r *BitReader) ensure(n uint) error {
	for r.nb < n {
		if !r.in.available() {
			if err := r.refill(); err != nil {
				return err
			}
			continue
		}
		b := r.in.nextByte()
		r.acc |= uint64(b) << r.nb
		r.nb += 8
	}
	return nil
}

// mask64 returns a mask of the low n bits (0 <= n <= 32) in a 64-bit
// accumulator; unlike a native 32-bit "(1<<n)-1" this never has to
// special-case n == 32, which is the language pitfall the design notes
// call out explicitly.
func mask64(n uint) uint64 {
	return (uint64(1) << n) - 1
}

// peek returns the low n bits of the accumulator. ensure(n) must have
// succeeded first; behavior is undefined otherwise.
func (r *BitReader) peek(n uint) uint32 {
	return uint32(r.acc & mask64(n))
}

// consume discards the low n bits of the accumulator. ensure(n) must
// have succeeded first.
func (r *BitReader) consume(n uint) {
	r.acc >>= n
	r.nb -= n
}

// take is ensure followed by peek followed by consume, for the common
// case of reading a fixed-width field.
func (r *BitReader) take(n uint) (uint32, error) {
	if err := r.ensure(n); err != nil {
		return 0, err
	}
	v := r.peek(n)
	r.consume(n)
	return v, nil
}

// alignToByte discards any pending bits so the next read starts on a
// byte boundary, as required before a stored block.
func (r *BitReader) alignToByte() {
	discard := r.nb % 8
	r.acc >>= discard
	r.nb -= discard
}

// clear discards all pending bits.
func (r *BitReader) clear() {
	r.acc = 0
	r.nb = 0
}

// readRawByte consumes one byte directly from the (byte-aligned) input
// span without going through the bit accumulator, used by stored-block
// copies. nb must be 0 (the caller must have called alignToByte first,
// which for a byte count that is itself a multiple of 8 leaves nb at 0).
func (r *BitReader) readRawByte() (byte, error) {
	for !r.in.available() {
		if err := r.refill(); err != nil {
			return 0, err
		}
	}
	return r.in.nextByte(), nil
}

// readRaw copies up to len(p) raw, byte-aligned bytes from the input
// span/source into p, returning the count copied. It never blocks past
// a single source Read once at least one byte has been copied; it may
// block on an empty span to obtain at least one byte, mirroring the
// COPY state's "copy up to min(remaining, input_available,
// output_available)" contract.
func (r *BitReader) readRaw(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !r.in.available() {
		if err := r.refill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.in.buf[r.in.head:r.in.tail])
	r.in.head += n
	return n, nil
}

// bitOffset returns the approximate number of bits consumed from the
// source so far, used only for error reporting (CorruptInputError.Offset).
func (r *BitReader) bitOffset() int64 {
	consumedBytes := r.bytesRead - int64(r.in.tail-r.in.head)
	return consumedBytes*8 - int64(r.nb)
}

// wrapSourceErr upgrades a plain io.EOF observed mid-structure (i.e. not
// at a point where end-of-stream is legal) to io.ErrUnexpectedEOF, and
// otherwise attaches call-site context via pkg/errors.
func wrapSourceErr(err error, context string) error {
	if err == nil {
		return nil
	}
	if err == io.EOF {
		return errors.Wrap(io.ErrUnexpectedEOF, context)
	}
	return errors.Wrap(err, context)
}
