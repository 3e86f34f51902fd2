package inflate

import "io"

// Reader decodes a raw DEFLATE stream (RFC 1951, no zlib or gzip
// framing). Use NewGzipReader or NewZlibReader for the two standard
// framings.
type Reader struct {
	engine *InflateEngine
}

// NewReader returns a Reader decoding raw deflate data from r, with a
// 32768-byte sliding window unless overridden by WithWindowSize.
func NewReader(r io.Reader, opts ...Option) *Reader {
	cfg := newConfig(opts)
	br := NewBitReader(r)
	e := NewEngine(br, cfg.windowSize, cfg.logger)
	if len(cfg.dictionary) > 0 {
		e.primeDictionary(cfg.dictionary)
	}
	return &Reader{engine: e}
}

// Read implements io.Reader. Calling Read with length == 0 returns
// (0, nil) without consuming input; once the stream has ended or failed,
// it returns (0, io.EOF) or that error instead.
func (r *Reader) Read(p []byte) (int, error) {
	return r.engine.Read(p)
}

// SetDictionary primes the sliding window with a preset dictionary.
// It must be called before the first Read, or (for an envelope that
// signals FDICT) in response to ErrDictionaryRequired.
func (r *Reader) SetDictionary(dict []byte) {
	r.engine.primeDictionary(dict)
}

// Skip discards the next n decompressed bytes, returning the number
// actually skipped. It stops short, with no error, if the stream ends
// before n bytes have been produced — the same behavior as the source
// this is ported from, which treats running off the end of input as a
// short skip rather than a failure.
func (r *Reader) Skip(n int64) (int64, error) {
	return skipViaRead(r, n)
}

// skipScratchSize matches the 512-byte scratch buffer
// InflaterInputStream.skip(long) in the original allocates lazily on
// first use.
const skipScratchSize = 512

// skipViaRead implements Skip in terms of repeated Read calls into a
// throwaway buffer, shared by Reader, GzipReader, and ZlibReader.
func skipViaRead(r io.Reader, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	buf := make([]byte, skipScratchSize)
	var total int64
	for total < n {
		want := n - total
		if want > int64(len(buf)) {
			want = int64(len(buf))
		}
		got, err := r.Read(buf[:want])
		total += int64(got)
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
		if got == 0 {
			return total, nil
		}
	}
	return total, nil
}

// ByteOffset returns the number of compressed bytes consumed from the
// source so far, rounded up to account for bits read into the
// accumulator but not yet decoded.
func (r *Reader) ByteOffset() int64 {
	return (r.engine.br.bitOffset() + 7) / 8
}

// BitsState returns the number of unconsumed bits (0-7) remaining from
// the most recently read byte, and their value, for callers recording a
// mid-stream checkpoint.
func (r *Reader) BitsState() (count uint8, value byte) {
	nb := r.engine.br.nb % 8
	return uint8(nb), byte(r.engine.br.acc & ((uint64(1) << nb) - 1))
}
