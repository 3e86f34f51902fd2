package inflate

import (
	"io"

	"go.uber.org/zap"
)

const zlibFlagDict = 0x20

// ZlibReader decodes the zlib envelope (RFC 1950): the 2-byte CMF/FLG
// header, an optional 4-byte big-endian dictionary identifier, the
// wrapped DEFLATE stream, and a 4-byte big-endian Adler-32 trailer.
type ZlibReader struct {
	br     *BitReader
	engine *InflateEngine
	adler  *Adler32
	log    *zap.Logger

	windowSize      int
	needsDictionary bool
	dictID          uint32
	haveDictionary  bool
	totalOut        int64
	err             error
}

// NewZlibReader validates the zlib header and returns a reader
// positioned at the start of the wrapped deflate stream. If the header's
// FDICT bit is set, DictionaryID reports the required dictionary and
// Read returns ErrDictionaryRequired until SetDictionary supplies it.
func NewZlibReader(r io.Reader, opts ...Option) (*ZlibReader, error) {
	cfg := newConfig(opts)
	br := NewBitReader(r)

	cmf, err := br.take(8)
	if err != nil {
		return nil, wrapSourceErr(err, "reading zlib header")
	}
	flg, err := br.take(8)
	if err != nil {
		return nil, wrapSourceErr(err, "reading zlib header")
	}
	if (cmf*256+flg)%31 != 0 {
		return nil, corrupt(0, KindInvalidMagic, "CMF/FLG not divisible by 31")
	}
	if cmf&0xF != 8 {
		return nil, corrupt(0, KindUnsupportedMethod, "CM != 8 (deflate)")
	}
	logSize := (cmf >> 4) + 8
	if logSize < 9 {
		logSize = 9
	}
	if logSize > 15 {
		return nil, corrupt(0, KindUnsupportedFlags, "window size exceeds 32768")
	}
	windowSize := 1 << logSize

	z := &ZlibReader{br: br, adler: NewAdler32(), log: cfg.logger, windowSize: windowSize}

	if flg&zlibFlagDict != 0 {
		var id uint32
		for i := 0; i < 4; i++ {
			b, err := br.take(8)
			if err != nil {
				return nil, wrapSourceErr(err, "reading zlib dictionary id")
			}
			id = id<<8 | b
		}
		z.dictID = id
		z.needsDictionary = true
	}

	z.log.Debug("zlib header", zap.Int("windowSize", windowSize), zap.Bool("needsDictionary", z.needsDictionary))

	z.engine = NewEngine(br, windowSize, cfg.logger)
	if len(cfg.dictionary) > 0 {
		z.engine.primeDictionary(cfg.dictionary)
		z.haveDictionary = true
	}
	return z, nil
}

// DictionaryRequired reports whether the stream's FDICT flag was set and
// SetDictionary has not yet been called.
func (z *ZlibReader) DictionaryRequired() bool {
	return z.needsDictionary && !z.haveDictionary
}

// DictionaryID returns the big-endian dictionary identifier carried in
// the header, valid only when DictionaryRequired (or previously true).
func (z *ZlibReader) DictionaryID() uint32 { return z.dictID }

// SetDictionary supplies the preset dictionary a stream with FDICT set
// requires, priming the sliding window before decoding resumes.
func (z *ZlibReader) SetDictionary(dict []byte) {
	z.engine.primeDictionary(dict)
	z.haveDictionary = true
}

// Read implements io.Reader over the decompressed body, verifying the
// Adler-32 trailer the moment the final block ends.
func (z *ZlibReader) Read(p []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}
	if z.needsDictionary && !z.haveDictionary {
		return 0, ErrDictionaryRequired
	}
	n, err := z.engine.Read(p)
	if n > 0 {
		z.adler.Update(p[:n])
		z.totalOut += int64(n)
	}
	if err == nil {
		return n, nil
	}
	if err == io.EOF {
		if verr := z.verifyTrailer(); verr != nil {
			z.err = verr
			return n, verr
		}
		z.err = io.EOF
		return n, io.EOF
	}
	z.err = err
	return n, err
}

// Skip discards the next n decompressed bytes of the body. See
// Reader.Skip for the short-skip-at-EOF behavior this mirrors.
func (z *ZlibReader) Skip(n int64) (int64, error) {
	return skipViaRead(z, n)
}

func (z *ZlibReader) verifyTrailer() error {
	var want uint32
	for i := 0; i < 4; i++ {
		b, err := z.br.take(8)
		if err != nil {
			return wrapSourceErr(err, "reading zlib trailer")
		}
		want = want<<8 | b
	}
	if want != z.adler.Sum() {
		return corrupt(0, KindChecksumMismatch, "zlib Adler-32 trailer mismatch")
	}
	return nil
}
