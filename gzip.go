package inflate

import (
	"io"

	"go.uber.org/zap"
)

const (
	gzipFlagText    = 1 << 0
	gzipFlagHCRC    = 1 << 1
	gzipFlagExtra   = 1 << 2
	gzipFlagName    = 1 << 3
	gzipFlagComment = 1 << 4
)

// GzipReader decodes the gzip envelope (RFC 1952) around a single
// DEFLATE member: header validation, the wrapped InflateEngine, and
// full trailer verification (CRC-32 of the decompressed bytes plus the
// mod-2^32 uncompressed size) — the design notes call this out as a
// correction over the original Java implementation's TODO'd footer
// check, not an ambiguity to resolve either way.
//
// Only the first member of the stream is decoded; trailing bytes after
// the first member's trailer (as produced by concatenated gzip files)
// are ignored, and Read returns io.EOF without inspecting them. Some of
// them may already have been pulled from r into the input buffer.
type GzipReader struct {
	br     *BitReader
	engine *InflateEngine
	crc    *CRC32
	log    *zap.Logger

	totalOut int64
	name     string
	comment  string
	extra    []byte
	mtime    uint32
	err      error
}

// NewGzipReader validates the gzip header (magic, method, flags, and —
// if FHCRC is set — the header checksum) and returns a reader positioned
// at the start of the wrapped deflate stream. Header parsing happens
// eagerly so construction itself reports a malformed header rather than
// deferring it to the first Read.
func NewGzipReader(r io.Reader, opts ...Option) (*GzipReader, error) {
	cfg := newConfig(opts)
	br := NewBitReader(r)
	g := &GzipReader{br: br, crc: NewCRC32(), log: cfg.logger}

	hcrc := NewCRC32()
	readByte := func() (byte, error) {
		v, err := br.take(8)
		if err != nil {
			return 0, wrapSourceErr(err, "reading gzip header")
		}
		b := byte(v)
		hcrc.Update([]byte{b})
		return b, nil
	}
	readNulString := func() (string, error) {
		var buf []byte
		for {
			b, err := readByte()
			if err != nil {
				return "", err
			}
			if b == 0 {
				break
			}
			buf = append(buf, b)
		}
		return string(buf), nil
	}

	magic0, err := readByte()
	if err != nil {
		return nil, err
	}
	magic1, err := readByte()
	if err != nil {
		return nil, err
	}
	if magic0 != 0x1F || magic1 != 0x8B {
		return nil, corrupt(0, KindInvalidMagic, "")
	}
	method, err := readByte()
	if err != nil {
		return nil, err
	}
	if method != 8 {
		return nil, corrupt(16, KindUnsupportedMethod, "")
	}
	flags, err := readByte()
	if err != nil {
		return nil, err
	}
	if flags&^(gzipFlagText|gzipFlagHCRC|gzipFlagExtra|gzipFlagName|gzipFlagComment) != 0 {
		return nil, corrupt(24, KindUnsupportedFlags, "")
	}
	var mtime uint32
	for i := 0; i < 4; i++ {
		b, err := readByte()
		if err != nil {
			return nil, err
		}
		mtime |= uint32(b) << (8 * i)
	}
	g.mtime = mtime
	if _, err := readByte(); err != nil { // XFL, ignored
		return nil, err
	}
	if _, err := readByte(); err != nil { // OS, ignored
		return nil, err
	}

	if flags&gzipFlagExtra != 0 {
		var xlen uint16
		for i := 0; i < 2; i++ {
			b, err := readByte()
			if err != nil {
				return nil, err
			}
			xlen |= uint16(b) << (8 * i)
		}
		extra := make([]byte, xlen)
		for i := range extra {
			b, err := readByte()
			if err != nil {
				return nil, err
			}
			extra[i] = b
		}
		g.extra = extra
	}
	if flags&gzipFlagName != 0 {
		name, err := readNulString()
		if err != nil {
			return nil, err
		}
		g.name = name
	}
	if flags&gzipFlagComment != 0 {
		comment, err := readNulString()
		if err != nil {
			return nil, err
		}
		g.comment = comment
	}
	if flags&gzipFlagHCRC != 0 {
		// hcrc.Sum() here covers exactly the header bytes read so far —
		// magic through the terminating NUL of FCOMMENT — since the two
		// FHCRC bytes themselves are read (via plain br.take, not
		// readByte) after this point and are not part of the checksum.
		want := uint16(hcrc.Sum())
		got, err := br.take(16)
		if err != nil {
			return nil, wrapSourceErr(err, "reading gzip header CRC16")
		}
		if uint16(got) != want {
			return nil, corrupt(0, KindHeaderChecksum, "")
		}
	}

	g.log.Debug("gzip header",
		zap.Uint8("flags", flags),
		zap.String("name", g.name),
		zap.Int("extraLen", len(g.extra)),
	)

	g.engine = NewEngine(br, maxWindowSize, cfg.logger)
	return g, nil
}

// Name returns the FNAME field, or "" if absent.
func (g *GzipReader) Name() string { return g.name }

// Comment returns the FCOMMENT field, or "" if absent.
func (g *GzipReader) Comment() string { return g.comment }

// ExtraField returns the raw FEXTRA subfield bytes, or nil if absent.
func (g *GzipReader) ExtraField() []byte { return g.extra }

// ModTime returns the raw MTIME header field (seconds since the Unix
// epoch per RFC 1952, though the field is otherwise unvalidated/ignored
// by this decoder).
func (g *GzipReader) ModTime() uint32 { return g.mtime }

// Read implements io.Reader over the decompressed member body,
// verifying the trailer the moment the final block ends.
func (g *GzipReader) Read(p []byte) (int, error) {
	if g.err != nil {
		return 0, g.err
	}
	n, err := g.engine.Read(p)
	if n > 0 {
		g.crc.Update(p[:n])
		g.totalOut += int64(n)
	}
	if err == nil {
		return n, nil
	}
	if err == io.EOF {
		if verr := g.verifyTrailer(); verr != nil {
			g.err = verr
			return n, verr
		}
		g.err = io.EOF
		return n, io.EOF
	}
	g.err = err
	return n, err
}

// Skip discards the next n decompressed bytes of the member body. See
// Reader.Skip for the short-skip-at-EOF behavior this mirrors.
func (g *GzipReader) Skip(n int64) (int64, error) {
	return skipViaRead(g, n)
}

func (g *GzipReader) verifyTrailer() error {
	crcField, err := g.br.take(32)
	if err != nil {
		return wrapSourceErr(err, "reading gzip trailer CRC")
	}
	isizeField, err := g.br.take(32)
	if err != nil {
		return wrapSourceErr(err, "reading gzip trailer ISIZE")
	}
	if crcField != g.crc.Sum() {
		return corrupt(0, KindChecksumMismatch, "gzip CRC-32 trailer mismatch")
	}
	if isizeField != uint32(g.totalOut) {
		return corrupt(0, KindChecksumMismatch, "gzip ISIZE trailer mismatch")
	}
	return nil
}
