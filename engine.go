package inflate

import (
	"io"
	"sync"

	"go.uber.org/zap"
)

// engineState tags which step of the block-decoding state graph the
// engine is paused in. Only the states that can produce output
// (stateCopy, stateLen, stateMatch) are meaningfully "resumed into" —
// decoding a block header, a dynamic table, or a symbol's extra bits
// never blocks on output space, only (synchronously, via the underlying
// io.Reader) on input, so those sub-steps run to completion within a
// single pass through the loop rather than persisting their own
// cross-call scratch. See DESIGN.md for why that collapse is sound.
type engineState int

const (
	stateType engineState = iota
	stateCopy
	stateLen
	stateLenExt
	stateDist
	stateDistExt
	stateMatch
	stateDone
)

var codeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

var lenBase = [29]int{3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31, 35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258}
var lenExtra = [29]int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0}
var distBase = [30]int{1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193, 257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577}
var distExtra = [30]int{0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13}

const (
	maxNumLit  = 288
	maxNumDist = 30
)

var (
	fixedTablesOnce sync.Once
	fixedLitTable   *HuffmanTable
	fixedDistTable  *HuffmanTable
)

func initFixedTables() {
	fixedTablesOnce.Do(func() {
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
		fixedLitTable, _ = buildHuffmanTable(lens)

		// RFC 1951 3.2.6 gives the fixed distance code 32 five-bit
		// codes, which makes it complete; symbols 30 and 31 are rejected
		// when decoded (see stateDist).
		dlens := make([]int, 32)
		for i := range dlens {
			dlens[i] = 5
		}
		fixedDistTable, _ = buildHuffmanTable(dlens)
	})
}

// InflateEngine is the resumable DEFLATE bit-stream decoder: the state
// machine described in the design as HEAD -> TYPE -> {STORED|LEN|TABLE}
// -> ... -> DONE, minus the wrapper-specific HEAD/DICTID/CHECK states,
// which belong to the gzip/zlib envelopes layered on top (gzip.go,
// zlib.go) — the engine itself only ever sees raw deflate blocks.
//
// It reads from a BitReader that a gzip/zlib envelope may share for its
// header and trailer. It owns the sliding window, allocated at
// construction, and the current block's pair of Huffman tables, built
// when each block starts (the fixed pair is built once and shared).
type InflateEngine struct {
	br     *BitReader
	window *SlidingWindow

	state engineState
	final bool

	litTable  *HuffmanTable
	distTable *HuffmanTable

	storedRemaining int

	curLength   int
	curDistance int
	curExtra    uint

	err error

	log *zap.Logger

	// OnBlockEnd, when set, is invoked every time a block finishes
	// decoding (stored, fixed, or dynamic), with final=true exactly once
	// for the block carrying the last-block flag. Envelope readers are
	// not required to set this; it exists for callers building
	// checkpoint/seek indices over a long-running decode, the same
	// accessor the soci-snapshotter fork of compress/flate adds.
	OnBlockEnd func(final bool)
}

// NewEngine constructs an InflateEngine reading raw DEFLATE data from br,
// with a sliding window of windowSize bytes (coerced into
// [minWindowSize, maxWindowSize] and rounded up to a power of two).
func NewEngine(br *BitReader, windowSize int, log *zap.Logger) *InflateEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &InflateEngine{
		br:     br,
		window: newSlidingWindow(clampWindowSize(windowSize)),
		log:    log,
	}
}

// primeDictionary seeds the sliding window with a preset dictionary
// before decoding begins.
func (e *InflateEngine) primeDictionary(dict []byte) {
	e.window.primeDictionary(dict)
}

func (e *InflateEngine) fail(err error) error {
	e.err = err
	return err
}

// Read implements io.Reader over the DEFLATE bit stream. It writes
// directly decoded bytes into p, returning as soon as p is full, the
// underlying input is exhausted without error, or the final block's
// end-of-block symbol has been consumed (io.EOF).
func (e *InflateEngine) Read(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	if len(p) == 0 {
		return 0, nil
	}

	written := 0
	for written < len(p) {
		switch e.state {
		case stateType:
			if err := e.enterBlock(); err != nil {
				return written, e.fail(err)
			}

		case stateCopy:
			if e.storedRemaining == 0 {
				e.state = stateType
				if e.OnBlockEnd != nil {
					e.OnBlockEnd(e.final)
				}
				continue
			}
			n := e.storedRemaining
			if rem := len(p) - written; n > rem {
				n = rem
			}
			got, err := e.br.readRaw(p[written : written+n])
			if got > 0 {
				e.window.absorb(p[written : written+got])
			}
			written += got
			e.storedRemaining -= got
			if err != nil {
				return written, e.fail(wrapSourceErr(err, "reading stored block data"))
			}
			if got == 0 {
				return written, nil
			}

		case stateLen:
			sym, err := e.litTable.decodeOne(e.br)
			if err != nil {
				return written, e.fail(wrapSourceErr(err, "decoding literal/length symbol"))
			}
			switch {
			case sym < 256:
				p[written] = byte(sym)
				e.window.absorb(p[written : written+1])
				written++
			case sym == 256:
				e.litTable = nil
				e.distTable = nil
				e.state = stateType
				if e.OnBlockEnd != nil {
					e.OnBlockEnd(e.final)
				}
			case sym <= 285:
				i := sym - 257
				e.curLength = lenBase[i]
				if lenExtra[i] > 0 {
					e.curExtra = uint(lenExtra[i])
					e.state = stateLenExt
				} else {
					e.state = stateDist
				}
			default:
				return written, e.fail(corrupt(e.br.bitOffset(), KindInvalidLengthCode, ""))
			}

		case stateLenExt:
			bits, err := e.br.take(e.curExtra)
			if err != nil {
				return written, e.fail(wrapSourceErr(err, "reading length extra bits"))
			}
			e.curLength += int(bits)
			e.state = stateDist

		case stateDist:
			sym, err := e.distTable.decodeOne(e.br)
			if err != nil {
				return written, e.fail(wrapSourceErr(err, "decoding distance symbol"))
			}
			if sym > 29 {
				return written, e.fail(corrupt(e.br.bitOffset(), KindInvalidDistanceCode, ""))
			}
			e.curDistance = distBase[sym]
			if distExtra[sym] > 0 {
				e.curExtra = uint(distExtra[sym])
				e.state = stateDistExt
			} else {
				e.state = stateMatch
			}

		case stateDistExt:
			bits, err := e.br.take(e.curExtra)
			if err != nil {
				return written, e.fail(wrapSourceErr(err, "reading distance extra bits"))
			}
			e.curDistance += int(bits)
			e.state = stateMatch

		case stateMatch:
			n, err := e.window.copyBack(e.curDistance, e.curLength, written, p)
			if err != nil {
				return written, e.fail(err)
			}
			if n > 0 {
				e.window.absorb(p[written : written+n])
			}
			written += n
			e.curLength -= n
			if e.curLength == 0 {
				e.state = stateLen
			}

		case stateDone:
			if written > 0 {
				return written, nil
			}
			return 0, e.fail(io.EOF)

		default:
			return written, e.fail(InternalError("unreachable engine state"))
		}
	}
	return written, nil
}

// enterBlock reads one block header and, for stored/fixed/dynamic
// blocks, everything needed to start decoding it — dynamic tables in
// particular are built in full here rather than across several
// persisted sub-states, since nothing in table construction writes to
// the caller's output buffer.
func (e *InflateEngine) enterBlock() error {
	if e.final {
		e.br.alignToByte()
		e.state = stateDone
		return nil
	}

	v, err := e.br.take(3)
	if err != nil {
		return wrapSourceErr(err, "reading block header")
	}
	e.final = v&1 == 1
	blockType := (v >> 1) & 3

	e.log.Debug("deflate block header", zap.Uint32("type", blockType), zap.Bool("final", e.final))

	switch blockType {
	case 0:
		e.br.alignToByte()
		raw, err := e.br.take(32)
		if err != nil {
			return wrapSourceErr(err, "reading stored block length")
		}
		length := uint16(raw & 0xFFFF)
		complement := uint16((raw >> 16) & 0xFFFF)
		if length != ^complement {
			return corrupt(e.br.bitOffset(), KindInvalidStoredLength, "")
		}
		e.storedRemaining = int(length)
		e.state = stateCopy
		return nil

	case 1:
		initFixedTables()
		e.litTable = fixedLitTable
		e.distTable = fixedDistTable
		e.state = stateLen
		return nil

	case 2:
		if err := e.readDynamicTables(); err != nil {
			return err
		}
		e.state = stateLen
		return nil

	default:
		return corrupt(e.br.bitOffset(), KindInvalidBlockType, "")
	}
}

func (e *InflateEngine) readDynamicTables() error {
	raw, err := e.br.take(14)
	if err != nil {
		return wrapSourceErr(err, "reading dynamic table header")
	}
	hlit := int(raw&0x1F) + 257
	hdist := int((raw>>5)&0x1F) + 1
	hclen := int((raw>>9)&0xF) + 4
	if hlit > maxNumLit || hdist > maxNumDist {
		return corrupt(e.br.bitOffset(), KindInvalidCodeSet, "HLIT/HDIST out of range")
	}

	var codeLenLens [19]int
	for i := 0; i < hclen; i++ {
		bits, err := e.br.take(3)
		if err != nil {
			return wrapSourceErr(err, "reading code-length code lengths")
		}
		codeLenLens[codeLengthOrder[i]] = int(bits)
	}
	codeLenTable, err := buildHuffmanTable(codeLenLens[:])
	if err != nil {
		return err
	}

	total := hlit + hdist
	lens := make([]int, total)
	i := 0
	prevLen := -1
	for i < total {
		sym, err := codeLenTable.decodeOne(e.br)
		if err != nil {
			return wrapSourceErr(err, "decoding code-length symbol")
		}
		switch {
		case sym <= 15:
			lens[i] = sym
			i++
		case sym == 16:
			if prevLen < 0 {
				return corrupt(e.br.bitOffset(), KindInvalidRepeatPrefix, "")
			}
			bits, err := e.br.take(2)
			if err != nil {
				return wrapSourceErr(err, "reading repeat-previous extra bits")
			}
			rep := 3 + int(bits)
			if i+rep > total {
				return corrupt(e.br.bitOffset(), KindInvalidCodeSet, "repeat-previous runs past length vector")
			}
			for j := 0; j < rep; j++ {
				lens[i] = prevLen
				i++
			}
		case sym == 17:
			bits, err := e.br.take(3)
			if err != nil {
				return wrapSourceErr(err, "reading zero-repeat extra bits")
			}
			rep := 3 + int(bits)
			if i+rep > total {
				return corrupt(e.br.bitOffset(), KindInvalidCodeSet, "zero-repeat runs past length vector")
			}
			for j := 0; j < rep; j++ {
				lens[i] = 0
				i++
			}
		case sym == 18:
			bits, err := e.br.take(7)
			if err != nil {
				return wrapSourceErr(err, "reading long zero-repeat extra bits")
			}
			rep := 11 + int(bits)
			if i+rep > total {
				return corrupt(e.br.bitOffset(), KindInvalidCodeSet, "long zero-repeat runs past length vector")
			}
			for j := 0; j < rep; j++ {
				lens[i] = 0
				i++
			}
		default:
			return corrupt(e.br.bitOffset(), KindInvalidCodeSet, "invalid code-length alphabet symbol")
		}
		if i > 0 {
			prevLen = lens[i-1]
		}
	}

	litTable, err := buildHuffmanTable(lens[:hlit])
	if err != nil {
		return err
	}
	distTable, err := buildHuffmanTable(lens[hlit:])
	if err != nil {
		return err
	}
	e.litTable = litTable
	e.distTable = distTable
	return nil
}
