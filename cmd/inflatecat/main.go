package main

import (
	"fmt"
	"io"
	"os"

	"github.com/flatewire/inflate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	format  string
	verbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "inflatecat [file]",
		Short: "Decompress a deflate, gzip, or zlib stream to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run,
	}
	root.Flags().StringVarP(&format, "format", "f", "auto", "stream format: auto, deflate, gzip, zlib")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "log block and header traces to stderr")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	log := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer l.Sync()
		log = l
	}

	src := io.Reader(in)
	resolved := format
	if resolved == "auto" {
		peeked, kind, err := sniff(src)
		if err != nil {
			return err
		}
		src = peeked
		resolved = kind
	}

	var r io.Reader
	switch resolved {
	case "gzip":
		gr, err := inflate.NewGzipReader(src, inflate.WithLogger(log))
		if err != nil {
			return fmt.Errorf("inflatecat: %w", err)
		}
		r = gr
	case "zlib":
		zr, err := inflate.NewZlibReader(src, inflate.WithLogger(log))
		if err != nil {
			return fmt.Errorf("inflatecat: %w", err)
		}
		if zr.DictionaryRequired() {
			return fmt.Errorf("inflatecat: stream requires preset dictionary %08x, not supported by this CLI", zr.DictionaryID())
		}
		r = zr
	case "deflate":
		r = inflate.NewReader(src, inflate.WithLogger(log))
	default:
		return fmt.Errorf("inflatecat: unknown format %q", resolved)
	}

	n, err := io.Copy(os.Stdout, r)
	if err != nil {
		return fmt.Errorf("inflatecat: after %d bytes: %w", n, err)
	}
	return nil
}

// sniff peeks the first two bytes of src to distinguish gzip and zlib
// magic from a bare deflate stream, returning a reader that still sees
// those bytes.
func sniff(src io.Reader) (io.Reader, string, error) {
	var peek [2]byte
	n, err := io.ReadFull(src, peek[:])
	rewound := io.MultiReader(sliceReader(peek[:n]), src)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return rewound, "deflate", nil
		}
		return nil, "", err
	}
	switch {
	case peek[0] == 0x1F && peek[1] == 0x8B:
		return rewound, "gzip", nil
	case peek[0]&0xF == 8 && (uint16(peek[0])*256+uint16(peek[1]))%31 == 0:
		return rewound, "zlib", nil
	default:
		return rewound, "deflate", nil
	}
}

func sliceReader(b []byte) io.Reader {
	return &byteSliceReader{b: b}
}

type byteSliceReader struct{ b []byte }

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}
