// Package lines provides a gzip-transparent newline-delimited reader
// for the profiler's ingest stage, grounded on the teacher's
// processors.GzipDecompressor (magic-number sniffing ahead of an
// klauspost/compress/gzip.Reader) but restructured as a line source
// instead of a whole-buffer processor stage.
package lines

import (
	"bufio"
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"
)

// gzipMagic is the two leading bytes of any gzip stream, per RFC 1952.
var gzipMagic = [2]byte{0x1f, 0x8b}

// ErrEmpty is returned by Open when the underlying stream yields no
// bytes at all, so the caller can distinguish "nothing to detect a
// flavor from" from a genuine read error.
var ErrEmpty = errors.New("lines: empty input stream")

// Reader yields successive raw lines (newline stripped) from an
// underlying stream that may or may not be gzip-compressed; detection
// is automatic and transparent to the caller.
type Reader struct {
	sc *bufio.Scanner
}

// Open wraps r, peeking at the first two bytes to decide whether to
// interpose a gzip.Reader. It never assumes its input is seekable, so
// detection works by buffered peek rather than seek-and-rewind.
func Open(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	peek, err := br.Peek(2)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return nil, err
		}
		if len(peek) == 0 {
			return nil, ErrEmpty
		}
	}

	var src io.Reader = br
	if len(peek) == 2 && peek[0] == gzipMagic[0] && peek[1] == gzipMagic[1] {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		src = zr
	}

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &Reader{sc: sc}, nil
}

// Next returns the next line, or io.EOF when the stream is exhausted.
func (r *Reader) Next() ([]byte, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return r.sc.Bytes(), nil
}
