package core

// reader.go reads an import source line by line.
//
// The source is consumed as a stream so memory stays proportional to the
// number of valid records, not to the file size. On the way in:
//
//   - the UTF-8 BOM written by Windows editors is skipped
//   - invalid UTF-8 is replaced with U+FFFD
//   - bytes are counted and the size limit is enforced
//
// Lines end in "\n" or "\r\n"; a trailing newline does not add a line.

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
)

// MaxLineSize is the longest accepted input line in bytes.
var MaxLineSize = 1 << 20

// ContextCheckInterval is how often (in lines) to check for cancellation.
var ContextCheckInterval = 100

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CountingReader wraps an io.Reader to track bytes read and enforce a limit.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Limit     int64 // 0 disables the limit
}

// NewCountingReader creates a counting reader. A limit of 0 means unlimited.
func NewCountingReader(r io.Reader, limit int64) *CountingReader {
	return &CountingReader{reader: r, Limit: limit}
}

// Read implements io.Reader. It returns ErrFileTooLarge as soon as more than
// Limit bytes have been read.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	if r.Limit > 0 && r.BytesRead > r.Limit {
		return n, ErrFileTooLarge
	}
	return n, err
}

// skipBOM discards a leading UTF-8 BOM. Read errors are left for the next
// read to surface.
func skipBOM(br *bufio.Reader) {
	head, _ := br.Peek(len(utf8BOM))
	if bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
}

// scanLines calls fn for every line of r and returns the number of lines.
// The error is either a read error from r or the context error.
func scanLines(ctx context.Context, r io.Reader, fn func(lineNum int, line string)) (int, error) {
	br := bufio.NewReader(r)
	skipBOM(br)

	sc := bufio.NewScanner(br)
	// The scanner's limit is the larger of max and cap(buf).
	sc.Buffer(make([]byte, 0, min(64*1024, MaxLineSize)), MaxLineSize)

	n := 0
	for sc.Scan() {
		if n%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		n++
		fn(n, strings.ToValidUTF8(sc.Text(), "\uFFFD"))
	}
	return n, sc.Err()
}
