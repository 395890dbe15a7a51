package csvio

import (
	"bufio"
	"errors"
	"io"
)

const (
	// MaxLineLen bounds a single logical line, line terminator excluded.
	MaxLineLen = 1 << 20

	ioBufferSize = 256 * 1024 // 256KB keeps syscalls low without huge RSS.
)

// ErrLineTooLong is returned when a line exceeds MaxLineLen bytes.
var ErrLineTooLong = errors.New("line exceeds 1 MiB")

// LineReader yields one logical line at a time from a byte stream. A line is
// the bytes up to and excluding the next '\n'; a trailing '\r' is stripped and
// empty lines are skipped. The returned slice points into the reader's own
// buffer and is valid until the next call.
type LineReader struct {
	r   *bufio.Reader
	buf []byte
}

// NewLineReader wraps r with a 256KB read buffer and a MaxLineLen line buffer.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{
		r:   bufio.NewReaderSize(r, ioBufferSize),
		buf: make([]byte, 0, MaxLineLen),
	}
}

// Next returns the next non-empty line. It returns io.EOF once the stream is
// exhausted and ErrLineTooLong when a line passes MaxLineLen bytes.
func (lr *LineReader) Next() ([]byte, error) {
	for {
		line, err := lr.readLine()
		if err != nil {
			return nil, err
		}
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
}

// readLine accumulates one raw line into lr.buf, crossing as many bufio fills
// as the line needs.
func (lr *LineReader) readLine() ([]byte, error) {
	lr.buf = lr.buf[:0]
	for {
		chunk, err := lr.r.ReadSlice('\n')
		if len(chunk) > 0 {
			terminated := chunk[len(chunk)-1] == '\n'
			if terminated {
				chunk = chunk[:len(chunk)-1]
			}
			if len(lr.buf)+len(chunk) > MaxLineLen {
				return nil, ErrLineTooLong
			}
			lr.buf = append(lr.buf, chunk...)
			if terminated {
				return lr.buf, nil
			}
		}
		switch err {
		case nil, bufio.ErrBufferFull:
			continue
		case io.EOF:
			if len(lr.buf) > 0 {
				return lr.buf, nil
			}
			return nil, io.EOF
		default:
			return nil, err
		}
	}
}
