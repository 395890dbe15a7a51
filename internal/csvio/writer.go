package csvio

import (
	"bufio"
	"io"
)

// Writer emits delimited records with minimal quoting: a field is enclosed in
// double quotes only when it contains a comma, quote, or line break, with
// inner quotes doubled. A was-quoted mask switches individual fields to raw
// pass-through so that input fidelity survives re-emission. Output is buffered;
// the caller owns the single Flush at the end of the run.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w with a 256KB write buffer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, ioBufferSize)}
}

// WriteLine writes raw bytes followed by a newline.
func (w *Writer) WriteLine(line []byte) error {
	if _, err := w.w.Write(line); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// WriteRecord emits one comma-joined record and a trailing newline.
//
// With a nil mask every field goes through the minimal-quoting rule. With a
// mask, fields that were quoted in the source are re-emitted through the same
// rule while originally-unquoted fields are written raw, so a bare quote
// inside an unquoted field survives byte-for-byte.
func (w *Writer) WriteRecord(fields [][]byte, quoted []bool) error {
	for i, field := range fields {
		if i > 0 {
			if err := w.w.WriteByte(','); err != nil {
				return err
			}
		}
		var err error
		switch {
		case quoted != nil && !quoted[i]:
			_, err = w.w.Write(field)
		case needsQuotes(field):
			err = w.writeQuoted(field)
		default:
			_, err = w.w.Write(field)
		}
		if err != nil {
			return err
		}
	}
	return w.w.WriteByte('\n')
}

// Flush pushes buffered output to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

func (w *Writer) writeQuoted(field []byte) error {
	if err := w.w.WriteByte('"'); err != nil {
		return err
	}
	for _, c := range field {
		if c == '"' {
			if err := w.w.WriteByte('"'); err != nil {
				return err
			}
		}
		if err := w.w.WriteByte(c); err != nil {
			return err
		}
	}
	return w.w.WriteByte('"')
}

func needsQuotes(field []byte) bool {
	for _, c := range field {
		switch c {
		case ',', '"', '\n', '\r':
			return true
		}
	}
	return false
}
