package engine

import "github.com/kolonlabs/kolon/internal/csvio"

// rowSink receives projected output rows. The delimited sink streams them;
// the table sink buffers a width sample first. close flushes whatever the
// sink still holds (it does not flush the underlying writer).
type rowSink interface {
	row(fields [][]byte, quoted []bool) error
	close() error
}

// sinkHeader carries everything a sink needs to emit the header row.
type sinkHeader struct {
	cells    [][]byte
	quoted   []bool // nil applies the minimal-quoting rule to every cell
	raw      []byte // verbatim header line, set only for identity projection
	suppress bool
}

// csvSink streams records in the input dialect. The header goes out
// immediately so that zero-row runs still produce it.
type csvSink struct {
	w *csvio.Writer
}

func newCSVSink(w *csvio.Writer, hdr sinkHeader) (*csvSink, error) {
	s := &csvSink{w: w}
	if hdr.suppress {
		return s, nil
	}
	var err error
	if hdr.raw != nil {
		err = w.WriteLine(hdr.raw)
	} else {
		err = w.WriteRecord(hdr.cells, hdr.quoted)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *csvSink) row(fields [][]byte, quoted []bool) error {
	return s.w.WriteRecord(fields, quoted)
}

func (s *csvSink) close() error {
	return nil
}
