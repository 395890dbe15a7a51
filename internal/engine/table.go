package engine

import "github.com/kolonlabs/kolon/internal/csvio"

// tableSampleBytes bounds the cumulative field bytes buffered for width
// estimation. Rows past the bound stream with frozen widths.
const tableSampleBytes = 1 << 20

// tableSink renders aligned rows. Column widths start at the header's display
// widths and are refined over a bounded sample of buffered rows; once the
// sample flushes, later rows stream with no further adjustment and may
// misalign if wider.
type tableSink struct {
	w        *csvio.Writer
	header   [][]byte
	widths   []int
	noHeader bool

	sample      [][][]byte
	sampleBytes int
	streamed    bool

	line []byte // reusable assembly buffer
}

func newTableSink(w *csvio.Writer, hdr sinkHeader) *tableSink {
	header := make([][]byte, len(hdr.cells))
	widths := make([]int, len(hdr.cells))
	for i, cell := range hdr.cells {
		header[i] = append([]byte(nil), cell...)
		widths[i] = displayWidth(cell)
	}
	return &tableSink{
		w:        w,
		header:   header,
		widths:   widths,
		noHeader: hdr.suppress,
	}
}

func (t *tableSink) row(fields [][]byte, quoted []bool) error {
	if t.streamed {
		return t.emit(fields)
	}
	copied, _ := copyRow(fields, nil)
	t.sample = append(t.sample, copied)
	t.sampleBytes += rowBytes(copied)
	for i, f := range copied {
		if i >= len(t.widths) {
			break
		}
		if w := displayWidth(f); w > t.widths[i] {
			t.widths[i] = w
		}
	}
	if t.sampleBytes >= tableSampleBytes {
		return t.flushSample()
	}
	return nil
}

func (t *tableSink) close() error {
	if t.streamed {
		return nil
	}
	return t.flushSample()
}

// flushSample freezes the widths, emits the header and separator, then the
// buffered rows. Subsequent rows stream directly.
func (t *tableSink) flushSample() error {
	if !t.noHeader {
		if err := t.emit(t.header); err != nil {
			return err
		}
		if err := t.emitSeparator(); err != nil {
			return err
		}
	}
	for _, row := range t.sample {
		if err := t.emit(row); err != nil {
			return err
		}
	}
	t.sample = nil
	t.sampleBytes = 0
	t.streamed = true
	return nil
}

// emit writes one row, space-padding each cell to its column width. Cells
// wider than the recorded width go out verbatim.
func (t *tableSink) emit(fields [][]byte) error {
	t.line = t.line[:0]
	for i, f := range fields {
		if i > 0 {
			t.line = append(t.line, ' ', '|', ' ')
		}
		t.line = append(t.line, f...)
		if i < len(t.widths) {
			for pad := t.widths[i] - displayWidth(f); pad > 0; pad-- {
				t.line = append(t.line, ' ')
			}
		}
	}
	return t.w.WriteLine(t.line)
}

func (t *tableSink) emitSeparator() error {
	t.line = t.line[:0]
	for i, w := range t.widths {
		if i > 0 {
			t.line = append(t.line, '-', '+', '-')
		}
		for ; w > 0; w-- {
			t.line = append(t.line, '-')
		}
	}
	return t.w.WriteLine(t.line)
}

// displayWidth counts UTF-8 codepoints: lead and malformed bytes count one,
// continuation bytes count zero.
func displayWidth(field []byte) int {
	n := 0
	for _, c := range field {
		if c&0xC0 != 0x80 {
			n++
		}
	}
	return n
}
