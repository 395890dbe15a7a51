// Package engine runs one kolon invocation: it binds the configuration to the
// input's header, selects a processing mode, and streams records from the
// line reader through the record parser into the chosen sink. Per-row work
// happens in the parser's reusable scratch; only the bounded operators
// (ranking buffer, reservoir, table width sample, aggregator state) retain
// memory across rows.
package engine

import (
	"errors"
	"io"

	"github.com/kolonlabs/kolon/internal/csvio"
	"github.com/kolonlabs/kolon/internal/filter"
)

// Run executes cfg against in, writing results to out and diagnostics to
// errw. Output is buffered and flushed exactly once, on the way out, even
// when the run fails mid-stream.
func Run(cfg Config, in io.Reader, out, errw io.Writer) error {
	w := csvio.NewWriter(out)
	var err error
	if cfg.passthrough() {
		err = runPassthrough(cfg, csvio.NewLineReader(in), w)
	} else {
		err = run(cfg, csvio.NewLineReader(in), w, errw)
	}
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	return err
}

// runPassthrough copies lines verbatim when no transform is requested.
func runPassthrough(cfg Config, lr *csvio.LineReader, w *csvio.Writer) error {
	line, err := lr.Next()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	if !cfg.NoHeader {
		if err := w.WriteLine(line); err != nil {
			return err
		}
	}
	count := 0
	for cfg.Head < 0 || count < cfg.Head {
		line, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, csvio.ErrLineTooLong) {
				return err
			}
			break
		}
		if err := w.WriteLine(line); err != nil {
			return err
		}
		count++
	}
	return nil
}

func run(cfg Config, lr *csvio.LineReader, w *csvio.Writer, errw io.Writer) error {
	headerLine, err := lr.Next()
	if err == io.EOF {
		// No header at all: no output, success.
		return nil
	}
	if err != nil {
		return err
	}

	st := &runState{
		cfg:       cfg,
		lr:        lr,
		parser:    csvio.NewParser(),
		w:         w,
		errw:      errw,
		rawHeader: append([]byte(nil), headerLine...),
		line:      1,
	}

	hf, hq, perr := st.parser.Parse(headerLine)
	if perr != nil {
		return &csvio.ParseError{Line: 1, Err: perr}
	}
	st.header = make([]string, len(hf))
	for i, f := range hf {
		st.header[i] = string(f)
	}
	st.headerQuoted = append([]bool(nil), hq...)

	if err := st.bind(); err != nil {
		return err
	}

	switch {
	case cfg.Top != "":
		return st.runTop()
	case len(cfg.Aggs) > 0:
		return st.runAgg()
	case cfg.SampleN > 0:
		return st.runSample()
	default:
		return st.runStream()
	}
}

// runState is the bound invocation: header, column indices, and the shared
// reader/parser/writer for one scan.
type runState struct {
	cfg    Config
	lr     *csvio.LineReader
	parser *csvio.Parser
	w      *csvio.Writer
	errw   io.Writer

	rawHeader    []byte
	header       []string
	headerQuoted []bool
	line         int

	filters []filter.Predicate
	proj    *projector
	topIdx  int
	aggs    []*aggregator
}

// bind resolves every selector against the header. Any failure is fatal
// before a single data row is read.
func (st *runState) bind() error {
	st.filters = append([]filter.Predicate(nil), st.cfg.Filters...)
	for i := range st.filters {
		idx, err := Resolve(st.header, st.filters[i].Column)
		if err != nil {
			return err
		}
		st.filters[i].Index = idx
	}

	var idxs []int
	if st.cfg.Select != nil {
		idxs = make([]int, len(st.cfg.Select))
		for i, sel := range st.cfg.Select {
			idx, err := Resolve(st.header, sel)
			if err != nil {
				return err
			}
			idxs[i] = idx
		}
	}
	st.proj = newProjector(idxs)

	if st.cfg.Top != "" {
		idx, err := Resolve(st.header, st.cfg.Top)
		if err != nil {
			return err
		}
		st.topIdx = idx
	}

	for _, spec := range st.cfg.Aggs {
		idx, err := Resolve(st.header, spec.Field)
		if err != nil {
			return err
		}
		st.aggs = append(st.aggs, newAggregator(spec, idx))
	}
	return nil
}

// forEachRow streams records that pass every predicate to fn until fn asks to
// stop or the input ends. A parse failure is fatal with its line number; a
// plain read failure ends the scan so already-produced output survives.
func (st *runState) forEachRow(fn func(fields [][]byte, quoted []bool) (bool, error)) error {
	for {
		line, err := st.lr.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if errors.Is(err, csvio.ErrLineTooLong) {
				return err
			}
			return nil
		}
		st.line++
		fields, quoted, perr := st.parser.Parse(line)
		if perr != nil {
			return &csvio.ParseError{Line: st.line, Err: perr}
		}
		if !filter.MatchAll(st.filters, fields) {
			continue
		}
		cont, err := fn(fields, quoted)
		if err != nil || !cont {
			return err
		}
	}
}

// projectedHeader builds the sink header for the current projection. Identity
// projection keeps the verbatim header line so pass-through output matches
// the input byte-for-byte.
func (st *runState) projectedHeader() sinkHeader {
	hdr := sinkHeader{suppress: st.cfg.NoHeader}
	if st.proj.idx == nil {
		hdr.raw = st.rawHeader
		hdr.cells = make([][]byte, len(st.header))
		for i, name := range st.header {
			hdr.cells[i] = []byte(name)
		}
		hdr.quoted = st.headerQuoted
		return hdr
	}
	hdr.cells = make([][]byte, len(st.proj.idx))
	hdr.quoted = make([]bool, len(st.proj.idx))
	for i, src := range st.proj.idx {
		hdr.cells[i] = []byte(st.header[src])
		hdr.quoted[i] = src < len(st.headerQuoted) && st.headerQuoted[src]
	}
	return hdr
}

func (st *runState) newSink(hdr sinkHeader) (rowSink, error) {
	if st.cfg.Table {
		return newTableSink(st.w, hdr), nil
	}
	return newCSVSink(st.w, hdr)
}

// runStream is the direct row-by-row mode, delimited or table.
func (st *runState) runStream() error {
	snk, err := st.newSink(st.projectedHeader())
	if err != nil {
		return err
	}
	if st.cfg.Head == 0 {
		return snk.close()
	}
	count := 0
	err = st.forEachRow(func(fields [][]byte, quoted []bool) (bool, error) {
		cells, mask := st.proj.apply(fields, quoted)
		if err := snk.row(cells, mask); err != nil {
			return false, err
		}
		count++
		return st.cfg.Head < 0 || count < st.cfg.Head, nil
	})
	if err != nil {
		return err
	}
	return snk.close()
}

// runTop scans the whole input through the ranking buffer, then emits the
// survivors in descending key order.
func (st *runState) runTop() error {
	sel := newTopN(st.cfg.limit(), st.topIdx)
	err := st.forEachRow(func(fields [][]byte, quoted []bool) (bool, error) {
		sel.offer(fields, quoted)
		return true, nil
	})
	if err != nil {
		return err
	}
	snk, err := st.newSink(st.projectedHeader())
	if err != nil {
		return err
	}
	results := sel.results()
	for i := range results {
		e := &results[i]
		cells, mask := st.proj.apply(e.fields, e.quoted)
		if err := snk.row(cells, mask); err != nil {
			return err
		}
	}
	return snk.close()
}

// runSample scans the whole input through the reservoir, then emits it.
func (st *runState) runSample() error {
	res := newReservoir(st.cfg.SampleN)
	err := st.forEachRow(func(fields [][]byte, quoted []bool) (bool, error) {
		res.offer(fields, quoted)
		return true, nil
	})
	if err != nil {
		return err
	}
	snk, err := st.newSink(st.projectedHeader())
	if err != nil {
		return err
	}
	for i, row := range res.rows {
		cells, mask := st.proj.apply(row, res.masks[i])
		if err := snk.row(cells, mask); err != nil {
			return err
		}
	}
	return snk.close()
}

// runAgg folds every passing row into the aggregators and emits a single
// result record, warning about tainted aggregators afterwards.
func (st *runState) runAgg() error {
	err := st.forEachRow(func(fields [][]byte, _ []bool) (bool, error) {
		for _, a := range st.aggs {
			a.observe(fields)
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	cells := make([][]byte, len(st.aggs))
	for i, a := range st.aggs {
		cells[i] = []byte(a.label())
	}
	snk, err := st.newSink(sinkHeader{cells: cells, suppress: st.cfg.NoHeader})
	if err != nil {
		return err
	}
	values := make([][]byte, len(st.aggs))
	for i, a := range st.aggs {
		values[i] = []byte(a.value())
	}
	if err := snk.row(values, nil); err != nil {
		return err
	}
	if err := snk.close(); err != nil {
		return err
	}
	for _, a := range st.aggs {
		a.warn(st.errw)
	}
	return nil
}
