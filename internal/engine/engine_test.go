package engine

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/kolonlabs/kolon/internal/filter"
)

const scoresCSV = "name,score,dept\nAlice,9,Eng\nBob,8,Sales\nCara,10,Eng\nDan,7,Ops\n"

// runEngine executes cfg over input and returns stdout, stderr.
func runEngine(t *testing.T, cfg Config, input string) (string, string) {
	t.Helper()

	cfg = withDefaults(cfg)
	var out, errw bytes.Buffer
	if err := Run(cfg, strings.NewReader(input), &out, &errw); err != nil {
		t.Fatalf("run: %v", err)
	}
	return out.String(), errw.String()
}

func runEngineErr(t *testing.T, cfg Config, input string) error {
	t.Helper()

	cfg = withDefaults(cfg)
	var out, errw bytes.Buffer
	return Run(cfg, strings.NewReader(input), &out, &errw)
}

// withDefaults mirrors the argument layer, where Head is -1 when absent. An
// explicit --head 0 is exercised separately in TestHeadZero.
func withDefaults(cfg Config) Config {
	if cfg.Head == 0 {
		cfg.Head = -1
	}
	return cfg
}

func TestHeadZero(t *testing.T) {
	var out, errw bytes.Buffer
	cfg := Config{Select: []string{"name"}, Head: 0}
	if err := Run(cfg, strings.NewReader(scoresCSV), &out, &errw); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.String() != "name\n" {
		t.Fatalf("got %q, want header only", out.String())
	}

	out.Reset()
	cfg.NoHeader = true
	if err := Run(cfg, strings.NewReader(scoresCSV), &out, &errw); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.String() != "" {
		t.Fatalf("got %q, want nothing", out.String())
	}
}

func mustFilter(t *testing.T, expr string) filter.Predicate {
	t.Helper()

	p, err := filter.Parse(expr)
	if err != nil {
		t.Fatalf("parse filter %q: %v", expr, err)
	}
	return p
}

func TestTopWithTableAndSelect(t *testing.T) {
	got, _ := runEngine(t, Config{
		Top:    "score",
		Table:  true,
		Select: []string{"name", "score"},
		Head:   4,
	}, scoresCSV)

	want := "name  | score\n" +
		"------+------\n" +
		"Cara  | 10   \n" +
		"Alice | 9    \n" +
		"Bob   | 8    \n" +
		"Dan   | 7    \n"
	if got != want {
		t.Fatalf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestTopWithSelect(t *testing.T) {
	got, _ := runEngine(t, Config{
		Top:    "score",
		Select: []string{"name", "score"},
		Head:   4,
	}, scoresCSV)

	want := "name,score\nCara,10\nAlice,9\nBob,8\nDan,7\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTopWithFilter(t *testing.T) {
	got, _ := runEngine(t, Config{
		Top:     "score",
		Filters: []filter.Predicate{mustFilter(t, "dept=Eng")},
		Select:  []string{"name", "score"},
		Head:    2,
	}, scoresCSV)

	want := "name,score\nCara,10\nAlice,9\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTableKeepsInputOrder(t *testing.T) {
	got, _ := runEngine(t, Config{
		Table:  true,
		Select: []string{"name", "score"},
	}, scoresCSV)

	want := "name  | score\n" +
		"------+------\n" +
		"Alice | 9    \n" +
		"Bob   | 8    \n" +
		"Cara  | 10   \n" +
		"Dan   | 7    \n"
	if got != want {
		t.Fatalf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestSampleEmitsExactlyN(t *testing.T) {
	got, _ := runEngine(t, Config{SampleN: 2}, scoresCSV)

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (header + 2 rows)", len(lines))
	}
	if lines[0] != "name,score,dept" {
		t.Fatalf("header not byte-identical: %q", lines[0])
	}
	rows := map[string]bool{
		"Alice,9,Eng": true, "Bob,8,Sales": true, "Cara,10,Eng": true, "Dan,7,Ops": true,
	}
	for _, l := range lines[1:] {
		if !rows[l] {
			t.Fatalf("sampled row %q is not an input row", l)
		}
	}
}

func TestSampleFewerRowsThanN(t *testing.T) {
	got, _ := runEngine(t, Config{SampleN: 100}, scoresCSV)

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want all 5", len(lines))
	}
}

func TestAggregation(t *testing.T) {
	got, _ := runEngine(t, Config{
		Aggs: []AggSpec{{Func: "sum", Field: "score"}, {Func: "count", Field: "name"}},
	}, scoresCSV)

	want := "sum(score),count(name)\n34,4\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAggregationTaintWarnsAndSuppresses(t *testing.T) {
	input := "v\n5\nn/a\n7\n"
	got, errOut := runEngine(t, Config{
		Aggs: []AggSpec{{Func: "sum", Field: "v"}},
	}, input)

	if got != "sum(v)\n\n" {
		t.Fatalf("tainted value not suppressed: %q", got)
	}
	if !strings.Contains(errOut, "non-numeric") || !strings.Contains(errOut, "sum(v)") {
		t.Fatalf("missing taint warning: %q", errOut)
	}
}

func TestAggregationWithFilter(t *testing.T) {
	got, _ := runEngine(t, Config{
		Filters: []filter.Predicate{mustFilter(t, "dept=Eng")},
		Aggs:    []AggSpec{{Func: "mean", Field: "score"}},
	}, scoresCSV)

	want := "mean(score)\n9.5\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPassthroughIsByteIdentical(t *testing.T) {
	got, _ := runEngine(t, Config{}, scoresCSV)
	if got != scoresCSV {
		t.Fatalf("fast path altered bytes:\ngot  %q\nwant %q", got, scoresCSV)
	}
}

func TestPassthroughHead(t *testing.T) {
	got, _ := runEngine(t, Config{Head: 2}, scoresCSV)
	want := "name,score,dept\nAlice,9,Eng\nBob,8,Sales\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestPassthroughNoHeader(t *testing.T) {
	got, _ := runEngine(t, Config{NoHeader: true}, scoresCSV)
	want := "Alice,9,Eng\nBob,8,Sales\nCara,10,Eng\nDan,7,Ops\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestProjectionReorders(t *testing.T) {
	got, _ := runEngine(t, Config{Select: []string{"score", "name"}}, scoresCSV)
	want := "score,name\n9,Alice\n8,Bob\n10,Cara\n7,Dan\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestProjectionByIndex(t *testing.T) {
	got, _ := runEngine(t, Config{Select: []string{"2", "1"}}, scoresCSV)
	want := "score,name\n9,Alice\n8,Bob\n10,Cara\n7,Dan\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestProjectionIdempotent(t *testing.T) {
	cfg := Config{Select: []string{"name", "score"}}
	once, _ := runEngine(t, cfg, scoresCSV)
	twice, _ := runEngine(t, cfg, once)
	if once != twice {
		t.Fatalf("projection not idempotent:\nonce  %q\ntwice %q", once, twice)
	}
}

func TestFilterNumericCoercionDropsRows(t *testing.T) {
	input := "name,score\nAlice,9\nBroken,n/a\nCara,10\n"
	got, _ := runEngine(t, Config{
		Filters: []filter.Predicate{mustFilter(t, "score>5")},
	}, input)

	want := "name,score\nAlice,9\nCara,10\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFilterGlob(t *testing.T) {
	got, _ := runEngine(t, Config{
		Filters: []filter.Predicate{mustFilter(t, "dept~*s")},
	}, scoresCSV)

	want := "name,score,dept\nBob,8,Sales\nDan,7,Ops\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestQuotedFieldsSurviveRoundTrip(t *testing.T) {
	input := "name,note\nAlice,\"likes, commas\"\nBob,plain\n"
	got, _ := runEngine(t, Config{Select: []string{"name", "note"}}, input)

	want := "name,note\nAlice,\"likes, commas\"\nBob,plain\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBareQuoteInUnquotedFieldSurvives(t *testing.T) {
	input := "a,b\nx\"y,z\n"
	got, _ := runEngine(t, Config{Select: []string{"a", "b"}}, input)

	want := "a,b\nx\"y,z\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEscapedQuotesReescapedOnOutput(t *testing.T) {
	input := "a\n\"say \"\"hi\"\"\"\n"
	got, _ := runEngine(t, Config{Select: []string{"a"}}, input)

	want := "a\n\"say \"\"hi\"\"\"\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEmptyInput(t *testing.T) {
	for _, cfg := range []Config{
		{},
		{Select: []string{"name"}},
		{Aggs: []AggSpec{{Func: "count", Field: "x"}}},
		{Table: true},
	} {
		got, _ := runEngine(t, cfg, "")
		if got != "" {
			t.Fatalf("%+v: empty input must produce no output, got %q", cfg, got)
		}
	}
}

func TestHeaderOnlyInput(t *testing.T) {
	got, _ := runEngine(t, Config{Select: []string{"name"}}, "name,score\n")
	if got != "name\n" {
		t.Fatalf("got %q, want header only", got)
	}

	got, _ = runEngine(t, Config{Select: []string{"name"}, NoHeader: true}, "name,score\n")
	if got != "" {
		t.Fatalf("got %q, want no output with --no-header", got)
	}
}

func TestRowsShorterAndLongerThanHeader(t *testing.T) {
	input := "a,b,c\n1\n1,2,3,4\n"
	got, _ := runEngine(t, Config{Select: []string{"c", "a"}}, input)

	want := "c,a\n,1\n3,1\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestUnknownSelectorFails(t *testing.T) {
	err := runEngineErr(t, Config{Select: []string{"nope"}}, scoresCSV)
	if err == nil || !strings.Contains(err.Error(), `unknown column "nope"`) {
		t.Fatalf("expected unknown column failure, got %v", err)
	}

	err = runEngineErr(t, Config{Top: "nope"}, scoresCSV)
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("expected top binding failure, got %v", err)
	}

	err = runEngineErr(t, Config{Aggs: []AggSpec{{Func: "sum", Field: "nope"}}}, scoresCSV)
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("expected agg binding failure, got %v", err)
	}
}

func TestParseFailureReportsLineNumber(t *testing.T) {
	input := "name\nok\n\"broken\n"
	err := runEngineErr(t, Config{Select: []string{"name"}}, input)
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected line 3 in error, got %v", err)
	}
}

func TestTopDefaultsToTenRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("v\n")
	for i := 0; i < 25; i++ {
		b.WriteByte(byte('a' + i))
		b.WriteByte('\n')
	}
	got, _ := runEngine(t, Config{Top: "v"}, b.String())

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 11 {
		t.Fatalf("got %d lines, want header + 10 rows", len(lines))
	}
}

// brokenReader yields its content, then a read error instead of EOF.
type brokenReader struct {
	data []byte
	pos  int
}

func (r *brokenReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, errReadFailed
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

var errReadFailed = errors.New("synthetic read failure")

func TestMidStreamReadErrorKeepsOutput(t *testing.T) {
	in := &brokenReader{data: []byte("name,score\nAlice,9\nBob,8\n")}
	var out, errw bytes.Buffer
	cfg := Config{Select: []string{"name"}, Head: -1}
	if err := Run(cfg, in, &out, &errw); err != nil {
		t.Fatalf("read failure must not surface as an error: %v", err)
	}
	want := "name\nAlice\nBob\n"
	if out.String() != want {
		t.Fatalf("got %q, want %q", out.String(), want)
	}
}

func TestOverlongDataLineIsFatal(t *testing.T) {
	input := "name\nok\n" + strings.Repeat("x", 1<<20+1) + "\n"
	err := runEngineErr(t, Config{Select: []string{"name"}}, input)
	if err == nil || !strings.Contains(err.Error(), "1 MiB") {
		t.Fatalf("expected line-too-long failure, got %v", err)
	}
}

func TestAggregationWithTable(t *testing.T) {
	got, _ := runEngine(t, Config{
		Aggs:  []AggSpec{{Func: "sum", Field: "score"}, {Func: "count", Field: "name"}},
		Table: true,
	}, scoresCSV)

	want := "sum(score) | count(name)\n" +
		"-----------+------------\n" +
		"34         | 4          \n"
	if got != want {
		t.Fatalf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestSampleWithTable(t *testing.T) {
	got, _ := runEngine(t, Config{SampleN: 1, Table: true, Select: []string{"name"}}, scoresCSV)

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + separator + 1 row", len(lines))
	}
	if lines[0] != "name " && lines[0] != "name" {
		t.Fatalf("unexpected table header %q", lines[0])
	}
}

func TestValidateRejectsIncompatibleOptions(t *testing.T) {
	bad := []Config{
		{Aggs: []AggSpec{{Func: "sum", Field: "x"}}, Top: "x", Head: -1},
		{Aggs: []AggSpec{{Func: "sum", Field: "x"}}, Head: 5},
		{SampleN: 5, Top: "x", Head: -1},
		{SampleN: 5, Aggs: []AggSpec{{Func: "sum", Field: "x"}}, Head: -1},
		{SampleN: 5, Head: 3},
		{SampleN: -1, Head: -1},
		{Top: "x", Head: MaxTopLimit + 1},
	}
	for _, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("%+v: expected validation error", cfg)
		}
	}

	good := []Config{
		{Head: -1},
		{Top: "x", Head: MaxTopLimit},
		{SampleN: 5, Head: -1, Select: []string{"a"}},
		{Aggs: []AggSpec{{Func: "sum", Field: "x"}}, Head: -1, Table: true},
	}
	for _, cfg := range good {
		if err := cfg.Validate(); err != nil {
			t.Errorf("%+v: unexpected validation error %v", cfg, err)
		}
	}
}
