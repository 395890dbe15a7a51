package engine

import (
	"fmt"
	"strings"

	"github.com/kolonlabs/kolon/internal/filter"
)

// MaxTopLimit caps the ranking buffer, enforced at the argument phase.
const MaxTopLimit = 10000

// defaultLimit is the row cap used by ranking when --head is absent.
const defaultLimit = 10

// Config is the fully-lexed invocation. The argument layer builds it; Validate
// rejects incompatible combinations before any input is read.
type Config struct {
	Select   []string // projection selectors in output order; nil keeps all columns
	Filters  []filter.Predicate
	Head     int    // row cap; -1 when absent
	Top      string // ranking key selector; empty when absent
	SampleN  int    // reservoir size; 0 when absent
	Aggs     []AggSpec
	Table    bool
	NoHeader bool
}

// AggSpec names one aggregation: a function and the selector it applies to.
type AggSpec struct {
	Func  string
	Field string
}

var aggFuncs = map[string]bool{
	"sum":   true,
	"min":   true,
	"max":   true,
	"count": true,
	"mean":  true,
}

// ParseAggSpec splits a func:field argument. The field may itself contain
// colons; only the first one separates.
func ParseAggSpec(arg string) (AggSpec, error) {
	fn, field, ok := strings.Cut(arg, ":")
	if !ok || field == "" {
		return AggSpec{}, fmt.Errorf("invalid aggregation %q: expected func:field", arg)
	}
	if !aggFuncs[fn] {
		return AggSpec{}, fmt.Errorf("invalid aggregation %q: unknown function %q", arg, fn)
	}
	return AggSpec{Func: fn, Field: field}, nil
}

// Validate enforces the mutual-exclusion matrix and the ranking cap.
func (c *Config) Validate() error {
	if len(c.Aggs) > 0 {
		if c.Top != "" {
			return fmt.Errorf("--agg cannot be combined with --top")
		}
		if c.Head >= 0 {
			return fmt.Errorf("--agg cannot be combined with --head")
		}
	}
	if c.SampleN != 0 {
		if c.SampleN < 1 {
			return fmt.Errorf("--sample requires a positive count")
		}
		if c.Top != "" {
			return fmt.Errorf("--sample cannot be combined with --top")
		}
		if len(c.Aggs) > 0 {
			return fmt.Errorf("--sample cannot be combined with --agg")
		}
		if c.Head >= 0 {
			return fmt.Errorf("--sample cannot be combined with --head")
		}
	}
	if c.Top != "" && c.limit() > MaxTopLimit {
		return fmt.Errorf("--top limit %d exceeds maximum %d", c.limit(), MaxTopLimit)
	}
	return nil
}

// limit is the ranking buffer size: --head when given, 10 otherwise.
func (c *Config) limit() int {
	if c.Head >= 0 {
		return c.Head
	}
	return defaultLimit
}

// passthrough reports whether no transform was requested, enabling the
// verbatim line-copy path.
func (c *Config) passthrough() bool {
	return c.Select == nil &&
		len(c.Filters) == 0 &&
		c.Top == "" &&
		c.SampleN == 0 &&
		len(c.Aggs) == 0 &&
		!c.Table
}
