package engine

import (
	"fmt"
	"io"
	"strconv"
)

// aggregator accumulates one streaming aggregate. count counts non-empty
// fields; the numeric functions require every observed value to parse as a
// number — the first that does not sets the taint bit, which suppresses the
// output value while the scan continues for the remaining aggregators.
type aggregator struct {
	spec    AggSpec
	index   int
	total   float64
	extreme float64
	seeded  bool
	count   int64
	tainted bool
}

func newAggregator(spec AggSpec, index int) *aggregator {
	return &aggregator{spec: spec, index: index}
}

func (a *aggregator) observe(fields [][]byte) {
	var field []byte
	if a.index < len(fields) {
		field = fields[a.index]
	}

	if a.spec.Func == "count" {
		if len(field) > 0 {
			a.count++
		}
		return
	}

	val, ok := parseNum(field)
	if !ok {
		a.tainted = true
		return
	}
	switch a.spec.Func {
	case "sum", "mean":
		a.total += val
		a.count++
	case "min":
		if !a.seeded || val < a.extreme {
			a.extreme = val
			a.seeded = true
		}
	case "max":
		if !a.seeded || val > a.extreme {
			a.extreme = val
			a.seeded = true
		}
	}
}

// label is the output column header, "<func>(<field>)".
func (a *aggregator) label() string {
	return fmt.Sprintf("%s(%s)", a.spec.Func, a.spec.Field)
}

// value renders the result. A tainted numeric aggregator yields the empty
// string; the caller reports the warning.
func (a *aggregator) value() string {
	if a.spec.Func == "count" {
		return strconv.FormatInt(a.count, 10)
	}
	if a.tainted {
		return ""
	}
	switch a.spec.Func {
	case "sum":
		return formatNum(a.total)
	case "mean":
		if a.count == 0 {
			return "0"
		}
		return formatNum(a.total / float64(a.count))
	case "min", "max":
		if !a.seeded {
			return ""
		}
		return formatNum(a.extreme)
	}
	return ""
}

// warn emits the taint diagnostic for this aggregator, if any.
func (a *aggregator) warn(errw io.Writer) {
	if a.tainted {
		fmt.Fprintf(errw, "warning: non-numeric values in %s, value suppressed\n", a.label())
	}
}

// formatNum renders a float with the shortest round-tripping decimal form, so
// integral results stay integral.
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
