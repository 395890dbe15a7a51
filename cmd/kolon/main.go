// Command kolon is a streaming processor for comma-separated data on standard
// input: column projection, row filtering, ranking, sampling, aggregation,
// and aligned table output, in constant memory.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kolonlabs/kolon/internal/engine"
	"github.com/kolonlabs/kolon/internal/filter"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type flags struct {
	selectCols string
	filters    []string
	head       string
	top        string
	sample     int
	aggs       []string
	table      bool
	noHeader   bool
	version    bool
}

func newRootCmd() *cobra.Command {
	var fl flags

	cmd := &cobra.Command{
		Use:   "kolon",
		Short: "Slice, filter and summarize CSV streams",
		Long: `kolon reads comma-separated data from standard input and writes the
processed result to standard output. It streams: files of many gigabytes
pass through in constant memory.

Columns are addressed by header name or 1-based index. Filters are ANDed
and compare numerically whenever both sides parse as numbers; the ~
operator matches *-wildcard patterns.`,
		Example: `  kolon -s name,total < orders.csv
  kolon -f "total > 100" -f "country = UK" < orders.csv
  kolon --top total -n 5 < orders.csv
  kolon --agg sum:total --agg count:order_id < orders.csv
  kolon --sample 100 < orders.csv
  kolon -t -n 20 < orders.csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fl.version {
				fmt.Fprintf(cmd.OutOrStdout(), "kolon %s (commit: %s, built: %s)\n", version, commit, date)
				return nil
			}
			cfg, err := buildConfig(cmd, &fl)
			if err != nil {
				return err
			}
			return engine.Run(cfg, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	f := cmd.Flags()
	f.StringVarP(&fl.selectCols, "select", "s", "", "comma-separated columns to keep, by name or 1-based index")
	f.StringArrayVarP(&fl.filters, "filter", "f", nil, `row filter "field op value"; repeatable, ANDed`)
	f.StringVarP(&fl.head, "head", "n", "", "limit output rows (10 when given without a value)")
	f.Lookup("head").NoOptDefVal = "10"
	f.StringVar(&fl.top, "top", "", "rank rows descending by this column")
	f.IntVar(&fl.sample, "sample", 0, "emit a uniform random sample of N rows")
	f.StringArrayVar(&fl.aggs, "agg", nil, "aggregate func:field with func one of sum, min, max, count, mean; repeatable")
	f.BoolVarP(&fl.table, "table", "t", false, "aligned table output")
	f.BoolVar(&fl.noHeader, "no-header", false, "omit the header row from output")
	f.BoolVar(&fl.version, "version", false, "print version and exit")
	return cmd
}

// buildConfig lexes the raw flag values into an engine.Config and validates
// the combination before any input is read.
func buildConfig(cmd *cobra.Command, fl *flags) (engine.Config, error) {
	cfg := engine.Config{
		Head:     -1,
		Top:      fl.top,
		Table:    fl.table,
		NoHeader: fl.noHeader,
	}

	if fl.selectCols != "" {
		cfg.Select = strings.Split(fl.selectCols, ",")
	}
	for _, expr := range fl.filters {
		p, err := filter.Parse(expr)
		if err != nil {
			return cfg, err
		}
		cfg.Filters = append(cfg.Filters, p)
	}
	if fl.head != "" {
		n, err := strconv.Atoi(fl.head)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("invalid --head value %q", fl.head)
		}
		cfg.Head = n
	}
	if cmd.Flags().Changed("sample") {
		if fl.sample < 1 {
			return cfg, fmt.Errorf("--sample requires a positive count")
		}
		cfg.SampleN = fl.sample
	}
	for _, arg := range fl.aggs {
		spec, err := engine.ParseAggSpec(arg)
		if err != nil {
			return cfg, err
		}
		cfg.Aggs = append(cfg.Aggs, spec)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// normalizeHeadArgs rewrites "-n 4" and "--head 4" into "--head=4". pflag's
// NoOptDefVal handling only consumes attached values, but --head takes an
// optional count and users write it space-separated.
func normalizeHeadArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if (a == "-n" || a == "--head") && i+1 < len(args) && isCount(args[i+1]) {
			out = append(out, "--head="+args[i+1])
			i++
			continue
		}
		out = append(out, a)
	}
	return out
}

func isCount(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func main() {
	cmd := newRootCmd()
	cmd.SetArgs(normalizeHeadArgs(os.Args[1:]))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kolon:", err)
		os.Exit(1)
	}
}
