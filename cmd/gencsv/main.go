// Command gencsv writes a deterministic orders-shaped CSV fixture for
// benchmarks and large-input testing. The data deliberately exercises the
// awkward cases: quoted fields with embedded commas and escaped quotes,
// multi-byte city names, and numeric columns with a controlled share of junk.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	rows    = flag.Int("rows", 1_000_000, "number of rows to generate")
	outPath = flag.String("out", "fixtures/orders_1m.csv", "output CSV path")
	seed    = flag.Int64("seed", 42, "random seed")
	dirty   = flag.Float64("dirty", 0, "fraction of rows with a non-numeric total")
)

var cities = []string{
	"London", "Köln", "München", "São Paulo", "Tōkyō",
	"Zürich", "Kraków", "İstanbul", "Montréal", "Malmö",
}

var statuses = []string{"pending", "processing", "completed", "cancelled", "refunded"}

var notes = []string{
	"",
	"repeat customer",
	`priority, ship first`,
	`marked "fragile"`,
	`gift, note says "thanks, again"`,
}

func main() {
	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	file, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	w := bufio.NewWriterSize(file, 1<<20)
	rng := rand.New(rand.NewSource(*seed))

	fmt.Fprintln(w, "order_id,user_id,city,quantity,total,status,note")

	for i := 0; i < *rows; i++ {
		orderID := fmt.Sprintf("ORD%09d", i+1)
		userID := fmt.Sprintf("USR%06d", rng.Intn(200_000)+1)
		city := cities[rng.Intn(len(cities))]
		quantity := rng.Intn(5) + 1
		total := fmt.Sprintf("%d.%02d", rng.Intn(900)+10, rng.Intn(100))
		if *dirty > 0 && rng.Float64() < *dirty {
			total = "n/a"
		}
		status := statuses[rng.Intn(len(statuses))]
		note := notes[rng.Intn(len(notes))]

		fmt.Fprintf(w, "%s,%s,%s,%d,%s,%s,%s\n",
			orderID, userID, city, quantity, total, status, quoteField(note))

		if (i+1)%100_000 == 0 {
			if err := w.Flush(); err != nil {
				fmt.Fprintf(os.Stderr, "flush rows: %v\n", err)
				os.Exit(1)
			}
		}
	}

	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "final flush: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "wrote %d rows to %s\n", *rows, *outPath)
}

// quoteField applies the minimal CSV quoting rule.
func quoteField(s string) string {
	needs := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ',', '"', '\n', '\r':
			needs = true
		}
	}
	if !needs {
		return s
	}
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, s[i])
	}
	return string(append(out, '"'))
}
