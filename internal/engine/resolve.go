package engine

import (
	"fmt"
	"strconv"
)

// Resolve maps a selector to a zero-based column index. A selector that
// parses as a positive integer is a 1-based index and must fall inside the
// header; anything else matches the first byte-equal header name.
func Resolve(header []string, selector string) (int, error) {
	if n, err := strconv.Atoi(selector); err == nil && n > 0 {
		if n > len(header) {
			return 0, fmt.Errorf("column index %d out of range 1..%d", n, len(header))
		}
		return n - 1, nil
	}
	for i, name := range header {
		if name == selector {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown column %q", selector)
}
