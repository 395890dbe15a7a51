package engine

import (
	"crypto/rand"
	"encoding/binary"
	"math"
)

// reservoir implements Algorithm R: the first n passing rows fill the buffer;
// row i (0-based) thereafter replaces slot j with probability n/(i+1), where j
// is drawn uniformly from [0, i]. Output order is reservoir order.
type reservoir struct {
	n     int
	rows  [][][]byte
	masks [][]bool
	seen  uint64
}

func newReservoir(n int) *reservoir {
	return &reservoir{
		n:     n,
		rows:  make([][][]byte, 0, n),
		masks: make([][]bool, 0, n),
	}
}

func (r *reservoir) offer(fields [][]byte, quoted []bool) {
	if len(r.rows) < r.n {
		row, mask := copyRow(fields, quoted)
		r.rows = append(r.rows, row)
		r.masks = append(r.masks, mask)
		r.seen++
		return
	}
	j := randUint64n(r.seen + 1)
	r.seen++
	if j < uint64(r.n) {
		row, mask := copyRow(fields, quoted)
		r.rows[j] = row
		r.masks[j] = mask
	}
}

// randUint64n draws a uniform integer in [0, n) from the system CSPRNG,
// rejection-sampling away the modulo bias.
func randUint64n(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	max := math.MaxUint64 - math.MaxUint64%n
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			panic(err)
		}
		v := binary.LittleEndian.Uint64(buf[:])
		if v < max {
			return v % n
		}
	}
}
