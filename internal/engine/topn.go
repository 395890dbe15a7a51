package engine

import (
	"bytes"
	"sort"
)

// topEntry is a deep-copied candidate row plus its extracted key.
type topEntry struct {
	fields [][]byte
	quoted []bool
	key    []byte
	num    float64
	isNum  bool
	seq    int
}

// topN keeps the limit highest-keyed rows seen so far. Under capacity every
// row is copied in; at capacity the smallest entry is located by linear scan
// and replaced only by a strictly greater key, so ties beyond the cutoff
// resolve in input order. For limits this size, the scan beats a heap on
// cache locality.
type topN struct {
	limit   int
	keyIdx  int
	entries []topEntry
	seq     int
}

func newTopN(limit, keyIdx int) *topN {
	return &topN{
		limit:   limit,
		keyIdx:  keyIdx,
		entries: make([]topEntry, 0, limit),
	}
}

func (t *topN) offer(fields [][]byte, quoted []bool) {
	if t.limit == 0 {
		return
	}
	var key []byte
	if t.keyIdx < len(fields) {
		key = fields[t.keyIdx]
	}
	num, isNum := parseNum(key)

	if len(t.entries) < t.limit {
		t.entries = append(t.entries, t.retain(fields, quoted, num, isNum))
		return
	}

	min := 0
	for i := 1; i < len(t.entries); i++ {
		if keyCompare(&t.entries[i], &t.entries[min]) < 0 {
			min = i
		}
	}
	incoming := topEntry{key: key, num: num, isNum: isNum}
	if keyCompare(&incoming, &t.entries[min]) > 0 {
		t.entries[min] = t.retain(fields, quoted, num, isNum)
	}
}

// retain deep-copies the row; the stored key aliases the copy, not the
// parser's scratch.
func (t *topN) retain(fields [][]byte, quoted []bool, num float64, isNum bool) topEntry {
	copied, mask := copyRow(fields, quoted)
	var key []byte
	if t.keyIdx < len(copied) {
		key = copied[t.keyIdx]
	}
	e := topEntry{
		fields: copied,
		quoted: mask,
		key:    key,
		num:    num,
		isNum:  isNum,
		seq:    t.seq,
	}
	t.seq++
	return e
}

// results sorts descending by key, ties in insertion order, and returns the
// buffer.
func (t *topN) results() []topEntry {
	sort.Slice(t.entries, func(i, j int) bool {
		cmp := keyCompare(&t.entries[i], &t.entries[j])
		if cmp != 0 {
			return cmp > 0
		}
		return t.entries[i].seq < t.entries[j].seq
	})
	return t.entries
}

// keyCompare orders numerically when both keys parse as numbers and by raw
// bytes otherwise. Applied pairwise, so mixed columns are ordered exactly as
// each comparison sees them.
func keyCompare(a, b *topEntry) int {
	if a.isNum && b.isNum {
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	}
	return bytes.Compare(a.key, b.key)
}
