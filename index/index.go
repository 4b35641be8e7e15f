package index

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// postings maps a key to the ascending offsets of the rows holding it.
type postings map[string][]int64

// Index is an immutable exact-match index over one primary column and any
// number of secondary columns.
type Index struct {
	meta     Metadata
	columns  []string // columns[0] is the primary column
	maps     []postings
	byColumn map[string]int
}

func newIndex(meta Metadata, columns []string, maps []postings) *Index {
	ix := &Index{
		meta:     meta,
		columns:  columns,
		maps:     maps,
		byColumn: make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		ix.byColumn[c] = i
	}
	return ix
}

// Metadata returns the source metadata recorded at build time.
func (ix *Index) Metadata() Metadata { return ix.meta }

// Column returns the primary key column.
func (ix *Index) Column() string { return ix.columns[0] }

// SecondaryColumns returns the secondary columns in build order.
func (ix *Index) SecondaryColumns() []string {
	return slices.Clone(ix.columns[1:])
}

// Columns returns every indexed column, primary first.
func (ix *Index) Columns() []string {
	return slices.Clone(ix.columns)
}

// Has reports whether column is indexed.
func (ix *Index) Has(column string) bool {
	_, ok := ix.byColumn[column]
	return ok
}

// Verify checks the index against the source file at path.
func (ix *Index) Verify(path string) error {
	return ix.meta.Verify(path)
}

// Keys returns the number of distinct keys of column, or -1 if the column
// is not indexed.
func (ix *Index) Keys(column string) int {
	i, ok := ix.byColumn[column]
	if !ok {
		return -1
	}
	return len(ix.maps[i])
}

// Lookup returns the offsets of rows whose primary key equals key, in file
// order. The returned slice must not be modified.
func (ix *Index) Lookup(key string) []int64 {
	return slices.Clip(ix.maps[0][key])
}

// LookupSecondary returns the offsets of rows whose column equals key.
func (ix *Index) LookupSecondary(column, key string) ([]int64, error) {
	i, ok := ix.byColumn[column]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotIndexed, column)
	}
	return slices.Clip(ix.maps[i][key]), nil
}

// LookupAny returns the sorted, de-duplicated offsets of rows whose column
// equals any of keys.
func (ix *Index) LookupAny(column string, keys []string) ([]int64, error) {
	i, ok := ix.byColumn[column]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotIndexed, column)
	}

	switch len(keys) {
	case 0:
		return nil, nil
	case 1:
		return slices.Clone(ix.maps[i][keys[0]]), nil
	}

	bm := roaring64.New()
	for _, k := range keys {
		for _, off := range ix.maps[i][k] {
			bm.Add(uint64(off))
		}
	}

	out := make([]int64, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, int64(it.Next()))
	}
	return out, nil
}

// Constraint restricts column to one of Values.
type Constraint struct {
	Column string
	Values []string
}

// Query returns the sorted offsets of rows satisfying every constraint.
// Constraints are resolved smallest-first and intersected by linear merge.
func (ix *Index) Query(constraints []Constraint) ([]int64, error) {
	if len(constraints) == 0 {
		return nil, nil
	}

	lists := make([][]int64, 0, len(constraints))
	for _, c := range constraints {
		offs, err := ix.LookupAny(c.Column, c.Values)
		if err != nil {
			return nil, err
		}
		if len(offs) == 0 {
			return nil, nil
		}
		lists = append(lists, offs)
	}

	slices.SortFunc(lists, func(a, b []int64) int { return len(a) - len(b) })

	result := lists[0]
	for _, l := range lists[1:] {
		result = Intersect(result, l)
		if len(result) == 0 {
			return nil, nil
		}
	}
	return result, nil
}

// Intersect returns the elements common to two ascending slices.
func Intersect(a, b []int64) []int64 {
	out := make([]int64, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
