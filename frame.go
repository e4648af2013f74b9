package framestore

import (
	"fmt"
	"math"
	"time"
)

// NaTNanos marks a missing datetime64/timedelta64 value.
const NaTNanos = math.MinInt64

type (
	// Array is one typed column (or index) of values. Exactly one of the
	// value slices is populated, matching Kind.
	Array struct {
		Kind ColumnKind

		Ints      []int64 // integer, datetime64 (ns), timedelta64 (ns), date (days)
		Floats    []float64
		Bools     []bool
		Strs      []string
		Complexes []complex128
		Objs      []any
		Cat       *Categorical

		// TZ is the IANA zone name for datetime64 values, empty for naive.
		TZ string
	}

	// Categorical holds integer codes against an ordered list of category
	// labels. Code -1 means missing.
	Categorical struct {
		Codes      []int64
		Categories *Array
		Ordered    bool
	}

	// Frame is the two-dimensional labeled table value the store consumes
	// and produces: an ordered row index plus ordered named typed columns.
	// It deliberately has none of the analytical surface of a full
	// dataframe.
	Frame struct {
		Index     Array
		IndexName string
		Columns   []string
		Cols      []Array
	}
)

func IntArray(vals []int64) Array { return Array{Kind: KindInteger, Ints: vals} }

func FloatArray(vals []float64) Array { return Array{Kind: KindFloat, Floats: vals} }

func BoolArray(vals []bool) Array { return Array{Kind: KindBool, Bools: vals} }

func StringArray(vals []string) Array { return Array{Kind: KindString, Strs: vals} }

func DatetimeArray(vals []time.Time, tz string) Array {
	ns := make([]int64, len(vals))
	for i, v := range vals {
		if v.IsZero() {
			ns[i] = NaTNanos
			continue
		}
		ns[i] = v.UTC().UnixNano()
	}
	return Array{Kind: KindDatetime64, Ints: ns, TZ: tz}
}

// DateArray stores calendar dates as whole days since the epoch.
func DateArray(vals []time.Time) Array {
	days := make([]int64, len(vals))
	for i, v := range vals {
		days[i] = v.UTC().Unix() / 86400
	}
	return Array{Kind: KindDate, Ints: days}
}

func TimedeltaArray(vals []time.Duration) Array {
	ns := make([]int64, len(vals))
	for i, v := range vals {
		ns[i] = int64(v)
	}
	return Array{Kind: KindTimedelta64, Ints: ns}
}

func CategoricalArray(codes []int64, categories Array, ordered bool) Array {
	return Array{Kind: KindCategory, Cat: &Categorical{Codes: codes, Categories: &categories, Ordered: ordered}}
}

func ObjectArray(vals []any) Array { return Array{Kind: KindObject, Objs: vals} }

func (a *Array) Len() int {
	switch a.Kind {
	case KindInteger, KindDatetime64, KindTimedelta64, KindDate:
		return len(a.Ints)
	case KindFloat:
		return len(a.Floats)
	case KindBool:
		return len(a.Bools)
	case KindString:
		return len(a.Strs)
	case KindComplex:
		return len(a.Complexes)
	case KindObject:
		return len(a.Objs)
	case KindCategory:
		if a.Cat == nil {
			return 0
		}
		return len(a.Cat.Codes)
	}
	return 0
}

// ValueAt returns the raw comparable value at i: int64 for
// integer/datetime/timedelta/date, float64, bool, string, complex128, or
// the decoded category label. Missing values return nil.
func (a *Array) ValueAt(i int) any {
	switch a.Kind {
	case KindInteger, KindDate:
		return a.Ints[i]
	case KindDatetime64, KindTimedelta64:
		if a.Ints[i] == NaTNanos {
			return nil
		}
		return a.Ints[i]
	case KindFloat:
		if math.IsNaN(a.Floats[i]) {
			return nil
		}
		return a.Floats[i]
	case KindBool:
		return a.Bools[i]
	case KindString:
		return a.Strs[i]
	case KindComplex:
		return a.Complexes[i]
	case KindObject:
		return a.Objs[i]
	case KindCategory:
		code := a.Cat.Codes[i]
		if code < 0 || int(code) >= a.Cat.Categories.Len() {
			return nil
		}
		return a.Cat.Categories.ValueAt(int(code))
	}
	return nil
}

// normValue coerces a user-supplied value to the comparable form ValueAt
// produces for this kind. Returns ok=false if the value cannot represent
// this kind.
func normValue(kind ColumnKind, v any) (any, bool) {
	switch kind {
	case KindInteger:
		switch x := v.(type) {
		case int:
			return int64(x), true
		case int32:
			return int64(x), true
		case int64:
			return x, true
		case float64:
			return int64(x), true
		}
	case KindDate:
		switch x := v.(type) {
		case time.Time:
			return x.UTC().Unix() / 86400, true
		case int:
			return int64(x), true
		case int64:
			return x, true
		}
	case KindDatetime64:
		switch x := v.(type) {
		case time.Time:
			return x.UTC().UnixNano(), true
		case int64:
			return x, true
		case int:
			return int64(x), true
		}
	case KindTimedelta64:
		switch x := v.(type) {
		case time.Duration:
			return int64(x), true
		case int64:
			return x, true
		case int:
			return int64(x), true
		}
	case KindFloat:
		switch x := v.(type) {
		case float64:
			return x, true
		case float32:
			return float64(x), true
		case int:
			return float64(x), true
		case int64:
			return float64(x), true
		}
	case KindBool:
		if x, ok := v.(bool); ok {
			return x, true
		}
	case KindString, KindCategory:
		if x, ok := v.(string); ok {
			return x, true
		}
	case KindComplex:
		if x, ok := v.(complex128); ok {
			return x, true
		}
	case KindObject:
		return v, true
	}
	return nil, false
}

// Isin returns a mask of positions whose value is in vals.
func (a *Array) Isin(vals []any) []bool {
	set := make(map[any]struct{}, len(vals))
	for _, v := range vals {
		if nv, ok := normValue(a.Kind, v); ok {
			set[nv] = struct{}{}
		}
	}
	mask := make([]bool, a.Len())
	for i := range mask {
		v := a.ValueAt(i)
		if v == nil {
			continue
		}
		if _, ok := set[v]; ok {
			mask[i] = true
		}
	}
	return mask
}

// Take returns a new Array with the values at the given positions.
func (a *Array) Take(idx []int64) Array {
	out := Array{Kind: a.Kind, TZ: a.TZ}
	switch a.Kind {
	case KindInteger, KindDatetime64, KindTimedelta64, KindDate:
		out.Ints = make([]int64, len(idx))
		for i, j := range idx {
			out.Ints[i] = a.Ints[j]
		}
	case KindFloat:
		out.Floats = make([]float64, len(idx))
		for i, j := range idx {
			out.Floats[i] = a.Floats[j]
		}
	case KindBool:
		out.Bools = make([]bool, len(idx))
		for i, j := range idx {
			out.Bools[i] = a.Bools[j]
		}
	case KindString:
		out.Strs = make([]string, len(idx))
		for i, j := range idx {
			out.Strs[i] = a.Strs[j]
		}
	case KindComplex:
		out.Complexes = make([]complex128, len(idx))
		for i, j := range idx {
			out.Complexes[i] = a.Complexes[j]
		}
	case KindObject:
		out.Objs = make([]any, len(idx))
		for i, j := range idx {
			out.Objs[i] = a.Objs[j]
		}
	case KindCategory:
		codes := make([]int64, len(idx))
		for i, j := range idx {
			codes[i] = a.Cat.Codes[j]
		}
		out.Cat = &Categorical{Codes: codes, Categories: a.Cat.Categories, Ordered: a.Cat.Ordered}
	}
	return out
}

func (a *Array) Equal(b *Array) bool {
	if a.Kind != b.Kind || a.Len() != b.Len() || a.TZ != b.TZ {
		return false
	}
	if a.Kind == KindCategory {
		if a.Cat.Ordered != b.Cat.Ordered || !a.Cat.Categories.Equal(b.Cat.Categories) {
			return false
		}
		for i := range a.Cat.Codes {
			if a.Cat.Codes[i] != b.Cat.Codes[i] {
				return false
			}
		}
		return true
	}
	for i := 0; i < a.Len(); i++ {
		if a.Kind == KindFloat {
			// NaN compares equal to NaN here
			if math.IsNaN(a.Floats[i]) && math.IsNaN(b.Floats[i]) {
				continue
			}
			if a.Floats[i] != b.Floats[i] {
				return false
			}
			continue
		}
		if a.Kind == KindObject {
			if fmt.Sprintf("%v", a.Objs[i]) != fmt.Sprintf("%v", b.Objs[i]) {
				return false
			}
			continue
		}
		if a.ValueAt(i) != b.ValueAt(i) {
			return false
		}
	}
	return true
}

// NewFrame builds a frame, validating that all columns share the index
// length.
func NewFrame(index Array, indexName string, columns []string, cols []Array) (*Frame, error) {
	if len(columns) != len(cols) {
		return nil, fmt.Errorf("have %d column names but %d columns", len(columns), len(cols))
	}
	f := &Frame{Index: index, IndexName: indexName, Columns: columns, Cols: cols}
	for i, c := range cols {
		if c.Len() != index.Len() {
			return nil, fmt.Errorf("column %q has %d rows, index has %d", columns[i], c.Len(), index.Len())
		}
	}
	return f, nil
}

func (f *Frame) NRows() int {
	return f.Index.Len()
}

func (f *Frame) Col(name string) (*Array, bool) {
	for i, c := range f.Columns {
		if c == name {
			return &f.Cols[i], true
		}
	}
	return nil, false
}

// SelectColumns returns a frame restricted to the named columns, in the
// given order. Unknown names error.
func (f *Frame) SelectColumns(names []string) (*Frame, error) {
	out := &Frame{Index: f.Index, IndexName: f.IndexName}
	for _, name := range names {
		col, ok := f.Col(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		out.Columns = append(out.Columns, name)
		out.Cols = append(out.Cols, *col)
	}
	return out, nil
}

// ReindexColumns reorders columns to the given order. Every name must be
// present; this only permutes, it never drops or adds.
func (f *Frame) ReindexColumns(order []string) (*Frame, error) {
	if len(order) != len(f.Columns) {
		return nil, fmt.Errorf("reindex order has %d names, frame has %d columns", len(order), len(f.Columns))
	}
	return f.SelectColumns(order)
}

// TakeRows returns a frame with the rows at the given positions.
func (f *Frame) TakeRows(idx []int64) *Frame {
	out := &Frame{Index: f.Index.Take(idx), IndexName: f.IndexName, Columns: f.Columns}
	out.Cols = make([]Array, len(f.Cols))
	for i := range f.Cols {
		out.Cols[i] = f.Cols[i].Take(idx)
	}
	return out
}

// MaskRows keeps rows where mask is true.
func (f *Frame) MaskRows(mask []bool) *Frame {
	var idx []int64
	for i, keep := range mask {
		if keep {
			idx = append(idx, int64(i))
		}
	}
	return f.TakeRows(idx)
}

func (f *Frame) Equal(other *Frame) bool {
	if f.NRows() != other.NRows() || len(f.Columns) != len(other.Columns) {
		return false
	}
	if f.IndexName != other.IndexName || !f.Index.Equal(&other.Index) {
		return false
	}
	for i := range f.Columns {
		if f.Columns[i] != other.Columns[i] || !f.Cols[i].Equal(&other.Cols[i]) {
			return false
		}
	}
	return true
}

type block struct {
	kind  ColumnKind
	names []string
}

// groupBlocks groups columns into homogeneous-kind blocks, kinds ordered
// by first appearance. Non-blockable kinds get one block per column.
func groupBlocks(f *Frame, exclude map[string]bool) []block {
	var blocks []block
	byKind := make(map[ColumnKind]int)
	for i, name := range f.Columns {
		if exclude[name] {
			continue
		}
		kind := f.Cols[i].Kind
		if !kind.blockable() {
			blocks = append(blocks, block{kind: kind, names: []string{name}})
			continue
		}
		pos, seen := byKind[kind]
		if !seen {
			byKind[kind] = len(blocks)
			blocks = append(blocks, block{kind: kind, names: []string{name}})
			continue
		}
		blocks[pos].names = append(blocks[pos].names, name)
	}
	return blocks
}
