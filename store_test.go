package framestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danthegoodman1/framestore/utils"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), "w", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := NewFrame(IntArray([]int64{0, 1, 2, 3, 4}), "",
		[]string{"a", "b"},
		[]Array{
			IntArray([]int64{1, 2, 3, 4, 5}),
			StringArray([]string{"x", "y", "x", "y", "x"}),
		})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func appendSample(t *testing.T, s *Store, key string) {
	t.Helper()
	if err := s.Append(context.Background(), key, sampleFrame(t), &PutOptions{DataColumns: []string{"a", "b"}}); err != nil {
		t.Fatal(err)
	}
}

func TestFixedRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	f := sampleFrame(t)

	if err := s.Put(ctx, "df", f, nil); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "df")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(f) {
		t.Fatal("fixed roundtrip mismatch")
	}

	// fixed objects reject where clauses
	_, err = s.Select(ctx, "df", &SelectOptions{Where: "a > 1"})
	if !errors.Is(err, ErrNotTableFormat) {
		t.Fatal("expected not-table error, got", err)
	}
}

func TestTableRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	f := sampleFrame(t)
	appendSample(t, s, "df")

	got, err := s.Select(ctx, "df", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(f) {
		t.Fatal("table roundtrip mismatch")
	}
}

func TestSelectWithCondition(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	got, err := s.Select(ctx, "df", &SelectOptions{Where: "b == 'x'"})
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 3 {
		t.Fatal("expected 3 rows, got", got.NRows())
	}
	if got.Index.Ints[0] != 0 || got.Index.Ints[1] != 2 || got.Index.Ints[2] != 4 {
		t.Fatal("got wrong index:", got.Index.Ints)
	}
	a, _ := got.Col("a")
	if a.Ints[0] != 1 || a.Ints[1] != 3 || a.Ints[2] != 5 {
		t.Fatal("got wrong values:", a.Ints)
	}

	got, err = s.Select(ctx, "df", &SelectOptions{Where: "(a > 1) & (b == 'y')"})
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 2 {
		t.Fatal("expected 2 rows, got", got.NRows())
	}
}

func TestOversizedEqualityFallsBackToFilter(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	vals := make([]string, 40)
	vals[0] = "'x'"
	for i := 1; i < 40; i++ {
		vals[i] = fmt.Sprintf("'zz%d'", i)
	}
	where := fmt.Sprintf("b == [%s]", strings.Join(vals, ", "))

	got, err := s.Select(ctx, "df", &SelectOptions{Where: where})
	if err != nil {
		t.Fatal(err)
	}
	// must match the native path even though it went through a filter
	if got.NRows() != 3 {
		t.Fatal("expected 3 rows, got", got.NRows())
	}
}

func TestColumnsFilterSelect(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	got, err := s.Select(ctx, "df", &SelectOptions{Where: "columns == ['a']"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Columns) != 1 || got.Columns[0] != "a" {
		t.Fatal("got wrong columns:", got.Columns)
	}
	if got.NRows() != 5 {
		t.Fatal("columns filter must not drop rows")
	}
}

func TestSelectColumnsOption(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	got, err := s.Select(ctx, "df", &SelectOptions{Columns: []string{"b"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Columns) != 1 || got.Columns[0] != "b" {
		t.Fatal("got wrong columns:", got.Columns)
	}
}

func TestAppendGrows(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")
	appendSample(t, s, "df")

	got, err := s.Select(ctx, "df", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 10 {
		t.Fatal("expected 10 rows, got", got.NRows())
	}
}

func TestAppendReorderedColumns(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	// same membership in a different order appends cleanly
	f, err := NewFrame(IntArray([]int64{5}), "", []string{"b", "a"},
		[]Array{StringArray([]string{"y"}), IntArray([]int64{6})})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "df", f, &PutOptions{DataColumns: []string{"a", "b"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Select(ctx, "df", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Columns[0] != "a" || got.Columns[1] != "b" {
		t.Fatal("stored column order must win:", got.Columns)
	}
	if got.NRows() != 6 {
		t.Fatal("expected 6 rows, got", got.NRows())
	}
}

func TestAppendDifferentColumnsRejected(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	f, err := NewFrame(IntArray([]int64{5}), "", []string{"a", "zzz"},
		[]Array{IntArray([]int64{6}), IntArray([]int64{7})})
	if err != nil {
		t.Fatal(err)
	}
	err = s.Append(ctx, "df", f, &PutOptions{DataColumns: []string{"a", "b"}})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatal("expected schema mismatch, got", err)
	}
}

func TestStringTooLongLeavesTableIntact(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	f, err := NewFrame(IntArray([]int64{5}), "", []string{"a", "b"},
		[]Array{IntArray([]int64{6}), StringArray([]string{"waytoolong"})})
	if err != nil {
		t.Fatal(err)
	}
	err = s.Append(ctx, "df", f, &PutOptions{DataColumns: []string{"a", "b"}})
	if !errors.Is(err, ErrStringTooLong) {
		t.Fatal("expected string too long, got", err)
	}
	got, err := s.Select(ctx, "df", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 5 {
		t.Fatal("failed append must leave the table unchanged")
	}
}

func TestMinItemsizeAllowsLongerAppends(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	if err := s.Append(ctx, "df", sampleFrame(t), &PutOptions{
		DataColumns: []string{"b"},
		MinItemsize: map[string]int{"b": 20},
	}); err != nil {
		t.Fatal(err)
	}
	f, err := NewFrame(IntArray([]int64{5}), "", []string{"a", "b"},
		[]Array{IntArray([]int64{6}), StringArray([]string{"longer-value"})})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "df", f, &PutOptions{DataColumns: []string{"b"}}); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteRows(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	n, err := s.Remove(ctx, "df", "b == 'y'", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatal("expected 2 rows removed, got", n)
	}
	got, err := s.Select(ctx, "df", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 3 {
		t.Fatal("expected 3 rows, got", got.NRows())
	}
	if got.Index.Ints[0] != 0 || got.Index.Ints[1] != 2 || got.Index.Ints[2] != 4 {
		t.Fatal("got wrong surviving rows:", got.Index.Ints)
	}

	// rows stay densely addressable after the delete
	appendSample(t, s, "df")
	got, err = s.Select(ctx, "df", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 8 {
		t.Fatal("expected 8 rows after re-append, got", got.NRows())
	}
}

func TestRemoveWholeObject(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	n, err := s.Remove(ctx, "df", nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != -1 {
		t.Fatal("whole-object removal must return -1, got", n)
	}
	_, err = s.Select(ctx, "df", nil)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatal("expected key not found, got", err)
	}
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	got, err := s.Select(ctx, "df", &SelectOptions{Start: utils.Ptr(int64(1)), Stop: utils.Ptr(int64(4))})
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 3 {
		t.Fatal("expected 3 rows, got", got.NRows())
	}
	if got.Index.Ints[0] != 1 {
		t.Fatal("got wrong first row:", got.Index.Ints)
	}
}

func TestCoordinatesWhere(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	got, err := s.Select(ctx, "df", &SelectOptions{Where: []int64{0, 2}})
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 2 || got.Index.Ints[1] != 2 {
		t.Fatal("got wrong rows for coordinates")
	}

	_, err = s.Select(ctx, "df", &SelectOptions{Where: []int64{99}})
	if !errors.Is(err, ErrBadCoordinates) {
		t.Fatal("expected bad coordinates, got", err)
	}
}

func TestBoolMaskWhere(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	got, err := s.Select(ctx, "df", &SelectOptions{Where: []bool{true, false, false, false, true}})
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 2 || got.Index.Ints[1] != 4 {
		t.Fatal("got wrong rows for mask")
	}
}

func TestSelectAsCoordinates(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	coords, err := s.SelectAsCoordinates(ctx, "df", "b == 'x'", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(coords) != 3 || coords[0] != 0 || coords[1] != 2 || coords[2] != 4 {
		t.Fatal("got wrong coordinates:", coords)
	}
}

func TestSelectColumn(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	col, err := s.SelectColumn(ctx, "df", "b")
	if err != nil {
		t.Fatal(err)
	}
	if len(col.Strs) != 5 || col.Strs[0] != "x" {
		t.Fatal("got wrong column values:", col.Strs)
	}

	idx, err := s.SelectColumn(ctx, "df", "index")
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Ints) != 5 {
		t.Fatal("got wrong index values:", idx.Ints)
	}
}

func TestSelectColumnNotDataColumn(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	// only b promoted, a lives in a block
	if err := s.Append(ctx, "df", sampleFrame(t), &PutOptions{DataColumns: []string{"b"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SelectColumn(ctx, "df", "a"); err == nil {
		t.Fatal("block-resident column must not be individually readable")
	}
}

func TestIterator(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	it, err := s.SelectIter(ctx, "df", &SelectOptions{Chunksize: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()

	var sizes []int
	var total int
	for it.Next() {
		sizes = append(sizes, it.Frame().NRows())
		total += it.Frame().NRows()
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(sizes) != 3 || sizes[2] != 1 {
		t.Fatal("got wrong chunking:", sizes)
	}
}

func TestIteratorWithWhere(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	it, err := s.SelectIter(ctx, "df", &SelectOptions{Where: "b == 'x'", Chunksize: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()

	var total int
	for it.Next() {
		total += it.Frame().NRows()
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatal("expected 3 rows total, got", total)
	}
}

func TestSelectAsMultiple(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "t1")

	f2, err := NewFrame(IntArray([]int64{0, 1, 2, 3, 4}), "", []string{"c"},
		[]Array{FloatArray([]float64{10, 20, 30, 40, 50})})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "t2", f2, nil); err != nil {
		t.Fatal(err)
	}

	got, err := s.SelectAsMultiple(ctx, []string{"t1", "t2"}, "b == 'x'", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 3 || len(got.Columns) != 3 {
		t.Fatal("got wrong combined frame:", got.Columns, got.NRows())
	}
	c, ok := got.Col("c")
	if !ok || c.Floats[0] != 10 || c.Floats[1] != 30 || c.Floats[2] != 50 {
		t.Fatal("got wrong joined values")
	}
}

func TestDatetimeIndexRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	days := []time.Time{
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	f, err := NewFrame(DatetimeArray(days, "America/New_York"), "ts", []string{"v"},
		[]Array{FloatArray([]float64{1, 2, 3})})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "df", f, nil); err != nil {
		t.Fatal(err)
	}
	got, err := s.Select(ctx, "df", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(f) {
		t.Fatal("datetime roundtrip mismatch")
	}

	got, err = s.Select(ctx, "df", &SelectOptions{Where: "ts > '2020-01-01'"})
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 2 {
		t.Fatal("expected 2 rows, got", got.NRows())
	}
}

func TestCategoricalRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	cats := StringArray([]string{"large", "small"})
	f, err := NewFrame(IntArray([]int64{0, 1, 2, 3}), "", []string{"size"},
		[]Array{CategoricalArray([]int64{0, 1, 0, -1}, cats, false)})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "df", f, &PutOptions{DataColumns: []string{"size"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Select(ctx, "df", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(f) {
		t.Fatal("categorical roundtrip mismatch")
	}

	got, err = s.Select(ctx, "df", &SelectOptions{Where: "size == 'large'"})
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 2 {
		t.Fatal("expected 2 rows, got", got.NRows())
	}
}

func TestObjectColumnRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	f, err := NewFrame(IntArray([]int64{0, 1, 2}), "", []string{"payload"},
		[]Array{ObjectArray([]any{
			map[string]any{"k": "v"},
			[]any{int64(1), "two"},
			nil,
		})})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "df", f, nil); err != nil {
		t.Fatal(err)
	}
	got, err := s.Select(ctx, "df", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(f) {
		t.Fatal("object roundtrip mismatch")
	}
}

func TestBoolRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	f, err := NewFrame(IntArray([]int64{0, 1, 2, 3}), "", []string{"flag"},
		[]Array{BoolArray([]bool{true, false, true, false})})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "df", f, &PutOptions{DataColumns: []string{"flag"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Select(ctx, "df", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(f) {
		t.Fatal("bool roundtrip mismatch")
	}

	got, err = s.Select(ctx, "df", &SelectOptions{Where: "flag == true"})
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 2 || got.Index.Ints[0] != 0 || got.Index.Ints[1] != 2 {
		t.Fatal("got wrong true rows:", got.Index.Ints)
	}
}

func TestTimedeltaRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	// third row is a missing value
	dur := Array{Kind: KindTimedelta64, Ints: []int64{
		int64(time.Second),
		int64(2 * time.Minute),
		NaTNanos,
		int64(3 * time.Hour),
	}}
	f, err := NewFrame(IntArray([]int64{0, 1, 2, 3}), "", []string{"dur"}, []Array{dur})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "df", f, &PutOptions{DataColumns: []string{"dur"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Select(ctx, "df", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(f) {
		t.Fatal("timedelta roundtrip mismatch")
	}
	d, _ := got.Col("dur")
	if d.ValueAt(2) != nil {
		t.Fatal("missing duration must read back as missing")
	}

	// a missing value never satisfies a comparison
	got, err = s.Select(ctx, "df", &SelectOptions{Where: "dur > '1m'"})
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 2 || got.Index.Ints[0] != 1 || got.Index.Ints[1] != 3 {
		t.Fatal("got wrong rows:", got.Index.Ints)
	}
}

func TestDateRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	days := DateArray([]time.Time{
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 4, 0, 0, 0, 0, time.UTC),
	})
	f, err := NewFrame(IntArray([]int64{0, 1, 2, 3}), "", []string{"day"}, []Array{days})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "df", f, &PutOptions{DataColumns: []string{"day"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Select(ctx, "df", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(f) {
		t.Fatal("date roundtrip mismatch")
	}

	// comparison values are converted to the stored day unit
	got, err = s.Select(ctx, "df", &SelectOptions{Where: "day > '2020-01-02'"})
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 2 || got.Index.Ints[0] != 2 || got.Index.Ints[1] != 3 {
		t.Fatal("got wrong rows:", got.Index.Ints)
	}
}

func TestCreateTableIndex(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	if err := s.CreateTableIndex(ctx, "df", nil, 0, ""); err != nil {
		t.Fatal(err)
	}
	// idempotent
	if err := s.CreateTableIndex(ctx, "df", []string{"b"}, 0, "full"); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateTableIndex(ctx, "df", []string{"nope"}, 0, ""); err == nil {
		t.Fatal("unknown column must not be indexable")
	}
}

func TestComplexColumnNotIndexable(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	f, err := NewFrame(IntArray([]int64{0, 1}), "", []string{"cx"},
		[]Array{{Kind: KindComplex, Complexes: []complex128{complex(1, 2), complex(3, 4)}}})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "df", f, &PutOptions{DataColumns: []string{"cx"}}); err != nil {
		t.Fatal(err)
	}
	err = s.CreateTableIndex(ctx, "df", []string{"cx"}, 0, "")
	if !errors.Is(err, ErrComplexIndex) {
		t.Fatal("expected complex index error, got", err)
	}
}

func TestPossibleDataLoss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s1, err := Open(path, "a", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s1.Close()

	_, err = Open(path, "w", nil)
	if !errors.Is(err, ErrPossibleDataLoss) {
		t.Fatal("expected possible data loss, got", err)
	}
}

func TestClosedFile(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	_, err := s.Keys(ctx)
	if !errors.Is(err, ErrClosedFile) {
		t.Fatal("expected closed file error, got", err)
	}
	_, err = s.Select(ctx, "df", nil)
	if !errors.Is(err, ErrClosedFile) {
		t.Fatal("expected closed file error, got", err)
	}
}

func TestReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, "w", nil)
	if err != nil {
		t.Fatal(err)
	}
	appendSample(t, s, "df")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	ro, err := Open(path, "r", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close()

	got, err := ro.Select(ctx, "df", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 5 {
		t.Fatal("expected 5 rows, got", got.NRows())
	}
	err = ro.Put(ctx, "other", sampleFrame(t), nil)
	if !errors.Is(err, ErrReadOnly) {
		t.Fatal("expected read-only error, got", err)
	}
}

func TestReadOnlyRequiresCatalog(t *testing.T) {
	// a read-only handle cannot create the catalog, so a file that never
	// had one must be refused
	path := filepath.Join(t.TempDir(), "empty.db")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, "r", nil); err == nil {
		t.Fatal("read-only open of a file without a catalog must fail")
	}
}

func TestKeysAndWalk(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	for _, key := range []string{"/a", "/grp/x", "/grp/y"} {
		if err := s.Put(ctx, key, sampleFrame(t), nil); err != nil {
			t.Fatal(err)
		}
	}
	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 || keys[0] != "/a" {
		t.Fatal("got wrong keys:", keys)
	}

	entries, err := s.Walk(ctx, "/")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatal("expected 2 walk entries, got", entries)
	}
	if entries[0].Path != "/" || len(entries[0].Groups) != 1 || entries[0].Groups[0] != "grp" {
		t.Fatal("got wrong root entry:", entries[0])
	}
	if entries[1].Path != "/grp" || len(entries[1].Leaves) != 2 {
		t.Fatal("got wrong group entry:", entries[1])
	}
}

func TestPutOverwrites(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	appendSample(t, s, "df")

	// a plain put replaces the table outright
	f, err := NewFrame(IntArray([]int64{0}), "", []string{"z"}, []Array{IntArray([]int64{9})})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "df", f, nil); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "df")
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 1 || got.Columns[0] != "z" {
		t.Fatal("put must overwrite the previous object")
	}
}

func TestBackup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"), "w", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	appendSample(t, s, "df")

	dest := filepath.Join(dir, "backup.db")
	if err := s.Backup(ctx, dest); err != nil {
		t.Fatal(err)
	}

	restored, err := Open(dest, "r", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer restored.Close()
	got, err := restored.Select(ctx, "df", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.NRows() != 5 {
		t.Fatal("backup must contain the data, got", got.NRows())
	}
}

func TestDo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, "w", nil)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Do(func(s *Store) error {
		return s.Put(context.Background(), "df", sampleFrame(t), nil)
	})
	if err != nil {
		t.Fatal(err)
	}
	if !s.closed {
		t.Fatal("do must close the store")
	}
}
