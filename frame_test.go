package framestore

import (
	"math"
	"testing"
	"time"
)

func TestNewFrameValidation(t *testing.T) {
	_, err := NewFrame(IntArray([]int64{0, 1}), "", []string{"a"}, []Array{IntArray([]int64{1})})
	if err == nil {
		t.Fatal("expected a length mismatch error")
	}
	_, err = NewFrame(IntArray([]int64{0}), "", []string{"a", "b"}, []Array{IntArray([]int64{1})})
	if err == nil {
		t.Fatal("expected a name count mismatch error")
	}
}

func TestIsinAndMask(t *testing.T) {
	f, err := NewFrame(IntArray([]int64{0, 1, 2, 3}), "", []string{"b"},
		[]Array{StringArray([]string{"x", "y", "x", "z"})})
	if err != nil {
		t.Fatal(err)
	}
	col, _ := f.Col("b")
	mask := col.Isin([]any{"x", "z"})
	got := f.MaskRows(mask)
	if got.NRows() != 3 {
		t.Fatal("expected 3 rows, got", got.NRows())
	}
	if got.Index.Ints[0] != 0 || got.Index.Ints[1] != 2 || got.Index.Ints[2] != 3 {
		t.Fatal("got wrong index:", got.Index.Ints)
	}
}

func TestTakeRows(t *testing.T) {
	f, err := NewFrame(IntArray([]int64{10, 11, 12}), "", []string{"a"},
		[]Array{FloatArray([]float64{1.5, math.NaN(), 3.5})})
	if err != nil {
		t.Fatal(err)
	}
	got := f.TakeRows([]int64{2, 0})
	if got.Index.Ints[0] != 12 || got.Index.Ints[1] != 10 {
		t.Fatal("got wrong index:", got.Index.Ints)
	}
	if got.Cols[0].Floats[0] != 3.5 {
		t.Fatal("got wrong values:", got.Cols[0].Floats)
	}
}

func TestFrameEqualNaN(t *testing.T) {
	a := FloatArray([]float64{1, math.NaN()})
	b := FloatArray([]float64{1, math.NaN()})
	if !a.Equal(&b) {
		t.Fatal("NaN must compare equal to NaN in array equality")
	}
}

func TestDatetimeArrayZeroIsMissing(t *testing.T) {
	a := DatetimeArray([]time.Time{{}, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}, "")
	if a.Ints[0] != NaTNanos {
		t.Fatal("zero time must encode as missing")
	}
	if a.ValueAt(0) != nil {
		t.Fatal("missing datetime must read as nil")
	}
}

func TestGroupBlocks(t *testing.T) {
	cats := StringArray([]string{"a", "b"})
	f, err := NewFrame(IntArray([]int64{0, 1}), "",
		[]string{"i1", "f1", "i2", "c1", "f2"},
		[]Array{
			IntArray([]int64{1, 2}),
			FloatArray([]float64{1, 2}),
			IntArray([]int64{3, 4}),
			CategoricalArray([]int64{0, 1}, cats, false),
			FloatArray([]float64{3, 4}),
		})
	if err != nil {
		t.Fatal(err)
	}
	blocks := groupBlocks(f, nil)
	if len(blocks) != 3 {
		t.Fatal("expected 3 blocks, got", len(blocks))
	}
	// kinds ordered by first appearance, category standalone
	if blocks[0].kind != KindInteger || len(blocks[0].names) != 2 {
		t.Fatal("got wrong first block:", blocks[0])
	}
	if blocks[1].kind != KindFloat || len(blocks[1].names) != 2 {
		t.Fatal("got wrong second block:", blocks[1])
	}
	if blocks[2].kind != KindCategory || blocks[2].names[0] != "c1" {
		t.Fatal("got wrong third block:", blocks[2])
	}
}

func TestCategoricalValueAt(t *testing.T) {
	cats := StringArray([]string{"x", "y"})
	a := CategoricalArray([]int64{1, -1, 0}, cats, false)
	if a.ValueAt(0) != "y" {
		t.Fatal("got wrong decoded category")
	}
	if a.ValueAt(1) != nil {
		t.Fatal("code -1 must decode to nil")
	}
}
