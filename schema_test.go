package framestore

import (
	"testing"
)

func buildFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := NewFrame(IntArray([]int64{0, 1, 2}), "",
		[]string{"a", "b", "c", "d"},
		[]Array{
			IntArray([]int64{1, 2, 3}),
			StringArray([]string{"x", "yy", "z"}),
			FloatArray([]float64{1, 2, 3}),
			IntArray([]int64{4, 5, 6}),
		})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestSchemaLayout(t *testing.T) {
	f := buildFrame(t)
	b := &schemaBuilder{frame: f, dataColumns: []string{"b"}}
	schema, err := b.build()
	if err != nil {
		t.Fatal(err)
	}
	if schema.nanRep != "nan" {
		t.Fatal("got wrong nan_rep:", schema.nanRep)
	}
	if schema.indexAxes[0].Name != "index" || schema.indexAxes[0].Kind != KindInteger {
		t.Fatal("got wrong index axis")
	}
	if len(schema.dataColumns) != 1 || schema.dataColumns[0] != "b" {
		t.Fatal("got wrong data columns:", schema.dataColumns)
	}
	// promoted column first, then one block per kind in appearance order
	if len(schema.valuesAxes) != 3 {
		t.Fatal("expected 3 values axes, got", len(schema.valuesAxes))
	}
	if schema.valuesAxes[0].Name != "b" || schema.valuesAxes[0].Pos != 1 {
		t.Fatal("got wrong promoted column:", schema.valuesAxes[0])
	}
	if schema.valuesAxes[1].Name != "values_block_0" || schema.valuesAxes[1].Kind != KindInteger {
		t.Fatal("got wrong block 0:", schema.valuesAxes[1])
	}
	if len(schema.valuesAxes[1].Values) != 2 {
		t.Fatal("block 0 must cover a and d")
	}
	if schema.valuesAxes[2].Kind != KindFloat {
		t.Fatal("got wrong block 1:", schema.valuesAxes[2])
	}
}

func TestStringWidthInference(t *testing.T) {
	f := buildFrame(t)
	b := &schemaBuilder{frame: f, dataColumns: []string{"b"}}
	schema, err := b.build()
	if err != nil {
		t.Fatal(err)
	}
	// nan_rep "nan" floors the width at 3
	if schema.valuesAxes[0].Itemsize != 3 {
		t.Fatal("got wrong itemsize:", schema.valuesAxes[0].Itemsize)
	}
	if schema.valuesAxes[0].Dtype != "string3" {
		t.Fatal("got wrong dtype:", schema.valuesAxes[0].Dtype)
	}
}

func TestMinItemsizeImpliesDataColumn(t *testing.T) {
	f := buildFrame(t)
	b := &schemaBuilder{frame: f, minItemsize: map[string]int{"b": 20}}
	schema, err := b.build()
	if err != nil {
		t.Fatal(err)
	}
	if len(schema.dataColumns) != 1 || schema.dataColumns[0] != "b" {
		t.Fatal("min_itemsize key must imply a data column:", schema.dataColumns)
	}
	if schema.valuesAxes[0].Itemsize != 20 {
		t.Fatal("got wrong widened itemsize:", schema.valuesAxes[0].Itemsize)
	}
}

func TestAllDataColumns(t *testing.T) {
	f := buildFrame(t)
	b := &schemaBuilder{frame: f, allDataColumns: true}
	schema, err := b.build()
	if err != nil {
		t.Fatal(err)
	}
	if len(schema.dataColumns) != 4 {
		t.Fatal("expected every column promoted:", schema.dataColumns)
	}
	if len(schema.valuesAxes) != 4 {
		t.Fatal("expected no blocks:", len(schema.valuesAxes))
	}
}

func TestCategoricalIndexRejected(t *testing.T) {
	cats := StringArray([]string{"a", "b"})
	f, err := NewFrame(CategoricalArray([]int64{0, 1}, cats, false), "", []string{"a"},
		[]Array{IntArray([]int64{1, 2})})
	if err != nil {
		t.Fatal(err)
	}
	b := &schemaBuilder{frame: f}
	if _, err := b.build(); err == nil {
		t.Fatal("categorical index must be rejected")
	}
}
