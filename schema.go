package framestore

import (
	"fmt"
	"sort"

	"github.com/danthegoodman1/framestore/utils"
)

type (
	// nonIndexAxis records the "other" axis of the 2D table: its axis
	// number and ordered labels, stored as metadata rather than as
	// searchable columns.
	nonIndexAxis struct {
		Axis   int      `json:"axis"`
		Labels []string `json:"labels"`
	}

	// schemaBuilder reconciles an incoming frame with any existing on-disk
	// schema into the table's ordered column descriptors. Mirrors how the
	// accumulator grows a schema row-by-row, except our unit is a frame.
	schemaBuilder struct {
		frame    *Frame
		existing *Table // nil when writing fresh

		dataColumns    []string
		allDataColumns bool
		minItemsize    map[string]int
		minItemsizeAll int
		nanRep         string
	}

	builtSchema struct {
		indexAxes    []*IndexColumn
		nonIndexAxes []nonIndexAxis
		valuesAxes   []*DataColumn
		dataColumns  []string
		nanRep       string
		frame        *Frame
	}
)

func (b *schemaBuilder) build() (*builtSchema, error) {
	out := &builtSchema{nanRep: b.nanRep, frame: b.frame}
	if out.nanRep == "" {
		out.nanRep = "nan"
	}

	// an existing table's axis choices and data columns override anything
	// freshly supplied
	if b.existing != nil {
		out.nanRep = b.existing.nanRep
		b.dataColumns = b.existing.dataColumns
		b.allDataColumns = false

		stored := b.existing.nonIndexAxes[0].Labels
		if !sameMembership(stored, b.frame.Columns) {
			return nil, fmt.Errorf("non-index axis labels %v do not match existing table %v: %w",
				b.frame.Columns, stored, ErrSchemaMismatch)
		}
		// same membership, possibly different order: silently reindex to
		// keep on-disk column order stable
		reindexed, err := b.frame.ReindexColumns(stored)
		if err != nil {
			return nil, fmt.Errorf("error in ReindexColumns: %w", err)
		}
		out.frame = reindexed
	}
	frame := out.frame

	indexCol, err := b.buildIndexAxis(frame, out.nanRep)
	if err != nil {
		return nil, err
	}
	out.indexAxes = []*IndexColumn{indexCol}
	out.nonIndexAxes = []nonIndexAxis{{Axis: 1, Labels: append([]string(nil), frame.Columns...)}}

	dataCols, err := b.resolveDataColumns(frame)
	if err != nil {
		return nil, err
	}
	out.dataColumns = dataCols

	valuesAxes, err := b.buildValuesAxes(frame, dataCols, out.nanRep)
	if err != nil {
		return nil, err
	}
	out.valuesAxes = valuesAxes

	if b.existing != nil {
		if err := b.validateAppend(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *schemaBuilder) buildIndexAxis(frame *Frame, nanRep string) (*IndexColumn, error) {
	name := frame.IndexName
	if name == "" {
		name = "index"
	}
	col := &IndexColumn{
		DataColumn: DataColumn{
			Name:   name,
			CName:  name,
			Kind:   frame.Index.Kind,
			Pos:    0,
			Values: []string{name},
		},
		Axis: 0,
	}
	if frame.Index.Kind == KindString {
		col.Itemsize = maxStringWidth(frame.Index.Strs, nanRep)
		col.maybeSetSize(b.minItemsizeFor(name))
	}
	if frame.Index.Kind == KindDatetime64 {
		col.Timezone = frame.Index.TZ
	}
	if frame.Index.Kind == KindCategory {
		return nil, fmt.Errorf("categorical index is not supported, reset the index before writing")
	}
	col.Dtype = dtypeString(&col.DataColumn)
	return col, nil
}

func (b *schemaBuilder) resolveDataColumns(frame *Frame) ([]string, error) {
	var dataCols []string
	if b.allDataColumns {
		dataCols = append(dataCols, frame.Columns...)
	} else {
		// only labels actually present on the non-index axis survive
		for _, name := range b.dataColumns {
			if utils.ContainsString(frame.Columns, name) {
				dataCols = append(dataCols, name)
			}
		}
	}
	// per-column min_itemsize entries are implicit data columns
	for name := range b.minItemsize {
		if name == "" {
			continue
		}
		if utils.ContainsString(frame.Columns, name) && !utils.ContainsString(dataCols, name) {
			dataCols = append(dataCols, name)
		}
	}
	// category and object columns always serialize standalone
	for i, name := range frame.Columns {
		if !frame.Cols[i].Kind.blockable() && !utils.ContainsString(dataCols, name) {
			dataCols = append(dataCols, name)
		}
	}
	// keep the axis order, not the request order
	ordered := make([]string, 0, len(dataCols))
	for _, name := range frame.Columns {
		if utils.ContainsString(dataCols, name) {
			ordered = append(ordered, name)
		}
	}
	return ordered, nil
}

func (b *schemaBuilder) buildValuesAxes(frame *Frame, dataCols []string, nanRep string) ([]*DataColumn, error) {
	exclude := make(map[string]bool, len(dataCols))
	for _, name := range dataCols {
		exclude[name] = true
	}

	var axes []*DataColumn
	pos := 1 // position 0 is the index axis

	// promoted data columns first come in axis order, then dtype blocks;
	// on append the whole list is re-matched against the stored layout
	for _, name := range frame.Columns {
		if !exclude[name] {
			continue
		}
		col, _ := frame.Col(name)
		dc := &DataColumn{
			Name:   name,
			CName:  name,
			Kind:   col.Kind,
			Pos:    pos,
			Values: []string{name},
		}
		switch col.Kind {
		case KindString:
			dc.Itemsize = maxStringWidth(col.Strs, nanRep)
			dc.maybeSetSize(b.minItemsizeFor(name))
		case KindDatetime64:
			dc.Timezone = col.TZ
		case KindCategory:
			if err := dc.setCategories(col.Cat.Categories, col.Cat.Ordered); err != nil {
				return nil, err
			}
		case KindObject:
			logger.Warn().Str("column", name).Msg("storing an object-typed column, this is slow and stores a serialized blob")
		}
		dc.Dtype = dtypeString(dc)
		axes = append(axes, dc)
		pos++
	}

	blockNum := 0
	for _, blk := range groupBlocks(frame, exclude) {
		dc := &DataColumn{
			Name:   fmt.Sprintf("values_block_%d", blockNum),
			CName:  fmt.Sprintf("values_block_%d", blockNum),
			Kind:   blk.kind,
			Pos:    pos,
			Values: append([]string(nil), blk.names...),
		}
		if blk.kind == KindString {
			width := 1
			for _, name := range blk.names {
				col, _ := frame.Col(name)
				if w := maxStringWidth(col.Strs, nanRep); w > width {
					width = w
				}
				if hint := b.minItemsizeFor(name); hint > width {
					width = hint
				}
			}
			dc.Itemsize = width
		}
		if blk.kind == KindDatetime64 {
			col, _ := frame.Col(blk.names[0])
			dc.Timezone = col.TZ
		}
		dc.Dtype = dtypeString(dc)
		axes = append(axes, dc)
		pos++
		blockNum++
	}
	return axes, nil
}

// validateAppend conforms the fresh schema to the existing table,
// reordering blocks to the stored layout and checking column-for-column
// compatibility.
func (b *schemaBuilder) validateAppend(out *builtSchema) error {
	existing := b.existing

	newIdx, oldIdx := out.indexAxes[0], existing.indexAxes[0]
	if newIdx.Name != oldIdx.Name || newIdx.Kind != oldIdx.Kind {
		return fmt.Errorf("incompatible index [%s/%s] vs existing [%s/%s]: %w",
			newIdx.Name, newIdx.Kind, oldIdx.Name, oldIdx.Kind, ErrSchemaMismatch)
	}
	if newIdx.Kind == KindString {
		if err := oldIdx.validateCol(newIdx.Itemsize); err != nil {
			return err
		}
		newIdx.Itemsize = oldIdx.Itemsize
	}

	// match new blocks to the existing layout by their column-name tuple
	reordered := make([]*DataColumn, 0, len(out.valuesAxes))
	for _, old := range existing.valuesAxes {
		found := false
		for _, fresh := range out.valuesAxes {
			if sameStrings(fresh.Values, old.Values) {
				if err := fresh.validateAgainst(old); err != nil {
					return err
				}
				if fresh.Kind == KindString {
					if err := old.validateCol(fresh.Itemsize); err != nil {
						return err
					}
					fresh.Itemsize = old.Itemsize
				}
				if fresh.Meta == "category" {
					if !fresh.Metadata.Equal(old.Metadata) {
						return fmt.Errorf("categories for [%s] do not match existing table: %w", fresh.Name, ErrSchemaMismatch)
					}
				}
				fresh.CName = old.CName
				fresh.Pos = old.Pos
				reordered = append(reordered, fresh)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("cannot match existing table structure for [%v] on appending data: %w",
				old.Values, ErrSchemaMismatch)
		}
	}
	if len(reordered) != len(out.valuesAxes) {
		return fmt.Errorf("cannot match existing table structure on appending data: %w", ErrSchemaMismatch)
	}
	out.valuesAxes = reordered
	out.dataColumns = existing.dataColumns
	return nil
}

func (b *schemaBuilder) minItemsizeFor(name string) int {
	if v, ok := b.minItemsize[name]; ok {
		return v
	}
	return b.minItemsizeAll
}

func dtypeString(c *DataColumn) string {
	if c.Kind == KindString {
		return fmt.Sprintf("string%d", c.Itemsize)
	}
	return c.Kind.String()
}

func maxStringWidth(vals []string, nanRep string) int {
	width := len(nanRep)
	if width == 0 {
		width = 1
	}
	for _, v := range vals {
		if len(v) > width {
			width = len(v)
		}
	}
	return width
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameMembership(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	return sameStrings(as, bs)
}
