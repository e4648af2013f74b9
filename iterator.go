package framestore

import (
	"context"
	"fmt"
)

// TableIterator streams a select in row chunks. Usage follows the
// database/sql rows pattern:
//
//	it, err := store.SelectIter(ctx, "/prices", opts)
//	for it.Next() {
//		chunk := it.Frame()
//		...
//	}
//	err = it.Err()
//	it.Close()
type TableIterator struct {
	ctx   context.Context
	table *Table
	sel   *selection

	chunksize int64
	autoClose bool
	columns   []string

	// coords drives chunking whenever a predicate or explicit
	// coordinates narrowed the row set, else the iterator walks the
	// positional window directly.
	coords    []int64
	useCoords bool
	pos       int64

	cur    *Frame
	err    error
	closed bool
}

func newTableIterator(ctx context.Context, t *Table, opts *SelectOptions) (*TableIterator, error) {
	sel, err := newSelection(t, opts.Where, opts.Start, opts.Stop, opts.Scope)
	if err != nil {
		return nil, err
	}
	it := &TableIterator{
		ctx:       ctx,
		table:     t,
		sel:       sel,
		chunksize: opts.Chunksize,
		autoClose: opts.AutoClose,
		columns:   opts.Columns,
	}
	if it.chunksize <= 0 {
		it.chunksize = t.store.cfg.Chunksize
	}
	if sel.hasCoords || sel.condition != "" {
		coords, err := sel.selectCoords(ctx)
		if err != nil {
			return nil, err
		}
		it.coords = coords
		it.useCoords = true
	} else {
		it.pos = sel.start
	}
	return it, nil
}

// Next advances to the next chunk. It returns false at the end of the
// selection or on error; check Err afterwards.
func (it *TableIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	var frame *Frame
	var err error
	if it.useCoords {
		if it.pos >= int64(len(it.coords)) {
			it.finish()
			return false
		}
		hi := it.pos + it.chunksize
		if hi > int64(len(it.coords)) {
			hi = int64(len(it.coords))
		}
		frame, err = it.table.readCoordinates(it.ctx, it.coords[it.pos:hi])
		it.pos = hi
	} else {
		if it.pos >= it.sel.stop {
			it.finish()
			return false
		}
		hi := it.pos + it.chunksize
		if hi > it.sel.stop {
			hi = it.sel.stop
		}
		frame, err = it.table.readRange(it.ctx, "", it.pos, hi)
		it.pos = hi
	}
	if err != nil {
		it.err = err
		return false
	}
	frame, err = it.table.applyFilters(frame, it.sel.filters, it.sel.jointFilter)
	if err != nil {
		it.err = err
		return false
	}
	if len(it.columns) > 0 {
		frame, err = frame.SelectColumns(it.columns)
		if err != nil {
			it.err = err
			return false
		}
	}
	it.cur = frame
	return true
}

// Frame returns the chunk read by the last successful Next.
func (it *TableIterator) Frame() *Frame {
	return it.cur
}

func (it *TableIterator) Err() error {
	return it.err
}

func (it *TableIterator) finish() {
	if it.autoClose && !it.closed {
		if err := it.table.store.Close(); err != nil && it.err == nil {
			it.err = fmt.Errorf("error auto-closing store: %w", err)
		}
	}
	it.closed = true
}

// Close releases the iterator. With AutoClose it also closes the owning
// store.
func (it *TableIterator) Close() error {
	if !it.closed {
		it.finish()
	}
	return nil
}
