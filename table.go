package framestore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/danthegoodman1/framestore/utils"
)

type (
	// Table is the appendable, queryable storer: a physical row-oriented
	// table addressed by a dense row number, with the schema held in the
	// catalog attrs.
	Table struct {
		store    *Store
		key      string
		physical string

		version    string
		encoding   string
		errorsMode string
		nanRep     string
		levels     []string

		indexAxes    []*IndexColumn
		nonIndexAxes []nonIndexAxis
		valuesAxes   []*DataColumn
		dataColumns  []string
		nrows        int64
		info         map[string]map[string]any
	}
)

func loadTable(s *Store, g *groupRow) (*Table, error) {
	attrs, err := unmarshalAttrs(g.attrs)
	if err != nil {
		return nil, err
	}
	t := &Table{
		store:        s,
		key:          g.path,
		physical:     g.physical,
		version:      attrs.Version,
		encoding:     attrs.Encoding,
		errorsMode:   attrs.Errors,
		nanRep:       attrs.NanRep,
		levels:       attrs.Levels,
		nonIndexAxes: attrs.NonIndexAxes,
		dataColumns:  attrs.DataColumns,
		nrows:        attrs.NRows,
		info:         attrs.Info,
	}
	if t.nanRep == "" {
		t.nanRep = "nan"
	}
	for _, ref := range attrs.IndexCols {
		ca, ok := attrs.Columns[ref.CName]
		if !ok {
			return nil, fmt.Errorf("corrupt schema for %s: missing index column [%s]", g.path, ref.CName)
		}
		dc, err := colFromAttrs(ref.CName, ca)
		if err != nil {
			return nil, err
		}
		t.indexAxes = append(t.indexAxes, &IndexColumn{DataColumn: *dc, Axis: ref.Axis, owner: t})
	}
	for _, cname := range attrs.ValuesCols {
		ca, ok := attrs.Columns[cname]
		if !ok {
			return nil, fmt.Errorf("corrupt schema for %s: missing values column [%s]", g.path, cname)
		}
		dc, err := colFromAttrs(cname, ca)
		if err != nil {
			return nil, err
		}
		t.valuesAxes = append(t.valuesAxes, dc)
	}
	if len(t.indexAxes) == 0 || len(t.nonIndexAxes) == 0 {
		return nil, fmt.Errorf("corrupt schema for %s: no axes", g.path)
	}
	return t, nil
}

func (t *Table) attrs() (groupAttrs, error) {
	a := groupAttrs{
		TableType:    "appendable",
		Version:      formatVersion,
		Encoding:     t.encoding,
		Errors:       t.errorsMode,
		NanRep:       t.nanRep,
		Levels:       t.levels,
		IndexName:    t.indexAxes[0].Name,
		NonIndexAxes: t.nonIndexAxes,
		DataColumns:  t.dataColumns,
		NRows:        t.nrows,
		Info:         t.info,
		Columns:      map[string]colAttrs{},
	}
	for _, ic := range t.indexAxes {
		a.IndexCols = append(a.IndexCols, indexColRef{Axis: ic.Axis, CName: ic.CName})
		a.Columns[ic.CName] = colToAttrs(&ic.DataColumn)
	}
	for _, dc := range t.valuesAxes {
		a.ValuesCols = append(a.ValuesCols, dc.CName)
		a.Columns[dc.CName] = colToAttrs(dc)
	}
	return a, nil
}

// queryables maps every name usable in a where clause to its descriptor.
// Metadata-only axes (the column labels) map to nil.
func (t *Table) queryables() map[string]*DataColumn {
	q := map[string]*DataColumn{
		"columns": nil,
	}
	for _, ic := range t.indexAxes {
		q[ic.CName] = &ic.DataColumn
	}
	for _, dc := range t.valuesAxes {
		if !dc.isBlock() && utils.ContainsString(t.dataColumns, dc.Name) {
			q[dc.CName] = dc
		}
	}
	return q
}

func (t *Table) physColumns() []string {
	cols := make([]string, 0, len(t.indexAxes)+len(t.valuesAxes))
	for _, ic := range t.indexAxes {
		cols = append(cols, ic.CName)
	}
	for _, dc := range t.valuesAxes {
		cols = append(cols, dc.CName)
	}
	return cols
}

func quotedList(names []string) string {
	qs := make([]string, len(names))
	for i, n := range names {
		qs[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(qs, ", ")
}

// writeTable creates or extends a table-format group with the frame's
// rows.
func (s *Store) writeTable(ctx context.Context, key string, f *Frame, opts *PutOptions, appendMode bool) error {
	key = normalizeKey(key)
	g, err := s.getGroup(ctx, key)
	if err != nil {
		return err
	}

	var existing *Table
	if g != nil {
		if !appendMode {
			// put always starts clean
			if _, err := s.Remove(ctx, key, nil, nil, nil); err != nil {
				return err
			}
			g = nil
		} else {
			if g.groupType != groupTypeTable {
				return fmt.Errorf("can only append to table-format objects: %w", ErrNotTableFormat)
			}
			existing, err = loadTable(s, g)
			if err != nil {
				return err
			}
		}
	}

	builder := &schemaBuilder{
		frame:          f,
		existing:       existing,
		dataColumns:    opts.DataColumns,
		allDataColumns: opts.AllDataColumns,
		minItemsize:    opts.MinItemsize,
		minItemsizeAll: opts.MinItemsizeAll,
		nanRep:         opts.NanRep,
	}
	schema, err := builder.build()
	if err != nil {
		return err
	}
	frame := schema.frame
	if opts.Dropna {
		frame = dropAllMissing(frame)
	}

	t := existing
	if t == nil {
		t = &Table{
			store:        s,
			key:          key,
			physical:     newPhysicalName(),
			version:      formatVersion,
			encoding:     opts.Encoding,
			errorsMode:   opts.Errors,
			nanRep:       schema.nanRep,
			indexAxes:    schema.indexAxes,
			nonIndexAxes: schema.nonIndexAxes,
			valuesAxes:   schema.valuesAxes,
			dataColumns:  schema.dataColumns,
		}
		if t.encoding == "" {
			t.encoding = "UTF-8"
		}
		if t.errorsMode == "" {
			t.errorsMode = "strict"
		}
		if f.IndexName != "" {
			t.levels = []string{f.IndexName}
		}
		expected := opts.ExpectedRows
		if expected < s.cfg.MinExpectedRows {
			expected = s.cfg.MinExpectedRows
		}
		t.info = map[string]map[string]any{"table": {"expectedrows": expected}}
		for _, ic := range t.indexAxes {
			ic.owner = t
		}
		if err := t.createPhysical(ctx); err != nil {
			return err
		}
	} else {
		// conformed fresh descriptors carry the adopted widths forward
		t.indexAxes = schema.indexAxes
		t.valuesAxes = schema.valuesAxes
		for _, ic := range t.indexAxes {
			ic.owner = t
		}
	}

	if err := t.insertRows(ctx, frame, opts.Chunksize); err != nil {
		return err
	}
	t.nrows += int64(frame.NRows())
	return t.saveAttrs(ctx)
}

func (t *Table) createPhysical(ctx context.Context) error {
	defs := []string{"rnum INTEGER PRIMARY KEY"}
	for _, ic := range t.indexAxes {
		defs = append(defs, fmt.Sprintf("%q %s", ic.CName, ic.atomSQL()))
	}
	for _, dc := range t.valuesAxes {
		defs = append(defs, fmt.Sprintf("%q %s", dc.CName, dc.atomSQL()))
	}
	stmt := fmt.Sprintf("CREATE TABLE %q (%s)", t.physical, strings.Join(defs, ", "))
	if _, err := t.store.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("error creating physical table: %w", err)
	}
	return nil
}

func (t *Table) saveAttrs(ctx context.Context) error {
	attrs, err := t.attrs()
	if err != nil {
		return err
	}
	marshaled, err := marshalAttrs(attrs)
	if err != nil {
		return err
	}
	return t.store.upsertGroup(ctx, &groupRow{
		path:      t.key,
		groupType: groupTypeTable,
		physical:  t.physical,
		attrs:     marshaled,
	})
}

func (t *Table) insertRows(ctx context.Context, frame *Frame, chunksize int64) error {
	n := frame.NRows()
	if n == 0 {
		return nil
	}
	if chunksize <= 0 {
		chunksize = t.store.cfg.Chunksize
	}
	compress := t.store.cfg.Compression

	cols := t.physColumns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+1), ", ")
	insert := fmt.Sprintf("INSERT INTO %q (rnum, %s) VALUES (%s)", t.physical, quotedList(cols), placeholders)

	// resolve each values axis to the frame arrays it covers
	blockArrays := make([][]*Array, len(t.valuesAxes))
	for i, dc := range t.valuesAxes {
		for _, name := range dc.Values {
			col, ok := frame.Col(name)
			if !ok {
				return fmt.Errorf("column %q missing from frame", name)
			}
			blockArrays[i] = append(blockArrays[i], col)
		}
	}

	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error in BeginTx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("error in PrepareContext: %w", err)
	}
	defer stmt.Close()

	idx := &t.indexAxes[0].DataColumn
	for i := 0; i < n; i++ {
		args := make([]any, 0, len(cols)+1)
		args = append(args, t.nrows+int64(i))
		iv, err := idx.sqlValue(&frame.Index, i, t.nanRep, compress)
		if err != nil {
			return err
		}
		args = append(args, iv)
		for j, dc := range t.valuesAxes {
			if dc.isBlock() {
				blob, err := dc.encodeBlockRow(blockArrays[j], i, t.nanRep)
				if err != nil {
					return err
				}
				args = append(args, blob)
			} else {
				v, err := dc.sqlValue(blockArrays[j][0], i, t.nanRep, compress)
				if err != nil {
					return err
				}
				args = append(args, v)
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("error inserting row %d: %w", i, err)
		}
		if int64(i+1)%chunksize == 0 {
			logger.Debug().Str("key", t.key).Int("rows", i+1).Msg("write progress")
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error in tx.Commit: %w", err)
	}
	return nil
}

// dropAllMissing drops rows whose values are all missing. The index does
// not count.
func dropAllMissing(f *Frame) *Frame {
	if len(f.Cols) == 0 {
		return f
	}
	mask := make([]bool, f.NRows())
	for i := range mask {
		for j := range f.Cols {
			if !isMissingAt(&f.Cols[j], i) {
				mask[i] = true
				break
			}
		}
	}
	return f.MaskRows(mask)
}

func isMissingAt(a *Array, i int) bool {
	switch a.Kind {
	case KindFloat:
		return math.IsNaN(a.Floats[i])
	case KindDatetime64, KindTimedelta64:
		return a.Ints[i] == NaTNanos
	case KindString:
		return a.Strs[i] == ""
	case KindCategory:
		return a.Cat.Codes[i] < 0
	case KindObject:
		return a.Objs[i] == nil
	}
	return false
}

// read runs a full select against the table.
func (t *Table) read(ctx context.Context, where any, columns []string, start, stop *int64, scope map[string]any) (*Frame, error) {
	sel, err := newSelection(t, where, start, stop, scope)
	if err != nil {
		return nil, err
	}
	var frame *Frame
	if sel.hasCoords {
		frame, err = t.readCoordinates(ctx, sel.coords)
	} else {
		frame, err = t.readRange(ctx, sel.condition, sel.start, sel.stop)
	}
	if err != nil {
		return nil, err
	}
	frame, err = t.applyFilters(frame, sel.filters, sel.jointFilter)
	if err != nil {
		return nil, err
	}
	if len(columns) > 0 {
		return frame.SelectColumns(columns)
	}
	return frame, nil
}

func (t *Table) readRange(ctx context.Context, condition string, start, stop int64) (*Frame, error) {
	query := fmt.Sprintf("SELECT %s FROM %q WHERE rnum >= ? AND rnum < ?", quotedList(t.physColumns()), t.physical)
	if condition != "" {
		query += " AND " + condition
	}
	query += " ORDER BY rnum"
	raw, err := t.scanRaw(ctx, query, start, stop)
	if err != nil {
		return nil, err
	}
	return t.assembleFrame(raw)
}

// readCoordinates reads exactly the given row numbers, in ascending
// order.
func (t *Table) readCoordinates(ctx context.Context, coords []int64) (*Frame, error) {
	ncols := len(t.physColumns())
	raw := make([][]any, ncols)

	// keep well under the engine's bound-variable limit
	const chunk = 500
	for lo := 0; lo < len(coords); lo += chunk {
		hi := lo + chunk
		if hi > len(coords) {
			hi = len(coords)
		}
		part := coords[lo:hi]
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(part)), ", ")
		query := fmt.Sprintf("SELECT %s FROM %q WHERE rnum IN (%s) ORDER BY rnum",
			quotedList(t.physColumns()), t.physical, placeholders)
		args := make([]any, len(part))
		for i, c := range part {
			args[i] = c
		}
		partRaw, err := t.scanRaw(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for i := range raw {
			raw[i] = append(raw[i], partRaw[i]...)
		}
	}
	return t.assembleFrame(raw)
}

// scanRaw runs a query selecting the physical columns in physColumns
// order and returns the values column-major.
func (t *Table) scanRaw(ctx context.Context, query string, args ...any) ([][]any, error) {
	rows, err := t.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error in QueryContext: %w", err)
	}
	defer rows.Close()

	ncols := len(t.physColumns())
	out := make([][]any, ncols)
	scan := make([]any, ncols)
	ptrs := make([]any, ncols)
	for i := range scan {
		ptrs[i] = &scan[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("error in rows.Scan: %w", err)
		}
		for i, v := range scan {
			// []byte scan buffers are reused by the driver
			if b, ok := v.([]byte); ok {
				v = append([]byte(nil), b...)
			}
			out[i] = append(out[i], v)
		}
	}
	return out, rows.Err()
}

// assembleFrame converts column-major raw values back into a frame in
// the stored label order.
func (t *Table) assembleFrame(raw [][]any) (*Frame, error) {
	compress := t.store.cfg.Compression

	index, err := t.indexAxes[0].convert(raw[0], t.nanRep, compress)
	if err != nil {
		return nil, err
	}

	byName := map[string]Array{}
	for j, dc := range t.valuesAxes {
		col := raw[len(t.indexAxes)+j]
		if dc.isBlock() {
			arrays, err := dc.decodeBlockRows(col, t.nanRep)
			if err != nil {
				return nil, err
			}
			for k, name := range dc.Values {
				a := arrays[k]
				if dc.Kind == KindDatetime64 {
					a.TZ = dc.Timezone
				}
				byName[name] = a
			}
			continue
		}
		a, err := dc.convert(col, t.nanRep, compress)
		if err != nil {
			return nil, err
		}
		byName[dc.Name] = a
	}

	labels := t.nonIndexAxes[0].Labels
	frame := &Frame{Index: index, IndexName: t.indexAxes[0].Name}
	if frame.IndexName == "index" && len(t.levels) == 0 {
		frame.IndexName = ""
	}
	for _, name := range labels {
		a, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("corrupt schema for %s: no storage for column [%s]", t.key, name)
		}
		frame.Columns = append(frame.Columns, name)
		frame.Cols = append(frame.Cols, a)
	}
	return frame, nil
}

// applyFilters applies deferred predicate triples as post-read masks.
func (t *Table) applyFilters(frame *Frame, filters []FilterTriple, joint bool) (*Frame, error) {
	if len(filters) == 0 {
		return frame, nil
	}
	if joint {
		return nil, ErrJointFilters
	}
	for _, flt := range filters {
		if flt.Col == "columns" {
			names := make([]string, 0, len(flt.Values))
			for _, v := range flt.Values {
				s, ok := v.(string)
				if !ok {
					return nil, fmt.Errorf("columns filter value %v is not a string", v)
				}
				names = append(names, s)
			}
			var keep []string
			for _, c := range frame.Columns {
				if utils.ContainsString(names, c) != flt.Invert {
					keep = append(keep, c)
				}
			}
			next, err := frame.SelectColumns(keep)
			if err != nil {
				return nil, err
			}
			frame = next
			continue
		}

		var target *Array
		if flt.Col == t.indexAxes[0].Name {
			target = &frame.Index
		} else if col, ok := frame.Col(flt.Col); ok {
			target = col
		} else {
			return nil, fmt.Errorf("[%s]: %w", flt.Col, ErrFilterField)
		}
		mask := target.Isin(flt.Values)
		if flt.Invert {
			for i := range mask {
				mask[i] = !mask[i]
			}
		}
		frame = frame.MaskRows(mask)
	}
	return frame, nil
}

// readColumn reads one indexable or data column in full, ignoring any
// row subsetting.
func (t *Table) readColumn(ctx context.Context, column string) (*Array, error) {
	compress := t.store.cfg.Compression
	for _, ic := range t.indexAxes {
		if ic.Name == column {
			raw, err := t.scanColumn(ctx, ic.CName)
			if err != nil {
				return nil, err
			}
			a, err := ic.convert(raw, t.nanRep, compress)
			if err != nil {
				return nil, err
			}
			return &a, nil
		}
	}
	for _, dc := range t.valuesAxes {
		if dc.isBlock() || dc.Name != column {
			continue
		}
		if !utils.ContainsString(t.dataColumns, column) {
			break
		}
		raw, err := t.scanColumn(ctx, dc.CName)
		if err != nil {
			return nil, err
		}
		a, err := dc.convert(raw, t.nanRep, compress)
		if err != nil {
			return nil, err
		}
		return &a, nil
	}
	return nil, fmt.Errorf("column [%s] can not be extracted individually, it is not a data column", column)
}

func (t *Table) scanColumn(ctx context.Context, cname string) ([]any, error) {
	query := fmt.Sprintf("SELECT %q FROM %q ORDER BY rnum", cname, t.physical)
	rows, err := t.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error in QueryContext: %w", err)
	}
	defer rows.Close()
	var out []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("error in rows.Scan: %w", err)
		}
		if b, ok := v.([]byte); ok {
			v = append([]byte(nil), b...)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// delete removes the rows a where clause (or start/stop bound) matches,
// renumbering the remaining rows to stay dense. Returns the count
// removed.
func (t *Table) delete(ctx context.Context, where any, start, stop *int64) (int64, error) {
	sel, err := newSelection(t, where, start, stop, nil)
	if err != nil {
		return 0, err
	}
	coords, err := sel.selectCoords(ctx)
	if err != nil {
		return 0, err
	}
	if len(sel.filters) > 0 {
		// deferred filters narrow the coordinate set by value
		coords, err = t.filterCoords(ctx, coords, sel.filters, sel.jointFilter)
		if err != nil {
			return 0, err
		}
	}
	if len(coords) == 0 {
		return 0, nil
	}

	sorted := append([]int64(nil), coords...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	// contiguous runs, deleted high-to-low so earlier run bounds stay valid
	type run struct{ lo, hi int64 }
	var runs []run
	cur := run{lo: sorted[0], hi: sorted[0]}
	for _, c := range sorted[1:] {
		if c == cur.hi+1 {
			cur.hi = c
			continue
		}
		runs = append(runs, cur)
		cur = run{lo: c, hi: c}
	}
	runs = append(runs, cur)

	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error in BeginTx: %w", err)
	}
	defer tx.Rollback()

	for i := len(runs) - 1; i >= 0; i-- {
		stmt := fmt.Sprintf("DELETE FROM %q WHERE rnum >= ? AND rnum <= ?", t.physical)
		if _, err := tx.ExecContext(ctx, stmt, runs[i].lo, runs[i].hi); err != nil {
			return 0, fmt.Errorf("error deleting rows: %w", err)
		}
	}

	// close the holes: every surviving row gets its dense position back
	renumber := fmt.Sprintf(`
		UPDATE %q SET rnum = (
			SELECT new_rnum FROM (
				SELECT rnum AS old_rnum, ROW_NUMBER() OVER (ORDER BY rnum) - 1 AS new_rnum FROM %q
			) WHERE old_rnum = %q.rnum
		)`, t.physical, t.physical, t.physical)
	if _, err := tx.ExecContext(ctx, renumber); err != nil {
		return 0, fmt.Errorf("error renumbering rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error in tx.Commit: %w", err)
	}

	t.nrows -= int64(len(sorted))
	if err := t.saveAttrs(ctx); err != nil {
		return 0, err
	}
	return int64(len(sorted)), nil
}

// filterCoords reads the candidate rows and keeps only those passing the
// deferred filters.
func (t *Table) filterCoords(ctx context.Context, coords []int64, filters []FilterTriple, joint bool) ([]int64, error) {
	if joint {
		return nil, ErrJointFilters
	}
	sorted := append([]int64(nil), coords...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	frame, err := t.readCoordinates(ctx, sorted)
	if err != nil {
		return nil, err
	}
	keep := make([]bool, len(sorted))
	for i := range keep {
		keep[i] = true
	}
	for _, flt := range filters {
		if flt.Col == "columns" {
			continue
		}
		var target *Array
		if flt.Col == t.indexAxes[0].Name {
			target = &frame.Index
		} else if col, ok := frame.Col(flt.Col); ok {
			target = col
		} else {
			return nil, fmt.Errorf("[%s]: %w", flt.Col, ErrFilterField)
		}
		mask := target.Isin(flt.Values)
		for i := range keep {
			if mask[i] == flt.Invert {
				keep[i] = false
			}
		}
	}
	var out []int64
	for i, k := range keep {
		if k {
			out = append(out, sorted[i])
		}
	}
	return out, nil
}

// createIndex builds a secondary lookup on the given columns (default:
// the index axis plus all data columns). Complex columns cannot be
// indexed.
func (t *Table) createIndex(ctx context.Context, columns []string, optlevel int, kind string) error {
	if kind == "" {
		kind = "full"
	}
	_ = optlevel // the engine self-tunes, retained for call compatibility
	_ = kind

	targets := map[string]*DataColumn{}
	if len(columns) == 0 {
		for _, ic := range t.indexAxes {
			targets[ic.CName] = &ic.DataColumn
		}
		for _, dc := range t.valuesAxes {
			if !dc.isBlock() && utils.ContainsString(t.dataColumns, dc.Name) {
				targets[dc.CName] = dc
			}
		}
	} else {
		q := t.queryables()
		for _, name := range columns {
			dc, ok := q[name]
			if !ok || dc == nil {
				return fmt.Errorf("column [%s] is not indexable, it must be the index or a data column", name)
			}
			targets[dc.CName] = dc
		}
	}

	for cname, dc := range targets {
		if dc.Kind == KindComplex {
			return fmt.Errorf("column [%s]: %w", dc.Name, ErrComplexIndex)
		}
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %q ON %q (%q)", t.idxName(cname), t.physical, cname)
		if _, err := t.store.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error creating index on [%s]: %w", cname, err)
		}
	}
	return nil
}

func (t *Table) idxName(cname string) string {
	return fmt.Sprintf("ix_%s_%s", t.physical, cname)
}

func (t *Table) hasIndexOn(cname string) bool {
	row := t.store.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`, t.idxName(cname))
	var n int
	if err := row.Scan(&n); err != nil {
		return false
	}
	return n > 0
}
