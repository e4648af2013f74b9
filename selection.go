package framestore

import (
	"context"
	"fmt"

	"github.com/danthegoodman1/framestore/utils"
)

// selection resolves one select/remove request against a table: absolute
// row bounds, an optional native condition, deferred filters, or an
// explicit coordinate set.
type selection struct {
	table *Table

	start int64
	stop  int64

	condition   string
	filters     []FilterTriple
	jointFilter bool

	coords    []int64
	hasCoords bool
}

func newSelection(t *Table, where any, start, stop *int64, scope map[string]any) (*selection, error) {
	sel := &selection{table: t, start: utils.Deref(start, 0), stop: utils.Deref(stop, t.nrows)}
	if sel.start < 0 {
		sel.start = 0
	}
	if sel.stop > t.nrows {
		sel.stop = t.nrows
	}

	if where == nil {
		return sel, nil
	}

	switch w := where.(type) {
	case []int64:
		for _, c := range w {
			if c < sel.start || c >= sel.stop {
				return nil, ErrBadCoordinates
			}
		}
		sel.coords = append([]int64(nil), w...)
		sel.hasCoords = true
		return sel, nil
	case []bool:
		// a mask the size of the window is relative to it, a full-length
		// mask yields absolute positions checked against the window
		if int64(len(w)) == sel.stop-sel.start {
			for i, keep := range w {
				if keep {
					sel.coords = append(sel.coords, sel.start+int64(i))
				}
			}
		} else {
			for i, keep := range w {
				if !keep {
					continue
				}
				if int64(i) < sel.start || int64(i) >= sel.stop {
					return nil, ErrBadCoordinates
				}
				sel.coords = append(sel.coords, int64(i))
			}
		}
		sel.hasCoords = true
		return sel, nil
	case string, []string:
		if t.version != formatVersion {
			// predicate pushdown needs the current layout, fall back to a
			// full read rather than failing
			logger.Warn().Str("key", t.key).Str("version", t.version).
				Msg("where clauses are not supported on objects written by an older version, ignoring")
			return sel, nil
		}
		expr, err := compileWhere(w, t.queryables(), scope, t.encoding)
		if err != nil {
			return nil, err
		}
		sel.condition = expr.Condition
		sel.filters = expr.Filters
		sel.jointFilter = expr.jointFilter
		return sel, nil
	}
	return nil, fmt.Errorf("where must be a string, list of strings, coordinates or a mask, got %T", where)
}

// selectCoords resolves the selection to explicit row numbers.
func (sel *selection) selectCoords(ctx context.Context) ([]int64, error) {
	if sel.hasCoords {
		return sel.coords, nil
	}
	query := fmt.Sprintf("SELECT rnum FROM %q WHERE rnum >= ? AND rnum < ?", sel.table.physical)
	if sel.condition != "" {
		query += " AND " + sel.condition
	}
	query += " ORDER BY rnum"
	rows, err := sel.table.store.db.QueryContext(ctx, query, sel.start, sel.stop)
	if err != nil {
		return nil, fmt.Errorf("error in QueryContext: %w", err)
	}
	defer rows.Close()
	var coords []int64
	for rows.Next() {
		var c int64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("error in rows.Scan: %w", err)
		}
		coords = append(coords, c)
	}
	return coords, rows.Err()
}
