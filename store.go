package framestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/UltimateTournament/backoff/v4"
	"github.com/danthegoodman1/framestore/gologger"
	"github.com/danthegoodman1/framestore/migrations"
	"github.com/danthegoodman1/framestore/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	// pure Go SQLite driver for the container format
	_ "modernc.org/sqlite"
)

var (
	logger   = gologger.NewLogger()
	validate = validator.New()

	// openHandles tracks live handles per container path so that a
	// truncating re-open can be refused instead of silently destroying an
	// open file.
	openHandles = map[string]int{}
	openMu      sync.Mutex
)

type (
	// Store manages the lifecycle of one container file: the key→group
	// namespace, and dispatch of get/put/append/select/remove to the
	// right storer. Not safe for concurrent use; callers needing
	// concurrency serialize externally or open independent handles.
	Store struct {
		path     string
		mode     string
		cfg      *Config
		db       *sql.DB
		closed   bool
		readonly bool
	}

	// PutOptions configures put/append. Zero value means: fixed format,
	// no data columns, nan_rep "nan".
	PutOptions struct {
		Format         string `validate:"omitempty,oneof=fixed table"`
		DataColumns    []string
		AllDataColumns bool
		MinItemsize    map[string]int
		MinItemsizeAll int   `validate:"min=0"`
		NanRep         string
		Encoding       string
		Errors         string
		Chunksize      int64 `validate:"min=0"`
		ExpectedRows   int64 `validate:"min=0"`
		Dropna         bool
	}

	// SelectOptions configures select. Scope resolves right-hand
	// variable references in where expressions (e.g. "index > cutoff").
	SelectOptions struct {
		Where   any
		Start   *int64
		Stop    *int64
		Columns []string
		Scope   map[string]any

		// Chunksize and AutoClose only apply to SelectIter.
		Chunksize int64 `validate:"min=0"`
		AutoClose bool
	}

	// GroupInfo describes one stored group.
	GroupInfo struct {
		Path string
		Type string
	}

	// WalkEntry is one preorder step of Walk: a path, its child groups
	// and its leaf object names.
	WalkEntry struct {
		Path   string
		Groups []string
		Leaves []string
	}

	groupRow struct {
		path      string
		groupType string
		physical  string
		attrs     string
		payload   []byte
	}
)

// Open opens (or creates) the container file at path.
//
// Modes: "a" read/write create-if-missing (default), "w" truncate,
// "r" read-only, "r+" read/write must-exist. Opening with "w" while the
// same path is open elsewhere in this process fails instead of
// truncating.
func Open(path, mode string, cfg *Config) (*Store, error) {
	if mode == "" {
		mode = "a"
	}
	switch mode {
	case "a", "w", "r", "r+":
	default:
		return nil, fmt.Errorf("invalid mode %q, must be one of a, w, r, r+", mode)
	}

	if cfg == nil {
		if utils.FRAMESTORE_CONFIG != "" {
			loaded, err := LoadConfig(utils.FRAMESTORE_CONFIG)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		} else {
			cfg = DefaultConfig()
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("error in filepath.Abs: %w", err)
	}

	openMu.Lock()
	if mode == "w" && openHandles[abs] > 0 {
		openMu.Unlock()
		return nil, ErrPossibleDataLoss
	}
	openMu.Unlock()

	if mode == "w" {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(abs + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("error removing existing file: %w", err)
			}
		}
	}
	if mode == "r" || mode == "r+" {
		if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %s does not exist", abs)
		}
	}

	readonly := mode == "r"
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_pragma=synchronous(%s)&_pragma=cache_size(-%d)",
		abs, cfg.BusyTimeoutMS, cfg.JournalMode, cfg.Synchronous, cfg.CacheSizeKB)
	if readonly {
		dsn += "&mode=ro"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error in sql.Open: %w", err)
	}
	// single connection: the container is a shared mutable resource with
	// no internal locking
	db.SetMaxOpenConns(1)

	// another opener may hold the file lock briefly, retry with backoff
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.OpenRetries))
	if err := backoff.Retry(db.Ping, bo); err != nil {
		db.Close()
		return nil, fmt.Errorf("error opening container (is it locked by another process?): %w", err)
	}

	if !readonly {
		if _, err := migrations.RunMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("error in migrations.RunMigrations: %w", err)
		}
	} else {
		// read-only handles cannot upgrade the catalog, only verify it
		if err := migrations.CheckMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("error in migrations.CheckMigrations: %w", err)
		}
	}

	openMu.Lock()
	openHandles[abs]++
	openMu.Unlock()

	logger.Debug().Str("path", abs).Str("mode", mode).Msg("opened store")
	return &Store{path: abs, mode: mode, cfg: cfg, db: db, readonly: readonly}, nil
}

// Close closes the container handle. Safe to call twice.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	openMu.Lock()
	if openHandles[s.path] > 0 {
		openHandles[s.path]--
	}
	openMu.Unlock()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("error in db.Close: %w", err)
	}
	return nil
}

// Do runs fn with the store and guarantees Close on all exit paths.
func (s *Store) Do(fn func(*Store) error) (err error) {
	defer func() {
		closeErr := s.Close()
		if err == nil {
			err = closeErr
		}
	}()
	return fn(s)
}

func (s *Store) Path() string { return s.path }

func (s *Store) ensureOpen() error {
	if s.closed {
		return ErrClosedFile
	}
	return nil
}

func (s *Store) ensureWritable() error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if s.readonly {
		return ErrReadOnly
	}
	return nil
}

// Flush forces buffered modifications to the OS. With fsync it blocks
// until the container confirms durability.
func (s *Store) Flush(ctx context.Context, fsync bool) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	pragma := "PRAGMA wal_checkpoint(PASSIVE)"
	if fsync {
		pragma = "PRAGMA wal_checkpoint(TRUNCATE)"
	}
	if _, err := s.db.ExecContext(ctx, pragma); err != nil {
		return fmt.Errorf("error in wal_checkpoint: %w", err)
	}
	return nil
}

func normalizeKey(key string) string {
	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}
	return key
}

// Keys returns all stored object paths, sorted.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM fs_catalog ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("error in QueryContext: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("error in rows.Scan: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Groups enumerates stored groups with their types.
func (s *Store) Groups(ctx context.Context) ([]GroupInfo, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT path, group_type FROM fs_catalog ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("error in QueryContext: %w", err)
	}
	defer rows.Close()
	var out []GroupInfo
	for rows.Next() {
		var g GroupInfo
		if err := rows.Scan(&g.Path, &g.Type); err != nil {
			return nil, fmt.Errorf("error in rows.Scan: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Walk yields (path, subgroups, leaf names) in preorder starting at
// where ("/" by default).
func (s *Store) Walk(ctx context.Context, where string) ([]WalkEntry, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	if where == "" {
		where = "/"
	}
	where = normalizeKey(where)

	children := map[string]map[string]bool{}
	leaves := map[string][]string{}
	addDir := func(dir string) {
		if _, ok := children[dir]; !ok {
			children[dir] = map[string]bool{}
		}
	}
	addDir(where)
	for _, key := range keys {
		if !strings.HasPrefix(key, strings.TrimSuffix(where, "/")+"/") && key != where {
			continue
		}
		rel := strings.TrimPrefix(key, strings.TrimSuffix(where, "/")+"/")
		parts := strings.Split(rel, "/")
		dir := where
		for i := 0; i < len(parts)-1; i++ {
			addDir(dir)
			children[dir][parts[i]] = true
			if strings.HasSuffix(dir, "/") {
				dir += parts[i]
			} else {
				dir += "/" + parts[i]
			}
			addDir(dir)
		}
		leaves[dir] = append(leaves[dir], parts[len(parts)-1])
	}

	var dirs []string
	for d := range children {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	var out []WalkEntry
	for _, d := range dirs {
		var subs []string
		for c := range children[d] {
			subs = append(subs, c)
		}
		sort.Strings(subs)
		ls := append([]string(nil), leaves[d]...)
		sort.Strings(ls)
		out = append(out, WalkEntry{Path: d, Groups: subs, Leaves: ls})
	}
	return out, nil
}

// Info returns a human-readable listing of the store contents.
func (s *Store) Info(ctx context.Context) (string, error) {
	groups, err := s.Groups(ctx)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "framestore\nFile path: %s\n", s.path)
	if len(groups) == 0 {
		sb.WriteString("Empty\n")
		return sb.String(), nil
	}
	for _, g := range groups {
		fmt.Fprintf(&sb, "%-40s %s\n", g.Path, g.Type)
	}
	return sb.String(), nil
}

func (s *Store) getGroup(ctx context.Context, key string) (*groupRow, error) {
	key = normalizeKey(key)
	row := s.db.QueryRowContext(ctx,
		`SELECT path, group_type, COALESCE(physical, ''), attrs, payload FROM fs_catalog WHERE path = ?`, key)
	var g groupRow
	if err := row.Scan(&g.path, &g.groupType, &g.physical, &g.attrs, &g.payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error in row.Scan: %w", err)
	}
	return &g, nil
}

func (s *Store) upsertGroup(ctx context.Context, g *groupRow) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fs_catalog (path, group_type, physical, attrs, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET
			group_type = excluded.group_type,
			physical = excluded.physical,
			attrs = excluded.attrs,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		g.path, g.groupType, g.physical, g.attrs, g.payload, now, now)
	if err != nil {
		return fmt.Errorf("error in ExecContext: %w", err)
	}
	return nil
}

func (s *Store) deleteGroupRow(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM fs_catalog WHERE path = ?`, normalizeKey(key)); err != nil {
		return fmt.Errorf("error in ExecContext: %w", err)
	}
	return nil
}

func newPhysicalName() string {
	return "d_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Get retrieves the whole object stored at key.
func (s *Store) Get(ctx context.Context, key string) (*Frame, error) {
	return s.Select(ctx, key, nil)
}

// Put stores a frame at key. Overwrites any existing object (table
// format always starts clean on a non-append write).
func (s *Store) Put(ctx context.Context, key string, f *Frame, opts *PutOptions) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}
	if opts == nil {
		opts = &PutOptions{}
	}
	if err := validate.Struct(opts); err != nil {
		return fmt.Errorf("invalid put options: %w", err)
	}
	if opts.Format == "" || opts.Format == "fixed" {
		return s.writeFixed(ctx, key, f, opts)
	}
	return s.writeTable(ctx, key, f, opts, false)
}

// Append appends rows to a table-format object, creating it if missing.
// The existing object (if any) must already be table format.
func (s *Store) Append(ctx context.Context, key string, f *Frame, opts *PutOptions) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}
	if opts == nil {
		opts = &PutOptions{}
	}
	if err := validate.Struct(opts); err != nil {
		return fmt.Errorf("invalid append options: %w", err)
	}
	if opts.Format == "fixed" {
		return fmt.Errorf("can only append to table-format objects: %w", ErrNotTableFormat)
	}
	return s.writeTable(ctx, key, f, opts, true)
}

// Select retrieves the object at key, optionally filtered by a where
// predicate and bounded by [start, stop).
func (s *Store) Select(ctx context.Context, key string, opts *SelectOptions) (*Frame, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &SelectOptions{}
	}
	g, err := s.getGroup(ctx, key)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, normalizeKey(key))
	}
	if g.groupType == groupTypeFixed {
		if opts.Where != nil {
			return nil, fmt.Errorf("cannot select with a where clause on a fixed-format object: %w", ErrNotTableFormat)
		}
		return s.readFixed(g, opts)
	}
	t, err := loadTable(s, g)
	if err != nil {
		return nil, err
	}
	return t.read(ctx, opts.Where, opts.Columns, opts.Start, opts.Stop, opts.Scope)
}

// SelectIter returns a lazy chunked iterator over a select.
func (s *Store) SelectIter(ctx context.Context, key string, opts *SelectOptions) (*TableIterator, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &SelectOptions{}
	}
	g, err := s.getGroup(ctx, key)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, normalizeKey(key))
	}
	if g.groupType != groupTypeTable {
		return nil, fmt.Errorf("cannot iterate a fixed-format object: %w", ErrNotTableFormat)
	}
	t, err := loadTable(s, g)
	if err != nil {
		return nil, err
	}
	return newTableIterator(ctx, t, opts)
}

// SelectColumn reads one column of a table-format object in full. The
// column must be the index or a data column.
func (s *Store) SelectColumn(ctx context.Context, key, column string) (*Array, error) {
	t, err := s.table(ctx, key)
	if err != nil {
		return nil, err
	}
	return t.readColumn(ctx, column)
}

// SelectAsCoordinates returns the row numbers a where predicate matches.
func (s *Store) SelectAsCoordinates(ctx context.Context, key string, where any, start, stop *int64) ([]int64, error) {
	t, err := s.table(ctx, key)
	if err != nil {
		return nil, err
	}
	sel, err := newSelection(t, where, start, stop, nil)
	if err != nil {
		return nil, err
	}
	return sel.selectCoords(ctx)
}

// SelectAsMultiple selects the same rows from several same-length
// table-format objects and concatenates their columns. The where clause
// runs against selector (default: the first key).
func (s *Store) SelectAsMultiple(ctx context.Context, keys []string, where any, selector string, opts *SelectOptions) (*Frame, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("keys cannot be empty")
	}
	if selector == "" {
		selector = keys[0]
	}
	if !utils.ContainsString(keys, selector) {
		return nil, fmt.Errorf("selector %q must be one of the keys", selector)
	}
	if opts == nil {
		opts = &SelectOptions{}
	}

	tables := make([]*Table, len(keys))
	var nrows int64 = -1
	for i, key := range keys {
		t, err := s.table(ctx, key)
		if err != nil {
			return nil, err
		}
		if nrows == -1 {
			nrows = t.nrows
		} else if t.nrows != nrows {
			return nil, fmt.Errorf("all tables must have exactly the same nrows, %s has %d want %d", key, t.nrows, nrows)
		}
		tables[i] = t
	}

	selTable := tables[indexOfStr(keys, selector)]
	sel, err := newSelection(selTable, where, opts.Start, opts.Stop, opts.Scope)
	if err != nil {
		return nil, err
	}
	coords, err := sel.selectCoords(ctx)
	if err != nil {
		return nil, err
	}

	var combined *Frame
	for _, t := range tables {
		part, err := t.readCoordinates(ctx, coords)
		if err != nil {
			return nil, err
		}
		// the deferred filters belong to the selector's predicate and are
		// applied once against its table
		if t == selTable {
			part, err = t.applyFilters(part, sel.filters, sel.jointFilter)
			if err != nil {
				return nil, err
			}
		}
		if combined == nil {
			combined = part
			continue
		}
		if part.NRows() != combined.NRows() {
			part = part.TakeRows(matchIndexRows(combined, part))
		}
		combined.Columns = append(combined.Columns, part.Columns...)
		combined.Cols = append(combined.Cols, part.Cols...)
	}
	if len(opts.Columns) > 0 {
		return combined.SelectColumns(opts.Columns)
	}
	return combined, nil
}

// matchIndexRows aligns part rows to base's index when a filter shrank
// the selector frame.
func matchIndexRows(base, part *Frame) []int64 {
	pos := map[any][]int64{}
	for i := 0; i < part.Index.Len(); i++ {
		v := part.Index.ValueAt(i)
		pos[v] = append(pos[v], int64(i))
	}
	var idx []int64
	for i := 0; i < base.Index.Len(); i++ {
		v := base.Index.ValueAt(i)
		if list := pos[v]; len(list) > 0 {
			idx = append(idx, list[0])
			pos[v] = list[1:]
		}
	}
	return idx
}

// Remove deletes rows matching where (or the entire object when where,
// start and stop are all absent). Returns the number of rows removed,
// or -1 when the whole object was removed.
func (s *Store) Remove(ctx context.Context, key string, where any, start, stop *int64) (int64, error) {
	if err := s.ensureWritable(); err != nil {
		return 0, err
	}
	g, err := s.getGroup(ctx, key)
	if err != nil {
		return 0, err
	}
	if g == nil {
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, normalizeKey(key))
	}

	if where == nil && start == nil && stop == nil {
		if g.groupType == groupTypeTable && g.physical != "" {
			if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q`, g.physical)); err != nil {
				return 0, fmt.Errorf("error dropping physical table: %w", err)
			}
		}
		if err := s.deleteGroupRow(ctx, key); err != nil {
			return 0, err
		}
		return -1, nil
	}

	if g.groupType != groupTypeTable {
		return 0, fmt.Errorf("can only remove with where/start/stop on table-format objects: %w", ErrNotTableFormat)
	}
	t, err := loadTable(s, g)
	if err != nil {
		return 0, err
	}
	return t.delete(ctx, where, start, stop)
}

// CreateTableIndex builds secondary lookup structures for the given
// columns (default: all data-indexable columns).
func (s *Store) CreateTableIndex(ctx context.Context, key string, columns []string, optlevel int, kind string) error {
	if err := s.ensureWritable(); err != nil {
		return err
	}
	t, err := s.table(ctx, key)
	if err != nil {
		return err
	}
	return t.createIndex(ctx, columns, optlevel, kind)
}

func (s *Store) table(ctx context.Context, key string) (*Table, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	g, err := s.getGroup(ctx, key)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, normalizeKey(key))
	}
	if g.groupType != groupTypeTable {
		return nil, fmt.Errorf("%s: %w", normalizeKey(key), ErrNotTableFormat)
	}
	return loadTable(s, g)
}

func indexOfStr(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
