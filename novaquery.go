// Package novaquery is the top-level facade: a schema set, an in-memory
// table store and an executor, with statements serialized by a mutex.
package novaquery

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tuannm99/novaquery/internal"
	"github.com/tuannm99/novaquery/internal/metrics"
	"github.com/tuannm99/novaquery/internal/plancache"
	"github.com/tuannm99/novaquery/internal/record"
	"github.com/tuannm99/novaquery/internal/sql/ast"
	"github.com/tuannm99/novaquery/internal/sql/builder"
	"github.com/tuannm99/novaquery/internal/sql/executor"
	"github.com/tuannm99/novaquery/internal/sql/sqlerr"
	"github.com/tuannm99/novaquery/internal/store"
)

type (
	Result    = executor.Result
	Options   = executor.Options
	Statement = ast.Statement
)

var ErrNoSchema = errors.New("novaquery: no schema configured")

type DB struct {
	mu    sync.Mutex
	ex    *executor.Executor
	st    *store.TableStore
	cache *plancache.Cache
	log   *slog.Logger
}

type Option func(*DB)

func WithLogger(l *slog.Logger) Option {
	return func(db *DB) { db.log = l }
}

// WithStore runs statements against st instead of a fresh empty store.
func WithStore(st *store.TableStore) Option {
	return func(db *DB) { db.st = st }
}

// WithPlanCache sizes the statement cache. A negative capacity disables it.
func WithPlanCache(capacity int) Option {
	return func(db *DB) {
		if capacity < 0 {
			db.cache = nil
			return
		}
		db.cache = plancache.New(capacity)
	}
}

func Open(ss *record.SchemaSet, opts ...Option) *DB {
	db := &DB{
		ex:    executor.NewExecutor(builder.New(ss)),
		st:    store.New(),
		cache: plancache.New(plancache.DefaultCapacity),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// OpenConfig builds a DB from the schema and data sections of cfg.
func OpenConfig(cfg *internal.NovaQueryConfig, log *slog.Logger) (*DB, error) {
	if cfg.Schema.Path == "" {
		return nil, ErrNoSchema
	}
	if log == nil {
		log = slog.Default()
	}
	ss, err := internal.LoadSchemaFile(cfg.Schema.Path)
	if err != nil {
		return nil, err
	}
	db := Open(ss, WithLogger(log), WithPlanCache(cfg.Cache.Statements))

	if cfg.Data.Path != "" {
		if err := db.loadFile(cfg.Data.Path, func(r io.Reader) error {
			return db.st.LoadJSON(r, ss)
		}); err != nil {
			return nil, err
		}
	}
	for _, src := range cfg.Data.CSV {
		schema, ok := ss.Lookup(src.Table)
		if !ok {
			return nil, fmt.Errorf("novaquery: csv for undeclared table %q", src.Table)
		}
		if err := db.loadFile(src.Path, func(r io.Reader) error {
			n, err := db.st.LoadCSV(r, *schema)
			if err == nil {
				log.Info("loaded csv", "table", src.Table, "rows", n)
			}
			return err
		}); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func (db *DB) loadFile(path string, load func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("novaquery: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := load(f); err != nil {
		return fmt.Errorf("novaquery: load %s: %w", path, err)
	}
	return nil
}

// Builder returns the statement builder for this DB's schemas.
func (db *DB) Builder() *builder.Builder { return db.ex.Builder() }

// Store returns the underlying table store. Callers touching it directly
// must not run statements at the same time.
func (db *DB) Store() *store.TableStore { return db.st }

// Parse turns text into a statement without running it.
func (db *DB) Parse(sql string, params ...any) (Statement, error) {
	return db.ex.Parse(sql, params...)
}

// Exec parses and runs one statement.
func (db *DB) Exec(sql string, params ...any) (*Result, error) {
	return db.Query(sql, nil, Options{}, params...)
}

// Query parses and runs one statement with bindings and options.
func (db *DB) Query(sql string, bindings map[string]any, opts Options, params ...any) (*Result, error) {
	started := time.Now()
	stmt, err := db.parse(sql, params)
	if err != nil {
		db.observe("", started, nil, err)
		return nil, err
	}
	return db.run(stmt, bindings, opts, started)
}

// ExecStatement runs a statement built programmatically. With
// ReturnReference the returned tuples are live rows; writing through them
// bypasses the DB's lock.
func (db *DB) ExecStatement(stmt Statement, bindings map[string]any, opts Options) (*Result, error) {
	return db.run(stmt, bindings, opts, time.Now())
}

// Explain renders the compiled operators of a SELECT, UPDATE or DELETE.
func (db *DB) Explain(sql string, params ...any) (string, error) {
	stmt, err := db.parse(sql, params)
	if err != nil {
		return "", err
	}
	return db.ex.Explain(stmt)
}

// parse reuses cached SELECT and DELETE statements, whose compiled
// operators live on the statement. Text with params is never cached.
func (db *DB) parse(sql string, params []any) (Statement, error) {
	if len(params) > 0 {
		return db.ex.Parse(sql, params...)
	}
	if stmt, ok := db.cache.Get(sql); ok {
		return stmt, nil
	}
	stmt, err := db.ex.Parse(sql)
	if err != nil {
		return nil, err
	}
	switch stmt.(type) {
	case *ast.Select, *ast.Destroy:
		db.cache.Put(sql, stmt)
	}
	return stmt, nil
}

// Dump writes the store as a JSON snapshot.
func (db *DB) Dump(w io.Writer) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.st.DumpJSON(w)
}

func (db *DB) run(stmt Statement, bindings map[string]any, opts Options, started time.Time) (*Result, error) {
	db.mu.Lock()
	res, err := db.ex.Execute(stmt, db.st, bindings, opts)
	db.mu.Unlock()

	db.observe(stmt.Kind(), started, res, err)
	return res, err
}

func (db *DB) observe(kind string, started time.Time, res *Result, err error) {
	if err != nil {
		db.log.Warn("statement failed", "kind", kind, "error_kind", sqlerr.Kind(err), "err", err)
		metrics.ObserveStatement(kind, sqlerr.Kind(err), started, 0)
		return
	}
	rows := 0
	if kind == "SELECT" {
		rows = len(res.Records)
	}
	db.log.Debug("statement", "kind", kind, "affected", res.AffectedRows,
		"elapsed", time.Since(started))
	metrics.ObserveStatement(kind, "ok", started, rows)
}
