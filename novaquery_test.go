package novaquery

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novaquery/internal"
	"github.com/tuannm99/novaquery/internal/record"
	"github.com/tuannm99/novaquery/internal/sql/sqlerr"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	ss, err := record.SchemaSetFromTypes(map[string]map[string]string{
		"Invoice":  {"id": "Number", "total": "Number", "custId": "Number"},
		"Customer": {"id": "Number", "name": "String"},
	})
	require.NoError(t, err)
	return Open(ss)
}

func TestDB_ExecAndQuery(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Exec("INSERT INTO Invoice (id, total, custId) VALUES (?, ?, ?)", 1, 100, 10)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO Invoice (id, total, custId) VALUES (?, ?, ?)", 2, 30, 11)
	require.NoError(t, err)

	res, err := db.Query("SELECT id FROM Invoice WHERE total > cutoff", map[string]any{"cutoff": 50}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": 1.0}}, res.Records)

	res, err = db.Exec("SELECT Invoice.id FROM Invoice ORDER BY id DESC")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{2.0}, {1.0}}, res.Rows())
}

func TestDB_ExecStatement(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec("INSERT INTO Customer (id, name) VALUES (1, 'acme')")
	require.NoError(t, err)

	q := db.Builder().NewScope()
	cust := q.Table("Customer")
	sel, err := q.Select(q.As(cust.Col("name"), "who"), q.From(cust), q.Where(q.Like(cust.Col("name"), "ac%")))
	require.NoError(t, err)

	res, err := db.ExecStatement(sel, nil, Options{WithTable: true})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"Customer.who": "acme"}}, res.Records)
}

func TestDB_ErrorsKeepStoreIntact(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Exec("INSERT INTO Invoice (id, total) VALUES (1, 'x')")
	require.Error(t, err)
	assert.Equal(t, "eval", sqlerr.Kind(err))
	assert.Equal(t, 0, db.Store().Len("Invoice"))

	_, err = db.Exec("TRUNCATE Invoice")
	require.Error(t, err)
	assert.True(t, sqlerr.IsParse(err))
}

func TestDB_Explain(t *testing.T) {
	db := newTestDB(t)
	out, err := db.Explain("SELECT id FROM Invoice WHERE total > ?", 10)
	require.NoError(t, err)
	assert.Contains(t, out, "where: total > 10")
}

func TestOpenConfig_LoadsSchemaAndData(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	cfg := &internal.NovaQueryConfig{}
	cfg.Schema.Path = write("schema.yaml", "tables:\n  Invoice: {id: Number, total: Number, due: Date}\n")
	cfg.Data.Path = write("data.json", `{"Invoice": [{"id": 1, "total": "100", "due": "2024-1-2"}]}`)
	cfg.Data.CSV = []internal.CSVSource{{Table: "Invoice", Path: write("more.csv", "id,total,due\n2,30,2024-2-3\n")}}

	db, err := OpenConfig(cfg, nil)
	require.NoError(t, err)

	res, err := db.Exec("SELECT id, total, due FROM Invoice ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"id": 1.0, "total": 100.0, "due": "2024-1-2"},
		{"id": 2.0, "total": 30.0, "due": "2024-2-3"},
	}, res.Records)

	var buf bytes.Buffer
	require.NoError(t, db.Dump(&buf))
	assert.Contains(t, buf.String(), `"2024-1-2"`)
}

func TestOpenConfig_Errors(t *testing.T) {
	_, err := OpenConfig(&internal.NovaQueryConfig{}, nil)
	require.ErrorIs(t, err, ErrNoSchema)

	dir := t.TempDir()
	schema := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(schema, []byte("tables:\n  Invoice: {id: Number}\n"), 0o644))

	cfg := &internal.NovaQueryConfig{}
	cfg.Schema.Path = schema
	cfg.Data.CSV = []internal.CSVSource{{Table: "Nope", Path: "x.csv"}}
	_, err = OpenConfig(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared table")
}

func TestDB_PlanCacheReusesSelects(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec("INSERT INTO Invoice (id, total, custId) VALUES (1, 100, 10)")
	require.NoError(t, err)
	assert.Equal(t, 0, db.cache.Len(), "inserts are not cached")

	const q = "SELECT id FROM Invoice WHERE total > 50"
	first, err := db.Exec(q)
	require.NoError(t, err)
	assert.Equal(t, 1, db.cache.Len())

	_, err = db.Exec("INSERT INTO Invoice (id, total, custId) VALUES (2, 60, 10)")
	require.NoError(t, err)
	second, err := db.Exec(q)
	require.NoError(t, err)
	assert.Len(t, first.Records, 1)
	assert.Len(t, second.Records, 2)

	cached, ok := db.cache.Get(q)
	require.True(t, ok)
	parsed, err := db.parse(q, nil)
	require.NoError(t, err)
	assert.Same(t, cached, parsed)

	_, err = db.Exec("SELECT id FROM Invoice WHERE total > ?", 50)
	require.NoError(t, err)
	assert.Equal(t, 1, db.cache.Len(), "text with params is not cached")
}

func TestDB_PlanCacheDisabled(t *testing.T) {
	ss, err := record.SchemaSetFromTypes(map[string]map[string]string{"T": {"a": "Number"}})
	require.NoError(t, err)
	db := Open(ss, WithPlanCache(-1))
	_, err = db.Exec("SELECT a FROM T")
	require.NoError(t, err)
	assert.Equal(t, 0, db.cache.Len())
}
