package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novaquery/internal/record"
	"github.com/tuannm99/novaquery/internal/sql/ast"
	"github.com/tuannm99/novaquery/internal/sql/builder"
	"github.com/tuannm99/novaquery/internal/sql/sqlerr"
	"github.com/tuannm99/novaquery/internal/store"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	ss, err := record.SchemaSetFromTypes(map[string]map[string]string{
		"Invoice":  {"id": "Number", "total": "Number", "custId": "Number"},
		"Customer": {"id": "Number", "name": "String"},
		"Event":    {"name": "String", "at": "Date"},
	})
	require.NoError(t, err)
	return NewExecutor(builder.New(ss))
}

func newTestStore() *store.TableStore {
	st := store.New()
	st.Append("Invoice", store.Row{"id": 1.0, "total": 100.0, "custId": 10.0})
	return st
}

func mustExec(t *testing.T, e *Executor, st *store.TableStore, sql string, params ...any) *Result {
	t.Helper()
	res, err := e.ExecSQL(st, sql, params...)
	require.NoError(t, err, sql)
	return res
}

func TestScenario_SelectWhere(t *testing.T) {
	e := newTestExecutor(t)
	res := mustExec(t, e, newTestStore(), "SELECT Invoice.* FROM Invoice WHERE total > 50")
	assert.Equal(t, []map[string]any{{"id": 1.0, "total": 100.0, "custId": 10.0}}, res.Records)
	assert.Equal(t, []string{"custId", "id", "total"}, res.Columns)
	assert.Equal(t, [][]any{{10.0, 1.0, 100.0}}, res.Rows())
}

func TestScenario_InsertThenCount(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()

	res := mustExec(t, e, st, "INSERT INTO Invoice (id,total,custId) VALUES (2,30,11)")
	assert.Equal(t, int64(1), res.AffectedRows)

	res = mustExec(t, e, st, "SELECT COUNT(total) AS c FROM Invoice")
	assert.Equal(t, []map[string]any{{"c": 2.0}}, res.Records)
}

func TestScenario_UpdateThenSelect(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()

	res := mustExec(t, e, st, "UPDATE Invoice SET total=200 WHERE id=1")
	assert.Equal(t, int64(1), res.AffectedRows)

	res = mustExec(t, e, st, "SELECT total FROM Invoice WHERE id=1")
	assert.Equal(t, []map[string]any{{"total": 200.0}}, res.Records)
}

func TestScenario_DeleteThenSelect(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()
	mustExec(t, e, st, "INSERT INTO Invoice (id,total,custId) VALUES (2,30,11)")

	res := mustExec(t, e, st, "DELETE FROM Invoice WHERE id=2")
	assert.Equal(t, int64(1), res.AffectedRows)

	res = mustExec(t, e, st, "SELECT * FROM Invoice")
	require.Len(t, res.Records, 1)
	assert.Equal(t, 1.0, res.Records[0]["id"])
	assert.Equal(t, 1, st.Len("Invoice"))
}

func TestInsert_CoercesAndRoundTrips(t *testing.T) {
	e := newTestExecutor(t)
	st := store.New()

	mustExec(t, e, st, "INSERT INTO Invoice (id, total, custId) VALUES ('7', '8.5', 9)")
	mustExec(t, e, st, "INSERT INTO Customer (id, name) VALUES (?, ?)", 3, "O'Brien")

	res := mustExec(t, e, st, "SELECT * FROM Invoice")
	assert.Equal(t, []map[string]any{{"id": 7.0, "total": 8.5, "custId": 9.0}}, res.Records)

	res = mustExec(t, e, st, "SELECT Customer.* FROM Customer")
	assert.Equal(t, []map[string]any{{"id": 3.0, "name": "O'Brien"}}, res.Records)
}

func TestInsert_IsAtomic(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()

	_, err := e.ExecSQL(st, "INSERT INTO Invoice (id, total) VALUES (5, 1 / 0)")
	require.Error(t, err)
	assert.True(t, sqlerr.IsEval(err))

	_, err = e.ExecSQL(st, "INSERT INTO Invoice (id, total) VALUES (6, 'lots')")
	require.Error(t, err)
	assert.True(t, sqlerr.IsEval(err))

	assert.Equal(t, 1, st.Len("Invoice"))
}

func TestInsert_CreatesTable(t *testing.T) {
	e := newTestExecutor(t)
	st := store.New()
	require.False(t, st.Has("Customer"))

	mustExec(t, e, st, "INSERT INTO Customer (id, name) VALUES (1, 'acme')")
	assert.Equal(t, 1, st.Len("Customer"))
}

func TestSelect_LimitZeroIsEmpty(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()
	for _, sql := range []string{
		"SELECT id FROM Invoice LIMIT 0",
		"SELECT id FROM Invoice WHERE total > 0 ORDER BY id DESC LIMIT 0",
		// the where clause is never evaluated
		"SELECT id FROM Invoice WHERE missing > 0 LIMIT 0",
	} {
		res := mustExec(t, e, st, sql)
		assert.Empty(t, res.Records, sql)
	}
}

func TestSelect_GroupCountAndAvg(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()
	mustExec(t, e, st, "INSERT INTO Invoice (id,total,custId) VALUES (2,30,11)")
	mustExec(t, e, st, "INSERT INTO Invoice (id,total,custId) VALUES (3,50,10)")

	res := mustExec(t, e, st, "SELECT custId, COUNT(id) AS n, SUM(total) AS s, AVG(total) AS a "+
		"FROM Invoice GROUP BY custId ORDER BY custId")
	require.Len(t, res.Records, 2)
	assert.Equal(t, map[string]any{"custId": 10.0, "n": 2.0, "s": 150.0, "a": 75.0}, res.Records[0])
	assert.Equal(t, map[string]any{"custId": 11.0, "n": 1.0, "s": 30.0, "a": 30.0}, res.Records[1])
}

func TestSelect_LeftOuterJoinPreservesOuterRows(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()
	mustExec(t, e, st, "INSERT INTO Customer (id, name) VALUES (10, 'acme')")
	mustExec(t, e, st, "INSERT INTO Customer (id, name) VALUES (20, 'zeta')")

	res := mustExec(t, e, st, "SELECT Customer.name, Invoice.id FROM Customer "+
		"LEFT OUTER JOIN Invoice ON Invoice.custId = Customer.id ORDER BY Customer.name")
	assert.Equal(t, []map[string]any{
		{"name": "acme", "id": 1.0},
		{"name": "zeta", "id": nil},
	}, res.Records)
}

func newJoinFixture(t *testing.T) (*Executor, *store.TableStore) {
	t.Helper()
	ss, err := record.SchemaSetFromTypes(map[string]map[string]string{
		"A": {"id": "Number"},
		"B": {"id": "Number", "aid": "Number", "x": "Number"},
		"C": {"bid": "Number", "y": "String"},
	})
	require.NoError(t, err)

	st := store.New()
	st.Append("A", store.Row{"id": 1.0})
	st.Append("A", store.Row{"id": 2.0})
	st.Append("A", store.Row{"id": 3.0})
	st.Append("B", store.Row{"id": 7.0, "aid": 1.0, "x": 5.0})
	st.Append("B", store.Row{"id": 8.0, "aid": 3.0, "x": 6.0})
	st.Append("C", store.Row{"bid": 8.0, "y": "deep"})
	return NewExecutor(builder.New(ss)), st
}

func TestSelect_LeftOuterJoinWhereFiltersOuterFallback(t *testing.T) {
	e, st := newJoinFixture(t)

	// A.id 1 and 3 have a B match that fails WHERE; with nothing produced
	// for them the empty B row is tried and passes.
	res := mustExec(t, e, st, "SELECT A.id, B.x FROM A "+
		"LEFT OUTER JOIN B ON A.id = B.aid WHERE B.x IS NULL")
	assert.Equal(t, []map[string]any{
		{"id": 1.0, "x": nil},
		{"id": 2.0, "x": nil},
		{"id": 3.0, "x": nil},
	}, res.Records)

	// Outer rows with a surviving match get no empty row.
	res = mustExec(t, e, st, "SELECT A.id, B.x FROM A "+
		"LEFT OUTER JOIN B ON A.id = B.aid WHERE B.x IS NULL OR B.x > 5")
	assert.Equal(t, []map[string]any{
		{"id": 1.0, "x": nil},
		{"id": 2.0, "x": nil},
		{"id": 3.0, "x": 6.0},
	}, res.Records)

	// The empty row still has to pass WHERE.
	res = mustExec(t, e, st, "SELECT A.id, B.x FROM A "+
		"LEFT OUTER JOIN B ON A.id = B.aid WHERE A.id > 1")
	assert.Equal(t, []map[string]any{
		{"id": 2.0, "x": nil},
		{"id": 3.0, "x": 6.0},
	}, res.Records)
}

func TestSelect_ChainedLeftOuterJoins(t *testing.T) {
	e, st := newJoinFixture(t)

	res := mustExec(t, e, st, "SELECT A.id, B.x, C.y FROM A "+
		"LEFT OUTER JOIN B ON A.id = B.aid "+
		"LEFT OUTER JOIN C ON B.id = C.bid")
	assert.Equal(t, []map[string]any{
		{"id": 1.0, "x": 5.0, "y": nil},
		{"id": 2.0, "x": nil, "y": nil},
		{"id": 3.0, "x": 6.0, "y": "deep"},
	}, res.Records)

	// A failing WHERE on the last table falls back level by level: C first,
	// then B together with C.
	res = mustExec(t, e, st, "SELECT A.id, B.x, C.y FROM A "+
		"LEFT OUTER JOIN B ON A.id = B.aid "+
		"LEFT OUTER JOIN C ON B.id = C.bid WHERE C.y IS NULL")
	assert.Equal(t, []map[string]any{
		{"id": 1.0, "x": 5.0, "y": nil},
		{"id": 2.0, "x": nil, "y": nil},
		{"id": 3.0, "x": 6.0, "y": nil},
	}, res.Records)
}

func TestSelect_CompiledOnceSameResults(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()
	stmt, err := e.Parse("SELECT id, total * 2 AS double FROM Invoice WHERE total > 50")
	require.NoError(t, err)

	first, err := e.Execute(stmt, st, nil, Options{})
	require.NoError(t, err)
	second, err := e.Execute(stmt, st, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, []map[string]any{{"id": 1.0, "double": 200.0}}, first.Records)
}

func TestSelect_RoundTripThroughText(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()
	mustExec(t, e, st, "INSERT INTO Invoice (id,total,custId) VALUES (2,30,11)")
	mustExec(t, e, st, "INSERT INTO Invoice (id,total,custId) VALUES (3,50,10)")
	mustExec(t, e, st, "INSERT INTO Customer (id, name) VALUES (10, 'acme')")

	q := e.Builder().NewScope()
	inv, cust := q.Table("Invoice"), q.Table("Customer")
	sum := q.As(q.Sum(inv.Col("total")), "s")
	built, err := q.Select(
		inv.Col("custId"), sum,
		q.From(inv, q.LeftOuterJoin(cust).On(q.Eq(inv.Col("custId"), cust.Col("id")))),
		q.Where(q.Gt(inv.Col("total"), 10)),
		q.GroupBy(inv.Col("custId")),
		q.Having(q.Gt(q.Ref("s"), 0)),
		q.OrderBy(q.Desc(q.Ref("s"))),
		q.Limit(5),
	)
	require.NoError(t, err)

	reparsed, err := e.Parse(built.String())
	require.NoError(t, err)
	assert.Equal(t, built.String(), reparsed.String())

	want, err := e.Execute(built, st, nil, Options{})
	require.NoError(t, err)
	got, err := e.Execute(reparsed, st, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, want.Records, got.Records)
	assert.Equal(t, []map[string]any{
		{"custId": 10.0, "s": 150.0},
		{"custId": 11.0, "s": 30.0},
	}, got.Records)
}

func TestSelect_DatesRenderAsText(t *testing.T) {
	e := newTestExecutor(t)
	st := store.New()
	mustExec(t, e, st, "INSERT INTO Event (name, at) VALUES ('launch', '2024-03-05')")
	mustExec(t, e, st, "INSERT INTO Event (name, at) VALUES ('kickoff', '2023-12-1')")

	assert.Equal(t, record.NewDate(2024, 3, 5), st.Table("Event")[0]["at"])

	res := mustExec(t, e, st, "SELECT name, at FROM Event WHERE at > '2024-1-1'")
	assert.Equal(t, []map[string]any{{"name": "launch", "at": "2024-3-5"}}, res.Records)

	res = mustExec(t, e, st, "SELECT name FROM Event ORDER BY at")
	assert.Equal(t, "kickoff", res.Records[0]["name"])
}

func TestSelect_WithTableOption(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()
	stmt, err := e.Parse("SELECT Invoice.id, total FROM Invoice")
	require.NoError(t, err)

	res, err := e.Execute(stmt, st, nil, Options{WithTable: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Invoice.id", "Invoice.total"}, res.Columns)
	assert.Equal(t, []map[string]any{{"Invoice.id": 1.0, "Invoice.total": 100.0}}, res.Records)
}

func TestSelect_ReturnReference(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()
	stmt, err := e.Parse("SELECT id FROM Invoice WHERE id = 1")
	require.NoError(t, err)

	res, err := e.Execute(stmt, st, nil, Options{ReturnReference: true})
	require.NoError(t, err)
	require.Len(t, res.Tuples, 1)
	assert.Nil(t, res.Records)

	res.Tuples[0][0]["total"] = 1.0
	assert.Equal(t, 1.0, st.Table("Invoice")[0]["total"])
}

func TestSelect_Bindings(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()
	stmt, err := e.Parse("SELECT id FROM Invoice WHERE total >= floor")
	require.NoError(t, err)

	res, err := e.Execute(stmt, st, map[string]any{"floor": 100}, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)

	res, err = e.Execute(stmt, st, map[string]any{"floor": 101}, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Records)

	_, err = e.Execute(stmt, st, nil, Options{})
	require.Error(t, err)
	assert.True(t, sqlerr.IsEval(err))
}

func TestUpdate_ExpressionAndCoercion(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()
	mustExec(t, e, st, "INSERT INTO Invoice (id,total,custId) VALUES (2,30,11)")

	res := mustExec(t, e, st, "UPDATE Invoice SET total = total + 1, custId = '12' WHERE total < 100")
	assert.Equal(t, int64(1), res.AffectedRows)
	assert.Equal(t, store.Row{"id": 2.0, "total": 31.0, "custId": 12.0}, st.Table("Invoice")[1])

	res = mustExec(t, e, st, "UPDATE Invoice SET custId = 0")
	assert.Equal(t, int64(2), res.AffectedRows)

	_, err := e.ExecSQL(st, "UPDATE Invoice SET total = 'many'")
	require.Error(t, err)
	assert.True(t, sqlerr.IsEval(err))
}

func TestDestroy_ScopedToNamedTable(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()
	mustExec(t, e, st, "INSERT INTO Invoice (id,total,custId) VALUES (2,30,11)")
	mustExec(t, e, st, "INSERT INTO Customer (id, name) VALUES (10, 'acme')")
	mustExec(t, e, st, "INSERT INTO Customer (id, name) VALUES (11, 'zeta')")

	res := mustExec(t, e, st, "DELETE Invoice.* FROM Customer INNER JOIN Invoice "+
		"ON Invoice.custId = Customer.id WHERE Customer.name = 'acme'")
	assert.Equal(t, int64(1), res.AffectedRows)
	assert.Equal(t, 1, st.Len("Invoice"))
	assert.Equal(t, 2.0, st.Table("Invoice")[0]["id"])
	assert.Equal(t, 2, st.Len("Customer"))
}

func TestExplain(t *testing.T) {
	e := newTestExecutor(t)
	stmt, err := e.Parse("SELECT id FROM Invoice WHERE total = 1 ORDER BY id")
	require.NoError(t, err)
	out, err := e.Explain(stmt)
	require.NoError(t, err)
	assert.Contains(t, out, "where: total == 1")
	assert.Contains(t, out, "order: ")

	ins, err := e.Parse("INSERT INTO Invoice (id) VALUES (1)")
	require.NoError(t, err)
	_, err = e.Explain(ins)
	require.Error(t, err)
}

func TestExecSQL_Errors(t *testing.T) {
	e := newTestExecutor(t)
	st := newTestStore()

	_, err := e.ExecSQL(st, "DROP TABLE Invoice")
	require.Error(t, err)
	assert.True(t, sqlerr.IsParse(err))

	_, err = e.ExecSQL(st, "SELECT nope.id FROM Invoice")
	require.Error(t, err)
	assert.True(t, sqlerr.IsBuild(err))

	_, err = e.ExecSQL(st, "SELECT id FROM Invoice WHERE total >")
	require.Error(t, err)
	assert.True(t, sqlerr.IsEval(err))

	_, err = e.Execute(&ast.Select{}, st, nil, Options{})
	require.Error(t, err)

	_, err = e.Execute(&ast.Select{}, nil, nil, Options{})
	require.Error(t, err)
}
