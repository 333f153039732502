package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novaquery/internal/record"
	"github.com/tuannm99/novaquery/internal/sql/ast"
	"github.com/tuannm99/novaquery/internal/sql/builder"
	"github.com/tuannm99/novaquery/internal/sql/sqlerr"
)

func newTestBuilder(t *testing.T) *builder.Builder {
	t.Helper()
	ss, err := record.SchemaSetFromTypes(map[string]map[string]string{
		"Invoice":  {"id": "Number", "total": "Number", "custId": "Number", "due": "Date"},
		"Customer": {"id": "Number", "name": "String"},
	})
	require.NoError(t, err)
	return builder.New(ss)
}

func parse(t *testing.T, text string, params ...any) ast.Statement {
	t.Helper()
	stmt, err := New(newTestBuilder(t)).Parse(text, params...)
	require.NoError(t, err)
	return stmt
}

func TestParse_SelectWhere(t *testing.T) {
	stmt := parse(t, "SELECT Invoice.* FROM Invoice WHERE total > 50")
	sel, ok := stmt.(*ast.Select)
	require.True(t, ok, "want *ast.Select, got %T", stmt)

	require.Len(t, sel.Columns, 1)
	assert.True(t, sel.Columns[0].(*ast.ColumnRef).IsAll())
	require.NotNil(t, sel.Where)
	assert.IsType(t, &ast.Raw{}, sel.Where.Exprs[0])
	assert.Equal(t, "SELECT Invoice.* FROM Invoice WHERE total > 50", sel.String())
}

func TestParse_StarExpandsEveryTable(t *testing.T) {
	stmt := parse(t, "select *\n  from Invoice,\tCustomer;")
	assert.Equal(t, "SELECT Invoice.*, Customer.* FROM Invoice, Customer", stmt.String())
}

func TestParse_LeftOuterJoin(t *testing.T) {
	stmt := parse(t, "SELECT Invoice.id, Customer.name FROM Invoice LEFT OUTER JOIN Customer "+
		"ON Invoice.custId = Customer.id WHERE Invoice.total > 5 ORDER BY Invoice.id DESC LIMIT 2, 10")
	sel := stmt.(*ast.Select)

	require.Len(t, sel.From.Items, 2)
	j, ok := sel.From.Items[1].(*ast.Join)
	require.True(t, ok)
	assert.Equal(t, ast.LeftOuterJoin, j.Kind)
	require.Len(t, j.On, 1)
	assert.Equal(t, "Invoice.custId = Customer.id", j.On[0].SQL(ast.Flags{}))

	assert.Equal(t,
		"SELECT Invoice.id, Customer.name FROM Invoice LEFT OUTER JOIN Customer ON Invoice.custId = Customer.id "+
			"WHERE Invoice.total > 5 ORDER BY Invoice.id DESC LIMIT 10 OFFSET 2",
		sel.String())
}

func TestParse_JoinForms(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM Invoice JOIN Customer USING (id)":       "SELECT Invoice.*, Customer.* FROM Invoice INNER JOIN Customer USING (id)",
		"SELECT * FROM Invoice LEFT JOIN Customer ON a = b":    "SELECT Invoice.*, Customer.* FROM Invoice LEFT OUTER JOIN Customer ON a = b",
		"SELECT * FROM Invoice CROSS JOIN Customer":            "SELECT Invoice.*, Customer.* FROM Invoice CROSS JOIN Customer",
		"SELECT i.total FROM Invoice AS i":                     "SELECT i.total FROM Invoice AS i",
		"SELECT c.name FROM Invoice i INNER JOIN Customer c ON i.custId = c.id": "SELECT c.name FROM Invoice AS i INNER JOIN Customer AS c ON i.custId = c.id",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, parse(t, in).String())
		})
	}
}

func TestParse_GroupByHaving(t *testing.T) {
	stmt := parse(t, "SELECT custId, COUNT(id) AS c, SUM(total) AS s FROM Invoice GROUP BY custId HAVING c > 1 ORDER BY c DESC")
	sel := stmt.(*ast.Select)

	require.NotNil(t, sel.GroupBy)
	require.NotNil(t, sel.Having)
	agg, ok := sel.Columns[1].(*ast.Aggregate)
	require.True(t, ok, "%T", sel.Columns[1])
	assert.Equal(t, "c", agg.AliasName())
	assert.Same(t, sel.Columns[1], sel.OrderBy.Items[0].Expr)

	assert.Equal(t,
		"SELECT Invoice.custId, COUNT (Invoice.id) AS c, SUM (Invoice.total) AS s FROM Invoice "+
			"GROUP BY Invoice.custId HAVING c > 1 ORDER BY c DESC",
		sel.String())
}

func TestParse_LimitForms(t *testing.T) {
	cases := map[string]ast.Limit{
		"LIMIT 5":            {Total: 5},
		"LIMIT 0":            {Total: 0},
		"LIMIT 3, 4":         {Total: 4, Offset: 3, HasOffset: true},
		"LIMIT 4 OFFSET 3":   {Total: 4, Offset: 3, HasOffset: true},
		"LIMIT ALL":          {Total: -1},
		"limit all offset 2": {Total: -1, Offset: 2, HasOffset: true},
		"LIMIT -1":           {Total: -1},
	}
	for clause, want := range cases {
		t.Run(clause, func(t *testing.T) {
			sel := parse(t, "SELECT * FROM Invoice "+clause).(*ast.Select)
			require.NotNil(t, sel.Limit)
			assert.Equal(t, want, *sel.Limit)
		})
	}
}

func TestParse_Params(t *testing.T) {
	stmt := parse(t, "SELECT * FROM Customer WHERE name = ? AND id > ? AND note = '?'", "O'Brien", 3)
	assert.Equal(t, `SELECT Customer.* FROM Customer WHERE name = 'O\'Brien' AND id > 3 AND note = '?'`, stmt.String())

	stmt = parse(t, "SELECT * FROM Invoice WHERE due < ? OR due IS ?", record.NewDate(2020, time.January, 5), nil)
	assert.Contains(t, stmt.String(), "due < '2020-1-5' OR due IS NULL")

	_, err := New(newTestBuilder(t)).Parse("SELECT * FROM Invoice WHERE id = ?")
	require.Error(t, err)
	assert.True(t, sqlerr.IsParse(err))

	_, err = New(newTestBuilder(t)).Parse("SELECT * FROM Invoice", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many parameters")
}

func TestParse_Insert(t *testing.T) {
	stmt := parse(t, "INSERT INTO Invoice (id,total,custId) VALUES (2,30,11)")
	ins, ok := stmt.(*ast.Insert)
	require.True(t, ok, "want *ast.Insert, got %T", stmt)

	assert.Equal(t, "Invoice", ins.Table.TableName)
	require.Len(t, ins.Values, 3)
	assert.Equal(t, "custId", ins.Values[2].Column)
	assert.Equal(t, 11.0, ins.Values[2].Value.(*ast.Literal).Value)
	assert.Equal(t, "INSERT INTO Invoice (id, total, custId) VALUES (2, 30, 11)", ins.String())
}

func TestParse_Insert_CommaInsideQuotes(t *testing.T) {
	stmt := parse(t, "INSERT INTO Customer (id, name) VALUES (-1, 'a,b')")
	ins := stmt.(*ast.Insert)
	assert.Equal(t, -1.0, ins.Values[0].Value.(*ast.Literal).Value)
	assert.Equal(t, "a,b", ins.Values[1].Value.(*ast.Literal).Value)
}

func TestParse_Update(t *testing.T) {
	stmt := parse(t, "UPDATE Invoice SET total=200, custId = custId + 1 WHERE id=1")
	up, ok := stmt.(*ast.Update)
	require.True(t, ok, "want *ast.Update, got %T", stmt)

	require.Len(t, up.Set, 2)
	assert.Equal(t, "total", up.Set[0].Column)
	assert.Equal(t, "UPDATE Invoice SET total = 200, custId = (Invoice.custId) + (1) WHERE id=1", up.String())
}

func TestParse_Delete(t *testing.T) {
	stmt := parse(t, "DELETE FROM Invoice WHERE id=2")
	d, ok := stmt.(*ast.Destroy)
	require.True(t, ok, "want *ast.Destroy, got %T", stmt)
	assert.Equal(t, "DELETE Invoice.* FROM Invoice WHERE id=2", d.String())

	stmt = parse(t, "DELETE Customer.* FROM Invoice LEFT OUTER JOIN Customer ON Invoice.custId = Customer.id WHERE Invoice.id = 2")
	d = stmt.(*ast.Destroy)
	require.Len(t, d.Select.Columns, 1)
	assert.Equal(t, "Customer", d.Select.Columns[0].(*ast.ColumnRef).Table.TableName)
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		sql   string
		parse bool
		msg   string
	}{
		{"DROP TABLE Invoice", true, "not a valid query type"},
		{"", true, "empty statement"},
		{"SELECT id", true, "missing a FROM clause"},
		{"INSERT Invoice (id) VALUES (1)", true, "missing an INTO clause"},
		{"INSERT INTO Invoice (id, total) VALUES (1)", true, "same number of elements"},
		{"UPDATE Invoice total = 1", true, "missing a SET clause"},
		{"SELECT * FROM Invoice LIMIT x", true, "invalid LIMIT value"},
		{"SELECT * FROM Invoice ORDER BY id WHERE id = 1", true, "WHERE clause must come before ORDER BY"},
		{"SELECT id + FROM Invoice", true, "invalid column expression"},
		{"SELECT * FROM Invoice INNER JOIN Customer", true, "needs ON or USING"},
		{"SELECT * FROM Nope", false, `unknown table "Nope"`},
		{"SELECT Invoice.nope FROM Invoice", false, `unknown column "nope"`},
		{"INSERT INTO Invoice (nope) VALUES (1)", false, `unknown column "nope"`},
		{"SELECT total AS x, id AS x FROM Invoice", false, "alias redefinition: x"},
	}
	for _, tc := range cases {
		t.Run(tc.sql, func(t *testing.T) {
			_, err := New(newTestBuilder(t)).Parse(tc.sql)
			require.Error(t, err)
			if tc.parse {
				assert.True(t, sqlerr.IsParse(err), "want parse error, got %T: %v", err, err)
			} else {
				assert.True(t, sqlerr.IsBuild(err), "want build error, got %T: %v", err, err)
			}
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestParseExpr_Precedence(t *testing.T) {
	b := newTestBuilder(t)
	bind := func(ref string) (ast.Expr, error) { return ast.NewBinding(ref), nil }

	cases := map[string]string{
		"1 + 2 * 3":              "(1) + ((2) * (3))",
		"1 - 2 + 3":              "((1) - (2)) + (3)",
		"a + b + c":              "(a) + (b) + (c)",
		"(a OR b) AND c":         "((a) OR (b)) AND (c)",
		"a OR b AND c":           "(a) OR ((b) AND (c))",
		"NOT x IS NULL":          "NOT ((x) IS NULL)",
		"x IS NOT NULL":          "(x) IS NOT NULL",
		"name NOT LIKE 'a%'":     "NOT ((name) LIKE ('a%'))",
		"-x":                     "- (x)",
		"-5":                     "-5",
		"a <> b":                 "(a) != (b)",
		"a == b":                 "(a) = (b)",
		"COUNT(*)":               "COUNT (1)",
		"sum(x) / count(x)":      "(SUM (x)) / (COUNT (x))",
		"'it''s' = 'it\\'s'":     `('it\'s') = ('it\'s')`,
		"x >= 2.5 AND y <= TRUE": "((x) >= (2.5)) AND ((y) <= (TRUE))",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			e, err := ParseExpr(in, b.NewScope(), bind)
			require.NoError(t, err)
			assert.Equal(t, want, e.SQL(ast.Flags{}))
		})
	}
}

func TestParseExpr_Errors(t *testing.T) {
	b := newTestBuilder(t)
	bind := func(ref string) (ast.Expr, error) { return ast.NewBinding(ref), nil }
	for _, in := range []string{"", "a +", "(a", "a b", "'open", "FOO(1)", "a IS 3", "a ! b"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseExpr(in, b.NewScope(), bind)
			require.Error(t, err)
		})
	}
}

func TestParse_RenderRoundTrip(t *testing.T) {
	b := newTestBuilder(t)
	q := b.NewScope()
	inv := q.Table("Invoice")
	c := q.As(q.Count(inv.Col("id")), "c")
	sel, err := q.Select(
		inv.Col("custId"), c,
		q.From(inv),
		q.Where(q.Gt(inv.Col("total"), 5)),
		q.GroupBy(inv.Col("custId")),
		q.OrderBy(q.Desc(q.Ref("c"))),
		q.Limit(10),
	)
	require.NoError(t, err)

	text := sel.String()
	assert.Equal(t,
		"SELECT Invoice.custId, COUNT (Invoice.id) AS c FROM Invoice WHERE (Invoice.total) > (5) GROUP BY Invoice.custId ORDER BY c DESC LIMIT 10",
		text)

	again, err := New(b).Parse(text)
	require.NoError(t, err)
	assert.Equal(t, text, again.String())
}
