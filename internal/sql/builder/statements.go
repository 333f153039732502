package builder

import (
	"strings"

	"github.com/tuannm99/novaquery/internal/sql/ast"
	"github.com/tuannm99/novaquery/internal/sql/sqlerr"
)

// Select assembles a query from column expressions followed by clauses.
// Columns come first; a *ast.Table in column position means all of its
// columns. Exactly one From is required.
func (s *Scope) Select(args ...any) (*ast.Select, error) {
	sel := s.query("SELECT", 1, args)
	if err := s.finish(); err != nil {
		return nil, err
	}
	return sel, nil
}

// Destroy assembles a DELETE. Its columns name the tables whose matched rows
// are cleared; with none, every FROM table is cleared.
func (s *Scope) Destroy(args ...any) (*ast.Destroy, error) {
	sel := s.query("DESTROY", 0, args)
	if sel != nil && len(sel.Columns) == 0 && sel.From != nil {
		for _, t := range sel.From.Tables() {
			sel.Columns = append(sel.Columns, t.All())
		}
	}
	if err := s.finish(); err != nil {
		return nil, err
	}
	return &ast.Destroy{Select: sel}, nil
}

func (s *Scope) query(name string, minCols int, args []any) *ast.Select {
	sel := &ast.Select{}
	clauses := false
	once := func(clause string, taken bool) bool {
		if taken {
			s.fail(sqlerr.Build(name, "too many %s clauses", clause))
			return false
		}
		return true
	}

	for _, a := range args {
		switch x := a.(type) {
		case *ast.From:
			clauses = true
			if once("FROM", sel.From != nil) {
				sel.From = x
			}
		case *ast.Where:
			clauses = true
			if once("WHERE", sel.Where != nil) {
				sel.Where = x
			}
		case *ast.GroupBy:
			clauses = true
			if once("GROUP_BY", sel.GroupBy != nil) {
				sel.GroupBy = x
			}
		case *ast.Having:
			clauses = true
			if once("HAVING", sel.Having != nil) {
				sel.Having = x
			}
		case *ast.OrderBy:
			clauses = true
			if once("ORDER_BY", sel.OrderBy != nil) {
				sel.OrderBy = x
			}
		case *ast.Limit:
			clauses = true
			if once("LIMIT", sel.Limit != nil) {
				sel.Limit = x
			}
		case *ast.Table:
			if clauses {
				s.fail(sqlerr.Build(name, "column %s after clauses", x.Alias))
				continue
			}
			sel.Columns = append(sel.Columns, x.All())
		default:
			if clauses {
				s.fail(sqlerr.Build(name, "wrong type for %s to %s", describe(a), name))
				continue
			}
			sel.Columns = append(sel.Columns, s.expr("COLUMNS", a))
		}
	}

	if len(sel.Columns) < minCols {
		s.fail(sqlerr.Build(name, "not enough arguments for COLUMNS"))
	}
	if sel.From == nil {
		s.fail(sqlerr.Build(name, "missing FROM clause"))
		return sel
	}
	if sel.Having != nil && sel.GroupBy == nil && len(ast.Aggregates(sel.Columns...)) == 0 {
		s.fail(sqlerr.Build("HAVING", "HAVING needs GROUP BY or an aggregate column"))
	}

	s.checkScope(sel.From, sel.Columns...)
	for _, it := range sel.From.Items {
		if j, ok := it.(*ast.Join); ok {
			s.checkScope(sel.From, j.On...)
			s.checkUsing(sel.From, j)
		}
	}
	if sel.Where != nil {
		s.checkScope(sel.From, sel.Where.Exprs...)
		if aggs := ast.Aggregates(sel.Where.Exprs...); len(aggs) > 0 {
			s.fail(sqlerr.Build("WHERE", "aggregate %s in WHERE; use HAVING", aggs[0].Name()))
		}
	}
	if sel.GroupBy != nil {
		s.checkScope(sel.From, sel.GroupBy.Exprs...)
	}
	if sel.OrderBy != nil {
		for _, it := range sel.OrderBy.Items {
			s.checkScope(sel.From, it.Expr)
		}
	}
	return sel
}

// checkScope requires every column ref under exprs to belong to a FROM table.
func (s *Scope) checkScope(from *ast.From, exprs ...ast.Expr) {
	tables := from.Tables()
	for _, e := range exprs {
		ast.Walk(e, func(n ast.Expr) bool {
			c, ok := n.(*ast.ColumnRef)
			if !ok {
				return true
			}
			for _, t := range tables {
				if t == c.Table {
					return true
				}
			}
			s.fail(sqlerr.Build("FROM", "column %s references a table missing from FROM", c.QualifiedName()))
			return false
		})
	}
}

func (s *Scope) checkUsing(from *ast.From, j *ast.Join) {
	if len(j.Using) == 0 {
		return
	}
	idx := -1
	for i, it := range from.Items {
		if it == ast.FromItem(j) {
			idx = i
		}
	}
	if idx <= 0 {
		return
	}
	prev := from.Items[idx-1].Source()
	for _, col := range j.Using {
		if prev.Col(col) == nil || j.Table.Col(col) == nil {
			s.fail(sqlerr.Build("USING", "column %s is not shared by %s and %s", col, prev.Alias, j.Table.Alias))
		}
	}
}

// Insert appends one row to t. Values must not reference columns.
func (s *Scope) Insert(t *ast.Table, sets ...ast.Assignment) (*ast.Insert, error) {
	s.checkArgs("INSERT", len(sets), 1, -1)
	s.checkAssignments("INSERT", t, sets, false)
	if err := s.finish(); err != nil {
		return nil, err
	}
	return &ast.Insert{Table: t, Values: sets}, nil
}

// Update takes the target table, one or more Set assignments and an
// optional Where.
func (s *Scope) Update(t *ast.Table, args ...any) (*ast.Update, error) {
	up := &ast.Update{From: &ast.From{Items: []ast.FromItem{t}}}
	for _, a := range args {
		switch x := a.(type) {
		case ast.Assignment:
			up.Set = append(up.Set, x)
		case []ast.Assignment:
			up.Set = append(up.Set, x...)
		case *ast.Where:
			if up.Where != nil {
				s.fail(sqlerr.Build("UPDATE", "too many WHERE clauses"))
				continue
			}
			up.Where = x
		default:
			s.fail(sqlerr.Build("UPDATE", "wrong type for %s to UPDATE", describe(a)))
		}
	}
	s.checkArgs("SET", len(up.Set), 1, -1)
	s.checkAssignments("UPDATE", t, up.Set, true)
	if up.Where != nil {
		s.checkScope(up.From, up.Where.Exprs...)
	}
	if err := s.finish(); err != nil {
		return nil, err
	}
	return up, nil
}

func (s *Scope) checkAssignments(clause string, t *ast.Table, sets []ast.Assignment, rowRefs bool) {
	seen := make(map[string]bool, len(sets))
	for _, a := range sets {
		col := strings.TrimPrefix(a.Column, t.Alias+".")
		if t.Col(col) == nil {
			s.fail(sqlerr.Build(clause, "unknown column %q in table %q", a.Column, t.TableName))
			continue
		}
		if seen[col] {
			s.fail(sqlerr.Build(clause, "column %s assigned twice", col))
		}
		seen[col] = true
		if a.Value == nil {
			s.fail(sqlerr.Build(clause, "missing value for %s", col))
			continue
		}
		if aggs := ast.Aggregates(a.Value); len(aggs) > 0 {
			s.fail(sqlerr.Build(clause, "aggregate %s in %s value", aggs[0].Name(), clause))
		}
		if rowRefs {
			s.checkScope(&ast.From{Items: []ast.FromItem{t}}, a.Value)
			continue
		}
		ast.Walk(a.Value, func(n ast.Expr) bool {
			if c, ok := n.(*ast.ColumnRef); ok {
				s.fail(sqlerr.Build(clause, "%s value cannot reference column %s", clause, c.QualifiedName()))
				return false
			}
			return true
		})
	}
}

// Resolve names a column the way statement text does: "alias.col" against
// the FROM tables, a bare column declared by exactly one FROM table, then an
// alias registered in this scope. Anything else falls back to Col.
func (s *Scope) Resolve(from *ast.From, ref string) ast.Expr {
	if from == nil {
		return s.Col(ref)
	}
	tables := from.Tables()
	if tbl, col, ok := strings.Cut(ref, "."); ok {
		for _, t := range tables {
			if t.Alias != tbl {
				continue
			}
			if col == ast.AllColumns {
				return t.All()
			}
			if c := t.Col(col); c != nil {
				return c
			}
			s.fail(sqlerr.Build("COLUMN", "unknown column %q in table %q", col, tbl))
			return &ast.ColumnRef{Column: col, Alias: col, Table: t}
		}
		return s.Col(ref)
	}

	var found *ast.ColumnRef
	for _, t := range tables {
		if c := t.Col(ref); c != nil {
			if found != nil {
				s.fail(sqlerr.Build("COLUMN", "ambiguous column %q", ref))
				return found
			}
			found = c
		}
	}
	if found != nil {
		return found
	}
	return s.Col(ref)
}
