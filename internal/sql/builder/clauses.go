package builder

import (
	"github.com/tuannm99/novaquery/internal/sql/ast"
	"github.com/tuannm99/novaquery/internal/sql/sqlerr"
)

// JoinClause is a join under construction; finish it with On or Using.
type JoinClause struct {
	s *Scope
	j *ast.Join
}

func (s *Scope) join(kind ast.JoinKind, t *ast.Table) *JoinClause {
	return &JoinClause{s: s, j: &ast.Join{Kind: kind, Table: t}}
}

func (s *Scope) InnerJoin(t *ast.Table) *JoinClause     { return s.join(ast.InnerJoin, t) }
func (s *Scope) LeftOuterJoin(t *ast.Table) *JoinClause { return s.join(ast.LeftOuterJoin, t) }
func (s *Scope) CrossJoin(t *ast.Table) *JoinClause     { return s.join(ast.CrossJoin, t) }

func (c *JoinClause) On(exprs ...any) *JoinClause {
	if c.s.checkArgs("ON", len(exprs), 1, -1) {
		c.j.On = c.s.strictExprs("ON", exprs)
	}
	return c
}

func (c *JoinClause) Using(cols ...string) *JoinClause {
	if c.s.checkArgs("USING", len(cols), 1, -1) {
		c.j.Using = cols
	}
	return c
}

// Join returns the join node.
func (c *JoinClause) Join() *ast.Join { return c.j }

func (s *Scope) From(items ...any) *ast.From {
	s.checkArgs("FROM", len(items), 1, -1)
	f := &ast.From{}
	for i, it := range items {
		switch x := it.(type) {
		case *ast.Table:
			f.Items = append(f.Items, x)
		case *JoinClause:
			if i == 0 {
				s.fail(sqlerr.Build("FROM", "%s JOIN cannot start a FROM list", x.j.Kind))
			}
			f.Items = append(f.Items, x.j)
		case *ast.Join:
			f.Items = append(f.Items, x)
		default:
			s.fail(sqlerr.Build("FROM", "wrong type for %s to FROM", describe(it)))
		}
	}

	seen := make(map[string]bool, len(f.Items))
	for _, t := range f.Tables() {
		if seen[t.Alias] {
			s.fail(sqlerr.Build("FROM", "table %s appears twice; alias one of them", t.Alias))
		}
		seen[t.Alias] = true
	}
	return f
}

func (s *Scope) Where(exprs ...any) *ast.Where {
	s.checkArgs("WHERE", len(exprs), 1, -1)
	return &ast.Where{Exprs: s.strictExprs("WHERE", exprs)}
}

// WhereSQL wraps predicate text as the WHERE clause.
func (s *Scope) WhereSQL(text string) *ast.Where {
	return &ast.Where{Exprs: []ast.Expr{ast.NewRaw(text)}}
}

func (s *Scope) GroupBy(exprs ...any) *ast.GroupBy {
	s.checkArgs("GROUP_BY", len(exprs), 1, -1)
	return &ast.GroupBy{Exprs: s.exprs("GROUP_BY", exprs)}
}

func (s *Scope) Having(exprs ...any) *ast.Having {
	s.checkArgs("HAVING", len(exprs), 1, -1)
	return &ast.Having{Exprs: s.strictExprs("HAVING", exprs)}
}

// HavingSQL wraps predicate text over projected aliases as the HAVING clause.
func (s *Scope) HavingSQL(text string) *ast.Having {
	return &ast.Having{Exprs: []ast.Expr{ast.NewRaw(text)}}
}

func (s *Scope) Asc(e any) *ast.OrderItem {
	return &ast.OrderItem{Expr: s.expr("ASC", e), Dir: ast.Asc}
}

func (s *Scope) Desc(e any) *ast.OrderItem {
	return &ast.OrderItem{Expr: s.expr("DESC", e), Dir: ast.Desc}
}

// OrderBy takes order items or bare expressions, which sort ascending.
func (s *Scope) OrderBy(items ...any) *ast.OrderBy {
	s.checkArgs("ORDER_BY", len(items), 1, -1)
	ob := &ast.OrderBy{}
	for _, it := range items {
		if oi, ok := it.(*ast.OrderItem); ok {
			ob.Items = append(ob.Items, oi)
			continue
		}
		ob.Items = append(ob.Items, &ast.OrderItem{Expr: s.expr("ORDER_BY", it), Dir: ast.Asc})
	}
	return ob
}

// Limit keeps the first total records; a negative total is unbounded.
func (s *Scope) Limit(total int) *ast.Limit {
	return &ast.Limit{Total: total}
}

// LimitOffset skips offset records, then keeps total.
func (s *Scope) LimitOffset(offset, total int) *ast.Limit {
	if offset < 0 {
		s.fail(sqlerr.Build("LIMIT", "negative offset %d", offset))
		offset = 0
	}
	return &ast.Limit{Total: total, Offset: offset, HasOffset: true}
}

// LimitAll skips offset records and keeps the rest.
func (s *Scope) LimitAll(offset int) *ast.Limit {
	return s.LimitOffset(offset, -1)
}

// Set is one INSERT field or UPDATE assignment.
func (s *Scope) Set(column string, v any) ast.Assignment {
	return ast.Assignment{Column: column, Value: s.expr("SET", v)}
}
