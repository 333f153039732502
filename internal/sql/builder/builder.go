// Package builder assembles statements programmatically.
//
// A Builder is derived once from a SchemaSet and exposes its tables by name.
// Each statement is built inside a Scope: the scope holds aliases registered
// with As while the statement is being assembled, and the first error any
// clause constructor hit. The terminal constructors (Select, Insert, Update,
// Destroy) return that error and unwind the aliases, so a failed statement is
// never returned half-built.
//
//	q := b.NewScope()
//	inv := q.Table("Invoice")
//	sel, err := q.Select(
//		inv.All(),
//		q.From(inv),
//		q.Where(q.Gt(inv.Col("total"), 50)),
//	)
package builder

import (
	"fmt"
	"strings"
	"time"

	"github.com/tuannm99/novaquery/internal/record"
	"github.com/tuannm99/novaquery/internal/sql/ast"
	"github.com/tuannm99/novaquery/internal/sql/sqlerr"
)

type Builder struct {
	schemas *record.SchemaSet
	tables  map[string]*ast.Table
}

func New(ss *record.SchemaSet) *Builder {
	b := &Builder{schemas: ss, tables: make(map[string]*ast.Table)}
	for _, name := range ss.Names() {
		s, _ := ss.Lookup(name)
		b.tables[name] = ast.NewTable(s, "")
	}
	return b
}

func (b *Builder) Schemas() *record.SchemaSet { return b.schemas }

// Table returns the shared reference for a declared table.
func (b *Builder) Table(name string) (*ast.Table, bool) {
	t, ok := b.tables[name]
	return t, ok
}

// NewScope starts a statement-local scope.
func (b *Builder) NewScope() *Scope {
	return &Scope{b: b, aliases: make(map[string]any)}
}

// Scope is the mutable context one statement is built in. It is not safe
// for concurrent use.
type Scope struct {
	b       *Builder
	aliases map[string]any // *ast.Table or ast.Expr
	err     error
}

// Err returns the first error recorded so far.
func (s *Scope) Err() error { return s.err }

func (s *Scope) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// finish hands back the recorded error and unwinds alias registrations.
func (s *Scope) finish() error {
	err := s.err
	s.err = nil
	clear(s.aliases)
	return err
}

// Table resolves a table by alias registered in this scope, then by name.
// Unknown names record a BuildError and return a column-less placeholder.
func (s *Scope) Table(name string) *ast.Table {
	if v, ok := s.aliases[name]; ok {
		if t, ok := v.(*ast.Table); ok {
			return t
		}
	}
	if t, ok := s.b.Table(name); ok {
		return t
	}
	s.fail(sqlerr.Build("TABLE", "unknown table %q", name))
	return &ast.Table{TableName: name, Alias: name, Schema: &record.Schema{Name: name}}
}

// Col resolves "table.column", "table.*", an alias registered in this scope,
// or a bare column name declared by exactly one table.
func (s *Scope) Col(ref string) ast.Expr {
	if tbl, col, ok := strings.Cut(ref, "."); ok {
		t := s.Table(tbl)
		if col == ast.AllColumns {
			return t.All()
		}
		if c := t.Col(col); c != nil {
			return c
		}
		s.fail(sqlerr.Build("COLUMN", "unknown column %q in table %q", col, tbl))
		return &ast.ColumnRef{Column: col, Alias: col, Table: t}
	}

	if e := s.Ref(ref); e != nil {
		return e
	}

	var found *ast.ColumnRef
	for _, name := range s.b.schemas.Names() {
		t, _ := s.b.Table(name)
		if c := t.Col(ref); c != nil {
			if found != nil {
				s.fail(sqlerr.Build("COLUMN", "ambiguous column %q", ref))
				return found
			}
			found = c
		}
	}
	if found == nil {
		s.fail(sqlerr.Build("COLUMN", "unknown column %q", ref))
		return &ast.ColumnRef{Column: ref, Alias: ref}
	}
	return found
}

// Ref returns the expression registered under alias, or nil.
func (s *Scope) Ref(alias string) ast.Expr {
	if e, ok := s.aliases[alias].(ast.Expr); ok {
		return e
	}
	return nil
}

func (s *Scope) register(alias string, v any) bool {
	if alias == "" {
		s.fail(sqlerr.Build("AS", "empty alias"))
		return false
	}
	_, taken := s.aliases[alias]
	_, isTable := s.b.Table(alias)
	if taken || isTable {
		s.fail(sqlerr.Build("AS", "alias redefinition: %s", alias))
		return false
	}
	s.aliases[alias] = v
	return true
}

// As aliases an expression and registers the alias in this scope so later
// clauses of the same statement can use it through Ref or Col.
func (s *Scope) As(e ast.Expr, alias string) ast.Expr {
	a, ok := e.(ast.Aliaser)
	if !ok {
		s.fail(sqlerr.Build("AS", "%s cannot take an alias", e.Name()))
		return e
	}
	if c, ok := e.(*ast.ColumnRef); ok && c.IsAll() {
		s.fail(sqlerr.Build("AS", "%s cannot take an alias", c.QualifiedName()))
		return e
	}
	out := a.WithAlias(alias)
	s.register(alias, out)
	return out
}

// AsTable returns a reference to t under alias and registers it.
func (s *Scope) AsTable(t *ast.Table, alias string) *ast.Table {
	out := t.WithTableAlias(alias)
	s.register(alias, out)
	return out
}

// checkArgs enforces the argument count of a clause. max < 0 is unbounded.
func (s *Scope) checkArgs(name string, n, min, max int) bool {
	if n < min {
		s.fail(sqlerr.Build(name, "not enough arguments for %s", name))
		return false
	}
	if max >= 0 && n > max {
		s.fail(sqlerr.Build(name, "too many arguments for %s", name))
		return false
	}
	return true
}

// expr converts a builder argument to an expression. Go scalars become
// literals.
func (s *Scope) expr(clause string, v any) ast.Expr {
	switch x := v.(type) {
	case ast.Expr:
		return x
	case nil, string, bool, time.Time,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return ast.NewLiteral(x)
	default:
		s.fail(sqlerr.Build(clause, "wrong type for %s to %s", describe(v), clause))
		return ast.NewLiteral(nil)
	}
}

func (s *Scope) exprs(clause string, args []any) []ast.Expr {
	out := make([]ast.Expr, len(args))
	for i, a := range args {
		out[i] = s.expr(clause, a)
	}
	return out
}

// strictExprs requires every argument to already be an expression node.
func (s *Scope) strictExprs(clause string, args []any) []ast.Expr {
	out := make([]ast.Expr, 0, len(args))
	for _, a := range args {
		e, ok := a.(ast.Expr)
		if !ok {
			s.fail(sqlerr.Build(clause, "wrong type for %s to %s", describe(a), clause))
			continue
		}
		out = append(out, e)
	}
	return out
}

func describe(v any) string {
	switch x := v.(type) {
	case ast.Node:
		return fmt.Sprintf("%T %s", x, x.SQL(ast.Flags{}))
	default:
		return fmt.Sprintf("%T %v", v, v)
	}
}
