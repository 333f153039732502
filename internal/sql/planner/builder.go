package planner

import (
	"fmt"

	"github.com/tuannm99/novaquery/internal/record"
	"github.com/tuannm99/novaquery/internal/sql/ast"
	"github.com/tuannm99/novaquery/internal/sql/builder"
	"github.com/tuannm99/novaquery/internal/sql/sqlerr"
)

// BuildPlan builds an executable plan from a statement. Select plans are
// compiled once and cached on the statement.
func BuildPlan(stmt ast.Statement, b *builder.Builder) (Plan, error) {
	switch s := stmt.(type) {
	case *ast.Select:
		return Compile(s, b)
	case *ast.Insert:
		return buildInsertPlan(s, b)
	case *ast.Update:
		return buildUpdatePlan(s, b)
	case *ast.Destroy:
		return buildDestroyPlan(s, b)
	default:
		return nil, fmt.Errorf("planner: unsupported statement type %T", stmt)
	}
}

// Compile returns the compiled operators of sel, building them on first use.
func Compile(sel *ast.Select, b *builder.Builder) (*SelectPlan, error) {
	v, err := sel.Compiled(func(s *ast.Select) (any, error) {
		return compileSelect(s, b)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SelectPlan), nil
}

func compileSelect(sel *ast.Select, b *builder.Builder) (*SelectPlan, error) {
	if sel.From == nil || len(sel.From.Items) == 0 {
		return nil, sqlerr.Build("SELECT", "missing FROM clause")
	}
	tables := sel.From.Tables()
	c := newCompiler(b, tables)
	p := &SelectPlan{Select: sel, tables: tables, limit: sel.Limit}

	for i, it := range sel.From.Items {
		lvl := joinLevel{}
		if j, ok := it.(*ast.Join); ok {
			lvl.outer = j.Kind == ast.LeftOuterJoin
			f, err := c.joinFilter(i, j)
			if err != nil {
				return nil, err
			}
			lvl.filter = f
		}
		p.levels = append(p.levels, lvl)
	}

	if sel.Where != nil {
		conj, err := c.compileAll(sel.Where.Exprs, modeRow, "WHERE")
		if err != nil {
			return nil, err
		}
		p.where = andFn(conj)
	}

	if sel.GroupBy != nil {
		keys, err := c.compileAll(sel.GroupBy.Exprs, modeRow, "GROUP BY")
		if err != nil {
			return nil, err
		}
		p.groupKeys = keys
	}

	c.projected = sel.Columns
	for _, col := range sel.Columns {
		if err := p.addColumn(c, col); err != nil {
			return nil, err
		}
	}

	if sel.Having != nil {
		conj, err := c.compileAll(sel.Having.Exprs, modeHaving, "HAVING")
		if err != nil {
			return nil, err
		}
		p.having = andFn(conj)
	}

	if sel.OrderBy != nil {
		for _, it := range sel.OrderBy.Items {
			fn, err := c.compile(it.Expr, modeGroup, "ORDER BY")
			if err != nil {
				return nil, err
			}
			p.order = append(p.order, orderKey{eval: fn, desc: it.Dir == ast.Desc})
		}
	}

	// every aggregate seen above gets an accumulator per group
	for _, a := range c.aggs {
		arg, err := c.compile(a.Arg, modeRow, a.Name())
		if err != nil {
			return nil, err
		}
		p.aggs = append(p.aggs, aggSpec{node: a, arg: arg})
	}
	p.grouped = sel.GroupBy != nil || len(p.aggs) > 0
	if sel.Having != nil && !p.grouped {
		return nil, sqlerr.Evalf("HAVING", "HAVING needs GROUP BY or an aggregate")
	}
	return p, nil
}

func (p *SelectPlan) addColumn(c *compiler, col ast.Expr) error {
	if cr, ok := col.(*ast.ColumnRef); ok && cr.IsAll() {
		idx, ok := c.index[cr.Table]
		if !ok {
			return sqlerr.Evalf(cr.QualifiedName(), "table %s is not in FROM", cr.Table.Alias)
		}
		for _, each := range cr.Table.Columns {
			name := each.Column
			p.columns = append(p.columns, projColumn{
				key:       name,
				qualified: cr.Table.Alias + "." + name,
				eval:      func(env *Env) (any, error) { return env.Tuple.get(idx, name), nil },
			})
		}
		return nil
	}

	fn, err := c.compile(col, modeGroup, "SELECT")
	if err != nil {
		return err
	}
	pc := projColumn{key: col.AliasName(), qualified: col.AliasName(), eval: fn}
	if cr, ok := col.(*ast.ColumnRef); ok {
		pc.qualified = cr.Table.Alias + "." + cr.AliasName()
	}
	p.columns = append(p.columns, pc)
	return nil
}

// joinFilter compiles the ON conjuncts of the join at FROM position i, or
// its USING list as equalities with the previous table.
func (c *compiler) joinFilter(i int, j *ast.Join) (evalFn, error) {
	switch {
	case len(j.On) > 0:
		conj, err := c.compileAll(j.On, modeRow, "ON")
		if err != nil {
			return nil, err
		}
		return andFn(conj), nil
	case len(j.Using) > 0:
		if i == 0 {
			return nil, sqlerr.Evalf("USING", "USING needs a previous table")
		}
		cols := j.Using
		return func(env *Env) (any, error) {
			for _, col := range cols {
				if !record.Equal(env.Tuple.get(i-1, col), env.Tuple.get(i, col)) {
					return false, nil
				}
			}
			return true, nil
		}, nil
	default:
		return nil, nil
	}
}

func buildInsertPlan(s *ast.Insert, b *builder.Builder) (*InsertPlan, error) {
	c := newCompiler(b, nil)
	p := &InsertPlan{Table: s.Table.TableName, Schema: s.Table.Schema}
	for _, a := range s.Values {
		col, ok := s.Table.Schema.Column(a.Column)
		if !ok {
			return nil, sqlerr.Build("INSERT", "unknown column %q in table %q", a.Column, s.Table.TableName)
		}
		fn, err := c.compile(a.Value, modeRow, "VALUES")
		if err != nil {
			return nil, err
		}
		p.Values = append(p.Values, assignment{column: col.Name, typ: col.Type, eval: fn})
	}
	return p, nil
}

func buildUpdatePlan(s *ast.Update, b *builder.Builder) (*UpdatePlan, error) {
	t := s.Table()
	scan, err := compileSelect(&ast.Select{
		Columns: []ast.Expr{t.All()},
		From:    s.From,
		Where:   s.Where,
	}, b)
	if err != nil {
		return nil, err
	}

	c := newCompiler(b, scan.tables)
	p := &UpdatePlan{Scan: scan}
	for _, a := range s.Set {
		col, ok := t.Schema.Column(a.Column)
		if !ok {
			return nil, sqlerr.Build("UPDATE", "unknown column %q in table %q", a.Column, t.TableName)
		}
		fn, err := c.compile(a.Value, modeRow, "SET")
		if err != nil {
			return nil, err
		}
		p.Set = append(p.Set, assignment{column: col.Name, typ: col.Type, eval: fn})
	}
	return p, nil
}

func buildDestroyPlan(s *ast.Destroy, b *builder.Builder) (*DestroyPlan, error) {
	scan, err := Compile(s.Select, b)
	if err != nil {
		return nil, err
	}
	p := &DestroyPlan{Scan: scan}
	seen := make(map[int]bool)
	for _, col := range s.Select.Columns {
		cr, ok := col.(*ast.ColumnRef)
		if !ok {
			return nil, sqlerr.Build("DESTROY", "DESTROY columns must be column references, got %s", col.Name())
		}
		idx, ok := indexOf(scan.tables, cr.Table)
		if !ok {
			return nil, sqlerr.Build("DESTROY", "table %s is not in FROM", cr.Table.Alias)
		}
		if !seen[idx] {
			seen[idx] = true
			p.Targets = append(p.Targets, idx)
		}
	}
	if len(p.Targets) == 0 {
		for i := range scan.tables {
			p.Targets = append(p.Targets, i)
		}
	}
	return p, nil
}

func indexOf(tables []*ast.Table, t *ast.Table) (int, bool) {
	for i, each := range tables {
		if each == t {
			return i, true
		}
	}
	return 0, false
}
