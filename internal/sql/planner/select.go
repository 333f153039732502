package planner

import (
	"slices"
	"strings"

	"github.com/tuannm99/novaquery/internal/record"
	"github.com/tuannm99/novaquery/internal/sql/ast"
	"github.com/tuannm99/novaquery/internal/sql/sqlerr"
	"github.com/tuannm99/novaquery/internal/store"
)

// Join enumerates FROM tables in declared order with nested loops, keeping
// the tuples that pass every join filter and the where filter. Tables absent
// from the store are empty. When a LEFT OUTER level adds no tuple for its
// outer row, that level and every later one are replaced by empty rows and
// the where filter decides whether the combination is kept.
func (p *SelectPlan) Join(st *store.TableStore, bindings map[string]any) ([]Tuple, error) {
	var out []Tuple
	env := &Env{Tuple: make(Tuple, len(p.tables)), Bindings: bindings}

	emit := func() error {
		if p.where != nil {
			ok, err := p.where(env)
			if err != nil {
				return err
			}
			if !record.Truthy(ok) {
				return nil
			}
		}
		out = append(out, slices.Clone(env.Tuple))
		return nil
	}

	var walk func(level int) error
	walk = func(level int) error {
		if level == len(p.tables) {
			return emit()
		}

		lvl := p.levels[level]
		produced := len(out)
		for _, row := range st.Table(p.tables[level].TableName) {
			env.Tuple[level] = row
			if lvl.filter != nil {
				ok, err := lvl.filter(env)
				if err != nil {
					return err
				}
				if !record.Truthy(ok) {
					continue
				}
			}
			if err := walk(level + 1); err != nil {
				return err
			}
		}
		if lvl.outer && len(out) == produced {
			for i := level; i < len(p.tables); i++ {
				env.Tuple[i] = store.Row{}
			}
			if err := emit(); err != nil {
				return err
			}
		}
		for i := level; i < len(p.tables); i++ {
			env.Tuple[i] = nil
		}
		return nil
	}

	if err := walk(0); err != nil {
		return nil, err
	}
	return out, nil
}

// Group partitions tuples into groups. With GROUP BY, tuples are sorted by
// their key vectors and split where the vector changes. Without it, an
// aggregate query is one group over everything, and any other query gets a
// group per tuple.
func (p *SelectPlan) Group(tuples []Tuple, bindings map[string]any) ([][]Tuple, error) {
	if !p.grouped {
		groups := make([][]Tuple, len(tuples))
		for i, t := range tuples {
			groups[i] = []Tuple{t}
		}
		return groups, nil
	}
	if len(p.groupKeys) == 0 {
		return [][]Tuple{tuples}, nil
	}

	type keyed struct {
		key   []any
		tuple Tuple
	}
	rows := make([]keyed, len(tuples))
	env := &Env{Bindings: bindings}
	for i, t := range tuples {
		env.Tuple = t
		key, err := evalAll(p.groupKeys, env)
		if err != nil {
			return nil, err
		}
		rows[i] = keyed{key: key, tuple: t}
	}
	slices.SortStableFunc(rows, func(a, b keyed) int { return compareKeys(a.key, b.key) })

	var groups [][]Tuple
	for i, r := range rows {
		if i == 0 || compareKeys(rows[i-1].key, r.key) != 0 {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], r.tuple)
	}
	return groups, nil
}

func compareKeys(a, b []any) int {
	for i := range a {
		if c := record.SortCompare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// Record is one projected output row. Values keeps projection order; the
// sort keys are evaluated alongside so ORDER BY needs no second pass.
type Record struct {
	Values   []any
	sortKeys []any
}

// Project evaluates the columns once per group, at its last tuple, with the
// group's aggregates accumulated. The having filter drops groups.
func (p *SelectPlan) Project(groups [][]Tuple, bindings map[string]any) ([]Record, error) {
	out := make([]Record, 0, len(groups))
	for _, g := range groups {
		env := &Env{Bindings: bindings}
		if p.grouped {
			env.accs = make(map[*ast.Aggregate]*accumulator, len(p.aggs))
			for _, a := range p.aggs {
				env.accs[a.node] = &accumulator{op: a.node.Op}
			}
			for _, t := range g {
				env.Tuple = t
				for _, a := range p.aggs {
					v, err := a.arg(env)
					if err != nil {
						return nil, err
					}
					if err := env.accs[a.node].add(v); err != nil {
						return nil, sqlerr.Eval(a.node.SQL(ast.Flags{}), err)
					}
				}
			}
		}
		if len(g) > 0 {
			env.Tuple = g[len(g)-1]
		} else {
			env.Tuple = nil
		}

		if p.having != nil {
			ok, err := p.having(env)
			if err != nil {
				return nil, err
			}
			if !record.Truthy(ok) {
				continue
			}
		}

		rec := Record{Values: make([]any, len(p.columns))}
		for i, col := range p.columns {
			v, err := col.eval(env)
			if err != nil {
				return nil, err
			}
			rec.Values[i] = v
		}
		if len(p.order) > 0 {
			rec.sortKeys = make([]any, len(p.order))
			for i, o := range p.order {
				v, err := o.eval(env)
				if err != nil {
					return nil, err
				}
				rec.sortKeys[i] = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Order sorts records lexicographically by the ORDER BY keys. Missing
// values sort as the empty string.
func (p *SelectPlan) Order(recs []Record) {
	if len(p.order) == 0 {
		return
	}
	slices.SortStableFunc(recs, func(a, b Record) int {
		for i, o := range p.order {
			c := record.SortCompare(a.sortKeys[i], b.sortKeys[i])
			if o.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

// Limit slices records by LIMIT/OFFSET. A negative total is unbounded.
func (p *SelectPlan) Limit(recs []Record) []Record {
	if p.limit == nil {
		return recs
	}
	off := min(max(p.limit.Offset, 0), len(recs))
	recs = recs[off:]
	if p.limit.Total >= 0 && p.limit.Total < len(recs) {
		recs = recs[:p.limit.Total]
	}
	return recs
}

// Empty reports whether the result is known to be empty, as with LIMIT 0.
func (p *SelectPlan) Empty() bool {
	return p.limit != nil && p.limit.Total == 0
}

// Columns names the projected columns in order. withTable qualifies column
// refs as "table.column".
func (p *SelectPlan) Columns(withTable bool) []string {
	out := make([]string, len(p.columns))
	for i, c := range p.columns {
		if withTable {
			out[i] = c.qualified
		} else {
			out[i] = c.key
		}
	}
	return out
}

// Tables returns the FROM tables in declared order.
func (p *SelectPlan) Tables() []*ast.Table { return p.tables }

// Explain renders the compiled operators in predicate form.
func (p *SelectPlan) Explain() string {
	sel := p.Select
	var b strings.Builder
	line := func(name, body string) {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(body)
		b.WriteByte('\n')
	}

	line("join", sel.From.Predicate(ast.Flags{}))
	if sel.Where != nil {
		line("where", sel.Where.Predicate(ast.Flags{}))
	}
	if sel.GroupBy != nil {
		line("group", sel.GroupBy.Predicate(ast.Flags{}))
	} else if p.grouped {
		line("group", "[]")
	}
	cols := make([]string, len(sel.Columns))
	for i, c := range sel.Columns {
		cols[i] = c.AliasName() + " = " + c.Predicate(ast.Flags{})
		if cr, ok := c.(*ast.ColumnRef); ok && cr.IsAll() {
			cols[i] = c.Predicate(ast.Flags{})
		}
	}
	line("project", strings.Join(cols, ", "))
	if sel.Having != nil {
		line("having", sel.Having.Predicate(ast.Flags{}))
	}
	if sel.OrderBy != nil {
		line("order", sel.OrderBy.Predicate(ast.Flags{}))
	}
	if sel.Limit != nil {
		line("limit", sel.Limit.Predicate(ast.Flags{}))
	}
	return strings.TrimSuffix(b.String(), "\n")
}
