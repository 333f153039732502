// Package executor runs statements against a table store.
package executor

import (
	"fmt"
	"time"

	"github.com/tuannm99/novaquery/internal/record"
	"github.com/tuannm99/novaquery/internal/sql/ast"
	"github.com/tuannm99/novaquery/internal/sql/builder"
	"github.com/tuannm99/novaquery/internal/sql/parser"
	"github.com/tuannm99/novaquery/internal/sql/planner"
	"github.com/tuannm99/novaquery/internal/store"
)

// Options alter how a SELECT is returned.
type Options struct {
	// ReturnReference skips projection, having, ordering and limits and
	// returns the matching row-tuples as live handles into the store.
	ReturnReference bool
	// WithTable keys projected columns as "table.column".
	WithTable bool
}

// Executor executes statements built against one schema set. It keeps no
// store of its own; the caller passes one in and serializes statements on it.
type Executor struct {
	b *builder.Builder
	p *parser.Parser
}

func NewExecutor(b *builder.Builder) *Executor {
	return &Executor{b: b, p: parser.New(b)}
}

func (e *Executor) Builder() *builder.Builder { return e.b }

// Parse turns statement text into a statement, binding "?" parameters.
func (e *Executor) Parse(sql string, params ...any) (ast.Statement, error) {
	return e.p.Parse(sql, params...)
}

// ExecSQL is the top-level entry: SQL string -> Result.
func (e *Executor) ExecSQL(st *store.TableStore, sql string, params ...any) (*Result, error) {
	stmt, err := e.p.Parse(sql, params...)
	if err != nil {
		return nil, err
	}
	return e.Execute(stmt, st, nil, Options{})
}

// Execute runs stmt against st. bindings supply values for names that are
// not columns of any FROM table.
func (e *Executor) Execute(stmt ast.Statement, st *store.TableStore, bindings map[string]any, opts Options) (*Result, error) {
	if st == nil {
		return nil, fmt.Errorf("executor: nil table store")
	}
	plan, err := planner.BuildPlan(stmt, e.b)
	if err != nil {
		return nil, err
	}
	return e.execPlan(plan, st, bindings, opts)
}

// Explain renders the compiled operators of a SELECT or DELETE.
func (e *Executor) Explain(stmt ast.Statement) (string, error) {
	plan, err := planner.BuildPlan(stmt, e.b)
	if err != nil {
		return "", err
	}
	switch p := plan.(type) {
	case *planner.SelectPlan:
		return p.Explain(), nil
	case *planner.DestroyPlan:
		return p.Scan.Explain(), nil
	case *planner.UpdatePlan:
		return p.Scan.Explain(), nil
	default:
		return "", fmt.Errorf("executor: nothing to explain for %s", stmt.Kind())
	}
}

func (e *Executor) execPlan(p planner.Plan, st *store.TableStore, bindings map[string]any, opts Options) (*Result, error) {
	switch plan := p.(type) {
	case *planner.SelectPlan:
		if opts.ReturnReference {
			return e.execReference(plan, st, bindings)
		}
		return e.execSelect(plan, st, bindings, opts)
	case *planner.InsertPlan:
		return e.execInsert(plan, st, bindings)
	case *planner.UpdatePlan:
		return e.execUpdate(plan, st, bindings)
	case *planner.DestroyPlan:
		return e.execDestroy(plan, st, bindings)
	default:
		return nil, fmt.Errorf("executor: unsupported plan type %T", p)
	}
}

func (e *Executor) execSelect(p *planner.SelectPlan, st *store.TableStore, bindings map[string]any, opts Options) (*Result, error) {
	keys := p.Columns(opts.WithTable)
	res := &Result{Columns: uniqueColumns(keys), Records: []map[string]any{}}
	if p.Empty() {
		return res, nil
	}

	tuples, err := p.Join(st, bindings)
	if err != nil {
		return nil, err
	}
	groups, err := p.Group(tuples, bindings)
	if err != nil {
		return nil, err
	}
	recs, err := p.Project(groups, bindings)
	if err != nil {
		return nil, err
	}
	p.Order(recs)
	recs = p.Limit(recs)

	for _, r := range recs {
		m := make(map[string]any, len(keys))
		for i, k := range keys {
			m[k] = outputValue(r.Values[i])
		}
		res.Records = append(res.Records, m)
	}
	res.AffectedRows = int64(len(res.Records))
	return res, nil
}

func (e *Executor) execReference(p *planner.SelectPlan, st *store.TableStore, bindings map[string]any) (*Result, error) {
	tuples, err := p.Join(st, bindings)
	if err != nil {
		return nil, err
	}
	return &Result{Tuples: tuples, AffectedRows: int64(len(tuples))}, nil
}

func (e *Executor) execInsert(p *planner.InsertPlan, st *store.TableStore, bindings map[string]any) (*Result, error) {
	row, err := p.Row(bindings)
	if err != nil {
		return nil, err
	}
	st.Append(p.Table, row)
	return &Result{AffectedRows: 1}, nil
}

// execUpdate writes through the row handles its scan returns. A failure
// part way leaves the rows already written changed.
func (e *Executor) execUpdate(p *planner.UpdatePlan, st *store.TableStore, bindings map[string]any) (*Result, error) {
	ref, err := e.execReference(p.Scan, st, bindings)
	if err != nil {
		return nil, err
	}
	var affected int64
	for _, t := range ref.Tuples {
		if err := p.Apply(t, bindings); err != nil {
			return nil, err
		}
		affected++
	}
	return &Result{AffectedRows: affected}, nil
}

// execDestroy clears every matched row of the target tables, then drops the
// emptied rows from them.
func (e *Executor) execDestroy(p *planner.DestroyPlan, st *store.TableStore, bindings map[string]any) (*Result, error) {
	ref, err := e.execReference(p.Scan, st, bindings)
	if err != nil {
		return nil, err
	}
	for _, t := range ref.Tuples {
		p.Clear(t)
	}

	var affected int64
	seen := make(map[string]bool)
	for _, name := range p.TargetTables() {
		if seen[name] {
			continue
		}
		seen[name] = true
		affected += int64(st.Compact(name))
	}
	return &Result{AffectedRows: affected}, nil
}

// outputValue renders dates as text; everything else passes through.
func outputValue(v any) any {
	if d, ok := v.(time.Time); ok {
		return record.FormatDate(d)
	}
	return v
}

func uniqueColumns(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
