package planner

import (
	"github.com/tuannm99/novaquery/internal/record"
	"github.com/tuannm99/novaquery/internal/sql/sqlerr"
	"github.com/tuannm99/novaquery/internal/store"
)

// Row evaluates and coerces every value before anything is returned, so a
// failed INSERT never leaves a partial row behind.
func (p *InsertPlan) Row(bindings map[string]any) (store.Row, error) {
	env := &Env{Bindings: bindings}
	row := make(store.Row, len(p.Values))
	for _, a := range p.Values {
		v, err := a.value(env)
		if err != nil {
			return nil, err
		}
		row[a.column] = v
	}
	return row, nil
}

func (a assignment) value(env *Env) (any, error) {
	v, err := a.eval(env)
	if err != nil {
		return nil, err
	}
	v, err = record.Coerce(a.typ, v)
	if err != nil {
		return nil, sqlerr.Eval(a.column, err)
	}
	return v, nil
}

// Apply evaluates every assignment against the tuple, then writes the
// results into its first row, which is a live handle into the store.
func (p *UpdatePlan) Apply(t Tuple, bindings map[string]any) error {
	if len(t) == 0 || t[0] == nil {
		return nil
	}
	env := &Env{Tuple: t, Bindings: bindings}
	vals := make([]any, len(p.Set))
	for i, a := range p.Set {
		v, err := a.value(env)
		if err != nil {
			return err
		}
		vals[i] = v
	}
	for i, a := range p.Set {
		t[0][a.column] = vals[i]
	}
	return nil
}

// Clear empties the target rows of t. Rows left empty are removed when the
// tables are compacted.
func (p *DestroyPlan) Clear(t Tuple) {
	for _, idx := range p.Targets {
		if idx < len(t) && t[idx] != nil {
			t[idx].Clear()
		}
	}
}
