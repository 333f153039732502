// Package planner compiles statements into executable operators. Every
// expression becomes a closure over its children; nothing is evaluated as
// generated text.
package planner

import (
	"github.com/tuannm99/novaquery/internal/record"
	"github.com/tuannm99/novaquery/internal/sql/ast"
)

// Plan is the interface for executable plans.
type Plan interface {
	planNode()
}

// ----- Plan nodes -----

// SelectPlan holds the compiled operators of one Select: the join driver
// with its per-level join filters, the where filter, the optional group
// calculator, the column projector with its having filter, and the order
// comparator.
type SelectPlan struct {
	Select *ast.Select

	tables []*ast.Table
	levels []joinLevel
	where  evalFn

	groupKeys []evalFn
	grouped   bool
	aggs      []aggSpec

	columns []projColumn
	having  evalFn
	order   []orderKey
	limit   *ast.Limit
}

func (*SelectPlan) planNode() {}

type joinLevel struct {
	outer  bool
	filter evalFn // nil: every combination passes
}

type aggSpec struct {
	node *ast.Aggregate
	arg  evalFn
}

// projColumn is one output column after "*" expansion.
type projColumn struct {
	key       string // alias
	qualified string // table alias + "." + alias, for column refs
	eval      evalFn
}

type orderKey struct {
	eval evalFn
	desc bool
}

// InsertPlan appends one row; values are evaluated with bindings only.
type InsertPlan struct {
	Table  string
	Schema *record.Schema
	Values []assignment
}

func (*InsertPlan) planNode() {}

type assignment struct {
	column string
	typ    record.ColumnType
	eval   evalFn
}

// UpdatePlan rewrites matching rows in place. Scan is the one-table select
// that finds them.
type UpdatePlan struct {
	Scan *SelectPlan
	Set  []assignment
}

func (*UpdatePlan) planNode() {}

// DestroyPlan clears the rows Scan matches in the Targets tables, given as
// FROM positions.
type DestroyPlan struct {
	Scan    *SelectPlan
	Targets []int
}

func (*DestroyPlan) planNode() {}

// TargetTables names the tables a DestroyPlan clears.
func (p *DestroyPlan) TargetTables() []string {
	out := make([]string, len(p.Targets))
	for i, idx := range p.Targets {
		out[i] = p.Scan.tables[idx].TableName
	}
	return out
}
