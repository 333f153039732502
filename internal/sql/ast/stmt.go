package ast

import (
	"strings"
	"sync"
)

// Statement is one of Select, Insert, Update or Destroy.
type Statement interface {
	// String renders normalized statement text.
	String() string
	Kind() string
	stmtNode()
}

// Select is a full query. Nil clauses are absent.
type Select struct {
	Columns []Expr
	From    *From
	Where   *Where
	GroupBy *GroupBy
	Having  *Having
	OrderBy *OrderBy
	Limit   *Limit

	compileOnce sync.Once
	compiled    any
	compileErr  error
}

func (*Select) Kind() string { return "SELECT" }
func (*Select) stmtNode()    {}

func (s *Select) String() string {
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = SQLWithAlias(c)
	}
	parts := []string{"SELECT", strings.Join(cols, ", "), s.From.SQL(Flags{})}
	if s.Where != nil {
		parts = append(parts, s.Where.SQL(Flags{}))
	}
	if s.GroupBy != nil {
		parts = append(parts, s.GroupBy.SQL(Flags{}))
	}
	if s.Having != nil {
		parts = append(parts, s.Having.SQL(Flags{}))
	}
	if s.OrderBy != nil {
		parts = append(parts, s.OrderBy.SQL(Flags{}))
	}
	if s.Limit != nil {
		parts = append(parts, s.Limit.SQL(Flags{}))
	}
	return strings.Join(parts, " ")
}

// Compiled runs build once per Select and caches its result, error
// included. The planner stores its compiled operators here.
func (s *Select) Compiled(build func(*Select) (any, error)) (any, error) {
	s.compileOnce.Do(func() {
		s.compiled, s.compileErr = build(s)
	})
	return s.compiled, s.compileErr
}

// Assignment sets one column; Value is evaluated per target row.
type Assignment struct {
	Column string
	Value  Expr
}

func renderAssignments(as []Assignment) (cols, vals []string) {
	for _, a := range as {
		cols = append(cols, a.Column)
		vals = append(vals, a.Value.SQL(Flags{}))
	}
	return cols, vals
}

type Insert struct {
	Table  *Table
	Values []Assignment
}

func (*Insert) Kind() string { return "INSERT" }
func (*Insert) stmtNode()    {}

func (i *Insert) String() string {
	cols, vals := renderAssignments(i.Values)
	return "INSERT INTO " + i.Table.TableName +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(vals, ", ") + ")"
}

type Update struct {
	From  *From
	Set   []Assignment
	Where *Where
}

func (*Update) Kind() string { return "UPDATE" }
func (*Update) stmtNode()    {}

// Table is the single table an UPDATE writes.
func (u *Update) Table() *Table { return u.From.Items[0].Source() }

func (u *Update) String() string {
	sets := make([]string, len(u.Set))
	for i, a := range u.Set {
		sets[i] = a.Column + " = " + a.Value.SQL(Flags{})
	}
	s := "UPDATE " + SQLWithAlias(u.Table()) + " SET " + strings.Join(sets, ", ")
	if u.Where != nil {
		s += " " + u.Where.SQL(Flags{})
	}
	return s
}

// Destroy clears the rows its Select matches. The Select's projected columns
// name which tables' rows are cleared.
type Destroy struct {
	Select *Select
}

func (*Destroy) Kind() string { return "DELETE" }
func (*Destroy) stmtNode()    {}

func (d *Destroy) String() string {
	return "DELETE " + strings.TrimPrefix(d.Select.String(), "SELECT ")
}
