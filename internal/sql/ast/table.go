package ast

import (
	"strings"

	"github.com/tuannm99/novaquery/internal/record"
)

// AllColumns is the column name of a table's "*" reference.
const AllColumns = "*"

// Table is a table reference in FROM, optionally aliased. Columns follow the
// schema's declaration order.
type Table struct {
	TableName string
	Alias     string
	Schema    *record.Schema
	Columns   []*ColumnRef
}

// NewTable builds the reference for schema, with its column refs bound to
// the new table. An empty alias means the table name.
func NewTable(schema *record.Schema, alias string) *Table {
	if alias == "" {
		alias = schema.Name
	}
	t := &Table{TableName: schema.Name, Alias: alias, Schema: schema}
	t.Columns = make([]*ColumnRef, 0, len(schema.Cols))
	for _, c := range schema.Cols {
		t.Columns = append(t.Columns, &ColumnRef{Column: c.Name, Alias: c.Name, Type: c.Type, Table: t})
	}
	return t
}

// Col returns the column ref named name, or nil when the schema lacks it.
func (t *Table) Col(name string) *ColumnRef {
	for _, c := range t.Columns {
		if c.Column == name {
			return c
		}
	}
	return nil
}

// All is the "table.*" reference.
func (t *Table) All() *ColumnRef {
	return &ColumnRef{Column: AllColumns, Alias: AllColumns, Table: t}
}

// WithTableAlias returns a fresh reference to the same table under alias.
func (t *Table) WithTableAlias(alias string) *Table {
	return NewTable(t.Schema, alias)
}

func (t *Table) SQL(Flags) string       { return t.TableName }
func (t *Table) Predicate(Flags) string { return t.Alias }
func (t *Table) Source() *Table         { return t }
func (*Table) fromItem()                {}

// ColumnRef names one column of a table, or all of them when Column is "*".
type ColumnRef struct {
	Column string
	Alias  string
	Type   record.ColumnType
	Table  *Table
}

func (c *ColumnRef) Name() string { return c.Column }

func (c *ColumnRef) AliasName() string {
	if c.Alias == "" {
		return c.Column
	}
	return c.Alias
}

// IsAll reports whether c is a "table.*" reference.
func (c *ColumnRef) IsAll() bool { return c.Column == AllColumns }

// QualifiedName is "tableAlias.column".
func (c *ColumnRef) QualifiedName() string {
	if c.Table == nil {
		return c.Column
	}
	return c.Table.Alias + "." + c.Column
}

func (c *ColumnRef) SQL(f Flags) string {
	if f.AliasOnly {
		return c.AliasName()
	}
	return c.QualifiedName()
}

func (c *ColumnRef) Predicate(f Flags) string { return c.SQL(f) }

func (c *ColumnRef) WithAlias(alias string) Expr {
	cp := *c
	cp.Alias = alias
	return &cp
}

func (*ColumnRef) exprNode() {}

type JoinKind uint8

const (
	CrossJoin JoinKind = iota
	InnerJoin
	LeftOuterJoin
)

func (k JoinKind) String() string {
	switch k {
	case InnerJoin:
		return "INNER"
	case LeftOuterJoin:
		return "LEFT OUTER"
	default:
		return "CROSS"
	}
}

// Join attaches a table to the FROM list with an ON condition or USING
// column list. A CROSS join has neither.
type Join struct {
	Kind  JoinKind
	Table *Table
	On    []Expr
	Using []string
}

func (j *Join) Source() *Table { return j.Table }
func (*Join) fromItem()        {}

func (j *Join) suffix(pred bool) string {
	switch {
	case len(j.On) > 0:
		parts := renderAll(j.On, Flags{}, pred)
		sep := " AND "
		if pred {
			sep = " && "
		}
		if len(parts) > 1 {
			for i := range parts {
				parts[i] = "(" + parts[i] + ")"
			}
		}
		return " ON " + strings.Join(parts, sep)
	case len(j.Using) > 0:
		return " USING (" + strings.Join(j.Using, ", ") + ")"
	default:
		return ""
	}
}

func (j *Join) separator() string {
	if j.Kind == CrossJoin {
		return " CROSS JOIN "
	}
	return " " + j.Kind.String() + " JOIN "
}

func (j *Join) SQL(Flags) string       { return SQLWithAlias(j.Table) + j.suffix(false) }
func (j *Join) Predicate(Flags) string { return j.Table.Alias + j.suffix(true) }

// FromItem is a Table or a Join.
type FromItem interface {
	Node
	Source() *Table
	fromItem()
}
