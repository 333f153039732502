package record

import (
	"fmt"
	"sort"
	"strings"
)

// ColumnType is the primitive type a column declares. Values stored under a
// column are coerced to it on INSERT and UPDATE.
type ColumnType uint8

const (
	ColString ColumnType = iota // default
	ColNumber
	ColDate
)

func (t ColumnType) String() string {
	switch t {
	case ColNumber:
		return "Number"
	case ColDate:
		return "Date"
	default:
		return "String"
	}
}

// ParseColumnType maps a declared type name to a ColumnType. An empty name is
// the default String type.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "STRING", "TEXT", "VARCHAR":
		return ColString, nil
	case "NUMBER", "INT", "INTEGER", "FLOAT", "DOUBLE", "REAL":
		return ColNumber, nil
	case "DATE":
		return ColDate, nil
	default:
		return 0, fmt.Errorf("record: unsupported column type %q", s)
	}
}

type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Schema describes one named table. Column order is the order used when a
// table's columns are expanded from "*".
type Schema struct {
	Name string   `json:"name"`
	Cols []Column `json:"columns"`
}

func NewSchema(name string, cols ...Column) Schema {
	return Schema{Name: name, Cols: cols}
}

func (s Schema) NumCols() int { return len(s.Cols) }

func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (s Schema) Has(name string) bool {
	_, ok := s.Column(name)
	return ok
}

// SchemaSet is the immutable set of table schemas an engine is built from.
type SchemaSet struct {
	order  []string
	byName map[string]*Schema
}

func NewSchemaSet(schemas ...Schema) (*SchemaSet, error) {
	ss := &SchemaSet{byName: make(map[string]*Schema, len(schemas))}
	for i := range schemas {
		s := schemas[i]
		if s.Name == "" {
			return nil, fmt.Errorf("record: schema without a table name")
		}
		if _, dup := ss.byName[s.Name]; dup {
			return nil, fmt.Errorf("record: duplicate table %q", s.Name)
		}
		seen := make(map[string]struct{}, len(s.Cols))
		for _, c := range s.Cols {
			if _, dup := seen[c.Name]; dup {
				return nil, fmt.Errorf("record: duplicate column %q in table %q", c.Name, s.Name)
			}
			seen[c.Name] = struct{}{}
		}
		ss.byName[s.Name] = &s
		ss.order = append(ss.order, s.Name)
	}
	return ss, nil
}

// SchemaSetFromTypes builds a SchemaSet from "table -> column -> type name"
// declarations. Maps carry no order, so columns are sorted by name.
func SchemaSetFromTypes(decl map[string]map[string]string) (*SchemaSet, error) {
	tables := make([]string, 0, len(decl))
	for t := range decl {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	schemas := make([]Schema, 0, len(tables))
	for _, t := range tables {
		names := make([]string, 0, len(decl[t]))
		for c := range decl[t] {
			names = append(names, c)
		}
		sort.Strings(names)

		cols := make([]Column, 0, len(names))
		for _, c := range names {
			ct, err := ParseColumnType(decl[t][c])
			if err != nil {
				return nil, fmt.Errorf("table %s column %s: %w", t, c, err)
			}
			cols = append(cols, Column{Name: c, Type: ct})
		}
		schemas = append(schemas, NewSchema(t, cols...))
	}
	return NewSchemaSet(schemas...)
}

func (ss *SchemaSet) Lookup(name string) (*Schema, bool) {
	if ss == nil {
		return nil, false
	}
	s, ok := ss.byName[name]
	return s, ok
}

// Names returns table names in declaration order.
func (ss *SchemaSet) Names() []string {
	if ss == nil {
		return nil
	}
	out := make([]string, len(ss.order))
	copy(out, ss.order)
	return out
}
