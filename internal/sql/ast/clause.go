package ast

import (
	"strconv"
	"strings"
)

// Clause marks the nodes SELECT accepts besides columns.
type Clause interface {
	Node
	clauseNode()
}

type From struct {
	Items []FromItem
}

// Tables returns the FROM tables in declared order.
func (f *From) Tables() []*Table {
	out := make([]*Table, len(f.Items))
	for i, it := range f.Items {
		out[i] = it.Source()
	}
	return out
}

func (f *From) render(pred bool) string {
	var b strings.Builder
	b.WriteString("FROM ")
	for i, it := range f.Items {
		if i > 0 {
			if j, ok := it.(*Join); ok {
				b.WriteString(j.separator())
			} else {
				b.WriteString(", ")
			}
		}
		switch x := it.(type) {
		case *Table:
			b.WriteString(SQLWithAlias(x))
		default:
			if pred {
				b.WriteString(x.Predicate(Flags{}))
			} else {
				b.WriteString(x.SQL(Flags{}))
			}
		}
	}
	return b.String()
}

func (f *From) SQL(Flags) string       { return f.render(false) }
func (f *From) Predicate(Flags) string { return f.render(true) }
func (*From) clauseNode()              {}

// joinExprs joins conjuncts, parenthesizing each when there are several so
// raw text containing OR keeps its meaning.
func joinExprs(exprs []Expr, f Flags, pred bool) string {
	parts := renderAll(exprs, f, pred)
	sep := " AND "
	if pred {
		sep = " && "
	}
	if len(parts) > 1 {
		for i := range parts {
			parts[i] = "(" + parts[i] + ")"
		}
	}
	return strings.Join(parts, sep)
}

// Where holds conjuncts; a row passes when all are true.
type Where struct {
	Exprs []Expr
}

func (w *Where) SQL(f Flags) string       { return "WHERE " + joinExprs(w.Exprs, f, false) }
func (w *Where) Predicate(f Flags) string { return joinExprs(w.Exprs, f, true) }
func (*Where) clauseNode()                {}

type GroupBy struct {
	Exprs []Expr
}

func (g *GroupBy) SQL(f Flags) string {
	return "GROUP BY " + strings.Join(renderAll(g.Exprs, f, false), ", ")
}

func (g *GroupBy) Predicate(f Flags) string {
	return "[" + strings.Join(renderAll(g.Exprs, f, true), ", ") + "]"
}

func (*GroupBy) clauseNode() {}

// Having conjuncts are evaluated against projected records, so they render
// with AliasOnly.
type Having struct {
	Exprs []Expr
}

func (h *Having) SQL(Flags) string {
	return "HAVING " + joinExprs(h.Exprs, Flags{AliasOnly: true}, false)
}

func (h *Having) Predicate(Flags) string {
	return joinExprs(h.Exprs, Flags{AliasOnly: true}, true)
}

func (*Having) clauseNode() {}

type Direction uint8

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// OrderItem sorts by the projected value named by Expr's alias.
type OrderItem struct {
	Expr Expr
	Dir  Direction
}

func (o *OrderItem) SQL(Flags) string {
	var s string
	switch x := o.Expr.(type) {
	case *ColumnRef:
		s = x.SQL(Flags{})
	default:
		if x.AliasName() != x.Name() {
			s = x.AliasName()
		} else {
			s = x.SQL(Flags{})
		}
	}
	return s + " " + o.Dir.String()
}

func (o *OrderItem) Predicate(Flags) string {
	sign := "+"
	if o.Dir == Desc {
		sign = "-"
	}
	return sign + o.Expr.AliasName()
}

type OrderBy struct {
	Items []*OrderItem
}

func (o *OrderBy) SQL(Flags) string {
	parts := make([]string, len(o.Items))
	for i, it := range o.Items {
		parts[i] = it.SQL(Flags{})
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

func (o *OrderBy) Predicate(Flags) string {
	parts := make([]string, len(o.Items))
	for i, it := range o.Items {
		parts[i] = it.Predicate(Flags{})
	}
	return strings.Join(parts, ", ")
}

func (*OrderBy) clauseNode() {}

// Limit keeps Total records after skipping Offset. A negative Total is
// unbounded; HasOffset distinguishes "no offset" from offset 0.
type Limit struct {
	Total     int
	Offset    int
	HasOffset bool
}

func (l *Limit) SQL(Flags) string {
	s := "LIMIT "
	if l.Total < 0 {
		s += "ALL"
	} else {
		s += strconv.Itoa(l.Total)
	}
	if l.HasOffset {
		s += " OFFSET " + strconv.Itoa(l.Offset)
	}
	return s
}

func (l *Limit) Predicate(f Flags) string { return l.SQL(f) }
func (*Limit) clauseNode()                {}
