// Package ast is the statement tree: a closed set of expression nodes, the
// clauses that hold them, and the four statement kinds.
//
// Every node renders two ways. SQL gives normalized statement text that the
// parser accepts again. Predicate gives the executable-predicate form
// (&&, ||, ==, AGG('alias', (x))) used by EXPLAIN output.
package ast

import "strings"

// Flags alter rendering. AliasOnly renders an aliased node by its alias,
// which is how HAVING refers to projected columns.
type Flags struct {
	AliasOnly bool
}

type Node interface {
	SQL(f Flags) string
	Predicate(f Flags) string
}

// Expr is a node that yields a value for a row-tuple.
type Expr interface {
	Node
	// Name is the node's intrinsic name: a column name or an operator name.
	Name() string
	// AliasName is the name the node projects under. It equals Name unless
	// the node was aliased.
	AliasName() string
	exprNode()
}

// Fixity controls how operator children are joined when rendering.
type Fixity int8

const (
	Infix  Fixity = 0
	Prefix Fixity = -1
	Suffix Fixity = 1
)

// Op describes one operator: its name, its SQL and predicate text, fixity,
// and the argument counts the builder accepts (Max < 0 is unbounded).
type Op struct {
	Name     string
	SQLText  string
	PredText string
	Fix      Fixity
	Min, Max int
}

var (
	OpAnd = Op{Name: "AND", SQLText: "AND", PredText: "&&", Fix: Infix, Min: 1, Max: -1}
	OpOr  = Op{Name: "OR", SQLText: "OR", PredText: "||", Fix: Infix, Min: 1, Max: -1}
	OpNot = Op{Name: "NOT", SQLText: "NOT", PredText: "!", Fix: Prefix, Min: 1, Max: 1}

	OpEq        = Op{Name: "EQ", SQLText: "=", PredText: "==", Fix: Infix, Min: 2, Max: 2}
	OpNeq       = Op{Name: "NEQ", SQLText: "!=", PredText: "!=", Fix: Infix, Min: 2, Max: 2}
	OpLt        = Op{Name: "LT", SQLText: "<", PredText: "<", Fix: Infix, Min: 2, Max: 2}
	OpGt        = Op{Name: "GT", SQLText: ">", PredText: ">", Fix: Infix, Min: 2, Max: 2}
	OpLte       = Op{Name: "LTE", SQLText: "<=", PredText: "<=", Fix: Infix, Min: 2, Max: 2}
	OpGte       = Op{Name: "GTE", SQLText: ">=", PredText: ">=", Fix: Infix, Min: 2, Max: 2}
	OpLike      = Op{Name: "LIKE", SQLText: "LIKE", PredText: "match", Fix: Infix, Min: 2, Max: 2}
	OpIsNull    = Op{Name: "IS_NULL", SQLText: "IS NULL", PredText: "== null", Fix: Suffix, Min: 1, Max: 1}
	OpIsNotNull = Op{Name: "IS_NOT_NULL", SQLText: "IS NOT NULL", PredText: "!= null", Fix: Suffix, Min: 1, Max: 1}

	OpAdd      = Op{Name: "ADD", SQLText: "+", PredText: "+", Fix: Infix, Min: 2, Max: -1}
	OpSubtract = Op{Name: "SUBTRACT", SQLText: "-", PredText: "-", Fix: Infix, Min: 2, Max: -1}
	OpMultiply = Op{Name: "MULTIPLY", SQLText: "*", PredText: "*", Fix: Infix, Min: 2, Max: -1}
	OpDivide   = Op{Name: "DIVIDE", SQLText: "/", PredText: "/", Fix: Infix, Min: 2, Max: -1}
	OpNegate   = Op{Name: "NEGATE", SQLText: "-", PredText: "-", Fix: Prefix, Min: 1, Max: 1}
	OpParen    = Op{Name: "PAREN", SQLText: "", PredText: "", Fix: Infix, Min: 1, Max: 1}

	OpSum   = Op{Name: "SUM", SQLText: "SUM", PredText: "SUM", Fix: Prefix, Min: 1, Max: 1}
	OpCount = Op{Name: "COUNT", SQLText: "COUNT", PredText: "COUNT", Fix: Prefix, Min: 1, Max: 1}
	OpAvg   = Op{Name: "AVG", SQLText: "AVG", PredText: "AVG", Fix: Prefix, Min: 1, Max: 1}
)

// renderOp joins rendered children around the operator text.
func renderOp(text string, fix Fixity, parts []string) string {
	var b strings.Builder
	sep := ") " + text + " ("
	switch fix {
	case Prefix:
		b.WriteString(text)
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, sep))
		b.WriteString(")")
	case Suffix:
		b.WriteString("(")
		b.WriteString(strings.Join(parts, sep))
		b.WriteString(") ")
		b.WriteString(text)
	default:
		b.WriteString("(")
		b.WriteString(strings.Join(parts, sep))
		b.WriteString(")")
	}
	return b.String()
}

// SQLWithAlias renders n followed by "AS alias" when it carries an alias.
func SQLWithAlias(n Node) string {
	s := n.SQL(Flags{})
	switch x := n.(type) {
	case Expr:
		if x.AliasName() != x.Name() {
			return s + " AS " + x.AliasName()
		}
	case *Table:
		if x.Alias != x.TableName {
			return s + " AS " + x.Alias
		}
	}
	return s
}

func renderAll[T Node](nodes []T, f Flags, pred bool) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		if pred {
			out[i] = n.Predicate(f)
		} else {
			out[i] = n.SQL(f)
		}
	}
	return out
}
