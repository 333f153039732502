package ast

import (
	"strconv"
	"strings"
	"time"

	"github.com/tuannm99/novaquery/internal/record"
)

// Aliaser is implemented by nodes that can take an AS alias. WithAlias
// returns a copy; the receiver is left untouched.
type Aliaser interface {
	WithAlias(alias string) Expr
}

// opExpr is the shared shape of operator nodes.
type opExpr struct {
	Op    Op
	Args  []Expr
	Alias string
}

func (o *opExpr) Name() string { return o.Op.Name }

func (o *opExpr) AliasName() string {
	if o.Alias == "" {
		return o.Op.Name
	}
	return o.Alias
}

func (o *opExpr) render(f Flags, pred bool) string {
	if f.AliasOnly && o.AliasName() != o.Name() {
		return o.AliasName()
	}
	text := o.Op.SQLText
	if pred {
		text = o.Op.PredText
	}
	return renderOp(text, o.Op.Fix, renderAll(o.Args, f, pred))
}

func (o *opExpr) SQL(f Flags) string       { return o.render(f, false) }
func (o *opExpr) Predicate(f Flags) string { return o.render(f, true) }
func (o *opExpr) exprNode()                {}

// Logical is AND, OR or NOT.
type Logical struct{ opExpr }

func NewLogical(op Op, args ...Expr) *Logical {
	return &Logical{opExpr{Op: op, Args: args}}
}

func (l *Logical) WithAlias(alias string) Expr {
	cp := *l
	cp.Alias = alias
	return &cp
}

// Comparison is EQ, NEQ, LT, GT, LTE, GTE, LIKE, IS_NULL or IS_NOT_NULL.
type Comparison struct{ opExpr }

func NewComparison(op Op, args ...Expr) *Comparison {
	return &Comparison{opExpr{Op: op, Args: args}}
}

func (c *Comparison) WithAlias(alias string) Expr {
	cp := *c
	cp.Alias = alias
	return &cp
}

// Arithmetic is ADD, SUBTRACT, MULTIPLY, DIVIDE, NEGATE or PAREN.
type Arithmetic struct{ opExpr }

func NewArithmetic(op Op, args ...Expr) *Arithmetic {
	return &Arithmetic{opExpr{Op: op, Args: args}}
}

func (a *Arithmetic) WithAlias(alias string) Expr {
	cp := *a
	cp.Alias = alias
	return &cp
}

// Aggregate is SUM, COUNT or AVG over one child. Its alias keys the group
// accumulator in the predicate rendering.
type Aggregate struct {
	Op    Op
	Arg   Expr
	Alias string
}

func NewAggregate(op Op, arg Expr) *Aggregate {
	return &Aggregate{Op: op, Arg: arg}
}

func (a *Aggregate) Name() string { return a.Op.Name }

func (a *Aggregate) AliasName() string {
	if a.Alias == "" {
		return a.Op.Name
	}
	return a.Alias
}

func (a *Aggregate) SQL(f Flags) string {
	if f.AliasOnly && a.AliasName() != a.Name() {
		return a.AliasName()
	}
	return renderOp(a.Op.SQLText, Prefix, []string{a.Arg.SQL(Flags{})})
}

func (a *Aggregate) Predicate(f Flags) string {
	if f.AliasOnly && a.AliasName() != a.Name() {
		return a.AliasName()
	}
	return a.Op.PredText + "('" + a.AliasName() + "', (" + a.Arg.Predicate(Flags{}) + "))"
}

func (a *Aggregate) WithAlias(alias string) Expr {
	cp := *a
	cp.Alias = alias
	return &cp
}

func (*Aggregate) exprNode() {}

// Literal is a constant: nil, float64, string, bool or a date.
type Literal struct {
	Value any
	Alias string
}

func NewLiteral(v any) *Literal {
	return &Literal{Value: record.Normalize(v)}
}

func (l *Literal) Name() string { return "LITERAL" }

func (l *Literal) AliasName() string {
	if l.Alias == "" {
		return l.Name()
	}
	return l.Alias
}

func (l *Literal) SQL(f Flags) string {
	if f.AliasOnly && l.Alias != "" {
		return l.Alias
	}
	return FormatLiteral(l.Value, false)
}

func (l *Literal) Predicate(f Flags) string {
	if f.AliasOnly && l.Alias != "" {
		return l.Alias
	}
	return FormatLiteral(l.Value, true)
}

func (l *Literal) WithAlias(alias string) Expr {
	cp := *l
	cp.Alias = alias
	return &cp
}

func (*Literal) exprNode() {}

// FormatLiteral renders a value as statement text. Strings are quoted with
// backslash escapes; dates render as quoted YYYY-M-D text.
func FormatLiteral(v any, pred bool) string {
	switch x := v.(type) {
	case nil:
		if pred {
			return "null"
		}
		return "NULL"
	case string:
		return QuoteString(x)
	case bool:
		if pred {
			return strconv.FormatBool(x)
		}
		return strings.ToUpper(strconv.FormatBool(x))
	case time.Time:
		if pred {
			return "date(" + strconv.Itoa(x.Year()) + ", " + strconv.Itoa(int(x.Month())) + ", " + strconv.Itoa(x.Day()) + ")"
		}
		return "'" + record.FormatDate(x) + "'"
	default:
		if f, ok := record.ToNumber(x); ok {
			return record.FormatNumber(f)
		}
		return QuoteString(record.ToString(x).(string))
	}
}

// QuoteString wraps s in single quotes, escaping backslashes and quotes.
func QuoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// Binding reads a named binding supplied at execution time.
type Binding struct {
	Key   string
	Alias string
}

func NewBinding(name string) *Binding { return &Binding{Key: name} }

func (b *Binding) Name() string { return b.Key }

func (b *Binding) AliasName() string {
	if b.Alias == "" {
		return b.Key
	}
	return b.Alias
}

func (b *Binding) SQL(f Flags) string {
	if f.AliasOnly && b.Alias != "" {
		return b.Alias
	}
	return b.Key
}

func (b *Binding) Predicate(f Flags) string { return b.SQL(f) }

func (b *Binding) WithAlias(alias string) Expr {
	cp := *b
	cp.Alias = alias
	return &cp
}

func (*Binding) exprNode() {}
