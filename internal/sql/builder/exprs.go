package builder

import (
	"github.com/tuannm99/novaquery/internal/sql/ast"
)

func (s *Scope) op(op ast.Op, args []any) []ast.Expr {
	s.checkArgs(op.Name, len(args), op.Min, op.Max)
	return s.exprs(op.Name, args)
}

func (s *Scope) logical(op ast.Op, args []any) ast.Expr {
	return ast.NewLogical(op, s.op(op, args)...)
}

func (s *Scope) comparison(op ast.Op, args []any) ast.Expr {
	return ast.NewComparison(op, s.op(op, args)...)
}

func (s *Scope) arithmetic(op ast.Op, args []any) ast.Expr {
	return ast.NewArithmetic(op, s.op(op, args)...)
}

func (s *Scope) aggregate(op ast.Op, args []any) ast.Expr {
	es := s.op(op, args)
	if len(es) != 1 {
		return ast.NewAggregate(op, ast.NewLiteral(nil))
	}
	return ast.NewAggregate(op, es[0])
}

func (s *Scope) And(args ...any) ast.Expr { return s.logical(ast.OpAnd, args) }
func (s *Scope) Or(args ...any) ast.Expr  { return s.logical(ast.OpOr, args) }
func (s *Scope) Not(args ...any) ast.Expr { return s.logical(ast.OpNot, args) }

func (s *Scope) Eq(args ...any) ast.Expr        { return s.comparison(ast.OpEq, args) }
func (s *Scope) Neq(args ...any) ast.Expr       { return s.comparison(ast.OpNeq, args) }
func (s *Scope) Lt(args ...any) ast.Expr        { return s.comparison(ast.OpLt, args) }
func (s *Scope) Gt(args ...any) ast.Expr        { return s.comparison(ast.OpGt, args) }
func (s *Scope) Lte(args ...any) ast.Expr       { return s.comparison(ast.OpLte, args) }
func (s *Scope) Gte(args ...any) ast.Expr       { return s.comparison(ast.OpGte, args) }
func (s *Scope) Like(args ...any) ast.Expr      { return s.comparison(ast.OpLike, args) }
func (s *Scope) IsNull(args ...any) ast.Expr    { return s.comparison(ast.OpIsNull, args) }
func (s *Scope) IsNotNull(args ...any) ast.Expr { return s.comparison(ast.OpIsNotNull, args) }

func (s *Scope) Add(args ...any) ast.Expr      { return s.arithmetic(ast.OpAdd, args) }
func (s *Scope) Subtract(args ...any) ast.Expr { return s.arithmetic(ast.OpSubtract, args) }
func (s *Scope) Multiply(args ...any) ast.Expr { return s.arithmetic(ast.OpMultiply, args) }
func (s *Scope) Divide(args ...any) ast.Expr   { return s.arithmetic(ast.OpDivide, args) }
func (s *Scope) Negate(args ...any) ast.Expr   { return s.arithmetic(ast.OpNegate, args) }
func (s *Scope) Paren(args ...any) ast.Expr    { return s.arithmetic(ast.OpParen, args) }

func (s *Scope) Sum(args ...any) ast.Expr   { return s.aggregate(ast.OpSum, args) }
func (s *Scope) Count(args ...any) ast.Expr { return s.aggregate(ast.OpCount, args) }
func (s *Scope) Avg(args ...any) ast.Expr   { return s.aggregate(ast.OpAvg, args) }

// Lit is an explicit literal, for values that would otherwise be ambiguous.
func (s *Scope) Lit(v any) ast.Expr { return s.expr("LITERAL", v) }

// Bind reads a named binding at execution time.
func (s *Scope) Bind(name string) ast.Expr { return ast.NewBinding(name) }

// Raw carries predicate text that is parsed when the statement compiles.
func (s *Scope) Raw(text string) ast.Expr { return ast.NewRaw(text) }
