package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tuannm99/novaquery/internal/sql/ast"
	"github.com/tuannm99/novaquery/internal/sql/builder"
)

// Resolver turns an identifier ("col", "t.col" or "t.*") into a node.
type Resolver func(ref string) (ast.Expr, error)

// ParseExpr parses one expression, building nodes through s. Grouping
// parentheses are dropped since rendering parenthesizes every operand.
func ParseExpr(text string, s *builder.Scope, resolve Resolver) (ast.Expr, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &exprParser{toks: toks, s: s, resolve: resolve}
	e, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %s at offset %d", t, t.pos)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return e, nil
}

type exprParser struct {
	toks    []token
	i       int
	s       *builder.Scope
	resolve Resolver
}

func (p *exprParser) peek() token { return p.toks[p.i] }

func (p *exprParser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *exprParser) expect(op string) error {
	if t := p.next(); !t.is(op) {
		return fmt.Errorf("expected %q, got %s", op, t)
	}
	return nil
}

func (p *exprParser) or() (ast.Expr, error) {
	return p.chain("OR", p.and, p.s.Or)
}

func (p *exprParser) and() (ast.Expr, error) {
	return p.chain("AND", p.not, p.s.And)
}

// chain collects "x KW y KW z" into one n-ary node.
func (p *exprParser) chain(kw string, sub func() (ast.Expr, error), mk func(...any) ast.Expr) (ast.Expr, error) {
	first, err := sub()
	if err != nil {
		return nil, err
	}
	args := []any{first}
	for p.peek().keyword(kw) {
		p.next()
		e, err := sub()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	if len(args) == 1 {
		return first, nil
	}
	return mk(args...), nil
}

func (p *exprParser) not() (ast.Expr, error) {
	if p.peek().keyword("NOT") {
		p.next()
		e, err := p.not()
		if err != nil {
			return nil, err
		}
		return p.s.Not(e), nil
	}
	return p.cmp()
}

func (p *exprParser) cmp() (ast.Expr, error) {
	left, err := p.add()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	switch {
	case t.keyword("IS"):
		p.next()
		negate := false
		if p.peek().keyword("NOT") {
			p.next()
			negate = true
		}
		if n := p.next(); !n.keyword("NULL") {
			return nil, fmt.Errorf("expected NULL after IS, got %s", n)
		}
		if negate {
			return p.s.IsNotNull(left), nil
		}
		return p.s.IsNull(left), nil
	case t.keyword("LIKE"):
		p.next()
		right, err := p.add()
		if err != nil {
			return nil, err
		}
		return p.s.Like(left, right), nil
	case t.keyword("NOT"):
		p.next()
		if n := p.next(); !n.keyword("LIKE") {
			return nil, fmt.Errorf("expected LIKE after NOT, got %s", n)
		}
		right, err := p.add()
		if err != nil {
			return nil, err
		}
		return p.s.Not(p.s.Like(left, right)), nil
	case t.kind == tokOp:
		var mk func(...any) ast.Expr
		switch t.text {
		case "=", "==":
			mk = p.s.Eq
		case "!=", "<>":
			mk = p.s.Neq
		case "<":
			mk = p.s.Lt
		case ">":
			mk = p.s.Gt
		case "<=":
			mk = p.s.Lte
		case ">=":
			mk = p.s.Gte
		default:
			return left, nil
		}
		p.next()
		right, err := p.add()
		if err != nil {
			return nil, err
		}
		return mk(left, right), nil
	}
	return left, nil
}

func (p *exprParser) add() (ast.Expr, error) {
	return p.arith(p.mul, map[string]func(...any) ast.Expr{"+": p.s.Add, "-": p.s.Subtract})
}

func (p *exprParser) mul() (ast.Expr, error) {
	return p.arith(p.unary, map[string]func(...any) ast.Expr{"*": p.s.Multiply, "/": p.s.Divide})
}

// arith folds a run of the same operator into one n-ary node; a change of
// operator starts a new node with the previous result as its first operand.
func (p *exprParser) arith(sub func() (ast.Expr, error), ops map[string]func(...any) ast.Expr) (ast.Expr, error) {
	first, err := sub()
	if err != nil {
		return nil, err
	}
	args := []any{first}
	cur := ""
	for {
		t := p.peek()
		if _, ok := ops[t.text]; t.kind != tokOp || !ok {
			break
		}
		if cur != "" && t.text != cur {
			args = []any{ops[cur](args...)}
		}
		cur = t.text
		p.next()
		e, err := sub()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	if cur == "" {
		return first, nil
	}
	return ops[cur](args...), nil
}

func (p *exprParser) unary() (ast.Expr, error) {
	if p.peek().is("-") {
		p.next()
		if n := p.peek(); n.kind == tokNumber {
			p.next()
			f, err := strconv.ParseFloat(n.text, 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q", n.text)
			}
			return p.s.Lit(-f), nil
		}
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		return p.s.Negate(e), nil
	}
	return p.primary()
}

func (p *exprParser) primary() (ast.Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", t.text)
		}
		return p.s.Lit(f), nil
	case tokString:
		return p.s.Lit(t.text), nil
	case tokOp:
		if t.is("(") {
			e, err := p.or()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
		if t.is("*") {
			return p.resolve(ast.AllColumns)
		}
	case tokIdent:
		return p.ident(t)
	}
	return nil, fmt.Errorf("unexpected %s at offset %d", t, t.pos)
}

func (p *exprParser) ident(t token) (ast.Expr, error) {
	switch strings.ToUpper(t.text) {
	case "NULL":
		return p.s.Lit(nil), nil
	case "TRUE":
		return p.s.Lit(true), nil
	case "FALSE":
		return p.s.Lit(false), nil
	}

	if p.peek().is("(") {
		var mk func(...any) ast.Expr
		switch strings.ToUpper(t.text) {
		case "SUM":
			mk = p.s.Sum
		case "COUNT":
			mk = p.s.Count
		case "AVG":
			mk = p.s.Avg
		default:
			return nil, fmt.Errorf("unknown function %s", t.text)
		}
		p.next()
		var arg ast.Expr
		if p.peek().is("*") && p.toks[p.i+1].is(")") {
			p.next()
			arg = p.s.Lit(1)
		} else {
			e, err := p.or()
			if err != nil {
				return nil, err
			}
			arg = e
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return mk(arg), nil
	}

	ref := t.text
	if p.peek().is(".") {
		p.next()
		n := p.next()
		switch {
		case n.kind == tokIdent:
			ref += "." + n.text
		case n.is("*"):
			ref += "." + ast.AllColumns
		default:
			return nil, fmt.Errorf("expected column after %s., got %s", t.text, n)
		}
	}
	return p.resolve(ref)
}
