package planner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tuannm99/novaquery/internal/record"
	"github.com/tuannm99/novaquery/internal/sql/ast"
	"github.com/tuannm99/novaquery/internal/sql/builder"
	"github.com/tuannm99/novaquery/internal/sql/parser"
	"github.com/tuannm99/novaquery/internal/sql/sqlerr"
)

// compiler turns expression trees into evalFns against a fixed FROM list.
type compiler struct {
	b      *builder.Builder
	tables []*ast.Table
	index  map[*ast.Table]int

	// projected columns, consulted by HAVING fragments
	projected []ast.Expr

	// aggregates met while compiling, in first-seen order
	aggs    []*ast.Aggregate
	aggSeen map[*ast.Aggregate]bool
}

func newCompiler(b *builder.Builder, tables []*ast.Table) *compiler {
	c := &compiler{
		b:       b,
		tables:  tables,
		index:   make(map[*ast.Table]int, len(tables)),
		aggSeen: make(map[*ast.Aggregate]bool),
	}
	for i, t := range tables {
		c.index[t] = i
	}
	return c
}

type exprMode uint8

const (
	// modeRow evaluates against a row-tuple; aggregates are not allowed.
	modeRow exprMode = iota
	// modeGroup evaluates at a group boundary; aggregates read accumulators.
	modeGroup
	// modeHaving is modeGroup where raw fragments may name projected aliases.
	modeHaving
)

func (c *compiler) compile(e ast.Expr, mode exprMode, clause string) (evalFn, error) {
	switch x := e.(type) {
	case *ast.Literal:
		return constFn(x.Value), nil

	case *ast.Binding:
		key := x.Key
		return func(env *Env) (any, error) {
			v, ok := env.Bindings[key]
			if !ok {
				return nil, sqlerr.Evalf(key, "unknown binding %q", key)
			}
			return record.Normalize(v), nil
		}, nil

	case *ast.ColumnRef:
		if x.IsAll() {
			return nil, sqlerr.Evalf(x.QualifiedName(), "%s is not a value", x.QualifiedName())
		}
		idx, ok := c.index[x.Table]
		if !ok {
			return nil, sqlerr.Evalf(x.QualifiedName(), "table %s is not in FROM", x.Table.Alias)
		}
		col := x.Column
		return func(env *Env) (any, error) { return env.Tuple.get(idx, col), nil }, nil

	case *ast.Raw:
		parsed, err := c.parseRaw(x, mode)
		if err != nil {
			return nil, err
		}
		return c.compile(parsed, mode, clause)

	case *ast.Aggregate:
		return c.compileAggregate(x, mode, clause)

	case *ast.Logical:
		return c.compileLogical(x, mode, clause)

	case *ast.Comparison:
		return c.compileComparison(x, mode, clause)

	case *ast.Arithmetic:
		args, err := c.compileAll(x.Args, mode, clause)
		if err != nil {
			return nil, err
		}
		op, text := x.Op, x.SQL(ast.Flags{})
		return func(env *Env) (any, error) {
			vals, err := evalAll(args, env)
			if err != nil {
				return nil, err
			}
			v, err := arith(op, vals)
			if err != nil {
				return nil, sqlerr.Eval(text, err)
			}
			return v, nil
		}, nil

	default:
		return nil, sqlerr.Evalf(clause, "unsupported expression %T", e)
	}
}

func (c *compiler) compileAll(es []ast.Expr, mode exprMode, clause string) ([]evalFn, error) {
	out := make([]evalFn, len(es))
	for i, e := range es {
		fn, err := c.compile(e, mode, clause)
		if err != nil {
			return nil, err
		}
		out[i] = fn
	}
	return out, nil
}

func evalAll(fns []evalFn, env *Env) ([]any, error) {
	vals := make([]any, len(fns))
	for i, fn := range fns {
		v, err := fn(env)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (c *compiler) compileAggregate(x *ast.Aggregate, mode exprMode, clause string) (evalFn, error) {
	if mode == modeRow {
		return nil, sqlerr.Evalf(x.SQL(ast.Flags{}), "aggregate %s not allowed in %s", x.Name(), clause)
	}
	if inner := ast.Aggregates(x.Arg); len(inner) > 0 {
		return nil, sqlerr.Evalf(x.SQL(ast.Flags{}), "nested aggregate %s", inner[0].Name())
	}
	if !c.aggSeen[x] {
		c.aggSeen[x] = true
		c.aggs = append(c.aggs, x)
	}
	return func(env *Env) (any, error) {
		acc, ok := env.accs[x]
		if !ok {
			return nil, sqlerr.Evalf(x.SQL(ast.Flags{}), "aggregate evaluated outside a group")
		}
		return acc.result(), nil
	}, nil
}

func (c *compiler) compileLogical(x *ast.Logical, mode exprMode, clause string) (evalFn, error) {
	args, err := c.compileAll(x.Args, mode, clause)
	if err != nil {
		return nil, err
	}
	switch x.Op.Name {
	case ast.OpNot.Name:
		return func(env *Env) (any, error) {
			v, err := args[0](env)
			if err != nil {
				return nil, err
			}
			return !record.Truthy(v), nil
		}, nil
	case ast.OpOr.Name:
		return func(env *Env) (any, error) {
			for _, fn := range args {
				v, err := fn(env)
				if err != nil {
					return nil, err
				}
				if record.Truthy(v) {
					return true, nil
				}
			}
			return false, nil
		}, nil
	default:
		return andFn(args), nil
	}
}

// andFn is true when every conjunct is, stopping at the first false one.
func andFn(args []evalFn) evalFn {
	return func(env *Env) (any, error) {
		for _, fn := range args {
			v, err := fn(env)
			if err != nil {
				return nil, err
			}
			if !record.Truthy(v) {
				return false, nil
			}
		}
		return true, nil
	}
}

func (c *compiler) compileComparison(x *ast.Comparison, mode exprMode, clause string) (evalFn, error) {
	args, err := c.compileAll(x.Args, mode, clause)
	if err != nil {
		return nil, err
	}
	op := x.Op
	switch op.Name {
	case ast.OpIsNull.Name, ast.OpIsNotNull.Name:
		want := op.Name == ast.OpIsNull.Name
		return func(env *Env) (any, error) {
			v, err := args[0](env)
			if err != nil {
				return nil, err
			}
			return (v == nil) == want, nil
		}, nil

	case ast.OpLike.Name:
		return c.compileLike(x, args)
	}

	return func(env *Env) (any, error) {
		a, err := args[0](env)
		if err != nil {
			return nil, err
		}
		b, err := args[1](env)
		if err != nil {
			return nil, err
		}
		return compare(op, a, b), nil
	}, nil
}

func (c *compiler) compileLike(x *ast.Comparison, args []evalFn) (evalFn, error) {
	text := x.SQL(ast.Flags{})
	var fixed *regexp.Regexp
	if lit, ok := x.Args[1].(*ast.Literal); ok {
		p, ok := lit.Value.(string)
		if !ok {
			return nil, sqlerr.Evalf(text, "LIKE pattern must be text")
		}
		re, err := likePattern(p)
		if err != nil {
			return nil, sqlerr.Eval(text, err)
		}
		fixed = re
	}

	return func(env *Env) (any, error) {
		v, err := args[0](env)
		if err != nil {
			return nil, err
		}
		s, ok := likeText(v)
		if !ok {
			return false, nil
		}
		re := fixed
		if re == nil {
			pv, err := args[1](env)
			if err != nil {
				return nil, err
			}
			p, ok := likeText(pv)
			if !ok {
				return false, nil
			}
			if re, err = likePattern(p); err != nil {
				return nil, sqlerr.Eval(text, err)
			}
		}
		return re.MatchString(s), nil
	}, nil
}

// parseRaw parses fragment text into nodes bound to this FROM list.
// Failures are evaluation errors: fragments are only checked here.
func (c *compiler) parseRaw(r *ast.Raw, mode exprMode) (ast.Expr, error) {
	resolve := c.resolveRow
	if mode == modeHaving {
		resolve = c.resolveHaving
	}
	e, err := parser.ParseExpr(r.Text, c.b.NewScope(), resolve)
	if err != nil {
		return nil, sqlerr.Eval(r.Text, err)
	}
	return e, nil
}

// resolveRow maps "alias.col" and bare column names onto the FROM tables.
// A bare name no FROM table declares reads a binding.
func (c *compiler) resolveRow(ref string) (ast.Expr, error) {
	if tbl, col, ok := strings.Cut(ref, "."); ok {
		for _, t := range c.tables {
			if t.Alias != tbl {
				continue
			}
			if col == ast.AllColumns {
				return nil, fmt.Errorf("%s is not a value", ref)
			}
			if cr := t.Col(col); cr != nil {
				return cr, nil
			}
			return nil, fmt.Errorf("unknown column %q in table %q", col, tbl)
		}
		return nil, fmt.Errorf("unknown table %q", tbl)
	}

	var found *ast.ColumnRef
	for _, t := range c.tables {
		if cr := t.Col(ref); cr != nil {
			if found != nil {
				return nil, fmt.Errorf("ambiguous column %q", ref)
			}
			found = cr
		}
	}
	if found != nil {
		return found, nil
	}
	return ast.NewBinding(ref), nil
}

// resolveHaving prefers projected aliases, so "c > 1" reads the column
// projected AS c.
func (c *compiler) resolveHaving(ref string) (ast.Expr, error) {
	for _, p := range c.projected {
		if p.AliasName() == ref {
			return p, nil
		}
		if cr, ok := p.(*ast.ColumnRef); ok && !cr.IsAll() && cr.QualifiedName() == ref {
			return p, nil
		}
	}
	return c.resolveRow(ref)
}
