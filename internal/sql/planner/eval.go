package planner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tuannm99/novaquery/internal/record"
	"github.com/tuannm99/novaquery/internal/sql/ast"
	"github.com/tuannm99/novaquery/internal/store"
)

// Tuple holds one row per FROM table, in FROM order. A LEFT OUTER JOIN that
// found no match contributes an empty row.
type Tuple []store.Row

// Env is what an expression is evaluated against.
type Env struct {
	Tuple    Tuple
	Bindings map[string]any

	accs map[*ast.Aggregate]*accumulator
}

type evalFn func(env *Env) (any, error)

func constFn(v any) evalFn {
	return func(*Env) (any, error) { return v, nil }
}

func (t Tuple) get(idx int, col string) any {
	if idx >= len(t) || t[idx] == nil {
		return nil
	}
	return t[idx][col]
}

// accumulator is the running state of one aggregate within one group.
type accumulator struct {
	op    ast.Op
	sum   float64
	count int
}

func (a *accumulator) add(v any) error {
	if v == nil {
		return nil
	}
	if a.op.Name == ast.OpCount.Name {
		a.count++
		return nil
	}
	f, ok := record.ToNumber(v)
	if !ok {
		return fmt.Errorf("%s of non-numeric value %v", a.op.Name, v)
	}
	a.sum += f
	a.count++
	return nil
}

func (a *accumulator) result() any {
	switch a.op.Name {
	case ast.OpCount.Name:
		return float64(a.count)
	case ast.OpAvg.Name:
		if a.count == 0 {
			return nil
		}
		return a.sum / float64(a.count)
	default:
		return a.sum
	}
}

func compare(op ast.Op, a, b any) bool {
	switch op.Name {
	case ast.OpEq.Name:
		return record.Equal(a, b)
	case ast.OpNeq.Name:
		return !record.Equal(a, b)
	}
	c, ok := record.Compare(a, b)
	if !ok {
		return false
	}
	switch op.Name {
	case ast.OpLt.Name:
		return c < 0
	case ast.OpGt.Name:
		return c > 0
	case ast.OpLte.Name:
		return c <= 0
	default:
		return c >= 0
	}
}

// arith folds operands left to right. NULL in, NULL out.
func arith(op ast.Op, vals []any) (any, error) {
	nums := make([]float64, len(vals))
	for i, v := range vals {
		if v == nil {
			return nil, nil
		}
		f, ok := record.ToNumber(v)
		if !ok {
			return nil, fmt.Errorf("non-numeric operand %v", v)
		}
		nums[i] = f
	}

	acc := nums[0]
	switch op.Name {
	case ast.OpNegate.Name:
		return -acc, nil
	case ast.OpParen.Name:
		return acc, nil
	}
	for _, n := range nums[1:] {
		switch op.Name {
		case ast.OpAdd.Name:
			acc += n
		case ast.OpSubtract.Name:
			acc -= n
		case ast.OpMultiply.Name:
			acc *= n
		case ast.OpDivide.Name:
			if n == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			acc /= n
		}
	}
	return acc, nil
}

// likePattern compiles a SQL LIKE pattern: % is any run, _ one character.
func likePattern(p string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	for _, r := range p {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

func likeText(v any) (string, bool) {
	s, ok := record.ToString(v).(string)
	return s, ok
}
