// Package sqlerr defines the three error kinds a statement can fail with:
// building it, parsing it, or evaluating it.
package sqlerr

import (
	"errors"
	"fmt"
)

// BuildError is a wrong arity or argument type to a builder clause, an alias
// redefinition, or a reference to an unknown table or column.
type BuildError struct {
	Clause string
	Msg    string
}

func (e *BuildError) Error() string {
	if e.Clause == "" {
		return "query build error: " + e.Msg
	}
	return fmt.Sprintf("query build error in %s: %s", e.Clause, e.Msg)
}

func Build(clause, format string, args ...any) error {
	return &BuildError{Clause: clause, Msg: fmt.Sprintf(format, args...)}
}

// ParseError is statement text the parser cannot turn into a statement.
type ParseError struct {
	Query string
	Msg   string
	Err   error
}

func (e *ParseError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("query parse error: %s in query: %s", msg, e.Query)
}

func (e *ParseError) Unwrap() error { return e.Err }

func Parse(query, format string, args ...any) error {
	return &ParseError{Query: query, Msg: fmt.Sprintf(format, args...)}
}

// EvalError is a failure while compiling or evaluating an expression against
// rows, such as an unknown binding or non-numeric arithmetic.
type EvalError struct {
	Expr string
	Err  error
}

func (e *EvalError) Error() string {
	if e.Expr == "" {
		return "evaluation error: " + e.Err.Error()
	}
	return fmt.Sprintf("evaluation error in %s: %v", e.Expr, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

func Eval(expr string, err error) error {
	var ee *EvalError
	if errors.As(err, &ee) {
		return err
	}
	return &EvalError{Expr: expr, Err: err}
}

func Evalf(expr, format string, args ...any) error {
	return &EvalError{Expr: expr, Err: fmt.Errorf(format, args...)}
}

func IsBuild(err error) bool {
	var e *BuildError
	return errors.As(err, &e)
}

func IsParse(err error) bool {
	var e *ParseError
	return errors.As(err, &e)
}

func IsEval(err error) bool {
	var e *EvalError
	return errors.As(err, &e)
}

// Kind names the error kind for logs and the wire protocol.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsBuild(err):
		return "build"
	case IsParse(err):
		return "parse"
	case IsEval(err):
		return "eval"
	default:
		return "internal"
	}
}
