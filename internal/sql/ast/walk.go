package ast

// Children returns the direct child expressions of e.
func Children(e Expr) []Expr {
	switch x := e.(type) {
	case *Logical:
		return x.Args
	case *Comparison:
		return x.Args
	case *Arithmetic:
		return x.Args
	case *Aggregate:
		return []Expr{x.Arg}
	default:
		return nil
	}
}

// Walk visits e depth-first, pre-order. Returning false skips e's children.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range Children(e) {
		Walk(c, fn)
	}
}

// Aggregates returns every aggregate node under exprs, outermost first.
func Aggregates(exprs ...Expr) []*Aggregate {
	var out []*Aggregate
	for _, e := range exprs {
		Walk(e, func(n Expr) bool {
			if a, ok := n.(*Aggregate); ok {
				out = append(out, a)
			}
			return true
		})
	}
	return out
}
