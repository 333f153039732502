package executor

import "github.com/tuannm99/novaquery/internal/sql/planner"

// Result is the generic query result returned to the caller.
type Result struct {
	// Columns names the record keys in projection order.
	Columns []string
	Records []map[string]any

	// Tuples holds live row handles when Options.ReturnReference is set.
	Tuples []planner.Tuple `json:"-"`

	// For DML:
	AffectedRows int64
}

// Rows returns the records positionally, ordered by Columns.
func (r *Result) Rows() [][]any {
	out := make([][]any, len(r.Records))
	for i, rec := range r.Records {
		row := make([]any, len(r.Columns))
		for j, c := range r.Columns {
			row[j] = rec[c]
		}
		out[i] = row
	}
	return out
}
