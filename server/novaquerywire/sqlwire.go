package novaquerywire

import "github.com/tuannm99/novaquery/internal/sql/executor"

// ExecuteRequest is one statement. Params fill "?" placeholders in order;
// Bindings supply values for bare names in predicates.
type ExecuteRequest struct {
	ID        uint64         `json:"id"`
	SQL       string         `json:"sql"`
	Params    []any          `json:"params,omitempty"`
	Bindings  map[string]any `json:"bindings,omitempty"`
	WithTable bool           `json:"with_table,omitempty"`
	Explain   bool           `json:"explain,omitempty"`
}

// ExecuteResponse is the response for a request ID. Kind is the error kind
// ("build", "parse", "eval", "internal") when Error is set.
type ExecuteResponse struct {
	ID      uint64           `json:"id"`
	Result  *executor.Result `json:"result,omitempty"`
	Plan    string           `json:"plan,omitempty"`
	Error   string           `json:"error,omitempty"`
	Kind    string           `json:"kind,omitempty"`
	Session string           `json:"session,omitempty"`
}
