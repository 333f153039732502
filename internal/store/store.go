// Package store holds table data in memory: a mapping from table name to an
// ordered sequence of rows. Rows are maps, so a Row returned by Table is a
// live handle; writes through it mutate the store.
//
// TableStore has no locking. Callers run at most one statement against a
// store at a time.
package store

import (
	"sort"
)

// Row maps column name to value.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	cp := make(Row, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

// Clear deletes every field, leaving an empty row that Compact removes.
func (r Row) Clear() {
	for k := range r {
		delete(r, k)
	}
}

type TableStore struct {
	tables map[string][]Row
}

func New() *TableStore {
	return &TableStore{tables: make(map[string][]Row)}
}

// Table returns the rows of name. An absent table is an empty sequence.
func (s *TableStore) Table(name string) []Row {
	if s == nil {
		return nil
	}
	return s.tables[name]
}

// Has reports whether a sequence exists for name, even an empty one.
func (s *TableStore) Has(name string) bool {
	_, ok := s.tables[name]
	return ok
}

func (s *TableStore) Len(name string) int {
	return len(s.Table(name))
}

// Append adds row to name, creating the sequence when absent.
func (s *TableStore) Append(name string, row Row) {
	s.tables[name] = append(s.tables[name], row)
}

// Put replaces the whole sequence for name.
func (s *TableStore) Put(name string, rows []Row) {
	s.tables[name] = rows
}

// Scan calls fn for each row of name in order, stopping on the first error.
func (s *TableStore) Scan(name string, fn func(i int, row Row) error) error {
	for i, row := range s.Table(name) {
		if err := fn(i, row); err != nil {
			return err
		}
	}
	return nil
}

// Compact removes rows left with no fields and returns how many were removed.
func (s *TableStore) Compact(name string) int {
	rows, ok := s.tables[name]
	if !ok {
		return 0
	}
	kept := rows[:0]
	for _, r := range rows {
		if len(r) > 0 {
			kept = append(kept, r)
		}
	}
	removed := len(rows) - len(kept)
	for i := len(kept); i < len(rows); i++ {
		rows[i] = nil
	}
	s.tables[name] = kept
	return removed
}

// Names returns the table names present in the store, sorted.
func (s *TableStore) Names() []string {
	out := make([]string, 0, len(s.tables))
	for n := range s.tables {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
