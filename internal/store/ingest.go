package store

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tuannm99/novaquery/internal/record"
)

// LoadCSV reads a header line plus records and appends them to schema.Name.
// Cells are converted by the declared column type; columns the schema does
// not declare are kept as text. Empty cells become NULL.
func (s *TableStore) LoadCSV(r io.Reader, schema record.Schema) (int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("store: read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("store: read csv line %d: %w", line, err)
		}

		row := make(Row, len(header))
		for i, name := range header {
			if i >= len(rec) || rec[i] == "" {
				row[name] = nil
				continue
			}
			col, _ := schema.Column(name)
			v, err := record.Coerce(col.Type, rec[i])
			if err != nil {
				return 0, fmt.Errorf("store: csv line %d column %s: %w", line, name, err)
			}
			row[name] = v
		}
		rows = append(rows, row)
	}

	// all or nothing
	for _, row := range rows {
		s.Append(schema.Name, row)
	}
	return len(rows), nil
}

// LoadJSON reads a {"table": [{"col": value}, ...]} snapshot. Values are
// coerced by the schemas in ss; tables ss does not declare are kept as-is.
func (s *TableStore) LoadJSON(r io.Reader, ss *record.SchemaSet) error {
	var snap map[string][]map[string]any
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("store: decode snapshot: %w", err)
	}

	loaded := make(map[string][]Row, len(snap))
	for table, objs := range snap {
		schema, _ := ss.Lookup(table)
		rows := make([]Row, 0, len(objs))
		for i, obj := range objs {
			row := make(Row, len(obj))
			for k, v := range obj {
				ct := guessType(v)
				if schema != nil {
					if col, ok := schema.Column(k); ok {
						ct = col.Type
					}
				}
				cv, err := record.Coerce(ct, v)
				if err != nil {
					return fmt.Errorf("store: %s[%d].%s: %w", table, i, k, err)
				}
				row[k] = cv
			}
			rows = append(rows, row)
		}
		loaded[table] = rows
	}

	for table, rows := range loaded {
		s.tables[table] = append(s.tables[table], rows...)
	}
	return nil
}

// DumpJSON writes the store in the format LoadJSON reads. Dates are written
// as YYYY-M-D text.
func (s *TableStore) DumpJSON(w io.Writer) error {
	snap := make(map[string][]map[string]any, len(s.tables))
	for table, rows := range s.tables {
		out := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			obj := make(map[string]any, len(row))
			for k, v := range row {
				if d, ok := v.(time.Time); ok {
					obj[k] = record.FormatDate(d)
					continue
				}
				obj[k] = v
			}
			out = append(out, obj)
		}
		snap[table] = out
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func guessType(v any) record.ColumnType {
	if _, ok := v.(float64); ok {
		return record.ColNumber
	}
	return record.ColString
}
