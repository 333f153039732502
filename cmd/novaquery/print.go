package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/tuannm99/novaquery/internal/sql/executor"
)

// printResult renders res as an aligned table, or an affected count for
// statements without columns.
func printResult(w io.Writer, res *executor.Result) {
	if len(res.Columns) == 0 {
		fmt.Fprintf(w, "OK (%d affected)\n", res.AffectedRows)
		return
	}

	cols := res.Columns
	rows := make([][]string, 0, len(res.Records))
	for _, row := range res.Rows() {
		out := make([]string, len(cols))
		for i := range cols {
			out[i] = cellText(row[i])
		}
		rows = append(rows, out)
	}

	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, s := range row {
			widths[i] = max(widths[i], len(s))
		}
	}

	printRow := func(values []string) {
		for i := range cols {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			fmt.Fprint(w, padRight(values[i], widths[i]))
		}
		fmt.Fprintln(w)
	}

	printRow(cols)
	for i := range cols {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", widths[i]))
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		printRow(row)
	}

	fmt.Fprintf(w, "(%d rows)\n", len(rows))
}

func cellText(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
