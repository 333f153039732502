package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// History keeps the shell's executed statements, one per line, in memory
// and appended to a file. Only the last limit statements stay in memory, and
// a statement repeating the previous one is not recorded again.
type History struct {
	limit int
	lines []string
	f     *os.File
}

// OpenHistory reads the statements already in path and opens it for
// appending. An empty path keeps history in memory only.
func OpenHistory(path string, limit int) (*History, error) {
	h := &History{limit: limit}
	if path == "" {
		return h, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if err := h.read(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("history: read %s: %w", path, err)
	}
	h.f = f
	return h, nil
}

func (h *History) read(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		h.remember(sc.Text())
	}
	return sc.Err()
}

// remember keeps stmt in memory and reports whether it was new.
func (h *History) remember(stmt string) bool {
	stmt = compactOneLine(stmt)
	if stmt == "" {
		return false
	}
	if n := len(h.lines); n > 0 && h.lines[n-1] == stmt {
		return false
	}
	h.lines = append(h.lines, stmt)
	if h.limit > 0 && len(h.lines) > h.limit {
		h.lines = slices.Delete(h.lines, 0, len(h.lines)-h.limit)
	}
	return true
}

// Add records stmt on one line.
func (h *History) Add(stmt string) error {
	if !h.remember(stmt) || h.f == nil {
		return nil
	}
	_, err := io.WriteString(h.f, h.lines[len(h.lines)-1]+"\n")
	return err
}

func (h *History) Lines() []string { return h.lines }

// Print writes the last n statements, numbered from the oldest kept one.
// n <= 0 prints all of them.
func (h *History) Print(w io.Writer, n int) {
	if n <= 0 || n > len(h.lines) {
		n = len(h.lines)
	}
	first := len(h.lines) - n
	for i, line := range h.lines[first:] {
		fmt.Fprintf(w, "%5d  %s\n", first+i+1, line)
	}
}

func (h *History) Close() error {
	if h.f == nil {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	return err
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".novaquery_history"
	}
	return filepath.Join(home, ".novaquery_history")
}

// compactOneLine collapses runs of whitespace into single spaces.
func compactOneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// statementComplete reports a terminating ';' outside single quotes.
// Both \' and '' keep a quote inside its string.
func statementComplete(buf string) bool {
	inQuote := false
	escaped := false
	for _, r := range buf {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case r == '\\' && inQuote:
			escaped = true
		case r == '\'':
			inQuote = !inQuote
		case r == ';' && !inQuote:
			return true
		}
	}
	return false
}

func isMetaCommand(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "\\") || line == "quit" || line == "exit"
}
