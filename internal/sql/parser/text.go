package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// scanTopLevel walks s rune by rune, reporting whether each rune sits inside
// a quoted string and the parenthesis depth outside strings. Backslash
// escapes and doubled quotes stay inside the string.
func scanTopLevel(s string, fn func(i int, r rune, quoted bool, depth int)) {
	quoted, escaped, depth := false, false, 0
	for i, r := range s {
		switch {
		case quoted && escaped:
			escaped = false
			fn(i, r, true, depth)
			continue
		case quoted && r == '\\':
			escaped = true
			fn(i, r, true, depth)
			continue
		case r == '\'':
			// both quote characters count as quoted
			quoted = !quoted
			fn(i, r, true, depth)
			continue
		}
		if !quoted {
			switch r {
			case '(':
				depth++
			case ')':
				if depth > 0 {
					depth--
				}
			}
		}
		fn(i, r, quoted, depth)
	}
}

// topLevel returns a mask of byte offsets that are outside strings and
// parentheses.
func topLevel(s string) []bool {
	mask := make([]bool, len(s)+1)
	scanTopLevel(s, func(i int, r rune, quoted bool, depth int) {
		top := !quoted && depth == 0 && r != '(' && r != ')'
		for k := 0; k < utf8.RuneLen(r); k++ {
			mask[i+k] = top
		}
	})
	mask[len(s)] = true
	return mask
}

func isBoundary(s string, i int) bool {
	if i <= 0 || i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.')
}

// indexKeyword finds kw (case-insensitive, whole words) at top level,
// starting the search at from. It returns -1 when absent.
func indexKeyword(s, kw string, from int) int {
	mask := topLevel(s)
	for i := from; i+len(kw) <= len(s); i++ {
		if !mask[i] || !strings.EqualFold(s[i:i+len(kw)], kw) {
			continue
		}
		if i > 0 && !isBoundary(s, i-1) {
			continue
		}
		if !isBoundary(s, i+len(kw)) {
			continue
		}
		return i
	}
	return -1
}

// lastKeyword is indexKeyword searching from the end.
func lastKeyword(s, kw string) int {
	last := -1
	for i := indexKeyword(s, kw, 0); i >= 0; i = indexKeyword(s, kw, i+1) {
		last = i
	}
	return last
}

// cutKeyword splits s around the first top-level kw.
func cutKeyword(s, kw string) (before, after string, ok bool) {
	i := indexKeyword(s, kw, 0)
	if i < 0 {
		return strings.TrimSpace(s), "", false
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(kw):]), true
}

// indexTopLevel finds byte c outside strings and parentheses.
func indexTopLevel(s string, c byte) int {
	mask := topLevel(s)
	for i := 0; i < len(s); i++ {
		if s[i] == c && mask[i] {
			return i
		}
	}
	return -1
}

// splitComma splits a comma-separated list, ignoring commas inside quotes
// and parentheses.
func splitComma(s string) []string {
	mask := topLevel(s)
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' && mask[i] {
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// indexAssign finds the "=" of "col = value", skipping comparison operators.
func indexAssign(s string) int {
	mask := topLevel(s)
	for i := 0; i < len(s); i++ {
		if s[i] != '=' || !mask[i] {
			continue
		}
		if i > 0 && strings.ContainsRune("<>!=", rune(s[i-1])) {
			continue
		}
		if i+1 < len(s) && s[i+1] == '=' {
			continue
		}
		return i
	}
	return -1
}

// collapseSpace turns runs of whitespace outside strings into one space.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	scanTopLevel(s, func(_ int, r rune, quoted bool, _ int) {
		if !quoted && unicode.IsSpace(r) {
			space = true
			return
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	})
	return b.String()
}
