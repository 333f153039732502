package parser

import (
	"fmt"
	"strings"
	"text/scanner"
)

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func (t token) is(op string) bool { return t.kind == tokOp && t.text == op }

// keyword reports whether t is the identifier kw, case-insensitively.
func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

// lex splits expression text into tokens. Strings are single-quoted and
// accept both \' and '' as an embedded quote.
func lex(src string) ([]token, error) {
	var s scanner.Scanner
	s.Init(strings.NewReader(src))
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats
	s.IsIdentRune = func(ch rune, i int) bool {
		return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
			(i > 0 && ch >= '0' && ch <= '9')
	}
	var scanErr error
	s.Error = func(_ *scanner.Scanner, msg string) {
		if scanErr == nil {
			scanErr = fmt.Errorf("%s", msg)
		}
	}

	var out []token
	for {
		tok := s.Scan()
		pos := s.Position.Offset
		if scanErr != nil {
			return nil, scanErr
		}
		switch tok {
		case scanner.EOF:
			out = append(out, token{kind: tokEOF, pos: len(src)})
			return out, nil
		case scanner.Ident:
			out = append(out, token{kind: tokIdent, text: s.TokenText(), pos: pos})
		case scanner.Int, scanner.Float:
			out = append(out, token{kind: tokNumber, text: s.TokenText(), pos: pos})
		case '\'':
			str, err := scanString(&s)
			if err != nil {
				return nil, fmt.Errorf("%w at offset %d", err, pos)
			}
			out = append(out, token{kind: tokString, text: str, pos: pos})
		case '<', '>', '!', '=':
			op := string(tok)
			switch next := s.Peek(); {
			case next == '=':
				op += string(s.Next())
			case tok == '<' && next == '>':
				op += string(s.Next())
			}
			if op == "!" {
				return nil, fmt.Errorf("unexpected '!' at offset %d", pos)
			}
			out = append(out, token{kind: tokOp, text: op, pos: pos})
		case '+', '-', '*', '/', '(', ')', ',', '.', '?':
			out = append(out, token{kind: tokOp, text: string(tok), pos: pos})
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", tok, pos)
		}
	}
}

func scanString(s *scanner.Scanner) (string, error) {
	var b strings.Builder
	for {
		ch := s.Next()
		switch ch {
		case scanner.EOF:
			return "", fmt.Errorf("unclosed string literal")
		case '\\':
			esc := s.Next()
			if esc == scanner.EOF {
				return "", fmt.Errorf("unclosed string literal")
			}
			b.WriteRune(esc)
		case '\'':
			if s.Peek() == '\'' {
				b.WriteRune(s.Next())
				continue
			}
			return b.String(), nil
		default:
			b.WriteRune(ch)
		}
	}
}
