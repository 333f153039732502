// Package parser turns statement text into ast statements by driving the
// builder. WHERE, HAVING and ON bodies are kept as raw fragments and only
// parsed when the statement is compiled.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/tuannm99/novaquery/internal/record"
	"github.com/tuannm99/novaquery/internal/sql/ast"
	"github.com/tuannm99/novaquery/internal/sql/builder"
	"github.com/tuannm99/novaquery/internal/sql/sqlerr"
)

type Parser struct {
	b *builder.Builder
}

func New(b *builder.Builder) *Parser {
	return &Parser{b: b}
}

// parseIdent validates a table or column name: one token, a letter or '_'
// first, then letters, digits or '_'.
func parseIdent(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("missing identifier")
	}

	parts := strings.Fields(s)
	if len(parts) != 1 {
		return "", fmt.Errorf("invalid identifier %q", s)
	}
	id := parts[0]

	for i, r := range id {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return "", fmt.Errorf("invalid identifier %q", id)
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return "", fmt.Errorf("invalid identifier %q", id)
		}
	}

	return id, nil
}

// Parse parses one statement. Each "?" outside string literals takes the
// next param, rendered as a literal. A trailing ';' is optional.
func (p *Parser) Parse(text string, params ...any) (ast.Statement, error) {
	s := collapseSpace(text)
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	if s == "" {
		return nil, sqlerr.Parse(text, "empty statement")
	}

	s, err := bindParams(s, params)
	if err != nil {
		return nil, &sqlerr.ParseError{Query: text, Msg: "bad parameters", Err: err}
	}

	kw, rest, _ := strings.Cut(s, " ")
	st := &stmtParser{q: p.b.NewScope(), text: text}

	switch strings.ToUpper(kw) {
	case "SELECT":
		return st.parseSelect(rest)
	case "DELETE", "DESTROY":
		return st.parseDestroy(rest)
	case "INSERT":
		return st.parseInsert(rest)
	case "UPDATE":
		return st.parseUpdate(rest)
	default:
		return nil, sqlerr.Parse(text, "not a valid query type %q", kw)
	}
}

// stmtParser carries one statement's scope; a fresh one per Parse call means
// an abandoned statement never leaks aliases.
type stmtParser struct {
	q    *builder.Scope
	text string
	from *ast.From
}

func (st *stmtParser) fail(format string, args ...any) error {
	return sqlerr.Parse(st.text, format, args...)
}

func (st *stmtParser) wrap(msg string, err error) error {
	if sqlerr.IsBuild(err) {
		return err
	}
	return &sqlerr.ParseError{Query: st.text, Msg: msg, Err: err}
}

// resolve looks identifiers up against the FROM list once it is known. A
// bare name that is neither a FROM column nor an alias reads a binding.
func (st *stmtParser) resolve(ref string) (ast.Expr, error) {
	if !strings.Contains(ref, ".") && ref != ast.AllColumns && !st.known(ref) {
		return st.q.Bind(ref), nil
	}
	e := st.q.Resolve(st.from, ref)
	return e, st.q.Err()
}

func (st *stmtParser) known(name string) bool {
	if st.q.Ref(name) != nil {
		return true
	}
	if st.from == nil {
		return false
	}
	for _, t := range st.from.Tables() {
		if t.Col(name) != nil {
			return true
		}
	}
	return false
}

func (st *stmtParser) expr(clause, text string) (ast.Expr, error) {
	e, err := ParseExpr(text, st.q, st.resolve)
	if err != nil {
		return nil, st.wrap("invalid "+clause+" expression "+strconv.Quote(strings.TrimSpace(text)), err)
	}
	return e, nil
}

var selectClauses = []string{"WHERE", "GROUP BY", "HAVING", "ORDER BY", "LIMIT"}

// splitClauses cuts text at the optional trailing clauses, which must
// appear in canonical order. The first return is the text before them.
func (st *stmtParser) splitClauses(text string, kws []string) (string, map[string]string, error) {
	type mark struct {
		kw  string
		pos int
	}
	var marks []mark
	for _, kw := range kws {
		if i := indexKeyword(text, kw, 0); i >= 0 {
			if len(marks) > 0 && i < marks[len(marks)-1].pos {
				return "", nil, st.fail("%s clause must come before %s", marks[len(marks)-1].kw, kw)
			}
			marks = append(marks, mark{kw, i})
		}
	}

	out := make(map[string]string, len(marks))
	head := text
	if len(marks) > 0 {
		head = text[:marks[0].pos]
	}
	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1].pos
		}
		body := strings.TrimSpace(text[m.pos+len(m.kw) : end])
		if body == "" {
			return "", nil, st.fail("empty %s clause", m.kw)
		}
		out[m.kw] = body
	}
	return strings.TrimSpace(head), out, nil
}

func (st *stmtParser) parseSelect(body string) (ast.Statement, error) {
	args, err := st.query(body, true)
	if err != nil {
		return nil, err
	}
	sel, err := st.q.Select(args...)
	if err != nil {
		return nil, err
	}
	return sel, nil
}

func (st *stmtParser) parseDestroy(body string) (ast.Statement, error) {
	args, err := st.query(body, false)
	if err != nil {
		return nil, err
	}
	d, err := st.q.Destroy(args...)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// query parses "cols FROM ..." into builder arguments for Select or Destroy.
func (st *stmtParser) query(body string, needCols bool) ([]any, error) {
	colsText, rest, ok := cutKeyword(body, "FROM")
	if !ok {
		return nil, st.fail("missing a FROM clause")
	}
	fromText, clauses, err := st.splitClauses(rest, selectClauses)
	if err != nil {
		return nil, err
	}

	from, err := st.parseFrom(fromText)
	if err != nil {
		return nil, err
	}
	st.from = from

	var args []any
	if colsText == "" && needCols {
		return nil, st.fail("missing column list")
	}
	if colsText != "" {
		cols, err := st.parseColumns(colsText)
		if err != nil {
			return nil, err
		}
		args = append(args, cols...)
	}
	args = append(args, from)

	if w, ok := clauses["WHERE"]; ok {
		args = append(args, st.q.WhereSQL(w))
	}
	if g, ok := clauses["GROUP BY"]; ok {
		var exprs []any
		for _, part := range splitComma(g) {
			e, err := st.expr("GROUP BY", part)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, e)
		}
		args = append(args, st.q.GroupBy(exprs...))
	}
	if h, ok := clauses["HAVING"]; ok {
		args = append(args, st.q.HavingSQL(h))
	}
	if o, ok := clauses["ORDER BY"]; ok {
		ob, err := st.parseOrderBy(o)
		if err != nil {
			return nil, err
		}
		args = append(args, ob)
	}
	if l, ok := clauses["LIMIT"]; ok {
		lim, err := st.parseLimit(l)
		if err != nil {
			return nil, err
		}
		args = append(args, lim)
	}
	return args, nil
}

var joinKeywords = []struct {
	kw   string
	kind ast.JoinKind
}{
	{"LEFT OUTER JOIN", ast.LeftOuterJoin},
	{"LEFT JOIN", ast.LeftOuterJoin},
	{"INNER JOIN", ast.InnerJoin},
	{"CROSS JOIN", ast.CrossJoin},
	{"JOIN", ast.InnerJoin},
}

func (st *stmtParser) parseFrom(text string) (*ast.From, error) {
	if text == "" {
		return nil, st.fail("missing table after FROM")
	}

	var items []any
	rest := text
	kind, joined := ast.CrossJoin, false
	for {
		// earliest join keyword or comma at top level
		next, nextLen := -1, 0
		nextKind, nextJoin := ast.CrossJoin, false
		for _, jk := range joinKeywords {
			if i := indexKeyword(rest, jk.kw, 0); i >= 0 && (next < 0 || i < next) {
				next, nextLen, nextKind, nextJoin = i, len(jk.kw), jk.kind, true
			}
		}
		if i := indexTopLevel(rest, ','); i >= 0 && (next < 0 || i < next) {
			next, nextLen, nextKind, nextJoin = i, 1, ast.CrossJoin, false
		}

		seg := rest
		if next >= 0 {
			seg = rest[:next]
		}
		item, err := st.parseFromItem(strings.TrimSpace(seg), kind, joined)
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		if next < 0 {
			break
		}
		rest = strings.TrimSpace(rest[next+nextLen:])
		kind, joined = nextKind, nextJoin
	}

	from := st.q.From(items...)
	if err := st.q.Err(); err != nil {
		return nil, err
	}
	return from, nil
}

// parseFromItem reads "Table [[AS] alias] [ON cond | USING (cols)]".
func (st *stmtParser) parseFromItem(seg string, kind ast.JoinKind, joined bool) (any, error) {
	var on, using string
	if before, after, ok := cutKeyword(seg, "ON"); ok {
		seg, on = before, after
	} else if before, after, ok := cutKeyword(seg, "USING"); ok {
		seg, using = before, after
	}

	fields := strings.Fields(seg)
	var name, alias string
	switch {
	case len(fields) == 1:
		name = fields[0]
	case len(fields) == 2:
		name, alias = fields[0], fields[1]
	case len(fields) == 3 && strings.EqualFold(fields[1], "AS"):
		name, alias = fields[0], fields[2]
	default:
		return nil, st.fail("invalid table reference %q", seg)
	}
	if _, err := parseIdent(name); err != nil {
		return nil, st.wrap("invalid FROM", err)
	}

	t := st.q.Table(name)
	if alias != "" {
		if _, err := parseIdent(alias); err != nil {
			return nil, st.wrap("invalid table alias", err)
		}
		t = st.q.AsTable(t, alias)
	}
	if err := st.q.Err(); err != nil {
		return nil, err
	}

	if !joined {
		if on != "" || using != "" {
			return nil, st.fail("ON or USING without a JOIN")
		}
		return t, nil
	}

	var jc *builder.JoinClause
	switch kind {
	case ast.LeftOuterJoin:
		jc = st.q.LeftOuterJoin(t)
	case ast.InnerJoin:
		jc = st.q.InnerJoin(t)
	default:
		jc = st.q.CrossJoin(t)
	}
	switch {
	case on != "" && kind == ast.CrossJoin:
		return nil, st.fail("CROSS JOIN takes no ON clause")
	case on != "":
		jc.On(st.q.Raw(on))
	case using != "":
		if !strings.HasPrefix(using, "(") || !strings.HasSuffix(using, ")") {
			return nil, st.fail("USING needs a parenthesized column list")
		}
		var cols []string
		for _, c := range splitComma(using[1 : len(using)-1]) {
			id, err := parseIdent(c)
			if err != nil {
				return nil, st.wrap("invalid USING column", err)
			}
			cols = append(cols, id)
		}
		jc.Using(cols...)
	case kind != ast.CrossJoin:
		return nil, st.fail("%s JOIN %s needs ON or USING", kind, name)
	}
	return jc, nil
}

func (st *stmtParser) parseColumns(text string) ([]any, error) {
	if text == "*" {
		var cols []any
		for _, t := range st.from.Tables() {
			cols = append(cols, t.All())
		}
		return cols, nil
	}

	var cols []any
	for _, part := range splitComma(text) {
		part = strings.TrimSpace(part)
		exprText, alias := part, ""
		if i := lastKeyword(part, "AS"); i >= 0 {
			exprText = strings.TrimSpace(part[:i])
			alias = strings.TrimSpace(part[i+len("AS"):])
			if _, err := parseIdent(alias); err != nil {
				return nil, st.wrap("invalid column alias", err)
			}
		}
		e, err := st.expr("column", exprText)
		if err != nil {
			return nil, err
		}
		if alias != "" {
			e = st.q.As(e, alias)
		}
		cols = append(cols, e)
	}
	return cols, nil
}

func (st *stmtParser) parseOrderBy(text string) (*ast.OrderBy, error) {
	var items []any
	for _, part := range splitComma(text) {
		dir := ast.Asc
		fields := strings.Fields(part)
		if len(fields) == 0 {
			return nil, st.fail("empty ORDER BY item")
		}
		switch last := strings.ToUpper(fields[len(fields)-1]); last {
		case "ASC", "DESC":
			if last == "DESC" {
				dir = ast.Desc
			}
			part = strings.TrimSpace(part[:len(part)-len(last)])
		}
		e, err := st.expr("ORDER BY", part)
		if err != nil {
			return nil, err
		}
		if dir == ast.Desc {
			items = append(items, st.q.Desc(e))
		} else {
			items = append(items, st.q.Asc(e))
		}
	}
	return st.q.OrderBy(items...), nil
}

// parseLimit accepts "n", "offset, n", "n OFFSET m" and "ALL [OFFSET m]".
func (st *stmtParser) parseLimit(text string) (*ast.Limit, error) {
	num := func(s string) (int, error) {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, st.fail("invalid LIMIT value %q", strings.TrimSpace(s))
		}
		return n, nil
	}

	if a, b, ok := strings.Cut(text, ","); ok {
		offset, err := num(a)
		if err != nil {
			return nil, err
		}
		total, err := num(b)
		if err != nil {
			return nil, err
		}
		return st.q.LimitOffset(offset, total), nil
	}

	totalText, offsetText, hasOffset := cutKeyword(text, "OFFSET")
	total := -1
	if !strings.EqualFold(strings.TrimSpace(totalText), "ALL") {
		n, err := num(totalText)
		if err != nil {
			return nil, err
		}
		total = n
	}
	if !hasOffset {
		return st.q.Limit(total), nil
	}
	offset, err := num(offsetText)
	if err != nil {
		return nil, err
	}
	return st.q.LimitOffset(offset, total), nil
}

var insertRe = regexp.MustCompile(`(?is)^\s*(\w+)\s*\((.+?)\)\s*VALUES\s*\((.*)\)\s*$`)

func (st *stmtParser) parseInsert(body string) (ast.Statement, error) {
	kw, rest, _ := strings.Cut(strings.TrimSpace(body), " ")
	if !strings.EqualFold(kw, "INTO") {
		return nil, st.fail("missing an INTO clause")
	}
	m := insertRe.FindStringSubmatch(rest)
	if m == nil {
		return nil, st.fail("invalid INSERT syntax")
	}

	t := st.q.Table(m[1])
	if err := st.q.Err(); err != nil {
		return nil, err
	}
	st.from = &ast.From{Items: []ast.FromItem{t}}

	fields := splitComma(m[2])
	values := splitComma(m[3])
	if len(fields) != len(values) {
		return nil, st.fail("values and fields must have same number of elements")
	}

	sets := make([]ast.Assignment, 0, len(fields))
	for i, f := range fields {
		col, err := parseIdent(strings.TrimPrefix(strings.TrimSpace(f), t.TableName+"."))
		if err != nil {
			return nil, st.wrap("invalid INSERT column", err)
		}
		v, err := st.expr("VALUES", values[i])
		if err != nil {
			return nil, err
		}
		sets = append(sets, st.q.Set(col, v))
	}

	ins, err := st.q.Insert(t, sets...)
	if err != nil {
		return nil, err
	}
	return ins, nil
}

func (st *stmtParser) parseUpdate(body string) (ast.Statement, error) {
	tableText, rest, ok := cutKeyword(body, "SET")
	if !ok {
		return nil, st.fail("missing a SET clause")
	}
	setText, clauses, err := st.splitClauses(rest, []string{"WHERE"})
	if err != nil {
		return nil, err
	}

	item, err := st.parseFromItem(tableText, ast.CrossJoin, false)
	if err != nil {
		return nil, err
	}
	t := item.(*ast.Table)
	st.from = &ast.From{Items: []ast.FromItem{t}}

	if setText == "" {
		return nil, st.fail("empty SET clause")
	}
	args := []any{}
	for _, part := range splitComma(setText) {
		i := indexAssign(part)
		if i < 0 {
			return nil, st.fail("invalid assignment %q", strings.TrimSpace(part))
		}
		col, err := parseIdent(strings.TrimPrefix(strings.TrimSpace(part[:i]), t.Alias+"."))
		if err != nil {
			return nil, st.wrap("invalid assignment column", err)
		}
		v, err := st.expr("SET", part[i+1:])
		if err != nil {
			return nil, err
		}
		args = append(args, st.q.Set(col, v))
	}
	if w, ok := clauses["WHERE"]; ok {
		args = append(args, st.q.WhereSQL(w))
	}

	up, err := st.q.Update(t, args...)
	if err != nil {
		return nil, err
	}
	return up, nil
}

// bindParams replaces each top-level "?" with the next param as a literal.
func bindParams(s string, params []any) (string, error) {
	var b strings.Builder
	n := 0
	scanTopLevel(s, func(i int, r rune, quoted bool, _ int) {
		if r == '?' && !quoted {
			if n < len(params) {
				b.WriteString(ast.FormatLiteral(record.Normalize(params[n]), false))
			}
			n++
			return
		}
		b.WriteRune(r)
	})
	switch {
	case n > len(params):
		return "", fmt.Errorf("not enough parameters: want %d, got %d", n, len(params))
	case n < len(params):
		return "", fmt.Errorf("too many parameters: want %d, got %d", n, len(params))
	}
	return b.String(), nil
}
