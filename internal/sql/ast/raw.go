package ast

import (
	"regexp"
	"strconv"
	"strings"
)

// Raw carries predicate text the parser did not break into nodes, such as
// WHERE, HAVING and ON bodies. The planner parses it when the statement is
// compiled, so malformed text fails at execution time.
type Raw struct {
	Text string
}

func NewRaw(text string) *Raw { return &Raw{Text: strings.TrimSpace(text)} }

func (r *Raw) Name() string      { return "RAW" }
func (r *Raw) AliasName() string { return "RAW" }
func (r *Raw) SQL(Flags) string  { return r.Text }
func (*Raw) exprNode()           {}

var (
	rawLikeRe = regexp.MustCompile(`(\S+)\sLIKE\s'([^']*)'`)
	rawDateRe = regexp.MustCompile(`'(\d{4})-(\d{1,2})-(\d{1,2})'`)
)

// Predicate translates the common SQL idioms into the predicate form.
func (r *Raw) Predicate(Flags) string {
	s := r.Text
	s = strings.ReplaceAll(s, " AND ", " && ")
	s = strings.ReplaceAll(s, " OR ", " || ")
	s = strings.ReplaceAll(s, " = ", " == ")
	s = strings.ReplaceAll(s, " IS NOT NULL", " != null")
	s = strings.ReplaceAll(s, " IS NULL", " == null")
	s = strings.ReplaceAll(s, " NOT ", " ! ")

	s = rawLikeRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := rawLikeRe.FindStringSubmatch(m)
		pat := regexp.QuoteMeta(sub[2])
		pat = strings.ReplaceAll(pat, "%", ".*")
		pat = strings.ReplaceAll(pat, "_", ".")
		return sub[1] + ".match(/^" + pat + "$/)"
	})

	s = rawDateRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := rawDateRe.FindStringSubmatch(m)
		y, _ := strconv.Atoi(sub[1])
		mo, _ := strconv.Atoi(sub[2])
		d, _ := strconv.Atoi(sub[3])
		return "date(" + strconv.Itoa(y) + ", " + strconv.Itoa(mo) + ", " + strconv.Itoa(d) + ")"
	})
	return s
}
