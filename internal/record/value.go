package record

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Values held in rows are one of: nil, float64, string, time.Time (a calendar
// date at UTC midnight) or bool (only as the result of a predicate).

var dateRe = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)

// ParseDate finds the first YYYY-M-D date inside s.
func ParseDate(s string) (time.Time, bool) {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	return NewDate(y, time.Month(mo), d), true
}

// IsDateLiteral reports whether s is exactly a YYYY-M-D date.
func IsDateLiteral(s string) bool {
	m := dateRe.FindStringIndex(s)
	return m != nil && m[0] == 0 && m[1] == len(s)
}

func NewDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a date as YYYY-M-D without zero padding.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d", t.Year(), int(t.Month()), t.Day())
}

func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToNumber converts numeric Go values and numeric text to float64.
func ToNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// Normalize maps Go scalars onto the value domain above: integer kinds become
// float64, everything else is returned unchanged.
func Normalize(v any) any {
	if isNumeric(v) {
		f, _ := ToNumber(v)
		return f
	}
	return v
}

// ToString renders a value as text; nil stays nil.
func ToString(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case time.Time:
		return FormatDate(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		if f, ok := ToNumber(x); ok {
			return FormatNumber(f)
		}
		return fmt.Sprint(x)
	}
}

// Coerce converts v to the representation of column type t.
func Coerce(t ColumnType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case ColNumber:
		if f, ok := ToNumber(v); ok {
			return f, nil
		}
		if b, ok := v.(bool); ok {
			if b {
				return float64(1), nil
			}
			return float64(0), nil
		}
		return nil, fmt.Errorf("cannot convert %v to Number", v)
	case ColDate:
		switch x := v.(type) {
		case time.Time:
			return NewDate(x.Year(), x.Month(), x.Day()), nil
		case string:
			if d, ok := ParseDate(x); ok {
				return d, nil
			}
			return x, nil
		default:
			return Normalize(v), nil
		}
	default:
		return ToString(v), nil
	}
}

// Truthy reports whether a predicate value counts as true.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	default:
		if f, ok := ToNumber(x); ok {
			return f != 0
		}
		return true
	}
}

// Compare orders two non-nil values. Numbers compare numerically, dates by
// calendar value, and mixed pairs convert text to the other side's type when
// it parses; otherwise both sides compare as text. ok is false when either
// side is nil.
func Compare(a, b any) (c int, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	a, b = Normalize(a), Normalize(b)

	switch x := a.(type) {
	case float64:
		if y, ok := ToNumber(b); ok {
			return cmpFloat(x, y), true
		}
	case time.Time:
		if y, ok := asDate(b); ok {
			return x.Compare(y), true
		}
	case string:
		switch y := b.(type) {
		case string:
			return strings.Compare(x, y), true
		case float64:
			if xf, ok := ToNumber(x); ok {
				return cmpFloat(xf, y), true
			}
		case time.Time:
			if xd, ok := asDate(x); ok {
				return xd.Compare(y), true
			}
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmpBool(x, y), true
		}
	}
	return strings.Compare(fmt.Sprint(ToString(a)), fmt.Sprint(ToString(b))), true
}

// Equal is SQL-ish equality where NULL only equals NULL.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	c, _ := Compare(a, b)
	return c == 0
}

// SortCompare is the total order used by ORDER BY and GROUP BY. Values of
// different kinds order by kind: NULL and the empty string first, then
// booleans, numbers, dates and text. Within a kind, values compare by value;
// text never converts, so "10" sorts before "9".
func SortCompare(a, b any) int {
	a, b = Normalize(a), Normalize(b)
	ra, rb := sortRank(a), sortRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch x := a.(type) {
	case bool:
		return cmpBool(x, b.(bool))
	case float64:
		return cmpFloat(x, b.(float64))
	case time.Time:
		return x.Compare(b.(time.Time))
	case string:
		return strings.Compare(x, b.(string))
	case nil:
		return 0
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func sortRank(v any) int {
	switch x := v.(type) {
	case nil:
		return 0
	case string:
		if x == "" {
			return 0
		}
		return 4
	case bool:
		return 1
	case float64:
		return 2
	case time.Time:
		return 3
	default:
		return 5
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		if IsDateLiteral(strings.TrimSpace(x)) {
			return ParseDate(x)
		}
	}
	return time.Time{}, false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
