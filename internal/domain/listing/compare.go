package listing

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"staffbook/internal/domain/employee"
)

// comparer holds the collators for one sort. Collators are not safe for
// concurrent use, so every Resolve builds its own.
type comparer struct {
	khmer   *collate.Collator
	english *collate.Collator
	fold    cases.Caser
}

func newComparer() *comparer {
	return &comparer{fold: cases.Fold()}
}

func (c *comparer) collator(a, b string) *collate.Collator {
	if hasKhmer(a) || hasKhmer(b) {
		if c.khmer == nil {
			c.khmer = collate.New(language.Khmer)
		}
		return c.khmer
	}
	if c.english == nil {
		c.english = collate.New(language.English)
	}
	return c.english
}

// key precomputes what compare needs from a raw value.
func (c *comparer) key(kind employee.Kind, value string) string {
	switch kind {
	case employee.KindIdentifier, employee.KindName:
		return value
	default:
		return c.fold.String(value)
	}
}

func (c *comparer) compare(kind employee.Kind, a, b string) int {
	switch kind {
	case employee.KindIdentifier:
		return naturalCompare(a, b)
	case employee.KindName:
		return c.collator(a, b).CompareString(a, b)
	default:
		return strings.Compare(a, b)
	}
}

func hasKhmer(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Khmer) {
			return true
		}
	}
	return false
}

// naturalCompare orders digit runs by numeric value, so "9" < "10".
// Other runs compare case-insensitively.
func naturalCompare(a, b string) int {
	for a != "" && b != "" {
		ca, restA := chunk(a)
		cb, restB := chunk(b)
		da, db := isDigit(ca[0]), isDigit(cb[0])
		var c int
		switch {
		case da && db:
			c = compareDigits(ca, cb)
		case da:
			c = -1
		case db:
			c = 1
		default:
			c = strings.Compare(strings.ToLower(ca), strings.ToLower(cb))
		}
		if c != 0 {
			return c
		}
		a, b = restA, restB
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

func chunk(s string) (string, string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
