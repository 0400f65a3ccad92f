package storage

import (
	"fmt"
	"strings"
)

// OrderTerm is one parsed order_by entry.
type OrderTerm struct {
	Field string
	Desc  bool
}

// ParseOrderBy parses order_by field names into terms. A leading '-'
// reverses that field's sort order. Fields outside allowed are rejected with
// ErrInvalidInput so a typo never reaches SQL.
func ParseOrderBy(fields []string, allowed map[string]bool) ([]OrderTerm, error) {
	terms := make([]OrderTerm, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		term := OrderTerm{Field: f}
		if strings.HasPrefix(f, "-") {
			term = OrderTerm{Field: f[1:], Desc: true}
		}
		if !allowed[term.Field] {
			return nil, fmt.Errorf("%w: cannot order by %q", ErrInvalidInput, term.Field)
		}
		terms = append(terms, term)
	}
	return terms, nil
}

// OrderClause renders parsed terms as a SQL ORDER BY body. Field names have
// been validated against a closed set by ParseOrderBy.
func OrderClause(terms []OrderTerm) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		dir := "ASC"
		if t.Desc {
			dir = "DESC"
		}
		parts = append(parts, t.Field+" "+dir)
	}
	return strings.Join(parts, ", ")
}
