package youtrack

import (
	"regexp"
	"strings"
	"time"
)

const queryDateLayout = "2006-01-02"

var bracedValue = regexp.MustCompile(`\{([^{}]*)\}`)

// Braced wraps a value in the braced identifier syntax.
func Braced(value string) string {
	return "{" + value + "}"
}

// Unbrace rewrites every braced value to its plain form.
func Unbrace(query string) string {
	return bracedValue.ReplaceAllString(query, "$1")
}

// HasBraces reports whether the query uses braced values.
func HasBraces(query string) bool {
	return bracedValue.MatchString(query)
}

// FieldClause builds `field: {value}`.
func FieldClause(field, value string) string {
	return field + ": " + Braced(value)
}

// UpdatedRange builds `updated: <start> .. <end>` with UTC calendar dates.
func UpdatedRange(start, end time.Time) string {
	return "updated: " + start.UTC().Format(queryDateLayout) + " .. " + end.UTC().Format(queryDateLayout)
}

// Or joins clauses with `or`, parenthesised when there is more than one.
func Or(clauses ...string) string {
	clauses = nonEmpty(clauses)
	switch len(clauses) {
	case 0:
		return ""
	case 1:
		return clauses[0]
	}
	return "(" + strings.Join(clauses, " or ") + ")"
}

// And joins clauses with `and`.
func And(clauses ...string) string {
	return strings.Join(nonEmpty(clauses), " and ")
}

func nonEmpty(clauses []string) []string {
	out := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
