package youtrack

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Attempt is one step of a negotiation.
type Attempt[T any] func(ctx context.Context) (T, error)

// Outcome describes how a negotiation ended.
type Outcome[T any] struct {
	Value T
	// FellBack is true when the fallback attempt produced Value.
	FellBack bool
	// Rejected holds the primary attempt's error when the fallback was used.
	Rejected error
}

// Negotiate runs primary and, only if it fails with an error accepted by
// retryable, runs fallback exactly once. When both fail the fallback's error
// is returned; a non-retryable primary error is returned unchanged.
func Negotiate[T any](ctx context.Context, primary, fallback Attempt[T], retryable func(error) bool) (Outcome[T], error) {
	value, err := primary(ctx)
	if err == nil {
		return Outcome[T]{Value: value}, nil
	}
	if !retryable(err) {
		return Outcome[T]{}, err
	}

	value, ferr := fallback(ctx)
	if ferr != nil {
		return Outcome[T]{Rejected: err}, ferr
	}
	return Outcome[T]{Value: value, FellBack: true, Rejected: err}, nil
}

// Dialect is a pagination parameter naming scheme.
type Dialect int

const (
	// DialectModern uses $top/$skip.
	DialectModern Dialect = iota
	// DialectLegacy uses top/skip.
	DialectLegacy
)

func (d Dialect) String() string {
	if d == DialectLegacy {
		return "top/skip"
	}
	return "$top/$skip"
}

// Page selects a slice of a collection.
type Page struct {
	Top  int
	Skip int
}

// Apply returns a copy of query with the page expressed in dialect d.
func (p Page) Apply(query url.Values, d Dialect) url.Values {
	out := url.Values{}
	for k, v := range query {
		out[k] = append([]string(nil), v...)
	}

	topKey, skipKey := "$top", "$skip"
	if d == DialectLegacy {
		topKey, skipKey = "top", "skip"
	}
	if p.Top > 0 {
		out.Set(topKey, strconv.Itoa(p.Top))
	}
	if p.Skip > 0 {
		out.Set(skipKey, strconv.Itoa(p.Skip))
	}
	return out
}

var paginationToken = regexp.MustCompile(`(^|[^a-z0-9_$])\$?(top|skip)([^a-z0-9_]|$)`)

// IsDialectRejection reports whether err is a client error caused by
// unrecognised pagination parameters. The message must name a parameter:
// "$top" or "$skip" literally, or "parameter" next to a standalone top/skip
// token. Query parser errors that merely contain those letters do not count.
func IsDialectRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	if strings.Contains(msg, "$top") || strings.Contains(msg, "$skip") {
		return true
	}
	return strings.Contains(msg, "parameter") && paginationToken.MatchString(msg)
}

// IsQueryRejection reports whether err is the query parser refusing a filter.
func IsQueryRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	for _, hint := range []string{"query", "parse", "syntax"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
