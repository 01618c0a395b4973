package youtrack

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
)

func TestNegotiate(t *testing.T) {
	ctx := context.Background()
	errRejected := &APIError{StatusCode: http.StatusBadRequest, Message: "unknown parameter $top"}
	errFallback := &APIError{StatusCode: http.StatusBadRequest, Message: "still broken"}
	errFatal := &APIError{StatusCode: http.StatusUnauthorized, Message: "Unauthorized"}

	ok := func(v string) Attempt[string] {
		return func(context.Context) (string, error) { return v, nil }
	}
	fail := func(err error) Attempt[string] {
		return func(context.Context) (string, error) { return "", err }
	}

	t.Run("primary succeeds", func(t *testing.T) {
		fallbackCalled := false
		fallback := func(context.Context) (string, error) {
			fallbackCalled = true
			return "", nil
		}
		out, err := Negotiate(ctx, ok("modern"), fallback, IsDialectRejection)
		if err != nil {
			t.Fatalf("Negotiate() error = %v", err)
		}
		if out.Value != "modern" || out.FellBack || out.Rejected != nil {
			t.Errorf("Negotiate() = %+v", out)
		}
		if fallbackCalled {
			t.Error("fallback should not run when primary succeeds")
		}
	})

	t.Run("retryable rejection uses fallback", func(t *testing.T) {
		out, err := Negotiate(ctx, fail(errRejected), ok("legacy"), IsDialectRejection)
		if err != nil {
			t.Fatalf("Negotiate() error = %v", err)
		}
		if out.Value != "legacy" || !out.FellBack {
			t.Errorf("Negotiate() = %+v", out)
		}
		if !errors.Is(out.Rejected, errRejected) {
			t.Errorf("Rejected = %v, want %v", out.Rejected, errRejected)
		}
	})

	t.Run("both fail returns second error", func(t *testing.T) {
		out, err := Negotiate(ctx, fail(errRejected), fail(errFallback), IsDialectRejection)
		if !errors.Is(err, errFallback) {
			t.Errorf("error = %v, want %v", err, errFallback)
		}
		if !errors.Is(out.Rejected, errRejected) {
			t.Errorf("Rejected = %v, want %v", out.Rejected, errRejected)
		}
	})

	t.Run("non-retryable error is returned unchanged", func(t *testing.T) {
		calls := 0
		fallback := func(context.Context) (string, error) {
			calls++
			return "legacy", nil
		}
		_, err := Negotiate(ctx, fail(errFatal), fallback, IsDialectRejection)
		if !errors.Is(err, errFatal) {
			t.Errorf("error = %v, want %v", err, errFatal)
		}
		if calls != 0 {
			t.Errorf("fallback ran %d times, want 0", calls)
		}
	})
}

func TestPage_Apply(t *testing.T) {
	base := url.Values{"fields": {"id"}}

	modern := Page{Top: 50, Skip: 100}.Apply(base, DialectModern)
	if modern.Get("$top") != "50" || modern.Get("$skip") != "100" || modern.Has("top") {
		t.Errorf("modern = %v", modern)
	}

	legacy := Page{Top: 50, Skip: 100}.Apply(base, DialectLegacy)
	if legacy.Get("top") != "50" || legacy.Get("skip") != "100" || legacy.Has("$top") {
		t.Errorf("legacy = %v", legacy)
	}

	first := Page{Top: 10}.Apply(base, DialectModern)
	if first.Has("$skip") {
		t.Errorf("zero skip should be omitted: %v", first)
	}

	if base.Has("$top") || len(base) != 1 {
		t.Errorf("Apply mutated its input: %v", base)
	}
	if legacy.Get("fields") != "id" {
		t.Errorf("fields not carried over: %v", legacy)
	}
}

func TestRejectionClassifiers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		dialect bool
		query   bool
	}{
		{"unknown top", &APIError{StatusCode: 400, Message: "Unknown parameter: $top"}, true, false},
		{"legacy param quoted", &APIError{StatusCode: 400, Message: "Unsupported parameter 'top'"}, true, false},
		{"param without pagination", &APIError{StatusCode: 400, Message: "Unrecognized parameter"}, false, false},
		{"field named like top", &APIError{StatusCode: 400, Message: "Can't parse query: unknown field Stopper"}, false, true},
		{"skipped in query error", &APIError{StatusCode: 400, Message: "Query parse error: desktop tokens skipped"}, false, true},
		{"parameter word in query error", &APIError{StatusCode: 400, Message: "Can't parse query parameter: unknown field Stopper"}, false, true},
		{"query parse", &APIError{StatusCode: 400, Message: "Can't parse search query"}, false, true},
		{"syntax", &APIError{StatusCode: 400, Message: "Syntax error at position 4"}, false, true},
		{"server error", &APIError{StatusCode: 500, Message: "unknown parameter in query"}, false, false},
		{"unauthorized", &APIError{StatusCode: 401, Message: "Unauthorized"}, false, false},
		{"plain error", errors.New("connection refused"), false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDialectRejection(tt.err); got != tt.dialect {
				t.Errorf("IsDialectRejection() = %v, want %v", got, tt.dialect)
			}
			if got := IsQueryRejection(tt.err); got != tt.query {
				t.Errorf("IsQueryRejection() = %v, want %v", got, tt.query)
			}
		})
	}
}

func TestDialect_String(t *testing.T) {
	if DialectModern.String() != "$top/$skip" || DialectLegacy.String() != "top/skip" {
		t.Errorf("String() = %q, %q", DialectModern, DialectLegacy)
	}
}
