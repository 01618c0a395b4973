package youtrack

import (
	"testing"
	"time"
)

func TestUnbrace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"assignee: {alice}", "assignee: alice"},
		{"project: {My Project} and assignee: {bob}", "project: My Project and assignee: bob"},
		{"updated: 2024-06-01 .. 2024-06-30", "updated: 2024-06-01 .. 2024-06-30"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Unbrace(tt.in); got != tt.want {
				t.Errorf("Unbrace(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if HasBraces(tt.want) {
				t.Errorf("HasBraces(%q) = true after unbracing", tt.want)
			}
		})
	}
}

func TestQueryComposition(t *testing.T) {
	if got := FieldClause("assignee", "alice"); got != "assignee: {alice}" {
		t.Errorf("FieldClause() = %q", got)
	}

	if got := Or("a: {x}"); got != "a: {x}" {
		t.Errorf("Or(single) = %q, want no parentheses", got)
	}
	if got := Or("a: {x}", "", "b: {y}"); got != "(a: {x} or b: {y})" {
		t.Errorf("Or(two) = %q", got)
	}
	if got := Or(); got != "" {
		t.Errorf("Or() = %q", got)
	}
	if got := And("updated: 2024-06-01 .. 2024-06-02", " ", "(a or b)"); got != "updated: 2024-06-01 .. 2024-06-02 and (a or b)" {
		t.Errorf("And() = %q", got)
	}

	start := time.Date(2024, 6, 1, 22, 0, 0, 0, time.FixedZone("UTC-3", -3*3600))
	end := time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC)
	if got := UpdatedRange(start, end); got != "updated: 2024-06-02 .. 2024-06-30" {
		t.Errorf("UpdatedRange() = %q", got)
	}
}
