package activity

import (
	"errors"
	"testing"
	"time"

	"github.com/ycho/youtrack-mcp-server/internal/youtrack"
)

func ms(t time.Time) int64 { return t.UnixMilli() }

func day(d, h int) time.Time {
	return time.Date(2024, 6, d, h, 0, 0, 0, time.UTC)
}

func user(login string) *youtrack.User { return &youtrack.User{Login: login} }

func issue(id string) youtrack.Issue {
	return youtrack.Issue{ID: "2-" + id, IDReadable: "DEMO-" + id, Summary: "Issue " + id}
}

func comment(author string, at time.Time, text string) youtrack.Comment {
	return youtrack.Comment{Author: user(author), Created: ms(at), Text: text}
}

func june() Window {
	return Window{Start: day(1, 0), End: time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC)}
}

func TestCorrelate_OnlyEntityInsideWindow(t *testing.T) {
	t1, t2, t3 := day(1, 10), day(10, 10), day(20, 10)
	entities := []EntityActivity{
		{Issue: issue("1"), Comments: []youtrack.Comment{comment("alice", t1, "first")}},
		{Issue: issue("2"), Comments: []youtrack.Comment{comment("alice", t2, "second")}},
		{Issue: issue("3"), Comments: []youtrack.Comment{comment("alice", t3, "third")}},
	}
	w := Window{Start: day(10, 0), End: day(10, 23)}

	got := Correlate(entities, []string{"alice"}, w)
	if len(got) != 1 {
		t.Fatalf("Correlate() returned %d matches, want 1: %+v", len(got), got)
	}
	if got[0].IDReadable != "DEMO-2" {
		t.Errorf("match = %s, want DEMO-2", got[0].IDReadable)
	}
	if want := youtrack.FormatInstant(t2); got[0].LastActivityDate != want {
		t.Errorf("LastActivityDate = %s, want %s", got[0].LastActivityDate, want)
	}
}

func TestCorrelate_Rules(t *testing.T) {
	at := day(15, 12)
	outside := time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)

	withUpdater := func(login string, ts time.Time) youtrack.Issue {
		is := issue("9")
		u := ms(ts)
		is.Updated = &u
		is.Updater = user(login)
		return is
	}

	tests := []struct {
		name   string
		entity EntityActivity
		match  bool
	}{
		{
			"authored comment",
			EntityActivity{Issue: issue("9"), Comments: []youtrack.Comment{comment("alice", at, "done")}},
			true,
		},
		{
			"mentioned in comment",
			EntityActivity{Issue: issue("9"), Comments: []youtrack.Comment{comment("bob", at, "ping @alice please")}},
			true,
		},
		{
			"mention of a different user",
			EntityActivity{Issue: issue("9"), Comments: []youtrack.Comment{comment("bob", at, "ping @alicia")}},
			false,
		},
		{
			"authored activity",
			EntityActivity{Issue: issue("9"), Activities: []youtrack.ActivityItem{{Timestamp: ms(at), Author: user("alice")}}},
			true,
		},
		{
			"assigned to subject",
			EntityActivity{Issue: issue("9"), Activities: []youtrack.ActivityItem{
				{Timestamp: ms(at), Author: user("bob"), Added: youtrack.ActivityValues{{Login: "alice"}}},
			}},
			true,
		},
		{
			"reassigned away from subject",
			EntityActivity{Issue: issue("9"), Activities: []youtrack.ActivityItem{
				{Timestamp: ms(at), Author: user("bob"), Removed: youtrack.ActivityValues{{Login: "alice"}}, Added: youtrack.ActivityValues{{Login: "carol"}}},
			}},
			true,
		},
		{
			"last updater in window",
			EntityActivity{Issue: withUpdater("alice", at)},
			true,
		},
		{
			"last updater outside window",
			EntityActivity{Issue: withUpdater("alice", outside)},
			false,
		},
		{
			"someone else's activity only",
			EntityActivity{
				Issue:      withUpdater("bob", at),
				Comments:   []youtrack.Comment{comment("bob", at, "no mention")},
				Activities: []youtrack.ActivityItem{{Timestamp: ms(at), Author: user("bob"), Added: youtrack.ActivityValues{{Login: "carol"}}}},
			},
			false,
		},
		{
			"subject activity outside window",
			EntityActivity{Issue: issue("9"), Comments: []youtrack.Comment{comment("alice", outside, "late")}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Correlate([]EntityActivity{tt.entity}, []string{"alice"}, june())
			if (len(got) == 1) != tt.match {
				t.Fatalf("Correlate() = %+v, want match %v", got, tt.match)
			}
			if tt.match && !got[0].LastActivity.Equal(at) {
				t.Errorf("LastActivity = %v, want %v", got[0].LastActivity, at)
			}
		})
	}
}

func TestCorrelate_MaxCandidateInsideWindow(t *testing.T) {
	updated := ms(day(12, 0))
	is := issue("1")
	is.Updated = &updated
	is.Updater = user("alice")

	entity := EntityActivity{
		Issue: is,
		Comments: []youtrack.Comment{
			comment("alice", day(3, 9), "early"),
			comment("bob", day(18, 9), "cc @alice"),
		},
		Activities: []youtrack.ActivityItem{
			{Timestamp: ms(day(14, 9)), Author: user("alice")},
			{Timestamp: ms(time.Date(2024, 7, 5, 0, 0, 0, 0, time.UTC)), Author: user("alice")},
		},
	}

	got := Correlate([]EntityActivity{entity}, []string{"alice"}, june())
	if len(got) != 1 {
		t.Fatalf("Correlate() returned %d matches, want 1", len(got))
	}
	if want := day(18, 9); !got[0].LastActivity.Equal(want) {
		t.Errorf("LastActivity = %v, want %v (latest in-window candidate)", got[0].LastActivity, want)
	}
	if got[0].LastActivity.After(june().End) {
		t.Error("LastActivity lies after the window")
	}
}

func TestCorrelate_SortAndSubjects(t *testing.T) {
	entities := []EntityActivity{
		{Issue: issue("1"), Comments: []youtrack.Comment{comment("alice", day(5, 0), "")}},
		{Issue: issue("2"), Comments: []youtrack.Comment{comment("bob", day(9, 0), ""), comment("alice", day(7, 0), "")}},
		{Issue: issue("3"), Comments: []youtrack.Comment{comment("carol", day(9, 0), "")}},
		{Issue: issue("4"), Comments: []youtrack.Comment{comment("bob", day(5, 0), "")}},
	}

	got := Correlate(entities, []string{"alice", "bob"}, june())

	wantOrder := []string{"DEMO-2", "DEMO-1", "DEMO-4"}
	if len(got) != len(wantOrder) {
		t.Fatalf("Correlate() returned %d matches, want %d", len(got), len(wantOrder))
	}
	for i, id := range wantOrder {
		if got[i].IDReadable != id {
			t.Errorf("match[%d] = %s, want %s", i, got[i].IDReadable, id)
		}
	}
	if s := got[0].Subjects; len(s) != 2 || s[0] != "alice" || s[1] != "bob" {
		t.Errorf("Subjects = %v, want [alice bob]", s)
	}
	if !got[0].LastActivity.Equal(day(9, 0)) {
		t.Errorf("union should keep the maximum across subjects, got %v", got[0].LastActivity)
	}
}

func TestNewWindow(t *testing.T) {
	now := day(16, 8)

	w, err := NewWindow(time.Time{}, time.Time{}, now)
	if err != nil {
		t.Fatalf("NewWindow() error = %v", err)
	}
	if w.Start.UnixMilli() != 0 || !w.End.Equal(now) {
		t.Errorf("defaults = %+v", w)
	}

	single, err := NewWindow(now, now, now)
	if err != nil || !single.Contains(ms(now)) {
		t.Errorf("single instant window = %+v, %v", single, err)
	}

	_, err = NewWindow(day(2, 0), day(1, 0), now)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("error = %v, want ErrInvalidWindow", err)
	}
}
