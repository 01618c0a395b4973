package activity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ycho/youtrack-mcp-server/internal/youtrack"
)

// Validation errors, returned before any request is made.
var (
	ErrNoSubjects    = errors.New("at least one subject login is required")
	ErrInvalidWindow = errors.New("start must not be after end")
)

// Window is a closed time interval [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow fills in the defaults: a zero start is the Unix epoch and a zero
// end is now.
func NewWindow(start, end, now time.Time) (Window, error) {
	if start.IsZero() {
		start = time.Unix(0, 0)
	}
	if end.IsZero() {
		end = now
	}
	w := Window{Start: start.UTC(), End: end.UTC()}
	if w.Start.After(w.End) {
		return Window{}, fmt.Errorf("%w: %s > %s", ErrInvalidWindow,
			youtrack.FormatInstant(w.Start), youtrack.FormatInstant(w.End))
	}
	return w, nil
}

// Contains reports whether the epoch-millisecond timestamp lies in the window.
func (w Window) Contains(ms int64) bool {
	return ms >= youtrack.Millis(w.Start) && ms <= youtrack.Millis(w.End)
}

// EntityActivity is everything known about one issue for correlation.
type EntityActivity struct {
	Issue      youtrack.Issue
	Comments   []youtrack.Comment
	Activities []youtrack.ActivityItem
}

// Match is an issue touched by at least one subject inside the window.
type Match struct {
	ID               string    `json:"id"`
	IDReadable       string    `json:"idReadable"`
	Summary          string    `json:"summary"`
	Project          string    `json:"project,omitempty"`
	LastActivityDate string    `json:"lastActivityDate"`
	LastActivity     time.Time `json:"-"`
	Subjects         []string  `json:"subjects,omitempty"`
}

func newMatch(issue youtrack.Issue, last int64, subjects []string) Match {
	m := Match{
		ID:               issue.ID,
		IDReadable:       issue.IDReadable,
		Summary:          issue.Summary,
		LastActivity:     youtrack.FromMillis(last),
		LastActivityDate: youtrack.FormatInstant(youtrack.FromMillis(last)),
		Subjects:         subjects,
	}
	if issue.Project != nil {
		m.Project = issue.Project.ShortName
	}
	return m
}

// Correlate returns the entities that any subject touched inside w, newest
// first. An entity is touched by a subject through a comment they wrote, a
// comment mentioning @subject, an activity they authored, an activity adding
// or removing them as a value, or by being the issue's last updater.
// Entities are never matched on a timestamp outside w.
func Correlate(entities []EntityActivity, subjects []string, w Window) []Match {
	matches := make([]Match, 0, len(entities))
	for _, e := range entities {
		var (
			last    int64
			found   bool
			touched []string
		)
		for _, subject := range subjects {
			ts, ok := lastTouch(e, subject, w)
			if !ok {
				continue
			}
			touched = append(touched, subject)
			if !found || ts > last {
				last = ts
				found = true
			}
		}
		if found {
			matches = append(matches, newMatch(e.Issue, last, touched))
		}
	}
	sortNewestFirst(matches)
	return matches
}

// lastTouch returns the latest in-window timestamp at which subject touched e.
func lastTouch(e EntityActivity, subject string, w Window) (int64, bool) {
	var (
		last  int64
		found bool
	)
	consider := func(ts int64) {
		if !w.Contains(ts) {
			return
		}
		if !found || ts > last {
			last = ts
			found = true
		}
	}

	mention := "@" + subject
	for _, c := range e.Comments {
		if c.AuthorLogin() == subject || strings.Contains(c.Text, mention) {
			consider(c.Created)
		}
	}

	for _, a := range e.Activities {
		if a.AuthorLogin() == subject || a.Added.HasLogin(subject) || a.Removed.HasLogin(subject) {
			consider(a.Timestamp)
		}
	}

	if e.Issue.Updated != nil && e.Issue.UpdaterLogin() == subject {
		consider(*e.Issue.Updated)
	}

	return last, found
}

func sortNewestFirst(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].LastActivity.After(matches[j].LastActivity)
	})
}
