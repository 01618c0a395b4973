package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ycho/youtrack-mcp-server/internal/batch"
	"github.com/ycho/youtrack-mcp-server/internal/youtrack"
)

// Mode selects how thoroughly issues are checked.
type Mode string

const (
	// ModeFast trusts the issue's own updated timestamp.
	ModeFast Mode = "fast"
	// ModePrecise reads comments and activity history of every candidate.
	ModePrecise Mode = "precise"
)

// DefaultCandidateLimit is the size of the candidate page.
const DefaultCandidateLimit = 200

// ErrInvalidMode is returned for a mode other than fast or precise.
var ErrInvalidMode = errors.New("mode must be fast or precise")

// Source is the subset of the YouTrack client the searcher reads from.
type Source interface {
	SearchIssues(ctx context.Context, query string, page youtrack.Page) ([]youtrack.Issue, error)
	GetIssue(ctx context.Context, issueID string) (*youtrack.Issue, error)
	ListComments(ctx context.Context, issueID string) ([]youtrack.Comment, error)
	ListActivities(ctx context.Context, issueID string, params youtrack.ActivitiesParams) ([]youtrack.ActivityItem, error)
}

// Query describes one activity search.
type Query struct {
	Subjects    []string  // logins
	Start       time.Time // zero means the Unix epoch
	End         time.Time // zero means now
	Mode        Mode      // empty means fast
	Project     string    // optional project short name
	Limit       int       // candidate page size, 0 means DefaultCandidateLimit
	Concurrency int       // 0 means batch.DefaultLimit
}

// Failure is a per-issue fetch that did not succeed.
type Failure struct {
	IssueID string `json:"issueId"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}

// Result is the outcome of a search.
type Result struct {
	Mode           Mode      `json:"mode"`
	Subjects       []string  `json:"subjects"`
	Start          string    `json:"start"`
	End            string    `json:"end"`
	CandidateCount int       `json:"candidateCount"`
	Degraded       bool      `json:"degraded,omitempty"`
	Matches        []Match   `json:"matches"`
	Failures       []Failure `json:"failures,omitempty"`
}

// Searcher finds issues a set of users was active on.
type Searcher struct {
	source Source
	now    func() time.Time
}

// NewSearcher creates a searcher reading from source
func NewSearcher(source Source) *Searcher {
	return &Searcher{source: source, now: time.Now}
}

type plan struct {
	subjects    []string
	window      Window
	mode        Mode
	project     string
	limit       int
	concurrency int
}

func (s *Searcher) validate(q Query) (plan, error) {
	p := plan{
		mode:        q.Mode,
		project:     strings.TrimSpace(q.Project),
		limit:       q.Limit,
		concurrency: q.Concurrency,
	}

	seen := make(map[string]bool, len(q.Subjects))
	for _, subject := range q.Subjects {
		subject = strings.TrimSpace(subject)
		if subject == "" || seen[subject] {
			continue
		}
		seen[subject] = true
		p.subjects = append(p.subjects, subject)
	}
	if len(p.subjects) == 0 {
		return plan{}, ErrNoSubjects
	}

	w, err := NewWindow(q.Start, q.End, s.now())
	if err != nil {
		return plan{}, err
	}
	p.window = w

	switch p.mode {
	case "":
		p.mode = ModeFast
	case ModeFast, ModePrecise:
	default:
		return plan{}, fmt.Errorf("%w: %q", ErrInvalidMode, q.Mode)
	}

	if p.limit <= 0 {
		p.limit = DefaultCandidateLimit
	}
	switch {
	case p.concurrency == 0:
		p.concurrency = batch.DefaultLimit
	case p.concurrency < 0:
		return plan{}, fmt.Errorf("%w: %d", batch.ErrInvalidLimit, p.concurrency)
	}
	return p, nil
}

// Validate checks q the way Search does, without contacting YouTrack.
// Callers that resolve subjects or a project first use it to reject bad
// input before any request is sent.
func (s *Searcher) Validate(q Query) error {
	_, err := s.validate(q)
	return err
}

// SubjectFilter builds the query clause matching issues any subject is
// assigned to, reported, commented on or last updated.
func SubjectFilter(subjects []string) string {
	clauses := make([]string, 0, len(subjects))
	for _, login := range subjects {
		clauses = append(clauses, youtrack.Or(
			youtrack.FieldClause("assignee", login),
			youtrack.FieldClause("reporter", login),
			youtrack.FieldClause("commenter", login),
			youtrack.FieldClause("updater", login),
		))
	}
	return youtrack.Or(clauses...)
}

func (p plan) dateFilter() string {
	filter := youtrack.UpdatedRange(p.window.Start, p.window.End)
	if p.project != "" {
		filter = youtrack.And(youtrack.FieldClause("project", p.project), filter)
	}
	return filter
}

func (p plan) fullFilter() string {
	return youtrack.And(p.dateFilter(), SubjectFilter(p.subjects))
}

// Search runs q and returns the matching issues, newest activity first.
func (s *Searcher) Search(ctx context.Context, q Query) (*Result, error) {
	p, err := s.validate(q)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Mode:     p.mode,
		Subjects: p.subjects,
		Start:    youtrack.FormatInstant(p.window.Start),
		End:      youtrack.FormatInstant(p.window.End),
	}

	if p.mode == ModeFast {
		return s.searchFast(ctx, p, result)
	}
	return s.searchPrecise(ctx, p, result)
}

func (s *Searcher) searchFast(ctx context.Context, p plan, result *Result) (*Result, error) {
	issues, err := s.source.SearchIssues(ctx, p.fullFilter(), youtrack.Page{Top: p.limit})
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}
	result.CandidateCount = len(issues)

	result.Matches = make([]Match, 0, len(issues))
	for _, issue := range issues {
		if issue.Updated == nil || !p.window.Contains(*issue.Updated) {
			continue
		}
		result.Matches = append(result.Matches, newMatch(issue, *issue.Updated, nil))
	}
	sortNewestFirst(result.Matches)
	return result, nil
}

func (s *Searcher) searchPrecise(ctx context.Context, p plan, result *Result) (*Result, error) {
	search := func(query string) youtrack.Attempt[[]youtrack.Issue] {
		return func(ctx context.Context) ([]youtrack.Issue, error) {
			return s.source.SearchIssues(ctx, query, youtrack.Page{Top: p.limit})
		}
	}

	outcome, err := youtrack.Negotiate(ctx, search(p.fullFilter()), search(p.dateFilter()), youtrack.IsQueryRejection)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}
	if outcome.FellBack {
		slog.Warn("subject filter rejected, searching by date only",
			"subjects", p.subjects,
			"rejected", outcome.Rejected,
		)
	}
	candidates := outcome.Value
	result.Degraded = outcome.FellBack
	result.CandidateCount = len(candidates)

	entities, failures, err := s.collect(ctx, candidates, p)
	if err != nil {
		return nil, err
	}
	result.Failures = failures
	result.Matches = Correlate(entities, p.subjects, p.window)
	return result, nil
}

// collect fetches details, comments and activities of every candidate and
// joins them by issue id.
func (s *Searcher) collect(ctx context.Context, candidates []youtrack.Issue, p plan) ([]EntityActivity, []Failure, error) {
	byID := make(map[string]*EntityActivity, len(candidates))
	entities := make([]*EntityActivity, 0, len(candidates))
	for _, c := range candidates {
		key := issueKey(c)
		if _, dup := byID[key]; dup {
			continue
		}
		e := &EntityActivity{Issue: c}
		byID[key] = e
		entities = append(entities, e)
	}

	details, err := batch.Run(ctx, candidates, p.concurrency, func(ctx context.Context, c youtrack.Issue) (*youtrack.Issue, error) {
		return s.source.GetIssue(ctx, issueKey(c))
	})
	if err != nil {
		return nil, nil, err
	}
	comments, err := batch.Run(ctx, candidates, p.concurrency, func(ctx context.Context, c youtrack.Issue) ([]youtrack.Comment, error) {
		return s.source.ListComments(ctx, issueKey(c))
	})
	if err != nil {
		return nil, nil, err
	}
	params := youtrack.ActivitiesParams{Start: p.window.Start, End: p.window.End}
	activities, err := batch.Run(ctx, candidates, p.concurrency, func(ctx context.Context, c youtrack.Issue) ([]youtrack.ActivityItem, error) {
		return s.source.ListActivities(ctx, issueKey(c), params)
	})
	if err != nil {
		return nil, nil, err
	}

	var failures []Failure
	fail := func(c youtrack.Issue, stage string, err error) {
		slog.Warn("issue fetch failed", "issue", readableID(c), "stage", stage, "error", err)
		failures = append(failures, Failure{IssueID: readableID(c), Stage: stage, Error: err.Error()})
	}

	for _, r := range details {
		if !r.OK() {
			fail(r.Input, "details", r.Err)
			continue
		}
		if r.Value == nil {
			continue
		}
		e, ok := byID[r.Value.ID]
		if !ok {
			e, ok = byID[r.Value.IDReadable]
		}
		if ok {
			e.Issue = *r.Value
		}
	}
	for _, r := range comments {
		if !r.OK() {
			fail(r.Input, "comments", r.Err)
			continue
		}
		if e, ok := byID[issueKey(r.Input)]; ok {
			e.Comments = r.Value
		}
	}
	for _, r := range activities {
		if !r.OK() {
			fail(r.Input, "activities", r.Err)
			continue
		}
		if e, ok := byID[issueKey(r.Input)]; ok {
			e.Activities = r.Value
		}
	}

	out := make([]EntityActivity, len(entities))
	for i, e := range entities {
		out[i] = *e
	}
	return out, failures, nil
}

func issueKey(issue youtrack.Issue) string {
	if issue.ID != "" {
		return issue.ID
	}
	return issue.IDReadable
}

func readableID(issue youtrack.Issue) string {
	if issue.IDReadable != "" {
		return issue.IDReadable
	}
	return issue.ID
}
