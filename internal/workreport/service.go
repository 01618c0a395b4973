package workreport

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

// ErrNoUsers is returned when a per-user report names nobody.
var ErrNoUsers = errors.New("at least one user login is required")

// WorkItemSource lists work items. *youtrack.Client satisfies it.
type WorkItemSource interface {
	ListWorkItems(ctx context.Context, params youtrack.ListWorkItemsParams) ([]youtrack.WorkItem, error)
}

// Params selects the work items of a report and how they are counted.
type Params struct {
	User            string // author login, empty for every visible author
	Query           string // optional issue filter
	Start           time.Time
	End             time.Time
	DailyMinutes    int // 0 uses the service default
	IncludeWeekends bool
	IncludeHolidays bool
	Holidays        []string // merged with the service calendar
	PreHolidays     []string
}

// UserReport is the outcome of one user's report in a per-user run.
type UserReport struct {
	User   string  `json:"user"`
	Report *Report `json:"report,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Service fetches work items and builds reports
type Service struct {
	source       WorkItemSource
	calendar     *Calendar
	dailyMinutes int
	now          func() time.Time
}

// NewService creates a report service. calendar may be nil.
func NewService(source WorkItemSource, calendar *Calendar, dailyMinutes int) *Service {
	return &Service{
		source:       source,
		calendar:     calendar,
		dailyMinutes: dailyMinutes,
		now:          time.Now,
	}
}

func (s *Service) options(p Params) (Options, error) {
	if !p.Start.IsZero() && !p.End.IsZero() && truncateDay(p.End).Before(truncateDay(p.Start)) {
		return Options{}, fmt.Errorf("%w: %s > %s", ErrInvalidPeriod,
			p.Start.UTC().Format(dateLayout), p.End.UTC().Format(dateLayout))
	}

	extra := &Calendar{Holidays: p.Holidays, PreHolidays: p.PreHolidays}
	if err := extra.Validate(); err != nil {
		return Options{}, err
	}

	daily := p.DailyMinutes
	if daily == 0 {
		daily = s.dailyMinutes
	}

	return Options{
		Start:           p.Start,
		End:             p.End,
		DailyMinutes:    daily,
		IncludeWeekends: p.IncludeWeekends,
		IncludeHolidays: p.IncludeHolidays,
		Calendar:        s.calendar.Merge(extra),
		Now:             s.now,
	}, nil
}

// Generate fetches the work items selected by p and builds their report.
func (s *Service) Generate(ctx context.Context, p Params) (*Report, error) {
	opts, err := s.options(p)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, p, opts)
}

func (s *Service) generate(ctx context.Context, p Params, opts Options) (*Report, error) {
	items, err := s.source.ListWorkItems(ctx, youtrack.ListWorkItemsParams{
		Author: p.User,
		Query:  p.Query,
		Start:  p.Start,
		End:    p.End,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}

	if p.User != "" {
		items = byAuthor(items, p.User)
	}

	report, err := Build(items, opts)
	if err != nil {
		return nil, err
	}
	report.User = p.User
	return report, nil
}

// GenerateByUser runs Generate once per login, at most limit at a time, and
// returns one entry per login in the given order. A failed user does not
// affect the others.
func (s *Service) GenerateByUser(ctx context.Context, logins []string, p Params, limit int) ([]UserReport, error) {
	var users []string
	for _, l := range logins {
		if l = strings.TrimSpace(l); l != "" {
			users = append(users, l)
		}
	}
	if len(users) == 0 {
		return nil, ErrNoUsers
	}
	if limit == 0 {
		limit = batch.DefaultLimit
	}

	opts, err := s.options(p)
	if err != nil {
		return nil, err
	}

	results, err := batch.Run(ctx, users, limit, func(ctx context.Context, login string) (*Report, error) {
		up := p
		up.User = login
		return s.generate(ctx, up, opts)
	})
	if err != nil {
		return nil, err
	}

	if failed := batch.Failed(results); len(failed) > 0 {
		slog.Warn("per-user report finished with failures", "failed", len(failed), "users", len(users))
	}

	reports := make([]UserReport, len(results))
	for i, r := range results {
		reports[i] = UserReport{User: r.Input, Report: r.Value}
		if !r.OK() {
			slog.Warn("user report failed", "user", r.Input, "error", r.Err)
			reports[i].Error = r.Err.Error()
		}
	}
	return reports, nil
}

func byAuthor(items []youtrack.WorkItem, login string) []youtrack.WorkItem {
	out := items[:0:0]
	for _, item := range items {
		if author := item.AuthorLogin(); author == "" || author == login {
			out = append(out, item)
		}
	}
	return out
}
