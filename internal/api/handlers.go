package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ycho/youtrack-mcp-server/internal/activity"
	"github.com/ycho/youtrack-mcp-server/internal/batch"
	"github.com/ycho/youtrack-mcp-server/internal/workreport"
	"github.com/ycho/youtrack-mcp-server/internal/youtrack"
)

// @title YouTrack MCP Server API
// @version 1.0
// @description REST API for YouTrack activity search and time reports
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type contextKey string

const clientContextKey contextKey = "youtrackClient"

func withClient(ctx context.Context, client *youtrack.Client) context.Context {
	return context.WithValue(ctx, clientContextKey, client)
}

func getClient(ctx context.Context) *youtrack.Client {
	return ctx.Value(clientContextKey).(*youtrack.Client)
}

// errInvalidInput marks request values rejected before calling YouTrack.
var errInvalidInput = errors.New("invalid input")

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps an error to a response status: invalid input is the
// caller's fault, anything from YouTrack is a bad gateway unless the token
// itself was refused.
func statusFor(err error) int {
	var apiErr *youtrack.APIError
	var resolveErr *youtrack.ResolveError
	switch {
	case errors.Is(err, errInvalidInput),
		errors.Is(err, activity.ErrNoSubjects),
		errors.Is(err, activity.ErrInvalidWindow),
		errors.Is(err, activity.ErrInvalidMode),
		errors.Is(err, workreport.ErrInvalidPeriod),
		errors.Is(err, workreport.ErrInvalidDate),
		errors.Is(err, workreport.ErrNoUsers),
		errors.Is(err, batch.ErrInvalidLimit),
		errors.As(err, &resolveErr):
		return http.StatusBadRequest
	case errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden):
		return apiErr.StatusCode
	default:
		return http.StatusBadGateway
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// parseRange parses optional from/to bounds. A bare end date covers the
// whole day.
func parseRange(from, to string) (start, end time.Time, err error) {
	if from != "" {
		if start, err = youtrack.ParseInstant(from, false); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: from: %v", errInvalidInput, err)
		}
	}
	if to != "" {
		if end, err = youtrack.ParseInstant(to, true); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: to: %v", errInvalidInput, err)
		}
	}
	return start, end, nil
}

// ActivitySearchRequest is the body of POST /activity/search
type ActivitySearchRequest struct {
	Users       []string `json:"users"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Mode        string   `json:"mode"`
	Project     string   `json:"project"`
	Limit       int      `json:"limit"`
	Concurrency int      `json:"concurrency"`
}

// ReportOptions are the report settings shared by both report endpoints
type ReportOptions struct {
	From            string   `json:"from"`
	To              string   `json:"to"`
	Project         string   `json:"project"`
	Query           string   `json:"query"`
	IncludeWeekends bool     `json:"include_weekends"`
	IncludeHolidays bool     `json:"include_holidays"`
	Holidays        []string `json:"holidays"`
	PreHolidays     []string `json:"pre_holidays"`
	DailyMinutes    int      `json:"daily_minutes"`
}

// WorkItemsReportRequest is the body of POST /reports/work-items
type WorkItemsReportRequest struct {
	ReportOptions
	User   string `json:"user"`
	Format string `json:"format"`
}

// WorkItemsByUserRequest is the body of POST /reports/work-items/by-user
type WorkItemsByUserRequest struct {
	ReportOptions
	Users       []string `json:"users"`
	Concurrency int      `json:"concurrency"`
	Format      string   `json:"format"`
}

// @Summary Get current user
// @Description Returns information about the token owner
// @Tags Account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /me [get]
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	client := getClient(r.Context())
	user, err := client.GetCurrentUser(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":    user.ID,
		"login": user.Login,
		"name":  user.FullName,
		"email": user.Email,
	})
}

// @Summary Search issues by user activity
// @Description Finds issues the given users commented on, were mentioned in, changed or updated within a time window
// @Tags Activity
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ActivitySearchRequest true "Search parameters"
// @Success 200 {object} activity.Result
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /activity/search [post]
func (s *Server) handleActivitySearch(w http.ResponseWriter, r *http.Request) {
	client := getClient(r.Context())
	resolver := youtrack.NewResolver(client)

	var req ActivitySearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Users) == 0 {
		writeError(w, http.StatusBadRequest, activity.ErrNoSubjects.Error())
		return
	}

	start, end, err := parseRange(req.From, req.To)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	concurrency := req.Concurrency
	if concurrency == 0 {
		concurrency = s.config.MaxConcurrency
	}

	searcher := activity.NewSearcher(client)
	query := activity.Query{
		Subjects:    req.Users,
		Start:       start,
		End:         end,
		Mode:        activity.Mode(req.Mode),
		Limit:       req.Limit,
		Concurrency: concurrency,
	}
	if err := searcher.Validate(query); err != nil {
		writeServiceError(w, err)
		return
	}

	if query.Subjects, err = resolver.ResolveLogins(r.Context(), req.Users); err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Project != "" {
		p, err := resolver.ResolveProject(r.Context(), req.Project)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		query.Project = p.ShortName
	}

	result, err := searcher.Search(r.Context(), query)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// reportParams turns the shared report options into service parameters.
func (s *Server) reportParams(ctx context.Context, resolver *youtrack.Resolver, opts ReportOptions) (workreport.Params, error) {
	start, end, err := parseRange(opts.From, opts.To)
	if err != nil {
		return workreport.Params{}, err
	}
	if opts.DailyMinutes < 0 {
		return workreport.Params{}, fmt.Errorf("%w: daily_minutes must be positive, got %d", errInvalidInput, opts.DailyMinutes)
	}

	query := opts.Query
	if opts.Project != "" {
		p, err := resolver.ResolveProject(ctx, opts.Project)
		if err != nil {
			return workreport.Params{}, err
		}
		query = youtrack.And(youtrack.FieldClause("project", p.ShortName), query)
	}

	return workreport.Params{
		Query:           query,
		Start:           start,
		End:             end,
		DailyMinutes:    opts.DailyMinutes,
		IncludeWeekends: opts.IncludeWeekends,
		IncludeHolidays: opts.IncludeHolidays,
		Holidays:        opts.Holidays,
		PreHolidays:     opts.PreHolidays,
	}, nil
}

func (s *Server) reportService(client *youtrack.Client) *workreport.Service {
	return workreport.NewService(client, s.calendar, s.config.DailyMinutes)
}

// @Summary Work item report
// @Description Daily expected vs. actual time for one user; weekends and holidays are skipped, pre-holiday days expect 87.5%
// @Tags Reports
// @Accept json
// @Produce json,text/csv,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param request body WorkItemsReportRequest true "Report parameters"
// @Success 200 {object} workreport.Report
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /reports/work-items [post]
func (s *Server) handleWorkItemsReport(w http.ResponseWriter, r *http.Request) {
	client := getClient(r.Context())
	resolver := youtrack.NewResolver(client)

	var req WorkItemsReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Format == "" {
		req.Format = "json"
	}
	if req.Format != "json" && req.Format != "csv" && req.Format != "xlsx" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid format %q (valid: json, csv, xlsx)", req.Format))
		return
	}

	params, err := s.reportParams(r.Context(), resolver, req.ReportOptions)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	user := req.User
	if user == "" {
		user = "me"
	}
	if params.User, err = resolver.ResolveLogin(r.Context(), user); err != nil {
		writeServiceError(w, err)
		return
	}

	report, err := s.reportService(client).Generate(r.Context(), params)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	switch req.Format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="work_items_%s_%s_%s.csv"`, report.User, report.Start, report.End))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(workreport.GenerateCSV(report)))
	case "xlsx":
		writeXLSX(w, fmt.Sprintf("work_items_%s_%s_%s.xlsx", report.User, report.Start, report.End), []*workreport.Report{report})
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

// @Summary Work item report per user
// @Description Runs the work item report once per user with bounded concurrency; a failed user carries an error instead of a report
// @Tags Reports
// @Accept json
// @Produce json,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param request body WorkItemsByUserRequest true "Report parameters"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /reports/work-items/by-user [post]
func (s *Server) handleWorkItemsReportByUser(w http.ResponseWriter, r *http.Request) {
	client := getClient(r.Context())
	resolver := youtrack.NewResolver(client)

	var req WorkItemsByUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Format == "" {
		req.Format = "json"
	}
	if req.Format != "json" && req.Format != "xlsx" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid format %q (valid: json, xlsx)", req.Format))
		return
	}
	if len(req.Users) == 0 {
		writeError(w, http.StatusBadRequest, workreport.ErrNoUsers.Error())
		return
	}
	if req.Concurrency < 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: %d", batch.ErrInvalidLimit, req.Concurrency))
		return
	}

	params, err := s.reportParams(r.Context(), resolver, req.ReportOptions)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	logins, err := resolver.ResolveLogins(r.Context(), req.Users)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	concurrency := req.Concurrency
	if concurrency == 0 {
		concurrency = s.config.MaxConcurrency
	}

	reports, err := s.reportService(client).GenerateByUser(r.Context(), logins, params, concurrency)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Format == "xlsx" {
		var ok []*workreport.Report
		for _, ur := range reports {
			if ur.Report != nil {
				ok = append(ok, ur.Report)
			}
		}
		if len(ok) > 0 {
			writeXLSX(w, fmt.Sprintf("work_items_%s.xlsx", time.Now().Format("20060102")), ok)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"count":   len(reports),
	})
}

func writeXLSX(w http.ResponseWriter, filename string, reports []*workreport.Report) {
	var buf bytes.Buffer
	if err := workreport.WriteXLSX(&buf, reports); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to write xlsx: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
