package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ycho/youtrack-mcp-server/internal/activity"
	"github.com/ycho/youtrack-mcp-server/internal/batch"
	"github.com/ycho/youtrack-mcp-server/internal/workreport"
	"github.com/ycho/youtrack-mcp-server/internal/youtrack"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// resolveDatePeriod converts period shortcuts to a [from, to] day range
func resolveDatePeriod(period string, now time.Time) (from, to time.Time) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch period {
	case "this_week":
		// Start of this week (Monday)
		weekday := int(today.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start := today.AddDate(0, 0, -weekday+1)
		return start, start.AddDate(0, 0, 6)
	case "last_week":
		weekday := int(today.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start := today.AddDate(0, 0, -weekday-6)
		return start, start.AddDate(0, 0, 6)
	case "this_month":
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1)
	case "last_month":
		start := time.Date(today.Year(), today.Month()-1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1)
	default:
		return time.Time{}, time.Time{}
	}
}

// Settings are the report and batching defaults shared by all tools.
type Settings struct {
	Calendar       *workreport.Calendar
	DailyMinutes   int
	MaxConcurrency int
}

// backend bundles everything a tool call needs for one YouTrack token.
type backend struct {
	client   *youtrack.Client
	resolver *youtrack.Resolver
	searcher *activity.Searcher
	reports  *workreport.Service
}

func newBackend(client *youtrack.Client, settings Settings) *backend {
	return &backend{
		client:   client,
		resolver: youtrack.NewResolver(client),
		searcher: activity.NewSearcher(client),
		reports:  workreport.NewService(client, settings.Calendar, settings.DailyMinutes),
	}
}

// ToolHandlers contains all MCP tool handlers
type ToolHandlers struct {
	settings  Settings
	fixed     *backend
	newClient func(token string) *youtrack.Client
	now       func() time.Time
}

// NewToolHandlers creates tool handlers bound to a single client
func NewToolHandlers(client *youtrack.Client, settings Settings) *ToolHandlers {
	return &ToolHandlers{
		settings: normalizeSettings(settings),
		fixed:    newBackend(client, normalizeSettings(settings)),
		now:      time.Now,
	}
}

// NewSessionToolHandlers creates tool handlers that build a client from the
// token carried by each call's context (see WithToken).
func NewSessionToolHandlers(newClient func(token string) *youtrack.Client, settings Settings) *ToolHandlers {
	return &ToolHandlers{
		settings:  normalizeSettings(settings),
		newClient: newClient,
		now:       time.Now,
	}
}

func normalizeSettings(s Settings) Settings {
	if s.MaxConcurrency <= 0 {
		s.MaxConcurrency = batch.DefaultLimit
	}
	if s.DailyMinutes <= 0 {
		s.DailyMinutes = workreport.DefaultDailyMinutes
	}
	return s
}

type tokenKey struct{}

// WithToken returns a context carrying a YouTrack token for the tool call.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

func (h *ToolHandlers) backend(ctx context.Context) (*backend, error) {
	if h.fixed != nil {
		return h.fixed, nil
	}
	token := tokenFromContext(ctx)
	if token == "" {
		return nil, fmt.Errorf("missing YouTrack token for this session")
	}
	return newBackend(h.newClient(token), h.settings), nil
}

// McpServer interface for registering tools
type McpServer interface {
	AddTool(tool mcp.Tool, handler server.ToolHandlerFunc)
}

// RegisterTools registers all MCP tools on the server
func (h *ToolHandlers) RegisterTools(s McpServer) {
	periodOpt := mcp.WithString("period",
		mcp.Description("Shortcut for from/to: this_week, last_week, this_month, last_month"),
		mcp.Enum("this_week", "last_week", "this_month", "last_month"),
	)

	// Account
	s.AddTool(mcp.NewTool("me",
		mcp.WithDescription("Get current user information"),
	), h.handleMe)

	// Issues
	s.AddTool(mcp.NewTool("issues_getById",
		mcp.WithDescription("Get issue details including comments"),
		mcp.WithString("issue_id",
			mcp.Required(),
			mcp.Description("Issue ID, readable (DEMO-42) or internal (2-42)"),
		),
		mcp.WithBoolean("include_comments",
			mcp.Description("Include comments (default: true)"),
		),
	), h.handleIssuesGetById)

	s.AddTool(mcp.NewTool("issues_searchByUserActivity",
		mcp.WithDescription("Find issues that the given users were active on in a time window: "+
			"comments, @mentions, field changes, (re)assignment or last update. "+
			"Results are sorted by lastActivityDate, newest first"),
		mcp.WithArray("users",
			mcp.Required(),
			mcp.Description("User logins or full names, or 'me' for the current user"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("from",
			mcp.Description("Window start: YYYY-MM-DD, ISO-8601 or epoch milliseconds (default: beginning of time)"),
		),
		mcp.WithString("to",
			mcp.Description("Window end: YYYY-MM-DD (inclusive), ISO-8601 or epoch milliseconds (default: now)"),
		),
		periodOpt,
		mcp.WithString("mode",
			mcp.Description("fast: filter by the issue's updated time only; precise: check comments and history of every candidate (slower, exact)"),
			mcp.Enum(string(activity.ModeFast), string(activity.ModePrecise)),
		),
		mcp.WithString("project",
			mcp.Description("Project short name or name"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of candidate issues (default: 200)"),
		),
		mcp.WithNumber("concurrency",
			mcp.Description("Parallel requests in precise mode (default: 10)"),
		),
	), h.handleIssuesSearchByUserActivity)

	// Work items
	s.AddTool(mcp.NewTool("workItems_list",
		mcp.WithDescription("List time tracking work items"),
		mcp.WithString("user",
			mcp.Description("Author login, full name or 'me' (default: all visible authors)"),
		),
		mcp.WithString("project",
			mcp.Description("Project short name or name"),
		),
		mcp.WithString("query",
			mcp.Description("Additional issue filter in YouTrack query syntax"),
		),
		mcp.WithString("from",
			mcp.Description("Start date (YYYY-MM-DD)"),
		),
		mcp.WithString("to",
			mcp.Description("End date (YYYY-MM-DD)"),
		),
		periodOpt,
	), h.handleWorkItemsList)

	reportOpts := []mcp.ToolOption{
		mcp.WithString("project",
			mcp.Description("Project short name or name"),
		),
		mcp.WithString("query",
			mcp.Description("Additional issue filter in YouTrack query syntax"),
		),
		mcp.WithString("from",
			mcp.Description("Start date (YYYY-MM-DD). Default: earliest work item"),
		),
		mcp.WithString("to",
			mcp.Description("End date (YYYY-MM-DD). Default: latest work item"),
		),
		periodOpt,
		mcp.WithBoolean("include_weekends",
			mcp.Description("Count Saturdays and Sundays as working days (default: false)"),
		),
		mcp.WithBoolean("include_holidays",
			mcp.Description("Count holidays as working days (default: false)"),
		),
		mcp.WithArray("holidays",
			mcp.Description("Extra holiday dates (YYYY-MM-DD)"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("pre_holidays",
			mcp.Description("Extra shortened days before holidays (YYYY-MM-DD), expected at 87.5%"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithNumber("daily_minutes",
			mcp.Description("Expected minutes per working day (default: 480)"),
		),
	}

	s.AddTool(mcp.NewTool("workItems_report", append([]mcp.ToolOption{
		mcp.WithDescription("Daily expected vs. actual time report for one user. Days that deviate from the expectation are flagged as invalid"),
		mcp.WithString("user",
			mcp.Description("Author login, full name or 'me' (default: me)"),
		),
		mcp.WithString("format",
			mcp.Description("Output format (default: json)"),
			mcp.Enum("json", "csv", "xlsx"),
		),
	}, reportOpts...)...), h.handleWorkItemsReport)

	s.AddTool(mcp.NewTool("workItems_reportByUsers", append([]mcp.ToolOption{
		mcp.WithDescription("Daily expected vs. actual time report for several users, one report per user"),
		mcp.WithArray("users",
			mcp.Required(),
			mcp.Description("User logins or full names, or 'me' for the current user"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("format",
			mcp.Description("Output format (default: json)"),
			mcp.Enum("json", "xlsx"),
		),
		mcp.WithNumber("concurrency",
			mcp.Description("Parallel user reports (default: 10)"),
		),
	}, reportOpts...)...), h.handleWorkItemsReportByUsers)
}

// Handler implementations

func (h *ToolHandlers) handleMe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := h.backend(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	user, err := b.client.GetCurrentUser(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get current user: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"id":    user.ID,
		"login": user.Login,
		"name":  user.FullName,
		"email": user.Email,
	})
}

func (h *ToolHandlers) handleIssuesGetById(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := req.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := h.backend(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	issue, err := b.client.GetIssue(ctx, issueID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get issue: %v", err)), nil
	}

	result := formatIssue(*issue)
	if req.GetBool("include_comments", true) {
		comments, err := b.client.ListComments(ctx, issueID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list comments: %v", err)), nil
		}
		formatted := make([]map[string]any, len(comments))
		for i, c := range comments {
			formatted[i] = map[string]any{
				"id":      c.ID,
				"author":  c.AuthorLogin(),
				"created": formatMillis(c.Created),
				"text":    c.Text,
			}
		}
		result["comments"] = formatted
	}

	return jsonResult(result)
}

func (h *ToolHandlers) handleIssuesSearchByUserActivity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	users := getStringList(req, "users")
	if len(users) == 0 {
		return mcp.NewToolResultError(activity.ErrNoSubjects.Error()), nil
	}
	from, to, err := h.dateRange(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := h.backend(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query := activity.Query{
		Subjects:    users,
		Start:       from,
		End:         to,
		Mode:        activity.Mode(req.GetString("mode", string(activity.ModeFast))),
		Limit:       req.GetInt("limit", activity.DefaultCandidateLimit),
		Concurrency: req.GetInt("concurrency", h.settings.MaxConcurrency),
	}
	if err := b.searcher.Validate(query); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if query.Subjects, err = b.resolver.ResolveLogins(ctx, users); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve users: %v", err)), nil
	}

	if p := req.GetString("project", ""); p != "" {
		resolved, err := b.resolver.ResolveProject(ctx, p)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve project: %v", err)), nil
		}
		query.Project = resolved.ShortName
	}

	result, err := b.searcher.Search(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to search activity: %v", err)), nil
	}

	return jsonResult(result)
}

func (h *ToolHandlers) handleWorkItemsList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, to, err := h.dateRange(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := h.backend(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	params := youtrack.ListWorkItemsParams{Start: from, End: to}
	if user := req.GetString("user", ""); user != "" {
		if params.Author, err = b.resolver.ResolveLogin(ctx, user); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve user: %v", err)), nil
		}
	}
	if params.Query, err = h.issueFilter(ctx, b, req); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	items, err := b.client.ListWorkItems(ctx, params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list work items: %v", err)), nil
	}

	var total int
	formatted := make([]map[string]any, len(items))
	for i, item := range items {
		total += item.Duration.Minutes
		entry := map[string]any{
			"id":      item.ID,
			"date":    youtrack.FromMillis(item.Date).Format("2006-01-02"),
			"minutes": item.Duration.Minutes,
			"author":  item.AuthorLogin(),
			"text":    item.Text,
		}
		if item.Issue != nil {
			entry["issue"] = item.Issue.IDReadable
		}
		formatted[i] = entry
	}

	return jsonResult(map[string]any{
		"count":         len(items),
		"total_minutes": total,
		"total_hours":   workreport.Hours(total),
		"work_items":    formatted,
	})
}

func (h *ToolHandlers) handleWorkItemsReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := req.GetString("format", "json")
	if format != "json" && format != "csv" && format != "xlsx" {
		return mcp.NewToolResultError(fmt.Sprintf("invalid format %q (valid: json, csv, xlsx)", format)), nil
	}
	b, err := h.backend(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	params, err := h.reportParams(ctx, b, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if params.User, err = b.resolver.ResolveLogin(ctx, req.GetString("user", "me")); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve user: %v", err)), nil
	}

	report, err := b.reports.Generate(ctx, params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate report: %v", err)), nil
	}

	switch format {
	case "csv":
		return mcp.NewToolResultText(workreport.GenerateCSV(report)), nil
	case "xlsx":
		return xlsxResult(fmt.Sprintf("work_items_%s_%s_%s.xlsx", report.User, report.Start, report.End), []*workreport.Report{report})
	default:
		return jsonResult(report)
	}
}

func (h *ToolHandlers) handleWorkItemsReportByUsers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := req.GetString("format", "json")
	if format != "json" && format != "xlsx" {
		return mcp.NewToolResultError(fmt.Sprintf("invalid format %q (valid: json, xlsx)", format)), nil
	}
	users := getStringList(req, "users")
	if len(users) == 0 {
		return mcp.NewToolResultError(workreport.ErrNoUsers.Error()), nil
	}
	b, err := h.backend(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	params, err := h.reportParams(ctx, b, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	logins, err := b.resolver.ResolveLogins(ctx, users)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve users: %v", err)), nil
	}

	concurrency := req.GetInt("concurrency", h.settings.MaxConcurrency)
	reports, err := b.reports.GenerateByUser(ctx, logins, params, concurrency)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate reports: %v", err)), nil
	}

	if format == "xlsx" {
		var ok []*workreport.Report
		for _, r := range reports {
			if r.Report != nil {
				ok = append(ok, r.Report)
			}
		}
		if len(ok) == 0 {
			return jsonResult(map[string]any{"reports": reports})
		}
		return xlsxResult(fmt.Sprintf("work_items_%s.xlsx", h.now().Format("20060102")), ok)
	}

	var failed []map[string]string
	for _, r := range reports {
		if r.Error != "" {
			failed = append(failed, map[string]string{"user": r.User, "error": r.Error})
		}
	}
	result := map[string]any{"reports": reports}
	if len(failed) > 0 {
		result["failed"] = failed
	}
	return jsonResult(result)
}

// dateRange reads from/to (or period) as a closed interval. A bare end date
// covers the whole day.
func (h *ToolHandlers) dateRange(req mcp.CallToolRequest) (from, to time.Time, err error) {
	if period := req.GetString("period", ""); period != "" {
		from, to = resolveDatePeriod(period, h.now())
		if from.IsZero() {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid period %q (valid: this_week, last_week, this_month, last_month)", period)
		}
		to = to.Add(24*time.Hour - time.Millisecond)
	}
	if s := req.GetString("from", ""); s != "" {
		if from, err = youtrack.ParseInstant(s, false); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %w", err)
		}
	}
	if s := req.GetString("to", ""); s != "" {
		if to, err = youtrack.ParseInstant(s, true); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %w", err)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("from (%s) must not be after to (%s)",
			youtrack.FormatInstant(from), youtrack.FormatInstant(to))
	}
	return from, to, nil
}

// issueFilter combines the project and query arguments into one filter.
func (h *ToolHandlers) issueFilter(ctx context.Context, b *backend, req mcp.CallToolRequest) (string, error) {
	query := req.GetString("query", "")
	if p := req.GetString("project", ""); p != "" {
		project, err := b.resolver.ResolveProject(ctx, p)
		if err != nil {
			return "", fmt.Errorf("Failed to resolve project: %w", err)
		}
		query = youtrack.And(youtrack.FieldClause("project", project.ShortName), query)
	}
	return query, nil
}

func (h *ToolHandlers) reportParams(ctx context.Context, b *backend, req mcp.CallToolRequest) (workreport.Params, error) {
	from, to, err := h.dateRange(req)
	if err != nil {
		return workreport.Params{}, err
	}
	query, err := h.issueFilter(ctx, b, req)
	if err != nil {
		return workreport.Params{}, err
	}
	daily := req.GetInt("daily_minutes", h.settings.DailyMinutes)
	if daily <= 0 {
		return workreport.Params{}, fmt.Errorf("daily_minutes must be positive, got %d", daily)
	}

	return workreport.Params{
		Query:           query,
		Start:           from,
		End:             to,
		DailyMinutes:    daily,
		IncludeWeekends: req.GetBool("include_weekends", false),
		IncludeHolidays: req.GetBool("include_holidays", false),
		Holidays:        getStringList(req, "holidays"),
		PreHolidays:     getStringList(req, "pre_holidays"),
	}, nil
}

func formatIssue(issue youtrack.Issue) map[string]any {
	result := map[string]any{
		"id":         issue.ID,
		"idReadable": issue.IDReadable,
		"summary":    issue.Summary,
	}
	if issue.Project != nil {
		result["project"] = issue.Project.ShortName
	}
	if a := issue.Assignee(); a != nil {
		result["assignee"] = a.Login
	}
	if issue.Reporter != nil {
		result["reporter"] = issue.Reporter.Login
	}
	if login := issue.UpdaterLogin(); login != "" {
		result["updater"] = login
	}
	if parent := issue.ParentID(); parent != "" {
		result["parent"] = parent
	}
	if issue.Created != nil {
		result["created"] = formatMillis(*issue.Created)
	}
	if issue.Updated != nil {
		result["updated"] = formatMillis(*issue.Updated)
	}
	if issue.Resolved != nil {
		result["resolved"] = formatMillis(*issue.Resolved)
	}
	return result
}

func formatMillis(ms int64) string {
	return youtrack.FormatInstant(youtrack.FromMillis(ms))
}

func xlsxResult(filename string, reports []*workreport.Report) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	if err := workreport.WriteXLSX(&buf, reports); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to write xlsx: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"filename":     filename,
		"content_type": xlsxContentType,
		"size":         buf.Len(),
		"content":      base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

func jsonResult(data any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func getArrayArg(req mcp.CallToolRequest, key string) []any {
	args := req.GetArguments()
	if v, ok := args[key]; ok {
		// Try direct array type
		if arr, ok := v.([]any); ok {
			return arr
		}
		// Try parsing from JSON string (MCP sometimes stringifies arrays)
		if s, ok := v.(string); ok && strings.HasPrefix(s, "[") {
			var arr []any
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				return arr
			}
		}
	}
	return nil
}

// getStringList reads an array of strings, also accepting a comma-separated
// string.
func getStringList(req mcp.CallToolRequest, key string) []string {
	var out []string
	if arr := getArrayArg(req, key); arr != nil {
		for _, v := range arr {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	if s, ok := req.GetArguments()[key].(string); ok {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
