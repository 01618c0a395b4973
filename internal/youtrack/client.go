package youtrack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPageSize is the page size used when walking whole collections.
const DefaultPageSize = 100

// Client is a YouTrack REST API client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the HTTP transport timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a new YouTrack client
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the YouTrack base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx response from YouTrack
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// errorMessage normalises a YouTrack error body.
func errorMessage(body []byte) string {
	var payload struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && (payload.Error != "" || payload.Description != "") {
		switch {
		case payload.Error == "":
			return payload.Description
		case payload.Description == "":
			return payload.Error
		default:
			return payload.Error + ": " + payload.Description
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "empty response"
	}
	return msg
}

// doRequest performs a GET request against the YouTrack API
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	return respBody, nil
}

// getJSON fetches path and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.doRequest(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// getPage fetches one page, negotiating the pagination dialect.
func (c *Client) getPage(ctx context.Context, path string, query url.Values, page Page) ([]byte, error) {
	attempt := func(d Dialect) Attempt[[]byte] {
		return func(ctx context.Context) ([]byte, error) {
			return c.doRequest(ctx, path, page.Apply(query, d))
		}
	}

	outcome, err := Negotiate(ctx, attempt(DialectModern), attempt(DialectLegacy), IsDialectRejection)
	if err != nil {
		return nil, err
	}
	if outcome.FellBack {
		slog.Debug("pagination dialect rejected, used legacy keys",
			"path", path,
			"dialect", DialectLegacy.String(),
			"rejected", outcome.Rejected,
		)
	}
	return outcome.Value, nil
}

// listPage fetches and decodes one page of a collection.
func listPage[T any](ctx context.Context, c *Client, path string, query url.Values, page Page) ([]T, error) {
	data, err := c.getPage(ctx, path, query, page)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return items, nil
}

// listAll walks a collection page by page until a short page is returned.
func listAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	page := Page{Top: DefaultPageSize}
	var all []T
	for {
		items, err := listPage[T](ctx, c, path, query, page)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < page.Top {
			break
		}
		page.Skip += page.Top
	}
	return all, nil
}

// GetCurrentUser returns the user owning the token
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, "/api/users/me", url.Values{"fields": {userFields}}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchUsers returns users matching a free-text query
func (c *Client) SearchUsers(ctx context.Context, query string, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 25
	}
	q := url.Values{"fields": {userFields}}
	if query != "" {
		q.Set("query", query)
	}
	return listPage[User](ctx, c, "/api/users", q, Page{Top: limit})
}

// ListProjects returns all projects visible to the token
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	return listAll[Project](ctx, c, "/api/admin/projects", url.Values{"fields": {projectFields}})
}

// SearchIssues returns one page of issues matching query. A braced query that
// the parser rejects is retried once in its unbraced form.
func (c *Client) SearchIssues(ctx context.Context, query string, page Page) ([]Issue, error) {
	search := func(q string) Attempt[[]Issue] {
		return func(ctx context.Context) ([]Issue, error) {
			params := url.Values{"fields": {issueFields}}
			if q != "" {
				params.Set("query", q)
			}
			return listPage[Issue](ctx, c, "/api/issues", params, page)
		}
	}

	if !HasBraces(query) {
		return search(query)(ctx)
	}

	outcome, err := Negotiate(ctx, search(query), search(Unbrace(query)), IsQueryRejection)
	if err != nil {
		return nil, err
	}
	if outcome.FellBack {
		slog.Debug("braced query rejected, used unbraced form",
			"query", query,
			"rejected", outcome.Rejected,
		)
	}
	return outcome.Value, nil
}

// GetIssue returns an issue by internal or readable id
func (c *Client) GetIssue(ctx context.Context, issueID string) (*Issue, error) {
	var issue Issue
	path := "/api/issues/" + url.PathEscape(issueID)
	if err := c.getJSON(ctx, path, url.Values{"fields": {issueFields}}, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// ListComments returns all comments on an issue
func (c *Client) ListComments(ctx context.Context, issueID string) ([]Comment, error) {
	path := "/api/issues/" + url.PathEscape(issueID) + "/comments"
	return listAll[Comment](ctx, c, path, url.Values{"fields": {commentFields}})
}

// ActivitiesParams filters an issue's activity stream
type ActivitiesParams struct {
	Categories []string
	Start      time.Time // zero means unbounded
	End        time.Time // zero means unbounded
}

// ListActivities returns the activity stream of an issue
func (c *Client) ListActivities(ctx context.Context, issueID string, params ActivitiesParams) ([]ActivityItem, error) {
	categories := params.Categories
	if len(categories) == 0 {
		categories = DefaultActivityCategories
	}

	q := url.Values{
		"fields":     {activityFields},
		"categories": {strings.Join(categories, ",")},
	}
	if !params.Start.IsZero() {
		q.Set("start", strconv.FormatInt(Millis(params.Start), 10))
	}
	if !params.End.IsZero() {
		q.Set("end", strconv.FormatInt(Millis(params.End), 10))
	}

	path := "/api/issues/" + url.PathEscape(issueID) + "/activities"
	return listAll[ActivityItem](ctx, c, path, q)
}

// ListWorkItemsParams filters work items
type ListWorkItemsParams struct {
	Author string    // login
	Query  string    // issue filter, e.g. "project: {DEMO}"
	Start  time.Time // zero means unbounded
	End    time.Time // zero means unbounded
}

// ListWorkItems returns all work items matching params
func (c *Client) ListWorkItems(ctx context.Context, params ListWorkItemsParams) ([]WorkItem, error) {
	q := url.Values{"fields": {workItemFields}}
	if params.Author != "" {
		q.Set("author", params.Author)
	}
	if params.Query != "" {
		q.Set("query", params.Query)
	}
	if !params.Start.IsZero() {
		q.Set("startDate", params.Start.UTC().Format(queryDateLayout))
	}
	if !params.End.IsZero() {
		q.Set("endDate", params.End.UTC().Format(queryDateLayout))
	}
	return listAll[WorkItem](ctx, c, "/api/workItems", q)
}
