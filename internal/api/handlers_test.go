package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ycho/youtrack-mcp-server/internal/activity"
	"github.com/ycho/youtrack-mcp-server/internal/batch"
	"github.com/ycho/youtrack-mcp-server/internal/workreport"
	"github.com/ycho/youtrack-mcp-server/internal/youtrack"
)

func mockYouTrack(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer perm:test" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"1-1","login":"alice","fullName":"Alice Smith"}`))
	})
	mux.HandleFunc("GET /api/admin/projects", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"0-1","shortName":"DEMO","name":"Demo"}]`))
	})
	mux.HandleFunc("GET /api/issues", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"2-1","idReadable":"DEMO-1","summary":"Fix login","updated":1718020800000}]`))
	})
	mux.HandleFunc("GET /api/workItems", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("author") {
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"server_error"}`))
		case "bob":
			_, _ = w.Write([]byte(`[{"id":"8-3","date":1717372800000,"duration":{"minutes":240},"author":{"login":"bob"}}]`))
		default:
			_, _ = w.Write([]byte(`[
				{"id":"8-1","date":1717372800000,"duration":{"minutes":480},"author":{"login":"alice"}},
				{"id":"8-2","date":1717459200000,"duration":{"minutes":300},"author":{"login":"alice"}}
			]`))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(Config{YouTrackURL: mockYouTrack(t).URL, Port: 8080})
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer perm:test")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	server := NewServer(Config{
		YouTrackURL: "http://localhost",
		Port:        8080,
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	server := NewServer(Config{
		YouTrackURL: "http://localhost",
		Port:        8080,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthMiddleware_WithHeader(t *testing.T) {
	server := newTestServer(t)

	w := do(server, http.MethodGet, "/api/v1/me", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var user map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &user)
	if user["login"] != "alice" {
		t.Errorf("user = %v", user)
	}
}

func TestAuthMiddleware_RejectedToken(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set(TokenHeader, "perm:revoked")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestSwaggerDocs(t *testing.T) {
	server := NewServer(Config{
		YouTrackURL: "http://localhost",
		Port:        8080,
	})

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	w := httptest.NewRecorder()

	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/yaml" {
		t.Errorf("expected Content-Type 'application/yaml', got '%s'", contentType)
	}
	if !strings.Contains(w.Body.String(), "/reports/work-items/by-user") {
		t.Error("spec should document the per-user report")
	}
}

func TestHandleActivitySearch(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"invalid body", `{`, http.StatusBadRequest},
		{"no users", `{"users": []}`, http.StatusBadRequest},
		{"bad date", `{"users": ["alice"], "from": "yesterday"}`, http.StatusBadRequest},
		{"window reversed", `{"users": ["alice"], "from": "2024-06-30", "to": "2024-06-01"}`, http.StatusBadRequest},
		{"bad mode", `{"users": ["alice"], "mode": "slow"}`, http.StatusBadRequest},
		{"unknown project", `{"users": ["alice"], "project": "NOPE"}`, http.StatusBadRequest},
		{"fast", `{"users": ["me"], "from": "2024-06-01", "to": "2024-06-30", "project": "demo"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(server, http.MethodPost, "/api/v1/activity/search", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}

	w := do(server, http.MethodPost, "/api/v1/activity/search", `{"users": ["me"], "from": "2024-06-01", "to": "2024-06-30"}`)
	var result activity.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Subjects) != 1 || result.Subjects[0] != "alice" || len(result.Matches) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestHandleActivitySearch_RejectsBeforeRemoteCalls(t *testing.T) {
	var requests atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"login":"alice"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	server := NewServer(Config{YouTrackURL: srv.URL, Port: 8080})

	for _, body := range []string{
		`{"users": ["me"], "mode": "bogus", "project": "DEMO"}`,
		`{"users": ["me"], "concurrency": -1, "project": "DEMO"}`,
	} {
		w := do(server, http.MethodPost, "/api/v1/activity/search", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d: %s", body, w.Code, w.Body.String())
		}
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("expected no YouTrack requests, got %d", n)
	}
}

func TestHandleWorkItemsReport(t *testing.T) {
	server := newTestServer(t)
	const period = `"from": "2024-06-03", "to": "2024-06-04"`

	t.Run("json", func(t *testing.T) {
		w := do(server, http.MethodPost, "/api/v1/reports/work-items", `{`+period+`}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status %d: %s", w.Code, w.Body.String())
		}
		var report workreport.Report
		_ = json.Unmarshal(w.Body.Bytes(), &report)
		if report.User != "alice" || report.Summary.TotalActualMinutes != 780 || len(report.Summary.InvalidDays) != 1 {
			t.Errorf("report = %+v", report)
		}
	})

	t.Run("csv", func(t *testing.T) {
		w := do(server, http.MethodPost, "/api/v1/reports/work-items", `{"format": "csv", `+period+`}`)
		if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
			t.Fatalf("status %d, content type %q", w.Code, w.Header().Get("Content-Type"))
		}
		if !strings.Contains(w.Body.String(), "Invalid Days,2024-06-04") {
			t.Errorf("csv = %s", w.Body.String())
		}
	})

	t.Run("xlsx", func(t *testing.T) {
		w := do(server, http.MethodPost, "/api/v1/reports/work-items", `{"format": "xlsx", `+period+`}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status %d: %s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Header().Get("Content-Disposition"), "work_items_alice_2024-06-03_2024-06-04.xlsx") {
			t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
		}
		if !strings.HasPrefix(w.Body.String(), "PK") {
			t.Error("expected a zip archive")
		}
	})

	t.Run("validation", func(t *testing.T) {
		for _, body := range []string{
			`{"format": "pdf"}`,
			`{"from": "2024-06-04", "to": "2024-06-03"}`,
			`{"holidays": ["04/07/2024"]}`,
			`{"daily_minutes": -1}`,
		} {
			if w := do(server, http.MethodPost, "/api/v1/reports/work-items", body); w.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", body, w.Code)
			}
		}
	})

	t.Run("remote failure", func(t *testing.T) {
		w := do(server, http.MethodPost, "/api/v1/reports/work-items", `{"user": "broken"}`)
		if w.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", w.Code)
		}
	})
}

func TestHandleWorkItemsReportByUser(t *testing.T) {
	server := newTestServer(t)

	if w := do(server, http.MethodPost, "/api/v1/reports/work-items/by-user", `{"users": []}`); w.Code != http.StatusBadRequest {
		t.Errorf("no users: expected 400, got %d", w.Code)
	}
	if w := do(server, http.MethodPost, "/api/v1/reports/work-items/by-user", `{"users": ["bob"], "concurrency": -2}`); w.Code != http.StatusBadRequest {
		t.Errorf("negative concurrency: expected 400, got %d", w.Code)
	}

	w := do(server, http.MethodPost, "/api/v1/reports/work-items/by-user",
		`{"users": ["me", "bob", "broken"], "from": "2024-06-03", "to": "2024-06-04", "concurrency": 2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var out struct {
		Reports []workreport.UserReport `json:"reports"`
		Count   int                     `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 3 {
		t.Fatalf("count = %d", out.Count)
	}
	if out.Reports[0].User != "alice" || out.Reports[0].Report.Summary.TotalActualMinutes != 780 {
		t.Errorf("alice = %+v", out.Reports[0])
	}
	if out.Reports[1].Report.Summary.TotalActualMinutes != 240 {
		t.Errorf("bob = %+v", out.Reports[1])
	}
	if out.Reports[2].Report != nil || out.Reports[2].Error == "" {
		t.Errorf("broken user should carry an error: %+v", out.Reports[2])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{activity.ErrNoSubjects, http.StatusBadRequest},
		{fmt.Errorf("%w: 2024-06-04 > 2024-06-03", workreport.ErrInvalidPeriod), http.StatusBadRequest},
		{fmt.Errorf("%w: -1", batch.ErrInvalidLimit), http.StatusBadRequest},
		{&youtrack.ResolveError{Type: "project", Query: "X", NotFound: true}, http.StatusBadRequest},
		{fmt.Errorf("failed: %w", &youtrack.APIError{StatusCode: 401, Message: "Unauthorized"}), http.StatusUnauthorized},
		{&youtrack.APIError{StatusCode: 500, Message: "boom"}, http.StatusBadGateway},
		{errors.New("connection refused"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
