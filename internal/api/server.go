package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"github.com/ycho/youtrack-mcp-server/internal/batch"
	"github.com/ycho/youtrack-mcp-server/internal/workreport"
	"github.com/ycho/youtrack-mcp-server/internal/youtrack"

	_ "github.com/ycho/youtrack-mcp-server/docs" // swagger docs
)

// Config holds API server configuration
type Config struct {
	YouTrackURL    string
	Port           int
	CalendarFile   string
	DailyMinutes   int
	MaxConcurrency int
	ClientOptions  []youtrack.Option
}

// Server is the REST API server
type Server struct {
	config      Config
	router      *chi.Mux
	rateLimiter *RateLimiter
	calendar    *workreport.Calendar
}

// NewServer creates a new API server
func NewServer(config Config) *Server {
	var calendar *workreport.Calendar
	if config.CalendarFile != "" {
		var err error
		calendar, err = workreport.LoadCalendar(config.CalendarFile)
		if err != nil {
			slog.Warn("Failed to load holiday calendar", "file", config.CalendarFile, "error", err)
		} else if calendar != nil {
			slog.Info("Loaded holiday calendar", "file", config.CalendarFile,
				"holidays", len(calendar.Holidays), "pre_holidays", len(calendar.PreHolidays))
		}
	}
	if config.DailyMinutes <= 0 {
		config.DailyMinutes = workreport.DefaultDailyMinutes
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = batch.DefaultLimit
	}

	s := &Server{
		config:      config,
		router:      chi.NewRouter(),
		rateLimiter: NewRateLimiter(100, 200), // 100 req/sec, burst 200
		calendar:    calendar,
	}

	s.setupRoutes()

	// Start rate limiter cleanup goroutine
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			s.rateLimiter.Cleanup(10 * time.Minute)
		}
	}()

	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)          // Security headers
	r.Use(s.rateLimiter.Middleware) // Rate limiting

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Swagger UI - uses swaggo generated docs
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// OpenAPI spec (static inline)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(openAPISpec))
	})

	// API routes with authentication middleware
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Account
		r.Get("/me", s.handleMe)

		// Activity
		r.Post("/activity/search", s.handleActivitySearch)

		// Reports
		r.Post("/reports/work-items", s.handleWorkItemsReport)
		r.Post("/reports/work-items/by-user", s.handleWorkItemsReportByUser)
	})
}

// authMiddleware extracts the YouTrack token and creates a client
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			http.Error(w, `{"error": "Missing bearer token (Authorization or X-YouTrack-Token header)"}`, http.StatusUnauthorized)
			return
		}

		// Create client and store in context
		client := youtrack.NewClient(s.config.YouTrackURL, token, s.config.ClientOptions...)
		ctx := withClient(r.Context(), client)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Run starts the API server
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	slog.Info("Starting REST API server",
		"address", addr,
		"youtrack_url", s.config.YouTrackURL,
		"docs", fmt.Sprintf("http://localhost:%d/docs/index.html", s.config.Port),
	)

	return http.ListenAndServe(addr, s.router)
}

const openAPISpec = `openapi: 3.0.3
info:
  title: YouTrack MCP Server API
  description: REST API for YouTrack activity search and time reports
  version: 1.0.0
servers:
  - url: /api/v1
security:
  - BearerAuth: []
components:
  securitySchemes:
    BearerAuth:
      type: http
      scheme: bearer
      description: YouTrack permanent token
  schemas:
    Error:
      type: object
      properties:
        error:
          type: string
    ReportOptions:
      type: object
      properties:
        from:
          type: string
          description: "Start date (YYYY-MM-DD, ISO-8601 or epoch ms)"
        to:
          type: string
          description: "End date, inclusive"
        project:
          type: string
          description: Project short name or name
        query:
          type: string
          description: Additional YouTrack issue filter
        include_weekends:
          type: boolean
        include_holidays:
          type: boolean
        holidays:
          type: array
          items:
            type: string
            format: date
        pre_holidays:
          type: array
          items:
            type: string
            format: date
        daily_minutes:
          type: integer
          default: 480
paths:
  /me:
    get:
      summary: Get current user information
      tags: [Account]
      responses:
        '200':
          description: Current user
  /activity/search:
    post:
      summary: Find issues users were active on
      tags: [Activity]
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [users]
              properties:
                users:
                  type: array
                  items:
                    type: string
                  description: "Logins or full names, or 'me'"
                from:
                  type: string
                to:
                  type: string
                mode:
                  type: string
                  enum: [fast, precise]
                  default: fast
                project:
                  type: string
                limit:
                  type: integer
                  default: 200
                concurrency:
                  type: integer
                  default: 10
      responses:
        '200':
          description: Matching issues, newest activity first
        '400':
          description: Invalid input
        '502':
          description: YouTrack request failed
  /reports/work-items:
    post:
      summary: Daily expected vs. actual time report for one user
      tags: [Reports]
      requestBody:
        content:
          application/json:
            schema:
              allOf:
                - $ref: '#/components/schemas/ReportOptions'
                - type: object
                  properties:
                    user:
                      type: string
                      default: me
                    format:
                      type: string
                      enum: [json, csv, xlsx]
                      default: json
      responses:
        '200':
          description: Report as JSON, CSV or XLSX
        '400':
          description: Invalid input
        '502':
          description: YouTrack request failed
  /reports/work-items/by-user:
    post:
      summary: Daily expected vs. actual time report per user
      tags: [Reports]
      requestBody:
        content:
          application/json:
            schema:
              allOf:
                - $ref: '#/components/schemas/ReportOptions'
                - type: object
                  required: [users]
                  properties:
                    users:
                      type: array
                      items:
                        type: string
                    concurrency:
                      type: integer
                      default: 10
                    format:
                      type: string
                      enum: [json, xlsx]
                      default: json
      responses:
        '200':
          description: One report per user; failed users carry an error
        '400':
          description: Invalid input
        '502':
          description: YouTrack request failed
`
