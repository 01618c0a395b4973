package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ycho/youtrack-mcp-server/internal/youtrack"
	"golang.org/x/time/rate"
)

const (
	ServerName    = "youtrack-mcp-server"
	ServerVersion = "1.0.0"

	// TokenHeader carries the YouTrack permanent token in SSE mode.
	TokenHeader = "X-YouTrack-Token"
)

// Config holds MCP server configuration
type Config struct {
	YouTrackURL   string
	YouTrackToken string
	Port          int
	SSEMode       bool
	Settings      Settings
	ClientOptions []youtrack.Option
}

// Server wraps the MCP server
type Server struct {
	config  Config
	mcp     *server.MCPServer
	handler *ToolHandlers
}

// NewServer creates a new MCP server
func NewServer(config Config) *Server {
	return &Server{
		config: config,
		mcp: server.NewMCPServer(
			ServerName,
			ServerVersion,
			server.WithToolCapabilities(false),
		),
	}
}

// Run starts the MCP server
func (s *Server) Run() error {
	if s.config.SSEMode {
		// SSE mode - create client per session from header
		return s.runSSE()
	}

	// Stdio mode - use env var for the token
	client := youtrack.NewClient(s.config.YouTrackURL, s.config.YouTrackToken, s.config.ClientOptions...)
	s.handler = NewToolHandlers(client, s.config.Settings)
	s.handler.RegisterTools(s.mcp)

	slog.Info("Starting MCP server in stdio mode",
		"youtrack_url", s.config.YouTrackURL,
	)

	return server.ServeStdio(s.mcp)
}

// runSSE starts the server in SSE mode
func (s *Server) runSSE() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	slog.Info("Starting MCP server in SSE mode",
		"address", addr,
		"youtrack_url", s.config.YouTrackURL,
	)

	return http.ListenAndServe(addr, s.sseHandler())
}

// sseHandler builds the SSE transport. Every request must carry the token
// header; it is copied into the context of each tool call.
func (s *Server) sseHandler() http.Handler {
	s.handler = NewSessionToolHandlers(func(token string) *youtrack.Client {
		return youtrack.NewClient(s.config.YouTrackURL, token, s.config.ClientOptions...)
	}, s.config.Settings)
	s.handler.RegisterTools(s.mcp)

	sseServer := server.NewSSEServer(s.mcp,
		server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return WithToken(ctx, r.Header.Get(TokenHeader))
		}),
	)

	// Rate limiter: 100 requests per minute per IP
	limiter := newClientRateLimiter(rate.Every(time.Minute/100), 100)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			limiter.cleanup(10 * time.Minute)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/", requireToken(sseServer))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Apply middleware chain
	return securityHeadersMiddleware(limiter.middleware(mux))
}

func requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(TokenHeader) == "" {
			http.Error(w, "Missing "+TokenHeader+" header", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// securityHeaders middleware adds security headers
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// clientRateLimiter keeps one token bucket per client address
type clientRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientRateLimiter(limit rate.Limit, burst int) *clientRateLimiter {
	return &clientRateLimiter{
		limiters: make(map[string]*clientLimiter),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

func (rl *clientRateLimiter) allow(key string) bool {
	rl.mu.Lock()
	c, ok := rl.limiters[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = c
	}
	c.lastSeen = rl.now()
	rl.mu.Unlock()
	return c.limiter.Allow()
}

// cleanup drops clients not seen for maxAge
func (rl *clientRateLimiter) cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, c := range rl.limiters {
		if now.Sub(c.lastSeen) > maxAge {
			delete(rl.limiters, key)
		}
	}
}

func (rl *clientRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(key); err == nil {
			key = host
		}
		if !rl.allow(key) {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
