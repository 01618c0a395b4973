package youtrack

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ycho/youtrack-mcp-server/internal/batch"
	"golang.org/x/text/cases"
)

// Resolver turns user-supplied names into YouTrack identities. Lookups are
// cached for the lifetime of the Resolver; build a new one to start fresh.
type Resolver struct {
	client *Client

	mu          sync.Mutex
	currentUser *User
	projects    []Project
}

// NewResolver creates a new resolver
func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client}
}

// fold case-folds s for comparison. A Caser keeps state between calls, so
// each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// ResolveError represents an error when resolving a name
type ResolveError struct {
	Type     string
	Query    string
	Matches  []string
	NotFound bool
}

func (e *ResolveError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("%s not found: %s", e.Type, e.Query)
	}
	return fmt.Sprintf("multiple %s match '%s': %s", e.Type, e.Query, strings.Join(e.Matches, ", "))
}

// CurrentUser returns the token owner, fetched once.
func (r *Resolver) CurrentUser(ctx context.Context) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentUser != nil {
		return r.currentUser, nil
	}
	user, err := r.client.GetCurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load current user: %w", err)
	}
	r.currentUser = user
	return user, nil
}

// ResolveLogin maps "me" to the current user's login and a full name such
// as "Bob Stone" to that user's login. Logins never contain whitespace, so
// any other value is taken as a login unchanged.
func (r *Resolver) ResolveLogin(ctx context.Context, subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	switch {
	case strings.EqualFold(subject, "me"):
		user, err := r.CurrentUser(ctx)
		if err != nil {
			return "", err
		}
		return user.Login, nil
	case strings.ContainsAny(subject, " \t"):
		user, err := r.ResolveUser(ctx, subject)
		if err != nil {
			return "", err
		}
		return user.Login, nil
	default:
		return subject, nil
	}
}

// ResolveLogins resolves every subject, dropping duplicates and blanks.
// Lookups run concurrently; any failure fails the whole call.
func (r *Resolver) ResolveLogins(ctx context.Context, subjects []string) ([]string, error) {
	var cleaned []string
	for _, s := range subjects {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}

	results, err := batch.Run(ctx, cleaned, batch.LightLimit, r.ResolveLogin)
	if err != nil {
		return nil, err
	}
	resolved, err := batch.Values(results)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(resolved))
	logins := make([]string, 0, len(resolved))
	for _, login := range resolved {
		if !seen[login] {
			seen[login] = true
			logins = append(logins, login)
		}
	}
	return logins, nil
}

// ResolveUser finds a single user by login or full name.
func (r *Resolver) ResolveUser(ctx context.Context, loginOrName string) (*User, error) {
	loginOrName = strings.TrimSpace(loginOrName)
	if strings.EqualFold(loginOrName, "me") {
		return r.CurrentUser(ctx)
	}

	users, err := r.client.SearchUsers(ctx, loginOrName, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	query := fold(loginOrName)
	var matches []User
	for _, u := range users {
		if fold(u.Login) == query || fold(u.FullName) == query {
			matches = append(matches, u)
		}
	}

	// If no exact match, try partial match on full name
	if len(matches) == 0 {
		for _, u := range users {
			if strings.Contains(fold(u.FullName), query) {
				matches = append(matches, u)
			}
		}
	}

	if len(matches) == 0 {
		return nil, &ResolveError{Type: "user", Query: loginOrName, NotFound: true}
	}
	if len(matches) > 1 {
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = fmt.Sprintf("%s (login: %s)", m.FullName, m.Login)
		}
		return nil, &ResolveError{Type: "user", Query: loginOrName, Matches: names}
	}
	return &matches[0], nil
}

// ResolveProject finds a project by short name, name or internal id.
func (r *Resolver) ResolveProject(ctx context.Context, nameOrID string) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.projects == nil {
		projects, err := r.client.ListProjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load projects: %w", err)
		}
		r.projects = projects
	}

	query := fold(nameOrID)
	var matches []Project
	for _, p := range r.projects {
		if p.ID == nameOrID || fold(p.ShortName) == query || fold(p.Name) == query {
			matches = append(matches, p)
		}
	}

	// If no exact match, try partial match
	if len(matches) == 0 {
		for _, p := range r.projects {
			if strings.Contains(fold(p.Name), query) {
				matches = append(matches, p)
			}
		}
	}

	if len(matches) == 0 {
		return nil, &ResolveError{Type: "project", Query: nameOrID, NotFound: true}
	}
	if len(matches) > 1 {
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = fmt.Sprintf("%s (%s)", m.Name, m.ShortName)
		}
		return nil, &ResolveError{Type: "project", Query: nameOrID, Matches: names}
	}
	return &matches[0], nil
}
