package registry

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/multierr"

	"github.com/hamed0406/healthgate/internal/domain"
)

const (
	BackendName  = "Backend API"
	AIName       = "AI Service"
	FrontendName = "Frontend"
	DatabaseName = "Database"
)

// Registry is the fixed, ordered list of targets for a run. Proxy is the
// derived database check: it calls an endpoint on an already probed service
// and is always reported last.
type Registry struct {
	Targets []domain.ServiceTarget
	Proxy   *domain.ServiceTarget
}

// Default builds the reference set: backend and AI health endpoints
// (critical), the frontend root (reachability only) and the database
// inferred through the backend stats endpoint.
func Default(backendURL, aiURL, frontendURL string) Registry {
	backend := trimBase(backendURL)
	return Registry{
		Targets: []domain.ServiceTarget{
			{Name: BackendName, URL: backend + "/health", Critical: true},
			{Name: AIName, URL: trimBase(aiURL) + "/health", Critical: true},
			{Name: FrontendName, URL: trimBase(frontendURL) + "/", Critical: false},
		},
		Proxy: &domain.ServiceTarget{Name: DatabaseName, URL: backend + "/stats", Critical: false},
	}
}

// All returns the targets in registry order followed by the proxy check.
func (r Registry) All() []domain.ServiceTarget {
	out := make([]domain.ServiceTarget, 0, len(r.Targets)+1)
	out = append(out, r.Targets...)
	if r.Proxy != nil {
		out = append(out, *r.Proxy)
	}
	return out
}

// Validate reports every problem at once: empty or duplicate names and
// URLs that are not absolute http(s).
func (r Registry) Validate() error {
	all := r.All()
	if len(all) == 0 {
		return errors.New("registry: no targets configured")
	}
	var err error
	seen := make(map[string]struct{}, len(all))
	for i, t := range all {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			err = multierr.Append(err, fmt.Errorf("registry: target #%d has no name", i+1))
		} else if _, dup := seen[strings.ToLower(name)]; dup {
			err = multierr.Append(err, fmt.Errorf("registry: duplicate target name %q", t.Name))
		} else {
			seen[strings.ToLower(name)] = struct{}{}
		}
		if !IsValidHTTPURL(t.URL) {
			err = multierr.Append(err, fmt.Errorf("registry: target %q has invalid url %q", t.Name, t.URL))
		}
	}
	return err
}

func IsValidHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func trimBase(raw string) string {
	s := strings.TrimSpace(raw)
	if s != "" && !strings.Contains(s, "://") {
		s = "http://" + s
	}
	return strings.TrimRight(s, "/")
}
