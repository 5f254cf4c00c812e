package tenant

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Registry holds every loaded tenant, indexed by id and by hostname.
type Registry struct {
	byID       map[string]*Tenant
	byHostname map[string]*Tenant
	fallback   *Tenant
}

// LoadRegistry reads every *.yaml/*.yml tenant file in dir. Files missing an
// id or hostnames are skipped with a warning rather than failing the whole
// registry. The fallback tenant is the one marked default, otherwise the
// first by id.
func LoadRegistry(dir string, logger *zap.Logger) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading tenants dir %s: %w", dir, err)
	}

	r := &Registry{
		byID:       make(map[string]*Tenant),
		byHostname: make(map[string]*Tenant),
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading tenant file %s: %w", path, err)
		}
		var t Tenant
		if err := yaml.Unmarshal(raw, &t); err != nil {
			logger.Warn("skipping unparseable tenant config",
				zap.String("file", name), zap.Error(err))
			continue
		}
		if t.ID == "" || len(t.Hostnames) == 0 {
			logger.Warn("skipping invalid tenant config",
				zap.String("file", name))
			continue
		}
		r.add(&t)
	}

	if len(r.byID) == 0 {
		return nil, fmt.Errorf("no valid tenant configs in %s", dir)
	}

	if r.fallback == nil {
		ids := make([]string, 0, len(r.byID))
		for id := range r.byID {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		r.fallback = r.byID[ids[0]]
	}

	logger.Info("loaded tenant configurations",
		zap.Int("tenants", len(r.byID)),
		zap.String("fallback", r.fallback.ID))
	return r, nil
}

func (r *Registry) add(t *Tenant) {
	r.byID[t.ID] = t
	for _, h := range t.Hostnames {
		h = strings.ToLower(h)
		if _, exists := r.byHostname[h]; !exists {
			r.byHostname[h] = t
		}
	}
	if t.Default && r.fallback == nil {
		r.fallback = t
	}
}

// Detect resolves a request hostname to a tenant. The port is stripped and
// the name lowercased; exact matches win over wildcard ("*.example.com")
// matches; unmatched hostnames get the fallback tenant.
func (r *Registry) Detect(hostname string) *Tenant {
	normalized := strings.ToLower(hostname)
	if i := strings.IndexByte(normalized, ':'); i >= 0 {
		normalized = normalized[:i]
	}

	if t, ok := r.byHostname[normalized]; ok {
		return t
	}

	for pattern, t := range r.byHostname {
		if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(normalized, pattern[2:]) {
			return t
		}
	}

	return r.fallback
}

// ByID returns the tenant with the given id.
func (r *Registry) ByID(id string) (*Tenant, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// All returns every loaded tenant, ordered by id.
func (r *Registry) All() []*Tenant {
	out := make([]*Tenant, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
