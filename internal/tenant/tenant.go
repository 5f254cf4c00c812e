package tenant

import (
	"os"
	"strings"
)

// DefaultID is the sentinel tenant id used when a caller carries no tenant.
const DefaultID = "default"

// Channel is a source channel a tenant exposes as a search filter.
type Channel struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Database describes how a tenant's connection string is resolved.
// URL takes precedence; EnvVar names an environment variable holding it.
type Database struct {
	URL    string `yaml:"url"`
	EnvVar string `yaml:"envVar"`
}

// Tenant is one isolated customer/site context: its own data store and its
// own validation rules. Immutable once loaded from configuration.
type Tenant struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	DisplayName string    `yaml:"displayName"`
	Hostnames   []string  `yaml:"hostnames"`
	Channels    []Channel `yaml:"channels"`
	Database    Database  `yaml:"database"`
	Default     bool      `yaml:"default"`
}

// ChannelWhitelist returns the channel ids valid as search filters for this
// tenant. The synthetic "all" entry is not part of the whitelist.
func (t *Tenant) ChannelWhitelist() []string {
	if t == nil {
		return nil
	}
	ids := make([]string, 0, len(t.Channels))
	for _, c := range t.Channels {
		if strings.EqualFold(c.ID, "all") {
			continue
		}
		ids = append(ids, c.ID)
	}
	return ids
}

// DatabaseURL resolves the tenant's connection string. A nil tenant resolves
// through DATABASE_URL, matching the default-tenant behavior.
func (t *Tenant) DatabaseURL() string {
	if t == nil {
		return os.Getenv("DATABASE_URL")
	}
	if t.Database.URL != "" {
		return t.Database.URL
	}
	envVar := t.Database.EnvVar
	if envVar == "" {
		envVar = "DATABASE_URL"
	}
	if url := os.Getenv(envVar); url != "" {
		return url
	}
	// A tenant-specific env var that is unset falls back to the shared one.
	return os.Getenv("DATABASE_URL")
}

// PoolKey returns the id under which this tenant's connection pool is cached.
func (t *Tenant) PoolKey() string {
	if t == nil || t.ID == "" {
		return DefaultID
	}
	return t.ID
}
