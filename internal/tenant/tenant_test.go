package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelWhitelist(t *testing.T) {
	tr := &Tenant{
		ID: "librarian",
		Channels: []Channel{
			{ID: "all", Name: "All Sources"},
			{ID: "librarian", Name: "Librarian"},
			{ID: "northernlion", Name: "Northernlion"},
		},
	}

	assert.Equal(t, []string{"librarian", "northernlion"}, tr.ChannelWhitelist())
}

func TestChannelWhitelist_NilTenant(t *testing.T) {
	var tr *Tenant
	assert.Nil(t, tr.ChannelWhitelist())
}

func TestDatabaseURL(t *testing.T) {
	t.Run("explicit url wins", func(t *testing.T) {
		t.Setenv("LIBRARIAN_DB", "postgres://env")
		tr := &Tenant{Database: Database{URL: "postgres://direct", EnvVar: "LIBRARIAN_DB"}}
		assert.Equal(t, "postgres://direct", tr.DatabaseURL())
	})

	t.Run("env var resolves", func(t *testing.T) {
		t.Setenv("LIBRARIAN_DB", "postgres://env")
		tr := &Tenant{Database: Database{EnvVar: "LIBRARIAN_DB"}}
		assert.Equal(t, "postgres://env", tr.DatabaseURL())
	})

	t.Run("unset env var falls back to shared", func(t *testing.T) {
		t.Setenv("LIBRARIAN_DB", "")
		t.Setenv("DATABASE_URL", "postgres://shared")
		tr := &Tenant{Database: Database{EnvVar: "LIBRARIAN_DB"}}
		assert.Equal(t, "postgres://shared", tr.DatabaseURL())
	})

	t.Run("nil tenant uses shared", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://shared")
		var tr *Tenant
		assert.Equal(t, "postgres://shared", tr.DatabaseURL())
	})
}

func TestPoolKey(t *testing.T) {
	var nilTenant *Tenant
	assert.Equal(t, DefaultID, nilTenant.PoolKey())
	assert.Equal(t, DefaultID, (&Tenant{}).PoolKey())
	assert.Equal(t, "librarian", (&Tenant{ID: "librarian"}).PoolKey())
}
