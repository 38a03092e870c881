package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	got, err := MigrationURL("postgres://u:p@localhost:5432/toko?sslmode=disable")
	require.NoError(t, err)
	require.Equal(t, "pgx5://u:p@localhost:5432/toko?sslmode=disable", got)

	got, err = MigrationURL("postgresql://localhost/toko")
	require.NoError(t, err)
	require.Equal(t, "pgx5://localhost/toko", got)

	_, err = MigrationURL("mysql://localhost/toko")
	require.Error(t, err)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	require.Equal(t, ups, downs)

	body, err := fs.ReadFile(migrations, "migrations/0001_catalog.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"products", "shipping_methods", "shipping_tiers", "free_shipping_rules"} {
		require.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+table)
	}
}
