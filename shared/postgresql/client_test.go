package postgresql

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{
		Host:     "db",
		Port:     5433,
		User:     "app",
		Password: "pw",
		Database: "video2gif",
		SSLMode:  "disable",
	}

	assert.Equal(t, "host=db port=5433 user=app password=pw dbname=video2gif sslmode=disable", cfg.DSN())
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for _, entry := range entries {
		data, err := fs.ReadFile(migrations, "migrations/"+entry.Name())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "-- +goose Up"), entry.Name())
		assert.Contains(t, string(data), "-- +goose Down", entry.Name())
	}
}
