package main

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	createTable = regexp.MustCompile(`(?i)CREATE TABLE (?:IF NOT EXISTS )?(\w+)`)
	dropTable   = regexp.MustCompile(`(?i)DROP TABLE (?:IF EXISTS )?(\w+)`)
)

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "db", "migrations")
}

func TestCollectMigrations_Versions(t *testing.T) {
	migrations, err := goose.CollectMigrations(migrationsDir(t), 0, goose.MaxVersion)
	require.NoError(t, err)

	var versions []int64
	for _, m := range migrations {
		versions = append(versions, m.Version)
	}
	assert.Equal(t, []int64{1, 2, 3}, versions)
}

func TestSQLMigrations_DownDropsEveryTable(t *testing.T) {
	dir := migrationsDir(t)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)

		up, down, ok := strings.Cut(string(b), "-- +goose Down")
		require.True(t, ok, "%s missing '-- +goose Down'", e.Name())
		require.Contains(t, up, "-- +goose Up", e.Name())

		dropped := map[string]bool{}
		for _, m := range dropTable.FindAllStringSubmatch(down, -1) {
			dropped[m[1]] = true
		}
		for _, m := range createTable.FindAllStringSubmatch(up, -1) {
			seen[m[1]] = true
			assert.True(t, dropped[m[1]], "%s: table %s is not dropped on down", e.Name(), m[1])
		}
	}

	for _, table := range []string{"books", "creators", "publishers", "roles", "series", "credits", "book_series", "response_cache"} {
		assert.True(t, seen[table], "no migration creates %s", table)
	}
}
