package storage

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationRunner_FreshDB(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db, "")

	require.NoError(t, runner.Run(context.Background()))

	expectedTables := []string{
		"visits",
		"daily_stats",
		"interventions",
		"settings",
		"exclusions",
		"audit_log",
		"schema_migrations",
	}
	for _, table := range expectedTables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrationRunner_IndexesCreated(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db, "").Run(context.Background()))

	expectedIndexes := []string{
		"idx_visits_date",
		"idx_visits_domain",
		"idx_visits_date_category",
		"idx_visits_start_time",
		"idx_interventions_date",
		"idx_interventions_status",
		"idx_exclusions_rule",
		"idx_audit_log_ts",
	}
	for _, idx := range expectedIndexes {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx,
		).Scan(&name)
		require.NoError(t, err, "index %s should exist", idx)
		assert.Equal(t, idx, name)
	}
}

func TestMigrationRunner_DefaultExclusions(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db, "").Run(context.Background()))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM exclusions WHERE is_default = 1").Scan(&count))
	assert.Greater(t, count, 10)

	var reason string
	require.NoError(t, db.QueryRow(
		"SELECT reason FROM exclusions WHERE rule_type = 'domain' AND rule_value = 'chase.com'",
	).Scan(&reason))
	assert.Contains(t, reason, "Banking")
}

func TestMigrationRunner_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewMigrationRunner(db, "").Run(ctx))
	require.NoError(t, NewMigrationRunner(db, "").Run(ctx))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)

	v, err := NewMigrationRunner(db, "").Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestMigrationRunner_RejectsUnknownJournalMode(t *testing.T) {
	db := openTestDB(t)
	err := NewMigrationRunner(db, "sideways").Run(context.Background())
	assert.Error(t, err)
}
