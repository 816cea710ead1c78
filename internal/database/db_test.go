package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableNames(t *testing.T, db *DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestBuildConnectionString(t *testing.T) {
	tests := []struct {
		name     string
		profile  DatabaseProfile
		want     []string
		excluded []string
	}{
		{
			name:    "ledger fsyncs every write and never shrinks",
			profile: ProfileLedger,
			want:    []string{"synchronous(FULL)", "auto_vacuum(NONE)"},
		},
		{
			name:     "cache trades safety for speed",
			profile:  ProfileCache,
			want:     []string{"synchronous(OFF)", "auto_vacuum(FULL)", "temp_store(MEMORY)"},
			excluded: []string{"synchronous(FULL)"},
		},
		{
			name:    "standard balances both",
			profile: ProfileStandard,
			want:    []string{"synchronous(NORMAL)", "auto_vacuum(INCREMENTAL)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connStr := buildConnectionString("/data/test.db", tt.profile)

			assert.Contains(t, connStr, "journal_mode(WAL)")
			assert.Contains(t, connStr, "foreign_keys(1)")
			for _, pragma := range tt.want {
				assert.Contains(t, connStr, pragma)
			}
			for _, pragma := range tt.excluded {
				assert.NotContains(t, connStr, pragma)
			}
		})
	}
}

func TestNew_DefaultsToStandardProfile(t *testing.T) {
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
		Name: "test",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileStandard, db.Profile())
}

func TestNew_CreatesMissingDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "test.db")

	db, err := New(Config{Path: path, Profile: ProfileStandard, Name: "test"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.QuickCheck(context.Background()))
}

func TestAccessors(t *testing.T) {
	db := newTestDB(t, "portfolio", ProfileStandard)

	assert.Equal(t, "portfolio", db.Name())
	assert.Equal(t, ProfileStandard, db.Profile())
	assert.Contains(t, db.Path(), "portfolio.db")
}

func TestMigrate_AppliesSchemas(t *testing.T) {
	tests := []struct {
		name       string
		wantTables []string
	}{
		{"portfolio", []string{"investments", "esg_scores", "climate_risks", "social_impacts", "ghg_emissions"}},
		{"analytics", []string{"benchmarks", "simulations", "correlation_analyses", "optimizations", "attributions"}},
		{"cache", []string{"simulation_distributions"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t, tt.name, ProfileStandard)
			require.NoError(t, db.Migrate())

			names := tableNames(t, db)
			for _, table := range tt.wantTables {
				assert.Contains(t, names, table)
			}
		})
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t, "portfolio", ProfileStandard)

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())
}

func TestMigrate_UnknownNameIsSkipped(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileStandard)

	require.NoError(t, db.Migrate())
	assert.Empty(t, tableNames(t, db))
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t, "portfolio", ProfileStandard)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestWALCheckpoint(t *testing.T) {
	db := newTestDB(t, "portfolio", ProfileStandard)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.WALCheckpoint(""))
	assert.NoError(t, db.WALCheckpoint("FULL"))
}

func TestGetStats(t *testing.T) {
	db := newTestDB(t, "portfolio", ProfileStandard)
	require.NoError(t, db.Migrate())

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
	assert.Greater(t, stats.SizeBytes, int64(0))
}

func TestWithTransaction_Commit(t *testing.T) {
	db := newTestDB(t, "portfolio", ProfileStandard)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO investments (name, status) VALUES ('Solar One', 'active')`)
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM investments`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := newTestDB(t, "portfolio", ProfileStandard)
	require.NoError(t, db.Migrate())

	fail := errors.New("nope")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO investments (name, status) VALUES ('Solar One', 'active')`); err != nil {
			return err
		}
		return fail
	})
	require.ErrorIs(t, err, fail)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM investments`).Scan(&count))
	assert.Equal(t, 0, count, "the insert must roll back with the transaction")
}

func TestWithTransaction_RecoversPanic(t *testing.T) {
	db := newTestDB(t, "portfolio", ProfileStandard)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction: boom")
}

func TestWithTransaction_NilConnection(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
	require.Error(t, err)
}
