package reliability

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantfund/verdant/internal/database"
)

func openTestDB(t *testing.T, dir, name string, profile database.DatabaseProfile) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(dir, name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func newBackupFixture(t *testing.T) (map[string]*database.DB, *BackupService, string) {
	t.Helper()
	dataDir := t.TempDir()

	databases := map[string]*database.DB{
		"portfolio": openTestDB(t, dataDir, "portfolio", database.ProfileStandard),
		"analytics": openTestDB(t, dataDir, "analytics", database.ProfileLedger),
		"cache":     openTestDB(t, dataDir, "cache", database.ProfileCache),
	}

	backupDir := filepath.Join(dataDir, "backups")
	service := NewBackupService(databases, backupDir, zerolog.Nop())
	return databases, service, backupDir
}

func TestGetDatabaseNames(t *testing.T) {
	_, service, _ := newBackupFixture(t)

	assert.Equal(t, []string{"analytics", "portfolio"}, service.GetDatabaseNames(false))
	assert.Equal(t, []string{"analytics", "cache", "portfolio"}, service.GetDatabaseNames(true))
}

func TestDailyBackup(t *testing.T) {
	databases, service, backupDir := newBackupFixture(t)

	_, err := databases["portfolio"].Exec(
		`INSERT INTO investments (name, status) VALUES ('Solar One', 'active')`)
	require.NoError(t, err)

	require.NoError(t, service.DailyBackup())

	dailyDir := filepath.Join(backupDir, "daily", time.Now().Format("2006-01-02"))
	for _, name := range []string{"portfolio", "analytics"} {
		path := filepath.Join(dailyDir, name+".db")
		require.FileExists(t, path)
		assert.NoError(t, service.VerifyBackup(path))
	}

	// Cache contents rebuild from re-runs, so local dailies skip them.
	assert.NoFileExists(t, filepath.Join(dailyDir, "cache.db"))
}

func TestBackupDatabase_UnknownName(t *testing.T) {
	_, service, _ := newBackupFixture(t)

	err := service.BackupDatabase("bogus", filepath.Join(t.TempDir(), "bogus.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database bogus not found")
}

func TestVerifyBackup_CorruptFile(t *testing.T) {
	_, service, _ := newBackupFixture(t)

	path := filepath.Join(t.TempDir(), "corrupt.db")
	require.NoError(t, os.WriteFile(path, []byte("not a sqlite database"), 0644))

	assert.Error(t, service.VerifyBackup(path))
}

func TestRotateDailyBackups(t *testing.T) {
	_, service, backupDir := newBackupFixture(t)

	dailyDir := filepath.Join(backupDir, "daily")
	oldDir := filepath.Join(dailyDir, time.Now().AddDate(0, 0, -45).Format("2006-01-02"))
	recentDir := filepath.Join(dailyDir, time.Now().Format("2006-01-02"))
	oddDir := filepath.Join(dailyDir, "not-a-date")
	require.NoError(t, os.MkdirAll(oldDir, 0755))
	require.NoError(t, os.MkdirAll(recentDir, 0755))
	require.NoError(t, os.MkdirAll(oddDir, 0755))

	require.NoError(t, service.rotateDailyBackups())

	assert.NoDirExists(t, oldDir)
	assert.DirExists(t, recentDir)
	assert.DirExists(t, oddDir, "directories that do not parse as dates are left alone")
}

func TestDailyMaintenanceJob_Run(t *testing.T) {
	databases, service, backupDir := newBackupFixture(t)
	dataDir := filepath.Dir(backupDir)

	job := NewDailyMaintenanceJob(databases, service, dataDir, zerolog.Nop())
	assert.Equal(t, "daily_maintenance", job.Name())

	require.NoError(t, job.Run())

	dailyDir := filepath.Join(backupDir, "daily", time.Now().Format("2006-01-02"))
	assert.FileExists(t, filepath.Join(dailyDir, "portfolio.db"))
}

func TestWeeklyVacuumJob_Run(t *testing.T) {
	databases, _, _ := newBackupFixture(t)

	job := NewWeeklyVacuumJob(databases, zerolog.Nop())
	assert.Equal(t, "weekly_vacuum", job.Name())

	require.NoError(t, job.Run())
}

func TestCreateArchive_RoundTrip(t *testing.T) {
	service := &R2BackupService{log: zerolog.Nop()}
	stagingDir := t.TempDir()

	files := map[string][]byte{
		"portfolio.db":         []byte("portfolio contents"),
		"analytics.db":         []byte("analytics contents"),
		"backup-metadata.json": []byte(`{"version": "1.0.0"}`),
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(stagingDir, name), content, 0644))
	}

	archivePath := filepath.Join(stagingDir, "backup.tar.gz")
	err := service.createArchive(archivePath, stagingDir, []string{"portfolio", "analytics", "backup-metadata"})
	require.NoError(t, err)

	archiveFile, err := os.Open(archivePath)
	require.NoError(t, err)
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	require.NoError(t, err)
	tarReader := tar.NewReader(gzipReader)

	extracted := map[string][]byte{}
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tarReader)
		require.NoError(t, err)
		extracted[header.Name] = content
	}

	assert.Equal(t, files, extracted)
}

func TestCalculateChecksum(t *testing.T) {
	service := &R2BackupService{log: zerolog.Nop()}

	path := filepath.Join(t.TempDir(), "data.db")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	checksum, err := service.calculateChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("sha256:%x", sha256.Sum256([]byte("hello world"))), checksum)
}
