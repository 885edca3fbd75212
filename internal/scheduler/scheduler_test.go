package scheduler

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge/internal/config"
)

func newTestSweeper(t *testing.T) (*Sweeper, string, string) {
	t.Helper()
	base := t.TempDir()
	storage := config.StorageConfig{
		BaseDir:         base,
		OutputDir:       "output",
		TempDir:         "temp",
		OutputRetention: 7 * 24 * time.Hour,
		CleanupCron:     "0 0 3 * * *",
	}
	require.NoError(t, os.MkdirAll(storage.OutputPath(), 0o755))
	require.NoError(t, os.MkdirAll(storage.TempPath(), 0o755))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(storage, logger), storage.OutputPath(), storage.TempPath()
}

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func mkdirAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.Mkdir(path, 0o755))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestSweep_RemovesExpiredClips(t *testing.T) {
	s, outputDir, _ := newTestSweeper(t)

	writeAged(t, filepath.Join(outputDir, "Old_Video_clip1_1m40s.mp4"), 8*24*time.Hour)
	writeAged(t, filepath.Join(outputDir, "New_Video_clip1_0m30s.mp4"), time.Hour)

	removed := s.Sweep()
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, filepath.Join(outputDir, "Old_Video_clip1_1m40s.mp4"))
	assert.FileExists(t, filepath.Join(outputDir, "New_Video_clip1_0m30s.mp4"))
}

func TestSweep_IgnoresNonClipFiles(t *testing.T) {
	s, outputDir, _ := newTestSweeper(t)

	writeAged(t, filepath.Join(outputDir, "notes.txt"), 30*24*time.Hour)

	assert.Equal(t, 0, s.Sweep())
	assert.FileExists(t, filepath.Join(outputDir, "notes.txt"))
}

func TestSweep_RemovesOrphanedJobDirs(t *testing.T) {
	s, _, tempDir := newTestSweeper(t)

	oldJob := filepath.Join(tempDir, "job_01JABCDEF")
	mkdirAged(t, oldJob, 2*time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(oldJob, "segment_0.mp4"), []byte("x"), 0o644))
	// The file write bumps the dir mtime back up.
	mtime := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldJob, mtime, mtime))

	recentJob := filepath.Join(tempDir, "job_01JRECENT")
	mkdirAged(t, recentJob, 10*time.Minute)

	otherDir := filepath.Join(tempDir, "unrelated")
	mkdirAged(t, otherDir, 3*time.Hour)

	removed := s.Sweep()
	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, oldJob)
	assert.DirExists(t, recentJob)
	assert.DirExists(t, otherDir)
}

func TestSweep_ZeroRetentionKeepsClips(t *testing.T) {
	s, outputDir, _ := newTestSweeper(t)
	s.storage.OutputRetention = 0

	writeAged(t, filepath.Join(outputDir, "Old_Video_clip1_1m40s.mp4"), 30*24*time.Hour)

	assert.Equal(t, 0, s.Sweep())
	assert.FileExists(t, filepath.Join(outputDir, "Old_Video_clip1_1m40s.mp4"))
}

func TestSweep_MissingDirectories(t *testing.T) {
	s, outputDir, tempDir := newTestSweeper(t)
	require.NoError(t, os.RemoveAll(outputDir))
	require.NoError(t, os.RemoveAll(tempDir))

	assert.Equal(t, 0, s.Sweep())
}

func TestStart_InvalidCron(t *testing.T) {
	s, _, _ := newTestSweeper(t)
	s.storage.CleanupCron = "not a cron spec"

	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing cleanup cron")
}

func TestStart_StopIsIdempotentlySafe(t *testing.T) {
	s, _, _ := newTestSweeper(t)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	s.Stop()
	s.Stop()
}
