// Package startup provides boot-time housekeeping tasks.
package startup

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// jobDirPrefix matches the per-job working directories under temp/.
const jobDirPrefix = "job_"

// CleanupOrphanedJobDirs removes every job working directory left under
// tempDir. At boot no job can be running, so anything matching the job
// dir pattern is leftover from a crash or unclean shutdown.
//
// Returns the number of directories removed.
func CleanupOrphanedJobDirs(logger *slog.Logger, tempDir string) (int, error) {
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("temp directory does not exist, skipping cleanup", "dir", tempDir)
			return 0, nil
		}
		logger.Error("reading temp directory for cleanup failed", "dir", tempDir, "error", err)
		return 0, err
	}

	var removed int
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), jobDirPrefix) {
			continue
		}
		path := filepath.Join(tempDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("removing orphaned job dir failed", "path", path, "error", err)
			continue
		}
		logger.Info("removed orphaned job dir", "dir", entry.Name())
		removed++
	}
	return removed, nil
}
