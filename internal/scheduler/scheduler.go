// Package scheduler runs the cron-driven retention sweeps over the
// storage directories.
package scheduler

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/clipforge/clipforge/internal/config"
)

// tempDirMaxAge is how old a temp job directory must be before the
// sweep considers it orphaned. Running jobs touch their directory well
// within this window.
const tempDirMaxAge = time.Hour

// jobDirPrefix matches the per-job working directories under temp/.
const jobDirPrefix = "job_"

// Sweeper deletes finished clips past their retention and orphaned job
// temp directories on a cron schedule.
type Sweeper struct {
	mu sync.Mutex

	storage config.StorageConfig
	logger  *slog.Logger
	cron    *cron.Cron

	// now is overridable for tests.
	now func() time.Time
}

// New creates a retention sweeper for the configured storage layout.
func New(storage config.StorageConfig, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		storage: storage,
		logger:  logger.With("component", "scheduler"),
		now:     time.Now,
	}
}

// Start schedules the sweep on the configured cron expression, which
// uses six fields with a leading seconds column.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(s.storage.CleanupCron, func() { s.Sweep() }); err != nil {
		return fmt.Errorf("parsing cleanup cron %q: %w", s.storage.CleanupCron, err)
	}
	c.Start()
	s.cron = c

	s.logger.Info("retention sweeper started",
		"cron", s.storage.CleanupCron,
		"retention", s.storage.OutputRetention)
	return nil
}

// Stop halts the cron loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		s.logger.Info("retention sweeper stopped")
	}
}

// Sweep removes expired output clips and orphaned temp job directories.
// It returns how many entries were removed.
func (s *Sweeper) Sweep() int {
	removed := s.sweepOutput()
	removed += s.sweepTemp()
	if removed > 0 {
		s.logger.Info("retention sweep finished", "removed", removed)
	}
	return removed
}

// sweepOutput deletes .mp4 files in the output directory older than the
// configured retention.
func (s *Sweeper) sweepOutput() int {
	if s.storage.OutputRetention <= 0 {
		return 0
	}
	dir := s.storage.OutputPath()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("reading output directory failed", "dir", dir, "error", err)
		}
		return 0
	}

	cutoff := s.now().Add(-s.storage.OutputRetention)
	var removed int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp4") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn("removing expired clip failed", "path", path, "error", err)
			continue
		}
		s.logger.Debug("removed expired clip",
			"file", entry.Name(),
			"age", s.now().Sub(info.ModTime()).Round(time.Second))
		removed++
	}
	return removed
}

// sweepTemp deletes job working directories whose job can no longer be
// running. A crash mid-job leaves its directory behind.
func (s *Sweeper) sweepTemp() int {
	dir := s.storage.TempPath()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("reading temp directory failed", "dir", dir, "error", err)
		}
		return 0
	}

	cutoff := s.now().Add(-tempDirMaxAge)
	var removed int
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), jobDirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn("removing orphaned job dir failed", "path", path, "error", err)
			continue
		}
		s.logger.Debug("removed orphaned job dir", "dir", entry.Name())
		removed++
	}
	return removed
}
