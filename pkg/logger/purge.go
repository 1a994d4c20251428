package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PurgeExpiredFiles deletes log files in dir last modified before now-retention.
// Files named *.log and rotated variants (*.log.1, *.log.2025-01-01, *.log.gz)
// are considered; anything else is left alone. A missing dir is not an error.
// Returns the number of files removed.
func PurgeExpiredFiles(dir string, retention time.Duration, now time.Time) (int, error) {
	if dir == "" || retention <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("purge logs: read dir: %w", err)
	}

	cutoff := now.Add(-retention)
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() || !isLogFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("purge logs: %w", errors.Join(errs...))
	}
	return removed, nil
}

func isLogFile(name string) bool {
	return strings.HasSuffix(name, ".log") || strings.Contains(name, ".log.")
}
