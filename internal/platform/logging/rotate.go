package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RetentionDays is how long archived daily log files are kept.
const RetentionDays = 7

const dateLayout = "2006-01-02"

// rotatingFile is an io.Writer that renames the active file to
// name-YYYY-MM-DD.ext when the date changes.
type rotatingFile struct {
	mu   sync.Mutex
	dir  string
	name string
	date string
	file *os.File
	now  func() time.Time
}

func openRotatingFile(dir, name string) (*rotatingFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &rotatingFile{
		dir:  dir,
		name: name,
		date: time.Now().Format(dateLayout),
		file: f,
		now:  time.Now,
	}, nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return 0, os.ErrClosed
	}
	return r.file.Write(p)
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *rotatingFile) watch(stop <-chan struct{}, logger *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if rotated, err := r.rotateIfNeeded(); err != nil {
				logger.Error("[BOOT] log rotation failed", slog.Any("error", err))
			} else if rotated {
				r.cleanup(logger)
			}
		case <-stop:
			return
		}
	}
}

func (r *rotatingFile) archiveName(date string) string {
	ext := filepath.Ext(r.name)
	base := strings.TrimSuffix(r.name, ext)
	return fmt.Sprintf("%s-%s%s", base, date, ext)
}

func (r *rotatingFile) rotateIfNeeded() (bool, error) {
	today := r.now().Format(dateLayout)

	r.mu.Lock()
	defer r.mu.Unlock()
	if today == r.date || r.file == nil {
		return false, nil
	}

	current := filepath.Join(r.dir, r.name)
	if err := r.file.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(current, filepath.Join(r.dir, r.archiveName(r.date))); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	f, err := os.OpenFile(current, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.file = nil
		return false, err
	}
	r.file = f
	r.date = today
	return true, nil
}

func (r *rotatingFile) cleanup(logger *slog.Logger) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return
	}
	ext := filepath.Ext(r.name)
	prefix := strings.TrimSuffix(r.name, ext) + "-"
	cutoff := r.now().AddDate(0, 0, -RetentionDays)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		date, err := time.Parse(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext))
		if err != nil || !date.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil {
			logger.Warn("[BOOT] remove old log failed", slog.String("file", name), slog.Any("error", err))
		}
	}
}
