package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Fantasim/tokenscout/internal/config"
)

// Options configures Setup.
type Options struct {
	Level   string
	Dir     string
	Console io.Writer // nil logs to the file only
	Network string
	Version string
}

// Setup installs a JSON slog logger as the default. Records go to the
// console writer and to a per-day file in opts.Dir, and carry the network
// and version. The returned closer closes the current log file.
func Setup(opts Options) (io.Closer, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level %q: %w", opts.Level, err)
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %q: %w", opts.Dir, err)
	}

	file := &dailyFile{dir: opts.Dir, now: time.Now}
	if err := file.rotate(file.now()); err != nil {
		return nil, err
	}

	var writer io.Writer = file
	if opts.Console != nil {
		writer = io.MultiWriter(opts.Console, file)
	}

	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level}))
	if opts.Network != "" {
		logger = logger.With("network", opts.Network)
	}
	if opts.Version != "" {
		logger = logger.With("version", opts.Version)
	}
	slog.SetDefault(logger)

	slog.Info("logging initialized",
		"level", opts.Level,
		"logDir", opts.Dir,
		"logFile", file.name,
	)

	if removed := CleanOldLogs(opts.Dir, config.LogMaxAgeDays); removed > 0 {
		slog.Info("cleaned old log files", "removed", removed, "maxAgeDays", config.LogMaxAgeDays)
	}

	return file, nil
}

// FileName returns the log file name for the given day.
func FileName(day time.Time) string {
	return config.LogFilePrefix + day.Format("2006-01-02") + ".log"
}

// dailyFile appends to the log file of the current day and switches files
// when the date changes.
type dailyFile struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	name string
	f    *os.File
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if name := FileName(d.now()); name != d.name {
		if err := d.rotateLocked(name); err != nil {
			return 0, err
		}
	}
	return d.f.Write(p)
}

func (d *dailyFile) rotate(now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rotateLocked(FileName(now))
}

func (d *dailyFile) rotateLocked(name string) error {
	path := filepath.Join(d.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %q: %w", path, err)
	}
	if d.f != nil {
		d.f.Close()
	}
	d.f, d.name = f, name
	return nil
}

// Close closes the current file.
func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	d.name = ""
	return err
}

// CleanOldLogs deletes our log files in logDir last modified more than
// maxAgeDays ago and returns how many were removed.
func CleanOldLogs(logDir string, maxAgeDays int) int {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		slog.Warn("failed to read log directory for cleanup", "logDir", logDir, "error", err)
		return 0
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, config.LogFilePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(logDir, name)
		if err := os.Remove(path); err != nil {
			slog.Warn("failed to remove old log file", "file", path, "error", err)
			continue
		}
		removed++
	}
	return removed
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	switch strings.ToLower(s) {
	case "warning":
		return slog.LevelWarn, nil
	case "debug", "info", "warn", "error":
		if err := level.UnmarshalText([]byte(s)); err != nil {
			return slog.LevelInfo, err
		}
		return level, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
}
