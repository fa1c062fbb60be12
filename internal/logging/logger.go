// Package logging provides config-gated, categorized file-based logging
// for executord. Logs are written under Config.Logging.Dir with one file
// per category, named with the date it was first opened in this process;
// files are not rolled over when the date changes. Logging is a silent no-op when debug_mode is
// false, matching the teacher's internal/logging package, trimmed to the
// categories this service needs and re-pointed at the single process
// Config instead of a second runtime config file.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"executord/internal/config"
)

// Category identifies which subsystem a log line belongs to.
type Category string

const (
	CategoryBoot      Category = "boot"
	CategoryAPI       Category = "api"
	CategoryWorkspace Category = "workspace"
	CategorySandbox   Category = "sandbox"
	CategoryValidator Category = "validator"
	CategoryTools     Category = "tools"
	CategoryPolicy    Category = "policy"
)

const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Logger wraps a standard logger scoped to one category.
type Logger struct {
	category Category
	logger   *log.Logger
}

var (
	mu       sync.RWMutex
	loggers  = map[Category]*Logger{}
	logsDir  string
	cfg      config.LoggingConfig
	logLevel = LevelInfo
)

// Initialize sets the active logging configuration. Safe to call again on
// hot-reload (internal/config.WatchReload) — existing per-category file
// handles are kept, only the gating config and level change.
func Initialize(c config.LoggingConfig, baseDir string) error {
	mu.Lock()
	defer mu.Unlock()

	cfg = c
	logLevel = parseLevel(c.Level)

	if !cfg.DebugMode {
		logsDir = ""
		return nil
	}

	dir := c.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating log directory %s: %w", dir, err)
	}
	logsDir = dir
	return nil
}

func parseLevel(s string) int {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func categoryEnabled(cat Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if !cfg.DebugMode {
		return false
	}
	if cfg.Categories == nil {
		return true
	}
	enabled, known := cfg.Categories[string(cat)]
	if !known {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for category. When logging is
// disabled for this category, the returned Logger is a no-op — callers
// never need to branch on whether logging is enabled.
func Get(cat Category) *Logger {
	if !categoryEnabled(cat) {
		return &Logger{category: cat}
	}

	mu.RLock()
	dir := logsDir
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	if dir == "" {
		return &Logger{category: cat}
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, cat))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", path, err)
		return &Logger{category: cat}
	}

	l := &Logger{category: cat, logger: log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds)}
	loggers[cat] = l
	return l
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] "+format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] "+format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] "+format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] "+format, args...)
}

// Convenience package-level wrappers, matching the teacher's per-category
// free functions for call-site brevity.

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func API(format string, args ...interface{})       { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{})  { Get(CategoryAPI).Debug(format, args...) }
func Workspace(format string, args ...interface{}) { Get(CategoryWorkspace).Info(format, args...) }
func WorkspaceDebug(format string, args ...interface{}) {
	Get(CategoryWorkspace).Debug(format, args...)
}
func Sandbox(format string, args ...interface{})      { Get(CategorySandbox).Info(format, args...) }
func SandboxDebug(format string, args ...interface{}) { Get(CategorySandbox).Debug(format, args...) }
func Validator(format string, args ...interface{})    { Get(CategoryValidator).Debug(format, args...) }
func Tools(format string, args ...interface{})        { Get(CategoryTools).Debug(format, args...) }
func Policy(format string, args ...interface{})       { Get(CategoryPolicy).Info(format, args...) }
