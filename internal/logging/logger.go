// Package logging provides categorized file-based logging for chatharvest.
// Each category writes to its own file under <output>/logs/ so a long
// harvest run can be audited per subsystem. When debug mode is off, logging
// is a silent no-op except for warnings and errors, which also go to stderr.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot     Category = "boot"     // startup, config, shard assignment
	CategorySession  Category = "session"  // login, cookie/storage persistence
	CategoryBrowser  Category = "browser"  // navigation, locator lookups
	CategoryDetector Category = "detector" // completion state machine
	CategoryDriver   Category = "driver"   // per-prompt orchestration
	CategoryLedger   Category = "ledger"   // NDJSON appends, resume filtering
	CategoryWorker   Category = "worker"   // multi-process fan-out
)

// Options mirrors config.LoggingConfig to avoid a circular import.
type Options struct {
	DebugMode  bool
	Level      string // debug, info, warn, error
	Categories map[string]bool
}

// Logger wraps a zap sugared logger bound to one category. A Logger with a
// nil sugar is a no-op.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	loggers = make(map[Category]*Logger)
	logsDir string
	opts    Options
	level   zapcore.Level
)

// Initialize sets up the logging directory. Call once at startup.
func Initialize(dir string, o Options) error {
	mu.Lock()
	defer mu.Unlock()

	opts = o
	level = parseLevel(o.Level)
	loggers = make(map[Category]*Logger)
	logsDir = ""

	if !o.DebugMode {
		return nil
	}
	logsDir = filepath.Join(dir, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}
	return nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func categoryEnabled(c Category) bool {
	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, ok := opts.Categories[string(c)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. Returns a no-op
// logger when the category is disabled.
func Get(c Category) *Logger {
	mu.RLock()
	if l, ok := loggers[c]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[c]; ok {
		return l
	}

	if !categoryEnabled(c) || logsDir == "" {
		l := &Logger{category: c}
		loggers[c] = l
		return l
	}

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, c))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", path, err)
		l := &Logger{category: c}
		loggers[c] = l
		return l
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(file), level),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stderr), zapcore.WarnLevel),
	)
	z := zap.New(core).Named(string(c))

	l := &Logger{category: c, sugar: z.Sugar()}
	loggers[c] = l
	return l
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

// Warn logs a warning.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		fmt.Fprintf(os.Stderr, "[WARN] [%s] %s\n", l.category, fmt.Sprintf(format, args...))
		return
	}
	l.sugar.Warnf(format, args...)
}

// Error logs an error.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		fmt.Fprintf(os.Stderr, "[ERROR] [%s] %s\n", l.category, fmt.Sprintf(format, args...))
		return
	}
	l.sugar.Errorf(format, args...)
}

// CloseAll flushes and drops all open loggers. Call at shutdown.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// Session logs to the session category.
func Session(format string, args ...interface{}) { Get(CategorySession).Info(format, args...) }

// SessionDebug logs debug to the session category.
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }

// Browser logs to the browser category.
func Browser(format string, args ...interface{}) { Get(CategoryBrowser).Info(format, args...) }

// BrowserDebug logs debug to the browser category.
func BrowserDebug(format string, args ...interface{}) { Get(CategoryBrowser).Debug(format, args...) }

// Detector logs to the detector category.
func Detector(format string, args ...interface{}) { Get(CategoryDetector).Info(format, args...) }

// DetectorDebug logs debug to the detector category.
func DetectorDebug(format string, args ...interface{}) { Get(CategoryDetector).Debug(format, args...) }

// Driver logs to the driver category.
func Driver(format string, args ...interface{}) { Get(CategoryDriver).Info(format, args...) }

// DriverWarn logs warning to the driver category.
func DriverWarn(format string, args ...interface{}) { Get(CategoryDriver).Warn(format, args...) }

// Ledger logs to the ledger category.
func Ledger(format string, args ...interface{}) { Get(CategoryLedger).Info(format, args...) }

// LedgerWarn logs warning to the ledger category.
func LedgerWarn(format string, args ...interface{}) { Get(CategoryLedger).Warn(format, args...) }

// Worker logs to the worker category.
func Worker(format string, args ...interface{}) { Get(CategoryWorker).Info(format, args...) }

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer measures operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}
