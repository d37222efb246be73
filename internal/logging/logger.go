// Package logging provides config-driven categorized logging for nerdbook.
// Logs are written to .nerdbook/logs/ with separate files per category.
// Logging is controlled by debug_mode in .nerdbook/config.yaml - when false, no logs are written.
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

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Boot/initialization
	CategoryKernel   Category = "kernel"   // Script evaluation, namespace propagation
	CategoryNotebook Category = "notebook" // Cell lifecycle and execution
	CategoryConsole  Category = "console"  // Output produced by user snippets
	CategoryCodegen  Category = "codegen"  // LLM code generation
	CategoryJournal  Category = "journal"  // Execution journal (SQLite)
	CategoryRPC      Category = "rpc"      // JSON-RPC server
	CategoryWatch    Category = "watch"    // Cell file watcher
	CategoryUI       Category = "ui"       // Interactive TUI
)

// AllCategories lists every known category in display order.
var AllCategories = []Category{
	CategoryBoot, CategoryKernel, CategoryNotebook, CategoryConsole,
	CategoryCodegen, CategoryJournal, CategoryRPC, CategoryWatch, CategoryUI,
}

// Settings mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type Settings struct {
	DebugMode  bool
	Level      string
	Format     string // json, text
	Categories map[string]bool
}

// Logger is a category-scoped logger. The zero value (nil sugar) is a no-op.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	file     *os.File
}

var (
	loggers    = make(map[Category]*Logger)
	loggersMu  sync.RWMutex
	logsDir    string
	workspace  string
	settings   Settings
	level      = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sharedCore zapcore.Core // when set, every category writes here instead of files
	configMu   sync.RWMutex
)

// Initialize sets up the logging directory.
// Should be called once at startup with the workspace path.
func Initialize(ws string, s Settings) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}

	CloseAll()

	configMu.Lock()
	workspace = ws
	logsDir = filepath.Join(workspace, ".nerdbook", "logs")
	settings = s
	level.SetLevel(parseLevel(s.Level))
	configMu.Unlock()

	// Only create logs directory if debug mode is enabled
	if !s.DebugMode {
		return nil // Silent no-op in production mode
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== nerdbook logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", level.Level())
	if len(s.Categories) == 0 {
		boot.Info("All categories enabled (no category filter)")
	}

	return nil
}

// UseCore routes every category to core, bypassing the per-category files.
// Debug mode is forced on. Tests use it with zaptest/observer; the CLI uses it
// to mirror logs to stderr. Passing nil restores file output.
func UseCore(core zapcore.Core) {
	CloseAll()

	configMu.Lock()
	defer configMu.Unlock()
	sharedCore = core
	if core != nil {
		settings.DebugMode = true
	}
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

// SetLevel changes the level of every category logger at runtime.
func SetLevel(l string) {
	level.SetLevel(parseLevel(l))
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return settings.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !settings.DebugMode {
		return false
	}
	if settings.Categories == nil {
		return true
	}
	enabled, exists := settings.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	l, err := newLogger(category)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: %v\n", err)
		return &Logger{category: category}
	}
	loggers[category] = l
	return l
}

func newLogger(category Category) (*Logger, error) {
	configMu.RLock()
	core, dir, format := sharedCore, logsDir, settings.Format
	configMu.RUnlock()

	if core != nil {
		z := zap.New(core).Named(string(category))
		return &Logger{category: category, sugar: z.Sugar()}, nil
	}
	if dir == "" {
		return &Logger{category: category}, nil
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open log file %s: %w", logPath, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	z := zap.New(zapcore.NewCore(enc, zapcore.AddSync(file), level)).Named(string(category))
	return &Logger{category: category, sugar: z.Sugar(), file: file}, nil
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// With returns a structured logger carrying the given zap fields.
func (l *Logger) With(fields ...zap.Field) *zap.Logger {
	if l.sugar == nil {
		return zap.NewNop()
	}
	return l.sugar.Desugar().With(fields...)
}

// Sync flushes every open category logger.
func Sync() {
	loggersMu.RLock()
	defer loggersMu.RUnlock()
	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
	}
}

// CloseAll closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// BootWarn logs warning to the boot category
func BootWarn(format string, args ...interface{}) {
	Get(CategoryBoot).Warn(format, args...)
}

// Kernel logs to the kernel category
func Kernel(format string, args ...interface{}) {
	Get(CategoryKernel).Info(format, args...)
}

// KernelDebug logs debug to the kernel category
func KernelDebug(format string, args ...interface{}) {
	Get(CategoryKernel).Debug(format, args...)
}

// KernelWarn logs warning to the kernel category
func KernelWarn(format string, args ...interface{}) {
	Get(CategoryKernel).Warn(format, args...)
}

// KernelError logs error to the kernel category
func KernelError(format string, args ...interface{}) {
	Get(CategoryKernel).Error(format, args...)
}

// Notebook logs to the notebook category
func Notebook(format string, args ...interface{}) {
	Get(CategoryNotebook).Info(format, args...)
}

// NotebookDebug logs debug to the notebook category
func NotebookDebug(format string, args ...interface{}) {
	Get(CategoryNotebook).Debug(format, args...)
}

// NotebookWarn logs warning to the notebook category
func NotebookWarn(format string, args ...interface{}) {
	Get(CategoryNotebook).Warn(format, args...)
}

// Codegen logs to the codegen category
func Codegen(format string, args ...interface{}) {
	Get(CategoryCodegen).Info(format, args...)
}

// CodegenDebug logs debug to the codegen category
func CodegenDebug(format string, args ...interface{}) {
	Get(CategoryCodegen).Debug(format, args...)
}

// CodegenError logs error to the codegen category
func CodegenError(format string, args ...interface{}) {
	Get(CategoryCodegen).Error(format, args...)
}

// Journal logs to the journal category
func Journal(format string, args ...interface{}) {
	Get(CategoryJournal).Info(format, args...)
}

// JournalDebug logs debug to the journal category
func JournalDebug(format string, args ...interface{}) {
	Get(CategoryJournal).Debug(format, args...)
}

// JournalError logs error to the journal category
func JournalError(format string, args ...interface{}) {
	Get(CategoryJournal).Error(format, args...)
}

// RPC logs to the rpc category
func RPC(format string, args ...interface{}) {
	Get(CategoryRPC).Info(format, args...)
}

// RPCDebug logs debug to the rpc category
func RPCDebug(format string, args ...interface{}) {
	Get(CategoryRPC).Debug(format, args...)
}

// Watch logs to the watch category
func Watch(format string, args ...interface{}) {
	Get(CategoryWatch).Info(format, args...)
}

// WatchWarn logs warning to the watch category
func WatchWarn(format string, args ...interface{}) {
	Get(CategoryWatch).Warn(format, args...)
}

// UI logs debug to the ui category
func UI(format string, args ...interface{}) {
	Get(CategoryUI).Debug(format, args...)
}

// =============================================================================
// TIMING
// =============================================================================

// Timer measures the duration of an operation
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
