package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dougsko/microfm/pkg/config"
	"gopkg.in/lumberjack.v2"
)

// LogLevel represents logging levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns string representation of log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string log level
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Fields carries structured key/value context for one log line
type Fields map[string]interface{}

// Logger writes leveled component log lines to the console and/or a
// rotating file.
type Logger struct {
	mu           sync.Mutex
	level        LogLevel
	structured   bool
	outputs      []*log.Logger
	rotatingFile *lumberjack.Logger
	now          func() time.Time
}

// NewLogger creates a new logger from configuration
func NewLogger(cfg *config.Config) (*Logger, error) {
	logger := &Logger{
		level:      ParseLogLevel(cfg.Logging.Level),
		structured: cfg.Logging.Structured,
		now:        time.Now,
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		logger.rotatingFile = &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSize,    // megabytes
			MaxBackups: cfg.Logging.MaxBackups, // number of backups
			MaxAge:     cfg.Logging.MaxAge,     // days
			Compress:   cfg.Logging.Compress,
		}
		logger.outputs = append(logger.outputs, log.New(logger.rotatingFile, "", 0))
	}

	// Console is always on when there is no log file
	if cfg.Logging.Console || logger.rotatingFile == nil {
		logger.outputs = append(logger.outputs, log.New(os.Stdout, "", 0))
	}

	return logger, nil
}

// NewWriterLogger creates a logger that writes to w only
func NewWriterLogger(w io.Writer, level LogLevel, structured bool) *Logger {
	return &Logger{
		level:      level,
		structured: structured,
		outputs:    []*log.Logger{log.New(w, "", 0)},
		now:        time.Now,
	}
}

// Close closes the logger and any open files
func (l *Logger) Close() error {
	if l.rotatingFile != nil {
		return l.rotatingFile.Close()
	}
	return nil
}

// SetLevel changes the minimum level at runtime
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) format(level LogLevel, component, message string, fields Fields) string {
	timestamp := l.now().Format("2006-01-02 15:04:05.000")

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if l.structured {
		parts := []string{
			fmt.Sprintf(`"time":%q`, timestamp),
			fmt.Sprintf(`"level":%q`, level.String()),
			fmt.Sprintf(`"component":%q`, component),
			fmt.Sprintf(`"message":%q`, message),
		}
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf(`%q:%q`, k, fmt.Sprint(fields[k])))
		}
		return "{" + strings.Join(parts, ",") + "}"
	}

	line := fmt.Sprintf("%s [%s] %s: %s", timestamp, level.String(), component, message)
	if len(keys) > 0 {
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
		}
		line += " [" + strings.Join(parts, " ") + "]"
	}
	return line
}

func (l *Logger) log(level LogLevel, component, message string, fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	formatted := l.format(level, component, message, fields)
	for _, out := range l.outputs {
		out.Println(formatted)
	}
}

// For returns a handle bound to one component name
func (l *Logger) For(component string) *Component {
	return &Component{logger: l, name: component}
}

// Component logs on behalf of a single package or subsystem
type Component struct {
	logger *Logger
	name   string
	fields Fields
}

// With returns a copy of the handle carrying extra fields
func (c *Component) With(fields Fields) *Component {
	merged := make(Fields, len(c.fields)+len(fields))
	for k, v := range c.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Component{logger: c.logger, name: c.name, fields: merged}
}

func (c *Component) target() *Logger {
	if c.logger == nil {
		return GetGlobalLogger()
	}
	return c.logger
}

func (c *Component) Debugf(format string, args ...interface{}) {
	c.target().log(LevelDebug, c.name, fmt.Sprintf(format, args...), c.fields)
}

func (c *Component) Infof(format string, args ...interface{}) {
	c.target().log(LevelInfo, c.name, fmt.Sprintf(format, args...), c.fields)
}

func (c *Component) Warnf(format string, args ...interface{}) {
	c.target().log(LevelWarn, c.name, fmt.Sprintf(format, args...), c.fields)
}

func (c *Component) Errorf(format string, args ...interface{}) {
	c.target().log(LevelError, c.name, fmt.Sprintf(format, args...), c.fields)
}

// Global logger instance
var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg *config.Config) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	SetGlobalLogger(logger)
	return nil
}

// SetGlobalLogger replaces the global logger
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// GetGlobalLogger returns the global logger
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		// Fallback to console logging if not initialized
		globalLogger = NewWriterLogger(os.Stdout, LevelInfo, false)
	}
	return globalLogger
}

// CloseGlobalLogger closes the global logger
func CloseGlobalLogger() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}

// For returns a component handle that follows the global logger, so handles
// created at package init pick up InitGlobalLogger later.
func For(component string) *Component {
	return &Component{name: component}
}

func Infof(component, format string, args ...interface{}) {
	GetGlobalLogger().log(LevelInfo, component, fmt.Sprintf(format, args...), nil)
}

func Warnf(component, format string, args ...interface{}) {
	GetGlobalLogger().log(LevelWarn, component, fmt.Sprintf(format, args...), nil)
}

func Errorf(component, format string, args ...interface{}) {
	GetGlobalLogger().log(LevelError, component, fmt.Sprintf(format, args...), nil)
}
