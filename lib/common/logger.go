package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// output is shared by all package loggers so lines of different packages never interleave
var output = log.New(os.Stdout, "", log.Ldate|log.Ltime)

// SetLogOutput redirects every netsock logger to w
func SetLogOutput(w io.Writer) {
	output.SetOutput(w)
}

// --------------------------------------------------------------------------
// Package logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

var levelLabels = map[logger.LogLevel]string{
	logger.CRITICAL: "CRIT",
	logger.ERROR:    "ERROR",
	logger.WARNING:  "WARN",
	logger.INFO:     "INFO",
	logger.DEBUG:    "DEBUG",
}

// pkgLogger writes "LEVEL | package | message" lines. The level can be
// changed while other goroutines log.
type pkgLogger struct {
	name  string
	level atomic.Int32
}

func (l *pkgLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *pkgLogger) Debugf(format string, args ...interface{}) {
	l.logf(logger.DEBUG, format, args...)
}

func (l *pkgLogger) Infof(format string, args ...interface{}) {
	l.logf(logger.INFO, format, args...)
}

func (l *pkgLogger) Warningf(format string, args ...interface{}) {
	l.logf(logger.WARNING, format, args...)
}

func (l *pkgLogger) Errorf(format string, args ...interface{}) {
	l.logf(logger.ERROR, format, args...)
}

// Panicf logs regardless of the level and panics
func (l *pkgLogger) Panicf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	output.Printf("%-5s | %-12s | %s", levelLabels[logger.CRITICAL], l.name, message)
	panic(message)
}

func (l *pkgLogger) logf(level logger.LogLevel, format string, args ...interface{}) {
	if logger.LogLevel(l.level.Load()) < level {
		return
	}
	output.Printf("%-5s | %-12s | %s", levelLabels[level], l.name, fmt.Sprintf(format, args...))
}

// CreateLogger is the logger.Factory used for every package logger
func CreateLogger(pkgName string) logger.ILogger {
	l := &pkgLogger{name: pkgName}
	l.SetLevel(logger.INFO)
	return l
}

// --------------------------------------------------------------------------
// Levels
// --------------------------------------------------------------------------

// LoggerNames lists every logger used by the netsock packages
var LoggerNames = []string{"netsocket", "asyncsocket", "netiface", "cmd"}

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logger.DEBUG, nil
	case "info", "":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// ParseLogLevels parses a level spec of the form "<level>[,<package>=<level>...]",
// e.g. "warn,netsocket=debug". The first entry may be omitted and defaults to info.
// The result maps every name of LoggerNames to its level.
func ParseLogLevels(spec string) (map[string]logger.LogLevel, error) {
	levels := make(map[string]logger.LogLevel, len(LoggerNames))
	overrides := make(map[string]logger.LogLevel)
	base := logger.INFO

	for i, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		name, value, isOverride := strings.Cut(entry, "=")
		if !isOverride {
			if i != 0 {
				return nil, fmt.Errorf("invalid log level spec %q: the default level must come first", spec)
			}
			lvl, err := ParseLogLevel(entry)
			if err != nil {
				return nil, err
			}
			base = lvl
			continue
		}

		name = strings.TrimSpace(name)
		if !isLoggerName(name) {
			return nil, fmt.Errorf("unknown logger %q. must be one of %s", name, strings.Join(LoggerNames, ", "))
		}
		lvl, err := ParseLogLevel(value)
		if err != nil {
			return nil, err
		}
		overrides[name] = lvl
	}

	for _, name := range LoggerNames {
		levels[name] = base
		if lvl, ok := overrides[name]; ok {
			levels[name] = lvl
		}
	}
	return levels, nil
}

func isLoggerName(name string) bool {
	for _, n := range LoggerNames {
		if n == name {
			return true
		}
	}
	return false
}

// InitLoggers installs the logger factory and applies a level spec as
// understood by ParseLogLevels
func InitLoggers(spec string) error {
	levels, err := ParseLogLevels(spec)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)

	for name, lvl := range levels {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
