// Package util provides the process-wide structured logger.
package util

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"RoverLink/internal/model"
)

// Fields is an alias so callers do not import logrus for field maps.
type Fields = logrus.Fields

var (
	logger = logrus.New()
	mu     sync.Mutex
	file   *lumberjack.Logger
)

// SetupLogger configures level, formatter and outputs. It may be called again
// to reconfigure; a previous log file is closed.
func SetupLogger(cfg model.LogConfig) error {
	mu.Lock()
	defer mu.Unlock()

	level := logrus.InfoLevel
	if cfg.Level != "" {
		l, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level = l
	}
	logger.SetLevel(level)

	logger.SetFormatter(&formatter.Formatter{
		NoColors:        cfg.NoColors,
		TimestampFormat: "2006-01-02 15:04:05.000",
		HideKeys:        false,
		CallerFirst:     true,
		FieldsOrder:     []string{"component", "vehicle_id", "conn_id"},
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, s[len(s)-1])
		},
	})
	logger.SetReportCaller(cfg.ReportCaller)

	if file != nil {
		_ = file.Close()
		file = nil
	}
	writers := []io.Writer{os.Stderr}
	if cfg.Quiet {
		writers = writers[:0]
	}
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			LocalTime:  true,
			Compress:   cfg.Compress,
			MaxSize:    cfg.MaxSizeMB,
			MaxAge:     cfg.MaxAgeDays,
			MaxBackups: cfg.MaxBackups,
		}
		writers = append(writers, file)
	}
	if len(writers) == 0 {
		logger.SetOutput(io.Discard)
	} else {
		logger.SetOutput(io.MultiWriter(writers...))
	}
	return nil
}

// Logger returns the shared logger.
func Logger() *logrus.Logger { return logger }

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return logger.WithField("component", name)
}

// Info logs msg with fields at info level.
func Info(fields Fields, msg string) { logger.WithFields(fields).Info(msg) }

// Warn logs msg with fields at warn level.
func Warn(fields Fields, msg string) { logger.WithFields(fields).Warn(msg) }

// Error logs msg with fields at error level.
func Error(fields Fields, msg string) { logger.WithFields(fields).Error(msg) }

// Close flushes and closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}
