package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes to stdout and a rotated file under dir.
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

func New(dir, level string) (*Logger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create logs folder failed: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "stock-alert.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 7,
		MaxAge:     28, // days
		Compress:   true,
	}

	l := logrus.New()
	l.SetOutput(io.MultiWriter(os.Stdout, file))
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	return &Logger{Logger: l, file: file}, nil
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l}
}

func (l *Logger) Close() {
	if l.file == nil {
		return
	}
	_ = l.file.Close()
}
