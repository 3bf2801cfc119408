package livemap

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ConfigureLogging points the standard logrus logger at the configured
// level and output. When a file is set, output goes to both stderr and a
// rotating log file.
func ConfigureLogging(cfg *LogConfigBlock) error {
	if cfg == nil {
		cfg = &LogConfigBlock{Level: "info"}
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logrus.SetLevel(level)

	if cfg.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.File == "" {
		logrus.SetOutput(os.Stderr)
		return nil
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
	}))
	return nil
}
