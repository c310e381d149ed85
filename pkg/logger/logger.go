package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	coreconfig "github.com/AzielCF/az-relay/core/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Init configures the process-wide logrus logger. Every package logs through
// the logrus package functions, so this is the only place output is decided.
func Init(cfg coreconfig.LogConfig) error {
	return Configure(logrus.StandardLogger(), cfg)
}

// Configure applies level, formatter and output to the given logger.
func Configure(log *logrus.Logger, cfg coreconfig.LogConfig) error {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	out, err := writerFor(cfg)
	if err != nil {
		return err
	}
	log.SetOutput(out)
	return nil
}

func writerFor(cfg coreconfig.LogConfig) (io.Writer, error) {
	output := strings.ToLower(strings.TrimSpace(cfg.Output))
	if output == "" || output == "stdout" {
		return os.Stdout, nil
	}
	if output != "file" && output != "both" {
		return nil, fmt.Errorf("unsupported log output %q (want stdout, file or both)", cfg.Output)
	}

	if cfg.FileName == "" {
		return nil, fmt.Errorf("log output %q requires LOG_FILE", cfg.Output)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FileName), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.FileName,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	if output == "file" {
		return fileWriter, nil
	}
	return io.MultiWriter(os.Stdout, fileWriter), nil
}
