package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// getFileLogWriter returns a rotating writer. lumberjack keeps age in days, so
// KeepHours is rounded up to whole days.
func getFileLogWriter(config *Conf) (io.Writer, error) {
	if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	days := (config.KeepHours + 23) / 24
	if days < 1 {
		days = 1
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(config.Path, config.Filename),
		MaxSize:    config.RotateSize,
		MaxBackups: config.RotateNum,
		MaxAge:     days,
		Compress:   true,
	}, nil
}
