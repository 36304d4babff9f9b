package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/wire"
)

var (
	mu     sync.RWMutex
	global *slog.Logger
	once   sync.Once
)

// ProviderSet is the Wire provider set for the logger package.
var ProviderSet = wire.NewSet(ProvideLogger)

// Conf defines logger configuration.
type Conf struct {
	Output     string `mapstructure:"output"`
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	Level      string `mapstructure:"level"`
	KeepHours  int    `mapstructure:"keepHours"`
	RotateSize int    `mapstructure:"rotateSize"`
	RotateNum  int    `mapstructure:"rotateNum"`
}

// Logger wraps slog.Logger so it can be injected.
type Logger struct {
	*slog.Logger
}

// ProvideLogger builds the process logger and installs it as the global one.
func ProvideLogger(conf *Conf) (*Logger, error) {
	l, err := New(conf)
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: l}, nil
}

// SetDefaults returns default logger configuration.
func SetDefaults() *Conf {
	return &Conf{
		Output:     "stdout",
		Path:       "./logs",
		Filename:   "storyflow.log",
		Level:      "INFO",
		KeepHours:  7,
		RotateSize: 100,
		RotateNum:  10,
	}
}

// Validate validates and normalizes logger configuration.
func (c *Conf) Validate() error {
	if c == nil {
		return fmt.Errorf("logger config is nil")
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
	if c.Level == "" {
		c.Level = "INFO"
	}
	if c.Output != "file" {
		return nil
	}
	if c.Path == "" {
		return fmt.Errorf("log path is required when output is 'file'")
	}
	if c.Filename == "" {
		c.Filename = "storyflow.log"
	}
	if c.RotateSize <= 0 {
		c.RotateSize = 100
	}
	if c.RotateNum <= 0 {
		c.RotateNum = 10
	}
	if c.KeepHours <= 0 {
		c.KeepHours = 7
	}
	return nil
}

// New creates a slog logger and replaces the global instance.
func New(conf *Conf) (*slog.Logger, error) {
	if conf == nil {
		conf = SetDefaults()
	}
	l, err := build(conf)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	global = l
	mu.Unlock()

	l.Log(context.Background(), slog.LevelDebug, "logger initialized", "output", conf.Output, "level", conf.Level)
	return l, nil
}

// SetLevel rebuilds the global logger with a different level, keeping the output.
func SetLevel(conf *Conf, level string) error {
	if conf == nil {
		conf = SetDefaults()
	}
	copied := *conf
	if strings.TrimSpace(level) != "" {
		copied.Level = level
	}
	_, err := New(&copied)
	return err
}

func build(conf *Conf) (*slog.Logger, error) {
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger config: %w", err)
	}

	output, err := buildOutputWriter(conf)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(conf.Level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format("2006-01-02 15:04:05"))
				}
			}
			return a
		},
	}
	return slog.New(newLogTrace(slog.NewTextHandler(output, opts))), nil
}

// GetLogger returns the global slog logger, creating a default one on first use.
func GetLogger() *slog.Logger {
	ensureLogger()
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Channel returns a logger tagged with the given channel name.
func Channel(name string) *Logger {
	l := GetLogger()
	if n := strings.TrimSpace(name); n != "" {
		l = l.With("channel", n)
	}
	return &Logger{Logger: l}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildOutputWriter(conf *Conf) (io.Writer, error) {
	switch conf.Output {
	case "file":
		return getFileLogWriter(conf)
	case "stderr":
		return os.Stderr, nil
	default:
		return os.Stdout, nil
	}
}

func ensureLogger() {
	mu.RLock()
	initialized := global != nil
	mu.RUnlock()
	if initialized {
		return
	}

	once.Do(func() {
		if _, err := New(SetDefaults()); err != nil {
			fallback := slog.New(newLogTrace(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
			mu.Lock()
			global = fallback
			mu.Unlock()
		}
	})
}
