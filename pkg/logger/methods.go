package logger

import (
	"context"
	"fmt"
	"log/slog"
)

func (l *Logger) Info(args ...any) {
	l.Logger.Log(context.Background(), slog.LevelInfo, fmt.Sprint(args...))
}

func (l *Logger) Infow(msg string, keysAndValues ...any) {
	l.Logger.Log(context.Background(), slog.LevelInfo, msg, keysAndValues...)
}

func (l *Logger) Debugw(msg string, keysAndValues ...any) {
	l.Logger.Log(context.Background(), slog.LevelDebug, msg, keysAndValues...)
}

func (l *Logger) Warnw(msg string, keysAndValues ...any) {
	l.Logger.Log(context.Background(), slog.LevelWarn, msg, keysAndValues...)
}

func (l *Logger) Errorw(msg string, keysAndValues ...any) {
	l.Logger.Log(context.Background(), slog.LevelError, msg, keysAndValues...)
}

// Package level helpers write through the global logger.

func Info(args ...any) {
	GetLogger().Log(context.Background(), slog.LevelInfo, fmt.Sprint(args...))
}

func Infow(msg string, keysAndValues ...any) {
	GetLogger().Log(context.Background(), slog.LevelInfo, msg, keysAndValues...)
}

func InfoContext(ctx context.Context, msg string, keysAndValues ...any) {
	GetLogger().Log(ctx, slog.LevelInfo, msg, keysAndValues...)
}

func Debugw(msg string, keysAndValues ...any) {
	GetLogger().Log(context.Background(), slog.LevelDebug, msg, keysAndValues...)
}

func DebugContext(ctx context.Context, msg string, keysAndValues ...any) {
	GetLogger().Log(ctx, slog.LevelDebug, msg, keysAndValues...)
}

func Warnw(msg string, keysAndValues ...any) {
	GetLogger().Log(context.Background(), slog.LevelWarn, msg, keysAndValues...)
}

func WarnContext(ctx context.Context, msg string, keysAndValues ...any) {
	GetLogger().Log(ctx, slog.LevelWarn, msg, keysAndValues...)
}

func Errorw(msg string, keysAndValues ...any) {
	GetLogger().Log(context.Background(), slog.LevelError, msg, keysAndValues...)
}

func ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {
	GetLogger().Log(ctx, slog.LevelError, msg, keysAndValues...)
}
