package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	glog "github.com/goliatone/go-logger/glog"
)

const levelTrace = slog.Level(-8)

// slogLogger satisfies glog.Logger on top of a slog handler. Fields reach
// it as key/value args.
type slogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

func newSlogLogger(w io.Writer, level slog.Level) *slogLogger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &slogLogger{logger: slog.New(handler), ctx: context.Background()}
}

func (l *slogLogger) Trace(msg string, args ...any) { l.log(levelTrace, msg, args...) }
func (l *slogLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *slogLogger) Fatal(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
	os.Exit(1)
}

func (l *slogLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	return &slogLogger{logger: l.logger, ctx: ctx}
}

func (l *slogLogger) log(level slog.Level, msg string, args ...any) {
	l.logger.Log(l.ctx, level, msg, args...)
}

type slogProvider struct {
	root *slogLogger
}

func (p slogProvider) GetLogger(name string) glog.Logger {
	return &slogLogger{logger: p.root.logger.With("logger", name), ctx: p.root.ctx}
}

var (
	_ glog.Logger         = (*slogLogger)(nil)
	_ glog.LoggerProvider = slogProvider{}
)
