package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/whatschanged/whatschanged/pkg/observability"
)

// newLogger creates a logger writing to w at the given level, with
// "HH:MM:SS.ms" timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs completion of an operation with its elapsed time.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g. "Resolved 42 dependencies (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// =============================================================================
// Observability Hooks
// =============================================================================

// logHooks reports resolver, cache and HTTP client events as debug logs.
// The logger is taken from the event's context so server requests carry
// their request ID.
type logHooks struct{}

// installLogHooks routes observability events to the context logger.
func installLogHooks() {
	observability.SetResolveHooks(logHooks{})
	observability.SetCacheHooks(logHooks{})
	observability.SetHTTPHooks(logHooks{})
}

func (logHooks) OnResolveStart(ctx context.Context, deps int) {
	loggerFromContext(ctx).Debug("Resolving batch", "deps", deps)
}

func (logHooks) OnResolveComplete(ctx context.Context, deps, cached, fetched int, d time.Duration, err error) {
	l := loggerFromContext(ctx)
	if err != nil {
		l.Debug("Batch failed", "deps", deps, "duration", d.Round(time.Millisecond), "err", err)
		return
	}
	l.Debug("Batch resolved", "deps", deps, "cached", cached, "fetched", fetched, "duration", d.Round(time.Millisecond))
}

func (logHooks) OnCacheHit(ctx context.Context, keyType string) {
	loggerFromContext(ctx).Debug("Cache hit", "type", keyType)
}

func (logHooks) OnCacheMiss(ctx context.Context, keyType string) {
	loggerFromContext(ctx).Debug("Cache miss", "type", keyType)
}

func (logHooks) OnCacheSet(ctx context.Context, keyType string, n int) {
	loggerFromContext(ctx).Debug("Cache write", "type", keyType, "n", n)
}

func (logHooks) OnRequest(context.Context, string, string, string) {}

func (logHooks) OnResponse(ctx context.Context, method, host, path string, status int, d time.Duration) {
	loggerFromContext(ctx).Debug("HTTP", "method", method, "host", host, "path", path, "status", status, "duration", d.Round(time.Millisecond))
}

func (logHooks) OnError(ctx context.Context, method, host, path string, err error) {
	loggerFromContext(ctx).Debug("HTTP error", "method", method, "host", host, "path", path, "err", err)
}
