// Package logging provides a context scoped logger. Library code pulls the
// logger out of the context it was handed, so callers control where oauthkit
// logs go:
//
//	ctx = logging.With(ctx, logging.NewProdLogger())
//	token, err := client.Exchange(ctx, code)
//
// When no logger has been attached, logging is a no-op.
package logging

import (
	"context"
	"strings"
)

type ctxKey struct{}

// Logger is the structured subset of zap's sugared logger that oauthkit
// logs through. Key/value pairs alternate, keys first.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Named returns a child logger whose name has name appended.
	Named(name string) Logger

	// With returns a child logger carrying the given fields.
	With(keysAndValues ...interface{}) Logger
}

// With attaches a logger to the context. Nested scopes are built from the
// logger already present:
//
//	ctx = logging.With(ctx, logging.FromContext(ctx).Named("github"))
func With(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger attached to ctx, or a no-op logger.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
			return l
		}
	}
	return nopLogger
}

// EnsureLogger returns ctx unchanged if it carries a logger, otherwise a
// child context with a development logger.
func EnsureLogger(ctx context.Context) context.Context {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
		return ctx
	}
	return With(ctx, NewDevLogger())
}

// Redact masks a secret, keeping a short prefix so values can be correlated
// in logs without being usable.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", 8)
}

func Debugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	FromContext(ctx).Debugw(msg, keysAndValues...)
}

func Infow(ctx context.Context, msg string, keysAndValues ...interface{}) {
	FromContext(ctx).Infow(msg, keysAndValues...)
}

func Warnw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	FromContext(ctx).Warnw(msg, keysAndValues...)
}

func Errorw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	FromContext(ctx).Errorw(msg, keysAndValues...)
}
