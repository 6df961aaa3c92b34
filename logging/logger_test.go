package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestScopes(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := With(t.Context(), NewZapLogger(zap.New(core)))
	child := With(ctx, FromContext(ctx).Named("github").With("provider", "github"))

	Infow(ctx, "root")
	Debugw(child, "child", "grant", "code")

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "root", entries[0].Message)
	assert.Empty(t, entries[0].Context, "child fields do not leak to the parent")

	assert.Equal(t, "child", entries[1].Message)
	assert.Equal(t, "github", entries[1].LoggerName)
	assert.ElementsMatch(t, []zap.Field{
		zap.String("provider", "github"),
		zap.String("grant", "code"),
	}, entries[1].Context)
}

func TestFromContext_NoLogger(t *testing.T) {
	assert.Same(t, nopLogger, FromContext(t.Context()))
	assert.Same(t, nopLogger, FromContext(nil)) //nolint:staticcheck
	assert.NotPanics(t, func() { Errorw(t.Context(), "ignored", "k", "v") })
}

func TestEnsureLogger(t *testing.T) {
	ctx := EnsureLogger(t.Context())
	assert.NotEqual(t, nopLogger, FromContext(ctx))
	assert.Equal(t, ctx, EnsureLogger(ctx), "existing loggers are kept")
}

func TestRedact(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "*****"},
		{"12345678", "********"},
		{"abcdefghijklmnop", "abcd********"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Redact(tt.in), tt.in)
	}
}
