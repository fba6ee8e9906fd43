package log_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/rulebook/pkg/log"
)

func TestNewHandler(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		level   string
		format  string
		wantErr error
	}{
		"text info": {
			level:  "info",
			format: "text",
		},
		"json debug": {
			level:  "DEBUG",
			format: "json",
		},
		"logfmt warning alias": {
			level:  "warning",
			format: "logfmt",
		},
		"unknown level": {
			level:   "verbose",
			format:  "text",
			wantErr: log.ErrUnknownLogLevel,
		},
		"unknown format": {
			level:   "info",
			format:  "xml",
			wantErr: log.ErrUnknownLogFormat,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h, err := log.NewHandler(&bytes.Buffer{}, tc.level, tc.format)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.ErrorIs(t, err, log.ErrInvalidArgument)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, h)
		})
	}
}

func TestHandlerFor_JSONRespectsLevel(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger := slog.New(log.HandlerFor(buf, slog.LevelWarn, log.FormatJSON))

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown", slog.String("rule", "aws"))
	assert.Contains(t, buf.String(), `"rule":"aws"`)
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger := slog.New(log.HandlerFor(buf, slog.LevelInfo, log.FormatJSON))

	ctx := log.NewContext(context.Background(), logger)
	assert.Same(t, logger, log.WithContext(ctx))

	assert.NotNil(t, log.WithContext(context.Background()))
}

func TestWithContext_TraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger := slog.New(log.HandlerFor(buf, slog.LevelInfo, log.FormatJSON))

	traceID, err := trace.TraceIDFromHex("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0123456789abcdef")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(log.NewContext(t.Context(), logger),
		trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID}),
	)

	log.WithContext(ctx).Info("traced", slog.String(log.KeyRule, "aws"))
	assert.Contains(t, buf.String(), `"trace_id":"01234567"`)
	assert.Contains(t, buf.String(), `"rule":"aws"`)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		in   string
		want slog.Level
	}{
		"error":   {in: "error", want: slog.LevelError},
		"warning": {in: "Warning", want: slog.LevelWarn},
		"debug":   {in: "debug", want: slog.LevelDebug},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := log.ParseLevel(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
