package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestNew_SelectsBackend(t *testing.T) {
	_, isZap := New(Config{Backend: BackendZap}).(*zapLogger)
	assert.True(t, isZap)

	_, isSlog := New(Config{Backend: ""}).(*slogLogger)
	assert.True(t, isSlog)
}

func TestSlogLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(Config{Level: LevelInfo, Format: "json", Output: &buf})

	ctx := WithUserID(WithRequestID(context.Background(), "req-1"), "user-9")
	l.WithContext(ctx).Info("analysis finished", Int("items", 3))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "analysis finished", entry["msg"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "user-9", entry["user_id"])
	assert.EqualValues(t, 3, entry["items"])
}

func TestSlogLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(Config{Level: LevelWarn, Output: &buf})

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestZapLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLoggerFromCore(core, LevelDebug)

	ctx := WithRequestID(context.Background(), "req-2")
	l.With(String("component", "scheduler")).WithContext(ctx).Error("run failed", Err(assert.AnError))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "run failed", entry.Message)
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, "scheduler", fields["component"])
	assert.Equal(t, "req-2", fields["request_id"])
	assert.Equal(t, assert.AnError.Error(), fields["error"])
}

func TestZapLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewZapLogger(Config{Level: LevelInfo, Format: "json", Output: &buf})

	l.Debug("hidden")
	l.Info("visible", Bool("forced", true))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, true, entry["forced"])
}

func TestCtx_FallsBackToDefault(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewSlogLogger(Config{Level: LevelInfo, Output: &buf}))
	t.Cleanup(func() { SetDefault(nil) })

	Ctx(WithUserID(context.Background(), "u1")).Info("hello")
	assert.Contains(t, buf.String(), `"user_id":"u1"`)
}

func TestParseLevel_TrimsAndFolds(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("  Debug "))
	assert.Equal(t, LevelWarn, ParseLevel("Warn"))
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "info", Level(42).String())
}

func TestWithContext_RunAndItemFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(Config{Level: LevelDebug, Output: &buf})

	ctx := WithItem(WithRunID(WithUserID(context.Background(), "u1"), "run-7"), "rice")
	l.WithContext(ctx).Debug("item analyzed", Bool("forced", false))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-7", entry["run_id"])
	assert.Equal(t, "rice", entry["item_name"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, false, entry["forced"])
	assert.NotContains(t, entry, "request_id")
}

func TestWithRunID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithRunID(context.Background(), "")
	id := RunIDFromContext(ctx)
	assert.Len(t, id, 36)
	assert.Empty(t, ItemFromContext(ctx))
}

func TestFromContext_PrefersAttachedLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	attached := NewZapLoggerFromCore(core, LevelInfo)

	ctx := WithRunID(WithLogger(context.Background(), attached), "run-1")
	Ctx(ctx).Info("scheduled analysis started")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "run-1", logs.All()[0].ContextMap()["run_id"])
}
