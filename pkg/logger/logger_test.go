package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithActor(ctx, "citizen")

	log.Error(ctx, "boom", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-123"`)
	assert.Contains(t, out, `"actor_kind":"citizen"`)
	assert.Contains(t, out, `"stack"`)
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	assert.Contains(t, buf.String(), `"stack"`)

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf})
	quiet.Warn(context.Background(), "warny")
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestLevelFiltersDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.InfoLevel, Output: buf})
	log.Debug(context.Background(), "hidden")
	require.Empty(t, buf.String())
}

func TestParseLevelDefaults(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
}

func TestNilAndDiscardLoggersAreSafe(t *testing.T) {
	var nilLog *Logger
	ctx := nilLog.WithFields(context.Background(), map[string]any{"a": 1})
	require.NotNil(t, ctx)
	assert.NotPanics(t, func() {
		nilLog.Info(ctx, "x")
		nilLog.Warn(ctx, "x")
		nilLog.Error(ctx, "x", errors.New("x"))
		Discard().Error(context.Background(), "x", errors.New("x"))
	})
}

func TestFieldsAccumulateAndStayScoped(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	parent := log.WithField(context.Background(), "job", "stale-pending")
	child := log.WithFields(parent, map[string]any{"b": 2, "a": 1})

	log.Info(child, "child")
	assert.Contains(t, buf.String(), `"job":"stale-pending","a":1,"b":2`)

	buf.Reset()
	log.Info(parent, "parent")
	assert.NotContains(t, buf.String(), `"a":1`)
	assert.Contains(t, buf.String(), `"service":"test"`)
}
