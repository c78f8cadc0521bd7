package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer, level string) *Logger {
	return New(&Config{Level: level, Format: "json", Output: buf, ServiceName: "test"})
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &out))
	return out
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"LOG_LEVEL", "LOG_FORMAT", "SERVICE_NAME", "APP_ENV", "LOG_MAX_SIZE"} {
		t.Setenv(k, "")
	}
	cfg := LoadFromEnv()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, defaultServiceName, cfg.ServiceName)
	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, 100, cfg.MaxSize)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_MAX_BACKUPS", "3")
	t.Setenv("LOG_MAX_AGE", "-1")
	t.Setenv("LOG_COMPRESS", "false")

	cfg := LoadFromEnv()
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, 3, cfg.MaxBackups)
	assert.Equal(t, 30, cfg.MaxAge)
	assert.False(t, cfg.Compress)
}

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf, "info")

	log.WithField(FieldAIRequestID, "req-1").Info("Request transitioned")
	line := lastLine(t, &buf)
	assert.Equal(t, "Request transitioned", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "test", line["service"])
	assert.Equal(t, "req-1", line[FieldAIRequestID])
	assert.Contains(t, line, "timestamp")

	log.Debug("hidden")
	assert.Equal(t, "Request transitioned", lastLine(t, &buf)["message"])
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf, "info").WithContext(context.Background())
	ctx = SetRequestID(ctx, "http-1")
	ctx = SetAdminID(ctx, "alice")
	ctx = SetSessionID(ctx, "sess-1")

	assert.Equal(t, "http-1", GetRequestID(ctx))
	assert.Equal(t, "alice", GetAdminID(ctx))
	assert.Equal(t, "", GetFieldString(ctx, FieldComponent))

	CtxInfo(ctx, "polled %d times", 3)
	line := lastLine(t, &buf)
	assert.Equal(t, "polled 3 times", line["message"])
	assert.Equal(t, "sess-1", line[FieldSessionID])
	assert.Equal(t, "alice", line[FieldAdminID])

	CtxWarn(ctx, "slow")
	assert.Equal(t, "warning", lastLine(t, &buf)["level"])
	CtxError(ctx, "broken")
	assert.Equal(t, "error", lastLine(t, &buf)["level"])
}

func TestEntry(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf, "info").WithContext(context.Background())

	base := ForRequest("req-9")
	entry := base.WithTransition("assigned", "processing").WithDuration(12).WithCount(1)
	assert.NotContains(t, base.Fields(), FieldStatus)

	entry.Info(ctx, "Request transitioned")
	line := lastLine(t, &buf)
	assert.Equal(t, "req-9", line[FieldAIRequestID])
	assert.Equal(t, "assigned", line[FieldFrom])
	assert.Equal(t, "processing", line[FieldStatus])
	assert.EqualValues(t, 12, line[FieldDurationMs])
	assert.EqualValues(t, 1, line[FieldCount])
}
