// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/muster/pkg/errutil"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestLog_Levels(t *testing.T) {
	tests := []struct {
		name      string
		level     slog.Level
		err       error
		wantLevel string
		wantCode  any
	}{
		{
			name:      "rejection at warn",
			level:     slog.LevelWarn,
			err:       oops.Code("ALREADY_ENLISTED").Errorf("already enlisted"),
			wantLevel: "WARN",
			wantCode:  "ALREADY_ENLISTED",
		},
		{
			name:      "info keeps code",
			level:     slog.LevelInfo,
			err:       oops.Code("NOT_ENLISTED").Errorf("not enlisted"),
			wantLevel: "INFO",
			wantCode:  "NOT_ENLISTED",
		},
		{
			name:      "plain error has no code",
			level:     slog.LevelError,
			err:       errors.New("connection reset"),
			wantLevel: "ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			errutil.Log(context.Background(), logger, tt.level, "operation failed", tt.err)

			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "operation failed", entry["msg"])
			assert.Contains(t, entry["error"], tt.err.Error())
			assert.Equal(t, tt.wantCode, entry["code"])
		})
	}
}

func TestLogError_WithOopsContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("SAVE_FAILED").With("player_id", "01H").Errorf("save failed")

	errutil.LogError(context.Background(), logger, "saving slot failed", err)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "SAVE_FAILED", entry["code"])
	fields, ok := entry["context"].(map[string]any)
	require.True(t, ok, "context attribute: %v", entry["context"])
	assert.Equal(t, "01H", fields["player_id"])
}

func TestLog_InnermostCode(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	inner := oops.Code("SCHEMA_NOT_MIGRATED").Errorf("relation does not exist")
	err := oops.Code("LOAD_FAILED").Wrap(inner)

	errutil.LogError(context.Background(), logger, "load failed", err)

	assert.Equal(t, "SCHEMA_NOT_MIGRATED", decodeLine(t, &buf)["code"])
}

func TestLog_SkipsDisabledLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	errutil.Log(context.Background(), logger, slog.LevelInfo, "ignored", errors.New("boom"))

	assert.Empty(t, buf.String())
}

type ctxKey struct{}

type contextRecorder struct {
	slog.Handler
	seen []any
}

func (h *contextRecorder) Handle(ctx context.Context, r slog.Record) error {
	h.seen = append(h.seen, ctx.Value(ctxKey{}))
	return nil
}

func TestLog_PassesContextToHandler(t *testing.T) {
	recorder := &contextRecorder{Handler: slog.NewJSONHandler(&bytes.Buffer{}, nil)}
	logger := slog.New(recorder)
	ctx := context.WithValue(context.Background(), ctxKey{}, "span")

	errutil.LogError(ctx, logger, "failed", errors.New("boom"))

	assert.Equal(t, []any{"span"}, recorder.seen)
}
