// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Log writes err at level with its oops code and context attached. ctx
// carries the trace ids picked up by the logging handler.
func Log(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, err error) {
	if !logger.Enabled(ctx, level) {
		return
	}
	attrs := []slog.Attr{slog.String("error", err.Error())}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := Code(err); code != "" {
			attrs = append(attrs, slog.String("code", code))
		}
		if fields := oopsErr.Context(); len(fields) > 0 {
			attrs = append(attrs, slog.Any("context", fields))
		}
	}
	logger.LogAttrs(ctx, level, msg, attrs...)
}

// LogError logs err at error level.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error) {
	Log(ctx, logger, slog.LevelError, msg, err)
}
