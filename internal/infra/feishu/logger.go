package feishu

import (
	"context"
	"fmt"
	"log/slog"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
)

// sdkLogger routes the Lark SDK's own logging into slog
type sdkLogger struct {
	logger *slog.Logger
}

// NewLogger adapts a slog logger to the SDK logger interface
func NewLogger(logger *slog.Logger) larkcore.Logger {
	return &sdkLogger{logger: logger.With("source", "lark-sdk")}
}

func (l *sdkLogger) Debug(ctx context.Context, args ...interface{}) {
	l.logger.DebugContext(ctx, fmt.Sprint(args...))
}

func (l *sdkLogger) Info(ctx context.Context, args ...interface{}) {
	l.logger.InfoContext(ctx, fmt.Sprint(args...))
}

func (l *sdkLogger) Warn(ctx context.Context, args ...interface{}) {
	l.logger.WarnContext(ctx, fmt.Sprint(args...))
}

func (l *sdkLogger) Error(ctx context.Context, args ...interface{}) {
	l.logger.ErrorContext(ctx, fmt.Sprint(args...))
}
