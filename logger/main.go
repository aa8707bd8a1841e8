package logger

import (
	"context"

	"github.com/hyperdxio/opentelemetry-go/otelzap"
	sdk "github.com/hyperdxio/opentelemetry-logs-go/sdk/logs"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type LoggerConnectProps struct {
	Production     bool
	Silent         bool
	LoggerProvider *sdk.LoggerProvider
}

type LogMiddleware struct {
	logger *zap.Logger
}

func Connect(args LoggerConnectProps) *LogMiddleware {
	var logger *zap.Logger

	switch {
	case args.Silent:
		logger = zap.NewNop()
	case args.Production && args.LoggerProvider != nil:
		logger = zap.New(otelzap.NewOtelCore(args.LoggerProvider))
		zap.ReplaceGlobals(logger)
		logger.Info("[Logger] Starting Logger with Prod Config")
	default:
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			logger = zap.NewExample()
		}
	}

	return &LogMiddleware{logger: logger}
}

// Logger returns the base logger annotated with the trace and span ids found in ctx.
func (l *LogMiddleware) Logger(ctx context.Context) *zap.Logger {
	spanContext := trace.SpanContextFromContext(ctx)
	if !spanContext.IsValid() {
		return l.logger
	}

	return l.logger.With(
		zap.String("trace_id", spanContext.TraceID().String()),
		zap.String("span_id", spanContext.SpanID().String()),
	)
}

// Sync flushes buffered entries. Errors from syncing stdout/stderr are ignored.
func (l *LogMiddleware) Sync() {
	_ = l.logger.Sync()
}
