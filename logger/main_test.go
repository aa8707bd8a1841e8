package logger

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestLoggerWithoutSpan(t *testing.T) {
	l := Connect(LoggerConnectProps{Silent: true})

	if l.Logger(context.Background()) != l.logger {
		t.Error("Expected base logger when context carries no span")
	}
}

func TestLoggerWithSpan(t *testing.T) {
	l := Connect(LoggerConnectProps{Silent: true})

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	if l.Logger(ctx) == l.logger {
		t.Error("Expected a derived logger when context carries a valid span")
	}
}

func TestProductionWithoutProviderFallsBack(t *testing.T) {
	l := Connect(LoggerConnectProps{Production: true})
	if l.Logger(context.Background()) == nil {
		t.Fatal("Expected a usable logger")
	}
}
