package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/surya-d-naidu/HealthCareBot/logger"
	"github.com/surya-d-naidu/HealthCareBot/modelapi"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Device is a capture resource (camera or microphone) held while a responder
// is searched for.
type Device interface {
	Release() error
}

type DeviceAcquirer interface {
	Acquire(ctx context.Context) (Device, error)
}

type EscalatorConnectProps struct {
	Logger *logger.LogMiddleware
	Delay  time.Duration
	// Devices is optional; server deployments have no capture device.
	Devices DeviceAcquirer
}

// Escalator answers emergency support turns without calling the model.
type Escalator struct {
	logger  *logger.LogMiddleware
	delay   time.Duration
	devices DeviceAcquirer
}

func NewEscalator(args EscalatorConnectProps) *Escalator {
	return &Escalator{logger: args.Logger, delay: args.Delay, devices: args.Devices}
}

// Escalate waits out the search delay and returns the acknowledgement. A
// device that cannot be acquired yields the device-unavailable reply wrapped
// in ErrMediaAccess. Cancelling ctx aborts the wait. Any acquired device is
// released before Escalate returns.
func (e *Escalator) Escalate(ctx context.Context) (string, error) {
	tracer := otel.Tracer("conversation/Escalate")
	ctx, span := tracer.Start(ctx, "Escalate")
	defer span.End()
	span.SetAttributes(attribute.Int64("delayMs", e.delay.Milliseconds()))

	if e.devices != nil {
		device, err := e.devices.Acquire(ctx)
		if err != nil {
			span.RecordError(err)
			e.logger.Logger(ctx).Warn("[Escalator] Could not acquire capture device", zap.Error(err))
			return modelapi.DEVICE_UNAVAILABLE_MESSAGE, fmt.Errorf("%w: %w", ErrMediaAccess, err)
		}
		defer func() {
			if err := device.Release(); err != nil {
				e.logger.Logger(ctx).Warn("[Escalator] Could not release capture device", zap.Error(err))
			}
		}()
	}

	timer := time.NewTimer(e.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return "", ctx.Err()
	case <-timer.C:
	}

	e.logger.Logger(ctx).Info("[Escalator] Emergency escalation acknowledged")
	return modelapi.ESCALATION_MESSAGE, nil
}
