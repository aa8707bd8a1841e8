package conversation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/surya-d-naidu/HealthCareBot/modelapi"
)

type fakeDevice struct {
	released *atomic.Int32
}

func (d fakeDevice) Release() error {
	d.released.Add(1)
	return nil
}

type fakeAcquirer struct {
	err      error
	acquired atomic.Int32
	released atomic.Int32
}

func (f *fakeAcquirer) Acquire(ctx context.Context) (Device, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired.Add(1)
	return fakeDevice{released: &f.released}, nil
}

func TestEscalateReleasesDevice(t *testing.T) {
	devices := &fakeAcquirer{}
	esc := NewEscalator(EscalatorConnectProps{Logger: testLogger(), Delay: time.Millisecond, Devices: devices})

	text, err := esc.Escalate(context.Background())
	if err != nil || text != modelapi.ESCALATION_MESSAGE {
		t.Fatalf("got %q, %v", text, err)
	}
	if devices.acquired.Load() != 1 || devices.released.Load() != 1 {
		t.Errorf("acquired %d released %d", devices.acquired.Load(), devices.released.Load())
	}
}

func TestEscalateCancelReleasesDevice(t *testing.T) {
	devices := &fakeAcquirer{}
	esc := NewEscalator(EscalatorConnectProps{Logger: testLogger(), Delay: time.Hour, Devices: devices})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := esc.Escalate(ctx)
		done <- err
	}()

	waitFor(t, func() bool { return devices.acquired.Load() == 1 })
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("escalation ignored cancellation")
	}
	if devices.released.Load() != 1 {
		t.Error("device not released after cancellation")
	}
}

func TestEscalateDeviceUnavailable(t *testing.T) {
	devices := &fakeAcquirer{err: errors.New("permission denied")}
	esc := NewEscalator(EscalatorConnectProps{Logger: testLogger(), Delay: time.Millisecond, Devices: devices})

	text, err := esc.Escalate(context.Background())
	if !errors.Is(err, ErrMediaAccess) {
		t.Fatalf("expected ErrMediaAccess, got %v", err)
	}
	if text != modelapi.DEVICE_UNAVAILABLE_MESSAGE {
		t.Errorf("got %q", text)
	}

	// The engine turns the failure into a normal reply.
	log := testLogger()
	e := NewEngine(EngineConnectProps{
		Logger:    log,
		Store:     NewStore(StoreConnectProps{Logger: log}),
		Gateway:   &fakeGateway{reply: staticReply("x")},
		Escalator: esc,
	})
	reply, err := e.Turn(context.Background(), TurnRequest{ConversationID: "c1", Topic: TopicEmergencySupport, Message: "help"})
	if err != nil {
		t.Fatalf("device failure should not fail the turn: %v", err)
	}
	if reply.Text != modelapi.DEVICE_UNAVAILABLE_MESSAGE || reply.Escalated {
		t.Errorf("unexpected reply %+v", reply)
	}
}
