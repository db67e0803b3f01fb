package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestTypedHandler(t *testing.T) {
	machineID := uuid.New()
	msg := Message{
		ID:   uuid.New().String(),
		Type: MessageTypeMachineStarted,
		Payload: MachineEventPayload{
			OrderID:   uuid.New(),
			MachineID: machineID,
			Status:    "IN_PROGRESS",
		},
	}

	var got MachineEventPayload
	h := Typed(func(_ context.Context, m *Message, p MachineEventPayload) error {
		if m.Type != MessageTypeMachineStarted {
			t.Errorf("type = %s, want machine.started", m.Type)
		}
		got = p
		return nil
	})

	if err := h(context.Background(), &Delivery{Message: msg}); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got.MachineID != machineID {
		t.Errorf("machine_id = %s, want %s", got.MachineID, machineID)
	}
}

func TestTypedHandler_BadPayloadDrops(t *testing.T) {
	// A payload that cannot become MachineEventPayload must not requeue.
	msg := Message{
		ID:      uuid.New().String(),
		Type:    MessageTypeMachineStarted,
		Payload: map[string]any{"order_id": "not-a-uuid"},
	}

	h := Typed(func(_ context.Context, _ *Message, _ MachineEventPayload) error {
		t.Fatal("handler must not run on a bad payload")
		return nil
	})

	err := h(context.Background(), &Delivery{Message: msg})
	if !errors.Is(err, ErrDrop) {
		t.Fatalf("err = %v, want ErrDrop", err)
	}
}

func TestTypedHandler_ErrorPassesThrough(t *testing.T) {
	sentinel := errors.New("downstream failed")
	msg := Message{
		ID:      uuid.New().String(),
		Type:    MessageTypeOrderCreated,
		Payload: OrderEventPayload{OrderID: uuid.New()},
	}

	h := Typed(func(_ context.Context, _ *Message, _ OrderEventPayload) error {
		return sentinel
	})

	err := h(context.Background(), &Delivery{Message: msg})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want handler error for requeue", err)
	}
	if errors.Is(err, ErrDrop) {
		t.Fatal("handler error must not be treated as a drop")
	}
}
