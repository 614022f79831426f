package jobs

import (
	"testing"

	"live-translator/internal/domain"
)

// TestEventBusSince verifies incremental event reads by sequence.
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Publish(Event{Type: EventTypeState, Message: "1"})
	bus.Publish(Event{Type: EventTypeState, Message: "2"})
	bus.Publish(Event{Type: EventTypeState, Message: "3"})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
	if bus.LastSeq() != 3 {
		t.Fatalf("last seq = %d", bus.LastSeq())
	}
}

// TestEventBusCapsHistory verifies buffer limit trimming behavior.
func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Message != "2" || events[1].Message != "3" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

// TestEventBusKeepsPayload stores typed payloads untouched.
func TestEventBusKeepsPayload(t *testing.T) {
	bus := NewEventBus(0)
	state := domain.ErrorState("microphone permission denied")
	published := bus.Publish(Event{
		Source:     SourceConversation,
		Type:       EventTypeState,
		State:      &state,
		Permission: domain.PermissionMicrophone,
	})
	if published.Timestamp.IsZero() {
		t.Fatal("expected timestamp")
	}

	events := bus.Since(0)
	if len(events) != 1 || events[0].State.Phase != domain.PhaseError || events[0].Permission != domain.PermissionMicrophone {
		t.Fatalf("unexpected events: %+v", events)
	}
}

// TestEventBusWrapsRing reads across the ring boundary after many evictions.
func TestEventBusWrapsRing(t *testing.T) {
	bus := NewEventBus(3)
	for i := 0; i < 7; i++ {
		bus.Publish(Event{Type: EventTypeFile})
	}

	events := bus.Since(0)
	if len(events) != 3 || events[0].Seq != 5 || events[2].Seq != 7 {
		t.Fatalf("unexpected events: %+v", events)
	}
	if got := bus.Since(6); len(got) != 1 || got[0].Seq != 7 {
		t.Fatalf("Since(6) = %+v", got)
	}
	if got := bus.Since(7); got != nil {
		t.Fatalf("Since(7) = %+v, want nil", got)
	}
}
