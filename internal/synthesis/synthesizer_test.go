package synthesis

import (
	"context"
	"testing"
)

// TestRecordingSynthesizer keeps requests in order.
func TestRecordingSynthesizer(t *testing.T) {
	s := NewRecordingSynthesizer(nil)
	_ = s.Speak(context.Background(), Request{Text: "one", Locale: "en-US"})
	_ = s.Speak(context.Background(), Request{Text: "two", Locale: "en-US"})
	s.Stop()

	spoken := s.Spoken()
	if len(spoken) != 2 || spoken[0].Text != "one" || spoken[1].Text != "two" {
		t.Fatalf("unexpected spoken: %+v", spoken)
	}
	if s.Stops() != 1 {
		t.Fatalf("stops = %d", s.Stops())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Speak(ctx, Request{Text: "three"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
