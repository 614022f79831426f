package jobs

import (
	"sync"
	"time"

	"live-translator/internal/domain"
)

// EventType classifies messages pushed to the UI.
type EventType string

const (
	EventTypeState    EventType = "state"
	EventTypeMessage  EventType = "message"
	EventTypeInterim  EventType = "interim"
	EventTypeError    EventType = "error"
	EventTypeFile     EventType = "file"
	EventTypeQueue    EventType = "queue"
	EventTypeBatch    EventType = "batch"
	EventTypeDownload EventType = "download"
	EventTypeCleared  EventType = "cleared"
)

// Event origins.
const (
	SourceConversation = "conversation"
	SourceImport       = "import"
	SourceApp          = "app"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq          int64                        `json:"seq"`
	Timestamp    time.Time                    `json:"timestamp"`
	Source       string                       `json:"source"`
	Type         EventType                    `json:"type"`
	Message      string                       `json:"message,omitempty"`
	Recovery     string                       `json:"recovery,omitempty"`
	Permission   domain.PermissionKind        `json:"permission,omitempty"`
	State        *domain.PipelineState        `json:"state,omitempty"`
	Conversation *domain.ConversationMessage  `json:"conversation,omitempty"`
	Interim      *domain.InterimResult        `json:"interim,omitempty"`
	Batch        *domain.BatchProcessingState `json:"batch,omitempty"`
	File         *domain.MediaFile            `json:"file,omitempty"`
	Progress     float64                      `json:"progress,omitempty"`
}

// EventBus keeps the most recent events in a ring and serves incremental
// reads by sequence. Sequences are contiguous, so the ring position of any
// retained event is computed rather than searched.
type EventBus struct {
	mu      sync.RWMutex
	ring    []Event
	head    int // index of the oldest retained event
	count   int
	nextSeq int64
}

// NewEventBus creates a bus retaining up to capacity events.
func NewEventBus(capacity int) *EventBus {
	if capacity <= 0 {
		capacity = 500
	}
	return &EventBus{ring: make([]Event, capacity)}
}

// Publish stamps event with the next sequence and a UTC timestamp when it
// has none, evicting the oldest event once the ring is full.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if b.count < len(b.ring) {
		b.ring[(b.head+b.count)%len(b.ring)] = event
		b.count++
	} else {
		b.ring[b.head] = event
		b.head = (b.head + 1) % len(b.ring)
	}
	return event
}

// Since returns retained events with sequence strictly greater than seq,
// oldest first.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	oldest := b.nextSeq - int64(b.count) + 1
	skip := 0
	if seq >= oldest {
		skip = int(seq - oldest + 1)
	}
	if skip >= b.count {
		return nil
	}

	out := make([]Event, 0, b.count-skip)
	for i := skip; i < b.count; i++ {
		out = append(out, b.ring[(b.head+i)%len(b.ring)])
	}
	return out
}

// LastSeq returns the sequence of the newest event.
func (b *EventBus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}
