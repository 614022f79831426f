package bootstrap

import (
	"sync"
	"time"

	"github.com/bep/debounce"

	"live-translator/internal/conversation"
	"live-translator/internal/domain"
	"live-translator/internal/importer"
	"live-translator/internal/jobs"
)

const (
	defaultDebounce = 150 * time.Millisecond
	interimKey      = "interim"
)

// coalescer holds the newest high-frequency event per key and publishes
// them after a quiet period, or once the oldest has waited maxWait. Every
// publish happens under mu so a coalesced event never lands after a newer
// immediate one for the same key.
type coalescer struct {
	publish   func(jobs.Event)
	debounced func(func())
	maxWait   time.Duration
	now       func() time.Time

	mu      sync.Mutex
	order   []string
	pending map[string]jobs.Event
	since   time.Time
}

func newCoalescer(after time.Duration, publish func(jobs.Event)) *coalescer {
	if after <= 0 {
		after = defaultDebounce
	}
	return &coalescer{
		publish:   publish,
		debounced: debounce.New(after),
		maxWait:   4 * after,
		now:       time.Now,
		pending:   make(map[string]jobs.Event),
	}
}

// Push replaces the pending event for key.
func (c *coalescer) Push(key string, event jobs.Event) {
	c.mu.Lock()
	if _, ok := c.pending[key]; !ok {
		c.order = append(c.order, key)
	}
	c.pending[key] = event
	if c.since.IsZero() {
		c.since = c.now()
	}
	overdue := c.now().Sub(c.since) >= c.maxWait
	if overdue {
		c.flushLocked()
	}
	c.mu.Unlock()

	if !overdue {
		c.debounced(c.Flush)
	}
}

// Now publishes event immediately, discarding any pending event for key.
func (c *coalescer) Now(key string, event jobs.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key != "" {
		if _, ok := c.pending[key]; ok {
			delete(c.pending, key)
			c.order = removeKey(c.order, key)
		}
	}
	c.publish(event)
}

// Flush publishes every pending event in first-pushed order.
func (c *coalescer) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

func (c *coalescer) flushLocked() {
	for _, key := range c.order {
		c.publish(c.pending[key])
	}
	c.order = c.order[:0]
	clear(c.pending)
	c.since = time.Time{}
}

func removeKey(keys []string, key string) []string {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}

// relayConversation maps orchestrator updates onto bus events.
func (a *App) relayConversation(update conversation.Update) {
	event := jobs.Event{Source: jobs.SourceConversation}
	switch update.Kind {
	case conversation.UpdateState:
		state := update.State
		event.Type = jobs.EventTypeState
		event.State = &state
		event.Message = state.Message
	case conversation.UpdateMessage:
		msg := update.Message
		event.Type = jobs.EventTypeMessage
		event.Conversation = &msg
	case conversation.UpdateInterim:
		interim := update.Interim
		event.Type = jobs.EventTypeInterim
		event.Interim = &interim
		a.conversationEvents.Push(interimKey, event)
		return
	case conversation.UpdateCleared:
		event.Type = jobs.EventTypeCleared
	case conversation.UpdateError:
		event.Type = jobs.EventTypeError
		fillError(&event, update.Err)
	default:
		return
	}
	a.conversationEvents.Now("", event)
}

// relayImport maps importer updates onto bus events. Progress of a
// processing file is coalesced; status changes are published at once.
func (a *App) relayImport(update importer.Update) {
	event := jobs.Event{Source: jobs.SourceImport}
	switch update.Kind {
	case importer.UpdateQueue:
		event.Type = jobs.EventTypeQueue
		event.Progress = a.importer.OverallProgress()
	case importer.UpdateBatch:
		batch := update.Batch
		event.Type = jobs.EventTypeBatch
		event.Batch = &batch
		event.Progress = a.importer.OverallProgress()
	case importer.UpdateFile:
		file := update.File
		event.Type = jobs.EventTypeFile
		event.File = &file
		event.Progress = file.Progress()
		if file.State.Status == domain.MediaStatusProcessing {
			a.importEvents.Push(file.ID, event)
			return
		}
		a.importEvents.Now(file.ID, event)
		return
	case importer.UpdateError:
		event.Type = jobs.EventTypeError
		fillError(&event, update.Err)
	default:
		return
	}
	a.importEvents.Now("", event)
}

func fillError(event *jobs.Event, err error) {
	if err == nil {
		return
	}
	event.Message = err.Error()
	event.Recovery = domain.Recovery(err)
	if kind, ok := domain.ClassifyPermission(err); ok {
		event.Permission = kind
		if event.Recovery == "" {
			event.Recovery = domain.RecoveryForPermission(kind)
		}
	}
}
