// Package synthesis defines the text-to-speech boundary.
package synthesis

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"live-translator/internal/logging"
)

// Request is one utterance to speak.
type Request struct {
	Text   string
	Locale string
	Rate   float64
	Voice  string
}

// Synthesizer speaks text. Speak enqueues and returns without waiting for
// playback; Stop interrupts current and queued speech.
type Synthesizer interface {
	Speak(ctx context.Context, req Request) error
	Stop()
}

// RecordingSynthesizer logs and records requests instead of playing them.
type RecordingSynthesizer struct {
	logger *zap.Logger

	mu     sync.Mutex
	spoken []Request
	stops  int
}

// NewRecordingSynthesizer constructs the recording stub.
func NewRecordingSynthesizer(logger *zap.Logger) *RecordingSynthesizer {
	return &RecordingSynthesizer{logger: logging.OrNop(logger)}
}

// Speak records the request.
func (s *RecordingSynthesizer) Speak(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.spoken = append(s.spoken, req)
	s.mu.Unlock()
	s.logger.Debug("speak", zap.String("locale", req.Locale), zap.Int("chars", len(req.Text)))
	return nil
}

// Stop counts interruptions.
func (s *RecordingSynthesizer) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

// Spoken returns a copy of every recorded request.
func (s *RecordingSynthesizer) Spoken() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.spoken...)
}

// Stops returns how many times Stop was called.
func (s *RecordingSynthesizer) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}
