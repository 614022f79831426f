package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"live-translator/internal/audio"
	"live-translator/internal/domain"
	"live-translator/internal/locale"
)

// ScriptedResult is one utterance the stub recognizer will emit.
type ScriptedResult struct {
	Text    string
	IsFinal bool
}

// StubRecognizerConfig configures the stub recognizer behavior.
type StubRecognizerConfig struct {
	// BuffersPerResult is how many fed buffers trigger the next result.
	BuffersPerResult int
	// Script is cycled through as results are emitted.
	Script []ScriptedResult
	// Languages lists recognizable locales.
	Languages []string
	// StartErr fails every StartRecognition call.
	StartErr error
}

// DefaultStubRecognizerConfig returns a short interim/final script.
func DefaultStubRecognizerConfig() *StubRecognizerConfig {
	return &StubRecognizerConfig{
		BuffersPerResult: 10,
		Script: []ScriptedResult{
			{Text: "Hello", IsFinal: false},
			{Text: "Hello, how are you?", IsFinal: true},
			{Text: "Thank you", IsFinal: false},
			{Text: "Thank you for joining.", IsFinal: true},
		},
		Languages: []string{"en-US", "ja-JP", "zh-CN", "ko-KR", "es-ES", "fr-FR", "de-DE"},
	}
}

// StubRecognizer emits scripted results as audio is fed.
type StubRecognizer struct {
	config *StubRecognizerConfig

	mu      sync.Mutex
	session *stubSession
}

type stubSession struct {
	in       chan audio.Buffer
	stopped  chan struct{}
	stopOnce sync.Once
}

func (s *stubSession) stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
}

// NewStubRecognizer creates a stub recognizer with the given config.
func NewStubRecognizer(config *StubRecognizerConfig) *StubRecognizer {
	if config == nil {
		config = DefaultStubRecognizerConfig()
	}
	return &StubRecognizer{config: config}
}

// StartRecognition begins a scripted session.
func (s *StubRecognizer) StartRecognition(ctx context.Context, loc string, accurate bool) (<-chan Result, error) {
	if s.config.StartErr != nil {
		return nil, s.config.StartErr
	}
	if !s.supports(loc) {
		return nil, unsupportedLocale(loc)
	}

	sess := &stubSession{in: make(chan audio.Buffer, 16), stopped: make(chan struct{})}
	s.mu.Lock()
	if s.session != nil {
		s.session.stop()
	}
	s.session = sess
	s.mu.Unlock()

	out := make(chan Result)
	go func() {
		defer close(out)

		per := s.config.BuffersPerResult
		if per <= 0 {
			per = 1
		}
		fed, next := 0, 0
		var elapsed time.Duration
		for {
			select {
			case <-ctx.Done():
				return
			case <-sess.stopped:
				return
			case buf := <-sess.in:
				fed++
				elapsed += buf.Duration()
				if fed%per != 0 || len(s.config.Script) == 0 {
					continue
				}
				line := s.config.Script[next%len(s.config.Script)]
				next++
				result := Result{
					ID:         uuid.NewString(),
					Text:       line.Text,
					IsFinal:    line.IsFinal,
					Confidence: 0.9,
					TimeRange:  &TimeRange{Start: 0, End: elapsed.Seconds()},
				}
				select {
				case out <- result:
				case <-ctx.Done():
					return
				case <-sess.stopped:
					return
				}
			}
		}
	}()
	return out, nil
}

// ProcessAudio queues one buffer for the active session.
func (s *StubRecognizer) ProcessAudio(buf audio.Buffer) error {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return ErrNotRunning
	}
	select {
	case <-sess.stopped:
		return ErrNotRunning
	case sess.in <- buf:
		return nil
	}
}

// StopRecognition ends the active session.
func (s *StubRecognizer) StopRecognition() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.stop()
		s.session = nil
	}
}

// Err always returns nil.
func (s *StubRecognizer) Err() error { return nil }

// SupportedLanguages returns the configured locales.
func (s *StubRecognizer) SupportedLanguages() []string {
	return append([]string(nil), s.config.Languages...)
}

// LanguageStatus reports every configured locale as available.
func (s *StubRecognizer) LanguageStatus(ctx context.Context, loc string) (Availability, error) {
	if err := ctx.Err(); err != nil {
		return Availability{}, err
	}
	if !s.supports(loc) {
		return Availability{Status: StatusUnsupported}, nil
	}
	return Availability{Status: StatusAvailable}, nil
}

// DownloadLanguage completes immediately for supported locales.
func (s *StubRecognizer) DownloadLanguage(ctx context.Context, loc string) (<-chan DownloadProgress, error) {
	if !s.supports(loc) {
		return nil, unsupportedLocale(loc)
	}
	out := make(chan DownloadProgress, 1)
	out <- DownloadProgress{Locale: loc, Fraction: 1, Done: true}
	close(out)
	return out, nil
}

func (s *StubRecognizer) supports(loc string) bool {
	for _, l := range s.config.Languages {
		if strings.EqualFold(l, loc) || locale.SameLanguage(l, loc) {
			return true
		}
	}
	return false
}

func unsupportedLocale(loc string) error {
	return domain.NewServiceError(domain.ServiceUnsupportedDevice, fmt.Sprintf("speech recognition does not support locale %q", loc), nil)
}
