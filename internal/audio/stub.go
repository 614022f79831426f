package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"live-translator/internal/domain"
)

// StubCapturerConfig configures the stub capturer.
type StubCapturerConfig struct {
	// Interval between emitted buffers. Zero emits as fast as the reader
	// consumes them.
	Interval time.Duration
	// BufferDuration is the audio length of each silent buffer.
	BufferDuration time.Duration
	// Limit stops a stream after N buffers (0 = until stopped).
	Limit int
	// Denied lists sources whose permission is refused.
	Denied map[domain.AudioSource]bool
	// Devices is returned by RefreshSources.
	Devices []Device
}

// DefaultStubCapturerConfig emits 100ms of silence every 100ms.
func DefaultStubCapturerConfig() *StubCapturerConfig {
	return &StubCapturerConfig{
		Interval:       100 * time.Millisecond,
		BufferDuration: 100 * time.Millisecond,
		Devices: []Device{
			{ID: "default-input", Name: "Built-in Microphone", Source: domain.AudioSourceMicrophone},
			{ID: "system-output", Name: "System Audio", Source: domain.AudioSourceSystemAudio},
		},
	}
}

// StubCapturer produces silent PCM buffers for development and tests.
type StubCapturer struct {
	config *StubCapturerConfig

	mu       sync.Mutex
	stops    map[domain.AudioSource]chan struct{}
	selected string
	started  map[domain.AudioSource]int
}

// NewStubCapturer creates a stub capturer with the given config.
func NewStubCapturer(config *StubCapturerConfig) *StubCapturer {
	if config == nil {
		config = DefaultStubCapturerConfig()
	}
	return &StubCapturer{
		config:  config,
		stops:   make(map[domain.AudioSource]chan struct{}),
		started: make(map[domain.AudioSource]int),
	}
}

// StartCapture begins a silent stream for source.
func (s *StubCapturer) StartCapture(ctx context.Context, source domain.AudioSource) (<-chan Buffer, error) {
	if s.config.Denied[source] {
		return nil, &domain.PermissionError{Kind: PermissionFor(source), Err: fmt.Errorf("capture of %s refused", source)}
	}

	s.mu.Lock()
	if prev, ok := s.stops[source]; ok {
		close(prev)
	}
	stop := make(chan struct{})
	s.stops[source] = stop
	s.started[source]++
	s.mu.Unlock()

	out := make(chan Buffer)
	go func() {
		defer close(out)

		size := BytesFor(s.config.BufferDuration, SampleRate, Channels)
		var ts time.Duration
		for i := 0; s.config.Limit == 0 || i < s.config.Limit; i++ {
			if s.config.Interval > 0 {
				select {
				case <-time.After(s.config.Interval):
				case <-ctx.Done():
					return
				case <-stop:
					return
				}
			}

			buf := Buffer{
				Source:     source,
				Data:       make([]byte, size),
				SampleRate: SampleRate,
				Channels:   Channels,
				Timestamp:  ts,
			}
			select {
			case out <- buf:
				ts += s.config.BufferDuration
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()
	return out, nil
}

// StopAllCapture ends every active stream.
func (s *StubCapturer) StopAllCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for source, stop := range s.stops {
		close(stop)
		delete(s.stops, source)
	}
}

// RefreshSources returns the configured device list.
func (s *StubCapturer) RefreshSources(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]Device(nil), s.config.Devices...), nil
}

// SelectSource records the chosen device.
func (s *StubCapturer) SelectSource(deviceID string) error {
	for _, d := range s.config.Devices {
		if d.ID == deviceID {
			s.mu.Lock()
			s.selected = deviceID
			s.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("unknown audio device: %s", deviceID)
}

// Selected returns the chosen device ID.
func (s *StubCapturer) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// RequestPermissions reports the configured grants.
func (s *StubCapturer) RequestPermissions(ctx context.Context) (PermissionStatus, error) {
	if err := ctx.Err(); err != nil {
		return PermissionStatus{}, err
	}
	return PermissionStatus{
		Microphone:      !s.config.Denied[domain.AudioSourceMicrophone],
		ScreenRecording: !s.config.Denied[domain.AudioSourceSystemAudio],
	}, nil
}

// Active reports how many streams are currently open.
func (s *StubCapturer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stops)
}

// Starts returns how many times capture was started for source.
func (s *StubCapturer) Starts(source domain.AudioSource) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started[source]
}
