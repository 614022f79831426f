// Package speech defines the per-source recognition boundary and its
// on-device implementations.
package speech

import (
	"context"
	"errors"

	"live-translator/internal/audio"
	"live-translator/internal/domain"
)

// ErrNotRunning is returned when audio is fed without an active recognition.
var ErrNotRunning = errors.New("recognition is not running")

// TimeRange is a span in seconds relative to the start of the fed audio.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Result is one transcription event. Interim results are superseded by later
// events; final results are stable.
type Result struct {
	ID         string              `json:"id"`
	Text       string              `json:"text"`
	IsFinal    bool                `json:"isFinal"`
	Confidence float64             `json:"confidence"`
	TimeRange  *TimeRange          `json:"timeRange,omitempty"`
	Words      []domain.WordTiming `json:"words,omitempty"`
}

// AvailabilityStatus describes whether a locale can be recognized.
type AvailabilityStatus string

const (
	StatusAvailable        AvailabilityStatus = "available"
	StatusDownloadRequired AvailabilityStatus = "downloadRequired"
	StatusDownloading      AvailabilityStatus = "downloading"
	StatusUnsupported      AvailabilityStatus = "unsupported"
)

// Availability is a locale's recognition readiness.
type Availability struct {
	Status AvailabilityStatus `json:"status"`
	// DownloadSize is set for StatusDownloadRequired, in bytes.
	DownloadSize int64 `json:"downloadSize,omitempty"`
	// Progress is set for StatusDownloading, 0..1.
	Progress float64 `json:"progress,omitempty"`
}

// DownloadProgress is one event of a language asset download.
type DownloadProgress struct {
	Locale     string  `json:"locale"`
	BytesDone  int64   `json:"bytesDone"`
	BytesTotal int64   `json:"bytesTotal"`
	Fraction   float64 `json:"fraction"`
	Done       bool    `json:"done"`
	Err        error   `json:"-"`
}

// Recognizer turns fed PCM into a stream of results. One instance serves one
// audio source at a time. The result channel is closed after
// StopRecognition once pending audio is flushed, or when ctx ends.
type Recognizer interface {
	StartRecognition(ctx context.Context, locale string, accurate bool) (<-chan Result, error)
	ProcessAudio(buf audio.Buffer) error
	StopRecognition()
	// Err returns the terminal error of the last run once its result
	// channel is closed.
	Err() error
	SupportedLanguages() []string
	LanguageStatus(ctx context.Context, locale string) (Availability, error)
	DownloadLanguage(ctx context.Context, locale string) (<-chan DownloadProgress, error)
}
