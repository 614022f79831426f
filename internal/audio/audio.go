// Package audio defines the capture boundary: per-source PCM buffer streams
// with device and permission lifecycle.
package audio

import (
	"context"
	"time"

	"live-translator/internal/domain"
)

// Recognition format expected by speech services.
const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
)

// Buffer is one block of signed 16-bit little-endian PCM.
type Buffer struct {
	Source     domain.AudioSource
	Data       []byte
	SampleRate int
	Channels   int
	Timestamp  time.Duration
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	return BytesDuration(len(b.Data), b.SampleRate, b.Channels)
}

// BytesDuration returns how long n bytes of s16le PCM play for.
func BytesDuration(n, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := n / (BytesPerSample * channels)
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// BytesFor returns the byte length of d at the given PCM format.
func BytesFor(d time.Duration, sampleRate, channels int) int {
	frames := int(d * time.Duration(sampleRate) / time.Second)
	return frames * BytesPerSample * channels
}

// Device is one selectable capture device.
type Device struct {
	ID     string             `json:"id"`
	Name   string             `json:"name"`
	Source domain.AudioSource `json:"source"`
}

// PermissionStatus reports which capture privileges are granted.
type PermissionStatus struct {
	Microphone      bool `json:"microphone"`
	ScreenRecording bool `json:"screenRecording"`
}

// Granted reports whether the privilege needed by source is available.
func (s PermissionStatus) Granted(source domain.AudioSource) bool {
	if source == domain.AudioSourceSystemAudio {
		return s.ScreenRecording
	}
	return s.Microphone
}

// PermissionFor maps a capture source to the privilege it needs.
func PermissionFor(source domain.AudioSource) domain.PermissionKind {
	if source == domain.AudioSourceSystemAudio {
		return domain.PermissionScreenRecording
	}
	return domain.PermissionMicrophone
}

// Capturer supplies PCM buffer streams per source. Channels are closed when
// the capture stops or ctx is cancelled.
type Capturer interface {
	StartCapture(ctx context.Context, source domain.AudioSource) (<-chan Buffer, error)
	StopAllCapture()
	RefreshSources(ctx context.Context) ([]Device, error)
	SelectSource(deviceID string) error
	RequestPermissions(ctx context.Context) (PermissionStatus, error)
}
