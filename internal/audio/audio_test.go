package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"live-translator/internal/domain"
)

// TestBytesDuration converts PCM lengths.
func TestBytesDuration(t *testing.T) {
	if got := BytesDuration(32000, SampleRate, Channels); got != time.Second {
		t.Fatalf("expected 1s, got %v", got)
	}
	if got := BytesFor(500*time.Millisecond, SampleRate, Channels); got != 16000 {
		t.Fatalf("expected 16000 bytes, got %d", got)
	}
}

// TestWriteWAVHeader writes a RIFF header with the data size.
func TestWriteWAVHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, make([]byte, 100), SampleRate, Channels); err != nil {
		t.Fatalf("WriteWAV returned error: %v", err)
	}
	out := buf.Bytes()
	if len(out) != 144 {
		t.Fatalf("expected 144 bytes, got %d", len(out))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" || string(out[36:40]) != "data" {
		t.Fatalf("unexpected header: %q", out[:44])
	}
	if got := binary.LittleEndian.Uint32(out[40:44]); got != 100 {
		t.Fatalf("data size = %d", got)
	}
}

// TestDownmixToMono averages stereo frames.
func TestDownmixToMono(t *testing.T) {
	stereo := make([]byte, 8)
	for i, sample := range []int16{100, 300, -200, -400} {
		binary.LittleEndian.PutUint16(stereo[i*2:], uint16(sample))
	}

	mono := DownmixToMono(stereo, 2)
	if len(mono) != 4 {
		t.Fatalf("expected 4 bytes, got %d", len(mono))
	}
	if got := int16(binary.LittleEndian.Uint16(mono[0:])); got != 200 {
		t.Fatalf("frame 0 = %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(mono[2:])); got != -300 {
		t.Fatalf("frame 1 = %d", got)
	}
}

// TestStubCapturerDenied surfaces a typed permission error.
func TestStubCapturerDenied(t *testing.T) {
	cfg := DefaultStubCapturerConfig()
	cfg.Denied = map[domain.AudioSource]bool{domain.AudioSourceSystemAudio: true}
	capturer := NewStubCapturer(cfg)

	_, err := capturer.StartCapture(context.Background(), domain.AudioSourceSystemAudio)
	var permErr *domain.PermissionError
	if !errors.As(err, &permErr) || permErr.Kind != domain.PermissionScreenRecording {
		t.Fatalf("expected screen recording permission error, got %v", err)
	}

	status, err := capturer.RequestPermissions(context.Background())
	if err != nil {
		t.Fatalf("RequestPermissions returned error: %v", err)
	}
	if !status.Microphone || status.ScreenRecording {
		t.Fatalf("unexpected status: %+v", status)
	}
}

// TestStubCapturerStopClosesStream ends the stream on StopAllCapture.
func TestStubCapturerStopClosesStream(t *testing.T) {
	cfg := DefaultStubCapturerConfig()
	cfg.Interval = time.Millisecond
	capturer := NewStubCapturer(cfg)

	stream, err := capturer.StartCapture(context.Background(), domain.AudioSourceMicrophone)
	if err != nil {
		t.Fatalf("StartCapture returned error: %v", err)
	}
	first := <-stream
	if first.Source != domain.AudioSourceMicrophone || first.Duration() != 100*time.Millisecond {
		t.Fatalf("unexpected buffer: source=%s duration=%v", first.Source, first.Duration())
	}

	capturer.StopAllCapture()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				if capturer.Active() != 0 {
					t.Fatalf("expected no active streams")
				}
				return
			}
		case <-deadline:
			t.Fatal("stream not closed after StopAllCapture")
		}
	}
}

// TestStubCapturerSelectSource validates device IDs.
func TestStubCapturerSelectSource(t *testing.T) {
	capturer := NewStubCapturer(nil)
	if err := capturer.SelectSource("system-output"); err != nil {
		t.Fatalf("SelectSource returned error: %v", err)
	}
	if capturer.Selected() != "system-output" {
		t.Fatalf("unexpected selection: %s", capturer.Selected())
	}
	if err := capturer.SelectSource("missing"); err == nil {
		t.Fatal("expected error for unknown device")
	}
}
