package segmentation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"live-translator/internal/domain"
)

// wordsFor builds one-second word timings for each whitespace field.
func wordsFor(text string) []domain.WordTiming {
	fields := strings.Fields(text)
	words := make([]domain.WordTiming, len(fields))
	for i, f := range fields {
		words[i] = domain.WordTiming{Text: f, StartTime: float64(i), EndTime: float64(i) + 0.9}
	}
	return words
}

// TestSegmentSplitsOnSentences keeps every piece within budget.
func TestSegmentSplitsOnSentences(t *testing.T) {
	text := "This is the first sentence. Here comes a second one! And finally a third sentence?"
	seg := NewSentenceSegmenter(nil)

	pieces, err := seg.SegmentTranscript(context.Background(), text, wordsFor(text), "en-US", 30)
	if err != nil {
		t.Fatalf("SegmentTranscript returned error: %v", err)
	}
	if len(pieces) != 3 {
		t.Fatalf("expected 3 pieces, got %d: %+v", len(pieces), pieces)
	}
	for _, p := range pieces {
		if utf8.RuneCountInString(p.Text) > 30 {
			t.Fatalf("piece over budget: %q", p.Text)
		}
	}
	if pieces[0].StartTime != 0 || pieces[0].EndTime != 4.9 {
		t.Fatalf("unexpected first piece timing: %+v", pieces[0])
	}
	if pieces[1].StartTime != 5 {
		t.Fatalf("unexpected second piece start: %+v", pieces[1])
	}
	if pieces[2].EndTime != 14.9 {
		t.Fatalf("unexpected last piece end: %+v", pieces[2])
	}
}

// TestSegmentPacksShortSentences merges sentences that fit together.
func TestSegmentPacksShortSentences(t *testing.T) {
	text := "Yes. No. Maybe. Sure."
	pieces, err := NewSentenceSegmenter(nil).SegmentTranscript(context.Background(), text, wordsFor(text), "en-US", 12)
	if err != nil {
		t.Fatalf("SegmentTranscript returned error: %v", err)
	}
	if len(pieces) != 2 || pieces[0].Text != "Yes. No." || pieces[1].Text != "Maybe. Sure." {
		t.Fatalf("unexpected pieces: %+v", pieces)
	}
}

// TestSegmentBreaksCJKText splits unspaced text under the budget.
func TestSegmentBreaksCJKText(t *testing.T) {
	text := "今日はとても良い天気ですね。明日も晴れるといいですが、雨の予報が出ています。"
	words := []domain.WordTiming{
		{Text: "今日はとても良い天気ですね。", StartTime: 0, EndTime: 2},
		{Text: "明日も晴れるといいですが、", StartTime: 2, EndTime: 4},
		{Text: "雨の予報が出ています。", StartTime: 4, EndTime: 6},
	}

	pieces, err := NewSentenceSegmenter(nil).SegmentTranscript(context.Background(), text, words, "ja-JP", 26)
	if err != nil {
		t.Fatalf("SegmentTranscript returned error: %v", err)
	}
	if len(pieces) < 2 {
		t.Fatalf("expected multiple pieces, got %+v", pieces)
	}
	var rebuilt strings.Builder
	for _, p := range pieces {
		if utf8.RuneCountInString(p.Text) > 26 {
			t.Fatalf("piece over budget: %q", p.Text)
		}
		rebuilt.WriteString(p.Text)
	}
	if rebuilt.String() != text {
		t.Fatalf("text not preserved: %q", rebuilt.String())
	}
	if pieces[len(pieces)-1].EndTime != 6 {
		t.Fatalf("unexpected last end: %+v", pieces[len(pieces)-1])
	}
}

// TestSegmentRequiresWordTimings reports unavailability.
func TestSegmentRequiresWordTimings(t *testing.T) {
	_, err := NewSentenceSegmenter(nil).SegmentTranscript(context.Background(), "Hello. World.", nil, "en-US", 5)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

// TestSegmentHonorsCancellation stops before work starts.
func TestSegmentHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSentenceSegmenter(nil).SegmentTranscript(ctx, "Hi.", wordsFor("Hi."), "en-US", 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
