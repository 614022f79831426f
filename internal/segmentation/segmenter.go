// Package segmentation re-splits long transcribed runs into natural
// sentence-sized pieces with timing remapped from word timings.
package segmentation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"live-translator/internal/domain"
	"live-translator/internal/logging"
)

var (
	// ErrContentRestricted is returned when a backend refuses the content.
	ErrContentRestricted = errors.New("segmentation rejected by content restrictions")
	// ErrUnavailable is returned when no segmentation model can run.
	ErrUnavailable = errors.New("segmentation unavailable")
)

// Piece is one re-segmented span of a transcription run.
type Piece struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// Segmenter splits text that exceeds a character budget. Every error is
// recoverable: callers fall back to the unsplit text.
type Segmenter interface {
	SegmentTranscript(ctx context.Context, text string, words []domain.WordTiming, locale string, maxChars int) ([]Piece, error)
}

// SentenceSegmenter is the on-device rule based segmenter. It breaks on
// sentence punctuation, then clause punctuation, then word boundaries.
type SentenceSegmenter struct {
	logger *zap.Logger
}

// NewSentenceSegmenter constructs the rule based segmenter.
func NewSentenceSegmenter(logger *zap.Logger) *SentenceSegmenter {
	return &SentenceSegmenter{logger: logging.OrNop(logger)}
}

// SegmentTranscript implements Segmenter.
func (s *SentenceSegmenter) SegmentTranscript(
	ctx context.Context,
	text string,
	words []domain.WordTiming,
	locale string,
	maxChars int,
) ([]Piece, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxChars <= 0 {
		return nil, fmt.Errorf("max characters must be positive: %d", maxChars)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: word timings are required", ErrUnavailable)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	chunks := pack(splitSentences(text), maxChars)
	aligner := newAligner(words)

	pieces := make([]Piece, 0, len(chunks))
	offset := 0
	for _, chunk := range chunks {
		n := countVisible(chunk)
		if n == 0 {
			continue
		}
		start, end := aligner.span(offset, offset+n-1)
		offset += n
		pieces = append(pieces, Piece{Text: chunk, StartTime: start, EndTime: end})
	}

	s.logger.Debug("transcript segmented",
		zap.String("locale", locale),
		zap.Int("chars", utf8.RuneCountInString(text)),
		zap.Int("pieces", len(pieces)),
	)
	return pieces, nil
}

// splitSentences cuts text after sentence terminators, keeping them.
func splitSentences(text string) []string {
	return splitAfter(text, isSentenceEnd)
}

func splitAfter(text string, isBreak func(r rune) bool) []string {
	var (
		out []string
		cur strings.Builder
	)
	runes := []rune(text)
	for i, r := range runes {
		cur.WriteRune(r)
		if !isBreak(r) {
			continue
		}
		// Keep runs of terminators ("?!", "...") together.
		if i+1 < len(runes) && isBreak(runes[i+1]) {
			continue
		}
		if piece := strings.TrimSpace(cur.String()); piece != "" {
			out = append(out, piece)
		}
		cur.Reset()
	}
	if piece := strings.TrimSpace(cur.String()); piece != "" {
		out = append(out, piece)
	}
	return out
}

// pack greedily merges sentences under maxChars and breaks longer ones.
func pack(sentences []string, maxChars int) []string {
	var out []string
	current := ""
	for _, sentence := range sentences {
		for _, part := range breakLong(sentence, maxChars) {
			candidate := join(current, part)
			if current != "" && utf8.RuneCountInString(candidate) > maxChars {
				out = append(out, current)
				current = part
				continue
			}
			current = candidate
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// breakLong splits one sentence that exceeds maxChars, trying clause
// punctuation first, then spaces, then a hard rune cut.
func breakLong(sentence string, maxChars int) []string {
	if utf8.RuneCountInString(sentence) <= maxChars {
		return []string{sentence}
	}

	if clauses := splitAfter(sentence, isClauseEnd); len(clauses) > 1 {
		var out []string
		for _, clause := range clauses {
			out = append(out, breakLong(clause, maxChars)...)
		}
		return out
	}

	if fields := strings.Fields(sentence); len(fields) > 1 {
		var out []string
		current := ""
		for _, field := range fields {
			candidate := join(current, field)
			if current != "" && utf8.RuneCountInString(candidate) > maxChars {
				out = append(out, current)
				current = field
				continue
			}
			current = candidate
		}
		if current != "" {
			out = append(out, current)
		}
		var final []string
		for _, piece := range out {
			final = append(final, hardCut(piece, maxChars)...)
		}
		return final
	}

	return hardCut(sentence, maxChars)
}

func hardCut(text string, maxChars int) []string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return []string{text}
	}
	var out []string
	for len(runes) > 0 {
		n := maxChars
		if n > len(runes) {
			n = len(runes)
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

// join concatenates two pieces, adding a space only between spaced scripts.
func join(a, b string) string {
	if a == "" {
		return b
	}
	last, _ := utf8.DecodeLastRuneInString(a)
	first, _ := utf8.DecodeRuneInString(b)
	if isUnspaced(last) || isUnspaced(first) {
		return a + b
	}
	return a + " " + b
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

func isClauseEnd(r rune) bool {
	switch r {
	case ',', ';', ':', '、', '，', '；', '：':
		return true
	}
	return false
}

func isUnspaced(r rune) bool {
	if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
		return true
	}
	return r > unicode.MaxASCII && (isSentenceEnd(r) || isClauseEnd(r))
}

// countVisible counts runes that are neither spaces nor control characters.
func countVisible(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// aligner maps visible character offsets onto word timings.
type aligner struct {
	words []domain.WordTiming
	ends  []int // cumulative visible rune count at the end of each word
}

func newAligner(words []domain.WordTiming) aligner {
	ends := make([]int, len(words))
	total := 0
	for i, w := range words {
		total += countVisible(w.Text)
		ends[i] = total
	}
	return aligner{words: words, ends: ends}
}

// span returns the time range covering visible runes [first, last].
func (a aligner) span(first, last int) (float64, float64) {
	startWord := a.wordAt(first)
	endWord := a.wordAt(last)
	start := a.words[startWord].StartTime
	end := a.words[endWord].EndTime
	if end < start {
		end = start
	}
	return start, end
}

func (a aligner) wordAt(offset int) int {
	for i, end := range a.ends {
		if offset < end {
			return i
		}
	}
	return len(a.words) - 1
}
