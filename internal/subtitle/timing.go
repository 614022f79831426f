// Package subtitle turns segment lists into subtitle files. It owns the
// timing repair rules shared by export and segment generation.
package subtitle

import (
	"sort"
	"strings"
	"unicode/utf8"

	"live-translator/internal/domain"
	"live-translator/internal/locale"
)

const (
	cjkCharsPerSecond   = 4.0
	latinCharsPerSecond = 17.0 // about 150 words per minute

	minEstimatedDuration = 1.0
	maxEstimatedDuration = 7.0

	minSegmentDuration = 0.1
	overlapGap         = 0.001
)

// EstimatedDuration estimates how long text needs on screen, in seconds,
// from a reading-speed model. The result is always within [1, 7].
func EstimatedDuration(text, loc string) float64 {
	chars := utf8.RuneCountInString(strings.TrimSpace(text))
	rate := latinCharsPerSecond
	if locale.IsCJK(loc) {
		rate = cjkCharsPerSecond
	}

	d := float64(chars) / rate
	if d < minEstimatedDuration {
		return minEstimatedDuration
	}
	if d > maxEstimatedDuration {
		return maxEstimatedDuration
	}
	return d
}

// Normalize repairs upstream timing. Segments with a negative start are
// dropped, missing or inverted end times are estimated from the text, noise
// shorter than 100ms is dropped, and overlaps are resolved.
func Normalize(segments []domain.Segment) []domain.Segment {
	out := make([]domain.Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.StartTime < 0 {
			continue
		}
		if seg.EndTime <= seg.StartTime {
			seg.EndTime = seg.StartTime + EstimatedDuration(seg.OriginalText, seg.SourceLocale)
		}
		if seg.Duration() < minSegmentDuration {
			continue
		}
		out = append(out, seg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime < out[j].StartTime
	})
	return ResolveOverlaps(out)
}

// ResolveOverlaps clips each segment's end to 1ms before the next start when
// the two overlap. When the next segment starts no later than the current
// one, it is moved to give the current cue the minimum duration. No segment
// is discarded. The input slice is modified.
func ResolveOverlaps(segments []domain.Segment) []domain.Segment {
	for i := 0; i+1 < len(segments); i++ {
		cur, next := &segments[i], &segments[i+1]
		if cur.EndTime < next.StartTime {
			continue
		}
		if next.StartTime-overlapGap < cur.StartTime+minSegmentDuration {
			next.StartTime = cur.StartTime + minSegmentDuration + overlapGap
			if next.EndTime < next.StartTime+minSegmentDuration {
				next.EndTime = next.StartTime + minSegmentDuration
			}
		}
		cur.EndTime = next.StartTime - overlapGap
	}
	return segments
}
