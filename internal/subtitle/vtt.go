package subtitle

import (
	"fmt"
	"strings"

	"live-translator/internal/domain"
)

// GenerateVTT renders normalized segments as WebVTT.
func GenerateVTT(segments []domain.Segment, opts Options) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	for _, seg := range Normalize(segments) {
		fmt.Fprintf(&b, "\n%s --> %s\n", FormatVTTTimestamp(seg.StartTime), FormatVTTTimestamp(seg.EndTime))
		for _, line := range cueLines(seg, opts) {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}
