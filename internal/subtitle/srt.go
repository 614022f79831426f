package subtitle

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"

	"live-translator/internal/domain"
)

// Entry is one parsed SRT block.
type Entry struct {
	Index int
	Start float64
	End   float64
	Lines []string
}

// Text joins the entry lines with newlines.
func (e Entry) Text() string {
	return strings.Join(e.Lines, "\n")
}

// FormatSRTTimestamp renders seconds as HH:MM:SS,mmm.
func FormatSRTTimestamp(seconds float64) string {
	return formatTimestamp(seconds, ',')
}

// FormatVTTTimestamp renders seconds as HH:MM:SS.mmm.
func FormatVTTTimestamp(seconds float64) string {
	return formatTimestamp(seconds, '.')
}

func formatTimestamp(seconds float64, sep byte) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	ms := total % 1000
	s := (total / 1000) % 60
	m := (total / 60000) % 60
	h := total / 3600000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms)
}

// GenerateSRT renders normalized segments as SRT.
func GenerateSRT(segments []domain.Segment, opts Options) string {
	var b strings.Builder
	for i, seg := range Normalize(segments) {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n", i+1, FormatSRTTimestamp(seg.StartTime), FormatSRTTimestamp(seg.EndTime))
		for _, line := range cueLines(seg, opts) {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ParseSRT reads SRT content back into entries. Blocks without a valid
// timestamp line are rejected.
func ParseSRT(content string) ([]Entry, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var (
		entries []Entry
		block   []string
	)
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		entry, err := parseBlock(block)
		block = block[:0]
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		if line == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return entries, nil
}

func parseBlock(lines []string) (Entry, error) {
	if len(lines) < 2 {
		return Entry{}, fmt.Errorf("srt block too short: %q", strings.Join(lines, "\n"))
	}
	index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return Entry{}, fmt.Errorf("invalid srt index %q: %w", lines[0], err)
	}

	parts := strings.Split(lines[1], "-->")
	if len(parts) != 2 {
		return Entry{}, fmt.Errorf("invalid srt timing line %q", lines[1])
	}
	start, err := parseTimestamp(parts[0])
	if err != nil {
		return Entry{}, err
	}
	end, err := parseTimestamp(parts[1])
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		Index: index,
		Start: start,
		End:   end,
		Lines: append([]string(nil), lines[2:]...),
	}, nil
}

// parseTimestamp accepts HH:MM:SS,mmm and the dotted WebVTT variant.
func parseTimestamp(raw string) (float64, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty timestamp")
	}
	value := strings.Replace(fields[0], ",", ".", 1)

	hms := strings.Split(value, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", raw)
	}
	h, err := strconv.Atoi(hms[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hours in %q: %w", raw, err)
	}
	m, err := strconv.Atoi(hms[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes in %q: %w", raw, err)
	}
	s, err := strconv.ParseFloat(hms[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds in %q: %w", raw, err)
	}
	return float64(h)*3600 + float64(m)*60 + s, nil
}
