package subtitle

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"live-translator/internal/domain"
	"live-translator/internal/logging"
)

// Options controls subtitle rendering.
type Options struct {
	Format           domain.SubtitleFormat
	Bilingual        bool
	TranslationFirst bool
}

// Exporter renders segment lists into subtitle files.
type Exporter interface {
	Export(ctx context.Context, segments []domain.Segment, opts Options) (string, error)
	GenerateContent(segments []domain.Segment, opts Options) (string, error)
}

// FileExporter writes subtitles into temporary files.
type FileExporter struct {
	tempDir    string
	createTemp func(dir, pattern string) (*os.File, error)
	logger     *zap.Logger
}

// NewFileExporter constructs an exporter writing into the OS temp dir.
func NewFileExporter(logger *zap.Logger) *FileExporter {
	return &FileExporter{
		createTemp: os.CreateTemp,
		logger:     logging.OrNop(logger),
	}
}

// NewFileExporterForTests constructs an exporter writing into dir.
func NewFileExporterForTests(dir string, createTemp func(dir, pattern string) (*os.File, error)) *FileExporter {
	if createTemp == nil {
		createTemp = os.CreateTemp
	}
	return &FileExporter{tempDir: dir, createTemp: createTemp, logger: zap.NewNop()}
}

// GenerateContent renders the subtitle text without touching the disk.
func (e *FileExporter) GenerateContent(segments []domain.Segment, opts Options) (string, error) {
	switch opts.Format {
	case domain.SubtitleFormatSRT, "":
		return GenerateSRT(segments, opts), nil
	case domain.SubtitleFormatVTT:
		return GenerateVTT(segments, opts), nil
	default:
		return "", fmt.Errorf("unsupported subtitle format: %q", opts.Format)
	}
}

// Export writes the rendered subtitles into a new temporary file and returns
// its path. The caller owns the file.
func (e *FileExporter) Export(ctx context.Context, segments []domain.Segment, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if opts.Format == "" {
		opts.Format = domain.SubtitleFormatSRT
	}

	content, err := e.GenerateContent(segments, opts)
	if err != nil {
		return "", err
	}

	file, err := e.createTemp(e.tempDir, "subtitle-*"+opts.Format.Extension())
	if err != nil {
		return "", fmt.Errorf("create subtitle temp file: %w", err)
	}
	path := file.Name()

	if _, err := file.WriteString(content); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write subtitle file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close subtitle file: %w", err)
	}

	e.logger.Debug("subtitle exported",
		zap.String("path", path),
		zap.String("format", string(opts.Format)),
		zap.Int("segments", len(segments)),
	)
	return path, nil
}

// cueLines returns the text lines for one cue. Bilingual cues carry the
// translation and the original on separate lines.
func cueLines(seg domain.Segment, opts Options) []string {
	original := flatten(seg.OriginalText)
	translated := flatten(seg.TranslatedText)

	if !opts.Bilingual {
		if translated != "" {
			return []string{translated}
		}
		return nonEmpty(original)
	}
	if translated == "" || translated == original {
		return nonEmpty(original)
	}
	if opts.TranslationFirst {
		return []string{translated, original}
	}
	return nonEmpty(original, translated)
}

// flatten keeps a cue text on one line so blank lines never end a block early.
func flatten(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func nonEmpty(lines ...string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
