package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"live-translator/internal/domain"
	"live-translator/internal/media"
	"live-translator/internal/progress"
	"live-translator/internal/speech"
	"live-translator/internal/subtitle"
)

// NoSpeechText is the placeholder cue for files without recognized speech.
const NoSpeechText = "No speech detected"

const placeholderSeconds = 5.0

// process runs every file of one batch strictly in order.
func (o *Orchestrator) process(ctx context.Context, runID string, ids []string, done chan struct{}) {
	defer close(done)

	cfg := o.Config()
	successful, failed := 0, 0
	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := o.batch.Advance(runID, i+1); err != nil {
			o.logger.Warn("batch advance rejected", zap.Error(err))
			break
		}
		o.publish(Update{Kind: UpdateBatch, Batch: o.batch.Current()})

		file, ok := o.file(id)
		if !ok {
			// Removed from the queue while waiting.
			continue
		}

		o.setProgress(id, 0)
		output, err := o.processFile(ctx, cfg, file)
		switch {
		case err == nil:
			successful++
			o.updateFile(id, func(f *domain.MediaFile) {
				f.State = domain.MediaState{Status: domain.MediaStatusCompleted, Progress: 1}
				f.OutputPath = output
			})
			o.logger.Info("file completed", zap.String("file", file.DisplayName), zap.String("output", output))
		case ctx.Err() != nil:
			o.setStatus(id, domain.MediaState{Status: domain.MediaStatusQueued})
			o.logger.Info("file cancelled", zap.String("file", file.DisplayName))
		default:
			failed++
			o.setStatus(id, domain.MediaState{Status: domain.MediaStatusFailed, Message: err.Error()})
			o.logger.Error("file failed", zap.String("file", file.DisplayName), zap.Error(err))
		}
	}

	if ctx.Err() != nil {
		return
	}
	if err := o.batch.Complete(runID, successful, failed); err != nil {
		o.logger.Warn("batch complete rejected", zap.Error(err))
		return
	}
	o.logger.Info("batch completed", zap.Int("successful", successful), zap.Int("failed", failed))
	o.publish(Update{Kind: UpdateBatch, Batch: o.batch.Current()})
}

// processFile runs extract, transcribe, segment, translate and export for
// one file and returns the final subtitle path.
func (o *Orchestrator) processFile(ctx context.Context, cfg Config, file domain.MediaFile) (string, error) {
	path := file.SourcePath
	if len(file.Bookmark) > 0 && o.bookmarks != nil {
		resolved, err := o.bookmarks.Resolve(file.Bookmark)
		if err != nil {
			return "", err
		}
		path = resolved
	}

	info, err := o.toolkit.Probe(ctx, path)
	if err != nil {
		return "", err
	}
	extracted, err := o.toolkit.ExtractAudio(ctx, path, info)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := extracted.Cleanup(); err != nil {
			o.logger.Warn("temporary audio cleanup failed", zap.String("path", extracted.Path), zap.Error(err))
		}
	}()
	o.setProgress(file.ID, progress.Extract.To)

	duration := info.Duration
	if duration == 0 {
		duration = file.Duration
	}
	runs, err := o.transcribe(ctx, cfg, file.ID, extracted.Path, duration)
	if err != nil {
		return "", err
	}

	segments := o.segment(ctx, cfg, runs, duration.Seconds())
	if err := o.translate(ctx, cfg, file.ID, segments); err != nil {
		return "", err
	}

	return o.export(ctx, cfg, file, segments)
}

// transcribe feeds decoded chunks to the recognizer and collects the final
// runs it produces.
func (o *Orchestrator) transcribe(ctx context.Context, cfg Config, id, path string, duration time.Duration) ([]speech.Result, error) {
	results, err := o.recognizer.StartRecognition(ctx, cfg.SourceLocale, true)
	if err != nil {
		return nil, fmt.Errorf("start recognition: %w", err)
	}

	collected := make(chan []speech.Result, 1)
	go func() {
		var finals []speech.Result
		for result := range results {
			if result.IsFinal && strings.TrimSpace(result.Text) != "" {
				finals = append(finals, result)
			}
		}
		collected <- finals
	}()

	feedErr := o.feedChunks(ctx, cfg, id, path, duration)
	o.recognizer.StopRecognition()
	finals := <-collected

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if feedErr != nil {
		return nil, feedErr
	}
	if err := o.recognizer.Err(); err != nil {
		return nil, fmt.Errorf("recognition: %w", err)
	}
	o.setProgress(id, progress.Transcribe.To)
	return finals, nil
}

func (o *Orchestrator) feedChunks(ctx context.Context, cfg Config, id, path string, duration time.Duration) error {
	stream, err := o.toolkit.DecodePCM(ctx, path)
	if err != nil {
		return err
	}

	chunk := cfg.ChunkDuration
	if chunk <= 0 {
		chunk = defaultChunkDuration
	}
	reader := media.NewChunkReader(stream, chunk, duration)

	var readErr error
	for {
		if ctx.Err() != nil {
			break
		}
		buf, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = fmt.Errorf("read audio: %w", err)
			break
		}
		if err := o.recognizer.ProcessAudio(buf); err != nil {
			readErr = fmt.Errorf("process audio: %w", err)
			break
		}
		o.setProgress(id, progress.Stage(reader.Progress(), progress.Transcribe))
	}

	closeErr := stream.Close()
	if readErr != nil {
		return readErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return closeErr
}

// segment turns each recognized run into subtitle segments. Runs are never
// merged, since their timing bases may not be contiguous.
func (o *Orchestrator) segment(ctx context.Context, cfg Config, runs []speech.Result, durationSeconds float64) []domain.Segment {
	maxChars := subtitle.BudgetFor(cfg.SourceLocale).MaxChars()

	var segments []domain.Segment
	for _, run := range runs {
		text := strings.TrimSpace(run.Text)
		if text == "" {
			continue
		}
		start, end := runSpan(run)
		base := domain.Segment{
			SourceLocale: cfg.SourceLocale,
			TargetLocale: cfg.TargetLocale,
			Confidence:   run.Confidence,
			IsFinal:      true,
		}

		if utf8.RuneCountInString(text) <= maxChars {
			seg := base
			seg.StartTime, seg.EndTime, seg.OriginalText = start, end, text
			segments = append(segments, seg)
			continue
		}

		pieces, err := o.segmenter.SegmentTranscript(ctx, text, run.Words, cfg.SourceLocale, maxChars)
		if err != nil || len(pieces) == 0 {
			o.logger.Debug("segmentation fell back to unsplit run",
				zap.Int("chars", utf8.RuneCountInString(text)),
				zap.Error(err),
			)
			seg := base
			seg.StartTime, seg.EndTime, seg.OriginalText = start, end, text
			segments = append(segments, seg)
			continue
		}
		for _, piece := range pieces {
			seg := base
			seg.StartTime, seg.EndTime, seg.OriginalText = piece.StartTime, piece.EndTime, piece.Text
			segments = append(segments, seg)
		}
	}

	if len(segments) == 0 {
		end := placeholderSeconds
		if durationSeconds > 0 {
			end = math.Min(placeholderSeconds, durationSeconds)
		}
		segments = append(segments, domain.Segment{
			StartTime:      0,
			EndTime:        end,
			OriginalText:   NoSpeechText,
			TranslatedText: NoSpeechText,
			SourceLocale:   cfg.SourceLocale,
			TargetLocale:   cfg.TargetLocale,
			IsFinal:        true,
		})
	}
	return segments
}

// runSpan returns the run's time range, falling back to its word timings.
func runSpan(run speech.Result) (float64, float64) {
	if run.TimeRange != nil {
		return run.TimeRange.Start, run.TimeRange.End
	}
	if len(run.Words) > 0 {
		return run.Words[0].StartTime, run.Words[len(run.Words)-1].EndTime
	}
	return 0, 0
}

// translate fills TranslatedText in place. A failed segment keeps its
// original text and the failure is reported.
func (o *Orchestrator) translate(ctx context.Context, cfg Config, id string, segments []domain.Segment) error {
	for i := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		seg := &segments[i]
		if seg.TranslatedText == "" {
			translated, err := o.translator.Translate(ctx, seg.OriginalText, cfg.SourceLocale, cfg.TargetLocale)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				o.report(fmt.Errorf("translate segment %d: %w", i+1, err))
				translated = seg.OriginalText
			}
			seg.TranslatedText = translated
		}
		o.setProgress(id, progress.Stage(progress.Ratio(int64(i+1), int64(len(segments))), progress.Translate))
	}
	return nil
}

// export writes the subtitle file and moves it into the output directory.
func (o *Orchestrator) export(ctx context.Context, cfg Config, file domain.MediaFile, segments []domain.Segment) (string, error) {
	opts := cfg.Subtitle
	if opts.Format == "" {
		opts.Format = domain.SubtitleFormatSRT
	}

	tempPath, err := o.exporter.Export(ctx, segments, opts)
	if err != nil {
		return "", fmt.Errorf("export subtitles: %w", err)
	}
	o.setProgress(file.ID, progress.Stage(0.5, progress.Export))

	if err := ctx.Err(); err != nil {
		_ = o.remove(tempPath)
		return "", err
	}

	dest, err := o.moveToOutput(tempPath, cfg.OutputDir, OutputName(file.DisplayName, opts.Format))
	if err != nil {
		_ = o.remove(tempPath)
		return "", err
	}
	o.setProgress(file.ID, progress.Export.To)
	return dest, nil
}
