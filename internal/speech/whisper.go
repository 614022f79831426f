package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"live-translator/internal/audio"
	"live-translator/internal/domain"
	"live-translator/internal/locale"
	"live-translator/internal/logging"
	"live-translator/internal/media"
)

// whisperLanguages is the subset of whisper's languages offered in the UI.
var whisperLanguages = []string{
	"en", "ja", "zh", "ko", "es", "fr", "de", "it", "pt", "ru",
	"ar", "hi", "nl", "pl", "tr", "uk", "vi", "th", "id", "sv",
}

// WhisperRecognizer runs whisper.cpp over the audio fed during a session.
// Fed PCM is spooled to disk; StopRecognition transcribes it and emits one
// final result per whisper segment with token-derived word timings.
type WhisperRecognizer struct {
	whisperPath string
	modelPath   string
	runner      media.CommandRunner
	client      *http.Client
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	stat        func(name string) (os.FileInfo, error)
	readDir     func(name string) ([]os.DirEntry, error)
	readFile    func(name string) ([]byte, error)
	logger      *zap.Logger

	mu        sync.Mutex
	run       *whisperRun
	lastErr   error
	downloads map[string]float64
}

type whisperRun struct {
	locale   string
	accurate bool
	tempDir  string
	pcmPath  string
	pcm      *os.File
	out      chan Result
	finish   chan struct{}
	once     sync.Once
}

func (r *whisperRun) stop() {
	r.once.Do(func() { close(r.finish) })
}

// NewWhisperRecognizer constructs the production recognizer.
func NewWhisperRecognizer(whisperPath, modelPath string, logger *zap.Logger) *WhisperRecognizer {
	if strings.TrimSpace(whisperPath) == "" {
		whisperPath = "whisper.cpp"
	}
	return &WhisperRecognizer{
		whisperPath: whisperPath,
		modelPath:   modelPath,
		runner:      &media.ExecRunner{},
		client:      http.DefaultClient,
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		stat:        os.Stat,
		readDir:     os.ReadDir,
		readFile:    os.ReadFile,
		logger:      logging.OrNop(logger),
		downloads:   make(map[string]float64),
	}
}

// NewWhisperRecognizerForTests constructs a recognizer with injectable
// dependencies.
func NewWhisperRecognizerForTests(
	whisperPath string,
	modelPath string,
	runner media.CommandRunner,
	client *http.Client,
) *WhisperRecognizer {
	r := NewWhisperRecognizer(whisperPath, modelPath, zap.NewNop())
	r.runner = runner
	if client != nil {
		r.client = client
	}
	return r
}

// StartRecognition opens a spool for fed audio.
func (w *WhisperRecognizer) StartRecognition(ctx context.Context, loc string, accurate bool) (<-chan Result, error) {
	if !w.supports(loc) {
		return nil, unsupportedLocale(loc)
	}
	modelPath, err := ResolveModelPath(w.ModelPath(), w.stat, w.readDir)
	if err != nil {
		return nil, &domain.ServiceError{
			Kind:     domain.ServiceLanguageNotDownloaded,
			Detail:   loc,
			Recovery: "Download a speech model from the diagnostics panel.",
			Err:      err,
		}
	}
	if IsEnglishOnlyModel(modelPath) && locale.Language(loc) != "en" {
		return nil, &domain.ServiceError{
			Kind:     domain.ServiceLanguageNotDownloaded,
			Detail:   fmt.Sprintf("%s requires a multilingual model", loc),
			Recovery: "Download a multilingual speech model from the diagnostics panel.",
		}
	}

	tempDir, err := w.mkdirTemp("", "live-translator-whisper-*")
	if err != nil {
		return nil, domain.NewServiceError(domain.ServiceEngineStart, "create whisper workspace", err)
	}
	pcmPath := filepath.Join(tempDir, "input.pcm")
	pcm, err := os.Create(pcmPath)
	if err != nil {
		_ = w.removeAll(tempDir)
		return nil, domain.NewServiceError(domain.ServiceEngineStart, "create audio spool", err)
	}

	run := &whisperRun{
		locale:   loc,
		accurate: accurate,
		tempDir:  tempDir,
		pcmPath:  pcmPath,
		pcm:      pcm,
		out:      make(chan Result),
		finish:   make(chan struct{}),
	}

	w.mu.Lock()
	if w.run != nil {
		w.run.stop()
	}
	w.run = run
	w.lastErr = nil
	w.mu.Unlock()

	go w.transcribe(ctx, run, modelPath)
	return run.out, nil
}

// ProcessAudio appends one buffer to the active spool.
func (w *WhisperRecognizer) ProcessAudio(buf audio.Buffer) error {
	if buf.SampleRate != audio.SampleRate {
		return fmt.Errorf("unsupported sample rate %d, want %d", buf.SampleRate, audio.SampleRate)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.run == nil {
		return ErrNotRunning
	}
	if _, err := w.run.pcm.Write(audio.DownmixToMono(buf.Data, buf.Channels)); err != nil {
		return fmt.Errorf("spool audio: %w", err)
	}
	return nil
}

// StopRecognition ends feeding and starts transcription of the spool.
func (w *WhisperRecognizer) StopRecognition() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.run != nil {
		w.run.stop()
		w.run = nil
	}
}

// Err returns the terminal error of the last run.
func (w *WhisperRecognizer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// transcribe waits for the end of feeding, runs whisper and emits results.
func (w *WhisperRecognizer) transcribe(ctx context.Context, run *whisperRun, modelPath string) {
	defer close(run.out)
	defer func() { _ = w.removeAll(run.tempDir) }()

	select {
	case <-run.finish:
	case <-ctx.Done():
		w.mu.Lock()
		if w.run == run {
			w.run = nil
		}
		w.mu.Unlock()
		_ = run.pcm.Close()
		w.fail(ctx.Err())
		return
	}

	// ProcessAudio cannot reach this run any more, the spool is ours.
	if err := run.pcm.Close(); err != nil {
		w.fail(fmt.Errorf("close audio spool: %w", err))
		return
	}

	wavPath := filepath.Join(run.tempDir, "input.wav")
	if err := spoolToWAV(run.pcmPath, wavPath); err != nil {
		w.fail(err)
		return
	}

	outBase := filepath.Join(run.tempDir, "transcript")
	args := buildWhisperArgs(modelPath, wavPath, outBase, run.locale, run.accurate)
	result, runErr := w.runner.Run(ctx, w.whisperPath, args...)
	if runErr != nil {
		if ctx.Err() != nil {
			w.fail(ctx.Err())
			return
		}
		w.fail(&media.ToolError{
			Stage:      "transcribing",
			Message:    "whisper.cpp transcription failed",
			CommandLog: media.NewCommandLog(w.whisperPath, args, result),
			Err:        runErr,
		})
		return
	}

	data, err := w.readFile(outBase + ".json")
	if err != nil {
		w.fail(&media.ToolError{
			Stage:      "transcribing",
			Message:    "whisper.cpp completed but transcript .json file is missing",
			CommandLog: media.NewCommandLog(w.whisperPath, args, result),
			Err:        err,
		})
		return
	}

	results, err := parseWhisperJSON(data, locale.IsCJK(run.locale))
	if err != nil {
		w.fail(err)
		return
	}

	w.logger.Debug("whisper transcription finished",
		zap.String("locale", run.locale),
		zap.Int("segments", len(results)),
	)
	for _, r := range results {
		select {
		case run.out <- r:
		case <-ctx.Done():
			w.fail(ctx.Err())
			return
		}
	}
}

func (w *WhisperRecognizer) fail(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
	if !errors.Is(err, context.Canceled) {
		w.logger.Warn("whisper recognition failed", zap.Error(err))
	}
}

// SupportedLanguages returns whisper's offered languages.
func (w *WhisperRecognizer) SupportedLanguages() []string {
	return append([]string(nil), whisperLanguages...)
}

// LanguageStatus reports whether a usable model is present for loc.
func (w *WhisperRecognizer) LanguageStatus(ctx context.Context, loc string) (Availability, error) {
	if err := ctx.Err(); err != nil {
		return Availability{}, err
	}
	if !w.supports(loc) {
		return Availability{Status: StatusUnsupported}, nil
	}

	model, _ := ModelByID(DefaultModelID)
	target := downloadTarget(w.ModelPath(), model)
	w.mu.Lock()
	fraction, downloading := w.downloads[target]
	w.mu.Unlock()
	if downloading {
		return Availability{Status: StatusDownloading, Progress: fraction}, nil
	}

	path, err := ResolveModelPath(w.ModelPath(), w.stat, w.readDir)
	if err != nil || (IsEnglishOnlyModel(path) && locale.Language(loc) != "en") {
		return Availability{Status: StatusDownloadRequired, DownloadSize: model.Size}, nil
	}
	return Availability{Status: StatusAvailable}, nil
}

// DownloadLanguage fetches the default multilingual model. Progress events
// end with a Done event, or an event carrying Err.
func (w *WhisperRecognizer) DownloadLanguage(ctx context.Context, loc string) (<-chan DownloadProgress, error) {
	if !w.supports(loc) {
		return nil, unsupportedLocale(loc)
	}
	model, _ := ModelByID(DefaultModelID)
	target := downloadTarget(w.ModelPath(), model)

	out := make(chan DownloadProgress, 1)
	if info, err := w.stat(target); err == nil && !info.IsDir() {
		out <- DownloadProgress{Locale: loc, BytesDone: info.Size(), BytesTotal: info.Size(), Fraction: 1, Done: true}
		close(out)
		return out, nil
	}

	w.mu.Lock()
	if _, busy := w.downloads[target]; busy {
		w.mu.Unlock()
		return nil, fmt.Errorf("model download already in progress: %s", target)
	}
	w.downloads[target] = 0
	w.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			w.mu.Lock()
			delete(w.downloads, target)
			w.mu.Unlock()
		}()

		report := func(written, total int64) {
			if total <= 0 {
				total = model.Size
			}
			fraction := float64(written) / float64(total)
			if fraction > 1 {
				fraction = 1
			}
			w.mu.Lock()
			w.downloads[target] = fraction
			w.mu.Unlock()
			select {
			case out <- DownloadProgress{Locale: loc, BytesDone: written, BytesTotal: total, Fraction: fraction}:
			default:
				// Slow readers only miss intermediate events.
			}
		}

		if err := downloadURLToFile(ctx, w.client, target, model.URL, report); err != nil {
			w.logger.Warn("model download failed", zap.String("model", model.ID), zap.Error(err))
			out <- DownloadProgress{Locale: loc, Err: err, Done: true}
			return
		}
		w.mu.Lock()
		w.modelPath = target
		w.mu.Unlock()
		w.logger.Info("model downloaded", zap.String("model", model.ID), zap.String("path", target))
		out <- DownloadProgress{Locale: loc, Fraction: 1, Done: true}
	}()
	return out, nil
}

// ModelPath returns the configured or downloaded model location.
func (w *WhisperRecognizer) ModelPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.modelPath
}

// SetModelPath points later runs at another model file or directory.
func (w *WhisperRecognizer) SetModelPath(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.modelPath = path
}

func (w *WhisperRecognizer) supports(loc string) bool {
	lang := locale.Language(loc)
	for _, l := range whisperLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// spoolToWAV prefixes the raw spool with a WAV header.
func spoolToWAV(pcmPath, wavPath string) error {
	src, err := os.Open(pcmPath)
	if err != nil {
		return fmt.Errorf("open audio spool: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat audio spool: %w", err)
	}

	dst, err := os.Create(wavPath)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := audio.WriteWAVHeader(dst, info.Size(), audio.SampleRate, audio.Channels); err != nil {
		_ = dst.Close()
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("write wav: %w", err)
	}
	return dst.Close()
}

// buildWhisperArgs builds whisper.cpp args for full JSON export.
func buildWhisperArgs(modelPath, audioPath, outBase, loc string, accurate bool) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-ojf",
	}
	if lang := normalizeLanguage(loc); lang != "" {
		args = append(args, "-l", lang)
	}
	if accurate {
		args = append(args, "-bs", "5", "-bo", "5")
	}
	return args
}

// normalizeLanguage maps "auto" and empty locale to no CLI override.
func normalizeLanguage(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "auto") {
		return ""
	}
	return locale.Language(trimmed)
}

// whisperJSON is the subset of whisper.cpp -ojf output that is read.
type whisperJSON struct {
	Transcription []struct {
		Offsets whisperOffsets `json:"offsets"`
		Text    string         `json:"text"`
		Tokens  []struct {
			Text    string         `json:"text"`
			Offsets whisperOffsets `json:"offsets"`
			P       float64        `json:"p"`
		} `json:"tokens"`
	} `json:"transcription"`
}

type whisperOffsets struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// parseWhisperJSON converts whisper segments into final results. Special
// tokens ("[_BEG_]", "[_TT_...]") are skipped. Sub-word tokens are merged
// into the preceding word unless every token is its own word.
func parseWhisperJSON(data []byte, tokenPerWord bool) ([]Result, error) {
	var doc whisperJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	results := make([]Result, 0, len(doc.Transcription))
	for _, seg := range doc.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		var (
			words  []domain.WordTiming
			pSum   float64
			pCount int
		)
		for _, tok := range seg.Tokens {
			if strings.HasPrefix(tok.Text, "[_") {
				continue
			}
			pSum += tok.P
			pCount++

			start := float64(tok.Offsets.From) / 1000
			end := float64(tok.Offsets.To) / 1000
			newWord := tokenPerWord || len(words) == 0 || strings.HasPrefix(tok.Text, " ")
			if newWord {
				if strings.TrimSpace(tok.Text) == "" {
					continue
				}
				words = append(words, domain.WordTiming{Text: strings.TrimSpace(tok.Text), StartTime: start, EndTime: end})
				continue
			}
			last := &words[len(words)-1]
			last.Text += tok.Text
			if end > last.EndTime {
				last.EndTime = end
			}
		}

		confidence := 0.0
		if pCount > 0 {
			confidence = pSum / float64(pCount)
		}
		results = append(results, Result{
			ID:         uuid.NewString(),
			Text:       text,
			IsFinal:    true,
			Confidence: confidence,
			TimeRange: &TimeRange{
				Start: float64(seg.Offsets.From) / 1000,
				End:   float64(seg.Offsets.To) / 1000,
			},
			Words: words,
		})
	}
	return results, nil
}
