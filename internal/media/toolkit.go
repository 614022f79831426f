package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"live-translator/internal/logging"
)

// Info is what ffprobe reports about a media file.
type Info struct {
	Duration time.Duration `json:"duration"`
	HasVideo bool          `json:"hasVideo"`
	HasAudio bool          `json:"hasAudio"`
}

// ExtractedAudio is an audio-only source for transcription.
type ExtractedAudio struct {
	Path      string
	Temporary bool
	tempDir   string
	removeAll func(path string) error
}

// Cleanup removes the temporary copy, if one was made.
func (e *ExtractedAudio) Cleanup() error {
	if e == nil || e.tempDir == "" {
		return nil
	}
	if err := e.removeAll(e.tempDir); err != nil {
		return err
	}
	e.tempDir = ""
	return nil
}

// Toolkit orchestrates ffprobe and ffmpeg invocations.
type Toolkit struct {
	ffmpegPath  string
	ffprobePath string
	runner      CommandRunner
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	stat        func(name string) (os.FileInfo, error)
	logger      *zap.Logger
}

// NewToolkit constructs the production toolkit. Empty paths fall back to the
// binaries on PATH.
func NewToolkit(ffmpegPath, ffprobePath string, logger *zap.Logger) *Toolkit {
	return &Toolkit{
		ffmpegPath:  orDefault(ffmpegPath, "ffmpeg"),
		ffprobePath: orDefault(ffprobePath, "ffprobe"),
		runner:      &ExecRunner{},
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		stat:        os.Stat,
		logger:      logging.OrNop(logger),
	}
}

// NewToolkitForTests constructs a toolkit with injectable dependencies.
func NewToolkitForTests(
	ffmpegPath string,
	ffprobePath string,
	runner CommandRunner,
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
) *Toolkit {
	return &Toolkit{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
		mkdirTemp:   mkdirTemp,
		removeAll:   removeAll,
		stat:        os.Stat,
		logger:      zap.NewNop(),
	}
}

// probeOutput is the subset of ffprobe JSON the toolkit reads.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// Probe reads duration and track layout of a media file.
func (t *Toolkit) Probe(ctx context.Context, path string) (Info, error) {
	if _, err := t.stat(path); err != nil {
		return Info{}, &ToolError{
			Stage:   "probing",
			Message: fmt.Sprintf("cannot access media: %s", path),
			Err:     err,
		}
	}

	args := buildProbeArgs(path)
	result, runErr := t.runner.Run(ctx, t.ffprobePath, args...)
	log := NewCommandLog(t.ffprobePath, args, result)
	if runErr != nil {
		return Info{}, &ToolError{
			Stage:      "probing",
			Message:    "ffprobe failed",
			CommandLog: log,
			Err:        runErr,
		}
	}

	var out probeOutput
	if err := json.Unmarshal([]byte(result.Stdout), &out); err != nil {
		return Info{}, &ToolError{
			Stage:      "probing",
			Message:    "ffprobe returned invalid JSON",
			CommandLog: log,
			Err:        err,
		}
	}

	info := Info{Duration: parseSeconds(out.Format.Duration)}
	for _, stream := range out.Streams {
		switch stream.CodecType {
		case "video":
			info.HasVideo = true
		case "audio":
			info.HasAudio = true
			if info.Duration == 0 {
				info.Duration = parseSeconds(stream.Duration)
			}
		}
	}
	return info, nil
}

// ExtractAudio returns an audio-only source for path. Files without a video
// track are reused as-is; otherwise the audio track is copied into a
// temporary container. A file without audio is an error.
func (t *Toolkit) ExtractAudio(ctx context.Context, path string, info Info) (*ExtractedAudio, error) {
	if !info.HasAudio {
		return nil, &ToolError{Stage: "extracting", Message: "media has no audio track"}
	}
	if !info.HasVideo {
		return &ExtractedAudio{Path: path, removeAll: t.removeAll}, nil
	}

	tempDir, err := t.mkdirTemp("", "live-translator-audio-*")
	if err != nil {
		return nil, &ToolError{
			Stage:   "extracting",
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}

	outPath := filepath.Join(tempDir, audioFileName(path))
	args := buildExtractArgs(path, outPath)
	result, runErr := t.runner.Run(ctx, t.ffmpegPath, args...)
	log := NewCommandLog(t.ffmpegPath, args, result)
	if runErr != nil {
		_ = t.removeAll(tempDir)
		return nil, &ToolError{
			Stage:      "extracting",
			Message:    "ffmpeg audio extraction failed",
			CommandLog: log,
			Err:        runErr,
		}
	}
	if _, err := t.stat(outPath); err != nil {
		_ = t.removeAll(tempDir)
		return nil, &ToolError{
			Stage:      "extracting",
			Message:    "ffmpeg completed but output file is missing",
			CommandLog: log,
			Err:        err,
		}
	}

	t.logger.Debug("audio extracted", zap.String("source", path), zap.String("output", outPath))
	return &ExtractedAudio{Path: outPath, Temporary: true, tempDir: tempDir, removeAll: t.removeAll}, nil
}

// PCMStream is a decoding ffmpeg process producing 16 kHz mono s16le.
type PCMStream struct {
	proc    Process
	command string
	args    []string
	ctx     context.Context
}

// Read implements io.Reader.
func (s *PCMStream) Read(b []byte) (int, error) {
	return s.proc.Read(b)
}

// Close stops decoding and reports a decoder failure. Cancellation is
// returned as the context error.
func (s *PCMStream) Close() error {
	result, err := s.proc.Close()
	if err == nil {
		return nil
	}
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &ToolError{
		Stage:      "decoding",
		Message:    "ffmpeg PCM decoding failed",
		CommandLog: NewCommandLog(s.command, s.args, result),
		Err:        err,
	}
}

// DecodePCM starts streaming path as recognition-format PCM.
func (t *Toolkit) DecodePCM(ctx context.Context, path string) (*PCMStream, error) {
	args := buildDecodeArgs(path)
	proc, err := t.runner.Start(ctx, t.ffmpegPath, args...)
	if err != nil {
		return nil, &ToolError{
			Stage:      "decoding",
			Message:    "failed to start ffmpeg",
			CommandLog: CommandLog{Command: t.ffmpegPath, Args: args, ExitCode: -1},
			Err:        err,
		}
	}
	return &PCMStream{proc: proc, command: t.ffmpegPath, args: args, ctx: ctx}, nil
}

// buildProbeArgs builds ffprobe args for JSON format and stream output.
func buildProbeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
}

// buildExtractArgs builds ffmpeg args copying the audio track only.
func buildExtractArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-map", "0:a:0",
		"-c:a", "copy",
		outPath,
	}
}

// buildDecodeArgs builds ffmpeg args for mono 16k PCM on stdout.
func buildDecodeArgs(inputPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "s16le",
		"-c:a", "pcm_s16le",
		"pipe:1",
	}
}

// audioFileName names the extracted track after the input media.
func audioFileName(inputPath string) string {
	base := filepath.Base(inputPath)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "audio"
	}
	return name + ".mka"
}

func parseSeconds(raw string) time.Duration {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
