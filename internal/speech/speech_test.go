package speech

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"live-translator/internal/audio"
	"live-translator/internal/domain"
	"live-translator/internal/media"
)

// fakeRunner simulates whisper.cpp invocations.
type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) (media.CommandResult, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (media.CommandResult, error) {
	if f.run == nil {
		return media.CommandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

// Start is unused by the recognizer.
func (f *fakeRunner) Start(ctx context.Context, name string, args ...string) (media.Process, error) {
	return nil, errors.New("not supported")
}

const whisperOutput = `{
  "transcription": [
    {
      "offsets": {"from": 0, "to": 2000},
      "text": " Hello world.",
      "tokens": [
        {"text": "[_BEG_]", "offsets": {"from": 0, "to": 0}, "p": 0.99},
        {"text": " Hel", "offsets": {"from": 0, "to": 400}, "p": 0.8},
        {"text": "lo", "offsets": {"from": 400, "to": 700}, "p": 0.9},
        {"text": " world", "offsets": {"from": 800, "to": 1500}, "p": 0.7},
        {"text": ".", "offsets": {"from": 1500, "to": 1600}, "p": 0.6},
        {"text": "[_TT_80]", "offsets": {"from": 2000, "to": 2000}, "p": 0.5}
      ]
    },
    {"offsets": {"from": 2000, "to": 2500}, "text": "  ", "tokens": []},
    {
      "offsets": {"from": 3000, "to": 4000},
      "text": " Bye.",
      "tokens": [{"text": " Bye.", "offsets": {"from": 3000, "to": 4000}, "p": 1}]
    }
  ]
}`

// TestParseWhisperJSONBuildsWords merges sub-word tokens.
func TestParseWhisperJSONBuildsWords(t *testing.T) {
	results, err := parseWhisperJSON([]byte(whisperOutput), false)
	if err != nil {
		t.Fatalf("parseWhisperJSON() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	first := results[0]
	if first.Text != "Hello world." || !first.IsFinal {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.TimeRange == nil || first.TimeRange.Start != 0 || first.TimeRange.End != 2 {
		t.Fatalf("unexpected time range: %+v", first.TimeRange)
	}
	if len(first.Words) != 2 {
		t.Fatalf("words = %+v", first.Words)
	}
	if first.Words[0].Text != "Hello" || first.Words[0].EndTime != 0.7 {
		t.Fatalf("unexpected first word: %+v", first.Words[0])
	}
	if first.Words[1].Text != "world." || first.Words[1].EndTime != 1.6 {
		t.Fatalf("unexpected second word: %+v", first.Words[1])
	}
	if first.Confidence < 0.74 || first.Confidence > 0.76 {
		t.Fatalf("confidence = %v, want 0.75", first.Confidence)
	}
}

// TestBuildWhisperArgs sets language and beam search flags.
func TestBuildWhisperArgs(t *testing.T) {
	args := buildWhisperArgs("/m.bin", "/a.wav", "/out/t", "ja-JP", true)
	if argValue(args, "-l") != "ja" {
		t.Fatalf("language arg = %q, want ja", argValue(args, "-l"))
	}
	if !hasArg(args, "-ojf") || argValue(args, "-bs") != "5" {
		t.Fatalf("unexpected args: %v", args)
	}

	args = buildWhisperArgs("/m.bin", "/a.wav", "/out/t", "auto", false)
	if hasArg(args, "-l") || hasArg(args, "-bs") {
		t.Fatalf("unexpected args for auto language: %v", args)
	}
}

// TestWhisperRecognizerTranscribesSpool runs the full feed/stop cycle.
func TestWhisperRecognizerTranscribesSpool(t *testing.T) {
	root := t.TempDir()
	modelPath := filepath.Join(root, "ggml-base.bin")
	mustWriteFile(t, modelPath, "model")

	var wavSize int64
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (media.CommandResult, error) {
			if name != "whisper-custom" {
				t.Fatalf("command name = %q", name)
			}
			info, err := os.Stat(argValue(args, "-f"))
			if err != nil {
				t.Fatalf("wav missing: %v", err)
			}
			wavSize = info.Size()
			mustWriteFile(t, argValue(args, "-of")+".json", whisperOutput)
			return media.CommandResult{}, nil
		},
	}

	rec := NewWhisperRecognizerForTests("whisper-custom", modelPath, runner, nil)
	results, err := rec.StartRecognition(context.Background(), "en-US", false)
	if err != nil {
		t.Fatalf("StartRecognition() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		buf := audio.Buffer{Data: make([]byte, 3200), SampleRate: audio.SampleRate, Channels: 1}
		if err := rec.ProcessAudio(buf); err != nil {
			t.Fatalf("ProcessAudio() error = %v", err)
		}
	}
	rec.StopRecognition()

	if err := rec.ProcessAudio(audio.Buffer{SampleRate: audio.SampleRate, Channels: 1}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}

	var got []Result
	for r := range results {
		got = append(got, r)
	}
	if len(got) != 2 {
		t.Fatalf("results = %d, want 2", len(got))
	}
	if wavSize != 44+9600 {
		t.Fatalf("wav size = %d, want %d", wavSize, 44+9600)
	}
	if err := rec.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
}

// TestWhisperRecognizerFailureSetsErr records tool failures.
func TestWhisperRecognizerFailureSetsErr(t *testing.T) {
	root := t.TempDir()
	modelPath := filepath.Join(root, "ggml-base.bin")
	mustWriteFile(t, modelPath, "model")

	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (media.CommandResult, error) {
			return media.CommandResult{Stderr: "bad model", ExitCode: 3}, errors.New("exit status 3")
		},
	}
	rec := NewWhisperRecognizerForTests("whisper.cpp", modelPath, runner, nil)
	results, err := rec.StartRecognition(context.Background(), "en-US", false)
	if err != nil {
		t.Fatalf("StartRecognition() error = %v", err)
	}
	rec.StopRecognition()
	for range results {
		t.Fatal("unexpected result")
	}

	var tErr *media.ToolError
	if !errors.As(rec.Err(), &tErr) || tErr.CommandLog.ExitCode != 3 {
		t.Fatalf("expected tool error, got %v", rec.Err())
	}
}

// TestWhisperRecognizerMissingModel surfaces a typed service error.
func TestWhisperRecognizerMissingModel(t *testing.T) {
	rec := NewWhisperRecognizerForTests("whisper.cpp", filepath.Join(t.TempDir(), "missing.bin"), &fakeRunner{}, nil)
	_, err := rec.StartRecognition(context.Background(), "ja-JP", false)

	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Kind != domain.ServiceLanguageNotDownloaded {
		t.Fatalf("expected languageNotDownloaded, got %v", err)
	}
	if domain.Recovery(err) == "" {
		t.Fatal("expected recovery suggestion")
	}

	status, err := rec.LanguageStatus(context.Background(), "ja-JP")
	if err != nil {
		t.Fatalf("LanguageStatus() error = %v", err)
	}
	if status.Status != StatusDownloadRequired || status.DownloadSize == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

// TestWhisperRecognizerEnglishModelRejectsOtherLocales needs multilingual.
func TestWhisperRecognizerEnglishModelRejectsOtherLocales(t *testing.T) {
	root := t.TempDir()
	modelPath := filepath.Join(root, "ggml-base.en.bin")
	mustWriteFile(t, modelPath, "model")

	rec := NewWhisperRecognizerForTests("whisper.cpp", modelPath, &fakeRunner{}, nil)
	if _, err := rec.StartRecognition(context.Background(), "ja-JP", false); err == nil {
		t.Fatal("expected error for non-English locale with English model")
	}
	status, _ := rec.LanguageStatus(context.Background(), "en-US")
	if status.Status != StatusAvailable {
		t.Fatalf("English status = %+v", status)
	}
	status, _ = rec.LanguageStatus(context.Background(), "xx")
	if status.Status != StatusUnsupported {
		t.Fatalf("unknown locale status = %+v", status)
	}
}

// TestWhisperRecognizerDownloadLanguage fetches the model with progress.
func TestWhisperRecognizerDownloadLanguage(t *testing.T) {
	payload := strings.Repeat("m", 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	client := server.Client()
	client.Transport = rewriteTransport{base: client.Transport, target: server.URL}

	dir := t.TempDir()
	rec := NewWhisperRecognizerForTests("whisper.cpp", dir, &fakeRunner{}, client)
	events, err := rec.DownloadLanguage(context.Background(), "ja-JP")
	if err != nil {
		t.Fatalf("DownloadLanguage() error = %v", err)
	}

	var last DownloadProgress
	for ev := range events {
		last = ev
	}
	if !last.Done || last.Err != nil {
		t.Fatalf("unexpected final event: %+v", last)
	}
	target := filepath.Join(dir, "ggml-base.bin")
	data, err := os.ReadFile(target)
	if err != nil || string(data) != payload {
		t.Fatalf("downloaded model mismatch: err=%v len=%d", err, len(data))
	}
	if rec.ModelPath() != target {
		t.Fatalf("model path = %q, want %q", rec.ModelPath(), target)
	}
}

// rewriteTransport sends every request to the test server.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

// RoundTrip rewrites the request URL host.
func (r rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = "http"
	clone.URL.Host = strings.TrimPrefix(r.target, "http://")
	return r.base.RoundTrip(clone)
}

// TestStubRecognizerEmitsScript produces results as buffers arrive.
func TestStubRecognizerEmitsScript(t *testing.T) {
	rec := NewStubRecognizer(&StubRecognizerConfig{
		BuffersPerResult: 2,
		Script:           []ScriptedResult{{Text: "Hi", IsFinal: false}, {Text: "Hi there", IsFinal: true}},
		Languages:        []string{"en-US"},
	})

	results, err := rec.StartRecognition(context.Background(), "en-GB", false)
	if err != nil {
		t.Fatalf("StartRecognition() error = %v", err)
	}
	go func() {
		for i := 0; i < 4; i++ {
			_ = rec.ProcessAudio(audio.Buffer{Data: make([]byte, 320), SampleRate: audio.SampleRate, Channels: 1})
		}
	}()

	var got []Result
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case r := <-results:
			got = append(got, r)
		case <-timeout:
			t.Fatalf("timed out with %d results", len(got))
		}
	}
	if got[0].IsFinal || !got[1].IsFinal || got[1].Text != "Hi there" {
		t.Fatalf("unexpected results: %+v", got)
	}

	rec.StopRecognition()
	if err := rec.ProcessAudio(audio.Buffer{}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

// TestStubRecognizerRejectsUnsupportedLocale reports a service error.
func TestStubRecognizerRejectsUnsupportedLocale(t *testing.T) {
	rec := NewStubRecognizer(nil)
	_, err := rec.StartRecognition(context.Background(), "xx-YY", false)
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected service error, got %v", err)
	}
}

// TestModelCatalog includes the default model.
func TestModelCatalog(t *testing.T) {
	model, ok := ModelByID(DefaultModelID)
	if !ok || !model.Multilingual {
		t.Fatalf("default model missing or English-only: %+v", model)
	}
	if len(Models()) == 0 {
		t.Fatal("expected catalog entries")
	}
}

// mustWriteFile creates parent directory and writes file content.
func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir parent: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}

// argValue returns value for key-style CLI args.
func argValue(args []string, key string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == key {
			return args[i+1]
		}
	}
	return ""
}

// hasArg reports whether args include the target flag.
func hasArg(args []string, key string) bool {
	for _, arg := range args {
		if arg == key {
			return true
		}
	}
	return false
}
