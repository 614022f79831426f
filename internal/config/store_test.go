package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"live-translator/internal/domain"
)

func fullSettings() domain.Settings {
	return domain.Settings{
		SourceLocale:        "de-DE",
		TargetLocale:        "en-US",
		InputMode:           domain.InputModeMicrophoneOnly,
		AutoSpeak:           true,
		SpeechRate:          0.7,
		Voice:               "anna",
		AccurateRecognition: true,
		OutputDir:           "/out",
		SubtitleFormat:      domain.SubtitleFormatVTT,
		Bilingual:           true,
		TranslationFirst:    true,
		ModelPath:           "/models/ggml-base.bin",
		FFmpegPath:          "/usr/bin/ffmpeg",
		LogLevel:            "debug",
	}
}

// TestDefaultSettings verifies baseline defaults are present and valid.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.SourceLocale != "en-US" || cfg.TargetLocale != "ja-JP" {
		t.Fatalf("locales = %q -> %q, want en-US -> ja-JP", cfg.SourceLocale, cfg.TargetLocale)
	}
	if cfg.InputMode != domain.InputModeBoth {
		t.Fatalf("input mode = %q, want both", cfg.InputMode)
	}
	if cfg.ModelPath == "" || cfg.OutputDir == "" {
		t.Fatal("expected non-empty model path and output dir")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(defaults) error = %v", err)
	}
}

// TestNormalizeFillsBlanks checks trimming and default filling.
func TestNormalizeFillsBlanks(t *testing.T) {
	got := Normalize(domain.Settings{SourceLocale: "  fr-FR ", SubtitleFormat: "VTT", LogLevel: " WARN"})
	if got.SourceLocale != "fr-FR" {
		t.Fatalf("source = %q, want fr-FR", got.SourceLocale)
	}
	if got.TargetLocale != DefaultTargetLocale {
		t.Fatalf("target = %q, want default", got.TargetLocale)
	}
	if got.SubtitleFormat != domain.SubtitleFormatVTT {
		t.Fatalf("format = %q, want vtt", got.SubtitleFormat)
	}
	if got.LogLevel != "warn" {
		t.Fatalf("log level = %q, want warn", got.LogLevel)
	}
	if got.SpeechRate != DefaultSpeechRate {
		t.Fatalf("speech rate = %v, want default", got.SpeechRate)
	}
}

// TestValidateRejects covers each validation failure.
func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Settings)
	}{
		{"input mode", func(s *domain.Settings) { s.InputMode = "stereo" }},
		{"format", func(s *domain.Settings) { s.SubtitleFormat = "ass" }},
		{"rate", func(s *domain.Settings) { s.SpeechRate = 1.5 }},
		{"log level", func(s *domain.Settings) { s.LogLevel = "loud" }},
		{"locale", func(s *domain.Settings) { s.TargetLocale = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fullSettings()
			tt.mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

// TestFileStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestFileStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewFileStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != DefaultSettings() {
		t.Fatalf("settings = %+v, want defaults", got)
	}
}

// TestFileStoreRoundTrip checks persisted settings fidelity for both codecs.
func TestFileStoreRoundTrip(t *testing.T) {
	for _, name := range []string{"settings.json", "settings.yaml", "settings.yml"} {
		t.Run(name, func(t *testing.T) {
			store := NewFileStore(filepath.Join(t.TempDir(), "cfg", name))
			want := fullSettings()

			if err := store.Save(want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := store.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got != want {
				t.Fatalf("settings = %+v, want %+v", got, want)
			}
		})
	}
}

// TestFileStoreWritesYAMLKeys checks the YAML codec uses snake_case keys.
func TestFileStoreWritesYAMLKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := NewFileStore(path).Save(fullSettings()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "source_locale: de-DE") {
		t.Fatalf("yaml output missing source_locale:\n%s", data)
	}
}

// TestFileStoreLoadPartialFillsDefaults checks sparse files are completed.
func TestFileStoreLoadPartialFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("target_locale: ko-KR\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.TargetLocale != "ko-KR" || got.SourceLocale != DefaultSourceLocale {
		t.Fatalf("locales = %q -> %q", got.SourceLocale, got.TargetLocale)
	}
}

// TestFileStoreLoadInvalid checks parse error handling.
func TestFileStoreLoadInvalid(t *testing.T) {
	for _, tc := range []struct{ name, body string }{
		{"settings.json", "{not-json"},
		{"settings.yaml", "source_locale: [unterminated"},
	} {
		path := filepath.Join(t.TempDir(), tc.name)
		if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := NewFileStore(path).Load(); err == nil {
			t.Fatalf("%s: expected parse error", tc.name)
		}
	}
}

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// TestLoaderAppliesOverrides checks environment values win over stored ones.
func TestLoaderAppliesOverrides(t *testing.T) {
	loader := Loader{Lookup: mapLookup(map[string]string{
		EnvSourceLocale:   "es-ES",
		EnvInputMode:      "systemAudioOnly",
		EnvAutoSpeak:      "false",
		EnvSubtitleFormat: "srt",
		EnvOutputDir:      "  /tmp/subs ",
		EnvLogLevel:       "error",
		EnvTargetLocale:   "   ",
	})}

	got, err := loader.Apply(fullSettings())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got.SourceLocale != "es-ES" || got.TargetLocale != "en-US" {
		t.Fatalf("locales = %q -> %q", got.SourceLocale, got.TargetLocale)
	}
	if got.InputMode != domain.InputModeSystemAudioOnly {
		t.Fatalf("input mode = %q", got.InputMode)
	}
	if got.AutoSpeak {
		t.Fatal("auto speak should be overridden to false")
	}
	if got.SubtitleFormat != domain.SubtitleFormatSRT || got.OutputDir != "/tmp/subs" || got.LogLevel != "error" {
		t.Fatalf("settings = %+v", got)
	}
}

// TestLoaderRejectsInvalidOverrides checks bad values surface as errors.
func TestLoaderRejectsInvalidOverrides(t *testing.T) {
	for key, value := range map[string]string{
		EnvAutoSpeak: "sometimes",
		EnvInputMode: "stereo",
		EnvLogLevel:  "loud",
	} {
		loader := Loader{Lookup: mapLookup(map[string]string{key: value})}
		if _, err := loader.Apply(fullSettings()); err == nil {
			t.Fatalf("%s=%s: expected error", key, value)
		}
	}
}

// TestLoaderLoadReadsStore checks Load combines the store and environment.
func TestLoaderLoadReadsStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewFileStore(path)
	if err := store.Save(fullSettings()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loader := Loader{Lookup: mapLookup(map[string]string{EnvTargetLocale: "ja-JP"})}
	got, err := loader.Load(store)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.SourceLocale != "de-DE" || got.TargetLocale != "ja-JP" {
		t.Fatalf("locales = %q -> %q", got.SourceLocale, got.TargetLocale)
	}
}

// TestLoaderSettingsPath checks the path override.
func TestLoaderSettingsPath(t *testing.T) {
	if got := (Loader{Lookup: mapLookup(nil)}).SettingsPath(); got != DefaultSettingsPath() {
		t.Fatalf("path = %q, want default", got)
	}
	loader := Loader{Lookup: mapLookup(map[string]string{EnvSettingsPath: "/etc/lt.yaml"})}
	if got := loader.SettingsPath(); got != "/etc/lt.yaml" {
		t.Fatalf("path = %q, want override", got)
	}
}
