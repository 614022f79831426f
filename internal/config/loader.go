package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"live-translator/internal/domain"
)

// Environment variables overlaid on stored settings.
const (
	EnvSettingsPath   = "LIVE_TRANSLATOR_SETTINGS"
	EnvSourceLocale   = "LIVE_TRANSLATOR_SOURCE_LOCALE"
	EnvTargetLocale   = "LIVE_TRANSLATOR_TARGET_LOCALE"
	EnvInputMode      = "LIVE_TRANSLATOR_INPUT_MODE"
	EnvAutoSpeak      = "LIVE_TRANSLATOR_AUTO_SPEAK"
	EnvOutputDir      = "LIVE_TRANSLATOR_OUTPUT_DIR"
	EnvSubtitleFormat = "LIVE_TRANSLATOR_SUBTITLE_FORMAT"
	EnvModelPath      = "LIVE_TRANSLATOR_MODEL_PATH"
	EnvFFmpegPath     = "LIVE_TRANSLATOR_FFMPEG"
	EnvFFprobePath    = "LIVE_TRANSLATOR_FFPROBE"
	EnvWhisperPath    = "LIVE_TRANSLATOR_WHISPER"
	EnvLogLevel       = "LIVE_TRANSLATOR_LOG_LEVEL"
)

// Loader overlays environment variables on stored settings. Tests can
// override Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
}

// SettingsPath returns the settings file path, honoring the override.
func (l Loader) SettingsPath() string {
	path := DefaultSettingsPath()
	overrideString(l.lookup(), EnvSettingsPath, &path)
	return path
}

// Load reads the store, applies environment overrides and validates.
func (l Loader) Load(store Store) (domain.Settings, error) {
	cfg, err := store.Load()
	if err != nil {
		return domain.Settings{}, err
	}
	return l.Apply(cfg)
}

// Apply overlays environment variables on cfg and validates the result.
func (l Loader) Apply(cfg domain.Settings) (domain.Settings, error) {
	lookup := l.lookup()

	overrideString(lookup, EnvSourceLocale, &cfg.SourceLocale)
	overrideString(lookup, EnvTargetLocale, &cfg.TargetLocale)
	overrideString(lookup, EnvOutputDir, &cfg.OutputDir)
	overrideString(lookup, EnvModelPath, &cfg.ModelPath)
	overrideString(lookup, EnvFFmpegPath, &cfg.FFmpegPath)
	overrideString(lookup, EnvFFprobePath, &cfg.FFprobePath)
	overrideString(lookup, EnvWhisperPath, &cfg.WhisperPath)
	overrideString(lookup, EnvLogLevel, &cfg.LogLevel)

	mode := string(cfg.InputMode)
	overrideString(lookup, EnvInputMode, &mode)
	cfg.InputMode = domain.AudioInputMode(mode)

	format := string(cfg.SubtitleFormat)
	overrideString(lookup, EnvSubtitleFormat, &format)
	cfg.SubtitleFormat = domain.SubtitleFormat(format)

	if raw, ok := lookup(EnvAutoSpeak); ok && strings.TrimSpace(raw) != "" {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return domain.Settings{}, fmt.Errorf("config: %s: %w", EnvAutoSpeak, err)
		}
		cfg.AutoSpeak = v
	}

	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return domain.Settings{}, err
	}
	return cfg, nil
}

func (l Loader) lookup() func(string) (string, bool) {
	if l.Lookup == nil {
		return os.LookupEnv
	}
	return l.Lookup
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}
