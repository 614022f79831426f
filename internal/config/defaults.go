package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"live-translator/internal/domain"
	"live-translator/internal/logging"
	"live-translator/internal/speech"
)

const (
	DefaultSourceLocale = "en-US"
	DefaultTargetLocale = "ja-JP"
	DefaultSpeechRate   = 0.5
	DefaultLogLevel     = "info"
	appDirName          = ".live-translator"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	model, _ := speech.ModelByID(speech.DefaultModelID)
	return domain.Settings{
		SourceLocale:   DefaultSourceLocale,
		TargetLocale:   DefaultTargetLocale,
		InputMode:      domain.InputModeBoth,
		SpeechRate:     DefaultSpeechRate,
		OutputDir:      filepath.Join(homeDir, "Documents", "Subtitles"),
		SubtitleFormat: domain.SubtitleFormatSRT,
		ModelPath:      filepath.Join(homeDir, appDirName, "models", model.FileName),
		LogLevel:       DefaultLogLevel,
	}
}

// DefaultSettingsPath is where the desktop app keeps its settings file.
func DefaultSettingsPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, appDirName, "settings.json")
}

// Normalize trims every field and fills empty ones from defaults.
func Normalize(s domain.Settings) domain.Settings {
	defaults := DefaultSettings()

	s.SourceLocale = orDefault(s.SourceLocale, defaults.SourceLocale)
	s.TargetLocale = orDefault(s.TargetLocale, defaults.TargetLocale)
	s.InputMode = domain.AudioInputMode(orDefault(string(s.InputMode), string(defaults.InputMode)))
	s.SubtitleFormat = domain.SubtitleFormat(strings.ToLower(orDefault(string(s.SubtitleFormat), string(defaults.SubtitleFormat))))
	s.OutputDir = orDefault(s.OutputDir, defaults.OutputDir)
	s.ModelPath = orDefault(s.ModelPath, defaults.ModelPath)
	s.LogLevel = strings.ToLower(orDefault(s.LogLevel, defaults.LogLevel))
	s.Voice = strings.TrimSpace(s.Voice)
	s.FFmpegPath = strings.TrimSpace(s.FFmpegPath)
	s.FFprobePath = strings.TrimSpace(s.FFprobePath)
	s.WhisperPath = strings.TrimSpace(s.WhisperPath)
	if s.SpeechRate <= 0 {
		s.SpeechRate = defaults.SpeechRate
	}
	return s
}

// Validate rejects settings the app cannot run with.
func Validate(s domain.Settings) error {
	if err := s.Translation().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !s.SubtitleFormat.Valid() {
		return fmt.Errorf("config: unknown subtitle format: %q", s.SubtitleFormat)
	}
	if s.SpeechRate < 0 || s.SpeechRate > 1 {
		return fmt.Errorf("config: speech rate must be within [0, 1], got %v", s.SpeechRate)
	}
	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
