package domain

import "fmt"

// AudioSource identifies one of the two capture origins.
type AudioSource string

const (
	AudioSourceMicrophone  AudioSource = "microphone"
	AudioSourceSystemAudio AudioSource = "systemAudio"
)

// AudioInputMode selects which sources a conversation run captures.
type AudioInputMode string

const (
	InputModeSystemAudioOnly AudioInputMode = "systemAudioOnly"
	InputModeMicrophoneOnly  AudioInputMode = "microphoneOnly"
	InputModeBoth            AudioInputMode = "both"
)

// Sources returns the capture sources implied by the mode, microphone first.
func (m AudioInputMode) Sources() []AudioSource {
	switch m {
	case InputModeSystemAudioOnly:
		return []AudioSource{AudioSourceSystemAudio}
	case InputModeMicrophoneOnly:
		return []AudioSource{AudioSourceMicrophone}
	case InputModeBoth:
		return []AudioSource{AudioSourceMicrophone, AudioSourceSystemAudio}
	default:
		return nil
	}
}

// Valid reports whether the mode is one of the known values.
func (m AudioInputMode) Valid() bool {
	return len(m.Sources()) > 0
}

// SubtitleFormat is the file format produced by subtitle export.
type SubtitleFormat string

const (
	SubtitleFormatSRT SubtitleFormat = "srt"
	SubtitleFormatVTT SubtitleFormat = "vtt"
)

// Extension returns the file extension for the format, including the dot.
func (f SubtitleFormat) Extension() string {
	return "." + string(f)
}

// Valid reports whether the format is supported by the exporter.
func (f SubtitleFormat) Valid() bool {
	return f == SubtitleFormatSRT || f == SubtitleFormatVTT
}

// TranslationConfiguration is the immutable-until-replaced configuration a
// conversation run is started with.
type TranslationConfiguration struct {
	SourceLocale        string         `json:"sourceLocale"`
	TargetLocale        string         `json:"targetLocale"`
	AutoSpeak           bool           `json:"autoSpeak"`
	SpeechRate          float64        `json:"speechRate"`
	Voice               string         `json:"voice,omitempty"`
	InputMode           AudioInputMode `json:"inputMode"`
	AccurateRecognition bool           `json:"accurateRecognition"`
}

// LocalesFor returns the recognition locale and the translation direction
// for a source. The microphone speaks the source locale; system audio is
// assumed to carry the remote party speaking the target locale, so its
// direction is swapped.
func (c TranslationConfiguration) LocalesFor(source AudioSource) (from, to string) {
	if source == AudioSourceSystemAudio {
		return c.TargetLocale, c.SourceLocale
	}
	return c.SourceLocale, c.TargetLocale
}

// Validate checks the fields required to start a run.
func (c TranslationConfiguration) Validate() error {
	if c.SourceLocale == "" || c.TargetLocale == "" {
		return fmt.Errorf("source and target locale are required")
	}
	if !c.InputMode.Valid() {
		return fmt.Errorf("unknown audio input mode: %q", c.InputMode)
	}
	return nil
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	SourceLocale        string         `json:"sourceLocale" yaml:"source_locale"`
	TargetLocale        string         `json:"targetLocale" yaml:"target_locale"`
	InputMode           AudioInputMode `json:"inputMode" yaml:"input_mode"`
	AutoSpeak           bool           `json:"autoSpeak" yaml:"auto_speak"`
	SpeechRate          float64        `json:"speechRate" yaml:"speech_rate"`
	Voice               string         `json:"voice,omitempty" yaml:"voice,omitempty"`
	AccurateRecognition bool           `json:"accurateRecognition" yaml:"accurate_recognition"`
	OutputDir           string         `json:"outputDir" yaml:"output_dir"`
	SubtitleFormat      SubtitleFormat `json:"subtitleFormat" yaml:"subtitle_format"`
	Bilingual           bool           `json:"bilingual" yaml:"bilingual"`
	TranslationFirst    bool           `json:"translationFirst" yaml:"translation_first"`
	ModelPath           string         `json:"modelPath" yaml:"model_path"`
	FFmpegPath          string         `json:"ffmpegPath,omitempty" yaml:"ffmpeg_path,omitempty"`
	FFprobePath         string         `json:"ffprobePath,omitempty" yaml:"ffprobe_path,omitempty"`
	WhisperPath         string         `json:"whisperPath,omitempty" yaml:"whisper_path,omitempty"`
	LogLevel            string         `json:"logLevel,omitempty" yaml:"log_level,omitempty"`
}

// Translation projects the settings onto a conversation configuration.
func (s Settings) Translation() TranslationConfiguration {
	return TranslationConfiguration{
		SourceLocale:        s.SourceLocale,
		TargetLocale:        s.TargetLocale,
		AutoSpeak:           s.AutoSpeak,
		SpeechRate:          s.SpeechRate,
		Voice:               s.Voice,
		InputMode:           s.InputMode,
		AccurateRecognition: s.AccurateRecognition,
	}
}
