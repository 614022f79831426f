package bootstrap

import (
	"go.uber.org/zap"

	"live-translator/internal/access"
	"live-translator/internal/audio"
	"live-translator/internal/domain"
	"live-translator/internal/importer"
	"live-translator/internal/media"
	"live-translator/internal/segmentation"
	"live-translator/internal/speech"
	"live-translator/internal/subtitle"
	"live-translator/internal/synthesis"
	"live-translator/internal/translation"
)

// Services holds every collaborator the orchestrators are built from.
type Services struct {
	Capturer    audio.Capturer
	Recognizers map[domain.AudioSource]speech.Recognizer
	Translator  translation.Translator
	Synthesizer synthesis.Synthesizer

	// ImportRecognizer transcribes imported media; it is separate from the
	// live recognizers so a batch never competes with a conversation.
	ImportRecognizer speech.Recognizer
	Toolkit          importer.Toolkit
	Segmenter        segmentation.Segmenter
	Exporter         subtitle.Exporter
	Bookmarks        importer.Bookmarker
}

// ServiceOption overrides one collaborator.
type ServiceOption func(*Services)

// WithCapturer sets the audio capturer.
func WithCapturer(c audio.Capturer) ServiceOption {
	return func(s *Services) { s.Capturer = c }
}

// WithRecognizer sets the live recognizer for one source.
func WithRecognizer(source domain.AudioSource, r speech.Recognizer) ServiceOption {
	return func(s *Services) {
		if s.Recognizers == nil {
			s.Recognizers = make(map[domain.AudioSource]speech.Recognizer)
		}
		s.Recognizers[source] = r
	}
}

// WithTranslator sets the translator shared by both orchestrators.
func WithTranslator(t translation.Translator) ServiceOption {
	return func(s *Services) { s.Translator = t }
}

// WithSynthesizer sets the speech synthesizer.
func WithSynthesizer(syn synthesis.Synthesizer) ServiceOption {
	return func(s *Services) { s.Synthesizer = syn }
}

// WithImportRecognizer sets the recognizer used for media import.
func WithImportRecognizer(r speech.Recognizer) ServiceOption {
	return func(s *Services) { s.ImportRecognizer = r }
}

// WithToolkit sets the media toolkit.
func WithToolkit(t importer.Toolkit) ServiceOption {
	return func(s *Services) { s.Toolkit = t }
}

// WithExporter sets the subtitle exporter.
func WithExporter(e subtitle.Exporter) ServiceOption {
	return func(s *Services) { s.Exporter = e }
}

// NewServices builds production services for settings and applies opts.
// Live capture, recognition and translation default to the on-device stubs;
// media import runs ffmpeg and whisper.cpp.
func NewServices(settings domain.Settings, logger *zap.Logger, opts ...ServiceOption) Services {
	s := Services{
		Capturer: audio.NewStubCapturer(nil),
		Recognizers: map[domain.AudioSource]speech.Recognizer{
			domain.AudioSourceMicrophone:  speech.NewStubRecognizer(nil),
			domain.AudioSourceSystemAudio: speech.NewStubRecognizer(nil),
		},
		Translator:       translation.NewStubTranslator(nil),
		Synthesizer:      synthesis.NewRecordingSynthesizer(logger),
		ImportRecognizer: speech.NewWhisperRecognizer(settings.WhisperPath, settings.ModelPath, logger),
		Toolkit:          media.NewToolkit(settings.FFmpegPath, settings.FFprobePath, logger),
		Segmenter:        segmentation.NewSentenceSegmenter(logger),
		Exporter:         subtitle.NewFileExporter(logger),
		Bookmarks:        access.NewBookmarks(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// NewTestServices builds services from stubs only.
func NewTestServices(opts ...ServiceOption) Services {
	s := Services{
		Capturer: audio.NewStubCapturer(nil),
		Recognizers: map[domain.AudioSource]speech.Recognizer{
			domain.AudioSourceMicrophone:  speech.NewStubRecognizer(nil),
			domain.AudioSourceSystemAudio: speech.NewStubRecognizer(nil),
		},
		Translator:       translation.NewStubTranslator(nil),
		Synthesizer:      synthesis.NewRecordingSynthesizer(zap.NewNop()),
		ImportRecognizer: speech.NewStubRecognizer(nil),
		Toolkit:          media.NewToolkit("", "", zap.NewNop()),
		Segmenter:        segmentation.NewSentenceSegmenter(zap.NewNop()),
		Exporter:         subtitle.NewFileExporter(zap.NewNop()),
		Bookmarks:        access.NewBookmarks(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
