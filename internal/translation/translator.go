// Package translation defines the session-based text translator boundary.
package translation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"live-translator/internal/domain"
	"live-translator/internal/locale"
)

// Session is an opaque handle to a prepared translation engine.
type Session interface {
	SourceLocale() string
	TargetLocale() string
}

// Translator translates text between a declared language pair.
type Translator interface {
	SetSession(session Session)
	HasSession() bool
	Translate(ctx context.Context, text, from, to string) (string, error)
	IsLanguagePairSupported(from, to string) bool
}

// PairSession is a plain Session for a language pair.
type PairSession struct {
	From string
	To   string
}

// SourceLocale returns the source side.
func (s PairSession) SourceLocale() string { return s.From }

// TargetLocale returns the target side.
func (s PairSession) TargetLocale() string { return s.To }

// StubTranslatorConfig configures the stub translator behavior.
type StubTranslatorConfig struct {
	// Dictionary maps target language -> source text -> translation.
	// Unknown text is returned with a "[lang] " prefix.
	Dictionary map[string]map[string]string
	// Languages lists the base languages any pair may combine.
	Languages []string
	// RequireSession rejects Translate until SetSession is called.
	RequireSession bool
}

// DefaultStubTranslatorConfig returns a small English/Japanese dictionary.
func DefaultStubTranslatorConfig() *StubTranslatorConfig {
	return &StubTranslatorConfig{
		Dictionary: map[string]map[string]string{
			"ja": {
				"Hello":                  "こんにちは",
				"Hello, how are you?":    "こんにちは、お元気ですか？",
				"Thank you for joining.": "ご参加ありがとうございます。",
			},
			"en": {
				"こんにちは":         "Hello",
				"ありがとうございます。": "Thank you.",
			},
		},
		Languages: []string{"en", "ja", "zh", "ko", "es", "fr", "de"},
	}
}

// StubTranslator returns deterministic translations.
type StubTranslator struct {
	config *StubTranslatorConfig

	mu      sync.RWMutex
	session Session
}

// NewStubTranslator creates a stub translator with the given config.
func NewStubTranslator(config *StubTranslatorConfig) *StubTranslator {
	if config == nil {
		config = DefaultStubTranslatorConfig()
	}
	return &StubTranslator{config: config}
}

// SetSession installs the engine handle.
func (s *StubTranslator) SetSession(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// HasSession reports whether a session is installed.
func (s *StubTranslator) HasSession() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}

// Translate looks text up in the dictionary.
func (s *StubTranslator) Translate(ctx context.Context, text, from, to string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.config.RequireSession && !s.HasSession() {
		return "", domain.NewServiceError(domain.ServiceNoTranslationSession, "", nil)
	}
	if !s.IsLanguagePairSupported(from, to) {
		return "", domain.NewServiceError(domain.ServiceLanguagePairUnsupported, fmt.Sprintf("%s -> %s", from, to), nil)
	}

	trimmed := strings.TrimSpace(text)
	if locale.SameLanguage(from, to) {
		return trimmed, nil
	}
	lang := locale.Language(to)
	if translated, ok := s.config.Dictionary[lang][trimmed]; ok {
		return translated, nil
	}
	return "[" + lang + "] " + trimmed, nil
}

// IsLanguagePairSupported reports whether both sides are known languages.
func (s *StubTranslator) IsLanguagePairSupported(from, to string) bool {
	return s.knows(from) && s.knows(to)
}

func (s *StubTranslator) knows(loc string) bool {
	lang := locale.Language(loc)
	for _, l := range s.config.Languages {
		if l == lang {
			return true
		}
	}
	return false
}
