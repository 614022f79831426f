package translation

import (
	"context"
	"errors"
	"testing"

	"live-translator/internal/domain"
)

// TestStubTranslatorDictionary uses the dictionary and tagged passthrough.
func TestStubTranslatorDictionary(t *testing.T) {
	tr := NewStubTranslator(nil)

	got, err := tr.Translate(context.Background(), " Hello ", "en-US", "ja-JP")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "こんにちは" {
		t.Fatalf("Translate() = %q", got)
	}

	got, err = tr.Translate(context.Background(), "Unknown words", "en-US", "fr-FR")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "[fr] Unknown words" {
		t.Fatalf("Translate() = %q", got)
	}
}

// TestStubTranslatorUnsupportedPair returns a typed error.
func TestStubTranslatorUnsupportedPair(t *testing.T) {
	tr := NewStubTranslator(nil)
	if tr.IsLanguagePairSupported("en-US", "sw") {
		t.Fatal("expected en->sw to be unsupported")
	}
	_, err := tr.Translate(context.Background(), "Hi", "en-US", "sw")
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Kind != domain.ServiceLanguagePairUnsupported {
		t.Fatalf("expected languagePairUnsupported, got %v", err)
	}
}

// TestStubTranslatorRequiresSession enforces session setup when configured.
func TestStubTranslatorRequiresSession(t *testing.T) {
	cfg := DefaultStubTranslatorConfig()
	cfg.RequireSession = true
	tr := NewStubTranslator(cfg)

	_, err := tr.Translate(context.Background(), "Hello", "en", "ja")
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Kind != domain.ServiceNoTranslationSession {
		t.Fatalf("expected noTranslationSession, got %v", err)
	}

	tr.SetSession(PairSession{From: "en", To: "ja"})
	if !tr.HasSession() {
		t.Fatal("expected session")
	}
	if _, err := tr.Translate(context.Background(), "Hello", "en", "ja"); err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
}
