// Package locale wraps BCP-47 parsing and the language-family rules used by
// subtitle timing and segmentation.
package locale

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

var (
	japanese = language.Japanese
	chinese  = language.Chinese
	korean   = language.Korean
)

// Parse normalizes a locale identifier such as "en_US" or "ja-jp".
func Parse(raw string) (language.Tag, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(raw, "_", "-"))
	if trimmed == "" {
		return language.Und, fmt.Errorf("locale is required")
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return language.Und, fmt.Errorf("invalid locale %q: %w", raw, err)
	}
	return tag, nil
}

// Canonical returns the canonical BCP-47 string for raw, or raw unchanged
// when it cannot be parsed.
func Canonical(raw string) string {
	tag, err := Parse(raw)
	if err != nil {
		return raw
	}
	return tag.String()
}

// Language returns the base language subtag ("ja" for "ja-JP").
func Language(raw string) string {
	tag, err := Parse(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	base, _ := tag.Base()
	return base.String()
}

// IsCJK reports whether the locale belongs to the Chinese, Japanese or
// Korean family.
func IsCJK(raw string) bool {
	switch Language(raw) {
	case base(japanese), base(chinese), base(korean):
		return true
	default:
		return false
	}
}

// IsJapanese reports whether the locale is Japanese.
func IsJapanese(raw string) bool {
	return Language(raw) == base(japanese)
}

// SameLanguage reports whether two locales share a base language.
func SameLanguage(a, b string) bool {
	return Language(a) == Language(b)
}

func base(tag language.Tag) string {
	b, _ := tag.Base()
	return b.String()
}
