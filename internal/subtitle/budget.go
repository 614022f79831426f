package subtitle

import "live-translator/internal/locale"

// CharacterBudget is the per-locale line limit from Netflix Timed Text
// guidance.
type CharacterBudget struct {
	PerLine int
	Lines   int
}

// MaxChars is the total characters a single subtitle may hold.
func (b CharacterBudget) MaxChars() int {
	return b.PerLine * b.Lines
}

// BudgetFor returns the character budget for a locale.
func BudgetFor(loc string) CharacterBudget {
	switch {
	case locale.IsJapanese(loc):
		return CharacterBudget{PerLine: 13, Lines: 2}
	case locale.IsCJK(loc):
		return CharacterBudget{PerLine: 16, Lines: 2}
	default:
		return CharacterBudget{PerLine: 42, Lines: 2}
	}
}
