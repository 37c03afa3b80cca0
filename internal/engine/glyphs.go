package engine

import "github.com/MarcoPoloResearchLab/faceoff/internal/ledger"

// Reaction glyphs rendered on every poll. These are the only toggles the
// state machine resolves; any other reaction is ignored.
const (
	GlyphYes   = "✅"
	GlyphNo    = "❌"
	GlyphMaybe = "🤷"
)

// choiceForGlyph resolves a reaction glyph to the canonical choice. The
// second return distinguishes "not a choice glyph, ignore" from a match.
func choiceForGlyph(glyph string) (ledger.Choice, bool) {
	switch glyph {
	case GlyphYes:
		return ledger.ChoiceYes, true
	case GlyphNo:
		return ledger.ChoiceNo, true
	case GlyphMaybe:
		return ledger.ChoiceMaybe, true
	}
	return "", false
}

func glyphForChoice(choice ledger.Choice) string {
	switch choice {
	case ledger.ChoiceYes:
		return GlyphYes
	case ledger.ChoiceNo:
		return GlyphNo
	case ledger.ChoiceMaybe:
		return GlyphMaybe
	}
	return ""
}

func labelForChoice(choice ledger.Choice) string {
	switch choice {
	case ledger.ChoiceYes:
		return "Yes"
	case ledger.ChoiceNo:
		return "No"
	case ledger.ChoiceMaybe:
		return "Maybe"
	}
	return ""
}
