package views

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ansiRe matches CSI and OSC escape sequences a peer could embed to move the
// cursor or retitle the terminal.
var ansiRe = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[ -/]*[@-~]|\][^\x07\x1b]*(?:\x07|\x1b\\))`)

// sanitizeForTerminal removes text that breaks tcell rendering: escape
// sequences, control characters other than newline and tab, and the emoji
// modifiers tcell miscounts (skin tones, ZWJ, variation selectors). This
// turns e.g. 👍🏻 into 👍 which renders as a 2-cell-wide character.
func sanitizeForTerminal(s string) string {
	s = ansiRe.ReplaceAllString(s, "")
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isProblematicRune(r) {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

// singleLine sanitizes s and folds line breaks, for table cells.
func singleLine(s string) string {
	return strings.Join(strings.Fields(sanitizeForTerminal(s)), " ")
}

func isProblematicRune(r rune) bool {
	switch {
	case r == '\n' || r == '\t':
		return false
	case r == utf8.RuneError:
		return true
	case unicode.IsControl(r):
		return true
	// Skin tone modifiers.
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	// Zero Width Joiner.
	case r == 0x200D:
		return true
	// Variation Selectors.
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	// Variation Selectors Supplement.
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}
