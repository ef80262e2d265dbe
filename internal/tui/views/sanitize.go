package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal drops runes that tcell draws badly or that let a
// contact's text rearrange the screen: emoji modifiers and joiners (a
// thumbs-up with a skin tone becomes a plain thumbs-up), variation
// selectors, bidi overrides and control characters. Newlines survive and
// tabs become spaces.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t':
			return ' '
		case unsafeRune(r):
			return -1
		}
		return r
	}, s)
}

// singleLine sanitizes s and folds it onto one line for table cells.
func singleLine(s string) string {
	return strings.Join(strings.Fields(sanitizeForTerminal(s)), " ")
}

func unsafeRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		return true
	case r == 0x200D: // zero width joiner
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF: // variation selectors
		return true
	case r >= 0x202A && r <= 0x202E, r >= 0x2066 && r <= 0x2069: // bidi embeddings and isolates
		return true
	}
	return unicode.IsControl(r)
}
