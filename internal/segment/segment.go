// ABOUTME: Reply segmentation for transport-sized delivery
// ABOUTME: Splits at whitespace where possible, never inside a multi-byte character

package segment

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength is the default segment size in bytes. It matches the
// long-message cap of the Twilio Messages API, which handles carrier-level
// concatenation below that size itself.
const DefaultMaxLength = 1600

// breakSet are the characters we prefer to split on.
const breakSet = " \t\n"

// Split divides text into ordered segments of at most max bytes. The split
// point is the last whitespace at or before the limit; a single unbroken
// token longer than the limit is hard-split at a rune boundary. Empty input
// yields no segments. max <= 0 disables splitting.
func Split(text string, max int) []string {
	if text == "" {
		return nil
	}
	if max <= 0 || len(text) <= max {
		return []string{text}
	}

	var segs []string
	rest := text
	for len(rest) > max {
		cut, skip := breakPoint(rest, max)
		segs = append(segs, rest[:cut])
		rest = strings.TrimLeft(rest[cut+skip:], breakSet)
	}
	if rest != "" {
		segs = append(segs, rest)
	}
	return segs
}

// breakPoint returns the index to cut at and how many separator bytes to
// drop after the cut. Whitespace within the limit wins; otherwise the cut
// is the largest rune boundary at or below max.
func breakPoint(rest string, max int) (cut, skip int) {
	if i := strings.LastIndexAny(rest[:max+1], breakSet); i > 0 {
		return i, 1
	}

	cut = max
	for cut > 0 && !utf8.RuneStart(rest[cut]) {
		cut--
	}
	if cut == 0 {
		// First rune is wider than the limit; emit it whole rather
		// than corrupt it.
		_, cut = utf8.DecodeRuneInString(rest)
	}
	return cut, 0
}
