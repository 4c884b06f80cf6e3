// ABOUTME: Inbound text parsing into Help, Stats, or PlainText
// ABOUTME: Pure function of the input; unknown !-words fall through to chat

package command

import "strings"

// Prefix marks a message as a command attempt.
const Prefix = "!"

// Kind identifies which command a message parsed to.
type Kind int

const (
	// KindPlainText is ordinary chat text destined for the backend.
	KindPlainText Kind = iota
	// KindHelp is the !help command.
	KindHelp
	// KindStats is the !stats command.
	KindStats
)

// Command is the parse result for one inbound message. A message is exactly
// one variant; Text carries the original, untrimmed message for PlainText.
type Command struct {
	Kind Kind
	Text string
}

// Parse inspects raw message text for a command. Detection trims surrounding
// whitespace and matches the first !-prefixed word case-insensitively.
// Unknown !-words are treated as plain chat text so an accidental "!" never
// makes a message silently vanish.
func Parse(raw string) Command {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, Prefix) {
		return Command{Kind: KindPlainText, Text: raw}
	}

	word, _, _ := strings.Cut(trimmed[len(Prefix):], " ")
	switch strings.ToLower(word) {
	case "help":
		return Command{Kind: KindHelp}
	case "stats":
		return Command{Kind: KindStats}
	default:
		return Command{Kind: KindPlainText, Text: raw}
	}
}
