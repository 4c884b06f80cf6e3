// Package command parses inbound message text into the closed set of
// gateway commands. Anything that is not a recognized !-prefixed command
// is plain chat text.
package command
