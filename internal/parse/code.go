package parse

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	separatorRe = regexp.MustCompile(`[\s\-_.]+`)
	codeRe      = regexp.MustCompile(`^[A-Z0-9]+$`)
)

// CodeAlphabet is the set of characters room codes are drawn from.
const CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RoomCode normalizes a human-entered room code: surrounding whitespace and
// separators people type ("ab-c 123") are dropped and letters are upper-cased.
// The result must be exactly length characters of CodeAlphabet.
func RoomCode(raw string, length int) (string, error) {
	s := strings.TrimSpace(raw)
	s = separatorRe.ReplaceAllString(s, "")
	s = strings.ToUpper(s)

	if s == "" {
		return "", fmt.Errorf("empty room code")
	}
	if !codeRe.MatchString(s) {
		return "", fmt.Errorf("room code %q contains invalid characters", raw)
	}
	if len(s) != length {
		return "", fmt.Errorf("room code %q must have %d characters", raw, length)
	}
	return s, nil
}
