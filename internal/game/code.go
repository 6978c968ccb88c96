package game

import (
	"crypto/rand"
	"fmt"
	"io"

	"bingo-room-backend/internal/parse"
)

// codeByteLimit is the largest multiple of the alphabet size that fits in a
// byte. Bytes at or above it are discarded so every character is equally
// likely.
const codeByteLimit = 256 - 256%len(parse.CodeAlphabet)

// newCode returns a random room code of the given length.
func newCode(length int) (string, error) {
	return readCode(rand.Reader, length)
}

func readCode(r io.Reader, length int) (string, error) {
	code := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(code) < length {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= codeByteLimit {
				continue
			}
			code = append(code, parse.CodeAlphabet[int(b)%len(parse.CodeAlphabet)])
			if len(code) == length {
				break
			}
		}
	}
	return string(code), nil
}
