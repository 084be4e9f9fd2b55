// Package knol derives a stable identity for flashcard content so the same
// card imported twice is recognised.
package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize joins front and back after lowercasing, trimming and normalizing
// line endings of each part.
func Normalize(front, back string) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return strings.TrimSpace(p)
	}

	// Joined with a newline so "ab"+"c" and "a"+"bc" differ.
	return normalizePart(front) + "\n" + normalizePart(back)
}

// Hash returns the hex SHA-256 of the normalized content.
func Hash(front, back string) string {
	sum := sha256.Sum256([]byte(Normalize(front, back)))
	return fmt.Sprintf("%x", sum)
}
