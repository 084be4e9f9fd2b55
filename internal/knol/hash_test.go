package knol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	normalized := Normalize("  What is HTMX? \r\n", "A library for\r\nAJAX.")
	assert.Equal(t, "what is htmx?\na library for\najax.", normalized)
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		// sha256 of "q\na"
		assert.Equal(t, "27d2d5c8276a1f606af38834a9294ae5d3bfc6c5097c03e3fdd6e8c5c37e2ba7", Hash("Q", "A"))
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		want := "591bde28187c7e1ee17d23be2885772bee5da77bdb79c55a48e6a719eef1a1d6"
		assert.Equal(t, want, Hash("  what is go? ", "A programming language."))
		assert.Equal(t, want, Hash("What Is Go?", "A programming language.\r\n"))
	})

	t.Run("field boundary matters", func(t *testing.T) {
		assert.NotEqual(t, Hash("ab", "c"), Hash("a", "bc"))
	})

	t.Run("different cards have different hashes", func(t *testing.T) {
		assert.NotEqual(t, Hash("Card 1", "x"), Hash("Card 2", "x"))
	})
}
