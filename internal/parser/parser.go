// Package parser extracts flashcards from markdown notes.
//
// A card starts with a "Q:" line, its back starts with "A:" and an optional
// "T:" line lists comma-separated tags. Continuation lines belong to the
// current block. A "---" line or the next "Q:" ends the card.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	tagsPrefix     = "T:"
	separator      = "---"
)

// Card is a flashcard as written in a markdown file.
type Card struct {
	Front string
	Back  string
	Tags  []string
}

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingTags
)

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. Cards without both a
// question and an answer are dropped.
func Parse(r io.Reader) ([]Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []Card
	var current Card
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch currentState {
		case readingQuestion:
			current.Front = content
		case readingAnswer:
			current.Back = content
		case readingTags:
			current.Tags = append(current.Tags, splitTags(content)...)
		}
		block = nil
	}

	finishCard := func() {
		flushBlock()
		if current.Front != "" && current.Back != "" {
			cards = append(cards, current)
		}
		current = Card{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.TrimSpace(line) == separator {
			finishCard()
			continue
		}

		next, content, ok := blockStart(line)
		if !ok {
			if currentState != seeking {
				block = append(block, line)
			}
			continue
		}

		if next == readingQuestion && currentState != seeking {
			// A new question always starts a new card.
			finishCard()
		} else {
			flushBlock()
		}
		currentState = next
		block = append(block, content)
	}

	finishCard() // the last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

// blockStart reports whether line opens a Q, A or T block and returns the
// text after the prefix.
func blockStart(line string) (state, string, bool) {
	for prefix, s := range map[string]state{
		questionPrefix: readingQuestion,
		answerPrefix:   readingAnswer,
		tagsPrefix:     readingTags,
	} {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return s, strings.TrimPrefix(rest, " "), true
		}
	}
	return seeking, "", false
}

func splitTags(s string) []string {
	var tags []string
	for _, tag := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' }) {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
