package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/flashcard-mcp/internal/domain"
	"github.com/go-playground/validator/v10"
)

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fe.Field() + " is invalid"
	}
}

func projectNotFound(deck *domain.Deck, name string) string {
	available := strings.Join(deck.ProjectNames(), ", ")
	if available == "" {
		available = "none"
	}
	return fmt.Sprintf("Project %q not found. Available projects: %s. Create one first with create_project.", name, available)
}

func cardNotFound(id string) string {
	return fmt.Sprintf("Flashcard %s not found.", id)
}

func countCards(deck *domain.Deck, project string, now time.Time) (total, due int) {
	for _, c := range deck.Flashcards {
		if c.Project != project {
			continue
		}
		total++
		if c.IsDue(now) {
			due++
		}
	}
	return total, due
}

// filterCards copies the cards matching project, tag and keep. Empty filters match everything.
func filterCards(cards []domain.Flashcard, project, tag string, keep func(domain.Flashcard) bool) []domain.Flashcard {
	out := make([]domain.Flashcard, 0, len(cards))
	for _, c := range cards {
		if project != "" && c.Project != project {
			continue
		}
		if tag != "" && !c.HasTag(tag) {
			continue
		}
		if keep != nil && !keep(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// uniqueTags drops blank and repeated tags, keeping first-seen order.
func uniqueTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return "none"
	}
	return strings.Join(tags, ", ")
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
