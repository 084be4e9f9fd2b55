// Package tools implements the flashcard operations exposed to MCP clients.
// Every operation loads the whole deck, works on it in memory, saves it back
// when something changed and answers with human-readable text.
package tools

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/conorfennell/flashcard-mcp/internal/domain"
	"github.com/conorfennell/flashcard-mcp/internal/srs"
	"github.com/conorfennell/flashcard-mcp/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrInvalidArgument wraps every argument validation failure.
var ErrInvalidArgument = errors.New("invalid argument")

const defaultDueLimit = 10

// Service runs tool operations against a store.
type Service struct {
	store    store.Store
	now      func() time.Time
	newID    func() string
	validate *validator.Validate
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for timestamps and due checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator sets the flashcard id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService returns a Service over st.
func NewService(st store.Store, opts ...Option) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	s := &Service{
		store:    st,
		now:      time.Now,
		newID:    uuid.NewString,
		validate: v,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListProjects summarizes every project with its card and due counts.
func (s *Service) ListProjects(ctx context.Context) (string, error) {
	deck, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if len(deck.Projects) == 0 {
		return "No projects yet. Create one with create_project.", nil
	}

	now := s.now()
	lines := make([]string, 0, len(deck.Projects))
	for _, p := range deck.Projects {
		total, due := countCards(deck, p.Name, now)
		lines = append(lines, fmt.Sprintf("- %s: %s (%d cards, %d due)", p.Name, p.Description, total, due))
	}
	return strings.Join(lines, "\n"), nil
}

// CreateProject adds a project. Names are unique.
func (s *Service) CreateProject(ctx context.Context, args CreateProjectArgs) (string, error) {
	if err := s.check(args); err != nil {
		return "", err
	}
	deck, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if deck.FindProject(args.Name) != nil {
		return fmt.Sprintf("Project %q already exists.", args.Name), nil
	}

	deck.Projects = append(deck.Projects, domain.Project{
		Name:        args.Name,
		Description: args.Description,
		Memory:      "",
		CreatedAt:   s.now().UTC(),
	})
	if err := s.store.Save(ctx, deck); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created project %q: %s", args.Name, args.Description), nil
}

// GetProject shows a project's details including its memory text.
func (s *Service) GetProject(ctx context.Context, args GetProjectArgs) (string, error) {
	if err := s.check(args); err != nil {
		return "", err
	}
	deck, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	p := deck.FindProject(args.Name)
	if p == nil {
		return projectNotFound(deck, args.Name), nil
	}

	total, due := countCards(deck, p.Name, s.now())
	memory := p.Memory
	if memory == "" {
		memory = "(empty)"
	}
	return fmt.Sprintf("Project: %s\nDescription: %s\nCreated: %s\nCards: %d (%d due)\n\nMemory:\n%s",
		p.Name, p.Description, formatDate(p.CreatedAt), total, due, memory), nil
}

// UpdateProject changes a project's description and/or memory.
func (s *Service) UpdateProject(ctx context.Context, args UpdateProjectArgs) (string, error) {
	if err := s.check(args); err != nil {
		return "", err
	}
	deck, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	p := deck.FindProject(args.Name)
	if p == nil {
		return projectNotFound(deck, args.Name), nil
	}
	if args.Description == nil && args.Memory == nil {
		return "Nothing to update: provide at least one of description or memory.", nil
	}

	if args.Description != nil {
		p.Description = *args.Description
	}
	if args.Memory != nil {
		p.Memory = *args.Memory
	}
	if err := s.store.Save(ctx, deck); err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated project %q.", p.Name), nil
}

// CreateFlashcard adds a new card, due immediately, to an existing project.
func (s *Service) CreateFlashcard(ctx context.Context, args CreateFlashcardArgs) (string, error) {
	if err := s.check(args); err != nil {
		return "", err
	}
	deck, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if deck.FindProject(args.Project) == nil {
		return projectNotFound(deck, args.Project), nil
	}

	card := NewFlashcard(s.newID(), args.Project, args.Front, args.Back, args.Tags, s.now())
	deck.Flashcards = append(deck.Flashcards, card)
	if err := s.store.Save(ctx, deck); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created flashcard in %q (%s):\nFront: %s\nBack: %s\nTags: %s",
		card.Project, card.ID, card.Front, card.Back, formatTags(card.Tags)), nil
}

// NewFlashcard builds a never-reviewed card.
func NewFlashcard(id, project, front, back string, tags []string, now time.Time) domain.Flashcard {
	state := srs.New(now)
	return domain.Flashcard{
		ID:           id,
		Project:      project,
		Front:        front,
		Back:         back,
		Tags:         uniqueTags(tags),
		CreatedAt:    now.UTC(),
		NextReview:   state.NextReview,
		IntervalDays: state.IntervalDays,
		EaseFactor:   state.EaseFactor,
		Repetitions:  state.Repetitions,
	}
}

// EditFlashcard replaces any of front, back and tags.
func (s *Service) EditFlashcard(ctx context.Context, args EditFlashcardArgs) (string, error) {
	if err := s.check(args); err != nil {
		return "", err
	}
	deck, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	idx := deck.FindFlashcard(args.ID)
	if idx == -1 {
		return cardNotFound(args.ID), nil
	}
	if args.Front == nil && args.Back == nil && args.Tags == nil {
		return "Nothing to update: provide at least one of front, back, or tags.", nil
	}

	card := &deck.Flashcards[idx]
	if args.Front != nil {
		card.Front = *args.Front
	}
	if args.Back != nil {
		card.Back = *args.Back
	}
	if args.Tags != nil {
		card.Tags = uniqueTags(*args.Tags)
	}
	if err := s.store.Save(ctx, deck); err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated flashcard (%s):\nFront: %s\nBack: %s\nTags: %s",
		card.ID, card.Front, card.Back, formatTags(card.Tags)), nil
}

// DueFlashcards lists cards whose next review is not in the future, oldest first.
func (s *Service) DueFlashcards(ctx context.Context, args DueFlashcardsArgs) (string, error) {
	if err := s.check(args); err != nil {
		return "", err
	}
	deck, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}

	now := s.now()
	due := filterCards(deck.Flashcards, args.Project, args.Tag, func(c domain.Flashcard) bool {
		return c.IsDue(now)
	})
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextReview.Before(due[j].NextReview)
	})

	limit := defaultDueLimit
	if args.Limit != nil {
		limit = *args.Limit
	}
	if len(due) > limit {
		due = due[:limit]
	}

	if len(due) == 0 {
		return "No flashcards due for review right now.", nil
	}

	entries := make([]string, 0, len(due))
	for i, c := range due {
		entries = append(entries, fmt.Sprintf("%d. [%s] (%s)\n   Front: %s\n   Tags: %s",
			i+1, c.ID, c.Project, c.Front, formatTags(c.Tags)))
	}
	return fmt.Sprintf("%d flashcard(s) due:\n\n%s", len(due), strings.Join(entries, "\n\n")), nil
}

// ReviewFlashcard records a review graded 1 (forgot) to 4 (easy).
func (s *Service) ReviewFlashcard(ctx context.Context, args ReviewFlashcardArgs) (string, error) {
	if err := s.check(args); err != nil {
		return "", err
	}
	quality := srs.Rating(args.Quality)
	if !quality.Valid() {
		return "", fmt.Errorf("%w: quality must be between 1 and 4", ErrInvalidArgument)
	}
	deck, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	idx := deck.FindFlashcard(args.ID)
	if idx == -1 {
		return cardNotFound(args.ID), nil
	}

	card := &deck.Flashcards[idx]
	next := srs.Schedule(srs.State{
		IntervalDays: card.IntervalDays,
		EaseFactor:   card.EaseFactor,
		Repetitions:  card.Repetitions,
		NextReview:   card.NextReview,
	}, quality, s.now())

	card.IntervalDays = next.IntervalDays
	card.EaseFactor = next.EaseFactor
	card.Repetitions = next.Repetitions
	card.NextReview = next.NextReview

	if err := s.store.Save(ctx, deck); err != nil {
		return "", err
	}
	return fmt.Sprintf("Reviewed! Next review in %d day(s) (%s).", card.IntervalDays, formatDate(card.NextReview)), nil
}

// FlashcardAnswer reveals both sides of a card.
func (s *Service) FlashcardAnswer(ctx context.Context, args FlashcardIDArgs) (string, error) {
	if err := s.check(args); err != nil {
		return "", err
	}
	deck, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	idx := deck.FindFlashcard(args.ID)
	if idx == -1 {
		return cardNotFound(args.ID), nil
	}
	card := deck.Flashcards[idx]
	return fmt.Sprintf("Front: %s\nBack: %s", card.Front, card.Back), nil
}

// ListFlashcards lists cards with filtering, ordering and offset/limit paging.
func (s *Service) ListFlashcards(ctx context.Context, args ListFlashcardsArgs) (string, error) {
	if err := s.check(args); err != nil {
		return "", err
	}
	deck, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}

	cards := filterCards(deck.Flashcards, args.Project, args.Tag, nil)
	if len(cards) == 0 {
		var filters []string
		if args.Project != "" {
			filters = append(filters, fmt.Sprintf("project %q", args.Project))
		}
		if args.Tag != "" {
			filters = append(filters, fmt.Sprintf("tag %q", args.Tag))
		}
		if len(filters) > 0 {
			return fmt.Sprintf("No flashcards matching %s.", strings.Join(filters, " and ")), nil
		}
		return "No flashcards yet.", nil
	}

	field := func(c domain.Flashcard) time.Time { return c.CreatedAt }
	if args.OrderBy == "next_review" {
		field = func(c domain.Flashcard) time.Time { return c.NextReview }
	}
	desc := args.Order == "desc"
	sort.SliceStable(cards, func(i, j int) bool {
		if desc {
			return field(cards[i]).After(field(cards[j]))
		}
		return field(cards[i]).Before(field(cards[j]))
	})

	total := len(cards)
	start := min(args.Offset, total)
	end := total
	if args.Limit != nil {
		end = min(start+*args.Limit, total)
	}
	page := cards[start:end]

	now := s.now()
	entries := make([]string, 0, len(page))
	for i, c := range page {
		status := "DUE"
		if !c.IsDue(now) {
			status = "next: " + formatDate(c.NextReview)
		}
		entries = append(entries, fmt.Sprintf("%d. [%s] (%s)\n   Front: %s\n   Tags: %s\n   Status: %s",
			start+i+1, c.ID, c.Project, c.Front, formatTags(c.Tags), status))
	}

	var paging string
	if args.Limit != nil {
		paging = fmt.Sprintf("\n\nShowing %d-%d of %d", start+1, start+len(page), total)
	}

	var tags []string
	for _, c := range page {
		tags = append(tags, c.Tags...)
	}
	return fmt.Sprintf("%d flashcard(s):%s\n\n%s\n\nAll tags: %s",
		total, paging, strings.Join(entries, "\n\n"), formatTags(uniqueTags(tags))), nil
}

// DeleteFlashcard removes a card.
func (s *Service) DeleteFlashcard(ctx context.Context, args FlashcardIDArgs) (string, error) {
	if err := s.check(args); err != nil {
		return "", err
	}
	deck, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	idx := deck.FindFlashcard(args.ID)
	if idx == -1 {
		return cardNotFound(args.ID), nil
	}

	removed := deck.Flashcards[idx]
	deck.Flashcards = append(deck.Flashcards[:idx], deck.Flashcards[idx+1:]...)
	if err := s.store.Save(ctx, deck); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted flashcard: %s", removed.Front), nil
}

// check validates args and turns validator output into ErrInvalidArgument.
func (s *Service) check(args any) error {
	err := s.validate.Struct(args)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidArgument, strings.Join(msgs, "; "))
}
