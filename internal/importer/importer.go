// Package importer adds flashcards written as markdown notes to a project.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/flashcard-mcp/internal/gitsource"
	"github.com/conorfennell/flashcard-mcp/internal/knol"
	"github.com/conorfennell/flashcard-mcp/internal/parser"
	"github.com/conorfennell/flashcard-mcp/internal/store"
	"github.com/conorfennell/flashcard-mcp/internal/tools"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrProjectNotFound is returned when the target project does not exist.
var ErrProjectNotFound = errors.New("project not found")

// DefaultReposDir holds checkouts of remote sources.
const DefaultReposDir = "repos"

// Result summarises one import run.
type Result struct {
	Files   int
	Parsed  int
	Added   int
	Skipped int
	// Errors are per-file parse failures; they do not abort the run.
	Errors []error
}

// Importer reconciles markdown sources into the deck.
type Importer struct {
	store    store.Store
	logger   zerolog.Logger
	reposDir string
	now      func() time.Time
	newID    func() string
}

// Option configures an Importer.
type Option func(*Importer)

// WithReposDir sets where remote sources are checked out.
func WithReposDir(dir string) Option {
	return func(im *Importer) { im.reposDir = dir }
}

// WithClock sets the clock used for new cards.
func WithClock(now func() time.Time) Option {
	return func(im *Importer) { im.now = now }
}

// WithIDGenerator sets the flashcard id generator.
func WithIDGenerator(newID func() string) Option {
	return func(im *Importer) { im.newID = newID }
}

// New returns an Importer writing to st.
func New(st store.Store, logger zerolog.Logger, opts ...Option) *Importer {
	im := &Importer{
		store:    st,
		logger:   logger,
		reposDir: DefaultReposDir,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Import parses every .md file under source and appends cards whose content
// is not already in the project. source is a directory or a git URL.
func (im *Importer) Import(ctx context.Context, project, source string) (*Result, error) {
	dir := source
	if gitsource.IsRemote(source) {
		localPath, err := gitsource.LocalPath(im.reposDir, source)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create repos directory: %w", err)
		}
		if err := gitsource.Sync(ctx, source, localPath, im.logger); err != nil {
			return nil, err
		}
		dir = localPath
	}

	deck, err := im.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if deck.FindProject(project) == nil {
		return nil, fmt.Errorf("%w: %q", ErrProjectNotFound, project)
	}

	known := make(map[string]bool)
	for _, card := range deck.Flashcards {
		if card.Project == project {
			known[knol.Hash(card.Front, card.Back)] = true
		}
	}

	result := &Result{}
	now := im.now()
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		result.Files++
		cards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			result.Errors = append(result.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		for _, card := range cards {
			result.Parsed++
			hash := knol.Hash(card.Front, card.Back)
			if known[hash] {
				result.Skipped++
				continue
			}
			known[hash] = true
			deck.Flashcards = append(deck.Flashcards,
				tools.NewFlashcard(im.newID(), project, card.Front, card.Back, card.Tags, now))
			result.Added++
			im.logger.Debug().Str("file", path).Str("hash", hash).Msg("new card")
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, walkErr)
	}

	if result.Added > 0 {
		if err := im.store.Save(ctx, deck); err != nil {
			return nil, err
		}
	}

	im.logger.Info().
		Str("project", project).
		Str("source", source).
		Int("files", result.Files).
		Int("parsed", result.Parsed).
		Int("added", result.Added).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("import complete")
	return result, nil
}
