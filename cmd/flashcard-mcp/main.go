package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conorfennell/flashcard-mcp/internal/config"
	"github.com/conorfennell/flashcard-mcp/internal/importer"
	"github.com/conorfennell/flashcard-mcp/internal/logging"
	"github.com/conorfennell/flashcard-mcp/internal/mcp"
	"github.com/conorfennell/flashcard-mcp/internal/oauth"
	"github.com/conorfennell/flashcard-mcp/internal/tools"
	"github.com/conorfennell/flashcard-mcp/internal/web"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const usage = `Usage: flashcard-mcp <command> [flags]

Commands:
  serve    serve MCP and OAuth over HTTP
  stdio    serve MCP over stdin/stdout
  import   add markdown flashcards from a directory or git URL to a project

Run "flashcard-mcp <command> --help" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "serve":
		err = runServe(args)
	case "stdio":
		err = runStdio(args)
	case "import":
		err = runImport(args)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup parses the command's flags and returns its config and logger.
func setup(fs *pflag.FlagSet, args []string) (*config.Config, zerolog.Logger, error) {
	config.Flags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, zerolog.Nop(), err
	}
	cfg, err := config.Load(fs)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr), nil
}

func runServe(args []string) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	cfg, logger, err := setup(fs, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	if cfg.APIKey == "" {
		logger.Warn().Msg("no api_key configured: /api/mcp is open and the authorization page rejects every login")
	}

	mcpServer := mcp.NewServer(tools.NewService(b.deck), logger)
	oauthSvc := oauth.NewService(b.kv,
		oauth.WithCodeTTL(cfg.OAuth.CodeTTL),
		oauth.WithTokenTTL(cfg.OAuth.TokenTTL),
	)
	handler := web.NewServer(oauthSvc, mcp.HTTPHandler(mcpServer), web.Options{
		APIKey:      cfg.APIKey,
		PublicURL:   cfg.HTTP.PublicURL,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Str("backend", cfg.Store.Backend).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runStdio(args []string) error {
	fs := pflag.NewFlagSet("stdio", pflag.ContinueOnError)
	cfg, logger, err := setup(fs, args)
	if err != nil {
		return err
	}

	b, err := openBackend(context.Background(), cfg.Store, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	logger.Info().Str("backend", cfg.Store.Backend).Msg("serving MCP over stdio")
	return mcp.ServeStdio(mcp.NewServer(tools.NewService(b.deck), logger))
}

func runImport(args []string) error {
	fs := pflag.NewFlagSet("import", pflag.ContinueOnError)
	project := fs.String("project", "", "Project the cards are added to (required)")
	source := fs.String("source", ".", "Directory or git URL to import markdown files from")
	reposDir := fs.String("repos_dir", importer.DefaultReposDir, "Where git sources are checked out")
	cfg, logger, err := setup(fs, args)
	if err != nil {
		return err
	}
	if *project == "" {
		return errors.New("--project is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := importer.New(b.deck, logger, importer.WithReposDir(*reposDir)).Import(ctx, *project, *source)
	if err != nil {
		return err
	}

	fmt.Printf("Found %d cards in %d files: %d added, %d already present, %d errors.\n",
		res.Parsed, res.Files, res.Added, res.Skipped, len(res.Errors))
	if len(res.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range res.Errors {
			fmt.Printf("- %s\n", e)
		}
	}
	return nil
}
