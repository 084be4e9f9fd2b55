// Package gitsource keeps local checkouts of remote markdown repositories.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/rs/zerolog"
)

// IsRemote reports whether source names a git remote rather than a local directory.
func IsRemote(source string) bool {
	if u, err := url.Parse(source); err == nil {
		switch u.Scheme {
		case "http", "https", "git", "ssh":
			return u.Host != ""
		}
	}
	return isSCPLike(source)
}

// isSCPLike matches user@host:path.
func isSCPLike(source string) bool {
	at := strings.Index(source, "@")
	colon := strings.Index(source, ":")
	return at > 0 && colon > at+1 && !strings.Contains(source[:colon], "/")
}

// LocalPath maps a remote URL to a checkout directory under baseDir.
func LocalPath(baseDir, repoURL string) (string, error) {
	if isSCPLike(repoURL) {
		hostPart, repoPath, _ := strings.Cut(repoURL, ":")
		_, host, _ := strings.Cut(hostPart, "@")
		return filepath.Join(baseDir, host, strings.TrimSuffix(repoPath, ".git")), nil
	}

	parsedURL, err := url.Parse(repoURL)
	if err != nil || parsedURL.Host == "" {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}
	return filepath.Join(baseDir, parsedURL.Host, strings.TrimSuffix(parsedURL.Path, ".git")), nil
}

// Sync clones a git repository if it doesn't exist at the given path,
// or pulls the latest changes if it does.
func Sync(ctx context.Context, repoURL, localPath string, logger zerolog.Logger) error {
	_, err := os.Stat(localPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info().Str("url", repoURL).Str("path", localPath).Msg("cloning repository")
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{URL: repoURL})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", repoURL, err)
		}
	case err == nil:
		logger.Info().Str("path", localPath).Msg("pulling latest changes")
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}

		err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	return nil
}
