package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"

	"github.com/quantmind-br/repocache-go/internal/domain"
	"github.com/quantmind-br/repocache-go/internal/utils"
)

// Scanner walks configured directories and reports pre-existing git
// working trees. Discovery is read-only: repositories are opened with
// go-git to extract the origin URL and checked-out branch, and nothing
// on disk is ever touched.
type Scanner struct {
	maxDepth int
	logger   *utils.Logger
}

// ScannerOptions contains options for creating a scanner
type ScannerOptions struct {
	// MaxDepth bounds the walk below each root (1 = the root itself).
	MaxDepth int
	Logger   *utils.Logger
}

// New creates a new scanner
func New(opts ScannerOptions) *Scanner {
	if opts.MaxDepth < 1 {
		opts.MaxDepth = 3
	}
	return &Scanner{maxDepth: opts.MaxDepth, logger: opts.Logger}
}

// Scan discovers working trees under the given roots. Roots that do
// not exist are skipped; directories that fail to open as repositories
// are descended into instead.
func (s *Scanner) Scan(ctx context.Context, paths []string) ([]domain.LocalRepo, error) {
	var found []domain.LocalRepo
	for _, root := range paths {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		root = utils.ExpandPath(root)
		if _, err := os.Stat(root); err != nil {
			if s.logger != nil {
				s.logger.Debug().Str("path", root).Msg("Scan root missing, skipping")
			}
			continue
		}
		s.walk(ctx, root, 1, &found)
	}
	return found, nil
}

func (s *Scanner) walk(ctx context.Context, dir string, depth int, found *[]domain.LocalRepo) {
	if ctx.Err() != nil || depth > s.maxDepth {
		return
	}

	if repo, ok := s.inspect(dir); ok {
		*found = append(*found, repo)
		// Nested repositories below a working tree are not scanned.
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		s.walk(ctx, filepath.Join(dir, entry.Name()), depth+1, found)
	}
}

// inspect opens dir as a git repository and extracts its origin URL
// and HEAD branch. Returns false for anything that is not a usable
// working tree with an origin remote.
func (s *Scanner) inspect(dir string) (domain.LocalRepo, bool) {
	var local domain.LocalRepo

	if info, err := os.Stat(filepath.Join(dir, ".git")); err != nil || !info.IsDir() {
		return local, false
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return local, false
	}

	remote, err := repo.Remote("origin")
	if err != nil || len(remote.Config().URLs) == 0 {
		return local, false
	}

	branch := ""
	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}

	local = domain.LocalRepo{
		Path:      abs,
		RemoteURL: remote.Config().URLs[0],
		Branch:    branch,
	}
	if s.logger != nil {
		s.logger.Debug().Str("path", abs).Str("url", local.RemoteURL).Msg("Discovered local repository")
	}
	return local, true
}
