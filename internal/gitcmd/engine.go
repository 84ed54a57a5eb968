package gitcmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quantmind-br/repocache-go/internal/domain"
	"github.com/quantmind-br/repocache-go/internal/utils"
)

// Engine wraps the external git tool for shallow acquisition of
// working trees: clone, branch switch, update and inspection. Failed
// clone attempts always remove their partial destination so a later
// attempt starts clean.
type Engine struct {
	run           *runner
	defaultBranch string
	logger        *utils.Logger
}

// EngineOptions contains options for creating an engine
type EngineOptions struct {
	// DefaultBranch is the first conventional fallback tried when the
	// remote's symbolic default cannot be read.
	DefaultBranch string
	Logger        *utils.Logger
}

// NewEngine creates a new engine
func NewEngine(opts EngineOptions) *Engine {
	if opts.DefaultBranch == "" {
		opts.DefaultBranch = "main"
	}
	return &Engine{
		run:           newRunner(),
		defaultBranch: opts.DefaultBranch,
		logger:        opts.Logger,
	}
}

// CloneError aggregates every branch attempt of a failed clone.
type CloneError struct {
	URL      string
	Attempts []domain.AttemptError
}

func (e *CloneError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "clone %s failed after %d attempt(s):", e.URL, len(e.Attempts))
	for _, a := range e.Attempts {
		b.WriteString("\n  ")
		b.WriteString(a.String())
	}
	return b.String()
}

func (e *CloneError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// Clone acquires a shallow (depth 1), single-branch checkout of url at
// dest with hooks disabled. With an explicit branch only that branch is
// tried. Otherwise the remote's symbolic default is queried and tried
// first, then the conventional fallbacks; if every named attempt fails
// a plain default clone is the last resort, reading back whichever
// branch git checked out. Returns the branch that ended up on disk.
func (e *Engine) Clone(ctx context.Context, url, dest, branch string) (string, error) {
	var attempts []domain.AttemptError

	for _, candidate := range e.branchCandidates(ctx, url, branch) {
		if err := e.cloneBranch(ctx, url, dest, candidate); err != nil {
			attempts = append(attempts, domain.AttemptError{URL: url, Branch: candidate, Err: err})
			continue
		}
		if e.logger != nil {
			e.logger.Debug().Str("url", url).Str("branch", candidate).Msg("Clone succeeded")
		}
		return candidate, nil
	}

	// Explicit branch requests must not silently land elsewhere.
	if branch != "" {
		return "", &CloneError{URL: url, Attempts: attempts}
	}

	if err := e.cloneBranch(ctx, url, dest, ""); err != nil {
		attempts = append(attempts, domain.AttemptError{URL: url, Err: err})
		return "", &CloneError{URL: url, Attempts: attempts}
	}

	info, err := e.Info(ctx, dest)
	if err != nil {
		os.RemoveAll(dest)
		attempts = append(attempts, domain.AttemptError{URL: url, Err: err})
		return "", &CloneError{URL: url, Attempts: attempts}
	}
	return info.Branch, nil
}

// branchCandidates builds the ordered attempt list for a clone.
func (e *Engine) branchCandidates(ctx context.Context, url, branch string) []string {
	if branch != "" {
		return []string{branch}
	}

	var candidates []string
	seen := make(map[string]bool)
	add := func(b string) {
		if b != "" && !seen[b] {
			seen[b] = true
			candidates = append(candidates, b)
		}
	}

	if def, err := e.DefaultBranch(ctx, url); err == nil {
		add(def)
	} else if e.logger != nil {
		e.logger.Debug().Err(err).Str("url", url).Msg("Could not detect default branch")
	}
	add(e.defaultBranch)
	add("master")
	return candidates
}

// cloneBranch runs one clone attempt, removing any partial destination
// on failure. An empty branch clones whatever the remote serves as HEAD.
func (e *Engine) cloneBranch(ctx context.Context, url, dest, branch string) error {
	if err := utils.EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}

	args := []string{"clone", "--depth", "1", "--single-branch"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, dest)

	if err := e.run.run(ctx, ".", args...); err != nil {
		os.RemoveAll(dest)
		return err
	}
	return nil
}

// SwitchBranch shallow-fetches the branch, checks it out (creating a
// local tracking branch if absent) and hard-resets to the fetched tip.
// The working tree ends up exactly at the remote head; local divergence
// is discarded.
func (e *Engine) SwitchBranch(ctx context.Context, path, branch string) error {
	refspec := fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", branch, branch)
	if err := e.run.run(ctx, path, "fetch", "--depth", "1", "origin", refspec); err != nil {
		return fmt.Errorf("fetching branch %s: %w", branch, err)
	}

	exists, err := e.branchExists(ctx, path, branch)
	if err != nil {
		return err
	}
	if exists {
		if err := e.run.run(ctx, path, "checkout", branch); err != nil {
			return fmt.Errorf("checking out %s: %w", branch, err)
		}
	} else {
		if err := e.run.run(ctx, path, "checkout", "-b", branch, "--track", "origin/"+branch); err != nil {
			return fmt.Errorf("creating tracking branch %s: %w", branch, err)
		}
	}

	if err := e.run.run(ctx, path, "reset", "--hard", "origin/"+branch); err != nil {
		return fmt.Errorf("resetting to origin/%s: %w", branch, err)
	}
	return nil
}

// Update refreshes the currently checked-out branch to the remote tip.
func (e *Engine) Update(ctx context.Context, path string) error {
	branch, err := e.currentBranch(ctx, path)
	if err != nil {
		return err
	}
	if branch == "" {
		return fmt.Errorf("%w: detached HEAD at %s", domain.ErrNotARepo, path)
	}
	return e.SwitchBranch(ctx, path, branch)
}

// Info returns the remote URL, current branch and full commit hash of
// the checkout at path.
func (e *Engine) Info(ctx context.Context, path string) (*domain.RepoInfo, error) {
	remote, err := e.RemoteURL(ctx, path)
	if err != nil {
		return nil, err
	}
	branch, err := e.currentBranch(ctx, path)
	if err != nil {
		return nil, err
	}
	commit, err := e.run.output(ctx, path, "rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}
	return &domain.RepoInfo{
		RemoteURL: remote,
		Branch:    branch,
		Commit:    strings.TrimSpace(commit),
	}, nil
}

// IsRepo reports whether path holds a git working tree. Cheap stat
// check only; foreign or corrupted data fails the later RemoteURL match.
func (e *Engine) IsRepo(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	if err != nil {
		return false
	}
	return info.IsDir()
}

// RemoteURL returns the origin URL of the checkout at path.
func (e *Engine) RemoteURL(ctx context.Context, path string) (string, error) {
	out, err := e.run.output(ctx, path, "config", "--get", "remote.origin.url")
	if err != nil {
		return "", fmt.Errorf("%w: %s has no origin remote", domain.ErrNotARepo, path)
	}
	return strings.TrimSpace(out), nil
}

// DefaultBranch queries the remote's symbolic default branch via
// ls-remote --symref.
func (e *Engine) DefaultBranch(ctx context.Context, url string) (string, error) {
	out, err := e.run.output(ctx, ".", "ls-remote", "--symref", url, "HEAD")
	if err != nil {
		return "", err
	}

	// Expected line: "ref: refs/heads/main\tHEAD"
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) >= 2 && parts[0] == "ref:" && strings.HasPrefix(parts[1], "refs/heads/") {
			return strings.TrimPrefix(parts[1], "refs/heads/"), nil
		}
	}
	return "", fmt.Errorf("default branch not found for %s", url)
}

// currentBranch returns the checked-out branch, or empty for detached HEAD.
func (e *Engine) currentBranch(ctx context.Context, path string) (string, error) {
	out, err := e.run.output(ctx, path, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		// Detached HEAD: symbolic-ref fails.
		return "", nil
	}
	return strings.TrimSpace(out), nil
}

// branchExists checks if a local branch exists.
func (e *Engine) branchExists(ctx context.Context, path, branch string) (bool, error) {
	err := e.run.run(ctx, path, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	if err != nil {
		var gitErr *domain.GitError
		if errors.As(err, &gitErr) && gitErr.ExitCode > 0 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
