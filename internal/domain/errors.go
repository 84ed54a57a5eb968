package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors
var (
	// ErrInvalidSpec indicates a malformed owner/repo[@branch] spec
	ErrInvalidSpec = errors.New("invalid repository spec")

	// ErrLockTimeout indicates manifest lock acquisition exhausted its attempts
	ErrLockTimeout = errors.New("manifest lock acquisition timed out")

	// ErrConfirmRequired indicates a cached working tree would be deleted
	// and the caller has not confirmed
	ErrConfirmRequired = errors.New("confirmation required to delete cached repository")

	// ErrNotManaged indicates the repository has no manifest entry
	ErrNotManaged = errors.New("repository not managed")

	// ErrNotARepo indicates a path is not a valid git working tree
	ErrNotARepo = errors.New("not a git repository")
)

// AttemptError records one failed acquisition attempt (one URL scheme
// and branch combination).
type AttemptError struct {
	URL    string
	Branch string
	Err    error
}

func (a AttemptError) String() string {
	branch := a.Branch
	if branch == "" {
		branch = "(default)"
	}
	return fmt.Sprintf("%s @ %s: %v", a.URL, branch, a.Err)
}

// AcquireError aggregates every protocol/branch combination tried while
// acquiring a repository. It names the repository and branch so the
// surfaced failure is self-describing.
type AcquireError struct {
	Owner    string
	Repo     string
	Branch   string
	Attempts []AttemptError
}

func (e *AcquireError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to acquire %s/%s", e.Owner, e.Repo)
	if e.Branch != "" {
		fmt.Fprintf(&b, "@%s", e.Branch)
	}
	if len(e.Attempts) > 0 {
		b.WriteString(": attempts:")
		for _, a := range e.Attempts {
			b.WriteString("\n  ")
			b.WriteString(a.String())
		}
	}
	return b.String()
}

func (e *AcquireError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// NewAcquireError creates a new AcquireError
func NewAcquireError(owner, repo, branch string, attempts []AttemptError) *AcquireError {
	return &AcquireError{Owner: owner, Repo: repo, Branch: branch, Attempts: attempts}
}

// LockError wraps a lock acquisition failure with the marker path.
type LockError struct {
	Path string
	Err  error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lock %s: %v", e.Path, e.Err)
}

func (e *LockError) Unwrap() error {
	return e.Err
}

// GitError represents a failed invocation of the external git tool.
// Exit code and stderr are the only failure signal git gives us, so
// both are preserved.
type GitError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *GitError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *GitError) Unwrap() error {
	return e.Err
}
