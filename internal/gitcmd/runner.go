package gitcmd

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/quantmind-br/repocache-go/internal/domain"
)

// runner invokes the external git tool. Exit code and stderr are the
// only failure signal git gives us, so both are folded into the
// returned error. Hooks are disabled on every invocation: cached
// checkouts come from arbitrary remotes and must never execute code.
type runner struct {
	gitPath string
}

func newRunner() *runner {
	return &runner{gitPath: "git"}
}

// baseArgs prepends per-invocation config shared by every command.
func (r *runner) baseArgs(args []string) []string {
	return append([]string{"-c", "core.hooksPath=/dev/null"}, args...)
}

func (r *runner) env() []string {
	return append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
}

// run executes git with the given args in dir, discarding stdout.
func (r *runner) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, r.gitPath, r.baseArgs(args)...)
	cmd.Dir = dir
	cmd.Env = r.env()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &domain.GitError{
			Args:     args,
			ExitCode: cmd.ProcessState.ExitCode(),
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	return nil
}

// output executes git and returns its stdout.
func (r *runner) output(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.gitPath, r.baseArgs(args)...)
	cmd.Dir = dir
	cmd.Env = r.env()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &domain.GitError{
			Args:     args,
			ExitCode: cmd.ProcessState.ExitCode(),
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	return stdout.String(), nil
}

// IsGitInstalled returns true if git is available on the system PATH.
func IsGitInstalled() bool {
	_, err := exec.LookPath("git")
	return err == nil
}
