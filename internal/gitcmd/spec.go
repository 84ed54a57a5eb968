package gitcmd

import (
	"fmt"
	"strings"

	"github.com/quantmind-br/repocache-go/internal/domain"
)

// ParseRepoSpec splits an "owner/repo" or "owner/repo@branch" spec.
// The branch itself may contain both "@" and "/" (release/v1.2,
// feature@2x), so only the first "@" after the repo separator counts.
func ParseRepoSpec(spec string) (domain.RepoTarget, error) {
	var target domain.RepoTarget

	spec = strings.TrimSpace(spec)
	if spec == "" {
		return target, fmt.Errorf("%w: empty spec", domain.ErrInvalidSpec)
	}

	slash := strings.Index(spec, "/")
	if slash < 0 {
		return target, fmt.Errorf("%w: %q is not owner/repo form", domain.ErrInvalidSpec, spec)
	}

	owner := spec[:slash]
	rest := spec[slash+1:]
	if owner == "" {
		return target, fmt.Errorf("%w: empty owner in %q", domain.ErrInvalidSpec, spec)
	}

	repo := rest
	branch := ""
	explicit := false
	if at := strings.Index(rest, "@"); at >= 0 {
		repo = rest[:at]
		branch = rest[at+1:]
		explicit = true
		if branch == "" {
			return target, fmt.Errorf("%w: empty branch after @ in %q", domain.ErrInvalidSpec, spec)
		}
	}

	if repo == "" {
		return target, fmt.Errorf("%w: empty repo in %q", domain.ErrInvalidSpec, spec)
	}
	if strings.Contains(repo, "/") {
		return target, fmt.Errorf("%w: unexpected %q in repo name %q", domain.ErrInvalidSpec, "/", repo)
	}

	target.Owner = owner
	target.Repo = repo
	target.Branch = branch
	target.ExplicitBranch = explicit
	return target, nil
}
