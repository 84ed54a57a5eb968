package domain

import "context"

// Engine defines the interface for the git acquisition engine. All
// mutating operations shell out to the external git tool; implementations
// must clean up partial state when an operation fails midway.
type Engine interface {
	// Clone performs a shallow, single-branch clone with hooks disabled.
	// An empty branch means "resolve the remote's default branch".
	// Returns the branch that ended up checked out.
	Clone(ctx context.Context, url, dest, branch string) (string, error)
	// SwitchBranch fetches the branch and hard-resets the working tree
	// to the fetched tip, discarding local divergence.
	SwitchBranch(ctx context.Context, path, branch string) error
	// Update refreshes the currently checked-out branch to the remote tip.
	Update(ctx context.Context, path string) error
	// Info returns the remote URL, current branch and full commit hash.
	Info(ctx context.Context, path string) (*RepoInfo, error)
	// IsRepo reports whether path holds a valid git working tree.
	IsRepo(path string) bool
	// RemoteURL returns the origin URL of the checkout at path.
	RemoteURL(ctx context.Context, path string) (string, error)
}

// Scanner discovers pre-existing local working trees under the given
// roots. It is a pure producer of LocalRepo records and never mutates
// anything it finds.
type Scanner interface {
	Scan(ctx context.Context, paths []string) ([]LocalRepo, error)
}
