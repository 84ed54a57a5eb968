package domain

// RepoTarget identifies the repository and branch a caller asked for.
// It is request-scoped and never persisted.
type RepoTarget struct {
	Owner string
	Repo  string
	// Branch is the branch resolved for this request. Empty means
	// "whatever the remote's default branch turns out to be".
	Branch string
	// ExplicitBranch is true when the caller named a branch in the
	// spec (owner/repo@branch) rather than relying on the default.
	ExplicitBranch bool
}

// Key returns the manifest key for the target (owner/repo).
func (t RepoTarget) Key() string {
	return t.Owner + "/" + t.Repo
}

// Spec returns the canonical spec string for the target.
func (t RepoTarget) Spec() string {
	if t.ExplicitBranch {
		return t.Key() + "@" + t.Branch
	}
	return t.Key()
}

// RepoInfo describes the observable state of a checkout on disk.
type RepoInfo struct {
	RemoteURL string
	Branch    string
	Commit    string
}

// LocalRepo is a pre-existing working tree discovered by the scanner
// or declared in a seed file. These records only ever seed "local"
// manifest entries; the files they point at are never mutated.
type LocalRepo struct {
	Path      string `yaml:"path" json:"path"`
	RemoteURL string `yaml:"url" json:"url"`
	Branch    string `yaml:"branch,omitempty" json:"branch,omitempty"`
}
