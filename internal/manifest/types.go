package manifest

import "time"

// ManifestVersion is the current schema version of the persisted document.
const ManifestVersion = 1

// EntryType discriminates cached and local entries. Cached working
// trees are exclusively owned by this system and safe to delete or
// recreate; local ones are user-managed and never mutated.
type EntryType string

const (
	TypeCached EntryType = "cached"
	TypeLocal  EntryType = "local"
)

// Manifest is the root persisted object: one serialized document
// mapping repository keys (owner/repo) to entries, plus a reverse
// lookup from remote URL to local path for "local" entries.
type Manifest struct {
	Version    int               `json:"version"`
	Repos      map[string]*Entry `json:"repos"`
	LocalIndex map[string]string `json:"local_index"`
}

// Entry describes one managed repository. Cached and local variants
// share the record; the Type tag plus optional fields distinguish them.
type Entry struct {
	Type          EntryType `json:"type"`
	Path          string    `json:"path"`
	Remote        string    `json:"remote"`
	CurrentBranch string    `json:"current_branch"`
	LastAccessed  time.Time `json:"last_accessed"`
	ClonedAt      time.Time `json:"cloned_at,omitempty"`
	LastUpdated   time.Time `json:"last_updated,omitempty"`
	Shallow       bool      `json:"shallow,omitempty"`
	SizeBytes     int64     `json:"size_bytes,omitempty"`
}

// New returns an empty manifest at the current schema version.
func New() *Manifest {
	return &Manifest{
		Version:    ManifestVersion,
		Repos:      make(map[string]*Entry),
		LocalIndex: make(map[string]string),
	}
}

// NewCachedEntry creates an entry for a working tree this system just
// acquired. Cached clones are always shallow.
func NewCachedEntry(path, remote, branch string) *Entry {
	now := time.Now()
	return &Entry{
		Type:          TypeCached,
		Path:          path,
		Remote:        remote,
		CurrentBranch: branch,
		LastAccessed:  now,
		ClonedAt:      now,
		LastUpdated:   now,
		Shallow:       true,
	}
}

// NewLocalEntry registers a pre-existing user-managed working tree.
func NewLocalEntry(path, remote, branch string) *Entry {
	return &Entry{
		Type:          TypeLocal,
		Path:          path,
		Remote:        remote,
		CurrentBranch: branch,
		LastAccessed:  time.Now(),
	}
}

// Touch refreshes the last-accessed timestamp.
func (e *Entry) Touch() {
	e.LastAccessed = time.Now()
}

// MarkUpdated records a completed fetch/reset.
func (e *Entry) MarkUpdated() {
	e.LastUpdated = time.Now()
	e.Touch()
}

// IsCached reports whether the entry's working tree is owned by this system.
func (e *Entry) IsCached() bool {
	return e.Type == TypeCached
}

// Get returns the entry for a repository key, or nil.
func (m *Manifest) Get(key string) *Entry {
	return m.Repos[key]
}

// Set stores an entry and keeps the local index consistent.
func (m *Manifest) Set(key string, e *Entry) {
	m.Repos[key] = e
	if e.Type == TypeLocal && e.Remote != "" {
		m.LocalIndex[e.Remote] = e.Path
	}
}

// Delete removes an entry and any local-index reference to its path.
func (m *Manifest) Delete(key string) {
	e, ok := m.Repos[key]
	if !ok {
		return
	}
	delete(m.Repos, key)
	for url, path := range m.LocalIndex {
		if path == e.Path {
			delete(m.LocalIndex, url)
		}
	}
}

// Normalize enforces the manifest invariants after a load: maps are
// non-nil and every local-index path belongs to some "local" entry.
func (m *Manifest) Normalize() {
	if m.Repos == nil {
		m.Repos = make(map[string]*Entry)
	}
	if m.LocalIndex == nil {
		m.LocalIndex = make(map[string]string)
	}
	valid := make(map[string]bool)
	for _, e := range m.Repos {
		if e.Type == TypeLocal {
			valid[e.Path] = true
		}
	}
	for url, path := range m.LocalIndex {
		if !valid[path] {
			delete(m.LocalIndex, url)
		}
	}
}
