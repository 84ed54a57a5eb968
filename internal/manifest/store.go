package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quantmind-br/repocache-go/internal/utils"
)

const (
	ManifestFileName = "manifest.json"
	LockFileName     = "manifest.lock"
)

// Store persists the manifest document inside the cache root and
// serializes mutations through a cross-process file lock.
type Store struct {
	root   string
	lock   *FileLock
	logger *utils.Logger
}

// StoreOptions contains options for creating a store
type StoreOptions struct {
	Root   string
	Lock   LockOptions
	Logger *utils.Logger
}

// NewStore creates a store rooted at opts.Root
func NewStore(opts StoreOptions) *Store {
	return &Store{
		root:   opts.Root,
		lock:   NewFileLock(filepath.Join(opts.Root, LockFileName), opts.Lock),
		logger: opts.Logger,
	}
}

// Path returns the manifest document path.
func (s *Store) Path() string {
	return filepath.Join(s.root, ManifestFileName)
}

// Load returns the current manifest. An absent or unparseable document
// yields an empty manifest, never an error: manifest corruption is
// absorbed and the cache rebuilds itself over subsequent requests.
func (s *Store) Load() *Manifest {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return New()
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		if s.logger != nil {
			s.logger.Warn().Err(err).Str("path", s.Path()).Msg("Manifest unreadable, starting empty")
		}
		return New()
	}
	if m.Version != ManifestVersion {
		if s.logger != nil {
			s.logger.Warn().
				Int("file_version", m.Version).
				Int("expected_version", ManifestVersion).
				Msg("Manifest version mismatch, starting empty")
		}
		return New()
	}

	m.Normalize()
	return &m
}

// Save atomically persists the manifest: serialize to a temporary
// sibling, then rename over the canonical path so a concurrent Load
// never observes a partial write.
func (s *Store) Save(m *Manifest) error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("creating cache root: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, ManifestFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp manifest: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming manifest: %w", err)
	}
	return nil
}

// WithLock acquires the lock marker, runs body against a freshly loaded
// manifest, persists the result, and releases the marker on every exit
// path. The body's error aborts the save.
func (s *Store) WithLock(body func(m *Manifest) error) error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("creating cache root: %w", err)
	}
	if err := s.lock.Acquire(); err != nil {
		return err
	}
	defer s.lock.Release()

	m := s.Load()
	if err := body(m); err != nil {
		return err
	}
	return s.Save(m)
}
