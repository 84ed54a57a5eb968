package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quantmind-br/repocache-go/internal/config"
	"github.com/quantmind-br/repocache-go/internal/domain"
	"github.com/quantmind-br/repocache-go/internal/gitcmd"
	"github.com/quantmind-br/repocache-go/internal/manifest"
	"github.com/quantmind-br/repocache-go/internal/utils"
)

// Manager reconciles a requested repository+branch against the
// manifest and the filesystem: reuse what is valid, repair what is
// broken, acquire what is missing. Decisions are made on an unlocked
// read; only the resulting manifest write runs under the lock.
type Manager struct {
	cfg     *config.Config
	store   *manifest.Store
	engine  domain.Engine
	scanner domain.Scanner
	logger  *utils.Logger
}

// ManagerOptions contains options for creating a manager
type ManagerOptions struct {
	Config  *config.Config
	Store   *manifest.Store
	Engine  domain.Engine
	Scanner domain.Scanner
	Logger  *utils.Logger
}

// NewManager creates a new manager
func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		cfg:     opts.Config,
		store:   opts.Store,
		engine:  opts.Engine,
		scanner: opts.Scanner,
		logger:  opts.Logger,
	}
}

// CachePath returns the working-tree location for a cached repository.
func (m *Manager) CachePath(owner, repo string) string {
	return filepath.Join(m.cfg.Cache.Root, owner, repo)
}

// Ensure resolves a spec ("owner/repo" or "owner/repo@branch") to a
// stable absolute path holding a valid working tree on the requested
// branch, cloning, repairing or switching branches as needed.
func (m *Manager) Ensure(ctx context.Context, spec string) (string, error) {
	target, err := gitcmd.ParseRepoSpec(spec)
	if err != nil {
		return "", err
	}

	log := m.logger.WithRepo(target.Key())
	doc := m.store.Load()
	entry := doc.Get(target.Key())

	switch {
	case entry == nil:
		return m.ensureUntracked(ctx, target, log)

	case entry.Type == manifest.TypeLocal:
		// User-managed working tree: never mutated, only re-stamped.
		if err := m.touch(target.Key()); err != nil {
			return "", err
		}
		return entry.Path, nil

	case m.engine.IsRepo(entry.Path):
		return m.reuseCached(ctx, target, entry, log)

	default:
		// Vanished or corrupted cached checkout: self-healing, not an
		// error. Drop the entry and any leftovers, then re-acquire.
		log.Warn().Str("path", entry.Path).Msg("Cached checkout invalid, re-acquiring")
		os.RemoveAll(entry.Path)
		if err := m.store.WithLock(func(doc *manifest.Manifest) error {
			doc.Delete(target.Key())
			return nil
		}); err != nil {
			return "", err
		}
		return m.ensureUntracked(ctx, target, log)
	}
}

// reuseCached handles a valid cached checkout: switch branches when the
// request differs, otherwise reuse in place with an optional staleness
// refresh.
func (m *Manager) reuseCached(ctx context.Context, target domain.RepoTarget, entry *manifest.Entry, log *utils.Logger) (string, error) {
	if target.ExplicitBranch && target.Branch != entry.CurrentBranch {
		log.Info().
			Str("from", entry.CurrentBranch).
			Str("to", target.Branch).
			Msg("Switching branch")
		if err := m.engine.SwitchBranch(ctx, entry.Path, target.Branch); err != nil {
			return "", fmt.Errorf("switching %s to %s: %w", target.Key(), target.Branch, err)
		}
		err := m.store.WithLock(func(doc *manifest.Manifest) error {
			if e := doc.Get(target.Key()); e != nil {
				e.CurrentBranch = target.Branch
				e.SizeBytes = utils.DirSize(e.Path)
				e.MarkUpdated()
			}
			return nil
		})
		if err != nil {
			return "", err
		}
		return entry.Path, nil
	}

	if m.isStale(entry) {
		log.Debug().Time("last_updated", entry.LastUpdated).Msg("Refreshing stale checkout")
		if err := m.engine.Update(ctx, entry.Path); err != nil {
			// The checkout is still valid and correctly branched; a
			// failed refresh is not fatal for the request.
			log.Warn().Err(err).Msg("Refresh failed, reusing stale checkout")
			if err := m.touch(target.Key()); err != nil {
				return "", err
			}
			return entry.Path, nil
		}
		err := m.store.WithLock(func(doc *manifest.Manifest) error {
			if e := doc.Get(target.Key()); e != nil {
				e.SizeBytes = utils.DirSize(e.Path)
				e.MarkUpdated()
			}
			return nil
		})
		if err != nil {
			return "", err
		}
		return entry.Path, nil
	}

	if err := m.touch(target.Key()); err != nil {
		return "", err
	}
	return entry.Path, nil
}

// ensureUntracked handles a repository with no manifest entry. A
// directory already present at the cache path is adopted when its
// origin matches the request, deleted otherwise.
func (m *Manager) ensureUntracked(ctx context.Context, target domain.RepoTarget, log *utils.Logger) (string, error) {
	dest := m.CachePath(target.Owner, target.Repo)

	if _, err := os.Stat(dest); err == nil {
		if adopted, err := m.adopt(ctx, target, dest, log); err != nil {
			return "", err
		} else if adopted {
			return dest, nil
		}
		log.Warn().Str("path", dest).Msg("Untracked directory does not match request, deleting")
		if err := os.RemoveAll(dest); err != nil {
			return "", fmt.Errorf("removing foreign directory %s: %w", dest, err)
		}
	}

	return m.acquire(ctx, target, dest, log)
}

// adopt registers an untracked directory as a cached entry when it is
// a working tree whose origin matches the request, aligning the branch
// if the caller named one.
func (m *Manager) adopt(ctx context.Context, target domain.RepoTarget, dest string, log *utils.Logger) (bool, error) {
	if !m.engine.IsRepo(dest) {
		return false, nil
	}
	remote, err := m.engine.RemoteURL(ctx, dest)
	if err != nil {
		return false, nil
	}
	if !m.remoteMatches(remote, target) {
		return false, nil
	}

	log.Info().Str("path", dest).Msg("Adopting untracked checkout")

	if target.ExplicitBranch {
		info, err := m.engine.Info(ctx, dest)
		if err != nil {
			return false, nil
		}
		if info.Branch != target.Branch {
			if err := m.engine.SwitchBranch(ctx, dest, target.Branch); err != nil {
				return false, fmt.Errorf("aligning adopted checkout to %s: %w", target.Branch, err)
			}
		}
	}

	info, err := m.engine.Info(ctx, dest)
	if err != nil {
		return false, nil
	}

	entry := manifest.NewCachedEntry(dest, remote, info.Branch)
	entry.SizeBytes = utils.DirSize(dest)
	if err := m.commitEntry(target.Key(), entry); err != nil {
		return false, err
	}
	return true, nil
}

// acquire clones the repository, trying the preferred URL scheme first
// and falling back to the alternate, aggregating every attempt into
// the final error.
func (m *Manager) acquire(ctx context.Context, target domain.RepoTarget, dest string, log *utils.Logger) (string, error) {
	var attempts []domain.AttemptError

	for _, scheme := range gitcmd.SchemeChain(m.cfg.Git.PreferredScheme) {
		url := gitcmd.CloneURL(scheme, m.cfg.Git.Host, target.Owner, target.Repo)
		log.Info().Str("url", url).Msg("Cloning repository")

		branch, err := m.engine.Clone(ctx, url, dest, target.Branch)
		if err != nil {
			attempts = append(attempts, flattenCloneErr(url, target.Branch, err)...)
			continue
		}

		entry := manifest.NewCachedEntry(dest, url, branch)
		entry.SizeBytes = utils.DirSize(dest)
		if err := m.commitEntry(target.Key(), entry); err != nil {
			return "", err
		}
		return dest, nil
	}

	return "", domain.NewAcquireError(target.Owner, target.Repo, target.Branch, attempts)
}

// commitEntry writes a freshly acquired entry under the lock. If a
// concurrent request already registered the same key at the same path,
// the winner's entry is kept and only re-stamped.
func (m *Manager) commitEntry(key string, entry *manifest.Entry) error {
	return m.store.WithLock(func(doc *manifest.Manifest) error {
		if cur := doc.Get(key); cur != nil && cur.IsCached() && cur.Path == entry.Path {
			cur.Touch()
			return nil
		}
		doc.Set(key, entry)
		return nil
	})
}

// Remove unregisters a repository. Local entries only lose their
// manifest record. Cached entries additionally lose their working
// tree, which requires confirmation.
func (m *Manager) Remove(spec string, confirmed bool) error {
	target, err := gitcmd.ParseRepoSpec(spec)
	if err != nil {
		return err
	}

	return m.store.WithLock(func(doc *manifest.Manifest) error {
		entry := doc.Get(target.Key())
		if entry == nil {
			return fmt.Errorf("%w: %s", domain.ErrNotManaged, target.Key())
		}
		if entry.IsCached() {
			if !confirmed {
				return fmt.Errorf("%w: %s at %s", domain.ErrConfirmRequired, target.Key(), entry.Path)
			}
			if err := os.RemoveAll(entry.Path); err != nil {
				return fmt.Errorf("deleting working tree %s: %w", entry.Path, err)
			}
		}
		doc.Delete(target.Key())
		return nil
	})
}

// List returns the current manifest document.
func (m *Manager) List() *manifest.Manifest {
	return m.store.Load()
}

// RegisterLocal seeds a "local" manifest entry from a discovered
// working tree. The repository key is derived from the remote URL.
func (m *Manager) RegisterLocal(repo domain.LocalRepo) error {
	owner, name, err := gitcmd.OwnerRepoFromURL(repo.RemoteURL)
	if err != nil {
		return err
	}
	key := owner + "/" + name

	return m.store.WithLock(func(doc *manifest.Manifest) error {
		if cur := doc.Get(key); cur != nil && cur.IsCached() {
			// A cached entry wins over a scanned duplicate.
			return nil
		}
		doc.Set(key, manifest.NewLocalEntry(repo.Path, repo.RemoteURL, repo.Branch))
		return nil
	})
}

// ScanAndRegister discovers local working trees under the configured
// scan paths and registers each. Returns the number registered.
func (m *Manager) ScanAndRegister(ctx context.Context) (int, error) {
	found, err := m.scanner.Scan(ctx, m.cfg.Scan.Paths)
	if err != nil {
		return 0, err
	}

	registered := 0
	for _, repo := range found {
		if err := m.RegisterLocal(repo); err != nil {
			m.logger.Warn().Err(err).Str("path", repo.Path).Msg("Skipping discovered repository")
			continue
		}
		registered++
	}
	return registered, nil
}

// touch refreshes LastAccessed for an entry under the lock.
func (m *Manager) touch(key string) error {
	return m.store.WithLock(func(doc *manifest.Manifest) error {
		if e := doc.Get(key); e != nil {
			e.Touch()
		}
		return nil
	})
}

// isStale reports whether the refresh policy wants a re-fetch.
func (m *Manager) isStale(entry *manifest.Entry) bool {
	if m.cfg.Cache.RefreshAfter <= 0 {
		return false
	}
	return time.Since(entry.LastUpdated) > m.cfg.Cache.RefreshAfter
}

// remoteMatches reports whether an origin URL refers to the requested
// repository under either URL scheme.
func (m *Manager) remoteMatches(remote string, target domain.RepoTarget) bool {
	for _, scheme := range gitcmd.SchemeChain(m.cfg.Git.PreferredScheme) {
		if remote == gitcmd.CloneURL(scheme, m.cfg.Git.Host, target.Owner, target.Repo) {
			return true
		}
	}
	owner, name, err := gitcmd.OwnerRepoFromURL(remote)
	return err == nil && owner == target.Owner && name == target.Repo
}

// flattenCloneErr expands an engine CloneError into its per-branch
// attempts; any other failure becomes a single attempt record.
func flattenCloneErr(url, branch string, err error) []domain.AttemptError {
	if ce, ok := err.(*gitcmd.CloneError); ok {
		return ce.Attempts
	}
	return []domain.AttemptError{{URL: url, Branch: branch, Err: err}}
}
