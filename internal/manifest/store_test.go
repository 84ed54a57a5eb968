package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(StoreOptions{
		Root: t.TempDir(),
		Lock: LockOptions{
			StaleAfter:    time.Minute,
			RetryInterval: 5 * time.Millisecond,
			MaxAttempts:   50,
		},
	})
}

func TestStore_Load_Absent(t *testing.T) {
	s := newTestStore(t)

	m := s.Load()

	require.NotNil(t, m)
	assert.Equal(t, ManifestVersion, m.Version)
	assert.Empty(t, m.Repos)
	assert.Empty(t, m.LocalIndex)
}

func TestStore_Load_Corrupted(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0644))

	m := s.Load()

	require.NotNil(t, m)
	assert.Empty(t, m.Repos)
}

func TestStore_Load_VersionMismatch(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"version": 99, "repos": {}}`), 0644))

	m := s.Load()

	require.NotNil(t, m)
	assert.Equal(t, ManifestVersion, m.Version)
	assert.Empty(t, m.Repos)
}

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	m := New()
	cached := NewCachedEntry("/cache/acme/widgets", "https://github.com/acme/widgets.git", "main")
	cached.SizeBytes = 4096
	m.Set("acme/widgets", cached)
	m.Set("acme/tools", NewLocalEntry("/home/dev/tools", "git@github.com:acme/tools.git", "dev"))

	require.NoError(t, s.Save(m))
	loaded := s.Load()

	require.Len(t, loaded.Repos, 2)
	got := loaded.Repos["acme/widgets"]
	require.NotNil(t, got)
	assert.Equal(t, TypeCached, got.Type)
	assert.Equal(t, "/cache/acme/widgets", got.Path)
	assert.Equal(t, "main", got.CurrentBranch)
	assert.True(t, got.Shallow)
	assert.Equal(t, int64(4096), got.SizeBytes)
	assert.WithinDuration(t, cached.ClonedAt, got.ClonedAt, time.Second)

	local := loaded.Repos["acme/tools"]
	require.NotNil(t, local)
	assert.Equal(t, TypeLocal, local.Type)
	assert.False(t, local.Shallow)
	assert.Equal(t, "/home/dev/tools", loaded.LocalIndex["git@github.com:acme/tools.git"])
}

func TestStore_SaveLoad_EmptyManifest(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save(New()))
	loaded := s.Load()

	assert.NotNil(t, loaded.Repos)
	assert.NotNil(t, loaded.LocalIndex)
	assert.Empty(t, loaded.Repos)
}

func TestStore_Save_LeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(New()))

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, ManifestFileName, e.Name())
	}
}

func TestStore_WithLock_PersistsMutation(t *testing.T) {
	s := newTestStore(t)

	err := s.WithLock(func(m *Manifest) error {
		m.Set("acme/widgets", NewCachedEntry("/p", "u", "main"))
		return nil
	})
	require.NoError(t, err)

	assert.NotNil(t, s.Load().Get("acme/widgets"))
}

func TestStore_WithLock_BodyErrorAbortsSave(t *testing.T) {
	s := newTestStore(t)
	boom := errors.New("boom")

	err := s.WithLock(func(m *Manifest) error {
		m.Set("acme/widgets", NewCachedEntry("/p", "u", "main"))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, s.Load().Get("acme/widgets"))
}

func TestStore_WithLock_ReleasesOnError(t *testing.T) {
	s := newTestStore(t)

	_ = s.WithLock(func(m *Manifest) error { return errors.New("boom") })

	// A second call must acquire immediately.
	err := s.WithLock(func(m *Manifest) error { return nil })
	assert.NoError(t, err)
}

func TestStore_WithLock_SerializesBodies(t *testing.T) {
	s := newTestStore(t)

	var mu sync.Mutex
	var trace []string
	record := func(step string) {
		mu.Lock()
		trace = append(trace, step)
		mu.Unlock()
	}
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = s.WithLock(func(m *Manifest) error {
			record("first-start")
			time.Sleep(30 * time.Millisecond)
			record("first-end")
			return nil
		})
	}()

	// Give the first body time to take the lock.
	time.Sleep(10 * time.Millisecond)
	err := s.WithLock(func(m *Manifest) error {
		record("second")
		return nil
	})
	require.NoError(t, err)
	<-done

	assert.Equal(t, []string{"first-start", "first-end", "second"}, trace)
}

func TestManifest_Normalize_DropsOrphanedIndex(t *testing.T) {
	m := New()
	m.Set("acme/tools", NewLocalEntry("/home/dev/tools", "u1", "main"))
	m.LocalIndex["u2"] = "/nowhere"

	m.Normalize()

	assert.Equal(t, "/home/dev/tools", m.LocalIndex["u1"])
	_, ok := m.LocalIndex["u2"]
	assert.False(t, ok)
}

func TestManifest_Delete_RemovesIndex(t *testing.T) {
	m := New()
	m.Set("acme/tools", NewLocalEntry("/home/dev/tools", "u1", "main"))

	m.Delete("acme/tools")

	assert.Empty(t, m.Repos)
	assert.Empty(t, m.LocalIndex)
}
