package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semindex/semindex/internal/config"
	"github.com/semindex/semindex/internal/embedder"
	"github.com/semindex/semindex/internal/storage"
	"github.com/semindex/semindex/pkg/types"
)

func newTestConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		RootPath:     root,
		IndexDir:     filepath.Join(root, config.MarkerDir),
		Provider:     "local",
		Model:        "test-model",
		MaxBatchSize: 16,
		Workers:      2,
	}
	require.NoError(t, cfg.EnsureIndexDir())
	return cfg
}

func newTestIndexer(t *testing.T, root string) (*Indexer, storage.Storage, embedder.Embedder) {
	t.Helper()
	cfg := newTestConfig(t, root)

	store, err := storage.NewSQLiteStorage(cfg.DBPath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.New(cfg)
	require.NoError(t, err)

	return New(cfg, store, emb), store, emb
}

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestUpdate_IndexesNewFiles(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.py", "def alpha():\n    return 1\n")
	writeSource(t, root, "pkg/b.py", "def beta():\n    return 2\n")

	idx, store, _ := newTestIndexer(t, root)

	stats, err := idx.Update(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesScanned)
	assert.Equal(t, 2, stats.FilesUpserted)
	assert.Equal(t, 0, stats.FilesUnchanged)
	assert.Equal(t, 2, stats.ChunksIndexed)
	assert.Equal(t, 2, stats.EmbeddingsNew)
	assert.Greater(t, stats.EmbeddingCalls, 0)

	state, err := store.IndexState(context.Background())
	require.NoError(t, err)
	assert.Len(t, state, 2)
}

func TestUpdate_SecondRunIsNoOp(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.py", "x = 1\n")

	idx, _, _ := newTestIndexer(t, root)

	_, err := idx.Update(context.Background())
	require.NoError(t, err)

	stats, err := idx.Update(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.FilesUpserted)
	assert.Equal(t, 0, stats.FilesDeleted)
	assert.Equal(t, 1, stats.FilesUnchanged)
	assert.Equal(t, 0, stats.EmbeddingCalls, "no changes means zero backend calls")
}

func TestUpdate_OnlyChangedFilesReindexed(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.py", "x = 1\n")
	writeSource(t, root, "b.py", "y = 2\n")

	idx, _, _ := newTestIndexer(t, root)
	_, err := idx.Update(context.Background())
	require.NoError(t, err)

	writeSource(t, root, "a.py", "x = 99\n")

	stats, err := idx.Update(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesUpserted)
	assert.Equal(t, 1, stats.FilesUnchanged)
}

func TestUpdate_MovedContentReusesEmbedding(t *testing.T) {
	root := t.TempDir()
	body := "def shared():\n    return 'same everywhere'\n"
	writeSource(t, root, "old.py", body)

	idx, _, _ := newTestIndexer(t, root)
	_, err := idx.Update(context.Background())
	require.NoError(t, err)

	// Move the content to a new file name.
	require.NoError(t, os.Remove(filepath.Join(root, "old.py")))
	writeSource(t, root, "new.py", body)

	stats, err := idx.Update(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesUpserted)
	assert.Equal(t, 1, stats.FilesDeleted)
	assert.Equal(t, 0, stats.EmbeddingCalls, "identical content must reuse the stored vector")
	assert.Equal(t, 0, stats.EmbeddingsNew)
}

func TestUpdate_IdenticalContentAcrossFiles(t *testing.T) {
	root := t.TempDir()
	body := "def dup():\n    pass\n"
	writeSource(t, root, "a.py", body)
	writeSource(t, root, "b.py", body)

	idx, store, _ := newTestIndexer(t, root)

	stats, err := idx.Update(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesUpserted)
	assert.Equal(t, 1, stats.EmbeddingsNew, "one vector for the shared hash")

	dbStats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, dbStats.Chunks)
	assert.Equal(t, 1, dbStats.Embeddings)
}

func TestUpdate_DeletedFileRemoved(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "gone.py", "x = 1\n")
	writeSource(t, root, "stays.py", "y = 2\n")

	idx, store, _ := newTestIndexer(t, root)
	_, err := idx.Update(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "gone.py")))

	stats, err := idx.Update(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesDeleted)
	assert.Equal(t, 1, stats.FilesUnchanged)

	state, err := store.IndexState(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, state, "gone.py")
	assert.Contains(t, state, "stays.py")

	// The orphaned embedding is gone too.
	dbStats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dbStats.Embeddings)
}

func TestUpdate_ConcurrentCallerRejected(t *testing.T) {
	root := t.TempDir()
	idx, _, _ := newTestIndexer(t, root)

	require.True(t, idx.lock.TryAcquire())
	defer idx.lock.Release()

	_, err := idx.Update(context.Background())
	assert.ErrorIs(t, err, types.ErrUpdateInProgress)
}

func TestUpdate_ModelSwitchRejected(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.py", "x = 1\n")

	cfg := newTestConfig(t, root)
	store, err := storage.NewSQLiteStorage(cfg.DBPath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.New(cfg)
	require.NoError(t, err)

	_, err = New(cfg, store, emb).Update(context.Background())
	require.NoError(t, err)

	// Same database, different model.
	cfg2 := newTestConfig(t, root)
	cfg2.Model = "another-model"
	emb2, err := embedder.New(cfg2)
	require.NoError(t, err)

	_, err = New(cfg2, store, emb2).Update(context.Background())
	assert.ErrorIs(t, err, types.ErrModelMismatch)
}

func TestRebuild_AcceptsNewModel(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.py", "x = 1\n")

	cfg := newTestConfig(t, root)
	store, err := storage.NewSQLiteStorage(cfg.DBPath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.New(cfg)
	require.NoError(t, err)
	_, err = New(cfg, store, emb).Update(context.Background())
	require.NoError(t, err)

	cfg2 := newTestConfig(t, root)
	cfg2.Model = "replacement-model"
	emb2, err := embedder.New(cfg2)
	require.NoError(t, err)

	stats, err := New(cfg2, store, emb2).Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesUpserted)

	modelID, _, err := store.ActiveModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, emb2.ModelID(), modelID)
}

// resetHookStorage runs a callback before delegating Reset.
type resetHookStorage struct {
	storage.Storage
	onReset func(ctx context.Context)
}

func (s *resetHookStorage) Reset(ctx context.Context) error {
	if s.onReset != nil {
		s.onReset(ctx)
	}
	return s.Storage.Reset(ctx)
}

func TestRebuild_HoldsLockAcrossReset(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.py", "x = 1\n")

	cfg := newTestConfig(t, root)
	store, err := storage.NewSQLiteStorage(cfg.DBPath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.New(cfg)
	require.NoError(t, err)

	hook := &resetHookStorage{Storage: store}
	idx := New(cfg, hook, emb)

	// An update arriving while the store is being wiped must be rejected,
	// not run against a half-rebuilt index.
	var concurrent error
	hook.onReset = func(ctx context.Context) {
		_, concurrent = idx.Update(ctx)
	}

	stats, err := idx.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesUpserted)
	assert.ErrorIs(t, concurrent, types.ErrUpdateInProgress)
}

func TestUpdate_EmptyRoot(t *testing.T) {
	root := t.TempDir()
	idx, _, _ := newTestIndexer(t, root)

	stats, err := idx.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesScanned)
	assert.Equal(t, 0, stats.FilesUpserted)
}
