package searcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semindex/semindex/internal/config"
	"github.com/semindex/semindex/internal/embedder"
	"github.com/semindex/semindex/internal/indexer"
	"github.com/semindex/semindex/internal/storage"
	"github.com/semindex/semindex/pkg/types"
)

// newIndexedSearcher builds a searcher over a freshly indexed root.
func newIndexedSearcher(t *testing.T, sources map[string]string) (*Searcher, *indexer.Indexer, string) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range sources {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfg := &config.Config{
		RootPath:     root,
		IndexDir:     filepath.Join(root, config.MarkerDir),
		Provider:     "local",
		Model:        "test-model",
		MaxBatchSize: 16,
		Workers:      2,
	}
	require.NoError(t, cfg.EnsureIndexDir())

	store, err := storage.NewSQLiteStorage(cfg.DBPath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.New(cfg)
	require.NoError(t, err)

	idx := indexer.New(cfg, store, emb)
	if len(sources) > 0 {
		_, err = idx.Update(context.Background())
		require.NoError(t, err)
	}

	return New(store, emb, idx), idx, root
}

func TestSearch_ReturnsRankedResults(t *testing.T) {
	s, _, _ := newIndexedSearcher(t, map[string]string{
		"auth.py":  "def authenticate(user, password):\n    return check(user, password)\n",
		"math.py":  "def add(a, b):\n    return a + b\n",
		"parse.py": "def parse_config(path):\n    return load(path)\n",
	})

	resp, err := s.Search(context.Background(), Request{Query: "user authentication"})
	require.NoError(t, err)

	require.Len(t, resp.Results, 3)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
	}
	for _, r := range resp.Results {
		assert.NoError(t, r.Validate())
	}
}

func TestSearch_ExactContentRanksFirst(t *testing.T) {
	// The local model maps identical text to identical vectors, so a query
	// equal to a chunk's content scores 1.0 for that chunk.
	body := "def exact_match():\n    pass"
	s, _, _ := newIndexedSearcher(t, map[string]string{
		"target.py": body,
		"other.py":  "completely unrelated text\n",
	})

	resp, err := s.Search(context.Background(), Request{Query: body})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "target.py", resp.Results[0].FilePath)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-4)
}

func TestSearch_EmptyQuery(t *testing.T) {
	s, _, _ := newIndexedSearcher(t, map[string]string{"a.py": "x = 1\n"})

	_, err := s.Search(context.Background(), Request{Query: ""})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearch_NotIndexed(t *testing.T) {
	s, _, _ := newIndexedSearcher(t, nil)

	_, err := s.Search(context.Background(), Request{Query: "anything"})
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestSearch_LimitValidation(t *testing.T) {
	s, _, _ := newIndexedSearcher(t, map[string]string{"a.py": "x = 1\n"})

	_, err := s.Search(context.Background(), Request{Query: "q", Limit: -1})
	assert.ErrorIs(t, err, types.ErrInvalidLimit)

	// Zero means default, above the ceiling clamps.
	resp, err := s.Search(context.Background(), Request{Query: "q", Limit: 0})
	require.NoError(t, err)
	assert.NotNil(t, resp)

	resp, err = s.Search(context.Background(), Request{Query: "q", Limit: MaxLimit + 500})
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestSearch_OffsetValidation(t *testing.T) {
	s, _, _ := newIndexedSearcher(t, map[string]string{"a.py": "x = 1\n"})

	_, err := s.Search(context.Background(), Request{Query: "q", Offset: -1})
	assert.ErrorIs(t, err, types.ErrInvalidOffset)

	resp, err := s.Search(context.Background(), Request{Query: "q", Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearch_Pagination(t *testing.T) {
	s, _, _ := newIndexedSearcher(t, map[string]string{
		"a.py": "alpha\n",
		"b.py": "beta\n",
		"c.py": "gamma\n",
	})

	all, err := s.Search(context.Background(), Request{Query: "q", Limit: 10})
	require.NoError(t, err)
	require.Len(t, all.Results, 3)

	page, err := s.Search(context.Background(), Request{Query: "q", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	assert.Equal(t, all.Results[1], page.Results[0])
	assert.Equal(t, all.Results[2], page.Results[1])
}

func TestSearch_RefreshPicksUpNewFile(t *testing.T) {
	s, _, root := newIndexedSearcher(t, map[string]string{"a.py": "x = 1\n"})

	require.NoError(t, os.WriteFile(filepath.Join(root, "fresh.py"), []byte("brand new\n"), 0o644))

	resp, err := s.Search(context.Background(), Request{Query: "brand new", Refresh: true})
	require.NoError(t, err)

	require.NotNil(t, resp.Refresh)
	assert.Equal(t, 1, resp.Refresh.FilesUpserted)

	paths := make(map[string]bool)
	for _, r := range resp.Results {
		paths[r.FilePath] = true
	}
	assert.True(t, paths["fresh.py"])
}

func TestSearch_DuplicateContentTieBreaksByPath(t *testing.T) {
	// Identical chunk text in two files shares a vector, so both score the
	// same; limit=1 must pick the lexicographically first path.
	body := "def f(): return 1"
	s, _, _ := newIndexedSearcher(t, map[string]string{
		"a.py": body,
		"b.py": body,
	})

	resp, err := s.Search(context.Background(), Request{Query: "return 1 function", Limit: 1})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a.py", resp.Results[0].FilePath)
}

func TestSearch_ModelMismatch(t *testing.T) {
	s, _, root := newIndexedSearcher(t, map[string]string{"a.py": "x = 1\n"})

	// Same store, different active model: the query must be refused, never
	// compared against vectors from another model.
	other, err := embedder.New(&config.Config{
		RootPath:     root,
		Provider:     "local",
		Model:        "other-model",
		MaxBatchSize: 16,
		Workers:      2,
	})
	require.NoError(t, err)

	stale := New(s.storage, other, nil)
	_, err = stale.Search(context.Background(), Request{Query: "anything"})
	assert.ErrorIs(t, err, types.ErrModelMismatch)
}

// truncatingEmbedder reports the wrapped embedder's identity but returns
// query vectors of the wrong length.
type truncatingEmbedder struct {
	embedder.Embedder
	dim int
}

func (e *truncatingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, e.dim), nil
}

func TestSearch_DimensionMismatch(t *testing.T) {
	s, _, _ := newIndexedSearcher(t, map[string]string{"a.py": "x = 1\n"})

	broken := New(s.storage, &truncatingEmbedder{Embedder: s.embedder, dim: 7}, nil)
	_, err := broken.Search(context.Background(), Request{Query: "anything"})
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestSearch_NilIndexerIgnoresRefresh(t *testing.T) {
	s, _, _ := newIndexedSearcher(t, map[string]string{"a.py": "x = 1\n"})
	s.indexer = nil

	resp, err := s.Search(context.Background(), Request{Query: "q", Refresh: true})
	require.NoError(t, err)
	assert.Nil(t, resp.Refresh)
	assert.NotEmpty(t, resp.Results)
}
