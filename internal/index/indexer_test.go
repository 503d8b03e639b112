package index

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/logweave/internal/db"
	"github.com/kailas-cloud/logweave/internal/domain"
)

// --- Mocks ---

type mockStore struct {
	hsetItems   [][]db.HashSetItem
	hsetErr     error
	hgetResult  map[string]string
	hgetErr     error
	created     []*db.IndexDefinition
	createErr   error
	exists      bool
	existsErr   error
	existsCalls int
	knnResult   *db.SearchResult
	knnErr      error
	listQueries []*db.ListQuery
	listResults []*db.SearchResult
	listErr     error
}

func (m *mockStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	m.hsetItems = append(m.hsetItems, items)
	return m.hsetErr
}

func (m *mockStore) HGetAll(_ context.Context, _ string) (map[string]string, error) {
	return m.hgetResult, m.hgetErr
}

func (m *mockStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	m.created = append(m.created, def)
	return m.createErr
}

func (m *mockStore) IndexExists(_ context.Context, _ string) (bool, error) {
	m.existsCalls++
	return m.exists, m.existsErr
}

func (m *mockStore) SearchKNN(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
	if m.knnErr != nil {
		return nil, m.knnErr
	}
	return m.knnResult, nil
}

func (m *mockStore) SearchList(_ context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	m.listQueries = append(m.listQueries, q)
	if m.listErr != nil {
		return nil, m.listErr
	}
	res := m.listResults[0]
	m.listResults = m.listResults[1:]
	return res, nil
}

type mockBatchEmbedder struct {
	dim   int
	calls [][]string
	err   error
	// vectors overrides the generated embeddings when set
	vectors [][]float32
}

func (m *mockBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.calls = append(m.calls, texts)
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	if m.vectors != nil {
		return domain.BatchEmbeddingResult{Embeddings: m.vectors}, nil
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, m.dim)
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

func testEntries(t *testing.T, n int) []domain.Entry {
	t.Helper()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entries := make([]domain.Entry, n)
	for i := range entries {
		entries[i] = domain.Entry{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			ClientID:  "client-a",
			Severity:  "ERROR",
			Body:      "boom",
		}
	}
	return entries
}

func newTestIndexer(store *mockStore, embed domain.BatchEmbedder) *Indexer {
	return NewIndexer(store, embed, Config{
		Collection: "log_vectors",
		Dimensions: 4,
		BatchSize:  100,
	}, zap.NewNop())
}

// --- Tests ---

func TestEnsureCollectionCreatesOnce(t *testing.T) {
	store := &mockStore{}
	ix := newTestIndexer(store, &mockBatchEmbedder{dim: 4})

	ctx := context.Background()
	if err := ix.EnsureCollection(ctx); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if err := ix.EnsureCollection(ctx); err != nil {
		t.Fatalf("EnsureCollection second call: %v", err)
	}

	if store.existsCalls != 1 {
		t.Errorf("existence probed %d times, want 1", store.existsCalls)
	}
	if len(store.created) != 1 {
		t.Fatalf("CreateIndex called %d times, want 1", len(store.created))
	}

	def := store.created[0]
	if def.Name != "log_vectors:idx" {
		t.Errorf("index name = %q", def.Name)
	}
	var vec *db.IndexField
	for i := range def.Fields {
		if def.Fields[i].Type == db.IndexFieldVector {
			vec = &def.Fields[i]
		}
	}
	if vec == nil {
		t.Fatal("no vector field in definition")
	}
	if vec.VectorDim != 4 || vec.VectorDistance != db.DistanceCosine {
		t.Errorf("vector field = %+v", vec)
	}
}

func TestEnsureCollectionRetriesAfterFailure(t *testing.T) {
	store := &mockStore{existsErr: errors.New("redis down")}
	ix := newTestIndexer(store, &mockBatchEmbedder{dim: 4})

	ctx := context.Background()
	if ids := ix.Index(ctx, testEntries(t, 2)); len(ids) != 0 {
		t.Fatalf("indexed %d while backend down, want 0", len(ids))
	}

	store.existsErr = nil
	ids := ix.Index(ctx, testEntries(t, 2))
	if len(ids) != 2 {
		t.Fatalf("indexed %d after backend recovered, want 2", len(ids))
	}
	if store.existsCalls != 2 {
		t.Errorf("existence probed %d times, want 2", store.existsCalls)
	}
	if len(store.hsetItems) != 1 {
		t.Errorf("upsert batches = %d, want 1", len(store.hsetItems))
	}
}

func TestEnsureCollectionAlreadyExists(t *testing.T) {
	store := &mockStore{exists: true}
	ix := newTestIndexer(store, &mockBatchEmbedder{dim: 4})

	if err := ix.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if len(store.created) != 0 {
		t.Error("CreateIndex called for an existing collection")
	}
}

func TestEnsureCollectionLostCreateRace(t *testing.T) {
	store := &mockStore{createErr: db.ErrIndexExists}
	ix := newTestIndexer(store, &mockBatchEmbedder{dim: 4})

	if err := ix.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
}

func TestIndexUpsertsEntries(t *testing.T) {
	store := &mockStore{}
	ix := newTestIndexer(store, &mockBatchEmbedder{dim: 4})

	ids := ix.Index(context.Background(), testEntries(t, 3))
	if len(ids) != 3 {
		t.Fatalf("indexed %d, want 3", len(ids))
	}

	if len(store.hsetItems) != 1 || len(store.hsetItems[0]) != 3 {
		t.Fatalf("unexpected upsert batches: %v", store.hsetItems)
	}
	for i, item := range store.hsetItems[0] {
		if !strings.HasPrefix(item.Key, "log_vectors:") {
			t.Errorf("key %q missing collection prefix", item.Key)
		}
		if item.Key != "log_vectors:"+ids[i] {
			t.Errorf("key %q does not match returned id %q", item.Key, ids[i])
		}
		if item.Fields["vector"] == "" || item.Fields["timestamp"] == "" {
			t.Errorf("item %d missing fields: %v", i, item.Fields)
		}
		if item.Fields["summary"] != "[ERROR] boom" {
			t.Errorf("summary = %q", item.Fields["summary"])
		}
	}
}

func TestIndexSplitsBatches(t *testing.T) {
	store := &mockStore{}
	embed := &mockBatchEmbedder{dim: 4}
	ix := NewIndexer(store, embed, Config{
		Collection: "log_vectors",
		Dimensions: 4,
		BatchSize:  2,
	}, zap.NewNop())

	ids := ix.Index(context.Background(), testEntries(t, 5))
	if len(ids) != 5 {
		t.Fatalf("indexed %d, want 5", len(ids))
	}
	if len(embed.calls) != 3 {
		t.Errorf("embed batches = %d, want 3", len(embed.calls))
	}
	if len(embed.calls[0]) != 2 || len(embed.calls[2]) != 1 {
		t.Errorf("batch sizes = %d %d %d", len(embed.calls[0]), len(embed.calls[1]), len(embed.calls[2]))
	}
}

func TestIndexEmbeddingFailureIsBestEffort(t *testing.T) {
	store := &mockStore{}
	ix := newTestIndexer(store, &mockBatchEmbedder{err: errors.New("provider down")})

	ids := ix.Index(context.Background(), testEntries(t, 2))
	if len(ids) != 0 {
		t.Errorf("indexed %d after embed failure, want 0", len(ids))
	}
	if len(store.hsetItems) != 0 {
		t.Error("upsert attempted after embed failure")
	}
}

func TestIndexSkipsDimensionMismatch(t *testing.T) {
	store := &mockStore{}
	embed := &mockBatchEmbedder{vectors: [][]float32{
		{1, 2, 3, 4},
		{1, 2}, // wrong dimension, must be skipped
		{5, 6, 7, 8},
	}}
	ix := newTestIndexer(store, embed)

	ids := ix.Index(context.Background(), testEntries(t, 3))
	if len(ids) != 2 {
		t.Fatalf("indexed %d, want 2", len(ids))
	}
	if len(store.hsetItems[0]) != 2 {
		t.Errorf("upserted %d items, want 2", len(store.hsetItems[0]))
	}
}

func TestIndexUpsertFailureIsBestEffort(t *testing.T) {
	store := &mockStore{hsetErr: errors.New("redis down")}
	ix := newTestIndexer(store, &mockBatchEmbedder{dim: 4})

	ids := ix.Index(context.Background(), testEntries(t, 2))
	if len(ids) != 0 {
		t.Errorf("indexed %d after upsert failure, want 0", len(ids))
	}
}

func TestIndexUnavailableCollection(t *testing.T) {
	store := &mockStore{existsErr: errors.New("redis down")}
	ix := newTestIndexer(store, &mockBatchEmbedder{dim: 4})

	ids := ix.Index(context.Background(), testEntries(t, 2))
	if len(ids) != 0 {
		t.Errorf("indexed %d with unavailable collection, want 0", len(ids))
	}
}

func TestIndexEmpty(t *testing.T) {
	store := &mockStore{}
	ix := newTestIndexer(store, &mockBatchEmbedder{dim: 4})

	if ids := ix.Index(context.Background(), nil); len(ids) != 0 {
		t.Errorf("indexed %d for empty input", len(ids))
	}
	if store.existsCalls != 0 {
		t.Error("collection probed for empty input")
	}
}
