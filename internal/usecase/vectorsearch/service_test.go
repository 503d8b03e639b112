package vectorsearch

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/logweave/internal/domain"
)

// --- Mocks ---

type mockRepo struct {
	knnHits   []domain.VectorHit
	knnErr    error
	knnCalls  []int
	getHit    domain.VectorHit
	getFound  bool
	getErr    error
	before    []domain.VectorHit
	beforeErr error
	after     []domain.VectorHit
	afterErr  error
	beforeTS  int64
	afterTS   int64
	windows   []int
}

func (m *mockRepo) SearchKNN(_ context.Context, _ []float32, k int, _ domain.VectorFilter) ([]domain.VectorHit, error) {
	m.knnCalls = append(m.knnCalls, k)
	return m.knnHits, m.knnErr
}

func (m *mockRepo) Get(_ context.Context, _ string) (domain.VectorHit, bool, error) {
	return m.getHit, m.getFound, m.getErr
}

func (m *mockRepo) Before(_ context.Context, ts int64, n int) ([]domain.VectorHit, error) {
	m.beforeTS = ts
	m.windows = append(m.windows, n)
	return m.before, m.beforeErr
}

func (m *mockRepo) After(_ context.Context, ts int64, n int) ([]domain.VectorHit, error) {
	m.afterTS = ts
	m.windows = append(m.windows, n)
	return m.after, m.afterErr
}

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return m.result, nil
}

func hitAt(id string, ts int64) domain.VectorHit {
	return domain.VectorHit{
		ID:      id,
		Payload: map[string]string{"timestamp": strconv.FormatInt(ts, 10)},
	}
}

func newTestService(repo *mockRepo, embed *mockEmbedder) *Service {
	return New(repo, embed, zap.NewNop())
}

// --- Tests ---

func TestSearchReturnsRankedHits(t *testing.T) {
	repo := &mockRepo{knnHits: []domain.VectorHit{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.7},
	}}
	svc := newTestService(repo, &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}})

	hits := svc.Search(context.Background(), "connection refused", 5, domain.VectorFilter{})
	if len(hits) != 2 || hits[0].ID != "a" {
		t.Errorf("hits = %+v", hits)
	}
	if repo.knnCalls[0] != 5 {
		t.Errorf("k = %d, want 5", repo.knnCalls[0])
	}
}

func TestSearchDefaultsLimit(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}})

	svc.Search(context.Background(), "q", 0, domain.VectorFilter{})
	if repo.knnCalls[0] != DefaultLimit {
		t.Errorf("k = %d, want %d", repo.knnCalls[0], DefaultLimit)
	}
}

func TestSearchDegradesOnEmbedFailure(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo, &mockEmbedder{err: errors.New("provider down")})

	hits := svc.Search(context.Background(), "q", 5, domain.VectorFilter{})
	if hits == nil || len(hits) != 0 {
		t.Errorf("hits = %v, want empty non-nil slice", hits)
	}
	if len(repo.knnCalls) != 0 {
		t.Error("index queried after embed failure")
	}
}

func TestSearchDegradesOnIndexFailure(t *testing.T) {
	repo := &mockRepo{knnErr: errors.New("redis down")}
	svc := newTestService(repo, &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}})

	hits := svc.Search(context.Background(), "q", 5, domain.VectorFilter{})
	if hits == nil || len(hits) != 0 {
		t.Errorf("hits = %v, want empty non-nil slice", hits)
	}
}

func TestContextWindow(t *testing.T) {
	const targetTS = int64(1625097600000)
	repo := &mockRepo{
		getHit:   hitAt("target", targetTS),
		getFound: true,
		before: []domain.VectorHit{
			hitAt("b1", targetTS-10000),
			hitAt("b2", targetTS-5000),
		},
		after: []domain.VectorHit{
			hitAt("a1", targetTS+5000),
			hitAt("a2", targetTS+10000),
		},
	}
	svc := newTestService(repo, &mockEmbedder{})

	tc := svc.Context(context.Background(), "target", 2)

	if tc.Target == nil || tc.Target.Payload["timestamp"] != "1625097600000" {
		t.Fatalf("target = %+v", tc.Target)
	}
	if len(tc.Before) != 2 || tc.Before[0].ID != "b1" || tc.Before[1].ID != "b2" {
		t.Errorf("before = %+v", tc.Before)
	}
	if len(tc.After) != 2 || tc.After[0].ID != "a1" || tc.After[1].ID != "a2" {
		t.Errorf("after = %+v", tc.After)
	}
	if repo.beforeTS != targetTS || repo.afterTS != targetTS {
		t.Errorf("window anchored at %d / %d, want %d", repo.beforeTS, repo.afterTS, targetTS)
	}
	for _, w := range repo.windows {
		if w != 2 {
			t.Errorf("window size = %d, want 2", w)
		}
	}
}

func TestContextAbsentTarget(t *testing.T) {
	repo := &mockRepo{getFound: false}
	svc := newTestService(repo, &mockEmbedder{})

	tc := svc.Context(context.Background(), "ghost", 2)
	if tc.Target != nil || len(tc.Before) != 0 || len(tc.After) != 0 {
		t.Errorf("context = %+v", tc)
	}
	if tc.Before == nil || tc.After == nil {
		t.Error("empty context slices must be non-nil")
	}
}

func TestContextTargetWithoutTimestamp(t *testing.T) {
	repo := &mockRepo{
		getHit:   domain.VectorHit{ID: "target", Payload: map[string]string{"body": "x"}},
		getFound: true,
	}
	svc := newTestService(repo, &mockEmbedder{})

	tc := svc.Context(context.Background(), "target", 2)
	if len(tc.Before) != 1 || tc.Before[0].ID != "target" {
		t.Errorf("before = %+v, want the target as sole element", tc.Before)
	}
	if len(tc.After) != 0 {
		t.Errorf("after = %+v, want empty", tc.After)
	}
	if len(repo.windows) != 0 {
		t.Error("window queries run without a timestamp anchor")
	}
}

func TestContextDegradesOnLookupFailure(t *testing.T) {
	repo := &mockRepo{getErr: errors.New("redis down")}
	svc := newTestService(repo, &mockEmbedder{})

	tc := svc.Context(context.Background(), "target", 2)
	if tc.Target != nil || len(tc.Before) != 0 || len(tc.After) != 0 {
		t.Errorf("context = %+v", tc)
	}
}

func TestContextDegradesOnWindowFailure(t *testing.T) {
	repo := &mockRepo{
		getHit:    hitAt("target", 1625097600000),
		getFound:  true,
		beforeErr: errors.New("redis down"),
	}
	svc := newTestService(repo, &mockEmbedder{})

	tc := svc.Context(context.Background(), "target", 2)
	if tc.Target != nil || len(tc.Before) != 0 {
		t.Errorf("context = %+v", tc)
	}
}

func TestContextDefaultsWindow(t *testing.T) {
	repo := &mockRepo{getHit: hitAt("t", 1), getFound: true}
	svc := newTestService(repo, &mockEmbedder{})

	svc.Context(context.Background(), "t", 0)
	if len(repo.windows) == 0 || repo.windows[0] != DefaultWindow {
		t.Errorf("windows = %v, want %d", repo.windows, DefaultWindow)
	}
}
