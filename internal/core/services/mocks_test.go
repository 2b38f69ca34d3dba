package services

import (
	"context"
	"sync"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driving"
)

// --- Mock implementations shared by service tests ---

// mockFetcher implements driven.ContentFetcher.
// Each Fetch reports progress, then blocks until release is closed or the
// context is cancelled.
type mockFetcher struct {
	mu       sync.Mutex
	calls    int
	progress []int64 // bytes done, reported against a total of 100
	content  map[domain.Scope]*domain.Content
	err      error

	started chan domain.Scope
	release chan struct{}
	aborted chan domain.Scope
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		content: make(map[domain.Scope]*domain.Content),
		started: make(chan domain.Scope, 16),
		release: make(chan struct{}),
		aborted: make(chan domain.Scope, 16),
	}
}

// unblocked makes every Fetch return immediately.
func (m *mockFetcher) unblocked() *mockFetcher {
	close(m.release)
	return m
}

func (m *mockFetcher) Fetch(ctx context.Context, scope domain.Scope, progress driven.ProgressFunc) (*domain.Content, error) {
	m.mu.Lock()
	m.calls++
	steps := append([]int64(nil), m.progress...)
	content := m.content[scope]
	err := m.err
	m.mu.Unlock()

	for _, done := range steps {
		progress(done, 100)
	}
	m.started <- scope

	select {
	case <-ctx.Done():
		m.aborted <- scope
		return nil, ctx.Err()
	case <-m.release:
	}

	if err != nil {
		return nil, err
	}
	if content == nil {
		content = &domain.Content{Data: []byte(`{"id":"` + scope.ID + `"}`)}
	}
	return content, nil
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockReplayer implements driven.MutationReplayer.
type mockReplayer struct {
	mu       sync.Mutex
	replayed []domain.PendingMutation
	failOn   map[string]error // by mutation ID
	failAll  error
	block    chan struct{} // when set, Replay waits for it
	entered  chan struct{}
}

func newMockReplayer() *mockReplayer {
	return &mockReplayer{failOn: make(map[string]error)}
}

func (m *mockReplayer) Replay(ctx context.Context, mut domain.PendingMutation) error {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.block != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.block:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	if err, ok := m.failOn[mut.ID]; ok {
		return err
	}
	m.replayed = append(m.replayed, mut)
	return nil
}

func (m *mockReplayer) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.replayed))
	for i, mut := range m.replayed {
		ids[i] = mut.ID
	}
	return ids
}

func (m *mockReplayer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replayed)
}

// mockMetrics implements driven.Metrics and records what it saw.
type mockMetrics struct {
	mu          sync.Mutex
	downloads   []string
	replays     []string
	transitions []domain.NetworkState
	pending     int
}

func (m *mockMetrics) DownloadFinished(scopeType domain.ScopeType, result string, _ int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads = append(m.downloads, string(scopeType)+":"+result)
}

func (m *mockMetrics) MutationReplayed(kind domain.MutationKind, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replays = append(m.replays, string(kind)+":"+result)
}

func (m *mockMetrics) NetworkTransition(to domain.NetworkState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, to)
}

func (m *mockMetrics) PendingMutations(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = n
}

func (m *mockMetrics) downloadResults() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.downloads...)
}

// mockProbe implements driven.ConnectivityProbe, returning a scripted
// sequence of states and then repeating the last one.
type mockProbe struct {
	mu     sync.Mutex
	states []domain.NetworkState
	calls  int
}

func (m *mockProbe) Probe(_ context.Context) domain.NetworkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	if i >= len(m.states) {
		i = len(m.states) - 1
	}
	m.calls++
	return m.states[i]
}

// failingContentStore wraps a driven.ContentStore and fails every Save.
type failingContentStore struct {
	driven.ContentStore
	err error
}

func (s *failingContentStore) Save(context.Context, domain.Scope, domain.Content) (*domain.DownloadRecord, error) {
	return nil, s.err
}

// mockRecorder implements driving.ProgressRecorder.
type mockRecorder struct {
	mu      sync.Mutex
	kinds   []domain.MutationKind
	records []any
	err     error
}

func (m *mockRecorder) Record(_ context.Context, kind domain.MutationKind, payload any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	m.kinds = append(m.kinds, kind)
	m.records = append(m.records, payload)
	return false, nil
}

// Ensure mocks implement interfaces
var (
	_ driven.ContentFetcher    = (*mockFetcher)(nil)
	_ driven.MutationReplayer  = (*mockReplayer)(nil)
	_ driven.Metrics           = (*mockMetrics)(nil)
	_ driven.ConnectivityProbe = (*mockProbe)(nil)
	_ driving.ProgressRecorder = (*mockRecorder)(nil)
	_ driven.ContentStore      = (*failingContentStore)(nil)
)
