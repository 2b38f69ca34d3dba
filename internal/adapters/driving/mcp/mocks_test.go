package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driving"
)

// mockDownloadCoordinator is a mock implementation of driving.DownloadCoordinator.
type mockDownloadCoordinator struct {
	downloaded map[domain.Scope]bool
	records    []domain.DownloadRecord
	record     *domain.DownloadRecord
	status     *domain.PathStatus
	active     []domain.Scope
	err        error
	waitErr    error

	deleted []domain.Scope
	closed  int
}

func (m *mockDownloadCoordinator) Download(_ context.Context, scope domain.Scope) (driving.Download, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &mockDownload{parent: m, scope: scope}, nil
}

func (m *mockDownloadCoordinator) Delete(_ context.Context, scope domain.Scope) error {
	m.deleted = append(m.deleted, scope)
	return m.err
}

func (m *mockDownloadCoordinator) IsDownloaded(_ context.Context, scope domain.Scope) (bool, error) {
	return m.downloaded[scope], m.err
}

func (m *mockDownloadCoordinator) PathStatus(_ context.Context, pathID string) (*domain.PathStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.status != nil {
		return m.status, nil
	}
	return &domain.PathStatus{PathID: pathID}, nil
}

func (m *mockDownloadCoordinator) List(_ context.Context, _ domain.ScopeType) ([]domain.DownloadRecord, error) {
	return m.records, m.err
}

func (m *mockDownloadCoordinator) Clear(_ context.Context) error {
	return m.err
}

func (m *mockDownloadCoordinator) Active() []domain.Scope {
	return m.active
}

// mockDownload is a finished subscription.
type mockDownload struct {
	parent *mockDownloadCoordinator
	scope  domain.Scope
}

func (d *mockDownload) Scope() domain.Scope { return d.scope }

func (d *mockDownload) Updates() <-chan int {
	ch := make(chan int, 1)
	if d.parent.waitErr == nil {
		ch <- 100
	}
	close(ch)
	return ch
}

func (d *mockDownload) Wait(_ context.Context) (*domain.DownloadRecord, error) {
	return d.parent.record, d.parent.waitErr
}

func (d *mockDownload) Close() { d.parent.closed++ }

// mockSyncAgent is a mock implementation of driving.SyncAgent.
type mockSyncAgent struct {
	result  domain.ReplayResult
	pending []domain.PendingMutation
	err     error
}

func (m *mockSyncAgent) Enqueue(
	_ context.Context,
	kind domain.MutationKind,
	payload json.RawMessage,
) (*domain.PendingMutation, error) {
	return &domain.PendingMutation{ID: "m-1", Kind: kind, Payload: payload}, m.err
}

func (m *mockSyncAgent) Flush(_ context.Context) (domain.ReplayResult, error) {
	return m.result, m.err
}

func (m *mockSyncAgent) Drop(_ context.Context, _ string) error {
	return m.err
}

func (m *mockSyncAgent) Pending(_ context.Context) ([]domain.PendingMutation, error) {
	return m.pending, m.err
}

func (m *mockSyncAgent) Status(_ context.Context) (*driving.SyncStatus, error) {
	return &driving.SyncStatus{Pending: len(m.pending)}, m.err
}

// mockNetworkMonitor is a mock implementation of driving.NetworkMonitor.
type mockNetworkMonitor struct {
	state domain.NetworkState
}

func (m *mockNetworkMonitor) State() domain.NetworkState { return m.state }

func (m *mockNetworkMonitor) IsOnline() bool { return m.state == domain.Online }

func (m *mockNetworkMonitor) SetState(s domain.NetworkState) bool {
	changed := m.state != s
	m.state = s
	return changed
}

func (m *mockNetworkMonitor) AddListener(driving.NetworkListener) func() {
	return func() {}
}

// mockProgressRecorder is a mock implementation of driving.ProgressRecorder.
type mockProgressRecorder struct {
	queued   bool
	err      error
	kinds    []domain.MutationKind
	payloads []any
}

func (m *mockProgressRecorder) Record(_ context.Context, kind domain.MutationKind, payload any) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.kinds = append(m.kinds, kind)
	m.payloads = append(m.payloads, payload)
	return m.queued, nil
}

// mockLearningTracker is a mock implementation of driving.LearningTracker.
type mockLearningTracker struct {
	session *domain.StudySession
	calls   []string
	err     error
}

func (m *mockLearningTracker) Start(_ context.Context, pathID, chapterID string) error {
	m.calls = append(m.calls, "start")
	if m.err != nil {
		return m.err
	}
	m.session = &domain.StudySession{PathID: pathID, ChapterID: chapterID}
	return nil
}

func (m *mockLearningTracker) Activity() { m.calls = append(m.calls, "activity") }

func (m *mockLearningTracker) Pause() {
	m.calls = append(m.calls, "pause")
	if m.session != nil {
		m.session.Paused = true
	}
}

func (m *mockLearningTracker) Resume() {
	m.calls = append(m.calls, "resume")
	if m.session != nil {
		m.session.Paused = false
	}
}

func (m *mockLearningTracker) Current() *domain.StudySession {
	if m.session == nil {
		return nil
	}
	snapshot := *m.session
	return &snapshot
}

func (m *mockLearningTracker) Stop(_ context.Context) (time.Duration, error) {
	m.calls = append(m.calls, "stop")
	if m.session == nil {
		return 0, nil
	}
	active := m.session.Active
	m.session = nil
	return active, m.err
}
