package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hibernate-pano/study-with-me-sub001/internal/adapters/driven/storage/memory"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/services"
)

func TestServer_handleRecordProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("queued while offline", func(t *testing.T) {
		recorder := &mockProgressRecorder{queued: true}
		server := newTestServer(t, &Ports{Downloads: &mockDownloadCoordinator{}, Progress: recorder})

		_, output, err := server.handleRecordProgress(ctx, nil, RecordProgressInput{
			Kind:    "progress-update",
			Payload: map[string]any{"path_id": "p1", "percent": 40},
		})
		require.NoError(t, err)
		assert.True(t, output.Queued)
		assert.Equal(t, "progress-update", output.Kind)
		assert.Equal(t, []domain.MutationKind{domain.MutationProgressUpdate}, recorder.kinds)
	})

	t.Run("missing payload", func(t *testing.T) {
		server := newTestServer(t, &Ports{Downloads: &mockDownloadCoordinator{}, Progress: &mockProgressRecorder{}})

		_, _, err := server.handleRecordProgress(ctx, nil, RecordProgressInput{Kind: "progress-update"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("recorder error", func(t *testing.T) {
		recorder := &mockProgressRecorder{err: domain.ErrRejected}
		server := newTestServer(t, &Ports{Downloads: &mockDownloadCoordinator{}, Progress: recorder})

		_, _, err := server.handleRecordProgress(ctx, nil, RecordProgressInput{
			Kind:    "chapter-complete",
			Payload: map[string]any{"chapter_id": "c1"},
		})
		assert.ErrorIs(t, err, domain.ErrRejected)
	})

	t.Run("no recorder", func(t *testing.T) {
		server := newTestServer(t, &Ports{Downloads: &mockDownloadCoordinator{}})

		_, _, err := server.handleRecordProgress(ctx, nil, RecordProgressInput{
			Kind:    "progress-update",
			Payload: map[string]any{},
		})
		assert.ErrorIs(t, err, errProgressUnavailable)
	})
}

func TestServer_handleStudySession(t *testing.T) {
	ctx := context.Background()

	t.Run("start pause status stop", func(t *testing.T) {
		tracker := &mockLearningTracker{}
		server := newTestServer(t, &Ports{Downloads: &mockDownloadCoordinator{}, Tracker: tracker})

		_, output, err := server.handleStudySession(ctx, nil, StudySessionInput{
			Action: "start", PathID: "p1", ChapterID: "c1",
		})
		require.NoError(t, err)
		assert.True(t, output.Running)
		assert.Equal(t, "c1", output.ChapterID)

		_, output, err = server.handleStudySession(ctx, nil, StudySessionInput{Action: "pause"})
		require.NoError(t, err)
		assert.True(t, output.Paused)

		tracker.session.Active = 90 * time.Second
		_, output, err = server.handleStudySession(ctx, nil, StudySessionInput{Action: "status"})
		require.NoError(t, err)
		assert.Equal(t, int64(90), output.ActiveSeconds)

		_, output, err = server.handleStudySession(ctx, nil, StudySessionInput{Action: "stop"})
		require.NoError(t, err)
		assert.False(t, output.Running)
		assert.Equal(t, "c1", output.ChapterID)
		assert.Equal(t, int64(90), output.RecordedSeconds)

		assert.Equal(t, []string{"start", "pause", "stop"}, tracker.calls)
	})

	t.Run("start error", func(t *testing.T) {
		tracker := &mockLearningTracker{err: domain.ErrInvalidInput}
		server := newTestServer(t, &Ports{Downloads: &mockDownloadCoordinator{}, Tracker: tracker})

		_, _, err := server.handleStudySession(ctx, nil, StudySessionInput{Action: "start"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("unknown action", func(t *testing.T) {
		server := newTestServer(t, &Ports{Downloads: &mockDownloadCoordinator{}, Tracker: &mockLearningTracker{}})

		_, _, err := server.handleStudySession(ctx, nil, StudySessionInput{Action: "skip"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("no tracker", func(t *testing.T) {
		server := newTestServer(t, &Ports{Downloads: &mockDownloadCoordinator{}})

		_, _, err := server.handleStudySession(ctx, nil, StudySessionInput{Action: "status"})
		assert.ErrorIs(t, err, errTrackerUnavailable)
	})
}

// recordingReplayer accepts every mutation and remembers its ID.
type recordingReplayer struct {
	replayed []string
}

func (r *recordingReplayer) Replay(_ context.Context, m domain.PendingMutation) error {
	r.replayed = append(r.replayed, m.ID)
	return nil
}

func TestServer_RecordedProgressIsQueuedAndReplayed(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewMutationQueue()
	network := services.NewNetworkMonitor(domain.Offline, nil)
	replayer := &recordingReplayer{}
	sync := services.NewSyncAgent(queue, replayer, network, 0, nil)
	recorder := services.NewProgressService(queue, replayer, network, nil)

	server := newTestServer(t, &Ports{
		Downloads: &mockDownloadCoordinator{},
		Sync:      sync,
		Network:   network,
		Progress:  recorder,
	})

	_, recorded, err := server.handleRecordProgress(ctx, nil, RecordProgressInput{
		Kind:    "progress-update",
		Payload: map[string]any{"path_id": "p1", "percent": 60},
	})
	require.NoError(t, err)
	assert.True(t, recorded.Queued)

	result, err := server.handleQueueResource(ctx, readRequest(queueURI))
	require.NoError(t, err)
	var pending []map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &pending))
	require.Len(t, pending, 1)

	assert.Empty(t, replayer.replayed)
	network.SetState(domain.Online)

	_, synced, err := server.handleSyncNow(ctx, nil, SyncInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, synced.Replayed)
	assert.Zero(t, synced.Remaining)
	assert.Len(t, replayer.replayed, 1)
}
