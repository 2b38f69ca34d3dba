package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/hibernate-pano/study-with-me-sub001/internal/adapters/driven/storage/memory"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/services"
)

// stubBackend serves small fixed payloads and accepts every replay.
type stubBackend struct {
	mu        sync.Mutex
	chapters  map[string][]string
	failFor   map[domain.Scope]error
	replayed  []string
	replayErr error
}

func (b *stubBackend) Fetch(_ context.Context, scope domain.Scope, progress driven.ProgressFunc) (*domain.Content, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failFor[scope]; err != nil {
		return nil, err
	}
	data := []byte("content of " + scope.String())
	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return &domain.Content{Data: data, ChapterIDs: b.chapters[scope.ID]}, nil
}

func (b *stubBackend) Replay(_ context.Context, m domain.PendingMutation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.replayErr != nil {
		return b.replayErr
	}
	b.replayed = append(b.replayed, m.ID)
	return nil
}

func (b *stubBackend) Probe(context.Context) domain.NetworkState {
	return domain.Online
}

// replays returns the IDs replayed so far.
func (b *stubBackend) replays() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.replayed...)
}

// tickingClock moves forward by step every time it is read.
type tickingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// cliTest holds the real services the commands run against.
type cliTest struct {
	out     *bytes.Buffer
	backend *stubBackend
	network *services.NetworkMonitor
	content *memory.ContentStore
	queue   *memory.MutationQueue
	sync    *services.SyncAgent
	tracker *services.LearningTimeTracker
	config  *memory.ConfigStore
}

// setupCLITest wires in-memory services into the command variables and
// restores everything when the test ends.
func setupCLITest(t *testing.T, state domain.NetworkState) *cliTest {
	t.Helper()

	ct := &cliTest{
		out: new(bytes.Buffer),
		backend: &stubBackend{
			chapters: map[string][]string{"p1": {"c1", "c2"}},
			failFor:  map[domain.Scope]error{},
		},
		network: services.NewNetworkMonitor(state, nil),
		content: memory.NewContentStore(0),
		queue:   memory.NewMutationQueue(),
		config:  memory.NewConfigStore(),
	}
	ct.sync = services.NewSyncAgent(ct.queue, ct.backend, ct.network, 0, nil)

	oldLoad := loadServices
	loadServices = func(*cobra.Command) error { return nil }

	downloadCoordinator = services.NewDownloadService(ct.content, ct.backend, ct.network, nil)
	syncAgent = ct.sync
	networkMonitor = ct.network
	progressRecorder = services.NewProgressService(ct.queue, ct.backend, ct.network, nil)
	ct.tracker = services.NewLearningTimeTracker(progressRecorder, 0)
	ct.tracker.SetClock((&tickingClock{
		now:  time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC),
		step: 10 * time.Second,
	}).Now)
	learningTracker = ct.tracker
	settingsService = services.NewSettingsService(ct.config)

	rootCmd.SetOut(ct.out)
	rootCmd.SetErr(ct.out)

	t.Cleanup(func() {
		loadServices = oldLoad
		downloadCoordinator = nil
		syncAgent = nil
		networkMonitor = nil
		progressRecorder = nil
		learningTracker = nil
		settingsService = nil
		downloadWithChapters = false
		progressChapterID = ""
		studyPathID = ""
		clearConfirmed = false
		listType = ""
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	return ct
}

// run executes the root command with args.
func (ct *cliTest) run(t *testing.T, args ...string) error {
	t.Helper()
	ct.out.Reset()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func (ct *cliTest) downloaded(t *testing.T, scope domain.Scope) bool {
	t.Helper()
	ok, err := ct.content.IsDownloaded(context.Background(), scope)
	require.NoError(t, err)
	return ok
}
