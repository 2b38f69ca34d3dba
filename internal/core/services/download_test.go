package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hibernate-pano/study-with-me-sub001/internal/adapters/driven/storage/memory"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driving"
)

func newTestDownloadService(
	fetcher *mockFetcher,
	state domain.NetworkState,
) (*DownloadService, *memory.ContentStore, *mockMetrics) {
	store := memory.NewContentStore(0)
	metrics := &mockMetrics{}
	svc := NewDownloadService(store, fetcher, NewNetworkMonitor(state, nil), metrics)
	return svc, store, metrics
}

// drain collects every update until the channel closes.
func drain(t *testing.T, dl driving.Download) []int {
	t.Helper()
	var got []int
	timeout := time.After(5 * time.Second)
	for {
		select {
		case pct, ok := <-dl.Updates():
			if !ok {
				return got
			}
			got = append(got, pct)
		case <-timeout:
			t.Fatal("timed out waiting for progress channel to close")
			return got
		}
	}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDownloadService_Download_Offline(t *testing.T) {
	fetcher := newMockFetcher().unblocked()
	svc, store, _ := newTestDownloadService(fetcher, domain.Offline)

	dl, err := svc.Download(context.Background(), domain.ChapterScope("c1"))
	assert.Nil(t, dl)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Zero(t, fetcher.callCount())

	ok, _ := store.IsDownloaded(context.Background(), domain.ChapterScope("c1"))
	assert.False(t, ok)
}

func TestDownloadService_Download_InvalidScope(t *testing.T) {
	svc, _, _ := newTestDownloadService(newMockFetcher().unblocked(), domain.Online)

	_, err := svc.Download(context.Background(), domain.ChapterScope(""))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDownloadService_Download_Success(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.progress = []int64{10, 40, 40, 100}
	fetcher.content[domain.PathScope("p1")] = &domain.Content{
		Data:       []byte(`{"title":"Go"}`),
		ChapterIDs: []string{"c1", "c2"},
	}
	close(fetcher.release)
	svc, store, metrics := newTestDownloadService(fetcher, domain.Online)

	dl, err := svc.Download(context.Background(), domain.PathScope("p1"))
	require.NoError(t, err)
	defer dl.Close()
	assert.Equal(t, domain.PathScope("p1"), dl.Scope())

	updates := drain(t, dl)
	require.NotEmpty(t, updates)
	assert.Equal(t, 100, updates[len(updates)-1])
	assert.IsNonDecreasing(t, updates)
	for _, pct := range updates[:len(updates)-1] {
		assert.Less(t, pct, 100, "100 is only sent after the save")
	}

	record, err := dl.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, int64(14), record.SizeBytes)

	stored, err := store.Get(context.Background(), domain.PathScope("p1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, stored.ChapterIDs)
	assert.Equal(t, []string{"path:success"}, metrics.downloadResults())
	assert.Empty(t, svc.Active())
}

func TestDownloadService_Download_SingleTransferPerScope(t *testing.T) {
	fetcher := newMockFetcher()
	svc, _, _ := newTestDownloadService(fetcher, domain.Online)
	ctx := context.Background()

	first, err := svc.Download(ctx, domain.ChapterScope("c1"))
	require.NoError(t, err)
	<-fetcher.started

	var wg sync.WaitGroup
	subs := make([]driving.Download, 5)
	for i := range subs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dl, err := svc.Download(ctx, domain.ChapterScope("c1"))
			assert.NoError(t, err)
			subs[i] = dl
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []domain.Scope{domain.ChapterScope("c1")}, svc.Active())
	close(fetcher.release)

	want, err := first.Wait(waitCtx(t))
	require.NoError(t, err)
	for _, dl := range subs {
		got, err := dl.Wait(waitCtx(t))
		require.NoError(t, err)
		assert.Same(t, want, got)
		dl.Close()
	}
	first.Close()

	assert.Equal(t, 1, fetcher.callCount())
}

func TestDownloadService_Download_DifferentScopesRunConcurrently(t *testing.T) {
	fetcher := newMockFetcher()
	svc, _, _ := newTestDownloadService(fetcher, domain.Online)
	ctx := context.Background()

	a, err := svc.Download(ctx, domain.ChapterScope("c1"))
	require.NoError(t, err)
	b, err := svc.Download(ctx, domain.PathScope("c1"))
	require.NoError(t, err)
	<-fetcher.started
	<-fetcher.started

	assert.Len(t, svc.Active(), 2)
	close(fetcher.release)

	_, err = a.Wait(waitCtx(t))
	assert.NoError(t, err)
	_, err = b.Wait(waitCtx(t))
	assert.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestDownloadService_Download_FetchError(t *testing.T) {
	fetcher := newMockFetcher().unblocked()
	fetcher.err = domain.ErrNetwork
	svc, store, metrics := newTestDownloadService(fetcher, domain.Online)

	dl, err := svc.Download(context.Background(), domain.ChapterScope("c1"))
	require.NoError(t, err)
	defer dl.Close()

	updates := drain(t, dl)
	assert.NotContains(t, updates, 100)

	_, err = dl.Wait(waitCtx(t))
	assert.ErrorIs(t, err, domain.ErrNetwork)

	ok, _ := store.IsDownloaded(context.Background(), domain.ChapterScope("c1"))
	assert.False(t, ok)
	assert.Equal(t, []string{"chapter:failed"}, metrics.downloadResults())
}

func TestDownloadService_Download_StorageFailure(t *testing.T) {
	fetcher := newMockFetcher().unblocked()
	fetcher.progress = []int64{50}
	base := memory.NewContentStore(0)
	store := &failingContentStore{ContentStore: base, err: errors.New("disk full")}
	svc := NewDownloadService(store, fetcher, NewNetworkMonitor(domain.Online, nil), nil)

	dl, err := svc.Download(context.Background(), domain.ChapterScope("c1"))
	require.NoError(t, err)
	defer dl.Close()

	updates := drain(t, dl)
	assert.NotContains(t, updates, 100)

	_, err = dl.Wait(waitCtx(t))
	assert.ErrorIs(t, err, domain.ErrStorage)

	ok, _ := base.IsDownloaded(context.Background(), domain.ChapterScope("c1"))
	assert.False(t, ok)
}

func TestDownloadService_Download_QuotaExceeded(t *testing.T) {
	fetcher := newMockFetcher().unblocked()
	store := memory.NewContentStore(4)
	svc := NewDownloadService(store, fetcher, NewNetworkMonitor(domain.Online, nil), nil)

	dl, err := svc.Download(context.Background(), domain.ChapterScope("c1"))
	require.NoError(t, err)
	defer dl.Close()

	_, err = dl.Wait(waitCtx(t))
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestDownloadService_Close_AbortsWhenLastSubscriberLeaves(t *testing.T) {
	fetcher := newMockFetcher()
	svc, store, metrics := newTestDownloadService(fetcher, domain.Online)

	first, err := svc.Download(context.Background(), domain.ChapterScope("c1"))
	require.NoError(t, err)
	second, err := svc.Download(context.Background(), domain.ChapterScope("c1"))
	require.NoError(t, err)
	<-fetcher.started

	first.Close()
	select {
	case <-fetcher.aborted:
		t.Fatal("transfer aborted while a subscriber remained")
	default:
	}

	second.Close()
	select {
	case scope := <-fetcher.aborted:
		assert.Equal(t, domain.ChapterScope("c1"), scope)
	case <-time.After(5 * time.Second):
		t.Fatal("fetch was not cancelled")
	}

	_, err = second.Wait(waitCtx(t))
	assert.ErrorIs(t, err, domain.ErrDownloadAborted)

	ok, _ := store.IsDownloaded(context.Background(), domain.ChapterScope("c1"))
	assert.False(t, ok)
	assert.Empty(t, svc.Active())
	assert.Equal(t, []string{"chapter:aborted"}, metrics.downloadResults())

	// Closing twice is harmless.
	second.Close()
}

func TestDownloadService_Download_AfterAbortStartsNewTransfer(t *testing.T) {
	fetcher := newMockFetcher()
	svc, _, _ := newTestDownloadService(fetcher, domain.Online)

	first, err := svc.Download(context.Background(), domain.ChapterScope("c1"))
	require.NoError(t, err)
	<-fetcher.started
	first.Close()
	<-fetcher.aborted

	close(fetcher.release)
	second, err := svc.Download(context.Background(), domain.ChapterScope("c1"))
	require.NoError(t, err)
	defer second.Close()

	_, err = second.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.callCount())
}

func TestDownloadService_Download_SurvivesCallerCancel(t *testing.T) {
	fetcher := newMockFetcher()
	svc, store, _ := newTestDownloadService(fetcher, domain.Online)

	ctx, cancel := context.WithCancel(context.Background())
	dl, err := svc.Download(ctx, domain.ChapterScope("c1"))
	require.NoError(t, err)
	defer dl.Close()
	<-fetcher.started
	cancel()
	close(fetcher.release)

	_, err = dl.Wait(waitCtx(t))
	require.NoError(t, err)
	ok, _ := store.IsDownloaded(context.Background(), domain.ChapterScope("c1"))
	assert.True(t, ok)
}

func TestDownloadService_Wait_ContextCancelled(t *testing.T) {
	fetcher := newMockFetcher()
	svc, _, _ := newTestDownloadService(fetcher, domain.Online)

	dl, err := svc.Download(context.Background(), domain.ChapterScope("c1"))
	require.NoError(t, err)
	defer dl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = dl.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDownloadService_Delete(t *testing.T) {
	svc, store, _ := newTestDownloadService(newMockFetcher().unblocked(), domain.Offline)
	ctx := context.Background()
	_, _ = store.Save(ctx, domain.ChapterScope("c1"), domain.Content{Data: []byte("x")})

	require.NoError(t, svc.Delete(ctx, domain.ChapterScope("c1")))
	require.NoError(t, svc.Delete(ctx, domain.ChapterScope("c1")))

	ok, err := svc.IsDownloaded(ctx, domain.ChapterScope("c1"))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, svc.Delete(ctx, domain.Scope{Type: "course", ID: "1"}), domain.ErrInvalidInput)
}

func TestDownloadService_PathStatus(t *testing.T) {
	svc, store, _ := newTestDownloadService(newMockFetcher().unblocked(), domain.Offline)
	ctx := context.Background()

	status, err := svc.PathStatus(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, status.PathDownloaded)
	assert.False(t, status.Complete())

	_, _ = store.Save(ctx, domain.PathScope("p1"), domain.Content{
		Data:       []byte("path"),
		ChapterIDs: []string{"c1", "c2", "c3"},
	})
	_, _ = store.Save(ctx, domain.ChapterScope("c1"), domain.Content{Data: []byte("one")})
	_, _ = store.Save(ctx, domain.ChapterScope("c3"), domain.Content{Data: []byte("three")})

	status, err = svc.PathStatus(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, status.PathDownloaded)
	assert.Equal(t, []string{"c1", "c3"}, status.DownloadedChapters)
	assert.Equal(t, []string{"c2"}, status.Missing())
	assert.False(t, status.Complete())

	_, _ = store.Save(ctx, domain.ChapterScope("c2"), domain.Content{Data: []byte("two")})
	status, err = svc.PathStatus(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, status.Complete())

	_, err = svc.PathStatus(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDownloadService_ListAndClear(t *testing.T) {
	svc, store, _ := newTestDownloadService(newMockFetcher().unblocked(), domain.Offline)
	ctx := context.Background()
	_, _ = store.Save(ctx, domain.PathScope("p1"), domain.Content{Data: []byte("p")})
	_, _ = store.Save(ctx, domain.ChapterScope("c1"), domain.Content{Data: []byte("c")})

	records, err := svc.List(ctx, domain.ScopeChapter)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.ChapterScope("c1"), records[0].Scope)

	require.NoError(t, svc.Clear(ctx))
	records, err = svc.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, records)
}
