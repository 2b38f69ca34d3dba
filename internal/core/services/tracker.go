package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driving"
)

// Ensure LearningTimeTracker implements the interface.
var _ driving.LearningTracker = (*LearningTimeTracker)(nil)

// minRecordedSession is the shortest session worth reporting.
const minRecordedSession = time.Second

// LearningTimeTracker measures active study time.
//
// A session pauses itself once idleTimeout passes without Activity; time
// after the last activity is not counted. Activity resumes an idle pause,
// while an explicit Pause needs Resume.
type LearningTimeTracker struct {
	recorder    driving.ProgressRecorder
	idleTimeout time.Duration
	now         func() time.Time

	mu      sync.Mutex
	session *trackedSession
}

type trackedSession struct {
	pathID       string
	chapterID    string
	startedAt    time.Time
	active       time.Duration
	resumedAt    time.Time // zero while paused
	lastActivity time.Time
	userPaused   bool
}

// NewLearningTimeTracker creates a tracker reporting through recorder.
func NewLearningTimeTracker(recorder driving.ProgressRecorder, idleTimeout time.Duration) *LearningTimeTracker {
	return &LearningTimeTracker{
		recorder:    recorder,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// SetClock replaces the time source.
func (t *LearningTimeTracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Start begins a session for a chapter. A running session is ended and
// recorded first; the new session starts even when that record fails.
func (t *LearningTimeTracker) Start(ctx context.Context, pathID, chapterID string) error {
	if chapterID == "" {
		return fmt.Errorf("%w: chapter id is required", domain.ErrInvalidInput)
	}

	t.mu.Lock()
	now := t.now()
	previous := t.endLocked(now)
	t.session = &trackedSession{
		pathID:       pathID,
		chapterID:    chapterID,
		startedAt:    now,
		resumedAt:    now,
		lastActivity: now,
	}
	t.mu.Unlock()

	if previous == nil {
		return nil
	}
	_, err := t.record(ctx, previous, now)
	return err
}

// Activity marks user activity.
func (t *LearningTimeTracker) Activity() {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.session
	if s == nil {
		return
	}
	now := t.now()
	t.settle(now)
	s.lastActivity = now
	if s.resumedAt.IsZero() && !s.userPaused {
		s.resumedAt = now
	}
}

// Pause stops the clock until Resume.
func (t *LearningTimeTracker) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.session
	if s == nil {
		return
	}
	now := t.now()
	t.settle(now)
	if !s.resumedAt.IsZero() {
		s.active += now.Sub(s.resumedAt)
		s.resumedAt = time.Time{}
	}
	s.userPaused = true
}

// Resume restarts the clock.
func (t *LearningTimeTracker) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.session
	if s == nil {
		return
	}
	now := t.now()
	t.settle(now)
	s.userPaused = false
	s.lastActivity = now
	if s.resumedAt.IsZero() {
		s.resumedAt = now
	}
}

// Current returns a snapshot of the running session, or nil.
func (t *LearningTimeTracker) Current() *domain.StudySession {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.session
	if s == nil {
		return nil
	}
	now := t.now()
	t.settle(now)
	active := s.active
	if !s.resumedAt.IsZero() {
		active += now.Sub(s.resumedAt)
	}
	return &domain.StudySession{
		PathID:    s.pathID,
		ChapterID: s.chapterID,
		StartedAt: s.startedAt,
		Active:    active,
		Paused:    s.resumedAt.IsZero(),
	}
}

// Stop ends the session and records its active time. Sessions shorter than
// a second are dropped without a record.
func (t *LearningTimeTracker) Stop(ctx context.Context) (time.Duration, error) {
	t.mu.Lock()
	now := t.now()
	s := t.endLocked(now)
	t.mu.Unlock()

	if s == nil {
		return 0, nil
	}
	return t.record(ctx, s, now)
}

// endLocked closes the running session at now and detaches it (caller holds mu).
func (t *LearningTimeTracker) endLocked(now time.Time) *trackedSession {
	s := t.session
	if s == nil {
		return nil
	}
	t.settle(now)
	if !s.resumedAt.IsZero() {
		s.active += now.Sub(s.resumedAt)
		s.resumedAt = time.Time{}
	}
	t.session = nil
	return s
}

// record reports an ended session through the recorder.
func (t *LearningTimeTracker) record(ctx context.Context, s *trackedSession, endedAt time.Time) (time.Duration, error) {
	if s.active < minRecordedSession {
		return s.active, nil
	}

	_, err := t.recorder.Record(ctx, domain.MutationLearningTime, domain.LearningTime{
		PathID:    s.pathID,
		ChapterID: s.chapterID,
		Seconds:   int64(s.active / time.Second),
		StartedAt: s.startedAt.UTC(),
		EndedAt:   endedAt.UTC(),
	})
	if err != nil {
		return s.active, fmt.Errorf("record learning time: %w", err)
	}
	return s.active, nil
}

// settle applies an idle pause that became due before now (caller holds mu).
func (t *LearningTimeTracker) settle(now time.Time) {
	s := t.session
	if s == nil || s.resumedAt.IsZero() || t.idleTimeout <= 0 {
		return
	}
	deadline := s.lastActivity.Add(t.idleTimeout)
	if now.After(deadline) {
		s.active += deadline.Sub(s.resumedAt)
		s.resumedAt = time.Time{}
	}
}
