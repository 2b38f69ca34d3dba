package driving

import (
	"context"
	"time"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

// LearningTracker measures active study time per chapter.
type LearningTracker interface {
	// Start begins a session, ending any previous one first.
	Start(ctx context.Context, pathID, chapterID string) error

	// Activity marks user activity, resuming an idle-paused session.
	Activity()

	// Pause stops the clock.
	Pause()

	// Resume restarts the clock.
	Resume()

	// Current returns a snapshot of the running session, or nil.
	Current() *domain.StudySession

	// Stop ends the session and records the learning time.
	Stop(ctx context.Context) (time.Duration, error)
}
