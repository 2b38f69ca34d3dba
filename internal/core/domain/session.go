package domain

import "time"

// StudySession is a learning-time measurement for one chapter.
type StudySession struct {
	PathID    string
	ChapterID string
	StartedAt time.Time

	// Active is the accumulated time spent un-paused.
	Active time.Duration

	// Paused is true while the session is paused by the user or idle timeout.
	Paused bool
}
