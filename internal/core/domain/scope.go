package domain

import (
	"fmt"
	"strings"
	"time"
)

// ScopeType identifies the unit of offline download.
type ScopeType string

// Available scope types.
const (
	// ScopePath is a whole learning path.
	ScopePath ScopeType = "path"

	// ScopeChapter is a single chapter.
	ScopeChapter ScopeType = "chapter"
)

// IsValid returns true if the scope type is recognised.
func (t ScopeType) IsValid() bool {
	return t == ScopePath || t == ScopeChapter
}

// String returns the string representation.
func (t ScopeType) String() string {
	return string(t)
}

// ParseScopeType converts user input into a ScopeType.
func ParseScopeType(s string) (ScopeType, error) {
	t := ScopeType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: unknown scope type %q", ErrInvalidInput, s)
	}
	return t, nil
}

// Scope identifies downloadable content: a path or a chapter.
// Scope is comparable and is used directly as a map key.
type Scope struct {
	Type ScopeType
	ID   string
}

// PathScope returns the scope of a learning path.
func PathScope(id string) Scope {
	return Scope{Type: ScopePath, ID: id}
}

// ChapterScope returns the scope of a single chapter.
func ChapterScope(id string) Scope {
	return Scope{Type: ScopeChapter, ID: id}
}

// Validate checks the scope has a known type and a non-empty ID.
func (s Scope) Validate() error {
	if !s.Type.IsValid() {
		return fmt.Errorf("%w: unknown scope type %q", ErrInvalidInput, s.Type)
	}
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: empty scope id", ErrInvalidInput)
	}
	return nil
}

// String renders the scope as "type/id".
func (s Scope) String() string {
	return string(s.Type) + "/" + s.ID
}

// Content is a payload returned by the content API.
// Data is opaque; its shape is owned by the content API.
type Content struct {
	// Data is the raw payload.
	Data []byte

	// ChapterIDs lists the chapters of a path. Empty for chapter scopes.
	ChapterIDs []string
}

// DownloadRecord is content persisted for offline use.
type DownloadRecord struct {
	// Scope identifies what was downloaded.
	Scope Scope

	// DownloadedAt is when the record was saved.
	DownloadedAt time.Time

	// SizeBytes is the size of Content.
	SizeBytes int64

	// Content is the opaque payload. Listing operations leave it nil.
	Content []byte

	// ChapterIDs lists the chapters of a path at download time.
	ChapterIDs []string
}

// PathStatus is the derived offline status of a learning path.
// A path is only complete when every chapter was downloaded individually.
type PathStatus struct {
	PathID string

	// PathDownloaded indicates the path record itself is stored.
	PathDownloaded bool

	// ChapterIDs are the chapters listed by the stored path record.
	ChapterIDs []string

	// DownloadedChapters are the chapters available offline.
	DownloadedChapters []string
}

// Complete reports whether the whole path is navigable offline.
func (p PathStatus) Complete() bool {
	return p.PathDownloaded && len(p.DownloadedChapters) == len(p.ChapterIDs)
}

// Missing returns the chapters not yet downloaded, in path order.
func (p PathStatus) Missing() []string {
	have := make(map[string]struct{}, len(p.DownloadedChapters))
	for _, id := range p.DownloadedChapters {
		have[id] = struct{}{}
	}
	var missing []string
	for _, id := range p.ChapterIDs {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
