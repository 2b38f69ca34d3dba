package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
)

// HeaderChapterIDs carries the comma separated chapter list of a path.
const HeaderChapterIDs = "X-Chapter-IDs"

// Fetch downloads the content of a path or chapter, reporting progress as
// the body is read. total is -1 when the server sends no Content-Length.
func (c *Client) Fetch(ctx context.Context, scope domain.Scope, progress driven.ProgressFunc) (*domain.Content, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	op := "fetch " + scope.String()

	resp, err := c.reads.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(contentPath(scope))
	if err != nil {
		return nil, transportError(ctx, op, err)
	}
	body := resp.RawBody()
	if body == nil {
		return nil, fmt.Errorf("%s: %w: empty body", op, domain.ErrServer)
	}
	defer body.Close()

	if err := statusError(op, resp); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
		return nil, err
	}

	total := int64(-1)
	if resp.RawResponse != nil && resp.RawResponse.ContentLength >= 0 {
		total = resp.RawResponse.ContentLength
	}

	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}
	if progress != nil {
		progress(0, total)
	}
	if _, err := io.Copy(&buf, &countingReader{r: body, total: total, progress: progress}); err != nil {
		return nil, transportError(ctx, op, err)
	}

	content := &domain.Content{Data: buf.Bytes()}
	if scope.Type == domain.ScopePath {
		content.ChapterIDs = parseChapterIDs(resp.Header().Get(HeaderChapterIDs))
	}
	return content, nil
}

func contentPath(scope domain.Scope) string {
	id := url.PathEscape(scope.ID)
	if scope.Type == domain.ScopePath {
		return "/api/paths/" + id + "/content"
	}
	return "/api/chapters/" + id + "/content"
}

// parseChapterIDs splits the header value, dropping blanks and duplicates
// while keeping path order.
func parseChapterIDs(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, part := range strings.Split(header, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// countingReader reports bytes read so far to a progress callback.
type countingReader struct {
	r        io.Reader
	done     int64
	total    int64
	progress driven.ProgressFunc
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.done += int64(n)
		if cr.progress != nil {
			cr.progress(cr.done, cr.total)
		}
	}
	return n, err
}
