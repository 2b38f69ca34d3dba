package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

// transportError wraps a failed round trip. A cancelled context is returned
// as is so callers can tell an abort from lost connectivity.
func transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrNetwork, err)
}

// statusError maps a non-2xx answer onto a domain error.
// Returns nil for 2xx.
func statusError(op string, resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case code >= 500:
		return fmt.Errorf("%s: %w: status %d", op, domain.ErrServer, code)
	default:
		return fmt.Errorf("%s: %w: status %d", op, domain.ErrRejected, code)
	}
}
