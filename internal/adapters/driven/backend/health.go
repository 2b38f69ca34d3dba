package backend

import (
	"context"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/logger"
)

// Probe checks GET /api/health. Any 2xx answer means Online.
func (c *Client) Probe(ctx context.Context) domain.NetworkState {
	ctx, cancel := context.WithTimeout(ctx, c.probeTO)
	defer cancel()

	resp, err := c.reads.R().SetContext(ctx).Get("/api/health")
	if err != nil {
		logger.Debug("backend: health probe failed: %v", err)
		return domain.Offline
	}
	if !resp.IsSuccess() {
		logger.Debug("backend: health probe answered %d", resp.StatusCode())
		return domain.Offline
	}
	return domain.Online
}
