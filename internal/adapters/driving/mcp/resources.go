package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for swm resources.
	uriScheme = "swm://"

	downloadsURI = uriScheme + "downloads"
	queueURI     = uriScheme + "queue"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing downloads.
	s.server.AddResource(&mcp.Resource{
		URI:         downloadsURI,
		Name:        "downloads",
		Description: "Learning paths and chapters available offline",
		MIMEType:    "application/json",
	}, s.handleDownloadsResource)

	// Static resource for the pending queue.
	s.server.AddResource(&mcp.Resource{
		URI:         queueURI,
		Name:        "queue",
		Description: "Progress updates waiting to be replayed, oldest first",
		MIMEType:    "application/json",
	}, s.handleQueueResource)

	// Template for path status.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "paths/{pathId}",
		Name:        "path-status",
		Description: "Offline status of a learning path and its chapters",
		MIMEType:    "application/json",
	}, s.handlePathResource)
}

// handleDownloadsResource lists downloaded records without their content.
func (s *Server) handleDownloadsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	records, err := s.ports.Downloads.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing downloads: %w", err)
	}

	type downloadInfo struct {
		Type         string   `json:"type"`
		ID           string   `json:"id"`
		SizeBytes    int64    `json:"size_bytes"`
		DownloadedAt string   `json:"downloaded_at"`
		ChapterIDs   []string `json:"chapter_ids,omitempty"`
	}

	infos := make([]downloadInfo, len(records))
	for i := range records {
		infos[i] = downloadInfo{
			Type:         string(records[i].Scope.Type),
			ID:           records[i].Scope.ID,
			SizeBytes:    records[i].SizeBytes,
			DownloadedAt: records[i].DownloadedAt.Format(time.RFC3339),
			ChapterIDs:   records[i].ChapterIDs,
		}
	}

	return jsonResource(req.Params.URI, infos)
}

// handleQueueResource lists pending mutations.
func (s *Server) handleQueueResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	type mutationInfo struct {
		ID        string          `json:"id"`
		Kind      string          `json:"kind"`
		CreatedAt string          `json:"created_at"`
		Attempts  int             `json:"attempts"`
		LastError string          `json:"last_error,omitempty"`
		Payload   json.RawMessage `json:"payload"`
	}

	infos := []mutationInfo{}
	if s.ports.Sync != nil {
		pending, err := s.ports.Sync.Pending(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing queue: %w", err)
		}
		for _, m := range pending {
			infos = append(infos, mutationInfo{
				ID:        m.ID,
				Kind:      string(m.Kind),
				CreatedAt: m.CreatedAt.Format(time.RFC3339),
				Attempts:  m.Attempts,
				LastError: m.LastError,
				Payload:   m.Payload,
			})
		}
	}

	return jsonResource(req.Params.URI, infos)
}

// handlePathResource returns the derived status of one path.
func (s *Server) handlePathResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract pathId from URI: swm://paths/{pathId}
	pathID := extractPathID(req.Params.URI)
	if pathID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	status, err := s.ports.Downloads.PathStatus(ctx, pathID)
	if err != nil {
		return nil, fmt.Errorf("getting path status: %w", err)
	}

	return jsonResource(req.Params.URI, pathStatusOutput(status))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractPathID extracts the path ID from a URI like swm://paths/{pathId}.
func extractPathID(uri string) string {
	const prefix = uriScheme + "paths/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
