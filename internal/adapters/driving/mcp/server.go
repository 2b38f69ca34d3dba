package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/logger"
)

// Version is the MCP server version.
const Version = "0.2.0"

// serverInstructions is sent to clients when they connect.
const serverInstructions = `swm keeps offline copies of study platform content and queues learner writes made while the backend is unreachable.

Content is addressed by scope: {"type": "path" or "chapter", "id": "..."}. path_status shows which chapters of a path are stored; download_content fetches a scope and needs the backend to be reachable (see network_status).

record_progress and study_session do not fail when the backend is down. The write is queued and replayed in the order it was made, on reconnect or through sync_now. Read swm://queue for pending writes; subscribe to swm://queue or swm://downloads to be told when they change.`

// Server is the MCP server for swm.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    "swm",
		Title:   "Study With Me offline content",
		Version: Version,
	}

	s := &Server{ports: ports}
	s.server = mcp.NewServer(impl, &mcp.ServerOptions{
		Instructions:       serverInstructions,
		SubscribeHandler:   s.handleSubscribe,
		UnsubscribeHandler: func(context.Context, *mcp.UnsubscribeRequest) error { return nil },
	})

	s.registerTools()
	s.registerResources()

	return s, nil
}

// handleSubscribe accepts subscriptions to the resources swm publishes.
func (s *Server) handleSubscribe(_ context.Context, req *mcp.SubscribeRequest) error {
	uri := req.Params.URI
	if uri == downloadsURI || uri == queueURI || extractPathID(uri) != "" {
		return nil
	}
	return fmt.Errorf("%w: unknown resource %q", domain.ErrInvalidInput, uri)
}

// notifyUpdated tells subscribers that a resource changed.
func (s *Server) notifyUpdated(ctx context.Context, uri string) {
	err := s.server.ResourceUpdated(ctx, &mcp.ResourceUpdatedNotificationParams{URI: uri})
	if err != nil {
		logger.Debug("mcp: notifying %s: %v", uri, err)
	}
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts the MCP server over HTTP on the specified address.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("mcp: HTTP shutdown: %v", err)
		}
	}()

	logger.Info("MCP server listening on %s", addr)
	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
