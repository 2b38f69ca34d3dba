package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

// ScopeInput identifies a path or chapter.
type ScopeInput struct {
	Type string `json:"type" jsonschema:"either path or chapter"`
	ID   string `json:"id" jsonschema:"the path or chapter ID"`
}

func (in ScopeInput) scope() (domain.Scope, error) {
	t, err := domain.ParseScopeType(in.Type)
	if err != nil {
		return domain.Scope{}, err
	}
	scope := domain.Scope{Type: t, ID: in.ID}
	return scope, scope.Validate()
}

// IsDownloadedOutput is the output schema for the is_downloaded tool.
type IsDownloadedOutput struct {
	Scope      string `json:"scope"`
	Downloaded bool   `json:"downloaded"`
}

// DownloadOutput is the output schema for the download_content tool.
type DownloadOutput struct {
	Scope        string   `json:"scope"`
	SizeBytes    int64    `json:"size_bytes"`
	DownloadedAt string   `json:"downloaded_at"`
	ChapterIDs   []string `json:"chapter_ids,omitempty"`
}

// DeleteOutput is the output schema for the delete_content tool.
type DeleteOutput struct {
	Scope   string `json:"scope"`
	Removed bool   `json:"removed"`
}

// NetworkStatusInput takes no arguments.
type NetworkStatusInput struct{}

// NetworkStatusOutput is the output schema for the network_status tool.
type NetworkStatusOutput struct {
	State  string   `json:"state"`
	Online bool     `json:"online"`
	Active []string `json:"active_downloads,omitempty"`
}

// SyncInput takes no arguments.
type SyncInput struct{}

// SyncOutput is the output schema for the sync_now tool.
type SyncOutput struct {
	Replayed  int    `json:"replayed"`
	Remaining int    `json:"remaining"`
	FailedID  string `json:"failed_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PathStatusInput is the input schema for the path_status tool.
type PathStatusInput struct {
	PathID string `json:"path_id" jsonschema:"the learning path ID"`
}

// PathStatusOutput is the output schema for the path_status tool.
type PathStatusOutput struct {
	PathID             string   `json:"path_id"`
	PathDownloaded     bool     `json:"path_downloaded"`
	ChapterIDs         []string `json:"chapter_ids"`
	DownloadedChapters []string `json:"downloaded_chapters"`
	Missing            []string `json:"missing"`
	Complete           bool     `json:"complete"`
}

// RecordProgressInput is the input schema for the record_progress tool.
type RecordProgressInput struct {
	Kind    string         `json:"kind" jsonschema:"progress-update, learning-time or chapter-complete"`
	Payload map[string]any `json:"payload" jsonschema:"the JSON body sent to the backend"`
}

// RecordProgressOutput is the output schema for the record_progress tool.
type RecordProgressOutput struct {
	Kind   string `json:"kind"`
	Queued bool   `json:"queued"`
}

// Study session actions.
const (
	studyStart    = "start"
	studyActivity = "activity"
	studyPause    = "pause"
	studyResume   = "resume"
	studyStop     = "stop"
	studyStatus   = "status"
)

// StudySessionInput is the input schema for the study_session tool.
type StudySessionInput struct {
	Action    string `json:"action" jsonschema:"start, activity, pause, resume, stop or status"`
	PathID    string `json:"path_id,omitempty" jsonschema:"learning path of the chapter, for start"`
	ChapterID string `json:"chapter_id,omitempty" jsonschema:"chapter being studied, required for start"`
}

// StudySessionOutput is the output schema for the study_session tool.
type StudySessionOutput struct {
	Action          string `json:"action"`
	Running         bool   `json:"running"`
	PathID          string `json:"path_id,omitempty"`
	ChapterID       string `json:"chapter_id,omitempty"`
	ActiveSeconds   int64  `json:"active_seconds"`
	Paused          bool   `json:"paused"`
	RecordedSeconds int64  `json:"recorded_seconds,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "is_downloaded",
		Description: "Check whether a learning path or chapter is available offline",
	}, s.handleIsDownloaded)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "download_content",
		Description: "Download a learning path or chapter for offline use and wait for it to finish",
	}, s.handleDownload)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_content",
		Description: "Remove a downloaded learning path or chapter",
	}, s.handleDelete)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "network_status",
		Description: "Report whether the study platform backend is reachable",
	}, s.handleNetworkStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_now",
		Description: "Replay progress recorded while offline",
	}, s.handleSyncNow)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "path_status",
		Description: "Show which chapters of a learning path are available offline",
	}, s.handlePathStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "record_progress",
		Description: "Record learner progress; queued for replay when the backend is unreachable",
	}, s.handleRecordProgress)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "study_session",
		Description: "Start, pause, resume or stop a timed study session for a chapter",
	}, s.handleStudySession)
}

func (s *Server) handleIsDownloaded(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ScopeInput,
) (*mcp.CallToolResult, IsDownloadedOutput, error) {
	scope, err := input.scope()
	if err != nil {
		return nil, IsDownloadedOutput{}, err
	}

	ok, err := s.ports.Downloads.IsDownloaded(ctx, scope)
	if err != nil {
		return nil, IsDownloadedOutput{}, err
	}
	return nil, IsDownloadedOutput{Scope: scope.String(), Downloaded: ok}, nil
}

// handleDownload waits for the transfer. Cancelling the call closes the
// subscription, which aborts the transfer when nobody else waits for it.
func (s *Server) handleDownload(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ScopeInput,
) (*mcp.CallToolResult, DownloadOutput, error) {
	scope, err := input.scope()
	if err != nil {
		return nil, DownloadOutput{}, err
	}

	dl, err := s.ports.Downloads.Download(ctx, scope)
	if err != nil {
		return nil, DownloadOutput{}, err
	}
	defer dl.Close()

	record, err := dl.Wait(ctx)
	if err != nil {
		return nil, DownloadOutput{}, fmt.Errorf("download %s: %w", scope, err)
	}
	s.notifyUpdated(ctx, downloadsURI)

	return nil, DownloadOutput{
		Scope:        scope.String(),
		SizeBytes:    record.SizeBytes,
		DownloadedAt: record.DownloadedAt.Format(time.RFC3339),
		ChapterIDs:   record.ChapterIDs,
	}, nil
}

func (s *Server) handleDelete(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ScopeInput,
) (*mcp.CallToolResult, DeleteOutput, error) {
	scope, err := input.scope()
	if err != nil {
		return nil, DeleteOutput{}, err
	}

	if err := s.ports.Downloads.Delete(ctx, scope); err != nil {
		return nil, DeleteOutput{}, err
	}
	s.notifyUpdated(ctx, downloadsURI)
	return nil, DeleteOutput{Scope: scope.String(), Removed: true}, nil
}

func (s *Server) handleNetworkStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ NetworkStatusInput,
) (*mcp.CallToolResult, NetworkStatusOutput, error) {
	output := NetworkStatusOutput{State: "unknown"}
	if s.ports.Network != nil {
		output.State = s.ports.Network.State().String()
		output.Online = s.ports.Network.IsOnline()
	}
	for _, scope := range s.ports.Downloads.Active() {
		output.Active = append(output.Active, scope.String())
	}
	return nil, output, nil
}

// handleSyncNow reports a stopped replay in the output rather than as a
// tool failure, since the remaining queue is still useful to the caller.
func (s *Server) handleSyncNow(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ SyncInput,
) (*mcp.CallToolResult, SyncOutput, error) {
	if s.ports.Sync == nil {
		return nil, SyncOutput{}, errSyncUnavailable
	}

	result, err := s.ports.Sync.Flush(ctx)
	output := SyncOutput{
		Replayed:  result.Replayed,
		Remaining: result.Remaining,
		FailedID:  result.FailedID,
	}
	if err != nil {
		output.Error = err.Error()
	}
	if result.Replayed > 0 {
		s.notifyUpdated(ctx, queueURI)
	}
	return nil, output, nil
}

func (s *Server) handlePathStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input PathStatusInput,
) (*mcp.CallToolResult, PathStatusOutput, error) {
	status, err := s.ports.Downloads.PathStatus(ctx, input.PathID)
	if err != nil {
		return nil, PathStatusOutput{}, err
	}
	return nil, pathStatusOutput(status), nil
}

func pathStatusOutput(status *domain.PathStatus) PathStatusOutput {
	output := PathStatusOutput{
		PathID:             status.PathID,
		PathDownloaded:     status.PathDownloaded,
		ChapterIDs:         status.ChapterIDs,
		DownloadedChapters: status.DownloadedChapters,
		Missing:            status.Missing(),
		Complete:           status.Complete(),
	}
	if output.ChapterIDs == nil {
		output.ChapterIDs = []string{}
	}
	if output.DownloadedChapters == nil {
		output.DownloadedChapters = []string{}
	}
	if output.Missing == nil {
		output.Missing = []string{}
	}
	return output
}

func (s *Server) handleRecordProgress(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RecordProgressInput,
) (*mcp.CallToolResult, RecordProgressOutput, error) {
	if s.ports.Progress == nil {
		return nil, RecordProgressOutput{}, errProgressUnavailable
	}
	if input.Payload == nil {
		return nil, RecordProgressOutput{}, fmt.Errorf("%w: payload is required", domain.ErrInvalidInput)
	}

	kind := domain.MutationKind(input.Kind)
	queued, err := s.ports.Progress.Record(ctx, kind, input.Payload)
	if err != nil {
		return nil, RecordProgressOutput{}, err
	}
	if queued {
		s.notifyUpdated(ctx, queueURI)
	}
	return nil, RecordProgressOutput{Kind: kind.String(), Queued: queued}, nil
}

func (s *Server) handleStudySession(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StudySessionInput,
) (*mcp.CallToolResult, StudySessionOutput, error) {
	tracker := s.ports.Tracker
	if tracker == nil {
		return nil, StudySessionOutput{}, errTrackerUnavailable
	}

	output := StudySessionOutput{Action: input.Action}
	switch input.Action {
	case studyStart:
		if err := tracker.Start(ctx, input.PathID, input.ChapterID); err != nil {
			return nil, StudySessionOutput{}, err
		}
		s.notifyUpdated(ctx, queueURI)
	case studyActivity:
		tracker.Activity()
	case studyPause:
		tracker.Pause()
	case studyResume:
		tracker.Resume()
	case studyStop:
		current := tracker.Current()
		active, err := tracker.Stop(ctx)
		if err != nil {
			return nil, StudySessionOutput{}, err
		}
		if current != nil {
			output.PathID = current.PathID
			output.ChapterID = current.ChapterID
		}
		output.RecordedSeconds = int64(active / time.Second)
		s.notifyUpdated(ctx, queueURI)
		return nil, output, nil
	case studyStatus:
	default:
		return nil, StudySessionOutput{}, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, input.Action)
	}

	if current := tracker.Current(); current != nil {
		output.Running = true
		output.PathID = current.PathID
		output.ChapterID = current.ChapterID
		output.ActiveSeconds = int64(current.Active / time.Second)
		output.Paused = current.Paused
	}
	return nil, output, nil
}
