package interfaces

import (
	"context"

	"github.com/williamChen26/ai-code-review/internal/model"
)

// CodeProvider defines the capability surface the engine needs from a VCS
// provider (GitLab, GitHub, etc.)
type CodeProvider interface {
	// Webhook handling
	ValidateWebhook(payload []byte, authToken string) error
	ParseWebhookEvent(payload []byte) (*model.CodeEvent, error)
	IsReviewableEvent(event *model.CodeEvent) bool

	// Diff fetching
	GetMergeRequestDiffs(ctx context.Context, projectID string, mrIID int) ([]*model.FileDiff, error)

	// Read-only tool backends
	GetFileContent(ctx context.Context, projectID, filePath, ref string) (string, error)
	SearchCode(ctx context.Context, projectID, query string) ([]model.CodeSearchResult, error)

	// Writeback: one global review note per session
	CreateComment(ctx context.Context, projectID string, mrIID int, body string) error
}

// AgentAPI defines the interface for calling LLM AI models
type AgentAPI interface {
	CallAPI(ctx context.Context, req model.APIRequest) (model.APIResponse, error)
}

// SessionRegistry is the injectable idempotency guard. Admit returns nil when
// the caller owns the session, or a typed rejection
// (model.ErrDuplicateSession, model.ErrSessionInProgress). The default
// implementation is in-memory; a durable store can replace it without
// touching orchestration logic.
type SessionRegistry interface {
	Admit(key model.DedupKey) error
	Release(key model.DedupKey, status model.SessionStatus)
	Status(key model.DedupKey) (model.SessionStatus, bool)
}
