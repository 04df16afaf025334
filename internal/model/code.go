package model

import (
	"time"
)

// ProviderConfig represents provider-specific configuration
type ProviderConfig struct {
	BaseURL       string
	Token         string
	WebhookSecret string
	BotUsername   string
}

// User represents a user across different providers
type User struct {
	ID       string
	Username string
	Name     string
}

// MergeRequest represents a merge/pull request across different providers
type MergeRequest struct {
	ID           string
	IID          int
	Title        string
	Description  string
	SourceBranch string
	TargetBranch string
	Author       User
	URL          string
	State        string
	SHA          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CodeEvent represents a webhook event from any provider
type CodeEvent struct {
	Provider     string
	Type         string
	Action       string
	ProjectID    string
	MergeRequest *MergeRequest
	User         *User
	Timestamp    time.Time
}

// FileDiff represents raw changes in a single file as the provider reports them
type FileDiff struct {
	OldPath   string
	NewPath   string
	Diff      string
	IsNew     bool
	IsDeleted bool
	IsRenamed bool
	IsBinary  bool
}

// CodeSearchResult is one hit of a repository code search
type CodeSearchResult struct {
	Path    string
	Snippet string
}
