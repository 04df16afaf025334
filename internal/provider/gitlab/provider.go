package gitlab

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/williamChen26/ai-code-review/internal/model"
	"github.com/williamChen26/ai-code-review/internal/model/interfaces"
)

const defaultBaseURL = "https://gitlab.com"

var reviewableActions = []string{"open", "reopen", "update"}

var _ interfaces.CodeProvider = (*Provider)(nil)

// Provider implements the CodeProvider interface for GitLab
type Provider struct {
	client *gitlab.Client
	config model.ProviderConfig
	logger logze.Logger
}

// New creates a new GitLab provider
func New(config model.ProviderConfig) (*Provider, error) {
	if config.Token == "" {
		return nil, errm.New("GitLab token is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client, err := gitlab.NewClient(config.Token, gitlab.WithBaseURL(baseURL))
	if err != nil {
		return nil, errm.Wrap(err, "failed to create GitLab client")
	}

	return &Provider{
		client: client,
		config: config,
		logger: logze.With("provider", "gitlab", "component", "provider"),
	}, nil
}

// ValidateWebhook checks the X-Gitlab-Token header value against the
// configured secret
func (p *Provider) ValidateWebhook(payload []byte, authToken string) error {
	if p.config.WebhookSecret == "" {
		return nil // no secret configured, skip validation
	}

	if subtle.ConstantTimeCompare([]byte(authToken), []byte(p.config.WebhookSecret)) != 1 {
		return errm.New("invalid webhook token")
	}

	return nil
}

// ParseWebhookEvent parses a GitLab webhook event
func (p *Provider) ParseWebhookEvent(payload []byte) (*model.CodeEvent, error) {
	var body gitlabPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, errm.Wrap(err, "failed to parse GitLab webhook payload")
	}

	event := &model.CodeEvent{
		Provider:  "gitlab",
		Type:      body.ObjectKind,
		Action:    body.ObjectAttributes.Action,
		ProjectID: strconv.Itoa(body.Project.ID),
		User: &model.User{
			ID:       strconv.Itoa(body.User.ID),
			Username: body.User.Username,
			Name:     body.User.Name,
		},
		MergeRequest: &model.MergeRequest{
			ID:           strconv.Itoa(body.ObjectAttributes.IID),
			IID:          body.ObjectAttributes.IID,
			Title:        body.ObjectAttributes.Title,
			Description:  body.ObjectAttributes.Description,
			SourceBranch: body.ObjectAttributes.SourceBranch,
			TargetBranch: body.ObjectAttributes.TargetBranch,
			URL:          body.ObjectAttributes.URL,
			State:        body.ObjectAttributes.State,
			SHA:          body.ObjectAttributes.LastCommit.ID,
		},
		Timestamp: time.Now(),
	}

	return event, nil
}

// IsReviewableEvent reports whether a parsed event should start a review
func (p *Provider) IsReviewableEvent(event *model.CodeEvent) bool {
	if event.Type != "merge_request" {
		return false
	}
	if !slices.Contains(reviewableActions, event.Action) {
		return false
	}
	if event.MergeRequest == nil || event.MergeRequest.SHA == "" {
		return false
	}

	// Skip events the bot itself produced to avoid loops
	if p.config.BotUsername != "" && event.User != nil && event.User.Username == p.config.BotUsername {
		return false
	}

	return true
}

// GetMergeRequestDiffs retrieves the file diffs for a merge request
func (p *Provider) GetMergeRequestDiffs(ctx context.Context, projectID string, mrIID int) ([]*model.FileDiff, error) {
	projectIDInt, err := strconv.Atoi(projectID)
	if err != nil {
		return nil, errm.Wrap(err, "invalid project ID")
	}

	var allDiffs []*gitlab.MergeRequestDiff
	page := 1

	for {
		opts := &gitlab.ListMergeRequestDiffsOptions{
			ListOptions: gitlab.ListOptions{
				Page: page,
			},
		}

		diffs, resp, err := p.client.MergeRequests.ListMergeRequestDiffs(projectIDInt, mrIID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classifyError(resp, err, "failed to list merge request diffs")
		}

		allDiffs = append(allDiffs, diffs...)

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	var fileDiffs []*model.FileDiff
	for _, diff := range allDiffs {
		fileDiffs = append(fileDiffs, &model.FileDiff{
			OldPath:   diff.OldPath,
			NewPath:   diff.NewPath,
			Diff:      diff.Diff,
			IsNew:     diff.NewFile,
			IsDeleted: diff.DeletedFile,
			IsRenamed: diff.RenamedFile,
			IsBinary:  diff.Diff == "" && !diff.DeletedFile && !diff.NewFile, // heuristic for binary files
		})
	}

	return fileDiffs, nil
}

// GetFileContent retrieves the content of a file at a specific commit/SHA
func (p *Provider) GetFileContent(ctx context.Context, projectID, filePath, ref string) (string, error) {
	projectIDInt, err := strconv.Atoi(projectID)
	if err != nil {
		return "", errm.Wrap(err, "invalid project ID")
	}

	raw, resp, err := p.client.RepositoryFiles.GetRawFile(projectIDInt, filePath, &gitlab.GetRawFileOptions{
		Ref: &ref,
	}, gitlab.WithContext(ctx))
	if err != nil {
		return "", classifyError(resp, err, "failed to get file content from GitLab")
	}

	return string(raw), nil
}

// SearchCode searches repository blobs for the given query
func (p *Provider) SearchCode(ctx context.Context, projectID, query string) ([]model.CodeSearchResult, error) {
	projectIDInt, err := strconv.Atoi(projectID)
	if err != nil {
		return nil, errm.Wrap(err, "invalid project ID")
	}

	blobs, resp, err := p.client.Search.BlobsByProject(projectIDInt, query, &gitlab.SearchOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classifyError(resp, err, "failed to search code in GitLab")
	}

	var results []model.CodeSearchResult
	for _, blob := range blobs {
		path := blob.Path
		if path == "" {
			path = blob.Filename
		}
		results = append(results, model.CodeSearchResult{
			Path:    path,
			Snippet: blob.Data,
		})
	}

	return results, nil
}

// CreateComment creates a discussion on a merge request
func (p *Provider) CreateComment(ctx context.Context, projectID string, mrIID int, body string) error {
	projectIDInt, err := strconv.Atoi(projectID)
	if err != nil {
		return errm.Wrap(err, "invalid project ID")
	}

	opts := &gitlab.CreateMergeRequestDiscussionOptions{
		Body: &body,
	}

	_, resp, err := p.client.Discussions.CreateMergeRequestDiscussion(projectIDInt, mrIID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return classifyError(resp, err, "failed to create merge request discussion")
	}

	return nil
}

// classifyError maps GitLab API failures onto the typed errors the engine
// distinguishes
func classifyError(resp *gitlab.Response, err error, msg string) error {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return errm.Wrap(model.ErrNotFound, msg)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errm.Wrap(model.ErrForbidden, msg)
		}
	}
	return errm.Wrap(err, msg)
}
