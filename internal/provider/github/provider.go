package github

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"golang.org/x/oauth2"

	"github.com/williamChen26/ai-code-review/internal/model"
	"github.com/williamChen26/ai-code-review/internal/model/interfaces"
)

const defaultBaseURL = "https://github.com"

var reviewableActions = []string{"opened", "reopened", "synchronize"}

var _ interfaces.CodeProvider = (*Provider)(nil)

// Provider implements the CodeProvider interface for GitHub
type Provider struct {
	client *github.Client
	config model.ProviderConfig
	logger logze.Logger
}

// New creates a new GitHub provider
func New(config model.ProviderConfig) (*Provider, error) {
	if config.Token == "" {
		return nil, errm.New("GitHub token is required")
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: config.Token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	client := github.NewClient(tc)

	// GitHub Enterprise
	if config.BaseURL != "" && config.BaseURL != defaultBaseURL {
		var err error
		client, err = github.NewClient(tc).WithEnterpriseURLs(config.BaseURL, config.BaseURL)
		if err != nil {
			return nil, errm.Wrap(err, "failed to create GitHub Enterprise client")
		}
	}

	return &Provider{
		client: client,
		config: config,
		logger: logze.With("provider", "github", "component", "provider"),
	}, nil
}

// ValidateWebhook verifies the X-Hub-Signature-256 HMAC over the raw payload
func (p *Provider) ValidateWebhook(payload []byte, signature string) error {
	if p.config.WebhookSecret == "" {
		return nil // no secret configured, skip validation
	}

	// GitHub signature format: "sha256=<signature>"
	if !strings.HasPrefix(signature, "sha256=") {
		return errm.New("invalid GitHub signature format")
	}
	expectedSignature := strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(p.config.WebhookSecret))
	mac.Write(payload)
	calculatedSignature := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expectedSignature), []byte(calculatedSignature)) {
		return errm.New("GitHub webhook signature verification failed")
	}

	return nil
}

// ParseWebhookEvent parses a GitHub webhook event
func (p *Provider) ParseWebhookEvent(payload []byte) (*model.CodeEvent, error) {
	var body githubPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, errm.Wrap(err, "failed to parse GitHub webhook payload")
	}

	event := &model.CodeEvent{
		Provider:  "github",
		Type:      "pull_request",
		Action:    body.Action,
		ProjectID: body.Repository.FullName, // GitHub uses "owner/repo" format
		User: &model.User{
			ID:       strconv.Itoa(body.Sender.ID),
			Username: body.Sender.Login,
			Name:     body.Sender.Name,
		},
		MergeRequest: &model.MergeRequest{
			ID:           strconv.Itoa(body.PullRequest.ID),
			IID:          body.PullRequest.Number,
			Title:        body.PullRequest.Title,
			Description:  body.PullRequest.Body,
			SourceBranch: body.PullRequest.Head.Ref,
			TargetBranch: body.PullRequest.Base.Ref,
			URL:          body.PullRequest.HTMLURL,
			State:        body.PullRequest.State,
			SHA:          body.PullRequest.Head.SHA,
			Author: model.User{
				ID:       strconv.Itoa(body.PullRequest.User.ID),
				Username: body.PullRequest.User.Login,
				Name:     body.PullRequest.User.Name,
			},
		},
		Timestamp: time.Now(),
	}

	return event, nil
}

// IsReviewableEvent reports whether a parsed event should start a review
func (p *Provider) IsReviewableEvent(event *model.CodeEvent) bool {
	if event.Type != "pull_request" {
		return false
	}
	if !slices.Contains(reviewableActions, event.Action) {
		return false
	}
	if event.MergeRequest == nil || event.MergeRequest.SHA == "" {
		return false
	}

	if p.config.BotUsername != "" && event.User != nil && event.User.Username == p.config.BotUsername {
		return false
	}

	return true
}

// GetMergeRequestDiffs retrieves the file diffs for a pull request
func (p *Provider) GetMergeRequestDiffs(ctx context.Context, projectID string, mrIID int) ([]*model.FileDiff, error) {
	owner, repo, err := splitProjectID(projectID)
	if err != nil {
		return nil, err
	}

	opts := &github.ListOptions{PerPage: 100}
	var allFiles []*github.CommitFile

	for {
		files, resp, err := p.client.PullRequests.ListFiles(ctx, owner, repo, mrIID, opts)
		if err != nil {
			return nil, classifyError(resp, err, "failed to list pull request files")
		}

		allFiles = append(allFiles, files...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	var fileDiffs []*model.FileDiff
	for _, file := range allFiles {
		fileDiff := &model.FileDiff{
			OldPath:   file.GetPreviousFilename(),
			NewPath:   file.GetFilename(),
			Diff:      file.GetPatch(),
			IsNew:     file.GetStatus() == "added",
			IsDeleted: file.GetStatus() == "removed",
			IsRenamed: file.GetStatus() == "renamed",
			IsBinary:  file.GetPatch() == "" && file.GetStatus() != "removed" && file.GetStatus() != "added",
		}
		if fileDiff.IsRenamed && fileDiff.OldPath == "" {
			fileDiff.OldPath = fileDiff.NewPath
		}
		fileDiffs = append(fileDiffs, fileDiff)
	}

	return fileDiffs, nil
}

// GetFileContent retrieves the content of a file at a specific commit/SHA
func (p *Provider) GetFileContent(ctx context.Context, projectID, filePath, ref string) (string, error) {
	owner, repo, err := splitProjectID(projectID)
	if err != nil {
		return "", err
	}

	content, _, resp, err := p.client.Repositories.GetContents(ctx, owner, repo, filePath, &github.RepositoryContentGetOptions{
		Ref: ref,
	})
	if err != nil {
		return "", classifyError(resp, err, "failed to get file content from GitHub")
	}
	if content == nil {
		return "", errm.Wrap(model.ErrNotFound, "path is not a file")
	}

	decoded, err := content.GetContent()
	if err != nil {
		return "", errm.Wrap(err, "failed to decode file content")
	}

	return decoded, nil
}

// SearchCode searches repository code for the given query
func (p *Provider) SearchCode(ctx context.Context, projectID, query string) ([]model.CodeSearchResult, error) {
	owner, repo, err := splitProjectID(projectID)
	if err != nil {
		return nil, err
	}

	scoped := fmt.Sprintf("%s repo:%s/%s", query, owner, repo)
	result, resp, err := p.client.Search.Code(ctx, scoped, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 50},
	})
	if err != nil {
		return nil, classifyError(resp, err, "failed to search code in GitHub")
	}

	var results []model.CodeSearchResult
	for _, hit := range result.CodeResults {
		results = append(results, model.CodeSearchResult{
			Path: hit.GetPath(),
		})
	}

	return results, nil
}

// CreateComment creates an issue comment on a pull request
func (p *Provider) CreateComment(ctx context.Context, projectID string, mrIID int, body string) error {
	owner, repo, err := splitProjectID(projectID)
	if err != nil {
		return err
	}

	_, resp, err := p.client.Issues.CreateComment(ctx, owner, repo, mrIID, &github.IssueComment{
		Body: &body,
	})
	if err != nil {
		return classifyError(resp, err, "failed to create pull request comment")
	}

	return nil
}

func splitProjectID(projectID string) (owner, repo string, err error) {
	parts := strings.Split(projectID, "/")
	if len(parts) != 2 {
		return "", "", errm.New("invalid GitHub project ID format, expected 'owner/repo'")
	}
	return parts[0], parts[1], nil
}

// classifyError maps GitHub API failures onto the typed errors the engine
// distinguishes
func classifyError(resp *github.Response, err error, msg string) error {
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
