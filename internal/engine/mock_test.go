package engine

import (
	"context"
	"sync"

	"github.com/maxbolgarin/errm"

	"github.com/williamChen26/ai-code-review/internal/model"
	"github.com/williamChen26/ai-code-review/internal/model/interfaces"
)

var (
	_ interfaces.CodeProvider = (*fakeProvider)(nil)
	_ interfaces.AgentAPI     = (*fakeAPI)(nil)
)

// fakeProvider serves scripted diffs, file contents and search results, and
// records created comments
type fakeProvider struct {
	mu sync.Mutex

	diffs      []*model.FileDiff
	diffsErr   error
	files      map[string]string
	search     []model.CodeSearchResult
	commentErr error

	comments []string
	posted   chan string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		files:  make(map[string]string),
		posted: make(chan string, 8),
	}
}

func (f *fakeProvider) ValidateWebhook(payload []byte, authToken string) error { return nil }

func (f *fakeProvider) ParseWebhookEvent(payload []byte) (*model.CodeEvent, error) {
	return nil, errm.New("not implemented")
}

func (f *fakeProvider) IsReviewableEvent(event *model.CodeEvent) bool { return true }

func (f *fakeProvider) GetMergeRequestDiffs(ctx context.Context, projectID string, mrIID int) ([]*model.FileDiff, error) {
	if f.diffsErr != nil {
		return nil, f.diffsErr
	}
	return f.diffs, nil
}

func (f *fakeProvider) GetFileContent(ctx context.Context, projectID, filePath, ref string) (string, error) {
	content, ok := f.files[filePath]
	if !ok {
		return "", errm.Wrap(model.ErrNotFound, filePath)
	}
	return content, nil
}

func (f *fakeProvider) SearchCode(ctx context.Context, projectID, query string) ([]model.CodeSearchResult, error) {
	return f.search, nil
}

func (f *fakeProvider) CreateComment(ctx context.Context, projectID string, mrIID int, body string) error {
	if f.commentErr != nil {
		return f.commentErr
	}
	f.mu.Lock()
	f.comments = append(f.comments, body)
	f.mu.Unlock()
	select {
	case f.posted <- body:
	default:
	}
	return nil
}

// scriptedCall is one scripted LLM exchange
type scriptedCall struct {
	content string
	err     error
	// block makes the call wait for context cancellation
	block bool
}

// fakeAPI pops scripted responses in order and records every request
type fakeAPI struct {
	mu    sync.Mutex
	calls []model.APIRequest
	queue []scriptedCall
}

func (f *fakeAPI) push(calls ...scriptedCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, calls...)
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAPI) CallAPI(ctx context.Context, req model.APIRequest) (model.APIResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	if len(f.queue) == 0 {
		f.mu.Unlock()
		return model.APIResponse{}, errm.New("no scripted response left")
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	f.mu.Unlock()

	if next.block {
		<-ctx.Done()
		return model.APIResponse{}, ctx.Err()
	}
	if next.err != nil {
		return model.APIResponse{}, next.err
	}
	return model.APIResponse{Content: next.content}, nil
}

// repeatingAPI returns the same scripted call forever
type repeatingAPI struct {
	call  scriptedCall
	mu    sync.Mutex
	calls int
}

func (f *repeatingAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *repeatingAPI) CallAPI(ctx context.Context, req model.APIRequest) (model.APIResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.call.block {
		<-ctx.Done()
		return model.APIResponse{}, ctx.Err()
	}
	if f.call.err != nil {
		return model.APIResponse{}, f.call.err
	}
	return model.APIResponse{Content: f.call.content}, nil
}

func testConfig() Config {
	cfg := Config{}
	if err := cfg.PrepareAndValidate(); err != nil {
		panic(err)
	}
	return cfg
}

func testDiffContext(files ...model.FileChange) *model.DiffContext {
	dctx := &model.DiffContext{
		ProjectID:       "42",
		MergeRequestIID: 7,
		HeadSHA:         "abc123",
		Files:           files,
	}
	for _, f := range files {
		dctx.TotalLinesChanged += f.LinesAdded + f.LinesDeleted
	}
	return dctx
}
