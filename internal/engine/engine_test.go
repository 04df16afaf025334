package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/maxbolgarin/errm"

	"github.com/williamChen26/ai-code-review/internal/model"
	"github.com/williamChen26/ai-code-review/internal/model/interfaces"
)

const (
	planResponse  = `{"risk_level":"medium","focus_targets":["auth/login.go"],"rationale":"auth change"}`
	cleanResponse = `{"kind":"final","findings":[]}`
)

func newTestEngine(t *testing.T, provider *fakeProvider, api interfaces.AgentAPI) (*Engine, *Registry) {
	t.Helper()

	cfg := testConfig()
	cfg.Concurrency = 1
	cfg.EventWorkers = 2
	cfg.FileTimeout = 2 * time.Second
	cfg.SessionTimeout = 5 * time.Second

	registry := NewRegistry(0)
	eng, err := New(map[string]interfaces.CodeProvider{"gitlab": provider}, api, registry, cfg)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	t.Cleanup(func() { _ = eng.Stop(t.Context()) })
	return eng, registry
}

func waitComment(t *testing.T, provider *fakeProvider) string {
	t.Helper()
	select {
	case body := <-provider.posted:
		return body
	case <-time.After(3 * time.Second):
		t.Fatal("no comment posted in time")
		return ""
	}
}

func waitTerminal(t *testing.T, registry *Registry, key model.DedupKey) model.SessionStatus {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if status, ok := registry.Status(key); ok && status.IsTerminal() {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session never reached a terminal status")
	return ""
}

func engineEvent() *model.CodeEvent {
	return &model.CodeEvent{
		Provider:  "gitlab",
		Type:      "merge_request",
		Action:    "open",
		ProjectID: "42",
		MergeRequest: &model.MergeRequest{
			IID: 7,
			SHA: "abc123",
		},
	}
}

func TestEngineFullSession(t *testing.T) {
	provider := newFakeProvider()
	provider.diffs = []*model.FileDiff{
		{OldPath: "auth/login.go", NewPath: "auth/login.go", Diff: samplePatch},
	}

	api := &fakeAPI{}
	api.push(
		scriptedCall{content: planResponse},
		scriptedCall{content: `{"kind":"final","findings":[{"severity":"warn","message":"missing context timeout"}]}`},
	)

	eng, registry := newTestEngine(t, provider, api)
	event := engineEvent()

	if err := eng.HandleEvent(event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	body := waitComment(t, provider)
	if !strings.Contains(body, "medium") || !strings.Contains(body, "missing context timeout") {
		t.Errorf("unexpected review body: %q", body)
	}

	key := model.DedupKey{ProjectID: "42", MergeRequestIID: 7, HeadSHA: "abc123"}
	if status := waitTerminal(t, registry, key); status != model.SessionCompleted {
		t.Errorf("expected completed session, got %s", status)
	}
}

func TestEngineRejectsReplay(t *testing.T) {
	provider := newFakeProvider()
	provider.diffs = []*model.FileDiff{
		{OldPath: "auth/login.go", NewPath: "auth/login.go", Diff: samplePatch},
	}

	api := &fakeAPI{}
	api.push(
		scriptedCall{content: planResponse},
		scriptedCall{content: cleanResponse},
	)

	eng, registry := newTestEngine(t, provider, api)

	if err := eng.HandleEvent(engineEvent()); err != nil {
		t.Fatalf("first event: %v", err)
	}
	if err := eng.HandleEvent(engineEvent()); !errm.Is(err, model.ErrSessionInProgress) && !errm.Is(err, model.ErrDuplicateSession) {
		t.Fatalf("expected typed replay rejection, got %v", err)
	}

	waitComment(t, provider)
	key := model.DedupKey{ProjectID: "42", MergeRequestIID: 7, HeadSHA: "abc123"}
	waitTerminal(t, registry, key)

	// after completion the same revision is still rejected
	if err := eng.HandleEvent(engineEvent()); !errm.Is(err, model.ErrDuplicateSession) {
		t.Fatalf("expected ErrDuplicateSession after completion, got %v", err)
	}

	provider.mu.Lock()
	posted := len(provider.comments)
	provider.mu.Unlock()
	if posted != 1 {
		t.Errorf("expected a single posted comment, got %d", posted)
	}
}

func TestEngineEmptyDiffShortcut(t *testing.T) {
	provider := newFakeProvider() // no diffs
	api := &fakeAPI{}             // no scripted responses: no LLM call expected

	eng, registry := newTestEngine(t, provider, api)

	if err := eng.HandleEvent(engineEvent()); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	body := waitComment(t, provider)
	if !strings.Contains(body, "No reviewable changes") {
		t.Errorf("expected empty-diff comment, got %q", body)
	}

	key := model.DedupKey{ProjectID: "42", MergeRequestIID: 7, HeadSHA: "abc123"}
	if status := waitTerminal(t, registry, key); status != model.SessionCompleted {
		t.Errorf("expected completed session, got %s", status)
	}
	if api.callCount() != 0 {
		t.Errorf("empty diff must not reach the model, got %d calls", api.callCount())
	}
}

func TestEnginePlannerFailurePostsNotice(t *testing.T) {
	provider := newFakeProvider()
	provider.diffs = []*model.FileDiff{
		{OldPath: "auth/login.go", NewPath: "auth/login.go", Diff: samplePatch},
	}

	api := &fakeAPI{}
	api.push(
		scriptedCall{content: "not json"},
		scriptedCall{content: "still not json"},
	)

	eng, registry := newTestEngine(t, provider, api)

	if err := eng.HandleEvent(engineEvent()); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	body := waitComment(t, provider)
	if !strings.Contains(body, "Risk assessment could not be completed") {
		t.Errorf("expected planner failure notice, got %q", body)
	}

	key := model.DedupKey{ProjectID: "42", MergeRequestIID: 7, HeadSHA: "abc123"}
	if status := waitTerminal(t, registry, key); status != model.SessionFailed {
		t.Errorf("expected failed session, got %s", status)
	}
}

func TestEnginePerFileFailureIsolation(t *testing.T) {
	provider := newFakeProvider()
	provider.diffs = []*model.FileDiff{
		{OldPath: "a.go", NewPath: "a.go", Diff: samplePatch},
		{OldPath: "b.go", NewPath: "b.go", Diff: samplePatch},
	}

	// Concurrency=1 reviews targets in plan order, so the scripted failure
	// hits a.go and the finding lands on b.go
	api := &fakeAPI{}
	api.push(
		scriptedCall{content: `{"risk_level":"high","focus_targets":["a.go","b.go"],"rationale":"r"}`},
		scriptedCall{err: errm.New("connection refused")},
		scriptedCall{content: `{"kind":"final","findings":[{"severity":"block","message":"hardcoded credential"}]}`},
	)

	eng, registry := newTestEngine(t, provider, api)

	if err := eng.HandleEvent(engineEvent()); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	body := waitComment(t, provider)
	if !strings.Contains(body, "Review failed") {
		t.Error("failed file should be annotated in the comment")
	}
	if !strings.Contains(body, "hardcoded credential") {
		t.Error("healthy file's findings must survive a sibling failure")
	}

	key := model.DedupKey{ProjectID: "42", MergeRequestIID: 7, HeadSHA: "abc123"}
	if status := waitTerminal(t, registry, key); status != model.SessionCompleted {
		t.Errorf("per-file failure must not fail the session, got %s", status)
	}
}
