package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/maxbolgarin/errm"

	"github.com/williamChen26/ai-code-review/internal/model"
)

const samplePatch = "@@ -1,3 +1,4 @@\n context\n-removed line\n+added one\n+added two\n context"

func testEvent() *model.CodeEvent {
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

func TestContextBuilderNormalizes(t *testing.T) {
	provider := newFakeProvider()
	provider.diffs = []*model.FileDiff{
		{OldPath: "main.go", NewPath: "main.go", Diff: samplePatch},
		{OldPath: "", NewPath: "logo.png", IsBinary: true},
		{OldPath: "old_name.py", NewPath: "new_name.py", Diff: samplePatch, IsRenamed: true},
		{OldPath: "gone.rb", NewPath: "", Diff: samplePatch, IsDeleted: true},
	}

	b := NewContextBuilder(provider, testConfig())
	dctx, err := b.Build(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if dctx.HeadSHA != "abc123" || dctx.MergeRequestIID != 7 {
		t.Fatalf("session identity not carried over: %+v", dctx)
	}
	if len(dctx.Files) != 4 {
		t.Fatalf("expected 4 files, got %d", len(dctx.Files))
	}

	got := dctx.Files[0]
	if got.Status != model.FileModified || got.Language != "go" {
		t.Errorf("unexpected normalization: %+v", got)
	}
	if got.LinesAdded != 2 || got.LinesDeleted != 1 {
		t.Errorf("expected +2/-1, got +%d/-%d", got.LinesAdded, got.LinesDeleted)
	}

	binary := dctx.Files[1]
	if !binary.IsBinary || binary.Patch != "" || binary.TokenCount != 0 {
		t.Errorf("binary file should have no patch metrics: %+v", binary)
	}

	renamed := dctx.Files[2]
	if renamed.Status != model.FileRenamed || renamed.Path != "new_name.py" || renamed.OldPath != "old_name.py" {
		t.Errorf("unexpected rename normalization: %+v", renamed)
	}

	deleted := dctx.Files[3]
	if deleted.Status != model.FileDeleted || deleted.Path != "gone.rb" {
		t.Errorf("deleted file should be identified by old path: %+v", deleted)
	}

	// three text files with +2/-1 each, the binary contributes nothing
	if dctx.TotalLinesChanged != 9 {
		t.Errorf("expected 9 total lines changed, got %d", dctx.TotalLinesChanged)
	}
}

func TestContextBuilderTruncatesLongPatches(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("@@ -1,0 +1,50 @@\n")
	for i := 0; i < 50; i++ {
		sb.WriteString("+new line\n")
	}

	provider := newFakeProvider()
	provider.diffs = []*model.FileDiff{
		{OldPath: "big.go", NewPath: "big.go", Diff: sb.String()},
	}

	cfg := testConfig()
	cfg.MaxPatchLines = 10

	b := NewContextBuilder(provider, cfg)
	dctx, err := b.Build(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	fc := dctx.Files[0]
	if !fc.Truncated {
		t.Fatal("expected truncated patch")
	}
	if !strings.HasSuffix(fc.Patch, truncationMarker) {
		t.Error("truncated patch should end with the marker")
	}
	// line metrics are computed before truncation
	if fc.LinesAdded != 50 {
		t.Errorf("expected 50 added lines from full patch, got %d", fc.LinesAdded)
	}
}

func TestContextBuilderCapsFileCount(t *testing.T) {
	provider := newFakeProvider()
	for i := 0; i < 8; i++ {
		provider.diffs = append(provider.diffs, &model.FileDiff{
			OldPath: "f.go", NewPath: "f.go", Diff: samplePatch,
		})
	}

	cfg := testConfig()
	cfg.MaxFiles = 3

	b := NewContextBuilder(provider, cfg)
	dctx, err := b.Build(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(dctx.Files) != 3 {
		t.Fatalf("expected file cap of 3, got %d", len(dctx.Files))
	}
}

func TestContextBuilderErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		diffErr error
		want    error
	}{
		{"not found passes through", errm.Wrap(model.ErrNotFound, "mr"), model.ErrNotFound},
		{"forbidden passes through", errm.Wrap(model.ErrForbidden, "mr"), model.ErrForbidden},
		{"anything else becomes unavailable", errm.New("connection reset"), model.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newFakeProvider()
			provider.diffsErr = tt.diffErr

			b := NewContextBuilder(provider, testConfig())
			_, err := b.Build(context.Background(), testEvent())
			if !errm.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestContextBuilderEmptyDiff(t *testing.T) {
	provider := newFakeProvider()

	b := NewContextBuilder(provider, testConfig())
	dctx, err := b.Build(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(dctx.Files) != 0 || dctx.TotalLinesChanged != 0 {
		t.Fatalf("expected empty context, got %+v", dctx)
	}
}
