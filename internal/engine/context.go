package engine

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
	"github.com/pkoukk/tiktoken-go"

	"github.com/williamChen26/ai-code-review/internal/model"
	"github.com/williamChen26/ai-code-review/internal/model/interfaces"
)

const truncationMarker = "\n... [patch truncated] ..."

var languageByExtension = abstract.NewSafeMap(map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".cs":    "csharp",
	".php":   "php",
	".swift": "swift",
	".sh":    "shell",
	".bash":  "shell",
	".sql":   "sql",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
	".md":    "markdown",
	".proto": "protobuf",
	".tf":    "terraform",
})

// ContextBuilder turns a webhook event into a normalized DiffContext
type ContextBuilder struct {
	provider interfaces.CodeProvider
	cfg      Config
	encoder  *tiktoken.Tiktoken
	log      logze.Logger
}

// NewContextBuilder creates a context builder bound to one provider
func NewContextBuilder(provider interfaces.CodeProvider, cfg Config) *ContextBuilder {
	log := logze.With("component", "context_builder")

	encoder, err := tiktoken.EncodingForModel(cfg.TokenModel)
	if err != nil {
		// Token counts become zero, everything else keeps working
		log.Warn("cannot load token encoder, token metrics disabled", "model", cfg.TokenModel, "error", err.Error())
		encoder = nil
	}

	return &ContextBuilder{
		provider: provider,
		cfg:      cfg,
		encoder:  encoder,
		log:      log,
	}
}

// Build fetches the file diffs for the event's merge request and normalizes
// them into an immutable DiffContext owned by the calling session
func (b *ContextBuilder) Build(ctx context.Context, event *model.CodeEvent) (*model.DiffContext, error) {
	if event.MergeRequest == nil {
		return nil, errm.New("event has no merge request")
	}

	diffs, err := b.provider.GetMergeRequestDiffs(ctx, event.ProjectID, event.MergeRequest.IID)
	if err != nil {
		switch {
		case errm.Is(err, model.ErrNotFound), errm.Is(err, model.ErrForbidden):
			return nil, err
		default:
			return nil, errm.Wrap(model.ErrUnavailable, err.Error())
		}
	}

	dctx := &model.DiffContext{
		ProjectID:       event.ProjectID,
		MergeRequestIID: event.MergeRequest.IID,
		HeadSHA:         event.MergeRequest.SHA,
		Files:           make([]model.FileChange, 0, len(diffs)),
	}

	for _, diff := range diffs {
		if len(dctx.Files) >= b.cfg.MaxFiles {
			b.log.Warn("change set exceeds file limit, remaining files skipped",
				"limit", b.cfg.MaxFiles, "total", len(diffs))
			break
		}

		fc := b.normalizeFile(diff)
		if !fc.IsBinary {
			dctx.TotalLinesChanged += fc.LinesAdded + fc.LinesDeleted
		}
		dctx.Files = append(dctx.Files, fc)
	}

	return dctx, nil
}

func (b *ContextBuilder) normalizeFile(diff *model.FileDiff) model.FileChange {
	fc := model.FileChange{
		Path:     diff.NewPath,
		OldPath:  diff.OldPath,
		Status:   changeStatus(diff),
		IsBinary: diff.IsBinary,
	}
	if diff.IsDeleted {
		fc.Path = diff.OldPath
	}
	fc.Language = languageByExtension.Get(strings.ToLower(filepath.Ext(fc.Path)))

	if diff.IsBinary {
		return fc
	}

	patch := strings.ReplaceAll(diff.Diff, "\r\n", "\n")
	fc.LinesAdded, fc.LinesDeleted = countChangedLines(diff.OldPath, diff.NewPath, patch)

	lines := strings.Split(patch, "\n")
	if len(lines) > b.cfg.MaxPatchLines {
		patch = strings.Join(lines[:b.cfg.MaxPatchLines], "\n") + truncationMarker
		fc.Truncated = true
	}
	fc.Patch = patch
	fc.TokenCount = b.countTokens(patch)

	return fc
}

func (b *ContextBuilder) countTokens(text string) int {
	if b.encoder == nil {
		return 0
	}
	return len(b.encoder.Encode(text, nil, nil))
}

func changeStatus(diff *model.FileDiff) model.FileChangeStatus {
	switch {
	case diff.IsNew:
		return model.FileAdded
	case diff.IsDeleted:
		return model.FileDeleted
	case diff.IsRenamed:
		return model.FileRenamed
	default:
		return model.FileModified
	}
}

// countChangedLines parses the patch hunks and counts added/deleted lines.
// Providers return bare hunks without git file headers, so headers are
// synthesized for the parser. Unparseable patches fall back to prefix
// counting.
func countChangedLines(oldPath, newPath, patch string) (added, deleted int) {
	if patch == "" {
		return 0, 0
	}

	raw := "--- a/" + oldPath + "\n+++ b/" + newPath + "\n" + patch
	files, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil || len(files) == 0 {
		return countByPrefix(patch)
	}

	for _, f := range files {
		for _, frag := range f.TextFragments {
			for _, line := range frag.Lines {
				switch line.Op {
				case gitdiff.OpAdd:
					added++
				case gitdiff.OpDelete:
					deleted++
				}
			}
		}
	}
	return added, deleted
}

func countByPrefix(patch string) (added, deleted int) {
	for _, line := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			deleted++
		}
	}
	return added, deleted
}
