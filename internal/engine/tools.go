package engine

import (
	"context"
	"strings"

	"github.com/maxbolgarin/errm"

	"github.com/williamChen26/ai-code-review/internal/model"
	"github.com/williamChen26/ai-code-review/internal/model/interfaces"
)

// Tool names the model may request. The set is fixed and read-only: tools
// never mutate provider state.
const (
	toolGetDiffChunk     = "get_diff_chunk"
	toolFindRiskyPattern = "find_risky_pattern"
	toolFetchFile        = "fetch_file"
	toolSearchCode       = "search_code"
)

// toolRequest is the model's parsed tool invocation
type toolRequest struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// toolRunner validates tool arguments against each tool's schema and
// dispatches to the deterministic implementation. Any failure is returned as
// an error for the loop to feed back as an observation; the runner never
// panics on model-controlled input.
type toolRunner struct {
	provider interfaces.CodeProvider
	dctx     *model.DiffContext
	cfg      Config
}

func newToolRunner(provider interfaces.CodeProvider, dctx *model.DiffContext, cfg Config) *toolRunner {
	return &toolRunner{provider: provider, dctx: dctx, cfg: cfg}
}

// Dispatch executes one tool call and returns a JSON-serializable observation
func (t *toolRunner) Dispatch(ctx context.Context, req toolRequest) (any, error) {
	switch req.Name {
	case toolGetDiffChunk:
		return t.getDiffChunk(req.Args)
	case toolFindRiskyPattern:
		return t.findRiskyPattern(req.Args)
	case toolFetchFile:
		return t.fetchFile(ctx, req.Args)
	case toolSearchCode:
		return t.searchCode(ctx, req.Args)
	default:
		return nil, errm.New("unknown tool: %s", req.Name)
	}
}

func (t *toolRunner) getDiffChunk(args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	maxLines, err := intArg(args, "max_lines")
	if err != nil {
		return nil, err
	}
	if maxLines <= 0 {
		return nil, errm.New("max_lines must be positive")
	}

	fc, err := t.findFile(path)
	if err != nil {
		return nil, err
	}
	if fc.IsBinary {
		return nil, errm.New("no text diff for binary file: %s", path)
	}

	lines := strings.Split(fc.Patch, "\n")
	if maxLines < len(lines) {
		lines = lines[:maxLines]
	}
	return map[string]any{"chunk": strings.Join(lines, "\n")}, nil
}

func (t *toolRunner) findRiskyPattern(args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	patterns, err := stringSliceArg(args, "patterns")
	if err != nil {
		return nil, err
	}

	fc, err := t.findFile(path)
	if err != nil {
		return nil, err
	}

	hits := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if pattern == "" {
			return nil, errm.New("pattern must be non-empty")
		}
		if strings.Contains(fc.Patch, pattern) {
			hits = append(hits, pattern)
		}
	}
	return map[string]any{"hits": hits}, nil
}

func (t *toolRunner) fetchFile(ctx context.Context, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}

	content, err := t.provider.GetFileContent(ctx, t.dctx.ProjectID, path, t.dctx.HeadSHA)
	if err != nil {
		return nil, errm.Wrap(err, "fetch file")
	}

	truncated := false
	if len(content) > t.cfg.MaxFetchBytes {
		content = content[:t.cfg.MaxFetchBytes]
		truncated = true
	}
	return map[string]any{"content": content, "truncated": truncated}, nil
}

func (t *toolRunner) searchCode(ctx context.Context, args map[string]any) (any, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}

	results, err := t.provider.SearchCode(ctx, t.dctx.ProjectID, query)
	if err != nil {
		return nil, errm.Wrap(err, "search code")
	}
	if len(results) > t.cfg.MaxSearchHits {
		results = results[:t.cfg.MaxSearchHits]
	}

	paths := make([]string, 0, len(results))
	for _, r := range results {
		paths = append(paths, r.Path)
	}
	return map[string]any{"paths": paths}, nil
}

func (t *toolRunner) findFile(path string) (model.FileChange, error) {
	for _, f := range t.dctx.Files {
		if f.Path == path {
			return f, nil
		}
	}
	return model.FileChange{}, errm.New("no diff for path: %s", path)
}

// JSON object arguments arrive as map[string]any, numbers as float64

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", errm.New("missing argument: %s", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", errm.New("argument %s must be a non-empty string", key)
	}
	return s, nil
}

func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, errm.New("missing argument: %s", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, errm.New("argument %s must be a number", key)
	}
	return int(f), nil
}

func stringSliceArg(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok {
		return nil, errm.New("missing argument: %s", key)
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, errm.New("argument %s must be an array of strings", key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, errm.New("argument %s must contain only strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}
