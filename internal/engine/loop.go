package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/maxbolgarin/logze/v2"

	"github.com/williamChen26/ai-code-review/internal/model"
	"github.com/williamChen26/ai-code-review/internal/model/interfaces"
)

const reviewerSystemPrompt = `You are a senior code review engineer examining one changed file.
You work in steps. At every step respond with strict JSON only, in one of two shapes:
  {"kind":"action","tool":{"name":"<tool>","args":{...}}}
  {"kind":"final","findings":[{"file_path":"...","severity":"info|warn|block","message":"...","line_hint":0}]}
Available tools (read-only):
  get_diff_chunk      args: {"path":string,"max_lines":number} - first N lines of a file's patch
  find_risky_pattern  args: {"path":string,"patterns":[string]} - substring scan over a file's patch
  fetch_file          args: {"path":string} - full file content at the head revision
  search_code         args: {"query":string} - repository code search, returns matching paths
Use a tool only when the patch alone is not enough. Emit "final" as soon as you can judge the file.
An empty findings list means the file looks fine.`

const malformedObservation = `{"error":"response was not valid JSON in the required shape, ` +
	`reply with exactly one JSON object of kind action or final"}`

const (
	partialReasonBudget  = "loop budget exhausted"
	partialReasonTimeout = "file review timed out"
)

// loopStep is the model's parsed output for one Think iteration
type loopStep struct {
	Kind     string                `json:"kind"`
	Tool     *toolRequest          `json:"tool,omitempty"`
	Findings []model.ReviewFinding `json:"findings,omitempty"`
}

// FocusedReviewer runs the bounded controlled-reasoning loop for single
// files: Think -> (ToolCall -> Observe)* -> Finish. The transcript is a value
// owned by one invocation, the loop is bounded by MaxThinkSteps and
// FileTimeout, and every abnormal outcome degrades to a partial or failed
// FileReview instead of an error.
type FocusedReviewer struct {
	api interfaces.AgentAPI
	cfg Config
	log logze.Logger
}

// NewFocusedReviewer creates a focused reviewer
func NewFocusedReviewer(api interfaces.AgentAPI, cfg Config) *FocusedReviewer {
	return &FocusedReviewer{
		api: api,
		cfg: cfg,
		log: logze.With("component", "focused_reviewer"),
	}
}

// ReviewFile runs the reasoning loop for one file and always returns a
// terminal FileReview
func (r *FocusedReviewer) ReviewFile(ctx context.Context, tools *toolRunner, fc model.FileChange, plan model.RiskPlan) model.FileReview {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.FileTimeout)
	defer cancel()

	log := r.log.WithFields("file", fc.Path)
	review := model.FileReview{Path: fc.Path}
	transcript := []string{r.openingPrompt(fc, plan)}

	for review.ThinkSteps < r.cfg.MaxThinkSteps {
		review.ThinkSteps++

		resp, err := r.api.CallAPI(ctx, model.APIRequest{
			SystemPrompt: reviewerSystemPrompt,
			Prompt:       strings.Join(transcript, "\n\n"),
			ResponseType: "application/json",
		})
		if err != nil {
			if ctx.Err() != nil {
				review.Partial = true
				review.PartialReason = partialReasonTimeout
				return review
			}
			review.Failed = true
			review.FailReason = err.Error()
			return review
		}

		step, err := decodeJSON[loopStep](resp.Content)
		if err != nil || (step.Kind != "action" && step.Kind != "final") {
			log.Debug("malformed loop step, feeding corrective observation", "step", review.ThinkSteps)
			transcript = append(transcript,
				"ASSISTANT:\n"+resp.Content,
				"OBSERVATION:\n"+malformedObservation)
			continue
		}

		if step.Kind == "final" {
			review.Findings = normalizeFindings(step.Findings, fc.Path)
			return review
		}

		observation := r.runTool(ctx, tools, step.Tool, log)
		transcript = append(transcript,
			"ASSISTANT:\n"+resp.Content,
			"OBSERVATION:\n"+observation)
	}

	review.Partial = true
	review.PartialReason = partialReasonBudget
	return review
}

// runTool dispatches one validated tool call. Tool failures of any kind
// become error observations, the loop itself never crashes on them.
func (r *FocusedReviewer) runTool(ctx context.Context, tools *toolRunner, req *toolRequest, log logze.Logger) string {
	if req == nil || req.Name == "" {
		return `{"error":"action step is missing the tool object"}`
	}

	result, err := tools.Dispatch(ctx, *req)
	if err != nil {
		log.Debug("tool call failed", "tool", req.Name, "error", err.Error())
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}

	raw, err := json.MarshalToString(map[string]any{"observation": result})
	if err != nil {
		return `{"error":"tool result could not be serialized"}`
	}
	return raw
}

func (r *FocusedReviewer) openingPrompt(fc model.FileChange, plan model.RiskPlan) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Review the following file change.\n")
	fmt.Fprintf(&sb, "path: %s\n", fc.Path)
	fmt.Fprintf(&sb, "language: %s\n", languageOrUnknown(fc.Language))
	fmt.Fprintf(&sb, "status: %s\n", fc.Status)
	fmt.Fprintf(&sb, "overall risk: %s\n", plan.RiskLevel)
	if plan.Rationale != "" {
		fmt.Fprintf(&sb, "planner rationale: %s\n", plan.Rationale)
	}
	if fc.Truncated {
		sb.WriteString("note: the patch below is truncated, use get_diff_chunk or fetch_file for more\n")
	}
	fmt.Fprintf(&sb, "patch:\n%s", fc.Patch)

	return sb.String()
}

// normalizeFindings pins findings to the file under review and coerces
// unknown severities so later stages only see closed values
func normalizeFindings(findings []model.ReviewFinding, path string) []model.ReviewFinding {
	out := make([]model.ReviewFinding, 0, len(findings))
	for _, f := range findings {
		if f.Message == "" {
			continue
		}
		if f.FilePath != "" && f.FilePath != path {
			continue
		}
		f.FilePath = path
		if !f.Severity.IsValid() {
			f.Severity = model.SeverityInfo
		}
		out = append(out, f)
	}
	return out
}
