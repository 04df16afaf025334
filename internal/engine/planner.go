package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"

	"github.com/williamChen26/ai-code-review/internal/model"
	"github.com/williamChen26/ai-code-review/internal/model/interfaces"
)

const plannerSystemPrompt = `You are a senior code review engineer deciding where review effort should go.
Respond with strict JSON only: no markdown, no explanation outside the JSON object.`

const plannerCorrective = `Your previous response did not match the required schema. ` +
	`Respond with ONLY a JSON object of shape ` +
	`{"risk_level":"low|medium|high","focus_targets":["path",...],"rationale":"..."} and nothing else.`

// Planner performs the single-shot risk planning call over a DiffContext.
// The planner never loops: one call, one corrective retry on a schema
// violation, then a typed failure.
type Planner struct {
	api interfaces.AgentAPI
	cfg Config
	log logze.Logger
}

// NewPlanner creates a risk planner
func NewPlanner(api interfaces.AgentAPI, cfg Config) *Planner {
	return &Planner{
		api: api,
		cfg: cfg,
		log: logze.With("component", "planner"),
	}
}

// Plan produces a RiskPlan for the change set. Focus targets referencing
// unknown paths are filtered out; an empty result falls back to all files.
func (p *Planner) Plan(ctx context.Context, dctx *model.DiffContext) (model.RiskPlan, error) {
	prompt := p.buildPrompt(dctx)

	plan, err := p.callOnce(ctx, prompt)
	if err != nil {
		if errm.Is(err, model.ErrUnavailable) {
			return model.RiskPlan{}, err
		}
		p.log.Warn("risk plan failed validation, retrying with corrective instruction", "error", err.Error())
		plan, err = p.callOnce(ctx, prompt+"\n\n"+plannerCorrective)
		if err != nil {
			if errm.Is(err, model.ErrUnavailable) {
				return model.RiskPlan{}, err
			}
			return model.RiskPlan{}, errm.Wrap(model.ErrMalformedPlan, err.Error())
		}
	}

	plan.FocusTargets = p.filterTargets(plan.FocusTargets, dctx)
	return plan, nil
}

func (p *Planner) callOnce(ctx context.Context, prompt string) (model.RiskPlan, error) {
	resp, err := p.api.CallAPI(ctx, model.APIRequest{
		SystemPrompt: plannerSystemPrompt,
		Prompt:       prompt,
		ResponseType: "application/json",
	})
	if err != nil {
		return model.RiskPlan{}, errm.Wrap(model.ErrUnavailable, err.Error())
	}

	plan, err := decodeJSON[model.RiskPlan](resp.Content)
	if err != nil {
		return model.RiskPlan{}, err
	}
	if !plan.RiskLevel.IsValid() {
		return model.RiskPlan{}, errm.New("invalid risk_level: %s", plan.RiskLevel)
	}
	return plan, nil
}

// buildPrompt is deterministic: file order, sizes and truncation markers come
// straight from the DiffContext
func (p *Planner) buildPrompt(dctx *model.DiffContext) string {
	var sb strings.Builder

	sb.WriteString("Produce a risk plan for this change set as JSON:\n")
	sb.WriteString(`{"risk_level":"low|medium|high","focus_targets":["path",...],"rationale":"..."}` + "\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- focus_targets must be a subset of the changed file paths below, highest risk first\n")
	sb.WriteString("- an empty focus_targets list means nothing needs focused review\n")
	sb.WriteString("- rationale is one or two sentences\n\n")

	fmt.Fprintf(&sb, "Head revision: %s\n", dctx.HeadSHA)
	fmt.Fprintf(&sb, "Total lines changed: %d\n", dctx.TotalLinesChanged)
	sb.WriteString("Changed files:\n")

	for _, f := range dctx.Files {
		fmt.Fprintf(&sb, "- %s (%s, %s, +%d/-%d",
			f.Path, languageOrUnknown(f.Language), f.Status, f.LinesAdded, f.LinesDeleted)
		if f.IsBinary {
			sb.WriteString(", binary")
		}
		if f.Truncated {
			sb.WriteString(", patch truncated")
		}
		sb.WriteString(")\n")
	}

	return sb.String()
}

func (p *Planner) filterTargets(targets []string, dctx *model.DiffContext) []string {
	filtered := make([]string, 0, len(targets))
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if dctx.ContainsPath(t) && !seen[t] {
			filtered = append(filtered, t)
			seen[t] = true
		}
	}
	if len(filtered) == 0 {
		// never "review nothing"
		return dctx.Paths()
	}
	return filtered
}

func languageOrUnknown(language string) string {
	if language == "" {
		return "unknown"
	}
	return language
}
