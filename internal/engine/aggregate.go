package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/williamChen26/ai-code-review/internal/model"
)

const (
	emptyDiffBody = "### Code Review\n\nNo reviewable changes were found in this merge request."
	cleanFileNote = "No issues found."
)

var severityMarker = map[model.Severity]string{
	model.SeverityBlock: "🟥",
	model.SeverityWarn:  "🟨",
	model.SeverityInfo:  "🟦",
}

// Aggregate merges per-file reviews into a single deterministic comment body.
// Files appear in DiffContext order regardless of completion order, and
// findings within a file are sorted block > warn > info with input order
// preserved among equals.
func Aggregate(dctx *model.DiffContext, plan model.RiskPlan, reviews []model.FileReview) model.AggregatedReview {
	if len(dctx.Files) == 0 {
		return model.AggregatedReview{Body: emptyDiffBody, RiskLevel: model.RiskLow}
	}

	byPath := make(map[string]model.FileReview, len(reviews))
	for _, rv := range reviews {
		byPath[rv.Path] = rv
	}

	var sb strings.Builder
	sb.WriteString("### Code Review\n\n")
	fmt.Fprintf(&sb, "**Risk level:** %s\n", plan.RiskLevel)
	if plan.Rationale != "" {
		fmt.Fprintf(&sb, "\n%s\n", plan.Rationale)
	}

	total := 0
	for _, fc := range dctx.Files {
		rv, ok := byPath[fc.Path]
		if !ok {
			continue // file was outside the focus targets
		}

		fmt.Fprintf(&sb, "\n---\n\n#### `%s`\n\n", rv.Path)

		switch {
		case rv.Failed:
			fmt.Fprintf(&sb, "⚠️ Review failed for this file: %s\n", rv.FailReason)
			continue
		case rv.Partial:
			fmt.Fprintf(&sb, "⚠️ Partial review (%s), findings below may be incomplete.\n\n", rv.PartialReason)
		}

		if len(rv.Findings) == 0 {
			sb.WriteString(cleanFileNote + "\n")
			continue
		}

		findings := make([]model.ReviewFinding, len(rv.Findings))
		copy(findings, rv.Findings)
		sort.SliceStable(findings, func(i, j int) bool {
			return findings[i].Severity.Compare(findings[j].Severity) < 0
		})

		for _, f := range findings {
			total++
			line := ""
			if f.LineHint > 0 {
				line = fmt.Sprintf(" (line %d)", f.LineHint)
			}
			fmt.Fprintf(&sb, "- %s **%s**%s: %s\n", severityMarker[f.Severity], f.Severity, line, f.Message)
		}
	}

	return model.AggregatedReview{
		Body:         sb.String(),
		RiskLevel:    plan.RiskLevel,
		FindingCount: total,
	}
}
