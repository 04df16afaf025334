package engine

import (
	"strings"
	"testing"

	"github.com/williamChen26/ai-code-review/internal/model"
)

func TestAggregateEmptyDiff(t *testing.T) {
	agg := Aggregate(testDiffContext(), model.RiskPlan{RiskLevel: model.RiskLow}, nil)

	if !strings.Contains(agg.Body, "No reviewable changes") {
		t.Errorf("expected empty-diff body, got %q", agg.Body)
	}
	if agg.RiskLevel != model.RiskLow || agg.FindingCount != 0 {
		t.Errorf("unexpected aggregate: %+v", agg)
	}
}

func TestAggregateFollowsContextOrder(t *testing.T) {
	dctx := testDiffContext(
		model.FileChange{Path: "a.go"},
		model.FileChange{Path: "b.go"},
		model.FileChange{Path: "c.go"},
	)

	// reviews arrive in completion order, not context order
	reviews := []model.FileReview{
		{Path: "c.go", Findings: []model.ReviewFinding{{FilePath: "c.go", Severity: model.SeverityInfo, Message: "third"}}},
		{Path: "a.go", Findings: []model.ReviewFinding{{FilePath: "a.go", Severity: model.SeverityWarn, Message: "first"}}},
		{Path: "b.go"},
	}

	agg := Aggregate(dctx, model.RiskPlan{RiskLevel: model.RiskMedium}, reviews)

	posA := strings.Index(agg.Body, "`a.go`")
	posB := strings.Index(agg.Body, "`b.go`")
	posC := strings.Index(agg.Body, "`c.go`")
	if posA == -1 || posB == -1 || posC == -1 || !(posA < posB && posB < posC) {
		t.Fatalf("files out of context order: a=%d b=%d c=%d", posA, posB, posC)
	}
	if agg.FindingCount != 2 {
		t.Errorf("expected 2 findings, got %d", agg.FindingCount)
	}
	if !strings.Contains(agg.Body, "No issues found") {
		t.Error("clean file should be reported as such")
	}
}

func TestAggregateSortsFindingsBySeverity(t *testing.T) {
	dctx := testDiffContext(model.FileChange{Path: "a.go"})
	reviews := []model.FileReview{{
		Path: "a.go",
		Findings: []model.ReviewFinding{
			{FilePath: "a.go", Severity: model.SeverityInfo, Message: "minor style"},
			{FilePath: "a.go", Severity: model.SeverityBlock, Message: "sql injection"},
			{FilePath: "a.go", Severity: model.SeverityWarn, Message: "missing timeout", LineHint: 42},
			{FilePath: "a.go", Severity: model.SeverityBlock, Message: "auth bypass"},
		},
	}}

	agg := Aggregate(dctx, model.RiskPlan{RiskLevel: model.RiskHigh}, reviews)

	injection := strings.Index(agg.Body, "sql injection")
	bypass := strings.Index(agg.Body, "auth bypass")
	timeout := strings.Index(agg.Body, "missing timeout")
	style := strings.Index(agg.Body, "minor style")

	// block before warn before info, stable among equals
	if !(injection < bypass && bypass < timeout && timeout < style) {
		t.Fatalf("findings out of order: %q", agg.Body)
	}
	if !strings.Contains(agg.Body, "(line 42)") {
		t.Error("line hint should be rendered")
	}
}

func TestAggregateAnnotatesDegradedReviews(t *testing.T) {
	dctx := testDiffContext(
		model.FileChange{Path: "a.go"},
		model.FileChange{Path: "b.go"},
	)
	reviews := []model.FileReview{
		{Path: "a.go", Partial: true, PartialReason: partialReasonBudget,
			Findings: []model.ReviewFinding{{FilePath: "a.go", Severity: model.SeverityWarn, Message: "found before cutoff"}}},
		{Path: "b.go", Failed: true, FailReason: "model unavailable"},
	}

	agg := Aggregate(dctx, model.RiskPlan{RiskLevel: model.RiskMedium}, reviews)

	if !strings.Contains(agg.Body, "Partial review") || !strings.Contains(agg.Body, partialReasonBudget) {
		t.Error("partial review should be annotated with its reason")
	}
	if !strings.Contains(agg.Body, "Review failed") || !strings.Contains(agg.Body, "model unavailable") {
		t.Error("failed review should be annotated with its reason")
	}
	if !strings.Contains(agg.Body, "found before cutoff") {
		t.Error("partial findings must still be listed")
	}
	if agg.FindingCount != 1 {
		t.Errorf("expected 1 finding, got %d", agg.FindingCount)
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	dctx := testDiffContext(
		model.FileChange{Path: "a.go"},
		model.FileChange{Path: "b.go"},
	)
	reviews := []model.FileReview{
		{Path: "b.go", Findings: []model.ReviewFinding{{FilePath: "b.go", Severity: model.SeverityInfo, Message: "m"}}},
		{Path: "a.go"},
	}
	plan := model.RiskPlan{RiskLevel: model.RiskLow, Rationale: "small change"}

	first := Aggregate(dctx, plan, reviews)
	second := Aggregate(dctx, plan, reviews)
	if first.Body != second.Body {
		t.Fatal("aggregation must be deterministic")
	}
}
