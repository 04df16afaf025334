package model

import (
	"strconv"
	"time"

	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/lang"
)

// FileChangeStatus describes what happened to a file in a change set
type FileChangeStatus string

const (
	FileAdded    FileChangeStatus = "added"
	FileModified FileChangeStatus = "modified"
	FileDeleted  FileChangeStatus = "deleted"
	FileRenamed  FileChangeStatus = "renamed"
)

// FileChange is an immutable normalized snapshot of one file's diff
type FileChange struct {
	Path         string
	OldPath      string
	Status       FileChangeStatus
	Patch        string // empty for binary files
	IsBinary     bool
	Truncated    bool
	Language     string
	LinesAdded   int
	LinesDeleted int
	TokenCount   int
}

// DiffContext is the full normalized change set for one review session.
// It is owned by a single session and never mutated after construction.
type DiffContext struct {
	ProjectID         string
	MergeRequestIID   int
	HeadSHA           string
	Files             []FileChange
	TotalLinesChanged int
}

// ContainsPath reports whether the context has a file at the given path
func (d *DiffContext) ContainsPath(path string) bool {
	for _, f := range d.Files {
		if f.Path == path {
			return true
		}
	}
	return false
}

// Paths returns all file paths in context order
func (d *DiffContext) Paths() []string {
	paths := make([]string, 0, len(d.Files))
	for _, f := range d.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// RiskLevel is the overall risk assessment of a change set
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// IsValid reports whether the value is one of the known risk levels
func (r RiskLevel) IsValid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// RiskPlan is the risk planner's structured output, produced once per session
type RiskPlan struct {
	RiskLevel    RiskLevel `json:"risk_level"`
	FocusTargets []string  `json:"focus_targets"`
	Rationale    string    `json:"rationale"`
}

// Severity of a single review finding
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityBlock Severity = "block"
)

var severityPriority = abstract.NewSafeMap(map[Severity]int{
	SeverityBlock: 0,
	SeverityWarn:  1,
	SeverityInfo:  2,
})

// IsValid reports whether the value is one of the known severities
func (s Severity) IsValid() bool {
	return s == SeverityInfo || s == SeverityWarn || s == SeverityBlock
}

// Compare orders severities block > warn > info (block sorts first)
func (s Severity) Compare(other Severity) int {
	return lang.If(s == other, 0, lang.If(severityPriority.Get(s) < severityPriority.Get(other), -1, 1))
}

// ReviewFinding is one issue a focused review produced for a file
type ReviewFinding struct {
	FilePath string   `json:"file_path"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	LineHint int      `json:"line_hint,omitempty"`
}

// FileReview is the terminal outcome of one file's focused review loop
type FileReview struct {
	Path          string
	Findings      []ReviewFinding
	Partial       bool
	PartialReason string
	Failed        bool
	FailReason    string
	ThinkSteps    int
}

// AggregatedReview is the final artifact handed to the writeback boundary
type AggregatedReview struct {
	Body         string
	RiskLevel    RiskLevel
	FindingCount int
}

// DedupKey identifies one review unit: a request at a specific head revision
type DedupKey struct {
	ProjectID       string
	MergeRequestIID int
	HeadSHA         string
}

func (k DedupKey) String() string {
	return k.ProjectID + ":" + strconv.Itoa(k.MergeRequestIID) + ":" + k.HeadSHA
}

// SessionStatus is the lifecycle state of a review session
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// IsTerminal reports whether the status is a final one
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// ReviewSession is the unit the idempotency guard tracks
type ReviewSession struct {
	Key        DedupKey
	Status     SessionStatus
	StartedAt  time.Time
	FinishedAt time.Time
}
