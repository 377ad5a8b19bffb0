package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/tbelfort/falcon-ai-sub003/pkg/stage"
)

// Status is the issue's coarse lifecycle status.
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// allowedStatuses maps each Stage to the Status values that are valid while
// an issue sits at that stage (spec invariant 1).
var allowedStatuses = map[stage.Stage][]Status{
	stage.Backlog:       {StatusBacklog},
	stage.Todo:          {StatusTodo},
	stage.ContextPack:   {StatusInProgress},
	stage.ContextReview: {StatusInProgress},
	stage.Spec:          {StatusInProgress},
	stage.SpecReview:    {StatusInProgress},
	stage.Implement:     {StatusInProgress},
	stage.PRReview:      {StatusInProgress},
	stage.PRHumanReview: {StatusInProgress},
	stage.Fixer:         {StatusInProgress},
	stage.Testing:       {StatusInProgress},
	stage.DocReview:     {StatusInProgress},
	stage.MergeReady:    {StatusInProgress},
	stage.Done:          {StatusDone},
}

// AllowedStatuses returns the Status values valid for a given Stage.
func AllowedStatuses(s stage.Stage) []Status {
	return allowedStatuses[s]
}

// StatusAllowedAtStage reports whether status is a legal status for stage.
func StatusAllowedAtStage(status Status, s stage.Stage) bool {
	for _, allowed := range allowedStatuses[s] {
		if allowed == status {
			return true
		}
	}
	return false
}

// Issue is a project-scoped unit of work moving through the stage pipeline.
type Issue struct {
	ID             int64
	UUID           string
	ProjectID      string
	Title          string
	Description    string
	Status         Status
	Stage          stage.Stage
	Priority       int
	LabelIDs       []string
	BranchName     string
	PRNumber       int
	PRURL          string
	AssignedAgent  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// DeriveBranchName builds the canonical branch name for an issue the first
// time it starts: issue/<n>-<slugified-title>.
func DeriveBranchName(id int64, title string) string {
	return "issue/" + strconv.FormatInt(id, 10) + "-" + slugify(title)
}

// slugify lowercases title and replaces every run of non-alphanumeric
// characters with a single hyphen, trimming leading/trailing hyphens.
func slugify(title string) string {
	var b strings.Builder
	prevHyphen := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen && b.Len() > 0 {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Comment is a single note attached to an Issue.
type Comment struct {
	ID        string
	IssueID   int64
	Author    string
	Body      string
	CreatedAt time.Time
}

// Label is a project-scoped tag assignable to issues.
type Label struct {
	ID        string
	ProjectID string
	Name      string
	Color     string
	BuiltIn   bool
}

// DocumentKind distinguishes the two carrier-document kinds agents consume
// as guidance, plus the broader set of sources a document's provenance can
// carry for change-invalidation purposes (spec §4.10).
type DocumentKind string

const (
	DocumentContextPack DocumentKind = "context-pack"
	DocumentSpec        DocumentKind = "spec"
)

// Document is a single versioned guidance artifact (a Context Pack or a
// Spec) produced during an issue's pipeline run.
type Document struct {
	ID        string
	IssueID   int64
	Kind      DocumentKind
	Content   string
	Lines     []string
	Source    DocumentSource
	// Metadata carries provenance details a source system attaches beyond
	// raw content (an external tracker's status/etag, a web page's
	// last-modified header) — consulted by fingerprint computation when a
	// source kind identifies change by a specific field rather than full
	// content (pkg/docinvalidate).
	Metadata  map[string]interface{}
	Fingerprint string
	CreatedAt time.Time
}
