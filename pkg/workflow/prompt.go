// Package workflow implements the Workflow Executor (C10): building the
// per-stage prompt text handed to the Agent Invoker.
package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/stage"
)

// escapeAngleBrackets blocks prompt injection via the issue title/description
// fields by escaping the two characters that open/close the synthetic XML-ish
// tags the default prompt template wraps user content in (spec §4.3).
func escapeAngleBrackets(s string) string {
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// BuildPrompt renders the default per-stage prompt for issue at s, exactly
// per spec §4.3's template:
//
//	Stage: <S>
//	<issue-title>Issue #<n>: <escaped title></issue-title>
//
//	<issue-description>…</issue-description>
func BuildPrompt(s stage.Stage, issue *domain.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stage: %s\n", s)
	fmt.Fprintf(&b, "<issue-title>Issue #%s: %s</issue-title>\n\n",
		strconv.FormatInt(issue.ID, 10), escapeAngleBrackets(issue.Title))
	fmt.Fprintf(&b, "<issue-description>%s</issue-description>", escapeAngleBrackets(issue.Description))
	return b.String()
}
