// Package injection implements the Injection Formatter (§4.8.5): rendering
// active alerts, promoted patterns, and standing principles into the
// markdown block prepended to every downstream agent prompt.
package injection

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

const titleTruncateLen = 60

// Input bundles everything the formatter needs for one project: alerts
// still pending promotion, patterns already promoted, and the project's
// standing principles.
type Input struct {
	Alerts     []*domain.ProvisionalAlert
	Patterns   []*domain.PatternDefinition
	Principles []*domain.Principle
	Now        time.Time
}

// Render produces the full markdown block. An empty Input renders an empty
// string: a prompt with nothing to inject gets no extra section.
func Render(in Input) string {
	var b strings.Builder

	if len(in.Alerts) > 0 {
		b.WriteString("## Alerts\n\n")
		for _, a := range sortedAlerts(in.Alerts, in.Now) {
			b.WriteString(renderAlert(a, in.Now))
			b.WriteString("\n")
		}
	}

	if len(in.Patterns) > 0 || len(in.Principles) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, item := range sortedWarnings(in.Patterns, in.Principles) {
			b.WriteString(item.render())
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// sortedAlerts orders alerts soonest-to-expire first: an alert about to
// lapse is the highest-priority thing an agent should see.
func sortedAlerts(alerts []*domain.ProvisionalAlert, now time.Time) []*domain.ProvisionalAlert {
	out := append([]*domain.ProvisionalAlert(nil), alerts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	return out
}

func renderAlert(a *domain.ProvisionalAlert, now time.Time) string {
	daysLeft := int(a.ExpiresAt.Sub(now).Hours() / 24)
	return fmt.Sprintf("### %s\n\nExpires in %d day(s).\n", a.Message, daysLeft)
}

// warning is either a PatternDefinition or a Principle, rendered
// polymorphically but sorted together by a single descending priority key.
type warning struct {
	priority float64
	render   func() string
}

func sortedWarnings(patterns []*domain.PatternDefinition, principles []*domain.Principle) []warning {
	items := make([]warning, 0, len(patterns)+len(principles))
	for _, p := range patterns {
		p := p
		items = append(items, warning{priority: p.Confidence, render: func() string { return renderPattern(p) }})
	}
	for _, pr := range principles {
		pr := pr
		items = append(items, warning{priority: float64(pr.Priority), render: func() string { return renderPrinciple(pr) }})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].priority > items[j].priority })
	return items
}

func renderPattern(p *domain.PatternDefinition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### [%s][%s][%s] %s\n\n", p.FindingCategory, p.FailureMode, p.SeverityMax, truncateTitle(p.PatternContent))
	fmt.Fprintf(&b, "Bad guidance: %s\n\n", p.PatternContent)
	if p.Alternative != "" {
		fmt.Fprintf(&b, "Do instead: %s\n\n", p.Alternative)
	}
	if len(p.Touches) > 0 {
		fmt.Fprintf(&b, "Applies when touching: %s\n", touchList(p.Touches))
	}
	return b.String()
}

func renderPrinciple(p *domain.Principle) string {
	tag := "BASELINE"
	if p.Origin == domain.PrincipleDerived {
		tag = "DERIVED"
	}
	return fmt.Sprintf("### [%s] %s\n", tag, p.Content)
}

func truncateTitle(s string) string {
	if len(s) <= titleTruncateLen {
		return s
	}
	return s[:titleTruncateLen] + "…"
}

func touchList(touches []domain.Touch) string {
	parts := make([]string, len(touches))
	for i, t := range touches {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
