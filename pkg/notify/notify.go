// Package notify implements the Notifier (C21): best-effort Slack delivery
// of kill-switch transitions, alert promotions, and salience issues. A
// delivery failure is logged and swallowed — this package never returns an
// error that would block the core service calling it.
package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
)

// Notifier posts Falcon lifecycle events to a configured Slack channel.
type Notifier struct {
	client  *slack.Client
	channel string
	log     *zap.SugaredLogger
}

// New returns a Notifier posting to channel via a Slack bot token.
func New(token, channel string, log *zap.SugaredLogger) *Notifier {
	return &Notifier{client: slack.New(token), channel: channel, log: log}
}

// KillSwitchChanged notifies a kill-switch state transition.
func (n *Notifier) KillSwitchChanged(ctx context.Context, status *domain.KillSwitchStatus) {
	n.post(ctx, fmt.Sprintf(":rotating_light: kill switch for project `%s` is now `%s`%s",
		status.ProjectID, status.State, reasonSuffix(status.Reason)))
}

// AlertPromoted notifies that a provisional alert was promoted to a
// durable pattern.
func (n *Notifier) AlertPromoted(ctx context.Context, alert *domain.ProvisionalAlert, pattern *domain.PatternDefinition) {
	n.post(ctx, fmt.Sprintf(":white_check_mark: alert `%s` promoted to pattern `%s` (confidence %.2f)",
		alert.ID, pattern.ID, pattern.Confidence))
}

// SalienceIssueRaised notifies that a pattern's warnings are being
// repeatedly ignored.
func (n *Notifier) SalienceIssueRaised(ctx context.Context, issue *domain.SalienceIssue) {
	n.post(ctx, fmt.Sprintf(":eyes: pattern `%s` warnings ignored %d times in the last window — raised for review",
		issue.PatternID, issue.IgnoredCount))
}

func (n *Notifier) post(ctx context.Context, text string) {
	if n == nil || n.client == nil {
		return
	}
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil && n.log != nil {
		n.log.Warnw("slack notification failed", "error", err)
	}
}

func reasonSuffix(reason string) string {
	if reason == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", reason)
}
