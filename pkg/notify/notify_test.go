package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReasonSuffix_EmptyWhenNoReason(t *testing.T) {
	require.Equal(t, "", reasonSuffix(""))
}

func TestReasonSuffix_WrapsReasonInParens(t *testing.T) {
	require.Equal(t, " (precision below floor)", reasonSuffix("precision below floor"))
}

func TestNotifier_NilReceiverPostIsNoOp(t *testing.T) {
	var n *Notifier
	require.NotPanics(t, func() { n.post(context.Background(), "hello") })
}
