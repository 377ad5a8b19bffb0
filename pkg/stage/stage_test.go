package stage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tbelfort/falcon-ai-sub003/pkg/stage"
)

func TestCanTransition_AllowedGraph(t *testing.T) {
	cases := []struct {
		from, to stage.Stage
		want     bool
	}{
		{stage.Backlog, stage.Todo, true},
		{stage.Todo, stage.ContextPack, true},
		{stage.ContextReview, stage.Spec, true},
		{stage.ContextReview, stage.Implement, true},
		{stage.SpecReview, stage.Implement, true},
		{stage.SpecReview, stage.Spec, true},
		{stage.PRHumanReview, stage.Fixer, true},
		{stage.PRHumanReview, stage.Testing, true},
		{stage.Fixer, stage.PRReview, true},
		{stage.Testing, stage.DocReview, true},
		{stage.Testing, stage.Implement, true},
		{stage.MergeReady, stage.Done, true},
		{stage.Done, stage.Backlog, false},
		{stage.Backlog, stage.Implement, false},
		{stage.Spec, stage.Implement, false},
		{stage.Implement, stage.Spec, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, stage.CanTransition(c.from, c.to), "%s->%s", c.from, c.to)
	}
}

func TestCanTransition_UnknownStageIsFalseNotPanic(t *testing.T) {
	assert.False(t, stage.CanTransition(stage.Stage("NOPE"), stage.Todo))
	assert.False(t, stage.CanTransition(stage.Todo, stage.Stage("NOPE")))
}

func TestCanTransition_Pure(t *testing.T) {
	// Repeated calls with the same arguments return equal results (I2 in spec §8).
	for i := 0; i < 1000; i++ {
		assert.True(t, stage.CanTransition(stage.ContextReview, stage.Spec))
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, stage.Terminal(stage.Done))
	assert.False(t, stage.Terminal(stage.Backlog))
}

func TestAllowedReturnsDefensiveCopy(t *testing.T) {
	a := stage.Allowed(stage.ContextReview)
	a[0] = stage.Stage("MUTATED")
	b := stage.Allowed(stage.ContextReview)
	assert.NotEqual(t, a, b)
	assert.Equal(t, stage.Spec, b[0])
}

func TestValid(t *testing.T) {
	assert.True(t, stage.Backlog.Valid())
	assert.False(t, stage.Stage("unknown").Valid())
}
