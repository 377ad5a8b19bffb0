package invoker_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbelfort/falcon-ai-sub003/pkg/invoker"
	"github.com/tbelfort/falcon-ai-sub003/pkg/outputbus"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
)

type fakeProcess struct {
	err   error
	delay time.Duration
}

func (p *fakeProcess) Wait() error {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.err
}

type fakeSpawner struct {
	stdout  string
	waitErr error
	spawnErr error
}

func (s *fakeSpawner) Spawn(_ context.Context, _ invoker.Request) (io.ReadCloser, invoker.Process, error) {
	if s.spawnErr != nil {
		return nil, nil, s.spawnErr
	}
	return io.NopCloser(strings.NewReader(s.stdout)), &fakeProcess{err: s.waitErr}, nil
}

func TestInvoke_PromptTooLargeRejected(t *testing.T) {
	inv := invoker.New(&fakeSpawner{}, outputbus.New(16))
	oversized := strings.Repeat("a", invoker.PromptSizeCap+1)

	_, err := inv.Invoke(context.Background(), invoker.Request{AgentID: "a1", Prompt: oversized})
	require.Error(t, err)
	assert.True(t, falconerrors.Is(err, falconerrors.KindPromptTooLarge))
}

func TestInvoke_ExactCapAccepted(t *testing.T) {
	inv := invoker.New(&fakeSpawner{stdout: "ok\n"}, outputbus.New(16))
	prompt := strings.Repeat("a", invoker.PromptSizeCap)

	result, err := inv.Invoke(context.Background(), invoker.Request{AgentID: "a1", Prompt: prompt, Mode: invoker.ModeSilent})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestInvoke_SilentModePublishesRawLines(t *testing.T) {
	bus := outputbus.New(16)
	sub := bus.Subscribe("run-1")
	defer sub.Unsubscribe()

	inv := invoker.New(&fakeSpawner{stdout: "line one\nline two\n"}, bus)
	result, err := inv.Invoke(context.Background(), invoker.Request{AgentID: "a1", IssueID: 7, Mode: invoker.ModeSilent, RunID: "run-1"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	var got []string
	deadline := time.After(time.Second)
	for len(got) < 2 {
		select {
		case l := <-sub.C():
			got = append(got, l.Line)
		case <-deadline:
			t.Fatal("timed out waiting for lines")
		}
	}
	assert.Equal(t, []string{"line one", "line two"}, got)
}

func TestInvoke_SilentModeFlushesTrailingLineWithoutNewline(t *testing.T) {
	bus := outputbus.New(16)
	sub := bus.Subscribe("run-1")
	defer sub.Unsubscribe()

	inv := invoker.New(&fakeSpawner{stdout: "line one\nno newline at end"}, bus)
	result, err := inv.Invoke(context.Background(), invoker.Request{AgentID: "a1", Mode: invoker.ModeSilent, RunID: "run-1"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	var got []string
	deadline := time.After(time.Second)
	for len(got) < 2 {
		select {
		case l := <-sub.C():
			got = append(got, l.Line)
		case <-deadline:
			t.Fatal("timed out waiting for lines")
		}
	}
	assert.Equal(t, []string{"line one", "no newline at end"}, got)
}

func TestInvoke_DebugModeExtractsDeltaOverFallback(t *testing.T) {
	bus := outputbus.New(16)
	sub := bus.Subscribe("run-1")
	defer sub.Unsubscribe()

	stdout := `{"delta":{"text":"hello "}}` + "\n" +
		`{"delta":{"text":"world\n"}}` + "\n" +
		`{"result":"should be ignored once a delta is seen"}` + "\n"

	inv := invoker.New(&fakeSpawner{stdout: stdout}, bus)
	result, err := inv.Invoke(context.Background(), invoker.Request{AgentID: "a1", Mode: invoker.ModeDebug, RunID: "run-1"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	select {
	case l := <-sub.C():
		assert.Equal(t, "hello world", l.Line)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for merged delta line")
	}

	select {
	case l := <-sub.C():
		t.Fatalf("unexpected extra line published: %q", l.Line)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInvoke_DebugModeFallsBackToResultWithoutDelta(t *testing.T) {
	bus := outputbus.New(16)
	sub := bus.Subscribe("run-1")
	defer sub.Unsubscribe()

	stdout := `{"result":"final answer"}` + "\n"
	inv := invoker.New(&fakeSpawner{stdout: stdout}, bus)
	_, err := inv.Invoke(context.Background(), invoker.Request{AgentID: "a1", Mode: invoker.ModeDebug, RunID: "run-1"})
	require.NoError(t, err)

	select {
	case l := <-sub.C():
		assert.Equal(t, "final answer", l.Line)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for result fallback line")
	}
}

func TestInvoke_UnparseableLinesDropped(t *testing.T) {
	bus := outputbus.New(16)
	sub := bus.Subscribe("run-1")
	defer sub.Unsubscribe()

	stdout := "not json\n" + `{"delta":{"text":"ok\n"}}` + "\n"
	inv := invoker.New(&fakeSpawner{stdout: stdout}, bus)
	_, err := inv.Invoke(context.Background(), invoker.Request{AgentID: "a1", Mode: invoker.ModeDebug, RunID: "run-1"})
	require.NoError(t, err)

	select {
	case l := <-sub.C():
		assert.Equal(t, "ok", l.Line)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the only valid line")
	}
}

func TestInvoke_ProcessFailureScrubsSecretsFromErrorText(t *testing.T) {
	spawner := &fakeSpawner{
		stdout:  "",
		waitErr: errors.New("auth failed with Bearer abcdefghijklmnop"),
	}
	inv := invoker.New(spawner, outputbus.New(16))
	result, err := inv.Invoke(context.Background(), invoker.Request{AgentID: "a1", Mode: invoker.ModeSilent})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorText, "[REDACTED]")
	assert.NotContains(t, result.ErrorText, "abcdefghijklmnop")
}

func TestInvoke_SpawnErrorPropagates(t *testing.T) {
	inv := invoker.New(&fakeSpawner{spawnErr: errors.New("binary not found")}, outputbus.New(16))
	_, err := inv.Invoke(context.Background(), invoker.Request{AgentID: "a1"})
	require.Error(t, err)
}

func TestInvoke_ConcurrencyBoundedBySemaphore(t *testing.T) {
	bus := outputbus.New(16)
	spawner := &blockingSpawner{release: make(chan struct{})}
	inv := invoker.New(spawner, bus)

	var wg sync.WaitGroup
	for i := 0; i < invoker.MaxConcurrency+2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = inv.Invoke(context.Background(), invoker.Request{AgentID: "a1", Mode: invoker.ModeSilent})
		}()
	}

	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, spawner.activeCount(), invoker.MaxConcurrency)
	close(spawner.release)
	wg.Wait()
}

type blockingSpawner struct {
	mu      sync.Mutex
	active  int
	release chan struct{}
}

func (s *blockingSpawner) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *blockingSpawner) Spawn(_ context.Context, _ invoker.Request) (io.ReadCloser, invoker.Process, error) {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
	return io.NopCloser(strings.NewReader("")), &blockingProcess{s: s, release: s.release}, nil
}

type blockingProcess struct {
	s       *blockingSpawner
	release chan struct{}
}

func (p *blockingProcess) Wait() error {
	<-p.release
	p.s.mu.Lock()
	p.s.active--
	p.s.mu.Unlock()
	return nil
}
