// Package invoker implements the Agent Invoker (C8): spawning a subprocess
// per stage under a global concurrency bound, a hard wall-clock timeout, and
// a prompt size cap, streaming its output to the Output Bus with credential
// scrubbing applied to every extracted chunk.
package invoker

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/tbelfort/falcon-ai-sub003/pkg/outputbus"
	"github.com/tbelfort/falcon-ai-sub003/pkg/scrub"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
	"github.com/tbelfort/falcon-ai-sub003/pkg/stage"
	"github.com/tbelfort/falcon-ai-sub003/pkg/telemetry"
)

// Mode selects how the invoker interprets subprocess stdout.
type Mode string

const (
	// ModeDebug expects newline-delimited JSON frames and extracts
	// human-readable text from them.
	ModeDebug Mode = "debug"
	// ModeSilent treats stdout as plain text, line-buffered directly.
	ModeSilent Mode = "silent"
)

const (
	// PromptSizeCap is the maximum UTF-8 byte length of a prompt.
	PromptSizeCap = 50 * 1024
	// ProcessTimeout is the hard wall-clock limit on one invocation.
	ProcessTimeout = 5 * time.Minute
	// ForcefulGrace is how long a graceful termination is given before the
	// spawner escalates to a forceful kill.
	ForcefulGrace = 5 * time.Second
	// MaxConcurrency is the global number of simultaneous subprocesses one
	// Invoker allows.
	MaxConcurrency = 5
)

// Request is one stage invocation.
type Request struct {
	AgentID string
	// Model labels the tracing span only; agent selection already happened
	// by the time a Request is built.
	Model       string
	IssueID     int64
	Stage       stage.Stage
	Prompt      string
	ToolBaseURL string
	Mode        Mode
	// RunID, when set, is used instead of generating a new one — the
	// Dispatcher pre-assigns it so a live subscriber can open its "run:<id>"
	// channel before the call, which would otherwise race an
	// invoker-generated id.
	RunID string
}

// Result is what one invocation produced. ErrorText is already scrubbed and
// safe to surface to a caller or store.
type Result struct {
	RunID     string
	Success   bool
	ErrorText string
}

// Process is a spawned subprocess. Wait blocks until it exits, applying
// whatever graceful/forceful termination policy the Spawner configured when
// its context is canceled.
type Process interface {
	Wait() error
}

// Spawner starts the actual subprocess. ExecSpawner is the production
// implementation; tests substitute a fake.
type Spawner interface {
	Spawn(ctx context.Context, req Request) (stdout io.ReadCloser, proc Process, err error)
}

// Invoker bounds concurrency, enforces the prompt cap and timeout, and
// streams output through to the Output Bus.
type Invoker struct {
	sem     *semaphore.Weighted
	spawner Spawner
	bus     *outputbus.Bus
}

// New returns an Invoker backed by spawner, publishing to bus.
func New(spawner Spawner, bus *outputbus.Bus) *Invoker {
	return &Invoker{sem: semaphore.NewWeighted(MaxConcurrency), spawner: spawner, bus: bus}
}

// Invoke runs one stage to completion. It returns a non-nil error only for
// conditions the caller must react to structurally (prompt too large, unable
// to acquire a slot, unable to spawn at all); subprocess failure and timeout
// are reported in Result instead, matching spec §4.5's "(runId, success,
// errorText?)" return shape.
func (inv *Invoker) Invoke(ctx context.Context, req Request) (Result, error) {
	if len(req.Prompt) > PromptSizeCap {
		return Result{}, falconerrors.New(falconerrors.KindPromptTooLarge, "invoke agent", nil).WithResource(req.AgentID)
	}
	if err := inv.sem.Acquire(ctx, 1); err != nil {
		return Result{}, falconerrors.Wrapf(err, "acquire invoker slot for agent %s", req.AgentID)
	}
	defer inv.sem.Release(1)

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx, span := telemetry.StartInvocation(ctx, req.AgentID, req.Model)
	runCtx, cancel := context.WithTimeout(ctx, ProcessTimeout)
	defer cancel()

	stdout, proc, err := inv.spawner.Spawn(runCtx, req)
	if err != nil {
		telemetry.EndWithError(span, err)
		return Result{}, falconerrors.Wrapf(err, "spawn agent process for run %s", runID)
	}

	// stdout must be fully drained before Wait is called (exec.Cmd's
	// documented contract), so the read loop runs to completion first.
	streamErr := inv.streamOutput(runID, req, stdout)
	waitErr := proc.Wait()

	outcome := waitErr
	if outcome == nil {
		outcome = streamErr
	}
	telemetry.EndWithError(span, outcome)

	if waitErr != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return Result{RunID: runID, Success: false, ErrorText: "process exceeded the 5 minute timeout"}, nil
		}
		return Result{RunID: runID, Success: false, ErrorText: scrub.Scrub(waitErr.Error())}, nil
	}
	if streamErr != nil {
		return Result{RunID: runID, Success: false, ErrorText: scrub.Scrub(streamErr.Error())}, nil
	}
	return Result{RunID: runID, Success: true}, nil
}

func (inv *Invoker) streamOutput(runID string, req Request, stdout io.Reader) error {
	raw := &lineBuffer{}
	extracted := &lineBuffer{}
	seenDelta := false

	buf := make([]byte, 4096)
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			for _, frame := range raw.Feed(string(buf[:n])) {
				switch req.Mode {
				case ModeDebug:
					text, isDelta, ok := extractText(frame, seenDelta)
					if !ok {
						continue
					}
					if isDelta {
						seenDelta = true
					}
					for _, line := range extracted.Feed(text + "\n") {
						inv.publishLine(runID, req, line)
					}
				default:
					inv.publishLine(runID, req, frame)
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				if req.Mode != ModeDebug {
					if trailing := raw.Flush(); trailing != "" {
						inv.publishLine(runID, req, trailing)
					}
				}
				if trailing := extracted.Flush(); trailing != "" {
					inv.publishLine(runID, req, trailing)
				}
				return nil
			}
			return readErr
		}
	}
}

func (inv *Invoker) publishLine(runID string, req Request, line string) {
	if inv.bus == nil || line == "" {
		return
	}
	inv.bus.Publish(outputbus.Line{
		RunID:   runID,
		AgentID: req.AgentID,
		IssueID: req.IssueID,
		Line:    scrub.Scrub(line),
		At:      time.Now(),
	})
}

// lineBuffer accumulates text and yields complete lines split on \r?\n,
// holding the trailing partial line until more text arrives or Flush is
// called at stream close (spec §4.5's line-buffer rule).
type lineBuffer struct {
	buf strings.Builder
}

// Feed appends chunk and returns every complete line now available.
func (b *lineBuffer) Feed(chunk string) []string {
	b.buf.WriteString(chunk)
	remainder := b.buf.String()
	var lines []string
	for {
		idx := strings.IndexByte(remainder, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, strings.TrimSuffix(remainder[:idx], "\r"))
		remainder = remainder[idx+1:]
	}
	b.buf.Reset()
	b.buf.WriteString(remainder)
	return lines
}

// Flush returns and clears any trailing partial line.
func (b *lineBuffer) Flush() string {
	remainder := strings.TrimSuffix(b.buf.String(), "\r")
	b.buf.Reset()
	return remainder
}
