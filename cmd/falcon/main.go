// Command falcon runs the project-management orchestrator core: the framed
// transport, the dispatch loop, and the daily maintenance sweep, wired
// against either a Postgres or in-memory repository backend depending on
// the resolved environment. CLI command parsing is out of scope (a
// non-goal); this binary has exactly one mode of operation.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tbelfort/falcon-ai-sub003/internal/config"
	"github.com/tbelfort/falcon-ai-sub003/pkg/broadcast"
	"github.com/tbelfort/falcon-ai-sub003/pkg/dispatcher"
	"github.com/tbelfort/falcon-ai-sub003/pkg/gitsync"
	"github.com/tbelfort/falcon-ai-sub003/pkg/invoker"
	"github.com/tbelfort/falcon-ai-sub003/pkg/issueflow"
	"github.com/tbelfort/falcon-ai-sub003/pkg/killswitch"
	"github.com/tbelfort/falcon-ai-sub003/pkg/maintenance"
	"github.com/tbelfort/falcon-ai-sub003/pkg/metrics"
	"github.com/tbelfort/falcon-ai-sub003/pkg/notify"
	"github.com/tbelfort/falcon-ai-sub003/pkg/outputbus"
	"github.com/tbelfort/falcon-ai-sub003/pkg/policy"
	"github.com/tbelfort/falcon-ai-sub003/pkg/provisioner"
	"github.com/tbelfort/falcon-ai-sub003/pkg/reliability"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository/memory"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository/postgres"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
	"github.com/tbelfort/falcon-ai-sub003/pkg/shared/logging"
	"github.com/tbelfort/falcon-ai-sub003/pkg/stage"
	"github.com/tbelfort/falcon-ai-sub003/pkg/telemetry"
	"github.com/tbelfort/falcon-ai-sub003/pkg/transport"
	"github.com/tbelfort/falcon-ai-sub003/pkg/worktree"
	"github.com/tbelfort/falcon-ai-sub003/pkg/workflow"
)

// Exit codes per spec.md §6: 0 success, 1 usage or precondition failure,
// 2 a transient error that may succeed on retry (a database unreachable at
// startup, for instance).
const (
	exitOK           = 0
	exitUsage        = 1
	exitTransient    = 2
	serveBufSize     = 256
	healthWindowDays = 30
	shutdownGrace    = 15 * time.Second
	maintenanceEvery = 24 * time.Hour
	dispatchEvery    = 30 * time.Second
	listenAddr       = ":8080"
	toolBaseURL      = "http://localhost" + listenAddr
)

// dispatchableStages are the in-progress stages the dispatch loop drives
// automatically; PRHumanReview is, as its name says, a human gate and is
// never auto-dispatched.
var dispatchableStages = []stage.Stage{
	stage.ContextPack, stage.ContextReview, stage.Spec, stage.SpecReview,
	stage.Implement, stage.PRReview, stage.Fixer, stage.Testing, stage.DocReview,
}

// startableStages are the stages the dispatch loop promotes into the
// pipeline via issueflow.Start before they are ever handed to the
// Dispatcher, since BACKLOG/TODO issues are not among dispatchableStages.
var startableStages = []stage.Stage{stage.Backlog, stage.Todo}

func main() {
	os.Exit(run())
}

func run() int {
	log := logging.New()
	defer func() { _ = log.Sync() }()
	telemetry.SetErrorHandler(log)

	env, err := config.ResolveEnv()
	if err != nil {
		log.Errorw("resolve environment", "error", err)
		return exitUsage
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		log.Errorw("resolve working directory", "error", err)
		return exitUsage
	}
	cfgFile, err := config.Load(repoRoot)
	if err != nil {
		log.Errorw("load .falcon/config.yaml", "error", err, "repo_root", repoRoot)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, closeRepos, code := buildRepositories(ctx, env, log)
	if closeRepos == nil {
		return code
	}
	defer closeRepos()

	layout, err := worktree.New(env.FalconHome)
	if err != nil {
		log.Errorw("build worktree layout", "error", err, "falcon_home", env.FalconHome)
		return exitUsage
	}

	var notifier *notify.Notifier
	if env.SlackBotToken != "" {
		notifier = notify.New(env.SlackBotToken, env.SlackChannel, log)
	}

	runner := gitsync.NewExecRunner()
	sync := gitsync.New(runner).WithBreaker(reliability.NewBreaker(reliability.DefaultBreakerConfig("gitsync")))
	prov := provisioner.New(layout, runner, sync)

	bus := outputbus.New(serveBufSize)
	bcast := broadcast.New(serveBufSize)
	spawner := invoker.NewExecSpawner(env.FalconAgentBinary)
	inv := invoker.New(spawner, bus)
	executor := workflow.New(inv)
	dispatch := dispatcher.New(repos, sync, prov, executor)

	ks := killswitch.New(repos.KillSwitch)
	evaluator, err := policy.NewKillSwitchEvaluator(ctx, "")
	if err != nil {
		log.Errorw("compile kill switch policy", "error", err)
		return exitUsage
	}
	ks = ks.WithPolicyEvaluator(evaluator)
	if notifier != nil {
		ks = ks.WithNotifier(notifier)
	}

	registry := metrics.NewRegistry(prometheus.DefaultRegisterer)
	health := metrics.NewHealthProvider(registry, repos, healthWindowDays)
	scheduler := maintenance.New(repos, ks, health)
	if notifier != nil {
		scheduler = scheduler.WithNotifier(notifier)
	}

	transportCfg := transport.DefaultConfig(env.PMAPIToken)
	transportCfg.AllowedOrigins = env.PMAPIAllowedOrigins
	srv := transport.NewServer(bus, bcast, transportCfg, log)

	httpSrv := &http.Server{
		Addr:    listenAddr,
		Handler: srv.Router(),
	}

	go runMaintenanceLoop(ctx, repos, scheduler, log)
	go runDispatchLoop(ctx, repos, dispatch, env.FalconDefaultModel, log)

	errCh := make(chan error, 1)
	go func() {
		log.Infow("starting transport server", "addr", httpSrv.Addr, "workspace", cfgFile.WorkspaceID, "project", cfgFile.ProjectID)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Infow("shutdown signal received")
	case err := <-errCh:
		log.Errorw("transport server failed", "error", err)
		return exitTransient
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown", "error", err)
		return exitTransient
	}
	return exitOK
}

// buildRepositories selects the Postgres adapter when FALCON_POSTGRES_DSN is
// set, applying migrations before returning, and falls back to the
// in-memory store otherwise (SPEC_FULL.md's single-process offline mode).
// The returned close func is nil only when an error already produced an
// exit code, so callers can treat a nil close as "stop, return code".
func buildRepositories(ctx context.Context, env *config.Env, log *zap.SugaredLogger) (*repository.Repositories, func(), int) {
	if env.FalconPostgresDSN == "" {
		store := memory.New()
		repos := store.Repositories()
		return &repos, func() {}, exitOK
	}

	store, err := postgres.Open(env.FalconPostgresDSN)
	if err != nil {
		log.Errorw("open postgres store", "error", err)
		return nil, nil, exitTransient
	}
	if err := store.Migrate(ctx); err != nil {
		log.Errorw("migrate postgres store", "error", err)
		_ = store.Close()
		return nil, nil, exitTransient
	}
	repos := store.Repositories()
	return &repos, func() { _ = store.Close() }, exitOK
}

// runMaintenanceLoop runs the daily decay/expire/salience sweep and the
// kill-switch auto-resume check once at startup and then on a fixed
// interval until ctx is cancelled, logging rather than exiting on error:
// a single project's maintenance failure must not take down the server.
func runMaintenanceLoop(ctx context.Context, repos *repository.Repositories, scheduler *maintenance.Scheduler, log *zap.SugaredLogger) {
	ticker := time.NewTicker(maintenanceEvery)
	defer ticker.Stop()

	sweep := func() {
		projects, err := repos.Projects.List(ctx)
		if err != nil {
			log.Errorw("list projects for maintenance", "error", err)
			return
		}
		for _, p := range projects {
			if err := scheduler.RunDailyForProject(ctx, p.ID); err != nil {
				log.Errorw("daily maintenance sweep", "error", err, "project_id", p.ID)
			}
		}
		if err := scheduler.RunAutoResume(ctx); err != nil {
			log.Errorw("kill switch auto-resume", "error", err)
		}
	}

	sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// runDispatchLoop polls every project's backlog/todo issues, promoting each
// into the pipeline via issueflow.Start, then polls the dispatchable-stage
// issues and hands each one to the Dispatcher. KindAgentBusy (no idle agent
// free yet) is expected steady-state noise, not a failure worth logging at
// error level.
func runDispatchLoop(ctx context.Context, repos *repository.Repositories, dispatch *dispatcher.Dispatcher, model string, log *zap.SugaredLogger) {
	ticker := time.NewTicker(dispatchEvery)
	defer ticker.Stop()

	poll := func() {
		projects, err := repos.Projects.List(ctx)
		if err != nil {
			log.Errorw("list projects for dispatch", "error", err)
			return
		}
		for _, p := range projects {
			for _, s := range startableStages {
				issues, err := repos.Issues.ListByStage(ctx, p.ID, string(s))
				if err != nil {
					log.Errorw("list issues by stage", "error", err, "project_id", p.ID, "stage", s)
					continue
				}
				for _, issue := range issues {
					if err := issueflow.Start(ctx, repos.Issues, issue); err != nil {
						log.Warnw("start issue", "error", err, "project_id", p.ID, "issue_id", issue.ID, "stage", s)
					}
				}
			}
			for _, s := range dispatchableStages {
				issues, err := repos.Issues.ListByStage(ctx, p.ID, string(s))
				if err != nil {
					log.Errorw("list issues by stage", "error", err, "project_id", p.ID, "stage", s)
					continue
				}
				for _, issue := range issues {
					err := dispatch.Dispatch(ctx, p.ID, issue.ID, model, toolBaseURL, invoker.ModeSilent)
					if err == nil || falconerrors.Is(err, falconerrors.KindAgentBusy) {
						continue
					}
					log.Warnw("dispatch issue", "error", err, "project_id", p.ID, "issue_id", issue.ID, "stage", s)
				}
			}
		}
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}
