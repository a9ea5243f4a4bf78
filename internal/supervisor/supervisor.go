// Package supervisor runs one worker process per download job with a
// bounded timeout-retry loop. Timeouts retry the job from scratch up to
// the attempt cap; exhausting the cap, or a worker that reports the
// external provider as structurally broken, degrades the owning feature
// exactly once.
package supervisor

import (
	"context"
	"os"
	"time"

	"github.com/denyshon/tg-load/internal/core"
	"github.com/denyshon/tg-load/internal/heartbeat"
	"github.com/denyshon/tg-load/internal/resource"
	"go.uber.org/zap"
)

// Notifier delivers operational notices. Delivery is best effort;
// implementations log and swallow their own failures.
type Notifier interface {
	Broadcast(ctx context.Context, text string)
}

type Config struct {
	// Timeouts holds the per-kind attempt timeout.
	Timeouts map[core.FetchKind]time.Duration
	// DefaultTimeout applies to kinds missing from Timeouts.
	DefaultTimeout time.Duration
	// MaxAttempts is the total attempt cap, first try included.
	MaxAttempts int

	HeartbeatInterval time.Duration
}

type Supervisor struct {
	runner Runner
	flags  *resource.FeatureFlags
	notify Notifier
	cfg    Config
	log    *zap.Logger

	// OnHeartbeat, if set, fires periodically while a worker is alive.
	// The bot uses it to keep the "still working" chat message fresh.
	OnHeartbeat func(ctx context.Context, spec core.JobSpec, attempt int)
}

func NewSupervisor(runner Runner, flags *resource.FeatureFlags, notify Notifier, cfg Config, log *zap.Logger) *Supervisor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 3 * time.Minute
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 5 * time.Second
	}
	return &Supervisor{
		runner: runner,
		flags:  flags,
		notify: notify,
		cfg:    cfg,
		log:    log.Named("supervisor"),
	}
}

func (s *Supervisor) timeoutFor(kind core.FetchKind) time.Duration {
	if t, ok := s.cfg.Timeouts[kind]; ok && t > 0 {
		return t
	}
	return s.cfg.DefaultTimeout
}

// Run drives spec to a terminal outcome and returns it exactly once.
// Every attempt starts from scratch: the working directory is wiped
// between attempts, partial downloads are not reused.
func (s *Supervisor) Run(ctx context.Context, spec core.JobSpec) core.Outcome {
	const op = "supervisor.Run"
	timeout := s.timeoutFor(spec.Kind)

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		out := s.runAttempt(ctx, spec, timeout, attempt)
		out.Attempts = attempt

		if out.State == core.JobStateTimedOutRetry {
			if attempt < s.cfg.MaxAttempts {
				s.log.Warn("attempt timed out, retrying",
					zap.String("id", spec.ID),
					zap.String("kind", string(spec.Kind)),
					zap.Int("attempt", attempt),
				)
				s.resetDir(spec.Dir)
				continue
			}
			out.State = core.JobStateTimedOutFatal
			out.Err = core.NewFetchTimeoutError(spec.ID, attempt, op)
		}

		if out.State == core.JobStateTimedOutFatal ||
			(out.State == core.JobStateFailed && out.ExitCode == core.FatalExternalExitCode) {
			out.Degraded = s.degrade(ctx, spec.Kind)
		}
		out.FinishedAt = time.Now()
		return out
	}

	// unreachable: the loop always returns by the last attempt
	return core.Outcome{State: core.JobStateFailed, FinishedAt: time.Now()}
}

func (s *Supervisor) runAttempt(ctx context.Context, spec core.JobSpec, timeout time.Duration, attempt int) core.Outcome {
	const op = "supervisor.runAttempt"

	proc, err := s.runner.Start(ctx, spec)
	if err != nil {
		return core.Outcome{
			State: core.JobStateFailed,
			Err:   core.NewInternalError("cant start worker", err, op),
		}
	}

	if s.OnHeartbeat != nil {
		go heartbeat.RepeatWhileAlive(ctx, s.cfg.HeartbeatInterval, proc.Alive,
			func(hctx context.Context) {
				s.OnHeartbeat(hctx, spec, attempt)
			})
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-proc.Done():
		return s.classifyExit(spec, proc.ExitCode())

	case <-timer.C:
		s.killAndReap(proc, spec)
		return core.Outcome{State: core.JobStateTimedOutRetry}

	case <-ctx.Done():
		s.killAndReap(proc, spec)
		return core.Outcome{
			State: core.JobStateFailed,
			Err:   ctx.Err(),
		}
	}
}

func (s *Supervisor) classifyExit(spec core.JobSpec, code int) core.Outcome {
	const op = "supervisor.classifyExit"
	switch code {
	case 0:
		return core.Outcome{State: core.JobStateSucceeded}
	case core.FatalExternalExitCode:
		return core.Outcome{
			State:    core.JobStateFailed,
			ExitCode: code,
			Err: core.NewAppErrorBuilder(core.ErrorCodeUnavailable).
				Message("the content provider is currently unusable").
				Err(core.ErrFatalExternal).
				Meta("id", spec.ID).
				SafeToShow(true).
				Oper(op).
				Build(),
		}
	default:
		return core.Outcome{
			State:    core.JobStateFailed,
			ExitCode: code,
			Err: core.NewInternalError("worker failed", nil, op).
				WithMeta("id", spec.ID),
		}
	}
}

// killAndReap runs on every non-clean exit path so no child is left
// behind in the process table.
func (s *Supervisor) killAndReap(proc Process, spec core.JobSpec) {
	if err := proc.Kill(); err != nil {
		s.log.Error("cant kill worker",
			zap.String("id", spec.ID), zap.Error(err))
	}
	<-proc.Done()
}

// degrade turns the feature owning the job kind off, persists that, and
// tells the logging chats. It runs at most once per job: only terminal
// fatal outcomes reach it, and Run returns right after.
func (s *Supervisor) degrade(ctx context.Context, kind core.FetchKind) bool {
	feature := core.FeatureForKind(kind)
	if feature == "" || s.flags == nil {
		return false
	}

	if err := s.flags.Set(feature, false).Wait(ctx); err != nil {
		s.log.Error("cant disable feature",
			zap.String("feature", feature), zap.Error(err))
		return false
	}
	if err := s.flags.Backup().Wait(ctx); err != nil {
		s.log.Error("cant backup flags after degradation",
			zap.String("feature", feature), zap.Error(err))
	}
	if s.notify != nil {
		s.notify.Broadcast(ctx,
			"feature "+feature+" disabled after a fatal download outcome")
	}
	s.log.Warn("feature degraded", zap.String("feature", feature))
	return true
}

// resetDir wipes the job working directory so a retry starts clean.
func (s *Supervisor) resetDir(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		s.log.Error("cant clean job dir", zap.String("dir", dir), zap.Error(err))
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.log.Error("cant recreate job dir", zap.String("dir", dir), zap.Error(err))
	}
}
