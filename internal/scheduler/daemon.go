package scheduler

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "socialia/pkg/logx"
)

// RunDaemon runs due jobs immediately and then on every tick until ctx is
// cancelled. report, when non-nil, sees every job result. Under systemd the
// loop sends READY, WATCHDOG and STOPPING notifications; elsewhere they are no-ops.
func (e *Engine) RunDaemon(ctx context.Context, tick Tick, report func(JobResult)) error {
	e.log.Info("scheduler daemon started", logx.String("interval", tick.String()), logx.String("source", tick.Source))
	notify(e.log, daemon.SdNotifyReady)

	var watchdog <-chan time.Time
	if d, err := daemon.SdWatchdogEnabled(false); err == nil && d > 0 {
		wt := time.NewTicker(d / 2)
		defer wt.Stop()
		watchdog = wt.C
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			notify(e.log, daemon.SdNotifyStopping)
			e.log.Info("scheduler daemon stopped")
			return nil
		case <-watchdog:
			notify(e.log, daemon.SdNotifyWatchdog)
		case <-timer.C:
			e.runTick(ctx, report)
			now := e.Now()
			timer.Reset(tick.Next(now).Sub(now))
		}
	}
}

func (e *Engine) runTick(ctx context.Context, report func(JobResult)) {
	start := time.Now()
	results, err := e.RunDueJobs(ctx)
	if err != nil && ctx.Err() == nil {
		e.log.Error("run due jobs failed", logx.Err(err))
	}
	for _, r := range results {
		if report != nil {
			report(r)
		}
	}
	if len(results) > 0 {
		e.log.Debug("tick done", logx.Int("jobs", len(results)), logx.Duration("took", time.Since(start)))
	}
}

func notify(log logx.Logger, state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
}
