package cli

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"socialia/internal/draft"
	"socialia/internal/job"
	"socialia/internal/platform"
	"socialia/internal/runtime/supervisor"
	"socialia/internal/scheduler"
	logx "socialia/pkg/logx"
)

func newScheduleCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled posts",
		Long: `Manage the job store and run the posting daemon.

Examples:
  socialia schedule add twitter "Hello" --at +1h
  socialia schedule add linkedin "Launch" --at "2025-06-12 09:30" --fluctuation 10 --bias late
  socialia schedule list --full
  socialia schedule cancel 3f2a9c1d
  socialia schedule daemon --interval "cron:*/5 * * * *"`,
	}
	cmd.AddCommand(
		newScheduleAddCmd(a),
		newScheduleListCmd(a),
		newScheduleCancelCmd(a),
		newScheduleRunCmd(a),
		newScheduleDaemonCmd(a),
		newScheduleUpdateSourceCmd(a),
	)
	return cmd
}

func newScheduleAddCmd(a *App) *cobra.Command {
	var (
		at   string
		opts []string
		jf   jitterFlags
	)
	cmd := &cobra.Command{
		Use:   "add <platform> <text>",
		Short: "Schedule a post",
		Long: `Schedule text for a platform. --at accepts "+30m", "+2h",
"HH:MM" (next occurrence) or "YYYY-MM-DD HH:MM".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kwargs, err := parseOptions(opts)
			if err != nil {
				return err
			}
			e, err := a.open()
			if err != nil {
				return err
			}
			defer e.Close()

			fluct, bias, err := jf.resolve(cmd, e)
			if err != nil {
				return err
			}
			res, err := e.engine.SchedulePost(cmd.Context(), args[0], args[1], at, fluct, bias, kwargs)
			if err != nil {
				return err
			}
			o := a.out(cmd)
			if o.json {
				return o.JSON(res)
			}
			o.Success("Scheduled job %s for %s", res.JobID, formatTime(res.ScheduledFor))
			if res.OriginalTime != nil && res.FluctuationMinutes != nil {
				o.Printf("  original time %s (%+dmin)", formatTime(*res.OriginalTime), *res.FluctuationMinutes)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "when to post (required)")
	jf.register(cmd)
	cmd.Flags().StringArrayVarP(&opts, "opt", "o", nil, "platform option key=value (repeatable)")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func parseOptions(kv []string) (platform.Options, error) {
	if len(kv) == 0 {
		return nil, nil
	}
	out := platform.Options{}
	for _, s := range kv {
		k, v, ok := strings.Cut(s, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.WithHint(errors.Newf("invalid option %q", s), "use --opt key=value")
		}
		out[k] = v
	}
	return out, nil
}

func newScheduleListCmd(a *App) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending jobs (--full for every job)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer e.Close()

			jobs, err := e.engine.List(cmd.Context(), full)
			if err != nil {
				return err
			}
			path := e.cfg.StoreConfig(a.storePath).Path
			o := a.out(cmd)
			if o.json {
				if jobs == nil {
					jobs = []job.Job{}
				}
				return o.JSON(map[string]any{"file": path, "jobs": jobs})
			}
			if len(jobs) == 0 {
				if full {
					o.Printf("No jobs (%s)", path)
				} else {
					o.Printf("No scheduled posts (%s)", path)
				}
				return nil
			}
			title := "Scheduled posts"
			if full {
				title = "All jobs"
			}
			o.Header(title + " - " + path)
			rows := make([][]string, 0, len(jobs))
			for _, j := range jobs {
				what := j.Headline
				if what == "" {
					what = truncate(strings.ReplaceAll(j.Text, "\n", " "), 60)
				}
				row := []string{j.ID, string(j.Status), j.Platform, formatTime(j.ScheduledFor), what}
				if full {
					row = append(row, detail(j))
				}
				rows = append(rows, row)
			}
			header := []string{"ID", "Status", "Platform", "When", "Post"}
			if full {
				header = append(header, "Detail")
			}
			return o.Table(header, rows)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "include completed, failed and cancelled jobs")
	return cmd
}

func detail(j job.Job) string {
	switch {
	case j.CancelReason != "":
		return "reason: " + j.CancelReason
	case j.Error != "":
		return "error: " + j.Error
	case j.Result != nil && j.Result.URL != "":
		return j.Result.URL
	}
	return ""
}

func newScheduleCancelCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer e.Close()

			j, err := e.engine.Cancel(cmd.Context(), args[0])
			if errors.Is(err, scheduler.ErrNotFound) {
				return errors.Newf("Job not found: %s", args[0])
			}
			if err != nil {
				return err
			}
			o := a.out(cmd)
			if o.json {
				return o.JSON(map[string]any{"success": true, "job": j})
			}
			o.Success("Cancelled job: %s", j.ID)
			return nil
		},
	}
}

func newScheduleRunCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Post every due job once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer e.Close()

			results, err := e.engine.RunDueJobs(cmd.Context())
			if err != nil {
				return err
			}
			o := a.out(cmd)
			if o.json {
				if results == nil {
					results = []scheduler.JobResult{}
				}
				return o.JSON(results)
			}
			if len(results) == 0 {
				o.Printf("No jobs due")
				return nil
			}
			for _, r := range results {
				printJobResult(o, r)
			}
			return nil
		},
	}
}

func printJobResult(o output, r scheduler.JobResult) {
	if r.Success {
		o.Success("Job %s (%s)", r.JobID, r.Platform)
	} else {
		o.Failure("Job %s (%s)", r.JobID, r.Platform)
	}
	if r.URL != "" {
		o.Printf("   URL: %s", r.URL)
	}
	if r.Error != "" {
		o.Printf("   Error: %s", r.Error)
	}
}

func newScheduleDaemonCmd(a *App) *cobra.Command {
	var (
		interval string
		watch    []string
		jf       jitterFlags
	)
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the scheduler until interrupted",
		Long: `Post due jobs now and then on every tick until SIGINT/SIGTERM.

--interval accepts seconds ("60"), a Go duration ("90s"), "HH:MM" as an
interval, or a cron expression ("cron:*/5 * * * *", "@hourly").
Defaults to scheduler.interval, else 60 seconds.

--watch keeps draft files synced while the daemon runs (repeatable).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, p := range watch {
				if err := requireFile(p); err != nil {
					return err
				}
			}
			e, err := a.open()
			if err != nil {
				return err
			}
			defer e.Close()

			tick, err := e.tick(interval)
			if err != nil {
				return err
			}
			fluct, bias, err := jf.resolve(cmd, e)
			if err != nil {
				return err
			}
			o := a.out(cmd)
			if !o.json {
				o.Info("Schedule file: %s", e.cfg.StoreConfig(a.storePath).Path)
				o.Info("Checking every %s (Ctrl+C to stop)", tick)
			}

			sup := supervisor.New(cmd.Context(), supervisor.WithLogger(e.log), supervisor.WithCancelOnError(true))
			sup.Go("daemon", func(ctx context.Context) error {
				return e.engine.RunDaemon(ctx, tick, func(r scheduler.JobResult) {
					if o.json {
						_ = o.JSON(r)
						return
					}
					printJobResult(o, r)
				})
			})
			for _, p := range watch {
				m, err := e.manager(p)
				if err != nil {
					sup.Cancel()
					_ = sup.Wait()
					return err
				}
				sup.Go("watch:"+m.Path(), func(ctx context.Context) error {
					return m.Watch(ctx, fluct, bias, func(res draft.SyncResult, err error) {
						if err == nil && (len(res.Added) > 0 || len(res.Cancelled) > 0) {
							e.log.Info("draft file synced", logx.String("file", res.File), logx.Strings("added", res.Added), logx.Strings("cancelled", res.Cancelled))
						}
					})
				})
				if !o.json {
					o.Info("Watching %s", m.Path())
				}
			}
			return sup.Wait()
		},
	}
	cmd.Flags().StringVar(&interval, "interval", "", "tick interval or cron expression")
	cmd.Flags().StringArrayVarP(&watch, "watch", "w", nil, "draft file to keep synced (repeatable)")
	jf.register(cmd)
	return cmd
}

func newScheduleUpdateSourceCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "update-source <old-path> <new-path>",
		Short: "Point jobs at a draft file that was moved by hand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer e.Close()

			oldPath, newPath := absPath(args[0]), absPath(args[1])
			n, err := e.engine.UpdateSourcePath(cmd.Context(), oldPath, newPath)
			if err != nil {
				return err
			}
			o := a.out(cmd)
			if o.json {
				return o.JSON(map[string]any{"updated": n, "old_path": oldPath, "new_path": newPath})
			}
			if n == 0 {
				o.Printf("No jobs found with source: %s", oldPath)
				return nil
			}
			o.Success("Updated %d job(s) to: %s", n, newPath)
			return nil
		},
	}
}
