package cli

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"socialia/internal/draft"
	"socialia/internal/jitter"
	"socialia/internal/stage"
	logx "socialia/pkg/logx"
)

func newOrgCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage drafts in org-mode files",
		Long: `Parse, schedule and post drafts kept in an org-mode file.

The file is the source of truth: "org sync" adds jobs for new scheduled
drafts and cancels jobs whose draft was removed, finished or unscheduled.

Examples:
  socialia org status drafts/week.org
  socialia org post drafts/week.org --dry-run
  socialia org schedule drafts/week.org --fluctuation 15 --bias late
  socialia org watch drafts/week.org`,
	}
	cmd.AddCommand(
		newOrgStatusCmd(a),
		newOrgListCmd(a),
		newOrgPostCmd(a),
		newOrgScheduleCmd(a),
		newOrgInitCmd(a),
		newOrgSyncCmd(a),
		newOrgWatchCmd(a),
	)
	return cmd
}

// withManager opens the environment and a draft manager for an existing file.
func (a *App) withManager(path string, fn func(*env, *draft.Manager) error) error {
	if err := requireFile(path); err != nil {
		return err
	}
	e, err := a.open()
	if err != nil {
		return err
	}
	defer e.Close()
	m, err := e.manager(path)
	if err != nil {
		return err
	}
	return fn(e, m)
}

var statusIcon = map[draft.Status]string{
	draft.StatusTodo:      "[ ]",
	draft.StatusDone:      "[x]",
	draft.StatusCancelled: "[-]",
}

func newOrgStatusCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <file>",
		Short: "Summarize drafts by state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(args[0], func(_ *env, m *draft.Manager) error {
				r, err := m.StatusReport()
				if err != nil {
					return err
				}
				o := a.out(cmd)
				if o.json {
					return o.JSON(r)
				}
				o.Header(r.File)
				o.Printf("Total drafts: %d", r.Total)
				o.Printf("  Pending:    %d", r.Pending)
				o.Printf("  Done:       %d", r.Done)
				o.Printf("  Due now:    %d", r.DueNow)
				o.Printf("  Scheduled:  %d", r.Scheduled)
				if len(r.Drafts) == 0 {
					return nil
				}
				o.Printf("")
				o.Printf("Drafts:")
				for _, d := range r.Drafts {
					line := statusIcon[d.Status] + " [" + d.Platform + "] " + d.Headline
					if d.Scheduled != nil {
						line += " @ " + formatTime(*d.Scheduled)
					}
					if d.IsDue {
						line += " DUE"
					}
					o.Printf("  %s", line)
					o.Printf("      %d chars", d.CharCount)
				}
				return nil
			})
		},
	}
}

type draftView struct {
	Headline  string     `json:"headline"`
	Status    string     `json:"status"`
	Platform  string     `json:"platform"`
	DraftID   string     `json:"draft_id,omitempty"`
	Scheduled *time.Time `json:"scheduled"`
	Content   string     `json:"content"`
	IsDue     bool       `json:"is_due"`
}

func newOrgListCmd(a *App) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list <file>",
		Short: "List drafts with their content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter draft.Status
			if status != "" {
				st, err := draft.ParseStatus(status)
				if err != nil {
					return err
				}
				filter = st
			}
			return a.withManager(args[0], func(e *env, m *draft.Manager) error {
				drafts, err := m.List(filter)
				if err != nil {
					return err
				}
				now := e.engine.Now()
				o := a.out(cmd)
				if o.json {
					views := make([]draftView, 0, len(drafts))
					for _, d := range drafts {
						views = append(views, draftView{
							Headline:  d.Headline,
							Status:    string(d.Status),
							Platform:  d.Platform,
							DraftID:   d.DraftID,
							Scheduled: d.Scheduled,
							Content:   d.Content,
							IsDue:     d.IsDue(now),
						})
					}
					return o.JSON(views)
				}
				for _, d := range drafts {
					sched := "unscheduled"
					if d.Scheduled != nil {
						sched = formatTime(*d.Scheduled)
					}
					o.Printf("%s [%s] %s", statusIcon[d.Status], d.Platform, d.Headline)
					o.Printf("   Scheduled: %s", sched)
					o.Printf("   Content (%d chars):", len([]rune(d.Content)))
					o.Printf("   %s", truncate(strings.ReplaceAll(d.Content, "\n", " "), 100))
					o.Printf("")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only TODO, DONE or CANCELLED drafts")
	return cmd
}

func newOrgPostCmd(a *App) *cobra.Command {
	var all, due, dryRun bool
	cmd := &cobra.Command{
		Use:   "post <file>",
		Short: "Post due drafts now (--all for every pending draft)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(args[0], func(_ *env, m *draft.Manager) error {
				post := m.PostDue
				if all && !due {
					post = m.PostPending
				}
				results, err := post(cmd.Context(), dryRun)
				if err != nil {
					return err
				}
				o := a.out(cmd)
				if o.json {
					if results == nil {
						results = []draft.PostResult{}
					}
					return o.JSON(map[string]any{"success": true, "results": results})
				}
				if len(results) == 0 {
					o.Printf("No drafts due for posting.")
					return nil
				}
				prefix := ""
				if dryRun {
					prefix = "[DRY RUN] "
				}
				for _, r := range results {
					if r.Success {
						o.Success("%s%s (%s)", prefix, r.Headline, r.Platform)
					} else {
						o.Failure("%s%s (%s)", prefix, r.Headline, r.Platform)
					}
					if r.Content != "" {
						o.Printf("   %s", r.Content)
					}
					if r.URL != "" {
						o.Printf("   URL: %s", r.URL)
					}
					if r.Error != "" {
						o.Printf("   Error: %s", r.Error)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "post every pending draft regardless of schedule")
	cmd.Flags().BoolVar(&due, "due", false, "post only due drafts (default)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "preview without posting")
	return cmd
}

// jitterFlags are shared by org schedule, sync and watch.
type jitterFlags struct {
	fluctuation int
	bias        string
}

func (f *jitterFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.fluctuation, "fluctuation", "f", 0, "random offset of up to ±N minutes for new jobs")
	cmd.Flags().StringVar(&f.bias, "bias", "", "fluctuation direction: early, late or none")
}

// resolve applies scheduler.fluctuation and scheduler.bias for flags left unset.
func (f *jitterFlags) resolve(cmd *cobra.Command, e *env) (int, jitter.Bias, error) {
	fluct := e.fluctuation(f.fluctuation, cmd.Flags().Changed("fluctuation"))
	if !cmd.Flags().Changed("bias") {
		return fluct, e.cfg.Bias(), nil
	}
	b, err := jitter.ParseBias(f.bias)
	return fluct, b, err
}

func newOrgScheduleCmd(a *App) *cobra.Command {
	var (
		dryRun, noMove bool
		jf             jitterFlags
	)
	cmd := &cobra.Command{
		Use:   "schedule <file>",
		Short: "Schedule every future draft and move the file to scheduled/",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(args[0], func(e *env, m *draft.Manager) error {
				fluct, bias, err := jf.resolve(cmd, e)
				if err != nil {
					return err
				}
				res, err := m.ScheduleAll(cmd.Context(), draft.ScheduleOptions{
					DryRun:      dryRun,
					Fluctuation: fluct,
					Bias:        bias,
					AutoMove:    !noMove,
				})
				if err != nil {
					return err
				}
				o := a.out(cmd)
				if o.json {
					if res.Items == nil {
						res.Items = []draft.ScheduleItem{}
					}
					return o.JSON(res)
				}
				if len(res.Items) == 0 {
					o.Printf("No drafts with future scheduled times.")
					return nil
				}
				prefix, info := "", ""
				if dryRun {
					prefix = "[DRY RUN] "
				}
				if fluct > 0 {
					info = " (±" + itoa(fluct) + "min fluctuation)"
				}
				o.Printf("%sScheduled %d draft(s)%s:", prefix, len(res.Items), info)
				for _, it := range res.Items {
					when := formatTime(it.ScheduledFor)
					if it.OriginalTime != nil && it.FluctuationMinutes != nil && !it.OriginalTime.Equal(it.ScheduledFor) {
						when = formatTime(*it.OriginalTime) + " -> " + when + " (" + signed(*it.FluctuationMinutes) + "min)"
					}
					if it.Success {
						o.Success("%s -> %s", it.Headline, when)
					} else {
						o.Failure("%s -> %s", it.Headline, when)
					}
					if it.JobID != "" {
						o.Printf("     Job ID: %s", it.JobID)
					}
					if it.Error != "" {
						o.Printf("     Error: %s", it.Error)
					}
				}
				if dryRun {
					return nil
				}
				if res.MovedTo != "" {
					o.Info("Moved to: %s", res.MovedTo)
				}
				o.Printf("")
				o.Printf("Run 'socialia schedule daemon' to start the scheduler.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "preview without scheduling")
	cmd.Flags().BoolVar(&noMove, "no-move", false, "keep the file in drafts/ after scheduling")
	jf.register(cmd)
	return cmd
}

func newOrgInitCmd(a *App) *cobra.Command {
	var (
		platformName string
		force        bool
		project      string
	)
	cmd := &cobra.Command{
		Use:   "init <file>",
		Short: "Create a draft file template",
		Long: `Create a draft file with two example drafts.

With --project <dir>, drafts/, scheduled/ and posted/ are created under dir
and the file is written into drafts/.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, ok := factories[strings.ToLower(platformName)]; !ok && platformName != dryRunPlatform {
				return errUnknownPlatform(platformName)
			}
			if project != "" {
				dirs, err := stage.EnsureProjectDirs(project)
				if err != nil {
					return err
				}
				path = filepath.Join(dirs[stage.Drafts], filepath.Base(path))
			} else if err := mkdirParent(path); err != nil {
				return err
			}
			now := time.Now()
			if a.now != nil {
				now = a.now()
			}
			if err := draft.Init(path, platformName, force, now); err != nil {
				return err
			}
			o := a.out(cmd)
			if o.json {
				return o.JSON(map[string]any{"success": true, "file": path})
			}
			o.Success("Created: %s", path)
			o.Printf("Platform: %s", platformName)
			o.Printf("")
			o.Printf("Edit the file and run:")
			o.Printf("  socialia org status %s", path)
			o.Printf("  socialia org schedule %s", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&platformName, "platform", "p", draft.DefaultPlatform, "platform for the example drafts")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.Flags().StringVar(&project, "project", "", "create the stage directories under this dir and write the file into drafts/")
	return cmd
}

func newOrgSyncCmd(a *App) *cobra.Command {
	var (
		dryRun bool
		jf     jitterFlags
	)
	cmd := &cobra.Command{
		Use:   "sync <file>",
		Short: "Make the scheduler match the file (adds new, cancels removed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(args[0], func(e *env, m *draft.Manager) error {
				o := a.out(cmd)
				if dryRun {
					p, err := m.Plan(cmd.Context())
					if err != nil {
						return err
					}
					if o.json {
						return o.JSON(p)
					}
					printSync(o, "[DRY RUN] Sync preview for: "+p.File, "Would ADD", "Would CANCEL", p.WouldAdd, p.WouldCancel, p.Unchanged, nil)
					return nil
				}
				fluct, bias, err := jf.resolve(cmd, e)
				if err != nil {
					return err
				}
				res, err := m.Sync(cmd.Context(), fluct, bias)
				if err != nil {
					return err
				}
				if o.json {
					return o.JSON(res)
				}
				printSync(o, "Synced: "+res.File, "Added", "Cancelled", res.Added, res.Cancelled, res.Unchanged, res.Errors)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "preview without syncing")
	jf.register(cmd)
	return cmd
}

func printSync(o output, title, addVerb, cancelVerb string, added, cancelled, unchanged, errs []string) {
	o.Header(title)
	if len(added) > 0 {
		o.Printf("%s %d job(s):", addVerb, len(added))
		for _, h := range added {
			o.Printf("  + %s", h)
		}
	}
	if len(cancelled) > 0 {
		o.Printf("%s %d job(s):", cancelVerb, len(cancelled))
		for _, id := range cancelled {
			o.Printf("  - %s", id)
		}
	}
	if len(unchanged) > 0 {
		o.Printf("Unchanged: %d job(s)", len(unchanged))
	}
	for _, e := range errs {
		o.Warning("%s", e)
	}
	if len(added) == 0 && len(cancelled) == 0 {
		o.Printf("Already in sync.")
	}
}

func newOrgWatchCmd(a *App) *cobra.Command {
	var jf jitterFlags
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Sync the file every time it is saved, until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withManager(args[0], func(e *env, m *draft.Manager) error {
				fluct, bias, err := jf.resolve(cmd, e)
				if err != nil {
					return err
				}
				o := a.out(cmd)
				report := func(res draft.SyncResult, err error) {
					if err != nil {
						e.log.Warn("sync failed", logx.Err(err))
						return
					}
					if o.json {
						_ = o.JSON(res)
						return
					}
					if len(res.Added) > 0 || len(res.Cancelled) > 0 || len(res.Errors) > 0 {
						printSync(o, "Synced: "+res.File, "Added", "Cancelled", res.Added, res.Cancelled, res.Unchanged, res.Errors)
					}
				}
				// Bring the store in line before waiting for edits.
				report(m.Sync(cmd.Context(), fluct, bias))
				if !o.json {
					o.Info("Watching %s (Ctrl+C to stop)", m.Path())
				}
				return m.Watch(cmd.Context(), fluct, bias, report)
			})
		},
	}
	jf.register(cmd)
	return cmd
}
