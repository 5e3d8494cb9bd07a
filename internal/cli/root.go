// Package cli is the socialia command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"socialia/internal/platform"
)

// App carries the global flags and the injection points used by tests.
type App struct {
	configPath string
	storePath  string
	jsonOut    bool
	logLevel   string

	getenv  func(string) string
	now     func() time.Time
	clients []platform.Client
}

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	return newRoot(&App{})
}

func newRoot(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "socialia",
		Short: "Schedule social media posts from org-mode drafts",
		Long: `socialia schedules posts to Twitter/X, LinkedIn, Reddit, Slack and Telegram.

Drafts live in org-mode files; the scheduler keeps a job store and a daemon
posts jobs when they are due.

Examples:
  socialia org init drafts/week.org        # Create a draft file template
  socialia org sync drafts/week.org        # Schedule new drafts, cancel removed ones
  socialia schedule list                   # Show pending jobs
  socialia schedule daemon --interval 30s  # Post due jobs every 30 seconds`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ~/.socialia/config.yaml)")
	pf.StringVar(&a.storePath, "store", "", "job store path (overrides store.path)")
	pf.BoolVar(&a.jsonOut, "json", false, "print machine-readable JSON")
	pf.StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(newScheduleCmd(a), newOrgCmd(a))
	return root
}

// Execute runs the command tree and returns the process exit code. Errors are
// printed to stderr as "Error: <message>", followed by any hint.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, &App{}, args, stdout, stderr)
}

func execute(ctx context.Context, a *App, args []string, stdout, stderr io.Writer) int {
	root := newRoot(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		for _, h := range errors.GetAllHints(err) {
			fmt.Fprintln(stderr, h)
		}
		return 1
	}
	return 0
}

func (a *App) env(key string) string {
	if a.getenv != nil {
		return a.getenv(key)
	}
	return os.Getenv(key)
}

// requireFile turns a missing draft file into a user-facing error.
func requireFile(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return errors.Newf("File not found: %s", path)
	}
	if st.IsDir() {
		return errors.Newf("%s is a directory", path)
	}
	return nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func mkdirParent(p string) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	return nil
}

func errUnknownPlatform(name string) error {
	names := make([]string, 0, len(factories)+1)
	for n := range factories {
		names = append(names, n)
	}
	names = append(names, dryRunPlatform)
	sort.Strings(names)
	return errors.WithHint(errors.Wrapf(platform.ErrUnknownPlatform, "%q", name), "choose one of: "+strings.Join(names, ", "))
}

func itoa(n int) string { return strconv.Itoa(n) }

// signed formats n with an explicit sign.
func signed(n int) string {
	if n >= 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
