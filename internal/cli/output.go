package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// output writes either indented JSON or pterm-styled text to the command's stdout.
type output struct {
	w    io.Writer
	json bool
}

func (a *App) out(cmd *cobra.Command) output {
	return output{w: cmd.OutOrStdout(), json: a.jsonOut}
}

func (o output) JSON(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o output) Printf(format string, args ...any) {
	fmt.Fprintf(o.w, format+"\n", args...)
}

func (o output) Success(format string, args ...any) {
	pterm.Success.WithWriter(o.w).Printfln(format, args...)
}

func (o output) Warning(format string, args ...any) {
	pterm.Warning.WithWriter(o.w).Printfln(format, args...)
}

func (o output) Info(format string, args ...any) {
	pterm.Info.WithWriter(o.w).Printfln(format, args...)
}

func (o output) Failure(format string, args ...any) {
	pterm.Error.WithWriter(o.w).Printfln(format, args...)
}

func (o output) Header(text string) {
	fmt.Fprintln(o.w, pterm.Bold.Sprint(text))
	fmt.Fprintln(o.w, pterm.Gray(strings.Repeat("=", 50)))
}

func (o output) Table(header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)
	return pterm.DefaultTable.WithHasHeader().WithWriter(o.w).WithData(data).Render()
}

// truncate shortens s to n runes, appending "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
