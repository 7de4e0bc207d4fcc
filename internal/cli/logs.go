package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"nohands.dev/go/nohands/internal/logging"
)

var (
	logsLevel  string
	logsSince  time.Duration
	logsLimit  int
	logsJSON   bool
	logsFollow bool
)

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "minimum level (debug, info, warn, error)")
	logsCmd.Flags().DurationVar(&logsSince, "since", 0, "only entries newer than this (e.g. 5m, 1h)")
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 100, "most recent entries to show (0 for all)")
	logsCmd.Flags().BoolVar(&logsJSON, "json", false, "print entries as JSON lines")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "keep showing new entries; interactive on a terminal")
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent logs of the running instance",
	Long: `Show log entries buffered in memory by the running instance.

With --follow on a terminal, logs open in a viewer: arrow keys scroll,
1-5 pick the minimum level, r reloads, G follows the tail, q quits.
When output is piped, --follow prints new entries as they arrive.

Examples:
  nohands logs
  nohands logs --level warn --since 1h
  nohands logs -f
  nohands logs -n 0 --json`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

// fetchLogs runs one logs query against the running instance
type fetchLogs func(ctx context.Context, q logging.Query) ([]logging.Entry, error)

const logsPollInterval = time.Second

func runLogs(cmd *cobra.Command, args []string) error {
	q := logging.Query{Level: logsLevel, Limit: logsLimit}
	if logsSince > 0 {
		q.Since = time.Now().Add(-logsSince)
	}

	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Close()

	fetch := func(ctx context.Context, q logging.Query) ([]logging.Entry, error) {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		var entries []logging.Entry
		err := c.CallResult(ctx, logging.MethodLogs, q, &entries)
		return entries, err
	}

	show := printEntry
	if logsJSON {
		enc := json.NewEncoder(os.Stdout)
		show = func(e logging.Entry) error { return enc.Encode(e) }
	}

	if logsFollow {
		if !logsJSON && isStdoutTerminal() {
			return runLogsViewer(fetch, q)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return followLogs(ctx, fetch, q, logsPollInterval, show)
	}

	entries, err := fetch(cmd.Context(), q)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := show(e); err != nil {
			return err
		}
	}
	return nil
}

func printEntry(e logging.Entry) error {
	_, err := fmt.Println(formatEntry(e))
	return err
}

// isStdoutTerminal reports whether stdout is a terminal rather than a pipe
func isStdoutTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// followLogs prints the initial entries, then polls for newer ones until
// ctx is done
func followLogs(ctx context.Context, fetch fetchLogs, q logging.Query, every time.Duration, show func(logging.Entry) error) error {
	var last time.Time
	emit := func(entries []logging.Entry) error {
		for _, e := range entries {
			if !e.Timestamp.After(last) {
				continue
			}
			if err := show(e); err != nil {
				return err
			}
			last = e.Timestamp
		}
		return nil
	}

	entries, err := fetch(ctx, q)
	if err != nil {
		return err
	}
	if err := emit(entries); err != nil {
		return err
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			next := q
			if !last.IsZero() {
				next.Since = last
				next.Limit = 0
			}
			entries, err := fetch(ctx, next)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if err := emit(entries); err != nil {
				return err
			}
		}
	}
}

func formatEntry(e logging.Entry) string {
	var b strings.Builder
	b.WriteString(dimStyle.Render(e.Timestamp.Local().Format("15:04:05.000")))
	b.WriteString(" ")
	b.WriteString(levelStyle(e.Level).Render(fmt.Sprintf("%-5s", e.Level)))
	b.WriteString(" ")
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(dimStyle.Render(fmt.Sprintf(" %s=%v", k, e.Fields[k])))
	}
	return b.String()
}
