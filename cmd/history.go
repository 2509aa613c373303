package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/agentic-research/scaffold/internal/journal"
	"github.com/agentic-research/scaffold/internal/vcs"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var (
		limit       int
		withFiles   bool
		withCommits bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded materialization runs",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, a *app) error {
			return a.history(ctx, c.sessionID, limit, withFiles, withCommits)
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&withFiles, "files", false, "Show per-file outcomes of each run")
	cmd.Flags().BoolVar(&withCommits, "commits", false, "Show the git history of --session-id")
	return cmd
}

func (a *app) history(ctx context.Context, sessionID string, limit int, withFiles, withCommits bool) error {
	if a.journal == nil {
		return errors.New("journal is disabled")
	}
	if withCommits && sessionID == "" {
		return errors.New("--commits needs --session-id")
	}

	var runs []journal.Run
	if _, err := os.Stat(a.journal.Path()); err == nil {
		runs, err = a.journal.Runs(ctx, sessionID, limit)
		if err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(a.out, "No runs recorded.")
	} else {
		tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "RUN\tSESSION\tFINISHED\tSTATUS\tCREATED\tMODIFIED\tUNCHANGED\tDELETED\tWRITTEN\tERRORS")
		for _, r := range runs {
			status := "ok"
			if !r.Success {
				status = "failed"
			}
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%d\n",
				r.ID, r.SessionID, humanize.Time(r.FinishedAt), status,
				r.Created, r.Modified, r.Unchanged, r.Deleted, humanize.Bytes(uint64(r.Bytes)), r.Errors)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if withFiles {
		for _, r := range runs {
			files, err := a.journal.Files(ctx, r.ID)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "\nrun %d (%s):\n", r.ID, r.SessionID)
			for _, f := range files {
				line := fmt.Sprintf("  %-9s %s (%s)", f.Status, f.Path, humanize.Bytes(uint64(f.Size)))
				if f.Backup != "" {
					line += " backup " + f.Backup
				}
				_, _ = fmt.Fprintln(a.out, line)
			}
		}
	}

	if withCommits {
		g := a.git
		if g == nil {
			g = vcs.New()
		}
		commits, err := g.Commits(ctx, filepath.Join(a.cfg.OutputDir, sessionID))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "\ncommits in %s:\n", sessionID)
		for _, cm := range commits {
			when := cm.Date
			if t, err := time.Parse(time.RFC3339, cm.Date); err == nil {
				when = humanize.Time(t)
			}
			subject, _, _ := strings.Cut(cm.Message, "\n")
			_, _ = fmt.Fprintf(a.out, "  %.7s  %s  %s\n", cm.SHA, when, subject)
		}
	}
	return nil
}
