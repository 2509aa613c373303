package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/agentic-research/scaffold/internal/backup"
	"github.com/agentic-research/scaffold/internal/config"
	"github.com/agentic-research/scaffold/internal/engine"
	"github.com/agentic-research/scaffold/internal/logging"
	"github.com/agentic-research/scaffold/internal/payload"
)

// errRunFailed is returned when a materialization finished with
// success=false. The failure has already been logged.
var errRunFailed = errors.New("materialization failed")

// cli holds the flag values shared by every command.
type cli struct {
	v *viper.Viper

	inputFile  string
	sessionID  string
	configPath string
	jsonOut    bool
	noColor    bool
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	root := &cobra.Command{
		Use:   "scaffold",
		Short: "Materialize a JSON project structure into a session directory",
		Long: `scaffold reads a project structure (folder tree plus source files) and
writes it under <output-dir>/<sessionId>. Re-running with the same session
updates files in place: unchanged files are skipped and changed files are
backed up under <session>/.backup before being overwritten.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: c.run(func(ctx context.Context, a *app) error {
			res, err := a.materialize(ctx, c.inputFile, c.sessionID)
			if err != nil {
				return err
			}
			return a.report(res)
		}),
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.inputFile, "file", "f", payload.DefaultFile, "Path to the project structure JSON")
	flags.StringVar(&c.sessionID, "session-id", "", "Session id (overrides sessionId in the payload)")
	flags.StringVar(&c.configPath, "config", "", "Config file (default ./scaffold.yaml when present)")
	flags.BoolVar(&c.jsonOut, "json", false, "Print the run result as JSON on stdout")
	flags.BoolVar(&c.noColor, "no-color", false, "Disable colored log levels")

	flags.StringP("output-dir", "o", engine.DefaultOutputRoot, "Directory sessions are created in (env OUTPUT_DIR)")
	flags.Bool("format-go", false, "Format .go files with gofumpt before writing")
	flags.Bool("validate-syntax", true, "Warn about syntax errors in supported languages")
	flags.Bool("strict-syntax", false, "Fail the run on the first syntax error")
	flags.Bool("lint", false, "Warn about suspicious patterns in generated Go code")
	flags.String("backup-policy", string(backup.OnChange), `When to back up existing files: "changed" (only files whose content differs) or "always" (every existing file, which is then rewritten)`)
	flags.Bool("force", false, "Write every file even when its content is unchanged")
	flags.Bool("require-session-id", false, "Reject payloads without a sessionId")
	flags.Bool("git", false, "Commit each session's changes to a git repository in the session directory")
	flags.Bool("git-required", false, "Fail the run when the git step fails")
	flags.Bool("journal", true, "Record runs in the SQLite journal")
	flags.String("journal-path", "", "Journal database (default <output-dir>/.scaffold-journal.db)")
	flags.Bool("snapshot-payload", true, "Keep a copy of the input payload in <session>/.scaffold")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-file", "", "Also write JSON logs to this file (rotated)")

	root.AddCommand(
		newWatchCmd(c),
		newHistoryCmd(c),
		newMCPCmd(c),
		newVersionCmd(),
	)
	return root
}

// run wraps fn with configuration loading, logger setup and teardown.
func (c *cli) run(fn func(ctx context.Context, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := c.open(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a)
	}
}

func (c *cli) open(cmd *cobra.Command) (*app, error) {
	if err := config.LoadDotEnv(config.DotEnvFile); err != nil {
		return nil, err
	}
	if err := config.ReadFile(c.v, c.configPath); err != nil {
		return nil, err
	}
	if err := config.BindFlags(c.v, cmd.Flags()); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.v)
	if err != nil {
		return nil, err
	}

	logger, err := logging.Init(logging.Config{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Output:  cmd.ErrOrStderr(),
		NoColor: c.noColor,
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	if c.inputFile == "" {
		logger.Warn("No input file given, using default", zap.String("file", payload.DefaultFile))
		c.inputFile = payload.DefaultFile
	}
	if cmd.Flags().Changed("output-dir") && c.v.GetString(config.KeyOutputDir) == "" {
		logger.Warn("Empty output directory, using default", zap.String("dir", engine.DefaultOutputRoot))
	}

	return newApp(cfg, logger, cmd.OutOrStdout(), c.jsonOut)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
