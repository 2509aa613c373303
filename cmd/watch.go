package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentic-research/scaffold/internal/watch"
)

func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Materialize the payload, then again every time it changes",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, a *app) error {
			a.log.Info("Watching " + c.inputFile)
			return watch.Run(ctx, c.inputFile, func(ctx context.Context) error {
				res, err := a.materialize(ctx, c.inputFile, c.sessionID)
				if err != nil {
					// Half-saved files are common while editing; wait for the next write.
					a.log.Error("Skipping run", zap.Error(err))
					return nil
				}
				if err := a.report(res); err != nil && !errors.Is(err, errRunFailed) {
					return err
				}
				return nil
			})
		}),
	}
}
