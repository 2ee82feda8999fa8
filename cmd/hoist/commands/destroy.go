package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hoistlab/hoist/pkg/orchestrator"
)

func newDestroyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <name>",
		Short: "Tear down an environment's infrastructure",
		Long: `Tear down an environment's infrastructure from any state.

Destruction is best-effort: every cleanup runs even after a failure,
and the environment is recorded as destroyed as long as the
infrastructure teardown itself succeeded. Destroying an already
destroyed environment is a no-op. The record survives for inspection
until purged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				handler, err := a.handlerFor(ctx, args[0])
				if err != nil {
					return err
				}
				record, runErr := handler.Destroy(ctx, args[0])
				if record.ID != "" {
					if err := printRecord(record); err != nil {
						return err
					}
				}

				var destroyErr *orchestrator.DestroyError
				if errors.As(runErr, &destroyErr) && destroyErr.Destroyed {
					// Teardown succeeded; the leftover failures are
					// reported but do not fail the command.
					if !jsonOutput {
						fmt.Printf("destroyed with %d cleanup failure(s)\n", len(destroyErr.Failures))
					}
					return nil
				}
				return runErr
			})
		},
	}
}

func newPurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <name>",
		Short: "Remove a destroyed environment's record",
		Long: `Remove the persisted record and scratch directory of a destroyed
environment. The name becomes available for reuse. Only destroyed
environments can be purged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				handler, err := a.handlerFor(ctx, args[0])
				if err != nil {
					return err
				}
				record, runErr := handler.Purge(ctx, args[0])
				if runErr != nil {
					return runErr
				}
				return printRecord(record)
			})
		},
	}
}
