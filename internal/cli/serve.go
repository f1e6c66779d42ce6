package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// newServeCmd creates the serve command: run the step worker until
// interrupted.
func newServeCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the task step worker",
		Long: `Starts the durable step consumer and processes task step jobs until
interrupted. Multiple serve processes can run against the same stream; the
work queue delivers each job to exactly one of them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := newEngine(ctx, state.cfg, logger)
			if err != nil {
				return err
			}
			defer e.close()

			cc, err := e.queue.Consume(ctx, e.worker.Perform)
			if err != nil {
				return err
			}
			defer cc.Stop()

			logger.Info().
				Int("concurrency", state.cfg.Worker.Concurrency).
				Msg("steward worker running, press ctrl-c to stop")

			<-ctx.Done()
			logger.Info().Msg("shutting down")
			return nil
		},
	}
}
