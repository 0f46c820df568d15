package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/toolradar/toolradar/internal/config"
	"github.com/toolradar/toolradar/internal/pipeline"
)

// newRunCmd creates the 'run' subcommand, which executes one discovery
// pass and prints the resulting report.
func newRunCmd() *cobra.Command {
	var (
		sources []string
		limit   int
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Executes one discovery run",
		Long: `Collects candidates from the configured sources, enriches and
validates them, persists the survivors and prints a JSON run report.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svcs, err := buildServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer svcs.Close()

			report, err := svcs.runner.Run(ctx, pipeline.Options{
				Sources:        sources,
				LimitPerSource: limit,
				Force:          force,
			})
			if err != nil {
				return fmt.Errorf("run pipeline: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&sources, "sources", nil, "restrict the run to the named sources")
	cmd.Flags().IntVar(&limit, "limit", 0, "override the per-source candidate cap")
	cmd.Flags().BoolVar(&force, "force", false, "bypass the run cooldown guard")

	return cmd
}
