package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/coverage-guarantee/core"
	"github.com/signalsfoundry/coverage-guarantee/internal/logging"
	"github.com/signalsfoundry/coverage-guarantee/timectrl"
)

func newEvaluateCmd(opts *globalOptions) *cobra.Command {
	var exportPath string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one continuous-coverage analysis over the configured horizon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := opts.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close(ctx)

			pool := s.pool()
			points := timectrl.TimePoints(s.start, s.cfg.Horizon.Step, s.cfg.Horizon.Duration)
			report, err := s.engine.EnsureContinuousCoverage(ctx, pool, points)
			if err != nil {
				return err
			}

			if exportPath != "" {
				// Served from the cache filled by the analysis.
				plan, err := core.SampleWindows(ctx, s.cache, pool, points)
				if err != nil {
					return fmt.Errorf("sample windows: %w", err)
				}
				if err := writeJSONFile(exportPath, plan); err != nil {
					return fmt.Errorf("write window plan: %w", err)
				}
				s.log.Info(ctx, "window plan written",
					logging.String("path", exportPath),
					logging.Int("satellites", len(plan)),
				)
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&exportPath, "export-windows", "", "also write the sampled visibility windows as a JSON window plan")
	return cmd
}
