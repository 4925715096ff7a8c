package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/coverage-guarantee/internal/coverage"
)

func newReliabilityCmd(opts *globalOptions) *cobra.Command {
	var historyPath string
	cmd := &cobra.Command{
		Use:   "reliability",
		Short: "Score the reliability of the catalog pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var extra []coverage.Option
			if historyPath != "" {
				records, err := loadHistory(historyPath)
				if err != nil {
					return err
				}
				extra = append(extra, coverage.WithHistoryProvider(coverage.StaticHistory(records)))
			}

			s, err := opts.open(ctx, cmd.ErrOrStderr(), extra...)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			report, err := s.engine.CalculateCoverageReliability(ctx, s.pool(), nil)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&historyPath, "history", "", "JSON list of observed availability records")
	return cmd
}

func loadHistory(path string) ([]coverage.HistoricalRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var records []coverage.HistoricalRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", path, err)
	}
	return records, nil
}
