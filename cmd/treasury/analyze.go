package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/treasury/analytics"
	"github.com/xraph/treasury/query"
	"github.com/xraph/treasury/trace"
)

type analyzeOptions struct {
	period     string
	window     int
	top        int
	operations []string
	since      time.Duration
}

// NewAnalyzeCommand prints the analytics report of one owner as JSON.
func NewAnalyzeCommand(opts *RootOptions) *cobra.Command {
	a := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <owner>",
		Short: "Print the analytics report of an owner's traces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period, ok := analytics.ParsePeriod(a.period)
			if !ok {
				return fmt.Errorf("unknown period %q", a.period)
			}

			var f query.Filter
			for _, op := range a.operations {
				f.Operations = append(f.Operations, trace.Operation(op))
			}
			if a.since > 0 {
				f.Since = time.Now().Add(-a.since)
			}

			ctx := cmd.Context()
			eng, err := opts.openEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Store().Close() }()

			report, err := eng.Analyze(ctx, args[0], f, analytics.Options{
				Period:        period,
				WindowSize:    a.window,
				TopRecipients: a.top,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVar(&a.period, "period", string(analytics.PeriodDay), "trend bucket (hour|day|week|month)")
	cmd.Flags().IntVar(&a.window, "window", analytics.DefaultWindowSize, "moving average window")
	cmd.Flags().IntVar(&a.top, "top", analytics.DefaultTopRecipients, "number of top recipients")
	cmd.Flags().StringSliceVar(&a.operations, "operation", nil, "only these operations")
	cmd.Flags().DurationVar(&a.since, "since", 0, "only traces newer than this")

	return cmd
}
