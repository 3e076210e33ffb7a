package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/telekom/inquiry-pipeline/pkg/inqctl/output"
	"github.com/telekom/inquiry-pipeline/pkg/pipeline"
)

func NewPurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete rows that are past their retention",
		Long:  "Removes sent and failed deliveries, expired rate limit counters and old duplicate attempts. Pending deliveries are never removed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPipeline(cmd, func(ctx context.Context, rt *runtimeState, p *pipeline.Pipeline) error {
				stats, err := p.Purge(ctx)
				if err != nil {
					return err
				}
				if rt.OutputFormat() == output.FormatTable {
					output.WritePurgeStats(rt.Writer(), stats)
					return nil
				}
				return output.WriteObject(rt.Writer(), rt.OutputFormat(), stats)
			})
		},
	}
}
