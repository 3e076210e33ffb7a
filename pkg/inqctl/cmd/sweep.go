package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/telekom/inquiry-pipeline/pkg/inqctl/output"
	"github.com/telekom/inquiry-pipeline/pkg/pipeline"
)

func NewSweepCommand() *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Retry pending failed deliveries once",
		Long: "Replays every pending failed delivery, up to the configured batch size. " +
			"Deliveries that reach the retry limit are marked failed and reported to the admin address.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPipeline(cmd, func(ctx context.Context, rt *runtimeState, p *pipeline.Pipeline) error {
				res, err := p.Service.ProcessFailedDeliveries(ctx)
				if err != nil {
					return err
				}
				if purge {
					if _, err := p.Purge(ctx); err != nil {
						return err
					}
				}
				if rt.OutputFormat() == output.FormatTable {
					output.WriteSweepResult(rt.Writer(), res)
					return nil
				}
				return output.WriteObject(rt.Writer(), rt.OutputFormat(), res)
			})
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "Apply the retention policy after the sweep")

	return cmd
}
