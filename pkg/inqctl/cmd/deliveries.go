package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/inquiry-pipeline/pkg/delivery"
	"github.com/telekom/inquiry-pipeline/pkg/inqctl/output"
	"github.com/telekom/inquiry-pipeline/pkg/pipeline"
)

func NewDeliveriesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deliveries",
		Aliases: []string{"delivery"},
		Short:   "Inspect the failed-delivery queue",
	}
	cmd.AddCommand(newDeliveriesListCommand())
	return cmd
}

func newDeliveriesListCommand() *cobra.Command {
	var (
		status string
		limit  int
		reveal bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List failed deliveries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := delivery.ParseStatus(status)
			if err != nil {
				return err
			}
			if limit < 0 {
				return fmt.Errorf("limit must not be negative")
			}
			return withPipeline(cmd, func(ctx context.Context, rt *runtimeState, p *pipeline.Pipeline) error {
				records, err := p.Deliveries.List(ctx, st, limit)
				if err != nil {
					return err
				}
				if !reveal {
					for i := range records {
						records[i].Payload = records[i].Payload.Masked()
					}
				}
				if rt.OutputFormat() == output.FormatTable {
					output.WriteDeliveryTable(rt.Writer(), records)
					return nil
				}
				if records == nil {
					records = []delivery.Record{}
				}
				return output.WriteObject(rt.Writer(), rt.OutputFormat(), records)
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status: pending, sent, failed")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of records, 0 for all")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show personal form values in json/yaml output")

	return cmd
}
