package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/inquiry-pipeline/pkg/pipeline"
)

func NewSMTPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smtp",
		Short: "Mail server commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Check that the mail server accepts a connection and the credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPipeline(cmd, func(ctx context.Context, rt *runtimeState, p *pipeline.Pipeline) error {
				addr := fmt.Sprintf("%s:%d", p.Transport.GetHost(), p.Transport.GetPort())
				if err := p.Transport.Verify(ctx); err != nil {
					return fmt.Errorf("smtp server %s: %w", addr, err)
				}
				_, _ = fmt.Fprintf(rt.Writer(), "SMTP server %s is reachable\n", addr)
				return nil
			})
		},
	})
	return cmd
}
