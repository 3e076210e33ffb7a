package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/inquiry-pipeline/pkg/inqctl/output"
	"github.com/telekom/inquiry-pipeline/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show inqctl version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetBuildInfo()

			// Get runtime if available (for custom writer), but don't fail if missing
			rt, _ := getRuntime(cmd)
			writer := cmd.OutOrStdout()
			format := output.FormatTable
			if rt != nil {
				writer = rt.Writer()
				format = rt.OutputFormat()
			}

			if format == output.FormatTable {
				_, _ = fmt.Fprintln(writer, info.Summary("inqctl"))
				return nil
			}
			return output.WriteObject(writer, format, info)
		},
	}
}
