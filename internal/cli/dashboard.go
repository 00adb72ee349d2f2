package cli

import (
	"github.com/spf13/cobra"
)

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard <property-id>",
		Short: "Show the seller dashboard for a property",
		Long:  "Show every showing of a property with its feedback, plus the property's blocked times.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newAPIClient().Dashboard(args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), d)
			}
			return printDashboard(cmd.OutOrStdout(), d)
		},
	}
}
