package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/showinghive/internal/client"
	"github.com/evcraddock/showinghive/internal/showing"
)

func newShowingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "showing",
		Aliases: []string{"showings"},
		Short:   "Request and manage showings",
	}
	cmd.AddCommand(
		newShowingRequestCmd(),
		newShowingListCmd(),
		newShowingShowCmd(),
		newShowingTransitionCmd("approve", "Approve a pending showing and issue its lockbox code", (*client.Client).Approve),
		newShowingTransitionCmd("decline", "Decline a pending showing", (*client.Client).Decline),
		newShowingRescheduleCmd(),
		newShowingCodeCmd(),
	)
	return cmd
}

func newShowingRequestCmd() *cobra.Command {
	var in showing.RequestInput

	cmd := &cobra.Command{
		Use:   "request <property-id>",
		Short: "Request a one-hour showing",
		Long:  "Request a showing. It is rejected if the hour is blocked or overlaps another showing of the property.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.PropertyID = args[0]
			sh, err := newAPIClient().RequestShowing(in)
			if err != nil {
				return fmt.Errorf("requesting showing: %w", err)
			}
			out := cmd.OutOrStdout()
			if isJSON() {
				return printJSON(out, sh)
			}
			fmt.Fprintln(out, "Showing requested. The seller has been asked to approve it.")
			printShowing(out, sh)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.ScheduledAt, "at", "", "start time (required)")
	cmd.Flags().StringVar(&in.ClientName, "client", "", "buyer's name (required)")
	cmd.Flags().StringVar(&in.ClientPhone, "phone", "", "buyer's phone for SMS updates")
	cmd.Flags().StringVar(&in.ClientEmail, "email", "", "buyer's email for updates")
	_ = cmd.MarkFlagRequired("at")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func newShowingListCmd() *cobra.Command {
	var f client.ShowingFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List showings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := newAPIClient().ListShowings(f)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), list)
			}
			return printShowingTable(cmd.OutOrStdout(), list)
		},
	}

	cmd.Flags().StringVar(&f.PropertyID, "property", "", "only showings of this property")
	cmd.Flags().StringVar(&f.Status, "status", "", "pending, approved or declined")
	return cmd
}

func newShowingShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a showing with its feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := newAPIClient().GetShowing(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if isJSON() {
				return printJSON(out, sh)
			}
			printShowing(out, sh.Showing)
			fmt.Fprintln(out)
			printFeedbackList(out, sh.Feedback)
			return nil
		},
	}
}

func newShowingTransitionCmd(name, short string, fn func(*client.Client, string) (*showing.Showing, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := fn(newAPIClient(), args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), sh)
			}
			printShowing(cmd.OutOrStdout(), sh)
			return nil
		},
	}
}

func newShowingRescheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule <id> <new-start>",
		Short: "Move a pending or approved showing",
		Long:  "Move a showing to a new hour. An approved showing gets a new lockbox code.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := newAPIClient().Reschedule(args[0], args[1])
			if err != nil {
				return fmt.Errorf("reschedule: %w", err)
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), sh)
			}
			printShowing(cmd.OutOrStdout(), sh)
			return nil
		},
	}
}

func newShowingCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "code <id>",
		Short: "Print the lockbox code of an approved showing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := newAPIClient().Code(args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), code)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (valid until %s)\n", code.LockboxCode, formatTime(code.ExpiresAt))
			return nil
		},
	}
}
