package cli

import (
	"fmt"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
)

func newTourCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tour",
		Aliases: []string{"tours"},
		Short:   "Build buyer tours from approved showings",
	}
	cmd.AddCommand(newTourCreateCmd(), newTourListCmd(), newTourShowCmd(), newTourICSCmd())
	return cmd
}

func newTourCreateCmd() *cobra.Command {
	var buyer string

	cmd := &cobra.Command{
		Use:   "create <showing-id>...",
		Short: "Create a tour ordered by start time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := newAPIClient().CreateTour(buyer, args)
			if err != nil {
				return fmt.Errorf("creating tour: %w", err)
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), t)
			}
			printTour(cmd.OutOrStdout(), t)
			return nil
		},
	}

	cmd.Flags().StringVar(&buyer, "buyer", "", "buyer's name")
	return cmd
}

func newTourListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tours, err := newAPIClient().ListTours()
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), tours)
			}
			return printTourTable(cmd.OutOrStdout(), tours)
		},
	}
}

func newTourShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a tour's itinerary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := newAPIClient().GetTour(args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), t)
			}
			printTour(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func newTourICSCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "ics <id>",
		Short: "Export a tour as an iCalendar file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := newAPIClient().TourCalendar(args[0])
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(cal)
				return err
			}
			if err := renameio.WriteFile(output, cal, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default: stdout)")
	return cmd
}
