package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/showinghive/internal/feedback"
)

func newFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Leave and read showing feedback",
	}
	cmd.AddCommand(newFeedbackAddCmd(), newFeedbackListCmd())
	return cmd
}

func newFeedbackAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <showing-id> <rating> <comment>",
		Short: "Rate a showing from 1 to 5 with a comment",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil || rating < feedback.MinRating || rating > feedback.MaxRating {
				return fmt.Errorf("rating must be %d-%d, got %q", feedback.MinRating, feedback.MaxRating, args[1])
			}

			f, err := newAPIClient().AddFeedback(args[0], rating, strings.Join(args[2:], " "))
			if err != nil {
				return fmt.Errorf("adding feedback: %w", err)
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), f)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Feedback added: %s %s\n", formatRating(f.Rating), f.Comment)
			return nil
		},
	}
}

func newFeedbackListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <showing-id>",
		Short: "List feedback for a showing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := newAPIClient().ListFeedback(args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), list)
			}
			printFeedbackList(cmd.OutOrStdout(), list)
			return nil
		},
	}
}
