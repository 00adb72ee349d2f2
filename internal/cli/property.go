package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newPropertyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "property",
		Aliases: []string{"properties", "prop"},
		Short:   "Manage properties",
	}
	cmd.AddCommand(newPropertyAddCmd(), newPropertyListCmd(), newPropertyShowCmd(), newPropertyRemoveCmd())
	return cmd
}

func newPropertyAddCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <address>",
		Short: "List a property for showings",
		Long:  "Add a property you are selling. You become its owner and approve its showings.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := strings.Join(args, " ")
			if name == "" {
				name = address
			}
			p, err := newAPIClient().AddProperty(name, address)
			if err != nil {
				return fmt.Errorf("adding property: %w", err)
			}
			out := cmd.OutOrStdout()
			if isJSON() {
				return printJSON(out, p)
			}
			fmt.Fprintln(out, "Property added.")
			printProperty(out, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (default: the address)")
	return cmd
}

func newPropertyListCmd() *cobra.Command {
	var mine bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List properties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := newAPIClient().ListProperties(mine)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), props)
			}
			return printPropertyTable(cmd.OutOrStdout(), props)
		},
	}

	cmd.Flags().BoolVar(&mine, "mine", false, "only properties you own")
	return cmd
}

func newPropertyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newAPIClient().GetProperty(args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), p)
			}
			printProperty(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func newPropertyRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a property with its blocks, showings and feedback",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newAPIClient().DeleteProperty(args[0]); err != nil {
				return fmt.Errorf("removing property: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Property %s removed.\n", args[0])
			return nil
		},
	}
}
