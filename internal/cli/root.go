// Package cli defines the cobra command tree for hive.
package cli

import (
	"database/sql"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/evcraddock/showinghive/internal/client"
	"github.com/evcraddock/showinghive/internal/db"
)

var (
	flagFormat string
	flagDB     string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hive",
		Short:         "Schedule property showings",
		Long:          "ShowingHive books property showings without double-booking, runs the seller approval workflow, issues lockbox codes, collects feedback and builds buyer tours.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path for serve (default: ~/.config/hive/showings.db)")

	root.AddCommand(
		newServeCmd(),
		newPropertyCmd(),
		newBlockCmd(),
		newShowingCmd(),
		newFeedbackCmd(),
		newTourCmd(),
		newDashboardCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// openDB opens the SQLite database using the --db flag or default path.
func openDB() (*sql.DB, error) {
	path := flagDB
	if path == "" {
		var err error
		path, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return db.Open(path)
}

// newAPIClient creates an HTTP client for the ShowingHive API.
func newAPIClient() *client.Client {
	return client.New(getServerURL(), getAPIKey())
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// closeDB closes the database, logging any error.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		slog.Warn("closing database", "err", err)
	}
}
