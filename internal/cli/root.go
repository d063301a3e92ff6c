// Package cli defines the cobra command tree for ntc.
package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/nfc-timecontrol/internal/db"
	"github.com/evcraddock/nfc-timecontrol/internal/logging"
)

var (
	flagFormat string
	flagDB     string
	flagServer string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ntc",
		Short:         "Check in and out of places with NFC tags",
		Long:          "Tap an NFC tag to check in or out of a named place, and review visit history and time spent. Works against a local database or a remote ntc server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupCLI(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (default: ~/.nfc-timecontrol/places.db)")
	root.PersistentFlags().StringVar(&flagServer, "server", "", "ntc server URL; when set, commands use the HTTP API")

	root.AddCommand(
		newScanCmd(),
		newWriteCmd(),
		newEraseCmd(),
		newReadCmd(),
		newPlacesCmd(),
		newVisitsCmd(),
		newStatusCmd(),
		newOpenCmd(),
		newDeleteCmd(),
		newKeysCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	return root
}

// openDB opens the SQLite database from --db, NTC_DB, the config file, or
// the default path.
func openDB() (*sql.DB, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, err
	}
	return db.Open(path)
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// closeDB closes the database, logging any error to stderr.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}
