package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/evcraddock/nfc-timecontrol/internal/auth"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys for the server",
		Long:  "Create, list and delete the API keys that clients use to reach 'ntc serve'. Keys live in the local database.",
	}

	cmd.AddCommand(newKeysCreateCmd(), newKeysListCmd(), newKeysDeleteCmd())
	return cmd
}

func newKeysCreateCmd() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(database)

			raw, key, err := auth.NewAPIKeyStore(database).Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if save {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				cfg.APIKey = raw
				if err := saveConfig(cfg); err != nil {
					return err
				}
			}

			if isJSON() {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"key": raw, "id": key.ID, "name": key.Name})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key #%d (%s):\n\n  %s\n\nStore it now; it is not shown again.\n", key.ID, key.Name, raw)
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "also store the key in the CLI config")
	return cmd
}

func newKeysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(database)

			keys, err := auth.NewAPIKeyStore(database).List(cmd.Context())
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(cmd.OutOrStdout(), keys)
			}
			if len(keys) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No API keys.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPREFIX\tCREATED\tLAST USED")
			for _, k := range keys {
				used := "never"
				if k.LastUsedAt != nil {
					used = formatTimestamp(*k.LastUsedAt)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s…\t%s\t%s\n", k.ID, k.Name, k.KeyPrefix, formatTimestamp(k.CreatedAt), used)
			}
			return tw.Flush()
		},
	}
}

func newKeysDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid key ID: %s", args[0])
			}

			database, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(database)

			if err := auth.NewAPIKeyStore(database).Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key #%d deleted.\n", id)
			return nil
		},
	}
}
