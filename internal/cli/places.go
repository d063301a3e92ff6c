package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPlacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "places",
		Short: "List places with visit counts and time spent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			sums, err := b.Places(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing places: %w", err)
			}

			if isJSON() {
				return printJSON(cmd.OutOrStdout(), sums)
			}
			return printSummaryTable(cmd.OutOrStdout(), sums)
		},
	}
}

func newVisitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "visits <place>",
		Short: "List visits to a place",
		Long:  "Show every check-in and check-out for a place, newest first, with durations.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			visits, err := b.Visits(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("listing visits: %w", err)
			}

			if isJSON() {
				return printJSON(cmd.OutOrStdout(), visits)
			}
			return printVisitTable(cmd.OutOrStdout(), args[0], visits)
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <place>",
		Short: "Delete a place and all its visits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			removed, err := b.DeletePlace(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"place": args[0], "removed": removed})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%d visits).\n", args[0], removed)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where you are checked in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			status, err := b.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading status: %w", err)
			}

			if isJSON() {
				return printJSON(cmd.OutOrStdout(), status)
			}

			w := cmd.OutOrStdout()
			if url := getServerURL(); url != "" {
				fmt.Fprintf(w, "Server: %s\n\n", url)
			}
			switch {
			case status.Empty:
				fmt.Fprintln(w, "No visits recorded yet. Write a place to a tag with 'ntc write', then scan it.")
			case len(status.Open) == 0:
				fmt.Fprintln(w, "Not checked in anywhere.")
			default:
				for _, o := range status.Open {
					in := "-"
					if o.CheckIn != nil {
						in = formatTimestamp(*o.CheckIn)
					}
					fmt.Fprintf(w, "Checked in at %s since %s (%s)\n", o.Place, in, formatMinutes(o.Minutes))
				}
			}
			return nil
		},
	}
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <place>",
		Short: "Show whether you are checked in at a place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			entry, err := b.Open(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("checking place: %w", err)
			}

			if isJSON() {
				return printJSON(cmd.OutOrStdout(), entry)
			}

			w := cmd.OutOrStdout()
			switch {
			case entry.Visits == 0:
				fmt.Fprintf(w, "No visits recorded for %s.\n", entry.Place)
			case !entry.Open:
				fmt.Fprintf(w, "Not checked in at %s (%d visits).\n", entry.Place, entry.Visits)
			default:
				in := "-"
				if entry.CheckIn != nil {
					in = formatTimestamp(*entry.CheckIn)
				}
				fmt.Fprintf(w, "Checked in at %s since %s (%s)\n", entry.Place, in, formatMinutes(entry.Minutes))
			}
			return nil
		},
	}
}
