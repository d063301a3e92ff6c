package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/nfc-timecontrol/internal/client"
	"github.com/evcraddock/nfc-timecontrol/internal/tag"
)

func newScanCmd() *cobra.Command {
	var image, place string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Check in or out by scanning a tag",
		Long: `Scan a tag image, or name a place directly, to toggle it: the first scan
checks in, the next checks out. Tags written by other applications are ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (image == "") == (place == "") {
				return fmt.Errorf("give exactly one of --image or --place")
			}

			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			var res *client.ScanResponse
			if image != "" {
				res, err = b.ScanDevice(cmd.Context(), tag.NewFileDevice(image, 0))
				if err != nil {
					return err
				}
			} else {
				res, err = b.CheckPlace(cmd.Context(), place)
				if err != nil {
					return err
				}
			}

			if isJSON() {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printScan(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "tag image file to scan")
	cmd.Flags().StringVar(&place, "place", "", "toggle this place without a tag")

	return cmd
}
