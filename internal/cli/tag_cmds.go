package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/nfc-timecontrol/internal/tag"
)

func newWriteCmd() *cobra.Command {
	var (
		image    string
		capacity int
		readOnly bool
	)

	cmd := &cobra.Command{
		Use:   "write <place>",
		Short: "Write a place to a tag",
		Long:  "Write the place name to a tag image so scanning it checks in or out of that place. A blank image is formatted first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev := tag.NewFileDevice(image, getTagCapacity(capacity))
			codec := getCodec()

			if err := tag.NewWriter(codec).Write(cmd.Context(), dev, args[0]); err != nil {
				return describeTagError(err)
			}
			if readOnly {
				if err := dev.Lock(); err != nil {
					return fmt.Errorf("locking tag: %w", err)
				}
			}

			if isJSON() {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"place":     args[0],
					"image":     dev.Path(),
					"read_only": readOnly,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tag written: %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "tag image file")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "tag capacity in bytes for new images (default 137)")
	cmd.Flags().BoolVar(&readOnly, "readonly", false, "lock the tag after writing")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func newEraseCmd() *cobra.Command {
	var image string

	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase a tag",
		Long:  "Replace the tag content with a single empty record.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dev := tag.NewFileDevice(image, getTagCapacity(0))
			if err := tag.NewWriter(getCodec()).Erase(cmd.Context(), dev); err != nil {
				return describeTagError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Tag erased.")
			return nil
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "tag image file")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func newReadCmd() *cobra.Command {
	var image string

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Show what a tag holds",
		Long:  "Read a tag and report whether it names a place for this application.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := tag.Read(cmd.Context(), tag.NewFileDevice(image, 0), getCodec())
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"kind":  content.Kind.String(),
					"place": content.Place,
				})
			}
			switch content.Kind {
			case tag.Valid:
				fmt.Fprintf(cmd.OutOrStdout(), "Place: %s\n", content.Place)
			case tag.Foreign:
				fmt.Fprintln(cmd.OutOrStdout(), "Not an ntc tag.")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "Tag content is malformed.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "tag image file")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

// describeTagError maps tag precondition failures to user-facing messages.
func describeTagError(err error) error {
	switch {
	case errors.Is(err, tag.ErrNotWritable):
		return fmt.Errorf("tag is read-only: %w", err)
	case errors.Is(err, tag.ErrInsufficientCapacity):
		return fmt.Errorf("place name does not fit on this tag: %w", err)
	case errors.Is(err, tag.ErrFormat):
		return fmt.Errorf("tag cannot hold NDEF data: %w", err)
	case errors.Is(err, tag.ErrInvalidPlace):
		return err
	default:
		return fmt.Errorf("writing tag: %w", err)
	}
}
