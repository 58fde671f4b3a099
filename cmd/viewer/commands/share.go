package commands

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

// share <listID>: print the public link of an owned wishlist.
func shareCmd() *cobra.Command {
	var pngPath string
	cmd := &cobra.Command{
		Use:   "share <listID>",
		Short: "Print the public link and QR code of one of your wishlists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiClient.Token == "" {
				return errors.New("owner token required (token in the config file or WISHLIST_TOKEN)")
			}

			info, err := apiClient.GetShare(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(info.URL)

			qr, err := qrcode.New(info.URL, qrcode.Medium)
			if err != nil {
				return err
			}
			fmt.Print(qr.ToSmallString(false))

			if pngPath != "" {
				png, err := base64.StdEncoding.DecodeString(info.QRCodePNG)
				if err != nil {
					return fmt.Errorf("decode qr image: %w", err)
				}
				if err := os.WriteFile(pngPath, png, 0o644); err != nil {
					return err
				}
				fmt.Printf("QR code written to %s\n", pngPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pngPath, "png", "", "also write the QR code image to this file")
	return cmd
}
