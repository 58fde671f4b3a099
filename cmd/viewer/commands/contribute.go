package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wishlistai/backend/internal/contribute"
	"github.com/wishlistai/backend/internal/tui"
)

// contribute <slug> <itemID>: reserve an item or contribute to it once.
func contributeCmd() *cobra.Command {
	var (
		amount    string
		full      bool
		guestName string
	)
	cmd := &cobra.Command{
		Use:   "contribute <slug> <itemID>",
		Short: "Reserve an item in full or contribute part of its price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if full == (amount != "") {
				return errors.New("pass either --amount or --full")
			}

			snap, err := apiClient.GetWishlistBySlug(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var found bool
			var req contribute.Request
			for _, item := range snap.Items {
				if item.ID != args[1] {
					continue
				}
				var minor int64
				if !full {
					if minor, err = tui.ParseAmount(amount); err != nil {
						return err
					}
				}
				if guestName == "" {
					guestName = cfg.GuestName
				}
				req = contribute.ForItem(item, minor, full, guestName)
				found = true
				break
			}
			if !found {
				return fmt.Errorf("item %s is not on this wishlist", args[1])
			}

			submitter := contribute.NewSubmitter(apiClient)
			defer submitter.Close()
			if err := submitter.Submit(cmd.Context(), snap.ID, args[1], req); err != nil {
				var exceeds *contribute.ExceedsRemainingError
				if errors.As(err, &exceeds) {
					return fmt.Errorf("only %s is left to fund", tui.FormatMoney(exceeds.Remaining))
				}
				return err
			}

			if full {
				fmt.Printf("reserved %s\n", tui.FormatMoney(req.Amount))
			} else {
				fmt.Printf("contributed %s\n", tui.FormatMoney(req.Amount))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount to contribute, e.g. 12.50")
	cmd.Flags().BoolVar(&full, "full", false, "reserve whatever is left of the price")
	cmd.Flags().StringVar(&guestName, "name", "", "optional name kept with your reservation")
	return cmd
}
