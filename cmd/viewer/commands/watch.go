package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wishlistai/backend/internal/channel"
	"github.com/wishlistai/backend/internal/contribute"
	"github.com/wishlistai/backend/internal/tui"
	"github.com/wishlistai/backend/internal/viewstate"
)

// watch <slug>: live view of a shared wishlist.
func watchCmd() *cobra.Command {
	var guestName string
	cmd := &cobra.Command{
		Use:   "watch <slug>",
		Short: "Open the live view of a shared wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			client := channel.NewClient(channel.Config{
				APIBase:      cfg.APIURL,
				PingInterval: cfg.PingInterval,
				ReconnectMin: cfg.ReconnectMin,
				ReconnectMax: cfg.ReconnectMax,
			}, nil)
			session := tui.NewSession(client, viewstate.NewStore(apiClient, args[0]))

			snap, err := session.Start(ctx)
			if err != nil {
				return fmt.Errorf("open wishlist %s: %w", args[0], err)
			}
			defer session.Close()

			submitter := contribute.NewSubmitter(apiClient)
			defer submitter.Close()

			if guestName == "" {
				guestName = cfg.GuestName
			}
			model := tui.NewModel(ctx, snap, session.Updates(), submitter, guestName)
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if err != nil && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&guestName, "name", "", "optional name kept with your reservation")
	return cmd
}
