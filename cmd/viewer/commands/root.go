package commands

import (
	"github.com/spf13/cobra"

	"github.com/wishlistai/backend/internal/api"
	"github.com/wishlistai/backend/internal/config"
)

var (
	configPath string
	apiURL     string

	cfg       *config.ViewerConfig
	apiClient *api.Client
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wishlist",
		Short:         "Follow a shared wishlist live and reserve gifts from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadViewerConfig(configPath)
			if err != nil {
				return err
			}
			if apiURL != "" {
				loaded.APIURL = apiURL
			}
			cfg = loaded
			apiClient = api.NewClient(cfg.APIURL, cfg.HTTPTimeout)
			apiClient.Token = cfg.Token
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (default http://localhost:8080)")

	root.AddCommand(watchCmd(), contributeCmd(), shareCmd())
	return root
}
