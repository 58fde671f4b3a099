package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ViewerConfig holds the settings of the terminal viewer.
type ViewerConfig struct {
	APIURL       string        `mapstructure:"api_url"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
	GuestName    string        `mapstructure:"guest_name"`
	// Token is the owner's bearer token, only needed by owner commands.
	Token string `mapstructure:"token"`
}

// LoadViewerConfig reads an optional config file and WISHLIST_* environment
// overrides. A missing file is not an error.
func LoadViewerConfig(path string) (*ViewerConfig, error) {
	v := viper.New()
	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("ping_interval", 25*time.Second)
	v.SetDefault("reconnect_min", time.Second)
	v.SetDefault("reconnect_max", 30*time.Second)
	v.SetDefault("http_timeout", 15*time.Second)
	v.SetDefault("guest_name", "")
	v.SetDefault("token", "")

	v.SetEnvPrefix("WISHLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	var cfg ViewerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	return &cfg, nil
}
