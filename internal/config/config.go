package config

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	TelegramToken    string        `mapstructure:"telegram_token"`
	BotHandleTimeout time.Duration `mapstructure:"bot_handle_timeout"`
	SettingsFile     string        `mapstructure:"settings_file"`
	CASBaseURL       string        `mapstructure:"cas_base_url"`
	OpsListenAddr    string        `mapstructure:"ops_listen_addr"`
}

func New() *Config {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		logrus.Fatalf("unmarshalling config: %v", err)
	}
	return cfg
}

func SetupCommon() {
	viper.SetDefault("bot_handle_timeout", "10s")
	viper.SetDefault("settings_file", "lyssa_config.json")
	viper.SetDefault("cas_base_url", "https://api.cas.chat")
	viper.SetDefault("ops_listen_addr", ":8080")
	viper.SetEnvPrefix("LYSSA")

	viper.MustBindEnv("telegram_token")
	viper.AutomaticEnv()
}
