package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	ServerURL string  `env:"SERVER_URL" envDefault:"http://localhost:8080"`
	Address   string  `env:"BOT_ADDRESS" envDefault:"0xb0700000000000000000000000000000000000b0"`
	Stake     float64 `env:"BOT_STAKE" envDefault:"0.1"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
