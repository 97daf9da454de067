package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// SettlementConfig points at the escrow backend. An empty EscrowURL selects
// the in-process escrow, which is only meant for local play and tests.
type SettlementConfig struct {
	EscrowURL     string `env:"ESCROW_URL"`
	EscrowAPIKey  string `env:"ESCROW_API_KEY"`
	EscrowTimeout int    `env:"ESCROW_TIMEOUT_MS" envDefault:"5000"`
	RetryMax      int    `env:"SETTLEMENT_RETRY_MAX" envDefault:"5"`
	RetryBaseMS   int    `env:"SETTLEMENT_RETRY_BASE_MS" envDefault:"250"`
}

func LoadSettlement() (SettlementConfig, error) {
	var cfg SettlementConfig
	err := env.Parse(&cfg)
	return cfg, err
}

func (c SettlementConfig) Timeout() time.Duration {
	return time.Duration(c.EscrowTimeout) * time.Millisecond
}

func (c SettlementConfig) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseMS) * time.Millisecond
}
