package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type GameConfig struct {
	PlayDurationMS         int     `env:"PLAY_DURATION_MS" envDefault:"20000"`
	TargetMin              float64 `env:"TARGET_MIN" envDefault:"6.0"`
	TargetMax              float64 `env:"TARGET_MAX" envDefault:"10.0"`
	FeePercent             float64 `env:"FEE_PERCENT" envDefault:"5"`
	MaxInflateDelta        float64 `env:"MAX_INFLATE_DELTA" envDefault:"1.0"`
	RoomIdleTTLMinutes     int     `env:"ROOM_IDLE_TTL_MINUTES" envDefault:"30"`
	ResultRetentionMinutes int     `env:"RESULT_RETENTION_MINUTES" envDefault:"60"`
	JanitorIntervalMS      int     `env:"JANITOR_INTERVAL_MS" envDefault:"1000"`
}

func LoadGame() (GameConfig, error) {
	var cfg GameConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if cfg.TargetMin < 1 || cfg.TargetMax > 10 || cfg.TargetMin > cfg.TargetMax {
		return cfg, fmt.Errorf("target range [%v, %v] must lie within [1, 10]", cfg.TargetMin, cfg.TargetMax)
	}
	if cfg.FeePercent < 0 || cfg.FeePercent >= 100 {
		return cfg, fmt.Errorf("FEE_PERCENT %v out of range", cfg.FeePercent)
	}
	if cfg.PlayDurationMS <= 0 {
		return cfg, fmt.Errorf("PLAY_DURATION_MS must be positive")
	}
	if cfg.MaxInflateDelta <= 0 {
		return cfg, fmt.Errorf("MAX_INFLATE_DELTA must be positive")
	}
	return cfg, nil
}

func (c GameConfig) PlayDuration() time.Duration {
	return time.Duration(c.PlayDurationMS) * time.Millisecond
}

func (c GameConfig) RoomIdleTTL() time.Duration {
	return time.Duration(c.RoomIdleTTLMinutes) * time.Minute
}

func (c GameConfig) ResultRetention() time.Duration {
	return time.Duration(c.ResultRetentionMinutes) * time.Minute
}

func (c GameConfig) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalMS) * time.Millisecond
}
