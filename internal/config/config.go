// Package config loads server settings from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	ListenAddr string

	// Comma-separated origin patterns accepted at the WebSocket handshake.
	// Empty allows same-origin only.
	AllowedOrigins []string

	// Stake bounds enforced on createGame, in the escrow currency unit.
	MinStake float64
	MaxStake float64

	// Optional Redis leaderboard.
	RedisURL string

	// Optional Postgres archive of finished matches.
	DatabaseURL string

	// Optional escrow verification: both must be set to enable the join gate.
	EscrowRPCURL   string
	EscrowContract string

	// Optional override directory for the message catalog.
	MessageDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr: ":3001",
		MinStake:   0.00001,
		MaxStake:   0.1,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, s)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("MIN_STAKE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid MIN_STAKE: %q", v)
		}
		cfg.MinStake = f
	}
	if v := strings.TrimSpace(os.Getenv("MAX_STAKE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid MAX_STAKE: %q", v)
		}
		cfg.MaxStake = f
	}
	if cfg.MaxStake < cfg.MinStake {
		return nil, fmt.Errorf("MAX_STAKE %v below MIN_STAKE %v", cfg.MaxStake, cfg.MinStake)
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.EscrowRPCURL = strings.TrimSpace(os.Getenv("ESCROW_RPC_URL"))
	cfg.EscrowContract = strings.TrimSpace(os.Getenv("ESCROW_CONTRACT"))
	cfg.MessageDir = strings.TrimSpace(os.Getenv("MESSAGE_DIR"))

	if (cfg.EscrowRPCURL == "") != (cfg.EscrowContract == "") {
		return nil, fmt.Errorf("ESCROW_RPC_URL and ESCROW_CONTRACT must be set together")
	}
	return cfg, nil
}
